package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"drivefs/internal/common"
)

func TestRecorder(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	r := New(reg)

	r.RecordOperation("create_folder", 2*time.Millisecond, nil)
	r.RecordOperation("create_folder", time.Millisecond, fmt.Errorf("x: %w", common.ErrFolderExists))
	r.RecordOperation("delete_file", time.Millisecond, common.ErrNotFound)
	r.RecordPersist("sqlite", 5*time.Millisecond, nil)
	r.SetRecords(3, 7)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.operationsTotal.WithLabelValues("create_folder", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.operationsTotal.WithLabelValues("create_folder", "collision")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.operationsTotal.WithLabelValues("delete_file", "not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.persistTotal.WithLabelValues("sqlite", "success")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.records.WithLabelValues("folder")))
	assert.Equal(t, 7.0, testutil.ToFloat64(r.records.WithLabelValues("file")))

	count, err := testutil.GatherAndCount(reg, "drivefs_operation_duration_milliseconds")
	assert.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestNilRecorder(t *testing.T) {
	t.Parallel()

	var r *Recorder
	assert.NotPanics(t, func() {
		r.RecordOperation("ping", time.Millisecond, nil)
		r.RecordPersist("badger", time.Millisecond, nil)
		r.SetRecords(1, 1)
	})
}

func TestStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want string
	}{
		{nil, "success"},
		{common.ErrNotFound, "not_found"},
		{common.ErrInvalidPath, "invalid_path"},
		{common.ErrPathCollision, "collision"},
		{common.ErrUnauthorized, "unauthorized"},
		{common.ErrStaleVersion, "stale"},
		{errors.New("disk"), "error"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Status(tt.err))
	}
}
