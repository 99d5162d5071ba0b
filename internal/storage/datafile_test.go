package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drivefs/internal/common"
)

// testDataFile creates a temporary data file for testing.
// Uses t.TempDir() which automatically cleans up after the test.
func testDataFile(t *testing.T) (*DataFile, func()) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.drivefs")

	df, err := Create(path)
	require.NoError(t, err, "failed to create data file")

	return df, func() {
		df.Close()
	}
}

func TestCreate(t *testing.T) {
	t.Parallel()

	t.Run("creates new file", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "new.drivefs")

		df, err := Create(path)
		require.NoError(t, err)
		defer df.Close()

		_, err = os.Stat(path)
		assert.NoError(t, err, "data file should exist")
		assert.Equal(t, path, df.Path())

		fileType, err := df.BunDB().GetSchemaInfo(context.Background(), "type")
		require.NoError(t, err)
		assert.Equal(t, FileTypeData, fileType)

		version, err := df.BunDB().GetSchemaInfo(context.Background(), "version")
		require.NoError(t, err)
		assert.Equal(t, SchemaVersion, version)
	})

	t.Run("fails when file already exists", func(t *testing.T) {
		t.Parallel()
		df, cleanup := testDataFile(t)
		defer cleanup()

		_, err := Create(df.Path())
		assert.Error(t, err)
	})
}

func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("fails for nonexistent file", func(t *testing.T) {
		t.Parallel()
		_, err := Open(filepath.Join(t.TempDir(), "missing.drivefs"))
		assert.Error(t, err)
	})

	t.Run("fails for meta file", func(t *testing.T) {
		t.Parallel()
		mf, cleanup := testMetaFile(t)
		path := mf.Path()
		mf.Close()
		defer cleanup()

		_, err := Open(path)
		assert.Error(t, err)
	})

	t.Run("close removes wal files", func(t *testing.T) {
		t.Parallel()
		df, _ := testDataFile(t)
		path := df.Path()
		require.NoError(t, df.Save(context.Background(), testSnapshot(t)))
		require.NoError(t, df.Close())
		require.NoError(t, df.Close())

		assert.NoFileExists(t, path+"-wal")
		assert.NoFileExists(t, path+"-shm")
	})
}

func TestDataFileSnapshot(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("empty file has no snapshot", func(t *testing.T) {
		t.Parallel()
		df, cleanup := testDataFile(t)
		defer cleanup()

		_, err := df.Load(ctx)
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("survives reopen", func(t *testing.T) {
		t.Parallel()
		df, _ := testDataFile(t)
		path := df.Path()
		want := testSnapshot(t)
		require.NoError(t, df.Save(ctx, want))
		require.NoError(t, df.Close())

		df2, err := Open(path)
		require.NoError(t, err)
		defer df2.Close()

		got, err := df2.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("save chunks large drives", func(t *testing.T) {
		t.Parallel()
		df, cleanup := testDataFile(t)
		defer cleanup()

		want := largeSnapshot(t, 3*insertChunkSize+5)
		require.NoError(t, df.Save(ctx, want))

		got, err := df.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})
}

func TestSplitStatements(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		script string
		want   []string
	}{
		{"empty", "", nil},
		{"single", "SELECT 1;", []string{"SELECT 1;"}},
		{"drops comments", "-- note\nSELECT 1;\n-- other\nSELECT 2;", []string{"SELECT 1;", "SELECT 2;"}},
		{"multi line", "CREATE TABLE t (\n  a TEXT\n);", []string{"CREATE TABLE t (\n  a TEXT\n);"}},
		{"trailing without semicolon", "SELECT 1;\nSELECT 2", []string{"SELECT 1;", "SELECT 2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, splitStatements(tt.script))
		})
	}
}

func TestGetBusyTimeout(t *testing.T) {
	// Not parallel: mutates environment and package config.
	t.Cleanup(func() { SetConfigBusyTimeouts(0, 0) })

	assert.Equal(t, DefaultBusyTimeout, GetBusyTimeout(DBContextDefault))

	SetConfigBusyTimeouts(1000, 2000)
	assert.Equal(t, 1000, GetBusyTimeout(DBContextDaemon))
	assert.Equal(t, 2000, GetBusyTimeout(DBContextCLI))
	assert.Equal(t, DefaultBusyTimeout, GetBusyTimeout(DBContextDefault))

	t.Setenv(EnvBusyTimeout, "3000")
	assert.Equal(t, 3000, GetBusyTimeout(DBContextDaemon))
	assert.Equal(t, 3000, GetBusyTimeout(DBContextDefault))

	t.Setenv(EnvDaemonBusyTimeout, "4000")
	assert.Equal(t, 4000, GetBusyTimeout(DBContextDaemon))
	assert.Equal(t, 3000, GetBusyTimeout(DBContextCLI))

	t.Setenv(EnvCLIBusyTimeout, "junk")
	assert.Equal(t, 3000, GetBusyTimeout(DBContextCLI))

	assert.Contains(t, BuildDSN("/tmp/x.drivefs", DBContextDaemon), "_busy_timeout=4000")
}
