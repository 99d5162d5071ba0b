// Copyright 2024 DriveFS Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics records drive instance activity in Prometheus.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"drivefs/internal/common"
)

// DriveMetrics observes operations executed by a drive instance.
// A nil *Recorder is valid and records nothing.
type DriveMetrics interface {
	// RecordOperation records one core operation and its outcome.
	RecordOperation(op string, duration time.Duration, err error)
	// RecordPersist records one snapshot save.
	RecordPersist(backend string, duration time.Duration, err error)
	// SetRecords updates the folder and file record gauges.
	SetRecords(folders, files int)
}

// Recorder is the Prometheus implementation of DriveMetrics.
type Recorder struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	persistTotal      *prometheus.CounterVec
	persistDuration   *prometheus.HistogramVec
	records           *prometheus.GaugeVec
}

var _ DriveMetrics = (*Recorder)(nil)

// New registers the drivefs collectors with reg.
func New(reg prometheus.Registerer) *Recorder {
	return &Recorder{
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "drivefs_operations_total",
				Help: "Total number of drive operations by operation and status",
			},
			[]string{"operation", "status"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "drivefs_operation_duration_milliseconds",
				Help: "Duration of drive operations in milliseconds",
				Buckets: []float64{
					0.1, // 100us
					1,   // 1ms
					10,  // 10ms
					100, // 100ms
					1000,
				},
			},
			[]string{"operation"},
		),
		persistTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "drivefs_persist_total",
				Help: "Total number of snapshot saves by backend and status",
			},
			[]string{"backend", "status"},
		),
		persistDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "drivefs_persist_duration_milliseconds",
				Help:    "Duration of snapshot saves in milliseconds",
				Buckets: []float64{1, 10, 100, 1000, 10000},
			},
			[]string{"backend"},
		),
		records: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "drivefs_records",
				Help: "Current number of stored records by kind",
			},
			[]string{"kind"},
		),
	}
}

func (r *Recorder) RecordOperation(op string, duration time.Duration, err error) {
	if r == nil {
		return
	}
	r.operationsTotal.WithLabelValues(op, Status(err)).Inc()
	r.operationDuration.WithLabelValues(op).Observe(float64(duration.Microseconds()) / 1000)
}

func (r *Recorder) RecordPersist(backend string, duration time.Duration, err error) {
	if r == nil {
		return
	}
	r.persistTotal.WithLabelValues(backend, Status(err)).Inc()
	r.persistDuration.WithLabelValues(backend).Observe(float64(duration.Microseconds()) / 1000)
}

func (r *Recorder) SetRecords(folders, files int) {
	if r == nil {
		return
	}
	r.records.WithLabelValues("folder").Set(float64(folders))
	r.records.WithLabelValues("file").Set(float64(files))
}

// Status maps an operation error to a low-cardinality label value.
func Status(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, common.ErrNotFound):
		return "not_found"
	case errors.Is(err, common.ErrInvalidPath):
		return "invalid_path"
	case errors.Is(err, common.ErrPathCollision), errors.Is(err, common.ErrFolderExists):
		return "collision"
	case errors.Is(err, common.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, common.ErrStaleVersion):
		return "stale"
	default:
		return "error"
	}
}
