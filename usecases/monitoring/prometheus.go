//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2024 Weaviate B.V. All rights reserved.
//
//  CONTACT: hello@weaviate.io
//

package monitoring

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type PrometheusMetrics struct {
	StepDurations        *prometheus.HistogramVec
	DeleteRunsPrepared   prometheus.Counter
	DeleteRowsSuppressed prometheus.Counter
	RepartitionedRows    *prometheus.CounterVec
	StagedBuckets        *prometheus.CounterVec
	RowCountMismatches   prometheus.Counter
	CheckpointOps        *prometheus.CounterVec
	ConfigurationDrifts  prometheus.Counter
}

var (
	msBuckets = []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10, 30, 60, 300}

	metrics *PrometheusMetrics
	once    sync.Once
	enabled = true
)

// Disable makes every later GetMetrics call register against a no-op
// registry. It has no effect once metrics were created.
func Disable() {
	enabled = false
}

// GetMetrics returns the process wide metrics, creating them on first use.
func GetMetrics() *PrometheusMetrics {
	once.Do(func() {
		var reg prometheus.Registerer = prometheus.DefaultRegisterer
		if !enabled {
			reg = noop
		}
		metrics = NewPrometheusMetrics(reg)
	})
	return metrics
}

func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	factory := promauto.With(reg)
	return &PrometheusMetrics{
		StepDurations: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "compactor_step_duration_seconds",
			Help:    "Duration of a compaction step",
			Buckets: msBuckets,
		}, []string{"step"}),
		DeleteRunsPrepared: factory.NewCounter(prometheus.CounterOpts{
			Name: "compactor_delete_runs_prepared_total",
			Help: "Number of maximal delete runs recorded in delete indexes",
		}),
		DeleteRowsSuppressed: factory.NewCounter(prometheus.CounterOpts{
			Name: "compactor_delete_rows_suppressed_total",
			Help: "Number of upsert rows removed by pending deletes",
		}),
		RepartitionedRows: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "compactor_repartitioned_rows_total",
			Help: "Number of rows written by the repartitioner",
		}, []string{"mode"}),
		StagedBuckets: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "compactor_repartition_staged_buckets_total",
			Help: "Number of non-empty buckets staged by the repartitioner",
		}, []string{"mode"}),
		RowCountMismatches: factory.NewCounter(prometheus.CounterOpts{
			Name: "compactor_row_count_mismatches_total",
			Help: "Repartitioning runs that lost or duplicated rows",
		}),
		CheckpointOps: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "compactor_checkpoint_operations_total",
			Help: "Round completion checkpoint loads and saves",
		}, []string{"operation", "outcome"}),
		ConfigurationDrifts: factory.NewCounter(prometheus.CounterOpts{
			Name: "compactor_configuration_drifts_total",
			Help: "Checkpoints discarded because the compaction fingerprint changed",
		}),
	}
}
