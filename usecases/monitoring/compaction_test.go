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
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompactionMetrics(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	m := NewPrometheusMetrics(reg)

	t.Run("staged buckets", func(t *testing.T) {
		m.StagedBucket("range", 100)
		m.StagedBucket("range", 200)

		assert.Equal(t, float64(2), testutil.ToFloat64(m.StagedBuckets.WithLabelValues("range")))
		assert.Equal(t, float64(300), testutil.ToFloat64(m.RepartitionedRows.WithLabelValues("range")))
	})

	t.Run("delete runs ignore non-positive counts", func(t *testing.T) {
		m.AddDeleteRuns(2)
		m.AddDeleteRuns(0)
		m.AddDeleteRuns(-1)

		assert.Equal(t, float64(2), testutil.ToFloat64(m.DeleteRunsPrepared))
	})

	t.Run("checkpoint operations", func(t *testing.T) {
		m.CheckpointOp("load", "missing")
		m.CheckpointOp("save", "ok")
		m.CheckpointOp("save", "ok")

		assert.Equal(t, float64(1), testutil.ToFloat64(m.CheckpointOps.WithLabelValues("load", "missing")))
		assert.Equal(t, float64(2), testutil.ToFloat64(m.CheckpointOps.WithLabelValues("save", "ok")))
	})

	t.Run("step durations", func(t *testing.T) {
		m.ObserveStep("prepare_deletes", time.Now())
		count, err := testutil.GatherAndCount(reg, "compactor_step_duration_seconds")
		require.Nil(t, err)
		assert.Equal(t, 1, count)
	})
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *PrometheusMetrics
	assert.NotPanics(t, func() {
		m.ObserveStep("x", time.Now())
		m.AddDeleteRuns(1)
		m.AddSuppressedRows(1)
		m.StagedBucket("hash", 1)
		m.RowCountMismatch()
		m.CheckpointOp("load", "ok")
		m.ConfigurationDrift()
	})
}

func TestNoopRegistry(t *testing.T) {
	m := NewPrometheusMetrics(noop)
	m.RowCountMismatch()
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RowCountMismatches))
}
