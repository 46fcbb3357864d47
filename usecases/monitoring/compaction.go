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

import "time"

// ObserveStep records the time elapsed since start for step.
func (pm *PrometheusMetrics) ObserveStep(step string, start time.Time) {
	if pm == nil {
		return
	}

	pm.StepDurations.WithLabelValues(step).Observe(time.Since(start).Seconds())
}

func (pm *PrometheusMetrics) AddDeleteRuns(n int) {
	if pm == nil || n <= 0 {
		return
	}

	pm.DeleteRunsPrepared.Add(float64(n))
}

func (pm *PrometheusMetrics) AddSuppressedRows(n int) {
	if pm == nil || n <= 0 {
		return
	}

	pm.DeleteRowsSuppressed.Add(float64(n))
}

// Record a staged repartition bucket holding rows rows
func (pm *PrometheusMetrics) StagedBucket(mode string, rows int) {
	if pm == nil {
		return
	}

	pm.StagedBuckets.WithLabelValues(mode).Inc()
	pm.RepartitionedRows.WithLabelValues(mode).Add(float64(rows))
}

func (pm *PrometheusMetrics) RowCountMismatch() {
	if pm == nil {
		return
	}

	pm.RowCountMismatches.Inc()
}

func (pm *PrometheusMetrics) CheckpointOp(operation, outcome string) {
	if pm == nil {
		return
	}

	pm.CheckpointOps.WithLabelValues(operation, outcome).Inc()
}

func (pm *PrometheusMetrics) ConfigurationDrift() {
	if pm == nil {
		return
	}

	pm.ConfigurationDrifts.Inc()
}
