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

// Package repartition splits compacted tables into range or hash buckets
// and stages one delta per non-empty bucket.
package repartition

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/weaviate/compactor/entities/delta"
	enterrors "github.com/weaviate/compactor/entities/errors"
	"github.com/weaviate/compactor/entities/locator"
	"github.com/weaviate/compactor/entities/storage"
	"github.com/weaviate/compactor/entities/table"
	"github.com/weaviate/compactor/usecases/monitoring"
)

type Result struct {
	// Deltas holds one staged, uncommitted delta per non-empty bucket in
	// bucket order.
	Deltas []delta.Delta
}

type Repartitioner struct {
	storage     storage.Storage
	logger      logrus.FieldLogger
	metrics     *monitoring.PrometheusMetrics
	contentType delta.ContentType
}

func New(store storage.Storage, contentType delta.ContentType, logger logrus.FieldLogger,
	metrics *monitoring.PrometheusMetrics,
) *Repartitioner {
	if contentType == "" {
		contentType = delta.ContentTypeMsgpack
	}
	return &Repartitioner{
		storage:     store,
		logger:      logger,
		metrics:     metrics,
		contentType: contentType,
	}
}

// Repartition downloads the contents of d and repartitions them into
// destination.
func (r *Repartitioner) Repartition(ctx context.Context, d delta.Annotated,
	destination locator.PartitionLocator, req Request,
) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, err
	}

	tables, err := r.storage.DownloadDelta(ctx, d.Delta, storage.ReadOptions{Mode: storage.Local})
	if err != nil {
		return Result{}, errors.Wrapf(err, "download delta %s", d.Locator)
	}
	return r.RepartitionTables(ctx, tables, destination, req)
}

// RepartitionTables splits in-memory tables and stages each non-empty
// bucket exactly once.
func (r *Repartitioner) RepartitionTables(ctx context.Context, tables []*table.Table,
	destination locator.PartitionLocator, req Request,
) (Result, error) {
	defer r.metrics.ObserveStep("repartition", time.Now())

	logger := r.logger.WithFields(logrus.Fields{
		"action":      "repartition",
		"partition":   destination.Digest().Hex(),
		"mode":        req.Type,
		"column":      req.Column,
		"num_buckets": req.NumBuckets(),
	})

	buckets, err := split(tables, req)
	if err != nil {
		if enterrors.IsRowCountMismatch(err) {
			r.metrics.RowCountMismatch()
			logger.WithError(err).Error("repartitioning lost or duplicated rows")
		}
		return Result{}, err
	}

	res := Result{Deltas: make([]delta.Delta, 0, len(buckets))}
	for _, b := range buckets {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		staged, err := r.storage.StageDelta(ctx, b.Table, destination, delta.Upsert,
			delta.Properties{}, r.contentType)
		if err != nil {
			return Result{}, errors.Wrapf(err, "stage bucket %s", req.Describe(b.Index))
		}

		r.metrics.StagedBucket(string(req.Type), b.Table.NumRows())
		logger.WithFields(logrus.Fields{
			"bucket": req.Describe(b.Index),
			"rows":   b.Table.NumRows(),
		}).Debug("staged bucket")
		res.Deltas = append(res.Deltas, staged)
	}

	return res, nil
}
