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

package roundcompletion

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"

	enterrors "github.com/weaviate/compactor/entities/errors"
	"github.com/weaviate/compactor/entities/rangeindex"
	"github.com/weaviate/compactor/entities/table"
	"github.com/weaviate/compactor/usecases/monitoring"
)

// Backend stores checkpoint objects. PutObject must be atomic: a reader
// sees either the previous or the new object, never a partial one. A
// missing object is reported as an ErrNotFound.
type Backend interface {
	GetObject(ctx context.Context, key string) ([]byte, error)
	PutObject(ctx context.Context, key string, data []byte) error
}

type Tracker struct {
	backend Backend
	logger  logrus.FieldLogger
	metrics *monitoring.PrometheusMetrics
}

func NewTracker(backend Backend, logger logrus.FieldLogger, metrics *monitoring.PrometheusMetrics) *Tracker {
	return &Tracker{backend: backend, logger: logger, metrics: metrics}
}

// Load returns the checkpoint stored at location, or nil if there is none.
func (t *Tracker) Load(ctx context.Context, location string) (*Info, error) {
	data, err := t.backend.GetObject(ctx, location)
	if err != nil {
		if enterrors.IsNotFound(err) {
			t.metrics.CheckpointOp("load", "missing")
			return nil, nil
		}
		t.metrics.CheckpointOp("load", "error")
		return nil, errors.Wrapf(err, "get checkpoint %q", location)
	}

	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		t.metrics.CheckpointOp("load", "error")
		return nil, errors.Wrapf(err, "decode checkpoint %q", location)
	}
	t.metrics.CheckpointOp("load", "ok")
	return &info, nil
}

// Save persists info at location.
func (t *Tracker) Save(ctx context.Context, info Info, location string) error {
	defer t.metrics.ObserveStep("round_completion_save", time.Now())

	data, err := json.Marshal(info)
	if err != nil {
		return errors.Wrap(err, "encode checkpoint")
	}
	if err := t.backend.PutObject(ctx, location, data); err != nil {
		t.metrics.CheckpointOp("save", "error")
		return errors.Wrapf(err, "put checkpoint %q", location)
	}

	t.metrics.CheckpointOp("save", "ok")
	t.logger.WithFields(logrus.Fields{
		"action":          "round_completion_save",
		"location":        location,
		"stream_position": info.HighWatermark,
		"run_id":          info.RunID,
	}).Info("saved round completion checkpoint")
	return nil
}

// SaveDeletes stores the delete index entries carried into the next round
// next to the checkpoint at location and returns their key. The key is
// unique to runID, so the object a stored checkpoint references is never
// overwritten. It must be called before the Info referencing the key is
// saved.
func (t *Tracker) SaveDeletes(ctx context.Context, location string, runID uuid.UUID,
	entries []rangeindex.Entry[[]*table.Table],
) (string, error) {
	if len(entries) == 0 {
		return "", nil
	}

	data, err := msgpack.Marshal(entries)
	if err != nil {
		return "", errors.Wrap(err, "encode carried deletes")
	}
	key := deletesKey(location, runID)
	if err := t.backend.PutObject(ctx, key, data); err != nil {
		return "", errors.Wrapf(err, "put carried deletes %q", key)
	}
	return key, nil
}

// LoadDeletes returns the carried delete index entries stored under key.
func (t *Tracker) LoadDeletes(ctx context.Context, key string) ([]rangeindex.Entry[[]*table.Table], error) {
	if key == "" {
		return nil, nil
	}

	data, err := t.backend.GetObject(ctx, key)
	if err != nil {
		return nil, errors.Wrapf(err, "get carried deletes %q", key)
	}
	var entries []rangeindex.Entry[[]*table.Table]
	if err := msgpack.Unmarshal(data, &entries); err != nil {
		return nil, errors.Wrapf(err, "decode carried deletes %q", key)
	}
	return entries, nil
}

// ResumePoint tells a compaction round where to start.
type ResumePoint struct {
	// Previous is the checkpoint the round continues from. Nil on a full
	// rebase.
	Previous *Info
	// StartAfter is the last stream position already compacted. Deltas
	// with a higher position are compacted by the round.
	StartAfter int64
	// Deletes are the carried delete index entries of Previous.
	Deletes []rangeindex.Entry[[]*table.Table]
	// Drift is set when a checkpoint existed but was written under another
	// fingerprint.
	Drift error
}

func (r ResumePoint) Full() bool {
	return r.Previous == nil
}

// Resume loads the checkpoint at location and decides between an
// incremental round and a full rebase. A fingerprint mismatch is not an
// error: it forces a full rebase and is reported in ResumePoint.Drift.
func (t *Tracker) Resume(ctx context.Context, location string, current Fingerprint) (ResumePoint, error) {
	logger := t.logger.WithFields(logrus.Fields{
		"action":   "round_completion_resume",
		"location": location,
	})

	info, err := t.Load(ctx, location)
	if err != nil {
		return ResumePoint{}, err
	}
	if info == nil {
		logger.Info("no checkpoint found, compacting from the beginning")
		return ResumePoint{StartAfter: -1}, nil
	}

	if err := Check(*info, current); err != nil {
		t.metrics.ConfigurationDrift()
		logger.WithError(err).Warn("configuration drift, falling back to a full rebase")
		return ResumePoint{StartAfter: -1, Drift: err}, nil
	}

	carried, err := t.LoadDeletes(ctx, info.DeleteIndexKey)
	if err != nil {
		return ResumePoint{}, err
	}

	logger.WithFields(logrus.Fields{
		"stream_position": info.HighWatermark,
		"carried_deletes": len(carried),
	}).Info("resuming incremental compaction")
	return ResumePoint{Previous: info, StartAfter: info.HighWatermark, Deletes: carried}, nil
}
