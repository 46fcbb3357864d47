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

// Package compaction runs incremental compaction rounds: it resumes from
// the last checkpoint, sequences deletes, merges, optionally repartitions,
// commits the result and writes the next checkpoint.
package compaction

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/weaviate/compactor/entities/delta"
	enterrors "github.com/weaviate/compactor/entities/errors"
	"github.com/weaviate/compactor/entities/storage"
	"github.com/weaviate/compactor/entities/table"
	"github.com/weaviate/compactor/usecases/deletes"
	"github.com/weaviate/compactor/usecases/monitoring"
	"github.com/weaviate/compactor/usecases/repartition"
	"github.com/weaviate/compactor/usecases/roundcompletion"
)

// Session compacts partitions of one storage backend. Callers must make
// sure at most one round per destination partition runs at a time.
type Session struct {
	storage   storage.Storage
	tracker   *roundcompletion.Tracker
	sequencer *deletes.Sequencer
	merger    Merger
	logger    logrus.FieldLogger
	metrics   *monitoring.PrometheusMetrics
}

// NewSession wires a session. A nil merger selects the
// DeleteApplyingMerger.
func NewSession(store storage.Storage, tracker *roundcompletion.Tracker, merger Merger,
	logger logrus.FieldLogger, metrics *monitoring.PrometheusMetrics,
) *Session {
	sequencer := deletes.NewSequencer(logger, metrics)
	if merger == nil {
		merger = NewDeleteApplyingMerger(sequencer)
	}
	return &Session{
		storage:   store,
		tracker:   tracker,
		sequencer: sequencer,
		merger:    merger,
		logger:    logger,
		metrics:   metrics,
	}
}

// Compact runs one round and returns the checkpoint it wrote. When the
// source has no deltas past the last checkpoint nothing is written and the
// existing checkpoint is returned, which is nil if there never was one.
// Nothing is committed or checkpointed when any step fails.
func (s *Session) Compact(ctx context.Context, params Params) (*roundcompletion.Info, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	defer s.metrics.ObserveStep("compact", time.Now())

	runID := uuid.New()
	location := params.location()
	logger := s.logger.WithFields(logrus.Fields{
		"action":      "compact",
		"run_id":      runID,
		"source":      params.Source.Digest().Hex(),
		"destination": params.Destination.Digest().Hex(),
	})

	resume, err := s.tracker.Resume(ctx, location, params.fingerprint())
	if err != nil {
		return nil, errors.Wrap(err, "resume")
	}

	sourceDeltas, err := s.storage.ListDeltas(ctx, params.Source, resume.StartAfter+1, params.LastStreamPosition)
	if err != nil {
		return nil, errors.Wrap(err, "list source deltas")
	}
	if len(sourceDeltas) == 0 {
		logger.WithField("stream_position", resume.StartAfter).Info("nothing to compact")
		return resume.Previous, nil
	}
	if err := delta.ValidateOrder(sourceDeltas); err != nil {
		return nil, err
	}

	materialized, err := s.download(ctx, params, annotate(sourceDeltas, runID, params.RecordsPerBatch))
	if err != nil {
		return nil, err
	}

	carried, err := deletes.IndexFromEntries(resume.Deletes)
	if err != nil {
		return nil, errors.Wrap(err, "restore carried deletes")
	}
	start := time.Now()
	idx, err := s.sequencer.Prepare(materialized, carried)
	if err != nil {
		return nil, errors.Wrap(err, "prepare deletes")
	}
	s.metrics.ObserveStep("prepare_deletes", start)

	input := MergeInput{Deltas: materialized, Deletes: idx, PreviousPosition: resume.StartAfter}
	if !resume.Full() {
		input.Previous, err = s.previousOutput(ctx, params, resume.Previous)
		if err != nil {
			return nil, err
		}
	}

	start = time.Now()
	merged, err := s.merger.Merge(ctx, input)
	if err != nil {
		return nil, errors.Wrap(err, "merge")
	}
	s.metrics.ObserveStep("merge", start)

	staged, err := s.stage(ctx, params, merged)
	if err != nil {
		return nil, err
	}
	combined, err := delta.Merge(staged...)
	if err != nil {
		return nil, errors.Wrap(err, "combine staged deltas")
	}
	committed, err := s.storage.CommitDelta(ctx, combined)
	if err != nil {
		return nil, errors.Wrap(err, "commit compacted delta")
	}
	if _, err := s.storage.CommitPartition(ctx, params.Destination); err != nil {
		return nil, errors.Wrap(err, "commit destination partition")
	}

	highWatermark := sourceDeltas[len(sourceDeltas)-1].StreamPosition()
	deleteKey, err := s.tracker.SaveDeletes(ctx, location, runID,
		carryOver(idx, materialized, !resume.Full(), resume.StartAfter))
	if err != nil {
		return nil, errors.Wrap(err, "save carried deletes")
	}

	info := roundcompletion.Info{
		CompactedDeltaLocator: committed.Locator,
		HighWatermark:         highWatermark,
		HashBucketCount:       params.HashBucketCount,
		SortKeys:              params.SortKeys,
		RunID:                 runID,
		DeleteIndexKey:        deleteKey,
	}
	if err := s.tracker.Save(ctx, info, location); err != nil {
		return nil, errors.Wrap(err, "save checkpoint")
	}

	logger.WithFields(logrus.Fields{
		"stream_position": highWatermark,
		"deltas":          len(sourceDeltas),
		"rows":            merged.NumRows(),
		"full":            resume.Full(),
	}).Info("compaction round completed")
	return &info, nil
}

func annotate(deltas []delta.Delta, runID uuid.UUID, recordsPerBatch int64) []delta.Annotated {
	annotated := make([]delta.Annotated, len(deltas))
	for i, d := range deltas {
		annotated[i] = delta.Annotate(d, runID)
	}
	return delta.Rebatch(annotated, recordsPerBatch)
}

// download materializes all batches, at most params.MaxParallelism at a
// time.
func (s *Session) download(ctx context.Context, params Params, batches []delta.Annotated) ([]deletes.Materialized, error) {
	defer s.metrics.ObserveStep("download", time.Now())

	out := make([]deletes.Materialized, len(batches))
	eg, gctx := enterrors.NewErrorGroupWithContextWrapper(ctx, s.logger, params.parallelism())
	for i := range batches {
		i := i
		eg.Go(func() error {
			tables, err := s.storage.DownloadDelta(gctx, batches[i].Delta, storage.ReadOptions{Mode: storage.Local})
			if err != nil {
				return errors.Wrapf(err, "download delta %s", batches[i].Locator)
			}
			out[i] = deletes.Materialized{Delta: batches[i], Tables: tables}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Session) previousOutput(ctx context.Context, params Params, previous *roundcompletion.Info) ([]*table.Table, error) {
	pos := previous.CompactedDeltaLocator.StreamPosition
	found, err := s.storage.ListDeltas(ctx, params.Destination, pos, pos)
	if err != nil {
		return nil, errors.Wrap(err, "list previous compacted delta")
	}
	if len(found) != 1 {
		return nil, enterrors.NewErrNotFound(errors.Errorf(
			"previous compacted delta %s not found in destination", previous.CompactedDeltaLocator))
	}
	tables, err := s.storage.DownloadDelta(ctx, found[0], storage.ReadOptions{Mode: storage.Local})
	if err != nil {
		return nil, errors.Wrap(err, "download previous compacted delta")
	}
	return tables, nil
}

// stage writes the compacted table to the destination, split into buckets
// when a repartition was requested.
func (s *Session) stage(ctx context.Context, params Params, merged *table.Table) ([]delta.Delta, error) {
	if params.Repartition != nil && merged.NumRows() > 0 {
		r := repartition.New(s.storage, params.contentType(), s.logger, s.metrics)
		res, err := r.RepartitionTables(ctx, []*table.Table{merged}, params.Destination, *params.Repartition)
		if err != nil {
			return nil, errors.Wrap(err, "repartition")
		}
		return res.Deltas, nil
	}

	staged, err := s.storage.StageDelta(ctx, merged, params.Destination, delta.Upsert,
		delta.Properties{}, params.contentType())
	if err != nil {
		return nil, errors.Wrap(err, "stage compacted table")
	}
	return []delta.Delta{staged}, nil
}

// carryOver returns the delete runs of this round that no compacted data
// preceded. Runs carried in from earlier rounds are dropped: every upsert
// still to come has a higher stream position, so they can no longer match.
func carryOver(idx *deletes.Index, materialized []deletes.Materialized, hasPrevious bool,
	startAfter int64,
) []deletes.Entry {
	var positions []int64
	if hasPrevious {
		positions = append(positions, startAfter)
	}
	for _, m := range materialized {
		if m.Delta.Type == delta.Delete {
			continue
		}
		for i := range m.Tables {
			positions = append(positions, m.Delta.EntryPosition(i))
		}
	}

	var out []deletes.Entry
	for _, e := range deletes.Unconsumed(idx, positions) {
		if e.Range.End > startAfter+1 {
			out = append(out, e)
		}
	}
	return out
}
