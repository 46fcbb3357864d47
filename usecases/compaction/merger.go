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

package compaction

import (
	"context"

	"github.com/pkg/errors"

	"github.com/weaviate/compactor/entities/delta"
	"github.com/weaviate/compactor/entities/table"
	"github.com/weaviate/compactor/usecases/deletes"
)

// MergeInput is everything a merger needs for one round.
type MergeInput struct {
	// Previous holds the output of the last round, empty on a full rebase.
	Previous []*table.Table
	// PreviousPosition is the high watermark Previous was compacted up to.
	PreviousPosition int64
	// Deltas are the materialized source deltas of the round in stream
	// position order, deletes included.
	Deltas  []deletes.Materialized
	Deletes *deletes.Index
}

// Merger turns the inputs of a round into the compacted table.
type Merger interface {
	Merge(ctx context.Context, in MergeInput) (*table.Table, error)
}

// DeleteApplyingMerger applies pending deletes to the previous output and
// to every upsert or append, then concatenates the survivors in stream
// position order. Rows are not deduplicated by key.
type DeleteApplyingMerger struct {
	sequencer *deletes.Sequencer
}

func NewDeleteApplyingMerger(sequencer *deletes.Sequencer) *DeleteApplyingMerger {
	return &DeleteApplyingMerger{sequencer: sequencer}
}

func (m *DeleteApplyingMerger) Merge(ctx context.Context, in MergeInput) (*table.Table, error) {
	var survivors []*table.Table
	keep := func(t *table.Table, pos int64) error {
		out, _, err := m.sequencer.Apply(t, pos, in.Deletes)
		if err != nil {
			return errors.Wrapf(err, "apply deletes at stream position %d", pos)
		}
		if out.NumColumns() > 0 {
			survivors = append(survivors, out)
		}
		return nil
	}

	for _, t := range in.Previous {
		if err := keep(t, in.PreviousPosition); err != nil {
			return nil, err
		}
	}
	for _, d := range in.Deltas {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if d.Delta.Type == delta.Delete {
			continue
		}
		for i, t := range d.Tables {
			if err := keep(t, d.Delta.EntryPosition(i)); err != nil {
				return nil, err
			}
		}
	}

	if len(survivors) == 0 {
		return table.MustNew(), nil
	}
	merged, err := table.Concat(survivors...)
	if err != nil {
		return nil, errors.Wrap(err, "concat surviving rows")
	}
	return merged, nil
}
