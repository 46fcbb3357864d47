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

// Package deletes turns the DELETE deltas of a compaction pass into a
// range index of pending delete payloads and applies that index to the
// upserts the pass merges.
package deletes

import (
	"github.com/sirupsen/logrus"

	"github.com/weaviate/compactor/entities/delta"
	enterrors "github.com/weaviate/compactor/entities/errors"
	"github.com/weaviate/compactor/entities/rangeindex"
	"github.com/weaviate/compactor/entities/table"
	"github.com/weaviate/compactor/usecases/monitoring"
)

// Payload holds the delete tables of one interval. Tables sharing a
// schema are kept concatenated; deletes naming other delete columns get a
// table of their own.
type Payload = []*table.Table

// Index maps stream position ranges to the rows deleted within them.
type Index = rangeindex.Index[Payload]

// Entry is one interval of an Index.
type Entry = rangeindex.Entry[Payload]

// NewIndex returns an empty delete index.
func NewIndex() *Index {
	return rangeindex.New(combine)
}

// IndexFromEntries restores a delete index carried over from an earlier
// pass.
func IndexFromEntries(entries []Entry) (*Index, error) {
	return rangeindex.FromEntries(combine, entries)
}

func combine(a, b Payload) Payload {
	out := make(Payload, len(a), len(a)+len(b))
	copy(out, a)
	for _, t := range b {
		out = appendTable(out, t)
	}
	return out
}

// appendTable adds t to p, concatenating it onto the last table when both
// have the same schema.
func appendTable(p Payload, t *table.Table) Payload {
	if n := len(p); n > 0 && p[n-1].SameSchema(t) {
		if merged, err := table.Concat(p[n-1], t); err == nil {
			p[n-1] = merged
			return p
		}
	}
	return append(p, t)
}

// Materialized is a delta together with its downloaded contents. Tables
// holds one table per manifest entry.
type Materialized struct {
	Delta  delta.Annotated
	Tables []*table.Table
}

type Sequencer struct {
	logger  logrus.FieldLogger
	metrics *monitoring.PrometheusMetrics
}

func NewSequencer(logger logrus.FieldLogger, metrics *monitoring.PrometheusMetrics) *Sequencer {
	return &Sequencer{logger: logger, metrics: metrics}
}

type run struct {
	first, last int64
	payload     Payload
}

// Prepare walks deltas in ascending stream position order and records
// every maximal run of consecutive deletes as one interval
// [first position, last position + 1) holding the concatenated delete
// payloads, whatever their delete columns. carried is never modified; the
// returned index starts as a copy of it.
func (s *Sequencer) Prepare(deltas []Materialized, carried *Index) (*Index, error) {
	idx := NewIndex()
	if carried != nil {
		idx = carried.Clone()
	}

	if err := validateOrder(deltas); err != nil {
		return nil, err
	}

	var curr *run
	runs := 0
	flush := func() error {
		defer func() { curr = nil }()
		if curr == nil || len(curr.payload) == 0 {
			return nil
		}
		rng := rangeindex.Range{Start: curr.first, End: curr.last + 1}
		if err := idx.Insert(rng, curr.payload); err != nil {
			return err
		}
		runs++
		return nil
	}

	for _, m := range deltas {
		if len(m.Tables) != len(m.Delta.Manifest.Entries) {
			return nil, enterrors.NewErrInvalidArgumentf(
				"delta at stream position %d has %d tables for %d manifest entries",
				m.Delta.StreamPosition(), len(m.Tables), len(m.Delta.Manifest.Entries))
		}

		if m.Delta.Type != delta.Delete {
			if err := flush(); err != nil {
				return nil, err
			}
			continue
		}

		for i, t := range m.Tables {
			pos := m.Delta.EntryPosition(i)
			projected, err := s.project(t, m.Delta, pos)
			if err != nil {
				return nil, err
			}
			if curr == nil {
				curr = &run{first: pos}
			}
			curr.last = pos
			if projected.NumRows() == 0 {
				continue
			}
			curr.payload = appendTable(curr.payload, projected)
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}

	s.metrics.AddDeleteRuns(runs)
	s.logger.WithFields(logrus.Fields{
		"action":      "prepare_deletes",
		"deltas":      len(deltas),
		"runs":        runs,
		"index_size":  idx.Len(),
		"carried_len": lenOf(carried),
	}).Debug("prepared delete index")

	return idx, nil
}

// project reduces a delete payload to its declared delete columns.
func (s *Sequencer) project(t *table.Table, d delta.Annotated, pos int64) (*table.Table, error) {
	columns := d.Properties.DeleteColumns
	if len(columns) == 0 {
		return nil, s.schemaMismatch(pos, enterrors.NewErrSchemaMismatchf(
			"delete delta at stream position %d declares no delete columns", pos))
	}
	if missing := t.Missing(columns...); len(missing) > 0 {
		return nil, s.schemaMismatch(pos, enterrors.NewErrSchemaMismatchf(
			"delete delta at stream position %d lacks delete columns %v", pos, missing))
	}
	return t.Select(columns...)
}

func (s *Sequencer) schemaMismatch(pos int64, err error) error {
	s.logger.WithFields(logrus.Fields{
		"action":          "prepare_deletes",
		"stream_position": pos,
	}).WithError(err).Error("delete payload does not match its delete columns")
	return err
}

func validateOrder(deltas []Materialized) error {
	var prev int64
	for i, m := range deltas {
		first := m.Delta.FirstStreamPosition()
		if i > 0 && first <= prev {
			return enterrors.NewErrInvalidArgumentf(
				"deltas out of order: stream position %d at index %d follows %d", first, i, prev)
		}
		prev = m.Delta.LastStreamPosition()
	}
	return nil
}

func lenOf(idx *Index) int {
	if idx == nil {
		return 0
	}
	return idx.Len()
}
