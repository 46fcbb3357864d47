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

package deletes

import (
	"github.com/sirupsen/logrus"
	"github.com/weaviate/sroar"

	enterrors "github.com/weaviate/compactor/entities/errors"
	"github.com/weaviate/compactor/entities/rangeindex"
	"github.com/weaviate/compactor/entities/table"
)

// Apply removes every row of upsert whose delete column values equal a
// row of a delete table recorded after position. Each delete table is
// matched on its own columns. It returns the
// surviving rows and the row numbers that were suppressed.
func (s *Sequencer) Apply(upsert *table.Table, position int64, idx *Index) (*table.Table, *sroar.Bitmap, error) {
	suppressed := sroar.NewBitmap()
	if idx == nil || upsert.NumRows() == 0 {
		return upsert, suppressed, nil
	}

	for _, e := range idx.After(position) {
		for _, payload := range e.Payload {
			if err := suppress(upsert, e.Range, payload, suppressed); err != nil {
				return nil, nil, err
			}
		}
	}

	n := suppressed.GetCardinality()
	if n == 0 {
		return upsert, suppressed, nil
	}

	s.metrics.AddSuppressedRows(n)
	s.logger.WithFields(logrus.Fields{
		"action":          "apply_deletes",
		"stream_position": position,
		"suppressed":      n,
		"rows":            upsert.NumRows(),
	}).Debug("suppressed deleted rows")

	survivors := upsert.Filter(func(row int) bool {
		return !suppressed.Contains(uint64(row))
	})
	return survivors, suppressed, nil
}

func suppress(upsert *table.Table, rng rangeindex.Range, payload *table.Table, into *sroar.Bitmap) error {
	keys := make([]*table.Column, 0, payload.NumColumns())
	for _, dc := range payload.Columns() {
		c, ok := upsert.Column(dc.Name)
		if !ok {
			return enterrors.NewErrColumnNotFound(dc.Name)
		}
		if c.Type != dc.Type {
			return enterrors.NewErrSchemaMismatchf(
				"delete column %q is %s in run %s but %s in the upsert", dc.Name, dc.Type, rng, c.Type)
		}
		keys = append(keys, c)
	}

	targets := make(map[string]struct{}, payload.NumRows())
	for r := 0; r < payload.NumRows(); r++ {
		targets[table.RowKey(r, payload.Columns())] = struct{}{}
	}
	for r := 0; r < upsert.NumRows(); r++ {
		if _, ok := targets[table.RowKey(r, keys)]; ok {
			into.Set(uint64(r))
		}
	}
	return nil
}

// Unconsumed returns the entries of idx that no upsert of the pass
// preceded. They have not been applied to anything yet and must be carried
// over to the next pass.
func Unconsumed(idx *Index, upsertPositions []int64) []Entry {
	if idx == nil {
		return nil
	}

	var out []Entry
	for _, e := range idx.Entries() {
		consumed := false
		for _, p := range upsertPositions {
			if p < e.Range.Start {
				consumed = true
				break
			}
		}
		if !consumed {
			out = append(out, e)
		}
	}
	return out
}
