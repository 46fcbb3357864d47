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
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weaviate/compactor/entities/delta"
	enterrors "github.com/weaviate/compactor/entities/errors"
	"github.com/weaviate/compactor/entities/locator"
	"github.com/weaviate/compactor/entities/rangeindex"
	"github.com/weaviate/compactor/entities/table"
)

var partition = locator.NewPartitionLocator(
	locator.NewStreamLocator("ns", "events", "1", "s1", "local"), nil, "p0")

func materialize(pos int64, typ delta.Type, deleteColumns []string, t *table.Table) Materialized {
	d := delta.Delta{
		Locator:    locator.NewDeltaLocator(partition, pos),
		Type:       typ,
		Properties: delta.Properties{DeleteColumns: deleteColumns},
		Manifest: delta.Manifest{Entries: []delta.ManifestEntry{{
			URI:         "mem://" + uuid.NewString(),
			RecordCount: int64(t.NumRows()),
			ContentType: delta.ContentTypeMsgpack,
		}}},
	}
	return Materialized{Delta: delta.Annotate(d, uuid.Nil), Tables: []*table.Table{t}}
}

func upsertRows(pos int64, from int64) Materialized {
	pk := make([]int64, 10)
	col := make([]int64, 10)
	for i := range pk {
		pk[i] = int64(i)
		col[i] = from + int64(i)
	}
	return materialize(pos, delta.Upsert, nil, table.MustNew(
		table.Int64Column("pk", pk...),
		table.Int64Column("col_1", col...),
	))
}

func deleteOf(pos int64, values ...int64) Materialized {
	return materialize(pos, delta.Delete, []string{"col_1"},
		table.MustNew(table.Int64Column("col_1", values...)))
}

func payloadValues(t *testing.T, tbl *table.Table) []int64 {
	c, ok := tbl.Column("col_1")
	require.True(t, ok)
	return c.Ints
}

// entryValues returns the col_1 values of a single-schema payload.
func entryValues(t *testing.T, p Payload) []int64 {
	require.Len(t, p, 1)
	return payloadValues(t, p[0])
}

func TestPrepare(t *testing.T) {
	type expectedEntry struct {
		rng    rangeindex.Range
		values []int64
	}

	tests := []struct {
		name     string
		deltas   []Materialized
		expected []expectedEntry
	}{
		{
			name:   "single upsert",
			deltas: []Materialized{upsertRows(1, 0)},
		},
		{
			name:   "upsert then delete",
			deltas: []Materialized{upsertRows(1, 0), deleteOf(2, 4)},
			expected: []expectedEntry{
				{rng: rangeindex.Range{Start: 2, End: 3}, values: []int64{4}},
			},
		},
		{
			name:   "delete sandwiched between upserts",
			deltas: []Materialized{upsertRows(1, 0), deleteOf(2, 4), upsertRows(3, 0)},
			expected: []expectedEntry{
				{rng: rangeindex.Range{Start: 2, End: 3}, values: []int64{4}},
			},
		},
		{
			name: "isolated deletes form their own intervals",
			deltas: []Materialized{
				upsertRows(1, 0), deleteOf(2, 40), upsertRows(3, 70), deleteOf(4, 72),
			},
			expected: []expectedEntry{
				{rng: rangeindex.Range{Start: 2, End: 3}, values: []int64{40}},
				{rng: rangeindex.Range{Start: 4, End: 5}, values: []int64{72}},
			},
		},
		{
			name: "consecutive deletes coalesce",
			deltas: []Materialized{
				upsertRows(1, 0), deleteOf(2, 40), deleteOf(3, 41), deleteOf(4, 42),
				upsertRows(5, 70), deleteOf(6, 72),
			},
			expected: []expectedEntry{
				{rng: rangeindex.Range{Start: 2, End: 5}, values: []int64{40, 41, 42}},
				{rng: rangeindex.Range{Start: 6, End: 7}, values: []int64{72}},
			},
		},
		{
			name: "run with gaps in stream positions",
			deltas: []Materialized{
				upsertRows(1, 0), deleteOf(5, 40), deleteOf(9, 41),
			},
			expected: []expectedEntry{
				{rng: rangeindex.Range{Start: 5, End: 10}, values: []int64{40, 41}},
			},
		},
		{
			name:   "empty delete payloads are not stored",
			deltas: []Materialized{upsertRows(1, 0), deleteOf(2), upsertRows(3, 0)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := test.NewNullLogger()
			idx, err := NewSequencer(logger, nil).Prepare(tt.deltas, nil)
			require.Nil(t, err)

			entries := idx.Entries()
			require.Len(t, entries, len(tt.expected))
			for i, exp := range tt.expected {
				assert.Equal(t, exp.rng, entries[i].Range)
				assert.Equal(t, exp.values, entryValues(t, entries[i].Payload))
			}
		})
	}
}

func TestPrepareWithoutDeletesKeepsCarriedIndex(t *testing.T) {
	logger, _ := test.NewNullLogger()
	s := NewSequencer(logger, nil)

	carried := NewIndex()
	require.Nil(t, carried.Insert(rangeindex.Range{Start: 3, End: 4},
		Payload{table.MustNew(table.Int64Column("col_1", 7))}))

	idx, err := s.Prepare([]Materialized{upsertRows(10, 0)}, carried)
	require.Nil(t, err)
	assert.Equal(t, carried.Entries(), idx.Entries())

	// the carried index stays untouched when new runs are added
	idx, err = s.Prepare([]Materialized{upsertRows(10, 0), deleteOf(11, 8)}, carried)
	require.Nil(t, err)
	assert.Equal(t, 2, idx.Len())
	assert.Equal(t, 1, carried.Len())
}

func TestPrepareMergesRunTouchingCarriedEntry(t *testing.T) {
	logger, _ := test.NewNullLogger()
	s := NewSequencer(logger, nil)

	carried := NewIndex()
	require.Nil(t, carried.Insert(rangeindex.Range{Start: 3, End: 5},
		Payload{table.MustNew(table.Int64Column("col_1", 7))}))

	idx, err := s.Prepare([]Materialized{deleteOf(5, 8), upsertRows(6, 0)}, carried)
	require.Nil(t, err)

	entries := idx.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, rangeindex.Range{Start: 3, End: 6}, entries[0].Range)
	assert.Equal(t, []int64{7, 8}, entryValues(t, entries[0].Payload))
}

func TestPrepareSchemaMismatchIsLoud(t *testing.T) {
	tests := []struct {
		name   string
		deltas []Materialized
	}{
		{
			name: "delete column absent from payload",
			deltas: []Materialized{materialize(1, delta.Delete, []string{"id"},
				table.MustNew(table.Int64Column("col_1", 1)))},
		},
		{
			name: "no delete columns declared",
			deltas: []Materialized{materialize(1, delta.Delete, nil,
				table.MustNew(table.Int64Column("col_1", 1)))},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, hook := test.NewNullLogger()
			_, err := NewSequencer(logger, nil).Prepare(tt.deltas, nil)
			require.NotNil(t, err)
			assert.True(t, enterrors.IsSchemaMismatch(err))
			assert.True(t, enterrors.IsDataIntegrity(err))

			require.NotNil(t, hook.LastEntry())
			assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
			assert.Equal(t, "prepare_deletes", hook.LastEntry().Data["action"])
		})
	}
}

func TestPrepareRunWithDifferentDeleteColumns(t *testing.T) {
	logger, hook := test.NewNullLogger()
	s := NewSequencer(logger, nil)

	deltas := []Materialized{
		upsertRows(1, 0),
		deleteOf(2, 4),
		materialize(3, delta.Delete, []string{"pk"}, table.MustNew(
			table.Int64Column("pk", 7),
			table.Int64Column("col_1", 1000),
		)),
		deleteOf(4, 5),
		upsertRows(5, 0),
	}
	idx, err := s.Prepare(deltas, nil)
	require.Nil(t, err)
	for _, e := range hook.AllEntries() {
		assert.NotEqual(t, logrus.ErrorLevel, e.Level)
	}

	entries := idx.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, rangeindex.Range{Start: 2, End: 5}, entries[0].Range)
	require.Len(t, entries[0].Payload, 3)
	assert.Equal(t, []string{"col_1"}, entries[0].Payload[0].ColumnNames())
	assert.Equal(t, []string{"pk"}, entries[0].Payload[1].ColumnNames())
	assert.Equal(t, []string{"col_1"}, entries[0].Payload[2].ColumnNames())

	t.Run("each table matches on its own columns", func(t *testing.T) {
		out, suppressed, err := s.Apply(deltas[0].Tables[0], 1, idx)
		require.Nil(t, err)
		// col_1 = 4 and 5 are rows 4 and 5, pk = 7 is row 7
		assert.Equal(t, []uint64{4, 5, 7}, suppressed.ToArray())
		assert.Equal(t, []int64{0, 1, 2, 3, 6, 8, 9}, payloadValues(t, out))
	})

	t.Run("touching carried entry with other columns", func(t *testing.T) {
		carried := NewIndex()
		require.Nil(t, carried.Insert(rangeindex.Range{Start: 1, End: 2},
			Payload{table.MustNew(table.StringColumn("name", "a"))}))

		idx, err := s.Prepare([]Materialized{deleteOf(2, 4), upsertRows(3, 0)}, carried)
		require.Nil(t, err)
		entries := idx.Entries()
		require.Len(t, entries, 1)
		assert.Equal(t, rangeindex.Range{Start: 1, End: 3}, entries[0].Range)
		require.Len(t, entries[0].Payload, 2)
		assert.Equal(t, []string{"name"}, entries[0].Payload[0].ColumnNames())
		assert.Equal(t, []int64{4}, payloadValues(t, entries[0].Payload[1]))
	})
}

func TestPrepareRejectsUnorderedDeltas(t *testing.T) {
	logger, _ := test.NewNullLogger()
	_, err := NewSequencer(logger, nil).Prepare(
		[]Materialized{upsertRows(2, 0), deleteOf(2, 1)}, nil)
	require.NotNil(t, err)
	assert.True(t, enterrors.IsInvalidArgument(err))
}

func TestApply(t *testing.T) {
	logger, _ := test.NewNullLogger()
	s := NewSequencer(logger, nil)

	deltas := []Materialized{
		upsertRows(1, 0), deleteOf(2, 4), upsertRows(3, 0), deleteOf(4, 5, 6),
	}
	idx, err := s.Prepare(deltas, nil)
	require.Nil(t, err)

	t.Run("upsert before both runs loses rows of both", func(t *testing.T) {
		out, suppressed, err := s.Apply(deltas[0].Tables[0], 1, idx)
		require.Nil(t, err)
		assert.Equal(t, []uint64{4, 5, 6}, suppressed.ToArray())
		assert.Equal(t, 7, out.NumRows())
		assert.Equal(t, []int64{0, 1, 2, 3, 7, 8, 9}, payloadValues(t, out))
	})

	t.Run("upsert after the first run only sees the second", func(t *testing.T) {
		out, suppressed, err := s.Apply(deltas[2].Tables[0], 3, idx)
		require.Nil(t, err)
		assert.Equal(t, 2, suppressed.GetCardinality())
		assert.Equal(t, 8, out.NumRows())
	})

	t.Run("upsert after every run is untouched", func(t *testing.T) {
		in := upsertRows(5, 0).Tables[0]
		out, suppressed, err := s.Apply(in, 5, idx)
		require.Nil(t, err)
		assert.Equal(t, 0, suppressed.GetCardinality())
		assert.True(t, out.Equal(in))
	})

	t.Run("upsert lacking the delete column", func(t *testing.T) {
		in := table.MustNew(table.Int64Column("pk", 1))
		_, _, err := s.Apply(in, 1, idx)
		require.NotNil(t, err)
		assert.True(t, enterrors.IsColumnNotFound(err))
	})

	t.Run("delete column with another type", func(t *testing.T) {
		in := table.MustNew(table.StringColumn("col_1", "4"))
		_, _, err := s.Apply(in, 1, idx)
		require.NotNil(t, err)
		assert.True(t, enterrors.IsSchemaMismatch(err))
	})
}

func TestUnconsumed(t *testing.T) {
	logger, _ := test.NewNullLogger()
	idx, err := NewSequencer(logger, nil).Prepare([]Materialized{
		deleteOf(1, 1), upsertRows(2, 0), deleteOf(3, 2), deleteOf(4, 3),
	}, nil)
	require.Nil(t, err)
	require.Equal(t, 2, idx.Len())

	left := Unconsumed(idx, []int64{2})
	require.Len(t, left, 1)
	assert.Equal(t, rangeindex.Range{Start: 1, End: 2}, left[0].Range)

	assert.Len(t, Unconsumed(idx, []int64{0}), 0)
	assert.Len(t, Unconsumed(idx, nil), 2)
	assert.Nil(t, Unconsumed(nil, []int64{1}))
}
