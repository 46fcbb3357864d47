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
	"fmt"
	"sort"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weaviate/compactor/adapters/repos/deltas"
	"github.com/weaviate/compactor/entities/delta"
	enterrors "github.com/weaviate/compactor/entities/errors"
	"github.com/weaviate/compactor/entities/locator"
	"github.com/weaviate/compactor/entities/storage"
	"github.com/weaviate/compactor/entities/table"
	modrcffs "github.com/weaviate/compactor/modules/rcf-filesystem"
	"github.com/weaviate/compactor/usecases/monitoring"
	"github.com/weaviate/compactor/usecases/repartition"
	"github.com/weaviate/compactor/usecases/roundcompletion"
)

var (
	source = locator.NewPartitionLocator(
		locator.NewStreamLocator("ns", "events", "1", "raw", "local"), []string{"eu"}, "")
	destination = locator.NewPartitionLocator(
		locator.NewStreamLocator("ns", "events", "1", "compacted", "local"), []string{"eu"}, "")
)

type fixture struct {
	repo    *deltas.Repo
	tracker *roundcompletion.Tracker
	session *Session
	hook    *test.Hook
}

func newFixture(t *testing.T) *fixture {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	repo := deltas.New(t.TempDir(), logger)
	require.Nil(t, repo.Open())
	t.Cleanup(func() { repo.Close() })

	backend, err := modrcffs.New(t.TempDir(), logger)
	require.Nil(t, err)

	metrics := monitoring.NewPrometheusMetrics(prometheus.NewPedanticRegistry())
	tracker := roundcompletion.NewTracker(backend, logger, metrics)
	return &fixture{
		repo:    repo,
		tracker: tracker,
		session: NewSession(repo, tracker, nil, logger, metrics),
		hook:    hook,
	}
}

func (f *fixture) upsert(t *testing.T, values ...int64) {
	pk := make([]string, len(values))
	for i, v := range values {
		pk[i] = fmt.Sprintf("row-%d", v)
	}
	f.commit(t, delta.Upsert, nil, table.MustNew(
		table.StringColumn("pk", pk...),
		table.Int64Column("col_1", values...),
	))
}

func (f *fixture) delete(t *testing.T, values ...int64) {
	f.commit(t, delta.Delete, []string{"col_1"}, table.MustNew(table.Int64Column("col_1", values...)))
}

func (f *fixture) commit(t *testing.T, typ delta.Type, deleteColumns []string, tbl *table.Table) {
	ctx := context.Background()
	staged, err := f.repo.StageDelta(ctx, tbl, source, typ,
		delta.Properties{DeleteColumns: deleteColumns}, delta.ContentTypeMsgpack)
	require.Nil(t, err)
	_, err = f.repo.CommitDelta(ctx, staged)
	require.Nil(t, err)
}

// compacted returns the sorted col_1 values of the compacted delta info
// points to.
func (f *fixture) compacted(t *testing.T, info *roundcompletion.Info) []int64 {
	ctx := context.Background()
	pos := info.CompactedDeltaLocator.StreamPosition
	found, err := f.repo.ListDeltas(ctx, destination, pos, pos)
	require.Nil(t, err)
	require.Len(t, found, 1)

	tables, err := f.repo.DownloadDelta(ctx, found[0], storage.ReadOptions{})
	require.Nil(t, err)

	var values []int64
	for _, tbl := range tables {
		c, ok := tbl.Column("col_1")
		require.True(t, ok)
		values = append(values, c.Ints...)
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
	return values
}

func baseParams(last int64) Params {
	return Params{
		Source:             source,
		Destination:        destination,
		LastStreamPosition: last,
		HashBucketCount:    1,
		SortKeys:           []string{"pk"},
	}
}

func TestIncrementalCompaction(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.upsert(t, 0, 1, 2, 3, 4, 5, 6, 7, 8, 9)
	f.delete(t, 4)
	f.upsert(t, 4, 20, 21)

	var first *roundcompletion.Info
	t.Run("first round is a full pass", func(t *testing.T) {
		info, err := f.session.Compact(ctx, baseParams(3))
		require.Nil(t, err)
		require.NotNil(t, info)

		assert.Equal(t, int64(3), info.HighWatermark)
		assert.Equal(t, int64(1), info.CompactedDeltaLocator.StreamPosition)
		assert.True(t, locator.Equal(destination, info.CompactedDeltaLocator.Partition))
		assert.Equal(t, "", info.DeleteIndexKey)
		assert.Equal(t, []int64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 20, 21}, f.compacted(t, info))

		stored, err := f.tracker.Load(ctx, roundcompletion.Location(source, destination))
		require.Nil(t, err)
		assert.Equal(t, info, stored)
		first = info
	})

	f.delete(t, 20, 5)
	f.upsert(t, 30)

	t.Run("second round continues from the checkpoint", func(t *testing.T) {
		info, err := f.session.Compact(ctx, baseParams(5))
		require.Nil(t, err)

		assert.Equal(t, int64(5), info.HighWatermark)
		assert.Equal(t, int64(2), info.CompactedDeltaLocator.StreamPosition)
		assert.NotEqual(t, first.RunID, info.RunID)
		assert.Equal(t, []int64{0, 1, 2, 3, 4, 6, 7, 8, 9, 21, 30}, f.compacted(t, info))
	})

	t.Run("nothing new keeps the checkpoint", func(t *testing.T) {
		before, err := f.tracker.Load(ctx, roundcompletion.Location(source, destination))
		require.Nil(t, err)

		info, err := f.session.Compact(ctx, baseParams(5))
		require.Nil(t, err)
		assert.Equal(t, before, info)

		committed, err := f.repo.ListDeltas(ctx, destination, 0, 100)
		require.Nil(t, err)
		assert.Len(t, committed, 2)
	})

	t.Run("configuration drift rebuilds from scratch", func(t *testing.T) {
		params := baseParams(5)
		params.HashBucketCount = 2

		info, err := f.session.Compact(ctx, params)
		require.Nil(t, err)
		assert.Equal(t, 2, info.HashBucketCount)
		assert.Equal(t, int64(3), info.CompactedDeltaLocator.StreamPosition)
		assert.Equal(t, []int64{0, 1, 2, 3, 4, 6, 7, 8, 9, 21, 30}, f.compacted(t, info))

		warned := false
		for _, e := range f.hook.AllEntries() {
			if e.Level == logrus.WarnLevel && e.Data["action"] == "round_completion_resume" {
				warned = true
			}
		}
		assert.True(t, warned)
	})
}

func TestNoSourceDeltas(t *testing.T) {
	f := newFixture(t)

	info, err := f.session.Compact(context.Background(), baseParams(10))
	require.Nil(t, err)
	assert.Nil(t, info)
}

func TestCompactionWithRepartition(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.upsert(t, 1, 2, 3, 7, 8)
	f.delete(t, 2)

	params := baseParams(2)
	params.Repartition = &repartition.Request{Type: repartition.Range, Column: "col_1", Ranges: []int64{5}}

	info, err := f.session.Compact(ctx, params)
	require.Nil(t, err)

	found, err := f.repo.ListDeltas(ctx, destination, info.CompactedDeltaLocator.StreamPosition,
		info.CompactedDeltaLocator.StreamPosition)
	require.Nil(t, err)
	require.Len(t, found, 1)
	require.Len(t, found[0].Manifest.Entries, 2, "one manifest entry per non-empty bucket")

	tables, err := f.repo.DownloadDelta(ctx, found[0], storage.ReadOptions{Columns: []string{"col_1"}})
	require.Nil(t, err)
	require.Len(t, tables, 2)
	low, _ := tables[0].Column("col_1")
	high, _ := tables[1].Column("col_1")
	assert.Equal(t, []int64{1, 3}, low.Ints)
	assert.Equal(t, []int64{7, 8}, high.Ints)
}

func TestCarriedDeletesSurviveOneRound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.delete(t, 1)
	f.upsert(t, 1, 2)

	info, err := f.session.Compact(ctx, baseParams(2))
	require.Nil(t, err)
	require.NotEqual(t, "", info.DeleteIndexKey)
	assert.Equal(t, []int64{1, 2}, f.compacted(t, info))

	resume, err := f.tracker.Resume(ctx, roundcompletion.Location(source, destination),
		roundcompletion.Fingerprint{HashBucketCount: 1, SortKeys: []string{"pk"}})
	require.Nil(t, err)
	require.Len(t, resume.Deletes, 1)

	f.upsert(t, 1)
	info, err = f.session.Compact(ctx, baseParams(3))
	require.Nil(t, err)
	assert.Equal(t, "", info.DeleteIndexKey)
	assert.Equal(t, []int64{1, 1, 2}, f.compacted(t, info))
}

func TestFailedRoundWritesNoCheckpoint(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.upsert(t, 1, 2)
	f.commit(t, delta.Delete, []string{"missing"}, table.MustNew(table.Int64Column("col_1", 1)))

	_, err := f.session.Compact(ctx, baseParams(2))
	require.NotNil(t, err)
	assert.True(t, enterrors.IsSchemaMismatch(err))

	stored, err := f.tracker.Load(ctx, roundcompletion.Location(source, destination))
	require.Nil(t, err)
	assert.Nil(t, stored)

	committed, err := f.repo.ListDeltas(ctx, destination, 0, 100)
	require.Nil(t, err)
	assert.Empty(t, committed)
}

func TestParamsValidate(t *testing.T) {
	p := baseParams(-1)
	assert.True(t, enterrors.IsInvalidArgument(p.Validate()))

	p = baseParams(1)
	p.Repartition = &repartition.Request{Type: repartition.Range, Column: "c"}
	assert.True(t, enterrors.IsInvalidArgument(p.Validate()))

	p = baseParams(1)
	p.RecordsPerBatch = -5
	assert.True(t, enterrors.IsInvalidArgument(p.Validate()))

	assert.Nil(t, baseParams(1).Validate())
}
