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

package deltas

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weaviate/compactor/entities/delta"
	enterrors "github.com/weaviate/compactor/entities/errors"
	"github.com/weaviate/compactor/entities/locator"
	"github.com/weaviate/compactor/entities/storage"
	"github.com/weaviate/compactor/entities/table"
)

var partition = locator.NewPartitionLocator(
	locator.NewStreamLocator("ns", "events", "1", "raw", "local"), []string{"eu"}, "")

func openRepo(t *testing.T) *Repo {
	logger, _ := test.NewNullLogger()
	repo := New(t.TempDir(), logger)
	require.Nil(t, repo.Open())
	t.Cleanup(func() { repo.Close() })
	return repo
}

func testTable() *table.Table {
	return table.MustNew(
		table.Int64Column("pk", 1, 2, 3),
		table.StringColumn("name", "a", "b", "c"),
	)
}

func TestStageCommitDownload(t *testing.T) {
	ctx := context.Background()
	repo := openRepo(t)

	staged, err := repo.StageDelta(ctx, testTable(), partition, delta.Upsert,
		delta.Properties{}, delta.ContentTypeMsgpack)
	require.Nil(t, err)
	assert.Equal(t, int64(0), staged.StreamPosition())
	assert.Equal(t, int64(3), staged.RecordCount())

	first, err := repo.CommitDelta(ctx, staged)
	require.Nil(t, err)
	assert.Equal(t, int64(1), first.StreamPosition())

	second, err := repo.CommitDelta(ctx, staged)
	require.Nil(t, err)
	assert.Equal(t, int64(2), second.StreamPosition())

	t.Run("download all columns", func(t *testing.T) {
		tables, err := repo.DownloadDelta(ctx, first, storage.ReadOptions{Mode: storage.Local})
		require.Nil(t, err)
		require.Len(t, tables, 1)
		assert.True(t, testTable().Equal(tables[0]))
	})

	t.Run("download projected columns", func(t *testing.T) {
		tables, err := repo.DownloadDelta(ctx, first, storage.ReadOptions{Columns: []string{"name"}})
		require.Nil(t, err)
		require.Len(t, tables, 1)
		assert.Equal(t, []string{"name"}, tables[0].ColumnNames())
	})

	t.Run("projection on a missing column", func(t *testing.T) {
		_, err := repo.DownloadDelta(ctx, first, storage.ReadOptions{Columns: []string{"nope"}})
		require.NotNil(t, err)
		assert.True(t, enterrors.IsColumnNotFound(err))
	})

	t.Run("distributed downloads are unsupported", func(t *testing.T) {
		_, err := repo.DownloadDelta(ctx, first, storage.ReadOptions{Mode: storage.Distributed})
		require.NotNil(t, err)
		assert.True(t, enterrors.IsUnsupportedOperation(err))
	})
}

func TestListDeltasAndWatermark(t *testing.T) {
	ctx := context.Background()
	repo := openRepo(t)

	for i := 0; i < 5; i++ {
		typ := delta.Upsert
		if i%2 == 1 {
			typ = delta.Delete
		}
		staged, err := repo.StageDelta(ctx, testTable(), partition, typ,
			delta.Properties{DeleteColumns: []string{"pk"}}, delta.ContentTypeMsgpack)
		require.Nil(t, err)
		_, err = repo.CommitDelta(ctx, staged)
		require.Nil(t, err)
	}

	watermark, err := repo.HighWatermark(ctx, partition)
	require.Nil(t, err)
	assert.Equal(t, int64(0), watermark)

	watermark, err = repo.CommitPartition(ctx, partition)
	require.Nil(t, err)
	assert.Equal(t, int64(5), watermark)

	stored, err := repo.HighWatermark(ctx, partition)
	require.Nil(t, err)
	assert.Equal(t, int64(5), stored)

	listed, err := repo.ListDeltas(ctx, partition, 2, 4)
	require.Nil(t, err)
	require.Len(t, listed, 3)
	for i, d := range listed {
		assert.Equal(t, int64(i+2), d.StreamPosition())
		assert.True(t, locator.Equal(partition, d.Partition()))
	}
	assert.Equal(t, delta.Delete, listed[0].Type)
	assert.Equal(t, []string{"pk"}, listed[0].Properties.DeleteColumns)

	all, err := repo.ListDeltas(ctx, partition, -1, 100)
	require.Nil(t, err)
	assert.Len(t, all, 5)

	other := partition.WithPartitionID("other")
	none, err := repo.ListDeltas(ctx, other, 0, 100)
	require.Nil(t, err)
	assert.Empty(t, none)

	partitions, err := repo.Partitions(ctx)
	require.Nil(t, err)
	require.Len(t, partitions, 1)
	assert.True(t, locator.Equal(partition, partitions[0]))
}

func TestStageRejectsUnsupportedInput(t *testing.T) {
	ctx := context.Background()
	repo := openRepo(t)

	_, err := repo.StageDelta(ctx, testTable(), partition, delta.Upsert, delta.Properties{}, delta.ContentTypeParquet)
	require.NotNil(t, err)
	assert.True(t, enterrors.IsUnsupportedOperation(err))

	_, err = repo.StageDelta(ctx, testTable(), partition, "MERGE", delta.Properties{}, delta.ContentTypeMsgpack)
	require.NotNil(t, err)
	assert.True(t, enterrors.IsInvalidArgument(err))
}

func TestCommitUnknownBlob(t *testing.T) {
	repo := openRepo(t)

	_, err := repo.CommitDelta(context.Background(), delta.Delta{
		Locator: locator.NewDeltaLocator(partition, 0),
		Type:    delta.Upsert,
		Manifest: delta.Manifest{Entries: []delta.ManifestEntry{{
			URI: blobScheme + "missing", ContentType: delta.ContentTypeMsgpack,
		}}},
	})
	require.NotNil(t, err)
	assert.True(t, enterrors.IsNotFound(err))
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	logger, _ := test.NewNullLogger()
	dir := t.TempDir()

	repo := New(dir, logger)
	require.Nil(t, repo.Open())
	staged, err := repo.StageDelta(ctx, testTable(), partition, delta.Upsert, delta.Properties{}, delta.ContentTypeMsgpack)
	require.Nil(t, err)
	committed, err := repo.CommitDelta(ctx, staged)
	require.Nil(t, err)
	require.Nil(t, repo.Close())

	repo = New(dir, logger)
	require.Nil(t, repo.Open())
	defer repo.Close()

	listed, err := repo.ListDeltas(ctx, partition, 0, 10)
	require.Nil(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, committed, listed[0])
}
