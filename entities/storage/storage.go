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

// Package storage defines the capabilities the compaction core consumes from
// the durable delta storage backend. The core only invokes these; it never
// implements catalog management itself.
package storage

import (
	"context"

	"github.com/weaviate/compactor/entities/delta"
	"github.com/weaviate/compactor/entities/locator"
	"github.com/weaviate/compactor/entities/table"
)

// Mode says where a download is materialized.
type Mode string

const (
	Local       Mode = "LOCAL"
	Distributed Mode = "DISTRIBUTED"
)

type ReadOptions struct {
	Mode Mode
	// Columns restricts the download to the named columns. Empty means all.
	Columns []string
}

// Storage is implemented once per backend and passed explicitly to whoever
// needs it.
type Storage interface {
	// DownloadDelta returns one table per manifest entry of d.
	DownloadDelta(ctx context.Context, d delta.Delta, opts ReadOptions) ([]*table.Table, error)
	// StageDelta writes t and returns an uncommitted delta for destination.
	StageDelta(ctx context.Context, t *table.Table, destination locator.PartitionLocator,
		typ delta.Type, props delta.Properties, contentType delta.ContentType) (delta.Delta, error)
	// CommitDelta assigns the next stream position of the delta's partition.
	CommitDelta(ctx context.Context, d delta.Delta) (delta.Delta, error)
	// CommitPartition records the partition's latest committed stream
	// position as its readable high watermark.
	CommitPartition(ctx context.Context, p locator.PartitionLocator) (int64, error)
	// ListDeltas returns the committed deltas with first <= position <= last
	// in ascending stream position order.
	ListDeltas(ctx context.Context, p locator.PartitionLocator, first, last int64) ([]delta.Delta, error)
}
