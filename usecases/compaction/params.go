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
	"github.com/weaviate/compactor/entities/delta"
	enterrors "github.com/weaviate/compactor/entities/errors"
	"github.com/weaviate/compactor/entities/locator"
	"github.com/weaviate/compactor/usecases/repartition"
	"github.com/weaviate/compactor/usecases/roundcompletion"
)

const DefaultMaxParallelism = 4

// Params configure one compaction round of Source into Destination.
type Params struct {
	Source      locator.PartitionLocator
	Destination locator.PartitionLocator
	// LastStreamPosition is the highest source position compacted by the
	// round, inclusive.
	LastStreamPosition int64
	HashBucketCount    int
	SortKeys           []string
	// Repartition splits the compacted table. Nil stages it as one table.
	Repartition *repartition.Request
	// RecordsPerBatch coalesces small deltas of one type before they are
	// downloaded. Zero disables rebatching.
	RecordsPerBatch int64
	ContentType     delta.ContentType
	MaxParallelism  int
	// CheckpointLocation defaults to roundcompletion.Location(Source,
	// Destination).
	CheckpointLocation string
}

func (p Params) Validate() error {
	if p.LastStreamPosition < 0 {
		return enterrors.NewErrInvalidArgumentf("last stream position must not be negative, got %d", p.LastStreamPosition)
	}
	if p.HashBucketCount < 0 {
		return enterrors.NewErrInvalidArgumentf("hash bucket count must not be negative, got %d", p.HashBucketCount)
	}
	if p.RecordsPerBatch < 0 {
		return enterrors.NewErrInvalidArgumentf("records per batch must not be negative, got %d", p.RecordsPerBatch)
	}
	if p.Repartition != nil {
		if err := p.Repartition.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (p Params) location() string {
	if p.CheckpointLocation != "" {
		return p.CheckpointLocation
	}
	return roundcompletion.Location(p.Source, p.Destination)
}

func (p Params) fingerprint() roundcompletion.Fingerprint {
	return roundcompletion.Fingerprint{HashBucketCount: p.HashBucketCount, SortKeys: p.SortKeys}
}

func (p Params) contentType() delta.ContentType {
	if p.ContentType == "" {
		return delta.ContentTypeMsgpack
	}
	return p.ContentType
}

func (p Params) parallelism() int {
	if p.MaxParallelism > 0 {
		return p.MaxParallelism
	}
	return DefaultMaxParallelism
}
