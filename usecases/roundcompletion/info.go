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

// Package roundcompletion persists the checkpoint written at the end of
// every compaction round and decides where the next round resumes.
package roundcompletion

import (
	"fmt"

	"github.com/google/uuid"

	enterrors "github.com/weaviate/compactor/entities/errors"
	"github.com/weaviate/compactor/entities/locator"
)

// Info is the checkpoint of one completed compaction round.
type Info struct {
	CompactedDeltaLocator locator.DeltaLocator `json:"compacted_delta_locator"`
	HighWatermark         int64                `json:"high_watermark_stream_position"`
	HashBucketCount       int                  `json:"hash_bucket_count"`
	SortKeys              []string             `json:"sort_keys"`
	RunID                 uuid.UUID            `json:"compaction_run_id"`
	// DeleteIndexKey names the object holding deletes not yet applied to
	// any upsert. Empty when there are none.
	DeleteIndexKey string `json:"delete_index_key,omitempty"`
}

func (i Info) Fingerprint() Fingerprint {
	return Fingerprint{HashBucketCount: i.HashBucketCount, SortKeys: i.SortKeys}
}

// Fingerprint is the part of the job configuration that must not change
// between incremental rounds.
type Fingerprint struct {
	HashBucketCount int
	SortKeys        []string
}

func (f Fingerprint) Equal(other Fingerprint) bool {
	if f.HashBucketCount != other.HashBucketCount || len(f.SortKeys) != len(other.SortKeys) {
		return false
	}
	for i := range f.SortKeys {
		if f.SortKeys[i] != other.SortKeys[i] {
			return false
		}
	}
	return true
}

// Check returns an ErrConfigurationDrift when info was written under
// another fingerprint than current.
func Check(info Info, current Fingerprint) error {
	stored := info.Fingerprint()
	if stored.Equal(current) {
		return nil
	}
	return enterrors.NewErrConfigurationDriftf(
		"checkpoint was written with hash_bucket_count=%d sort_keys=%v, current run uses hash_bucket_count=%d sort_keys=%v",
		stored.HashBucketCount, stored.SortKeys, current.HashBucketCount, current.SortKeys)
}

// Location derives the checkpoint key of compacting source into
// destination.
func Location(source, destination locator.PartitionLocator) string {
	return fmt.Sprintf("%s/%s.json", source.Digest().Hex(), destination.Digest().Hex())
}

func deletesKey(location string, runID uuid.UUID) string {
	return fmt.Sprintf("%s.%s.deletes", location, runID)
}
