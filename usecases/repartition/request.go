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

package repartition

import (
	"fmt"

	enterrors "github.com/weaviate/compactor/entities/errors"
)

type Type string

const (
	Range Type = "range"
	Hash  Type = "hash"
)

// Request describes how a compacted table is split.
//
// For Range, Ranges holds the ascending upper bounds b0..b(k-1) of the
// buckets (-inf, b0], (b0, b1], ..., (b(k-1), +inf). For Hash, rows go to
// one of Buckets buckets by the hash of their Column value.
type Request struct {
	Type    Type    `json:"type" yaml:"type"`
	Column  string  `json:"column" yaml:"column"`
	Ranges  []int64 `json:"ranges,omitempty" yaml:"ranges,omitempty"`
	Buckets int     `json:"buckets,omitempty" yaml:"buckets,omitempty"`
}

func (r Request) Validate() error {
	if r.Column == "" {
		return enterrors.NewErrInvalidArgumentf("repartition column must be set")
	}

	switch r.Type {
	case Range:
		if len(r.Ranges) == 0 {
			return enterrors.NewErrInvalidArgumentf("range repartitioning of %q needs at least one boundary", r.Column)
		}
		for i := 1; i < len(r.Ranges); i++ {
			if r.Ranges[i] <= r.Ranges[i-1] {
				return enterrors.NewErrInvalidArgumentf(
					"range boundaries must be strictly ascending, got %d after %d", r.Ranges[i], r.Ranges[i-1])
			}
		}
	case Hash:
		if r.Buckets < 1 {
			return enterrors.NewErrInvalidArgumentf("hash repartitioning needs at least one bucket, got %d", r.Buckets)
		}
	default:
		return enterrors.NewErrUnsupportedOperationf("repartition type %q", r.Type)
	}
	return nil
}

// NumBuckets is the number of buckets r distributes rows into, including
// the empty ones.
func (r Request) NumBuckets() int {
	if r.Type == Range {
		return len(r.Ranges) + 1
	}
	return r.Buckets
}

// Describe returns a human readable name of bucket i.
func (r Request) Describe(i int) string {
	if r.Type != Range {
		return fmt.Sprintf("hash %d/%d", i, r.Buckets)
	}
	switch {
	case len(r.Ranges) == 0:
		return "(-inf, +inf)"
	case i == 0:
		return fmt.Sprintf("(-inf, %d]", r.Ranges[0])
	case i == len(r.Ranges):
		return fmt.Sprintf("(%d, +inf)", r.Ranges[i-1])
	default:
		return fmt.Sprintf("(%d, %d]", r.Ranges[i-1], r.Ranges[i])
	}
}
