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
	"sort"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/spaolacci/murmur3"

	enterrors "github.com/weaviate/compactor/entities/errors"
	"github.com/weaviate/compactor/entities/table"
)

// Bucket is one non-empty output of a split.
type Bucket struct {
	Index int
	Table *table.Table
}

// split is replaced in tests to exercise the row count check.
var split = Split

// Split assigns every row of tables to exactly one bucket of req and
// returns the non-empty buckets in bucket order. The split column is
// checked on every table before any row is read.
func Split(tables []*table.Table, req Request) ([]Bucket, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := checkColumn(tables, req.Column); err != nil {
		return nil, err
	}

	rows := make([][][]int, len(tables))
	input := 0
	for i, t := range tables {
		assigned, err := assign(t, req)
		if err != nil {
			return nil, errors.Wrapf(err, "table %d", i)
		}
		rows[i] = assigned
		input += t.NumRows()
	}

	var out []Bucket
	output := 0
	for b := 0; b < req.NumBuckets(); b++ {
		var parts []*table.Table
		for i, t := range tables {
			if len(rows[i][b]) > 0 {
				parts = append(parts, t.Take(rows[i][b]))
			}
		}
		if len(parts) == 0 {
			continue
		}
		merged, err := table.Concat(parts...)
		if err != nil {
			return nil, errors.Wrapf(err, "bucket %s", req.Describe(b))
		}
		output += merged.NumRows()
		out = append(out, Bucket{Index: b, Table: merged})
	}

	if output != input {
		return nil, enterrors.NewErrRowCountMismatch(input, output)
	}
	return out, nil
}

func checkColumn(tables []*table.Table, column string) error {
	var result *multierror.Error
	for i, t := range tables {
		if len(t.Missing(column)) > 0 {
			result = multierror.Append(result, errors.Wrapf(enterrors.NewErrColumnNotFound(column), "table %d", i))
		}
	}
	return result.ErrorOrNil()
}

// assign returns the row numbers of t per bucket.
func assign(t *table.Table, req Request) ([][]int, error) {
	c, _ := t.Column(req.Column)
	buckets := make([][]int, req.NumBuckets())

	for r := 0; r < t.NumRows(); r++ {
		var b int
		switch req.Type {
		case Range:
			v, err := c.Int64At(r)
			if err != nil {
				return nil, enterrors.NewErrInvalidArgument(err)
			}
			b = rangeBucket(req.Ranges, v)
		case Hash:
			b = hashBucket(c, r, req.Buckets)
		}
		buckets[b] = append(buckets[b], r)
	}
	return buckets, nil
}

// rangeBucket returns the first bucket whose inclusive upper bound is not
// below v.
func rangeBucket(bounds []int64, v int64) int {
	return sort.Search(len(bounds), func(i int) bool {
		return v <= bounds[i]
	})
}

func hashBucket(c *table.Column, row, buckets int) int {
	return int(murmur3.Sum64([]byte(c.Key(row))) % uint64(buckets))
}
