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

// Package rangeindex maps disjoint half-open integer intervals to payloads.
// Inserting an interval that overlaps or touches stored intervals merges
// them into one and combines their payloads, so stored intervals are always
// pairwise disjoint and sorted by start.
package rangeindex

import (
	"fmt"
	"math"

	"github.com/tidwall/btree"

	"github.com/weaviate/compactor/entities/errors"
)

// Range is the half-open interval [Start, End).
type Range struct {
	Start int64 `json:"start" msgpack:"start"`
	End   int64 `json:"end" msgpack:"end"`
}

func (r Range) Valid() bool {
	return r.Start < r.End
}

func (r Range) Contains(point int64) bool {
	return r.Start <= point && point < r.End
}

func (r Range) Overlaps(other Range) bool {
	return r.Start < other.End && other.Start < r.End
}

func (r Range) String() string {
	return fmt.Sprintf("[%d, %d)", r.Start, r.End)
}

// Point is the unit range holding only p.
func Point(p int64) Range {
	return Range{Start: p, End: p + 1}
}

type Entry[T any] struct {
	Range   Range `json:"range" msgpack:"range"`
	Payload T     `json:"payload" msgpack:"payload"`
}

// Index is not safe for concurrent use. It is owned by a single compaction
// pass.
type Index[T any] struct {
	tree    *btree.BTreeG[Entry[T]]
	combine func(a, b T) T
}

// New returns an empty index. combine must be associative; it receives the
// payloads of merged intervals in ascending start order.
func New[T any](combine func(a, b T) T) *Index[T] {
	return &Index[T]{
		tree:    btree.NewBTreeG(byStart[T]),
		combine: combine,
	}
}

// FromEntries rebuilds an index from previously exported entries.
func FromEntries[T any](combine func(a, b T) T, entries []Entry[T]) (*Index[T], error) {
	idx := New(combine)
	for _, e := range entries {
		if err := idx.Insert(e.Range, e.Payload); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

func byStart[T any](a, b Entry[T]) bool {
	return a.Range.Start < b.Range.Start
}

func pivot[T any](start int64) Entry[T] {
	return Entry[T]{Range: Range{Start: start}}
}

func (idx *Index[T]) Len() int {
	return idx.tree.Len()
}

// Insert stores payload under r. Every stored interval that overlaps or is
// adjacent to r is removed and replaced by one interval spanning their
// union, holding the combined payloads.
func (idx *Index[T]) Insert(r Range, payload T) error {
	if !r.Valid() {
		return errors.NewErrInvalidArgumentf("insert empty range %s", r)
	}

	var touched []Entry[T]
	idx.tree.Descend(pivot[T](r.Start), func(e Entry[T]) bool {
		if e.Range.Start < r.Start && e.Range.End >= r.Start {
			touched = append(touched, e)
		}
		return false
	})
	idx.tree.Ascend(pivot[T](r.Start), func(e Entry[T]) bool {
		if e.Range.Start > r.End {
			return false
		}
		touched = append(touched, e)
		return true
	})

	merged := Entry[T]{Range: r}
	placed := false
	first := true
	add := func(p T) {
		if first {
			merged.Payload = p
			first = false
			return
		}
		merged.Payload = idx.combine(merged.Payload, p)
	}
	for _, e := range touched {
		if !placed && e.Range.Start > r.Start {
			add(payload)
			placed = true
		}
		add(e.Payload)
		if e.Range.Start < merged.Range.Start {
			merged.Range.Start = e.Range.Start
		}
		if e.Range.End > merged.Range.End {
			merged.Range.End = e.Range.End
		}
		idx.tree.Delete(e)
	}
	if !placed {
		add(payload)
	}

	idx.tree.Set(merged)
	return nil
}

// Overlapping returns every stored entry intersecting q, in ascending start
// order.
func (idx *Index[T]) Overlapping(q Range) []Entry[T] {
	if !q.Valid() {
		return nil
	}

	var out []Entry[T]
	idx.tree.Descend(pivot[T](q.Start), func(e Entry[T]) bool {
		if e.Range.Start < q.Start && e.Range.End > q.Start {
			out = append(out, e)
		}
		return false
	})
	idx.tree.Ascend(pivot[T](q.Start), func(e Entry[T]) bool {
		if e.Range.Start >= q.End {
			return false
		}
		out = append(out, e)
		return true
	})
	return out
}

// At returns the entry containing point, if any.
func (idx *Index[T]) At(point int64) (Entry[T], bool) {
	if point == math.MaxInt64 {
		return Entry[T]{}, false
	}
	found := idx.Overlapping(Point(point))
	if len(found) == 0 {
		return Entry[T]{}, false
	}
	return found[0], true
}

// After returns the entries that start strictly after pos, ascending.
func (idx *Index[T]) After(pos int64) []Entry[T] {
	if pos == math.MaxInt64 {
		return nil
	}
	var out []Entry[T]
	idx.tree.Ascend(pivot[T](pos+1), func(e Entry[T]) bool {
		out = append(out, e)
		return true
	})
	return out
}

// Remove deletes the entry stored under exactly r.
func (idx *Index[T]) Remove(r Range) bool {
	e, ok := idx.tree.Get(pivot[T](r.Start))
	if !ok || e.Range != r {
		return false
	}
	idx.tree.Delete(e)
	return true
}

// Entries returns all entries in ascending start order.
func (idx *Index[T]) Entries() []Entry[T] {
	out := make([]Entry[T], 0, idx.tree.Len())
	idx.tree.Scan(func(e Entry[T]) bool {
		out = append(out, e)
		return true
	})
	return out
}

// Clone returns an independent copy. Payloads are shared.
func (idx *Index[T]) Clone() *Index[T] {
	return &Index[T]{tree: idx.tree.Copy(), combine: idx.combine}
}
