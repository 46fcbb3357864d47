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

package delta

import (
	"github.com/google/uuid"
)

// Annotation records where a manifest entry of an annotated delta came from.
type Annotation struct {
	StreamPosition int64 `json:"streamPosition"`
	Type           Type  `json:"type"`
	EntryIndex     int   `json:"entryIndex"`
}

// Annotated is a delta decorated with the origin of each manifest entry. It
// belongs to the compaction run identified by RunID and must not outlive it.
type Annotated struct {
	Delta
	Annotations []Annotation `json:"annotations"`
	RunID       uuid.UUID    `json:"runId"`
}

func Annotate(d Delta, runID uuid.UUID) Annotated {
	annotations := make([]Annotation, len(d.Manifest.Entries))
	for i := range d.Manifest.Entries {
		annotations[i] = Annotation{
			StreamPosition: d.StreamPosition(),
			Type:           d.Type,
			EntryIndex:     i,
		}
	}
	return Annotated{Delta: d, Annotations: annotations, RunID: runID}
}

// FirstStreamPosition is the lowest stream position covered by a.
func (a Annotated) FirstStreamPosition() int64 {
	if len(a.Annotations) == 0 {
		return a.StreamPosition()
	}
	return a.Annotations[0].StreamPosition
}

// LastStreamPosition is the highest stream position covered by a.
func (a Annotated) LastStreamPosition() int64 {
	if len(a.Annotations) == 0 {
		return a.StreamPosition()
	}
	return a.Annotations[len(a.Annotations)-1].StreamPosition
}

// EntryPosition is the stream position manifest entry i came from.
func (a Annotated) EntryPosition(i int) int64 {
	if i >= 0 && i < len(a.Annotations) {
		return a.Annotations[i].StreamPosition
	}
	return a.StreamPosition()
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Rebatch coalesces consecutive annotated deltas of the same type until
// every batch holds at least minRecords records. Deltas of different types
// are never combined, nor are deletes naming different delete columns. The
// input order is preserved, so delete ordering survives rebatching. The
// coalesced batch keeps the locator of its last delta.
func Rebatch(in []Annotated, minRecords int64) []Annotated {
	if minRecords <= 0 || len(in) == 0 {
		return in
	}

	var out []Annotated
	var curr *Annotated
	flush := func() {
		if curr != nil {
			out = append(out, *curr)
			curr = nil
		}
	}

	for _, a := range in {
		if curr != nil && (curr.Type != a.Type || curr.RecordCount() >= minRecords ||
			!sameColumns(curr.Properties.DeleteColumns, a.Properties.DeleteColumns)) {
			flush()
		}
		if curr == nil {
			c := a
			c.Annotations = append([]Annotation(nil), a.Annotations...)
			c.Manifest.Entries = append([]ManifestEntry(nil), a.Manifest.Entries...)
			curr = &c
			continue
		}
		offset := len(curr.Manifest.Entries)
		curr.Manifest.Entries = append(curr.Manifest.Entries, a.Manifest.Entries...)
		for _, ann := range a.Annotations {
			ann.EntryIndex += offset
			curr.Annotations = append(curr.Annotations, ann)
		}
		curr.Locator = a.Locator
	}
	flush()

	return out
}
