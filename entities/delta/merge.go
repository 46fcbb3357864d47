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
	"github.com/weaviate/compactor/entities/errors"
	"github.com/weaviate/compactor/entities/locator"
)

// Merge combines staged deltas of one partition into a single delta whose
// manifest lists the entries of all inputs in order. The result takes type
// and properties of the first delta.
func Merge(deltas ...Delta) (Delta, error) {
	if len(deltas) == 0 {
		return Delta{}, errors.NewErrInvalidArgumentf("merge requires at least one delta")
	}

	out := Delta{
		Locator:    deltas[0].Locator,
		Type:       deltas[0].Type,
		Properties: deltas[0].Properties,
	}
	for i, d := range deltas {
		if !locator.Equal(d.Partition(), out.Partition()) {
			return Delta{}, errors.NewErrInvalidArgumentf(
				"merge delta %d: partition %s differs from %s", i, d.Partition(), out.Partition())
		}
		if d.Type != out.Type {
			return Delta{}, errors.NewErrInvalidArgumentf(
				"merge delta %d: type %s differs from %s", i, d.Type, out.Type)
		}
		out.Manifest.Entries = append(out.Manifest.Entries, d.Manifest.Entries...)
	}

	return out, nil
}

// ValidateOrder checks that deltas are sorted by strictly increasing stream
// position.
func ValidateOrder(deltas []Delta) error {
	for i := 1; i < len(deltas); i++ {
		prev, curr := deltas[i-1].StreamPosition(), deltas[i].StreamPosition()
		if curr <= prev {
			return errors.NewErrInvalidArgumentf(
				"deltas out of order: stream position %d at index %d follows %d", curr, i, prev)
		}
	}
	return nil
}
