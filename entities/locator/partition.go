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

package locator

import (
	"fmt"
	"strings"
)

// PartitionLocator identifies a partition of a stream by its partition
// values. PartitionID is optional and distinguishes staged revisions of the
// same partition.
type PartitionLocator struct {
	Stream          StreamLocator `json:"streamLocator"`
	PartitionValues []string      `json:"partitionValues,omitempty"`
	PartitionID     string        `json:"partitionId,omitempty"`
}

func NewPartitionLocator(stream StreamLocator, values []string, partitionID string) PartitionLocator {
	var copied []string
	if len(values) > 0 {
		copied = make([]string, len(values))
		copy(copied, values)
	}
	return PartitionLocator{Stream: stream, PartitionValues: copied, PartitionID: partitionID}
}

func (p PartitionLocator) values() interface{} {
	if len(p.PartitionValues) == 0 {
		return nil
	}
	return p.PartitionValues
}

// Canonical joins the stream digest with the canonical partition values and
// partition id.
func (p PartitionLocator) Canonical() []byte {
	return []byte(fmt.Sprintf("%s|%s|%s",
		p.Stream.Digest().Hex(), mustMarshal(p.values()), mustMarshal(nullable(p.PartitionID))))
}

func (p PartitionLocator) Digest() Digest {
	return digestOf(p.Canonical())
}

// WithPartitionID returns a copy of p carrying the given id.
func (p PartitionLocator) WithPartitionID(id string) PartitionLocator {
	return NewPartitionLocator(p.Stream, p.PartitionValues, id)
}

func (p PartitionLocator) String() string {
	return p.Stream.String() + "[" + strings.Join(p.PartitionValues, ",") + "]"
}
