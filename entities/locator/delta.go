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
	"strconv"
)

// DeltaLocator identifies one delta by its partition and stream position.
// Stream positions are strictly increasing within a partition.
type DeltaLocator struct {
	Partition      PartitionLocator `json:"partitionLocator"`
	StreamPosition int64            `json:"streamPosition"`
}

func NewDeltaLocator(partition PartitionLocator, streamPosition int64) DeltaLocator {
	return DeltaLocator{Partition: partition, StreamPosition: streamPosition}
}

func (d DeltaLocator) Canonical() []byte {
	return []byte(d.Partition.Digest().Hex() + "|" + strconv.FormatInt(d.StreamPosition, 10))
}

func (d DeltaLocator) Digest() Digest {
	return digestOf(d.Canonical())
}

func (d DeltaLocator) String() string {
	return fmt.Sprintf("%s@%d", d.Partition, d.StreamPosition)
}
