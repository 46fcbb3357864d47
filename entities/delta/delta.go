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
	"github.com/weaviate/compactor/entities/locator"
)

type Type string

const (
	Upsert Type = "UPSERT"
	Delete Type = "DELETE"
	Append Type = "APPEND"
)

func (t Type) Valid() bool {
	switch t {
	case Upsert, Delete, Append:
		return true
	default:
		return false
	}
}

type ContentType string

const (
	ContentTypeParquet ContentType = "application/parquet"
	ContentTypeCSV     ContentType = "text/csv"
	ContentTypeJSON    ContentType = "application/json"
	ContentTypeMsgpack ContentType = "application/msgpack"
)

// Properties are the optional per-delta settings.
type Properties struct {
	// DeleteColumns name the columns that identify the rows a DELETE delta
	// targets.
	DeleteColumns []string `json:"DELETE_COLUMNS,omitempty" msgpack:"delete_columns,omitempty"`
}

// ManifestEntry references one physical file of a delta.
type ManifestEntry struct {
	URI         string      `json:"uri" msgpack:"uri"`
	RecordCount int64       `json:"recordCount" msgpack:"record_count"`
	ContentType ContentType `json:"contentType" msgpack:"content_type"`
}

type Manifest struct {
	Entries []ManifestEntry `json:"entries" msgpack:"entries"`
}

func (m Manifest) RecordCount() int64 {
	var count int64
	for _, e := range m.Entries {
		count += e.RecordCount
	}
	return count
}

// Delta describes one immutable write batch. The data itself lives behind
// the manifest and is read through the storage collaborator.
type Delta struct {
	Locator    locator.DeltaLocator `json:"deltaLocator" msgpack:"locator"`
	Type       Type                 `json:"type" msgpack:"type"`
	Properties Properties           `json:"properties" msgpack:"properties"`
	Manifest   Manifest             `json:"manifest" msgpack:"manifest"`
}

func (d Delta) StreamPosition() int64 {
	return d.Locator.StreamPosition
}

func (d Delta) Partition() locator.PartitionLocator {
	return d.Locator.Partition
}

func (d Delta) RecordCount() int64 {
	return d.Manifest.RecordCount()
}
