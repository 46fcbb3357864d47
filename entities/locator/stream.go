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

// StreamLocator identifies one stream of a table version. All fields are
// case-sensitive.
type StreamLocator struct {
	Namespace    string `json:"namespace,omitempty"`
	TableName    string `json:"tableName,omitempty"`
	TableVersion string `json:"tableVersion,omitempty"`
	StreamID     string `json:"streamId,omitempty"`
	StorageType  string `json:"storageType,omitempty"`
}

func NewStreamLocator(namespace, tableName, tableVersion, streamID, storageType string) StreamLocator {
	return StreamLocator{
		Namespace:    namespace,
		TableName:    tableName,
		TableVersion: tableVersion,
		StreamID:     streamID,
		StorageType:  storageType,
	}
}

func (s StreamLocator) fields() map[string]interface{} {
	return map[string]interface{}{
		"namespace":    nullable(s.Namespace),
		"tableName":    nullable(s.TableName),
		"tableVersion": nullable(s.TableVersion),
		"streamId":     nullable(s.StreamID),
		"storageType":  nullable(s.StorageType),
	}
}

// Canonical is the sorted-key JSON array holding the stream fields.
func (s StreamLocator) Canonical() []byte {
	return mustMarshal([]interface{}{s.fields()})
}

func (s StreamLocator) Digest() Digest {
	return digestOf(s.Canonical())
}

func (s StreamLocator) String() string {
	return s.Namespace + "/" + s.TableName + "/" + s.TableVersion + "/" + s.StreamID
}
