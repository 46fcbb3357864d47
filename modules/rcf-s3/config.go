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

package modrcfs3

const (
	DEFAULT_ENDPOINT = "s3.amazonaws.com"
	DEFAULT_BUCKET   = "compactor-checkpoints"
)

type Config struct {
	Endpoint string
	Bucket   string
	// Prefix is prepended to every object key.
	Prefix string
	UseSSL bool
}

func (c Config) endpoint() string {
	if len(c.Endpoint) > 0 {
		return c.Endpoint
	}
	return DEFAULT_ENDPOINT
}

func (c Config) bucketName() string {
	if len(c.Bucket) > 0 {
		return c.Bucket
	}
	return DEFAULT_BUCKET
}
