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

package config

import (
	"os"

	entcfg "github.com/weaviate/compactor/entities/config"
)

// FromEnv overrides config with the values set in the environment.
func FromEnv(config *Config) error {
	if v := os.Getenv("COMPACTOR_CHECKPOINT_BACKEND"); v != "" {
		config.Checkpoint.Backend = v
	}

	if v := os.Getenv("COMPACTOR_CHECKPOINT_PATH"); v != "" {
		config.Checkpoint.Path = v
	}

	if v := os.Getenv("COMPACTOR_S3_ENDPOINT"); v != "" {
		config.Checkpoint.S3.Endpoint = v
	}

	if v := os.Getenv("COMPACTOR_S3_BUCKET"); v != "" {
		config.Checkpoint.S3.Bucket = v
	}

	if v := os.Getenv("COMPACTOR_S3_USE_SSL"); v != "" {
		config.Checkpoint.S3.UseSSL = entcfg.Enabled(v)
	}

	if v := os.Getenv("COMPACTOR_GCS_BUCKET"); v != "" {
		config.Checkpoint.GCS.Bucket = v
	}

	if v := os.Getenv("COMPACTOR_STORAGE_PATH"); v != "" {
		config.Storage.Path = v
	}

	if v, ok, err := entcfg.LookupInt("COMPACTOR_HASH_BUCKET_COUNT"); err != nil {
		return err
	} else if ok {
		config.HashBucketCount = v
	}

	if v, ok, err := entcfg.LookupInt("COMPACTOR_MAX_PARALLELISM"); err != nil {
		return err
	} else if ok {
		config.MaxParallelism = v
	}

	if v := os.Getenv("PROMETHEUS_MONITORING_ENABLED"); v != "" {
		config.Monitoring.Enabled = entcfg.Enabled(v)
	}

	return nil
}
