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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/weaviate/compactor/entities/delta"
	enterrors "github.com/weaviate/compactor/entities/errors"
	"github.com/weaviate/compactor/entities/locator"
	"github.com/weaviate/compactor/usecases/repartition"
)

const (
	DefaultConfigFile = "./compactor.yaml"

	BackendFilesystem = "filesystem"
	BackendS3         = "s3"
	BackendGCS        = "gcs"

	DefaultMaxParallelism = 4
)

// Config is the configuration of one compaction job.
type Config struct {
	Source          PartitionConfig      `json:"source" yaml:"source"`
	Destination     PartitionConfig      `json:"destination" yaml:"destination"`
	Storage         Storage              `json:"storage" yaml:"storage"`
	Checkpoint      Checkpoint           `json:"checkpoint" yaml:"checkpoint"`
	HashBucketCount int                  `json:"hash_bucket_count" yaml:"hash_bucket_count"`
	SortKeys        []string             `json:"sort_keys" yaml:"sort_keys"`
	Repartition     *repartition.Request `json:"repartition,omitempty" yaml:"repartition,omitempty"`
	MaxParallelism  int                  `json:"max_parallelism" yaml:"max_parallelism"`
	RecordsPerBatch int64                `json:"records_per_batch" yaml:"records_per_batch"`
	ContentType     delta.ContentType    `json:"content_type" yaml:"content_type"`
	Monitoring      Monitoring           `json:"monitoring" yaml:"monitoring"`
}

// PartitionConfig names a partition of a stream.
type PartitionConfig struct {
	Namespace       string   `json:"namespace" yaml:"namespace"`
	TableName       string   `json:"table_name" yaml:"table_name"`
	TableVersion    string   `json:"table_version" yaml:"table_version"`
	StreamID        string   `json:"stream_id" yaml:"stream_id"`
	StorageType     string   `json:"storage_type" yaml:"storage_type"`
	PartitionValues []string `json:"partition_values" yaml:"partition_values"`
	PartitionID     string   `json:"partition_id" yaml:"partition_id"`
}

func (p PartitionConfig) Locator() locator.PartitionLocator {
	return locator.NewPartitionLocator(
		locator.NewStreamLocator(p.Namespace, p.TableName, p.TableVersion, p.StreamID, p.StorageType),
		p.PartitionValues, p.PartitionID)
}

// Storage configures the local delta repo.
type Storage struct {
	Path string `json:"path" yaml:"path"`
}

type Checkpoint struct {
	Backend string        `json:"backend" yaml:"backend"`
	Path    string        `json:"path" yaml:"path"`
	S3      S3Checkpoint  `json:"s3" yaml:"s3"`
	GCS     GCSCheckpoint `json:"gcs" yaml:"gcs"`
}

type S3Checkpoint struct {
	Endpoint string `json:"endpoint" yaml:"endpoint"`
	Bucket   string `json:"bucket" yaml:"bucket"`
	Prefix   string `json:"prefix" yaml:"prefix"`
	UseSSL   bool   `json:"use_ssl" yaml:"use_ssl"`
}

type GCSCheckpoint struct {
	Bucket string `json:"bucket" yaml:"bucket"`
	Prefix string `json:"prefix" yaml:"prefix"`
}

type Monitoring struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// Defaults returns the configuration used when neither a file nor the
// environment set a value.
func Defaults() Config {
	return Config{
		Checkpoint:      Checkpoint{Backend: BackendFilesystem},
		HashBucketCount: 1,
		MaxParallelism:  DefaultMaxParallelism,
		ContentType:     delta.ContentTypeMsgpack,
	}
}

func (c *Config) Validate() error {
	switch c.Checkpoint.Backend {
	case BackendFilesystem:
		if c.Checkpoint.Path == "" {
			return enterrors.NewErrInvalidArgumentf("checkpoint path must be set for the %s backend", BackendFilesystem)
		}
		if !filepath.IsAbs(c.Checkpoint.Path) {
			return enterrors.NewErrInvalidArgumentf("checkpoint path %q must be absolute", c.Checkpoint.Path)
		}
	case BackendS3:
		if c.Checkpoint.S3.Bucket == "" {
			return enterrors.NewErrInvalidArgumentf("checkpoint bucket must be set for the %s backend", BackendS3)
		}
	case BackendGCS:
		if c.Checkpoint.GCS.Bucket == "" {
			return enterrors.NewErrInvalidArgumentf("checkpoint bucket must be set for the %s backend", BackendGCS)
		}
	default:
		return enterrors.NewErrInvalidArgumentf("unknown checkpoint backend %q", c.Checkpoint.Backend)
	}

	if c.HashBucketCount < 1 {
		return enterrors.NewErrInvalidArgumentf("hash_bucket_count must be at least 1, got %d", c.HashBucketCount)
	}
	if c.MaxParallelism < 1 {
		return enterrors.NewErrInvalidArgumentf("max_parallelism must be at least 1, got %d", c.MaxParallelism)
	}
	if c.RecordsPerBatch < 0 {
		return enterrors.NewErrInvalidArgumentf("records_per_batch must not be negative, got %d", c.RecordsPerBatch)
	}
	if c.Repartition != nil {
		if err := c.Repartition.Validate(); err != nil {
			return errors.Wrap(err, "repartition")
		}
	}
	return nil
}

// LoadConfig reads the config file at fileName, if it exists, and applies
// the environment on top of it. An empty fileName selects
// DefaultConfigFile.
func LoadConfig(fileName string, logger logrus.FieldLogger) (Config, error) {
	config := Defaults()

	if fileName == "" {
		fileName = DefaultConfigFile
	}
	file, err := os.ReadFile(fileName)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return config, errors.Wrapf(err, "read config file %q", fileName)
	}

	if len(file) > 0 {
		logger.WithField("action", "config_load").WithField("config_file_path", fileName).
			Debug("loading config file")
		if err := parseConfigFile(file, fileName, &config); err != nil {
			return config, err
		}
	}

	if err := FromEnv(&config); err != nil {
		return config, errors.Wrap(err, "load config from environment")
	}

	if err := config.Validate(); err != nil {
		return config, errors.Wrap(err, "invalid config")
	}
	return config, nil
}

func parseConfigFile(file []byte, name string, config *Config) error {
	switch ext := filepath.Ext(name); ext {
	case ".json":
		if err := json.Unmarshal(file, config); err != nil {
			return fmt.Errorf("error unmarshalling the json config file: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(file, config); err != nil {
			return fmt.Errorf("error unmarshalling the yaml config file: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config file extension '%s', use .yaml or .json", ext)
	}
	return nil
}
