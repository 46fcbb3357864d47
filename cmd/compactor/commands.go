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

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/weaviate/compactor/adapters/repos/deltas"
	"github.com/weaviate/compactor/entities/locator"
	"github.com/weaviate/compactor/usecases/compaction"
	"github.com/weaviate/compactor/usecases/config"
	"github.com/weaviate/compactor/usecases/monitoring"
	"github.com/weaviate/compactor/usecases/roundcompletion"
)

type inspectCommand struct {
	log      logrus.FieldLogger
	Location string `long:"location" description:"checkpoint key, defaults to the one derived from source and destination"`
	Check    bool   `long:"check" description:"fail when the checkpoint fingerprint differs from the config"`
}

func (c *inspectCommand) Execute(args []string) error {
	cfg, err := loadConfig(c.log)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext(c.log)
	defer cancel()

	backend, err := checkpointBackend(ctx, cfg.Checkpoint, c.log)
	if err != nil {
		return errors.Wrap(err, "init checkpoint backend")
	}
	defer closeBackend(backend, c.log)
	location := c.Location
	if location == "" {
		location = roundcompletion.Location(cfg.Source.Locator(), cfg.Destination.Locator())
	}

	tracker := roundcompletion.NewTracker(backend, c.log, monitoring.GetMetrics())
	info, err := tracker.Load(ctx, location)
	if err != nil {
		return err
	}
	if info == nil {
		return errors.Errorf("no checkpoint at %q", location)
	}
	if c.Check {
		if err := roundcompletion.Check(*info, fingerprint(cfg)); err != nil {
			return err
		}
	}
	return printJSON(info)
}

type digestCommand struct {
	Namespace       string   `long:"namespace" description:"namespace of the stream"`
	TableName       string   `long:"table" description:"table name"`
	TableVersion    string   `long:"table-version" description:"table version"`
	StreamID        string   `long:"stream" description:"stream id"`
	StorageType     string   `long:"storage-type" description:"storage type"`
	PartitionValues []string `long:"partition-value" description:"partition value, repeat for several"`
	PartitionID     string   `long:"partition-id" description:"partition id"`
	StreamPosition  int64    `long:"position" default:"-1" description:"stream position of a delta"`
}

func (c *digestCommand) Execute(args []string) error {
	stream := locator.NewStreamLocator(c.Namespace, c.TableName, c.TableVersion, c.StreamID, c.StorageType)
	partition := locator.NewPartitionLocator(stream, c.PartitionValues, c.PartitionID)

	fmt.Printf("stream     %s\n", stream.Digest())
	fmt.Printf("partition  %s\n", partition.Digest())
	if c.StreamPosition >= 0 {
		fmt.Printf("delta      %s\n", locator.NewDeltaLocator(partition, c.StreamPosition).Digest())
	}
	return nil
}

type compactCommand struct {
	log  logrus.FieldLogger
	Last int64 `long:"last" required:"true" description:"highest source stream position to compact"`
}

func (c *compactCommand) Execute(args []string) error {
	cfg, err := loadConfig(c.log)
	if err != nil {
		return err
	}
	if cfg.Storage.Path == "" {
		return errors.New("storage path must be set to compact")
	}
	ctx, cancel := signalContext(c.log)
	defer cancel()

	backend, err := checkpointBackend(ctx, cfg.Checkpoint, c.log)
	if err != nil {
		return errors.Wrap(err, "init checkpoint backend")
	}
	defer closeBackend(backend, c.log)
	repo := deltas.New(cfg.Storage.Path, c.log)
	if err := repo.Open(); err != nil {
		return errors.Wrap(err, "open delta repo")
	}
	defer repo.Close()

	metrics := monitoring.GetMetrics()
	session := compaction.NewSession(repo, roundcompletion.NewTracker(backend, c.log, metrics), nil, c.log, metrics)
	info, err := session.Compact(ctx, compaction.Params{
		Source:             cfg.Source.Locator(),
		Destination:        cfg.Destination.Locator(),
		LastStreamPosition: c.Last,
		HashBucketCount:    cfg.HashBucketCount,
		SortKeys:           cfg.SortKeys,
		Repartition:        cfg.Repartition,
		RecordsPerBatch:    cfg.RecordsPerBatch,
		ContentType:        cfg.ContentType,
		MaxParallelism:     cfg.MaxParallelism,
	})
	if err != nil {
		return err
	}
	if info == nil {
		c.log.WithField("action", "compact").Info("source has no deltas yet")
		return nil
	}
	return printJSON(info)
}

func fingerprint(cfg config.Config) roundcompletion.Fingerprint {
	return roundcompletion.Fingerprint{HashBucketCount: cfg.HashBucketCount, SortKeys: cfg.SortKeys}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
