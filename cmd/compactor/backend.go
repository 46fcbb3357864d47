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
	"context"
	"io"

	"github.com/sirupsen/logrus"

	enterrors "github.com/weaviate/compactor/entities/errors"
	modrcffs "github.com/weaviate/compactor/modules/rcf-filesystem"
	modrcfgcs "github.com/weaviate/compactor/modules/rcf-gcs"
	modrcfs3 "github.com/weaviate/compactor/modules/rcf-s3"
	"github.com/weaviate/compactor/usecases/config"
	"github.com/weaviate/compactor/usecases/roundcompletion"
)

func checkpointBackend(ctx context.Context, cfg config.Checkpoint,
	log logrus.FieldLogger,
) (roundcompletion.Backend, error) {
	switch cfg.Backend {
	case config.BackendFilesystem:
		return modrcffs.New(cfg.Path, log)
	case config.BackendS3:
		return modrcfs3.New(ctx, modrcfs3.Config{
			Endpoint: cfg.S3.Endpoint,
			Bucket:   cfg.S3.Bucket,
			Prefix:   cfg.S3.Prefix,
			UseSSL:   cfg.S3.UseSSL,
		}, log)
	case config.BackendGCS:
		return modrcfgcs.New(ctx, modrcfgcs.Config{
			Bucket: cfg.GCS.Bucket,
			Prefix: cfg.GCS.Prefix,
		}, log)
	default:
		return nil, enterrors.NewErrInvalidArgumentf("unknown checkpoint backend %q", cfg.Backend)
	}
}

func closeBackend(backend roundcompletion.Backend, log logrus.FieldLogger) {
	closer, ok := backend.(io.Closer)
	if !ok {
		return
	}
	if err := closer.Close(); err != nil {
		log.WithField("action", "close_checkpoint_backend").WithError(err).
			Warn("failed to close checkpoint backend")
	}
}
