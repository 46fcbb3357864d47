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

// Package modrcfs3 stores round completion checkpoints in an S3 compatible
// object store.
package modrcfs3

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"path"

	"github.com/cenkalti/backoff/v4"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	enterrors "github.com/weaviate/compactor/entities/errors"
	"github.com/weaviate/compactor/entities/retry"
)

const (
	Name = "s3"

	AWS_ROLE_ARN                = "AWS_ROLE_ARN"
	AWS_WEB_IDENTITY_TOKEN_FILE = "AWS_WEB_IDENTITY_TOKEN_FILE"
	AWS_REGION                  = "AWS_REGION"
	AWS_DEFAULT_REGION          = "AWS_DEFAULT_REGION"
)

type Module struct {
	client  *minio.Client
	config  Config
	logger  logrus.FieldLogger
	backoff func() backoff.BackOff
}

func New(ctx context.Context, config Config, logger logrus.FieldLogger) (*Module, error) {
	region := os.Getenv(AWS_REGION)
	if len(region) == 0 {
		region = os.Getenv(AWS_DEFAULT_REGION)
	}
	creds := credentials.NewEnvAWS()
	if len(os.Getenv(AWS_WEB_IDENTITY_TOKEN_FILE)) > 0 && len(os.Getenv(AWS_ROLE_ARN)) > 0 {
		creds = credentials.NewIAM("")
	}
	client, err := minio.New(config.endpoint(), &minio.Options{
		Creds:  creds,
		Region: region,
		Secure: config.UseSSL,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create client")
	}

	m := &Module{client: client, config: config, logger: logger, backoff: retry.NewBackoff}
	if _, err := m.findBucket(ctx); err != nil {
		return nil, errors.Wrap(err, "init checkpoint storage")
	}
	return m, nil
}

func (m *Module) Name() string {
	return Name
}

func (m *Module) makeObjectName(key string) string {
	return path.Join(m.config.Prefix, key)
}

func (m *Module) findBucket(ctx context.Context) (string, error) {
	bucketName := m.config.bucketName()
	bucketExists, err := m.client.BucketExists(ctx, bucketName)
	if err != nil {
		return "", errors.Wrap(err, "find bucket")
	}

	if !bucketExists {
		return "", errors.Errorf("find bucket: bucket '%s' does not exist", bucketName)
	}

	return bucketName, nil
}

func (m *Module) GetObject(ctx context.Context, key string) ([]byte, error) {
	objectName := m.makeObjectName(key)

	var contents []byte
	err := retry.Do(ctx, m.backoff(), retryable, func() error {
		obj, err := m.client.GetObject(ctx, m.config.bucketName(), objectName, minio.GetObjectOptions{})
		if err != nil {
			return translate(err, objectName)
		}
		defer obj.Close()

		contents, err = io.ReadAll(obj)
		if err != nil {
			return translate(err, objectName)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return contents, nil
}

func (m *Module) PutObject(ctx context.Context, key string, data []byte) error {
	objectName := m.makeObjectName(key)
	opts := minio.PutObjectOptions{ContentType: "application/octet-stream"}

	err := retry.Do(ctx, m.backoff(), retryable, func() error {
		reader := bytes.NewReader(data)
		_, err := m.client.PutObject(ctx, m.config.bucketName(), objectName, reader, reader.Size(), opts)
		if err != nil {
			return translate(err, objectName)
		}
		return nil
	})
	if err != nil {
		return err
	}

	m.logger.WithField("module", m.Name()).
		WithField("action", "put_object").
		WithField("object", objectName).
		Debug("stored checkpoint object")
	return nil
}

func translate(err error, objectName string) error {
	s3Err := minio.ToErrorResponse(err)
	if s3Err.Code == "NoSuchKey" || s3Err.StatusCode == http.StatusNotFound {
		return enterrors.NewErrNotFound(errors.Wrapf(err, "get object '%s'", objectName))
	}
	return errors.Wrapf(err, "object '%s'", objectName)
}

// Missing objects, rejected requests and expired contexts are final.
// Everything else is treated as a transient transport failure.
func retryable(err error) bool {
	if enterrors.IsNotFound(err) || errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	s3Err := minio.ToErrorResponse(errors.Cause(err))
	if s3Err.StatusCode >= 400 && s3Err.StatusCode < 500 {
		return false
	}
	return true
}
