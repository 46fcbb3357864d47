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

// Package modrcfgcs stores round completion checkpoints in Google Cloud
// Storage.
package modrcfgcs

import (
	"context"
	"io"
	"os"
	"path"

	"cloud.google.com/go/storage"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"

	enterrors "github.com/weaviate/compactor/entities/errors"
)

const (
	Name = "gcs"

	GOOGLE_APPLICATION_CREDENTIALS = "GOOGLE_APPLICATION_CREDENTIALS"
	GOOGLE_CLOUD_PROJECT           = "GOOGLE_CLOUD_PROJECT"
	GCLOUD_PROJECT                 = "GCLOUD_PROJECT"
	GCP_PROJECT                    = "GCP_PROJECT"
)

type Config struct {
	Bucket string
	Prefix string
}

type Module struct {
	client    *storage.Client
	config    Config
	projectID string
	logger    logrus.FieldLogger
}

func New(ctx context.Context, config Config, logger logrus.FieldLogger) (*Module, error) {
	if config.Bucket == "" {
		return nil, enterrors.NewErrInvalidArgumentf("gcs checkpoint bucket must be set")
	}

	options := []option.ClientOption{}
	if len(os.Getenv(GOOGLE_APPLICATION_CREDENTIALS)) > 0 {
		scopes := []string{
			"https://www.googleapis.com/auth/devstorage.read_write",
		}
		creds, err := google.FindDefaultCredentials(ctx, scopes...)
		if err != nil {
			return nil, errors.Wrap(err, "find default credentials")
		}
		options = append(options, option.WithCredentials(creds))
	} else {
		options = append(options, option.WithoutAuthentication())
	}
	projectID := os.Getenv(GOOGLE_CLOUD_PROJECT)
	if len(projectID) == 0 {
		projectID = os.Getenv(GCLOUD_PROJECT)
		if len(projectID) == 0 {
			projectID = os.Getenv(GCP_PROJECT)
		}
	}
	client, err := storage.NewClient(ctx, options...)
	if err != nil {
		return nil, errors.Wrap(err, "create client")
	}

	m := &Module{client: client, config: config, projectID: projectID, logger: logger}
	if _, err := m.findBucket(ctx); err != nil {
		return nil, errors.Wrap(err, "init checkpoint storage")
	}
	return m, nil
}

func (m *Module) Name() string {
	return Name
}

func (m *Module) Close() error {
	return m.client.Close()
}

func (m *Module) makeObjectName(key string) string {
	return path.Join(m.config.Prefix, key)
}

func (m *Module) findBucket(ctx context.Context) (*storage.BucketHandle, error) {
	bucket := m.client.Bucket(m.config.Bucket)
	if _, err := bucket.Attrs(ctx); err != nil {
		return nil, errors.Wrapf(err, "find bucket '%s'", m.config.Bucket)
	}
	return bucket, nil
}

func (m *Module) GetObject(ctx context.Context, key string) ([]byte, error) {
	objectName := m.makeObjectName(key)
	reader, err := m.client.Bucket(m.config.Bucket).Object(objectName).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, enterrors.NewErrNotFound(errors.Wrapf(err, "new reader: %v", objectName))
		}
		return nil, errors.Wrapf(err, "new reader: %v", objectName)
	}
	defer reader.Close()

	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.Wrapf(err, "read object: %v", objectName)
	}
	return content, nil
}

// PutObject uploads data. The object only becomes visible when the writer
// is closed successfully, so readers never see partial checkpoints.
func (m *Module) PutObject(ctx context.Context, key string, data []byte) error {
	objectName := m.makeObjectName(key)
	writer := m.client.Bucket(m.config.Bucket).Object(objectName).NewWriter(ctx)
	writer.ContentType = "application/octet-stream"
	writer.Metadata = map[string]string{
		"compactor-object": "round-completion",
	}

	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return errors.Wrapf(err, "write object: %v", objectName)
	}
	if err := writer.Close(); err != nil {
		return errors.Wrapf(err, "close writer for object: %v", objectName)
	}

	m.logger.WithField("module", m.Name()).
		WithField("action", "put_object").
		WithField("object", objectName).
		WithField("project", m.projectID).
		Debug("stored checkpoint object")
	return nil
}
