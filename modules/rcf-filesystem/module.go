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

// Package modrcffs stores round completion checkpoints on the local
// filesystem.
package modrcffs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	enterrors "github.com/weaviate/compactor/entities/errors"
)

const Name = "filesystem"

type Module struct {
	logger logrus.FieldLogger
	root   string
}

// New returns a backend rooted at root, creating the directory if needed.
// root must be absolute.
func New(root string, logger logrus.FieldLogger) (*Module, error) {
	m := &Module{logger: logger}
	if err := m.initCheckpointRoot(root); err != nil {
		return nil, errors.Wrap(err, "init checkpoint storage")
	}
	return m, nil
}

func (m *Module) Name() string {
	return Name
}

func (m *Module) Root() string {
	return m.root
}

func (m *Module) GetObject(ctx context.Context, key string) ([]byte, error) {
	objectPath, err := m.objectPath(key)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrapf(err, "get object '%s'", objectPath)
	}

	contents, err := os.ReadFile(objectPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, enterrors.NewErrNotFound(errors.Wrapf(err, "get object '%s'", objectPath))
	} else if err != nil {
		return nil, errors.Wrapf(err, "get object '%s'", objectPath)
	}

	return contents, nil
}

// PutObject writes data to a temporary file next to the target, syncs it
// and renames it into place.
func (m *Module) PutObject(ctx context.Context, key string, data []byte) error {
	objectPath, err := m.objectPath(key)
	if err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return errors.Wrapf(err, "put object '%s'", objectPath)
	}

	dir := filepath.Dir(objectPath)
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return errors.Wrapf(err, "make dir '%s'", dir)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(objectPath)+".tmp-*")
	if err != nil {
		return errors.Wrapf(err, "create temp file in '%s'", dir)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "write file '%s'", tmpPath)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "sync file '%s'", tmpPath)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "close file '%s'", tmpPath)
	}
	if err := os.Rename(tmpPath, objectPath); err != nil {
		return errors.Wrapf(err, "rename '%s' to '%s'", tmpPath, objectPath)
	}

	m.logger.WithField("module", m.Name()).
		WithField("action", "put_object").
		WithField("path", objectPath).
		Debug("stored checkpoint object")
	return nil
}

func (m *Module) objectPath(key string) (string, error) {
	if key == "" {
		return "", enterrors.NewErrInvalidArgumentf("empty object key")
	}
	objectPath := filepath.Join(m.root, filepath.FromSlash(key))
	rel, err := filepath.Rel(m.root, objectPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", enterrors.NewErrInvalidArgumentf("object key %q escapes the checkpoint root", key)
	}
	return objectPath, nil
}

func (m *Module) initCheckpointRoot(root string) error {
	if root == "" {
		return fmt.Errorf("empty checkpoint path provided")
	}
	root = filepath.Clean(root)
	if !filepath.IsAbs(root) {
		return fmt.Errorf("relative checkpoint path provided")
	}
	if err := m.createCheckpointDir(root); err != nil {
		return errors.Wrap(err, "invalid checkpoint path provided")
	}
	m.root = root

	return nil
}

func (m *Module) createCheckpointDir(root string) error {
	if err := os.MkdirAll(root, os.ModePerm); err != nil {
		m.logger.WithField("module", m.Name()).
			WithField("action", "create_checkpoint_dir").
			WithError(err).
			Errorf("failed creating checkpoint directory %v", root)
		return errors.Wrap(err, "make checkpoint dir")
	}
	return nil
}
