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

// Package deltas is a bbolt backed delta store implementing the storage
// capabilities the compactor consumes.
package deltas

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"
	bolt "go.etcd.io/bbolt"

	"github.com/weaviate/compactor/entities/delta"
	enterrors "github.com/weaviate/compactor/entities/errors"
	"github.com/weaviate/compactor/entities/locator"
	"github.com/weaviate/compactor/entities/storage"
	"github.com/weaviate/compactor/entities/table"
)

var (
	blobsBucket      = []byte("blobs")
	partitionsBucket = []byte("partitions")
	deltasBucket     = []byte("deltas")
	keyWatermark     = []byte("watermark")
	keyLocator       = []byte("locator")
)

const (
	dbFile     = "deltas.db"
	blobScheme = "bolt://blobs/"
)

/*
Repo is a local storage backend for deltas.

Layout:
  - blobs: staged table contents keyed by a random id, msgpack encoded
  - partitions: one nested bucket per partition digest holding
  - locator: the msgpack encoded partition locator
  - watermark: the last stream position made readable by CommitPartition
  - deltas: committed deltas keyed by their big endian stream position

Stream positions of a partition start at 1 and are assigned by CommitDelta.
*/
type Repo struct {
	homeDir string
	log     logrus.FieldLogger
	db      *bolt.DB
}

// New returns a repo living in homeDir. Call Open before use and Close to
// free its resources.
func New(homeDir string, logger logrus.FieldLogger) *Repo {
	return &Repo{homeDir: homeDir, log: logger}
}

func (r *Repo) Open() error {
	if err := os.MkdirAll(r.homeDir, 0o777); err != nil {
		return fmt.Errorf("create root directory %q: %w", r.homeDir, err)
	}
	filePath := path.Join(r.homeDir, dbFile)
	db, err := bolt.Open(filePath, 0o600, nil)
	if err != nil {
		return fmt.Errorf("open %q: %w", filePath, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{blobsBucket, partitionsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return err
	}
	r.db = db
	return nil
}

func (r *Repo) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// DownloadDelta returns one table per manifest entry of d.
func (r *Repo) DownloadDelta(ctx context.Context, d delta.Delta, opts storage.ReadOptions) ([]*table.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if opts.Mode == storage.Distributed {
		return nil, enterrors.NewErrUnsupportedOperationf("local delta repo cannot materialize %s downloads", opts.Mode)
	}

	tables := make([]*table.Table, 0, len(d.Manifest.Entries))
	err := r.db.View(func(tx *bolt.Tx) error {
		blobs := tx.Bucket(blobsBucket)
		for i, e := range d.Manifest.Entries {
			id, err := blobID(e.URI)
			if err != nil {
				return errors.Wrapf(err, "manifest entry %d", i)
			}
			data := blobs.Get(id)
			if data == nil {
				return enterrors.NewErrNotFound(errors.Errorf("blob %q of delta %s", e.URI, d.Locator))
			}
			var t table.Table
			if err := msgpack.Unmarshal(data, &t); err != nil {
				return errors.Wrapf(err, "decode blob %q", e.URI)
			}
			tables = append(tables, &t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(opts.Columns) == 0 {
		return tables, nil
	}
	for i, t := range tables {
		projected, err := t.Select(opts.Columns...)
		if err != nil {
			return nil, errors.Wrapf(err, "project manifest entry %d", i)
		}
		tables[i] = projected
	}
	return tables, nil
}

// StageDelta stores t as a blob and returns an uncommitted delta of
// destination referencing it. Staged deltas carry stream position 0.
func (r *Repo) StageDelta(ctx context.Context, t *table.Table, destination locator.PartitionLocator,
	typ delta.Type, props delta.Properties, contentType delta.ContentType,
) (delta.Delta, error) {
	if err := ctx.Err(); err != nil {
		return delta.Delta{}, err
	}
	if !typ.Valid() {
		return delta.Delta{}, enterrors.NewErrInvalidArgumentf("invalid delta type %q", typ)
	}
	if contentType != delta.ContentTypeMsgpack {
		return delta.Delta{}, enterrors.NewErrUnsupportedOperationf(
			"local delta repo only writes %s, got %s", delta.ContentTypeMsgpack, contentType)
	}

	data, err := msgpack.Marshal(t)
	if err != nil {
		return delta.Delta{}, errors.Wrap(err, "encode table")
	}
	id := uuid.New().String()
	err = r.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(blobsBucket).Put([]byte(id), data)
	})
	if err != nil {
		return delta.Delta{}, errors.Wrap(err, "store blob")
	}

	return delta.Delta{
		Locator:    locator.NewDeltaLocator(destination, 0),
		Type:       typ,
		Properties: props,
		Manifest: delta.Manifest{Entries: []delta.ManifestEntry{{
			URI:         blobScheme + id,
			RecordCount: int64(t.NumRows()),
			ContentType: contentType,
		}}},
	}, nil
}

// CommitDelta assigns d the next stream position of its partition.
func (r *Repo) CommitDelta(ctx context.Context, d delta.Delta) (delta.Delta, error) {
	if err := ctx.Err(); err != nil {
		return delta.Delta{}, err
	}

	var committed delta.Delta
	err := r.db.Update(func(tx *bolt.Tx) error {
		blobs := tx.Bucket(blobsBucket)
		for _, e := range d.Manifest.Entries {
			id, err := blobID(e.URI)
			if err != nil {
				return err
			}
			if blobs.Get(id) == nil {
				return enterrors.NewErrNotFound(errors.Errorf("blob %q was never staged", e.URI))
			}
		}

		p, err := partitionBucket(tx, d.Partition(), true)
		if err != nil {
			return err
		}
		deltas := p.Bucket(deltasBucket)
		next := int64(1)
		if k, _ := deltas.Cursor().Last(); k != nil {
			next = decodePosition(k) + 1
		}

		committed = d
		committed.Locator = locator.NewDeltaLocator(d.Partition(), next)
		data, err := msgpack.Marshal(committed)
		if err != nil {
			return errors.Wrap(err, "encode delta")
		}
		return deltas.Put(encodePosition(next), data)
	})
	if err != nil {
		return delta.Delta{}, errors.Wrapf(err, "commit delta to %s", d.Partition())
	}

	r.log.WithFields(logrus.Fields{
		"action":          "commit_delta",
		"partition":       d.Partition().Digest().Hex(),
		"stream_position": committed.StreamPosition(),
		"type":            committed.Type,
	}).Debug("committed delta")
	return committed, nil
}

// CommitPartition makes every committed delta of p readable and returns
// the resulting high watermark.
func (r *Repo) CommitPartition(ctx context.Context, p locator.PartitionLocator) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var watermark int64
	err := r.db.Update(func(tx *bolt.Tx) error {
		b, err := partitionBucket(tx, p, true)
		if err != nil {
			return err
		}
		if k, _ := b.Bucket(deltasBucket).Cursor().Last(); k != nil {
			watermark = decodePosition(k)
		}
		return b.Put(keyWatermark, encodePosition(watermark))
	})
	if err != nil {
		return 0, errors.Wrapf(err, "commit partition %s", p)
	}
	return watermark, nil
}

// HighWatermark returns the position recorded by the last CommitPartition
// of p, or 0.
func (r *Repo) HighWatermark(ctx context.Context, p locator.PartitionLocator) (int64, error) {
	var watermark int64
	err := r.db.View(func(tx *bolt.Tx) error {
		b, err := partitionBucket(tx, p, false)
		if err != nil || b == nil {
			return err
		}
		if v := b.Get(keyWatermark); v != nil {
			watermark = decodePosition(v)
		}
		return nil
	})
	return watermark, err
}

// ListDeltas returns the committed deltas of p with first <= position <=
// last in ascending order.
func (r *Repo) ListDeltas(ctx context.Context, p locator.PartitionLocator, first, last int64) ([]delta.Delta, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if first < 0 {
		first = 0
	}

	var out []delta.Delta
	err := r.db.View(func(tx *bolt.Tx) error {
		b, err := partitionBucket(tx, p, false)
		if err != nil || b == nil {
			return err
		}
		c := b.Bucket(deltasBucket).Cursor()
		for k, v := c.Seek(encodePosition(first)); k != nil && decodePosition(k) <= last; k, v = c.Next() {
			var d delta.Delta
			if err := msgpack.Unmarshal(v, &d); err != nil {
				return errors.Wrapf(err, "decode delta at stream position %d", decodePosition(k))
			}
			out = append(out, d)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "list deltas of %s", p)
	}
	return out, nil
}

// Partitions returns the locators of all partitions that ever had a delta
// committed.
func (r *Repo) Partitions(ctx context.Context) ([]locator.PartitionLocator, error) {
	var out []locator.PartitionLocator
	err := r.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(partitionsBucket).ForEachBucket(func(k []byte) error {
			var p locator.PartitionLocator
			data := tx.Bucket(partitionsBucket).Bucket(k).Get(keyLocator)
			if err := msgpack.Unmarshal(data, &p); err != nil {
				return errors.Wrapf(err, "decode partition %x", k)
			}
			out = append(out, p)
			return nil
		})
	})
	return out, err
}

func partitionBucket(tx *bolt.Tx, p locator.PartitionLocator, create bool) (*bolt.Bucket, error) {
	digest := p.Digest()
	parent := tx.Bucket(partitionsBucket)
	if b := parent.Bucket(digest[:]); b != nil || !create {
		return b, nil
	}

	b, err := parent.CreateBucket(digest[:])
	if err != nil {
		return nil, fmt.Errorf("create partition bucket %s: %w", digest, err)
	}
	if _, err := b.CreateBucket(deltasBucket); err != nil {
		return nil, fmt.Errorf("create deltas bucket %s: %w", digest, err)
	}
	data, err := msgpack.Marshal(p)
	if err != nil {
		return nil, errors.Wrap(err, "encode partition locator")
	}
	return b, b.Put(keyLocator, data)
}

func blobID(uri string) ([]byte, error) {
	if !strings.HasPrefix(uri, blobScheme) {
		return nil, enterrors.NewErrInvalidArgumentf("unsupported manifest uri %q", uri)
	}
	return []byte(strings.TrimPrefix(uri, blobScheme)), nil
}

// positions are non-negative, so the big endian encoding sorts like the
// numbers it holds.
func encodePosition(pos int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(pos))
	return buf
}

func decodePosition(key []byte) int64 {
	return int64(binary.BigEndian.Uint64(key))
}

var _ storage.Storage = (*Repo)(nil)
