package store

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

// storedMeta is the gob-encoded value of the object_meta bucket.
type storedMeta struct {
	Size        int64
	Uploaded    time.Time
	ContentType string
}

// BoltBlobs is a [BlobBackend] that keeps blob bytes in the "objects" bucket
// and their metadata in "object_meta". bbolt iterates keys in byte order,
// which gives prefix listings their ascending order.
//
// BoltBlobs does not own the database; Close is a no-op.
type BoltBlobs struct {
	db  *bbolt.DB
	now func() time.Time
}

var _ BlobBackend = (*BoltBlobs)(nil)

// NewBoltBlobs returns a blob backend over db, which must have been opened
// with [OpenBolt].
func NewBoltBlobs(db *bbolt.DB) *BoltBlobs {
	return &BoltBlobs{db: db, now: time.Now}
}

func (s *BoltBlobs) Get(_ context.Context, key string) ([]byte, ObjectMeta, error) {
	var (
		data []byte
		meta ObjectMeta
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketObjects).Get([]byte(key))
		if v == nil {
			return ErrObjectNotFound
		}
		data = bytes.Clone(v)

		m, err := readMeta(tx, key)
		if err != nil {
			return err
		}
		meta = m
		return nil
	})
	return data, meta, err
}

func (s *BoltBlobs) Head(_ context.Context, key string) (ObjectMeta, error) {
	var meta ObjectMeta
	err := s.db.View(func(tx *bbolt.Tx) error {
		m, err := readMeta(tx, key)
		if err != nil {
			return err
		}
		meta = m
		return nil
	})
	return meta, err
}

func (s *BoltBlobs) Put(_ context.Context, key string, data []byte, contentType string) error {
	encoded, err := encodeGob(storedMeta{
		Size:        int64(len(data)),
		Uploaded:    s.now().UTC(),
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("bolt blobs: encode meta: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketObjects).Put([]byte(key), data); err != nil {
			return fmt.Errorf("bolt blobs: put object: %w", err)
		}
		if err := tx.Bucket(bucketObjectMeta).Put([]byte(key), encoded); err != nil {
			return fmt.Errorf("bolt blobs: put meta: %w", err)
		}
		return nil
	})
}

func (s *BoltBlobs) Delete(_ context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		objects, meta := tx.Bucket(bucketObjects), tx.Bucket(bucketObjectMeta)
		for _, k := range keys {
			if err := objects.Delete([]byte(k)); err != nil {
				return err
			}
			if err := meta.Delete([]byte(k)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BoltBlobs) List(_ context.Context, opts ListOptions) (ListResult, error) {
	if opts.Limit <= 0 {
		opts.Limit = MaxListLimit
	}
	after, err := decodeCursor(opts.Prefix, opts.Cursor)
	if err != nil {
		return ListResult{}, err
	}

	var res ListResult
	prefix := []byte(opts.Prefix)

	err = s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketObjectMeta).Cursor()

		var k, v []byte
		if after == "" {
			k, v = c.Seek(prefix)
		} else {
			k, v = c.Seek([]byte(after))
			if k != nil && string(k) == after {
				k, v = c.Next()
			}
		}

		for ; k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			if len(res.Objects) == opts.Limit {
				res.Truncated = true
				res.Cursor = encodeCursor(res.Objects[len(res.Objects)-1].Key)
				return nil
			}

			var m storedMeta
			if err := decodeGob(v, &m); err != nil {
				return fmt.Errorf("bolt blobs: decode meta %q: %w", k, err)
			}
			res.Objects = append(res.Objects, ObjectMeta{
				Key:         string(k),
				Size:        m.Size,
				Uploaded:    m.Uploaded,
				ContentType: m.ContentType,
			})
		}
		return nil
	})
	if err != nil {
		return ListResult{}, err
	}
	return res, nil
}

func (s *BoltBlobs) Close() error { return nil }

func readMeta(tx *bbolt.Tx, key string) (ObjectMeta, error) {
	v := tx.Bucket(bucketObjectMeta).Get([]byte(key))
	if v == nil {
		return ObjectMeta{}, ErrObjectNotFound
	}
	var m storedMeta
	if err := decodeGob(v, &m); err != nil {
		return ObjectMeta{}, fmt.Errorf("bolt blobs: decode meta %q: %w", key, err)
	}
	return ObjectMeta{Key: key, Size: m.Size, Uploaded: m.Uploaded, ContentType: m.ContentType}, nil
}
