package store

import (
	"bytes"
	"context"
	"encoding/binary"
	"time"

	"go.etcd.io/bbolt"
)

// BoltKV is a [ConditionalStore] backed by the "kv" bucket of a bbolt
// database. Each value is prefixed with an 8-byte big-endian expiry in unix
// nanoseconds, zero meaning no expiry. Expired entries read as absent and
// are overwritten by the next write.
//
// BoltKV does not own the database; Close is a no-op.
type BoltKV struct {
	db  *bbolt.DB
	now func() time.Time
}

var (
	_ ConditionalStore = (*BoltKV)(nil)
	_ ExpiringStore    = (*BoltKV)(nil)
)

// NewBoltKV returns a key-value store over db, which must have been opened
// with [OpenBolt].
func NewBoltKV(db *bbolt.DB) *BoltKV {
	return &BoltKV{db: db, now: time.Now}
}

func (s *BoltKV) Get(_ context.Context, key string) (string, error) {
	var value string
	err := s.db.View(func(tx *bbolt.Tx) error {
		v, ok := s.live(tx.Bucket(bucketKV).Get([]byte(key)))
		if !ok {
			return ErrKeyNotFound
		}
		value = v
		return nil
	})
	return value, err
}

func (s *BoltKV) Put(_ context.Context, key, value string, ttl time.Duration) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketKV).Put([]byte(key), s.encode(value, ttl))
	})
}

func (s *BoltKV) Delete(_ context.Context, key string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketKV).Delete([]byte(key))
	})
}

// CompareAndSwap runs inside a single bbolt write transaction, which bbolt
// serializes, so the check and the write are atomic.
func (s *BoltKV) CompareAndSwap(_ context.Context, key string, old *string, value string) (bool, error) {
	swapped := false
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketKV)
		current, exists := s.live(b.Get([]byte(key)))

		switch {
		case old == nil && exists:
			return nil
		case old != nil && (!exists || current != *old):
			return nil
		}

		swapped = true
		return b.Put([]byte(key), s.encode(value, 0))
	})
	return swapped && err == nil, err
}

// PurgeExpired deletes every expired entry and returns how many were
// removed.
func (s *BoltKV) PurgeExpired(_ context.Context) (int64, error) {
	var removed int64
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketKV)

		var expired [][]byte
		err := b.ForEach(func(k, v []byte) error {
			if _, ok := s.live(v); !ok {
				expired = append(expired, bytes.Clone(k))
			}
			return nil
		})
		if err != nil {
			return err
		}

		for _, k := range expired {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = int64(len(expired))
		return nil
	})
	return removed, err
}

func (s *BoltKV) Close() error { return nil }

func (s *BoltKV) encode(value string, ttl time.Duration) []byte {
	var expiry int64
	if ttl > 0 {
		expiry = s.now().Add(ttl).UnixNano()
	}
	buf := make([]byte, 8+len(value))
	binary.BigEndian.PutUint64(buf, uint64(expiry))
	copy(buf[8:], value)
	return buf
}

// live decodes a stored entry and reports whether it exists and has not
// expired.
func (s *BoltKV) live(raw []byte) (string, bool) {
	if len(raw) < 8 {
		return "", false
	}
	expiry := int64(binary.BigEndian.Uint64(raw[:8]))
	if expiry != 0 && s.now().UnixNano() >= expiry {
		return "", false
	}
	return string(raw[8:]), true
}
