package session

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var sessionsBucket = []byte("sessions")

// BoltBackend keeps sessions in a bbolt file so they survive restarts.
type BoltBackend struct {
	db *bolt.DB
}

// NewBoltBackend opens (or creates) the session database at path.
func NewBoltBackend(path string) (*BoltBackend, error) {
	if path == "" {
		return nil, errors.New("bolt session backend: path must not be empty")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("bolt session backend: create directory: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("bolt session backend: open %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(sessionsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bolt session backend: create bucket: %w", err)
	}

	return &BoltBackend{db: db}, nil
}

// Load returns a live entry.
func (b *BoltBackend) Load(_ context.Context, id string) (Entry, error) {
	var e Entry
	err := b.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(sessionsBucket).Get([]byte(id))
		if raw == nil {
			return ErrNotFound
		}
		var derr error
		e, derr = decodeEntry(raw)
		return derr
	})
	if err != nil {
		return Entry{}, err
	}
	if e.Expired(time.Now()) {
		return Entry{}, ErrNotFound
	}
	return e, nil
}

// Save stores an entry.
func (b *BoltBackend) Save(_ context.Context, id string, e Entry) error {
	raw, err := encodeEntry(e)
	if err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(sessionsBucket).Put([]byte(id), raw)
	})
}

// Delete removes an entry.
func (b *BoltBackend) Delete(_ context.Context, id string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(sessionsBucket).Delete([]byte(id))
	})
}

// Purge removes expired and undecodable entries.
func (b *BoltBackend) Purge(_ context.Context, now time.Time) (int, error) {
	n := 0
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(sessionsBucket)

		var stale [][]byte
		err := bucket.ForEach(func(k, v []byte) error {
			e, err := decodeEntry(v)
			if err != nil || e.Expired(now) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}

		for _, k := range stale {
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}
		n = len(stale)
		return nil
	})
	return n, err
}

// Close closes the database file.
func (b *BoltBackend) Close() error {
	return b.db.Close()
}

func encodeEntry(e Entry) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(e); err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	return buf.Bytes(), nil
}

// decodeEntry copies out of raw, which bolt only keeps valid for the
// lifetime of the transaction.
func decodeEntry(raw []byte) (Entry, error) {
	var e Entry
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&e); err != nil {
		return Entry{}, fmt.Errorf("decode session: %w", err)
	}
	return e, nil
}
