package storage

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	captureBucket = "captures"
	// entries hold the capture time followed by the expiry, both big-endian unix seconds.
	entryBytes = 16
)

// boltStore implements a Store backed by BoltDB.
type boltStore struct {
	db              *bolt.DB
	cleanupMu       sync.Mutex
	lastCleanup     atomic.Int64
	captureTTL      time.Duration
	cleanupInterval time.Duration
	now             func() time.Time
}

// openBolt initializes a BoltDB-backed Store.
func openBolt(path string, opts Options) (Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(captureBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init bucket: %w", err)
	}

	store := &boltStore{
		db:              db,
		captureTTL:      opts.CaptureTTL,
		cleanupInterval: opts.CleanupInterval,
		now:             time.Now,
	}
	store.lastCleanup.Store(store.now().Unix())
	return store, nil
}

// Close closes the BoltDB store.
func (b *boltStore) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// RecentlyCaptured reports whether url was marked within the capture TTL.
// Expired entries found on the way are deleted.
func (b *boltStore) RecentlyCaptured(url string) (bool, error) {
	if b == nil || b.db == nil {
		return false, nil
	}

	now := b.now()
	if err := b.maybeCleanupExpired(now); err != nil {
		return false, err
	}

	var recent bool
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(captureBucket))
		if bucket == nil {
			return fmt.Errorf("capture bucket missing")
		}

		key := urlKey(url)
		value := bucket.Get(key)
		if value == nil {
			return nil
		}
		e, ok := decodeEntry(value)
		if !ok || !e.expiresAt.After(now) {
			return bucket.Delete(key)
		}
		recent = true
		return nil
	})
	return recent, err
}

// CapturedAt returns when url was last marked, if the entry is still live.
func (b *boltStore) CapturedAt(url string) (time.Time, bool, error) {
	if b == nil || b.db == nil {
		return time.Time{}, false, nil
	}
	var (
		at    time.Time
		found bool
	)
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(captureBucket))
		if bucket == nil {
			return fmt.Errorf("capture bucket missing")
		}
		e, ok := decodeEntry(bucket.Get(urlKey(url)))
		if ok && e.expiresAt.After(b.now()) {
			at, found = e.capturedAt, true
		}
		return nil
	})
	return at, found, err
}

// MarkCaptured records url as captured now.
func (b *boltStore) MarkCaptured(url string) error {
	if b == nil || b.db == nil {
		return nil
	}

	now := b.now()
	if err := b.maybeCleanupExpired(now); err != nil {
		return err
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(captureBucket))
		if bucket == nil {
			return fmt.Errorf("capture bucket missing")
		}
		return bucket.Put(urlKey(url), encodeEntry(entry{
			capturedAt: now,
			expiresAt:  now.Add(b.captureTTL),
		}))
	})
}

// maybeCleanupExpired removes expired entries on a fixed cadence to avoid unbounded growth.
func (b *boltStore) maybeCleanupExpired(now time.Time) error {
	if b == nil || b.db == nil {
		return nil
	}

	last := time.Unix(b.lastCleanup.Load(), 0)
	if now.Sub(last) < b.cleanupInterval {
		return nil
	}

	b.cleanupMu.Lock()
	defer b.cleanupMu.Unlock()

	last = time.Unix(b.lastCleanup.Load(), 0)
	if now.Sub(last) < b.cleanupInterval {
		return nil
	}

	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(captureBucket))
		if bucket == nil {
			return fmt.Errorf("capture bucket missing")
		}

		cursor := bucket.Cursor()
		for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
			e, ok := decodeEntry(v)
			if !ok || !e.expiresAt.After(now) {
				if err := cursor.Delete(); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err == nil {
		b.lastCleanup.Store(now.Unix())
	}
	return err
}

type entry struct {
	capturedAt time.Time
	expiresAt  time.Time
}

func encodeEntry(e entry) []byte {
	buf := make([]byte, entryBytes)
	binary.BigEndian.PutUint64(buf[:8], uint64(e.capturedAt.Unix()))
	binary.BigEndian.PutUint64(buf[8:], uint64(e.expiresAt.Unix()))
	return buf
}

// decodeEntry decodes a stored value; malformed values report false.
func decodeEntry(value []byte) (entry, bool) {
	if len(value) != entryBytes {
		return entry{}, false
	}
	captured := int64(binary.BigEndian.Uint64(value[:8]))
	expiry := int64(binary.BigEndian.Uint64(value[8:]))
	if captured <= 0 || expiry <= 0 {
		return entry{}, false
	}
	return entry{capturedAt: time.Unix(captured, 0), expiresAt: time.Unix(expiry, 0)}, true
}
