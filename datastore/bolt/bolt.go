// Package bolt implements the datastore contract over bbolt. One database
// file per workspace; buckets are the named tables; bbolt's single writer and
// MVCC readers give exactly the transaction model the core expects.
package bolt

import (
	"errors"
	"fmt"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/jacquetc/qleany/datastore"
)

// BoltStore implements datastore.DataStore using a single bbolt file.
type BoltStore struct {
	db     *bolt.DB
	config datastore.Config
	mu     sync.RWMutex
	closed bool
}

// init registers the bolt store factory
func init() {
	datastore.Register(datastore.TypeBolt, func(config datastore.Config) (datastore.DataStore, error) {
		return New(config)
	})
}

// New creates a bolt datastore. Initialize must be called before use.
func New(config datastore.Config) (*BoltStore, error) {
	if config.Connection == "" {
		return nil, fmt.Errorf("connection string is required for bolt")
	}
	return &BoltStore{config: config}, nil
}

// Initialize opens the database file.
func (s *BoltStore) Initialize(config datastore.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return datastore.ErrClosed
	}
	if s.db != nil {
		return nil
	}

	// A large initial mmap keeps commits from remapping the file, which
	// would block on the mmap read-lock held by open read transactions.
	db, err := bolt.Open(config.Connection, 0o600, &bolt.Options{
		Timeout:         10 * time.Second,
		InitialMmapSize: 1 << 30,
	})
	if err != nil {
		return fmt.Errorf("failed to open bolt database: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database file.
func (s *BoltStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Type returns the engine type identifier.
func (s *BoltStore) Type() string {
	return datastore.TypeBolt
}

// Begin opens a transaction. bbolt serializes writers internally, so a
// writable Begin blocks until the writer slot is free.
func (s *BoltStore) Begin(writable bool) (datastore.Tx, error) {
	s.mu.RLock()
	db := s.db
	closed := s.closed
	s.mu.RUnlock()

	if closed || db == nil {
		return nil, datastore.ErrClosed
	}

	tx, err := db.Begin(writable)
	if err != nil {
		return nil, fmt.Errorf("failed to begin bolt transaction: %w", err)
	}
	return &boltTx{tx: tx, writable: writable}, nil
}

// boltTx wraps a bbolt transaction.
type boltTx struct {
	tx       *bolt.Tx
	writable bool
	done     bool
}

func (t *boltTx) Writable() bool {
	return t.writable
}

func (t *boltTx) Table(name string) (datastore.Table, error) {
	if t.done {
		return nil, datastore.ErrTxClosed
	}
	if t.writable {
		b, err := t.tx.CreateBucketIfNotExists([]byte(name))
		if err != nil {
			return nil, fmt.Errorf("failed to open table %q: %w", name, err)
		}
		return &boltTable{bucket: b, tx: t}, nil
	}
	// Missing tables read as empty in a read-only transaction.
	return &boltTable{bucket: t.tx.Bucket([]byte(name)), tx: t}, nil
}

func (t *boltTx) Commit() error {
	if t.done {
		return datastore.ErrTxClosed
	}
	t.done = true
	if !t.writable {
		return t.tx.Rollback()
	}
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("bolt commit failed: %w", err)
	}
	return nil
}

func (t *boltTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	return t.tx.Rollback()
}

// boltTable adapts a bucket. A nil bucket is an empty read-only table.
type boltTable struct {
	bucket *bolt.Bucket
	tx     *boltTx
}

func (bt *boltTable) Get(key []byte) ([]byte, error) {
	if bt.tx.done {
		return nil, datastore.ErrTxClosed
	}
	if bt.bucket == nil {
		return nil, datastore.ErrNotFound
	}
	v := bt.bucket.Get(key)
	if v == nil {
		return nil, datastore.ErrNotFound
	}
	// bbolt values are only valid for the life of the transaction.
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (bt *boltTable) Has(key []byte) (bool, error) {
	if bt.tx.done {
		return false, datastore.ErrTxClosed
	}
	if bt.bucket == nil {
		return false, nil
	}
	return bt.bucket.Get(key) != nil, nil
}

func (bt *boltTable) Put(key, value []byte) error {
	if bt.tx.done {
		return datastore.ErrTxClosed
	}
	if !bt.tx.writable || bt.bucket == nil {
		return datastore.ErrReadOnly
	}
	if err := bt.bucket.Put(key, value); err != nil {
		return fmt.Errorf("bolt put failed: %w", err)
	}
	return nil
}

func (bt *boltTable) Delete(key []byte) error {
	if bt.tx.done {
		return datastore.ErrTxClosed
	}
	if !bt.tx.writable || bt.bucket == nil {
		return datastore.ErrReadOnly
	}
	if err := bt.bucket.Delete(key); err != nil {
		return fmt.Errorf("bolt delete failed: %w", err)
	}
	return nil
}

func (bt *boltTable) Scan(start []byte, limit int, fn func(key, value []byte) error) error {
	if bt.tx.done {
		return datastore.ErrTxClosed
	}
	if bt.bucket == nil {
		return nil
	}

	c := bt.bucket.Cursor()
	var k, v []byte
	if start == nil {
		k, v = c.First()
	} else {
		k, v = c.Seek(start)
	}

	seen := 0
	for k != nil {
		if limit > 0 && seen >= limit {
			return nil
		}
		key := make([]byte, len(k))
		copy(key, k)
		value := make([]byte, len(v))
		copy(value, v)
		if err := fn(key, value); err != nil {
			if errors.Is(err, datastore.ErrStopScan) {
				return nil
			}
			return err
		}
		seen++
		k, v = c.Next()
	}
	return nil
}
