// Package badger implements the datastore contract over badger v4. Tables
// are key prefixes inside one value log; a store-level writer mutex gives the
// single-writer semantics the core expects, since badger itself allows
// concurrent writers with conflict detection.
package badger

import (
	"errors"
	"fmt"
	"sync"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/jacquetc/qleany/datastore"
)

// tableSeparator terminates the table name inside a composite key. Table
// names must not contain it.
const tableSeparator = 0x00

// BadgerStore implements datastore.DataStore using badger v4.
type BadgerStore struct {
	db       *badger.DB
	config   datastore.Config
	mu       sync.RWMutex
	writerMu sync.Mutex
	closed   bool
}

// init registers the badger store factory
func init() {
	datastore.Register(datastore.TypeBadger, func(config datastore.Config) (datastore.DataStore, error) {
		return New(config)
	})
}

// New creates a badger datastore. Initialize must be called before use.
func New(config datastore.Config) (*BadgerStore, error) {
	if config.Connection == "" {
		return nil, fmt.Errorf("connection string is required for badger")
	}
	return &BadgerStore{config: config}, nil
}

// Initialize opens the badger directory.
func (s *BadgerStore) Initialize(config datastore.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return datastore.ErrClosed
	}
	if s.db != nil {
		return nil
	}

	opts := badger.DefaultOptions(config.Connection)
	opts.SyncWrites = config.GetBoolOption("sync_writes", true)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return fmt.Errorf("failed to open badger database: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the badger directory.
func (s *BadgerStore) Close() error {
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
func (s *BadgerStore) Type() string {
	return datastore.TypeBadger
}

// Begin opens a transaction. Writable transactions hold the store-wide
// writer mutex until commit or rollback.
func (s *BadgerStore) Begin(writable bool) (datastore.Tx, error) {
	s.mu.RLock()
	db := s.db
	closed := s.closed
	s.mu.RUnlock()

	if closed || db == nil {
		return nil, datastore.ErrClosed
	}

	if writable {
		s.writerMu.Lock()
	}
	return &badgerTx{
		store:    s,
		txn:      db.NewTransaction(writable),
		writable: writable,
	}, nil
}

// badgerTx wraps a badger transaction.
type badgerTx struct {
	store    *BadgerStore
	txn      *badger.Txn
	writable bool
	done     bool
}

func (t *badgerTx) Writable() bool {
	return t.writable
}

func (t *badgerTx) Table(name string) (datastore.Table, error) {
	if t.done {
		return nil, datastore.ErrTxClosed
	}
	prefix := append([]byte(name), tableSeparator)
	return &badgerTable{tx: t, prefix: prefix}, nil
}

func (t *badgerTx) Commit() error {
	if t.done {
		return datastore.ErrTxClosed
	}
	t.done = true
	defer t.release()

	if !t.writable {
		t.txn.Discard()
		return nil
	}
	if err := t.txn.Commit(); err != nil {
		return fmt.Errorf("badger commit failed: %w", err)
	}
	return nil
}

func (t *badgerTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.txn.Discard()
	t.release()
	return nil
}

func (t *badgerTx) release() {
	if t.writable {
		t.store.writerMu.Unlock()
	}
}

// badgerTable scopes operations to one table prefix.
type badgerTable struct {
	tx     *badgerTx
	prefix []byte
}

func (bt *badgerTable) full(key []byte) []byte {
	out := make([]byte, 0, len(bt.prefix)+len(key))
	out = append(out, bt.prefix...)
	return append(out, key...)
}

func (bt *badgerTable) Get(key []byte) ([]byte, error) {
	if bt.tx.done {
		return nil, datastore.ErrTxClosed
	}
	item, err := bt.tx.txn.Get(bt.full(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, datastore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("badger get failed: %w", err)
	}
	return item.ValueCopy(nil)
}

func (bt *badgerTable) Has(key []byte) (bool, error) {
	_, err := bt.Get(key)
	if errors.Is(err, datastore.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (bt *badgerTable) Put(key, value []byte) error {
	if bt.tx.done {
		return datastore.ErrTxClosed
	}
	if !bt.tx.writable {
		return datastore.ErrReadOnly
	}
	if err := bt.tx.txn.Set(bt.full(key), value); err != nil {
		return fmt.Errorf("badger put failed: %w", err)
	}
	return nil
}

func (bt *badgerTable) Delete(key []byte) error {
	if bt.tx.done {
		return datastore.ErrTxClosed
	}
	if !bt.tx.writable {
		return datastore.ErrReadOnly
	}
	if err := bt.tx.txn.Delete(bt.full(key)); err != nil {
		return fmt.Errorf("badger delete failed: %w", err)
	}
	return nil
}

func (bt *badgerTable) Scan(start []byte, limit int, fn func(key, value []byte) error) error {
	if bt.tx.done {
		return datastore.ErrTxClosed
	}

	opts := badger.DefaultIteratorOptions
	opts.Prefix = bt.prefix
	it := bt.tx.txn.NewIterator(opts)
	defer it.Close()

	seek := bt.prefix
	if start != nil {
		seek = bt.full(start)
	}

	seen := 0
	for it.Seek(seek); it.ValidForPrefix(bt.prefix); it.Next() {
		if limit > 0 && seen >= limit {
			return nil
		}
		item := it.Item()
		key := item.KeyCopy(nil)[len(bt.prefix):]
		value, err := item.ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("badger scan failed: %w", err)
		}
		if err := fn(key, value); err != nil {
			if errors.Is(err, datastore.ErrStopScan) {
				return nil
			}
			return err
		}
		seen++
	}
	return nil
}
