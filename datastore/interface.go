// Package datastore defines the engine-neutral contract consumed by the
// repository layer: named tables behaving as byte-sorted maps, one ACID commit
// point across all tables, single-writer multi-reader transactions, and
// ordered iteration with explicit paging.
package datastore

import "errors"

// Common errors
var (
	ErrNotFound = errors.New("not found")
	ErrClosed   = errors.New("datastore is closed")
	ErrReadOnly = errors.New("transaction is read-only")
	ErrTxClosed = errors.New("transaction is closed")

	// ErrStopScan may be returned by a scan callback to stop iteration
	// early without surfacing an error.
	ErrStopScan = errors.New("stop scan")
)

// DataStore is the embedded engine behind a workspace database. All tables of
// one store share a single commit point; write transactions are serialized,
// read transactions are snapshot-isolated.
type DataStore interface {
	// Initialize opens the underlying engine using the given configuration.
	Initialize(config Config) error

	// Close releases the engine. Transactions still open become invalid.
	Close() error

	// Begin opens a transaction. A writable transaction may block until the
	// engine's single writer slot is free.
	Begin(writable bool) (Tx, error)

	// Type returns the engine type identifier.
	Type() string
}

// Tx is a transaction over the whole store. Opening the same table twice
// inside one transaction is idempotent.
type Tx interface {
	// Table opens a named table. Inside a writable transaction the table is
	// created on first use; inside a read-only transaction a missing table
	// behaves as an empty one.
	Table(name string) (Table, error)

	// Commit durably persists every write issued through this transaction.
	Commit() error

	// Rollback discards the transaction. Rolling back a read-only
	// transaction releases its snapshot.
	Rollback() error

	// Writable reports whether writes are allowed.
	Writable() bool
}

// Table is a sorted map from byte keys to byte values.
type Table interface {
	// Get returns the value for key, or ErrNotFound.
	Get(key []byte) ([]byte, error)

	// Has reports whether key exists.
	Has(key []byte) (bool, error)

	// Put stores a value. Fails with ErrReadOnly on read-only transactions.
	Put(key, value []byte) error

	// Delete removes a key. Deleting a missing key is a no-op.
	Delete(key []byte) error

	// Scan visits entries in ascending key order starting at the first key
	// >= start (nil means from the beginning). A limit > 0 caps the number
	// of visited entries; limit <= 0 visits everything. Returning an error
	// from fn stops the scan and propagates it, except ErrStopScan which
	// stops silently.
	Scan(start []byte, limit int, fn func(key, value []byte) error) error
}
