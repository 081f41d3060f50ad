// Package memory implements an in-memory datastore. It is the fastest engine
// and provides no persistence; it exists for tests and ephemeral runs. Write
// transactions buffer their mutations and apply them atomically at commit;
// read transactions snapshot the tables they touch at begin time.
package memory

import (
	"errors"
	"sort"
	"sync"

	"github.com/jacquetc/qleany/datastore"
)

// MemoryStore implements datastore.DataStore using in-memory maps.
type MemoryStore struct {
	tables   map[string]map[string][]byte
	mu       sync.RWMutex
	writerMu sync.Mutex
	closed   bool
}

// init registers the memory store factory
func init() {
	datastore.Register(datastore.TypeMemory, func(config datastore.Config) (datastore.DataStore, error) {
		return New(config), nil
	})
}

// New creates a new memory store.
func New(_ datastore.Config) *MemoryStore {
	return &MemoryStore{tables: make(map[string]map[string][]byte)}
}

// Initialize is a no-op for the memory store.
func (m *MemoryStore) Initialize(_ datastore.Config) error {
	return nil
}

// Close drops all data.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	m.tables = nil
	return nil
}

// Type returns the engine type identifier.
func (m *MemoryStore) Type() string {
	return datastore.TypeMemory
}

// Begin opens a transaction. Writable transactions hold the store-wide
// writer mutex until commit or rollback.
func (m *MemoryStore) Begin(writable bool) (datastore.Tx, error) {
	m.mu.RLock()
	closed := m.closed
	m.mu.RUnlock()
	if closed {
		return nil, datastore.ErrClosed
	}

	if writable {
		m.writerMu.Lock()
		return &memoryTx{
			store:    m,
			writable: true,
			pending:  make(map[string]map[string][]byte),
			deleted:  make(map[string]map[string]bool),
		}, nil
	}

	// Snapshot every table for the reader. Values are immutable once
	// stored, so copying the map headers is enough.
	m.mu.RLock()
	snapshot := make(map[string]map[string][]byte, len(m.tables))
	for name, table := range m.tables {
		clone := make(map[string][]byte, len(table))
		for k, v := range table {
			clone[k] = v
		}
		snapshot[name] = clone
	}
	m.mu.RUnlock()

	return &memoryTx{store: m, snapshot: snapshot}, nil
}

// memoryTx is a transaction over the memory store.
type memoryTx struct {
	store    *MemoryStore
	writable bool
	done     bool

	// Read-only state.
	snapshot map[string]map[string][]byte

	// Writable state: buffered mutations keyed by table.
	pending map[string]map[string][]byte
	deleted map[string]map[string]bool
}

func (t *memoryTx) Writable() bool {
	return t.writable
}

func (t *memoryTx) Table(name string) (datastore.Table, error) {
	if t.done {
		return nil, datastore.ErrTxClosed
	}
	return &memoryTable{tx: t, name: name}, nil
}

func (t *memoryTx) Commit() error {
	if t.done {
		return datastore.ErrTxClosed
	}
	t.done = true

	if !t.writable {
		return nil
	}
	defer t.store.writerMu.Unlock()

	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	if t.store.closed {
		return datastore.ErrClosed
	}
	for name, puts := range t.pending {
		table := t.store.tables[name]
		if table == nil {
			table = make(map[string][]byte)
			t.store.tables[name] = table
		}
		for k, v := range puts {
			table[k] = v
		}
	}
	for name, dels := range t.deleted {
		table := t.store.tables[name]
		if table == nil {
			continue
		}
		for k := range dels {
			delete(table, k)
		}
	}
	return nil
}

func (t *memoryTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	if t.writable {
		t.store.writerMu.Unlock()
	}
	return nil
}

// memoryTable scopes operations to one named table.
type memoryTable struct {
	tx   *memoryTx
	name string
}

// lookup resolves a key against pending mutations first, then the base map.
func (mt *memoryTable) lookup(key string) ([]byte, bool) {
	t := mt.tx
	if t.writable {
		if dels, ok := t.deleted[mt.name]; ok && dels[key] {
			return nil, false
		}
		if puts, ok := t.pending[mt.name]; ok {
			if v, ok := puts[key]; ok {
				return v, true
			}
		}
		t.store.mu.RLock()
		defer t.store.mu.RUnlock()
		v, ok := t.store.tables[mt.name][key]
		return v, ok
	}
	v, ok := t.snapshot[mt.name][key]
	return v, ok
}

func (mt *memoryTable) Get(key []byte) ([]byte, error) {
	if mt.tx.done {
		return nil, datastore.ErrTxClosed
	}
	v, ok := mt.lookup(string(key))
	if !ok {
		return nil, datastore.ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (mt *memoryTable) Has(key []byte) (bool, error) {
	if mt.tx.done {
		return false, datastore.ErrTxClosed
	}
	_, ok := mt.lookup(string(key))
	return ok, nil
}

func (mt *memoryTable) Put(key, value []byte) error {
	if mt.tx.done {
		return datastore.ErrTxClosed
	}
	if !mt.tx.writable {
		return datastore.ErrReadOnly
	}

	stored := make([]byte, len(value))
	copy(stored, value)

	puts := mt.tx.pending[mt.name]
	if puts == nil {
		puts = make(map[string][]byte)
		mt.tx.pending[mt.name] = puts
	}
	puts[string(key)] = stored

	if dels, ok := mt.tx.deleted[mt.name]; ok {
		delete(dels, string(key))
	}
	return nil
}

func (mt *memoryTable) Delete(key []byte) error {
	if mt.tx.done {
		return datastore.ErrTxClosed
	}
	if !mt.tx.writable {
		return datastore.ErrReadOnly
	}

	dels := mt.tx.deleted[mt.name]
	if dels == nil {
		dels = make(map[string]bool)
		mt.tx.deleted[mt.name] = dels
	}
	dels[string(key)] = true

	if puts, ok := mt.tx.pending[mt.name]; ok {
		delete(puts, string(key))
	}
	return nil
}

func (mt *memoryTable) Scan(start []byte, limit int, fn func(key, value []byte) error) error {
	if mt.tx.done {
		return datastore.ErrTxClosed
	}

	merged := make(map[string][]byte)
	if mt.tx.writable {
		mt.tx.store.mu.RLock()
		for k, v := range mt.tx.store.tables[mt.name] {
			merged[k] = v
		}
		mt.tx.store.mu.RUnlock()
		if dels, ok := mt.tx.deleted[mt.name]; ok {
			for k := range dels {
				delete(merged, k)
			}
		}
		if puts, ok := mt.tx.pending[mt.name]; ok {
			for k, v := range puts {
				merged[k] = v
			}
		}
	} else {
		for k, v := range mt.tx.snapshot[mt.name] {
			merged[k] = v
		}
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		if start != nil && k < string(start) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	seen := 0
	for _, k := range keys {
		if limit > 0 && seen >= limit {
			return nil
		}
		v := merged[k]
		value := make([]byte, len(v))
		copy(value, v)
		if err := fn([]byte(k), value); err != nil {
			if errors.Is(err, datastore.ErrStopScan) {
				return nil
			}
			return err
		}
		seen++
	}
	return nil
}
