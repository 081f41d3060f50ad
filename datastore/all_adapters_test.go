package datastore_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacquetc/qleany/datastore"
	_ "github.com/jacquetc/qleany/datastore/badger"
	_ "github.com/jacquetc/qleany/datastore/bolt"
	_ "github.com/jacquetc/qleany/datastore/memory"
)

// adapterConfigs builds one config per registered engine, pointed at
// test-scoped locations.
func adapterConfigs(t *testing.T) map[string]datastore.Config {
	t.Helper()
	dir := t.TempDir()
	return map[string]datastore.Config{
		datastore.TypeMemory: datastore.DefaultConfig(datastore.TypeMemory),
		datastore.TypeBolt: {
			Type:       datastore.TypeBolt,
			Connection: filepath.Join(dir, "test.qleany"),
		},
		datastore.TypeBadger: {
			Type:       datastore.TypeBadger,
			Connection: filepath.Join(dir, "badger"),
			Options:    map[string]interface{}{"sync_writes": false},
		},
	}
}

func TestAllAdapters(t *testing.T) {
	for name, config := range adapterConfigs(t) {
		config := config
		t.Run(name, func(t *testing.T) {
			store, err := datastore.New(config)
			require.NoError(t, err)
			defer store.Close()

			t.Run("BasicOperations", func(t *testing.T) { testBasicOperations(t, store) })
			t.Run("ScanOrder", func(t *testing.T) { testScanOrder(t, store) })
			t.Run("TransactionIsolation", func(t *testing.T) { testTransactionIsolation(t, store) })
			t.Run("Rollback", func(t *testing.T) { testRollback(t, store) })
			t.Run("ReadOnlyRejectsWrites", func(t *testing.T) { testReadOnlyRejectsWrites(t, store) })
		})
	}
}

func testBasicOperations(t *testing.T, store datastore.DataStore) {
	tx, err := store.Begin(true)
	require.NoError(t, err)

	table, err := tx.Table("basic")
	require.NoError(t, err)

	require.NoError(t, table.Put([]byte("k1"), []byte("v1")))
	require.NoError(t, table.Put([]byte("k2"), []byte("v2")))

	// Reads inside the same transaction see the writes.
	v, err := table.Get([]byte("k1"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), v)

	ok, err := table.Has([]byte("k2"))
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, table.Delete([]byte("k2")))
	_, err = table.Get([]byte("k2"))
	assert.ErrorIs(t, err, datastore.ErrNotFound)

	require.NoError(t, tx.Commit())

	// A fresh read transaction sees the committed state.
	rtx, err := store.Begin(false)
	require.NoError(t, err)
	defer rtx.Rollback()

	rtable, err := rtx.Table("basic")
	require.NoError(t, err)

	v, err = rtable.Get([]byte("k1"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), v)

	_, err = rtable.Get([]byte("k2"))
	assert.ErrorIs(t, err, datastore.ErrNotFound)
}

func testScanOrder(t *testing.T, store datastore.DataStore) {
	tx, err := store.Begin(true)
	require.NoError(t, err)

	table, err := tx.Table("scan")
	require.NoError(t, err)

	for _, k := range []string{"c", "a", "e", "b", "d"} {
		require.NoError(t, table.Put([]byte(k), []byte("v-"+k)))
	}
	require.NoError(t, tx.Commit())

	rtx, err := store.Begin(false)
	require.NoError(t, err)
	defer rtx.Rollback()

	rtable, err := rtx.Table("scan")
	require.NoError(t, err)

	var keys []string
	err = rtable.Scan(nil, 0, func(key, value []byte) error {
		keys = append(keys, string(key))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, keys)

	// Paged scan: start key and limit are honored.
	keys = nil
	err = rtable.Scan([]byte("b"), 2, func(key, value []byte) error {
		keys = append(keys, string(key))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, keys)

	// Early stop without error.
	keys = nil
	err = rtable.Scan(nil, 0, func(key, value []byte) error {
		keys = append(keys, string(key))
		return datastore.ErrStopScan
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, keys)
}

func testTransactionIsolation(t *testing.T, store datastore.DataStore) {
	setup, err := store.Begin(true)
	require.NoError(t, err)
	table, err := setup.Table("iso")
	require.NoError(t, err)
	require.NoError(t, table.Put([]byte("key"), []byte("before")))
	require.NoError(t, setup.Commit())

	// A reader opened before the write commits sees the old state.
	reader, err := store.Begin(false)
	require.NoError(t, err)
	defer reader.Rollback()

	writer, err := store.Begin(true)
	require.NoError(t, err)
	wtable, err := writer.Table("iso")
	require.NoError(t, err)
	require.NoError(t, wtable.Put([]byte("key"), []byte("after")))
	require.NoError(t, writer.Commit())

	rtable, err := reader.Table("iso")
	require.NoError(t, err)
	v, err := rtable.Get([]byte("key"))
	require.NoError(t, err)
	assert.Equal(t, []byte("before"), v)
}

func testRollback(t *testing.T, store datastore.DataStore) {
	tx, err := store.Begin(true)
	require.NoError(t, err)
	table, err := tx.Table("rollback")
	require.NoError(t, err)
	require.NoError(t, table.Put([]byte("ghost"), []byte("x")))
	require.NoError(t, tx.Rollback())

	rtx, err := store.Begin(false)
	require.NoError(t, err)
	defer rtx.Rollback()

	rtable, err := rtx.Table("rollback")
	require.NoError(t, err)
	_, err = rtable.Get([]byte("ghost"))
	assert.ErrorIs(t, err, datastore.ErrNotFound)
}

func testReadOnlyRejectsWrites(t *testing.T, store datastore.DataStore) {
	rtx, err := store.Begin(false)
	require.NoError(t, err)
	defer rtx.Rollback()

	table, err := rtx.Table("ro")
	require.NoError(t, err)

	assert.ErrorIs(t, table.Put([]byte("k"), []byte("v")), datastore.ErrReadOnly)
	assert.ErrorIs(t, table.Delete([]byte("k")), datastore.ErrReadOnly)
}

func TestUnknownEngine(t *testing.T) {
	_, err := datastore.New(datastore.Config{Type: "mystery"})
	require.Error(t, err)
}
