package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *BadgerStorage {
	t.Helper()
	db, err := NewBadgerStorage(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestBadgerSetGetDelete(t *testing.T) {
	db := newTestStorage(t)

	_, err := db.Get([]byte("missing"))
	require.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, db.Set([]byte("k1"), []byte("v1")))

	val, err := db.Get([]byte("k1"))
	require.NoError(t, err)
	require.Equal(t, []byte("v1"), val)

	ok, err := db.Has([]byte("k1"))
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, db.Delete([]byte("k1")))

	ok, err = db.Has([]byte("k1"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestBadgerBatch(t *testing.T) {
	db := newTestStorage(t)
	require.NoError(t, db.Set([]byte("old"), []byte("x")))

	ops := []BatchOperation{
		{Type: BatchSet, Key: []byte("a"), Value: []byte("1")},
		{Type: BatchSet, Key: []byte("b"), Value: []byte("2")},
		{Type: BatchDelete, Key: []byte("old")},
	}
	require.NoError(t, db.Batch(ops))

	val, err := db.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), val)

	_, err = db.Get([]byte("old"))
	require.ErrorIs(t, err, ErrKeyNotFound)
}

func TestBadgerIterator(t *testing.T) {
	db := newTestStorage(t)
	require.NoError(t, db.Set([]byte("req:a"), []byte("1")))
	require.NoError(t, db.Set([]byte("req:b"), []byte("2")))
	require.NoError(t, db.Set([]byte("red:z"), []byte("3")))

	iter := db.Iterator([]byte("req:"))
	defer iter.Close()

	var keys []string
	for iter.Next() {
		keys = append(keys, string(iter.Key()))
	}
	require.NoError(t, iter.Error())
	require.Equal(t, []string{"req:a", "req:b"}, keys)
}

func TestBadgerUpdateView(t *testing.T) {
	db := newTestStorage(t)

	err := db.Update(func(txn Transaction) error {
		return txn.Set([]byte("k"), []byte("v"))
	})
	require.NoError(t, err)

	err = db.View(func(txn Transaction) error {
		val, err := txn.Get([]byte("k"))
		require.NoError(t, err)
		require.Equal(t, []byte("v"), val)
		return nil
	})
	require.NoError(t, err)
}

func TestKeyHelpers(t *testing.T) {
	require.Equal(t, []byte("req:req-1"), RequestKey("req-1"))
	require.Equal(t, []byte("red:red-1"), RedemptionKey("red-1"))
	require.Equal(t, []byte("usr:0xabc"), UserIndexKey("0xabc"))
	require.Equal(t, []byte("bal:0xabc"), AccountKey("0xabc"))
	require.Equal(t, []byte("cfg:withdrawal-delay"), DelayKey())
	require.Equal(t, []byte("evt:00000000000000000042"), EventKey(42))
	require.Equal(t, []byte("evt-seq:current"), EventSeqKey())
}
