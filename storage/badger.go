// Package storage provides the persistence layer for the redemption ledger.
//
// Two tiers:
//
//   - BadgerStorage: low-level key-value store on BadgerDB v3 with
//     transaction and prefix-iterator support
//   - LedgerStore: domain-level persistence of withdrawal requests,
//     redemptions, the per-user index, account balances, the delay policy
//     and the notification log
//
// Every public ledger operation commits all of its mutations through a single
// badger transaction, so a crash mid-operation never leaves partial state.
package storage

import (
	"fmt"
	"os"
	"sync"

	"github.com/dgraph-io/badger/v3"
)

// Custom errors
var (
	ErrKeyNotFound = fmt.Errorf("key not found")
)

// BadgerStorage implements ledger storage using BadgerDB v3
type BadgerStorage struct {
	db *badger.DB
	mu sync.RWMutex
}

// NewBadgerStorage opens (creating if needed) a BadgerDB instance at dataDir.
func NewBadgerStorage(dataDir string) (*BadgerStorage, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %v", err)
	}

	opts := badger.DefaultOptions(dataDir).
		WithLogger(nil).
		WithNumVersionsToKeep(1)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %v", err)
	}

	return &BadgerStorage{db: db}, nil
}

// Close shuts the database down.
func (bs *BadgerStorage) Close() error {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	if bs.db != nil {
		err := bs.db.Close()
		bs.db = nil
		return err
	}
	return nil
}

// Get retrieves a value by key.
func (bs *BadgerStorage) Get(key []byte) ([]byte, error) {
	var value []byte
	err := bs.View(func(txn Transaction) error {
		val, err := txn.Get(key)
		if err != nil {
			return err
		}
		value = val
		return nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Set stores a key-value pair.
func (bs *BadgerStorage) Set(key, value []byte) error {
	return bs.Update(func(txn Transaction) error {
		return txn.Set(key, value)
	})
}

// Delete removes a key.
func (bs *BadgerStorage) Delete(key []byte) error {
	return bs.Update(func(txn Transaction) error {
		return txn.Delete(key)
	})
}

// Has checks if a key exists.
func (bs *BadgerStorage) Has(key []byte) (bool, error) {
	var exists bool
	err := bs.View(func(txn Transaction) error {
		var err error
		exists, err = txn.Has(key)
		return err
	})
	return exists, err
}

// Batch executes multiple operations atomically.
func (bs *BadgerStorage) Batch(operations []BatchOperation) error {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	return bs.db.Update(func(txn *badger.Txn) error {
		for _, op := range operations {
			switch op.Type {
			case BatchSet:
				if err := txn.Set(op.Key, op.Value); err != nil {
					return err
				}
			case BatchDelete:
				if err := txn.Delete(op.Key); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// Update executes a function within a write transaction.
func (bs *BadgerStorage) Update(fn func(txn Transaction) error) error {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	return bs.db.Update(func(txn *badger.Txn) error {
		return fn(&BadgerTransaction{txn: txn})
	})
}

// View executes a function within a read transaction.
func (bs *BadgerStorage) View(fn func(txn Transaction) error) error {
	bs.mu.RLock()
	defer bs.mu.RUnlock()

	return bs.db.View(func(txn *badger.Txn) error {
		return fn(&BadgerTransaction{txn: txn})
	})
}

// Iterator returns a prefix iterator over the database.
func (bs *BadgerStorage) Iterator(prefix []byte) Iterator {
	return &BadgerIterator{
		db:     bs.db,
		prefix: prefix,
	}
}

// RunGC runs value-log garbage collection.
func (bs *BadgerStorage) RunGC(discardRatio float64) error {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	return bs.db.RunValueLogGC(discardRatio)
}

// Size returns the on-disk size of the database.
func (bs *BadgerStorage) Size() (int64, error) {
	lsm, vlog := bs.db.Size()
	return lsm + vlog, nil
}

// Transaction interface for atomic operations
type Transaction interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	Delete(key []byte) error
	Has(key []byte) (bool, error)
}

// BadgerTransaction wraps badger.Txn to implement Transaction
type BadgerTransaction struct {
	txn *badger.Txn
}

func (bt *BadgerTransaction) Get(key []byte) ([]byte, error) {
	item, err := bt.txn.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, ErrKeyNotFound
		}
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (bt *BadgerTransaction) Set(key, value []byte) error {
	return bt.txn.Set(key, value)
}

func (bt *BadgerTransaction) Delete(key []byte) error {
	return bt.txn.Delete(key)
}

func (bt *BadgerTransaction) Has(key []byte) (bool, error) {
	_, err := bt.txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// BatchOperation represents one staged mutation
type BatchOperation struct {
	Type  BatchOperationType
	Key   []byte
	Value []byte
}

type BatchOperationType int

const (
	BatchSet BatchOperationType = iota
	BatchDelete
)

// Iterator interface for database iteration
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Error() error
	Close()
}

// BadgerIterator implements Iterator for BadgerDB v3
type BadgerIterator struct {
	db     *badger.DB
	prefix []byte
	txn    *badger.Txn
	iter   *badger.Iterator
	closed bool
}

func (bi *BadgerIterator) Next() bool {
	if bi.closed {
		return false
	}

	if bi.txn == nil {
		bi.txn = bi.db.NewTransaction(false)
		opts := badger.DefaultIteratorOptions
		opts.PrefetchSize = 100
		bi.iter = bi.txn.NewIterator(opts)
		bi.iter.Seek(bi.prefix)
	} else {
		bi.iter.Next()
	}

	return bi.iter.ValidForPrefix(bi.prefix)
}

func (bi *BadgerIterator) Key() []byte {
	if bi.iter != nil {
		return bi.iter.Item().KeyCopy(nil)
	}
	return nil
}

func (bi *BadgerIterator) Value() []byte {
	if bi.iter != nil {
		val, _ := bi.iter.Item().ValueCopy(nil)
		return val
	}
	return nil
}

func (bi *BadgerIterator) Error() error {
	return nil
}

func (bi *BadgerIterator) Close() {
	if !bi.closed {
		if bi.iter != nil {
			bi.iter.Close()
		}
		if bi.txn != nil {
			bi.txn.Discard()
		}
		bi.closed = true
	}
}

// Storage interface that BadgerStorage implements
type Storage interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	Delete(key []byte) error
	Has(key []byte) (bool, error)
	Batch(operations []BatchOperation) error
	Update(fn func(txn Transaction) error) error
	View(fn func(txn Transaction) error) error
	Iterator(prefix []byte) Iterator
	Close() error
}

// Key prefixes for the ledger tables
const (
	RequestPrefix    = "req:"
	RedemptionPrefix = "red:"
	UserIndexPrefix  = "usr:"
	AccountPrefix    = "bal:"
	DelayKeyName     = "cfg:withdrawal-delay"
	EventPrefix      = "evt:"
	EventSeqKeyName  = "evt-seq:current"
)

// Helper functions for key construction

func RequestKey(requestID string) []byte {
	return []byte(RequestPrefix + requestID)
}

func RedemptionKey(redemptionID string) []byte {
	return []byte(RedemptionPrefix + redemptionID)
}

func UserIndexKey(user string) []byte {
	return []byte(UserIndexPrefix + user)
}

func AccountKey(addr string) []byte {
	return []byte(AccountPrefix + addr)
}

func DelayKey() []byte {
	return []byte(DelayKeyName)
}

func EventKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", EventPrefix, seq))
}

func EventSeqKey() []byte {
	return []byte(EventSeqKeyName)
}
