package storage

import (
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/vaultis-labs/go-vaultis/core/account"
	"github.com/vaultis-labs/go-vaultis/core/withdrawal"
	"github.com/vaultis-labs/go-vaultis/events"
)

// LedgerStore encodes ledger records into the key/value store. All writes go
// through batch operations so a single Apply commits one logical state
// transition atomically.
type LedgerStore struct {
	db Storage
}

func NewLedgerStore(db Storage) *LedgerStore {
	return &LedgerStore{db: db}
}

// Apply commits the staged operations in one transaction.
func (s *LedgerStore) Apply(ops []BatchOperation) error {
	if len(ops) == 0 {
		return nil
	}
	if err := s.db.Batch(ops); err != nil {
		return fmt.Errorf("failed to commit batch of %d operations: %v", len(ops), err)
	}
	return nil
}

// Batch operation builders. Encoding errors surface here so validation
// happens before anything touches the database.

func PutRequestOp(req *withdrawal.Request) (BatchOperation, error) {
	data, err := cbor.Marshal(req)
	if err != nil {
		return BatchOperation{}, fmt.Errorf("failed to encode request %s: %v", req.ID, err)
	}
	return BatchOperation{Type: BatchSet, Key: RequestKey(req.ID), Value: data}, nil
}

func DeleteRequestOp(requestID string) BatchOperation {
	return BatchOperation{Type: BatchDelete, Key: RequestKey(requestID)}
}

func PutRedemptionOp(rd *withdrawal.Redemption) (BatchOperation, error) {
	data, err := cbor.Marshal(rd)
	if err != nil {
		return BatchOperation{}, fmt.Errorf("failed to encode redemption %s: %v", rd.ID, err)
	}
	return BatchOperation{Type: BatchSet, Key: RedemptionKey(rd.ID), Value: data}, nil
}

func DeleteRedemptionOp(redemptionID string) BatchOperation {
	return BatchOperation{Type: BatchDelete, Key: RedemptionKey(redemptionID)}
}

func PutUserIndexOp(user string, requestIDs []string) (BatchOperation, error) {
	if len(requestIDs) == 0 {
		return BatchOperation{Type: BatchDelete, Key: UserIndexKey(user)}, nil
	}
	data, err := cbor.Marshal(requestIDs)
	if err != nil {
		return BatchOperation{}, fmt.Errorf("failed to encode request index for %s: %v", user, err)
	}
	return BatchOperation{Type: BatchSet, Key: UserIndexKey(user), Value: data}, nil
}

func PutAccountOp(acct *account.Account) (BatchOperation, error) {
	data, err := cbor.Marshal(acct)
	if err != nil {
		return BatchOperation{}, fmt.Errorf("failed to encode account %s: %v", acct.Address, err)
	}
	return BatchOperation{Type: BatchSet, Key: AccountKey(acct.Address), Value: data}, nil
}

func PutDelayOp(delay time.Duration) BatchOperation {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(delay))
	return BatchOperation{Type: BatchSet, Key: DelayKey(), Value: buf}
}

func PutEventOp(n events.Notification) (BatchOperation, error) {
	data, err := cbor.Marshal(n)
	if err != nil {
		return BatchOperation{}, fmt.Errorf("failed to encode notification %d: %v", n.Seq, err)
	}
	return BatchOperation{Type: BatchSet, Key: EventKey(n.Seq), Value: data}, nil
}

func PutEventSeqOp(seq uint64) BatchOperation {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, seq)
	return BatchOperation{Type: BatchSet, Key: EventSeqKey(), Value: buf}
}

// Load functions, used once at startup to rebuild the in-memory state.

// LoadRequests returns every persisted withdrawal request.
func (s *LedgerStore) LoadRequests() ([]*withdrawal.Request, error) {
	var out []*withdrawal.Request

	iter := s.db.Iterator([]byte(RequestPrefix))
	defer iter.Close()

	for iter.Next() {
		var req withdrawal.Request
		if err := cbor.Unmarshal(iter.Value(), &req); err != nil {
			return nil, fmt.Errorf("failed to decode request at %s: %v", iter.Key(), err)
		}
		out = append(out, &req)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("request scan failed: %v", err)
	}
	return out, nil
}

// LoadRedemptions returns every persisted pending redemption.
func (s *LedgerStore) LoadRedemptions() ([]*withdrawal.Redemption, error) {
	var out []*withdrawal.Redemption

	iter := s.db.Iterator([]byte(RedemptionPrefix))
	defer iter.Close()

	for iter.Next() {
		var rd withdrawal.Redemption
		if err := cbor.Unmarshal(iter.Value(), &rd); err != nil {
			return nil, fmt.Errorf("failed to decode redemption at %s: %v", iter.Key(), err)
		}
		out = append(out, &rd)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("redemption scan failed: %v", err)
	}
	return out, nil
}

// LoadUserIndexes returns the per-user request index, keyed by address.
func (s *LedgerStore) LoadUserIndexes() (map[string][]string, error) {
	out := make(map[string][]string)

	iter := s.db.Iterator([]byte(UserIndexPrefix))
	defer iter.Close()

	for iter.Next() {
		user := strings.TrimPrefix(string(iter.Key()), UserIndexPrefix)
		var ids []string
		if err := cbor.Unmarshal(iter.Value(), &ids); err != nil {
			return nil, fmt.Errorf("failed to decode request index for %s: %v", user, err)
		}
		out[user] = ids
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("request index scan failed: %v", err)
	}
	return out, nil
}

// LoadAccounts returns every persisted account.
func (s *LedgerStore) LoadAccounts() ([]*account.Account, error) {
	var out []*account.Account

	iter := s.db.Iterator([]byte(AccountPrefix))
	defer iter.Close()

	for iter.Next() {
		var acct account.Account
		if err := cbor.Unmarshal(iter.Value(), &acct); err != nil {
			return nil, fmt.Errorf("failed to decode account at %s: %v", iter.Key(), err)
		}
		out = append(out, &acct)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("account scan failed: %v", err)
	}
	return out, nil
}

// LoadDelay returns the persisted withdrawal delay. The second return is
// false when none was ever stored, letting the caller fall back to its
// configured default.
func (s *LedgerStore) LoadDelay() (time.Duration, bool, error) {
	data, err := s.db.Get(DelayKey())
	if err == ErrKeyNotFound {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to load withdrawal delay: %v", err)
	}
	if len(data) != 8 {
		return 0, false, fmt.Errorf("corrupt withdrawal delay record: %d bytes", len(data))
	}
	return time.Duration(binary.BigEndian.Uint64(data)), true, nil
}

// LoadEventSeq returns the last assigned notification sequence number, zero
// when the log is empty.
func (s *LedgerStore) LoadEventSeq() (uint64, error) {
	data, err := s.db.Get(EventSeqKey())
	if err == ErrKeyNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load event sequence: %v", err)
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("corrupt event sequence record: %d bytes", len(data))
	}
	return binary.BigEndian.Uint64(data), nil
}

// LoadEvents returns the persisted notification log in sequence order. Keys
// are zero-padded so the prefix scan already yields them sorted.
func (s *LedgerStore) LoadEvents() ([]events.Notification, error) {
	var out []events.Notification

	iter := s.db.Iterator([]byte(EventPrefix))
	defer iter.Close()

	for iter.Next() {
		var n events.Notification
		if err := cbor.Unmarshal(iter.Value(), &n); err != nil {
			return nil, fmt.Errorf("failed to decode notification at %s: %v", iter.Key(), err)
		}
		out = append(out, n)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("notification scan failed: %v", err)
	}
	return out, nil
}
