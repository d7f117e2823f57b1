// Package state wires the withdrawal domain, account balances, persistence
// and the notification log into one ledger facade. Every public mutating
// operation validates first, stages a single storage batch, commits it, and
// only then updates the in-memory tables, so a failure anywhere leaves zero
// observable state change.
package state

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vaultis-labs/go-vaultis/core/account"
	"github.com/vaultis-labs/go-vaultis/core/asset"
	"github.com/vaultis-labs/go-vaultis/core/withdrawal"
	"github.com/vaultis-labs/go-vaultis/crypto/address"
	"github.com/vaultis-labs/go-vaultis/crypto/hash"
	"github.com/vaultis-labs/go-vaultis/events"
	"github.com/vaultis-labs/go-vaultis/storage"
)

// Capabilities names the trusted addresses the ledger's gated operations are
// bound to. All four must be distinct, valid 0x addresses.
type Capabilities struct {
	ShareAccounting     string
	StakingOrchestrator string
	Admin               string
	Treasury            string
}

func (c *Capabilities) normalize() error {
	fields := []struct {
		name string
		addr *string
	}{
		{"share accounting", &c.ShareAccounting},
		{"staking orchestrator", &c.StakingOrchestrator},
		{"admin", &c.Admin},
		{"treasury", &c.Treasury},
	}

	seen := make(map[string]string, len(fields))
	for _, f := range fields {
		normalized, err := address.Normalize(*f.addr)
		if err != nil {
			return fmt.Errorf("invalid %s address: %v", f.name, err)
		}
		if prev, dup := seen[normalized]; dup {
			return fmt.Errorf("%s address duplicates %s address: %s", f.name, prev, normalized)
		}
		seen[normalized] = f.name
		*f.addr = normalized
	}
	return nil
}

// Status is a point-in-time summary of the ledger.
type Status struct {
	RequestCount    int    `json:"request_count"`
	RedemptionCount int    `json:"redemption_count"`
	AccountCount    int    `json:"account_count"`
	EventCount      uint64 `json:"event_count"`
	DelaySeconds    int64  `json:"delay_seconds"`
	StateRoot       string `json:"state_root"`
}

// LedgerState is the withdrawal ledger. A single writer mutex serializes the
// mutating operations; reads go straight to the underlying tables, which
// carry their own locks and always reflect the latest committed state.
type LedgerState struct {
	requests    *withdrawal.RequestLedger
	redemptions *withdrawal.Registrar
	accounts    *account.Manager
	delay       *withdrawal.DelayPolicy
	store       *storage.LedgerStore
	recorder    *events.Recorder
	logger      *zap.Logger

	caps     Capabilities
	eventSeq uint64
	now      func() time.Time

	writeMu sync.Mutex
}

// NewLedgerState builds an empty ledger bound to the given store and trusted
// addresses. Call Load afterwards to rebuild state from storage.
func NewLedgerState(store *storage.LedgerStore, caps Capabilities, logger *zap.Logger) (*LedgerState, error) {
	if store == nil {
		return nil, fmt.Errorf("storage cannot be nil")
	}
	if err := caps.normalize(); err != nil {
		return nil, fmt.Errorf("capability configuration: %v", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &LedgerState{
		requests:    withdrawal.NewRequestLedger(),
		redemptions: withdrawal.NewRegistrar(),
		accounts:    account.NewManager(),
		delay:       withdrawal.NewDelayPolicy(),
		store:       store,
		recorder:    events.NewRecorder(logger),
		logger:      logger,
		caps:        caps,
		now:         time.Now,
	}, nil
}

// SeedDelay installs the configured default withdrawal delay. Call before
// Load: a delay persisted in storage always wins over the seeded value.
func (ls *LedgerState) SeedDelay(delay time.Duration) error {
	ls.writeMu.Lock()
	defer ls.writeMu.Unlock()
	return ls.delay.Set(delay)
}

// Load rebuilds the in-memory tables from committed storage. Meant to run
// once at startup before the ledger takes traffic.
func (ls *LedgerState) Load() error {
	ls.writeMu.Lock()
	defer ls.writeMu.Unlock()

	reqs, err := ls.store.LoadRequests()
	if err != nil {
		return fmt.Errorf("failed to load requests: %v", err)
	}
	for _, req := range reqs {
		ls.requests.Put(req)
	}

	indexes, err := ls.store.LoadUserIndexes()
	if err != nil {
		return fmt.Errorf("failed to load request indexes: %v", err)
	}
	for user, ids := range indexes {
		ls.requests.RestoreIndex(user, ids)
	}

	rds, err := ls.store.LoadRedemptions()
	if err != nil {
		return fmt.Errorf("failed to load redemptions: %v", err)
	}
	for _, rd := range rds {
		ls.redemptions.Put(rd)
	}

	accts, err := ls.store.LoadAccounts()
	if err != nil {
		return fmt.Errorf("failed to load accounts: %v", err)
	}
	for _, acct := range accts {
		if err := ls.accounts.RestoreAccount(acct); err != nil {
			return fmt.Errorf("failed to restore account %s: %v", acct.Address, err)
		}
	}

	delay, persisted, err := ls.store.LoadDelay()
	if err != nil {
		return fmt.Errorf("failed to load withdrawal delay: %v", err)
	}
	if persisted {
		if err := ls.delay.Set(delay); err != nil {
			return fmt.Errorf("persisted withdrawal delay rejected: %v", err)
		}
	}

	seq, err := ls.store.LoadEventSeq()
	if err != nil {
		return fmt.Errorf("failed to load event sequence: %v", err)
	}
	ls.eventSeq = seq

	log, err := ls.store.LoadEvents()
	if err != nil {
		return fmt.Errorf("failed to load notification log: %v", err)
	}
	ls.recorder.Restore(log)

	ls.logger.Info("ledger state loaded",
		zap.Int("requests", ls.requests.Count()),
		zap.Int("redemptions", ls.redemptions.Count()),
		zap.Int("accounts", ls.accounts.GetAccountCount()),
		zap.Uint64("event_seq", seq),
		zap.Duration("withdrawal_delay", delay))
	return nil
}

// Recorder exposes the notification log for subscriptions.
func (ls *LedgerState) Recorder() *events.Recorder {
	return ls.recorder
}

func (ls *LedgerState) requireCaller(caller, expected, operation string) error {
	normalized, err := address.Normalize(caller)
	if err != nil {
		return fmt.Errorf("%w: bad caller address for %s: %v", withdrawal.ErrInvalid, operation, err)
	}
	if normalized != expected {
		return fmt.Errorf("%w: %s is not allowed to call %s", withdrawal.ErrUnauthorized, normalized, operation)
	}
	return nil
}

// CreateWithdrawalRequest records a new pending withdrawal on behalf of a
// user. Only the share-accounting address may call it; the identifier must
// not collide with any live request.
func (ls *LedgerState) CreateWithdrawalRequest(caller, requestID, user string, assets []string, amounts []int64) error {
	if err := ls.requireCaller(caller, ls.caps.ShareAccounting, "createWithdrawalRequest"); err != nil {
		return err
	}

	normalizedUser, err := address.Normalize(user)
	if err != nil {
		return fmt.Errorf("%w: bad user address: %v", withdrawal.ErrInvalid, err)
	}
	if normalizedUser == ls.caps.Treasury {
		return fmt.Errorf("%w: treasury address cannot own withdrawal requests", withdrawal.ErrInvalid)
	}
	if len(assets) != len(amounts) {
		return fmt.Errorf("%w: assets/amounts length mismatch: %d != %d",
			withdrawal.ErrInvalid, len(assets), len(amounts))
	}

	ls.writeMu.Lock()
	defer ls.writeMu.Unlock()

	if ls.requests.Has(requestID) {
		return fmt.Errorf("%w: withdrawal request %s already exists", withdrawal.ErrInvalid, requestID)
	}

	req := withdrawal.NewRequest(requestID, normalizedUser, assets, amounts, ls.now().Unix())
	if err := req.Validate(); err != nil {
		return err
	}

	reqOp, err := storage.PutRequestOp(req)
	if err != nil {
		return err
	}
	newIndex := append(ls.requests.UserIndex(normalizedUser), requestID)
	idxOp, err := storage.PutUserIndexOp(normalizedUser, newIndex)
	if err != nil {
		return err
	}

	notification := events.Notification{
		Seq:       ls.eventSeq + 1,
		Type:      events.TypeRequestInitiated,
		Timestamp: ls.now().UTC(),
		RequestInitiated: &events.RequestInitiated{
			RequestID: requestID,
			User:      normalizedUser,
			Assets:    req.Assets,
			Amounts:   req.RequestedAmounts,
		},
	}
	evtOp, err := storage.PutEventOp(notification)
	if err != nil {
		return err
	}

	ops := []storage.BatchOperation{reqOp, idxOp, evtOp, storage.PutEventSeqOp(notification.Seq)}
	if err := ls.store.Apply(ops); err != nil {
		return err
	}

	ls.requests.Put(req)
	ls.eventSeq = notification.Seq
	ls.recorder.Publish(notification)

	ls.logger.Info("withdrawal request created",
		zap.String("request_id", requestID),
		zap.String("user", normalizedUser),
		zap.Strings("assets", req.Assets),
		zap.Int64s("amounts", req.RequestedAmounts))
	return nil
}

// GetUserWithdrawalRequests returns the user's live request identifiers in
// creation order. Unknown users get an empty slice.
func (ls *LedgerState) GetUserWithdrawalRequests(user string) ([]string, error) {
	normalized, err := address.Normalize(user)
	if err != nil {
		return nil, fmt.Errorf("%w: bad user address: %v", withdrawal.ErrInvalid, err)
	}
	ids := ls.requests.UserIndex(normalized)
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// GetWithdrawalRequests returns the named requests in order. Fails atomically
// on the first missing identifier.
func (ls *LedgerState) GetWithdrawalRequests(ids []string) ([]*withdrawal.Request, error) {
	return ls.requests.GetBatch(ids)
}

// GetRedemption returns the pending redemption, or ErrNotFound once it has
// been completed.
func (ls *LedgerState) GetRedemption(redemptionID string) (*withdrawal.Redemption, error) {
	return ls.redemptions.Get(redemptionID)
}

// RecordRedemptionCreated registers a pending redemption batch. Only the
// staking orchestrator may call it, and the receiver must be the treasury
// address: completion credits the received funds there, and payout debits
// there. The request identifiers it references are
// deliberately not checked against the ledger: entries that never match a
// live request are internal rebalancing markers, and keeping one request out
// of two concurrently pending redemptions is the orchestrator's batching
// responsibility, not the ledger's.
func (ls *LedgerState) RecordRedemptionCreated(caller string, rd *withdrawal.Redemption) error {
	if err := ls.requireCaller(caller, ls.caps.StakingOrchestrator, "recordRedemptionCreated"); err != nil {
		return err
	}
	if err := rd.Validate(); err != nil {
		return err
	}

	ls.writeMu.Lock()
	defer ls.writeMu.Unlock()

	if ls.redemptions.Has(rd.ID) {
		return fmt.Errorf("%w: redemption %s already exists", withdrawal.ErrInvalid, rd.ID)
	}

	stored := rd.Copy()
	normalizedReceiver, err := address.Normalize(stored.Receiver)
	if err != nil {
		return fmt.Errorf("%w: bad receiver address: %v", withdrawal.ErrInvalid, err)
	}
	// Payout always draws on the treasury, so funds returned anywhere else
	// could never reach the covered requests.
	if normalizedReceiver != ls.caps.Treasury {
		return fmt.Errorf("%w: redemption receiver %s is not the treasury",
			withdrawal.ErrInvalid, normalizedReceiver)
	}
	stored.Receiver = normalizedReceiver

	op, err := storage.PutRedemptionOp(stored)
	if err != nil {
		return err
	}
	if err := ls.store.Apply([]storage.BatchOperation{op}); err != nil {
		return err
	}

	ls.redemptions.Put(stored)

	ls.logger.Info("redemption created",
		zap.String("redemption_id", stored.ID),
		zap.Int("covered_requests", len(stored.RequestIDs)),
		zap.String("receiver", stored.Receiver))
	return nil
}

// RecordRedemptionCompleted settles a redemption with the amounts the
// external protocol actually returned. Every covered live request is marked
// ready; any shortfall per asset is distributed proportionally across the
// covered requests holding that asset, flooring toward zero. The received
// funds are credited to the redemption's receiver and the redemption record
// is deleted, so completion can happen exactly once.
//
// Returns, parallel to the redemption's request list, the total
// originally-requested amount processed per identifier (zero for skipped
// internal entries).
func (ls *LedgerState) RecordRedemptionCompleted(caller, redemptionID string, assets []string, received []int64) ([]int64, error) {
	if err := ls.requireCaller(caller, ls.caps.StakingOrchestrator, "recordRedemptionCompleted"); err != nil {
		return nil, err
	}
	for i, a := range assets {
		if err := asset.ValidateID(a); err != nil {
			return nil, fmt.Errorf("%w: %v", withdrawal.ErrInvalid, err)
		}
		if i < len(received) && received[i] < 0 {
			return nil, fmt.Errorf("%w: received amount for %s cannot be negative: %d",
				withdrawal.ErrInvalid, a, received[i])
		}
	}

	ls.writeMu.Lock()
	defer ls.writeMu.Unlock()

	rd, err := ls.redemptions.Get(redemptionID)
	if err != nil {
		return nil, err
	}

	outcome, err := withdrawal.Settle(rd, assets, received, func(id string) (*withdrawal.Request, bool) {
		req, err := ls.requests.Get(id)
		return req, err == nil
	})
	if err != nil {
		return nil, err
	}

	var ops []storage.BatchOperation
	for _, req := range outcome.Requests {
		op, err := storage.PutRequestOp(req)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	ops = append(ops, storage.DeleteRedemptionOp(redemptionID))

	// Credit the returned funds to the receiver so payout has something to
	// draw on. Post-state is computed on a copy; the live account is only
	// touched after the batch commits.
	receiverAcct, err := ls.accounts.GetAccount(rd.Receiver)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", withdrawal.ErrInvalid, err)
	}
	receiverPost := receiverAcct.Copy()
	for i, a := range assets {
		receiverPost.Balances[a] += received[i]
	}
	acctOp, err := storage.PutAccountOp(receiverPost)
	if err != nil {
		return nil, err
	}
	ops = append(ops, acctOp)

	now := ls.now().UTC()
	seq := ls.eventSeq
	var notifications []events.Notification
	for _, loss := range outcome.Losses {
		seq++
		n := events.Notification{
			Seq:       seq,
			Type:      events.TypeLossApplied,
			Timestamp: now,
			LossApplied: &events.LossApplied{
				RedemptionID:   redemptionID,
				RequestID:      loss.RequestID,
				Asset:          loss.Asset,
				OriginalAmount: loss.OriginalAmount,
				SettledAmount:  loss.SettledAmount,
			},
		}
		evtOp, err := storage.PutEventOp(n)
		if err != nil {
			return nil, err
		}
		ops = append(ops, evtOp)
		notifications = append(notifications, n)
	}
	if seq != ls.eventSeq {
		ops = append(ops, storage.PutEventSeqOp(seq))
	}

	if err := ls.store.Apply(ops); err != nil {
		return nil, err
	}

	for _, req := range outcome.Requests {
		ls.requests.Put(req)
	}
	ls.redemptions.Delete(redemptionID)
	for i, a := range assets {
		if received[i] > 0 {
			if err := ls.accounts.Credit(rd.Receiver, a, received[i]); err != nil {
				// Committed state is correct; only the cached balance is
				// stale. Surface loudly instead of failing the call.
				ls.logger.Error("in-memory credit after commit failed",
					zap.String("receiver", rd.Receiver),
					zap.String("asset", a),
					zap.Error(err))
			}
		}
	}
	ls.eventSeq = seq
	for _, n := range notifications {
		ls.recorder.Publish(n)
	}

	ls.logger.Info("redemption completed",
		zap.String("redemption_id", redemptionID),
		zap.Int("settled_requests", len(outcome.Requests)),
		zap.Int("losses", len(outcome.Losses)))
	return outcome.PerRequestTotals, nil
}

// FulfillWithdrawal pays a settled request out to its owner and deletes it.
// The caller must be the owning user; the global delay must have elapsed, the
// request must be settled, and the treasury must hold enough of every asset.
func (ls *LedgerState) FulfillWithdrawal(caller, requestID string) error {
	normalizedCaller, err := address.Normalize(caller)
	if err != nil {
		return fmt.Errorf("%w: bad caller address: %v", withdrawal.ErrInvalid, err)
	}

	ls.writeMu.Lock()
	defer ls.writeMu.Unlock()

	req, err := ls.requests.Get(requestID)
	if err != nil {
		return err
	}
	if normalizedCaller != req.User {
		return fmt.Errorf("%w: %s does not own withdrawal request %s",
			withdrawal.ErrUnauthorized, normalizedCaller, requestID)
	}

	// Timing is checked before readiness so the two failure classes stay
	// distinct for the caller.
	if !req.DelayElapsed(ls.now().Unix(), ls.delay.Delay()) {
		return fmt.Errorf("%w: request %s created at %d, delay %s",
			withdrawal.ErrDelayNotElapsed, requestID, req.CreatedAt, ls.delay.Delay())
	}
	if !req.Ready {
		return fmt.Errorf("%w: request %s has not been settled", withdrawal.ErrNotReady, requestID)
	}
	funded, err := ls.accounts.HasBalances(ls.caps.Treasury, req.Assets, req.WithdrawableAmounts)
	if err != nil {
		return fmt.Errorf("%w: %v", withdrawal.ErrInvalid, err)
	}
	if !funded {
		return fmt.Errorf("%w: treasury cannot cover request %s yet", withdrawal.ErrNotReady, requestID)
	}

	treasuryAcct, err := ls.accounts.GetAccount(ls.caps.Treasury)
	if err != nil {
		return fmt.Errorf("%w: %v", withdrawal.ErrInvalid, err)
	}
	userAcct, err := ls.accounts.GetAccount(req.User)
	if err != nil {
		return fmt.Errorf("%w: %v", withdrawal.ErrInvalid, err)
	}

	treasuryPost := treasuryAcct.Copy()
	userPost := userAcct.Copy()
	for i, a := range req.Assets {
		treasuryPost.Balances[a] -= req.WithdrawableAmounts[i]
		if treasuryPost.Balances[a] == 0 {
			delete(treasuryPost.Balances, a)
		}
		userPost.Balances[a] += req.WithdrawableAmounts[i]
	}
	treasuryPost.Nonce++

	remaining := removeID(ls.requests.UserIndex(req.User), requestID)
	idxOp, err := storage.PutUserIndexOp(req.User, remaining)
	if err != nil {
		return err
	}
	treasuryOp, err := storage.PutAccountOp(treasuryPost)
	if err != nil {
		return err
	}
	userOp, err := storage.PutAccountOp(userPost)
	if err != nil {
		return err
	}

	notification := events.Notification{
		Seq:       ls.eventSeq + 1,
		Type:      events.TypeRequestFulfilled,
		Timestamp: ls.now().UTC(),
		RequestFulfilled: &events.RequestFulfilled{
			RequestID: requestID,
			User:      req.User,
			Assets:    req.Assets,
			Amounts:   req.WithdrawableAmounts,
		},
	}
	evtOp, err := storage.PutEventOp(notification)
	if err != nil {
		return err
	}

	ops := []storage.BatchOperation{
		storage.DeleteRequestOp(requestID),
		idxOp, treasuryOp, userOp, evtOp,
		storage.PutEventSeqOp(notification.Seq),
	}
	if err := ls.store.Apply(ops); err != nil {
		return err
	}

	if err := ls.accounts.TransferBatch(ls.caps.Treasury, req.User, req.Assets, req.WithdrawableAmounts); err != nil {
		ls.logger.Error("in-memory transfer after commit failed",
			zap.String("request_id", requestID),
			zap.Error(err))
	}
	ls.requests.Delete(requestID)
	ls.eventSeq = notification.Seq
	ls.recorder.Publish(notification)

	ls.logger.Info("withdrawal fulfilled",
		zap.String("request_id", requestID),
		zap.String("user", req.User),
		zap.Int64s("amounts", req.WithdrawableAmounts))
	return nil
}

// SetWithdrawalDelay replaces the global delay. Admin-gated; takes effect
// immediately for every pending request.
func (ls *LedgerState) SetWithdrawalDelay(caller string, delay time.Duration) error {
	if err := ls.requireCaller(caller, ls.caps.Admin, "setWithdrawalDelay"); err != nil {
		return err
	}
	if err := withdrawal.ValidateDelay(delay); err != nil {
		return err
	}

	ls.writeMu.Lock()
	defer ls.writeMu.Unlock()

	old := ls.delay.Delay()
	notification := events.Notification{
		Seq:       ls.eventSeq + 1,
		Type:      events.TypeDelayUpdated,
		Timestamp: ls.now().UTC(),
		DelayUpdated: &events.DelayUpdated{
			OldDelaySeconds: int64(old / time.Second),
			NewDelaySeconds: int64(delay / time.Second),
		},
	}
	evtOp, err := storage.PutEventOp(notification)
	if err != nil {
		return err
	}

	ops := []storage.BatchOperation{
		storage.PutDelayOp(delay),
		evtOp,
		storage.PutEventSeqOp(notification.Seq),
	}
	if err := ls.store.Apply(ops); err != nil {
		return err
	}

	if err := ls.delay.Set(delay); err != nil {
		return err
	}
	ls.eventSeq = notification.Seq
	ls.recorder.Publish(notification)

	ls.logger.Info("withdrawal delay updated",
		zap.Duration("old", old),
		zap.Duration("new", delay))
	return nil
}

// WithdrawalDelay returns the current global delay.
func (ls *LedgerState) WithdrawalDelay() time.Duration {
	return ls.delay.Delay()
}

// CreditTreasury records externally sourced funds landing at the treasury.
// Orchestrator-gated; used when funds arrive outside any redemption flow.
func (ls *LedgerState) CreditTreasury(caller string, assets []string, amounts []int64) error {
	if err := ls.requireCaller(caller, ls.caps.StakingOrchestrator, "creditTreasury"); err != nil {
		return err
	}
	if len(assets) != len(amounts) {
		return fmt.Errorf("%w: assets/amounts length mismatch: %d != %d",
			withdrawal.ErrInvalid, len(assets), len(amounts))
	}
	for i, a := range assets {
		if err := asset.ValidateID(a); err != nil {
			return fmt.Errorf("%w: %v", withdrawal.ErrInvalid, err)
		}
		if amounts[i] < 0 {
			return fmt.Errorf("%w: credit amount for %s cannot be negative: %d",
				withdrawal.ErrInvalid, a, amounts[i])
		}
	}

	ls.writeMu.Lock()
	defer ls.writeMu.Unlock()

	acct, err := ls.accounts.GetAccount(ls.caps.Treasury)
	if err != nil {
		return fmt.Errorf("%w: %v", withdrawal.ErrInvalid, err)
	}
	post := acct.Copy()
	for i, a := range assets {
		post.Balances[a] += amounts[i]
	}

	op, err := storage.PutAccountOp(post)
	if err != nil {
		return err
	}
	if err := ls.store.Apply([]storage.BatchOperation{op}); err != nil {
		return err
	}

	for i, a := range assets {
		if amounts[i] > 0 {
			if err := ls.accounts.Credit(ls.caps.Treasury, a, amounts[i]); err != nil {
				ls.logger.Error("in-memory treasury credit after commit failed",
					zap.String("asset", a), zap.Error(err))
			}
		}
	}

	ls.logger.Info("treasury credited",
		zap.Strings("assets", assets),
		zap.Int64s("amounts", amounts))
	return nil
}

// AccountBalances returns a copy of the address's balances, empty for
// unknown accounts.
func (ls *LedgerState) AccountBalances(addr string) (map[string]int64, error) {
	normalized, err := address.Normalize(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: bad address: %v", withdrawal.ErrInvalid, err)
	}

	balances := make(map[string]int64)
	for a, acct := range ls.accounts.GetAllAccounts() {
		if a == normalized {
			for assetID, amount := range acct.Balances {
				balances[assetID] = amount
			}
			break
		}
	}
	return balances, nil
}

// GetStatus summarizes the ledger.
func (ls *LedgerState) GetStatus() Status {
	ls.writeMu.Lock()
	defer ls.writeMu.Unlock()

	return Status{
		RequestCount:    ls.requests.Count(),
		RedemptionCount: ls.redemptions.Count(),
		AccountCount:    ls.accounts.GetAccountCount(),
		EventCount:      ls.eventSeq,
		DelaySeconds:    int64(ls.delay.Delay() / time.Second),
		StateRoot:       ls.stateRoot(),
	}
}

// stateSnapshot is the deterministic serialization the state root hashes
// over. Slices are sorted by identifier; JSON encodes map keys in sorted
// order, so equal states always produce equal roots.
type stateSnapshot struct {
	Requests     []*withdrawal.Request    `json:"requests"`
	Redemptions  []*withdrawal.Redemption `json:"redemptions"`
	Accounts     []*account.Account       `json:"accounts"`
	DelaySeconds int64                    `json:"delay_seconds"`
	EventSeq     uint64                   `json:"event_seq"`
}

// StateRoot returns the Blake2b-256 commitment to the full ledger state.
func (ls *LedgerState) StateRoot() string {
	ls.writeMu.Lock()
	defer ls.writeMu.Unlock()
	return ls.stateRoot()
}

func (ls *LedgerState) stateRoot() string {
	all := ls.accounts.GetAllAccounts()
	accts := make([]*account.Account, 0, len(all))
	for _, acct := range all {
		accts = append(accts, acct)
	}
	sort.Slice(accts, func(i, j int) bool { return accts[i].Address < accts[j].Address })

	snapshot := stateSnapshot{
		Requests:     ls.requests.All(),
		Redemptions:  ls.redemptions.All(),
		Accounts:     accts,
		DelaySeconds: int64(ls.delay.Delay() / time.Second),
		EventSeq:     ls.eventSeq,
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		ls.logger.Error("state root serialization failed", zap.Error(err))
		return ""
	}
	return hash.HexString(data)
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
