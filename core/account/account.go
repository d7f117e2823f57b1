// Package account manages per-address asset balances for the redemption
// ledger: the treasury account that external unstake proceeds land at, and
// the user accounts payouts are transferred to.
package account

import (
	"fmt"
	"sync"

	"github.com/vaultis-labs/go-vaultis/crypto/address"
)

// Account holds the multi-asset balances of one address.
type Account struct {
	Address  string           `json:"address"`
	Balances map[string]int64 `json:"balances"` // asset id -> amount in base units
	Nonce    uint64           `json:"nonce"`
}

// Copy returns a deep copy of the account.
func (a *Account) Copy() *Account {
	if a == nil {
		return nil
	}
	balances := make(map[string]int64, len(a.Balances))
	for asset, amount := range a.Balances {
		balances[asset] = amount
	}
	return &Account{
		Address:  a.Address,
		Balances: balances,
		Nonce:    a.Nonce,
	}
}

// Manager handles account operations. All amounts are validated to stay
// non-negative; a batch transfer either moves every requested asset or nothing.
type Manager struct {
	accounts map[string]*Account
	mu       sync.RWMutex
}

// NewManager creates an empty account manager.
func NewManager() *Manager {
	return &Manager{
		accounts: make(map[string]*Account),
	}
}

// GetAccount retrieves an account, creating a zero-balance one if it does not
// exist. The address must be a valid 0x address.
func (am *Manager) GetAccount(addr string) (*Account, error) {
	normalized, err := address.Normalize(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid address format: %v", err)
	}

	am.mu.RLock()
	if acct, exists := am.accounts[normalized]; exists {
		am.mu.RUnlock()
		return acct, nil
	}
	am.mu.RUnlock()

	am.mu.Lock()
	defer am.mu.Unlock()

	// Double-check after acquiring write lock
	if acct, exists := am.accounts[normalized]; exists {
		return acct, nil
	}

	acct := &Account{
		Address:  normalized,
		Balances: make(map[string]int64),
	}
	am.accounts[normalized] = acct
	return acct, nil
}

// AccountExists checks if an account exists without creating it.
func (am *Manager) AccountExists(addr string) bool {
	normalized, err := address.Normalize(addr)
	if err != nil {
		return false
	}

	am.mu.RLock()
	defer am.mu.RUnlock()

	_, exists := am.accounts[normalized]
	return exists
}

// Balance returns the balance of one asset for an address. Unknown accounts
// and unheld assets report zero.
func (am *Manager) Balance(addr, asset string) (int64, error) {
	normalized, err := address.Normalize(addr)
	if err != nil {
		return 0, fmt.Errorf("invalid address format: %v", err)
	}

	am.mu.RLock()
	defer am.mu.RUnlock()

	acct, exists := am.accounts[normalized]
	if !exists {
		return 0, nil
	}
	return acct.Balances[asset], nil
}

// Credit adds amount of asset to an address.
func (am *Manager) Credit(addr, asset string, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("credit amount cannot be negative: %d", amount)
	}

	acct, err := am.GetAccount(addr)
	if err != nil {
		return fmt.Errorf("failed to get account: %v", err)
	}

	am.mu.Lock()
	defer am.mu.Unlock()

	acct.Balances[asset] += amount
	return nil
}

// Debit removes amount of asset from an address.
func (am *Manager) Debit(addr, asset string, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("debit amount cannot be negative: %d", amount)
	}

	acct, err := am.GetAccount(addr)
	if err != nil {
		return fmt.Errorf("failed to get account: %v", err)
	}

	am.mu.Lock()
	defer am.mu.Unlock()

	if acct.Balances[asset] < amount {
		return fmt.Errorf("insufficient balance of %s: have %d, need %d",
			asset, acct.Balances[asset], amount)
	}

	acct.Balances[asset] -= amount
	if acct.Balances[asset] == 0 {
		delete(acct.Balances, asset)
	}
	return nil
}

// HasBalances reports whether the address holds at least the given amount of
// every listed asset. The two slices must be parallel.
func (am *Manager) HasBalances(addr string, assets []string, amounts []int64) (bool, error) {
	if len(assets) != len(amounts) {
		return false, fmt.Errorf("assets and amounts length mismatch: %d != %d",
			len(assets), len(amounts))
	}

	normalized, err := address.Normalize(addr)
	if err != nil {
		return false, fmt.Errorf("invalid address format: %v", err)
	}

	am.mu.RLock()
	defer am.mu.RUnlock()

	acct, exists := am.accounts[normalized]
	if !exists {
		for _, amount := range amounts {
			if amount > 0 {
				return false, nil
			}
		}
		return true, nil
	}

	for i, asset := range assets {
		if acct.Balances[asset] < amounts[i] {
			return false, nil
		}
	}
	return true, nil
}

// TransferBatch moves every listed asset amount from one address to another
// atomically: all balances are checked before any is touched, so a failure
// leaves both accounts unchanged.
func (am *Manager) TransferBatch(fromAddr, toAddr string, assets []string, amounts []int64) error {
	if len(assets) != len(amounts) {
		return fmt.Errorf("assets and amounts length mismatch: %d != %d",
			len(assets), len(amounts))
	}
	if fromAddr == toAddr {
		return fmt.Errorf("cannot transfer to self")
	}
	for _, amount := range amounts {
		if amount < 0 {
			return fmt.Errorf("transfer amount cannot be negative: %d", amount)
		}
	}

	from, err := am.GetAccount(fromAddr)
	if err != nil {
		return fmt.Errorf("failed to get sender account: %v", err)
	}
	to, err := am.GetAccount(toAddr)
	if err != nil {
		return fmt.Errorf("failed to get receiver account: %v", err)
	}

	am.mu.Lock()
	defer am.mu.Unlock()

	for i, asset := range assets {
		if from.Balances[asset] < amounts[i] {
			return fmt.Errorf("insufficient balance of %s: have %d, need %d",
				asset, from.Balances[asset], amounts[i])
		}
	}

	for i, asset := range assets {
		from.Balances[asset] -= amounts[i]
		if from.Balances[asset] == 0 {
			delete(from.Balances, asset)
		}
		to.Balances[asset] += amounts[i]
	}
	from.Nonce++

	return nil
}

// RestoreAccount installs an account verbatim, replacing any existing entry.
// Used when reloading committed state from storage.
func (am *Manager) RestoreAccount(acct *Account) error {
	if acct == nil {
		return fmt.Errorf("account cannot be nil")
	}
	normalized, err := address.Normalize(acct.Address)
	if err != nil {
		return fmt.Errorf("invalid account address: %v", err)
	}
	for asset, amount := range acct.Balances {
		if amount < 0 {
			return fmt.Errorf("account %s has negative balance of %s: %d",
				acct.Address, asset, amount)
		}
	}

	am.mu.Lock()
	defer am.mu.Unlock()

	restored := acct.Copy()
	restored.Address = normalized
	am.accounts[normalized] = restored
	return nil
}

// GetAllAccounts returns a deep copy of every account.
func (am *Manager) GetAllAccounts() map[string]*Account {
	am.mu.RLock()
	defer am.mu.RUnlock()

	accounts := make(map[string]*Account, len(am.accounts))
	for addr, acct := range am.accounts {
		accounts[addr] = acct.Copy()
	}
	return accounts
}

// GetAccountCount returns the number of tracked accounts.
func (am *Manager) GetAccountCount() int {
	am.mu.RLock()
	defer am.mu.RUnlock()
	return len(am.accounts)
}

// TotalBalance returns the sum of one asset across all accounts.
func (am *Manager) TotalBalance(asset string) int64 {
	am.mu.RLock()
	defer am.mu.RUnlock()

	total := int64(0)
	for _, acct := range am.accounts {
		total += acct.Balances[asset]
	}
	return total
}
