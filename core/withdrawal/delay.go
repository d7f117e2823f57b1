package withdrawal

import (
	"fmt"
	"sync"
	"time"
)

const (
	// MinWithdrawalDelay is the shortest admissible global payout delay.
	MinWithdrawalDelay = 7 * 24 * time.Hour
	// MaxWithdrawalDelay is the longest admissible global payout delay.
	MaxWithdrawalDelay = 30 * 24 * time.Hour
	// DefaultWithdrawalDelay is the delay a fresh ledger starts with.
	DefaultWithdrawalDelay = MinWithdrawalDelay
)

// ValidateDelay rejects delays outside the inclusive admissible range.
func ValidateDelay(d time.Duration) error {
	if d < MinWithdrawalDelay || d > MaxWithdrawalDelay {
		return fmt.Errorf("%w: withdrawal delay %s out of range [%s, %s]",
			ErrInvalid, d, MinWithdrawalDelay, MaxWithdrawalDelay)
	}
	return nil
}

// DelayPolicy holds the single global withdrawal delay. Updates take effect
// immediately for every request, including ones created before the change.
type DelayPolicy struct {
	delay time.Duration
	mu    sync.RWMutex
}

func NewDelayPolicy() *DelayPolicy {
	return &DelayPolicy{delay: DefaultWithdrawalDelay}
}

// Delay returns the current global delay.
func (p *DelayPolicy) Delay() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.delay
}

// Set replaces the global delay after bounds validation.
func (p *DelayPolicy) Set(d time.Duration) error {
	if err := ValidateDelay(d); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.delay = d
	return nil
}
