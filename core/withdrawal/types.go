// Package withdrawal holds the domain records and in-memory tables of the
// withdrawal request and redemption settlement engine: pending withdrawal
// requests keyed by caller-supplied identifiers, the per-user request index,
// ephemeral redemption batches, the proportional settlement algorithm and the
// bounded global delay policy.
//
// The package is purely in-memory and free of side effects; atomic commit,
// authorization and persistence are layered on top by core/state.
package withdrawal

import (
	"fmt"
	"time"

	"github.com/vaultis-labs/go-vaultis/core/asset"
	"github.com/vaultis-labs/go-vaultis/crypto/address"
)

// Request is one pending withdrawal. The three amount-bearing slices are
// parallel: Assets[i] was requested at RequestedAmounts[i] and currently
// entitles the owner to WithdrawableAmounts[i]. Withdrawable amounts start
// equal to requested and only ever shrink (slashing reduces entitlement,
// never inflates it).
type Request struct {
	ID                  string   `json:"id"`
	User                string   `json:"user"`
	Assets              []string `json:"assets"`
	RequestedAmounts    []int64  `json:"requested_amounts"`
	WithdrawableAmounts []int64  `json:"withdrawable_amounts"`
	CreatedAt           int64    `json:"created_at"` // unix seconds, ledger time at creation
	Ready               bool     `json:"ready"`
}

// NewRequest builds a request whose withdrawable amounts start equal to the
// requested amounts, not yet ready for payout.
func NewRequest(id, user string, assets []string, requestedAmounts []int64, createdAt int64) *Request {
	withdrawable := make([]int64, len(requestedAmounts))
	copy(withdrawable, requestedAmounts)

	return &Request{
		ID:                  id,
		User:                user,
		Assets:              append([]string(nil), assets...),
		RequestedAmounts:    append([]int64(nil), requestedAmounts...),
		WithdrawableAmounts: withdrawable,
		CreatedAt:           createdAt,
		Ready:               false,
	}
}

// Validate checks the structural invariants of a request record.
func (r *Request) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: request cannot be nil", ErrInvalid)
	}
	if r.ID == "" {
		return fmt.Errorf("%w: request identifier cannot be empty", ErrInvalid)
	}
	if err := address.Validate(r.User); err != nil {
		return fmt.Errorf("%w: bad user address: %v", ErrInvalid, err)
	}
	if len(r.Assets) == 0 {
		return fmt.Errorf("%w: request must name at least one asset", ErrInvalid)
	}
	if len(r.Assets) != len(r.RequestedAmounts) || len(r.Assets) != len(r.WithdrawableAmounts) {
		return fmt.Errorf("%w: assets/amounts length mismatch: %d assets, %d requested, %d withdrawable",
			ErrInvalid, len(r.Assets), len(r.RequestedAmounts), len(r.WithdrawableAmounts))
	}

	seen := make(map[string]bool, len(r.Assets))
	for i, a := range r.Assets {
		if err := asset.ValidateID(a); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		if seen[a] {
			return fmt.Errorf("%w: duplicate asset %s in request", ErrInvalid, a)
		}
		seen[a] = true

		if r.RequestedAmounts[i] < 0 {
			return fmt.Errorf("%w: requested amount for %s cannot be negative: %d",
				ErrInvalid, a, r.RequestedAmounts[i])
		}
		if r.WithdrawableAmounts[i] < 0 {
			return fmt.Errorf("%w: withdrawable amount for %s cannot be negative: %d",
				ErrInvalid, a, r.WithdrawableAmounts[i])
		}
		if r.WithdrawableAmounts[i] > r.RequestedAmounts[i] {
			return fmt.Errorf("%w: withdrawable amount for %s exceeds requested: %d > %d",
				ErrInvalid, a, r.WithdrawableAmounts[i], r.RequestedAmounts[i])
		}
	}

	return nil
}

// Copy returns a deep copy of the request.
func (r *Request) Copy() *Request {
	if r == nil {
		return nil
	}
	return &Request{
		ID:                  r.ID,
		User:                r.User,
		Assets:              append([]string(nil), r.Assets...),
		RequestedAmounts:    append([]int64(nil), r.RequestedAmounts...),
		WithdrawableAmounts: append([]int64(nil), r.WithdrawableAmounts...),
		CreatedAt:           r.CreatedAt,
		Ready:               r.Ready,
	}
}

// AssetIndex returns the position of an asset within the request, or -1.
func (r *Request) AssetIndex(assetID string) int {
	for i, a := range r.Assets {
		if a == assetID {
			return i
		}
	}
	return -1
}

// DelayElapsed reports whether the global delay has passed since creation.
func (r *Request) DelayElapsed(now int64, delay time.Duration) bool {
	return now >= r.CreatedAt+int64(delay/time.Second)
}

// Redemption is one ephemeral batch tied to a single external unstake
// operation. RequestIDs may contain identifiers that never were, or no longer
// are, live user requests; those entries represent internal rebalancing and
// are silently skipped at settlement. PromisedAmounts[i] is the amount of
// Assets[i] the external protocol promised for the whole batch.
type Redemption struct {
	ID              string   `json:"id"`
	RequestIDs      []string `json:"request_ids"`
	UnstakeRefs     []string `json:"unstake_refs"` // opaque handle per external withdrawal operation
	Assets          []string `json:"assets"`
	PromisedAmounts []int64  `json:"promised_amounts"`
	Receiver        string   `json:"receiver"` // address the returned funds land at
}

// Validate checks the structural invariants of a redemption record.
func (rd *Redemption) Validate() error {
	if rd == nil {
		return fmt.Errorf("%w: redemption cannot be nil", ErrInvalid)
	}
	if rd.ID == "" {
		return fmt.Errorf("%w: redemption identifier cannot be empty", ErrInvalid)
	}
	if err := address.Validate(rd.Receiver); err != nil {
		return fmt.Errorf("%w: bad receiver address: %v", ErrInvalid, err)
	}
	if len(rd.Assets) != len(rd.PromisedAmounts) {
		return fmt.Errorf("%w: assets/promised length mismatch: %d != %d",
			ErrInvalid, len(rd.Assets), len(rd.PromisedAmounts))
	}
	for i, a := range rd.Assets {
		if err := asset.ValidateID(a); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		if rd.PromisedAmounts[i] < 0 {
			return fmt.Errorf("%w: promised amount for %s cannot be negative: %d",
				ErrInvalid, a, rd.PromisedAmounts[i])
		}
	}
	return nil
}

// Copy returns a deep copy of the redemption.
func (rd *Redemption) Copy() *Redemption {
	if rd == nil {
		return nil
	}
	return &Redemption{
		ID:              rd.ID,
		RequestIDs:      append([]string(nil), rd.RequestIDs...),
		UnstakeRefs:     append([]string(nil), rd.UnstakeRefs...),
		Assets:          append([]string(nil), rd.Assets...),
		PromisedAmounts: append([]int64(nil), rd.PromisedAmounts...),
		Receiver:        rd.Receiver,
	}
}

// PromisedAmount returns the promised amount for one asset, zero if the asset
// is not part of the redemption.
func (rd *Redemption) PromisedAmount(assetID string) int64 {
	for i, a := range rd.Assets {
		if a == assetID {
			return rd.PromisedAmounts[i]
		}
	}
	return 0
}
