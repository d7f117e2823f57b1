package withdrawal

import (
	"fmt"

	"github.com/vaultis-labs/go-vaultis/core/asset"
)

// Loss records one haircut taken on a single request/asset pair during
// settlement.
type Loss struct {
	RequestID      string `json:"request_id"`
	Asset          string `json:"asset"`
	OriginalAmount int64  `json:"original_amount"`
	SettledAmount  int64  `json:"settled_amount"`
}

// SettlementOutcome is the result of settling one redemption. Requests holds
// the post-settlement copies of every live request the redemption covered,
// ready for payout. PerRequestTotals is parallel to the redemption's
// RequestIDs slice: the total originally-requested amount the covered assets
// represent for that identifier, zero for identifiers that are not live
// requests and for repeated occurrences of the same identifier.
type SettlementOutcome struct {
	Requests         []*Request
	PerRequestTotals []int64
	Losses           []Loss
}

// Settle applies the completion of a redemption to the requests it covers.
// For every asset actually received, the realized-to-promised ratio is
// computed (clamped to 1 when the external protocol over-delivers, identity
// when the redemption promised nothing for the asset) and each covered live
// request's withdrawable amount for that asset is scaled down by it, flooring
// toward zero. Every covered live request is marked ready regardless of
// whether any of its assets were touched.
//
// lookup resolves a request identifier to the current request record;
// identifiers that resolve to nothing are skipped silently. Settle never
// mutates its inputs; updated requests are fresh copies.
func Settle(rd *Redemption, assets []string, received []int64, lookup func(id string) (*Request, bool)) (*SettlementOutcome, error) {
	if len(assets) != len(received) {
		return nil, fmt.Errorf("%w: assets/received length mismatch: %d != %d",
			ErrInvalid, len(assets), len(received))
	}

	ratios := make([]asset.Ratio, len(assets))
	for i, a := range assets {
		if received[i] < 0 {
			return nil, fmt.Errorf("%w: received amount for %s cannot be negative: %d",
				ErrInvalid, a, received[i])
		}
		r, err := asset.NewRatio(received[i], rd.PromisedAmount(a))
		if err != nil {
			return nil, fmt.Errorf("settlement ratio for %s: %v", a, err)
		}
		ratios[i] = r
	}

	outcome := &SettlementOutcome{
		PerRequestTotals: make([]int64, len(rd.RequestIDs)),
	}

	done := make(map[string]bool, len(rd.RequestIDs))
	for pos, id := range rd.RequestIDs {
		if done[id] {
			continue
		}
		done[id] = true

		req, ok := lookup(id)
		if !ok {
			continue
		}
		updated := req.Copy()

		var total int64
		for i, a := range assets {
			idx := updated.AssetIndex(a)
			if idx < 0 {
				continue
			}
			total += updated.RequestedAmounts[idx]

			before := updated.WithdrawableAmounts[idx]
			after, err := ratios[i].Apply(before)
			if err != nil {
				return nil, fmt.Errorf("scaling request %s asset %s: %v", id, a, err)
			}
			if after < before {
				updated.WithdrawableAmounts[idx] = after
				outcome.Losses = append(outcome.Losses, Loss{
					RequestID:      id,
					Asset:          a,
					OriginalAmount: before,
					SettledAmount:  after,
				})
			}
		}

		updated.Ready = true
		outcome.Requests = append(outcome.Requests, updated)
		outcome.PerRequestTotals[pos] = total
	}

	return outcome, nil
}
