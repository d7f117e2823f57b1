// Package asset provides asset identifiers and the fixed-point proportional
// math used by redemption settlement.
//
// Amounts are int64 base units, matching the rest of the ledger. Settlement
// ratios are fractions scaled by RatioScale and always rounded toward zero,
// so repeated application can only ever shrink an entitlement, never grow it.
package asset

import (
	"fmt"
	"math/big"

	"github.com/vaultis-labs/go-vaultis/crypto/address"
)

// RatioScale is the fixed-point scale factor for settlement ratios (1e18).
var RatioScale = big.NewInt(1_000_000_000_000_000_000)

// Ratio is a fixed-point fraction in [0, RatioScale].
type Ratio struct {
	scaled *big.Int
}

// OneRatio is the identity ratio (exactly 1.0).
func OneRatio() Ratio {
	return Ratio{scaled: new(big.Int).Set(RatioScale)}
}

// NewRatio computes received/promised at RatioScale precision, floored toward
// zero and clamped to 1. A zero promised amount yields the identity ratio so
// settlement of an empty entitlement is a no-op rather than a division by zero.
// A received amount above promised is clamped: surplus from the external
// protocol never inflates entitlement.
func NewRatio(received, promised int64) (Ratio, error) {
	if received < 0 {
		return Ratio{}, fmt.Errorf("received amount cannot be negative: %d", received)
	}
	if promised < 0 {
		return Ratio{}, fmt.Errorf("promised amount cannot be negative: %d", promised)
	}
	if promised == 0 {
		return OneRatio(), nil
	}
	if received >= promised {
		return OneRatio(), nil
	}

	scaled := new(big.Int).Mul(big.NewInt(received), RatioScale)
	scaled.Quo(scaled, big.NewInt(promised))
	return Ratio{scaled: scaled}, nil
}

// IsOne reports whether the ratio is exactly 1.0.
func (r Ratio) IsOne() bool {
	return r.scaled != nil && r.scaled.Cmp(RatioScale) == 0
}

// Scaled returns the raw fixed-point value.
func (r Ratio) Scaled() *big.Int {
	if r.scaled == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(r.scaled)
}

// Apply multiplies amount by the ratio, flooring toward zero. The product is
// computed in big integers so int64 amounts cannot overflow mid-calculation.
func (r Ratio) Apply(amount int64) (int64, error) {
	if amount < 0 {
		return 0, fmt.Errorf("amount cannot be negative: %d", amount)
	}
	if r.scaled == nil {
		return 0, fmt.Errorf("ratio is not initialized")
	}
	if r.IsOne() {
		return amount, nil
	}

	product := new(big.Int).Mul(big.NewInt(amount), r.scaled)
	product.Quo(product, RatioScale)

	if !product.IsInt64() {
		return 0, fmt.Errorf("settled amount overflows int64")
	}
	return product.Int64(), nil
}

// ValidateID checks an asset identifier. Assets are addressed the same way as
// accounts: 20-byte 0x-hex token addresses.
func ValidateID(id string) error {
	if err := address.Validate(id); err != nil {
		return fmt.Errorf("invalid asset identifier %q: %v", id, err)
	}
	return nil
}
