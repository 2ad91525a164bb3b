package core

import (
	"log/slog"
	"math/big"

	"github.com/shopspring/decimal"
)

// Entitlement is the gating decision for one balance lookup. All comparison
// arithmetic is exact integer math; decimals only matter for display.
type Entitlement struct {
	RawBalance   *big.Int
	ThresholdRaw *big.Int
	Decimals     int32
	HasAccess    bool
}

// Evaluate compares a raw on-chain balance against a human-readable threshold
// scaled by the token's decimals. A balance exactly equal to the threshold
// grants access. A nil or negative balance from the collaborator is clamped
// to zero with a warning rather than propagated, so a broken balance source
// degrades to a denial.
func Evaluate(raw *big.Int, thresholdHuman decimal.Decimal, decimals int32) Entitlement {
	if raw == nil || raw.Sign() < 0 {
		slog.Warn("clamping invalid raw balance to zero", "raw", raw)
		raw = new(big.Int)
	}

	thresholdRaw := thresholdHuman.Shift(decimals).BigInt()

	return Entitlement{
		RawBalance:   raw,
		ThresholdRaw: thresholdRaw,
		Decimals:     decimals,
		HasAccess:    raw.Cmp(thresholdRaw) >= 0,
	}
}

// Balance returns the raw balance in human-readable units.
func (e Entitlement) Balance() decimal.Decimal {
	return ToHuman(e.RawBalance, e.Decimals)
}

// Threshold returns the threshold in human-readable units.
func (e Entitlement) Threshold() decimal.Decimal {
	return ToHuman(e.ThresholdRaw, e.Decimals)
}

// ToHuman converts a raw integer amount to its display value by shifting the
// decimal point left. Exact for any non-negative decimals.
func ToHuman(raw *big.Int, decimals int32) decimal.Decimal {
	if raw == nil {
		raw = new(big.Int)
	}
	return decimal.NewFromBigInt(raw, -decimals)
}
