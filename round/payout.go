package round

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/blockberries/pulse"
)

var hundred = decimal.NewFromInt(100)

// EstimateShare returns the projected pool share, as a percentage, of
// a stake placed on bin given the current bin totals:
//
//	stake / (sum(binTotals) + stake) * 100
//
// The result lies in (0, 100] and reaches 100 only when the pool is
// empty. It is advisory: the ledger settles against the totals at
// finalization.
func EstimateShare(binTotals [NumBins]*big.Int, bin uint32, stake *big.Int) (decimal.Decimal, error) {
	if err := checkStake(stake); err != nil {
		return decimal.Zero, err
	}
	if bin >= NumBins {
		return decimal.Zero, &pulse.ValidationError{Field: "bin", Reason: fmt.Sprintf("%d is outside [0,%d)", bin, NumBins)}
	}
	pool := sumBins(binTotals)
	denom := new(big.Int).Add(pool, stake)
	if denom.Sign() == 0 {
		return decimal.Zero, nil
	}
	// Enough precision that a tiny stake never rounds to zero and a
	// dominant stake never rounds up to 100.
	precision := int32(len(denom.String())) + 8
	return decimal.NewFromBigInt(stake, 0).
		Mul(hundred).
		DivRound(decimal.NewFromBigInt(denom, 0), precision), nil
}

// ProjectPayout returns what stake on bin would pay if the round were
// finalized now with bin winning, using the contract's settlement rule:
// net = pool*97/100, payout = stake*net/binTotal, floored at stake.
func ProjectPayout(r Round, bin uint32, stake *big.Int) (*big.Int, error) {
	if err := checkStake(stake); err != nil {
		return nil, err
	}
	if bin >= NumBins {
		return nil, &pulse.ValidationError{Field: "bin", Reason: fmt.Sprintf("%d is outside [0,%d)", bin, NumBins)}
	}
	binTotal := new(big.Int).Add(stake, zeroIfNil(r.BinTotals[bin]))
	pool := new(big.Int).Add(stake, zeroIfNil(r.TotalPool))
	return Payout(pool, binTotal, stake), nil
}

// Payout applies the settlement rule to a winning stake. winningTotal
// must be positive.
func Payout(pool, winningTotal, stake *big.Int) *big.Int {
	net := new(big.Int).Mul(pool, big.NewInt(100-FeePercent))
	net.Quo(net, big.NewInt(100))
	out := new(big.Int).Mul(stake, net)
	out.Quo(out, winningTotal)
	if out.Cmp(stake) < 0 {
		return new(big.Int).Set(stake)
	}
	return out
}

// FormatAmount renders an integer token amount with the given number of
// decimals, e.g. 12345 with 2 decimals is "123.45".
func FormatAmount(amount *big.Int, decimals int32) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -decimals).String()
}

// ParseAmount parses a decimal token amount into integer units.
// Amounts with more fractional digits than decimals are rejected.
func ParseAmount(s string, decimals int32) (*big.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, &pulse.ValidationError{Field: "amount", Reason: err.Error()}
	}
	scaled := d.Shift(decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, &pulse.ValidationError{Field: "amount", Reason: fmt.Sprintf("more than %d decimal places", decimals)}
	}
	return scaled.BigInt(), nil
}

func checkStake(stake *big.Int) error {
	if stake == nil || stake.Sign() <= 0 {
		return &pulse.ValidationError{Field: "stake", Reason: "must be positive"}
	}
	return nil
}

func zeroIfNil(x *big.Int) *big.Int {
	if x == nil {
		return new(big.Int)
	}
	return x
}
