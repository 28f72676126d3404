package payout

import (
	"errors"

	"event-settlement/internal/store"

	"github.com/shopspring/decimal"
)

// HouseCutPercent is what the treasury keeps from a pot before splitting.
const HouseCutPercent = 10

var maxAmount = decimal.NewFromInt(1 << 62)

var (
	ErrMissingRate = errors.New("missing_conversion_rate")
	ErrInvalidRate = errors.New("invalid_conversion_rate")
	ErrOverflow    = errors.New("amount_overflow")
)

// Plan is the computed distribution for one settlement. Gross, HouseCut and
// Distributable are in the event currency; Shares are in ledger units.
type Plan struct {
	Currency      string
	Gross         int64
	HouseCut      int64
	Distributable int64
	Native        int64
	Rate          decimal.Decimal
	Shares        []int64
}

// CommittedPot sums committed fees across all entries, winners and losers.
func CommittedPot(entries []store.Entry) (int64, error) {
	var pot int64
	limit := maxAmount.IntPart()
	for _, e := range entries {
		if e.FeeState != store.FeeCommitted {
			continue
		}
		if e.CommittedAmount < 0 || pot > limit-e.CommittedAmount {
			return 0, ErrOverflow
		}
		pot += e.CommittedAmount
	}
	return pot, nil
}

// HouseCut is floor(pot * HouseCutPercent / 100), computed without the
// intermediate product.
func HouseCut(pot int64) int64 {
	if pot <= 0 {
		return 0
	}
	return pot/100*HouseCutPercent + pot%100*HouseCutPercent/100
}

// Divide splits total into k shares; the remainder goes to the first share.
func Divide(total int64, k int) []int64 {
	if k <= 0 {
		return nil
	}
	shares := make([]int64, k)
	each := total / int64(k)
	for i := range shares {
		shares[i] = each
	}
	shares[0] += total - each*int64(k)
	return shares
}

// ToNative converts minor units of a fiat currency into ledger units using
// rate (ledger units per minor unit), rounding down.
func ToNative(amount int64, rate decimal.Decimal) (int64, error) {
	if !rate.IsPositive() {
		return 0, ErrInvalidRate
	}
	native := decimal.NewFromInt(amount).Mul(rate).Floor()
	if native.GreaterThan(maxAmount) {
		return 0, ErrOverflow
	}
	return native.IntPart(), nil
}

// Compute builds the payout plan for winners entries of ev. rate is required
// when the event is priced in a fiat currency.
func Compute(ev store.Event, entries []store.Entry, winners int, rate *decimal.Decimal) (Plan, error) {
	plan := Plan{Currency: store.NativeCurrency}
	switch ev.Mode {
	case store.ModePot:
		pot, err := CommittedPot(entries)
		if err != nil {
			return Plan{}, err
		}
		plan.Gross = pot
		plan.HouseCut = HouseCut(plan.Gross)
	default:
		plan.Gross = ev.PrizeAmount
	}
	plan.Distributable = plan.Gross - plan.HouseCut

	plan.Native = plan.Distributable
	if ev.IsFiat() {
		if rate == nil {
			return Plan{}, ErrMissingRate
		}
		native, err := ToNative(plan.Distributable, *rate)
		if err != nil {
			return Plan{}, err
		}
		plan.Native = native
		plan.Rate = *rate
	}
	if winners > 0 {
		plan.Shares = Divide(plan.Native, winners)
	}
	return plan, nil
}

// Refund converts a single committed fee into ledger units.
func Refund(ev store.Event, amount int64, rate *decimal.Decimal) (int64, error) {
	if !ev.IsFiat() {
		return amount, nil
	}
	if rate == nil {
		return 0, ErrMissingRate
	}
	return ToNative(amount, *rate)
}
