package currency

import "github.com/shopspring/decimal"

// rateScale is the number of digits kept when a stored rate is inverted.
const rateScale = 12

// Pair is the canonical storage direction for a currency pair.
// A stored rate means 1 Base = rate Target.
type Pair struct {
	Base   string
	Target string
	// Inverted is set when the requested direction is Target -> Base.
	Inverted bool
	// Identity is set when both sides are the same currency.
	Identity bool
}

// NormalizePair maps a requested (from, to) pair onto the one direction that is
// stored: USD is always the target, other pairs are ordered alphabetically.
func NormalizePair(from, to string) Pair {
	from, to = NormalizeCode(from), NormalizeCode(to)

	switch {
	case from == to:
		return Pair{Base: from, Target: to, Identity: true}
	case to == USD:
		return Pair{Base: from, Target: to}
	case from == USD:
		return Pair{Base: to, Target: from, Inverted: true}
	case from < to:
		return Pair{Base: from, Target: to}
	default:
		return Pair{Base: to, Target: from, Inverted: true}
	}
}

// Key identifies the stored pair, e.g. "EUR-USD".
func (p Pair) Key() string {
	return p.Base + "-" + p.Target
}

// Apply turns a stored rate into the requested direction.
func (p Pair) Apply(stored decimal.Decimal) decimal.Decimal {
	if p.Identity {
		return decimal.NewFromInt(1)
	}
	if !p.Inverted {
		return stored
	}
	return Invert(stored)
}

// Invert returns 1/rate, or zero for a zero rate.
func Invert(rate decimal.Decimal) decimal.Decimal {
	if rate.IsZero() {
		return decimal.Zero
	}
	return decimal.NewFromInt(1).DivRound(rate, rateScale)
}
