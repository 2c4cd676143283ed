// Package quotemath isolates every non-integer computation of the settlement
// engine. Inputs and outputs are integer base-unit amounts or
// shopspring/decimal values; float64 is only used inside ExpDecay and never
// leaves this package. Conversions that produce an amount to spend or require
// round up; conversions that produce an available balance round down.
package quotemath

import (
	"math"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/domain"
)

// BpsDenominator is 100% in basis points.
const BpsDenominator = 10_000

// divPrecision is the number of fractional digits kept by divisions.
const divPrecision = 24

func scale(decimals int32) decimal.Decimal {
	return decimal.New(1, decimals)
}

// ToUnitsCeil converts a human amount into base units, rounding up.
func ToUnitsCeil(human decimal.Decimal, decimals int32) domain.Amount {
	if !human.IsPositive() {
		return domain.NewAmount(0)
	}
	return domain.AmountFromBig(human.Mul(scale(decimals)).Ceil().BigInt())
}

// ToUnitsFloor converts a human amount into base units, rounding down.
func ToUnitsFloor(human decimal.Decimal, decimals int32) domain.Amount {
	if !human.IsPositive() {
		return domain.NewAmount(0)
	}
	return domain.AmountFromBig(human.Mul(scale(decimals)).Floor().BigInt())
}

// FromUnits converts base units into a human amount.
func FromUnits(units domain.Amount, decimals int32) decimal.Decimal {
	return decimal.NewFromBigInt(units.Big(), -decimals)
}

// Convert turns an amount of one asset into another at price (target human
// units per one source human unit), rounding up.
func Convert(units domain.Amount, fromDecimals int32, price decimal.Decimal, toDecimals int32) domain.Amount {
	return ToUnitsCeil(FromUnits(units, fromDecimals).Mul(price), toDecimals)
}

// ConvertInverse turns an amount of one asset into another when price is
// quoted the other way round (source human units per one target unit),
// rounding up.
func ConvertInverse(units domain.Amount, fromDecimals int32, price decimal.Decimal, toDecimals int32) domain.Amount {
	if !price.IsPositive() {
		return domain.NewAmount(0)
	}
	human := FromUnits(units, fromDecimals).DivRound(price, divPrecision)
	return ToUnitsCeil(human, toDecimals)
}

// ApplyBpsUp returns amount * (1 + bps/10000), rounded up.
func ApplyBpsUp(amount domain.Amount, bps int64) domain.Amount {
	num := new(big.Int).Mul(amount.Big(), big.NewInt(BpsDenominator+bps))
	return domain.AmountFromBig(ceilDiv(num, big.NewInt(BpsDenominator)))
}

// ApplyBpsDown returns amount * (1 - bps/10000), rounded down.
func ApplyBpsDown(amount domain.Amount, bps int64) domain.Amount {
	if bps >= BpsDenominator {
		return domain.NewAmount(0)
	}
	num := new(big.Int).Mul(amount.Big(), big.NewInt(BpsDenominator-bps))
	return domain.AmountFromBig(new(big.Int).Quo(num, big.NewInt(BpsDenominator)))
}

// FractionBps returns amount * bps / 10000, rounded up.
func FractionBps(amount domain.Amount, bps int64) domain.Amount {
	if bps <= 0 {
		return domain.NewAmount(0)
	}
	num := new(big.Int).Mul(amount.Big(), big.NewInt(bps))
	return domain.AmountFromBig(ceilDiv(num, big.NewInt(BpsDenominator)))
}

// DiscountFactor returns 1 - bps/10000 as a decimal.
func DiscountFactor(bps int64) decimal.Decimal {
	return decimal.NewFromInt(BpsDenominator - bps).Div(decimal.NewFromInt(BpsDenominator))
}

// Percent returns part/whole as a percentage with two decimals, clamped to
// [0, 100] so rounding never shows a negative or >100% figure.
func Percent(part, whole domain.Amount) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	p := decimal.NewFromBigInt(part.Big(), 0).
		Mul(decimal.NewFromInt(100)).
		DivRound(decimal.NewFromBigInt(whole.Big(), 0), 2)
	if p.IsNegative() {
		return decimal.Zero
	}
	if p.GreaterThan(decimal.NewFromInt(100)) {
		return decimal.NewFromInt(100)
	}
	return p
}

// ExpDecay returns max * e^(-ln(max) * progress), rounded to the nearest
// integer. progress is clamped to [0, 1]. When max <= 1 the curve is flat.
func ExpDecay(max decimal.Decimal, progress decimal.Decimal) decimal.Decimal {
	if !max.IsPositive() {
		return decimal.Zero
	}
	p := Clamp01(progress).InexactFloat64()
	m := max.InexactFloat64()
	k := math.Log(m)
	if k < 0 {
		k = 0
	}
	v := m * math.Exp(-k*p)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v).Round(0)
}

// Clamp01 clamps d to [0, 1].
func Clamp01(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	if d.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.NewFromInt(1)
	}
	return d
}

func ceilDiv(num, den *big.Int) *big.Int {
	q, r := new(big.Int).QuoRem(num, den, new(big.Int))
	if r.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}
