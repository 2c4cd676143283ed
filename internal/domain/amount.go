package domain

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
)

// Amount is a non-negative integer quantity in an asset's smallest unit.
// It is immutable; every arithmetic method returns a new value. The JSON and
// text encodings are decimal strings so no precision is lost across a
// serialize/deserialize boundary.
type Amount struct {
	v *big.Int
}

// NewAmount returns an Amount for n. Negative values clamp to zero.
func NewAmount(n int64) Amount {
	if n < 0 {
		n = 0
	}
	return Amount{v: big.NewInt(n)}
}

// AmountFromBig copies b into a new Amount. Nil and negative values become zero.
func AmountFromBig(b *big.Int) Amount {
	if b == nil || b.Sign() < 0 {
		return Amount{}
	}
	return Amount{v: new(big.Int).Set(b)}
}

// ParseAmount parses a base-10 integer string.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Amount{}, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	b, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Amount{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if b.Sign() < 0 {
		return Amount{}, fmt.Errorf("%w: negative %q", ErrInvalidAmount, s)
	}
	return Amount{v: b}, nil
}

// MustParseAmount is ParseAmount for constants and tests.
func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Amount) big() *big.Int {
	if a.v == nil {
		return new(big.Int)
	}
	return a.v
}

// Big returns a copy of the underlying integer.
func (a Amount) Big() *big.Int { return new(big.Int).Set(a.big()) }

// Uint64 returns the amount as uint64 and false when it does not fit.
func (a Amount) Uint64() (uint64, bool) {
	b := a.big()
	if !b.IsUint64() {
		return 0, false
	}
	return b.Uint64(), true
}

func (a Amount) String() string { return a.big().String() }

func (a Amount) IsZero() bool { return a.big().Sign() == 0 }

func (a Amount) Cmp(b Amount) int { return a.big().Cmp(b.big()) }

func (a Amount) Add(b Amount) Amount {
	return Amount{v: new(big.Int).Add(a.big(), b.big())}
}

// Sub returns a-b, clamped at zero.
func (a Amount) Sub(b Amount) Amount {
	out := new(big.Int).Sub(a.big(), b.big())
	if out.Sign() < 0 {
		out.SetInt64(0)
	}
	return Amount{v: out}
}

// Min returns the smaller of a and b.
func (a Amount) Min(b Amount) Amount {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}

// Max returns the larger of a and b.
func (a Amount) Max(b Amount) Amount {
	if a.Cmp(b) >= 0 {
		return a
	}
	return b
}

// SumAmounts adds all values.
func SumAmounts(values ...Amount) Amount {
	total := new(big.Int)
	for _, v := range values {
		total.Add(total, v.big())
	}
	return Amount{v: total}
}

func (a Amount) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Amount) UnmarshalText(text []byte) error {
	parsed, err := ParseAmount(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func (a Amount) MarshalJSON() ([]byte, error) { return json.Marshal(a.String()) }

// UnmarshalJSON accepts a quoted decimal string. Bare JSON numbers are
// accepted only when they are integers.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		s = string(data)
	}
	return a.UnmarshalText([]byte(s))
}
