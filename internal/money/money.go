package money

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrNegativeAmount is returned when a money value or rate would be negative.
var ErrNegativeAmount = errors.New("amount cannot be negative")

// Money is a non-negative fixed-point amount with two decimal places.
// The value is kept in integer cents so a settled amount is never re-rounded.
type Money struct {
	cents int64
}

// New rounds amount to two decimal places (half away from zero).
func New(amount decimal.Decimal) Money {
	return Money{cents: decimalToCents(amount)}
}

// FromCents builds a Money from minor units.
func FromCents(cents int64) Money {
	return Money{cents: cents}
}

// NewFromString parses a decimal string such as "0.75".
func NewFromString(amount string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount format: %w", err)
	}
	if d.IsNegative() {
		return Money{}, ErrNegativeAmount
	}
	return New(d), nil
}

// Zero returns the zero amount.
func Zero() Money {
	return Money{}
}

func (m Money) Cents() int64 {
	return m.cents
}

// Amount returns the value as a decimal.
func (m Money) Amount() decimal.Decimal {
	return centsToDecimal(m.cents)
}

// Add sums two amounts.
func (m Money) Add(other Money) Money {
	return Money{cents: m.cents + other.cents}
}

func (m Money) IsZero() bool {
	return m.cents == 0
}

// String formats the amount with exactly two decimals.
func (m Money) String() string {
	return m.Amount().StringFixed(2)
}

// MarshalJSON encodes the amount as a decimal string so it round-trips exactly.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts a decimal string or a bare JSON number.
func (m *Money) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw = s
	}

	parsed, err := NewFromString(raw)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

func decimalToCents(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func centsToDecimal(cents int64) decimal.Decimal {
	return decimal.NewFromInt(cents).Div(decimal.NewFromInt(100))
}
