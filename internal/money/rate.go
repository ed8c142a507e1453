package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Rate is a price per second of metered time. It keeps full precision;
// rounding happens only when a charge is settled.
type Rate struct {
	perSecond decimal.Decimal
}

// ParseRate parses a per-second price such as "0.05".
func ParseRate(s string) (Rate, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Rate{}, fmt.Errorf("invalid rate format: %w", err)
	}
	if d.IsNegative() {
		return Rate{}, ErrNegativeAmount
	}
	return Rate{perSecond: d}, nil
}

// MustParseRate is ParseRate for constants and tests.
func MustParseRate(s string) Rate {
	r, err := ParseRate(s)
	if err != nil {
		panic(err)
	}
	return r
}

// Charge settles seconds of metered time at this rate, rounded to two decimals.
func (r Rate) Charge(seconds int64) Money {
	if seconds <= 0 {
		return Zero()
	}
	return New(r.perSecond.Mul(decimal.NewFromInt(seconds)))
}

func (r Rate) String() string {
	return r.perSecond.String()
}
