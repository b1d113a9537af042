// README: Common money value object used across modules.
package types

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DefaultCurrency is assumed when the remote authority omits a currency.
const DefaultCurrency = "INR"

// Money is an amount in minor units (1/100 of the currency unit).
type Money struct {
	Amount   int64
	Currency string
}

func NewMoney(minor int64) Money {
	return Money{Amount: minor, Currency: DefaultCurrency}
}

// Major builds Money from a whole-unit amount, e.g. Major(1200) is 1200.00.
func Major(units int64) Money {
	return NewMoney(units * 100)
}

func (m Money) IsZero() bool { return m.Amount == 0 }

// Less reports whether m is strictly smaller than o. Currencies are not converted.
func (m Money) Less(o Money) bool { return m.Amount < o.Amount }

func (m Money) String() string {
	sign := ""
	a := m.Amount
	if a < 0 {
		sign = "-"
		a = -a
	}
	cur := m.Currency
	if cur == "" {
		cur = DefaultCurrency
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, a/100, a%100, cur)
}

// ParseAmount reads a price or balance that may arrive as a JSON number, a quoted
// decimal string ("1200.50"), or null. ok is false when the field is absent, null or
// blank.
func ParseAmount(raw json.RawMessage) (m Money, ok bool, err error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return Money{}, false, nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return Money{}, false, err
		}
		s = strings.TrimSpace(str)
		if s == "" {
			return Money{}, false, nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Money{}, false, fmt.Errorf("parse amount %q: %w", s, err)
	}
	minor := math.Round(f * 100)
	// float64(math.MaxInt64) is 2^63, the first value that no longer fits.
	if math.IsNaN(minor) || math.Abs(minor) >= float64(math.MaxInt64) {
		return Money{}, false, fmt.Errorf("parse amount %q: out of range", s)
	}
	return NewMoney(int64(minor)), true, nil
}
