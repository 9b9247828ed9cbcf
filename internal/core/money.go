// Package core provides decimal parsing and formatting utilities.
//
// Monetary amounts are stored as integer cents and quantities as integer
// thousandths of a unit; arithmetic on them goes through shopspring/decimal
// so totals never touch floating point.
package core

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// MoneyScale is the number of decimal places kept for money (cents).
	MoneyScale = 2
	// QuantityScale is the number of decimal places kept for quantities.
	QuantityScale = 3
)

var maxScaled = decimal.NewFromInt(math.MaxInt64)

// ParseDecimal converts a decimal string to an integer scaled by 10^scale.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and rounds
// half-up to scale places. Only strictly positive values are accepted: signs,
// exponents, zero, empty strings and malformed input return ErrInvalidDecimal.
//
// Examples:
//
//	ParseDecimal("12.34", 2)  -> 1234, nil
//	ParseDecimal("12,345", 2) -> 1235, nil (rounds up)
//	ParseDecimal("2.5", 3)    -> 2500, nil
func ParseDecimal(s string, scale int) (int64, error) {
	if scale < 0 || scale > 4 {
		return 0, ErrInvalidDecimal
	}
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" || strings.Count(s, ".") > 1 {
		return 0, ErrInvalidDecimal
	}
	for i := 0; i < len(s); i++ {
		if (s[i] < '0' || s[i] > '9') && s[i] != '.' {
			return 0, ErrInvalidDecimal
		}
	}
	s = strings.TrimSuffix("0"+s, ".")

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidDecimal
	}
	scaled := d.Round(int32(scale)).Shift(int32(scale))
	if scaled.Sign() <= 0 || scaled.Cmp(maxScaled) > 0 {
		return 0, ErrInvalidDecimal
	}
	return scaled.IntPart(), nil
}

// ParseDecimalToCents parses a money amount into cents.
func ParseDecimalToCents(s string) (int64, error) {
	return ParseDecimal(s, MoneyScale)
}

// ParseMoney parses a positive money amount.
func ParseMoney(s string) (Money, error) {
	c, err := ParseDecimal(s, MoneyScale)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: c}, nil
}

// ParseQuantity parses a positive quantity with up to three decimals.
func ParseQuantity(s string) (Quantity, error) {
	m, err := ParseDecimal(s, QuantityScale)
	if err != nil {
		return Quantity{}, ErrInvalidQuantity
	}
	return Quantity{Milli: m}, nil
}

// FormatDecimal renders a scaled integer with exactly scale decimals using a dot.
func FormatDecimal(v int64, scale int) string {
	return decimal.New(v, -int32(scale)).StringFixed(int32(scale))
}

// Amount returns the value in currency units.
func (m Money) Amount() decimal.Decimal {
	return decimal.New(m.Cents, -MoneyScale)
}

// Decimal returns the amount as a plain decimal string ("1234.50").
func (m Money) Decimal() string {
	return m.Amount().StringFixed(MoneyScale)
}

// Float returns the amount in currency units, for charts and spreadsheets only.
func (m Money) Float() float64 {
	return m.Amount().InexactFloat64()
}

// String formats the amount for display, e.g. "₹1,234.50".
func (m Money) String() string {
	whole, frac, _ := strings.Cut(m.Amount().Abs().StringFixed(MoneyScale), ".")
	s := CurrencySymbol + groupThousands(whole) + "." + frac
	if m.Cents < 0 {
		return "-" + s
	}
	return s
}

// Amount returns the quantity in units.
func (q Quantity) Amount() decimal.Decimal {
	return decimal.New(q.Milli, -QuantityScale)
}

// Decimal returns the quantity with trailing zeros trimmed ("2.5", "10").
func (q Quantity) Decimal() string {
	return q.Amount().String()
}

// Float returns the quantity in units, for charts and spreadsheets only.
func (q Quantity) Float() float64 {
	return q.Amount().InexactFloat64()
}

func (q Quantity) String() string {
	return q.Decimal()
}

// Times returns q × unit price, rounded half-up to the cent.
func (q Quantity) Times(price Money) (Money, error) {
	if q.Amount().Sign() < 0 || price.Amount().Sign() < 0 {
		return Money{}, ErrInvalidAmount
	}
	cents := q.Amount().Mul(price.Amount()).Round(MoneyScale).Shift(MoneyScale)
	if cents.Cmp(maxScaled) > 0 {
		return Money{}, ErrAmountOverflow
	}
	return Money{Cents: cents.IntPart()}, nil
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
