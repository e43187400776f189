package pricing

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Money is a USD amount in integer cents.
type Money int64

// Dollars builds Money from a whole-dollar amount.
func Dollars(d int64) Money { return Money(d * 100) }

// FromFloat rounds a decimal dollar amount to the nearest cent.
func FromFloat(f float64) Money { return Money(math.Round(f * 100)) }

func (m Money) Cents() int64 { return int64(m) }

func (m Money) MulInt(n int) Money { return m * Money(n) }

// DivRound divides by n rounding half away from zero.
func (m Money) DivRound(n int) Money {
	if n <= 0 {
		return 0
	}
	return Money(divRound(int64(m), int64(n)))
}

// PercentOff reduces m by basisPoints/100 percent, rounding half away from zero.
func (m Money) PercentOff(basisPoints int64) Money {
	return Money(divRound(int64(m)*(10000-basisPoints), 10000))
}

func divRound(num, den int64) int64 {
	if num < 0 {
		return -((-num + den/2) / den)
	}
	return (num + den/2) / den
}

// String renders a plain decimal like "3420.00" or "-40.00".
func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// Display renders for chat replies: thousands separators, cents only when
// non-zero ("17,100", "342.50").
func (m Money) Display() string {
	v := int64(m)
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}

	whole := strconv.FormatInt(v/100, 10)
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}

	if cents := v % 100; cents != 0 {
		return fmt.Sprintf("%s%s.%02d", sign, b.String(), cents)
	}
	return sign + b.String()
}

// UnmarshalYAML accepts plain numbers such as 400 or -35.5.
func (m *Money) UnmarshalYAML(node *yaml.Node) error {
	var f float64
	if err := node.Decode(&f); err != nil {
		return fmt.Errorf("money: %w", err)
	}
	*m = FromFloat(f)
	return nil
}

func (m Money) MarshalYAML() (any, error) {
	return float64(m) / 100, nil
}
