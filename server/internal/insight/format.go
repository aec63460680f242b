package insight

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// dec converts v for rendering. NaN and the infinities render as zero since
// decimal cannot represent them.
func dec(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v)
}

// percent renders a fraction as "76.1%".
func percent(v float64) string {
	return dec(v).Shift(2).StringFixed(1) + "%"
}

// money renders an amount with two decimals and thousands separators.
func money(v float64) string {
	s := dec(v).StringFixed(2)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	whole, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, c := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return sign + b.String() + "." + frac
}

// quantity renders a unit count rounded to a whole number.
func quantity(v float64) string {
	return dec(v).Round(0).String()
}

// names joins group keys as "A, B and C".
func names(keys []string) string {
	switch len(keys) {
	case 0:
		return ""
	case 1:
		return keys[0]
	}
	return strings.Join(keys[:len(keys)-1], ", ") + " and " + keys[len(keys)-1]
}
