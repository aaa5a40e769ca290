package currency

import (
	"fmt"
	"math"
	"strings"
)

// Format renders amount the way the storefront shows prices: ISO code, "." for
// thousands and "," before the cents, which are dropped when zero.
// Format(1250.5, "usd") is "USD 1.250,50".
func Format(amount float64, code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		code = "USD"
	}

	cents := math.Round(amount * 100)
	negative := cents < 0
	if negative {
		cents = -cents
	}

	whole := math.Floor(cents / 100)
	frac := int(cents - whole*100)

	formatted := addThousandsSeparator(fmt.Sprintf("%.0f", whole), ".")
	if frac != 0 {
		formatted += fmt.Sprintf(",%02d", frac)
	}

	result := code + " " + formatted
	if negative {
		result = "-" + result
	}

	return result
}

func addThousandsSeparator(s string, sep string) string {
	n := len(s)
	if n <= 3 {
		return s
	}

	numSeps := (n - 1) / 3
	result := make([]byte, n+numSeps)

	j := len(result) - 1
	for i := n - 1; i >= 0; i-- {
		result[j] = s[i]
		j--

		pos := n - i
		if pos%3 == 0 && i > 0 {
			result[j] = sep[0]
			j--
		}
	}

	return string(result)
}
