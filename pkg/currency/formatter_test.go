package currency

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		amount float64
		code   string
		want   string
	}{
		{0, "USD", "USD 0"},
		{999, "ars", "ARS 999"},
		{1250, "USD", "USD 1.250"},
		{1250.5, "usd", "USD 1.250,50"},
		{1234567.891, "ARS", "ARS 1.234.567,89"},
		{-2500, "USD", "-USD 2.500"},
		{10, "", "USD 10"},
		{0.999, "USD", "USD 1"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.amount, tt.code))
		})
	}
}
