package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFormatKES(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "0"},
		{"950", "950"},
		{"12345", "12,345"},
		{"1500000", "1,500,000"},
		{"12345.5", "12,345.50"},
		{"99.99", "99.99"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatKES(decimal.RequireFromString(tt.in)))
		})
	}
}

func TestKSh(t *testing.T) {
	assert.Equal(t, "KSh 12,345", KSh(decimal.NewFromInt(12345)))
}
