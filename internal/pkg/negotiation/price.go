package negotiation

import (
	"bytes"

	"github.com/shopspring/decimal"
)

// maxPrice is the largest value a decimal(14,2) column holds.
var maxPrice = decimal.RequireFromString("999999999999.99")

// Price is an amount in a request body. It must be a JSON number; quoted
// strings are rejected.
type Price struct {
	decimal.Decimal
}

func NewPrice(d decimal.Decimal) *Price {
	return &Price{Decimal: d}
}

func (p *Price) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] == '"' {
		return invalid("Invalid price: must be a number")
	}
	if err := p.Decimal.UnmarshalJSON(data); err != nil {
		return invalid("Invalid price: must be a number")
	}
	return nil
}

// checkPrice keeps amounts storable without rounding.
func checkPrice(d decimal.Decimal) error {
	switch {
	case d.IsNegative():
		return invalid("Invalid price: must be a positive number")
	case !d.Truncate(2).Equal(d):
		return invalid("Invalid price: at most 2 decimal places are allowed")
	case d.GreaterThan(maxPrice):
		return invalid("Invalid price: must not exceed %s", maxPrice.StringFixed(2))
	}
	return nil
}
