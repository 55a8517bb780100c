package money

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// FormatKES renders an amount with thousands separators and no currency
// prefix: whole amounts without decimals, others with two.
func FormatKES(amount decimal.Decimal) string {
	f, _ := amount.Round(2).Float64()
	if amount.Equal(amount.Truncate(0)) {
		return printer.Sprintf("%.0f", f)
	}
	return printer.Sprintf("%.2f", f)
}

// KSh prefixes FormatKES with the currency label used in notifications.
func KSh(amount decimal.Decimal) string {
	return "KSh " + FormatKES(amount)
}
