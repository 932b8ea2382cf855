package shared

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var amountPrinter = message.NewPrinter(language.English)

// FormatAmount renders a monetary amount with thousand separators for
// activity-log descriptions and report text.
func FormatAmount(v decimal.Decimal) string {
	f, _ := v.Float64()
	return amountPrinter.Sprintf("%.0f", f)
}
