package i18n

import "fmt"

// currencySymbols maps ISO 4217 codes to their display symbol
var currencySymbols = map[string]struct {
	symbol string
	prefix bool // true = "€12.50", false = "12.50 DH"
}{
	"MAD": {"DH", false},
	"EUR": {"€", true},
	"USD": {"$", true},
	"GBP": {"£", true},
}

// FormatAmount renders amount with its currency symbol.
//
//	FormatAmount(27.5, "MAD") → "27.50 DH"
//	FormatAmount(27.5, "EUR") → "€27.50"
//	FormatAmount(27.5, "XYZ") → "27.50 XYZ"
func FormatAmount(amount float64, currencyCode string) string {
	info, ok := currencySymbols[currencyCode]
	if !ok {
		return fmt.Sprintf("%.2f %s", amount, currencyCode)
	}
	if info.prefix {
		return fmt.Sprintf("%s%.2f", info.symbol, amount)
	}
	return fmt.Sprintf("%.2f %s", amount, info.symbol)
}
