package market

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ParseBRNumber parses a pt-BR formatted number: dot as the thousands
// separator, comma as the decimal separator. Currency and percent
// decorations are tolerated ("R$ 1.234,56", "-0,45%").
func ParseBRNumber(s string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.TrimPrefix(cleaned, "R$")
	cleaned = strings.TrimSuffix(cleaned, "%")
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	if cleaned == "" || cleaned == "-" {
		return decimal.Decimal{}, fmt.Errorf("empty number %q", s)
	}

	cleaned = strings.ReplaceAll(cleaned, ".", "")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid number %q: %w", s, err)
	}
	return d, nil
}

// ParseBRDate parses DD/MM/YYYY, optionally followed by HH:MM.
func ParseBRDate(s string) (time.Time, error) {
	cleaned := strings.TrimSpace(s)

	for _, layout := range []string{"02/01/2006 15:04", "02/01/2006"} {
		if t, err := time.Parse(layout, cleaned); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}
