package usecase

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// currencyRates is a static rate table, units per USD
var currencyRates = map[string]float64{
	"USD": 1,
	"EUR": 0.93,
	"GBP": 0.79,
	"JPY": 149.50,
	"CNY": 7.24,
	"INR": 83.10,
	"CAD": 1.36,
	"AUD": 1.52,
	"BRL": 5.02,
	"KRW": 1338.00,
}

var convertPattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s+([A-Za-z]{3})\s+(?i:to)\s+([A-Za-z]{3})$`)

// convertCurrency parses "<number> <CODE> to <CODE>" and converts using the
// static rate table. The reply reports the result rounded to 2 decimal
// places and the unit rate rounded to 4.
func convertCurrency(arg string) string {
	m := convertPattern.FindStringSubmatch(strings.TrimSpace(arg))
	if m == nil {
		return "Usage: convert <amount> <FROM> to <TO>, e.g. convert 100 USD to EUR"
	}

	amount, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return "Usage: convert <amount> <FROM> to <TO>, e.g. convert 100 USD to EUR"
	}

	from := strings.ToUpper(m[2])
	to := strings.ToUpper(m[3])

	fromRate, ok := currencyRates[from]
	if !ok {
		return fmt.Sprintf("Unsupported currency %s. Supported: %s", from, supportedCurrencies())
	}
	toRate, ok := currencyRates[to]
	if !ok {
		return fmt.Sprintf("Unsupported currency %s. Supported: %s", to, supportedCurrencies())
	}

	rate := toRate / fromRate
	result := amount * rate
	return fmt.Sprintf("%.2f %s = %.2f %s (rate %.4f)", amount, from, result, to, rate)
}

func supportedCurrencies() string {
	codes := make([]string, 0, len(currencyRates))
	for code := range currencyRates {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return strings.Join(codes, ", ")
}
