package statement

import (
	"math"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/lox/bank-statement-sync/internal/types"
	"github.com/shopspring/decimal"
)

// ParseAmount converts a Turkish-locale amount cell ("1.234,56", "+386,50 TL",
// "(1.000,00)", "₺1.500,00") into a non-negative magnitude and a direction.
// It never fails: anything it cannot read is logged and returned as zero,
// which the caller drops.
func ParseAmount(c Cell, logger *log.Logger) (decimal.Decimal, types.Direction) {
	switch c.Kind {
	case KindBlank:
		return decimal.Zero, types.DirectionExpense
	case KindNumber:
		if math.IsNaN(c.Number) || math.IsInf(c.Number, 0) {
			return decimal.Zero, types.DirectionExpense
		}
		return decimal.NewFromFloat(c.Number).Abs(), types.DirectionExpense
	case KindDate:
		logger.Warn("Could not parse amount", "value", c.String())
		return decimal.Zero, types.DirectionExpense
	}

	s := strings.TrimSpace(c.Text)
	if s == "" || strings.EqualFold(s, "nan") {
		return decimal.Zero, types.DirectionExpense
	}

	direction := types.DirectionExpense
	switch {
	case strings.HasPrefix(s, "+"):
		direction = types.DirectionIncome
		s = s[1:]
	case strings.HasPrefix(s, "-"):
		s = s[1:]
	}
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		direction = types.DirectionExpense
		s = s[1 : len(s)-1]
	}

	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' || r == '-' {
			return r
		}
		return -1
	}, s)

	amount, err := decimal.NewFromString(normalizeSeparators(cleaned))
	if err != nil {
		logger.Warn("Could not parse amount", "value", c.Text, "error", err)
		return decimal.Zero, types.DirectionExpense
	}

	return amount.Abs(), direction
}

// normalizeSeparators rewrites a number using "." and "," in either role into
// one that uses "." as the only decimal separator
func normalizeSeparators(s string) string {
	switch commas := strings.Count(s, ","); {
	case commas == 1:
		s = strings.ReplaceAll(s, ".", "")
		return strings.Replace(s, ",", ".", 1)
	case commas > 1:
		s = strings.ReplaceAll(s, ",", "")
		return strings.ReplaceAll(s, ".", "")
	}

	switch dots := strings.Count(s, "."); {
	case dots > 1:
		last := strings.LastIndex(s, ".")
		return strings.ReplaceAll(s[:last], ".", "") + s[last:]
	case dots == 1:
		// a single dot followed by three digits is a thousands separator
		if len(s)-strings.Index(s, ".")-1 > 2 {
			return strings.ReplaceAll(s, ".", "")
		}
	}
	return s
}
