package statement

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// spreadsheetEpoch is day zero of spreadsheet serial dates. It sits two days
// before 1900-01-01 to absorb the 1900 leap year bug.
var spreadsheetEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// fallbackLayouts are tried in order after the bank's own format. Day and
// month accept a missing leading zero.
var fallbackLayouts = []string{
	"2.1.2006",
	"2/1/2006",
	"2006-1-2",
	"2-1-2006",
	"2.1.06",
	"2/1/06",
}

// DateParseError is returned when a non-empty date cell matches no known format
type DateParseError struct {
	Value string
}

func (e *DateParseError) Error() string {
	return fmt.Sprintf("could not parse date: %s", e.Value)
}

// ParseDate converts a date cell into a calendar date at midnight UTC.
// layout is the bank's preferred Go layout and may be empty. A blank cell
// returns ok=false with no error; callers skip such rows.
func ParseDate(c Cell, layout string) (date time.Time, ok bool, err error) {
	switch c.Kind {
	case KindBlank:
		return time.Time{}, false, nil
	case KindDate:
		return truncateDate(c.Time), true, nil
	case KindNumber:
		if math.IsNaN(c.Number) {
			return time.Time{}, false, nil
		}
		if c.Number >= 10000 {
			return serialDate(int(math.Floor(c.Number))), true, nil
		}
	}

	s := strings.TrimSpace(c.String())
	if s == "" || strings.EqualFold(s, "nan") {
		return time.Time{}, false, nil
	}

	if len(s) > 4 && isDigits(s) {
		days, err := strconv.Atoi(s)
		if err == nil {
			return serialDate(days), true, nil
		}
	}

	layouts := fallbackLayouts
	if layout != "" {
		layouts = append([]string{layout}, fallbackLayouts...)
	}
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return truncateDate(t), true, nil
		}
	}

	return time.Time{}, false, &DateParseError{Value: s}
}

func serialDate(days int) time.Time {
	return spreadsheetEpoch.AddDate(0, 0, days)
}

func truncateDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
