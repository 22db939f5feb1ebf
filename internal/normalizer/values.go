package normalizer

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// UNTYPED TREE ACCESS
// =============================================================================
// Raw documents arrive as the output of encoding/json with UseNumber, or as
// maps built from spreadsheet rows. Every accessor tolerates a missing key
// and returns the zero value.

func object(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func list(v any) ([]any, bool) {
	l, ok := v.([]any)
	return l, ok
}

func field(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func str(m map[string]any, keys ...string) string {
	switch v := field(m, keys...).(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func children(m map[string]any, key string) []any {
	l, _ := list(m[key])
	return l
}

// amount reads a decimal field. ok is false only when a value is present
// but cannot be read as a number.
func amount(m map[string]any, keys ...string) (decimal.Decimal, bool) {
	v := field(m, keys...)
	if v == nil {
		return decimal.Zero, true
	}
	return toDecimal(v)
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(t), true
	case int:
		return decimal.NewFromInt(int64(t)), true
	case int64:
		return decimal.NewFromInt(t), true
	case string:
		return ParseAmount(t)
	case bool:
		return decimal.Zero, false
	default:
		return ParseAmount(fmt.Sprint(t))
	}
}

// ParseAmount reads a human-formatted amount: currency symbols and thousands
// separators are dropped, "(1,200.00)" and trailing "Dr"/"-" mean negative.
// An empty string is zero.
func ParseAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return decimal.Zero, true
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	for _, token := range []string{"₹", "INR", "Rs.", "Rs", "$", ",", " "} {
		s = strings.ReplaceAll(s, token, "")
	}
	upper := strings.ToUpper(s)
	switch {
	case strings.HasSuffix(upper, "DR"):
		negative = !negative
		s = s[:len(s)-2]
	case strings.HasSuffix(upper, "CR"):
		s = s[:len(s)-2]
	case len(s) > 1 && strings.HasSuffix(s, "-") && !strings.HasPrefix(s, "-"):
		negative = !negative
		s = s[:len(s)-1]
	}
	if s == "" {
		return decimal.Zero, true
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	if negative {
		d = d.Neg()
	}
	return d, true
}

// =============================================================================
// DATES
// =============================================================================

// dateLayouts are tried in order. Day-first layouts precede month-first
// ones because Indian statements and returns are day-first.
var dateLayouts = []string{
	"02-01-2006",
	"2-1-2006",
	"2006-01-02",
	"02/01/2006",
	"2/1/2006",
	"2006/01/02",
	"02.01.2006",
	"2.1.2006",
	"02-Jan-2006",
	"2-Jan-2006",
	"02 Jan 2006",
	"02-Jan-06",
	"02/01/06",
	"20060102",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"02/01/2006 15:04:05",
	"01/02/2006",
}

// ParseDate reads any of the accepted date forms, including spreadsheet
// serial numbers. The zero time and false are returned when nothing matches.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if t, ok := parseSerialDate(s); ok {
		return t, true
	}
	return time.Time{}, false
}

// parseSerialDate converts a spreadsheet serial day number. Serial 60 is the
// nonexistent 1900-02-29, so later serials are shifted by one day.
func parseSerialDate(s string) (time.Time, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 1 || f > 2958465 {
		return time.Time{}, false
	}
	days := int(f)
	if days > 59 {
		days--
	}
	base := time.Date(1899, 12, 31, 0, 0, 0, 0, time.UTC)
	return base.AddDate(0, 0, days), true
}

// PeriodStart returns the first day of a return period written MMYYYY.
func PeriodStart(period string) (time.Time, bool) {
	period = strings.TrimSpace(period)
	if len(period) != 6 {
		return time.Time{}, false
	}
	t, err := time.Parse("012006", period)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
