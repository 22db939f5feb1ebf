// =============================================================================
// GST Tally Vouchers - Transformation Engine
// =============================================================================
//
// Rewrites bank statement cell values before they reach the normalizer. Each
// bank profile can carry its own rules, keyed by bank row field:
//
//   date, narration, debit_amount, credit_amount, running_balance
//
// TRANSFORMATION TYPES:
//   - String manipulations (prepend, append, trim, case conversion)
//   - Substring and regular expression replacements
//   - Date layout conversions
//   - Amount sign flips
//   - Lookup table replacements
//   - Fallbacks for empty cells
//
// COMMON USE CASES:
//   - Statements printing dates as "01 Apr 24" or "2024.04.01"
//   - Narrations padded with reference noise ("UPI/123456789/...")
//   - Accounts that print withdrawals as negative deposits
//
// Rules are validated once, when the Transformer is built, so a bad regular
// expression or an unknown type fails before any file is converted.
//
// =============================================================================

package converter

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ginjaninja78/gst-tally-vouchers/internal/config"
	"github.com/ginjaninja78/gst-tally-vouchers/internal/normalizer"
)

// =============================================================================
// TRANSFORMER
// =============================================================================

// Transformer applies the transformation rules of one bank profile.
type Transformer struct {
	rules map[string][]compiledAction
}

type compiledAction struct {
	config.TransformationAction
	re *regexp.Regexp
}

var whitespace = regexp.MustCompile(`\s+`)

// NewTransformer validates rules and returns a Transformer for them. Rules
// for the same field are applied in the order they are listed.
func NewTransformer(rules []config.TransformationRule) (*Transformer, error) {
	t := &Transformer{rules: make(map[string][]compiledAction)}
	for _, rule := range rules {
		field := strings.ToLower(strings.TrimSpace(rule.Field))
		if field == "" {
			return nil, fmt.Errorf("transformation rule has no field")
		}
		for _, action := range rule.Actions {
			compiled, err := compile(action)
			if err != nil {
				return nil, fmt.Errorf("field '%s': %w", rule.Field, err)
			}
			t.rules[field] = append(t.rules[field], compiled)
		}
	}
	return t, nil
}

func compile(action config.TransformationAction) (compiledAction, error) {
	c := compiledAction{TransformationAction: action}
	if !knownTypes[action.Type] {
		return c, fmt.Errorf("unknown transformation type: %s", action.Type)
	}
	if action.Type == "regex_replace" {
		re, err := regexp.Compile(action.Find)
		if err != nil {
			return c, fmt.Errorf("invalid regex pattern: %w", err)
		}
		c.re = re
	}
	if action.Type == "format_date" && action.Find == "" {
		return c, fmt.Errorf("format_date needs the source layout in 'find'")
	}
	return c, nil
}

var knownTypes = map[string]bool{
	"prepend_string":       true,
	"append_string":        true,
	"trim":                 true,
	"trim_left":            true,
	"trim_right":           true,
	"uppercase":            true,
	"lowercase":            true,
	"replace":              true,
	"regex_replace":        true,
	"normalize_whitespace": true,
	"format_date":          true,
	"negate_amount":        true,
	"lookup":               true,
	"lookup_with_default":  true,
	"if_empty_use_default": true,
	"if_empty_use_field":   true,
}

// Transform applies every rule for field to value.
//
// PARAMETERS:
//   - field: The bank row field being transformed.
//   - value: The current value of the cell.
//   - source: The statement row as header -> value, for if_empty_use_field.
func (t *Transformer) Transform(field, value string, source map[string]string) (string, error) {
	if t == nil {
		return value, nil
	}
	result := value
	for _, action := range t.rules[field] {
		var err error
		result, err = action.apply(result, source)
		if err != nil {
			return "", fmt.Errorf("transformation '%s' failed: %w", action.Type, err)
		}
	}
	return result, nil
}

// HasRules reports whether any rule targets field.
func (t *Transformer) HasRules(field string) bool {
	return t != nil && len(t.rules[field]) > 0
}

// =============================================================================
// TRANSFORMATION FUNCTIONS
// =============================================================================

func (a compiledAction) apply(value string, source map[string]string) (string, error) {
	switch a.Type {

	// =========================================================================
	// STRING MANIPULATIONS
	// =========================================================================

	case "prepend_string":
		return a.Value + value, nil

	case "append_string":
		return value + a.Value, nil

	case "trim":
		return strings.TrimSpace(value), nil

	case "trim_left":
		if a.Value != "" {
			return strings.TrimLeft(value, a.Value), nil
		}
		return strings.TrimLeft(value, " \t\n\r"), nil

	case "trim_right":
		if a.Value != "" {
			return strings.TrimRight(value, a.Value), nil
		}
		return strings.TrimRight(value, " \t\n\r"), nil

	case "uppercase":
		return strings.ToUpper(value), nil

	case "lowercase":
		return strings.ToLower(value), nil

	case "replace":
		// EXAMPLE:
		//   Input: "NEFT-CR-SHARMA"
		//   Action: replace with find "-" and value " "
		//   Output: "NEFT CR SHARMA"
		if a.Find == "" {
			return value, nil
		}
		return strings.ReplaceAll(value, a.Find, a.Value), nil

	case "regex_replace":
		// EXAMPLE:
		//   Input: "UPI/412345678901/GUPTA STORES"
		//   Action: regex_replace with find "^UPI/\d+/" and value "UPI "
		//   Output: "UPI GUPTA STORES"
		return a.re.ReplaceAllString(value, a.Value), nil

	case "normalize_whitespace":
		return strings.TrimSpace(whitespace.ReplaceAllString(value, " ")), nil

	// =========================================================================
	// DATES
	// =========================================================================

	case "format_date":
		// Find is the source layout, Value the target (default 2006-01-02).
		//
		// EXAMPLE:
		//   Input: "01 Apr 24"
		//   Action: format_date with find "02 Jan 06"
		//   Output: "2024-04-01"
		if strings.TrimSpace(value) == "" {
			return value, nil
		}
		parsed, err := time.Parse(a.Find, strings.TrimSpace(value))
		if err != nil {
			return "", fmt.Errorf("date '%s' does not match layout '%s'", value, a.Find)
		}
		layout := a.Value
		if layout == "" {
			layout = "2006-01-02"
		}
		return parsed.Format(layout), nil

	// =========================================================================
	// AMOUNTS
	// =========================================================================

	case "negate_amount":
		// EXAMPLE:
		//   Input: "-2,000.00"
		//   Output: "2000.00"
		if strings.TrimSpace(value) == "" {
			return value, nil
		}
		d, ok := normalizer.ParseAmount(value)
		if !ok {
			return "", fmt.Errorf("'%s' is not an amount", value)
		}
		return d.Neg().StringFixed(2), nil

	// =========================================================================
	// LOOKUP TABLE REPLACEMENTS
	// =========================================================================

	case "lookup":
		if replacement, exists := a.LookupTable[value]; exists {
			return replacement, nil
		}
		return value, nil

	case "lookup_with_default":
		if replacement, exists := a.LookupTable[value]; exists {
			return replacement, nil
		}
		return a.Value, nil

	// =========================================================================
	// FALLBACKS
	// =========================================================================

	case "if_empty_use_default":
		if strings.TrimSpace(value) == "" {
			return a.Value, nil
		}
		return value, nil

	case "if_empty_use_field":
		// Value names a statement header, such as "Remarks".
		if strings.TrimSpace(value) == "" {
			for header, other := range source {
				if strings.EqualFold(header, a.Value) {
					return other, nil
				}
			}
		}
		return value, nil
	}

	return "", fmt.Errorf("unknown transformation type: %s", a.Type)
}
