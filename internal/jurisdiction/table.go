// =============================================================================
// GST Tally Vouchers - Jurisdiction Table
// =============================================================================
//
// One immutable table of GST state and union-territory codes. The table is
// built once and passed to every component that needs it (normalizer,
// validator, aggregator). Nothing else in the module keeps its own copy.
//
// CODES:
//   The first two characters of a GSTIN are the jurisdiction code. Andhra
//   Pradesh registers under 37 since the 2014 bifurcation; 28 is kept only as
//   a legacy code so that old registrations still resolve. Ladakh is 38.
//
// =============================================================================

package jurisdiction

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// State is one jurisdiction entry.
type State struct {
	Code           string
	Name           string
	UnionTerritory bool
	Legacy         bool
}

// Table is a read-only lookup of jurisdiction codes. The zero value is not
// usable; obtain one from Default or New.
type Table struct {
	byCode map[string]State
	byName map[string]State
}

var defaultStates = []State{
	{Code: "01", Name: "Jammu and Kashmir", UnionTerritory: true},
	{Code: "02", Name: "Himachal Pradesh"},
	{Code: "03", Name: "Punjab"},
	{Code: "04", Name: "Chandigarh", UnionTerritory: true},
	{Code: "05", Name: "Uttarakhand"},
	{Code: "06", Name: "Haryana"},
	{Code: "07", Name: "Delhi", UnionTerritory: true},
	{Code: "08", Name: "Rajasthan"},
	{Code: "09", Name: "Uttar Pradesh"},
	{Code: "10", Name: "Bihar"},
	{Code: "11", Name: "Sikkim"},
	{Code: "12", Name: "Arunachal Pradesh"},
	{Code: "13", Name: "Nagaland"},
	{Code: "14", Name: "Manipur"},
	{Code: "15", Name: "Mizoram"},
	{Code: "16", Name: "Tripura"},
	{Code: "17", Name: "Meghalaya"},
	{Code: "18", Name: "Assam"},
	{Code: "19", Name: "West Bengal"},
	{Code: "20", Name: "Jharkhand"},
	{Code: "21", Name: "Odisha"},
	{Code: "22", Name: "Chhattisgarh"},
	{Code: "23", Name: "Madhya Pradesh"},
	{Code: "24", Name: "Gujarat"},
	{Code: "25", Name: "Daman and Diu", UnionTerritory: true, Legacy: true},
	{Code: "26", Name: "Dadra and Nagar Haveli and Daman and Diu", UnionTerritory: true},
	{Code: "27", Name: "Maharashtra"},
	{Code: "28", Name: "Andhra Pradesh (Before Division)", Legacy: true},
	{Code: "29", Name: "Karnataka"},
	{Code: "30", Name: "Goa"},
	{Code: "31", Name: "Lakshadweep", UnionTerritory: true},
	{Code: "32", Name: "Kerala"},
	{Code: "33", Name: "Tamil Nadu"},
	{Code: "34", Name: "Puducherry", UnionTerritory: true},
	{Code: "35", Name: "Andaman and Nicobar Islands", UnionTerritory: true},
	{Code: "36", Name: "Telangana"},
	{Code: "37", Name: "Andhra Pradesh"},
	{Code: "38", Name: "Ladakh", UnionTerritory: true},
	{Code: "97", Name: "Other Territory", UnionTerritory: true},
}

// aliases are extra spellings accepted by CodeForName.
var aliases = map[string]string{
	"orissa":                    "21",
	"pondicherry":               "34",
	"new delhi":                 "07",
	"nct of delhi":              "07",
	"dadra and nagar haveli":    "26",
	"andaman and nicobar":       "35",
	"jammu & kashmir":           "01",
	"andaman & nicobar islands": "35",
}

var (
	defaultOnce  sync.Once
	defaultTable *Table
)

// Default returns the process-wide table. It is safe for concurrent use.
func Default() *Table {
	defaultOnce.Do(func() {
		t, err := New(defaultStates)
		if err != nil {
			panic(err)
		}
		defaultTable = t
	})
	return defaultTable
}

// New builds a table from the given states. Duplicate codes are rejected.
func New(states []State) (*Table, error) {
	t := &Table{
		byCode: make(map[string]State, len(states)),
		byName: make(map[string]State, len(states)+len(aliases)),
	}
	for _, s := range states {
		if len(s.Code) != 2 {
			return nil, fmt.Errorf("invalid jurisdiction code %q for %s", s.Code, s.Name)
		}
		if _, dup := t.byCode[s.Code]; dup {
			return nil, fmt.Errorf("duplicate jurisdiction code %s", s.Code)
		}
		t.byCode[s.Code] = s
		if !s.Legacy {
			t.byName[strings.ToLower(s.Name)] = s
		}
	}
	for alias, code := range aliases {
		if s, ok := t.byCode[code]; ok {
			t.byName[alias] = s
		}
	}
	return t, nil
}

// Lookup returns the state for a 2-digit code.
func (t *Table) Lookup(code string) (State, bool) {
	s, ok := t.byCode[strings.TrimSpace(code)]
	return s, ok
}

// Name returns the state name for a code, or "" when unknown.
func (t *Table) Name(code string) string {
	if s, ok := t.Lookup(code); ok {
		return s.Name
	}
	return ""
}

// Valid reports whether the code is a known jurisdiction.
func (t *Table) Valid(code string) bool {
	_, ok := t.Lookup(code)
	return ok
}

// CodeForName resolves a state name (case-insensitive, aliases accepted) or
// passes through a known 2-digit code.
func (t *Table) CodeForName(nameOrCode string) (string, bool) {
	v := strings.TrimSpace(nameOrCode)
	if v == "" {
		return "", false
	}
	if len(v) == 1 && v[0] >= '0' && v[0] <= '9' {
		v = "0" + v
	}
	if s, ok := t.byCode[v]; ok {
		return s.Code, true
	}
	if s, ok := t.byName[strings.ToLower(v)]; ok {
		return s.Code, true
	}
	return "", false
}

// CodeFromTaxID returns the jurisdiction prefix of a GSTIN, or "" when the
// prefix is not two digits.
func CodeFromTaxID(taxID string) string {
	id := strings.TrimSpace(taxID)
	if len(id) < 2 {
		return ""
	}
	if id[0] < '0' || id[0] > '9' || id[1] < '0' || id[1] > '9' {
		return ""
	}
	return id[:2]
}

// Codes lists all codes in ascending order.
func (t *Table) Codes() []string {
	codes := make([]string, 0, len(t.byCode))
	for c := range t.byCode {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}
