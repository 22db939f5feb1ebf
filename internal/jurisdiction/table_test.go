package jurisdiction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTableCorrectedCodes(t *testing.T) {
	table := Default()

	code, ok := table.CodeForName("Andhra Pradesh")
	require.True(t, ok)
	assert.Equal(t, "37", code)

	code, ok = table.CodeForName("ladakh")
	require.True(t, ok)
	assert.Equal(t, "38", code)

	assert.Equal(t, "Himachal Pradesh", table.Name("02"))
	assert.True(t, table.Valid("28"), "legacy code still resolves")
}

func TestCodeForNameAcceptsCodesAndAliases(t *testing.T) {
	table := Default()

	for input, want := range map[string]string{
		"27":          "27",
		"7":           "07",
		"Orissa":      "21",
		"Pondicherry": "34",
		" Karnataka ": "29",
	} {
		got, ok := table.CodeForName(input)
		assert.True(t, ok, input)
		assert.Equal(t, want, got, input)
	}

	_, ok := table.CodeForName("Atlantis")
	assert.False(t, ok)
}

func TestCodeFromTaxID(t *testing.T) {
	assert.Equal(t, "27", CodeFromTaxID("27AAAPL1234C1Z5"))
	assert.Equal(t, "", CodeFromTaxID("X"))
	assert.Equal(t, "", CodeFromTaxID("AB1234"))
}

func TestNewRejectsDuplicates(t *testing.T) {
	_, err := New([]State{{Code: "01", Name: "A"}, {Code: "01", Name: "B"}})
	assert.Error(t, err)

	_, err = New([]State{{Code: "1", Name: "A"}})
	assert.Error(t, err)
}

func TestUnionTerritoriesPresent(t *testing.T) {
	table := Default()
	for _, code := range []string{"01", "04", "07", "26", "31", "34", "35", "38"} {
		s, ok := table.Lookup(code)
		require.True(t, ok, code)
		assert.True(t, s.UnionTerritory, code)
	}
}
