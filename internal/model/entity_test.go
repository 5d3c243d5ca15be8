package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Dark Fleet Holdings", "dark fleet holdings"},
		{"  DARK   FLEET\tHoldings ", "dark fleet holdings"},
		{"Ｄａｒｋ Ｆｌｅｅｔ", "dark fleet"}, // fullwidth forms fold under NFKC
		{"Größe GmbH", "grösse gmbh"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeName(tt.in), "input %q", tt.in)
	}
}

func TestNormalizeNameVariantsCollide(t *testing.T) {
	// The property matching relies on: spelling variants of one entity
	// normalize identically.
	a := NormalizeName("PACIFIC  dawn shipping")
	b := NormalizeName("Pacific Dawn Shipping")
	assert.Equal(t, a, b)
}

func TestValidateIMO(t *testing.T) {
	require.NoError(t, ValidateIMO("9842190"))
	assert.Error(t, ValidateIMO("984219"))   // short
	assert.Error(t, ValidateIMO("98421900")) // long
	assert.Error(t, ValidateIMO("98421a0"))  // non-digit
	assert.Error(t, ValidateIMO(""))
}

func TestIMOConversion(t *testing.T) {
	n, err := IMOToInt("0012345")
	require.NoError(t, err)
	assert.Equal(t, 12345, n)
	assert.Equal(t, "0012345", FormatIMO(n))

	_, err = IMOToInt("12345")
	assert.Error(t, err)
}
