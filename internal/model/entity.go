package model

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// SubjectKind identifies what a check screens.
type SubjectKind string

const (
	SubjectVessel      SubjectKind = "vessel"
	SubjectStakeholder SubjectKind = "stakeholder"
	SubjectCountry     SubjectKind = "country"
)

// Vessel is the screening subject shared by every vertical.
type Vessel struct {
	IMO  string `json:"vessel_imo"`
	Name string `json:"vessel_name"`
}

// NormalizeName canonicalizes an entity name for comparison: Unicode NFKC,
// internal whitespace collapsed to single spaces, case-folded. Matching
// anywhere in the system happens on normalized names only.
//
// A cases.Caser is stateful, so a fresh one is built per call.
func NormalizeName(name string) string {
	s := norm.NFKC.String(name)
	s = strings.Join(strings.Fields(s), " ")
	return cases.Fold().String(s)
}

// ValidateIMO checks the 7-digit IMO format. It does not verify the IMO
// check digit; upstream providers reject unknown vessels themselves.
func ValidateIMO(imo string) error {
	if len(imo) != 7 {
		return fmt.Errorf("model: imo %q: want 7 digits, got %d", imo, len(imo))
	}
	for _, r := range imo {
		if r < '0' || r > '9' {
			return fmt.Errorf("model: imo %q: non-digit character", imo)
		}
	}
	return nil
}

// IMOToInt converts a validated IMO string to the integer form required by
// bulk upstream endpoints.
func IMOToInt(imo string) (int, error) {
	if err := ValidateIMO(imo); err != nil {
		return 0, err
	}
	n := 0
	for _, r := range imo {
		n = n*10 + int(r-'0')
	}
	return n, nil
}

// FormatIMO renders an integer IMO back to the 7-digit wire form.
func FormatIMO(imo int) string {
	return fmt.Sprintf("%07d", imo)
}
