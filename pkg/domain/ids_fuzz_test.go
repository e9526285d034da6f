//go:build go1.18

package domain

import (
	"testing"
	"unicode/utf8"
)

// FuzzParseVisitID tests that parsing never panics on arbitrary input
// and always returns either a valid ID or an error.
func FuzzParseVisitID(f *testing.F) {
	// Seed corpus with interesting inputs
	f.Add("")
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("00000000-0000-0000-0000-000000000000")
	f.Add("not-a-uuid")
	f.Add("'; DROP TABLE visits;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))
	f.Add("550e8400-e29b-41d4-a716-446655440000\x00suffix")

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseVisitID(input)

		// Invariant 1: No panics (implicit - test would fail)

		// Invariant 2: Either valid ID or error, never both
		if err == nil {
			// Valid ID must round-trip
			roundTrip, err2 := ParseVisitID(id.String())
			if err2 != nil {
				t.Errorf("Valid ID failed round-trip: %v", err2)
			}
			if roundTrip != id {
				t.Error("Round-trip changed ID value")
			}
		}

		// Invariant 3: Non-UTF8 input must be rejected
		if !utf8.ValidString(input) && err == nil {
			t.Error("Non-UTF8 input was accepted")
		}
	})
}

// FuzzParseFaydaID verifies the 12-digit rule holds for arbitrary input.
func FuzzParseFaydaID(f *testing.F) {
	f.Add("612345678901")
	f.Add("")
	f.Add("00000000000")
	f.Add("61234567890a")

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseFaydaID(input)
		if err != nil {
			return
		}
		if len(input) != 12 {
			t.Errorf("accepted %d-character input", len(input))
		}
		for _, r := range input {
			if r < '0' || r > '9' {
				t.Errorf("accepted non-digit %q", r)
			}
		}
		// Valid IDs round-trip unchanged.
		roundTrip, err2 := ParseFaydaID(id.String())
		if err2 != nil || roundTrip != id {
			t.Error("round-trip changed or rejected a valid ID")
		}
	})
}
