package domain

import "testing"

// FuzzParseUserID verifies parsing never panics on arbitrary input and
// that any accepted value round-trips through String.
func FuzzParseUserID(f *testing.F) {
	f.Add("")
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("00000000-0000-0000-0000-000000000000")
	f.Add("not-a-uuid")
	f.Add("550e8400-e29b-41d4-a716-446655440000\x00suffix")

	f.Fuzz(func(t *testing.T, input string) {
		parsed, err := ParseUserID(input)
		if err != nil {
			return
		}
		roundTrip, err := ParseUserID(parsed.String())
		if err != nil {
			t.Errorf("accepted ID failed round-trip: %v", err)
		}
		if roundTrip != parsed {
			t.Error("round-trip changed the ID value")
		}
	})
}
