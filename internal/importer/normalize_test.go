package importer

import (
	"testing"
	"time"
)

func TestParseNumber(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want *float64
	}{
		{"plain", "1500", f(1500)},
		{"currency", "$250,000", f(250000)},
		{"currency with cents", "$1,234.56", f(1234.56)},
		{"percent sign stripped", "85%", f(85)},
		{"whitespace", "  42 ", f(42)},
		{"blank", "", nil},
		{"junk", "n/a", nil},
		{"negative", "-500", f(-500)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseNumber(tt.in)
			if !floatPtrEq(got, tt.want) {
				t.Errorf("ParseNumber(%q) = %v, want %v", tt.in, fv(got), fv(tt.want))
			}
		})
	}
}

func TestParsePercent(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want *int
	}{
		{"fraction scales", "0.75", i(75)},
		{"one is full", "1", i(100)},
		{"literal integer", "75", i(75)},
		{"explicit percent", "85%", i(85)},
		{"fractional percent literal", "0.5%", i(1)},
		{"rounds", "75.6", i(76)},
		{"zero stays zero", "0", i(0)},
		{"blank", "", nil},
		{"junk", "high", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParsePercent(tt.in)
			if !intPtrEq(got, tt.want) {
				t.Errorf("ParsePercent(%q) = %v, want %v", tt.in, iv(got), iv(tt.want))
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"excel serial", "44927", "2023-01-01"},
		{"excel serial with fraction", "44927.5", "2023-01-01"},
		{"iso", "2023-01-15", "2023-01-15"},
		{"us slashes", "1/15/2023", "2023-01-15"},
		{"long form", "January 15, 2023", "2023-01-15"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseDate(tt.in)
			if got == nil {
				t.Fatalf("ParseDate(%q) = nil", tt.in)
			}
			if got.Format("2006-01-02") != tt.want {
				t.Errorf("ParseDate(%q) = %s, want %s", tt.in, got.Format("2006-01-02"), tt.want)
			}
			if got.Location() != time.UTC {
				t.Errorf("ParseDate(%q) location = %v, want UTC", tt.in, got.Location())
			}
		})
	}

	// Bare years and other small or huge numerics are not Excel serials.
	for _, in := range []string{"", "soon", "13/45/99999", "2023", "7", "3000000"} {
		if got := ParseDate(in); got != nil {
			t.Errorf("ParseDate(%q) = %v, want nil", in, got)
		}
	}
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct{ in, want string }{
		{"(407) 555-1001", "4075551001"},
		{"407.555.1001", "4075551001"},
		{"+1 407 555 1001", "+14075551001"},
		{"407-555-1001 x22", "407555100122"},
		{"+", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizePhone(tt.in); got != tt.want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAddressKey(t *testing.T) {
	tests := []struct{ in, want string }{
		{"123 Main St.", "123 main st"},
		{"123  MAIN   ST", "123 main st"},
		{" 45 N.W. 8th Ave ", "45 nw 8th ave"},
	}
	for _, tt := range tests {
		if got := AddressKey(tt.in); got != tt.want {
			t.Errorf("AddressKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStreetToken(t *testing.T) {
	tests := []struct{ in, want string }{
		{"123 Main St, Orlando, FL 32801", "123 main st"},
		{"123 Main St.", "123 main st"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := StreetToken(tt.in); got != tt.want {
			t.Errorf("StreetToken(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCompareKey(t *testing.T) {
	if CompareKey("  John   SMITH ") != "john smith" {
		t.Errorf("CompareKey did not collapse and lowercase")
	}
	if CompareKey("") != "" {
		t.Errorf("CompareKey of empty string should be empty")
	}
}

func TestParseDNC(t *testing.T) {
	tests := []struct {
		in   string
		want *bool
	}{
		{"Do Not Call", b(true)},
		{"Not on DNC", b(false)},
		{"yes", b(true)},
		{"no", b(false)},
		{"", nil},
		{"maybe", nil},
	}
	for _, tt := range tests {
		if got := ParseDNC(tt.in); !boolPtrEq(got, tt.want) {
			t.Errorf("ParseDNC(%q) = %v, want %v", tt.in, bv(got), bv(tt.want))
		}
	}
}

func TestParsePrepaid(t *testing.T) {
	tests := []struct {
		in   string
		want *bool
	}{
		{"Prepaid", b(true)},
		{"Not Prepaid", b(false)},
		{"", nil},
		{"unknown", nil},
	}
	for _, tt := range tests {
		if got := ParsePrepaid(tt.in); !boolPtrEq(got, tt.want) {
			t.Errorf("ParsePrepaid(%q) = %v, want %v", tt.in, bv(got), bv(tt.want))
		}
	}
}

func TestCleanString(t *testing.T) {
	if got := CleanString("  hi "); got == nil || *got != "hi" {
		t.Errorf("CleanString should trim")
	}
	if got := CleanString("   "); got != nil {
		t.Errorf("CleanString of whitespace should be nil, got %q", *got)
	}
}

// pointer helpers for test tables

func f(v float64) *float64 { return &v }
func i(v int) *int         { return &v }
func b(v bool) *bool       { return &v }

func floatPtrEq(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func intPtrEq(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func boolPtrEq(a, b *bool) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func fv(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func iv(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func bv(v *bool) any {
	if v == nil {
		return nil
	}
	return *v
}
