package number

import "testing"

func TestAdd(t *testing.T) {
	tests := []struct {
		a, b, want string
	}{
		{"1", "2", "3"},
		{"0.1", "0.2", "0.3"},
		{"1.5", "-0.5", "1"},
		{"123456789123456789123456789", "1", "123456789123456789123456790"},
		{"0", "0", "0"},
	}
	for _, tt := range tests {
		got := MustParse(tt.a).Add(MustParse(tt.b))
		if got.String() != tt.want {
			t.Errorf("%s + %s = %s, want %s", tt.a, tt.b, got.String(), tt.want)
		}
	}
}

func TestSub(t *testing.T) {
	tests := []struct {
		a, b, want string
	}{
		{"3", "2", "1"},
		{"0.3", "0.1", "0.2"},
		{"1", "1.5", "-0.5"},
	}
	for _, tt := range tests {
		got := MustParse(tt.a).Sub(MustParse(tt.b))
		if got.String() != tt.want {
			t.Errorf("%s - %s = %s, want %s", tt.a, tt.b, got.String(), tt.want)
		}
	}
}

func TestMul(t *testing.T) {
	tests := []struct {
		a, b, want string
	}{
		{"6", "7", "42"},
		{"0.5", "0.5", "0.25"},
		{"-2", "3.5", "-7"},
		{"1e10", "1e10", "100000000000000000000"},
	}
	for _, tt := range tests {
		got := MustParse(tt.a).Mul(MustParse(tt.b))
		if got.String() != tt.want {
			t.Errorf("%s * %s = %s, want %s", tt.a, tt.b, got.String(), tt.want)
		}
	}
}

func TestDiv(t *testing.T) {
	tests := []struct {
		a, b, want string
	}{
		{"10", "4", "2.5"},
		{"1", "8", "0.125"},
		{"-9", "3", "-3"},
	}
	for _, tt := range tests {
		got, err := MustParse(tt.a).Div(MustParse(tt.b), 0)
		if err != nil {
			t.Fatalf("%s / %s: unexpected error %v", tt.a, tt.b, err)
		}
		if got.String() != tt.want {
			t.Errorf("%s / %s = %s, want %s", tt.a, tt.b, got.String(), tt.want)
		}
	}
}

func TestDivByZero(t *testing.T) {
	_, err := FromInt64(1).Div(Zero(), 0)
	if err != ErrDivZero {
		t.Fatalf("expected ErrDivZero, got %v", err)
	}
}

func TestDivPrecision(t *testing.T) {
	got, err := FromInt64(1).Div(FromInt64(3), 5)
	if err != nil {
		t.Fatal(err)
	}
	if got.String() != "0.33333" {
		t.Errorf("1/3 at precision 5 = %s, want 0.33333", got.String())
	}
}

func TestParseFormatRoundTrip(t *testing.T) {
	cases := []string{"0", "1", "-1", "0.5", "-0.125", "42", "1000", "3.14159", "0.001"}
	for _, s := range cases {
		d, err := Parse(s)
		if err != nil {
			t.Fatalf("Parse(%q): %v", s, err)
		}
		if d.String() != s {
			t.Errorf("Parse(%q).String() = %q", s, d.String())
		}
	}
}

func TestParseExponent(t *testing.T) {
	if got := MustParse("1.5e3").String(); got != "1500" {
		t.Errorf("1.5e3 = %s, want 1500", got)
	}
	if got := MustParse("25e-2").String(); got != "0.25" {
		t.Errorf("25e-2 = %s, want 0.25", got)
	}
}

func TestParseInvalid(t *testing.T) {
	for _, s := range []string{"", "abc", "1.", "1e", "--2"} {
		if _, err := Parse(s); err == nil {
			t.Errorf("Parse(%q) should fail", s)
		}
	}
}

func TestCmp(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1", "2", -1},
		{"2", "1", 1},
		{"1.0", "1", 0},
		{"-1", "1", -1},
		{"0.1", "0.10", 0},
	}
	for _, tt := range tests {
		if got := MustParse(tt.a).Cmp(MustParse(tt.b)); got != tt.want {
			t.Errorf("Cmp(%s, %s) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestInt64(t *testing.T) {
	if got := MustParse("2.9").Int64(); got != 2 {
		t.Errorf("2.9 truncates to %d, want 2", got)
	}
	if got := MustParse("-2.9").Int64(); got != -2 {
		t.Errorf("-2.9 truncates to %d, want -2", got)
	}
}

func TestIsInt(t *testing.T) {
	if !MustParse("10").IsInt() {
		t.Error("10 should be integral")
	}
	if !MustParse("2.0").IsInt() {
		t.Error("2.0 should be integral")
	}
	if MustParse("2.5").IsInt() {
		t.Error("2.5 should not be integral")
	}
}
