package utils

import "testing"

func TestAtoiDefault(t *testing.T) {
	cases := []struct {
		s    string
		def  int
		want int
	}{
		// empty -> default
		{"", 10, 10},
		// valid ints
		{"42", 0, 42},
		{"-13", 1, -13},
		{"0012", 99, 12},
		// invalid -> default (no trim)
		{"x", 5, 5},
		{" 42", 7, 7},
		// overflow -> default
		{"999999999999999999999999", -1, -1},
	}

	for _, tc := range cases {
		if got := AtoiDefault(tc.s, tc.def); got != tc.want {
			t.Fatalf("AtoiDefault(%q, %d) = %d; want %d", tc.s, tc.def, got, tc.want)
		}
	}
}

func TestPaginate(t *testing.T) {
	cases := []struct {
		page, limit, def, max int
		wantP, wantL, wantOff int
	}{
		{1, 10, 20, 100, 1, 10, 0},
		{3, 10, 20, 100, 3, 10, 20},
		{0, 0, 20, 100, 1, 20, 0},
		{-2, -5, 20, 100, 1, 20, 0},
		{2, 500, 20, 100, 2, 100, 100},
		{2, 500, 20, 0, 2, 500, 500},
	}
	for _, tc := range cases {
		p, l, off := Paginate(tc.page, tc.limit, tc.def, tc.max)
		if p != tc.wantP || l != tc.wantL || off != tc.wantOff {
			t.Fatalf("Paginate(%d,%d,%d,%d) = %d,%d,%d; want %d,%d,%d",
				tc.page, tc.limit, tc.def, tc.max, p, l, off, tc.wantP, tc.wantL, tc.wantOff)
		}
	}
}

func TestClamp(t *testing.T) {
	if Clamp(0, 1, 20) != 1 || Clamp(25, 1, 20) != 20 || Clamp(7, 1, 20) != 7 {
		t.Fatalf("Clamp bounds wrong")
	}
}
