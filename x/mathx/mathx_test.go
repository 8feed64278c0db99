package mathx

import "testing"

func TestClamp(t *testing.T) {
	if got := Clamp(200, 0, 180); got != 180 {
		t.Fatalf("Clamp high = %d", got)
	}
	if got := Clamp(-3, 0, 180); got != 0 {
		t.Fatalf("Clamp low = %d", got)
	}
	if got := Clamp(90, 180, 0); got != 90 {
		t.Fatalf("Clamp swapped bounds = %d", got)
	}
}

func TestWithin(t *testing.T) {
	cases := []struct {
		d, n uint32
		want bool
	}{
		{9000, 9000, true},
		{6750, 9000, true},  // exactly -25%
		{11250, 9000, true}, // exactly +25%
		{6749, 9000, false},
		{11251, 9000, false},
		{3375, 4500, true},
		{2812, 2250, true},
		{2813, 2250, false},
	}
	for _, tc := range cases {
		if got := Within(tc.d, tc.n, 25); got != tc.want {
			t.Errorf("Within(%d, %d, 25) = %v, want %v", tc.d, tc.n, got, tc.want)
		}
	}
}

func TestMapU16(t *testing.T) {
	cases := []struct{ in, want uint16 }{
		{0, 500}, {90, 1500}, {180, 2500}, {250, 2500},
	}
	for _, tc := range cases {
		if got := MapU16(tc.in, 0, 180, 500, 2500); got != tc.want {
			t.Errorf("MapU16(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestRoundDiv(t *testing.T) {
	if got := RoundDiv(uint64(1499), 1000); got != 1 {
		t.Fatalf("RoundDiv(1499,1000) = %d", got)
	}
	if got := RoundDiv(uint64(1500), 1000); got != 2 {
		t.Fatalf("RoundDiv(1500,1000) = %d", got)
	}
}
