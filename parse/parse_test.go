package parse

import "testing"

func TestPrice(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want float64
		ok   bool
	}{
		{name: "dollars", in: "$161.99", want: 161.99, ok: true},
		{name: "thousands", in: "US $1,249.00", want: 1249.00, ok: true},
		{name: "bare", in: "89.5", want: 89.5, ok: true},
		{name: "embedded", in: "Now only 45.00 while stocks last", want: 45.00, ok: true},
		{name: "empty", in: "", ok: false},
		{name: "no digits", in: "sold out", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Price(tt.in)
			if ok != tt.ok || got != tt.want {
				t.Fatalf("Price(%q) = (%v, %v), want (%v, %v)", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestPriceNear(t *testing.T) {
	text := "Graded $450.00 ... Ungraded condition sells for $161.99 on average"
	got, ok := PriceNear(text, "ungraded", "loose")
	if !ok || got != 161.99 {
		t.Fatalf("PriceNear = (%v, %v), want (161.99, true)", got, ok)
	}

	if _, ok := PriceNear("no context here $5.00", "ungraded"); ok {
		t.Fatal("PriceNear matched without context word")
	}
}

func TestYen(t *testing.T) {
	got, ok := Yen("8,980円")
	if !ok || got != 8980 {
		t.Fatalf("Yen = (%v, %v), want (8980, true)", got, ok)
	}
	if _, ok := Yen("在庫切れ"); ok {
		t.Fatal("Yen parsed a price from text without digits")
	}
}

func TestExtractSetCode(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{in: "One Piece OP-05 Awakening Booster Box Japanese", want: "OP-05", ok: true},
		{in: "one piece eb-01 memorial collection", want: "EB-01", ok: true},
		{in: "PRB-01 premium booster case", want: "PRB-01", ok: true},
		{in: "Pokemon 151 Booster Box", ok: false},
	}

	for _, tt := range tests {
		got, ok := ExtractSetCode(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Fatalf("ExtractSetCode(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestHasRegionMarker(t *testing.T) {
	if !HasRegionMarker("OP-05 Booster Box JAPANESE sealed") {
		t.Fatal("JAPANESE marker not detected")
	}
	if !HasRegionMarker("op-05 booster box jpn") {
		t.Fatal("JPN marker not detected")
	}
	if HasRegionMarker("OP-05 Booster Box English") {
		t.Fatal("english listing flagged as Japanese")
	}
}

func TestInRange(t *testing.T) {
	if InRange(5, 10, 1000) {
		t.Fatal("5 accepted below min bound")
	}
	if InRange(1000, 10, 1000) {
		t.Fatal("1000 accepted at max bound")
	}
	if !InRange(99.99, 10, 1000) {
		t.Fatal("99.99 rejected inside bounds")
	}
	if !InRange(5, 0, 0) {
		t.Fatal("zero bounds should disable the check")
	}
}

func TestMedianLowerOfEven(t *testing.T) {
	prices := []float64{12.0, 15.0, 9.5, 40.0, 11.0}
	got, ok := Median(prices)
	if !ok || got != 12.0 {
		t.Fatalf("Median(odd) = (%v, %v), want (12, true)", got, ok)
	}

	even := []float64{20, 10, 40, 30}
	got, ok = Median(even)
	if !ok || got != 30 {
		t.Fatalf("Median(even) = (%v, %v), want lower-median index 2 -> 30", got, ok)
	}

	if _, ok := Median(nil); ok {
		t.Fatal("Median(nil) reported ok")
	}

	// Input must not be reordered.
	if prices[0] != 12.0 || prices[2] != 9.5 {
		t.Fatal("Median mutated its input")
	}
}
