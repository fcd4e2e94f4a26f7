package marketplace

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestNormalizePriceDividesNanoTonByBillion(t *testing.T) {
	raw := decimal.NewFromInt(2_500_000_000)
	got := NormalizePrice(raw)
	if !got.Equal(decimal.NewFromFloat(2.5)) {
		t.Fatalf("expected 2.5 TON, got %s", got.String())
	}
}

func TestNormalizePriceLeavesSmallValuesUnchanged(t *testing.T) {
	raw := decimal.NewFromFloat(12.5)
	got := NormalizePrice(raw)
	if !got.Equal(raw) {
		t.Fatalf("expected price to pass through unchanged, got %s", got.String())
	}
}

func TestNormalizePriceBoundaryAtThousand(t *testing.T) {
	// Exactly 1000 is not "greater than" the threshold, so it must not be divided.
	raw := decimal.NewFromInt(1000)
	got := NormalizePrice(raw)
	if !got.Equal(raw) {
		t.Fatalf("expected 1000 to remain unchanged at the boundary, got %s", got.String())
	}
}

func TestParsePriceHandlesStringWithUnitAndThousandsSeparator(t *testing.T) {
	got, ok := ParsePrice("1,250 TON")
	if !ok {
		t.Fatal("expected string price to parse")
	}
	// "1,250 TON" cleans to 1250, which is over the nano-TON threshold,
	// so it is divided by 1e9.
	if !got.Equal(decimal.New(125, -8)) {
		t.Fatalf("expected 0.00000125, got %s", got.String())
	}
}

func TestParsePriceRejectsGarbage(t *testing.T) {
	if _, ok := ParsePrice("not-a-price"); ok {
		t.Fatal("expected garbage string to fail to parse")
	}
}

func TestClampLimitEnforcesPerMarketplaceCap(t *testing.T) {
	cases := []struct {
		mp    Name
		limit int
		want  int
	}{
		{Portals, 999, 50},
		{Tonnel, 999, 30},
		{MRKT, 999, 20},
		{GetGems, 999, 100},
		{Portals, 0, 1},
		{Portals, 10, 10},
	}
	for _, c := range cases {
		if got := ClampLimit(c.mp, c.limit); got != c.want {
			t.Errorf("ClampLimit(%s, %d) = %d, want %d", c.mp, c.limit, got, c.want)
		}
	}
}
