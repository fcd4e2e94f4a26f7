package normalize

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/nertexqq/giftwatch/internal/marketplace"
)

func TestNormalizeRequiresCollectionAndPrice(t *testing.T) {
	cases := []struct {
		name   string
		fields map[string]any
	}{
		{"missing collection", map[string]any{"price": 1.5}},
		{"zero price", map[string]any{"collection_name": "Plush Pepe", "price": 0}},
		{"no price field", map[string]any{"collection_name": "Plush Pepe"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			item := marketplace.RawItem{Marketplace: marketplace.Portals, Fields: tc.fields}
			_, ok := Normalize(item)
			if ok {
				t.Fatalf("expected Normalize to reject %v", tc.fields)
			}
		})
	}
}

func TestNormalizeIsIdempotentOnRepeatedInput(t *testing.T) {
	item := marketplace.RawItem{
		Marketplace: marketplace.Portals,
		Fields: map[string]any{
			"collection_name": "Durov's Cap",
			"id":              "abc123",
			"listing_id":      "abc123",
			"price":           3.5,
			"gift_number":     "42",
		},
	}
	first, ok := Normalize(item)
	if !ok {
		t.Fatal("expected first normalization to succeed")
	}
	second, ok := Normalize(item)
	if !ok {
		t.Fatal("expected second normalization to succeed")
	}
	if !first.PriceTON.Equal(second.PriceTON) {
		t.Fatalf("price not idempotent: %s != %s", first.PriceTON, second.PriceTON)
	}
	first.PriceTON, second.PriceTON = decimal.Zero, decimal.Zero
	if first != second {
		t.Fatalf("normalize is not idempotent: %+v != %+v", first, second)
	}
}

func TestMrktLinkOmittedWithoutValidHash(t *testing.T) {
	item := marketplace.RawItem{
		Marketplace: marketplace.MRKT,
		Fields: map[string]any{
			"collection_name": "Jelly Bunny",
			"price":           2.0,
			"resolved_hash":   "not-a-hash",
		},
	}
	l, ok := Normalize(item)
	if !ok {
		t.Fatal("expected listing to be produced")
	}
	if l.MarketplaceLink != "" {
		t.Fatalf("expected empty marketplace link for invalid hash, got %q", l.MarketplaceLink)
	}
}

func TestMrktLinkPresentWithValidHash(t *testing.T) {
	hash := "0123456789abcdef0123456789abcdef"
	item := marketplace.RawItem{
		Marketplace: marketplace.MRKT,
		Fields: map[string]any{
			"collection_name": "Jelly Bunny",
			"price":           2.0,
			"resolved_hash":   hash,
		},
	}
	l, ok := Normalize(item)
	if !ok {
		t.Fatal("expected listing to be produced")
	}
	want := "https://t.me/mrkt/app?startapp=" + hash
	if l.MarketplaceLink != want {
		t.Fatalf("marketplace link = %q, want %q", l.MarketplaceLink, want)
	}
}

func TestNanoTonPriceIsNormalized(t *testing.T) {
	item := marketplace.RawItem{
		Marketplace: marketplace.GetGems,
		Fields: map[string]any{
			"collection_name": "Heart Locket",
			"price":           2500000000, // 2.5 TON in nanoTON
		},
	}
	l, ok := Normalize(item)
	if !ok {
		t.Fatal("expected listing to be produced")
	}
	if !l.PriceTON.Equal(decimal.NewFromFloat(2.5)) {
		t.Fatalf("price = %s, want 2.5", l.PriceTON)
	}
}

func TestPhotoURLNormalizesIPFSAndProtocolRelative(t *testing.T) {
	cases := map[string]string{
		"ipfs://bafy123":          "https://ipfs.io/ipfs/bafy123",
		"//cdn.example.com/a.png": "https://cdn.example.com/a.png",
		"https://cdn.example.com/b.png": "https://cdn.example.com/b.png",
	}
	for raw, want := range cases {
		if got := normalizeImageURL(raw); got != want {
			t.Errorf("normalizeImageURL(%q) = %q, want %q", raw, got, want)
		}
	}
}
