// Package normalize converts heterogeneous marketplace adapter output
// into the canonical Listing record every downstream component consumes.
package normalize

import (
	"github.com/shopspring/decimal"

	"github.com/nertexqq/giftwatch/internal/marketplace"
)

// NotApplicable is the sentinel string used for optional name-shaped
// fields the spec requires to be present-but-empty rather than absent
// (model_name, gift_number), matching the original source's "N/A".
const NotApplicable = "N/A"

// Listing is the canonical record produced by the Normalizer and
// consumed by the Enricher, Filter Matcher and Dispatcher. It is never
// persisted.
type Listing struct {
	Marketplace     marketplace.Name
	ListingID       string
	CompositeID     string
	CollectionName  string
	ModelName       string
	BackdropName    string
	GiftNumber      string
	PriceTON        decimal.Decimal
	ModelRarity     string
	PhotoURL        string
	MarketplaceLink string
	NFTLink         string
	Hash32          string
}

// Eligible reports whether l satisfies the dispatch-eligibility
// invariant: non-empty collection name and a strictly positive price.
func (l Listing) Eligible() bool {
	return l.CollectionName != "" && l.PriceTON.GreaterThan(decimal.Zero)
}
