package normalize

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/nertexqq/giftwatch/internal/marketplace"
)

// Normalize converts one adapter RawItem into a Listing, applying the
// field-aliasing, price-normalization and link-generation rules from
// §4.2. It returns ok == false when the mandatory invariants (non-empty
// collection, positive price) are not satisfiable from the raw item.
func Normalize(item marketplace.RawItem) (Listing, bool) {
	collection, _ := item.Str("collection_name", "collectionName", "gift_name", "name", "collection")
	collection = strings.TrimSpace(collection)

	price, hasPrice := item.Num("price", "price_ton", "floor_price")
	if !hasPrice {
		return Listing{}, false
	}
	price = marketplace.NormalizePrice(price)
	if price.IsZero() || collection == "" {
		return Listing{}, false
	}

	listingID, _ := item.Str("listing_id", "id", "_id", "gift_id")

	l := Listing{
		Marketplace:    item.Marketplace,
		ListingID:      listingID,
		CompositeID:    fmt.Sprintf("%s_%s", item.Marketplace, listingID),
		CollectionName: collection,
		PriceTON:       price,
	}

	l.ModelName = firstNonEmpty(item, NotApplicable, "model", "model_name", "modelName")
	l.BackdropName, _ = item.Str("backdrop", "backdrop_name", "backdropName")
	l.GiftNumber = firstNonEmpty(item, NotApplicable, "gift_number", "number", "num", "gift_num")
	l.ModelRarity = extractRarity(item)
	l.PhotoURL = extractPhotoURL(item, collection, l.GiftNumber)

	if hash, ok := item.Str("resolved_hash", "mrkt_hash", "hash_32"); ok {
		l.Hash32 = strings.ReplaceAll(hash, "-", "")
	}

	l.MarketplaceLink = buildMarketplaceLink(l)
	l.NFTLink = buildNFTLink(l)

	return l, l.Eligible()
}

func firstNonEmpty(item marketplace.RawItem, fallback string, keys ...string) string {
	if v, ok := item.Str(keys...); ok {
		return v
	}
	return fallback
}

// rarityLikeKey matches any field name the original source scanned as a
// last-resort rarity/tier carrier, per spec §4.2's "final scan of any
// key containing 'rarity' or 'tier'".
var rarityLikeKey = regexp.MustCompile(`(?i)rarity|tier`)

func extractRarity(item marketplace.RawItem) string {
	if v, ok := item.Str("model_rarity", "rarity"); ok {
		return v
	}
	for key := range item.Fields {
		if !rarityLikeKey.MatchString(key) {
			continue
		}
		if s, ok := item.Str(key); ok {
			return s
		}
	}
	return ""
}

// extractPhotoURL resolves a displayable image URL, handling the
// protocol quirks tonnelmp_wrapper.py's _normalize_image_url /
// _build_fragment_photo_url work around: bare ipfs:// URIs,
// protocol-relative "//" URLs, and a Fragment.com slug fallback when no
// photo field is present at all.
func extractPhotoURL(item marketplace.RawItem, collection, giftNumber string) string {
	raw, ok := item.Str("photo_url", "photoUrl", "previewImageUrl", "image", "image_url")
	if !ok {
		if giftNumber != "" && giftNumber != NotApplicable {
			return buildFragmentPhotoURL(collection, giftNumber)
		}
		return ""
	}
	return normalizeImageURL(raw)
}

func normalizeImageURL(raw string) string {
	switch {
	case strings.HasPrefix(raw, "ipfs://"):
		return "https://ipfs.io/ipfs/" + strings.TrimPrefix(raw, "ipfs://")
	case strings.HasPrefix(raw, "//"):
		return "https:" + raw
	default:
		return raw
	}
}

func buildFragmentPhotoURL(collection, giftNumber string) string {
	return fmt.Sprintf("https://nft.fragment.com/gift/%s-%s.medium.jpg", slug(collection), giftNumber)
}

var nonSlugChar = regexp.MustCompile(`[^a-zA-Z0-9-]`)

// slug removes everything but alphanumerics and hyphens, per §6's NFT
// canonical-link rule.
func slug(s string) string {
	return nonSlugChar.ReplaceAllString(strings.ReplaceAll(s, " ", ""), "")
}

func buildMarketplaceLink(l Listing) string {
	switch l.Marketplace {
	case marketplace.Portals:
		return fmt.Sprintf("https://t.me/portals/market?startapp=gift_%s", l.ListingID)
	case marketplace.Tonnel:
		return fmt.Sprintf("https://t.me/tonnel_network_bot/gift?startapp=%s", l.ListingID)
	case marketplace.MRKT:
		if hash32Pattern.MatchString(l.Hash32) {
			return fmt.Sprintf("https://t.me/mrkt/app?startapp=%s", l.Hash32)
		}
		return ""
	case marketplace.GetGems:
		return fmt.Sprintf("https://getgems.io/nft/%s", l.ListingID)
	default:
		return ""
	}
}

var hash32Pattern = regexp.MustCompile(`^[0-9a-f]{32}$`)

func buildNFTLink(l Listing) string {
	if l.GiftNumber == "" || l.GiftNumber == NotApplicable {
		return ""
	}
	return fmt.Sprintf("https://t.me/nft/%s-%s", slug(l.CollectionName), l.GiftNumber)
}
