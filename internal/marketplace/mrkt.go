package marketplace

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

const mrktBaseURL = "https://api.tgmrkt.io/api/v1"

// mrktHashPattern matches a 32-character hex hash once dashes are
// stripped, grounded on mrktmp_wrapper.py's is_hex_hash().
var mrktHashPattern = regexp.MustCompile(`^[0-9a-f]{32}$`)

// mrktHashFallbackFields is the exact priority order mrktmp_wrapper.py
// walks when an item's "id" field is not itself a valid hash.
var mrktHashFallbackFields = []string{
	"hash", "hashId", "hash_id", "token", "uuid", "guid",
	"appId", "app_id", "startappId", "startapp_id",
}

func isHexHash(v string) bool {
	return mrktHashPattern.MatchString(strings.ReplaceAll(v, "-", ""))
}

// extractHash resolves the MRKT canonical gift hash for one raw item,
// per mrktmp_wrapper.py's id-then-fallback-fields walk.
func extractHash(fields map[string]any) (string, bool) {
	item := RawItem{Fields: fields}
	if id, ok := item.Str("id"); ok && isHexHash(id) {
		return strings.ReplaceAll(id, "-", ""), true
	}
	for _, key := range mrktHashFallbackFields {
		if v, ok := item.Str(key); ok && isHexHash(v) {
			return strings.ReplaceAll(v, "-", ""), true
		}
	}
	return "", false
}

// MrktAdapter wraps https://api.tgmrkt.io/api/v1.
type MrktAdapter struct {
	http   *resty.Client
	tokens TokenProvider
}

func NewMrktAdapter(tokens TokenProvider) *MrktAdapter {
	return &MrktAdapter{http: newHTTPClient(20), tokens: tokens}
}

func (a *MrktAdapter) Name() Name { return MRKT }

var mrktSorts = map[SortKey]string{
	SortLatest:          "date_desc",
	SortPriceAsc:        "price_asc",
	SortPriceDesc:       "price_desc",
	SortGiftIDAsc:       "number_asc",
	SortGiftIDDesc:      "number_desc",
	SortModelRarityAsc:  "rarity_asc",
	SortModelRarityDesc: "rarity_desc",
}

func (a *MrktAdapter) authHeaders(ctx context.Context) (map[string]string, error) {
	token, err := a.tokens.Token(ctx, MRKT)
	if err != nil {
		return nil, &AuthError{Cause: err}
	}
	h := map[string]string{
		"Accept":       "application/json",
		"Content-Type": "application/json",
	}
	if token != "" {
		h["Authorization"] = "Bearer " + token
	}
	return h, nil
}

func (a *MrktAdapter) search(ctx context.Context, limit int, sort SortKey, collection, model string) ([]RawItem, error) {
	headers, authErr := a.authHeaders(ctx)
	if authErr != nil {
		return nil, authErr
	}
	limit = ClampLimit(MRKT, limit)
	sortFrag, ok := mrktSorts[sort]
	if !ok {
		sortFrag = mrktSorts[SortPriceAsc]
	}

	query := map[string]string{
		"limit": fmt.Sprintf("%d", limit),
		"sort":  sortFrag,
	}
	if collection != "" {
		query["collection"] = collection
	}
	if model != "" {
		query["model"] = stripRarityParens(model)
	}

	var items []RawItem
	err := RetryTransient(ctx, retryBase, retryMaxAttempts, func() error {
		resp, err := a.http.R().
			SetContext(ctx).
			SetHeaders(headers).
			SetQueryParams(query).
			Get(mrktBaseURL + "/gifts/search")
		if cerr := classifyHTTPError(resp, err); cerr != nil {
			return cerr
		}
		parsed, perr := decodeJSONAny(resp.Body())
		if perr != nil {
			return &ProtocolError{Cause: perr}
		}
		items = mrktItemsFromResponse(parsed)
		return nil
	})
	return items, err
}

// mrktItemsFromResponse builds RawItems, tagging each with its resolved
// canonical hash in "resolved_hash" when one can be found. Mirroring
// mrktmp_wrapper.py, an item whose hash cannot be resolved is still kept:
// "resolved_hash" is simply left unset, and the Normalizer/hash32Pattern
// gate downstream omits the link rather than the whole listing.
func mrktItemsFromResponse(parsed any) []RawItem {
	list := extractList(parsed)
	out := make([]RawItem, 0, len(list))
	for _, raw := range list {
		obj, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if hash, ok := extractHash(obj); ok {
			obj["resolved_hash"] = hash
		}
		out = append(out, RawItem{Marketplace: MRKT, Fields: obj})
	}
	return out
}

func (a *MrktAdapter) ListNewest(ctx context.Context, limit int, sort SortKey) ([]RawItem, error) {
	return a.search(ctx, limit, sort, "", "")
}

func (a *MrktAdapter) GetByID(ctx context.Context, listingID string) (*RawItem, error) {
	headers, authErr := a.authHeaders(ctx)
	if authErr != nil {
		return nil, authErr
	}
	var item *RawItem
	err := RetryTransient(ctx, retryBase, retryMaxAttempts, func() error {
		resp, err := a.http.R().
			SetContext(ctx).
			SetHeaders(headers).
			Get(mrktBaseURL + "/gifts/" + listingID)
		if resp != nil && resp.StatusCode() == 404 {
			return nil
		}
		if cerr := classifyHTTPError(resp, err); cerr != nil {
			return cerr
		}
		fields, perr := decodeJSONObject(resp.Body())
		if perr != nil {
			return &ProtocolError{Cause: perr}
		}
		hash, ok := extractHash(fields)
		if !ok {
			return nil
		}
		fields["resolved_hash"] = hash
		ri := RawItem{Marketplace: MRKT, Fields: fields}
		item = &ri
		return nil
	})
	return item, err
}

func (a *MrktAdapter) GetGiftFloor(ctx context.Context, collection string) (decimal.Decimal, bool, error) {
	items, err := a.search(ctx, 20, SortPriceAsc, collection, "")
	if err != nil {
		return decimal.Zero, false, err
	}
	return minPriceOf(items)
}

func (a *MrktAdapter) GetModelFloor(ctx context.Context, collection, model string) (decimal.Decimal, bool, error) {
	items, err := a.search(ctx, 20, SortPriceAsc, collection, model)
	if err != nil {
		return decimal.Zero, false, err
	}
	return minPriceOf(items)
}

// GetModelSalesHistory: MRKT exposes no public sales-history endpoint in
// the original source, matching Portals' omission.
func (a *MrktAdapter) GetModelSalesHistory(ctx context.Context, collection, model string, limit int) ([]Sale, error) {
	return nil, nil
}
