package marketplace

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

const portalsBaseURL = "https://portal-market.com/api/"

// portalsSorts maps the shared SortKey vocabulary onto Portals' native
// sort_by query fragment, grounded on portalsmp.py:search's SORTS table.
var portalsSorts = map[SortKey]string{
	SortLatest:          "&sort_by=listed_at+desc&status=listed&exclude_bundled=true&premarket_status=all",
	SortPriceAsc:        "&sort_by=price+asc",
	SortPriceDesc:       "&sort_by=price+desc",
	SortGiftIDAsc:       "&sort_by=external_collection_number+asc",
	SortGiftIDDesc:      "&sort_by=external_collection_number+desc",
	SortModelRarityAsc:  "&sort_by=model_rarity+asc",
	SortModelRarityDesc: "&sort_by=model_rarity+desc",
}

// PortalsAdapter wraps https://portal-market.com/api/.
type PortalsAdapter struct {
	http   *resty.Client
	tokens TokenProvider
}

func NewPortalsAdapter(tokens TokenProvider) *PortalsAdapter {
	return &PortalsAdapter{http: newHTTPClient(30), tokens: tokens}
}

func (a *PortalsAdapter) Name() Name { return Portals }

func (a *PortalsAdapter) authHeader(ctx context.Context) (string, error) {
	token, err := a.tokens.Token(ctx, Portals)
	if err != nil {
		return "", &AuthError{Cause: err}
	}
	if token == "" {
		return "", nil
	}
	if strings.HasPrefix(token, "tma ") {
		return token, nil
	}
	return "tma " + token, nil
}

func portalsHeaders(auth string) map[string]string {
	return map[string]string{
		"Authorization": auth,
		"Accept":        "application/json, text/plain, */*",
		"Origin":        "https://portal-market.com",
		"Referer":       "https://portal-market.com/",
		"User-Agent":    "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/137.0.0.0 Safari/537.36",
	}
}

// capitalize title-cases each word, matching portalsmp.py:search's cap().
func capitalize(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		if len(r) > 0 {
			r[0] = []rune(strings.ToUpper(string(r[0])))[0]
			words[i] = string(r)
		}
	}
	return strings.Join(words, " ")
}

func (a *PortalsAdapter) buildSearchURL(limit int, sort SortKey, collection, model string) string {
	limit = ClampLimit(Portals, limit)
	sortFrag, ok := portalsSorts[sort]
	if !ok {
		sortFrag = portalsSorts[SortPriceAsc]
	}
	u := fmt.Sprintf("%snfts/search?offset=0&limit=%d%s", portalsBaseURL, limit, sortFrag)
	if collection != "" {
		u += "&filter_by_collections=" + url.QueryEscape(capitalize(collection))
	}
	if model != "" {
		u += "&filter_by_models=" + url.QueryEscape(capitalize(model))
	}
	return u
}

func (a *PortalsAdapter) search(ctx context.Context, limit int, sort SortKey, collection, model string) ([]RawItem, error) {
	auth, authErr := a.authHeader(ctx)
	if authErr != nil {
		return nil, authErr
	}
	u := a.buildSearchURL(limit, sort, collection, model)

	var items []RawItem
	err := RetryTransient(ctx, retryBase, retryMaxAttempts, func() error {
		resp, err := a.http.R().
			SetContext(ctx).
			SetHeaders(portalsHeaders(auth)).
			Get(u)
		if cerr := classifyHTTPError(resp, err); cerr != nil {
			return cerr
		}
		parsed, perr := decodeJSONAny(resp.Body())
		if perr != nil {
			return &ProtocolError{Cause: perr}
		}
		items = portalsItemsFromResponse(parsed)
		return nil
	})
	return items, err
}

func (a *PortalsAdapter) ListNewest(ctx context.Context, limit int, sort SortKey) ([]RawItem, error) {
	return a.search(ctx, limit, sort, "", "")
}

func (a *PortalsAdapter) GetByID(ctx context.Context, listingID string) (*RawItem, error) {
	auth, authErr := a.authHeader(ctx)
	if authErr != nil {
		return nil, authErr
	}
	cleanID := listingID
	if idx := strings.LastIndex(listingID, "_"); idx >= 0 {
		cleanID = listingID[idx+1:]
	}

	var item *RawItem
	err := RetryTransient(ctx, retryBase, retryMaxAttempts, func() error {
		resp, err := a.http.R().
			SetContext(ctx).
			SetHeaders(portalsHeaders(auth)).
			Get(portalsBaseURL + "nfts/" + cleanID)
		if resp != nil && resp.StatusCode() == 401 {
			return nil // search_by_id treats 401 as "not found", not AuthError
		}
		if cerr := classifyHTTPError(resp, err); cerr != nil {
			return cerr
		}
		fields, perr := decodeJSONObject(resp.Body())
		if perr != nil {
			return &ProtocolError{Cause: perr}
		}
		ri := RawItem{Marketplace: Portals, Fields: fields}
		item = &ri
		return nil
	})
	return item, err
}

func (a *PortalsAdapter) GetGiftFloor(ctx context.Context, collection string) (decimal.Decimal, bool, error) {
	items, err := a.search(ctx, 100, SortPriceAsc, collection, "")
	if err != nil {
		return decimal.Zero, false, err
	}
	return minPriceOf(items)
}

func (a *PortalsAdapter) GetModelFloor(ctx context.Context, collection, model string) (decimal.Decimal, bool, error) {
	modelClean := stripRarityParens(model)
	items, err := a.search(ctx, 100, SortPriceAsc, collection, modelClean)
	if err != nil {
		return decimal.Zero, false, err
	}
	return minPriceOf(items)
}

// GetModelSalesHistory is not meaningfully implemented by Portals; per
// spec §4.1 only Tonnel is required to provide sales history.
func (a *PortalsAdapter) GetModelSalesHistory(ctx context.Context, collection, model string, limit int) ([]Sale, error) {
	return nil, nil
}

var rarityParens = regexp.MustCompile(`\s*\([^)]*\)`)

func stripRarityParens(s string) string {
	return strings.TrimSpace(rarityParens.ReplaceAllString(s, ""))
}

func minPriceOf(items []RawItem) (decimal.Decimal, bool, error) {
	var min decimal.Decimal
	found := false
	for _, it := range items {
		d, ok := it.Num("price", "floor_price")
		if !ok {
			continue
		}
		d = NormalizePrice(d)
		if d.LessThanOrEqual(decimal.Zero) {
			continue
		}
		if !found || d.LessThan(min) {
			min = d
			found = true
		}
	}
	return min, found, nil
}

// portalsItemsFromResponse extracts the results/items/data list from
// Portals' several observed response shapes and normalizes the model /
// model_rarity / backdrop attributes carried inside each item's
// "attributes" array, grounded on portalsmp.py:search's normalization pass.
func portalsItemsFromResponse(parsed any) []RawItem {
	list := extractList(parsed)
	out := make([]RawItem, 0, len(list))
	for _, raw := range list {
		obj, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if attrs, ok := obj["attributes"].([]any); ok {
			for _, a := range attrs {
				attr, ok := a.(map[string]any)
				if !ok {
					continue
				}
				switch attr["type"] {
				case "model":
					if v, ok := attr["value"]; ok {
						obj["model"] = v
					}
					if rpm, ok := attr["rarity_per_mille"]; ok && rpm != nil {
						obj["model_rarity"] = fmt.Sprintf("%v‰", rpm)
					}
				case "backdrop":
					if v, ok := attr["value"]; ok {
						obj["backdrop"] = v
					}
				}
			}
		}
		out = append(out, RawItem{Marketplace: Portals, Fields: obj})
	}
	return out
}

func extractList(parsed any) []any {
	switch v := parsed.(type) {
	case []any:
		return v
	case map[string]any:
		for _, key := range []string{"results", "items"} {
			if l, ok := v[key].([]any); ok {
				return l
			}
		}
		if d, ok := v["data"].(map[string]any); ok {
			if l, ok := d["results"].([]any); ok {
				return l
			}
		}
		if l, ok := v["data"].([]any); ok {
			return l
		}
	}
	return nil
}
