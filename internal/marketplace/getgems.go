package marketplace

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

const getgemsGraphQLURL = "https://api.getgems.io/graphql"

// GetgemsAdapter wraps the GetGems GraphQL API via a fixed-shape query,
// authenticated with a static API key rather than a rotating session
// token (getgems_wrapper.py never refreshes credentials mid-run).
type GetgemsAdapter struct {
	http   *resty.Client
	apiKey string
}

func NewGetgemsAdapter(apiKey string) *GetgemsAdapter {
	return &GetgemsAdapter{http: newHTTPClient(20), apiKey: apiKey}
}

func (a *GetgemsAdapter) Name() Name { return GetGems }

type getgemsGQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

func (a *GetgemsAdapter) do(ctx context.Context, query string, variables map[string]any) (map[string]any, error) {
	var out map[string]any
	err := RetryTransient(ctx, retryBase, retryMaxAttempts, func() error {
		resp, err := a.http.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/json").
			SetHeader("Authorization", "Bearer "+a.apiKey).
			SetBody(getgemsGQLRequest{Query: query, Variables: variables}).
			Post(getgemsGraphQLURL)
		if cerr := classifyHTTPError(resp, err); cerr != nil {
			return cerr
		}
		parsed, perr := decodeJSONObject(resp.Body())
		if perr != nil {
			return &ProtocolError{Cause: perr}
		}
		if errs, ok := parsed["errors"]; ok && errs != nil {
			return &ProtocolError{Cause: fmt.Errorf("getgems graphql error: %v", errs)}
		}
		data, _ := parsed["data"].(map[string]any)
		out = data
		return nil
	})
	return out, err
}

const getgemsSearchQuery = `
query SearchGifts($collection: String!, $limit: Int!) {
  nftsOnSale(collectionAddress: $collection, first: $limit) {
    items { id name attributes sale { fullPrice price } previewImageUrl }
  }
}`

func (a *GetgemsAdapter) search(ctx context.Context, limit int, sort_ SortKey, collection string) ([]RawItem, error) {
	limit = ClampLimit(GetGems, limit)
	data, err := a.do(ctx, getgemsSearchQuery, map[string]any{
		"collection": collection,
		"limit":      limit,
	})
	if err != nil {
		return nil, err
	}
	items := getgemsItemsFromData(data)
	if sort_ != SortLatest {
		sortGetgemsItems(items, sort_)
	}
	return items, nil
}

// sortGetgemsItems sorts client-side by price for SortPriceAsc and
// SortPriceDesc; every other sort key leaves the API's order unchanged.
func sortGetgemsItems(items []RawItem, key SortKey) {
	less := func(i, j int) bool {
		pi, _ := items[i].Num("price")
		pj, _ := items[j].Num("price")
		switch key {
		case SortPriceAsc:
			return pi.LessThan(pj)
		case SortPriceDesc:
			return pi.GreaterThan(pj)
		default:
			return false
		}
	}
	sort.SliceStable(items, less)
}

// getgemsItemsFromData parses the GraphQL item shape, splitting
// "Name #123" into name/gift_number via a rightmost " #" split and
// lifting model/backdrop out of the attributes traitType map, grounded
// on getgems_wrapper.py:_parse_gift_item.
func getgemsItemsFromData(data map[string]any) []RawItem {
	onSale, _ := data["nftsOnSale"].(map[string]any)
	rawItems, _ := onSale["items"].([]any)
	out := make([]RawItem, 0, len(rawItems))
	for _, raw := range rawItems {
		obj, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if name, ok := obj["name"].(string); ok {
			if idx := strings.LastIndex(name, " #"); idx >= 0 {
				obj["name"] = name[:idx]
				obj["gift_number"] = name[idx+2:]
			}
		}
		if attrs, ok := obj["attributes"].([]any); ok {
			for _, a := range attrs {
				attr, ok := a.(map[string]any)
				if !ok {
					continue
				}
				traitType, _ := attr["traitType"].(string)
				value := attr["value"]
				switch traitType {
				case "model":
					obj["model"] = value
				case "backdrop":
					obj["backdrop"] = value
				}
			}
		}
		if sale, ok := obj["sale"].(map[string]any); ok {
			if v, ok := sale["fullPrice"]; ok && v != nil {
				obj["price"] = v
			} else if v, ok := sale["price"]; ok {
				obj["price"] = v
			}
		}
		out = append(out, RawItem{Marketplace: GetGems, Fields: obj})
	}
	return out
}

func (a *GetgemsAdapter) ListNewest(ctx context.Context, limit int, sort SortKey) ([]RawItem, error) {
	return a.search(ctx, limit, sort, "")
}

func (a *GetgemsAdapter) GetByID(ctx context.Context, listingID string) (*RawItem, error) {
	const q = `query Item($id: String!) { nft(id: $id) { id name attributes sale { fullPrice price } previewImageUrl } }`
	data, err := a.do(ctx, q, map[string]any{"id": listingID})
	if err != nil {
		return nil, err
	}
	nft, ok := data["nft"].(map[string]any)
	if !ok || nft == nil {
		return nil, nil
	}
	items := getgemsItemsFromData(map[string]any{"nftsOnSale": map[string]any{"items": []any{nft}}})
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

func (a *GetgemsAdapter) GetGiftFloor(ctx context.Context, collection string) (decimal.Decimal, bool, error) {
	items, err := a.search(ctx, 100, SortPriceAsc, collection)
	if err != nil {
		return decimal.Zero, false, err
	}
	return minPriceOf(items)
}

func (a *GetgemsAdapter) GetModelFloor(ctx context.Context, collection, model string) (decimal.Decimal, bool, error) {
	items, err := a.search(ctx, 100, SortPriceAsc, collection)
	if err != nil {
		return decimal.Zero, false, err
	}
	modelClean := stripRarityParens(model)
	var matching []RawItem
	for _, it := range items {
		if m, ok := it.Str("model"); ok && strings.EqualFold(m, modelClean) {
			matching = append(matching, it)
		}
	}
	return minPriceOf(matching)
}

// GetModelSalesHistory is an intentional empty stub: getgems_wrapper.py's
// get_getgems_model_sales_history and get_getgems_gift_history are
// themselves unimplemented no-ops, so GetGems listings never carry a
// sales-history section (spec §9 and §4.1 both treat this as expected).
func (a *GetgemsAdapter) GetModelSalesHistory(ctx context.Context, collection, model string, limit int) ([]Sale, error) {
	return nil, nil
}
