package marketplace

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

const (
	tonnelSearchURL  = "https://gifts2.tonnel.network/api/pageGifts"
	tonnelDefaultFee = "0.06"
)

// RateGate throttles calls to a shared resource to at most one per
// interval, process-wide. Tonnel bans callers that exceed roughly one
// request per two seconds (tonnelmp_wrapper.py's retry/backoff comments),
// so every Tonnel call — across all pollers and enrichment lookups —
// passes through a single gate instance.
type RateGate interface {
	Wait(ctx context.Context) error
}

// TonnelAdapter wraps https://gifts2.tonnel.network/api/pageGifts.
type TonnelAdapter struct {
	http    *resty.Client
	gate    RateGate
	feeRate decimal.Decimal
}

func NewTonnelAdapter(gate RateGate, feeRate decimal.Decimal) *TonnelAdapter {
	if feeRate.IsZero() {
		feeRate, _ = decimal.NewFromString(tonnelDefaultFee)
	}
	return &TonnelAdapter{http: newHTTPClient(20), gate: gate, feeRate: feeRate}
}

func (a *TonnelAdapter) Name() Name { return Tonnel }

var tonnelSorts = map[SortKey]string{
	SortLatest:          `{"message_post_time":-1}`,
	SortPriceAsc:        `{"price":1}`,
	SortPriceDesc:       `{"price":-1}`,
	SortGiftIDAsc:       `{"gift_num":1}`,
	SortGiftIDDesc:      `{"gift_num":-1}`,
	SortModelRarityAsc:  `{"model_rank":1}`,
	SortModelRarityDesc: `{"model_rank":-1}`,
}

type tonnelSearchBody struct {
	Page     int    `json:"page"`
	Limit    int    `json:"limit"`
	Sort     string `json:"sort"`
	Filter   string `json:"filter"`
	Ref      int    `json:"ref"`
	PriceRange []int `json:"price_range,omitempty"`
}

func (a *TonnelAdapter) search(ctx context.Context, limit int, sort SortKey, collection, model string) ([]RawItem, error) {
	limit = ClampLimit(Tonnel, limit)
	sortFrag, ok := tonnelSorts[sort]
	if !ok {
		sortFrag = tonnelSorts[SortPriceAsc]
	}

	filter := "{"
	parts := []string{}
	if collection != "" {
		parts = append(parts, fmt.Sprintf(`"gift_name":%q`, collection))
	}
	if model != "" {
		parts = append(parts, fmt.Sprintf(`"model":%q`, model))
	}
	filter += strings.Join(parts, ",") + "}"

	body := tonnelSearchBody{Page: 1, Limit: limit, Sort: sortFrag, Filter: filter, Ref: 0}

	var items []RawItem
	err := RetryTransient(ctx, retryBase, retryMaxAttempts, func() error {
		if a.gate != nil {
			if err := a.gate.Wait(ctx); err != nil {
				return err
			}
		}
		resp, err := a.http.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/json").
			SetBody(body).
			Post(tonnelSearchURL)
		if cerr := classifyHTTPError(resp, err); cerr != nil {
			return cerr
		}
		parsed, perr := decodeJSONAny(resp.Body())
		if perr != nil {
			return &ProtocolError{Cause: perr}
		}
		items = a.itemsFromResponse(parsed)
		return nil
	})
	return items, err
}

func (a *TonnelAdapter) itemsFromResponse(parsed any) []RawItem {
	list := extractList(parsed)
	out := make([]RawItem, 0, len(list))
	for _, raw := range list {
		obj, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if rawPrice, ok := obj["price"]; ok {
			if d, ok := toDecimal(rawPrice); ok {
				obj["price"] = a.applyFee(d)
			}
		}
		out = append(out, RawItem{Marketplace: Tonnel, Fields: obj})
	}
	return out
}

// applyFee multiplies a Tonnel-quoted price by (1 + feeRate), matching
// gui/server.py's TONNEL_FEE_RATE handling. The underlying raw price from
// the API is never stored; only the fee-adjusted value the buyer actually
// pays is surfaced downstream.
func (a *TonnelAdapter) applyFee(raw decimal.Decimal) decimal.Decimal {
	one := decimal.NewFromInt(1)
	return NormalizePrice(raw).Mul(one.Add(a.feeRate)).Round(2)
}

func (a *TonnelAdapter) ListNewest(ctx context.Context, limit int, sort SortKey) ([]RawItem, error) {
	return a.search(ctx, limit, sort, "", "")
}

func (a *TonnelAdapter) GetByID(ctx context.Context, listingID string) (*RawItem, error) {
	items, err := a.search(ctx, 30, SortLatest, "", "")
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		if id, ok := it.Str("gift_id", "id", "_id"); ok && id == listingID {
			return &it, nil
		}
	}
	return nil, nil
}

func (a *TonnelAdapter) GetGiftFloor(ctx context.Context, collection string) (decimal.Decimal, bool, error) {
	items, err := a.search(ctx, 30, SortPriceAsc, collection, "")
	if err != nil {
		return decimal.Zero, false, err
	}
	return minPriceOf(items)
}

func (a *TonnelAdapter) GetModelFloor(ctx context.Context, collection, model string) (decimal.Decimal, bool, error) {
	items, err := a.search(ctx, 30, SortPriceAsc, collection, stripRarityParens(model))
	if err != nil {
		return decimal.Zero, false, err
	}
	return minPriceOf(items)
}

// GetModelSalesHistory is the only adapter required by spec §4.1 to
// return real sales data; it calls Tonnel's dedicated history endpoint,
// grounded on tonnelmp_wrapper.py's candidate-endpoint probing.
func (a *TonnelAdapter) GetModelSalesHistory(ctx context.Context, collection, model string, limit int) ([]Sale, error) {
	limit = ClampLimit(Tonnel, limit)
	var sales []Sale
	err := RetryTransient(ctx, retryBase, retryMaxAttempts, func() error {
		if a.gate != nil {
			if err := a.gate.Wait(ctx); err != nil {
				return err
			}
		}
		resp, err := a.http.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"gift_name": collection,
				"model":     stripRarityParens(model),
				"limit":     fmt.Sprintf("%d", limit),
			}).
			Get("https://gifts2.tonnel.network/api/saleHistory")
		if cerr := classifyHTTPError(resp, err); cerr != nil {
			return cerr
		}
		parsed, perr := decodeJSONAny(resp.Body())
		if perr != nil {
			return &ProtocolError{Cause: perr}
		}
		sales = a.salesFromResponse(parsed)
		return nil
	})
	return sales, err
}

func (a *TonnelAdapter) salesFromResponse(parsed any) []Sale {
	list := extractList(parsed)
	out := make([]Sale, 0, len(list))
	for _, raw := range list {
		obj, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		item := RawItem{Marketplace: Tonnel, Fields: obj}
		price, ok := item.Num("price")
		if !ok {
			continue
		}
		giftNum, _ := item.Str("gift_num", "gift_id")
		var soldAt time.Time
		if ts, ok := item.Str("sold_at", "message_post_time"); ok {
			if parsedT, perr := time.Parse(time.RFC3339, ts); perr == nil {
				soldAt = parsedT
			}
		}
		out = append(out, Sale{
			GiftNumber:  giftNum,
			Price:       a.applyFee(price),
			Marketplace: Tonnel,
			SoldAt:      soldAt,
		})
	}
	return out
}
