// Package enrich attaches gift-floor, model-floor and Tonnel sales
// history to a normalized Listing, within bounded wall-clock deadlines.
package enrich

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nertexqq/giftwatch/internal/marketplace"
	"github.com/nertexqq/giftwatch/internal/normalize"
)

const (
	// FloorDeadline bounds the gift/model floor fetch per spec §4.3.
	FloorDeadline = 3 * time.Second
	// SalesDeadline bounds the Tonnel sales-history fetch per spec §4.3.
	SalesDeadline = 5 * time.Second
)

// Enriched is the Listing plus whatever the Enricher could attach within
// its deadlines. Missing values are left as (zero, false).
type Enriched struct {
	Listing         normalize.Listing
	GiftFloor       decimal.Decimal
	HasGiftFloor    bool
	ModelFloor      decimal.Decimal
	HasModelFloor   bool
	SalesHistory    []marketplace.Sale
}

// Enricher fetches floors from the listing's own marketplace and sales
// history unconditionally from Tonnel, which acts as the price-history
// oracle for every marketplace per spec §4.3.
type Enricher struct {
	adapters map[marketplace.Name]marketplace.Adapter
	tonnel   marketplace.Adapter
	cache    *FloorCache
}

func NewEnricher(adapters map[marketplace.Name]marketplace.Adapter, cache *FloorCache) *Enricher {
	return &Enricher{adapters: adapters, tonnel: adapters[marketplace.Tonnel], cache: cache}
}

// Enrich runs the gift-floor, model-floor and sales-history fetches
// concurrently, each individually bounded by its own deadline, per spec
// §4.3. A fetch failure or cache miss followed by an adapter error simply
// leaves that field unset; Enrich itself never returns an error, matching
// the Dispatcher's "enrichment failures degrade gracefully" contract.
func (e *Enricher) Enrich(ctx context.Context, l normalize.Listing) Enriched {
	result := Enriched{Listing: l}

	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		v, ok := e.giftFloor(ctx, l)
		result.GiftFloor, result.HasGiftFloor = v, ok
	}()
	go func() {
		defer wg.Done()
		v, ok := e.modelFloor(ctx, l)
		result.ModelFloor, result.HasModelFloor = v, ok
	}()
	go func() {
		defer wg.Done()
		result.SalesHistory = e.salesHistory(ctx, l)
	}()

	wg.Wait()
	return result
}

func (e *Enricher) giftFloor(ctx context.Context, l normalize.Listing) (decimal.Decimal, bool) {
	if cached, ok := e.cache.Get(l.Marketplace, ScopeGift, l.CollectionName, ""); ok {
		return cached, true
	}
	adapter, ok := e.adapters[l.Marketplace]
	if !ok {
		return decimal.Zero, false
	}
	fctx, cancel := context.WithTimeout(ctx, FloorDeadline)
	defer cancel()
	v, found, err := adapter.GetGiftFloor(fctx, l.CollectionName)
	if err != nil || !found {
		return decimal.Zero, false
	}
	e.cache.Set(l.Marketplace, ScopeGift, l.CollectionName, "", v)
	return v, true
}

func (e *Enricher) modelFloor(ctx context.Context, l normalize.Listing) (decimal.Decimal, bool) {
	if l.ModelName == "" || l.ModelName == normalize.NotApplicable {
		return decimal.Zero, false
	}
	if cached, ok := e.cache.Get(l.Marketplace, ScopeModel, l.CollectionName, l.ModelName); ok {
		return cached, true
	}
	adapter, ok := e.adapters[l.Marketplace]
	if !ok {
		return decimal.Zero, false
	}
	fctx, cancel := context.WithTimeout(ctx, FloorDeadline)
	defer cancel()
	v, found, err := adapter.GetModelFloor(fctx, l.CollectionName, l.ModelName)
	if err != nil || !found {
		return decimal.Zero, false
	}
	e.cache.Set(l.Marketplace, ScopeModel, l.CollectionName, l.ModelName, v)
	return v, true
}

func (e *Enricher) salesHistory(ctx context.Context, l normalize.Listing) []marketplace.Sale {
	if e.tonnel == nil || l.ModelName == "" || l.ModelName == normalize.NotApplicable {
		return nil
	}
	sctx, cancel := context.WithTimeout(ctx, SalesDeadline)
	defer cancel()
	sales, err := e.tonnel.GetModelSalesHistory(sctx, l.CollectionName, l.ModelName, 5)
	if err != nil {
		return nil
	}
	return sales
}
