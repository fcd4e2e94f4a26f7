package poller

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nertexqq/giftwatch/internal/dispatch"
	"github.com/nertexqq/giftwatch/internal/enrich"
	"github.com/nertexqq/giftwatch/internal/filter"
	"github.com/nertexqq/giftwatch/internal/marketplace"
	"github.com/nertexqq/giftwatch/internal/seenset"
)

type fakeAdapter struct {
	mu    sync.Mutex
	items []marketplace.RawItem
	err   error
}

func (a *fakeAdapter) Name() marketplace.Name { return marketplace.Portals }

func (a *fakeAdapter) ListNewest(ctx context.Context, limit int, sort marketplace.SortKey) ([]marketplace.RawItem, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return nil, a.err
	}
	return a.items, nil
}

func (a *fakeAdapter) GetByID(ctx context.Context, id string) (*marketplace.RawItem, error) {
	return nil, nil
}
func (a *fakeAdapter) GetGiftFloor(ctx context.Context, collection string) (decimal.Decimal, bool, error) {
	return decimal.Zero, false, nil
}
func (a *fakeAdapter) GetModelFloor(ctx context.Context, collection, model string) (decimal.Decimal, bool, error) {
	return decimal.Zero, false, nil
}
func (a *fakeAdapter) GetModelSalesHistory(ctx context.Context, collection, model string, limit int) ([]marketplace.Sale, error) {
	return nil, nil
}

func rawListing(id, collection string, priceTON float64) marketplace.RawItem {
	return marketplace.RawItem{
		Marketplace: marketplace.Portals,
		Fields: map[string]any{
			"id":         id,
			"collection": collection,
			"price":      priceTON,
		},
	}
}

func newTestPoller(adapter *fakeAdapter, seen *seenset.Set, baseline *seenset.BaselineFlag, onSweep SweepObserver) (*Poller, *fakeSenderRecorder) {
	recorder := &fakeSenderRecorder{}
	dispatcher := dispatch.New(recorder, recorder, nil, nil, 4)
	enricher := enrich.NewEnricher(map[marketplace.Name]marketplace.Adapter{marketplace.Portals: adapter}, enrich.NewFloorCache(time.Minute))

	p := New(Config{
		Name:     marketplace.Portals,
		Adapter:  adapter,
		Seen:     seen,
		Baseline: baseline,
		RuleSource: staticRuleSource{
			users: []string{"u1"},
		},
		Enricher:   enricher,
		Dispatcher: dispatcher,
		Interval:   time.Hour,
		OnSweep:    onSweep,
	})
	return p, recorder
}

type staticRuleSource struct{ users []string }

func (s staticRuleSource) SubscribedUsers(marketplace.Name) ([]string, error) { return s.users, nil }
func (s staticRuleSource) RulesFor(userID string) (filter.UserRules, error) {
	// Marketplaces are listed concretely rather than via the Any sentinel:
	// userconfig.splitMarketplaces expands "ANY" to every literal
	// marketplace name before a Rule reaches the filter package.
	return filter.UserRules{UserID: userID, Rules: []filter.Rule{{
		Collections:  []string{filter.Any},
		Models:       []string{filter.Any},
		Backdrops:    []string{filter.Any},
		Marketplaces: []marketplace.Name{marketplace.Portals, marketplace.Tonnel, marketplace.MRKT, marketplace.GetGems},
	}}}, nil
}

type fakeSenderRecorder struct {
	mu  sync.Mutex
	ids []string
}

func (r *fakeSenderRecorder) SendPhoto(ctx context.Context, chatID, photoURL, caption, label, url string) error {
	r.record(chatID)
	return nil
}
func (r *fakeSenderRecorder) SendText(ctx context.Context, chatID, text, label, url string) error {
	r.record(chatID)
	return nil
}
func (r *fakeSenderRecorder) Broadcast(event string, payload any) {}

func (r *fakeSenderRecorder) record(chatID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, chatID)
}

func (r *fakeSenderRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ids)
}

func TestSweepDuringBaselineNeverDispatches(t *testing.T) {
	adapter := &fakeAdapter{items: []marketplace.RawItem{rawListing("1", "PlushPepe", 5)}}
	seen := seenset.New(10)
	baseline := &seenset.BaselineFlag{}
	p, recorder := newTestPoller(adapter, seen, baseline, nil)

	p.sweep(context.Background())
	time.Sleep(50 * time.Millisecond)

	if recorder.count() != 0 {
		t.Fatalf("expected no dispatch while baseline is not done, got %d", recorder.count())
	}
	if seen.Len() != 1 {
		t.Fatalf("expected baseline sweep to still record the item as seen, got %d", seen.Len())
	}
}

func TestSweepAfterBaselineDispatchesOnlyNewItems(t *testing.T) {
	adapter := &fakeAdapter{items: []marketplace.RawItem{rawListing("1", "PlushPepe", 5)}}
	seen := seenset.New(10)
	baseline := &seenset.BaselineFlag{}
	baseline.MarkDone()
	p, recorder := newTestPoller(adapter, seen, baseline, nil)

	p.sweep(context.Background())
	time.Sleep(50 * time.Millisecond)
	if recorder.count() != 1 {
		t.Fatalf("expected exactly one dispatch for a new listing, got %d", recorder.count())
	}

	p.sweep(context.Background())
	time.Sleep(50 * time.Millisecond)
	if recorder.count() != 1 {
		t.Fatalf("expected no further dispatch for an already-seen listing, got %d", recorder.count())
	}
}

func TestSweepReportsSuccessToOnSweep(t *testing.T) {
	adapter := &fakeAdapter{items: nil}
	seen := seenset.New(10)
	baseline := &seenset.BaselineFlag{}

	var reported []bool
	var mu sync.Mutex
	p, _ := newTestPoller(adapter, seen, baseline, func(mp marketplace.Name, ok bool) {
		mu.Lock()
		defer mu.Unlock()
		reported = append(reported, ok)
	})

	p.sweep(context.Background())
	mu.Lock()
	defer mu.Unlock()
	if len(reported) != 1 || !reported[0] {
		t.Fatalf("expected a single successful sweep report, got %+v", reported)
	}
}
