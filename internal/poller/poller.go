// Package poller runs one marketplace's list-newest loop: fetch, compare
// against the seen-set, and hand genuinely-new listings to the dispatch
// pipeline. Its fixed-interval ticker loop is adapted from the teacher's
// block-scanning loop, polling a REST endpoint instead of scanning chain
// logs; transient failures are counted and logged, and the next sweep
// still runs at the same interval.
package poller

import (
	"context"
	"time"

	"github.com/nertexqq/giftwatch/internal/dispatch"
	"github.com/nertexqq/giftwatch/internal/enrich"
	"github.com/nertexqq/giftwatch/internal/filter"
	"github.com/nertexqq/giftwatch/internal/marketplace"
	"github.com/nertexqq/giftwatch/internal/normalize"
	"github.com/nertexqq/giftwatch/internal/seenset"
)

const (
	// DefaultInterval is the default sleep between sweeps, per spec §4.5.
	DefaultInterval = time.Second
	// defaultListLimit is a conservative fetch size; adapters clamp it to
	// their own page-size cap regardless.
	defaultListLimit = 50
)

type Logger interface {
	Debug(msg string, fields ...any)
	Info(msg string, fields ...any)
	Warn(msg string, fields ...any)
	Error(msg string, fields ...any)
}

// SweepObserver is notified at the end of every sweep so the Supervisor
// can decide when every enabled marketplace has completed at least one
// successful sweep and flip the BaselineFlag, per spec §4.4.
type SweepObserver func(mp marketplace.Name, ok bool)

// Poller runs one marketplace's Idle → Fetching → Processing → Sleep
// state machine.
type Poller struct {
	name      marketplace.Name
	adapter   marketplace.Adapter
	tokens    marketplace.TokenProvider
	seen      *seenset.Set
	baseline  *seenset.BaselineFlag
	ruleSrc   filter.RuleSource
	enricher  *enrich.Enricher
	dispatcher *dispatch.Dispatcher
	interval  time.Duration
	log       Logger
	onSweep   SweepObserver

	consecutiveFailures int
}

type Config struct {
	Name       marketplace.Name
	Adapter    marketplace.Adapter
	Tokens     marketplace.TokenProvider
	Seen       *seenset.Set
	Baseline   *seenset.BaselineFlag
	RuleSource filter.RuleSource
	Enricher   *enrich.Enricher
	Dispatcher *dispatch.Dispatcher
	Interval   time.Duration
	Log        Logger
	OnSweep    SweepObserver
}

func New(cfg Config) *Poller {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		name:       cfg.Name,
		adapter:    cfg.Adapter,
		tokens:     cfg.Tokens,
		seen:       cfg.Seen,
		baseline:   cfg.Baseline,
		ruleSrc:    cfg.RuleSource,
		enricher:   cfg.Enricher,
		dispatcher: cfg.Dispatcher,
		interval:   interval,
		log:        cfg.Log,
		onSweep:    cfg.OnSweep,
	}
}

// Run drives the poll loop until ctx is cancelled. It responds to
// cancellation within one iteration, per spec §4.5.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			if p.log != nil {
				p.log.Info("poller stopping", "marketplace", p.name)
			}
			return
		case <-ticker.C:
			p.sweep(ctx)
		}
	}
}

func (p *Poller) sweep(ctx context.Context) {
	items, err := p.adapter.ListNewest(ctx, defaultListLimit, marketplace.SortLatest)
	if err != nil {
		p.handleSweepError(ctx, err)
		return
	}
	p.consecutiveFailures = 0

	users, err := p.ruleSrc.SubscribedUsers(p.name)
	if err != nil && p.log != nil {
		p.log.Warn("failed to load subscribed users for sweep", "marketplace", p.name, "error", err)
	}

	for _, raw := range items {
		listing, ok := normalize.Normalize(raw)
		if !ok {
			continue
		}
		firstSeen := p.seen.Observe(listing.CompositeID)
		if !p.baseline.Done() {
			continue // baseline sweep: record only, never emit
		}
		if !firstSeen {
			continue
		}
		p.handleNew(ctx, listing, users)
	}

	if p.onSweep != nil {
		p.onSweep(p.name, true)
	}
}

func (p *Poller) handleSweepError(ctx context.Context, err error) {
	switch {
	case marketplace.IsAuth(err):
		if p.log != nil {
			p.log.Warn("auth error, requesting re-auth", "marketplace", p.name, "error", err)
		}
		if p.tokens != nil {
			if _, rerr := p.tokens.Refresh(ctx, p.name); rerr != nil && p.log != nil {
				p.log.Error("re-auth failed", "marketplace", p.name, "error", rerr)
			}
		}
	case marketplace.IsTransient(err):
		p.consecutiveFailures++
		if p.log != nil {
			p.log.Warn("transient error after adapter retries, retrying next sweep", "marketplace", p.name, "error", err, "consecutive_failures", p.consecutiveFailures)
		}
	case marketplace.IsProtocol(err):
		if p.log != nil {
			p.log.Error("protocol error from adapter, skipping sweep", "marketplace", p.name, "error", err)
		}
	default:
		if p.log != nil {
			p.log.Error("unexpected sweep error", "marketplace", p.name, "error", err)
		}
	}
	if p.onSweep != nil {
		p.onSweep(p.name, false)
	}
}

// handleNew hands one genuinely-new listing to the enrich/match/dispatch
// pipeline as a non-blocking task, per spec §4.5 step 3.
func (p *Poller) handleNew(ctx context.Context, listing normalize.Listing, users []string) {
	go func() {
		enriched := p.enricher.Enrich(ctx, listing)
		matched, err := filter.Match(p.subscribedRuleSource(users), p.log, listing)
		if err != nil {
			if p.log != nil {
				p.log.Warn("filter match failed", "composite_id", listing.CompositeID, "error", err)
			}
			return
		}
		p.dispatcher.Dispatch(ctx, enriched, matched)
	}()
}

// subscribedRuleSource adapts the already-fetched user list for this
// sweep into a filter.RuleSource so Match doesn't re-query it per listing.
func (p *Poller) subscribedRuleSource(users []string) filter.RuleSource {
	return staticUserList{users: users, inner: p.ruleSrc}
}

type staticUserList struct {
	users []string
	inner filter.RuleSource
}

func (s staticUserList) SubscribedUsers(marketplace.Name) ([]string, error) { return s.users, nil }
func (s staticUserList) RulesFor(userID string) (filter.UserRules, error)   { return s.inner.RulesFor(userID) }
