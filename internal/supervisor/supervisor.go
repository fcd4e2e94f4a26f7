// Package supervisor starts and stops per-marketplace Pollers,
// coordinates the BaselineFlag across them, and reacts to filter-change
// events by resetting the SeenSet and re-entering baseline mode.
package supervisor

import (
	"context"
	"sync"
	"time"

	"github.com/nertexqq/giftwatch/internal/marketplace"
	"github.com/nertexqq/giftwatch/internal/poller"
	"github.com/nertexqq/giftwatch/internal/seenset"
)

type Logger interface {
	Info(msg string, fields ...any)
	Warn(msg string, fields ...any)
}

// VersionSource reports the current filter-configuration version; a
// change since the last observed value is treated as a filter-change
// event, per spec §4.7 (the event's transport is an external, unspecified
// collaborator — this module polls a version counter).
type VersionSource interface {
	Version(ctx context.Context) (int64, error)
}

type marketplaceHandle struct {
	name   marketplace.Name
	poller *poller.Poller
	seen   *seenset.Set
	cancel context.CancelFunc
}

// Supervisor owns the set of Pollers (one per marketplace), the
// BaselineFlag, and the filter-change reaction.
type Supervisor struct {
	mu       sync.Mutex
	handles  map[marketplace.Name]*marketplaceHandle
	baseline *seenset.BaselineFlag
	versions VersionSource
	log      Logger

	sweepMu      sync.Mutex
	sweepResults map[marketplace.Name]bool
	lastVersion  int64
}

func New(baseline *seenset.BaselineFlag, versions VersionSource, log Logger) *Supervisor {
	return &Supervisor{
		handles:      make(map[marketplace.Name]*marketplaceHandle),
		baseline:     baseline,
		versions:     versions,
		log:          log,
		sweepResults: make(map[marketplace.Name]bool),
	}
}

// OnSweep is passed to every Poller as its SweepObserver; once every
// registered marketplace has reported at least one successful sweep, the
// BaselineFlag transitions to done, per spec §4.4.
func (sv *Supervisor) OnSweep(mp marketplace.Name, ok bool) {
	sv.sweepMu.Lock()
	defer sv.sweepMu.Unlock()
	if !ok {
		return
	}
	sv.sweepResults[mp] = true
	if sv.baseline.Done() {
		return
	}
	sv.mu.Lock()
	total := len(sv.handles)
	sv.mu.Unlock()
	if len(sv.sweepResults) >= total && total > 0 {
		sv.baseline.MarkDone()
		if sv.log != nil {
			sv.log.Info("baseline sweep complete across all enabled marketplaces")
		}
	}
}

// Enable registers and starts a Poller for mp, replacing any existing one.
func (sv *Supervisor) Enable(ctx context.Context, mp marketplace.Name, p *poller.Poller, seen *seenset.Set) {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	if existing, ok := sv.handles[mp]; ok {
		existing.cancel()
	}
	pctx, cancel := context.WithCancel(ctx)
	sv.handles[mp] = &marketplaceHandle{name: mp, poller: p, seen: seen, cancel: cancel}
	go p.Run(pctx)
	if sv.log != nil {
		sv.log.Info("marketplace poller enabled", "marketplace", mp)
	}
}

// Disable stops mp's Poller if running.
func (sv *Supervisor) Disable(mp marketplace.Name) {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	if h, ok := sv.handles[mp]; ok {
		h.cancel()
		delete(sv.handles, mp)
	}
	sv.sweepMu.Lock()
	delete(sv.sweepResults, mp)
	sv.sweepMu.Unlock()
	if sv.log != nil {
		sv.log.Info("marketplace poller disabled", "marketplace", mp)
	}
}

// Toggle stops mp if running, or is a no-op if it was never enabled
// (callers use Enable to (re)start it).
func (sv *Supervisor) Toggle(mp marketplace.Name) {
	sv.mu.Lock()
	_, running := sv.handles[mp]
	sv.mu.Unlock()
	if running {
		sv.Disable(mp)
	}
}

// WatchFilterChanges polls VersionSource at the given interval; any
// change resets every marketplace's SeenSet and the BaselineFlag, per
// spec §4.7.
func (sv *Supervisor) WatchFilterChanges(ctx context.Context, interval time.Duration) {
	if sv.versions == nil {
		return
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if v, err := sv.versions.Version(ctx); err == nil {
		sv.lastVersion = v
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			v, err := sv.versions.Version(ctx)
			if err != nil {
				if sv.log != nil {
					sv.log.Warn("failed to poll filter version", "error", err)
				}
				continue
			}
			if v != sv.lastVersion {
				sv.lastVersion = v
				sv.onFilterChange()
			}
		}
	}
}

func (sv *Supervisor) onFilterChange() {
	sv.mu.Lock()
	handles := make([]*marketplaceHandle, 0, len(sv.handles))
	for _, h := range sv.handles {
		handles = append(handles, h)
	}
	sv.mu.Unlock()

	for _, h := range handles {
		h.seen.Reset()
	}
	sv.baseline.Reset()

	sv.sweepMu.Lock()
	sv.sweepResults = make(map[marketplace.Name]bool)
	sv.sweepMu.Unlock()

	if sv.log != nil {
		sv.log.Info("filter change detected: seen-set and baseline reset")
	}
}
