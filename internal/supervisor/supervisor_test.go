package supervisor

import (
	"testing"

	"github.com/nertexqq/giftwatch/internal/marketplace"
	"github.com/nertexqq/giftwatch/internal/seenset"
)

func TestBaselineMarkedDoneOnlyAfterEveryMarketplaceSweeps(t *testing.T) {
	baseline := &seenset.BaselineFlag{}
	sv := New(baseline, nil, nil)

	// Simulate two registered marketplaces without actually starting pollers.
	sv.handles[marketplace.Portals] = &marketplaceHandle{name: marketplace.Portals, cancel: func() {}}
	sv.handles[marketplace.Tonnel] = &marketplaceHandle{name: marketplace.Tonnel, cancel: func() {}}

	sv.OnSweep(marketplace.Portals, true)
	if baseline.Done() {
		t.Fatal("baseline must not be done until every marketplace has swept")
	}
	sv.OnSweep(marketplace.Tonnel, true)
	if !baseline.Done() {
		t.Fatal("expected baseline done once every marketplace has swept successfully")
	}
}

func TestFailedSweepDoesNotCountTowardBaseline(t *testing.T) {
	baseline := &seenset.BaselineFlag{}
	sv := New(baseline, nil, nil)
	sv.handles[marketplace.Portals] = &marketplaceHandle{name: marketplace.Portals, cancel: func() {}}

	sv.OnSweep(marketplace.Portals, false)
	if baseline.Done() {
		t.Fatal("a failed sweep must not mark baseline done")
	}
}

func TestFilterChangeResetsSeenSetsAndBaseline(t *testing.T) {
	baseline := &seenset.BaselineFlag{}
	baseline.MarkDone()
	sv := New(baseline, nil, nil)

	seen := seenset.New(10)
	seen.Observe("portals_1")
	sv.handles[marketplace.Portals] = &marketplaceHandle{name: marketplace.Portals, seen: seen, cancel: func() {}}

	sv.onFilterChange()

	if baseline.Done() {
		t.Fatal("expected baseline to be reset on filter change")
	}
	if seen.Len() != 0 {
		t.Fatal("expected seen-set to be cleared on filter change")
	}
}
