package dispatch

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nertexqq/giftwatch/internal/enrich"
	"github.com/nertexqq/giftwatch/internal/marketplace"
	"github.com/nertexqq/giftwatch/internal/normalize"
)

type fakeSender struct {
	mu        sync.Mutex
	photoErr  error
	photoSent []string
	textSent  []string
}

func (f *fakeSender) SendPhoto(ctx context.Context, chatID, photoURL, caption, label, url string) error {
	if f.photoErr != nil {
		return f.photoErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.photoSent = append(f.photoSent, chatID)
	return nil
}

func (f *fakeSender) SendText(ctx context.Context, chatID, text, label, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.textSent = append(f.textSent, chatID)
	return nil
}

type fakeBroadcaster struct {
	count int32
}

func (f *fakeBroadcaster) Broadcast(event string, payload any) {
	atomic.AddInt32(&f.count, 1)
}

func sampleEnriched() enrich.Enriched {
	return enrich.Enriched{
		Listing: normalize.Listing{
			Marketplace:    marketplace.Portals,
			CompositeID:    "portals_1",
			CollectionName: "Plush Pepe",
			ModelName:      "Bubblegum",
			GiftNumber:     "42",
			PriceTON:       decimal.NewFromFloat(5),
		},
	}
}

func TestDispatchSendsPhotoToEachMatchedUser(t *testing.T) {
	sender := &fakeSender{}
	bcast := &fakeBroadcaster{}
	d := New(sender, bcast, nil, nil, 4)

	e := sampleEnriched()
	e.Listing.PhotoURL = "https://cdn.example.com/a.png"

	d.Dispatch(context.Background(), e, []string{"u1", "u2", "u3"})

	if len(sender.photoSent) != 3 {
		t.Fatalf("photoSent = %v, want 3 entries", sender.photoSent)
	}
	if atomic.LoadInt32(&bcast.count) != 1 {
		t.Fatalf("expected exactly one broadcast, got %d", bcast.count)
	}
}

func TestDispatchFallsBackToTextOnPhotoError(t *testing.T) {
	sender := &fakeSender{photoErr: context.DeadlineExceeded}
	bcast := &fakeBroadcaster{}
	d := New(sender, bcast, nil, nil, 4)

	e := sampleEnriched()
	e.Listing.PhotoURL = "https://cdn.example.com/a.png"

	d.Dispatch(context.Background(), e, []string{"u1"})

	if len(sender.textSent) != 1 {
		t.Fatalf("expected text fallback, textSent = %v", sender.textSent)
	}
}

func TestDispatchNoOpWhenNoMatchedUsers(t *testing.T) {
	sender := &fakeSender{}
	bcast := &fakeBroadcaster{}
	d := New(sender, bcast, nil, nil, 4)

	d.Dispatch(context.Background(), sampleEnriched(), nil)

	if len(sender.photoSent)+len(sender.textSent) != 0 {
		t.Fatal("expected no sends when matched set is empty")
	}
	if atomic.LoadInt32(&bcast.count) != 0 {
		t.Fatal("expected no broadcast when matched set is empty")
	}
}

func TestRelativeDateLabels(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		ago  time.Duration
		want string
	}{
		{30 * time.Second, "только что"},
		{90 * time.Second, "1 минуту назад"},
		{5 * time.Minute, "5 минут назад"},
		{90 * time.Minute, "1 час назад"},
		{5 * time.Hour, "5 часов назад"},
		{30 * time.Hour, "1 день назад"},
		{3 * 24 * time.Hour, "3 дней назад"},
	}
	for _, tc := range cases {
		got := relativeDate(now.Add(-tc.ago), now)
		if got != tc.want {
			t.Errorf("relativeDate(-%v) = %q, want %q", tc.ago, got, tc.want)
		}
	}
	old := now.Add(-10 * 24 * time.Hour)
	if got := relativeDate(old, now); got != old.Format("02.01.2006") {
		t.Errorf("expected absolute date beyond 7 days, got %q", got)
	}
}

func TestFormatMessageOmitsEmptySalesBlockquote(t *testing.T) {
	msg := FormatMessage(sampleEnriched(), time.Now())
	if strings.Contains(msg, "<blockquote>") {
		t.Fatal("expected no blockquote section for empty sales history")
	}
}
