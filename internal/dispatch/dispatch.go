// Package dispatch takes an enriched Listing and a set of matched users
// and fans it out to the Telegram and WebSocket sinks under bounded
// concurrency.
package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/nertexqq/giftwatch/internal/enrich"
)

// DefaultWorkerPoolSize is the default simultaneous-send cap from spec §4.6.
const DefaultWorkerPoolSize = 10

// TelegramSender is the external Telegram Bot API collaborator. Photo
// send failures fall back to text; failures of either for one user must
// not affect others (spec §4.6/§7 DeliveryError).
type TelegramSender interface {
	SendPhoto(ctx context.Context, chatID string, photoURL, caption, keyboardLabel, keyboardURL string) error
	SendText(ctx context.Context, chatID string, text, keyboardLabel, keyboardURL string) error
}

// WebSocketBroadcaster emits the new_gift event independently of Telegram
// delivery, per spec §4.6 step 6.
type WebSocketBroadcaster interface {
	Broadcast(event string, payload any)
}

// ImageMirror optionally resolves a mirrored CDN URL for a listing's photo
// (see SPEC_FULL §4 imagecache note). Dispatch calls it synchronously
// before the sends and uses the result only as the Telegram photo URL; on
// an error or empty result the original URL is used. A nil ImageMirror
// disables mirroring entirely.
type ImageMirror interface {
	Mirror(ctx context.Context, sourceURL string) (string, error)
}

type Logger interface {
	Warn(msg string, fields ...any)
	Error(msg string, fields ...any)
}

// Dispatcher fans out one enriched Listing to many recipients under a
// bounded worker pool. It never consults a seen-set: deduplication is the
// Poller's responsibility (spec §4.6 idempotence note).
type Dispatcher struct {
	sender    TelegramSender
	ws        WebSocketBroadcaster
	mirror    ImageMirror
	log       Logger
	semaphore chan struct{}
}

func New(sender TelegramSender, ws WebSocketBroadcaster, mirror ImageMirror, log Logger, poolSize int) *Dispatcher {
	if poolSize <= 0 {
		poolSize = DefaultWorkerPoolSize
	}
	return &Dispatcher{
		sender:    sender,
		ws:        ws,
		mirror:    mirror,
		log:       log,
		semaphore: make(chan struct{}, poolSize),
	}
}

// Dispatch sends e to each user in userIDs via Telegram (photo-then-text
// fallback) and independently broadcasts the WebSocket event. If the
// matched set is empty, nothing is sent (spec §4.6 step 3).
func (d *Dispatcher) Dispatch(ctx context.Context, e enrich.Enriched, userIDs []string) {
	if len(userIDs) == 0 {
		return
	}

	now := time.Now()
	message := FormatMessage(e, now)
	keyboardLabel := InlineKeyboardLabel(string(e.Listing.Marketplace))
	keyboardURL := e.Listing.MarketplaceLink

	photoURL := d.resolvePhoto(ctx, e.Listing.PhotoURL)

	var wg sync.WaitGroup
	for _, userID := range userIDs {
		userID := userID
		select {
		case d.semaphore <- struct{}{}:
		case <-ctx.Done():
			if d.log != nil {
				d.log.Warn("context cancelled while waiting for a dispatch slot, dropping remaining sends",
					"composite_id", e.Listing.CompositeID)
			}
			wg.Wait()
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-d.semaphore }()
			d.sendOne(ctx, userID, photoURL, message, keyboardLabel, keyboardURL)
		}()
	}
	wg.Wait()

	if d.ws != nil {
		d.ws.Broadcast("new_gift", NewGiftEventFrom(e, now))
	}
}

func (d *Dispatcher) resolvePhoto(ctx context.Context, sourceURL string) string {
	if d.mirror == nil || sourceURL == "" {
		return sourceURL
	}
	mirrored, err := d.mirror.Mirror(ctx, sourceURL)
	if err != nil || mirrored == "" {
		return sourceURL
	}
	return mirrored
}

func (d *Dispatcher) sendOne(ctx context.Context, chatID, photoURL, message, keyboardLabel, keyboardURL string) {
	if photoURL != "" {
		if err := d.sender.SendPhoto(ctx, chatID, photoURL, message, keyboardLabel, keyboardURL); err == nil {
			return
		} else if d.log != nil {
			d.log.Warn("photo send failed, falling back to text", "chat_id", chatID, "error", err)
		}
	}
	if err := d.sender.SendText(ctx, chatID, message, keyboardLabel, keyboardURL); err != nil && d.log != nil {
		d.log.Error("text send failed", "chat_id", chatID, "error", err)
	}
}

// NewGiftEvent is the JSON payload for the new_gift WebSocket event, per
// spec §6: Listing fields plus floor_price, model_floor_price, timestamp.
type NewGiftEvent struct {
	CompositeID     string  `json:"composite_id"`
	Marketplace     string  `json:"marketplace"`
	ListingID       string  `json:"listing_id"`
	CollectionName  string  `json:"collection_name"`
	ModelName       string  `json:"model_name"`
	BackdropName    string  `json:"backdrop_name,omitempty"`
	GiftNumber      string  `json:"gift_number"`
	PriceTON        string  `json:"price_ton"`
	ModelRarity     string  `json:"model_rarity,omitempty"`
	PhotoURL        string  `json:"photo_url,omitempty"`
	MarketplaceLink string  `json:"marketplace_link,omitempty"`
	NFTLink         string  `json:"nft_link,omitempty"`
	FloorPrice      *string `json:"floor_price,omitempty"`
	ModelFloorPrice *string `json:"model_floor_price,omitempty"`
	Timestamp       int64   `json:"timestamp"`
}

func NewGiftEventFrom(e enrich.Enriched, now time.Time) NewGiftEvent {
	l := e.Listing
	ev := NewGiftEvent{
		CompositeID:     l.CompositeID,
		Marketplace:     string(l.Marketplace),
		ListingID:       l.ListingID,
		CollectionName:  l.CollectionName,
		ModelName:       l.ModelName,
		BackdropName:    l.BackdropName,
		GiftNumber:      l.GiftNumber,
		PriceTON:        l.PriceTON.StringFixed(2),
		ModelRarity:     l.ModelRarity,
		PhotoURL:        l.PhotoURL,
		MarketplaceLink: l.MarketplaceLink,
		NFTLink:         l.NFTLink,
		Timestamp:       now.Unix(),
	}
	if e.HasGiftFloor {
		s := e.GiftFloor.StringFixed(2)
		ev.FloorPrice = &s
	}
	if e.HasModelFloor {
		s := e.ModelFloor.StringFixed(2)
		ev.ModelFloorPrice = &s
	}
	return ev
}
