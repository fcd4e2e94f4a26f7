// Package marketplace wraps the four gift marketplaces (Portals, Tonnel,
// MRKT, GetGems) behind one common adapter contract, owning auth headers,
// rate-limit backoff and price-unit normalization per marketplace.
package marketplace

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Name identifies one of the four supported marketplaces.
type Name string

const (
	Portals Name = "portals"
	Tonnel  Name = "tonnel"
	MRKT    Name = "mrkt"
	GetGems Name = "getgems"
)

// SortKey is the shared sort vocabulary across marketplaces; adapters map
// it onto their native sort parameter, or sort client-side when the
// native API has no equivalent.
type SortKey string

const (
	SortLatest           SortKey = "latest"
	SortPriceAsc         SortKey = "price_asc"
	SortPriceDesc        SortKey = "price_desc"
	SortGiftIDAsc        SortKey = "gift_id_asc"
	SortGiftIDDesc       SortKey = "gift_id_desc"
	SortModelRarityAsc   SortKey = "model_rarity_asc"
	SortModelRarityDesc  SortKey = "model_rarity_desc"
)

// maxPageSize is the per-marketplace page size cap from spec §4.1.
var maxPageSize = map[Name]int{
	Portals: 50,
	Tonnel:  30,
	MRKT:    20,
	GetGems: 100,
}

// ClampLimit coerces limit into the marketplace's max page size without
// error, per the "boundary behaviors" contract in spec §8.
func ClampLimit(mp Name, limit int) int {
	if limit < 1 {
		return 1
	}
	if cap, ok := maxPageSize[mp]; ok && limit > cap {
		return cap
	}
	return limit
}

// RawItem is the adapter's tagged-variant output: an opaque field bag
// scoped to one marketplace, never consumed outside the Normalizer. This
// eliminates the duck-typed "object or dict" handling the original source
// spread across every call site (spec §9).
type RawItem struct {
	Marketplace Name
	Fields      map[string]any
}

func (r RawItem) str(key string) (string, bool) {
	v, ok := r.Fields[key]
	if !ok || v == nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		if t == "" {
			return "", false
		}
		return t, true
	case fmt.Stringer:
		return t.String(), true
	default:
		s := fmt.Sprintf("%v", t)
		return s, s != ""
	}
}

// Str returns the first present, non-empty string field among keys, in order.
func (r RawItem) Str(keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := r.str(k); ok {
			return v, true
		}
	}
	return "", false
}

// Num returns the first present numeric-or-numeric-string field among keys.
func (r RawItem) Num(keys ...string) (decimal.Decimal, bool) {
	for _, k := range keys {
		v, ok := r.Fields[k]
		if !ok || v == nil {
			continue
		}
		if d, ok := toDecimal(v); ok {
			return d, true
		}
	}
	return decimal.Zero, false
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case decimal.Decimal:
		return t, true
	case float64:
		return decimal.NewFromFloat(t), true
	case float32:
		return decimal.NewFromFloat32(t), true
	case int:
		return decimal.NewFromInt(int64(t)), true
	case int64:
		return decimal.NewFromInt(t), true
	case string:
		cleaned := cleanPriceString(t)
		if cleaned == "" {
			return decimal.Zero, false
		}
		d, err := decimal.NewFromString(cleaned)
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	default:
		return decimal.Zero, false
	}
}

// Sale is one historical sale returned by model_sales_history.
type Sale struct {
	GiftNumber  string
	Price       decimal.Decimal
	Marketplace Name
	SoldAt      time.Time
	NFTURL      string
}

// TokenProvider is the external auth collaborator: it hands adapters the
// current bearer/init-data credential for a marketplace, and is asked to
// refresh it when an adapter observes an AuthError. Readers snapshot the
// token at call start; the provider replaces it atomically on refresh.
type TokenProvider interface {
	Token(ctx context.Context, mp Name) (string, error)
	Refresh(ctx context.Context, mp Name) (string, error)
}

// Adapter is the common shape every marketplace wraps its HTTP API into.
type Adapter interface {
	Name() Name
	ListNewest(ctx context.Context, limit int, sort SortKey) ([]RawItem, error)
	GetByID(ctx context.Context, listingID string) (*RawItem, error)
	GetGiftFloor(ctx context.Context, collection string) (decimal.Decimal, bool, error)
	GetModelFloor(ctx context.Context, collection, model string) (decimal.Decimal, bool, error)
	GetModelSalesHistory(ctx context.Context, collection, model string, limit int) ([]Sale, error)
}

// Error kinds, per spec §7. Only TransientError is retried by adapters
// internally; AuthError and ProtocolError propagate to the Poller.
type TransientError struct{ Cause error }

func (e *TransientError) Error() string { return fmt.Sprintf("transient marketplace error: %v", e.Cause) }
func (e *TransientError) Unwrap() error { return e.Cause }

type AuthError struct{ Cause error }

func (e *AuthError) Error() string { return fmt.Sprintf("marketplace auth error: %v", e.Cause) }
func (e *AuthError) Unwrap() error { return e.Cause }

type ProtocolError struct{ Cause error }

func (e *ProtocolError) Error() string { return fmt.Sprintf("marketplace protocol error: %v", e.Cause) }
func (e *ProtocolError) Unwrap() error { return e.Cause }

// PermanentError means the marketplace cannot be started at all (missing
// config); the Poller for it never starts.
type PermanentError struct{ Cause error }

func (e *PermanentError) Error() string { return fmt.Sprintf("marketplace permanent error: %v", e.Cause) }
func (e *PermanentError) Unwrap() error { return e.Cause }

func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

func IsAuth(err error) bool {
	var a *AuthError
	return errors.As(err, &a)
}

func IsProtocol(err error) bool {
	var p *ProtocolError
	return errors.As(err, &p)
}

// RetryTransient runs fn up to maxAttempts times, retrying only on
// TransientError with exponential backoff starting at base, per §4.1.
func RetryTransient(ctx context.Context, base time.Duration, maxAttempts int, fn func() error) error {
	var lastErr error
	delay := base
	for attempt := 0; attempt < maxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !IsTransient(lastErr) {
			return lastErr
		}
		if attempt == maxAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return lastErr
}
