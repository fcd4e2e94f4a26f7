// Package authtoken provides the default marketplace.TokenProvider: a
// static, per-marketplace credential loaded once from config. The
// original Python sources never rotate these (PORTALS_AUTH/TONNEL_AUTH/
// MRKT_AUTH are long-lived TMA init-data strings read once from the
// environment), so Refresh here only re-reads the same configured value
// and logs that no live re-authentication flow is wired; a future bot-
// driven re-login could replace this without touching marketplace.Adapter.
package authtoken

import (
	"context"
	"fmt"
	"sync"

	"github.com/nertexqq/giftwatch/internal/marketplace"
)

type Logger interface {
	Warn(msg string, fields ...any)
}

// StaticProvider hands out one fixed token per marketplace and treats
// Refresh as a no-op, since the upstream TMA init-data strings this
// project wraps are not rotated by anything this service controls.
type StaticProvider struct {
	mu     sync.RWMutex
	tokens map[marketplace.Name]string
	log    Logger
}

func NewStaticProvider(tokens map[marketplace.Name]string, log Logger) *StaticProvider {
	cp := make(map[marketplace.Name]string, len(tokens))
	for k, v := range tokens {
		cp[k] = v
	}
	return &StaticProvider{tokens: cp, log: log}
}

func (p *StaticProvider) Token(ctx context.Context, mp marketplace.Name) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	tok, ok := p.tokens[mp]
	if !ok || tok == "" {
		return "", fmt.Errorf("no auth token configured for marketplace %s", mp)
	}
	return tok, nil
}

// Refresh re-hands the same configured token: this provider has no
// credential rotation source to consult.
func (p *StaticProvider) Refresh(ctx context.Context, mp marketplace.Name) (string, error) {
	if p.log != nil {
		p.log.Warn("auth refresh requested but no rotation source is configured; reusing static token", "marketplace", mp)
	}
	return p.Token(ctx, mp)
}
