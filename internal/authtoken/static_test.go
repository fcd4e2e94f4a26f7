package authtoken

import (
	"context"
	"testing"

	"github.com/nertexqq/giftwatch/internal/marketplace"
)

func TestTokenReturnsConfiguredValue(t *testing.T) {
	p := NewStaticProvider(map[marketplace.Name]string{marketplace.Portals: "tma abc"}, nil)
	tok, err := p.Token(context.Background(), marketplace.Portals)
	if err != nil || tok != "tma abc" {
		t.Fatalf("expected configured token, got %q err=%v", tok, err)
	}
}

func TestTokenErrorsWhenUnconfigured(t *testing.T) {
	p := NewStaticProvider(nil, nil)
	if _, err := p.Token(context.Background(), marketplace.Tonnel); err == nil {
		t.Fatal("expected an error for an unconfigured marketplace")
	}
}

func TestRefreshReturnsSameStaticToken(t *testing.T) {
	p := NewStaticProvider(map[marketplace.Name]string{marketplace.MRKT: "bearer-xyz"}, nil)
	tok, err := p.Refresh(context.Background(), marketplace.MRKT)
	if err != nil || tok != "bearer-xyz" {
		t.Fatalf("expected refresh to return the same static token, got %q err=%v", tok, err)
	}
}
