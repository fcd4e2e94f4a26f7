package marketplace

import "testing"

func TestExtractHashPrefersValidIDField(t *testing.T) {
	fields := map[string]any{
		"id":   "0123456789abcdef0123456789abcdef",
		"hash": "ffffffffffffffffffffffffffffffff",
	}
	got, ok := extractHash(fields)
	if !ok || got != "0123456789abcdef0123456789abcdef" {
		t.Fatalf("expected the valid id field to win, got %q ok=%v", got, ok)
	}
}

func TestExtractHashFallsBackInPriorityOrder(t *testing.T) {
	fields := map[string]any{
		"id":     "not-a-hash",
		"token":  "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		"hashId": "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
	}
	got, ok := extractHash(fields)
	if !ok || got != "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb" {
		t.Fatalf("expected hashId to win over token per fallback priority, got %q ok=%v", got, ok)
	}
}

func TestExtractHashStripsDashes(t *testing.T) {
	fields := map[string]any{"id": "01234567-89ab-cdef-0123-456789abcdef"}
	got, ok := extractHash(fields)
	if !ok || got != "0123456789abcdef0123456789abcdef" {
		t.Fatalf("expected dashes to be stripped, got %q ok=%v", got, ok)
	}
}

func TestExtractHashFailsWhenNoFieldResolves(t *testing.T) {
	fields := map[string]any{"id": "short", "uuid": "also-not-valid"}
	if _, ok := extractHash(fields); ok {
		t.Fatal("expected extraction to fail when no field is a valid 32-hex hash")
	}
}
