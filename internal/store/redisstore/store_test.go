package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newTestStore(t *testing.T, ttl time.Duration) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s := New(mr.Addr(), "", 0, ttl)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestGetTranslation_MissThenHit(t *testing.T) {
	s, _ := newTestStore(t, time.Minute)
	ctx := context.Background()

	if _, hit, err := s.GetTranslation(ctx, "llama3", "en", "fr", "hello"); err != nil || hit {
		t.Fatalf("expected clean miss, hit=%v err=%v", hit, err)
	}

	if err := s.SetTranslation(ctx, "llama3", "en", "fr", "hello", "bonjour"); err != nil {
		t.Fatalf("set: %v", err)
	}

	v, hit, err := s.GetTranslation(ctx, "llama3", "en", "fr", "hello")
	if err != nil || !hit {
		t.Fatalf("expected hit, hit=%v err=%v", hit, err)
	}
	if v != "bonjour" {
		t.Fatalf("value = %q", v)
	}
}

func TestGetTranslation_KeyIsSensitiveToAllParts(t *testing.T) {
	s, _ := newTestStore(t, time.Minute)
	ctx := context.Background()

	if err := s.SetTranslation(ctx, "llama3", "en", "fr", "hello", "bonjour"); err != nil {
		t.Fatalf("set: %v", err)
	}

	// same text, different target language must miss
	if _, hit, _ := s.GetTranslation(ctx, "llama3", "en", "de", "hello"); hit {
		t.Fatal("cache hit across different target language")
	}
	// different model must miss
	if _, hit, _ := s.GetTranslation(ctx, "qwen2", "en", "fr", "hello"); hit {
		t.Fatal("cache hit across different model")
	}
}

func TestSetTranslation_Expires(t *testing.T) {
	s, mr := newTestStore(t, time.Minute)
	ctx := context.Background()

	if err := s.SetTranslation(ctx, "llama3", "en", "fr", "hello", "bonjour"); err != nil {
		t.Fatalf("set: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	if _, hit, err := s.GetTranslation(ctx, "llama3", "en", "fr", "hello"); err != nil || hit {
		t.Fatalf("expected expiry, hit=%v err=%v", hit, err)
	}
}
