package redisstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store caches completed translations so repeated requests for the same
// (model, languages, text) skip the model entirely on the synchronous path.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func New(addr, password string, db int, ttl time.Duration) *Store {
	return &Store{
		rdb: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		ttl: ttl,
	}
}

func (s *Store) Close() error { return s.rdb.Close() }

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func cacheKey(model, sourceLang, targetLang, text string) string {
	h := sha256.New()
	for _, part := range []string{model, sourceLang, targetLang, text} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return "translate:cache:" + hex.EncodeToString(h.Sum(nil))
}

// GetTranslation returns the cached translation and whether it was present.
func (s *Store) GetTranslation(ctx context.Context, model, sourceLang, targetLang, text string) (string, bool, error) {
	v, err := s.rdb.Get(ctx, cacheKey(model, sourceLang, targetLang, text)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *Store) SetTranslation(ctx context.Context, model, sourceLang, targetLang, text, translated string) error {
	return s.rdb.Set(ctx, cacheKey(model, sourceLang, targetLang, text), translated, s.ttl).Err()
}
