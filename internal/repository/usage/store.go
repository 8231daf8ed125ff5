package usage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/kailas-cloud/pdfrag/internal/db"
)

const (
	dailyTTL = 48 * time.Hour
	monthTTL = 62 * 24 * time.Hour
)

// store is the consumer interface for counter operations (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	IncrBy(ctx context.Context, key string, val int64) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// Store keeps per-provider daily and monthly token counters (INCRBY + GET with TTL).
type Store struct {
	store  store
	prefix string
}

// New creates a counter store. Keys look like {prefix}usage:{provider}:daily:2026-01-31.
func New(s store, keyPrefix string) *Store {
	return &Store{store: s, prefix: keyPrefix + "usage:"}
}

// Add increments both the daily and the monthly counter for now.
func (s *Store) Add(ctx context.Context, provider string, tokens int64, now time.Time) error {
	if tokens <= 0 {
		return nil
	}
	if err := s.incr(ctx, s.dailyKey(provider, now), tokens, dailyTTL); err != nil {
		return err
	}
	return s.incr(ctx, s.monthlyKey(provider, now), tokens, monthTTL)
}

// Totals returns the tokens counted today and this month. Missing keys count as zero.
func (s *Store) Totals(ctx context.Context, provider string, now time.Time) (daily, monthly int64, err error) {
	if daily, err = s.get(ctx, s.dailyKey(provider, now)); err != nil {
		return 0, 0, err
	}
	if monthly, err = s.get(ctx, s.monthlyKey(provider, now)); err != nil {
		return 0, 0, err
	}
	return daily, monthly, nil
}

func (s *Store) incr(ctx context.Context, key string, val int64, ttl time.Duration) error {
	if _, err := s.store.IncrBy(ctx, key, val); err != nil {
		return fmt.Errorf("usage INCRBY %s: %w", key, err)
	}
	// Set TTL only if the key has no expiry yet (NX, not reset on repeat).
	if err := s.store.Expire(ctx, key, ttl, true); err != nil {
		return fmt.Errorf("usage EXPIRE %s: %w", key, err)
	}
	return nil
}

func (s *Store) get(ctx context.Context, key string) (int64, error) {
	data, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("usage GET %s: %w", key, err)
	}

	val, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("usage GET %s parse: %w", key, err)
	}
	return val, nil
}

func (s *Store) dailyKey(provider string, now time.Time) string {
	return s.prefix + provider + ":daily:" + now.UTC().Format("2006-01-02")
}

func (s *Store) monthlyKey(provider string, now time.Time) string {
	return s.prefix + provider + ":monthly:" + now.UTC().Format("2006-01")
}
