package embedding

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/kailas-cloud/pdfrag/internal/domain"
)

// DefaultRateLimitBackoff is the pause imposed after the provider answers 429.
const DefaultRateLimitBackoff = 20 * time.Second

// RateLimited throttles provider calls with a token bucket, one token per API call.
// A 429 from the provider also pauses all callers until the backoff elapses.
type RateLimited struct {
	inner   domain.Embedder
	limiter *rate.Limiter
	backoff time.Duration

	mu      sync.Mutex
	retryAt time.Time
}

// NewRateLimited wraps inner. rps <= 0 disables the token bucket but keeps 429 backoff.
func NewRateLimited(inner domain.Embedder, rps float64, burst int) *RateLimited {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimited{
		inner:   inner,
		limiter: rate.NewLimiter(limit, burst),
		backoff: DefaultRateLimitBackoff,
	}
}

// Embed implements domain.Embedder.
func (r *RateLimited) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if err := r.wait(ctx); err != nil {
		return domain.EmbeddingResult{}, err
	}
	res, err := r.inner.Embed(ctx, text)
	r.observe(err)
	return res, err
}

// BatchEmbed implements domain.BatchEmbedder.
func (r *RateLimited) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if err := r.wait(ctx); err != nil {
		return domain.BatchEmbeddingResult{}, err
	}
	res, err := domain.EmbedBatch(ctx, r.inner, texts)
	r.observe(err)
	return res, err
}

// HealthCheck delegates without consuming a token.
func (r *RateLimited) HealthCheck(ctx context.Context) error {
	if hc, ok := r.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}

// wait blocks until the backoff window has passed and a token is available.
func (r *RateLimited) wait(ctx context.Context) error {
	r.mu.Lock()
	retryAt := r.retryAt
	r.mu.Unlock()

	if d := time.Until(retryAt); d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	return r.limiter.Wait(ctx)
}

func (r *RateLimited) observe(err error) {
	if err == nil || !errors.Is(err, domain.ErrRateLimited) {
		return
	}
	r.mu.Lock()
	r.retryAt = time.Now().Add(r.backoff)
	r.mu.Unlock()
}
