package embedding

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/pdfrag/internal/domain"
)

// flakyEmbedder fails the first n batch calls with err.
type flakyEmbedder struct {
	failures int
	err      error
	calls    int
}

func (f *flakyEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	res, err := f.BatchEmbed(ctx, []string{text})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{Embedding: res.Embeddings[0]}, nil
}

func (f *flakyEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	f.calls++
	if f.calls <= f.failures {
		return domain.BatchEmbeddingResult{}, f.err
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1}
	}
	return domain.BatchEmbeddingResult{Embeddings: out}, nil
}

func newInstantRetrying(inner domain.Embedder, attempts int) *Retrying {
	r := NewRetrying(inner, RetryOpts{MaxAttempts: attempts, InitialWait: time.Second, Jitter: true}, "m", zap.NewNop())
	r.after = func(time.Duration) <-chan time.Time {
		ch := make(chan time.Time, 1)
		ch <- time.Now()
		return ch
	}
	return r
}

func TestRetrying_RecoversFromRateLimit(t *testing.T) {
	inner := &flakyEmbedder{failures: 2, err: fmt.Errorf("429: %w", domain.ErrRateLimited)}
	r := newInstantRetrying(inner, 3)

	res, err := r.BatchEmbed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embeddings) != 2 || inner.calls != 3 {
		t.Errorf("expected success on 3rd call, calls=%d", inner.calls)
	}
}

func TestRetrying_GivesUpAfterMaxAttempts(t *testing.T) {
	inner := &flakyEmbedder{failures: 10, err: fmt.Errorf("502: %w", domain.ErrEmbeddingProviderError)}
	r := newInstantRetrying(inner, 3)

	_, err := r.Embed(context.Background(), "a")
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if inner.calls != 3 {
		t.Errorf("expected 3 calls, got %d", inner.calls)
	}
}

func TestRetrying_DoesNotRetryPermanentErrors(t *testing.T) {
	inner := &flakyEmbedder{failures: 10, err: fmt.Errorf("dims: %w", domain.ErrVectorDimMismatch)}
	r := newInstantRetrying(inner, 5)

	if _, err := r.BatchEmbed(context.Background(), []string{"a"}); err == nil {
		t.Fatal("expected error")
	}
	if inner.calls != 1 {
		t.Errorf("expected 1 call, got %d", inner.calls)
	}
}

func TestRetrying_DoesNotRetryRejectedRequests(t *testing.T) {
	rejected := fmt.Errorf("embedding API error 401: invalid api key: %w",
		fmt.Errorf("%w: %w", domain.ErrProviderRejected, domain.ErrEmbeddingProviderError))
	inner := &flakyEmbedder{failures: 10, err: rejected}
	r := newInstantRetrying(inner, 5)

	_, err := r.BatchEmbed(context.Background(), []string{"a"})
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected ErrEmbeddingProviderError, got %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("expected 1 call, got %d", inner.calls)
	}
}

func TestRetrying_RetriesServerErrors(t *testing.T) {
	inner := &flakyEmbedder{failures: 1, err: fmt.Errorf("embedding API error 503: %w", domain.ErrEmbeddingProviderError)}
	r := newInstantRetrying(inner, 3)

	if _, err := r.BatchEmbed(context.Background(), []string{"a"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 2 {
		t.Errorf("expected 2 calls, got %d", inner.calls)
	}
}

func TestRetrying_NilLogger(t *testing.T) {
	inner := &flakyEmbedder{failures: 1, err: domain.ErrRateLimited}
	r := NewRetrying(inner, RetryOpts{MaxAttempts: 2}, "m", nil)
	r.after = func(time.Duration) <-chan time.Time {
		ch := make(chan time.Time, 1)
		ch <- time.Now()
		return ch
	}

	if _, err := r.BatchEmbed(context.Background(), []string{"a"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRetrying_StopsOnCancel(t *testing.T) {
	inner := &flakyEmbedder{failures: 10, err: domain.ErrRateLimited}
	r := NewRetrying(inner, RetryOpts{MaxAttempts: 5, InitialWait: time.Hour}, "m", zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	r.after = func(time.Duration) <-chan time.Time {
		cancel()
		return make(chan time.Time)
	}

	_, err := r.BatchEmbed(ctx, []string{"a"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("expected 1 call before cancel, got %d", inner.calls)
	}
}
