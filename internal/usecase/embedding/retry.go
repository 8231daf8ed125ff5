package embedding

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/pdfrag/internal/domain"
	"github.com/kailas-cloud/pdfrag/internal/metrics"
)

// RetryOpts configures retry behavior.
type RetryOpts struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Jitter      bool
}

// DefaultRetry provides sensible retry defaults.
var DefaultRetry = RetryOpts{
	MaxAttempts: 3,
	InitialWait: time.Second,
	MaxWait:     30 * time.Second,
	Jitter:      true,
}

// Retrying retries transient provider failures with exponential backoff.
// Rate limits, 5xx and transport failures are retried. 4xx rejections, dimension
// mismatches and cancellation are not.
type Retrying struct {
	inner  domain.Embedder
	opts   RetryOpts
	model  string
	logger *zap.Logger
	after  func(time.Duration) <-chan time.Time
}

// NewRetrying wraps inner with retries.
func NewRetrying(inner domain.Embedder, opts RetryOpts, model string, logger *zap.Logger) *Retrying {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retrying{inner: inner, opts: opts, model: model, logger: logger, after: time.After}
}

// Embed implements domain.Embedder.
func (r *Retrying) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	var res domain.EmbeddingResult
	err := r.do(ctx, func(ctx context.Context) error {
		var err error
		res, err = r.inner.Embed(ctx, text)
		return err
	})
	return res, err
}

// BatchEmbed implements domain.BatchEmbedder. The whole batch is retried as a unit.
func (r *Retrying) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	var res domain.BatchEmbeddingResult
	err := r.do(ctx, func(ctx context.Context) error {
		var err error
		res, err = domain.EmbedBatch(ctx, r.inner, texts)
		return err
	})
	return res, err
}

// HealthCheck delegates without retries.
func (r *Retrying) HealthCheck(ctx context.Context) error {
	if hc, ok := r.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}

func (r *Retrying) do(ctx context.Context, f func(context.Context) error) error {
	wait := r.opts.InitialWait
	var err error

	for attempt := 0; attempt < r.opts.MaxAttempts; attempt++ {
		err = f(ctx)
		if err == nil || !retryable(err) || attempt == r.opts.MaxAttempts-1 {
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		sleepDur := wait
		if r.opts.Jitter {
			sleepDur = time.Duration(float64(wait) * (0.5 + rand.Float64())) //nolint:gosec // jitter only
		}
		if r.opts.MaxWait > 0 && sleepDur > r.opts.MaxWait {
			sleepDur = r.opts.MaxWait
		}

		r.logger.Warn("Retrying embedding request",
			zap.String("model", r.model),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", sleepDur),
			zap.Error(err),
		)
		metrics.EmbeddingRetriesTotal.WithLabelValues(r.model).Inc()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.after(sleepDur):
		}

		wait *= 2
		if r.opts.MaxWait > 0 && wait > r.opts.MaxWait {
			wait = r.opts.MaxWait
		}
	}
	if err != nil {
		return fmt.Errorf("after retries: %w", err)
	}
	return nil
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, domain.ErrVectorDimMismatch) || errors.Is(err, domain.ErrProviderRejected) {
		return false
	}
	return errors.Is(err, domain.ErrRateLimited) || errors.Is(err, domain.ErrEmbeddingProviderError)
}
