package usage

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Report is the embedding token usage for the current UTC day and month.
type Report struct {
	Enabled         bool   `json:"enabled"`
	Provider        string `json:"provider"`
	Model           string `json:"model"`
	DayStart        int64  `json:"day_start"`
	DayEnd          int64  `json:"day_end"`
	MonthStart      int64  `json:"month_start"`
	MonthEnd        int64  `json:"month_end"`
	TokensToday     int64  `json:"tokens_today"`
	TokensThisMonth int64  `json:"tokens_this_month"`
}

// Service counts embedding tokens and reports them.
type Service struct {
	counter  Counter
	provider string
	model    string
	logger   *zap.Logger
	now      func() time.Time
}

// New creates a Service. counter can be nil (tracking disabled).
func New(counter Counter, provider, model string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		counter:  counter,
		provider: provider,
		model:    model,
		logger:   logger,
		now:      time.Now,
	}
}

// RecordTokens adds tokens to the counters. Failures are logged, never returned.
func (s *Service) RecordTokens(ctx context.Context, tokens int) {
	if s.counter == nil || tokens <= 0 {
		return
	}
	if err := s.counter.Add(ctx, s.provider, int64(tokens), s.now()); err != nil {
		s.logger.Warn("Failed to record token usage",
			zap.String("provider", s.provider),
			zap.Int("tokens", tokens),
			zap.Error(err),
		)
	}
}

// GetReport builds the usage report for the current day and month.
func (s *Service) GetReport(ctx context.Context) (Report, error) {
	now := s.now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	r := Report{
		Enabled:    s.counter != nil,
		Provider:   s.provider,
		Model:      s.model,
		DayStart:   dayStart.UnixMilli(),
		DayEnd:     dayStart.Add(24 * time.Hour).UnixMilli(),
		MonthStart: monthStart.UnixMilli(),
		MonthEnd:   monthStart.AddDate(0, 1, 0).UnixMilli(),
	}
	if s.counter == nil {
		return r, nil
	}

	daily, monthly, err := s.counter.Totals(ctx, s.provider, now)
	if err != nil {
		return Report{}, fmt.Errorf("usage totals: %w", err)
	}
	r.TokensToday = daily
	r.TokensThisMonth = monthly
	return r, nil
}
