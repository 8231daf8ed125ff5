package usage

import (
	"context"
	"time"
)

// Counter persists token counters per provider.
type Counter interface {
	Add(ctx context.Context, provider string, tokens int64, now time.Time) error
	Totals(ctx context.Context, provider string, now time.Time) (daily, monthly int64, err error)
}
