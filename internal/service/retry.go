package service

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/iliyamo/wellness-session-booking/internal/repository"
)

// RetryPolicy bounds the retries of ledger operations that hit a transient
// storage conflict.
type RetryPolicy struct {
	Attempts int           // retries after the first try
	Base     time.Duration // first backoff delay, doubled each retry
}

// DefaultRetryPolicy is used when no policy is configured.
var DefaultRetryPolicy = RetryPolicy{Attempts: 4, Base: 25 * time.Millisecond}

func (p RetryPolicy) backoff() retry.Backoff {
	base := p.Base
	if base <= 0 {
		base = DefaultRetryPolicy.Base
	}
	b := retry.NewExponential(base)
	b = retry.WithJitterPercent(20, b)
	return retry.WithMaxRetries(uint64(max(p.Attempts, 0)), b)
}

// do runs fn, retrying only on repository.ErrTxConflict.  When the retries
// are used up the last conflict is returned.
func (p RetryPolicy) do(ctx context.Context, fn func(ctx context.Context) error) error {
	return retry.Do(ctx, p.backoff(), func(ctx context.Context) error {
		err := fn(ctx)
		if errors.Is(err, repository.ErrTxConflict) {
			return retry.RetryableError(err)
		}
		return err
	})
}
