package guard

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-checkout/app/entity"
	"github.com/vibast-solutions/ms-go-checkout/app/ratelimit"
)

const DefaultDuplicateWindow = 5 * time.Minute

var (
	ErrDuplicatePayment  = errors.New("duplicate payment in flight")
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
)

type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: retry after %s", ErrRateLimitExceeded, e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error {
	return ErrRateLimitExceeded
}

type RateLimiter interface {
	Check(ctx context.Context, key string) (ratelimit.Decision, error)
}

type attemptFinder interface {
	FindActiveByDedupKey(ctx context.Context, dedupKey string, createdSince time.Time) (*entity.CheckoutAttempt, error)
}

type Guard struct {
	attempts        attemptFinder
	limiter         RateLimiter
	duplicateWindow time.Duration
	now             func() time.Time
}

func New(attempts attemptFinder, limiter RateLimiter, duplicateWindow time.Duration) *Guard {
	if duplicateWindow <= 0 {
		duplicateWindow = DefaultDuplicateWindow
	}
	return &Guard{
		attempts:        attempts,
		limiter:         limiter,
		duplicateWindow: duplicateWindow,
		now:             time.Now,
	}
}

func (g *Guard) DuplicateWindow() time.Duration {
	return g.duplicateWindow
}

// WindowStart is the oldest creation time still considered in flight.
func (g *Guard) WindowStart() time.Time {
	return g.now().UTC().Add(-g.duplicateWindow)
}

func (g *Guard) CheckDuplicate(ctx context.Context, studentID uint64, amount decimal.Decimal, currency string) error {
	existing, err := g.attempts.FindActiveByDedupKey(ctx, entity.DedupKeyFor(studentID, amount, currency), g.WindowStart())
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("%w: tx_ref=%s", ErrDuplicatePayment, existing.TxRef)
	}
	return nil
}

func (g *Guard) CheckRateLimit(ctx context.Context, studentID uint64) error {
	if g.limiter == nil {
		return nil
	}
	decision, err := g.limiter.Check(ctx, "checkout:student:"+strconv.FormatUint(studentID, 10))
	if err != nil {
		return err
	}
	if !decision.Allowed {
		return &RateLimitError{RetryAfter: decision.RetryAfter}
	}
	return nil
}
