package service

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-checkout/app/entity"
	"github.com/vibast-solutions/ms-go-checkout/app/repository"
)

const staleInitializedReason = "stale_initialized"

// RunExpireStaleBatch fails attempts stuck in initialized and expires pending attempts that
// were never finalized. Both release the attempt's dedup key.
func (s *CheckoutService) RunExpireStaleBatch(ctx context.Context) error {
	now := s.now()
	var firstErr error

	if s.checkoutCfg.StaleInitializedAfter > 0 {
		items, err := s.attemptRepo.ListStale(ctx, entity.CheckoutStatusInitialized, now.Add(-s.checkoutCfg.StaleInitializedAfter), s.batchSize())
		if err != nil {
			return err
		}
		for _, attempt := range items {
			if attempt == nil {
				continue
			}
			attempt.SetMetadata("error_code", CodeInternal)
			attempt.SetMetadata("error_reason", staleInitializedReason)
			if err := s.advanceStale(ctx, attempt, entity.CheckoutStatusFailed, "checkout_failed"); err != nil {
				firstErr = keepFirstErr(firstErr, err)
			}
		}
	}

	if s.checkoutCfg.PendingTimeout > 0 {
		items, err := s.attemptRepo.ListStale(ctx, entity.CheckoutStatusPending, now.Add(-s.checkoutCfg.PendingTimeout), s.batchSize())
		if err != nil {
			return keepFirstErr(firstErr, err)
		}
		for _, attempt := range items {
			if attempt == nil {
				continue
			}
			if err := s.advanceStale(ctx, attempt, entity.CheckoutStatusExpired, "checkout_expired"); err != nil {
				firstErr = keepFirstErr(firstErr, err)
			}
		}
	}

	return firstErr
}

func (s *CheckoutService) advanceStale(ctx context.Context, attempt *entity.CheckoutAttempt, to int32, eventType string) error {
	from := attempt.Status
	if err := attempt.Advance(to, nil, s.now()); err != nil {
		return err
	}

	if err := s.attemptRepo.Transition(ctx, attempt, from); err != nil {
		// Finalized concurrently; nothing left to expire.
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil
		}
		return err
	}

	s.recordEvent(ctx, attempt, eventType, statusPtr(from))
	s.logger.WithFields(logrus.Fields{
		"tx_ref": attempt.TxRef,
		"from":   entity.CheckoutStatusName(from),
		"to":     entity.CheckoutStatusName(to),
	}).Info("stale checkout attempt closed")
	return nil
}

func keepFirstErr(current error, candidate error) error {
	if current != nil {
		return current
	}
	return candidate
}
