// Package pending periodically sweeps payment intents that were
// approved but never completed by the client, and asks the payments
// service to settle them against the provider's view.
package pending

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	pgrepo "github.com/parfum314159/pi-backend/internal/repo/postgres"
	paymentsvc "github.com/parfum314159/pi-backend/internal/services/payments"
)

type IntentLister interface {
	ListPendingOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]pgrepo.PaymentIntentRecord, error)
}

type Resolver interface {
	ResolvePending(ctx context.Context, paymentID string) (paymentsvc.ResolveResult, error)
}

type Job struct {
	intents  IntentLister
	resolver Resolver
	minAge   time.Duration
	batch    int
	now      func() time.Time
	logger   *zap.Logger
}

func New(intents IntentLister, resolver Resolver, minAge time.Duration, batch int, logger *zap.Logger) *Job {
	if minAge <= 0 {
		minAge = 10 * time.Minute
	}
	if batch <= 0 {
		batch = 50
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Job{
		intents:  intents,
		resolver: resolver,
		minAge:   minAge,
		batch:    batch,
		now:      time.Now,
		logger:   logger,
	}
}

// Run processes one batch of stuck intents. A failure on one payment is
// logged and the sweep moves on; only listing failures abort the run.
func (j *Job) Run(ctx context.Context) error {
	if j.intents == nil || j.resolver == nil {
		return nil
	}

	cutoff := j.now().Add(-j.minAge)
	intents, err := j.intents.ListPendingOlderThan(ctx, cutoff, j.batch)
	if err != nil {
		return fmt.Errorf("list pending payment intents: %w", err)
	}
	if len(intents) == 0 {
		return nil
	}

	var resolved, stillPending, abandoned int
	for _, intent := range intents {
		result, err := j.resolver.ResolvePending(ctx, intent.PaymentID)
		if err != nil {
			j.logger.Warn("pending payment sweep failed for payment",
				zap.Error(err),
				zap.String("payment_id", intent.PaymentID))
			continue
		}
		switch result.Outcome {
		case paymentsvc.OutcomeCompleted, paymentsvc.OutcomeAlreadyCompleted:
			resolved++
		case paymentsvc.OutcomeAbandoned:
			abandoned++
		default:
			stillPending++
		}
	}

	j.logger.Info("pending payment sweep completed",
		zap.Int("scanned", len(intents)),
		zap.Int("resolved", resolved),
		zap.Int("still_pending", stillPending),
		zap.Int("abandoned", abandoned))
	return nil
}
