// Package payouts handles author withdrawal requests. The money math
// and the counter reset live in the store transaction; the service owns
// validation, policy and error classification.
package payouts

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/parfum314159/pi-backend/internal/pkg/validate"
	pgrepo "github.com/parfum314159/pi-backend/internal/repo/postgres"
)

var (
	ErrValidation   = errors.New("payouts: validation failed")
	ErrNoBooks      = errors.New("payouts: no books for this author")
	ErrBelowMinimum = errors.New("payouts: amount below minimum")
	ErrDuplicate    = errors.New("payouts: duplicate request")
)

type PayoutStore interface {
	CreateRequest(ctx context.Context, username, walletAddress string, policy pgrepo.PayoutPolicy) (pgrepo.PayoutRequestRecord, error)
}

type RequestInput struct {
	Username      string
	WalletAddress string
}

type Service struct {
	store  PayoutStore
	policy pgrepo.PayoutPolicy
	logger *zap.Logger
}

type Dependencies struct {
	Store  PayoutStore
	Policy pgrepo.PayoutPolicy
	Logger *zap.Logger
}

func NewService(deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	policy := deps.Policy
	if policy.OwnerCut <= 0 || policy.OwnerCut > 1 {
		policy.OwnerCut = 0.7
	}
	if policy.Currency == "" {
		policy.Currency = "PI"
	}
	return &Service{store: deps.Store, policy: policy, logger: logger}
}

// Request creates a payout request over the author's unsettled sales
// and zeroes their counters. Store sentinels are mapped to service
// errors so handlers never import the repo package.
func (s *Service) Request(ctx context.Context, in RequestInput) (pgrepo.PayoutRequestRecord, error) {
	if !validate.AllRequired(in.Username, in.WalletAddress) {
		return pgrepo.PayoutRequestRecord{}, fmt.Errorf("%w: username and wallet address are required", ErrValidation)
	}

	record, err := s.store.CreateRequest(ctx, in.Username, in.WalletAddress, s.policy)
	if err != nil {
		switch {
		case errors.Is(err, pgrepo.ErrNoBooksForPayout):
			return pgrepo.PayoutRequestRecord{}, ErrNoBooks
		case errors.Is(err, pgrepo.ErrPayoutBelowMinimum):
			return pgrepo.PayoutRequestRecord{}, fmt.Errorf("%w: minimum is %.2f %s", ErrBelowMinimum, s.policy.Minimum, s.policy.Currency)
		case errors.Is(err, pgrepo.ErrDuplicatePayout):
			return pgrepo.PayoutRequestRecord{}, ErrDuplicate
		}
		return pgrepo.PayoutRequestRecord{}, fmt.Errorf("create payout request: %w", err)
	}

	s.logger.Info("payout requested",
		zap.String("request_id", record.ID),
		zap.String("username", record.Username),
		zap.Float64("amount", record.Amount),
		zap.String("currency", record.Currency))
	return record, nil
}
