package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/parfum314159/pi-backend/internal/infra/pi"
	pgrepo "github.com/parfum314159/pi-backend/internal/repo/postgres"
)

// Reconciliation outcomes for a single payment id.
const (
	OutcomeCompleted        = "completed"
	OutcomeAlreadyCompleted = "already_completed"
	OutcomeStillPending     = "still_pending"
	OutcomeAbandoned        = "abandoned"
)

var (
	ErrValidation   = errors.New("validation error")
	ErrBookNotFound = errors.New("book not found")
)

type ProviderClient interface {
	Approve(ctx context.Context, paymentID string) error
	Complete(ctx context.Context, paymentID, txid string) (pi.Payment, error)
	GetPayment(ctx context.Context, paymentID string) (pi.Payment, error)
}

type PaymentStore interface {
	CreateIntent(ctx context.Context, paymentID, bookID, userUID string) (pgrepo.PaymentIntentRecord, error)
	FindIntent(ctx context.Context, paymentID string) (pgrepo.PaymentIntentRecord, error)
	IsCompleted(ctx context.Context, paymentID string) (bool, error)
	Grant(ctx context.Context, paymentID, bookID, userUID string) (pgrepo.GrantResult, error)
}

type Service struct {
	provider ProviderClient
	store    PaymentStore
	logger   *zap.Logger
}

type Dependencies struct {
	Provider ProviderClient
	Store    PaymentStore
	Logger   *zap.Logger
}

type ApproveInput struct {
	PaymentID string
	BookID    string
	UserUID   string
}

type CompleteInput struct {
	PaymentID string
	TxID      string
	BookID    string
	UserUID   string
}

type CompleteResult struct {
	Outcome string
	PDFURL  string
}

type ResolveResult struct {
	Outcome string
	PDFURL  string
}

func NewService(deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		provider: deps.Provider,
		store:    deps.Store,
		logger:   logger,
	}
}

// Approve records payment intent locally, then asks the provider to
// approve. The intent is written first: if the provider call fails or
// the process dies afterwards, ResolvePending can still finish the
// payment from the persisted trail.
func (s *Service) Approve(ctx context.Context, in ApproveInput) error {
	if s.provider == nil || s.store == nil {
		return fmt.Errorf("payments dependencies are not configured")
	}

	paymentID := strings.TrimSpace(in.PaymentID)
	bookID := strings.TrimSpace(in.BookID)
	userUID := strings.TrimSpace(in.UserUID)
	if paymentID == "" || bookID == "" || userUID == "" {
		return ErrValidation
	}

	if _, err := s.store.CreateIntent(ctx, paymentID, bookID, userUID); err != nil {
		return fmt.Errorf("persist payment intent: %w", err)
	}

	if err := s.provider.Approve(ctx, paymentID); err != nil {
		s.logger.Warn("provider approve failed, intent kept for recovery",
			zap.String("payment_id", paymentID),
			zap.Error(err),
		)
		return err
	}

	return nil
}

// Complete drives one payment to its reconciled state. The completion
// marker short-circuit makes replays cheap; the authoritative
// book/buyer identifiers come from the stored intent, never from
// provider metadata, and from the request body only when the intent
// record is missing.
func (s *Service) Complete(ctx context.Context, in CompleteInput) (CompleteResult, error) {
	if s.provider == nil || s.store == nil {
		return CompleteResult{}, fmt.Errorf("payments dependencies are not configured")
	}

	paymentID := strings.TrimSpace(in.PaymentID)
	txid := strings.TrimSpace(in.TxID)
	bookID := strings.TrimSpace(in.BookID)
	userUID := strings.TrimSpace(in.UserUID)
	if paymentID == "" || txid == "" || bookID == "" || userUID == "" {
		return CompleteResult{}, ErrValidation
	}

	completed, err := s.store.IsCompleted(ctx, paymentID)
	if err != nil {
		return CompleteResult{}, fmt.Errorf("check completion marker: %w", err)
	}
	if completed {
		return CompleteResult{Outcome: OutcomeAlreadyCompleted}, nil
	}

	bookID, userUID, err = s.authenticateIdentifiers(ctx, paymentID, bookID, userUID)
	if err != nil {
		return CompleteResult{}, err
	}

	if _, err := s.provider.Complete(ctx, paymentID, txid); err != nil {
		s.logger.Warn("provider complete failed, intent kept for recovery",
			zap.String("payment_id", paymentID),
			zap.Error(err),
		)
		return CompleteResult{}, err
	}

	return s.grant(ctx, paymentID, bookID, userUID)
}

// ResolvePending finishes payments whose client-driven completion never
// arrived. A payment without a transaction proof is genuinely still
// pending and resolves as a no-op, not an error.
func (s *Service) ResolvePending(ctx context.Context, paymentID string) (ResolveResult, error) {
	if s.provider == nil || s.store == nil {
		return ResolveResult{}, fmt.Errorf("payments dependencies are not configured")
	}

	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return ResolveResult{}, ErrValidation
	}

	payment, err := s.provider.GetPayment(ctx, paymentID)
	if err != nil {
		return ResolveResult{}, err
	}

	txid := strings.TrimSpace(payment.TxID)
	if txid == "" {
		s.logger.Info("payment still pending at provider", zap.String("payment_id", paymentID))
		return ResolveResult{Outcome: OutcomeStillPending}, nil
	}

	bookID, userUID, ok := s.recoverIdentifiers(ctx, paymentID, payment)
	if !ok {
		s.logger.Warn("cannot establish identifiers for pending payment, abandoning",
			zap.String("payment_id", paymentID),
		)
		return ResolveResult{Outcome: OutcomeAbandoned}, nil
	}

	completed, err := s.store.IsCompleted(ctx, paymentID)
	if err != nil {
		return ResolveResult{}, fmt.Errorf("check completion marker: %w", err)
	}
	if completed {
		return ResolveResult{Outcome: OutcomeAlreadyCompleted}, nil
	}

	if _, err := s.provider.Complete(ctx, paymentID, txid); err != nil {
		return ResolveResult{}, err
	}

	result, err := s.grant(ctx, paymentID, bookID, userUID)
	if err != nil {
		return ResolveResult{}, err
	}

	s.logger.Info("pending payment resolved",
		zap.String("payment_id", paymentID),
		zap.String("outcome", result.Outcome),
	)
	return ResolveResult{Outcome: result.Outcome, PDFURL: result.PDFURL}, nil
}

// authenticateIdentifiers prefers the intent recorded at approval time
// over whatever the completion request claims. The two disagreeing is a
// red flag worth logging, and the stored intent wins.
func (s *Service) authenticateIdentifiers(ctx context.Context, paymentID, bookID, userUID string) (string, string, error) {
	intent, err := s.store.FindIntent(ctx, paymentID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrPaymentIntentNotFound) {
			return bookID, userUID, nil
		}
		return "", "", fmt.Errorf("load payment intent: %w", err)
	}

	if intent.BookID != bookID || intent.UserUID != userUID {
		s.logger.Warn("completion request identifiers differ from stored intent",
			zap.String("payment_id", paymentID),
			zap.String("request_book_id", bookID),
			zap.String("intent_book_id", intent.BookID),
		)
	}
	return intent.BookID, intent.UserUID, nil
}

func (s *Service) recoverIdentifiers(ctx context.Context, paymentID string, payment pi.Payment) (string, string, bool) {
	intent, err := s.store.FindIntent(ctx, paymentID)
	if err == nil {
		return intent.BookID, intent.UserUID, true
	}
	if !errors.Is(err, pgrepo.ErrPaymentIntentNotFound) {
		s.logger.Warn("load payment intent for recovery failed",
			zap.String("payment_id", paymentID),
			zap.Error(err),
		)
	}

	bookID := strings.TrimSpace(payment.Metadata.BookID)
	userUID := strings.TrimSpace(payment.Metadata.UserUID)
	if bookID == "" || userUID == "" {
		return "", "", false
	}
	return bookID, userUID, true
}

func (s *Service) grant(ctx context.Context, paymentID, bookID, userUID string) (CompleteResult, error) {
	result, err := s.store.Grant(ctx, paymentID, bookID, userUID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrBookNotFound) {
			s.logger.Error("paid book is missing from catalog",
				zap.String("payment_id", paymentID),
				zap.String("book_id", bookID),
			)
			return CompleteResult{}, ErrBookNotFound
		}
		return CompleteResult{}, fmt.Errorf("apply purchase grant: %w", err)
	}

	outcome := OutcomeCompleted
	if result.AlreadyGranted {
		outcome = OutcomeAlreadyCompleted
	}
	return CompleteResult{Outcome: outcome, PDFURL: result.PDFURL}, nil
}
