package postgres

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNoBooksForPayout   = errors.New("no books found for payout")
	ErrPayoutBelowMinimum = errors.New("payout amount below minimum")
	ErrDuplicatePayout    = errors.New("duplicate payout attempt")
)

type PayoutRepo struct {
	pool *pgxpool.Pool
}

type PayoutRequestRecord struct {
	ID            string
	Username      string
	WalletAddress string
	Amount        float64
	Currency      string
	Status        string
	RequestedAt   time.Time
}

type PayoutPolicy struct {
	OwnerCut float64
	Minimum  float64
	Currency string
}

func NewPayoutRepo(pool *pgxpool.Pool) *PayoutRepo {
	return &PayoutRepo{pool: pool}
}

// CreateRequest computes the owner's share over current sales, records
// the payout request and zeroes the counters in one transaction, so a
// concurrent sale cannot be counted and reset at the same time.
func (r *PayoutRepo) CreateRequest(ctx context.Context, username, walletAddress string, policy PayoutPolicy) (PayoutRequestRecord, error) {
	if r.pool == nil {
		return PayoutRequestRecord{}, fmt.Errorf("postgres pool is nil")
	}
	username = strings.TrimSpace(username)
	walletAddress = strings.TrimSpace(walletAddress)
	if username == "" || walletAddress == "" {
		return PayoutRequestRecord{}, fmt.Errorf("invalid payout request payload")
	}
	if policy.OwnerCut <= 0 || policy.OwnerCut > 1 {
		return PayoutRequestRecord{}, fmt.Errorf("invalid payout owner cut: %v", policy.OwnerCut)
	}
	currency := strings.ToUpper(strings.TrimSpace(policy.Currency))
	if currency == "" {
		currency = "PI"
	}

	var out PayoutRequestRecord
	err := WithSerializableTx(ctx, r.pool, func(txCtx context.Context, tx pgx.Tx) error {
		var total float64
		var bookCount int
		err := tx.QueryRow(txCtx, `
SELECT COALESCE(SUM(sales_count * price), 0), COUNT(*)
FROM books
WHERE owner = $1
`, username).Scan(&total, &bookCount)
		if err != nil {
			return fmt.Errorf("sum owner earnings: %w", err)
		}
		if bookCount == 0 {
			return ErrNoBooksForPayout
		}

		amount := roundMoney(total * policy.OwnerCut)
		if amount < policy.Minimum {
			return ErrPayoutBelowMinimum
		}

		var lastAmount *float64
		err = tx.QueryRow(txCtx, `
SELECT last_payout_amount FROM users WHERE username = $1 LIMIT 1
`, username).Scan(&lastAmount)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("load last payout amount: %w", err)
		}
		if lastAmount != nil && *lastAmount == amount {
			return ErrDuplicatePayout
		}

		requestID := uuid.NewString()
		record := PayoutRequestRecord{}
		err = tx.QueryRow(txCtx, `
INSERT INTO payout_requests (
	id,
	username,
	wallet_address,
	amount,
	currency,
	status,
	requested_at
) VALUES ($1, $2, $3, $4, $5, 'pending', NOW())
RETURNING id, username, wallet_address, amount, currency, status, requested_at
`, requestID, username, walletAddress, amount, currency).Scan(
			&record.ID,
			&record.Username,
			&record.WalletAddress,
			&record.Amount,
			&record.Currency,
			&record.Status,
			&record.RequestedAt,
		)
		if err != nil {
			return fmt.Errorf("create payout request: %w", err)
		}

		if _, err := tx.Exec(txCtx, `
INSERT INTO users (username, last_payout_amount, last_payout_at)
VALUES ($1, $2, NOW())
ON CONFLICT (username) DO UPDATE
SET last_payout_amount = EXCLUDED.last_payout_amount, last_payout_at = NOW()
`, username, amount); err != nil {
			return fmt.Errorf("update user payout bookkeeping: %w", err)
		}

		if _, err := tx.Exec(txCtx, `
UPDATE books
SET sales_count = 0
WHERE owner = $1
`, username); err != nil {
			return fmt.Errorf("reset sales after payout: %w", err)
		}

		out = record
		return nil
	})
	if err != nil {
		return PayoutRequestRecord{}, err
	}

	return out, nil
}

func roundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}
