package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	IntentStatusPending   = "pending"
	IntentStatusCompleted = "completed"
)

var ErrPaymentIntentNotFound = errors.New("payment intent not found")

type PaymentRepo struct {
	pool *pgxpool.Pool
}

type PaymentIntentRecord struct {
	PaymentID string
	BookID    string
	UserUID   string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type GrantResult struct {
	PDFURL         string
	AlreadyGranted bool
}

func NewPaymentRepo(pool *pgxpool.Pool) *PaymentRepo {
	return &PaymentRepo{pool: pool}
}

// CreateIntent records payment intent before the provider is called, so
// a crash mid-flow still leaves a recoverable trail. At most one intent
// exists per payment id; replays refresh updated_at only.
func (r *PaymentRepo) CreateIntent(ctx context.Context, paymentID, bookID, userUID string) (PaymentIntentRecord, error) {
	if r.pool == nil {
		return PaymentIntentRecord{}, fmt.Errorf("postgres pool is nil")
	}
	paymentID = strings.TrimSpace(paymentID)
	bookID = strings.TrimSpace(bookID)
	userUID = strings.TrimSpace(userUID)
	if paymentID == "" || bookID == "" || userUID == "" {
		return PaymentIntentRecord{}, fmt.Errorf("invalid payment intent payload")
	}

	record, err := scanPaymentIntent(r.pool.QueryRow(ctx, `
INSERT INTO payment_intents (
	payment_id,
	book_id,
	user_uid,
	status,
	created_at,
	updated_at
) VALUES ($1, $2, $3, 'pending', NOW(), NOW())
ON CONFLICT (payment_id) DO UPDATE
SET updated_at = NOW()
RETURNING payment_id, book_id, user_uid, status, created_at, updated_at
`, paymentID, bookID, userUID))
	if err != nil {
		return PaymentIntentRecord{}, fmt.Errorf("create payment intent: %w", err)
	}

	return record, nil
}

func (r *PaymentRepo) FindIntent(ctx context.Context, paymentID string) (PaymentIntentRecord, error) {
	if r.pool == nil {
		return PaymentIntentRecord{}, fmt.Errorf("postgres pool is nil")
	}
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return PaymentIntentRecord{}, fmt.Errorf("invalid payment id")
	}

	record, err := scanPaymentIntent(r.pool.QueryRow(ctx, `
SELECT payment_id, book_id, user_uid, status, created_at, updated_at
FROM payment_intents
WHERE payment_id = $1
LIMIT 1
`, paymentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PaymentIntentRecord{}, ErrPaymentIntentNotFound
		}
		return PaymentIntentRecord{}, fmt.Errorf("find payment intent: %w", err)
	}

	return record, nil
}

func (r *PaymentRepo) IsCompleted(ctx context.Context, paymentID string) (bool, error) {
	if r.pool == nil {
		return false, fmt.Errorf("postgres pool is nil")
	}
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return false, fmt.Errorf("invalid payment id")
	}

	var exists bool
	err := r.pool.QueryRow(ctx, `
SELECT EXISTS (
	SELECT 1 FROM completed_payments WHERE payment_id = $1
)
`, paymentID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check completion marker: %w", err)
	}

	return exists, nil
}

func (r *PaymentRepo) ListPendingOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]PaymentIntentRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, `
SELECT payment_id, book_id, user_uid, status, created_at, updated_at
FROM payment_intents
WHERE status = 'pending'
  AND created_at < $1
ORDER BY created_at ASC
LIMIT $2
`, cutoff.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("list pending payment intents: %w", err)
	}
	defer rows.Close()

	var records []PaymentIntentRecord
	for rows.Next() {
		record, err := scanPaymentIntent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment intent row: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payment intent rows: %w", err)
	}

	return records, nil
}

// Grant applies the store-side effects of one completed payment: the
// completion-marker check, the sales-count increment, the purchase
// grant and the marker write commit together or not at all. The marker
// re-check runs inside the transaction, which closes the race between
// two concurrent completion attempts for the same payment id.
func (r *PaymentRepo) Grant(ctx context.Context, paymentID, bookID, userUID string) (GrantResult, error) {
	if r.pool == nil {
		return GrantResult{}, fmt.Errorf("postgres pool is nil")
	}
	paymentID = strings.TrimSpace(paymentID)
	bookID = strings.TrimSpace(bookID)
	userUID = strings.TrimSpace(userUID)
	if paymentID == "" || bookID == "" || userUID == "" {
		return GrantResult{}, fmt.Errorf("invalid grant payload")
	}

	var out GrantResult
	err := WithSerializableTx(ctx, r.pool, func(txCtx context.Context, tx pgx.Tx) error {
		var completed bool
		if err := tx.QueryRow(txCtx, `
SELECT EXISTS (
	SELECT 1 FROM completed_payments WHERE payment_id = $1
)
`, paymentID).Scan(&completed); err != nil {
			return fmt.Errorf("re-check completion marker: %w", err)
		}
		if completed {
			pdfURL, err := r.pdfURLTx(txCtx, tx, bookID)
			if err != nil && !errors.Is(err, ErrBookNotFound) {
				return err
			}
			out = GrantResult{PDFURL: pdfURL, AlreadyGranted: true}
			return nil
		}

		var pdfURL string
		err := tx.QueryRow(txCtx, `
UPDATE books
SET sales_count = sales_count + 1
WHERE id = $1
RETURNING pdf_url
`, bookID).Scan(&pdfURL)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrBookNotFound
			}
			return fmt.Errorf("increment sales count: %w", err)
		}

		if _, err := tx.Exec(txCtx, `
INSERT INTO purchase_grants (user_uid, book_id, purchased_at)
VALUES ($1, $2, NOW())
ON CONFLICT (user_uid, book_id) DO NOTHING
`, userUID, bookID); err != nil {
			return fmt.Errorf("create purchase grant: %w", err)
		}

		if _, err := tx.Exec(txCtx, `
INSERT INTO completed_payments (payment_id, book_id, user_uid, completed_at)
VALUES ($1, $2, $3, NOW())
`, paymentID, bookID, userUID); err != nil {
			return fmt.Errorf("write completion marker: %w", err)
		}

		if _, err := tx.Exec(txCtx, `
UPDATE payment_intents
SET status = 'completed', updated_at = NOW()
WHERE payment_id = $1
`, paymentID); err != nil {
			return fmt.Errorf("mark payment intent completed: %w", err)
		}

		out = GrantResult{PDFURL: pdfURL, AlreadyGranted: false}
		return nil
	})
	if err != nil {
		return GrantResult{}, err
	}

	return out, nil
}

func (r *PaymentRepo) pdfURLTx(ctx context.Context, tx pgx.Tx, bookID string) (string, error) {
	var pdfURL string
	err := tx.QueryRow(ctx, `
SELECT pdf_url FROM books WHERE id = $1 LIMIT 1
`, bookID).Scan(&pdfURL)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrBookNotFound
		}
		return "", fmt.Errorf("load book pdf url: %w", err)
	}
	return pdfURL, nil
}

func scanPaymentIntent(row pgx.Row) (PaymentIntentRecord, error) {
	var record PaymentIntentRecord
	if err := row.Scan(
		&record.PaymentID,
		&record.BookID,
		&record.UserUID,
		&record.Status,
		&record.CreatedAt,
		&record.UpdatedAt,
	); err != nil {
		return PaymentIntentRecord{}, err
	}
	return record, nil
}
