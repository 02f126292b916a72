package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// GrantRepo is the read side of purchase grants. Writes happen only
// inside PaymentRepo.Grant.
type GrantRepo struct {
	pool *pgxpool.Pool
}

type PurchaseGrantRecord struct {
	UserUID     string
	BookID      string
	PurchasedAt time.Time
}

func NewGrantRepo(pool *pgxpool.Pool) *GrantRepo {
	return &GrantRepo{pool: pool}
}

func (r *GrantRepo) HasGrant(ctx context.Context, userUID, bookID string) (bool, error) {
	if r.pool == nil {
		return false, fmt.Errorf("postgres pool is nil")
	}
	userUID = strings.TrimSpace(userUID)
	bookID = strings.TrimSpace(bookID)
	if userUID == "" || bookID == "" {
		return false, fmt.Errorf("invalid grant lookup payload")
	}

	var exists bool
	err := r.pool.QueryRow(ctx, `
SELECT EXISTS (
	SELECT 1 FROM purchase_grants WHERE user_uid = $1 AND book_id = $2
)
`, userUID, bookID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check purchase grant: %w", err)
	}

	return exists, nil
}

func (r *GrantRepo) ListGrantedBooks(ctx context.Context, userUID string) ([]BookRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	userUID = strings.TrimSpace(userUID)
	if userUID == "" {
		return nil, fmt.Errorf("invalid user uid")
	}

	rows, err := r.pool.Query(ctx, `
SELECT b.id, b.title, b.price, b.description, b.language, b.page_count, b.cover_url, b.pdf_url, b.owner, b.owner_uid, b.sales_count, b.created_at
FROM purchase_grants g
JOIN books b ON b.id = g.book_id
WHERE g.user_uid = $1
ORDER BY g.purchased_at DESC
`, userUID)
	if err != nil {
		return nil, fmt.Errorf("list granted books: %w", err)
	}
	defer rows.Close()

	return collectBooks(rows)
}
