package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrBookNotFound = errors.New("book not found")

type BookRepo struct {
	pool *pgxpool.Pool
}

type BookRecord struct {
	ID          string
	Title       string
	Price       float64
	Description string
	Language    string
	PageCount   string
	CoverURL    string
	PDFURL      string
	Owner       string
	OwnerUID    string
	SalesCount  int64
	CreatedAt   time.Time
}

type CreateBookInput struct {
	Title       string
	Price       float64
	Description string
	Language    string
	PageCount   string
	CoverURL    string
	PDFURL      string
	Owner       string
	OwnerUID    string
}

func NewBookRepo(pool *pgxpool.Pool) *BookRepo {
	return &BookRepo{pool: pool}
}

func (r *BookRepo) Create(ctx context.Context, in CreateBookInput) (BookRecord, error) {
	if r.pool == nil {
		return BookRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if strings.TrimSpace(in.Title) == "" || in.Price <= 0 ||
		strings.TrimSpace(in.CoverURL) == "" || strings.TrimSpace(in.PDFURL) == "" ||
		strings.TrimSpace(in.Owner) == "" || strings.TrimSpace(in.OwnerUID) == "" {
		return BookRecord{}, fmt.Errorf("invalid book create payload")
	}

	pageCount := strings.TrimSpace(in.PageCount)
	if pageCount == "" {
		pageCount = "Unknown"
	}

	bookID := uuid.NewString()
	record, err := scanBook(r.pool.QueryRow(ctx, `
INSERT INTO books (
	id,
	title,
	price,
	description,
	language,
	page_count,
	cover_url,
	pdf_url,
	owner,
	owner_uid,
	sales_count,
	created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0, NOW())
RETURNING id, title, price, description, language, page_count, cover_url, pdf_url, owner, owner_uid, sales_count, created_at
`, bookID,
		strings.TrimSpace(in.Title),
		in.Price,
		strings.TrimSpace(in.Description),
		strings.TrimSpace(in.Language),
		pageCount,
		strings.TrimSpace(in.CoverURL),
		strings.TrimSpace(in.PDFURL),
		strings.TrimSpace(in.Owner),
		strings.TrimSpace(in.OwnerUID),
	))
	if err != nil {
		return BookRecord{}, fmt.Errorf("create book: %w", err)
	}

	return record, nil
}

func (r *BookRepo) FindByID(ctx context.Context, bookID string) (BookRecord, error) {
	if r.pool == nil {
		return BookRecord{}, fmt.Errorf("postgres pool is nil")
	}
	bookID = strings.TrimSpace(bookID)
	if bookID == "" {
		return BookRecord{}, fmt.Errorf("invalid book id")
	}

	record, err := scanBook(r.pool.QueryRow(ctx, `
SELECT id, title, price, description, language, page_count, cover_url, pdf_url, owner, owner_uid, sales_count, created_at
FROM books
WHERE id = $1
LIMIT 1
`, bookID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return BookRecord{}, ErrBookNotFound
		}
		return BookRecord{}, fmt.Errorf("find book by id: %w", err)
	}

	return record, nil
}

func (r *BookRepo) List(ctx context.Context) ([]BookRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT id, title, price, description, language, page_count, cover_url, pdf_url, owner, owner_uid, sales_count, created_at
FROM books
ORDER BY created_at DESC
`)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	return collectBooks(rows)
}

func (r *BookRepo) ListByOwner(ctx context.Context, owner string) ([]BookRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return nil, fmt.Errorf("invalid owner")
	}

	rows, err := r.pool.Query(ctx, `
SELECT id, title, price, description, language, page_count, cover_url, pdf_url, owner, owner_uid, sales_count, created_at
FROM books
WHERE owner = $1
ORDER BY created_at DESC
`, owner)
	if err != nil {
		return nil, fmt.Errorf("list books by owner: %w", err)
	}
	defer rows.Close()

	return collectBooks(rows)
}

func (r *BookRepo) ResetSalesByOwner(ctx context.Context, owner string) (int64, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return 0, fmt.Errorf("invalid owner")
	}

	tag, err := r.pool.Exec(ctx, `
UPDATE books
SET sales_count = 0
WHERE owner = $1
`, owner)
	if err != nil {
		return 0, fmt.Errorf("reset sales by owner: %w", err)
	}

	return tag.RowsAffected(), nil
}

func collectBooks(rows pgx.Rows) ([]BookRecord, error) {
	var records []BookRecord
	for rows.Next() {
		record, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan book row: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate book rows: %w", err)
	}
	return records, nil
}

func scanBook(row pgx.Row) (BookRecord, error) {
	var record BookRecord
	if err := row.Scan(
		&record.ID,
		&record.Title,
		&record.Price,
		&record.Description,
		&record.Language,
		&record.PageCount,
		&record.CoverURL,
		&record.PDFURL,
		&record.Owner,
		&record.OwnerUID,
		&record.SalesCount,
		&record.CreatedAt,
	); err != nil {
		return BookRecord{}, err
	}
	return record, nil
}
