// Package library answers the only question that matters after a sale:
// may this user download this file. Access is granted solely through
// purchase grants written by the payments pipeline.
package library

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/parfum314159/pi-backend/internal/pkg/validate"
	pgrepo "github.com/parfum314159/pi-backend/internal/repo/postgres"
)

var (
	ErrValidation   = errors.New("library: validation failed")
	ErrBookNotFound = errors.New("library: book not found")
	ErrNotPurchased = errors.New("library: book not purchased")
)

type GrantStore interface {
	HasGrant(ctx context.Context, userUID, bookID string) (bool, error)
	ListGrantedBooks(ctx context.Context, userUID string) ([]pgrepo.BookRecord, error)
}

type BookFinder interface {
	FindByID(ctx context.Context, id string) (pgrepo.BookRecord, error)
}

// URLResolver turns the stored file reference into a fetchable URL,
// typically by presigning an object-store key. nil means references
// are served as stored.
type URLResolver interface {
	ResolveURL(ctx context.Context, ref string) (string, error)
}

type Service struct {
	grants   GrantStore
	books    BookFinder
	resolver URLResolver
	logger   *zap.Logger
}

type Dependencies struct {
	Grants   GrantStore
	Books    BookFinder
	Resolver URLResolver
	Logger   *zap.Logger
}

func NewService(deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		grants:   deps.Grants,
		books:    deps.Books,
		resolver: deps.Resolver,
		logger:   logger,
	}
}

// GetPDF enforces the purchase gate: the grant check runs before the
// book is even looked up, so an unpurchased book leaks nothing.
func (s *Service) GetPDF(ctx context.Context, userUID, bookID string) (string, error) {
	if !validate.AllRequired(userUID, bookID) {
		return "", fmt.Errorf("%w: user uid and book id are required", ErrValidation)
	}

	granted, err := s.grants.HasGrant(ctx, userUID, bookID)
	if err != nil {
		return "", fmt.Errorf("check grant: %w", err)
	}
	if !granted {
		s.logger.Warn("pdf access denied",
			zap.String("user_uid", userUID),
			zap.String("book_id", bookID))
		return "", ErrNotPurchased
	}

	book, err := s.books.FindByID(ctx, bookID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrBookNotFound) {
			return "", ErrBookNotFound
		}
		return "", fmt.Errorf("find book: %w", err)
	}

	return s.resolve(ctx, book.PDFURL)
}

// MyPurchases lists the caller's granted books, most recent first.
func (s *Service) MyPurchases(ctx context.Context, userUID string) ([]pgrepo.BookRecord, error) {
	if !validate.Required(userUID) {
		return nil, fmt.Errorf("%w: user uid is required", ErrValidation)
	}
	records, err := s.grants.ListGrantedBooks(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	return records, nil
}

func (s *Service) resolve(ctx context.Context, ref string) (string, error) {
	if s.resolver == nil {
		return ref, nil
	}
	url, err := s.resolver.ResolveURL(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("resolve pdf url: %w", err)
	}
	return url, nil
}
