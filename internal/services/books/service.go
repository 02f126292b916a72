// Package books manages the catalog: listing, publishing, ratings and
// per-author sales bookkeeping. The public listing is served through a
// short-lived cache that every write invalidates.
package books

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/parfum314159/pi-backend/internal/pkg/validate"
	pgrepo "github.com/parfum314159/pi-backend/internal/repo/postgres"
)

var (
	ErrValidation   = errors.New("books: validation failed")
	ErrBookNotFound = errors.New("books: book not found")
)

type BookStore interface {
	Create(ctx context.Context, in pgrepo.CreateBookInput) (pgrepo.BookRecord, error)
	FindByID(ctx context.Context, id string) (pgrepo.BookRecord, error)
	List(ctx context.Context) ([]pgrepo.BookRecord, error)
	ListByOwner(ctx context.Context, owner string) ([]pgrepo.BookRecord, error)
	ResetSalesByOwner(ctx context.Context, owner string) (int64, error)
}

type RatingStore interface {
	UpsertVote(ctx context.Context, bookID, userUID, vote string) error
	TallyForBook(ctx context.Context, bookID, userUID string) (pgrepo.RatingTally, error)
}

// CatalogCache is the byte-level cache in front of List. A nil cache
// disables caching without changing service behavior.
type CatalogCache interface {
	Get(ctx context.Context) ([]byte, bool, error)
	Set(ctx context.Context, payload []byte, ttl time.Duration) error
	Invalidate(ctx context.Context) error
}

type SaveInput struct {
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

type RateInput struct {
	BookID  string
	UserUID string
	Vote    string
}

type Service struct {
	store    BookStore
	ratings  RatingStore
	cache    CatalogCache
	cacheTTL time.Duration
	logger   *zap.Logger
}

type Dependencies struct {
	Store    BookStore
	Ratings  RatingStore
	Cache    CatalogCache
	CacheTTL time.Duration
	Logger   *zap.Logger
}

func NewService(deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := deps.CacheTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Service{
		store:    deps.Store,
		ratings:  deps.Ratings,
		cache:    deps.Cache,
		cacheTTL: ttl,
		logger:   logger,
	}
}

// List returns the full catalog, newest first. Cache failures are
// logged and the request falls through to the store.
func (s *Service) List(ctx context.Context) ([]pgrepo.BookRecord, error) {
	if s.cache != nil {
		payload, ok, err := s.cache.Get(ctx)
		if err != nil {
			s.logger.Warn("catalog cache read failed", zap.Error(err))
		} else if ok {
			var records []pgrepo.BookRecord
			if err := json.Unmarshal(payload, &records); err == nil {
				return records, nil
			}
			s.logger.Warn("catalog cache payload corrupt, refetching", zap.Error(err))
		}
	}

	records, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}

	if s.cache != nil {
		if payload, err := json.Marshal(records); err == nil {
			if err := s.cache.Set(ctx, payload, s.cacheTTL); err != nil {
				s.logger.Warn("catalog cache write failed", zap.Error(err))
			}
		}
	}
	return records, nil
}

func (s *Service) Get(ctx context.Context, bookID string) (pgrepo.BookRecord, error) {
	if bookID == "" {
		return pgrepo.BookRecord{}, fmt.Errorf("%w: book id is required", ErrValidation)
	}
	record, err := s.store.FindByID(ctx, bookID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrBookNotFound) {
			return pgrepo.BookRecord{}, ErrBookNotFound
		}
		return pgrepo.BookRecord{}, fmt.Errorf("find book: %w", err)
	}
	return record, nil
}

func (s *Service) Save(ctx context.Context, in SaveInput) (pgrepo.BookRecord, error) {
	switch {
	case in.Title == "":
		return pgrepo.BookRecord{}, fmt.Errorf("%w: title is required", ErrValidation)
	case in.Price <= 0:
		return pgrepo.BookRecord{}, fmt.Errorf("%w: price must be positive", ErrValidation)
	case in.CoverURL == "":
		return pgrepo.BookRecord{}, fmt.Errorf("%w: cover url is required", ErrValidation)
	case in.PDFURL == "":
		return pgrepo.BookRecord{}, fmt.Errorf("%w: pdf url is required", ErrValidation)
	case in.Owner == "":
		return pgrepo.BookRecord{}, fmt.Errorf("%w: owner is required", ErrValidation)
	case in.OwnerUID == "":
		return pgrepo.BookRecord{}, fmt.Errorf("%w: owner uid is required", ErrValidation)
	}

	record, err := s.store.Create(ctx, pgrepo.CreateBookInput{
		Title:       in.Title,
		Price:       in.Price,
		Description: in.Description,
		Language:    in.Language,
		PageCount:   in.PageCount,
		CoverURL:    in.CoverURL,
		PDFURL:      in.PDFURL,
		Owner:       in.Owner,
		OwnerUID:    in.OwnerUID,
	})
	if err != nil {
		return pgrepo.BookRecord{}, fmt.Errorf("create book: %w", err)
	}

	s.invalidateCatalog(ctx)
	s.logger.Info("book published",
		zap.String("book_id", record.ID),
		zap.String("owner_uid", record.OwnerUID))
	return record, nil
}

// Rate records a like or dislike vote; a repeat vote by the same user
// overwrites the previous one.
func (s *Service) Rate(ctx context.Context, in RateInput) error {
	if !validate.AllRequired(in.BookID, in.UserUID) {
		return fmt.Errorf("%w: book id and user uid are required", ErrValidation)
	}
	if in.Vote != pgrepo.VoteLike && in.Vote != pgrepo.VoteDislike {
		return fmt.Errorf("%w: vote must be %q or %q", ErrValidation, pgrepo.VoteLike, pgrepo.VoteDislike)
	}

	if _, err := s.store.FindByID(ctx, in.BookID); err != nil {
		if errors.Is(err, pgrepo.ErrBookNotFound) {
			return ErrBookNotFound
		}
		return fmt.Errorf("find book: %w", err)
	}
	if err := s.ratings.UpsertVote(ctx, in.BookID, in.UserUID, in.Vote); err != nil {
		return fmt.Errorf("record vote: %w", err)
	}
	return nil
}

// Ratings returns the aggregated tally for a book plus the caller's own
// vote when userUID is non-empty.
func (s *Service) Ratings(ctx context.Context, bookID, userUID string) (pgrepo.RatingTally, error) {
	if !validate.Required(bookID) {
		return pgrepo.RatingTally{}, fmt.Errorf("%w: book id is required", ErrValidation)
	}
	tally, err := s.ratings.TallyForBook(ctx, bookID, userUID)
	if err != nil {
		return pgrepo.RatingTally{}, fmt.Errorf("tally ratings: %w", err)
	}
	return tally, nil
}

// MySales and ResetSales key off the author's public name, the same
// value stored in the book's owner column.
func (s *Service) MySales(ctx context.Context, owner string) ([]pgrepo.BookRecord, error) {
	if !validate.Required(owner) {
		return nil, fmt.Errorf("%w: owner is required", ErrValidation)
	}
	records, err := s.store.ListByOwner(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("list books by owner: %w", err)
	}
	return records, nil
}

// ResetSales zeroes the sales counters on every book the owner has
// published and reports how many books were touched.
func (s *Service) ResetSales(ctx context.Context, owner string) (int64, error) {
	if !validate.Required(owner) {
		return 0, fmt.Errorf("%w: owner is required", ErrValidation)
	}
	affected, err := s.store.ResetSalesByOwner(ctx, owner)
	if err != nil {
		return 0, fmt.Errorf("reset sales: %w", err)
	}
	s.logger.Info("sales counters reset",
		zap.String("owner", owner),
		zap.Int64("books", affected))
	return affected, nil
}

func (s *Service) invalidateCatalog(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("catalog cache invalidation failed", zap.Error(err))
	}
}
