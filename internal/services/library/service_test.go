package library

import (
	"context"
	"errors"
	"testing"

	pgrepo "github.com/parfum314159/pi-backend/internal/repo/postgres"
)

type grantStoreStub struct {
	grants map[string]bool
	books  map[string]pgrepo.BookRecord
}

func newGrantStoreStub() *grantStoreStub {
	return &grantStoreStub{grants: make(map[string]bool), books: make(map[string]pgrepo.BookRecord)}
}

func (s *grantStoreStub) grant(userUID, bookID string) {
	s.grants[userUID+"|"+bookID] = true
}

func (s *grantStoreStub) HasGrant(_ context.Context, userUID, bookID string) (bool, error) {
	return s.grants[userUID+"|"+bookID], nil
}

func (s *grantStoreStub) ListGrantedBooks(_ context.Context, userUID string) ([]pgrepo.BookRecord, error) {
	var out []pgrepo.BookRecord
	for key := range s.grants {
		for id, book := range s.books {
			if key == userUID+"|"+id {
				out = append(out, book)
			}
		}
	}
	return out, nil
}

type bookFinderStub struct {
	books map[string]pgrepo.BookRecord
}

func (s *bookFinderStub) FindByID(_ context.Context, id string) (pgrepo.BookRecord, error) {
	book, ok := s.books[id]
	if !ok {
		return pgrepo.BookRecord{}, pgrepo.ErrBookNotFound
	}
	return book, nil
}

type resolverStub struct {
	prefix string
	calls  int
}

func (r *resolverStub) ResolveURL(_ context.Context, ref string) (string, error) {
	r.calls++
	return r.prefix + ref, nil
}

func TestGetPDFDeniesUnpurchasedBook(t *testing.T) {
	grants := newGrantStoreStub()
	books := &bookFinderStub{books: map[string]pgrepo.BookRecord{
		"b1": {ID: "b1", PDFURL: "books/atlas.pdf"},
	}}
	svc := NewService(Dependencies{Grants: grants, Books: books})

	_, err := svc.GetPDF(context.Background(), "u1", "b1")
	if !errors.Is(err, ErrNotPurchased) {
		t.Fatalf("expected not purchased, got %v", err)
	}
}

func TestGetPDFResolvesStoredReference(t *testing.T) {
	grants := newGrantStoreStub()
	grants.grant("u1", "b1")
	books := &bookFinderStub{books: map[string]pgrepo.BookRecord{
		"b1": {ID: "b1", PDFURL: "books/atlas.pdf"},
	}}
	resolver := &resolverStub{prefix: "https://cdn.example/"}
	svc := NewService(Dependencies{Grants: grants, Books: books, Resolver: resolver})

	url, err := svc.GetPDF(context.Background(), "u1", "b1")
	if err != nil {
		t.Fatalf("get pdf: %v", err)
	}
	if url != "https://cdn.example/books/atlas.pdf" {
		t.Fatalf("unexpected url %q", url)
	}
	if resolver.calls != 1 {
		t.Fatalf("resolver must be used, calls=%d", resolver.calls)
	}
}

func TestGetPDFWithoutResolverReturnsReferenceAsIs(t *testing.T) {
	grants := newGrantStoreStub()
	grants.grant("u1", "b1")
	books := &bookFinderStub{books: map[string]pgrepo.BookRecord{
		"b1": {ID: "b1", PDFURL: "https://cdn.example/atlas.pdf"},
	}}
	svc := NewService(Dependencies{Grants: grants, Books: books})

	url, err := svc.GetPDF(context.Background(), "u1", "b1")
	if err != nil {
		t.Fatalf("get pdf: %v", err)
	}
	if url != "https://cdn.example/atlas.pdf" {
		t.Fatalf("unexpected url %q", url)
	}
}

func TestGetPDFGrantedButMissingBook(t *testing.T) {
	grants := newGrantStoreStub()
	grants.grant("u1", "ghost")
	svc := NewService(Dependencies{Grants: grants, Books: &bookFinderStub{books: map[string]pgrepo.BookRecord{}}})

	_, err := svc.GetPDF(context.Background(), "u1", "ghost")
	if !errors.Is(err, ErrBookNotFound) {
		t.Fatalf("expected book not found, got %v", err)
	}
}

func TestMyPurchasesRequiresUser(t *testing.T) {
	svc := NewService(Dependencies{Grants: newGrantStoreStub(), Books: &bookFinderStub{}})

	if _, err := svc.MyPurchases(context.Background(), ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestMyPurchasesListsGrantedBooks(t *testing.T) {
	grants := newGrantStoreStub()
	grants.books["b1"] = pgrepo.BookRecord{ID: "b1", Title: "Atlas"}
	grants.books["b2"] = pgrepo.BookRecord{ID: "b2", Title: "Tides"}
	grants.grant("u1", "b1")
	svc := NewService(Dependencies{Grants: grants, Books: &bookFinderStub{}})

	records, err := svc.MyPurchases(context.Background(), "u1")
	if err != nil {
		t.Fatalf("my purchases: %v", err)
	}
	if len(records) != 1 || records[0].ID != "b1" {
		t.Fatalf("unexpected purchases: %+v", records)
	}
}
