package payments

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/parfum314159/pi-backend/internal/infra/pi"
	pgrepo "github.com/parfum314159/pi-backend/internal/repo/postgres"
)

type stubBook struct {
	pdfURL     string
	salesCount int64
}

// paymentStoreStub mirrors the postgres repo contract; the mutex plays
// the role of the store's transaction serialization.
type paymentStoreStub struct {
	mu        sync.Mutex
	intents   map[string]pgrepo.PaymentIntentRecord
	completed map[string]bool
	grants    map[string]bool
	books     map[string]*stubBook
}

func newPaymentStoreStub() *paymentStoreStub {
	return &paymentStoreStub{
		intents:   make(map[string]pgrepo.PaymentIntentRecord),
		completed: make(map[string]bool),
		grants:    make(map[string]bool),
		books:     make(map[string]*stubBook),
	}
}

func (s *paymentStoreStub) addBook(id, pdfURL string) {
	s.books[id] = &stubBook{pdfURL: pdfURL}
}

func (s *paymentStoreStub) CreateIntent(_ context.Context, paymentID, bookID, userUID string) (pgrepo.PaymentIntentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.intents[paymentID]; ok {
		return existing, nil
	}
	rec := pgrepo.PaymentIntentRecord{
		PaymentID: paymentID,
		BookID:    bookID,
		UserUID:   userUID,
		Status:    pgrepo.IntentStatusPending,
	}
	s.intents[paymentID] = rec
	return rec, nil
}

func (s *paymentStoreStub) FindIntent(_ context.Context, paymentID string) (pgrepo.PaymentIntentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.intents[paymentID]
	if !ok {
		return pgrepo.PaymentIntentRecord{}, pgrepo.ErrPaymentIntentNotFound
	}
	return rec, nil
}

func (s *paymentStoreStub) IsCompleted(_ context.Context, paymentID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed[paymentID], nil
}

func (s *paymentStoreStub) Grant(_ context.Context, paymentID, bookID, userUID string) (pgrepo.GrantResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	book, ok := s.books[bookID]
	if s.completed[paymentID] {
		var pdfURL string
		if ok {
			pdfURL = book.pdfURL
		}
		return pgrepo.GrantResult{PDFURL: pdfURL, AlreadyGranted: true}, nil
	}
	if !ok {
		return pgrepo.GrantResult{}, pgrepo.ErrBookNotFound
	}

	book.salesCount++
	s.grants[userUID+"|"+bookID] = true
	s.completed[paymentID] = true
	if intent, exists := s.intents[paymentID]; exists {
		intent.Status = pgrepo.IntentStatusCompleted
		s.intents[paymentID] = intent
	}
	return pgrepo.GrantResult{PDFURL: book.pdfURL}, nil
}

func (s *paymentStoreStub) salesFor(bookID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if book, ok := s.books[bookID]; ok {
		return book.salesCount
	}
	return 0
}

func (s *paymentStoreStub) hasGrant(userUID, bookID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.grants[userUID+"|"+bookID]
}

type providerStub struct {
	mu            sync.Mutex
	approveErr    error
	completeErr   error
	getPayment    pi.Payment
	getPaymentErr error
	approveCalls  int
	completeCalls int
}

func (p *providerStub) Approve(_ context.Context, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.approveCalls++
	return p.approveErr
}

func (p *providerStub) Complete(_ context.Context, paymentID, txid string) (pi.Payment, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completeCalls++
	if p.completeErr != nil {
		return pi.Payment{}, p.completeErr
	}
	return pi.Payment{Identifier: paymentID, TxID: txid}, nil
}

func (p *providerStub) GetPayment(_ context.Context, _ string) (pi.Payment, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.getPaymentErr != nil {
		return pi.Payment{}, p.getPaymentErr
	}
	return p.getPayment, nil
}

func (p *providerStub) completed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.completeCalls
}

func newTestService(store *paymentStoreStub, provider *providerStub) *Service {
	return NewService(Dependencies{Provider: provider, Store: store})
}

func TestApproveValidationRejectsEmptyFields(t *testing.T) {
	svc := newTestService(newPaymentStoreStub(), &providerStub{})

	err := svc.Approve(context.Background(), ApproveInput{PaymentID: "p1", BookID: " ", UserUID: "u1"})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestApprovePersistsIntentBeforeProviderFailure(t *testing.T) {
	store := newPaymentStoreStub()
	store.addBook("atlas", "https://cdn.example/atlas.pdf")
	provider := &providerStub{approveErr: &pi.ProviderError{Op: "approve payment", StatusCode: http.StatusBadGateway}}
	svc := newTestService(store, provider)

	err := svc.Approve(context.Background(), ApproveInput{PaymentID: "p1", BookID: "atlas", UserUID: "u1"})
	if !pi.IsProviderError(err) {
		t.Fatalf("expected provider error, got %v", err)
	}

	if _, err := store.FindIntent(context.Background(), "p1"); err != nil {
		t.Fatalf("intent must survive a provider failure for recovery: %v", err)
	}
	if store.hasGrant("u1", "atlas") {
		t.Fatalf("approve must never grant access")
	}
	if store.salesFor("atlas") != 0 {
		t.Fatalf("approve must never touch sales counters")
	}
}

func TestCompleteGrantsExactlyOnce(t *testing.T) {
	store := newPaymentStoreStub()
	store.addBook("atlas", "https://cdn.example/atlas.pdf")
	provider := &providerStub{}
	svc := newTestService(store, provider)

	if err := svc.Approve(context.Background(), ApproveInput{PaymentID: "p1", BookID: "atlas", UserUID: "u1"}); err != nil {
		t.Fatalf("approve: %v", err)
	}

	first, err := svc.Complete(context.Background(), CompleteInput{PaymentID: "p1", TxID: "txid-1", BookID: "atlas", UserUID: "u1"})
	if err != nil {
		t.Fatalf("first complete: %v", err)
	}
	if first.Outcome != OutcomeCompleted || first.PDFURL != "https://cdn.example/atlas.pdf" {
		t.Fatalf("unexpected first result: %+v", first)
	}
	if store.salesFor("atlas") != 1 {
		t.Fatalf("sales count must be 1, got %d", store.salesFor("atlas"))
	}
	if !store.hasGrant("u1", "atlas") {
		t.Fatalf("purchase grant missing after completion")
	}

	second, err := svc.Complete(context.Background(), CompleteInput{PaymentID: "p1", TxID: "txid-other", BookID: "atlas", UserUID: "u1"})
	if err != nil {
		t.Fatalf("replayed complete: %v", err)
	}
	if second.Outcome != OutcomeAlreadyCompleted {
		t.Fatalf("replay must short-circuit, got %+v", second)
	}
	if store.salesFor("atlas") != 1 {
		t.Fatalf("replay must not double-increment sales, got %d", store.salesFor("atlas"))
	}
	if provider.completed() != 1 {
		t.Fatalf("replay must not call the provider again, calls=%d", provider.completed())
	}
}

func TestCompleteTrustsStoredIntentOverRequestBody(t *testing.T) {
	store := newPaymentStoreStub()
	store.addBook("atlas", "https://cdn.example/atlas.pdf")
	store.addBook("cheap", "https://cdn.example/cheap.pdf")
	svc := newTestService(store, &providerStub{})

	if err := svc.Approve(context.Background(), ApproveInput{PaymentID: "p1", BookID: "cheap", UserUID: "u1"}); err != nil {
		t.Fatalf("approve: %v", err)
	}

	// The request body claims a different book than the one approved.
	result, err := svc.Complete(context.Background(), CompleteInput{PaymentID: "p1", TxID: "txid-1", BookID: "atlas", UserUID: "u1"})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if result.PDFURL != "https://cdn.example/cheap.pdf" {
		t.Fatalf("credit must follow the stored intent, got %q", result.PDFURL)
	}
	if store.salesFor("atlas") != 0 || store.salesFor("cheap") != 1 {
		t.Fatalf("sales credited to wrong book: atlas=%d cheap=%d", store.salesFor("atlas"), store.salesFor("cheap"))
	}
}

func TestCompleteProviderFailureLeavesStateUntouched(t *testing.T) {
	store := newPaymentStoreStub()
	store.addBook("atlas", "https://cdn.example/atlas.pdf")
	provider := &providerStub{completeErr: &pi.ProviderError{Op: "complete payment", StatusCode: http.StatusNotFound}}
	svc := newTestService(store, provider)

	_, err := svc.Complete(context.Background(), CompleteInput{PaymentID: "never-approved", TxID: "txid-1", BookID: "atlas", UserUID: "u1"})
	if !pi.IsProviderError(err) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if store.salesFor("atlas") != 0 {
		t.Fatalf("provider failure must not touch sales, got %d", store.salesFor("atlas"))
	}
	if store.hasGrant("u1", "atlas") {
		t.Fatalf("provider failure must not grant access")
	}
}

func TestCompleteMissingBookSurfacesNotFound(t *testing.T) {
	store := newPaymentStoreStub()
	svc := newTestService(store, &providerStub{})

	_, err := svc.Complete(context.Background(), CompleteInput{PaymentID: "p1", TxID: "txid-1", BookID: "ghost", UserUID: "u1"})
	if !errors.Is(err, ErrBookNotFound) {
		t.Fatalf("expected book not found, got %v", err)
	}
}

func TestResolvePendingWithoutTxidIsNoop(t *testing.T) {
	store := newPaymentStoreStub()
	store.addBook("atlas", "https://cdn.example/atlas.pdf")
	provider := &providerStub{getPayment: pi.Payment{Identifier: "p1"}}
	svc := newTestService(store, provider)

	result, err := svc.ResolvePending(context.Background(), "p1")
	if err != nil {
		t.Fatalf("resolve pending: %v", err)
	}
	if result.Outcome != OutcomeStillPending {
		t.Fatalf("expected still pending, got %+v", result)
	}
	if provider.completed() != 0 {
		t.Fatalf("no completion may be attempted without a txid")
	}
}

func TestResolvePendingRecoversStuckPayment(t *testing.T) {
	store := newPaymentStoreStub()
	store.addBook("atlas", "https://cdn.example/atlas.pdf")
	provider := &providerStub{getPayment: pi.Payment{Identifier: "p1", TxID: "txid-1"}}
	svc := newTestService(store, provider)

	// Approve succeeded, but the client-driven completion never arrived.
	if err := svc.Approve(context.Background(), ApproveInput{PaymentID: "p1", BookID: "atlas", UserUID: "u1"}); err != nil {
		t.Fatalf("approve: %v", err)
	}

	result, err := svc.ResolvePending(context.Background(), "p1")
	if err != nil {
		t.Fatalf("resolve pending: %v", err)
	}
	if result.Outcome != OutcomeCompleted {
		t.Fatalf("expected completed outcome, got %+v", result)
	}
	if store.salesFor("atlas") != 1 {
		t.Fatalf("recovery must increment sales exactly once, got %d", store.salesFor("atlas"))
	}
	if !store.hasGrant("u1", "atlas") {
		t.Fatalf("recovery must create the purchase grant")
	}

	again, err := svc.ResolvePending(context.Background(), "p1")
	if err != nil {
		t.Fatalf("second resolve pending: %v", err)
	}
	if again.Outcome != OutcomeAlreadyCompleted {
		t.Fatalf("second resolve must be idempotent, got %+v", again)
	}
	if store.salesFor("atlas") != 1 {
		t.Fatalf("second resolve must not change sales, got %d", store.salesFor("atlas"))
	}
}

func TestResolvePendingFallsBackToProviderMetadata(t *testing.T) {
	store := newPaymentStoreStub()
	store.addBook("atlas", "https://cdn.example/atlas.pdf")
	provider := &providerStub{getPayment: pi.Payment{
		Identifier: "p1",
		TxID:       "txid-1",
		Metadata:   pi.PaymentMetadata{BookID: "atlas", UserUID: "u1"},
	}}
	svc := newTestService(store, provider)

	result, err := svc.ResolvePending(context.Background(), "p1")
	if err != nil {
		t.Fatalf("resolve pending: %v", err)
	}
	if result.Outcome != OutcomeCompleted {
		t.Fatalf("expected completed outcome, got %+v", result)
	}
	if store.salesFor("atlas") != 1 {
		t.Fatalf("metadata fallback must credit the sale, got %d", store.salesFor("atlas"))
	}
}

func TestResolvePendingAbandonsWithoutIdentifiers(t *testing.T) {
	store := newPaymentStoreStub()
	provider := &providerStub{getPayment: pi.Payment{Identifier: "p1", TxID: "txid-1"}}
	svc := newTestService(store, provider)

	result, err := svc.ResolvePending(context.Background(), "p1")
	if err != nil {
		t.Fatalf("resolve pending must not fail hard: %v", err)
	}
	if result.Outcome != OutcomeAbandoned {
		t.Fatalf("expected abandoned outcome, got %+v", result)
	}
	if provider.completed() != 0 {
		t.Fatalf("no completion may be attempted without identifiers")
	}
}

func TestConcurrentCompletionsIncrementSalesOnce(t *testing.T) {
	store := newPaymentStoreStub()
	store.addBook("atlas", "https://cdn.example/atlas.pdf")
	svc := newTestService(store, &providerStub{})

	if err := svc.Approve(context.Background(), ApproveInput{PaymentID: "p1", BookID: "atlas", UserUID: "u1"}); err != nil {
		t.Fatalf("approve: %v", err)
	}

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			_, errs[slot] = svc.Complete(context.Background(), CompleteInput{
				PaymentID: "p1",
				TxID:      "txid-1",
				BookID:    "atlas",
				UserUID:   "u1",
			})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("concurrent complete %d failed: %v", i, err)
		}
	}
	if store.salesFor("atlas") != 1 {
		t.Fatalf("concurrent completions must credit exactly one sale, got %d", store.salesFor("atlas"))
	}
}
