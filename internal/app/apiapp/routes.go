package apiapp

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/parfum314159/pi-backend/internal/config"
	bookssvc "github.com/parfum314159/pi-backend/internal/services/books"
	librarysvc "github.com/parfum314159/pi-backend/internal/services/library"
	paymentsvc "github.com/parfum314159/pi-backend/internal/services/payments"
	payoutsvc "github.com/parfum314159/pi-backend/internal/services/payouts"
	"github.com/parfum314159/pi-backend/internal/transport/http/handlers"
)

type Dependencies struct {
	BookService    *bookssvc.Service
	PaymentService *paymentsvc.Service
	LibraryService *librarysvc.Service
	PayoutService  *payoutsvc.Service
	Logger         *zap.Logger
	Config         config.Config
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	healthHandler := handlers.NewHealthHandler()
	bookHandler := handlers.NewBookHandler(deps.BookService)
	paymentHandler := handlers.NewPaymentHandler(deps.PaymentService)
	libraryHandler := handlers.NewLibraryHandler(deps.LibraryService)
	payoutHandler := handlers.NewPayoutHandler(deps.PayoutService)

	r.Get("/healthz", healthHandler.Get)

	r.Get("/books", bookHandler.List)
	r.Post("/save-book", bookHandler.Save)
	r.Post("/rate-book", bookHandler.Rate)
	r.Post("/book-ratings", bookHandler.Ratings)
	r.Post("/my-sales", bookHandler.MySales)
	r.Post("/reset-sales", bookHandler.ResetSales)

	r.Post("/approve-payment", paymentHandler.Approve)
	r.Post("/complete-payment", paymentHandler.Complete)
	r.Post("/resolve-pending", paymentHandler.ResolvePending)

	r.Post("/my-purchases", libraryHandler.MyPurchases)
	r.Post("/get-pdf", libraryHandler.GetPDF)

	r.Post("/request-payout", payoutHandler.Request)
}
