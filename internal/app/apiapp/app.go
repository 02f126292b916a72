package apiapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/parfum314159/pi-backend/internal/config"
	"github.com/parfum314159/pi-backend/internal/infra/httpclient"
	"github.com/parfum314159/pi-backend/internal/infra/pi"
	s3infra "github.com/parfum314159/pi-backend/internal/infra/s3"
	pendingjob "github.com/parfum314159/pi-backend/internal/jobs/pending"
	pgrepo "github.com/parfum314159/pi-backend/internal/repo/postgres"
	redrepo "github.com/parfum314159/pi-backend/internal/repo/redis"
	bookssvc "github.com/parfum314159/pi-backend/internal/services/books"
	librarysvc "github.com/parfum314159/pi-backend/internal/services/library"
	paymentsvc "github.com/parfum314159/pi-backend/internal/services/payments"
	payoutsvc "github.com/parfum314159/pi-backend/internal/services/payouts"
)

type App struct {
	cfg        config.Config
	logger     *zap.Logger
	server     *http.Server
	postgres   *pgxpool.Pool
	redis      *goredis.Client
	sweeper    *pendingjob.Job
	sweepStop  context.CancelFunc
	httpRouter http.Handler
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	r := chi.NewRouter()
	ApplyMiddlewares(r, log)

	var pool *pgxpool.Pool
	if p, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN); err != nil {
		log.Warn("postgres init failed, continuing in degraded mode", zap.Error(err))
	} else {
		pool = p
	}

	redisClient := redrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	catalogCache := redrepo.NewCatalogCache(redisClient)

	bookRepo := pgrepo.NewBookRepo(pool)
	paymentRepo := pgrepo.NewPaymentRepo(pool)
	grantRepo := pgrepo.NewGrantRepo(pool)
	ratingRepo := pgrepo.NewRatingRepo(pool)
	payoutRepo := pgrepo.NewPayoutRepo(pool)

	piClient, err := pi.NewClient(cfg.Pi.BaseURL, cfg.Pi.APIKey, httpclient.New(cfg.Pi.Timeout))
	if err != nil {
		return nil, fmt.Errorf("create pi client: %w", err)
	}

	var signer *s3infra.Signer
	if s, err := s3infra.NewSigner(s3infra.Config{
		Endpoint:   cfg.S3.Endpoint,
		AccessKey:  cfg.S3.AccessKey,
		SecretKey:  cfg.S3.SecretKey,
		Bucket:     cfg.S3.Bucket,
		UseSSL:     cfg.S3.UseSSL,
		PresignTTL: cfg.S3.PresignTTL,
	}); err != nil {
		log.Warn("s3 init failed, serving stored pdf references as-is", zap.Error(err))
	} else {
		signer = s
	}

	paymentService := paymentsvc.NewService(paymentsvc.Dependencies{
		Provider: piClient,
		Store:    paymentRepo,
		Logger:   log,
	})
	bookService := bookssvc.NewService(bookssvc.Dependencies{
		Store:    bookRepo,
		Ratings:  ratingRepo,
		Cache:    catalogCache,
		CacheTTL: cfg.Catalog.CacheTTL,
		Logger:   log,
	})
	libraryDeps := librarysvc.Dependencies{
		Grants: grantRepo,
		Books:  bookRepo,
		Logger: log,
	}
	if signer != nil {
		libraryDeps.Resolver = signer
	}
	libraryService := librarysvc.NewService(libraryDeps)
	payoutService := payoutsvc.NewService(payoutsvc.Dependencies{
		Store: payoutRepo,
		Policy: pgrepo.PayoutPolicy{
			OwnerCut: cfg.Payouts.OwnerCut,
			Minimum:  cfg.Payouts.Minimum,
			Currency: cfg.Payouts.Currency,
		},
		Logger: log,
	})

	sweeper := pendingjob.New(paymentRepo, paymentService, cfg.Payments.SweepMinAge, cfg.Payments.SweepBatch, log)

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	RegisterRoutes(r, Dependencies{
		BookService:    bookService,
		PaymentService: paymentService,
		LibraryService: libraryService,
		PayoutService:  payoutService,
		Logger:         log,
		Config:         cfg,
	})

	return &App{
		cfg:        cfg,
		logger:     log,
		server:     server,
		postgres:   pool,
		redis:      redisClient,
		sweeper:    sweeper,
		httpRouter: r,
	}, nil
}

func (a *App) Run() error {
	a.startSweeper()

	a.logger.Info("api server started", zap.String("addr", a.cfg.HTTP.Addr))
	err := a.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// startSweeper runs the pending-payment sweep on a ticker for the whole
// life of the server. Sweep failures are logged and the loop keeps
// going; a broken provider must not kill recovery for good.
func (a *App) startSweeper() {
	interval := a.cfg.Payments.SweepInterval
	if interval <= 0 || a.sweeper == nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.sweepStop = cancel

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := a.sweeper.Run(ctx); err != nil {
					a.logger.Warn("pending payment sweep failed", zap.Error(err))
				}
			}
		}
	}()
}

func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error

	if a.sweepStop != nil {
		a.sweepStop()
	}
	if err := a.server.Shutdown(ctx); err != nil {
		shutdownErr = err
	}
	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}

	return shutdownErr
}

func (a *App) Handler() http.Handler {
	return a.httpRouter
}
