package myhttp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"haul-dispatch/internal/config"
	"haul-dispatch/internal/dispatch-service/adapters/driven/bm"
	"haul-dispatch/internal/dispatch-service/adapters/driven/consumer"
	"haul-dispatch/internal/dispatch-service/adapters/driven/db"
	"haul-dispatch/internal/dispatch-service/adapters/driven/notify"
	"haul-dispatch/internal/dispatch-service/adapters/driver/myhttp/handle"
	"haul-dispatch/internal/dispatch-service/adapters/driver/myhttp/middleware"
	"haul-dispatch/internal/dispatch-service/core/domain/model"
	"haul-dispatch/internal/dispatch-service/core/ports"
	"haul-dispatch/internal/dispatch-service/core/services"
	"haul-dispatch/internal/mylogger"
)

const WaitTime = 10

type Server struct {
	mux      *http.ServeMux
	cfg      *config.Config
	srv      *http.Server
	mylog    mylogger.Logger
	db       *db.DB
	mb       ports.IDispatchBroker
	notifier *notify.RedisNotifier
	ctx      context.Context
	appCtx   context.Context
	mu       sync.Mutex
	wg       sync.WaitGroup
}

func NewServer(ctx, appCtx context.Context, mylog mylogger.Logger, cfg *config.Config) *Server {
	s := &Server{
		ctx:    ctx,
		appCtx: appCtx,
		cfg:    cfg,
		mylog:  mylog,
		mux:    http.NewServeMux(),
	}

	return s
}

// Run connects the backing services, registers routes and starts listening.
// It returns when the server stops.
func (s *Server) Run() error {
	mylog := s.mylog.Action("server_started")

	db, err := db.New(s.ctx, s.cfg.DB, mylog)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	s.db = db
	mylog.Info("Successful database connection")

	if s.cfg.RabbitMq.Enabled {
		mb, err := bm.New(s.appCtx, *s.cfg.RabbitMq, s.mylog)
		if err != nil {
			return fmt.Errorf("failed to connect to rabbitmq: %w", err)
		}
		s.mb = mb
		mylog.Info("Successful message broker connection")
	}

	if s.cfg.Redis.Enabled {
		n, err := notify.NewRedisNotifier(s.appCtx, s.cfg.Redis, s.mylog)
		if err != nil {
			// long polls still work by polling the event log
			mylog.Warn("redis unavailable, long-poll wake-ups disabled", "error", err.Error())
		} else {
			s.notifier = n
			mylog.Info("Successful redis connection")
		}
	}

	if err := s.Configure(); err != nil {
		return err
	}

	s.mu.Lock()
	s.srv = newHTTPServer(s.ctx, fmt.Sprintf(":%v", s.cfg.Srv.DispatchServicePort), s.mux)
	s.mu.Unlock()

	mylog = mylog.WithGroup("details").With("port", s.cfg.Srv.DispatchServicePort)

	mylog.Info("server is running")
	return s.startHTTPServer()
}

// Stop provides a programmatic shutdown. Accepts a context for timeout control.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mylog.Info("Shutting down HTTP server...")

	var shutdownErr error
	if s.srv != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, WaitTime*time.Second)
		defer cancel()

		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.mylog.Error("Failed to shut down HTTP server gracefully", err)
			shutdownErr = fmt.Errorf("http server shutdown: %w", err)
		}
	}

	// consumers stop with s.ctx
	s.wg.Wait()

	if s.mb != nil {
		if err := s.mb.Close(); err != nil {
			s.mylog.Error("Failed to close message broker", err)
		}
	}
	if s.notifier != nil {
		if err := s.notifier.Close(); err != nil {
			s.mylog.Error("Failed to close redis", err)
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.mylog.Error("Failed to close database", err)
			return fmt.Errorf("db close: %w", err)
		}
		s.mylog.Info("Database closed")
	}

	if shutdownErr != nil {
		return shutdownErr
	}
	s.mylog.Info("HTTP server shut down gracefully")
	return nil
}

// newHTTPServer derives every request context from ctx, so cancelling ctx
// releases held long polls before Shutdown starts waiting on them.
func newHTTPServer(ctx context.Context, addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
}

func (s *Server) startHTTPServer() error {
	errCh := make(chan error, 1)

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		} else {
			errCh <- nil
		}
	}()

	select {
	case <-s.ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Configure builds repositories, services and handlers and registers routes.
func (s *Server) Configure() error {
	// Repositories
	jobsRepo := db.NewJobsRepo(s.db)
	driversRepo := db.NewDriversRepo(s.db)
	eventsRepo := db.NewEventsRepo(s.db)
	extensionsRepo := db.NewExtensionsRepo(s.db)
	overviewRepo := db.NewOverviewRepo(s.db)

	// optional collaborators stay untyped nil when absent
	var notifier ports.IFeedNotifier
	if s.notifier != nil {
		notifier = s.notifier
	}

	// services
	feedService := services.NewFeedService(s.mylog, eventsRepo, jobsRepo, notifier, s.mb, services.FeedOptions{
		PageSize:      s.cfg.Feed.PageSize,
		RetryInterval: s.cfg.Feed.RetryInterval,
		MaxWait:       s.cfg.Feed.LongPollWait,
	})
	claims := services.NewClaimCoordinator(s.mylog, jobsRepo, driversRepo)
	jobService := services.NewJobService(s.mylog, jobsRepo, driversRepo, claims, feedService, s.mb, services.PayoutPolicy{
		Percent: s.cfg.Payout.Percent,
		Version: s.cfg.Payout.Version,
	})
	matchingService := services.NewMatchingService(s.mylog, jobsRepo, driversRepo, services.MatchingOptions{
		MaxRadiusKm: s.cfg.Matching.MaxRadiusKm,
		Limit:       s.cfg.Matching.Limit,
	})
	extensionService := services.NewExtensionService(s.mylog, jobsRepo, extensionsRepo, feedService)
	driverService := services.NewDriverService(s.mylog, driversRepo, jobsRepo, feedService)
	overviewService := services.NewOverviewService(s.mylog, overviewRepo)

	if s.mb != nil {
		payments := consumer.New(s.ctx, &s.wg, s.mylog, s.mb, jobService, feedService)
		if err := payments.Run(); err != nil {
			return fmt.Errorf("failed to start payment consumer: %w", err)
		}
	}

	// handlers
	quoteHandler := handle.NewQuoteHandler(s.mylog)
	jobsHandler := handle.NewJobsHandler(jobService, matchingService, s.mylog)
	feedHandler := handle.NewFeedHandler(feedService, s.mylog)
	extensionHandler := handle.NewExtensionHandler(extensionService, s.mylog)
	driverHandler := handle.NewDriverHandler(driverService, s.mylog)
	adminHandler := handle.NewAdminHandler(s.mylog, overviewService)
	healthHandler := handle.NewHealthHandler(s.db, s.mb)

	auth := middleware.NewAuthMiddleware(s.cfg.App.PublicJwtSecret)
	customer := func(h http.Handler) http.Handler { return auth.Wrap(h, model.RoleCustomer) }
	driver := func(h http.Handler) http.Handler { return auth.Wrap(h, model.RoleDriver) }
	admin := func(h http.Handler) http.Handler { return auth.Wrap(h, model.RoleAdmin) }
	anyone := func(h http.Handler) http.Handler { return auth.Wrap(h) }

	// Register routes
	s.mux.Handle("POST /quotes", quoteHandler.CreateQuote())
	s.mux.Handle("POST /orders/track", jobsHandler.Track())

	s.mux.Handle("POST /jobs", customer(jobsHandler.CreateJob()))
	s.mux.Handle("GET /jobs/available", driver(jobsHandler.Available()))
	s.mux.Handle("GET /jobs/{job_id}", anyone(jobsHandler.GetJob()))
	s.mux.Handle("POST /jobs/{job_id}/claim", driver(jobsHandler.Claim()))
	s.mux.Handle("POST /jobs/{job_id}/start", driver(jobsHandler.Start()))
	s.mux.Handle("POST /jobs/{job_id}/complete", driver(jobsHandler.Complete()))
	s.mux.Handle("POST /jobs/{job_id}/cancel", anyone(jobsHandler.Cancel()))

	s.mux.Handle("POST /jobs/{job_id}/extensions", driver(extensionHandler.Request()))
	s.mux.Handle("POST /extensions/{extension_id}/approve", customer(extensionHandler.Approve()))
	s.mux.Handle("POST /extensions/{extension_id}/decline", customer(extensionHandler.Decline()))

	s.mux.Handle("GET /updates", anyone(feedHandler.Updates()))
	s.mux.Handle("GET /updates/long", anyone(feedHandler.LongUpdates()))

	s.mux.Handle("POST /drivers/online", driver(driverHandler.GoOnline()))
	s.mux.Handle("POST /drivers/offline", driver(driverHandler.GoOffline()))
	s.mux.Handle("POST /drivers/location", driver(driverHandler.UpdateLocation()))

	s.mux.Handle("POST /admin/drivers", admin(driverHandler.Register()))
	s.mux.Handle("PATCH /admin/drivers/{driver_id}/approval", admin(driverHandler.SetApproval()))
	s.mux.Handle("GET /admin/overview", admin(adminHandler.GetSystemOverview()))
	s.mux.Handle("GET /admin/jobs/active", admin(adminHandler.GetActiveJobs()))

	s.mux.Handle("GET /health", healthHandler.Health())
	return nil
}
