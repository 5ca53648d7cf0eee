package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/provapub/internal/domain/customer"
	"github.com/xenking/provapub/internal/domain/order"
	"github.com/xenking/provapub/internal/domain/payment"
	"github.com/xenking/provapub/internal/domain/token"
	"github.com/xenking/provapub/internal/handler"
	"github.com/xenking/provapub/internal/repository"
	"github.com/xenking/provapub/pkg/health"
	"github.com/xenking/provapub/pkg/httpmiddleware"
)

const serviceName = "provapub"

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	policy, err := cfg.Eligibility.Policy()
	if err != nil {
		return errors.Wrap(err, "eligibility policy")
	}
	location, err := cfg.Display.Location()
	if err != nil {
		return errors.Wrap(err, "display location")
	}

	// PostgreSQL pool + migrations.
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health checks.
	healthSvc := health.New()
	healthSvc.Add(health.Readiness, "postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.Add(health.Liveness, "goroutines", time.Second, health.GoroutineCountCheck(10000))
	if err := healthSvc.Check(ctx, health.Readiness); err != nil {
		return errors.Wrap(err, "initial readiness")
	}
	healthCtx, stopHealth := context.WithCancel(ctx)
	defer stopHealth()
	go healthSvc.Run(healthCtx, 10*time.Second)

	// Repositories.
	customerRepo := repository.NewCustomerRepository(pool)
	orderRepo := repository.NewOrderRepository(pool)
	productRepo := repository.NewProductRepository(pool)
	tokenRepo := repository.NewTokenRepository(pool)

	// Domain services.
	dispatcher, err := payment.NewDispatcher(payment.DefaultStrategies(cfg.Payment.Latency))
	if err != nil {
		return errors.Wrap(err, "create payment dispatcher")
	}
	orderService := order.NewService(dispatcher, orderRepo, order.Options{
		PersistAttempts: cfg.Payment.PersistAttempts,
		RetryDelay:      cfg.Payment.RetryDelay,
	})
	eligibility := customer.NewEligibility(customerRepo, policy, nil)
	allocator := token.NewAllocator(tokenRepo, cfg.Token.Size)

	lg.Info("Payment methods registered", zap.Strings("methods", dispatcher.Methods()))

	// HTTP handlers.
	h, err := handler.NewHandler(handler.Config{Location: location}, handler.Deps{
		Orders:       orderService,
		Eligibility:  eligibility,
		Tokens:       allocator,
		Methods:      dispatcher,
		ProductList:  productRepo,
		CustomerList: customerRepo,
		OrderList:    orderRepo,
	}, m.MeterProvider().Meter(serviceName))
	if err != nil {
		return errors.Wrap(err, "create handler")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	h.Register(mux)
	routeFinder := httpmiddleware.MakeRouteFinder(mux)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument(serviceName, routeFinder, m),
			httpmiddleware.LogRequests(routeFinder),
			httpmiddleware.Labeler(routeFinder),
		),
	}
	healthSvc.SetReady(true)

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		stopHealth()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
