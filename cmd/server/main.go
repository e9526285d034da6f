// Command server runs the gatepass HTTP service: identity verification
// against VeriFayda/eSignet plus the visitor check-in/check-out register.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	hosthandler "gatepass/internal/host/handler"
	hostservice "gatepass/internal/host/service"
	hoststore "gatepass/internal/host/store/host"
	httpapi "gatepass/internal/http"
	"gatepass/internal/maintenance"
	oidchandler "gatepass/internal/oidc/handler"
	oidcmetrics "gatepass/internal/oidc/metrics"
	"gatepass/internal/oidc/provider"
	oidcservice "gatepass/internal/oidc/service"
	sessionstore "gatepass/internal/oidc/store/session"
	"gatepass/internal/platform/config"
	"gatepass/internal/platform/httpserver"
	"gatepass/internal/platform/logger"
	"gatepass/internal/platform/metrics"
	"gatepass/internal/platform/middleware"
	"gatepass/internal/platform/postgres"
	platformredis "gatepass/internal/platform/redis"
	visithandler "gatepass/internal/visit/handler"
	visitmetrics "gatepass/internal/visit/metrics"
	visitservice "gatepass/internal/visit/service"
	visitstore "gatepass/internal/visit/store/visit"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// A missing .env is fine; the environment may be set by the runtime.
	_ = godotenv.Load()

	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		sessions oidcservice.SessionStore
		visits   visitservice.VisitStore
		hosts    hostservice.HostStore
		health   = map[string]httpapi.HealthChecker{}
	)

	switch {
	case cfg.DatabaseURL != "":
		if err := postgres.Migrate(cfg.DatabaseURL); err != nil {
			return err
		}
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()

		sessions = sessionstore.NewPostgres(db)
		visits = visitstore.NewPostgres(db)
		hosts = hoststore.NewPostgres(db)
		health["postgres"] = db.PingContext
		log.Info("using postgres stores")

	case cfg.RedisURL != "":
		// Redis holds only the short-lived handshake sessions; the ledger
		// needs Postgres, so visits and hosts stay in memory here.
		client, err := platformredis.New(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer client.Close()

		sessions = sessionstore.NewRedis(client.Client)
		visits = visitstore.NewInMemory()
		hosts = hoststore.NewInMemory()
		health["redis"] = client.Health
		log.Info("using redis session store with in-memory ledger")

	default:
		sessions = sessionstore.NewInMemory()
		visits = visitstore.NewInMemory()
		hosts = hoststore.NewInMemory()
		log.Warn("using in-memory stores; data is lost on restart")
	}

	flowService, err := oidcservice.New(cfg.OIDC, sessions, provider.NewClient(cfg.OIDC),
		oidcservice.WithLogger(log),
		oidcservice.WithMetrics(oidcmetrics.New()),
	)
	if err != nil {
		return err
	}

	hostService := hostservice.New(hosts, log)
	visitService := visitservice.New(visits, hostService,
		visitservice.WithLogger(log),
		visitservice.WithMetrics(visitmetrics.New()),
	)

	router := httpapi.NewRouter(httpapi.Deps{
		OIDC:          oidchandler.New(flowService, log),
		Visits:        visithandler.New(visitService, log),
		Hosts:         hosthandler.New(hostService, log),
		Metrics:       metrics.NewHTTP(),
		InitiateLimit: middleware.NewRateLimiter(5, 10),
		Health:        health,
	})
	srv := httpserver.New(cfg.Addr, router)

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		return maintenance.NewSweeper(flowService, cfg.SweepInterval, log).Run(ctx)
	})

	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
