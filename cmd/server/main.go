// Command server runs the identityshelf HTTP API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	identityhandler "identityshelf/internal/identity/handler"
	identitymodels "identityshelf/internal/identity/models"
	identityservice "identityshelf/internal/identity/service"
	identitystore "identityshelf/internal/identity/store"
	"identityshelf/internal/platform/config"
	"identityshelf/internal/platform/httpserver"
	"identityshelf/internal/platform/logger"
	"identityshelf/internal/platform/metrics"
	"identityshelf/internal/platform/middleware"
	"identityshelf/internal/platform/postgres"
	"identityshelf/internal/platform/redis"
	schemahandler "identityshelf/internal/schema/handler"
	schemaservice "identityshelf/internal/schema/service"
	schemastore "identityshelf/internal/schema/store"
	"identityshelf/pkg/platform/tx"
)

func main() {
	log := logger.New()
	cfg := config.FromEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	var (
		typeStore       schemaservice.TypeStore
		mappingStore    schemaservice.MappingStore
		identityStore   identityservice.IdentityStore
		valueStore      identityservice.ValueStore
		identifierStore identityservice.IdentifierStore
		runner          tx.Runner
	)
	if cfg.PostgresDSN != "" {
		db, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		pg := schemastore.NewPostgres(db)
		typeStore, mappingStore = pg, pg
		identityStore = identitystore.NewPostgresIdentities(db)
		valueStore = identitystore.NewPostgresValues(db)
		identifierStore = identitystore.NewPostgresIdentifiers(db)
		runner = postgres.NewTxRunner(db)
		log.Info("using postgres stores")
	} else {
		mem := schemastore.NewInMemory()
		typeStore, mappingStore = mem, mem
		identityStore = identitystore.NewMemoryIdentities()
		valueStore = identitystore.NewMemoryValues()
		identifierStore = identitystore.NewMemoryIdentifiers()
		runner = tx.NopRunner{}
		log.Info("using in-memory stores")
	}

	schemaOpts := []schemaservice.Option{schemaservice.WithMetrics(m)}
	if cfg.RedisAddr != "" {
		client, err := redis.New(ctx, cfg.RedisAddr)
		if err != nil {
			log.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer client.Close()
		schemaOpts = append(schemaOpts,
			schemaservice.WithCache(schemastore.NewRedisCache(client, cfg.SchemaCacheTTL, log)))
		log.Info("schema cache enabled", "ttl", cfg.SchemaCacheTTL.String())
	}

	schemaSvc := schemaservice.New(typeStore, mappingStore, log, schemaOpts...)
	identitySvc := identityservice.New(
		identityStore, valueStore, identifierStore,
		schemaSvc, schemaservice.NewValidator(log), runner, log,
		identityservice.WithMetrics(m),
		identityservice.WithCoercionPolicy(identitymodels.CoercionPolicy(cfg.Coercion)),
	)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Logger(log))
	r.Use(middleware.Latency(m))
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	auth := middleware.RequireAuth(middleware.NewHMACValidator(cfg.JWTSigningKey), log)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth)
		r.Mount("/admin/schema", schemahandler.New(schemaSvc).Routes())
		r.Mount("/", identityhandler.New(identitySvc).Routes())
	})

	apiServer := httpserver.New(cfg.Addr, r)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := httpserver.New(cfg.MetricsAddr, metricsMux)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("api server listening", "addr", cfg.Addr)
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.Info("metrics server listening", "addr", cfg.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
		return apiServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
