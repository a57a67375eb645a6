package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/NazarZnet/E-commerce/internal/api"
	"github.com/NazarZnet/E-commerce/internal/catalog"
	"github.com/NazarZnet/E-commerce/internal/config"
	"github.com/NazarZnet/E-commerce/internal/filter"
	"github.com/NazarZnet/E-commerce/internal/service"
	"github.com/NazarZnet/E-commerce/internal/store"
)

const serviceName = "storefront"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Info().Msg(".env file not found, relying on system environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	setupLogger(cfg)
	log.Info().Str("env", cfg.AppEnv).Str("filter_backend", cfg.FilterState.Backend).Msg("starting service")

	// --- Database Connection ---
	db, err := sql.Open("postgres", cfg.Postgres.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database connection")
	}
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	err = db.PingContext(pingCtx)
	cancelPing()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	if cfg.Postgres.Migrate {
		if err := store.RunMigrations(db); err != nil {
			log.Fatal().Err(err).Msg("failed to run migrations")
		}
		log.Info().Msg("database migrations applied")
	}
	dbStore := store.NewPostgresStore(db)

	// --- Filter State ---
	persister, redisClient, err := newFilterPersister(cfg, db)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize filter state persistence")
	}
	loadCtx, cancelLoad := context.WithTimeout(context.Background(), cfg.FilterState.WriteTimeout)
	filters := filter.NewStore(loadCtx, persister,
		filter.WithLogger(log.With().Str("component", "filter_store").Logger()),
		filter.WithWriteTimeout(cfg.FilterState.WriteTimeout),
	)
	cancelLoad()

	// --- Storefront ---
	catalogCache := catalog.NewCache(dbStore, cfg.Catalog.CacheTTL)
	storefront := service.NewStorefront(catalogCache, filters).WithProductLookup(dbStore)

	httpAPIHandler := api.NewHTTPHandler(storefront)
	grpcAPIHandler := api.NewGRPCHandler(storefront)

	// --- Setup & Start HTTP Server ---
	httpRouter := chi.NewRouter()
	setupBaseMiddleware(httpRouter)
	registerHealthCheck(httpRouter, dbStore, redisClient)
	httpAPIHandler.RegisterRoutes(httpRouter)

	httpServer := &http.Server{
		Addr:         ":" + cfg.HttpServer.Port,
		Handler:      httpRouter,
		ReadTimeout:  cfg.HttpServer.TimeoutRead,
		WriteTimeout: cfg.HttpServer.TimeoutWrite,
		IdleTimeout:  cfg.HttpServer.TimeoutIdle,
	}

	go func() {
		log.Info().Str("port", cfg.HttpServer.Port).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
		log.Info().Msg("HTTP server has stopped")
	}()

	// --- Setup & Start gRPC Server ---
	grpcServer := setupGRPCServer(grpcAPIHandler)
	grpcListener, err := net.Listen("tcp", ":"+cfg.GrpcServer.Port)
	if err != nil {
		log.Fatal().Err(err).Str("port", cfg.GrpcServer.Port).Msg("failed to listen for gRPC")
	}

	go func() {
		log.Info().Str("port", cfg.GrpcServer.Port).Msg("gRPC server listening")
		if err := grpcServer.Serve(grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			log.Fatal().Err(err).Msg("gRPC server error")
		}
		log.Info().Msg("gRPC server has stopped")
	}()

	// --- Graceful Shutdown ---
	shutdownComplete := make(chan struct{})
	go waitForShutdown(httpServer, grpcServer, filters, dbStore, redisClient, shutdownComplete)

	<-shutdownComplete
	log.Info().Msg("service shutdown sequence finished")
}

func setupLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	if !cfg.IsProduction() && level > zerolog.DebugLevel {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Str("service", serviceName).Logger()
}

// newFilterPersister selects the filter state backend. The redis client is nil unless the redis backend is used.
func newFilterPersister(cfg *config.Config, db *sql.DB) (filter.Persister, *redis.Client, error) {
	switch cfg.FilterState.Backend {
	case config.FilterBackendRedis:
		client, err := store.NewRedisClient(context.Background(), &cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		p, err := store.NewRedisFilterState(client, cfg.FilterState.Key)
		if err != nil {
			client.Close()
			return nil, nil, err
		}
		return p, client, nil
	case config.FilterBackendPostgres:
		p, err := store.NewPostgresFilterState(db, cfg.FilterState.Key)
		if err != nil {
			return nil, nil, err
		}
		return p, nil, nil
	default:
		log.Warn().Msg("filter state persistence disabled, selections are lost on restart")
		return nil, nil, nil
	}
}

func setupBaseMiddleware(router *chi.Mux) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(api.RequestLogger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))
}

func registerHealthCheck(router *chi.Mux, dbStore *store.PostgresStore, redisClient *redis.Client) {
	router.Get("/api/v1/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		payload := map[string]interface{}{
			"status":      "healthy",
			"serviceName": serviceName,
			"timestamp":   time.Now().UTC().Format(time.RFC3339),
			"database":    "healthy",
		}
		if err := dbStore.Ping(ctx); err != nil {
			payload["database"] = "unhealthy"
			log.Warn().Err(err).Msg("health check DB ping failed")
		}
		if redisClient != nil {
			payload["redis"] = "healthy"
			if err := redisClient.Ping(ctx).Err(); err != nil {
				payload["redis"] = "unhealthy"
				log.Warn().Err(err).Msg("health check redis ping failed")
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(payload)
	})
}

func setupGRPCServer(grpcAPIHandler *api.GRPCHandler) *grpc.Server {
	s := grpc.NewServer()

	api.RegisterFilterServiceServer(s, grpcAPIHandler)
	grpc_health_v1.RegisterHealthServer(s, health.NewServer())
	reflection.Register(s)
	log.Debug().Msg("gRPC services registered")

	return s
}

func waitForShutdown(
	httpServer *http.Server,
	grpcServer *grpc.Server,
	filters *filter.Store,
	dbStore *store.PostgresStore,
	redisClient *redis.Client,
	shutdownComplete chan struct{},
) {
	defer close(shutdownComplete)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	receivedSignal := <-sigChan
	log.Info().Str("signal", receivedSignal.String()).Msg("starting graceful shutdown")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	stoppedGrpc := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stoppedGrpc)
	}()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("HTTP server graceful shutdown failed")
	}

	select {
	case <-stoppedGrpc:
	case <-shutdownCtx.Done():
		log.Warn().Err(shutdownCtx.Err()).Msg("gRPC graceful shutdown timed out, forcing stop")
		grpcServer.Stop()
	}

	// Flush the last filter selection before its backend goes away.
	if err := filters.Close(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("filter state flush failed")
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing redis client")
		}
	}
	if err := dbStore.Close(); err != nil {
		log.Warn().Err(err).Msg("error closing database connection")
	}

	log.Info().Msg("graceful shutdown sequence completed")
}
