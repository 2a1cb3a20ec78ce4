// devauthd serves the devAuth engine over HTTP and gRPC.
//
// Configuration comes from a YAML file (-config) layered over defaults, then
// DEVAUTH_JWT_SECRET, DEVAUTH_DATABASE_DSN and DEVAUTH_REDIS_ADDR.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	devAuth "github.com/MrEthical07/devAuth"
	"github.com/MrEthical07/devAuth/internal/logging"
	promexport "github.com/MrEthical07/devAuth/metrics/export/prometheus"
	"github.com/MrEthical07/devAuth/store"
	"github.com/MrEthical07/devAuth/transport/grpcapi"
	"github.com/MrEthical07/devAuth/transport/httpapi"
)

// set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("devauthd", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to YAML config file")
	migrateOnly := fs.Bool("migrate", false, "apply database migrations and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := devAuth.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log := logging.New(cfg.Logging, version)
	log.Info("starting devauthd", "version", version)

	dbCfg := cfg.Database.Config
	if *migrateOnly {
		dbCfg.AutoMigrate = true
	}
	db, err := store.Open(ctx, dbCfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	if *migrateOnly {
		log.Info("database migrations complete")
		return nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Addr,
		Username:     cfg.Redis.Username,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	defer func() {
		log.Info("closing redis client")
		if closeErr := rdb.Close(); closeErr != nil {
			log.Error("error closing redis", "error", closeErr)
		}
	}()

	builder := devAuth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithStore(db).
		WithLogger(log)
	if cfg.Audit.Enabled {
		builder = builder.WithAuditSink(devAuth.NewSlogSink(log.With("stream", "audit")))
	}
	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("building engine: %w", err)
	}
	defer engine.Close()

	health := engine.Health(ctx)
	log.Info("dependencies checked",
		"cache", health.CacheAvailable,
		"cache_latency", health.CacheLatency,
		"store", health.StoreAvailable,
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		promexport.NewPrometheusExporter(engine),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	httpServer := &http.Server{
		Addr: cfg.Server.HTTPAddr,
		Handler: httpapi.NewRouter(httpapi.RouterDeps{
			Service: engine,
			Logger:  log,
			Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 2)
	go func() {
		log.Info("starting HTTP server", "address", cfg.Server.HTTPAddr)
		if serveErr := httpServer.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", serveErr)
		}
	}()

	grpcCtx, stopGRPC := context.WithCancel(ctx)
	defer stopGRPC()
	// nil when gRPC is disabled, so the selects below never fire on it
	var grpcDone chan error
	if cfg.Server.GRPCAddr != "" {
		grpcDone = make(chan error, 1)
		go func() {
			grpcDone <- grpcapi.NewServer(engine, log).Run(grpcCtx, cfg.Server.GRPCAddr)
		}()
	}

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err = <-errCh:
		log.Error("server failed", "error", err)
	case grpcErr := <-grpcDone:
		if grpcErr != nil {
			err = fmt.Errorf("grpc server: %w", grpcErr)
			log.Error("server failed", "error", err)
		}
		grpcDone = nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	stopGRPC()
	if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
		log.Error("error shutting down HTTP server", "error", shutdownErr)
	}
	if grpcDone != nil {
		select {
		case grpcErr := <-grpcDone:
			if grpcErr != nil {
				log.Error("grpc server stopped with error", "error", grpcErr)
				if err == nil {
					err = fmt.Errorf("grpc server: %w", grpcErr)
				}
			}
		case <-shutdownCtx.Done():
			log.Error("grpc server did not stop before shutdown timeout")
		}
	}

	log.Info("devauthd stopped")
	return err
}
