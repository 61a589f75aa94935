package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"truewatch/internal/aggregator"
	"truewatch/internal/config"
	"truewatch/internal/database"
	"truewatch/internal/federation"
	"truewatch/internal/identity"
)

func main() {
	logger := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	level, _ := logrus.ParseLevel(cfg.LogLevel)
	logger.SetLevel(level)

	credPath := cfg.CredentialPath
	if credPath == "" {
		if credPath, err = identity.DefaultPath(); err != nil {
			logger.Fatalf("Failed to resolve credential path: %v", err)
		}
	}
	cred, err := identity.Load(credPath)
	if err != nil {
		logger.Fatalf("Failed to load credential: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clientMetrics := federation.NewMetrics()
	defer clientMetrics.Close()
	aggMetrics := aggregator.NewMetrics()
	defer aggMetrics.Close()

	client := federation.NewClient(cfg, cred, logger, federation.WithMetrics(clientMetrics))

	opts := []aggregator.Option{aggregator.WithMetrics(aggMetrics)}
	if cfg.DatabaseURL != "" {
		db, err := database.New(ctx, database.DefaultConfig(cfg.DatabaseURL))
		if err != nil {
			logger.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		if err := db.Ping(ctx); err != nil {
			logger.Fatalf("Database unreachable: %v", err)
		}
		store, err := aggregator.NewPostgresStore(ctx, db)
		if err != nil {
			logger.Fatalf("Failed to initialize history store: %v", err)
		}
		opts = append(opts, aggregator.WithStore(store))
	} else {
		logger.Warn("no database configured, snapshot history disabled")
	}

	if err := client.Connect(ctx); err != nil {
		logger.Fatalf("Failed to connect to bus: %v", err)
	}

	ag := aggregator.New(cfg, client, logger, opts...)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ag.Run(ctx)
	})
	g.Go(func() error {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("aggregator stopped with error")
	}
	logger.Info("Shutting down...")
	client.Disconnect()
}
