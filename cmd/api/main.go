package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/buildrank/reputation-engine/internal/adapter"
	"github.com/buildrank/reputation-engine/internal/aggregator"
	"github.com/buildrank/reputation-engine/internal/api/middleware"
	"github.com/buildrank/reputation-engine/internal/api/server"
	"github.com/buildrank/reputation-engine/internal/config"
	"github.com/buildrank/reputation-engine/internal/domain"
	"github.com/buildrank/reputation-engine/internal/logger"
	"github.com/buildrank/reputation-engine/internal/messaging"
	"github.com/buildrank/reputation-engine/internal/pipeline"
	"github.com/buildrank/reputation-engine/internal/providers/alchemy"
	"github.com/buildrank/reputation-engine/internal/providers/github"
	"github.com/buildrank/reputation-engine/internal/providers/jetstream"
	"github.com/buildrank/reputation-engine/internal/ratelimit"
	"github.com/buildrank/reputation-engine/internal/scoring"
	"github.com/buildrank/reputation-engine/internal/store"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
)

func main() {
	flag.Parse()

	// Load configuration
	config.ChdirRepoRoot()
	cfg, err := config.LoadAPIConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize logger with sentry integration
	err = logger.Initialize(logger.Config{
		Debug:     cfg.Debug,
		SentryDSN: cfg.SentryDSN,
		Tags: map[string]string{
			"service": "api-server",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting Reputation Engine API")

	// Connect to database
	db, err := store.Open(cfg.Database.DSN(), cfg.Database.ReadDSN())
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := store.ConfigureConnectionPool(db, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime, cfg.Database.ConnMaxIdleTime); err != nil {
		logger.Fatal("Failed to configure connection pool", zap.Error(err))
	}
	if err := store.AutoMigrate(db); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}
	logger.InfoCtx(ctx, "Connected to database",
		zap.Int("max_open_conns", cfg.Database.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.Database.MaxIdleConns),
	)

	dataStore := store.NewPGStore(db)

	// Initialize adapters
	jsonAdapter := adapter.NewJSON()
	clock := adapter.NewClock()
	httpClient := adapter.NewHTTPClient(30 * time.Second)

	// Rate-limiting proxy shared by all outbound provider calls
	proxy, err := ratelimit.NewProxy(rateLimitConfig(cfg.RateLimit))
	if err != nil {
		logger.Fatal("Failed to create rate limiter", zap.Error(err))
	}
	defer func() { _ = proxy.Close() }()

	// Per-chain on-chain aggregators
	onchain := make(map[domain.Chain]*aggregator.OnchainAggregator, len(cfg.Alchemy.Chains))
	for _, chainName := range cfg.Alchemy.Chains {
		chain := domain.Chain(chainName)
		if !domain.IsValidChain(chain) {
			logger.Fatal("Unsupported chain in configuration", zap.String("chain", chainName))
		}
		chainClient := alchemy.NewClient(httpClient, proxy, cfg.Alchemy.RPCURL(chainName), jsonAdapter)
		onchain[chain] = aggregator.NewOnchainAggregator(chainClient, chain, cfg.Worker.PoolSize)
	}

	// GitHub aggregator
	githubClient := github.NewClient(httpClient, proxy, clock, cfg.Github.APIURL, cfg.Github.Token, jsonAdapter)
	graphqlClient := github.NewGraphQLClient(httpClient, proxy, clock, cfg.Github.GraphQLURL, cfg.Github.Token, jsonAdapter)
	githubAggregator := aggregator.NewGithubAggregator(githubClient, graphqlClient, clock, cfg.Worker.PoolSize)

	analyzer := aggregator.NewAnalyzer(onchain, githubAggregator, aggregator.WithDeadline(cfg.Analysis.Deadline))
	engine := scoring.NewEngine(dataStore, jsonAdapter, clock)

	// Event publisher is optional for the API; without NATS the pipeline
	// still runs, it just emits no events
	var publisher messaging.Publisher
	if cfg.NATS.URL != "" {
		publisher, err = jetstream.NewPublisher(jetstream.Config{
			URL:            cfg.NATS.URL,
			StreamName:     cfg.NATS.StreamName,
			MaxReconnects:  cfg.NATS.MaxReconnects,
			ReconnectWait:  cfg.NATS.ReconnectWait,
			ConnectionName: "reputation-api",
		}, adapter.NewNatsJetStream(), jsonAdapter)
		if err != nil {
			logger.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		defer publisher.Close()
		logger.InfoCtx(ctx, "Connected to NATS", zap.String("stream", cfg.NATS.StreamName))
	} else {
		logger.WarnCtx(ctx, "NATS URL not configured, pipeline events disabled")
	}

	pipe := pipeline.New(dataStore, analyzer, engine, publisher, jsonAdapter, clock,
		pipeline.WithBlockRange(cfg.Analysis.FromBlock, cfg.Analysis.ToBlock))

	// Create server config
	serverConfig := server.Config{
		Debug:        cfg.Debug,
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
		Auth: middleware.AuthConfig{
			JWTPublicKey: cfg.Auth.JWTPublicKey,
			APIKeys:      cfg.Auth.APIKeys,
		},
	}

	// Create and start server
	srv := server.New(serverConfig, dataStore, pipe)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			errCh <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	case err := <-errCh:
		logger.ErrorCtx(ctx, err, zap.String("component", "server"))
		cancel()
	}

	// Create shutdown context with timeout (don't use canceled ctx)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("API server stopped")
}

// rateLimitConfig maps the config section onto the proxy's config type
func rateLimitConfig(cfg config.RateLimitConfig) ratelimit.Config {
	providers := make(map[string]ratelimit.ProviderConfig, len(cfg.Providers))
	for name, p := range cfg.Providers {
		providers[name] = ratelimit.ProviderConfig{
			RequestsPerSecond: p.RequestsPerSecond,
			Burst:             p.Burst,
			MaxQueueTime:      p.MaxQueueTime,
		}
	}
	return ratelimit.Config{
		MaxWorkers:   cfg.MaxWorkers,
		MaxQueueSize: cfg.MaxQueueSize,
		Providers:    providers,
	}
}
