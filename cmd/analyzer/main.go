package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/buildrank/reputation-engine/internal/adapter"
	"github.com/buildrank/reputation-engine/internal/aggregator"
	"github.com/buildrank/reputation-engine/internal/config"
	"github.com/buildrank/reputation-engine/internal/domain"
	"github.com/buildrank/reputation-engine/internal/logger"
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
	cfg, err := config.LoadAnalyzerConfig(*configFile, *envPath)
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
			"service": "analyzer",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting Reputation Engine analyzer")

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
	logger.InfoCtx(ctx, "Connected to database")

	dataStore := store.NewPGStore(db)

	// Initialize adapters
	jsonAdapter := adapter.NewJSON()
	clock := adapter.NewClock()
	httpClient := adapter.NewHTTPClient(30 * time.Second)
	natsJS := adapter.NewNatsJetStream()

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

	natsConfig := jetstream.Config{
		URL:            cfg.NATS.URL,
		StreamName:     cfg.NATS.StreamName,
		MaxReconnects:  cfg.NATS.MaxReconnects,
		ReconnectWait:  cfg.NATS.ReconnectWait,
		ConnectionName: "reputation-analyzer",
		AckWait:        cfg.NATS.AckWait,
		MaxDeliver:     cfg.NATS.MaxDeliver,
	}

	publisher, err := jetstream.NewPublisher(natsConfig, natsJS, jsonAdapter)
	if err != nil {
		logger.Fatal("Failed to connect to NATS", zap.Error(err))
	}
	defer publisher.Close()

	subscriber, err := jetstream.NewSubscriber(natsConfig, cfg.NATS.ConsumerName, natsJS, jsonAdapter)
	if err != nil {
		logger.Fatal("Failed to create analysis request subscriber", zap.Error(err))
	}
	defer subscriber.Close()
	logger.InfoCtx(ctx, "Connected to NATS",
		zap.String("stream", cfg.NATS.StreamName),
		zap.String("consumer", cfg.NATS.ConsumerName),
	)

	pipe := pipeline.New(dataStore, analyzer, engine, publisher, jsonAdapter, clock,
		pipeline.WithBlockRange(cfg.Analysis.FromBlock, cfg.Analysis.ToBlock))

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)

	// Consume queued analysis requests and run the full pipeline for each
	go func() {
		err := subscriber.SubscribeRequests(ctx, func(req *domain.AnalysisRequest) error {
			logger.InfoCtx(ctx, "Processing analysis request",
				zap.String("request_id", req.ID),
				zap.String("user_id", req.UserID),
			)
			return pipe.Run(ctx, req.UserID)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or error
	select {
	case sig := <-sigCh:
		logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	case err := <-errCh:
		logger.ErrorCtx(ctx, err, zap.String("component", "subscriber"))
		cancel()
	}

	// Give some time for graceful shutdown
	time.Sleep(time.Second)

	logger.Info("Analyzer stopped")
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
