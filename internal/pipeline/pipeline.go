package pipeline

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/buildrank/reputation-engine/internal/adapter"
	"github.com/buildrank/reputation-engine/internal/aggregator"
	"github.com/buildrank/reputation-engine/internal/domain"
	"github.com/buildrank/reputation-engine/internal/logger"
	"github.com/buildrank/reputation-engine/internal/messaging"
	"github.com/buildrank/reputation-engine/internal/scoring"
	"github.com/buildrank/reputation-engine/internal/store"
	"github.com/buildrank/reputation-engine/internal/store/schema"
)

// Pipeline orchestrates the analyze → score → worth flow for a user:
// it aggregates, persists the analysis records, runs the scoring
// engine, and emits lifecycle events.
type Pipeline struct {
	store     store.Store
	analyzer  *aggregator.Analyzer
	engine    *scoring.Engine
	publisher messaging.Publisher
	json      adapter.JSON
	clock     adapter.Clock
	fromBlock uint64
	toBlock   uint64
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithBlockRange bounds on-chain aggregation to a block window.
// A toBlock of 0 means the current head of each chain.
func WithBlockRange(fromBlock, toBlock uint64) Option {
	return func(p *Pipeline) {
		p.fromBlock = fromBlock
		p.toBlock = toBlock
	}
}

// New creates a new pipeline. The publisher may be nil, in which case
// no events are emitted.
func New(s store.Store, analyzer *aggregator.Analyzer, engine *scoring.Engine, publisher messaging.Publisher, json adapter.JSON, clock adapter.Clock, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:     s,
		analyzer:  analyzer,
		engine:    engine,
		publisher: publisher,
		json:      json,
		clock:     clock,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AnalyzeUser aggregates a user's on-chain and GitHub footprint and
// persists the analysis records, replacing the previous ones
func (p *Pipeline) AnalyzeUser(ctx context.Context, userID string) (*domain.AnalysisBundle, error) {
	user, err := p.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	wallets, err := p.store.ListWallets(ctx, userID)
	if err != nil {
		return nil, err
	}

	refs := make([]aggregator.WalletRef, 0, len(wallets))
	for _, wallet := range wallets {
		refs = append(refs, aggregator.WalletRef{
			Address: wallet.Address,
			Chain:   domain.Chain(wallet.Chain),
		})
	}

	bundle, err := p.analyzer.AnalyzeUser(ctx, aggregator.AnalyzeRequest{
		Username:  user.GithubUsername,
		Wallets:   refs,
		FromBlock: p.fromBlock,
		ToBlock:   p.toBlock,
	})
	if err != nil {
		return nil, err
	}

	if err := p.persistBundle(ctx, userID, bundle); err != nil {
		return nil, err
	}

	p.publish(ctx, domain.EventAnalysisCompleted, userID)
	return bundle, nil
}

func (p *Pipeline) persistBundle(ctx context.Context, userID string, bundle *domain.AnalysisBundle) error {
	profile := &schema.GithubProfile{
		UserID: userID,
	}
	if bundle.Profile != nil {
		profile.Login = bundle.Profile.Login
		profile.Followers = bundle.Profile.Followers
		profile.PublicRepos = bundle.Profile.PublicRepos
		profile.AccountCreatedAt = bundle.Profile.CreatedAt
	}
	if bundle.Repos != nil {
		profile.TotalStars = bundle.Repos.TotalStars
		profile.TotalForks = bundle.Repos.TotalForks
		languages, err := p.json.Marshal(bundle.Repos.Languages)
		if err != nil {
			return fmt.Errorf("failed to marshal languages: %w", err)
		}
		profile.Languages = datatypes.JSON(languages)
	}
	if bundle.Contributions != nil {
		profile.TotalPullRequests = bundle.Contributions.TotalPullRequests
		profile.TotalIssues = bundle.Contributions.TotalIssues
		profile.TotalCommits = bundle.Contributions.TotalCommits
		byRepo, err := p.json.Marshal(bundle.Contributions.ByRepo)
		if err != nil {
			return fmt.Errorf("failed to marshal contribution breakdown: %w", err)
		}
		profile.ContributionsByRepo = datatypes.JSON(byRepo)
	}
	for _, day := range bundle.Calendar {
		profile.TotalContributions += day.Count
	}

	if err := p.store.UpsertGithubProfile(ctx, profile); err != nil {
		return err
	}

	contracts := make([]schema.DeployedContract, 0, len(bundle.ContractsDeployed))
	for _, contract := range bundle.ContractsDeployed {
		contracts = append(contracts, schema.DeployedContract{
			ID:                uuid.NewString(),
			UserID:            userID,
			Address:           contract.Address,
			Chain:             string(contract.Chain),
			BlockNumber:       contract.BlockNumber,
			DeploymentDate:    contract.DeploymentDate,
			UniqueUsers:       contract.UniqueUsers,
			TVL:               contract.TVL,
			TotalTransactions: contract.TotalTransactions,
			IsTestnet:         contract.IsTestnet,
		})
	}
	return p.store.ReplaceDeployedContracts(ctx, userID, contracts)
}

// ScoreUser recomputes and persists a user's reputation score
func (p *Pipeline) ScoreUser(ctx context.Context, userID string) (*domain.ScoreResult, error) {
	result, err := p.engine.CalculateUserScore(ctx, userID)
	if err != nil {
		return nil, err
	}
	p.publish(ctx, domain.EventScoreCalculated, userID)
	return result, nil
}

// WorthUser recomputes and persists a user's developer worth
func (p *Pipeline) WorthUser(ctx context.Context, userID string) (*domain.DeveloperWorth, error) {
	worth, err := p.engine.CalculateDeveloperWorth(ctx, userID)
	if err != nil {
		return nil, err
	}
	p.publish(ctx, domain.EventWorthCalculated, userID)
	return worth, nil
}

// GetScore reads a user's persisted score record
func (p *Pipeline) GetScore(ctx context.Context, userID string) (*domain.ScoreResult, error) {
	record, err := p.store.GetScoreResult(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := &domain.ScoreResult{
		UserID:           record.UserID,
		TotalScore:       record.Overall,
		Status:           domain.ScoreStatus(record.Status),
		LastCalculatedAt: record.UpdatedAt,
	}
	if len(record.Metrics) > 0 {
		if err := p.json.Unmarshal(record.Metrics, &result.Metrics); err != nil {
			return nil, fmt.Errorf("failed to parse stored score metrics: %w", err)
		}
	}
	return result, nil
}

// GetWorth reads a user's persisted worth record
func (p *Pipeline) GetWorth(ctx context.Context, userID string) (*domain.DeveloperWorth, error) {
	record, err := p.store.GetDeveloperWorth(ctx, userID)
	if err != nil {
		return nil, err
	}

	worth := &domain.DeveloperWorth{
		UserID:           record.UserID,
		TotalWorth:       record.TotalWorth,
		LastCalculatedAt: record.UpdatedAt,
	}
	if len(record.Details) > 0 {
		if err := p.json.Unmarshal(record.Details, &worth.Details); err != nil {
			return nil, fmt.Errorf("failed to parse stored worth details: %w", err)
		}
	}
	if len(record.Breakdown) > 0 {
		if err := p.json.Unmarshal(record.Breakdown, &worth.Breakdown); err != nil {
			return nil, fmt.Errorf("failed to parse stored worth breakdown: %w", err)
		}
	}
	return worth, nil
}

// Run executes the full pipeline for a user: analyze, score, worth
func (p *Pipeline) Run(ctx context.Context, userID string) error {
	if _, err := p.AnalyzeUser(ctx, userID); err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}
	if _, err := p.ScoreUser(ctx, userID); err != nil {
		return fmt.Errorf("scoring failed: %w", err)
	}
	if _, err := p.WorthUser(ctx, userID); err != nil {
		return fmt.Errorf("worth calculation failed: %w", err)
	}
	return nil
}

// publish emits a lifecycle event. The stage result is already
// persisted at this point, so a publish failure is logged, not fatal.
func (p *Pipeline) publish(ctx context.Context, eventType domain.EventType, userID string) {
	if p.publisher == nil {
		return
	}

	now := p.clock.Now()
	event := &domain.Event{
		ID:         ulid.MustNew(ulid.Timestamp(now), rand.New(rand.NewSource(now.UnixNano()))).String(),
		Type:       eventType,
		UserID:     userID,
		OccurredAt: now,
	}

	if err := p.publisher.PublishEvent(ctx, event); err != nil {
		logger.WarnCtx(ctx, "failed to publish pipeline event",
			zap.String("type", string(eventType)),
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}
}
