package scoring

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/buildrank/reputation-engine/internal/adapter"
	"github.com/buildrank/reputation-engine/internal/domain"
	"github.com/buildrank/reputation-engine/internal/logger"
	"github.com/buildrank/reputation-engine/internal/store"
	"github.com/buildrank/reputation-engine/internal/store/schema"
)

// defaultConfigName is the score config row the engine resolves against
const defaultConfigName = "default"

// bytesPerLine estimates lines of code from GitHub's per-language byte
// counts; the languages API does not expose line counts
const bytesPerLine = 30

// web3Languages are the languages counted toward the web3 language
// metric and priced individually in the worth model
var web3Languages = []string{"Solidity", "Rust", "Move", "Cadence", "Vyper"}

// Engine computes reputation scores and developer worth from the
// persisted analysis records
type Engine struct {
	store store.Store
	json  adapter.JSON
	clock adapter.Clock
}

// NewEngine creates a new scoring engine
func NewEngine(s store.Store, json adapter.JSON, clock adapter.Clock) *Engine {
	return &Engine{
		store: s,
		json:  json,
		clock: clock,
	}
}

// metricInputs are the raw values both models consume, derived once per
// run from the persisted analysis records
type metricInputs struct {
	mainnetContracts float64
	testnetContracts float64
	tvl              float64
	uniqueUsers      float64
	transactions     float64
	web3LangCount    float64
	web3LangLines    map[string]float64
	cryptoContribs   float64
	cryptoBreakdown  map[string]float64
	hackathonWins    float64

	pullRequests  float64
	contributions float64
	forks         float64
	stars         float64
	issues        float64
	linesOfCode   float64
	accountYears  float64
	followers     float64
}

// loadInputs loads the persisted records and derives the metric inputs
func (e *Engine) loadInputs(ctx context.Context, userID string, config domain.ScoreConfig) (*metricInputs, error) {
	user, err := e.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	profile, err := e.store.GetGithubProfile(ctx, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrUserNotFound) {
			return nil, err
		}
		// A user with no GitHub record yet scores zero on the web2 side
		// instead of failing
		profile = &schema.GithubProfile{}
	}

	contracts, err := e.store.ListDeployedContracts(ctx, userID)
	if err != nil {
		return nil, err
	}

	in := &metricInputs{
		web3LangLines:   make(map[string]float64),
		cryptoBreakdown: make(map[string]float64),
		hackathonWins:   float64(user.HackathonWins),
		pullRequests:    float64(profile.TotalPullRequests),
		contributions:   float64(profile.TotalContributions),
		forks:           float64(profile.TotalForks),
		stars:           float64(profile.TotalStars),
		issues:          float64(profile.TotalIssues),
		followers:       float64(profile.Followers),
	}

	for _, contract := range contracts {
		if contract.IsTestnet {
			in.testnetContracts++
			continue
		}
		in.mainnetContracts++
		if tvl, err := strconv.ParseFloat(contract.TVL, 64); err == nil {
			in.tvl += tvl
		}
		in.uniqueUsers += float64(contract.UniqueUsers)
		in.transactions += float64(contract.TotalTransactions)
	}

	if len(profile.Languages) > 0 {
		languages := make(map[string]int64)
		if err := e.json.Unmarshal(profile.Languages, &languages); err != nil {
			return nil, fmt.Errorf("failed to parse language breakdown: %w", err)
		}
		var totalBytes int64
		for _, bytes := range languages {
			totalBytes += bytes
		}
		in.linesOfCode = float64(totalBytes) / bytesPerLine
		for _, lang := range web3Languages {
			if bytes, ok := languages[lang]; ok && bytes > 0 {
				in.web3LangCount++
				in.web3LangLines[lang] = float64(bytes) / bytesPerLine
			}
		}
	}

	if len(profile.ContributionsByRepo) > 0 {
		byRepo := make(map[string]domain.RepoContribution)
		if err := e.json.Unmarshal(profile.ContributionsByRepo, &byRepo); err != nil {
			return nil, fmt.Errorf("failed to parse contribution breakdown: %w", err)
		}
		for _, repo := range config.CryptoRepos {
			if c, ok := byRepo[repo]; ok {
				total := float64(c.Commits + c.PullRequests + c.Issues + c.Reviews)
				if total > 0 {
					// Sparse breakdown: only repos with activity appear
					in.cryptoBreakdown[repo] = total
					in.cryptoContribs += total
				}
			}
		}
	}

	if !profile.AccountCreatedAt.IsZero() {
		in.accountYears = e.clock.Since(profile.AccountCreatedAt).Hours() / (24 * 365)
	}

	return in, nil
}

// clampScore applies the engine's single normalization law:
// min(value/threshold, 1) * weight
func clampScore(value, threshold, weight float64) float64 {
	if threshold <= 0 {
		return 0
	}
	ratio := value / threshold
	if ratio > 1 {
		ratio = 1
	}
	return ratio * weight
}

func metric(value, threshold, weight float64) domain.MetricScore {
	return domain.MetricScore{
		Value:     value,
		Threshold: threshold,
		Weight:    weight,
		Score:     clampScore(value, threshold, weight),
	}
}

// resolveConfig loads and merges the persisted "default" config. A
// missing row resolves to pure defaults; any other store error is fatal.
func (e *Engine) resolveConfig(ctx context.Context) (domain.ScoreConfig, error) {
	persisted, err := e.store.GetScoreConfig(ctx, defaultConfigName)
	if err != nil && !errors.Is(err, domain.ErrScoreConfigNotFound) {
		return domain.ScoreConfig{}, err
	}

	config := ResolveScoreConfig(persisted, e.json)
	warnOnWeightImbalance(config)
	return config, nil
}

// CalculateUserScore scores a user from the persisted analysis records
// and overwrites the stored score result. On any error a FAILED record
// is written first and the error is returned.
func (e *Engine) CalculateUserScore(ctx context.Context, userID string) (*domain.ScoreResult, error) {
	result, err := e.calculateScore(ctx, userID)
	if err != nil {
		e.writeFailedScore(ctx, userID)
		return nil, err
	}
	return result, nil
}

func (e *Engine) calculateScore(ctx context.Context, userID string) (*domain.ScoreResult, error) {
	config, err := e.resolveConfig(ctx)
	if err != nil {
		return nil, err
	}

	in, err := e.loadInputs(ctx, userID, config)
	if err != nil {
		return nil, err
	}

	web3 := domain.SideScores{Metrics: map[string]domain.MetricScore{
		domain.MetricMainnetContracts: metric(in.mainnetContracts, config.Web3Thresholds[domain.MetricMainnetContracts], config.Web3Weights[domain.MetricMainnetContracts]),
		domain.MetricTestnetContracts: metric(in.testnetContracts, config.Web3Thresholds[domain.MetricTestnetContracts], config.Web3Weights[domain.MetricTestnetContracts]),
		domain.MetricTVL:              metric(in.tvl, config.Web3Thresholds[domain.MetricTVL], config.Web3Weights[domain.MetricTVL]),
		domain.MetricUniqueUsers:      metric(in.uniqueUsers, config.Web3Thresholds[domain.MetricUniqueUsers], config.Web3Weights[domain.MetricUniqueUsers]),
		domain.MetricTransactions:     metric(in.transactions, config.Web3Thresholds[domain.MetricTransactions], config.Web3Weights[domain.MetricTransactions]),
		domain.MetricWeb3Languages:    metric(in.web3LangCount, config.Web3Thresholds[domain.MetricWeb3Languages], config.Web3Weights[domain.MetricWeb3Languages]),
		domain.MetricHackathonWins:    metric(in.hackathonWins, config.Web3Thresholds[domain.MetricHackathonWins], config.Web3Weights[domain.MetricHackathonWins]),
	}}

	cryptoScore := metric(in.cryptoContribs, config.Web3Thresholds[domain.MetricCryptoRepoContributions], config.Web3Weights[domain.MetricCryptoRepoContributions])
	if len(in.cryptoBreakdown) > 0 {
		cryptoScore.Breakdown = in.cryptoBreakdown
	}
	web3.Metrics[domain.MetricCryptoRepoContributions] = cryptoScore

	web2 := domain.SideScores{Metrics: map[string]domain.MetricScore{
		domain.MetricPullRequests:  metric(in.pullRequests, config.Web2Thresholds[domain.MetricPullRequests], config.Web2Weights[domain.MetricPullRequests]),
		domain.MetricContributions: metric(in.contributions, config.Web2Thresholds[domain.MetricContributions], config.Web2Weights[domain.MetricContributions]),
		domain.MetricForks:         metric(in.forks, config.Web2Thresholds[domain.MetricForks], config.Web2Weights[domain.MetricForks]),
		domain.MetricStars:         metric(in.stars, config.Web2Thresholds[domain.MetricStars], config.Web2Weights[domain.MetricStars]),
		domain.MetricIssues:        metric(in.issues, config.Web2Thresholds[domain.MetricIssues], config.Web2Weights[domain.MetricIssues]),
		domain.MetricLinesOfCode:   metric(in.linesOfCode, config.Web2Thresholds[domain.MetricLinesOfCode], config.Web2Weights[domain.MetricLinesOfCode]),
		domain.MetricAccountAge:    metric(in.accountYears, config.Web2Thresholds[domain.MetricAccountAge], config.Web2Weights[domain.MetricAccountAge]),
		domain.MetricFollowers:     metric(in.followers, config.Web2Thresholds[domain.MetricFollowers], config.Web2Weights[domain.MetricFollowers]),
	}}

	for _, m := range web3.Metrics {
		web3.Total += m.Score
	}
	for _, m := range web2.Metrics {
		web2.Total += m.Score
	}

	result := &domain.ScoreResult{
		UserID: userID,
		Metrics: domain.ScoreMetrics{
			Web2: web2,
			Web3: web3,
		},
		TotalScore:       (web3.Total + web2.Total) / 2,
		Status:           domain.ScoreStatusCompleted,
		LastCalculatedAt: e.clock.Now(),
	}

	metricsJSON, err := e.json.Marshal(result.Metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal score metrics: %w", err)
	}

	if err := e.store.UpsertScoreResult(ctx, &schema.ScoreResult{
		UserID:    userID,
		Status:    string(result.Status),
		Metrics:   datatypes.JSON(metricsJSON),
		Web3Total: web3.Total,
		Web2Total: web2.Total,
		Overall:   result.TotalScore,
	}); err != nil {
		return nil, err
	}

	return result, nil
}

// writeFailedScore records a zeroed FAILED score. The write is best
// effort; the original scoring error is what callers see.
func (e *Engine) writeFailedScore(ctx context.Context, userID string) {
	err := e.store.UpsertScoreResult(ctx, &schema.ScoreResult{
		UserID:  userID,
		Status:  string(domain.ScoreStatusFailed),
		Metrics: datatypes.JSON(`{}`),
	})
	if err != nil {
		logger.ErrorCtx(ctx, fmt.Errorf("failed to record failed score status: %w", err),
			zap.String("user_id", userID),
		)
	}
}

// CalculateDeveloperWorth prices a user's track record with the linear
// worth model and overwrites the stored worth record. Unlike scoring,
// a failed run leaves no trace in the store.
func (e *Engine) CalculateDeveloperWorth(ctx context.Context, userID string) (*domain.DeveloperWorth, error) {
	config, err := e.resolveConfig(ctx)
	if err != nil {
		return nil, err
	}

	in, err := e.loadInputs(ctx, userID, config)
	if err != nil {
		return nil, err
	}

	m3 := config.WorthMultipliers.Web3
	m2 := config.WorthMultipliers.Web2

	web3Experience := in.mainnetContracts*m3.MainnetContract +
		in.testnetContracts*m3.TestnetContract +
		in.cryptoContribs*m3.CryptoContribution
	web3Skill := in.web3LangLines["Solidity"]*m3.SolidityLOC +
		in.web3LangLines["Rust"]*m3.RustLOC +
		in.web3LangLines["Move"]*m3.MoveLOC +
		in.web3LangLines["Cadence"]*m3.CadenceLOC
	web3Influence := in.tvl*m3.TVL +
		in.uniqueUsers*m3.UniqueUser +
		in.transactions*m3.Transaction

	web2Experience := in.accountYears*m2.AccountYear +
		in.pullRequests*m2.PullRequest +
		in.contributions*m2.Contribution
	web2Skill := in.linesOfCode * m2.LOC
	web2Influence := in.stars*m2.Star +
		in.forks*m2.Fork +
		in.followers*m2.Follower

	worth := &domain.DeveloperWorth{
		UserID: userID,
		Breakdown: domain.WorthBreakdown{
			Web3Worth: web3Experience + web3Skill + web3Influence,
			Web2Worth: web2Experience + web2Skill + web2Influence,
		},
		Details: domain.WorthDetails{
			ExperienceValue: web3Experience + web2Experience,
			SkillValue:      web3Skill + web2Skill,
			InfluenceValue:  web3Influence + web2Influence,
		},
		LastCalculatedAt: e.clock.Now(),
	}
	worth.TotalWorth = worth.Breakdown.Web3Worth + worth.Breakdown.Web2Worth

	detailsJSON, err := e.json.Marshal(worth.Details)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal worth details: %w", err)
	}
	breakdownJSON, err := e.json.Marshal(worth.Breakdown)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal worth breakdown: %w", err)
	}

	if err := e.store.UpsertDeveloperWorth(ctx, &schema.DeveloperWorth{
		UserID:     userID,
		TotalWorth: worth.TotalWorth,
		Web3Worth:  worth.Breakdown.Web3Worth,
		Web2Worth:  worth.Breakdown.Web2Worth,
		Details:    datatypes.JSON(detailsJSON),
		Breakdown:  datatypes.JSON(breakdownJSON),
	}); err != nil {
		return nil, err
	}

	return worth, nil
}
