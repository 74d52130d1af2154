package domain

import "time"

// ScoreStatus represents the lifecycle state of a persisted score
type ScoreStatus string

const (
	ScoreStatusCompleted ScoreStatus = "COMPLETED"
	ScoreStatusFailed    ScoreStatus = "FAILED"
)

// Web3 metric keys. Thresholds and weights are keyed by these names.
const (
	MetricMainnetContracts        = "mainnetContracts"
	MetricTestnetContracts        = "testnetContracts"
	MetricTVL                     = "tvl"
	MetricUniqueUsers             = "uniqueUsers"
	MetricTransactions            = "transactions"
	MetricWeb3Languages           = "web3Languages"
	MetricCryptoRepoContributions = "cryptoRepoContributions"
	MetricHackathonWins           = "hackathonWins"
)

// Web2 metric keys
const (
	MetricPullRequests  = "pullRequests"
	MetricContributions = "contributions"
	MetricForks         = "forks"
	MetricStars         = "stars"
	MetricIssues        = "issues"
	MetricLinesOfCode   = "totalLinesOfCode"
	MetricAccountAge    = "accountAge"
	MetricFollowers     = "followers"
)

// Web3MetricKeys lists every web3 metric in breakdown order
var Web3MetricKeys = []string{
	MetricMainnetContracts,
	MetricTestnetContracts,
	MetricTVL,
	MetricUniqueUsers,
	MetricTransactions,
	MetricWeb3Languages,
	MetricCryptoRepoContributions,
	MetricHackathonWins,
}

// Web2MetricKeys lists every web2 metric in breakdown order
var Web2MetricKeys = []string{
	MetricPullRequests,
	MetricContributions,
	MetricForks,
	MetricStars,
	MetricIssues,
	MetricLinesOfCode,
	MetricAccountAge,
	MetricFollowers,
}

// MetricScore represents a single scored metric.
// Score is always min(Value/Threshold, 1) * Weight; this clamp-then-scale
// rule is the only normalization law in the engine.
// Breakdown carries optional sparse sub-values (e.g. per-repo
// contribution counts for the crypto repo metric).
type MetricScore struct {
	Value     float64            `json:"value"`
	Threshold float64            `json:"threshold"`
	Weight    float64            `json:"weight"`
	Score     float64            `json:"score"`
	Breakdown map[string]float64 `json:"breakdown,omitempty"`
}

// SideScores represents one side (web2 or web3) of the composite score
type SideScores struct {
	Metrics map[string]MetricScore `json:"metrics"`
	Total   float64                `json:"total"`
}

// ScoreMetrics represents the full per-metric breakdown of a score
type ScoreMetrics struct {
	Web2 SideScores `json:"web2"`
	Web3 SideScores `json:"web3"`
}

// ScoreResult represents the persisted outcome of a scoring run.
// Recomputation fully overwrites the previous record.
type ScoreResult struct {
	UserID           string       `json:"user_id"`
	TotalScore       float64      `json:"total_score"`
	Metrics          ScoreMetrics `json:"metrics"`
	Status           ScoreStatus  `json:"status"`
	LastCalculatedAt time.Time    `json:"last_calculated_at"`
}

// WorthDetails breaks developer worth into its linear model components
type WorthDetails struct {
	ExperienceValue float64 `json:"experience_value"`
	SkillValue      float64 `json:"skill_value"`
	InfluenceValue  float64 `json:"influence_value"`
}

// WorthBreakdown splits total worth by side
type WorthBreakdown struct {
	Web3Worth float64 `json:"web3_worth"`
	Web2Worth float64 `json:"web2_worth"`
}

// DeveloperWorth represents the persisted dollar valuation for a user
type DeveloperWorth struct {
	UserID           string         `json:"user_id"`
	TotalWorth       float64        `json:"total_worth"`
	Breakdown        WorthBreakdown `json:"breakdown"`
	Details          WorthDetails   `json:"details"`
	LastCalculatedAt time.Time      `json:"last_calculated_at"`
}

// Web3WorthMultipliers holds dollar-per-unit multipliers for the
// on-chain side of the worth model
type Web3WorthMultipliers struct {
	MainnetContract    float64 `json:"mainnetContract"`
	TestnetContract    float64 `json:"testnetContract"`
	CryptoContribution float64 `json:"cryptoContribution"`
	SolidityLOC        float64 `json:"solidityLOC"`
	RustLOC            float64 `json:"rustLOC"`
	MoveLOC            float64 `json:"moveLOC"`
	CadenceLOC         float64 `json:"cadenceLOC"`
	TVL                float64 `json:"tvl"`
	UniqueUser         float64 `json:"uniqueUser"`
	Transaction        float64 `json:"transaction"`
}

// Web2WorthMultipliers holds dollar-per-unit multipliers for the
// GitHub side of the worth model
type Web2WorthMultipliers struct {
	AccountYear  float64 `json:"accountYear"`
	PullRequest  float64 `json:"pullRequest"`
	Contribution float64 `json:"contribution"`
	LOC          float64 `json:"loc"`
	Star         float64 `json:"star"`
	Fork         float64 `json:"fork"`
	Follower     float64 `json:"follower"`
}

// WorthMultipliers is the full multiplier table for the worth model
type WorthMultipliers struct {
	Web3 Web3WorthMultipliers `json:"web3"`
	Web2 Web2WorthMultipliers `json:"web2"`
}

// ScoreConfig is the resolved scoring configuration: threshold and
// weight tables for both metric sets, the worth multiplier table, and
// the curated crypto repository allow-list. A resolved config is total
// over the fixed metric key set.
type ScoreConfig struct {
	Web3Thresholds   map[string]float64 `json:"web3_thresholds"`
	Web3Weights      map[string]float64 `json:"web3_weights"`
	Web2Thresholds   map[string]float64 `json:"web2_thresholds"`
	Web2Weights      map[string]float64 `json:"web2_weights"`
	WorthMultipliers WorthMultipliers   `json:"developer_worth_multipliers"`
	CryptoRepos      []string           `json:"crypto_repos"`
}
