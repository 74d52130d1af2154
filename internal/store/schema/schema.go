package schema

import (
	"time"

	"gorm.io/datatypes"
)

// User is an analyzed account linking a GitHub identity to wallets.
// HackathonWins is self-reported; it has no upstream data source.
type User struct {
	ID             string    `gorm:"column:id;type:uuid;primaryKey"`
	GithubUsername string    `gorm:"column:github_username;uniqueIndex"`
	HackathonWins  int       `gorm:"column:hackathon_wins"`
	CreatedAt      time.Time `gorm:"column:created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

func (User) TableName() string {
	return "users"
}

// Wallet is an EVM address tracked for a user on one chain
type Wallet struct {
	ID        string    `gorm:"column:id;type:uuid;primaryKey"`
	UserID    string    `gorm:"column:user_id;type:uuid;index"`
	Address   string    `gorm:"column:address"`
	Chain     string    `gorm:"column:chain"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (Wallet) TableName() string {
	return "wallets"
}

// GithubProfile is the persisted GitHub side of the latest analysis.
// Repo-level detail lives in JSON columns; the scoring engine reads the
// scalar totals and the two JSON maps.
type GithubProfile struct {
	UserID              string         `gorm:"column:user_id;type:uuid;primaryKey"`
	Login               string         `gorm:"column:login"`
	Followers           int            `gorm:"column:followers"`
	PublicRepos         int            `gorm:"column:public_repos"`
	AccountCreatedAt    time.Time      `gorm:"column:account_created_at"`
	TotalStars          int            `gorm:"column:total_stars"`
	TotalForks          int            `gorm:"column:total_forks"`
	TotalPullRequests   int            `gorm:"column:total_pull_requests"`
	TotalIssues         int            `gorm:"column:total_issues"`
	TotalCommits        int            `gorm:"column:total_commits"`
	TotalContributions  int            `gorm:"column:total_contributions"`
	Languages           datatypes.JSON `gorm:"column:languages"`
	ContributionsByRepo datatypes.JSON `gorm:"column:contributions_by_repo"`
	UpdatedAt           time.Time      `gorm:"column:updated_at"`
}

func (GithubProfile) TableName() string {
	return "github_profiles"
}

// DeployedContract is a contract discovered during the latest analysis
type DeployedContract struct {
	ID                string    `gorm:"column:id;type:uuid;primaryKey"`
	UserID            string    `gorm:"column:user_id;type:uuid;index"`
	Address           string    `gorm:"column:address"`
	Chain             string    `gorm:"column:chain"`
	BlockNumber       uint64    `gorm:"column:block_number"`
	DeploymentDate    string    `gorm:"column:deployment_date"`
	UniqueUsers       int       `gorm:"column:unique_users"`
	TVL               string    `gorm:"column:tvl"`
	TotalTransactions int       `gorm:"column:total_transactions"`
	IsTestnet         bool      `gorm:"column:is_testnet"`
	CreatedAt         time.Time `gorm:"column:created_at"`
}

func (DeployedContract) TableName() string {
	return "deployed_contracts"
}

// ScoreConfig is a named scoring configuration. Threshold and weight
// tables are JSON maps keyed by metric name; Multipliers is a JSON blob
// parsed defensively at scoring time.
type ScoreConfig struct {
	Name           string         `gorm:"column:name;primaryKey"`
	Web3Thresholds datatypes.JSON `gorm:"column:web3_thresholds"`
	Web3Weights    datatypes.JSON `gorm:"column:web3_weights"`
	Web2Thresholds datatypes.JSON `gorm:"column:web2_thresholds"`
	Web2Weights    datatypes.JSON `gorm:"column:web2_weights"`
	Multipliers    string         `gorm:"column:multipliers"`
	CryptoRepos    datatypes.JSON `gorm:"column:crypto_repos"`
	UpdatedAt      time.Time      `gorm:"column:updated_at"`
}

func (ScoreConfig) TableName() string {
	return "score_configs"
}

// ScoreResult is the persisted outcome of a scoring run, one row per
// user, fully overwritten on every run
type ScoreResult struct {
	UserID    string         `gorm:"column:user_id;type:uuid;primaryKey"`
	Status    string         `gorm:"column:status"`
	Metrics   datatypes.JSON `gorm:"column:metrics"`
	Web3Total float64        `gorm:"column:web3_total"`
	Web2Total float64        `gorm:"column:web2_total"`
	Overall   float64        `gorm:"column:overall"`
	UpdatedAt time.Time      `gorm:"column:updated_at"`
}

func (ScoreResult) TableName() string {
	return "score_results"
}

// DeveloperWorth is the persisted outcome of a worth run, one row per
// user, fully overwritten on every run
type DeveloperWorth struct {
	UserID     string         `gorm:"column:user_id;type:uuid;primaryKey"`
	TotalWorth float64        `gorm:"column:total_worth"`
	Web3Worth  float64        `gorm:"column:web3_worth"`
	Web2Worth  float64        `gorm:"column:web2_worth"`
	Details    datatypes.JSON `gorm:"column:details"`
	Breakdown  datatypes.JSON `gorm:"column:breakdown"`
	UpdatedAt  time.Time      `gorm:"column:updated_at"`
}

func (DeveloperWorth) TableName() string {
	return "developer_worths"
}
