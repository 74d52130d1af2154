package store

import (
	"context"

	"github.com/buildrank/reputation-engine/internal/store/schema"
)

// Store defines the interface for database operations
//
//go:generate mockgen -source=store.go -destination=../mocks/store.go -package=mocks
type Store interface {
	// GetUser retrieves a user by ID
	GetUser(ctx context.Context, userID string) (*schema.User, error)
	// GetUserByGithubUsername retrieves a user by GitHub login
	GetUserByGithubUsername(ctx context.Context, username string) (*schema.User, error)
	// CreateUser inserts a new user
	CreateUser(ctx context.Context, user *schema.User) error

	// ListWallets retrieves the wallets tracked for a user
	ListWallets(ctx context.Context, userID string) ([]schema.Wallet, error)
	// AddWallet attaches a wallet to a user
	AddWallet(ctx context.Context, wallet *schema.Wallet) error

	// UpsertGithubProfile overwrites the persisted GitHub side of a user's analysis
	UpsertGithubProfile(ctx context.Context, profile *schema.GithubProfile) error
	// GetGithubProfile retrieves the persisted GitHub side of a user's analysis
	GetGithubProfile(ctx context.Context, userID string) (*schema.GithubProfile, error)

	// ReplaceDeployedContracts replaces the persisted contract set of a user
	ReplaceDeployedContracts(ctx context.Context, userID string, contracts []schema.DeployedContract) error
	// ListDeployedContracts retrieves the persisted contract set of a user
	ListDeployedContracts(ctx context.Context, userID string) ([]schema.DeployedContract, error)

	// GetScoreConfig retrieves a named scoring configuration
	GetScoreConfig(ctx context.Context, name string) (*schema.ScoreConfig, error)
	// UpsertScoreConfig overwrites a named scoring configuration
	UpsertScoreConfig(ctx context.Context, config *schema.ScoreConfig) error

	// UpsertScoreResult overwrites a user's score record
	UpsertScoreResult(ctx context.Context, result *schema.ScoreResult) error
	// GetScoreResult retrieves a user's score record
	GetScoreResult(ctx context.Context, userID string) (*schema.ScoreResult, error)

	// UpsertDeveloperWorth overwrites a user's worth record
	UpsertDeveloperWorth(ctx context.Context, worth *schema.DeveloperWorth) error
	// GetDeveloperWorth retrieves a user's worth record
	GetDeveloperWorth(ctx context.Context, userID string) (*schema.DeveloperWorth, error)
}
