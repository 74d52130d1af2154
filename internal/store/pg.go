package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/plugin/dbresolver"

	"github.com/buildrank/reputation-engine/internal/domain"
	"github.com/buildrank/reputation-engine/internal/store/schema"
)

type pgStore struct {
	db *gorm.DB
}

// NewPGStore creates a new PostgreSQL store instance
func NewPGStore(db *gorm.DB) Store {
	return &pgStore{db: db}
}

// Open connects to PostgreSQL. When readDSN is non-empty, reads are
// routed to the replica; writes always go to the primary.
func Open(dsn, readDSN string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if readDSN != "" {
		err = db.Use(dbresolver.Register(dbresolver.Config{
			Replicas: []gorm.Dialector{postgres.Open(readDSN)},
		}))
		if err != nil {
			return nil, fmt.Errorf("failed to register read replica: %w", err)
		}
	}

	return db, nil
}

// AutoMigrate creates or updates the engine's tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&schema.User{},
		&schema.Wallet{},
		&schema.GithubProfile{},
		&schema.DeployedContract{},
		&schema.ScoreConfig{},
		&schema.ScoreResult{},
		&schema.DeveloperWorth{},
	)
}

// ConfigureConnectionPool configures the connection pool settings for a
// GORM database connection. Zero values get reasonable defaults.
func ConfigureConnectionPool(db *gorm.DB, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if maxOpenConns == 0 {
		maxOpenConns = 20
	}
	if maxIdleConns == 0 {
		maxIdleConns = 5
	}
	if connMaxLifetime == 0 {
		connMaxLifetime = 5 * time.Minute
	}
	if connMaxIdleTime == 0 {
		connMaxIdleTime = 10 * time.Minute
	}
	if maxIdleConns > maxOpenConns {
		maxIdleConns = maxOpenConns
	}

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	return nil
}

// GetUser retrieves a user by ID
func (s *pgStore) GetUser(ctx context.Context, userID string) (*schema.User, error) {
	var user schema.User
	err := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// GetUserByGithubUsername retrieves a user by GitHub login
func (s *pgStore) GetUserByGithubUsername(ctx context.Context, username string) (*schema.User, error) {
	var user schema.User
	err := s.db.WithContext(ctx).Where("github_username = ?", username).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by github username: %w", err)
	}
	return &user, nil
}

// CreateUser inserts a new user
func (s *pgStore) CreateUser(ctx context.Context, user *schema.User) error {
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// ListWallets retrieves the wallets tracked for a user
func (s *pgStore) ListWallets(ctx context.Context, userID string) ([]schema.Wallet, error) {
	var wallets []schema.Wallet
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at").Find(&wallets).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list wallets: %w", err)
	}
	return wallets, nil
}

// AddWallet attaches a wallet to a user
func (s *pgStore) AddWallet(ctx context.Context, wallet *schema.Wallet) error {
	if err := s.db.WithContext(ctx).Create(wallet).Error; err != nil {
		return fmt.Errorf("failed to add wallet: %w", err)
	}
	return nil
}

// UpsertGithubProfile overwrites the persisted GitHub side of a user's analysis
func (s *pgStore) UpsertGithubProfile(ctx context.Context, profile *schema.GithubProfile) error {
	profile.UpdatedAt = time.Now()
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		UpdateAll: true,
	}).Create(profile).Error
	if err != nil {
		return fmt.Errorf("failed to upsert github profile: %w", err)
	}
	return nil
}

// GetGithubProfile retrieves the persisted GitHub side of a user's
// analysis. Pinned to the primary: the scoring engine reads this right
// after the pipeline writes it, and a stale replica would score old data.
func (s *pgStore) GetGithubProfile(ctx context.Context, userID string) (*schema.GithubProfile, error) {
	var profile schema.GithubProfile
	err := s.db.WithContext(ctx).Clauses(dbresolver.Write).Where("user_id = ?", userID).First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get github profile: %w", err)
	}
	return &profile, nil
}

// ReplaceDeployedContracts replaces the persisted contract set of a user
// in one transaction so readers never observe a partial set
func (s *pgStore) ReplaceDeployedContracts(ctx context.Context, userID string, contracts []schema.DeployedContract) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&schema.DeployedContract{}).Error; err != nil {
			return err
		}
		if len(contracts) == 0 {
			return nil
		}
		return tx.Create(&contracts).Error
	})
	if err != nil {
		return fmt.Errorf("failed to replace deployed contracts: %w", err)
	}
	return nil
}

// ListDeployedContracts retrieves the persisted contract set of a user.
// Pinned to the primary for the same reason as GetGithubProfile.
func (s *pgStore) ListDeployedContracts(ctx context.Context, userID string) ([]schema.DeployedContract, error) {
	var contracts []schema.DeployedContract
	err := s.db.WithContext(ctx).Clauses(dbresolver.Write).Where("user_id = ?", userID).Order("block_number").Find(&contracts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list deployed contracts: %w", err)
	}
	return contracts, nil
}

// GetScoreConfig retrieves a named scoring configuration
func (s *pgStore) GetScoreConfig(ctx context.Context, name string) (*schema.ScoreConfig, error) {
	var config schema.ScoreConfig
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&config).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrScoreConfigNotFound
		}
		return nil, fmt.Errorf("failed to get score config: %w", err)
	}
	return &config, nil
}

// UpsertScoreConfig overwrites a named scoring configuration
func (s *pgStore) UpsertScoreConfig(ctx context.Context, config *schema.ScoreConfig) error {
	config.UpdatedAt = time.Now()
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		UpdateAll: true,
	}).Create(config).Error
	if err != nil {
		return fmt.Errorf("failed to upsert score config: %w", err)
	}
	return nil
}

// UpsertScoreResult overwrites a user's score record
func (s *pgStore) UpsertScoreResult(ctx context.Context, result *schema.ScoreResult) error {
	result.UpdatedAt = time.Now()
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		UpdateAll: true,
	}).Create(result).Error
	if err != nil {
		return fmt.Errorf("failed to upsert score result: %w", err)
	}
	return nil
}

// GetScoreResult retrieves a user's score record
func (s *pgStore) GetScoreResult(ctx context.Context, userID string) (*schema.ScoreResult, error) {
	var result schema.ScoreResult
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrScoreNotFound
		}
		return nil, fmt.Errorf("failed to get score result: %w", err)
	}
	return &result, nil
}

// UpsertDeveloperWorth overwrites a user's worth record
func (s *pgStore) UpsertDeveloperWorth(ctx context.Context, worth *schema.DeveloperWorth) error {
	worth.UpdatedAt = time.Now()
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		UpdateAll: true,
	}).Create(worth).Error
	if err != nil {
		return fmt.Errorf("failed to upsert developer worth: %w", err)
	}
	return nil
}

// GetDeveloperWorth retrieves a user's worth record
func (s *pgStore) GetDeveloperWorth(ctx context.Context, userID string) (*schema.DeveloperWorth, error) {
	var worth schema.DeveloperWorth
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&worth).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrWorthNotFound
		}
		return nil, fmt.Errorf("failed to get developer worth: %w", err)
	}
	return &worth, nil
}
