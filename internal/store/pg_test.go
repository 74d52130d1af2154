package store

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/datatypes"
	pgdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/buildrank/reputation-engine/internal/domain"
	"github.com/buildrank/reputation-engine/internal/store/schema"
)

var (
	testDB      *gorm.DB
	pgContainer *postgres.PostgresContainer
)

// TestMain sets up the test database before running tests
func TestMain(m *testing.M) {
	ctx := context.Background()

	// Check if we should use an external database (for CI or local development)
	dbHost := os.Getenv("TEST_DB_HOST")

	var dsn string
	var err error

	if dbHost != "" {
		dbPort := os.Getenv("TEST_DB_PORT")
		dbUser := os.Getenv("TEST_DB_USER")
		dbPassword := os.Getenv("TEST_DB_PASSWORD")
		dbName := os.Getenv("TEST_DB_NAME")
		if dbPort == "" {
			dbPort = "5432"
		}
		if dbUser == "" {
			dbUser = "postgres"
		}
		if dbPassword == "" {
			dbPassword = "postgres"
		}
		if dbName == "" {
			dbName = "test_db"
		}

		dsn = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			dbHost, dbPort, dbUser, dbPassword, dbName)
	} else {
		pgContainer, err = postgres.Run(ctx,
			"postgres:18-alpine",
			postgres.WithDatabase("test_db"),
			postgres.WithUsername("postgres"),
			postgres.WithPassword("postgres"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second)),
		)
		if err != nil {
			fmt.Printf("Failed to start PostgreSQL container: %v\n", err)
			os.Exit(1)
		}

		dsn, err = pgContainer.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			fmt.Printf("Failed to get connection string: %v\n", err)
			terminateContainer(ctx)
			os.Exit(1)
		}
	}

	testDB, err = gorm.Open(pgdriver.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		fmt.Printf("Failed to connect to database: %v\n", err)
		terminateContainer(ctx)
		os.Exit(1)
	}

	if err := AutoMigrate(testDB); err != nil {
		fmt.Printf("Failed to migrate database: %v\n", err)
		terminateContainer(ctx)
		os.Exit(1)
	}

	code := m.Run()

	terminateContainer(ctx)
	os.Exit(code)
}

func terminateContainer(ctx context.Context) {
	if pgContainer != nil {
		if err := pgContainer.Terminate(ctx); err != nil {
			fmt.Printf("Failed to terminate PostgreSQL container: %v\n", err)
		}
	}
}

func createTestUser(t *testing.T, s Store) *schema.User {
	t.Helper()
	user := &schema.User{
		ID:             uuid.NewString(),
		GithubUsername: "dev-" + uuid.NewString()[:8],
	}
	require.NoError(t, s.CreateUser(context.Background(), user))
	return user
}

func TestUserRoundTrip(t *testing.T) {
	s := NewPGStore(testDB)
	ctx := context.Background()

	user := createTestUser(t, s)

	got, err := s.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.GithubUsername, got.GithubUsername)

	byName, err := s.GetUserByGithubUsername(ctx, user.GithubUsername)
	require.NoError(t, err)
	assert.Equal(t, user.ID, byName.ID)

	_, err = s.GetUser(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestWallets(t *testing.T) {
	s := NewPGStore(testDB)
	ctx := context.Background()

	user := createTestUser(t, s)

	require.NoError(t, s.AddWallet(ctx, &schema.Wallet{
		ID:      uuid.NewString(),
		UserID:  user.ID,
		Address: "0xabc",
		Chain:   string(domain.ChainEthereumMainnet),
	}))

	wallets, err := s.ListWallets(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, wallets, 1)
	assert.Equal(t, "0xabc", wallets[0].Address)
}

func TestUpsertGithubProfile_Overwrites(t *testing.T) {
	s := NewPGStore(testDB)
	ctx := context.Background()

	user := createTestUser(t, s)

	profile := &schema.GithubProfile{
		UserID:     user.ID,
		Login:      user.GithubUsername,
		Followers:  10,
		TotalStars: 5,
		Languages:  datatypes.JSON(`{"Go":1024}`),
	}
	require.NoError(t, s.UpsertGithubProfile(ctx, profile))

	profile.Followers = 20
	require.NoError(t, s.UpsertGithubProfile(ctx, profile))

	got, err := s.GetGithubProfile(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, got.Followers)
	assert.Equal(t, 5, got.TotalStars)
}

func TestReplaceDeployedContracts(t *testing.T) {
	s := NewPGStore(testDB)
	ctx := context.Background()

	user := createTestUser(t, s)

	first := []schema.DeployedContract{
		{ID: uuid.NewString(), UserID: user.ID, Address: "0xold", Chain: "eth-mainnet", BlockNumber: 1, TVL: "0"},
	}
	require.NoError(t, s.ReplaceDeployedContracts(ctx, user.ID, first))

	second := []schema.DeployedContract{
		{ID: uuid.NewString(), UserID: user.ID, Address: "0xnew1", Chain: "eth-mainnet", BlockNumber: 2, TVL: "10"},
		{ID: uuid.NewString(), UserID: user.ID, Address: "0xnew2", Chain: "base-sepolia", BlockNumber: 3, TVL: "0", IsTestnet: true},
	}
	require.NoError(t, s.ReplaceDeployedContracts(ctx, user.ID, second))

	contracts, err := s.ListDeployedContracts(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, contracts, 2)
	assert.Equal(t, "0xnew1", contracts[0].Address)
	assert.True(t, contracts[1].IsTestnet)

	// Replacing with an empty set clears the table for the user
	require.NoError(t, s.ReplaceDeployedContracts(ctx, user.ID, nil))
	contracts, err = s.ListDeployedContracts(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, contracts)
}

func TestScoreConfig(t *testing.T) {
	s := NewPGStore(testDB)
	ctx := context.Background()

	_, err := s.GetScoreConfig(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrScoreConfigNotFound)

	config := &schema.ScoreConfig{
		Name:           "default",
		Web3Thresholds: datatypes.JSON(`{"tvl":100000}`),
		Web3Weights:    datatypes.JSON(`{"tvl":15}`),
		Multipliers:    `{"web3":{"mainnetContract":500}}`,
	}
	require.NoError(t, s.UpsertScoreConfig(ctx, config))

	got, err := s.GetScoreConfig(ctx, "default")
	require.NoError(t, err)
	assert.JSONEq(t, `{"tvl":100000}`, string(got.Web3Thresholds))
}

func TestScoreResult_UpsertIsFullOverwrite(t *testing.T) {
	s := NewPGStore(testDB)
	ctx := context.Background()

	user := createTestUser(t, s)

	_, err := s.GetScoreResult(ctx, user.ID)
	assert.ErrorIs(t, err, domain.ErrScoreNotFound)

	require.NoError(t, s.UpsertScoreResult(ctx, &schema.ScoreResult{
		UserID:  user.ID,
		Status:  string(domain.ScoreStatusFailed),
		Metrics: datatypes.JSON(`{}`),
	}))

	require.NoError(t, s.UpsertScoreResult(ctx, &schema.ScoreResult{
		UserID:    user.ID,
		Status:    string(domain.ScoreStatusCompleted),
		Metrics:   datatypes.JSON(`{"web3":{}}`),
		Web3Total: 42.5,
		Web2Total: 30,
		Overall:   36.25,
	}))

	got, err := s.GetScoreResult(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, string(domain.ScoreStatusCompleted), got.Status)
	assert.Equal(t, 42.5, got.Web3Total)
}

func TestDeveloperWorth(t *testing.T) {
	s := NewPGStore(testDB)
	ctx := context.Background()

	user := createTestUser(t, s)

	_, err := s.GetDeveloperWorth(ctx, user.ID)
	assert.ErrorIs(t, err, domain.ErrWorthNotFound)

	require.NoError(t, s.UpsertDeveloperWorth(ctx, &schema.DeveloperWorth{
		UserID:     user.ID,
		TotalWorth: 1200,
		Web3Worth:  900,
		Web2Worth:  300,
		Details:    datatypes.JSON(`{"web3":{"experience":500}}`),
		Breakdown:  datatypes.JSON(`{}`),
	}))

	got, err := s.GetDeveloperWorth(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1200.0, got.TotalWorth)
}
