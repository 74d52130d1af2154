package pipeline_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildrank/reputation-engine/internal/adapter"
	"github.com/buildrank/reputation-engine/internal/aggregator"
	"github.com/buildrank/reputation-engine/internal/domain"
	"github.com/buildrank/reputation-engine/internal/messaging"
	"github.com/buildrank/reputation-engine/internal/pipeline"
	"github.com/buildrank/reputation-engine/internal/providers/alchemy"
	"github.com/buildrank/reputation-engine/internal/providers/github"
	"github.com/buildrank/reputation-engine/internal/scoring"
	"github.com/buildrank/reputation-engine/internal/store/schema"
)

// memStore is an in-memory store for pipeline tests
type memStore struct {
	user      *schema.User
	wallets   []schema.Wallet
	profile   *schema.GithubProfile
	contracts []schema.DeployedContract
	scores    []schema.ScoreResult
	worths    []schema.DeveloperWorth
}

func (m *memStore) GetUser(ctx context.Context, userID string) (*schema.User, error) {
	if m.user == nil || m.user.ID != userID {
		return nil, domain.ErrUserNotFound
	}
	return m.user, nil
}

func (m *memStore) GetUserByGithubUsername(ctx context.Context, username string) (*schema.User, error) {
	if m.user == nil || m.user.GithubUsername != username {
		return nil, domain.ErrUserNotFound
	}
	return m.user, nil
}

func (m *memStore) CreateUser(ctx context.Context, user *schema.User) error {
	m.user = user
	return nil
}

func (m *memStore) ListWallets(ctx context.Context, userID string) ([]schema.Wallet, error) {
	return m.wallets, nil
}

func (m *memStore) AddWallet(ctx context.Context, wallet *schema.Wallet) error {
	m.wallets = append(m.wallets, *wallet)
	return nil
}

func (m *memStore) UpsertGithubProfile(ctx context.Context, profile *schema.GithubProfile) error {
	m.profile = profile
	return nil
}

func (m *memStore) GetGithubProfile(ctx context.Context, userID string) (*schema.GithubProfile, error) {
	if m.profile == nil {
		return nil, domain.ErrUserNotFound
	}
	return m.profile, nil
}

func (m *memStore) ReplaceDeployedContracts(ctx context.Context, userID string, contracts []schema.DeployedContract) error {
	m.contracts = contracts
	return nil
}

func (m *memStore) ListDeployedContracts(ctx context.Context, userID string) ([]schema.DeployedContract, error) {
	return m.contracts, nil
}

func (m *memStore) GetScoreConfig(ctx context.Context, name string) (*schema.ScoreConfig, error) {
	return nil, domain.ErrScoreConfigNotFound
}

func (m *memStore) UpsertScoreConfig(ctx context.Context, config *schema.ScoreConfig) error {
	return nil
}

func (m *memStore) UpsertScoreResult(ctx context.Context, result *schema.ScoreResult) error {
	m.scores = append(m.scores, *result)
	return nil
}

func (m *memStore) GetScoreResult(ctx context.Context, userID string) (*schema.ScoreResult, error) {
	if len(m.scores) == 0 {
		return nil, domain.ErrScoreNotFound
	}
	last := m.scores[len(m.scores)-1]
	return &last, nil
}

func (m *memStore) UpsertDeveloperWorth(ctx context.Context, worth *schema.DeveloperWorth) error {
	m.worths = append(m.worths, *worth)
	return nil
}

func (m *memStore) GetDeveloperWorth(ctx context.Context, userID string) (*schema.DeveloperWorth, error) {
	if len(m.worths) == 0 {
		return nil, domain.ErrWorthNotFound
	}
	last := m.worths[len(m.worths)-1]
	return &last, nil
}

// fakePublisher records published events
type fakePublisher struct {
	events []domain.Event
	err    error
}

func (f *fakePublisher) PublishEvent(ctx context.Context, event *domain.Event) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, *event)
	return nil
}

func (f *fakePublisher) Close() {}

// fakeChainClient returns a fixed creation transfer for any deployer
type fakeChainClient struct{}

func (f *fakeChainClient) GetAssetTransfers(ctx context.Context, filter alchemy.TransferFilter) ([]alchemy.AssetTransfer, error) {
	if filter.FromAddress == "0xabc" && len(filter.Categories) == 1 {
		return []alchemy.AssetTransfer{
			{Hash: "0xc1", BlockNum: 5, From: "0xabc", Category: domain.CategoryExternal},
		}, nil
	}
	return nil, nil
}

func (f *fakeChainClient) GetBlock(ctx context.Context, blockNumber uint64) (*alchemy.Block, error) {
	return &alchemy.Block{Number: 5, Timestamp: 0x65f0e100}, nil
}

func (f *fakeChainClient) GetLatestBlockNumber(ctx context.Context) (uint64, error) {
	return 1000, nil
}

func (f *fakeChainClient) GetCode(ctx context.Context, address string) (string, error) {
	return "0x60806040", nil
}

func (f *fakeChainClient) GetTransactionReceipt(ctx context.Context, txHash string) (*alchemy.Receipt, error) {
	addr := "0xc0ffee"
	return &alchemy.Receipt{TransactionHash: txHash, ContractAddress: &addr, Status: "0x1"}, nil
}

// fakeGithubClient serves a minimal fixed footprint
type fakeGithubClient struct{}

func (f *fakeGithubClient) GetUser(ctx context.Context, username string) (*github.User, error) {
	return &github.User{Login: username, Followers: 10, CreatedAt: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)}, nil
}

func (f *fakeGithubClient) ListRepositories(ctx context.Context, username string) ([]github.Repository, error) {
	return []github.Repository{{FullName: username + "/contracts", StargazersCount: 3}}, nil
}

func (f *fakeGithubClient) GetRepositoryLanguages(ctx context.Context, fullName string) (map[string]int64, error) {
	return map[string]int64{"Solidity": 3000}, nil
}

func (f *fakeGithubClient) ListOrganizations(ctx context.Context, username string) ([]github.Organization, error) {
	return nil, nil
}

func (f *fakeGithubClient) ListPublicEvents(ctx context.Context, username string) ([]github.Event, error) {
	return []github.Event{
		{Type: "PushEvent", Repo: github.EventRepo{Name: username + "/contracts"}, Payload: []byte(`{"size":2}`)},
	}, nil
}

// fakeGraphQLClient serves a one-day calendar
type fakeGraphQLClient struct{}

func (f *fakeGraphQLClient) GetContributionCalendar(ctx context.Context, username string, from, to time.Time) (*github.ContributionCalendar, error) {
	return &github.ContributionCalendar{
		TotalContributions: 7,
		Days:               []domain.ContributionDay{{Date: "2026-01-01", Count: 7}},
	}, nil
}

type fixedClock struct{}

func (c *fixedClock) Now() time.Time                         { return time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC) }
func (c *fixedClock) Since(t time.Time) time.Duration        { return c.Now().Sub(t) }
func (c *fixedClock) Sleep(d time.Duration)                  {}
func (c *fixedClock) After(d time.Duration) <-chan time.Time { return time.After(0) }

func newTestPipeline(s *memStore, publisher messaging.Publisher) *pipeline.Pipeline {
	clock := &fixedClock{}
	json := adapter.NewJSON()

	onchain := map[domain.Chain]*aggregator.OnchainAggregator{
		domain.ChainEthereumMainnet: aggregator.NewOnchainAggregator(&fakeChainClient{}, domain.ChainEthereumMainnet, 2),
	}
	analyzer := aggregator.NewAnalyzer(onchain, aggregator.NewGithubAggregator(&fakeGithubClient{}, &fakeGraphQLClient{}, clock, 2))
	engine := scoring.NewEngine(s, json, clock)

	return pipeline.New(s, analyzer, engine, publisher, json, clock)
}

func seedUser(s *memStore) {
	s.user = &schema.User{ID: "u1", GithubUsername: "dev"}
	s.wallets = []schema.Wallet{
		{ID: "w1", UserID: "u1", Address: "0xabc", Chain: string(domain.ChainEthereumMainnet)},
	}
}

func TestRun_FullPipeline(t *testing.T) {
	s := &memStore{}
	seedUser(s)
	publisher := &fakePublisher{}

	p := newTestPipeline(s, publisher)

	require.NoError(t, p.Run(context.Background(), "u1"))

	// Analysis persisted
	require.NotNil(t, s.profile)
	assert.Equal(t, "dev", s.profile.Login)
	assert.Equal(t, 2, s.profile.TotalCommits)
	assert.Equal(t, 7, s.profile.TotalContributions)
	require.Len(t, s.contracts, 1)
	assert.Equal(t, "0xc0ffee", s.contracts[0].Address)
	assert.Equal(t, "u1", s.contracts[0].UserID)

	// Score and worth persisted
	require.Len(t, s.scores, 1)
	assert.Equal(t, string(domain.ScoreStatusCompleted), s.scores[0].Status)
	require.Len(t, s.worths, 1)
	assert.Greater(t, s.worths[0].TotalWorth, 0.0)

	// One event per stage, in order
	require.Len(t, publisher.events, 3)
	assert.Equal(t, domain.EventAnalysisCompleted, publisher.events[0].Type)
	assert.Equal(t, domain.EventScoreCalculated, publisher.events[1].Type)
	assert.Equal(t, domain.EventWorthCalculated, publisher.events[2].Type)
	for _, e := range publisher.events {
		assert.Equal(t, "u1", e.UserID)
		assert.NotEmpty(t, e.ID)
	}
}

func TestAnalyzeUser_UnknownUser(t *testing.T) {
	p := newTestPipeline(&memStore{}, &fakePublisher{})

	_, err := p.AnalyzeUser(context.Background(), "ghost")

	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestPublishFailureIsNotFatal(t *testing.T) {
	s := &memStore{}
	seedUser(s)
	publisher := &fakePublisher{err: errors.New("nats down")}

	p := newTestPipeline(s, publisher)

	_, err := p.AnalyzeUser(context.Background(), "u1")

	require.NoError(t, err)
	require.NotNil(t, s.profile)
}

func TestNilPublisher(t *testing.T) {
	s := &memStore{}
	seedUser(s)

	p := newTestPipeline(s, nil)

	_, err := p.AnalyzeUser(context.Background(), "u1")

	require.NoError(t, err)
}
