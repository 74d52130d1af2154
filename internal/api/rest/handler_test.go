package rest_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildrank/reputation-engine/internal/api/middleware"
	"github.com/buildrank/reputation-engine/internal/api/rest"
	"github.com/buildrank/reputation-engine/internal/domain"
	"github.com/buildrank/reputation-engine/internal/store/schema"
)

// fakeService returns canned pipeline results
type fakeService struct {
	bundle   *domain.AnalysisBundle
	score    *domain.ScoreResult
	worth    *domain.DeveloperWorth
	analyze  error
	scoreErr error
	worthErr error
}

func (f *fakeService) AnalyzeUser(ctx context.Context, userID string) (*domain.AnalysisBundle, error) {
	return f.bundle, f.analyze
}

func (f *fakeService) ScoreUser(ctx context.Context, userID string) (*domain.ScoreResult, error) {
	return f.score, f.scoreErr
}

func (f *fakeService) WorthUser(ctx context.Context, userID string) (*domain.DeveloperWorth, error) {
	return f.worth, f.worthErr
}

func (f *fakeService) GetScore(ctx context.Context, userID string) (*domain.ScoreResult, error) {
	return f.score, f.scoreErr
}

func (f *fakeService) GetWorth(ctx context.Context, userID string) (*domain.DeveloperWorth, error) {
	return f.worth, f.worthErr
}

// fakeStore backs the user and wallet endpoints
type fakeStore struct {
	users   map[string]*schema.User
	wallets []schema.Wallet
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: map[string]*schema.User{}}
}

func (f *fakeStore) GetUser(ctx context.Context, userID string) (*schema.User, error) {
	user, ok := f.users[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return user, nil
}

func (f *fakeStore) GetUserByGithubUsername(ctx context.Context, username string) (*schema.User, error) {
	for _, user := range f.users {
		if user.GithubUsername == username {
			return user, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (f *fakeStore) CreateUser(ctx context.Context, user *schema.User) error {
	f.users[user.ID] = user
	return nil
}

func (f *fakeStore) ListWallets(ctx context.Context, userID string) ([]schema.Wallet, error) {
	return f.wallets, nil
}

func (f *fakeStore) AddWallet(ctx context.Context, wallet *schema.Wallet) error {
	f.wallets = append(f.wallets, *wallet)
	return nil
}

func (f *fakeStore) UpsertGithubProfile(ctx context.Context, profile *schema.GithubProfile) error {
	return nil
}

func (f *fakeStore) GetGithubProfile(ctx context.Context, userID string) (*schema.GithubProfile, error) {
	return nil, domain.ErrUserNotFound
}

func (f *fakeStore) ReplaceDeployedContracts(ctx context.Context, userID string, contracts []schema.DeployedContract) error {
	return nil
}

func (f *fakeStore) ListDeployedContracts(ctx context.Context, userID string) ([]schema.DeployedContract, error) {
	return nil, nil
}

func (f *fakeStore) GetScoreConfig(ctx context.Context, name string) (*schema.ScoreConfig, error) {
	return nil, domain.ErrScoreConfigNotFound
}

func (f *fakeStore) UpsertScoreConfig(ctx context.Context, config *schema.ScoreConfig) error {
	return nil
}

func (f *fakeStore) UpsertScoreResult(ctx context.Context, result *schema.ScoreResult) error {
	return nil
}

func (f *fakeStore) GetScoreResult(ctx context.Context, userID string) (*schema.ScoreResult, error) {
	return nil, domain.ErrScoreNotFound
}

func (f *fakeStore) UpsertDeveloperWorth(ctx context.Context, worth *schema.DeveloperWorth) error {
	return nil
}

func (f *fakeStore) GetDeveloperWorth(ctx context.Context, userID string) (*schema.DeveloperWorth, error) {
	return nil, domain.ErrWorthNotFound
}

const testAPIKey = "test-key"

func newTestRouter(service *fakeService, s *fakeStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler := rest.NewHandler(service, s)
	rest.SetupRoutes(router, handler, middleware.AuthConfig{APIKeys: []string{testAPIKey}})
	return router
}

func doRequest(router *gin.Engine, method, path, body string, authed bool) *httptest.ResponseRecorder {
	var buf *bytes.Buffer
	if body != "" {
		buf = bytes.NewBufferString(body)
	} else {
		buf = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("Authorization", "ApiKey "+testAPIKey)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthCheck(t *testing.T) {
	router := newTestRouter(&fakeService{}, newFakeStore())

	w := doRequest(router, http.MethodGet, "/health", "", false)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestCreateUser(t *testing.T) {
	s := newFakeStore()
	router := newTestRouter(&fakeService{}, s)

	w := doRequest(router, http.MethodPost, "/api/v1/users", `{"github_username":"dev","hackathon_wins":2}`, true)

	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, s.users, 1)
	for _, user := range s.users {
		assert.Equal(t, "dev", user.GithubUsername)
		assert.Equal(t, 2, user.HackathonWins)
	}
}

func TestCreateUser_MalformedBody(t *testing.T) {
	router := newTestRouter(&fakeService{}, newFakeStore())

	w := doRequest(router, http.MethodPost, "/api/v1/users", `{"github_username":`, true)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"bad_request"`)
}

func TestCreateUser_Duplicate(t *testing.T) {
	s := newFakeStore()
	s.users["u1"] = &schema.User{ID: "u1", GithubUsername: "dev"}
	router := newTestRouter(&fakeService{}, s)

	w := doRequest(router, http.MethodPost, "/api/v1/users", `{"github_username":"dev"}`, true)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCreateUser_RequiresAuth(t *testing.T) {
	router := newTestRouter(&fakeService{}, newFakeStore())

	w := doRequest(router, http.MethodPost, "/api/v1/users", `{"github_username":"dev"}`, false)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAddWallet(t *testing.T) {
	s := newFakeStore()
	s.users["u1"] = &schema.User{ID: "u1", GithubUsername: "dev"}
	router := newTestRouter(&fakeService{}, s)

	w := doRequest(router, http.MethodPost, "/api/v1/users/u1/wallets", `{"address":"0xabc","chain":"eth-mainnet"}`, true)

	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, s.wallets, 1)
	assert.Equal(t, "0xabc", s.wallets[0].Address)
}

func TestAddWallet_InvalidChain(t *testing.T) {
	s := newFakeStore()
	s.users["u1"] = &schema.User{ID: "u1", GithubUsername: "dev"}
	router := newTestRouter(&fakeService{}, s)

	w := doRequest(router, http.MethodPost, "/api/v1/users/u1/wallets", `{"address":"0xabc","chain":"dogecoin"}`, true)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"validation_failed"`)
}

func TestTriggerAnalysis(t *testing.T) {
	service := &fakeService{
		bundle: &domain.AnalysisBundle{
			OnchainHistory:    []domain.Transfer{{Hash: "0x1"}},
			ContractsDeployed: []domain.DeployedContract{{Address: "0xc0ffee"}},
			Repos: &domain.RepositorySummary{
				Repos: []domain.RepoDetail{{FullName: "dev/contracts"}},
			},
		},
	}
	router := newTestRouter(service, newFakeStore())

	w := doRequest(router, http.MethodPost, "/api/v1/users/u1/analyze", "", true)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":"u1","onchain_transfers":1,"contracts_deployed":1,"github_repos":1}`, w.Body.String())
}

func TestTriggerAnalysis_UnknownUser(t *testing.T) {
	service := &fakeService{analyze: domain.ErrUserNotFound}
	router := newTestRouter(service, newFakeStore())

	w := doRequest(router, http.MethodPost, "/api/v1/users/ghost/analyze", "", true)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetScore_IsPublic(t *testing.T) {
	service := &fakeService{
		score: &domain.ScoreResult{UserID: "u1", TotalScore: 42.5, Status: domain.ScoreStatusCompleted},
	}
	router := newTestRouter(service, newFakeStore())

	w := doRequest(router, http.MethodGet, "/api/v1/users/u1/score", "", false)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total_score":42.5`)
}

func TestGetScore_NotCalculated(t *testing.T) {
	service := &fakeService{scoreErr: domain.ErrScoreNotFound}
	router := newTestRouter(service, newFakeStore())

	w := doRequest(router, http.MethodGet, "/api/v1/users/u1/score", "", false)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetWorth_NotCalculated(t *testing.T) {
	service := &fakeService{worthErr: domain.ErrWorthNotFound}
	router := newTestRouter(service, newFakeStore())

	w := doRequest(router, http.MethodGet, "/api/v1/users/u1/worth", "", false)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
