package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/buildrank/reputation-engine/internal/adapter"
	"github.com/buildrank/reputation-engine/internal/domain"
	"github.com/buildrank/reputation-engine/internal/logger"
	"github.com/buildrank/reputation-engine/internal/ratelimit"
)

const PROVIDER_NAME = "github"

// reposPerPage is the REST pagination size
const reposPerPage = 100

// eventsMaxPages caps the public event feed walk; the API only retains
// the most recent 300 events
const eventsMaxPages = 3

// User represents a GitHub user profile from the REST API
type User struct {
	Login       string    `json:"login"`
	Name        *string   `json:"name"`
	AvatarURL   string    `json:"avatar_url"`
	Bio         *string   `json:"bio"`
	Followers   int       `json:"followers"`
	Following   int       `json:"following"`
	PublicRepos int       `json:"public_repos"`
	CreatedAt   time.Time `json:"created_at"`
}

// Repository represents a repository from the REST API
type Repository struct {
	FullName        string `json:"full_name"`
	Fork            bool   `json:"fork"`
	StargazersCount int    `json:"stargazers_count"`
	ForksCount      int    `json:"forks_count"`
}

// Organization represents an organization membership from the REST API
type Organization struct {
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url"`
}

// Event represents an entry of the public event feed. Payload stays raw;
// classification happens in the aggregator.
type Event struct {
	Type    string          `json:"type"`
	Repo    EventRepo       `json:"repo"`
	Payload json.RawMessage `json:"payload"`
}

// EventRepo identifies the repository an event belongs to
type EventRepo struct {
	Name string `json:"name"`
}

// Client defines the interface for GitHub REST operations to enable mocking
//
//go:generate mockgen -source=client.go -destination=../../mocks/github_client.go -package=mocks -mock_names=Client=MockGithubClient
type Client interface {
	// GetUser fetches a user profile
	GetUser(ctx context.Context, username string) (*User, error)

	// ListRepositories fetches all repositories of a user, following pagination
	ListRepositories(ctx context.Context, username string) ([]Repository, error)

	// GetRepositoryLanguages fetches the per-language byte breakdown of a repository
	GetRepositoryLanguages(ctx context.Context, fullName string) (map[string]int64, error)

	// ListOrganizations fetches the organizations a user belongs to
	ListOrganizations(ctx context.Context, username string) ([]Organization, error)

	// ListPublicEvents fetches the user's recent public event feed
	ListPublicEvents(ctx context.Context, username string) ([]Event, error)
}

// GithubClient implements the GitHub REST client.
//
// Rate-limit handling is deliberately blunt: a rate-limited response is
// retried exactly once after a fixed delay, then surfaced. This policy
// is distinct from the chain provider's exponential backoff; the two
// are kept as separate configurable policies on purpose.
type GithubClient struct {
	httpClient     adapter.HTTPClient
	rateLimitProxy ratelimit.Proxy
	clock          adapter.Clock
	apiURL         string
	token          string
	json           adapter.JSON
	retryDelay     time.Duration
}

// ClientOption configures a GithubClient
type ClientOption func(*GithubClient)

// WithRetryDelay overrides the fixed delay before the single rate-limit retry
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *GithubClient) {
		c.retryDelay = d
	}
}

// NewClient creates a new GitHub REST client
func NewClient(httpClient adapter.HTTPClient, rateLimitProxy ratelimit.Proxy, clock adapter.Clock, apiURL string, token string, json adapter.JSON, opts ...ClientOption) Client {
	c := &GithubClient{
		httpClient:     httpClient,
		rateLimitProxy: rateLimitProxy,
		clock:          clock,
		apiURL:         apiURL,
		token:          token,
		json:           json,
		retryDelay:     10 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *GithubClient) headers() map[string]string {
	h := map[string]string{
		"Accept": "application/vnd.github+json",
	}
	if c.token != "" {
		h["Authorization"] = "Bearer " + c.token
	}
	return h
}

// getBytes performs a GET with the single-retry rate-limit policy
func (c *GithubClient) getBytes(ctx context.Context, requestURL string) ([]byte, error) {
	body, err := ratelimit.Request(ctx, c.rateLimitProxy, PROVIDER_NAME, func(ctx context.Context) ([]byte, error) {
		return c.httpClient.GetBytes(ctx, requestURL, c.headers())
	})

	var statusErr *adapter.StatusError
	if err != nil && errors.As(err, &statusErr) && statusErr.IsRateLimited() {
		logger.WarnCtx(ctx, "github rate limited, retrying once after fixed delay",
			zap.String("url", requestURL),
			zap.Duration("delay", c.retryDelay),
		)
		c.clock.Sleep(c.retryDelay)

		body, err = ratelimit.Request(ctx, c.rateLimitProxy, PROVIDER_NAME, func(ctx context.Context) ([]byte, error) {
			return c.httpClient.GetBytes(ctx, requestURL, c.headers())
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrRateLimited, err)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamExhausted, err)
	}

	return body, nil
}

func (c *GithubClient) get(ctx context.Context, requestURL string, result interface{}) error {
	body, err := c.getBytes(ctx, requestURL)
	if err != nil {
		return err
	}
	if err := c.json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("failed to unmarshal github response: %w", err)
	}
	return nil
}

// GetUser fetches a user profile
func (c *GithubClient) GetUser(ctx context.Context, username string) (*User, error) {
	var user User
	if err := c.get(ctx, fmt.Sprintf("%s/users/%s", c.apiURL, url.PathEscape(username)), &user); err != nil {
		return nil, fmt.Errorf("failed to fetch github user: %w", err)
	}
	return &user, nil
}

// ListRepositories fetches all repositories of a user, following pagination
func (c *GithubClient) ListRepositories(ctx context.Context, username string) ([]Repository, error) {
	var all []Repository
	for page := 1; ; page++ {
		requestURL := fmt.Sprintf("%s/users/%s/repos?per_page=%d&page=%d&sort=updated",
			c.apiURL, url.PathEscape(username), reposPerPage, page)

		var repos []Repository
		if err := c.get(ctx, requestURL, &repos); err != nil {
			return nil, fmt.Errorf("failed to fetch github repos: %w", err)
		}

		all = append(all, repos...)
		if len(repos) < reposPerPage {
			return all, nil
		}
	}
}

// GetRepositoryLanguages fetches the per-language byte breakdown of a repository
func (c *GithubClient) GetRepositoryLanguages(ctx context.Context, fullName string) (map[string]int64, error) {
	languages := make(map[string]int64)
	if err := c.get(ctx, fmt.Sprintf("%s/repos/%s/languages", c.apiURL, fullName), &languages); err != nil {
		return nil, fmt.Errorf("failed to fetch repo languages: %w", err)
	}
	return languages, nil
}

// ListOrganizations fetches the organizations a user belongs to
func (c *GithubClient) ListOrganizations(ctx context.Context, username string) ([]Organization, error) {
	var orgs []Organization
	if err := c.get(ctx, fmt.Sprintf("%s/users/%s/orgs", c.apiURL, url.PathEscape(username)), &orgs); err != nil {
		return nil, fmt.Errorf("failed to fetch github orgs: %w", err)
	}
	return orgs, nil
}

// ListPublicEvents fetches the user's recent public event feed
func (c *GithubClient) ListPublicEvents(ctx context.Context, username string) ([]Event, error) {
	var all []Event
	for page := 1; page <= eventsMaxPages; page++ {
		requestURL := fmt.Sprintf("%s/users/%s/events/public?per_page=%d&page=%d",
			c.apiURL, url.PathEscape(username), reposPerPage, page)

		var events []Event
		if err := c.get(ctx, requestURL, &events); err != nil {
			return nil, fmt.Errorf("failed to fetch github events: %w", err)
		}

		all = append(all, events...)
		if len(events) < reposPerPage {
			return all, nil
		}
	}
	return all, nil
}
