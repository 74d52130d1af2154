package github

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/buildrank/reputation-engine/internal/adapter"
	"github.com/buildrank/reputation-engine/internal/domain"
	"github.com/buildrank/reputation-engine/internal/logger"
	"github.com/buildrank/reputation-engine/internal/ratelimit"
)

// contributionsQuery fetches the day-by-day contribution calendar over a
// fixed date window
const contributionsQuery = `query ContributionCalendar($login: String!, $from: DateTime!, $to: DateTime!) {
  user(login: $login) {
    contributionsCollection(from: $from, to: $to) {
      contributionCalendar {
        totalContributions
        weeks {
          contributionDays {
            date
            contributionCount
          }
        }
      }
    }
  }
}`

// ContributionCalendar represents a user's contribution heatmap
type ContributionCalendar struct {
	TotalContributions int
	Days               []domain.ContributionDay
}

// graphQLRequest represents a GraphQL request envelope
type graphQLRequest struct {
	Query     string      `json:"query"`
	Variables interface{} `json:"variables"`
}

// contributionsResponse mirrors the GraphQL response shape
type contributionsResponse struct {
	Data struct {
		User *struct {
			ContributionsCollection struct {
				ContributionCalendar struct {
					TotalContributions int `json:"totalContributions"`
					Weeks              []struct {
						ContributionDays []struct {
							Date              string `json:"date"`
							ContributionCount int    `json:"contributionCount"`
						} `json:"contributionDays"`
					} `json:"weeks"`
				} `json:"contributionCalendar"`
			} `json:"contributionsCollection"`
		} `json:"user"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// GraphQLClient defines the interface for the GitHub GraphQL endpoint to enable mocking
//
//go:generate mockgen -source=graphql.go -destination=../../mocks/github_graphql.go -package=mocks -mock_names=GraphQLClient=MockGithubGraphQLClient
type GraphQLClient interface {
	// GetContributionCalendar fetches the contribution calendar for a date window
	GetContributionCalendar(ctx context.Context, username string, from, to time.Time) (*ContributionCalendar, error)
}

// GithubGraphQLClient implements GraphQLClient. It shares the REST
// client's blunt rate-limit policy: one fixed-delay retry, then fail.
type GithubGraphQLClient struct {
	httpClient     adapter.HTTPClient
	rateLimitProxy ratelimit.Proxy
	clock          adapter.Clock
	graphqlURL     string
	token          string
	json           adapter.JSON
	retryDelay     time.Duration
}

// NewGraphQLClient creates a new GitHub GraphQL client
func NewGraphQLClient(httpClient adapter.HTTPClient, rateLimitProxy ratelimit.Proxy, clock adapter.Clock, graphqlURL string, token string, json adapter.JSON, opts ...GraphQLOption) GraphQLClient {
	c := &GithubGraphQLClient{
		httpClient:     httpClient,
		rateLimitProxy: rateLimitProxy,
		clock:          clock,
		graphqlURL:     graphqlURL,
		token:          token,
		json:           json,
		retryDelay:     10 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GraphQLOption configures a GithubGraphQLClient
type GraphQLOption func(*GithubGraphQLClient)

// WithGraphQLRetryDelay overrides the fixed delay before the single rate-limit retry
func WithGraphQLRetryDelay(d time.Duration) GraphQLOption {
	return func(c *GithubGraphQLClient) {
		c.retryDelay = d
	}
}

// GetContributionCalendar fetches the contribution calendar for a date window
func (c *GithubGraphQLClient) GetContributionCalendar(ctx context.Context, username string, from, to time.Time) (*ContributionCalendar, error) {
	requestBody, err := c.json.Marshal(graphQLRequest{
		Query: contributionsQuery,
		Variables: map[string]string{
			"login": username,
			"from":  from.UTC().Format(time.RFC3339),
			"to":    to.UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal graphql request: %w", err)
	}

	headers := map[string]string{
		"Authorization": "Bearer " + c.token,
	}

	post := func(ctx context.Context) ([]byte, error) {
		return c.httpClient.Post(ctx, c.graphqlURL, "application/json", headers, bytes.NewReader(requestBody))
	}

	respBody, err := ratelimit.Request(ctx, c.rateLimitProxy, PROVIDER_NAME, post)

	var statusErr *adapter.StatusError
	if err != nil && errors.As(err, &statusErr) && statusErr.IsRateLimited() {
		logger.WarnCtx(ctx, "github graphql rate limited, retrying once after fixed delay",
			zap.String("username", username),
			zap.Duration("delay", c.retryDelay),
		)
		c.clock.Sleep(c.retryDelay)

		respBody, err = ratelimit.Request(ctx, c.rateLimitProxy, PROVIDER_NAME, post)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrRateLimited, err)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamExhausted, err)
	}

	var response contributionsResponse
	if err := c.json.Unmarshal(respBody, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal graphql response: %w", err)
	}

	if len(response.Errors) > 0 {
		return nil, fmt.Errorf("github graphql errors: %v", response.Errors[0].Message)
	}
	if response.Data.User == nil {
		return nil, fmt.Errorf("github user not found: %s", username)
	}

	calendar := response.Data.User.ContributionsCollection.ContributionCalendar
	result := &ContributionCalendar{
		TotalContributions: calendar.TotalContributions,
	}
	for _, week := range calendar.Weeks {
		for _, day := range week.ContributionDays {
			result.Days = append(result.Days, domain.ContributionDay{
				Date:  day.Date,
				Count: day.ContributionCount,
			})
		}
	}

	return result, nil
}
