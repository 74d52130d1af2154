package aggregator_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildrank/reputation-engine/internal/aggregator"
	"github.com/buildrank/reputation-engine/internal/domain"
	"github.com/buildrank/reputation-engine/internal/providers/github"
)

// fakeGithubClient scripts GitHub REST responses
type fakeGithubClient struct {
	user         *github.User
	repos        []github.Repository
	languages    map[string]map[string]int64
	languagesErr map[string]error
	orgs         []github.Organization
	events       []github.Event
}

func (f *fakeGithubClient) GetUser(ctx context.Context, username string) (*github.User, error) {
	if f.user == nil {
		return nil, errors.New("no user")
	}
	return f.user, nil
}

func (f *fakeGithubClient) ListRepositories(ctx context.Context, username string) ([]github.Repository, error) {
	return f.repos, nil
}

func (f *fakeGithubClient) GetRepositoryLanguages(ctx context.Context, fullName string) (map[string]int64, error) {
	if err, ok := f.languagesErr[fullName]; ok {
		return nil, err
	}
	return f.languages[fullName], nil
}

func (f *fakeGithubClient) ListOrganizations(ctx context.Context, username string) ([]github.Organization, error) {
	return f.orgs, nil
}

func (f *fakeGithubClient) ListPublicEvents(ctx context.Context, username string) ([]github.Event, error) {
	return f.events, nil
}

// fakeGraphQLClient scripts the contribution calendar
type fakeGraphQLClient struct {
	calendar *github.ContributionCalendar
	from     time.Time
	to       time.Time
}

func (f *fakeGraphQLClient) GetContributionCalendar(ctx context.Context, username string, from, to time.Time) (*github.ContributionCalendar, error) {
	f.from, f.to = from, to
	if f.calendar == nil {
		return nil, errors.New("no calendar")
	}
	return f.calendar, nil
}

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time                         { return c.now }
func (c *fixedClock) Since(t time.Time) time.Duration        { return c.now.Sub(t) }
func (c *fixedClock) Sleep(d time.Duration)                  {}
func (c *fixedClock) After(d time.Duration) <-chan time.Time { return time.After(0) }

func event(eventType, repo, payload string) github.Event {
	return github.Event{
		Type:    eventType,
		Repo:    github.EventRepo{Name: repo},
		Payload: json.RawMessage(payload),
	}
}

func TestRepositories_AccumulatesTotals(t *testing.T) {
	client := &fakeGithubClient{
		repos: []github.Repository{
			{FullName: "dev/contracts", StargazersCount: 10, ForksCount: 3},
			{FullName: "dev/site", StargazersCount: 2, ForksCount: 1},
		},
		languages: map[string]map[string]int64{
			"dev/contracts": {"Solidity": 4096, "TypeScript": 1024},
			"dev/site":      {"TypeScript": 2048},
		},
	}

	agg := aggregator.NewGithubAggregator(client, &fakeGraphQLClient{}, &fixedClock{}, 4)

	summary, err := agg.Repositories(context.Background(), "dev")

	require.NoError(t, err)
	assert.Equal(t, 12, summary.TotalStars)
	assert.Equal(t, 4, summary.TotalForks)
	assert.Equal(t, int64(4096), summary.Languages["Solidity"])
	assert.Equal(t, int64(3072), summary.Languages["TypeScript"])
	require.Len(t, summary.Repos, 2)
	// Submission order is preserved by the result group
	assert.Equal(t, "dev/contracts", summary.Repos[0].FullName)
}

func TestRepositories_LanguageFailureIsFatal(t *testing.T) {
	client := &fakeGithubClient{
		repos: []github.Repository{
			{FullName: "dev/ok"},
			{FullName: "dev/broken"},
		},
		languages:    map[string]map[string]int64{"dev/ok": {"Go": 1}},
		languagesErr: map[string]error{"dev/broken": errors.New("boom")},
	}

	agg := aggregator.NewGithubAggregator(client, &fakeGraphQLClient{}, &fixedClock{}, 4)

	_, err := agg.Repositories(context.Background(), "dev")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "dev/broken")
}

func TestContributions_ClassifiesEvents(t *testing.T) {
	client := &fakeGithubClient{
		events: []github.Event{
			event("PushEvent", "dev/contracts", `{"size":3}`),
			event("PushEvent", "dev/site", `{"size":1}`),
			event("PullRequestEvent", "dev/contracts", `{"action":"opened"}`),
			event("PullRequestEvent", "dev/contracts", `{"action":"closed"}`),
			event("IssuesEvent", "dev/site", `{"action":"opened"}`),
			event("PullRequestReviewCommentEvent", "dev/contracts", `{}`),
			event("WatchEvent", "dev/contracts", `{}`),
		},
	}

	agg := aggregator.NewGithubAggregator(client, &fakeGraphQLClient{}, &fixedClock{}, 4)

	stats, err := agg.Contributions(context.Background(), "dev")

	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalCommits)
	assert.Equal(t, 1, stats.TotalPullRequests)
	assert.Equal(t, 1, stats.TotalIssues)
	assert.Equal(t, 1, stats.TotalReviews)

	contracts := stats.ByRepo["dev/contracts"]
	assert.Equal(t, 3, contracts.Commits)
	assert.Equal(t, 1, contracts.PullRequests)
	assert.Equal(t, 1, contracts.Reviews)

	site := stats.ByRepo["dev/site"]
	assert.Equal(t, 1, site.Commits)
	assert.Equal(t, 1, site.Issues)
	// Ignored event types leave no repo entry behind
	assert.Len(t, stats.ByRepo, 2)
}

func TestCalendar_TrailingYearWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	graphql := &fakeGraphQLClient{
		calendar: &github.ContributionCalendar{
			TotalContributions: 2,
			Days: []domain.ContributionDay{
				{Date: "2026-02-28", Count: 2},
			},
		},
	}

	agg := aggregator.NewGithubAggregator(&fakeGithubClient{}, graphql, &fixedClock{now: now}, 4)

	days, err := agg.Calendar(context.Background(), "dev")

	require.NoError(t, err)
	require.Len(t, days, 1)
	assert.Equal(t, now, graphql.to)
	assert.Equal(t, now.AddDate(0, 0, -365), graphql.from)
}
