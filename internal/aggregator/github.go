package aggregator

import (
	"context"
	"fmt"

	"github.com/alitto/pond/v2"

	"github.com/buildrank/reputation-engine/internal/adapter"
	"github.com/buildrank/reputation-engine/internal/domain"
	"github.com/buildrank/reputation-engine/internal/providers/github"
)

// GithubAggregator collects a user's GitHub footprint: profile,
// repositories with language breakdowns, organizations, event-derived
// contribution stats, and the contribution calendar.
type GithubAggregator struct {
	client         github.Client
	graphql        github.GraphQLClient
	clock          adapter.Clock
	workerPoolSize int
}

// NewGithubAggregator creates a new GitHub aggregator
func NewGithubAggregator(client github.Client, graphql github.GraphQLClient, clock adapter.Clock, workerPoolSize int) *GithubAggregator {
	if workerPoolSize <= 0 {
		workerPoolSize = 10
	}
	return &GithubAggregator{
		client:         client,
		graphql:        graphql,
		clock:          clock,
		workerPoolSize: workerPoolSize,
	}
}

// Profile fetches the user's profile
func (a *GithubAggregator) Profile(ctx context.Context, username string) (*domain.Profile, error) {
	user, err := a.client.GetUser(ctx, username)
	if err != nil {
		return nil, err
	}
	return &domain.Profile{
		Login:       user.Login,
		Name:        user.Name,
		AvatarURL:   user.AvatarURL,
		Bio:         user.Bio,
		Followers:   user.Followers,
		Following:   user.Following,
		PublicRepos: user.PublicRepos,
		CreatedAt:   user.CreatedAt,
	}, nil
}

// Repositories fetches all repositories with their language breakdowns
// and accumulates cross-repo totals. Language fetches fan out over the
// worker pool; any single failure fails the whole call.
func (a *GithubAggregator) Repositories(ctx context.Context, username string) (*domain.RepositorySummary, error) {
	repos, err := a.client.ListRepositories(ctx, username)
	if err != nil {
		return nil, err
	}

	pool := pond.NewResultPool[domain.RepoDetail](a.workerPoolSize)
	defer pool.StopAndWait()

	group := pool.NewGroup()
	for _, repo := range repos {
		group.SubmitErr(func() (domain.RepoDetail, error) {
			languages, err := a.client.GetRepositoryLanguages(ctx, repo.FullName)
			if err != nil {
				return domain.RepoDetail{}, fmt.Errorf("languages for %s: %w", repo.FullName, err)
			}
			return domain.RepoDetail{
				FullName:  repo.FullName,
				Stars:     repo.StargazersCount,
				Forks:     repo.ForksCount,
				Languages: languages,
			}, nil
		})
	}

	details, err := group.Wait()
	if err != nil {
		return nil, err
	}

	summary := &domain.RepositorySummary{
		Languages: make(map[string]int64),
		Repos:     details,
	}
	for _, detail := range details {
		summary.TotalStars += detail.Stars
		summary.TotalForks += detail.Forks
		for language, bytes := range detail.Languages {
			summary.Languages[language] += bytes
		}
	}
	return summary, nil
}

// Organizations fetches the user's organization memberships
func (a *GithubAggregator) Organizations(ctx context.Context, username string) ([]domain.Organization, error) {
	orgs, err := a.client.ListOrganizations(ctx, username)
	if err != nil {
		return nil, err
	}

	result := make([]domain.Organization, 0, len(orgs))
	for _, org := range orgs {
		result = append(result, domain.Organization{
			Login:     org.Login,
			AvatarURL: org.AvatarURL,
		})
	}
	return result, nil
}

// pushPayload carries the commit count of a PushEvent
type pushPayload struct {
	Size int `json:"size"`
}

// actionPayload carries the action of PR and issue events
type actionPayload struct {
	Action string `json:"action"`
}

// Contributions derives contribution stats from the public event feed.
// Only a few event types count: pushes contribute their commit count,
// opened pull requests and issues count once, review comments count as
// reviews. Everything else is ignored.
func (a *GithubAggregator) Contributions(ctx context.Context, username string) (*domain.ContributionStats, error) {
	events, err := a.client.ListPublicEvents(ctx, username)
	if err != nil {
		return nil, err
	}

	json := adapter.NewJSON()
	stats := &domain.ContributionStats{
		ByRepo: make(map[string]domain.RepoContribution),
	}

	for _, event := range events {
		repo := stats.ByRepo[event.Repo.Name]

		switch event.Type {
		case "PushEvent":
			var payload pushPayload
			if err := json.Unmarshal(event.Payload, &payload); err != nil {
				continue
			}
			stats.TotalCommits += payload.Size
			repo.Commits += payload.Size

		case "PullRequestEvent":
			var payload actionPayload
			if err := json.Unmarshal(event.Payload, &payload); err != nil || payload.Action != "opened" {
				continue
			}
			stats.TotalPullRequests++
			repo.PullRequests++

		case "IssuesEvent":
			var payload actionPayload
			if err := json.Unmarshal(event.Payload, &payload); err != nil || payload.Action != "opened" {
				continue
			}
			stats.TotalIssues++
			repo.Issues++

		case "PullRequestReviewCommentEvent":
			stats.TotalReviews++
			repo.Reviews++

		default:
			continue
		}

		stats.ByRepo[event.Repo.Name] = repo
	}

	return stats, nil
}

// Calendar fetches the contribution calendar over the trailing year
func (a *GithubAggregator) Calendar(ctx context.Context, username string) ([]domain.ContributionDay, error) {
	to := a.clock.Now().UTC()
	from := to.AddDate(0, 0, -365)

	calendar, err := a.graphql.GetContributionCalendar(ctx, username, from, to)
	if err != nil {
		return nil, err
	}
	return calendar.Days, nil
}
