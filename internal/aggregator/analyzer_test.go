package aggregator_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildrank/reputation-engine/internal/aggregator"
	"github.com/buildrank/reputation-engine/internal/domain"
	"github.com/buildrank/reputation-engine/internal/providers/alchemy"
	"github.com/buildrank/reputation-engine/internal/providers/github"
)

func newTestAnalyzer(chainClient alchemy.Client, githubClient github.Client, graphql github.GraphQLClient) *aggregator.Analyzer {
	onchain := map[domain.Chain]*aggregator.OnchainAggregator{
		domain.ChainEthereumMainnet: aggregator.NewOnchainAggregator(chainClient, domain.ChainEthereumMainnet, 4),
	}
	gh := aggregator.NewGithubAggregator(githubClient, graphql, &fixedClock{now: time.Unix(1700000000, 0).UTC()}, 4)
	return aggregator.NewAnalyzer(onchain, gh)
}

func TestAnalyzeUser_MergesBothSides(t *testing.T) {
	chainClient := &fakeChainClient{
		transfersByFilter: func(filter alchemy.TransferFilter) ([]alchemy.AssetTransfer, error) {
			if filter.FromAddress == "0xabc" && filter.ToAddress == "" {
				return []alchemy.AssetTransfer{
					{Hash: "0x1", BlockNum: 10, From: "0xabc", To: str("0xdef"), Value: f64(1), Category: domain.CategoryExternal},
				}, nil
			}
			return nil, nil
		},
		blocks: map[uint64]*alchemy.Block{
			10: {Number: 10, Timestamp: 0x65f0e100},
		},
	}
	githubClient := &fakeGithubClient{
		user: &github.User{Login: "dev", Followers: 5},
		repos: []github.Repository{
			{FullName: "dev/contracts", StargazersCount: 7},
		},
		languages: map[string]map[string]int64{
			"dev/contracts": {"Solidity": 1024},
		},
		orgs: []github.Organization{{Login: "buildrank"}},
		events: []github.Event{
			event("PushEvent", "dev/contracts", `{"size":2}`),
		},
	}
	graphql := &fakeGraphQLClient{
		calendar: &github.ContributionCalendar{
			TotalContributions: 1,
			Days:               []domain.ContributionDay{{Date: "2023-11-14", Count: 1}},
		},
	}

	analyzer := newTestAnalyzer(chainClient, githubClient, graphql)

	bundle, err := analyzer.AnalyzeUser(context.Background(), aggregator.AnalyzeRequest{
		Username:  "dev",
		Wallets:   []aggregator.WalletRef{{Address: "0xabc", Chain: domain.ChainEthereumMainnet}},
		FromBlock: 0,
		ToBlock:   100,
	})

	require.NoError(t, err)
	require.NotNil(t, bundle.Profile)
	assert.Equal(t, "dev", bundle.Profile.Login)
	assert.Equal(t, 7, bundle.Repos.TotalStars)
	require.Len(t, bundle.Organizations, 1)
	assert.Equal(t, 2, bundle.Contributions.TotalCommits)
	require.Len(t, bundle.Calendar, 1)
	// The creation-scan transfer has a To, so it is history, not a contract
	require.Len(t, bundle.OnchainHistory, 1)
	assert.Empty(t, bundle.ContractsDeployed)
}

func TestAnalyzeUser_AnySideFailureIsFatal(t *testing.T) {
	chainClient := &fakeChainClient{
		transfersByFilter: func(filter alchemy.TransferFilter) ([]alchemy.AssetTransfer, error) {
			return nil, errors.New("chain provider down")
		},
	}
	githubClient := &fakeGithubClient{
		user: &github.User{Login: "dev"},
	}
	graphql := &fakeGraphQLClient{
		calendar: &github.ContributionCalendar{},
	}

	analyzer := newTestAnalyzer(chainClient, githubClient, graphql)

	_, err := analyzer.AnalyzeUser(context.Background(), aggregator.AnalyzeRequest{
		Username: "dev",
		Wallets:  []aggregator.WalletRef{{Address: "0xabc", Chain: domain.ChainEthereumMainnet}},
		ToBlock:  100,
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "chain provider down")
}

func TestAnalyzeUser_NoWallets(t *testing.T) {
	githubClient := &fakeGithubClient{
		user: &github.User{Login: "dev"},
	}
	graphql := &fakeGraphQLClient{
		calendar: &github.ContributionCalendar{},
	}

	analyzer := newTestAnalyzer(&fakeChainClient{}, githubClient, graphql)

	bundle, err := analyzer.AnalyzeUser(context.Background(), aggregator.AnalyzeRequest{Username: "dev"})

	require.NoError(t, err)
	assert.Empty(t, bundle.OnchainHistory)
	assert.NotNil(t, bundle.ContractsDeployed)
	assert.Empty(t, bundle.ContractsDeployed)
}

func TestAnalyzeUser_UnknownChain(t *testing.T) {
	analyzer := newTestAnalyzer(&fakeChainClient{}, &fakeGithubClient{}, &fakeGraphQLClient{})

	_, err := analyzer.AnalyzeUser(context.Background(), aggregator.AnalyzeRequest{
		Username: "dev",
		Wallets:  []aggregator.WalletRef{{Address: "0xabc", Chain: domain.ChainPolygonMainnet}},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no aggregator configured")
}
