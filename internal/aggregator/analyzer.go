package aggregator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/buildrank/reputation-engine/internal/domain"
)

// WalletRef identifies one tracked address on one chain
type WalletRef struct {
	Address string
	Chain   domain.Chain
}

// AnalyzeRequest identifies what to aggregate for a single user.
// ToBlock 0 means the current head of each chain.
type AnalyzeRequest struct {
	Username  string
	Wallets   []WalletRef
	FromBlock uint64
	ToBlock   uint64
}

// Analyzer runs the on-chain and GitHub aggregations for a user in
// parallel and merges them into a single bundle.
type Analyzer struct {
	onchain  map[domain.Chain]*OnchainAggregator
	github   *GithubAggregator
	deadline time.Duration
}

// AnalyzerOption configures an Analyzer
type AnalyzerOption func(*Analyzer)

// WithDeadline bounds the whole analysis with a timeout
func WithDeadline(d time.Duration) AnalyzerOption {
	return func(a *Analyzer) {
		a.deadline = d
	}
}

// NewAnalyzer creates a new analyzer over per-chain on-chain aggregators
func NewAnalyzer(onchain map[domain.Chain]*OnchainAggregator, github *GithubAggregator, opts ...AnalyzerOption) *Analyzer {
	a := &Analyzer{
		onchain: onchain,
		github:  github,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AnalyzeUser aggregates the on-chain and GitHub sides concurrently.
// Aggregation is all-or-nothing: any failed sub-fetch (other than the
// per-contract metric degradation inside ContractsDeployedBy) fails the
// whole analysis. A wallet on a chain with no configured aggregator is
// an error, not a silent skip.
func (a *Analyzer) AnalyzeUser(ctx context.Context, req AnalyzeRequest) (*domain.AnalysisBundle, error) {
	if a.deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.deadline)
		defer cancel()
	}

	byChain := make(map[domain.Chain][]string)
	for _, wallet := range req.Wallets {
		if _, ok := a.onchain[wallet.Chain]; !ok {
			return nil, fmt.Errorf("no aggregator configured for chain %q", wallet.Chain)
		}
		byChain[wallet.Chain] = append(byChain[wallet.Chain], wallet.Address)
	}

	bundle := &domain.AnalysisBundle{
		ContractsDeployed: []domain.DeployedContract{},
	}
	var mu sync.Mutex

	group, ctx := errgroup.WithContext(ctx)

	for chain, addresses := range byChain {
		onchain := a.onchain[chain]

		group.Go(func() error {
			history, err := onchain.HistoryForAddresses(ctx, addresses, req.FromBlock, req.ToBlock)
			if err != nil {
				return err
			}
			mu.Lock()
			bundle.OnchainHistory = append(bundle.OnchainHistory, history...)
			mu.Unlock()
			return nil
		})

		group.Go(func() error {
			for _, address := range addresses {
				deployed, err := onchain.ContractsDeployedBy(ctx, address, req.FromBlock, req.ToBlock)
				if err != nil {
					return err
				}
				mu.Lock()
				bundle.ContractsDeployed = append(bundle.ContractsDeployed, deployed...)
				mu.Unlock()
			}
			return nil
		})
	}

	group.Go(func() error {
		profile, err := a.github.Profile(ctx, req.Username)
		if err != nil {
			return err
		}
		bundle.Profile = profile
		return nil
	})

	group.Go(func() error {
		repos, err := a.github.Repositories(ctx, req.Username)
		if err != nil {
			return err
		}
		bundle.Repos = repos
		return nil
	})

	group.Go(func() error {
		orgs, err := a.github.Organizations(ctx, req.Username)
		if err != nil {
			return err
		}
		bundle.Organizations = orgs
		return nil
	})

	group.Go(func() error {
		contributions, err := a.github.Contributions(ctx, req.Username)
		if err != nil {
			return err
		}
		bundle.Contributions = contributions
		return nil
	})

	group.Go(func() error {
		calendar, err := a.github.Calendar(ctx, req.Username)
		if err != nil {
			return err
		}
		bundle.Calendar = calendar
		return nil
	})

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return bundle, nil
}
