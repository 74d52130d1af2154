package scoring

import (
	"go.uber.org/zap"

	"github.com/buildrank/reputation-engine/internal/adapter"
	"github.com/buildrank/reputation-engine/internal/domain"
	"github.com/buildrank/reputation-engine/internal/logger"
	"github.com/buildrank/reputation-engine/internal/store/schema"
)

// DefaultScoreConfig returns the shipped scoring configuration.
// Weights sum to 100 on each side, so a side total is a 0-100 score.
func DefaultScoreConfig() domain.ScoreConfig {
	return domain.ScoreConfig{
		Web3Thresholds: map[string]float64{
			domain.MetricMainnetContracts:        5,
			domain.MetricTestnetContracts:        10,
			domain.MetricTVL:                     100000,
			domain.MetricUniqueUsers:             1000,
			domain.MetricTransactions:            10000,
			domain.MetricWeb3Languages:           3,
			domain.MetricCryptoRepoContributions: 50,
			domain.MetricHackathonWins:           3,
		},
		Web3Weights: map[string]float64{
			domain.MetricMainnetContracts:        20,
			domain.MetricTestnetContracts:        5,
			domain.MetricTVL:                     15,
			domain.MetricUniqueUsers:             10,
			domain.MetricTransactions:            10,
			domain.MetricWeb3Languages:           10,
			domain.MetricCryptoRepoContributions: 20,
			domain.MetricHackathonWins:           10,
		},
		Web2Thresholds: map[string]float64{
			domain.MetricPullRequests:  100,
			domain.MetricContributions: 1000,
			domain.MetricForks:         200,
			domain.MetricStars:         500,
			domain.MetricIssues:        50,
			domain.MetricLinesOfCode:   100000,
			domain.MetricAccountAge:    5,
			domain.MetricFollowers:     500,
		},
		Web2Weights: map[string]float64{
			domain.MetricPullRequests:  20,
			domain.MetricContributions: 15,
			domain.MetricForks:         10,
			domain.MetricStars:         15,
			domain.MetricIssues:        10,
			domain.MetricLinesOfCode:   10,
			domain.MetricAccountAge:    10,
			domain.MetricFollowers:     10,
		},
		WorthMultipliers: domain.WorthMultipliers{
			Web3: domain.Web3WorthMultipliers{
				MainnetContract:    500,
				TestnetContract:    50,
				CryptoContribution: 10,
				SolidityLOC:        0.5,
				RustLOC:            0.4,
				MoveLOC:            0.6,
				CadenceLOC:         0.6,
				TVL:                0.001,
				UniqueUser:         1,
				Transaction:        0.05,
			},
			Web2: domain.Web2WorthMultipliers{
				AccountYear:  100,
				PullRequest:  5,
				Contribution: 0.5,
				LOC:          0.01,
				Star:         2,
				Fork:         3,
				Follower:     1,
			},
		},
		CryptoRepos: []string{
			"ethereum/go-ethereum",
			"ethereum/solidity",
			"bitcoin/bitcoin",
			"paradigmxyz/reth",
			"foundry-rs/foundry",
			"OpenZeppelin/openzeppelin-contracts",
			"Uniswap/v4-core",
			"solana-labs/solana",
			"aptos-labs/aptos-core",
			"MystenLabs/sui",
		},
	}
}

// ResolveScoreConfig merges a persisted configuration over the defaults.
// The merge is total: every default key is present in the output, and a
// persisted key overrides the default. A malformed persisted column is
// logged and ignored, falling back to the defaults for that column.
func ResolveScoreConfig(persisted *schema.ScoreConfig, json adapter.JSON) domain.ScoreConfig {
	resolved := DefaultScoreConfig()
	if persisted == nil {
		return resolved
	}

	mergeTable := func(column []byte, into map[string]float64, name string) {
		if len(column) == 0 {
			return
		}
		overrides := make(map[string]float64)
		if err := json.Unmarshal(column, &overrides); err != nil {
			logger.Warn("malformed score config column, using defaults",
				zap.String("column", name),
				zap.Error(err),
			)
			return
		}
		for key, value := range overrides {
			into[key] = value
		}
	}

	mergeTable(persisted.Web3Thresholds, resolved.Web3Thresholds, "web3_thresholds")
	mergeTable(persisted.Web3Weights, resolved.Web3Weights, "web3_weights")
	mergeTable(persisted.Web2Thresholds, resolved.Web2Thresholds, "web2_thresholds")
	mergeTable(persisted.Web2Weights, resolved.Web2Weights, "web2_weights")

	if persisted.Multipliers != "" {
		var multipliers domain.WorthMultipliers
		if err := json.Unmarshal([]byte(persisted.Multipliers), &multipliers); err != nil {
			logger.Warn("malformed worth multipliers, using defaults", zap.Error(err))
		} else {
			resolved.WorthMultipliers = multipliers
		}
	}

	if len(persisted.CryptoRepos) > 0 {
		var repos []string
		if err := json.Unmarshal(persisted.CryptoRepos, &repos); err != nil {
			logger.Warn("malformed crypto repo list, using defaults", zap.Error(err))
		} else {
			resolved.CryptoRepos = repos
		}
	}

	return resolved
}

// warnOnWeightImbalance logs when a side's weights do not sum to 100.
// Scores still compute; the side total just stops being a 0-100 scale.
func warnOnWeightImbalance(config domain.ScoreConfig) {
	sum := func(weights map[string]float64) float64 {
		var total float64
		for _, weight := range weights {
			total += weight
		}
		return total
	}

	if web3 := sum(config.Web3Weights); web3 != 100 {
		logger.Warn("web3 weights do not sum to 100", zap.Float64("sum", web3))
	}
	if web2 := sum(config.Web2Weights); web2 != 100 {
		logger.Warn("web2 weights do not sum to 100", zap.Float64("sum", web2))
	}
}
