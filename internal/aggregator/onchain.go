package aggregator

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"github.com/buildrank/reputation-engine/internal/domain"
	"github.com/buildrank/reputation-engine/internal/logger"
	"github.com/buildrank/reputation-engine/internal/providers/alchemy"
)

// OnchainAggregator retrieves wallet transfer history and discovers
// contracts deployed by tracked addresses, deriving per-contract usage
// metrics from their inbound transfer history.
type OnchainAggregator struct {
	client         alchemy.Client
	chain          domain.Chain
	workerPoolSize int
}

// NewOnchainAggregator creates a new on-chain aggregator for a single chain
func NewOnchainAggregator(client alchemy.Client, chain domain.Chain, workerPoolSize int) *OnchainAggregator {
	if workerPoolSize <= 0 {
		workerPoolSize = 10
	}
	return &OnchainAggregator{
		client:         client,
		chain:          chain,
		workerPoolSize: workerPoolSize,
	}
}

// HistoryForAddresses fetches outgoing and incoming transfers for every
// address in the block range, enriched with block timestamps.
//
// The result is a flat concatenation across all addresses with no
// ordering guarantee and no deduplication; a transfer between two input
// addresses appears twice. Any provider-call failure after retries fails
// the whole operation - no partial results.
func (a *OnchainAggregator) HistoryForAddresses(ctx context.Context, addresses []string, fromBlock, toBlock uint64) ([]domain.Transfer, error) {
	categories := a.chain.TransferCategories()

	// toBlock 0 means the current chain head
	if toBlock == 0 {
		head, err := a.client.GetLatestBlockNumber(ctx)
		if err != nil {
			return nil, err
		}
		toBlock = head
	}

	// Block timestamps repeat heavily across transfers; cache per call
	blockTimes := make(map[uint64]time.Time)

	var history []domain.Transfer
	for _, address := range addresses {
		filters := []alchemy.TransferFilter{
			{FromBlock: fromBlock, ToBlock: &toBlock, FromAddress: address, Categories: categories},
			{FromBlock: fromBlock, ToBlock: &toBlock, ToAddress: address, Categories: categories},
		}

		for _, filter := range filters {
			transfers, err := a.client.GetAssetTransfers(ctx, filter)
			if err != nil {
				return nil, err
			}

			for _, transfer := range transfers {
				blockNumber := uint64(transfer.BlockNum)
				timestamp, ok := blockTimes[blockNumber]
				if !ok {
					block, err := a.client.GetBlock(ctx, blockNumber)
					if err != nil {
						return nil, err
					}
					timestamp = block.Time()
					blockTimes[blockNumber] = timestamp
				}

				if timestamp.IsZero() {
					// A transfer without a resolvable timestamp is dropped
					logger.WarnCtx(ctx, "dropping transfer with unresolvable block timestamp",
						zap.String("hash", transfer.Hash),
						zap.Uint64("block", blockNumber),
					)
					continue
				}

				var value float64
				if transfer.Value != nil {
					value = *transfer.Value
				}

				history = append(history, domain.Transfer{
					Hash:        transfer.Hash,
					From:        transfer.From,
					To:          transfer.To,
					Value:       value,
					Asset:       transfer.Asset,
					Category:    transfer.Category,
					BlockNumber: blockNumber,
					Timestamp:   timestamp,
				})
			}
		}
	}

	return history, nil
}

// ContractsDeployedBy discovers contracts created by the deployer in the
// block range and computes usage metrics for each.
//
// Creation transactions are external transfers with a null "to" field;
// the receipt's contractAddress identifies the deployed contract. Metric
// computation fans out per contract and is independently fault-tolerant:
// a failing contract degrades to zero-valued metrics instead of aborting
// the batch.
func (a *OnchainAggregator) ContractsDeployedBy(ctx context.Context, deployer string, startBlock, endBlock uint64) ([]domain.DeployedContract, error) {
	if endBlock == 0 {
		head, err := a.client.GetLatestBlockNumber(ctx)
		if err != nil {
			return nil, err
		}
		endBlock = head
	}

	transfers, err := a.client.GetAssetTransfers(ctx, alchemy.TransferFilter{
		FromBlock:   startBlock,
		ToBlock:     &endBlock,
		FromAddress: deployer,
		Categories:  []domain.TransferCategory{domain.CategoryExternal},
	})
	if err != nil {
		return nil, err
	}

	type creation struct {
		address     string
		blockNumber uint64
	}

	var creations []creation
	for _, transfer := range transfers {
		if transfer.To != nil {
			continue
		}

		receipt, err := a.client.GetTransactionReceipt(ctx, transfer.Hash)
		if err != nil {
			return nil, err
		}
		if receipt.ContractAddress == nil {
			continue
		}

		creations = append(creations, creation{
			address:     *receipt.ContractAddress,
			blockNumber: uint64(transfer.BlockNum),
		})
	}

	if len(creations) == 0 {
		return []domain.DeployedContract{}, nil
	}

	isTestnet := a.chain.IsTestnet()

	pool := pond.NewResultPool[domain.DeployedContract](a.workerPoolSize)
	defer pool.StopAndWait()

	group := pool.NewGroup()
	for _, c := range creations {
		group.Submit(func() domain.DeployedContract {
			return a.contractMetrics(ctx, c.address, c.blockNumber, isTestnet)
		})
	}

	contracts, err := group.Wait()
	if err != nil {
		return nil, err
	}
	for i := range contracts {
		contracts[i].Chain = a.chain
	}
	return contracts, nil
}

// contractMetrics computes usage metrics for a single deployed contract.
// Every failure path degrades to the zero-valued metrics record; this is
// the only resilience boundary finer than the whole aggregation call.
func (a *OnchainAggregator) contractMetrics(ctx context.Context, address string, blockNumber uint64, isTestnet bool) domain.DeployedContract {
	block, err := a.client.GetBlock(ctx, blockNumber)
	if err != nil {
		logger.WarnCtx(ctx, "contract metrics degraded to zero values",
			zap.String("contract", address),
			zap.Error(err),
		)
		return domain.ZeroContractMetrics(address, blockNumber, isTestnet)
	}

	inbound, err := a.client.GetAssetTransfers(ctx, alchemy.TransferFilter{
		FromBlock:  blockNumber,
		ToBlock:    nil, // up to latest
		ToAddress:  address,
		Categories: []domain.TransferCategory{domain.CategoryExternal, domain.CategoryERC20},
	})
	if err != nil {
		logger.WarnCtx(ctx, "contract metrics degraded to zero values",
			zap.String("contract", address),
			zap.Error(err),
		)
		return domain.ZeroContractMetrics(address, blockNumber, isTestnet)
	}

	uniqueUsers := make(map[string]struct{})
	var tvl float64
	for _, transfer := range inbound {
		uniqueUsers[strings.ToLower(transfer.From)] = struct{}{}
		if transfer.Value != nil {
			tvl += *transfer.Value
		}
	}

	deploymentDate := ""
	if ts := block.Time(); !ts.IsZero() {
		deploymentDate = ts.Format(time.RFC3339)
	}

	return domain.DeployedContract{
		Address:           address,
		BlockNumber:       blockNumber,
		DeploymentDate:    deploymentDate,
		UniqueUsers:       len(uniqueUsers),
		TVL:               strconv.FormatFloat(tvl, 'f', -1, 64),
		TotalTransactions: len(inbound),
		IsTestnet:         isTestnet,
	}
}
