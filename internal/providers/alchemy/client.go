package alchemy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"github.com/buildrank/reputation-engine/internal/adapter"
	"github.com/buildrank/reputation-engine/internal/domain"
	"github.com/buildrank/reputation-engine/internal/logger"
	"github.com/buildrank/reputation-engine/internal/ratelimit"
)

const PROVIDER_NAME = "alchemy"

// maxTransfersPerPage is the provider's page size cap, hex-encoded as required by the API
const maxTransfersPerPage = "0x3e8"

// RetryPolicy controls the exponential backoff applied to every provider
// call: MaxAttempts total attempts, InitialInterval before the first
// retry, doubling after every failed attempt, no jitter.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
}

// DefaultRetryPolicy is the baseline policy: 3 attempts, 1s then 2s delays
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: time.Second,
	}
}

// TransferFilter parameterizes an asset transfer query.
// A nil ToBlock queries up to the latest block.
type TransferFilter struct {
	FromBlock   uint64
	ToBlock     *uint64
	FromAddress string
	ToAddress   string
	Categories  []domain.TransferCategory
}

// AssetTransfer represents a transfer record from the provider's
// enhanced transfer API. Block timestamps are not part of this payload.
type AssetTransfer struct {
	Hash     string                  `json:"hash"`
	BlockNum hexutil.Uint64          `json:"blockNum"`
	From     string                  `json:"from"`
	To       *string                 `json:"to"`
	Value    *float64                `json:"value"`
	Asset    *string                 `json:"asset"`
	Category domain.TransferCategory `json:"category"`
}

// Block represents the subset of a block the engine needs
type Block struct {
	Number    hexutil.Uint64 `json:"number"`
	Timestamp hexutil.Uint64 `json:"timestamp"`
}

// Time converts the block timestamp to a time.Time. A zero provider
// timestamp is unresolvable and maps to the zero time.Time, never the
// Unix epoch.
func (b *Block) Time() time.Time {
	if b.Timestamp == 0 {
		return time.Time{}
	}
	return time.Unix(int64(b.Timestamp), 0).UTC()
}

// Receipt represents a transaction receipt. ContractAddress is non-nil
// only for contract creation transactions.
type Receipt struct {
	TransactionHash string  `json:"transactionHash"`
	ContractAddress *string `json:"contractAddress"`
	Status          string  `json:"status"`
}

// Client defines the interface for chain data provider operations to enable mocking
//
//go:generate mockgen -source=client.go -destination=../../mocks/alchemy_client.go -package=mocks -mock_names=Client=MockAlchemyClient
type Client interface {
	// GetAssetTransfers fetches all transfers matching the filter, following pagination
	GetAssetTransfers(ctx context.Context, filter TransferFilter) ([]AssetTransfer, error)

	// GetBlock fetches a block header by number
	GetBlock(ctx context.Context, blockNumber uint64) (*Block, error)

	// GetLatestBlockNumber fetches the current chain head number
	GetLatestBlockNumber(ctx context.Context) (uint64, error)

	// GetCode fetches the deployed bytecode at an address
	GetCode(ctx context.Context, address string) (string, error)

	// GetTransactionReceipt fetches the receipt for a transaction hash
	GetTransactionReceipt(ctx context.Context, txHash string) (*Receipt, error)
}

// AlchemyClient implements the chain data provider client over JSON-RPC
type AlchemyClient struct {
	httpClient     adapter.HTTPClient
	rateLimitProxy ratelimit.Proxy
	rpcURL         string
	json           adapter.JSON
	policy         RetryPolicy
	timer          backoff.Timer
}

// Option configures an AlchemyClient
type Option func(*AlchemyClient)

// WithRetryPolicy overrides the default retry policy
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(c *AlchemyClient) {
		c.policy = policy
	}
}

// WithBackoffTimer overrides the backoff timer, letting tests observe
// and skip the retry delays
func WithBackoffTimer(timer backoff.Timer) Option {
	return func(c *AlchemyClient) {
		c.timer = timer
	}
}

// NewClient creates a new chain data provider client
func NewClient(httpClient adapter.HTTPClient, rateLimitProxy ratelimit.Proxy, rpcURL string, json adapter.JSON, opts ...Option) Client {
	c := &AlchemyClient{
		httpClient:     httpClient,
		rateLimitProxy: rateLimitProxy,
		rpcURL:         rpcURL,
		json:           json,
		policy:         DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// rpcRequest represents a JSON-RPC request envelope
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

// rpcError represents a JSON-RPC error object
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// call performs a JSON-RPC call with exponential backoff retry and
// decodes the result field into result
func (c *AlchemyClient) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	reqBody, err := c.json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal rpc request: %w", err)
	}

	operation := func() error {
		respBody, err := ratelimit.Request(ctx, c.rateLimitProxy, PROVIDER_NAME, func(ctx context.Context) ([]byte, error) {
			return c.httpClient.Post(ctx, c.rpcURL, "application/json", nil, bytes.NewReader(reqBody))
		})
		if err != nil {
			return err
		}

		var envelope struct {
			Error *rpcError       `json:"error"`
			Raw   json.RawMessage `json:"result"`
		}
		if err := c.json.Unmarshal(respBody, &envelope); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to unmarshal rpc response: %w", err))
		}
		if envelope.Error != nil {
			return envelope.Error
		}
		if result != nil && len(envelope.Raw) > 0 {
			if err := c.json.Unmarshal(envelope.Raw, result); err != nil {
				return backoff.Permanent(fmt.Errorf("failed to unmarshal rpc result: %w", err))
			}
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.policy.InitialInterval
	b.Multiplier = 2.0
	b.RandomizationFactor = 0
	b.MaxInterval = time.Hour
	b.MaxElapsedTime = 0

	notify := func(err error, next time.Duration) {
		logger.WarnCtx(ctx, "chain provider call failed, retrying",
			zap.String("method", method),
			zap.Duration("next_retry_in", next),
			zap.Error(err),
		)
	}

	retries := uint64(0)
	if c.policy.MaxAttempts > 1 {
		retries = uint64(c.policy.MaxAttempts - 1)
	}

	err = backoff.RetryNotifyWithTimer(
		operation,
		backoff.WithContext(backoff.WithMaxRetries(b, retries), ctx),
		notify,
		c.timer,
	)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrUpstreamExhausted, method, err)
	}
	return nil
}

// GetAssetTransfers fetches all transfers matching the filter, following
// the provider's pageKey pagination until exhausted
func (c *AlchemyClient) GetAssetTransfers(ctx context.Context, filter TransferFilter) ([]AssetTransfer, error) {
	toBlock := "latest"
	if filter.ToBlock != nil {
		toBlock = hexutil.EncodeUint64(*filter.ToBlock)
	}

	params := map[string]interface{}{
		"fromBlock": hexutil.EncodeUint64(filter.FromBlock),
		"toBlock":   toBlock,
		"category":  filter.Categories,
		"maxCount":  maxTransfersPerPage,
	}
	if filter.FromAddress != "" {
		params["fromAddress"] = filter.FromAddress
	}
	if filter.ToAddress != "" {
		params["toAddress"] = filter.ToAddress
	}

	var all []AssetTransfer
	for {
		var page struct {
			Transfers []AssetTransfer `json:"transfers"`
			PageKey   string          `json:"pageKey"`
		}
		if err := c.call(ctx, "alchemy_getAssetTransfers", []interface{}{params}, &page); err != nil {
			return nil, err
		}

		all = append(all, page.Transfers...)
		if page.PageKey == "" {
			return all, nil
		}
		params["pageKey"] = page.PageKey
	}
}

// GetBlock fetches a block header by number
func (c *AlchemyClient) GetBlock(ctx context.Context, blockNumber uint64) (*Block, error) {
	var block Block
	err := c.call(ctx, "eth_getBlockByNumber", []interface{}{hexutil.EncodeUint64(blockNumber), false}, &block)
	if err != nil {
		return nil, err
	}
	return &block, nil
}

// GetLatestBlockNumber fetches the current chain head number
func (c *AlchemyClient) GetLatestBlockNumber(ctx context.Context) (uint64, error) {
	var head hexutil.Uint64
	if err := c.call(ctx, "eth_blockNumber", []interface{}{}, &head); err != nil {
		return 0, err
	}
	return uint64(head), nil
}

// GetCode fetches the deployed bytecode at an address
func (c *AlchemyClient) GetCode(ctx context.Context, address string) (string, error) {
	var code string
	if err := c.call(ctx, "eth_getCode", []interface{}{address, "latest"}, &code); err != nil {
		return "", err
	}
	return code, nil
}

// GetTransactionReceipt fetches the receipt for a transaction hash
func (c *AlchemyClient) GetTransactionReceipt(ctx context.Context, txHash string) (*Receipt, error) {
	var receipt Receipt
	if err := c.call(ctx, "eth_getTransactionReceipt", []interface{}{txHash}, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}
