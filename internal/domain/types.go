package domain

import (
	"strings"
	"time"
)

// Chain represents the blockchain network identifier using the data
// provider's network naming (e.g., "eth-mainnet", "base-sepolia")
type Chain string

const (
	ChainEthereumMainnet Chain = "eth-mainnet"
	ChainEthereumSepolia Chain = "eth-sepolia"
	ChainBaseMainnet     Chain = "base-mainnet"
	ChainBaseSepolia     Chain = "base-sepolia"
	ChainPolygonMainnet  Chain = "polygon-mainnet"
)

// IsValidChain checks if a chain is valid
func IsValidChain(chain Chain) bool {
	return chain == ChainEthereumMainnet ||
		chain == ChainEthereumSepolia ||
		chain == ChainBaseMainnet ||
		chain == ChainBaseSepolia ||
		chain == ChainPolygonMainnet
}

// IsTestnet reports whether the chain is a test network.
// The upstream provider only exposes testnets whose network name carries
// a "sepolia" suffix, so this is a literal substring match.
func (c Chain) IsTestnet() bool {
	return strings.Contains(string(c), "sepolia")
}

// TransferCategory represents the asset category of a transfer
type TransferCategory string

const (
	CategoryExternal TransferCategory = "external"
	CategoryInternal TransferCategory = "internal"
	CategoryERC20    TransferCategory = "erc20"
	CategoryERC721   TransferCategory = "erc721"
	CategoryERC1155  TransferCategory = "erc1155"
)

// TransferCategories returns the asset categories the provider can index
// for this chain. Internal transfer indexing is unavailable on the
// sepolia networks and on Base mainnet upstream, so those chains get the
// reduced set.
func (c Chain) TransferCategories() []TransferCategory {
	if c.IsTestnet() || c == ChainBaseMainnet {
		return []TransferCategory{CategoryExternal, CategoryERC1155, CategoryERC20, CategoryERC721}
	}
	return []TransferCategory{CategoryExternal, CategoryInternal, CategoryERC1155, CategoryERC20, CategoryERC721}
}

// Transfer represents a directional asset movement.
// Timestamp is not part of the provider's transfer payload; it is
// resolved by a secondary block lookup during aggregation. A Transfer
// that reaches a caller always has a non-zero Timestamp.
type Transfer struct {
	Hash        string           `json:"hash"`
	From        string           `json:"from"`
	To          *string          `json:"to"`
	Value       float64          `json:"value"`
	Asset       *string          `json:"asset"`
	Category    TransferCategory `json:"category"`
	BlockNumber uint64           `json:"block_number"`
	Timestamp   time.Time        `json:"timestamp"`
}

// DeployedContract represents a contract created by a tracked deployer
// address, with usage metrics derived from its inbound transfer history.
// TVL is a decimal string in raw provider units (no unit normalization).
type DeployedContract struct {
	Address           string `json:"address"`
	Chain             Chain  `json:"chain"`
	BlockNumber       uint64 `json:"block_number"`
	DeploymentDate    string `json:"deployment_date"`
	UniqueUsers       int    `json:"unique_users"`
	TVL               string `json:"tvl"`
	TotalTransactions int    `json:"total_transactions"`
	IsTestnet         bool   `json:"is_testnet"`
}

// ZeroContractMetrics returns the degraded metrics record used when the
// secondary fetch for a contract fails. The contract still appears in
// the result set; only its derived metrics are zeroed.
func ZeroContractMetrics(address string, blockNumber uint64, isTestnet bool) DeployedContract {
	return DeployedContract{
		Address:           address,
		BlockNumber:       blockNumber,
		DeploymentDate:    "",
		UniqueUsers:       0,
		TVL:               "0",
		TotalTransactions: 0,
		IsTestnet:         isTestnet,
	}
}

// Profile represents a GitHub user profile
type Profile struct {
	Login       string    `json:"login"`
	Name        *string   `json:"name"`
	AvatarURL   string    `json:"avatar_url"`
	Bio         *string   `json:"bio"`
	Followers   int       `json:"followers"`
	Following   int       `json:"following"`
	PublicRepos int       `json:"public_repos"`
	CreatedAt   time.Time `json:"created_at"`
}

// RepoDetail represents per-repository metrics
type RepoDetail struct {
	FullName  string           `json:"full_name"`
	Stars     int              `json:"stars"`
	Forks     int              `json:"forks"`
	Languages map[string]int64 `json:"languages"`
}

// RepositorySummary represents aggregated repository metrics for a user.
// Languages maps language name to total bytes of code across all repos.
type RepositorySummary struct {
	TotalStars int              `json:"total_stars"`
	TotalForks int              `json:"total_forks"`
	Languages  map[string]int64 `json:"languages"`
	Repos      []RepoDetail     `json:"repos"`
}

// Organization represents a GitHub organization membership
type Organization struct {
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url"`
}

// RepoContribution represents contribution counts within a single repository
type RepoContribution struct {
	Commits      int `json:"commits"`
	PullRequests int `json:"pull_requests"`
	Issues       int `json:"issues"`
	Reviews      int `json:"reviews"`
}

// ContributionStats represents contribution activity derived from the
// public event feed, keyed by repository full name
type ContributionStats struct {
	TotalCommits      int                         `json:"total_commits"`
	TotalPullRequests int                         `json:"total_pull_requests"`
	TotalIssues       int                         `json:"total_issues"`
	TotalReviews      int                         `json:"total_reviews"`
	ByRepo            map[string]RepoContribution `json:"by_repo"`
}

// ContributionDay represents a single day in the contribution calendar
type ContributionDay struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// AnalysisBundle is the merged output of the on-chain and GitHub
// aggregators for a single analysis request. The profile and contract
// records are persisted by the pipeline; transfer history is transient.
type AnalysisBundle struct {
	Profile           *Profile            `json:"user_data"`
	Repos             *RepositorySummary  `json:"repos"`
	Organizations     []Organization      `json:"organizations"`
	Contributions     *ContributionStats  `json:"contribution_data"`
	Calendar          []ContributionDay   `json:"contribution_calendar"`
	OnchainHistory    []Transfer          `json:"onchain_history"`
	ContractsDeployed []DeployedContract  `json:"contracts_deployed"`
}
