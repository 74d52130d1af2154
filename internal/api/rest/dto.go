package rest

// createUserRequest registers a developer to be analyzed
type createUserRequest struct {
	GithubUsername string `json:"github_username" binding:"required"`
	HackathonWins  int    `json:"hackathon_wins"`
}

// createUserResponse returns the registered user
type createUserResponse struct {
	ID             string `json:"id"`
	GithubUsername string `json:"github_username"`
}

// addWalletRequest links an address on a chain to a user
type addWalletRequest struct {
	Address string `json:"address" binding:"required"`
	Chain   string `json:"chain" binding:"required"`
}

// addWalletResponse returns the linked wallet
type addWalletResponse struct {
	ID      string `json:"id"`
	Address string `json:"address"`
	Chain   string `json:"chain"`
}

// analyzeResponse summarizes a completed analysis run
type analyzeResponse struct {
	UserID            string `json:"user_id"`
	OnchainTransfers  int    `json:"onchain_transfers"`
	ContractsDeployed int    `json:"contracts_deployed"`
	GithubRepos       int    `json:"github_repos"`
}

// healthResponse is the health check payload
type healthResponse struct {
	Status string `json:"status"`
}
