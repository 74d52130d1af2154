package rest

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/buildrank/reputation-engine/internal/domain"
	"github.com/buildrank/reputation-engine/internal/store"
	"github.com/buildrank/reputation-engine/internal/store/schema"
)

// Service exposes the reputation pipeline operations the REST API needs
type Service interface {
	AnalyzeUser(ctx context.Context, userID string) (*domain.AnalysisBundle, error)
	ScoreUser(ctx context.Context, userID string) (*domain.ScoreResult, error)
	WorthUser(ctx context.Context, userID string) (*domain.DeveloperWorth, error)
	GetScore(ctx context.Context, userID string) (*domain.ScoreResult, error)
	GetWorth(ctx context.Context, userID string) (*domain.DeveloperWorth, error)
}

// Handler handles REST API requests
type Handler struct {
	service Service
	store   store.Store
}

// NewHandler creates a new REST handler
func NewHandler(service Service, store store.Store) *Handler {
	return &Handler{
		service: service,
		store:   store,
	}
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, healthResponse{Status: "ok"})
}

// CreateUser handles POST /api/v1/users
func (h *Handler) CreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body", err.Error())
		return
	}

	if _, err := h.store.GetUserByGithubUsername(c.Request.Context(), req.GithubUsername); err == nil {
		respondConflict(c, "User already exists", req.GithubUsername)
		return
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		respondInternalError(c, err, "Failed to check existing user")
		return
	}

	user := &schema.User{
		ID:             uuid.NewString(),
		GithubUsername: req.GithubUsername,
		HackathonWins:  req.HackathonWins,
	}
	if err := h.store.CreateUser(c.Request.Context(), user); err != nil {
		respondInternalError(c, err, "Failed to create user")
		return
	}

	c.JSON(http.StatusCreated, createUserResponse{
		ID:             user.ID,
		GithubUsername: user.GithubUsername,
	})
}

// AddWallet handles POST /api/v1/users/:id/wallets
func (h *Handler) AddWallet(c *gin.Context) {
	userID := c.Param("id")

	var req addWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body", err.Error())
		return
	}

	if !domain.IsValidChain(domain.Chain(req.Chain)) {
		respondValidationError(c, "unsupported chain: "+req.Chain)
		return
	}

	if _, err := h.store.GetUser(c.Request.Context(), userID); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			respondNotFound(c, "User not found", userID)
			return
		}
		respondInternalError(c, err, "Failed to load user")
		return
	}

	wallet := &schema.Wallet{
		ID:      uuid.NewString(),
		UserID:  userID,
		Address: req.Address,
		Chain:   req.Chain,
	}
	if err := h.store.AddWallet(c.Request.Context(), wallet); err != nil {
		respondInternalError(c, err, "Failed to add wallet")
		return
	}

	c.JSON(http.StatusCreated, addWalletResponse{
		ID:      wallet.ID,
		Address: wallet.Address,
		Chain:   wallet.Chain,
	})
}

// TriggerAnalysis handles POST /api/v1/users/:id/analyze
func (h *Handler) TriggerAnalysis(c *gin.Context) {
	userID := c.Param("id")

	bundle, err := h.service.AnalyzeUser(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			respondNotFound(c, "User not found", userID)
			return
		}
		respondInternalError(c, err, "Analysis failed", zap.String("user_id", userID))
		return
	}

	resp := analyzeResponse{
		UserID:            userID,
		OnchainTransfers:  len(bundle.OnchainHistory),
		ContractsDeployed: len(bundle.ContractsDeployed),
	}
	if bundle.Repos != nil {
		resp.GithubRepos = len(bundle.Repos.Repos)
	}
	c.JSON(http.StatusOK, resp)
}

// TriggerScore handles POST /api/v1/users/:id/score
func (h *Handler) TriggerScore(c *gin.Context) {
	userID := c.Param("id")

	result, err := h.service.ScoreUser(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			respondNotFound(c, "User not found", userID)
			return
		}
		respondInternalError(c, err, "Score calculation failed", zap.String("user_id", userID))
		return
	}

	c.JSON(http.StatusOK, result)
}

// TriggerWorth handles POST /api/v1/users/:id/worth
func (h *Handler) TriggerWorth(c *gin.Context) {
	userID := c.Param("id")

	worth, err := h.service.WorthUser(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			respondNotFound(c, "User not found", userID)
			return
		}
		respondInternalError(c, err, "Worth calculation failed", zap.String("user_id", userID))
		return
	}

	c.JSON(http.StatusOK, worth)
}

// GetScore handles GET /api/v1/users/:id/score
func (h *Handler) GetScore(c *gin.Context) {
	userID := c.Param("id")

	result, err := h.service.GetScore(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrScoreNotFound) {
			respondNotFound(c, "Score not calculated", userID)
			return
		}
		respondInternalError(c, err, "Failed to load score", zap.String("user_id", userID))
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetWorth handles GET /api/v1/users/:id/worth
func (h *Handler) GetWorth(c *gin.Context) {
	userID := c.Param("id")

	worth, err := h.service.GetWorth(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrWorthNotFound) {
			respondNotFound(c, "Worth not calculated", userID)
			return
		}
		respondInternalError(c, err, "Failed to load worth", zap.String("user_id", userID))
		return
	}

	c.JSON(http.StatusOK, worth)
}
