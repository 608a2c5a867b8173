package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/go-warden/voice/internal/config"
	"github.com/go-warden/voice/internal/dto/request"
	"github.com/go-warden/voice/internal/dto/response"
	"github.com/go-warden/voice/internal/pkg/utils"
)

// AuthHandler authenticates the dashboard administrator. There is a single
// configured admin credential; no user registration.
type AuthHandler struct {
	admin      config.AdminConfig
	jwtManager *utils.JWTManager
	logger     *zap.Logger
}

func NewAuthHandler(admin config.AdminConfig, jwtManager *utils.JWTManager, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		admin:      admin,
		jwtManager: jwtManager,
		logger:     logger,
	}
}

// Login verifies the admin credential and issues a token pair.
func (h *AuthHandler) Login(c *gin.Context) {
	var req request.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request format")
		return
	}

	if req.Username != h.admin.Username || !utils.CheckPassword(req.Password, h.admin.PasswordHash) {
		h.logger.Warn("Failed dashboard login",
			zap.String("username", req.Username),
			zap.String("ip", c.ClientIP()),
		)
		response.Unauthorized(c, "invalid credentials")
		return
	}

	pair, err := h.jwtManager.GenerateTokenPair(h.admin.Username, h.admin.Username)
	if err != nil {
		h.logger.Error("Failed to generate tokens", zap.Error(err))
		response.InternalError(c, "")
		return
	}

	response.Success(c, &response.TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    pair.ExpiresAt,
		TokenType:    "Bearer",
	})
}

// Refresh exchanges a refresh token for a new token pair.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req request.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request format")
		return
	}

	claims, err := h.jwtManager.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		response.Unauthorized(c, "invalid refresh token")
		return
	}

	pair, err := h.jwtManager.GenerateTokenPair(claims.UserID, claims.Username)
	if err != nil {
		h.logger.Error("Failed to generate tokens", zap.Error(err))
		response.InternalError(c, "")
		return
	}

	response.Success(c, &response.TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    pair.ExpiresAt,
		TokenType:    "Bearer",
	})
}
