package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/go-warden/voice/internal/dto/request"
	"github.com/go-warden/voice/internal/dto/response"
	"github.com/go-warden/voice/internal/model"
	"github.com/go-warden/voice/internal/repository"
)

// SeparationHandler manages the persisted no-co-occupancy pairs.
type SeparationHandler struct {
	repo   *repository.SeparationRepository
	logger *zap.Logger
}

func NewSeparationHandler(repo *repository.SeparationRepository, logger *zap.Logger) *SeparationHandler {
	return &SeparationHandler{repo: repo, logger: logger}
}

// List returns all separations.
func (h *SeparationHandler) List(c *gin.Context) {
	seps, err := h.repo.List(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list separations", zap.Error(err))
		response.InternalError(c, "")
		return
	}
	response.Success(c, seps)
}

// Create records a new separation pair.
func (h *SeparationHandler) Create(c *gin.Context) {
	var req request.CreateSeparationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request format")
		return
	}

	sep := &model.Separation{FirstID: req.FirstID, SecondID: req.SecondID}
	if err := h.repo.Create(c.Request.Context(), sep); err != nil {
		if errors.Is(err, repository.ErrSeparationExists) {
			response.ErrorWithStatus(c, 409, "separation already exists")
			return
		}
		h.logger.Error("Failed to create separation", zap.Error(err))
		response.InternalError(c, "")
		return
	}

	h.logger.Info("Separation created",
		zap.String("first_id", sep.FirstID),
		zap.String("second_id", sep.SecondID),
	)
	response.Created(c, sep)
}

// Delete removes a separation pair.
func (h *SeparationHandler) Delete(c *gin.Context) {
	firstID := c.Param("first")
	secondID := c.Param("second")

	if err := h.repo.Delete(c.Request.Context(), firstID, secondID); err != nil {
		if errors.Is(err, repository.ErrSeparationNotFound) {
			response.NotFound(c, "separation not found")
			return
		}
		h.logger.Error("Failed to delete separation", zap.Error(err))
		response.InternalError(c, "")
		return
	}
	response.NoContent(c)
}
