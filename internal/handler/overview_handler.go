package handler

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/go-warden/voice/internal/dto/response"
	"github.com/go-warden/voice/internal/model"
	"github.com/go-warden/voice/internal/platform"
	"github.com/go-warden/voice/internal/registry"
	"github.com/go-warden/voice/internal/repository"
)

// AuditReader is the slice of the audit repository the dashboard needs.
type AuditReader interface {
	List(ctx context.Context, limit, offset int) ([]*model.AuditRecord, error)
	CountByAction(ctx context.Context) (map[model.AuditAction]int, error)
}

// SeparationReader lists persisted separations.
type SeparationReader interface {
	List(ctx context.Context) ([]*model.Separation, error)
}

// OverviewHandler serves the dashboard's read-only views of live state.
type OverviewHandler struct {
	rooms    *registry.RoomRegistry
	requests *registry.RequestRegistry
	seps     SeparationReader
	audit    AuditReader
	platform platform.Client
	logger   *zap.Logger
}

func NewOverviewHandler(
	rooms *registry.RoomRegistry,
	requests *registry.RequestRegistry,
	seps SeparationReader,
	audit AuditReader,
	pc platform.Client,
	logger *zap.Logger,
) *OverviewHandler {
	return &OverviewHandler{
		rooms:    rooms,
		requests: requests,
		seps:     seps,
		audit:    audit,
		platform: pc,
		logger:   logger,
	}
}

// Stats returns the dashboard overview counters.
func (h *OverviewHandler) Stats(c *gin.Context) {
	ctx := c.Request.Context()
	stats := &response.StatsResponse{
		ActiveRooms:     h.rooms.Len(),
		PendingRequests: h.requests.Len(),
	}

	if seps, err := h.seps.List(ctx); err == nil {
		stats.Separations = len(seps)
	} else {
		h.logger.Warn("Failed to count separations", zap.Error(err))
	}
	if counts, err := h.audit.CountByAction(ctx); err == nil {
		stats.AuditCounts = counts
	} else {
		h.logger.Warn("Failed to count audit records", zap.Error(err))
	}

	response.Success(c, stats)
}

// ListRooms returns live managed rooms with current occupancy.
func (h *OverviewHandler) ListRooms(c *gin.Context) {
	ctx := c.Request.Context()
	rooms := h.rooms.List()

	snapshots := make([]*model.RoomSnapshot, 0, len(rooms))
	for _, room := range rooms {
		snap := &model.RoomSnapshot{
			ID:        room.ID,
			OwnerID:   room.OwnerID,
			Tag:       room.Tag,
			Locked:    room.Locked,
			UserLimit: room.UserLimit,
			CreatedAt: room.CreatedAt,
		}
		if occupants, err := h.platform.RoomOccupants(ctx, room.ID); err == nil {
			snap.Occupancy = len(occupants)
		}
		snapshots = append(snapshots, snap)
	}

	response.Success(c, &response.RoomListResponse{Rooms: snapshots, Total: len(snapshots)})
}

// ListRequests returns pending requests and their claim state.
func (h *OverviewHandler) ListRequests(c *gin.Context) {
	requests := h.requests.List()

	snapshots := make([]*model.RequestSnapshot, 0, len(requests))
	for _, req := range requests {
		snapshots = append(snapshots, &model.RequestSnapshot{
			RequesterID: req.RequesterID,
			ClaimantID:  req.ClaimantID,
			State:       req.State(),
			CreatedAt:   req.CreatedAt,
		})
	}

	response.Success(c, &response.RequestListResponse{Requests: snapshots, Total: len(snapshots)})
}

// ListAudit returns a page of the audit log, newest first.
func (h *OverviewHandler) ListAudit(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit < 1 || limit > 200 {
		limit = 50
	}

	records, err := h.audit.List(c.Request.Context(), limit, (page-1)*limit)
	if err != nil {
		h.logger.Error("Failed to list audit records", zap.Error(err))
		response.InternalError(c, "")
		return
	}

	response.Success(c, records)
}

var _ AuditReader = (*repository.AuditRepository)(nil)
var _ SeparationReader = (*repository.SeparationRepository)(nil)
