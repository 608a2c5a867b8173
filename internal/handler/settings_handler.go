package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/go-warden/voice/internal/dto/request"
	"github.com/go-warden/voice/internal/dto/response"
	"github.com/go-warden/voice/internal/settings"
)

// SettingsHandler exposes the hot-reloadable runtime settings. Updates are
// persisted immediately and picked up by the controller without a restart.
type SettingsHandler struct {
	store  *settings.Store
	logger *zap.Logger
}

func NewSettingsHandler(store *settings.Store, logger *zap.Logger) *SettingsHandler {
	return &SettingsHandler{store: store, logger: logger}
}

// Get returns the full current settings.
func (h *SettingsHandler) Get(c *gin.Context) {
	snapshot := h.store.Snapshot()
	response.Success(c, &snapshot)
}

// ToggleSystem enables or disables one system at runtime.
func (h *SettingsHandler) ToggleSystem(c *gin.Context) {
	var req request.ToggleSystemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request format")
		return
	}

	system := c.Param("system")
	updated, err := h.store.SetSystemEnabled(system, *req.Enabled)
	if err != nil {
		response.BadRequest(c, "unknown system: "+system)
		return
	}

	h.logger.Info("System toggled",
		zap.String("system", system),
		zap.Bool("enabled", *req.Enabled),
	)
	response.Success(c, &updated)
}

// UpdateRooms applies a partial update to the room system settings.
func (h *SettingsHandler) UpdateRooms(c *gin.Context) {
	var req request.UpdateRoomSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request format")
		return
	}

	updated, err := h.store.Update(func(st *settings.Settings) {
		if req.SpawnerRoomID != nil {
			st.Rooms.SpawnerRoomID = *req.SpawnerRoomID
		}
		if req.CategoryID != nil {
			st.Rooms.CategoryID = *req.CategoryID
		}
		if req.LogChannelID != nil {
			st.Rooms.LogChannelID = *req.LogChannelID
		}
		if req.NameTemplate != nil {
			st.Rooms.NameTemplate = *req.NameTemplate
		}
		if req.TagPalette != nil {
			st.Rooms.TagPalette = *req.TagPalette
		}
	})
	if err != nil {
		h.logger.Error("Failed to persist settings", zap.Error(err))
		response.InternalError(c, "")
		return
	}

	response.Success(c, &updated)
}

// UpdateRequests applies a partial update to the request system settings.
func (h *SettingsHandler) UpdateRequests(c *gin.Context) {
	var req request.UpdateRequestSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request format")
		return
	}

	updated, err := h.store.Update(func(st *settings.Settings) {
		if req.EntryRoomID != nil {
			st.Requests.EntryRoomID = *req.EntryRoomID
		}
		if req.CategoryID != nil {
			st.Requests.CategoryID = *req.CategoryID
		}
		if req.LogChannelID != nil {
			st.Requests.LogChannelID = *req.LogChannelID
		}
		if req.PrivilegedRoleIDs != nil {
			st.Requests.PrivilegedRoleIDs = *req.PrivilegedRoleIDs
		}
		if req.Outcomes != nil {
			outcomes := make([]settings.Outcome, 0, len(*req.Outcomes))
			for _, o := range *req.Outcomes {
				outcomes = append(outcomes, settings.Outcome{
					Key:    o.Key,
					Label:  o.Label,
					RoleID: o.RoleID,
				})
			}
			st.Requests.Outcomes = outcomes
		}
	})
	if err != nil {
		h.logger.Error("Failed to persist settings", zap.Error(err))
		response.InternalError(c, "")
		return
	}

	response.Success(c, &updated)
}
