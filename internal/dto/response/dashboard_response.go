package response

import (
	"time"

	"github.com/go-warden/voice/internal/model"
)

// TokenResponse carries issued dashboard tokens
type TokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	TokenType    string    `json:"token_type"`
}

// StatsResponse is the dashboard overview
type StatsResponse struct {
	ActiveRooms     int                       `json:"active_rooms"`
	PendingRequests int                       `json:"pending_requests"`
	Separations     int                       `json:"separations"`
	AuditCounts     map[model.AuditAction]int `json:"audit_counts,omitempty"`
}

// RoomListResponse lists live managed rooms
type RoomListResponse struct {
	Rooms []*model.RoomSnapshot `json:"rooms"`
	Total int                   `json:"total"`
}

// RequestListResponse lists pending requests
type RequestListResponse struct {
	Requests []*model.RequestSnapshot `json:"requests"`
	Total    int                      `json:"total"`
}
