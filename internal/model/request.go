package model

import "time"

// RequestState tracks the claim protocol: open -> claimed -> disposed, with
// open -> abandoned when the requester leaves before anyone claims. A claimed
// request can only reach disposed.
type RequestState string

const (
	RequestStateOpen    RequestState = "open"
	RequestStateClaimed RequestState = "claimed"
)

// PendingRequest represents one outstanding claimable request. At most one
// exists per requester at a time.
type PendingRequest struct {
	RequesterID string `json:"requester_id"`

	// ClaimantID is empty until the request is claimed. Set-once: the registry
	// rejects a second claim instead of overwriting.
	ClaimantID string `json:"claimant_id,omitempty"`

	// OriginRoomID is the location the requester entered to open the request,
	// kept so the private resolution room can be parented correctly.
	OriginRoomID string `json:"origin_room_id"`

	// The single live informational message for this request. Replaced (old
	// deleted, new created) on state transitions.
	MessageChannelID string `json:"message_channel_id,omitempty"`
	MessageID        string `json:"message_id,omitempty"`

	// ResolutionRoomID is the private room created on claim, deleted on dispose.
	ResolutionRoomID string `json:"resolution_room_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// State derives the claim protocol state from the claimant field.
func (p *PendingRequest) State() RequestState {
	if p.ClaimantID != "" {
		return RequestStateClaimed
	}
	return RequestStateOpen
}

// Clone returns a copy so registry snapshots stay independent.
func (p *PendingRequest) Clone() *PendingRequest {
	cp := *p
	return &cp
}

// RequestSnapshot is the read-only view exposed to the dashboard.
type RequestSnapshot struct {
	RequesterID string       `json:"requester_id"`
	ClaimantID  string       `json:"claimant_id,omitempty"`
	State       RequestState `json:"state"`
	CreatedAt   time.Time    `json:"created_at"`
}
