package model

import "time"

// Room represents one managed ephemeral voice room. The registry owns the
// authoritative copy; everything handed out of the registry is a snapshot.
type Room struct {
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`

	// Tag is the decorative symbol picked at creation. It never changes for
	// the life of the room and is mirrored into occupants' display labels.
	Tag string `json:"tag"`

	Locked    bool `json:"locked"`
	UserLimit int  `json:"user_limit"` // 0 = unlimited

	Trusted map[string]bool `json:"trusted,omitempty"`
	Blocked map[string]bool `json:"blocked,omitempty"`

	// Control-surface message posted into the room's text surface.
	PanelChannelID string `json:"panel_channel_id,omitempty"`
	PanelMessageID string `json:"panel_message_id,omitempty"`

	// JoinedAt records when each occupant entered, used as the deterministic
	// ownership-transfer tie-break (earliest joined-at wins).
	JoinedAt map[string]time.Time `json:"-"`

	CreatedAt time.Time `json:"created_at"`
}

// IsTrusted reports whether the identity has an explicit allow override.
func (r *Room) IsTrusted(identityID string) bool {
	return r.Trusted[identityID]
}

// IsBlocked reports whether the identity has an explicit deny override.
func (r *Room) IsBlocked(identityID string) bool {
	return r.Blocked[identityID]
}

// Clone returns a deep copy so registry snapshots cannot alias internal maps.
func (r *Room) Clone() *Room {
	cp := *r
	cp.Trusted = make(map[string]bool, len(r.Trusted))
	for k, v := range r.Trusted {
		cp.Trusted[k] = v
	}
	cp.Blocked = make(map[string]bool, len(r.Blocked))
	for k, v := range r.Blocked {
		cp.Blocked[k] = v
	}
	cp.JoinedAt = make(map[string]time.Time, len(r.JoinedAt))
	for k, v := range r.JoinedAt {
		cp.JoinedAt[k] = v
	}
	return &cp
}

// RoomSnapshot is the read-only view exposed to the dashboard.
type RoomSnapshot struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Tag       string    `json:"tag"`
	Locked    bool      `json:"locked"`
	UserLimit int       `json:"user_limit"`
	Occupancy int       `json:"occupancy"`
	CreatedAt time.Time `json:"created_at"`
}
