package request

// LoginRequest represents a dashboard login request
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RefreshTokenRequest represents a token refresh request
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// ToggleSystemRequest flips one system's enabled flag
type ToggleSystemRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// UpdateRoomSettingsRequest updates the ephemeral room system configuration
type UpdateRoomSettingsRequest struct {
	SpawnerRoomID *string   `json:"spawner_room_id,omitempty"`
	CategoryID    *string   `json:"category_id,omitempty"`
	LogChannelID  *string   `json:"log_channel_id,omitempty"`
	NameTemplate  *string   `json:"name_template,omitempty" binding:"omitempty,max=100"`
	TagPalette    *[]string `json:"tag_palette,omitempty"`
}

// OutcomePayload is one disposition option in a settings update
type OutcomePayload struct {
	Key    string `json:"key" binding:"required,max=32"`
	Label  string `json:"label" binding:"required,max=80"`
	RoleID string `json:"role_id"`
}

// UpdateRequestSettingsRequest updates the claimable request configuration
type UpdateRequestSettingsRequest struct {
	EntryRoomID       *string           `json:"entry_room_id,omitempty"`
	CategoryID        *string           `json:"category_id,omitempty"`
	LogChannelID      *string           `json:"log_channel_id,omitempty"`
	PrivilegedRoleIDs *[]string         `json:"privileged_role_ids,omitempty"`
	Outcomes          *[]OutcomePayload `json:"outcomes,omitempty"`
}

// CreateSeparationRequest records a pair that may not share a voice room
type CreateSeparationRequest struct {
	FirstID  string `json:"first_id" binding:"required"`
	SecondID string `json:"second_id" binding:"required,nefield=FirstID"`
}
