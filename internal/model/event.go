package model

// PresenceEvent is one voice-presence transition delivered by the platform.
// FromRoomID or ToRoomID may be empty (connect/disconnect). Delivery carries
// no ordering guarantee across rooms and no deduplication guarantee.
type PresenceEvent struct {
	EventID    string `json:"event_id"`
	IdentityID string `json:"identity_id"`
	FromRoomID string `json:"from_room_id,omitempty"`
	ToRoomID   string `json:"to_room_id,omitempty"`
}

// InteractionKind distinguishes button presses from form submissions.
type InteractionKind string

const (
	InteractionButton InteractionKind = "button"
	InteractionForm   InteractionKind = "form"
)

// InteractionEvent is a raw inbound interaction. ActionID is the opaque wire
// identifier; it is decoded exactly once at the dispatch boundary into an
// Action and never string-parsed anywhere else.
type InteractionEvent struct {
	EventID       string            `json:"event_id"`
	InteractionID string            `json:"interaction_id"`
	Kind          InteractionKind   `json:"kind"`
	ActionID      string            `json:"action_id"`
	ActorID       string            `json:"actor_id"`
	Fields        map[string]string `json:"fields,omitempty"`
}

// ActionDomain tags which registry an action targets.
type ActionDomain string

const (
	DomainRoom    ActionDomain = "room"
	DomainRequest ActionDomain = "request"
)

// RoomOp enumerates owner actions on a managed room.
type RoomOp string

const (
	RoomOpLock       RoomOp = "lock"
	RoomOpTrust      RoomOp = "trust"
	RoomOpBlock      RoomOp = "block"
	RoomOpDisconnect RoomOp = "disconnect"
	RoomOpLimit      RoomOp = "limit"
	RoomOpRename     RoomOp = "rename"
)

// RequestOp enumerates privileged actions on a pending request. Dispose
// outcomes are carried separately in Action.OutcomeKey.
type RequestOp string

const (
	RequestOpClaim   RequestOp = "claim"
	RequestOpDispose RequestOp = "dispose"
)

// Action is the tagged, decoded form of an interaction. Handlers match on it
// exhaustively instead of re-parsing id strings.
type Action struct {
	Domain        ActionDomain
	RoomOp        RoomOp
	RequestOp     RequestOp
	OutcomeKey    string // set for RequestOpDispose
	TargetID      string // room id or requester id
	ActorID       string
	InteractionID string
	Fields        map[string]string
}
