// Package platform defines the capability interface the controller uses to
// act on the chat/voice platform. The live implementation talks to the
// platform gateway; tests use the recording fake in fake.go. Every call is an
// async boundary: handlers must re-read registry state after each one.
package platform

import (
	"context"
	"errors"
)

// ErrNotFound is returned when the target resource does not exist on the
// platform. Deletion paths treat it as success.
var ErrNotFound = errors.New("platform: not found")

// Permission names the grants the controller manages on rooms.
type Permission string

const (
	PermView        Permission = "view"
	PermConnect     Permission = "connect"
	PermSpeak       Permission = "speak"
	PermManageRoom  Permission = "manage_room"
	PermMoveMembers Permission = "move_members"
)

// EveryoneID is the pseudo-subject addressing the general population in a
// permission grant.
const EveryoneID = "@everyone"

// Grant sets or clears permissions for one subject on one room. A permission
// in neither list reverts to the room default.
type Grant struct {
	SubjectID string
	Allow     []Permission
	Deny      []Permission
}

// CreateRoomParams describes a room to create.
type CreateRoomParams struct {
	Name      string
	ParentID  string
	UserLimit int
	Grants    []Grant
}

// Button is one interactive control attached to a message.
type Button struct {
	ActionID string
	Label    string
	Style    string // primary, secondary, success, danger
}

// Field is one labelled value in a message card.
type Field struct {
	Name   string
	Value  string
	Inline bool
}

// MessageSpec describes an informational message card with optional controls.
// An empty Buttons slice renders the message without controls.
type MessageSpec struct {
	Title   string
	Body    string
	Color   int
	Fields  []Field
	Buttons []Button
}

// Client is the outbound capability interface. Implementations must be safe
// for concurrent use.
type Client interface {
	// Rooms
	CreateRoom(ctx context.Context, p CreateRoomParams) (roomID string, err error)
	DeleteRoom(ctx context.Context, roomID, reason string) error
	RenameRoom(ctx context.Context, roomID, name string) error
	SetRoomLimit(ctx context.Context, roomID string, limit int) error
	EditPermission(ctx context.Context, roomID string, grant Grant) error
	RoomOccupants(ctx context.Context, roomID string) ([]string, error)
	RoomsInCategory(ctx context.Context, categoryID string) ([]string, error)

	// Members
	MoveMember(ctx context.Context, identityID, roomID string) error
	DisconnectMember(ctx context.Context, identityID, reason string) error
	MemberRoom(ctx context.Context, identityID string) (string, error)
	MemberLabel(ctx context.Context, identityID string) (string, error)
	SetMemberLabel(ctx context.Context, identityID, label string) error
	MemberHasRole(ctx context.Context, identityID, roleID string) (bool, error)
	AssignRole(ctx context.Context, identityID, roleID string) error
	RevokeRole(ctx context.Context, identityID, roleID string) error

	// Messages
	SendMessage(ctx context.Context, channelID string, spec MessageSpec) (messageID string, err error)
	EditMessage(ctx context.Context, channelID, messageID string, spec MessageSpec) error
	DeleteMessage(ctx context.Context, channelID, messageID string) error

	// Interactions
	RespondInteraction(ctx context.Context, interactionID, content string) error
}
