package model

import "time"

// AuditAction enumerates lifecycle events recorded to the audit log.
type AuditAction string

const (
	AuditRoomCreated   AuditAction = "room_created"
	AuditRoomDeleted   AuditAction = "room_deleted"
	AuditMemberJoined  AuditAction = "member_joined"
	AuditMemberLeft    AuditAction = "member_left"
	AuditOwnerChanged  AuditAction = "owner_changed"
	AuditRequestOpened AuditAction = "request_opened"
	AuditRequestClaim  AuditAction = "request_claimed"
	AuditRequestClosed AuditAction = "request_disposed"
	AuditRequestGone   AuditAction = "request_abandoned"
	AuditSeparationHit AuditAction = "separation_violation"
)

// AuditRecord is one appended lifecycle event. Best-effort persistence: a
// failed insert never aborts the state transition that produced it.
type AuditRecord struct {
	ID         string      `db:"id" json:"id"`
	Action     AuditAction `db:"action" json:"action"`
	RoomID     string      `db:"room_id" json:"room_id,omitempty"`
	IdentityID string      `db:"identity_id" json:"identity_id,omitempty"`
	Detail     string      `db:"detail" json:"detail,omitempty"`
	CreatedAt  time.Time   `db:"created_at" json:"created_at"`
}
