package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/go-warden/voice/internal/model"
	apperrors "github.com/go-warden/voice/internal/pkg/errors"
	"github.com/go-warden/voice/internal/platform"
	"github.com/go-warden/voice/internal/registry"
	"github.com/go-warden/voice/internal/settings"
)

// LifecycleService creates, reconciles and destroys ephemeral voice rooms in
// response to presence transitions. Every platform call is a suspension
// point: registry state is re-read before each one and registry writes land
// after the calls they describe, so a lost race is corrected by the sweeper
// rather than producing a stuck entry.
type LifecycleService struct {
	rooms       *registry.RoomRegistry
	annotations *registry.AnnotationTracker
	platform    platform.Client
	settings    *settings.Store
	notifier    *Notifier
	botID       string
	rng         *rand.Rand
	logger      *zap.Logger
}

func NewLifecycleService(
	rooms *registry.RoomRegistry,
	annotations *registry.AnnotationTracker,
	pc platform.Client,
	st *settings.Store,
	notifier *Notifier,
	botID string,
	logger *zap.Logger,
) *LifecycleService {
	return &LifecycleService{
		rooms:       rooms,
		annotations: annotations,
		platform:    pc,
		settings:    st,
		notifier:    notifier,
		botID:       botID,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		logger:      logger,
	}
}

// pickTag chooses a decorative tag from the configured palette.
func (s *LifecycleService) pickTag(palette []string) string {
	if len(palette) == 0 {
		return "🎤"
	}
	return palette[s.rng.Intn(len(palette))]
}

// memberLabel fetches the identity's display label, falling back to the raw
// id when the platform cannot resolve it.
func (s *LifecycleService) memberLabel(ctx context.Context, identityID string) string {
	label, err := s.platform.MemberLabel(ctx, identityID)
	if err != nil || label == "" {
		return identityID
	}
	return label
}

// OnSpawnerEntry handles an identity arriving in the spawner location:
// allocate a room, seed permissions, tag the owner's label before moving
// them, move them in, then publish the control panel.
func (s *LifecycleService) OnSpawnerEntry(ctx context.Context, identityID string) error {
	st := s.settings.Snapshot()
	if !st.Systems.Rooms {
		return nil
	}
	if st.Rooms.CategoryID == "" {
		s.logger.Warn("Room category not configured, skipping spawn")
		return nil
	}

	// An identity that already owns a managed room cannot spawn a second one;
	// duplicate spawner events collapse to a no-op here.
	if existing, ok := s.rooms.OwnedBy(identityID); ok {
		s.logger.Debug("Duplicate spawn suppressed",
			zap.String("identity_id", identityID),
			zap.String("room_id", existing),
		)
		return nil
	}

	label := s.memberLabel(ctx, identityID)
	tag := s.pickTag(st.Rooms.TagPalette)
	name := tag + " " + strings.ReplaceAll(st.Rooms.NameTemplate, "{owner}", label)

	roomID, err := s.platform.CreateRoom(ctx, platform.CreateRoomParams{
		Name:     name,
		ParentID: st.Rooms.CategoryID,
		Grants: []platform.Grant{
			{SubjectID: platform.EveryoneID, Allow: []platform.Permission{platform.PermView, platform.PermConnect}},
			{SubjectID: identityID, Allow: []platform.Permission{platform.PermManageRoom, platform.PermMoveMembers}},
			{SubjectID: s.botID, Allow: []platform.Permission{platform.PermView, platform.PermConnect, platform.PermManageRoom, platform.PermMoveMembers}},
		},
	})
	if err != nil {
		return apperrors.PlatformCall(err, "CreateRoom")
	}

	now := time.Now()
	s.rooms.Put(&model.Room{
		ID:        roomID,
		OwnerID:   identityID,
		Tag:       tag,
		CreatedAt: now,
	})
	s.rooms.RecordJoin(roomID, identityID, now)

	// Tag the label before the move so a move notification racing the label
	// update still observes the final label.
	s.annotations.Save(identityID, label)
	if err := s.platform.SetMemberLabel(ctx, identityID, tag+" "+label); err != nil {
		s.logger.Warn("Failed to tag owner label",
			zap.String("identity_id", identityID),
			zap.Error(err),
		)
	}

	if err := s.platform.MoveMember(ctx, identityID, roomID); err != nil {
		// Critical step: abort here and leave the empty room for the sweeper.
		s.logger.Error("Failed to move owner into new room",
			zap.String("identity_id", identityID),
			zap.String("room_id", roomID),
			zap.Error(err),
		)
		return apperrors.PlatformCall(err, "MoveMember")
	}

	s.publishPanel(ctx, roomID, identityID)

	s.notifier.Notify(ctx, st.Rooms.LogChannelID, platform.MessageSpec{
		Title: "🎤 Voice Room Created",
		Body:  fmt.Sprintf("**Room:** %s\n**Owner:** %s", name, label),
		Color: colorCreated,
	}, model.AuditRoomCreated, roomID, identityID, name)

	s.logger.Info("Created ephemeral room",
		zap.String("room_id", roomID),
		zap.String("owner_id", identityID),
		zap.String("tag", tag),
	)
	return nil
}

// publishPanel posts the owner control panel into the room. Best-effort: the
// room works without its panel.
func (s *LifecycleService) publishPanel(ctx context.Context, roomID, ownerID string) {
	spec := platform.MessageSpec{
		Title: "🎤 Room Control Panel",
		Color: colorInfo,
		Fields: []platform.Field{
			{Name: "Lock/Unlock", Value: "Toggle whether anyone can join", Inline: true},
			{Name: "Trust", Value: "Grant access to a specific member", Inline: true},
			{Name: "Block", Value: "Deny access permanently", Inline: true},
			{Name: "Disconnect", Value: "Remove a member from the room", Inline: true},
			{Name: "Limit", Value: "Maximum occupants allowed", Inline: true},
			{Name: "Rename", Value: "Change the room name", Inline: true},
		},
		Buttons: []platform.Button{
			{ActionID: "room_lock_" + roomID, Label: "Lock", Style: "secondary"},
			{ActionID: "room_trust_" + roomID, Label: "Trust", Style: "secondary"},
			{ActionID: "room_block_" + roomID, Label: "Block", Style: "secondary"},
			{ActionID: "room_disconnect_" + roomID, Label: "Disconnect", Style: "secondary"},
			{ActionID: "room_limit_" + roomID, Label: "Limit", Style: "secondary"},
			{ActionID: "room_rename_" + roomID, Label: "Rename", Style: "secondary"},
		},
	}
	msgID, err := s.platform.SendMessage(ctx, roomID, spec)
	if err != nil {
		s.logger.Warn("Failed to publish control panel",
			zap.String("room_id", roomID),
			zap.Error(err),
		)
		return
	}
	s.rooms.SetPanel(roomID, roomID, msgID)
}

// OnMemberJoin applies the room's decorative tag to a joining member's label.
func (s *LifecycleService) OnMemberJoin(ctx context.Context, identityID, roomID string) error {
	st := s.settings.Snapshot()
	if !st.Systems.Rooms {
		return nil
	}
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return nil
	}

	label := s.memberLabel(ctx, identityID)
	s.annotations.Save(identityID, label)
	original, _ := s.annotations.Lookup(identityID)

	if err := s.platform.SetMemberLabel(ctx, identityID, room.Tag+" "+original); err != nil {
		s.logger.Warn("Failed to tag member label",
			zap.String("identity_id", identityID),
			zap.Error(err),
		)
	}
	s.rooms.RecordJoin(roomID, identityID, time.Now())

	s.notifier.Notify(ctx, st.Rooms.LogChannelID, platform.MessageSpec{
		Title: "👤 Member Joined",
		Body:  fmt.Sprintf("**Member:** %s\n**Room:** %s", original, roomID),
		Color: colorInfo,
	}, model.AuditMemberJoined, roomID, identityID, "")
	return nil
}

// OnMemberLeave restores the departing member's label and, when the owner
// leaves with occupants remaining, transfers ownership with its grants.
func (s *LifecycleService) OnMemberLeave(ctx context.Context, identityID, roomID string) error {
	st := s.settings.Snapshot()
	if !st.Systems.Rooms {
		return nil
	}
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return nil
	}

	if original, ok := s.annotations.Take(identityID); ok {
		if err := s.platform.SetMemberLabel(ctx, identityID, original); err != nil {
			s.logger.Warn("Failed to restore member label",
				zap.String("identity_id", identityID),
				zap.Error(err),
			)
		}
	}
	s.rooms.RecordLeave(roomID, identityID)

	if room.OwnerID == identityID {
		if err := s.transferOwnership(ctx, st, roomID, identityID); err != nil {
			return err
		}
	}

	s.notifier.Notify(ctx, st.Rooms.LogChannelID, platform.MessageSpec{
		Title: "👤 Member Left",
		Body:  fmt.Sprintf("**Member:** %s\n**Room:** %s", identityID, roomID),
		Color: colorWarn,
	}, model.AuditMemberLeft, roomID, identityID, "")
	return nil
}

// transferOwnership moves the elevated control grants to the next occupant.
// The registry owner write lands only after both permission edits succeed,
// keeping grants and ownerId in lockstep as observed after the transfer.
func (s *LifecycleService) transferOwnership(ctx context.Context, st settings.Settings, roomID, oldOwnerID string) error {
	occupants, err := s.platform.RoomOccupants(ctx, roomID)
	if err != nil {
		if errors.Is(err, platform.ErrNotFound) {
			return nil // room already gone, sweeper converges the registry
		}
		return apperrors.PlatformCall(err, "RoomOccupants")
	}

	next := s.rooms.NextOwner(roomID, occupants, oldOwnerID)
	if next == "" {
		return nil // empty room, the occupancy check will reap it
	}

	// Re-read: the room may have been deleted while we were suspended.
	if _, ok := s.rooms.Get(roomID); !ok {
		return nil
	}

	if err := s.platform.EditPermission(ctx, roomID, platform.Grant{SubjectID: oldOwnerID}); err != nil {
		return apperrors.PlatformCall(err, "EditPermission")
	}
	if err := s.platform.EditPermission(ctx, roomID, platform.Grant{
		SubjectID: next,
		Allow:     []platform.Permission{platform.PermManageRoom, platform.PermMoveMembers},
	}); err != nil {
		return apperrors.PlatformCall(err, "EditPermission")
	}
	s.rooms.SetOwner(roomID, next)

	s.notifier.Notify(ctx, st.Rooms.LogChannelID, platform.MessageSpec{
		Title: "👑 Room Owner Changed",
		Body:  fmt.Sprintf("**Room:** %s\n**New Owner:** %s\n**Previous Owner:** %s", roomID, next, oldOwnerID),
		Color: colorOwner,
	}, model.AuditOwnerChanged, roomID, next, "previous="+oldOwnerID)

	s.logger.Info("Transferred room ownership",
		zap.String("room_id", roomID),
		zap.String("old_owner", oldOwnerID),
		zap.String("new_owner", next),
	)
	return nil
}

// CheckOccupancy deletes the room once it is empty. Idempotent: invoked any
// number of times it deletes the platform resource once and emits exactly one
// deletion notification, because the registry removal is the single gate.
func (s *LifecycleService) CheckOccupancy(ctx context.Context, roomID string) error {
	st := s.settings.Snapshot()
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return nil
	}

	occupants, err := s.platform.RoomOccupants(ctx, roomID)
	if err != nil {
		if errors.Is(err, platform.ErrNotFound) {
			// Platform resource vanished out from under us; converge.
			s.finishDelete(ctx, st, roomID)
			return nil
		}
		return apperrors.PlatformCall(err, "RoomOccupants")
	}
	if len(occupants) > 0 {
		return nil
	}

	if room.PanelMessageID != "" {
		err := s.platform.DeleteMessage(ctx, room.PanelChannelID, room.PanelMessageID)
		if err != nil && !errors.Is(err, platform.ErrNotFound) {
			s.logger.Warn("Failed to delete control panel",
				zap.String("room_id", roomID),
				zap.Error(err),
			)
		}
	}

	if err := s.platform.DeleteRoom(ctx, roomID, "room empty"); err != nil && !errors.Is(err, platform.ErrNotFound) {
		// Keep the registry entry; the next sweep retries the delete.
		return apperrors.PlatformCall(err, "DeleteRoom")
	}

	s.finishDelete(ctx, st, roomID)
	return nil
}

func (s *LifecycleService) finishDelete(ctx context.Context, st settings.Settings, roomID string) {
	if !s.rooms.Remove(roomID) {
		return // another invocation already finished, notify once only
	}
	s.notifier.Notify(ctx, st.Rooms.LogChannelID, platform.MessageSpec{
		Title: "🗑️ Voice Room Deleted",
		Body:  fmt.Sprintf("**Room:** %s\n**Reason:** room empty", roomID),
		Color: colorDeleted,
	}, model.AuditRoomDeleted, roomID, "", "")
	s.logger.Info("Deleted empty room", zap.String("room_id", roomID))
}

// --- owner actions, invoked by the policy gateway after authorization ---

// ToggleLock flips the default connect permission. Trusted members keep
// access regardless of lock state.
func (s *LifecycleService) ToggleLock(ctx context.Context, roomID string) (string, error) {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return "", apperrors.ErrRoomNotFound
	}
	locked := !room.Locked

	if locked {
		if err := s.platform.EditPermission(ctx, roomID, platform.Grant{
			SubjectID: platform.EveryoneID,
			Deny:      []platform.Permission{platform.PermConnect},
		}); err != nil {
			return "", apperrors.PlatformCall(err, "EditPermission")
		}
		for trusted := range room.Trusted {
			if err := s.platform.EditPermission(ctx, roomID, platform.Grant{
				SubjectID: trusted,
				Allow:     []platform.Permission{platform.PermConnect},
			}); err != nil {
				s.logger.Warn("Failed to re-grant trusted member on lock",
					zap.String("room_id", roomID),
					zap.String("identity_id", trusted),
					zap.Error(err),
				)
			}
		}
	} else {
		if err := s.platform.EditPermission(ctx, roomID, platform.Grant{
			SubjectID: platform.EveryoneID,
			Allow:     []platform.Permission{platform.PermConnect},
		}); err != nil {
			return "", apperrors.PlatformCall(err, "EditPermission")
		}
	}

	s.rooms.SetLocked(roomID, locked)
	if locked {
		return "🔒 Room locked. Only trusted members can join.", nil
	}
	return "🔓 Room unlocked. Everyone can join.", nil
}

// Trust grants an explicit connect override to one member.
func (s *LifecycleService) Trust(ctx context.Context, roomID, targetID string) (string, error) {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return "", apperrors.ErrRoomNotFound
	}
	if room.IsTrusted(targetID) {
		return "", apperrors.New(apperrors.KindConflict, "member is already trusted")
	}

	if err := s.platform.EditPermission(ctx, roomID, platform.Grant{
		SubjectID: targetID,
		Allow:     []platform.Permission{platform.PermView, platform.PermConnect},
	}); err != nil {
		return "", apperrors.PlatformCall(err, "EditPermission")
	}
	s.rooms.Trust(roomID, targetID)
	return fmt.Sprintf("✅ Added %s to trusted members.", targetID), nil
}

// Block denies a member access and disconnects them if present.
func (s *LifecycleService) Block(ctx context.Context, roomID, targetID string) (string, error) {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return "", apperrors.ErrRoomNotFound
	}
	if room.IsBlocked(targetID) {
		return "", apperrors.New(apperrors.KindConflict, "member is already blocked")
	}

	if err := s.platform.EditPermission(ctx, roomID, platform.Grant{
		SubjectID: targetID,
		Deny:      []platform.Permission{platform.PermConnect},
	}); err != nil {
		return "", apperrors.PlatformCall(err, "EditPermission")
	}

	if current, err := s.platform.MemberRoom(ctx, targetID); err == nil && current == roomID {
		if err := s.platform.DisconnectMember(ctx, targetID, "blocked from room"); err != nil {
			s.logger.Warn("Failed to disconnect blocked member",
				zap.String("room_id", roomID),
				zap.String("identity_id", targetID),
				zap.Error(err),
			)
		}
	}

	s.rooms.Block(roomID, targetID)
	return fmt.Sprintf("✅ Blocked %s from the room.", targetID), nil
}

// Disconnect removes a member currently in the room.
func (s *LifecycleService) Disconnect(ctx context.Context, roomID, targetID string) (string, error) {
	if _, ok := s.rooms.Get(roomID); !ok {
		return "", apperrors.ErrRoomNotFound
	}
	current, err := s.platform.MemberRoom(ctx, targetID)
	if err != nil || current != roomID {
		return "", apperrors.New(apperrors.KindNotFound, "member is not in the room")
	}
	if err := s.platform.DisconnectMember(ctx, targetID, "disconnected by owner"); err != nil {
		return "", apperrors.PlatformCall(err, "DisconnectMember")
	}
	return fmt.Sprintf("✅ Disconnected %s from the room.", targetID), nil
}

// SetLimit applies the occupancy limit; 0 means unlimited.
func (s *LifecycleService) SetLimit(ctx context.Context, roomID string, limit int) (string, error) {
	if limit < 0 || limit > 99 {
		return "", apperrors.ErrInvalidLimit
	}
	if _, ok := s.rooms.Get(roomID); !ok {
		return "", apperrors.ErrRoomNotFound
	}
	if err := s.platform.SetRoomLimit(ctx, roomID, limit); err != nil {
		return "", apperrors.PlatformCall(err, "SetRoomLimit")
	}
	s.rooms.SetUserLimit(roomID, limit)
	if limit == 0 {
		return "✅ Occupancy limit removed.", nil
	}
	return fmt.Sprintf("✅ Occupancy limit set to %d.", limit), nil
}

// Rename changes the room name, keeping the room's immutable decorative tag
// as the prefix.
func (s *LifecycleService) Rename(ctx context.Context, roomID, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 100 {
		return "", apperrors.New(apperrors.KindInvalidInput, "room name must be 1-100 characters")
	}
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return "", apperrors.ErrRoomNotFound
	}
	final := room.Tag + " " + name
	if err := s.platform.RenameRoom(ctx, roomID, final); err != nil {
		return "", apperrors.PlatformCall(err, "RenameRoom")
	}
	return "✅ Room renamed to: " + final, nil
}
