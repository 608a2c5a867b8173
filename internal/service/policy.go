package service

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/go-warden/voice/internal/model"
	apperrors "github.com/go-warden/voice/internal/pkg/errors"
	"github.com/go-warden/voice/internal/platform"
	"github.com/go-warden/voice/internal/registry"
	"github.com/go-warden/voice/internal/settings"
)

// PolicyService is the single authorization gateway for interactions. Every
// decoded Action passes through here: ownership is re-read from the registry
// at execution time (never trusted from the message the button lives on),
// privileged-role checks gate the request domain, and the outcome is always
// acknowledged back to the actor.
type PolicyService struct {
	rooms    *registry.RoomRegistry
	life     *LifecycleService
	claims   *ClaimService
	platform platform.Client
	settings *settings.Store
	logger   *zap.Logger
}

func NewPolicyService(
	rooms *registry.RoomRegistry,
	life *LifecycleService,
	claims *ClaimService,
	pc platform.Client,
	st *settings.Store,
	logger *zap.Logger,
) *PolicyService {
	return &PolicyService{
		rooms:    rooms,
		life:     life,
		claims:   claims,
		platform: pc,
		settings: st,
		logger:   logger,
	}
}

// HandleAction authorizes and executes one decoded action, then replies to
// the interaction with the outcome. The returned error is the execution
// error; the acknowledgement itself is best-effort.
func (s *PolicyService) HandleAction(ctx context.Context, action model.Action) error {
	var reply string
	var err error

	switch action.Domain {
	case model.DomainRoom:
		reply, err = s.handleRoomAction(ctx, action)
	case model.DomainRequest:
		reply, err = s.handleRequestAction(ctx, action)
	default:
		err = apperrors.New(apperrors.KindInvalidInput, "unknown action domain")
	}

	if err != nil {
		reply = "❌ " + apperrors.GetMessage(err)
		s.logger.Info("Action rejected",
			zap.String("domain", string(action.Domain)),
			zap.String("actor_id", action.ActorID),
			zap.String("target_id", action.TargetID),
			zap.Error(err),
		)
	}
	if action.InteractionID != "" {
		if ackErr := s.platform.RespondInteraction(ctx, action.InteractionID, reply); ackErr != nil {
			s.logger.Warn("Failed to acknowledge interaction",
				zap.String("interaction_id", action.InteractionID),
				zap.Error(ackErr),
			)
		}
	}
	return err
}

func (s *PolicyService) handleRoomAction(ctx context.Context, action model.Action) (string, error) {
	st := s.settings.Snapshot()
	if !st.Systems.Rooms {
		return "", apperrors.ErrSystemDisabled
	}

	// Ownership is checked against current registry state, not the panel the
	// button was pressed on: a transfer between press and delivery must deny
	// the old owner.
	room, ok := s.rooms.Get(action.TargetID)
	if !ok {
		return "", apperrors.ErrRoomNotFound
	}
	if room.OwnerID != action.ActorID {
		return "", apperrors.ErrNotOwner
	}

	switch action.RoomOp {
	case model.RoomOpLock:
		return s.life.ToggleLock(ctx, action.TargetID)
	case model.RoomOpTrust:
		target, err := requireField(action.Fields, "member_id")
		if err != nil {
			return "", err
		}
		return s.life.Trust(ctx, action.TargetID, target)
	case model.RoomOpBlock:
		target, err := requireField(action.Fields, "member_id")
		if err != nil {
			return "", err
		}
		return s.life.Block(ctx, action.TargetID, target)
	case model.RoomOpDisconnect:
		target, err := requireField(action.Fields, "member_id")
		if err != nil {
			return "", err
		}
		return s.life.Disconnect(ctx, action.TargetID, target)
	case model.RoomOpLimit:
		raw, err := requireField(action.Fields, "limit")
		if err != nil {
			return "", err
		}
		limit, convErr := strconv.Atoi(raw)
		if convErr != nil {
			return "", apperrors.ErrInvalidLimit
		}
		return s.life.SetLimit(ctx, action.TargetID, limit)
	case model.RoomOpRename:
		name, err := requireField(action.Fields, "name")
		if err != nil {
			return "", err
		}
		return s.life.Rename(ctx, action.TargetID, name)
	default:
		return "", apperrors.New(apperrors.KindInvalidInput, "unknown room action")
	}
}

func (s *PolicyService) handleRequestAction(ctx context.Context, action model.Action) (string, error) {
	st := s.settings.Snapshot()
	if !st.Systems.Requests {
		return "", apperrors.ErrSystemDisabled
	}

	privileged, err := s.isPrivileged(ctx, action.ActorID, st.Requests.PrivilegedRoleIDs)
	if err != nil {
		return "", err
	}
	if !privileged {
		return "", apperrors.ErrNotPrivileged
	}

	switch action.RequestOp {
	case model.RequestOpClaim:
		return s.claims.Claim(ctx, action.TargetID, action.ActorID)
	case model.RequestOpDispose:
		return s.claims.Dispose(ctx, action.TargetID, action.ActorID, action.OutcomeKey)
	default:
		return "", apperrors.New(apperrors.KindInvalidInput, "unknown request action")
	}
}

func (s *PolicyService) isPrivileged(ctx context.Context, identityID string, roleIDs []string) (bool, error) {
	for _, roleID := range roleIDs {
		has, err := s.platform.MemberHasRole(ctx, identityID, roleID)
		if err != nil {
			return false, apperrors.PlatformCall(err, "MemberHasRole")
		}
		if has {
			return true, nil
		}
	}
	return false, nil
}

func requireField(fields map[string]string, key string) (string, error) {
	val := strings.TrimSpace(fields[key])
	if val == "" {
		return "", apperrors.New(apperrors.KindInvalidInput, "missing field: "+key)
	}
	return val, nil
}
