package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/go-warden/voice/internal/model"
	apperrors "github.com/go-warden/voice/internal/pkg/errors"
	"github.com/go-warden/voice/internal/platform"
	"github.com/go-warden/voice/internal/registry"
	"github.com/go-warden/voice/internal/settings"
)

// ClaimService runs the claimable-request protocol: a requester entering the
// entry room opens a request, a privileged operator claims it (first writer
// wins), both meet in a private resolution room, and the claimant disposes it
// with exactly one outcome. The claim assignment happens in the registry
// before any platform call, so two racing claimants never both proceed.
type ClaimService struct {
	requests *registry.RequestRegistry
	platform platform.Client
	settings *settings.Store
	notifier *Notifier
	botID    string
	logger   *zap.Logger
}

func NewClaimService(
	requests *registry.RequestRegistry,
	pc platform.Client,
	st *settings.Store,
	notifier *Notifier,
	botID string,
	logger *zap.Logger,
) *ClaimService {
	return &ClaimService{
		requests: requests,
		platform: pc,
		settings: st,
		notifier: notifier,
		botID:    botID,
		logger:   logger,
	}
}

// OnRequestEntry opens a request for an identity arriving in the entry room.
// A requester with a live request keeps it; repeat entries are no-ops.
func (s *ClaimService) OnRequestEntry(ctx context.Context, requesterID string) error {
	st := s.settings.Snapshot()
	if !st.Systems.Requests {
		return nil
	}
	if st.Requests.LogChannelID == "" {
		s.logger.Warn("Request log channel not configured, skipping request")
		return nil
	}
	if _, exists := s.requests.Get(requesterID); exists {
		return nil
	}

	label := s.memberLabel(ctx, requesterID)
	msgID, err := s.platform.SendMessage(ctx, st.Requests.LogChannelID, platform.MessageSpec{
		Title: "📋 New Request",
		Body:  fmt.Sprintf("**Requester:** %s\nWaiting for an operator to claim.", label),
		Color: colorInfo,
		Buttons: []platform.Button{
			{ActionID: "request_claim_" + requesterID, Label: "Claim", Style: "primary"},
		},
	})
	if err != nil {
		return apperrors.PlatformCall(err, "SendMessage")
	}

	err = s.requests.Put(&model.PendingRequest{
		RequesterID:      requesterID,
		OriginRoomID:     st.Requests.EntryRoomID,
		MessageChannelID: st.Requests.LogChannelID,
		MessageID:        msgID,
		CreatedAt:        time.Now(),
	})
	if err != nil {
		// Lost a race with a concurrent entry event; drop our duplicate message.
		if delErr := s.platform.DeleteMessage(ctx, st.Requests.LogChannelID, msgID); delErr != nil && !errors.Is(delErr, platform.ErrNotFound) {
			s.logger.Warn("Failed to delete duplicate request message", zap.Error(delErr))
		}
		return nil
	}

	s.notifier.Notify(ctx, "", platform.MessageSpec{}, model.AuditRequestOpened, "", requesterID, "")
	s.logger.Info("Opened request", zap.String("requester_id", requesterID))
	return nil
}

// OnRequestLeave abandons the request when the requester leaves the entry
// room while the request is still open. A claimed request survives the
// departure: it must be disposed by the claimant.
func (s *ClaimService) OnRequestLeave(ctx context.Context, requesterID string) error {
	req, ok := s.requests.RemoveUnclaimed(requesterID)
	if !ok {
		return nil
	}
	if req.MessageID != "" {
		err := s.platform.DeleteMessage(ctx, req.MessageChannelID, req.MessageID)
		if err != nil && !errors.Is(err, platform.ErrNotFound) {
			s.logger.Warn("Failed to delete request message",
				zap.String("requester_id", requesterID),
				zap.Error(err),
			)
		}
	}
	s.notifier.Notify(ctx, "", platform.MessageSpec{}, model.AuditRequestGone, "", requesterID, "abandoned")
	s.logger.Info("Abandoned request", zap.String("requester_id", requesterID))
	return nil
}

// Claim assigns the request to claimantID, creates the private resolution
// room and moves both parties in. The registry assignment comes first; every
// later step is recoverable, so a partial failure leaves a claimed request
// the sweeper or a retried dispose can finish.
func (s *ClaimService) Claim(ctx context.Context, requesterID, claimantID string) (string, error) {
	st := s.settings.Snapshot()
	if !st.Systems.Requests {
		return "", apperrors.ErrSystemDisabled
	}

	// Claimant must be reachable in voice so the move below can land.
	if _, err := s.platform.MemberRoom(ctx, claimantID); err != nil {
		return "", apperrors.New(apperrors.KindInvalidInput, "join a voice room before claiming")
	}

	req, err := s.requests.Claim(requesterID, claimantID)
	if err != nil {
		return "", err
	}

	requesterLabel := s.memberLabel(ctx, requesterID)
	claimantLabel := s.memberLabel(ctx, claimantID)

	roomID, err := s.platform.CreateRoom(ctx, platform.CreateRoomParams{
		Name:     "📋 " + requesterLabel,
		ParentID: st.Requests.CategoryID,
		Grants: []platform.Grant{
			{SubjectID: platform.EveryoneID, Deny: []platform.Permission{platform.PermView, platform.PermConnect}},
			{SubjectID: requesterID, Allow: []platform.Permission{platform.PermView, platform.PermConnect, platform.PermSpeak}},
			{SubjectID: claimantID, Allow: []platform.Permission{platform.PermView, platform.PermConnect, platform.PermSpeak, platform.PermMoveMembers}},
			{SubjectID: s.botID, Allow: []platform.Permission{platform.PermView, platform.PermConnect, platform.PermManageRoom, platform.PermMoveMembers}},
		},
	})
	if err != nil {
		return "", apperrors.PlatformCall(err, "CreateRoom")
	}
	s.requests.SetResolutionRoom(requesterID, roomID)

	// Moves are best-effort: a party who stepped out of voice can still walk
	// into the resolution room on their own.
	if err := s.platform.MoveMember(ctx, requesterID, roomID); err != nil {
		s.logger.Warn("Failed to move requester",
			zap.String("requester_id", requesterID),
			zap.Error(err),
		)
	}
	if err := s.platform.MoveMember(ctx, claimantID, roomID); err != nil {
		s.logger.Warn("Failed to move claimant",
			zap.String("claimant_id", claimantID),
			zap.Error(err),
		)
	}

	s.replaceMessage(ctx, req, st, requesterID, requesterLabel, claimantLabel)

	s.notifier.Notify(ctx, "", platform.MessageSpec{}, model.AuditRequestClaim, roomID, requesterID, "claimant="+claimantID)
	s.logger.Info("Claimed request",
		zap.String("requester_id", requesterID),
		zap.String("claimant_id", claimantID),
		zap.String("room_id", roomID),
	)
	return fmt.Sprintf("✅ Claimed. Meet %s in the private room.", requesterLabel), nil
}

// replaceMessage swaps the open-request message for the claimed one carrying
// the disposition buttons. The old message is deleted only after the new one
// exists, so there is never a window with zero live messages.
func (s *ClaimService) replaceMessage(ctx context.Context, req *model.PendingRequest, st settings.Settings, requesterID, requesterLabel, claimantLabel string) {
	buttons := make([]platform.Button, 0, len(st.Requests.Outcomes))
	for _, o := range st.Requests.Outcomes {
		buttons = append(buttons, platform.Button{
			ActionID: "request_dispose_" + o.Key + "_" + requesterID,
			Label:    o.Label,
			Style:    "secondary",
		})
	}
	newID, err := s.platform.SendMessage(ctx, st.Requests.LogChannelID, platform.MessageSpec{
		Title: "📋 Request Claimed",
		Body:  fmt.Sprintf("**Requester:** %s\n**Claimed by:** %s", requesterLabel, claimantLabel),
		Color: colorClaimed,
		Buttons: buttons,
	})
	if err != nil {
		s.logger.Warn("Failed to post claimed message",
			zap.String("requester_id", requesterID),
			zap.Error(err),
		)
		return
	}
	if req.MessageID != "" {
		err := s.platform.DeleteMessage(ctx, req.MessageChannelID, req.MessageID)
		if err != nil && !errors.Is(err, platform.ErrNotFound) {
			s.logger.Warn("Failed to delete open-request message",
				zap.String("requester_id", requesterID),
				zap.Error(err),
			)
		}
	}
	s.requests.SetMessage(requesterID, st.Requests.LogChannelID, newID)
}

// Dispose closes a claimed request with one outcome: the outcome role is
// assigned exclusively (the other outcome roles are revoked first), the
// resolution room is torn down, and the live message becomes a terminal
// record with no buttons.
func (s *ClaimService) Dispose(ctx context.Context, requesterID, actorID, outcomeKey string) (string, error) {
	st := s.settings.Snapshot()
	if !st.Systems.Requests {
		return "", apperrors.ErrSystemDisabled
	}

	req, ok := s.requests.Get(requesterID)
	if !ok {
		return "", apperrors.ErrRequestNotFound
	}
	if req.ClaimantID != actorID {
		return "", apperrors.ErrNotClaimant
	}
	outcome, ok := st.Outcome(outcomeKey)
	if !ok {
		return "", apperrors.New(apperrors.KindInvalidInput, "unknown outcome: "+outcomeKey)
	}

	// Outcomes are mutually exclusive: strip the others before assigning.
	for _, o := range st.Requests.Outcomes {
		if o.Key == outcomeKey || o.RoleID == "" {
			continue
		}
		if err := s.platform.RevokeRole(ctx, requesterID, o.RoleID); err != nil {
			s.logger.Warn("Failed to revoke competing outcome role",
				zap.String("requester_id", requesterID),
				zap.String("role_id", o.RoleID),
				zap.Error(err),
			)
		}
	}
	if outcome.RoleID != "" {
		if err := s.platform.AssignRole(ctx, requesterID, outcome.RoleID); err != nil {
			return "", apperrors.PlatformCall(err, "AssignRole")
		}
	}

	if req.ResolutionRoomID != "" {
		err := s.platform.DeleteRoom(ctx, req.ResolutionRoomID, "request disposed")
		if err != nil && !errors.Is(err, platform.ErrNotFound) {
			s.logger.Warn("Failed to delete resolution room",
				zap.String("room_id", req.ResolutionRoomID),
				zap.Error(err),
			)
		}
	}

	if req.MessageID != "" {
		err := s.platform.EditMessage(ctx, req.MessageChannelID, req.MessageID, platform.MessageSpec{
			Title: "📋 Request Closed",
			Body: fmt.Sprintf("**Requester:** %s\n**Outcome:** %s\n**Closed by:** %s",
				requesterID, outcome.Label, actorID),
			Color: colorDisposed,
		})
		if err != nil && !errors.Is(err, platform.ErrNotFound) {
			s.logger.Warn("Failed to finalize request message",
				zap.String("requester_id", requesterID),
				zap.Error(err),
			)
		}
	}

	s.requests.Remove(requesterID)
	s.notifier.Notify(ctx, "", platform.MessageSpec{}, model.AuditRequestClosed, "", requesterID, "outcome="+outcomeKey)
	s.logger.Info("Disposed request",
		zap.String("requester_id", requesterID),
		zap.String("claimant_id", actorID),
		zap.String("outcome", outcomeKey),
	)
	return "✅ Request closed: " + outcome.Label, nil
}

func (s *ClaimService) memberLabel(ctx context.Context, identityID string) string {
	label, err := s.platform.MemberLabel(ctx, identityID)
	if err != nil || label == "" {
		return identityID
	}
	return label
}
