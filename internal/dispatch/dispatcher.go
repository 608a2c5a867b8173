package dispatch

import (
	"context"

	"go.uber.org/zap"

	"github.com/go-warden/voice/internal/model"
	apperrors "github.com/go-warden/voice/internal/pkg/errors"
	"github.com/go-warden/voice/internal/platform"
	"github.com/go-warden/voice/internal/service"
	"github.com/go-warden/voice/internal/settings"
)

// Dispatcher routes deduplicated platform events into the services. Presence
// events are processed departure-first so an identity hopping between managed
// rooms has its label restored before the destination re-tags it, and every
// presence event is followed by a reconciliation sweep.
type Dispatcher struct {
	life        *service.LifecycleService
	claims      *service.ClaimService
	separations *service.SeparationService
	policy      *service.PolicyService
	sweeper     *service.Sweeper
	deduper     Deduper
	platform    platform.Client
	settings    *settings.Store
	logger      *zap.Logger
}

func NewDispatcher(
	life *service.LifecycleService,
	claims *service.ClaimService,
	separations *service.SeparationService,
	policy *service.PolicyService,
	sweeper *service.Sweeper,
	deduper Deduper,
	pc platform.Client,
	st *settings.Store,
	logger *zap.Logger,
) *Dispatcher {
	return &Dispatcher{
		life:        life,
		claims:      claims,
		separations: separations,
		policy:      policy,
		sweeper:     sweeper,
		deduper:     deduper,
		platform:    pc,
		settings:    st,
		logger:      logger,
	}
}

// Run consumes events until the context is cancelled or both channels close.
func (d *Dispatcher) Run(ctx context.Context, presence <-chan *model.PresenceEvent, interactions <-chan *model.InteractionEvent) {
	for presence != nil || interactions != nil {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-presence:
			if !ok {
				presence = nil
				continue
			}
			d.HandlePresence(ctx, ev)
		case ev, ok := <-interactions:
			if !ok {
				interactions = nil
				continue
			}
			d.HandleInteraction(ctx, ev)
		}
	}
}

// HandlePresence processes one voice-presence transition.
func (d *Dispatcher) HandlePresence(ctx context.Context, ev *model.PresenceEvent) {
	if d.deduper.Seen(ctx, ev.EventID) {
		d.logger.Debug("Dropped duplicate presence event", zap.String("event_id", ev.EventID))
		return
	}
	st := d.settings.Snapshot()

	if ev.FromRoomID != "" {
		if ev.FromRoomID == st.Requests.EntryRoomID {
			if err := d.claims.OnRequestLeave(ctx, ev.IdentityID); err != nil {
				d.logger.Error("Request leave handling failed",
					zap.String("identity_id", ev.IdentityID),
					zap.Error(err),
				)
			}
		} else if err := d.life.OnMemberLeave(ctx, ev.IdentityID, ev.FromRoomID); err != nil {
			d.logger.Error("Member leave handling failed",
				zap.String("identity_id", ev.IdentityID),
				zap.String("room_id", ev.FromRoomID),
				zap.Error(err),
			)
		}
	}

	if ev.ToRoomID != "" {
		d.handleJoin(ctx, st, ev)
	}

	// Every presence change doubles as a reconciliation trigger.
	d.sweeper.Run(ctx)
}

func (d *Dispatcher) handleJoin(ctx context.Context, st settings.Settings, ev *model.PresenceEvent) {
	rejected, err := d.separations.OnJoin(ctx, ev.IdentityID, ev.ToRoomID)
	if err != nil {
		d.logger.Error("Separation check failed",
			zap.String("identity_id", ev.IdentityID),
			zap.Error(err),
		)
	}
	if rejected {
		return
	}

	switch ev.ToRoomID {
	case st.Rooms.SpawnerRoomID:
		err = d.life.OnSpawnerEntry(ctx, ev.IdentityID)
	case st.Requests.EntryRoomID:
		err = d.claims.OnRequestEntry(ctx, ev.IdentityID)
	default:
		err = d.life.OnMemberJoin(ctx, ev.IdentityID, ev.ToRoomID)
	}
	if err != nil {
		d.logger.Error("Join handling failed",
			zap.String("identity_id", ev.IdentityID),
			zap.String("room_id", ev.ToRoomID),
			zap.Error(err),
		)
	}
}

// HandleInteraction decodes and executes one interaction. Malformed action
// ids are acknowledged with an error instead of leaving the actor hanging.
func (d *Dispatcher) HandleInteraction(ctx context.Context, ev *model.InteractionEvent) {
	if d.deduper.Seen(ctx, ev.EventID) {
		d.logger.Debug("Dropped duplicate interaction", zap.String("event_id", ev.EventID))
		return
	}

	action, err := DecodeAction(ev)
	if err != nil {
		d.logger.Warn("Undecodable interaction",
			zap.String("action_id", ev.ActionID),
			zap.Error(err),
		)
		if ackErr := d.platform.RespondInteraction(ctx, ev.InteractionID, "❌ "+apperrors.GetMessage(err)); ackErr != nil {
			d.logger.Warn("Failed to acknowledge interaction", zap.Error(ackErr))
		}
		return
	}

	// Execution errors are already acknowledged and logged by the policy
	// gateway; nothing more to do here.
	_ = d.policy.HandleAction(ctx, action)
}
