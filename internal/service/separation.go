package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/go-warden/voice/internal/model"
	"github.com/go-warden/voice/internal/platform"
	"github.com/go-warden/voice/internal/settings"
)

// SeparationStore reads separation pairs. Implemented by
// repository.SeparationRepository.
type SeparationStore interface {
	ListFor(ctx context.Context, identityID string) ([]*model.Separation, error)
}

// SeparationService enforces pairs that must not share a voice room. The
// joiner yields: whoever arrives second is disconnected.
type SeparationService struct {
	store    SeparationStore
	platform platform.Client
	settings *settings.Store
	notifier *Notifier
	logger   *zap.Logger
}

func NewSeparationService(store SeparationStore, pc platform.Client, st *settings.Store, notifier *Notifier, logger *zap.Logger) *SeparationService {
	return &SeparationService{
		store:    store,
		platform: pc,
		settings: st,
		notifier: notifier,
		logger:   logger,
	}
}

// OnJoin checks a join against the actor's separations and disconnects the
// joiner when a counterpart already occupies the room. Returns whether the
// join was rejected.
func (s *SeparationService) OnJoin(ctx context.Context, identityID, roomID string) (bool, error) {
	st := s.settings.Snapshot()
	if !st.Systems.Separations {
		return false, nil
	}

	seps, err := s.store.ListFor(ctx, identityID)
	if err != nil {
		s.logger.Error("Failed to load separations", zap.String("identity_id", identityID), zap.Error(err))
		return false, nil // fail open, presence handling continues
	}
	if len(seps) == 0 {
		return false, nil
	}

	occupants, err := s.platform.RoomOccupants(ctx, roomID)
	if err != nil {
		if errors.Is(err, platform.ErrNotFound) {
			return false, nil
		}
		s.logger.Warn("Failed to list occupants for separation check",
			zap.String("room_id", roomID),
			zap.Error(err),
		)
		return false, nil
	}

	present := make(map[string]bool, len(occupants))
	for _, occ := range occupants {
		present[occ] = true
	}

	for _, sep := range seps {
		other := sep.Counterpart(identityID)
		if other == "" || other == identityID || !present[other] {
			continue
		}
		if err := s.platform.DisconnectMember(ctx, identityID, "separation"); err != nil {
			s.logger.Error("Failed to disconnect separated member",
				zap.String("identity_id", identityID),
				zap.String("room_id", roomID),
				zap.Error(err),
			)
			return false, nil
		}
		s.notifier.Notify(ctx, st.Separations.LogChannelID, platform.MessageSpec{
			Title: "🚫 Separation Enforced",
			Body:  fmt.Sprintf("**Disconnected:** %s\n**Room:** %s\n**Counterpart present:** %s", identityID, roomID, other),
			Color: colorWarn,
		}, model.AuditSeparationHit, roomID, identityID, "counterpart="+other)
		s.logger.Info("Separation enforced",
			zap.String("identity_id", identityID),
			zap.String("counterpart", other),
			zap.String("room_id", roomID),
		)
		return true, nil
	}
	return false, nil
}
