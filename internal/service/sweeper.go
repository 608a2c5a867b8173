package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/go-warden/voice/internal/platform"
	"github.com/go-warden/voice/internal/registry"
	"github.com/go-warden/voice/internal/settings"
)

// Sweeper reconciles registry state against the platform. It is the backstop
// for every partial failure elsewhere: rooms left behind by a crashed create,
// registry entries whose platform resource vanished, and requests whose
// requester silently disappeared all converge here. Run is invoked after each
// presence event and is safe to call concurrently with the event handlers.
type Sweeper struct {
	rooms    *registry.RoomRegistry
	requests *registry.RequestRegistry
	life     *LifecycleService
	claims   *ClaimService
	platform platform.Client
	settings *settings.Store
	logger   *zap.Logger
}

func NewSweeper(
	rooms *registry.RoomRegistry,
	requests *registry.RequestRegistry,
	life *LifecycleService,
	claims *ClaimService,
	pc platform.Client,
	st *settings.Store,
	logger *zap.Logger,
) *Sweeper {
	return &Sweeper{
		rooms:    rooms,
		requests: requests,
		life:     life,
		claims:   claims,
		platform: pc,
		settings: st,
		logger:   logger,
	}
}

// Run performs one full reconciliation pass.
func (s *Sweeper) Run(ctx context.Context) {
	st := s.settings.Snapshot()
	if st.Systems.Rooms {
		s.sweepRooms(ctx, st)
	}
	if st.Systems.Requests {
		s.sweepRequests(ctx, st)
	}
}

func (s *Sweeper) sweepRooms(ctx context.Context, st settings.Settings) {
	if st.Rooms.CategoryID == "" {
		return
	}

	live, err := s.platform.RoomsInCategory(ctx, st.Rooms.CategoryID)
	if err != nil {
		s.logger.Warn("Failed to list room category", zap.Error(err))
		return
	}

	onPlatform := make(map[string]bool, len(live))
	for _, roomID := range live {
		onPlatform[roomID] = true
		if roomID == st.Rooms.SpawnerRoomID {
			continue
		}
		if s.rooms.Contains(roomID) {
			if err := s.life.CheckOccupancy(ctx, roomID); err != nil {
				s.logger.Warn("Occupancy check failed during sweep",
					zap.String("room_id", roomID),
					zap.Error(err),
				)
			}
			continue
		}
		// Untracked room in our category, likely left behind by a crash.
		// Delete only when empty; an occupied room may be legitimate.
		s.reapOrphan(ctx, roomID)
	}

	// Registry entries whose platform resource vanished converge through the
	// occupancy check's not-found path.
	for _, room := range s.rooms.List() {
		if onPlatform[room.ID] {
			continue
		}
		if err := s.life.CheckOccupancy(ctx, room.ID); err != nil {
			s.logger.Warn("Failed to converge vanished room",
				zap.String("room_id", room.ID),
				zap.Error(err),
			)
		}
	}
}

func (s *Sweeper) sweepRequests(ctx context.Context, st settings.Settings) {
	// Resolution rooms in use must never be reaped as orphans.
	inUse := make(map[string]bool)
	for _, req := range s.requests.List() {
		if req.ResolutionRoomID != "" {
			inUse[req.ResolutionRoomID] = true
		}
	}

	if st.Requests.CategoryID != "" {
		live, err := s.platform.RoomsInCategory(ctx, st.Requests.CategoryID)
		if err != nil {
			s.logger.Warn("Failed to list request category", zap.Error(err))
		} else {
			for _, roomID := range live {
				if roomID == st.Requests.EntryRoomID || inUse[roomID] {
					continue
				}
				s.reapOrphan(ctx, roomID)
			}
		}
	}

	// An open request whose requester already left the entry room is stale:
	// the departure event was lost, so abandon it now.
	for _, req := range s.requests.List() {
		if req.ClaimantID != "" {
			continue
		}
		loc, err := s.platform.MemberRoom(ctx, req.RequesterID)
		if err == nil && loc == st.Requests.EntryRoomID {
			continue
		}
		if err != nil && !errors.Is(err, platform.ErrNotFound) {
			continue
		}
		if err := s.claims.OnRequestLeave(ctx, req.RequesterID); err != nil {
			s.logger.Warn("Failed to abandon stale request",
				zap.String("requester_id", req.RequesterID),
				zap.Error(err),
			)
		}
	}
}

func (s *Sweeper) reapOrphan(ctx context.Context, roomID string) {
	occupants, err := s.platform.RoomOccupants(ctx, roomID)
	if err != nil || len(occupants) > 0 {
		return
	}
	if err := s.platform.DeleteRoom(ctx, roomID, "orphaned room"); err != nil && !errors.Is(err, platform.ErrNotFound) {
		s.logger.Warn("Failed to delete orphaned room",
			zap.String("room_id", roomID),
			zap.Error(err),
		)
		return
	}
	s.logger.Info("Deleted orphaned room", zap.String("room_id", roomID))
}
