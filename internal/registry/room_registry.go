// Package registry holds the process-wide mutable state of the controller:
// managed rooms, pending requests and identity annotations. Every mutation
// goes through these types so the lifecycle invariants (delete-once,
// claim-once, one request per requester) are enforced at a single choke point.
package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/go-warden/voice/internal/model"
)

// RoomRegistry is the authoritative in-memory table of ephemeral rooms.
// Lookups return deep copies; callers must re-read before every external call
// rather than trusting an earlier snapshot.
type RoomRegistry struct {
	mu    sync.RWMutex
	rooms map[string]*model.Room
}

func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{rooms: make(map[string]*model.Room)}
}

// Put registers a newly created room. Returns false if the id is already
// registered (duplicate creation race lost).
func (r *RoomRegistry) Put(room *model.Room) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.rooms[room.ID]; exists {
		return false
	}
	if room.Trusted == nil {
		room.Trusted = make(map[string]bool)
	}
	if room.Blocked == nil {
		room.Blocked = make(map[string]bool)
	}
	if room.JoinedAt == nil {
		room.JoinedAt = make(map[string]time.Time)
	}
	r.rooms[room.ID] = room.Clone()
	return true
}

// Get returns a snapshot of a managed room.
func (r *RoomRegistry) Get(roomID string) (*model.Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return nil, false
	}
	return room.Clone(), true
}

// Contains reports whether the room is managed.
func (r *RoomRegistry) Contains(roomID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[roomID]
	return ok
}

// OwnedBy returns the id of the room currently owned by the identity, if any.
func (r *RoomRegistry) OwnedBy(ownerID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, room := range r.rooms {
		if room.OwnerID == ownerID {
			return id, true
		}
	}
	return "", false
}

// Remove deletes the entry. Returns true only for the first remover, which
// makes redundant occupancy checks emit exactly one deletion notification.
func (r *RoomRegistry) Remove(roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[roomID]; !ok {
		return false
	}
	delete(r.rooms, roomID)
	return true
}

// mutate applies fn to the live entry. Mutations of removed rooms are no-ops.
func (r *RoomRegistry) mutate(roomID string, fn func(*model.Room)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return false
	}
	fn(room)
	return true
}

// SetLocked toggles the default-deny-connect state.
func (r *RoomRegistry) SetLocked(roomID string, locked bool) bool {
	return r.mutate(roomID, func(room *model.Room) { room.Locked = locked })
}

// Trust adds an explicit allow override. Returns false if the room is gone.
func (r *RoomRegistry) Trust(roomID, identityID string) bool {
	return r.mutate(roomID, func(room *model.Room) { room.Trusted[identityID] = true })
}

// Block adds an explicit deny override and drops any trust.
func (r *RoomRegistry) Block(roomID, identityID string) bool {
	return r.mutate(roomID, func(room *model.Room) {
		room.Blocked[identityID] = true
		delete(room.Trusted, identityID)
	})
}

// SetUserLimit stores the occupancy limit (0 = unlimited).
func (r *RoomRegistry) SetUserLimit(roomID string, limit int) bool {
	return r.mutate(roomID, func(room *model.Room) { room.UserLimit = limit })
}

// SetOwner reassigns ownership.
func (r *RoomRegistry) SetOwner(roomID, ownerID string) bool {
	return r.mutate(roomID, func(room *model.Room) { room.OwnerID = ownerID })
}

// SetPanel records the control-surface message reference.
func (r *RoomRegistry) SetPanel(roomID, channelID, messageID string) bool {
	return r.mutate(roomID, func(room *model.Room) {
		room.PanelChannelID = channelID
		room.PanelMessageID = messageID
	})
}

// RecordJoin stamps the occupant's join time if not already present, so
// re-joins within the room's life keep the original order.
func (r *RoomRegistry) RecordJoin(roomID, identityID string, at time.Time) bool {
	return r.mutate(roomID, func(room *model.Room) {
		if _, ok := room.JoinedAt[identityID]; !ok {
			room.JoinedAt[identityID] = at
		}
	})
}

// RecordLeave forgets the occupant's join time.
func (r *RoomRegistry) RecordLeave(roomID, identityID string) bool {
	return r.mutate(roomID, func(room *model.Room) {
		delete(room.JoinedAt, identityID)
	})
}

// NextOwner picks the ownership-transfer target among the given occupants:
// earliest tracked join time wins, identity id as the total-order tie break.
// Occupants with no tracked join time sort after tracked ones, in the order
// the platform listed them. Returns "" when no candidate remains.
func (r *RoomRegistry) NextOwner(roomID string, occupants []string, exclude string) string {
	r.mu.RLock()
	room, ok := r.rooms[roomID]
	var joined map[string]time.Time
	if ok {
		joined = make(map[string]time.Time, len(room.JoinedAt))
		for k, v := range room.JoinedAt {
			joined[k] = v
		}
	}
	r.mu.RUnlock()

	candidates := make([]string, 0, len(occupants))
	for _, occ := range occupants {
		if occ != exclude {
			candidates = append(candidates, occ)
		}
	}
	if len(candidates) == 0 {
		return ""
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		ti, iok := joined[candidates[i]]
		tj, jok := joined[candidates[j]]
		switch {
		case iok && jok:
			if ti.Equal(tj) {
				return candidates[i] < candidates[j]
			}
			return ti.Before(tj)
		case iok:
			return true
		case jok:
			return false
		default:
			return false // keep platform order for untracked occupants
		}
	})
	return candidates[0]
}

// List returns snapshots of all managed rooms.
func (r *RoomRegistry) List() []*model.Room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		out = append(out, room.Clone())
	}
	return out
}

// Len returns the number of managed rooms.
func (r *RoomRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
