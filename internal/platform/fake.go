package platform

import (
	"context"
	"fmt"
	"sync"
)

// Call is one recorded outbound call made against the Fake.
type Call struct {
	Op   string
	Args []string
}

type fakeRoom struct {
	name      string
	parentID  string
	limit     int
	grants    map[string]Grant
	occupants []string
}

var _ Client = (*Fake)(nil)

// Fake is an in-memory Client used by tests. It records every call, keeps a
// consistent model of rooms, members, labels, roles and messages, and can be
// told to fail the next call of a given operation.
type Fake struct {
	mu sync.Mutex

	rooms    map[string]*fakeRoom
	location map[string]string // identity -> room id
	labels   map[string]string
	roles    map[string]map[string]bool
	messages map[string]map[string]MessageSpec

	calls  []Call
	failOn map[string]error

	nextRoom int
	nextMsg  int
}

func NewFake() *Fake {
	return &Fake{
		rooms:    make(map[string]*fakeRoom),
		location: make(map[string]string),
		labels:   make(map[string]string),
		roles:    make(map[string]map[string]bool),
		messages: make(map[string]map[string]MessageSpec),
		failOn:   make(map[string]error),
	}
}

// FailNext makes the next call of op return err.
func (f *Fake) FailNext(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failOn[op] = err
}

func (f *Fake) record(op string, args ...string) error {
	f.calls = append(f.calls, Call{Op: op, Args: args})
	if err, ok := f.failOn[op]; ok {
		delete(f.failOn, op)
		return err
	}
	return nil
}

// Calls returns a copy of the recorded call log.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallCount counts recorded calls of one operation.
func (f *Fake) CallCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// --- seeding helpers (not recorded) ---

// SeedRoom registers a pre-existing platform room such as the spawner.
func (f *Fake) SeedRoom(roomID, parentID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rooms[roomID] = &fakeRoom{name: roomID, parentID: parentID, grants: make(map[string]Grant)}
}

// SeedMember places an identity in a room with a display label.
func (f *Fake) SeedMember(identityID, roomID, label string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.labels[identityID] = label
	if roomID != "" {
		f.placeLocked(identityID, roomID)
	}
}

// SeedRole gives an identity a role.
func (f *Fake) SeedRole(identityID, roleID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.roles[identityID] == nil {
		f.roles[identityID] = make(map[string]bool)
	}
	f.roles[identityID][roleID] = true
}

// RemoveMember takes an identity out of whatever room it occupies, simulating
// a platform-side departure the controller was not told about.
func (f *Fake) RemoveMember(identityID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evictLocked(identityID)
}

// RoomExists reports whether the platform resource exists.
func (f *Fake) RoomExists(roomID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.rooms[roomID]
	return ok
}

// GrantFor returns the recorded grant for a subject on a room.
func (f *Fake) GrantFor(roomID, subjectID string) (Grant, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[roomID]
	if !ok {
		return Grant{}, false
	}
	g, ok := room.grants[subjectID]
	return g, ok
}

// Label returns an identity's current display label.
func (f *Fake) Label(identityID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.labels[identityID]
}

// HasRole reports role membership without recording a call.
func (f *Fake) HasRole(identityID, roleID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.roles[identityID][roleID]
}

// MessageCount returns the number of live messages in a channel.
func (f *Fake) MessageCount(channelID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages[channelID])
}

// LastMessage returns an arbitrary live message in a channel; with one live
// message (the invariant the claim flow maintains) it is deterministic.
func (f *Fake) LastMessage(channelID string) (string, MessageSpec, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, spec := range f.messages[channelID] {
		return id, spec, true
	}
	return "", MessageSpec{}, false
}

func (f *Fake) placeLocked(identityID, roomID string) {
	f.evictLocked(identityID)
	if room, ok := f.rooms[roomID]; ok {
		room.occupants = append(room.occupants, identityID)
	}
	f.location[identityID] = roomID
}

func (f *Fake) evictLocked(identityID string) {
	if prev, ok := f.location[identityID]; ok {
		if room, ok := f.rooms[prev]; ok {
			for i, occ := range room.occupants {
				if occ == identityID {
					room.occupants = append(room.occupants[:i], room.occupants[i+1:]...)
					break
				}
			}
		}
	}
	delete(f.location, identityID)
}

// --- Client implementation ---

func (f *Fake) CreateRoom(ctx context.Context, p CreateRoomParams) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateRoom", p.Name, p.ParentID); err != nil {
		return "", err
	}
	f.nextRoom++
	id := fmt.Sprintf("room-%d", f.nextRoom)
	room := &fakeRoom{name: p.Name, parentID: p.ParentID, limit: p.UserLimit, grants: make(map[string]Grant)}
	for _, g := range p.Grants {
		room.grants[g.SubjectID] = g
	}
	f.rooms[id] = room
	return id, nil
}

func (f *Fake) DeleteRoom(ctx context.Context, roomID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DeleteRoom", roomID, reason); err != nil {
		return err
	}
	room, ok := f.rooms[roomID]
	if !ok {
		return ErrNotFound
	}
	for _, occ := range room.occupants {
		delete(f.location, occ)
	}
	delete(f.rooms, roomID)
	return nil
}

func (f *Fake) RenameRoom(ctx context.Context, roomID, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("RenameRoom", roomID, name); err != nil {
		return err
	}
	room, ok := f.rooms[roomID]
	if !ok {
		return ErrNotFound
	}
	room.name = name
	return nil
}

func (f *Fake) SetRoomLimit(ctx context.Context, roomID string, limit int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("SetRoomLimit", roomID, fmt.Sprintf("%d", limit)); err != nil {
		return err
	}
	room, ok := f.rooms[roomID]
	if !ok {
		return ErrNotFound
	}
	room.limit = limit
	return nil
}

func (f *Fake) EditPermission(ctx context.Context, roomID string, grant Grant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("EditPermission", roomID, grant.SubjectID); err != nil {
		return err
	}
	room, ok := f.rooms[roomID]
	if !ok {
		return ErrNotFound
	}
	if len(grant.Allow) == 0 && len(grant.Deny) == 0 {
		delete(room.grants, grant.SubjectID)
	} else {
		room.grants[grant.SubjectID] = grant
	}
	return nil
}

func (f *Fake) RoomOccupants(ctx context.Context, roomID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("RoomOccupants", roomID); err != nil {
		return nil, err
	}
	room, ok := f.rooms[roomID]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]string(nil), room.occupants...), nil
}

func (f *Fake) RoomsInCategory(ctx context.Context, categoryID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("RoomsInCategory", categoryID); err != nil {
		return nil, err
	}
	var out []string
	for id, room := range f.rooms {
		if room.parentID == categoryID {
			out = append(out, id)
		}
	}
	return out, nil
}

func (f *Fake) MoveMember(ctx context.Context, identityID, roomID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("MoveMember", identityID, roomID); err != nil {
		return err
	}
	if _, ok := f.rooms[roomID]; !ok {
		return ErrNotFound
	}
	f.placeLocked(identityID, roomID)
	return nil
}

func (f *Fake) DisconnectMember(ctx context.Context, identityID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DisconnectMember", identityID, reason); err != nil {
		return err
	}
	f.evictLocked(identityID)
	return nil
}

func (f *Fake) MemberRoom(ctx context.Context, identityID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("MemberRoom", identityID); err != nil {
		return "", err
	}
	room, ok := f.location[identityID]
	if !ok {
		return "", ErrNotFound
	}
	return room, nil
}

func (f *Fake) MemberLabel(ctx context.Context, identityID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("MemberLabel", identityID); err != nil {
		return "", err
	}
	label, ok := f.labels[identityID]
	if !ok {
		return "", ErrNotFound
	}
	return label, nil
}

func (f *Fake) SetMemberLabel(ctx context.Context, identityID, label string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("SetMemberLabel", identityID, label); err != nil {
		return err
	}
	f.labels[identityID] = label
	return nil
}

func (f *Fake) MemberHasRole(ctx context.Context, identityID, roleID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("MemberHasRole", identityID, roleID); err != nil {
		return false, err
	}
	return f.roles[identityID][roleID], nil
}

func (f *Fake) AssignRole(ctx context.Context, identityID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("AssignRole", identityID, roleID); err != nil {
		return err
	}
	if f.roles[identityID] == nil {
		f.roles[identityID] = make(map[string]bool)
	}
	f.roles[identityID][roleID] = true
	return nil
}

func (f *Fake) RevokeRole(ctx context.Context, identityID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("RevokeRole", identityID, roleID); err != nil {
		return err
	}
	delete(f.roles[identityID], roleID)
	return nil
}

func (f *Fake) SendMessage(ctx context.Context, channelID string, spec MessageSpec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("SendMessage", channelID, spec.Title); err != nil {
		return "", err
	}
	f.nextMsg++
	id := fmt.Sprintf("msg-%d", f.nextMsg)
	if f.messages[channelID] == nil {
		f.messages[channelID] = make(map[string]MessageSpec)
	}
	f.messages[channelID][id] = spec
	return id, nil
}

func (f *Fake) EditMessage(ctx context.Context, channelID, messageID string, spec MessageSpec) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("EditMessage", channelID, messageID); err != nil {
		return err
	}
	if _, ok := f.messages[channelID][messageID]; !ok {
		return ErrNotFound
	}
	f.messages[channelID][messageID] = spec
	return nil
}

func (f *Fake) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DeleteMessage", channelID, messageID); err != nil {
		return err
	}
	if _, ok := f.messages[channelID][messageID]; !ok {
		return ErrNotFound
	}
	delete(f.messages[channelID], messageID)
	return nil
}

func (f *Fake) RespondInteraction(ctx context.Context, interactionID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record("RespondInteraction", interactionID, content)
}
