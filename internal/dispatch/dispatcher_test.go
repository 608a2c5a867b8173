package dispatch

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/go-warden/voice/internal/model"
	"github.com/go-warden/voice/internal/platform"
	"github.com/go-warden/voice/internal/registry"
	"github.com/go-warden/voice/internal/service"
	"github.com/go-warden/voice/internal/settings"
)

const (
	spawnerRoom = "spawner"
	roomCat     = "cat-rooms"
	entryRoom   = "entry"
	reqCat      = "cat-requests"
	reqLog      = "req-log"
	staffRole   = "role-staff"
	botID       = "bot"
)

type fixture struct {
	dispatcher *Dispatcher
	fake       *platform.Fake
	rooms      *registry.RoomRegistry
	requests   *registry.RequestRegistry
	seps       *sepStore
}

type sepStore struct {
	pairs []*model.Separation
}

func (s *sepStore) ListFor(ctx context.Context, identityID string) ([]*model.Separation, error) {
	var out []*model.Separation
	for _, p := range s.pairs {
		if p.Involves(identityID) {
			out = append(out, p)
		}
	}
	return out, nil
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fake := platform.NewFake()
	fake.SeedRoom(spawnerRoom, roomCat)
	fake.SeedRoom(entryRoom, reqCat)
	fake.SeedRoom(reqLog, "")

	store, err := settings.NewStore(filepath.Join(t.TempDir(), "settings.yaml"), zap.NewNop())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	_, err = store.Update(func(st *settings.Settings) {
		st.Rooms.SpawnerRoomID = spawnerRoom
		st.Rooms.CategoryID = roomCat
		st.Rooms.TagPalette = []string{"🎮"}
		st.Requests.EntryRoomID = entryRoom
		st.Requests.CategoryID = reqCat
		st.Requests.LogChannelID = reqLog
		st.Requests.PrivilegedRoleIDs = []string{staffRole}
		st.Requests.Outcomes = []settings.Outcome{{Key: "alpha", Label: "Alpha", RoleID: "role-a"}}
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	rooms := registry.NewRoomRegistry()
	requests := registry.NewRequestRegistry()
	seps := &sepStore{}
	logger := zap.NewNop()
	notifier := service.NewNotifier(fake, nil, nil, logger)
	life := service.NewLifecycleService(rooms, registry.NewAnnotationTracker(), fake, store, notifier, botID, logger)
	claims := service.NewClaimService(requests, fake, store, notifier, botID, logger)
	separations := service.NewSeparationService(seps, fake, store, notifier, logger)
	policy := service.NewPolicyService(rooms, life, claims, fake, store, logger)
	sweeper := service.NewSweeper(rooms, requests, life, claims, fake, store, logger)

	d := NewDispatcher(life, claims, separations, policy, sweeper,
		NewMemoryDeduper(time.Minute), fake, store, logger)
	return &fixture{dispatcher: d, fake: fake, rooms: rooms, requests: requests, seps: seps}
}

func TestPresenceSpawnerEntryCreatesRoom(t *testing.T) {
	f := newFixture(t)
	f.fake.SeedMember("u1", spawnerRoom, "Alice")

	f.dispatcher.HandlePresence(context.Background(), &model.PresenceEvent{
		EventID: "e1", IdentityID: "u1", ToRoomID: spawnerRoom,
	})

	if _, ok := f.rooms.OwnedBy("u1"); !ok {
		t.Fatal("no room created for spawner entry")
	}
}

func TestPresenceDuplicateEventDropped(t *testing.T) {
	f := newFixture(t)
	f.fake.SeedMember("u1", spawnerRoom, "Alice")
	ev := &model.PresenceEvent{EventID: "e1", IdentityID: "u1", ToRoomID: spawnerRoom}

	f.dispatcher.HandlePresence(context.Background(), ev)
	f.dispatcher.HandlePresence(context.Background(), ev)

	if n := f.fake.CallCount("CreateRoom"); n != 1 {
		t.Fatalf("CreateRoom called %d times, want 1", n)
	}
}

func TestPresenceRoomHopRestoresThenRetags(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fake.SeedMember("u1", spawnerRoom, "Alice")
	f.dispatcher.HandlePresence(ctx, &model.PresenceEvent{EventID: "e1", IdentityID: "u1", ToRoomID: spawnerRoom})
	roomA, _ := f.rooms.OwnedBy("u1")

	f.fake.SeedMember("u2", spawnerRoom, "Bob")
	f.dispatcher.HandlePresence(ctx, &model.PresenceEvent{EventID: "e2", IdentityID: "u2", ToRoomID: spawnerRoom})
	roomB, _ := f.rooms.OwnedBy("u2")

	// u1 hops from their room into u2's: departure handled before arrival, so
	// the tag never stacks.
	f.fake.SeedMember("u1", roomB, f.fake.Label("u1"))
	f.dispatcher.HandlePresence(ctx, &model.PresenceEvent{
		EventID: "e3", IdentityID: "u1", FromRoomID: roomA, ToRoomID: roomB,
	})

	if got := f.fake.Label("u1"); got != "🎮 Alice" {
		t.Fatalf("label = %q, want single tag", got)
	}
}

func TestPresenceLastLeaverTriggersDeletion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fake.SeedMember("u1", spawnerRoom, "Alice")
	f.dispatcher.HandlePresence(ctx, &model.PresenceEvent{EventID: "e1", IdentityID: "u1", ToRoomID: spawnerRoom})
	room, _ := f.rooms.OwnedBy("u1")

	f.fake.RemoveMember("u1")
	f.dispatcher.HandlePresence(ctx, &model.PresenceEvent{
		EventID: "e2", IdentityID: "u1", FromRoomID: room,
	})

	if f.fake.RoomExists(room) {
		t.Fatal("empty room survived the departure event")
	}
	if f.rooms.Len() != 0 {
		t.Fatal("registry entry not removed")
	}
}

func TestPresenceEntryRoomOpensAndAbandonsRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fake.SeedMember("u1", entryRoom, "Alice")

	f.dispatcher.HandlePresence(ctx, &model.PresenceEvent{EventID: "e1", IdentityID: "u1", ToRoomID: entryRoom})
	if _, ok := f.requests.Get("u1"); !ok {
		t.Fatal("request not opened")
	}

	f.fake.RemoveMember("u1")
	f.dispatcher.HandlePresence(ctx, &model.PresenceEvent{EventID: "e2", IdentityID: "u1", FromRoomID: entryRoom})
	if f.requests.Len() != 0 {
		t.Fatal("request not abandoned on departure")
	}
}

func TestPresenceSeparationRejectsJoin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fake.SeedMember("a", spawnerRoom, "A")
	f.dispatcher.HandlePresence(ctx, &model.PresenceEvent{EventID: "e1", IdentityID: "a", ToRoomID: spawnerRoom})
	room, _ := f.rooms.OwnedBy("a")

	f.seps.pairs = []*model.Separation{{ID: "s1", FirstID: "a", SecondID: "b"}}
	f.fake.SeedMember("b", room, "B")
	f.dispatcher.HandlePresence(ctx, &model.PresenceEvent{EventID: "e2", IdentityID: "b", ToRoomID: room})

	if _, err := f.fake.MemberRoom(ctx, "b"); err == nil {
		t.Fatal("separated joiner not disconnected")
	}
	if got := f.fake.Label("b"); got != "B" {
		t.Fatalf("label = %q, rejected joiner must not be tagged", got)
	}
}

func TestInteractionLockViaPanel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fake.SeedMember("u1", spawnerRoom, "Alice")
	f.dispatcher.HandlePresence(ctx, &model.PresenceEvent{EventID: "e1", IdentityID: "u1", ToRoomID: spawnerRoom})
	room, _ := f.rooms.OwnedBy("u1")

	ev := &model.InteractionEvent{
		EventID:       "i1",
		InteractionID: "ix-1",
		Kind:          model.InteractionButton,
		ActionID:      "room_lock_" + room,
		ActorID:       "u1",
	}
	f.dispatcher.HandleInteraction(ctx, ev)

	got, _ := f.rooms.Get(room)
	if !got.Locked {
		t.Fatal("room not locked")
	}

	// Redelivered interaction is dropped before re-toggling.
	f.dispatcher.HandleInteraction(ctx, ev)
	got, _ = f.rooms.Get(room)
	if !got.Locked {
		t.Fatal("duplicate interaction re-toggled the lock")
	}
	if n := f.fake.CallCount("RespondInteraction"); n != 1 {
		t.Fatalf("RespondInteraction called %d times, want 1", n)
	}
}

func TestInteractionMalformedAcknowledged(t *testing.T) {
	f := newFixture(t)
	f.dispatcher.HandleInteraction(context.Background(), &model.InteractionEvent{
		EventID:       "i1",
		InteractionID: "ix-1",
		ActionID:      "mystery_button",
		ActorID:       "u1",
	})
	if n := f.fake.CallCount("RespondInteraction"); n != 1 {
		t.Fatalf("RespondInteraction called %d times, want 1", n)
	}
}
