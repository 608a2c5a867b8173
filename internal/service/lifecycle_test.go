package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	apperrors "github.com/go-warden/voice/internal/pkg/errors"
	"github.com/go-warden/voice/internal/platform"
	"github.com/go-warden/voice/internal/registry"
	"github.com/go-warden/voice/internal/settings"
)

const (
	testCategory = "cat-rooms"
	testSpawner  = "spawner"
	testBotID    = "bot"
)

func newTestSettings(t *testing.T) *settings.Store {
	t.Helper()
	store, err := settings.NewStore(filepath.Join(t.TempDir(), "settings.yaml"), zap.NewNop())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	_, err = store.Update(func(st *settings.Settings) {
		st.Rooms.SpawnerRoomID = testSpawner
		st.Rooms.CategoryID = testCategory
		st.Rooms.TagPalette = []string{"🎮"}
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	return store
}

func newTestLifecycle(t *testing.T) (*LifecycleService, *platform.Fake, *registry.RoomRegistry, *settings.Store) {
	t.Helper()
	fake := platform.NewFake()
	fake.SeedRoom(testSpawner, "")
	rooms := registry.NewRoomRegistry()
	annotations := registry.NewAnnotationTracker()
	store := newTestSettings(t)
	notifier := NewNotifier(fake, nil, nil, zap.NewNop())
	svc := NewLifecycleService(rooms, annotations, fake, store, notifier, testBotID, zap.NewNop())
	return svc, fake, rooms, store
}

func TestOnSpawnerEntryCreatesRoom(t *testing.T) {
	svc, fake, rooms, _ := newTestLifecycle(t)
	ctx := context.Background()
	fake.SeedMember("u1", testSpawner, "Alice")

	if err := svc.OnSpawnerEntry(ctx, "u1"); err != nil {
		t.Fatalf("OnSpawnerEntry: %v", err)
	}

	room, ok := rooms.OwnedBy("u1")
	if !ok {
		t.Fatal("expected a registered room owned by u1")
	}
	if !fake.RoomExists(room) {
		t.Fatalf("platform room %s does not exist", room)
	}

	loc, err := fake.MemberRoom(ctx, "u1")
	if err != nil || loc != room {
		t.Fatalf("owner not moved into %s, got %q err %v", room, loc, err)
	}
	if got := fake.Label("u1"); got != "🎮 Alice" {
		t.Fatalf("owner label = %q, want tagged label", got)
	}

	// Panel lives in the room itself.
	if n := fake.MessageCount(room); n != 1 {
		t.Fatalf("panel message count = %d, want 1", n)
	}

	if _, ok := fake.GrantFor(room, "u1"); !ok {
		t.Error("missing owner grant")
	}
	if _, ok := fake.GrantFor(room, platform.EveryoneID); !ok {
		t.Error("missing everyone grant")
	}
	if _, ok := fake.GrantFor(room, testBotID); !ok {
		t.Error("missing bot grant")
	}
}

func TestOnSpawnerEntryDuplicateSuppressed(t *testing.T) {
	svc, fake, _, _ := newTestLifecycle(t)
	ctx := context.Background()
	fake.SeedMember("u1", testSpawner, "Alice")

	if err := svc.OnSpawnerEntry(ctx, "u1"); err != nil {
		t.Fatalf("first entry: %v", err)
	}
	if err := svc.OnSpawnerEntry(ctx, "u1"); err != nil {
		t.Fatalf("second entry: %v", err)
	}
	if n := fake.CallCount("CreateRoom"); n != 1 {
		t.Fatalf("CreateRoom called %d times, want 1", n)
	}
}

func TestOnSpawnerEntrySystemDisabled(t *testing.T) {
	svc, fake, _, store := newTestLifecycle(t)
	if _, err := store.SetSystemEnabled("rooms", false); err != nil {
		t.Fatalf("SetSystemEnabled: %v", err)
	}
	fake.SeedMember("u1", testSpawner, "Alice")

	if err := svc.OnSpawnerEntry(context.Background(), "u1"); err != nil {
		t.Fatalf("OnSpawnerEntry: %v", err)
	}
	if n := fake.CallCount("CreateRoom"); n != 0 {
		t.Fatalf("CreateRoom called %d times while disabled", n)
	}
}

func TestOnSpawnerEntryCreateFailure(t *testing.T) {
	svc, fake, rooms, _ := newTestLifecycle(t)
	fake.SeedMember("u1", testSpawner, "Alice")
	fake.FailNext("CreateRoom", errors.New("rate limited"))

	err := svc.OnSpawnerEntry(context.Background(), "u1")
	if !errors.Is(err, apperrors.ErrPlatformCall) {
		t.Fatalf("err = %v, want platform call failure", err)
	}
	if rooms.Len() != 0 {
		t.Fatal("registry should be empty after failed create")
	}
	if got := fake.Label("u1"); got != "Alice" {
		t.Fatalf("label = %q, should be untouched after failed create", got)
	}
}

func TestOnMemberJoinTagsLabel(t *testing.T) {
	svc, fake, rooms, _ := newTestLifecycle(t)
	ctx := context.Background()
	fake.SeedMember("u1", testSpawner, "Alice")
	if err := svc.OnSpawnerEntry(ctx, "u1"); err != nil {
		t.Fatalf("OnSpawnerEntry: %v", err)
	}
	room, _ := rooms.OwnedBy("u1")

	fake.SeedMember("u2", room, "Bob")
	if err := svc.OnMemberJoin(ctx, "u2", room); err != nil {
		t.Fatalf("OnMemberJoin: %v", err)
	}
	if got := fake.Label("u2"); got != "🎮 Bob" {
		t.Fatalf("label = %q, want tagged", got)
	}
}

func TestOnMemberLeaveRestoresLabel(t *testing.T) {
	svc, fake, rooms, _ := newTestLifecycle(t)
	ctx := context.Background()
	fake.SeedMember("u1", testSpawner, "Alice")
	if err := svc.OnSpawnerEntry(ctx, "u1"); err != nil {
		t.Fatalf("OnSpawnerEntry: %v", err)
	}
	room, _ := rooms.OwnedBy("u1")

	fake.SeedMember("u2", room, "Bob")
	if err := svc.OnMemberJoin(ctx, "u2", room); err != nil {
		t.Fatalf("OnMemberJoin: %v", err)
	}

	fake.RemoveMember("u2")
	if err := svc.OnMemberLeave(ctx, "u2", room); err != nil {
		t.Fatalf("OnMemberLeave: %v", err)
	}
	if got := fake.Label("u2"); got != "Bob" {
		t.Fatalf("label = %q, want original restored", got)
	}
}

func TestOnMemberLeaveTransfersOwnership(t *testing.T) {
	svc, fake, rooms, _ := newTestLifecycle(t)
	ctx := context.Background()
	fake.SeedMember("u1", testSpawner, "Alice")
	if err := svc.OnSpawnerEntry(ctx, "u1"); err != nil {
		t.Fatalf("OnSpawnerEntry: %v", err)
	}
	room, _ := rooms.OwnedBy("u1")

	fake.SeedMember("u2", room, "Bob")
	if err := svc.OnMemberJoin(ctx, "u2", room); err != nil {
		t.Fatalf("OnMemberJoin: %v", err)
	}

	fake.RemoveMember("u1")
	if err := svc.OnMemberLeave(ctx, "u1", room); err != nil {
		t.Fatalf("OnMemberLeave: %v", err)
	}

	got, ok := rooms.Get(room)
	if !ok {
		t.Fatal("room vanished from registry")
	}
	if got.OwnerID != "u2" {
		t.Fatalf("owner = %q, want u2", got.OwnerID)
	}
	if _, ok := fake.GrantFor(room, "u1"); ok {
		t.Error("old owner grant still present")
	}
	grant, ok := fake.GrantFor(room, "u2")
	if !ok {
		t.Fatal("new owner grant missing")
	}
	found := false
	for _, p := range grant.Allow {
		if p == platform.PermManageRoom {
			found = true
		}
	}
	if !found {
		t.Error("new owner grant lacks manage permission")
	}
}

func TestCheckOccupancyDeletesEmptyRoomOnce(t *testing.T) {
	svc, fake, rooms, _ := newTestLifecycle(t)
	ctx := context.Background()
	fake.SeedMember("u1", testSpawner, "Alice")
	if err := svc.OnSpawnerEntry(ctx, "u1"); err != nil {
		t.Fatalf("OnSpawnerEntry: %v", err)
	}
	room, _ := rooms.OwnedBy("u1")

	// Occupied room survives the check.
	if err := svc.CheckOccupancy(ctx, room); err != nil {
		t.Fatalf("CheckOccupancy occupied: %v", err)
	}
	if !fake.RoomExists(room) {
		t.Fatal("occupied room was deleted")
	}

	fake.RemoveMember("u1")
	if err := svc.CheckOccupancy(ctx, room); err != nil {
		t.Fatalf("CheckOccupancy empty: %v", err)
	}
	if fake.RoomExists(room) {
		t.Fatal("empty room not deleted")
	}
	if rooms.Len() != 0 {
		t.Fatal("registry entry not removed")
	}
	if n := fake.MessageCount(room); n != 0 {
		t.Fatalf("panel message count = %d after deletion, want 0", n)
	}

	// Redundant check converges without a second delete.
	if err := svc.CheckOccupancy(ctx, room); err != nil {
		t.Fatalf("redundant CheckOccupancy: %v", err)
	}
	if n := fake.CallCount("DeleteRoom"); n != 1 {
		t.Fatalf("DeleteRoom called %d times, want 1", n)
	}
}

func TestCheckOccupancyPlatformRoomVanished(t *testing.T) {
	svc, fake, rooms, _ := newTestLifecycle(t)
	ctx := context.Background()
	fake.SeedMember("u1", testSpawner, "Alice")
	if err := svc.OnSpawnerEntry(ctx, "u1"); err != nil {
		t.Fatalf("OnSpawnerEntry: %v", err)
	}
	room, _ := rooms.OwnedBy("u1")

	// Someone deleted the platform resource behind our back.
	if err := fake.DeleteRoom(ctx, room, "manual"); err != nil {
		t.Fatalf("DeleteRoom: %v", err)
	}
	if err := svc.CheckOccupancy(ctx, room); err != nil {
		t.Fatalf("CheckOccupancy: %v", err)
	}
	if rooms.Len() != 0 {
		t.Fatal("registry did not converge after platform deletion")
	}
}

func TestToggleLock(t *testing.T) {
	svc, fake, rooms, _ := newTestLifecycle(t)
	ctx := context.Background()
	fake.SeedMember("u1", testSpawner, "Alice")
	if err := svc.OnSpawnerEntry(ctx, "u1"); err != nil {
		t.Fatalf("OnSpawnerEntry: %v", err)
	}
	room, _ := rooms.OwnedBy("u1")

	if _, err := svc.Trust(ctx, room, "u2"); err != nil {
		t.Fatalf("Trust: %v", err)
	}

	if _, err := svc.ToggleLock(ctx, room); err != nil {
		t.Fatalf("lock: %v", err)
	}
	grant, _ := fake.GrantFor(room, platform.EveryoneID)
	if len(grant.Deny) == 0 || grant.Deny[0] != platform.PermConnect {
		t.Fatalf("everyone grant after lock = %+v, want connect deny", grant)
	}
	trusted, ok := fake.GrantFor(room, "u2")
	if !ok || len(trusted.Allow) == 0 {
		t.Fatal("trusted member lost access on lock")
	}
	got, _ := rooms.Get(room)
	if !got.Locked {
		t.Fatal("registry not marked locked")
	}

	if _, err := svc.ToggleLock(ctx, room); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	got, _ = rooms.Get(room)
	if got.Locked {
		t.Fatal("registry still locked after unlock")
	}
}

func TestTrustTwiceConflicts(t *testing.T) {
	svc, fake, rooms, _ := newTestLifecycle(t)
	ctx := context.Background()
	fake.SeedMember("u1", testSpawner, "Alice")
	if err := svc.OnSpawnerEntry(ctx, "u1"); err != nil {
		t.Fatalf("OnSpawnerEntry: %v", err)
	}
	room, _ := rooms.OwnedBy("u1")

	if _, err := svc.Trust(ctx, room, "u2"); err != nil {
		t.Fatalf("Trust: %v", err)
	}
	if _, err := svc.Trust(ctx, room, "u2"); !errors.Is(err, apperrors.ErrConflict) {
		t.Fatalf("second Trust err = %v, want conflict", err)
	}
}

func TestBlockDisconnectsPresentMember(t *testing.T) {
	svc, fake, rooms, _ := newTestLifecycle(t)
	ctx := context.Background()
	fake.SeedMember("u1", testSpawner, "Alice")
	if err := svc.OnSpawnerEntry(ctx, "u1"); err != nil {
		t.Fatalf("OnSpawnerEntry: %v", err)
	}
	room, _ := rooms.OwnedBy("u1")
	fake.SeedMember("u2", room, "Bob")

	if _, err := svc.Block(ctx, room, "u2"); err != nil {
		t.Fatalf("Block: %v", err)
	}
	if _, err := fake.MemberRoom(ctx, "u2"); !errors.Is(err, platform.ErrNotFound) {
		t.Fatal("blocked member still in a room")
	}
	grant, _ := fake.GrantFor(room, "u2")
	if len(grant.Deny) == 0 || grant.Deny[0] != platform.PermConnect {
		t.Fatalf("grant = %+v, want connect deny", grant)
	}
	got, _ := rooms.Get(room)
	if !got.IsBlocked("u2") {
		t.Fatal("registry does not record block")
	}
}

func TestDisconnectRequiresPresence(t *testing.T) {
	svc, fake, rooms, _ := newTestLifecycle(t)
	ctx := context.Background()
	fake.SeedMember("u1", testSpawner, "Alice")
	if err := svc.OnSpawnerEntry(ctx, "u1"); err != nil {
		t.Fatalf("OnSpawnerEntry: %v", err)
	}
	room, _ := rooms.OwnedBy("u1")

	if _, err := svc.Disconnect(ctx, room, "u9"); apperrors.KindOf(err) != apperrors.KindNotFound {
		t.Fatalf("err = %v, want not found", err)
	}

	fake.SeedMember("u2", room, "Bob")
	if _, err := svc.Disconnect(ctx, room, "u2"); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if _, err := fake.MemberRoom(ctx, "u2"); !errors.Is(err, platform.ErrNotFound) {
		t.Fatal("member still present after disconnect")
	}
}

func TestSetLimitBounds(t *testing.T) {
	svc, fake, rooms, _ := newTestLifecycle(t)
	ctx := context.Background()
	fake.SeedMember("u1", testSpawner, "Alice")
	if err := svc.OnSpawnerEntry(ctx, "u1"); err != nil {
		t.Fatalf("OnSpawnerEntry: %v", err)
	}
	room, _ := rooms.OwnedBy("u1")

	for _, bad := range []int{-1, 100} {
		if _, err := svc.SetLimit(ctx, room, bad); !errors.Is(err, apperrors.ErrInvalidLimit) {
			t.Fatalf("SetLimit(%d) err = %v, want invalid limit", bad, err)
		}
	}
	if _, err := svc.SetLimit(ctx, room, 5); err != nil {
		t.Fatalf("SetLimit: %v", err)
	}
	got, _ := rooms.Get(room)
	if got.UserLimit != 5 {
		t.Fatalf("registry limit = %d, want 5", got.UserLimit)
	}
}

func TestRenameKeepsTag(t *testing.T) {
	svc, fake, rooms, _ := newTestLifecycle(t)
	ctx := context.Background()
	fake.SeedMember("u1", testSpawner, "Alice")
	if err := svc.OnSpawnerEntry(ctx, "u1"); err != nil {
		t.Fatalf("OnSpawnerEntry: %v", err)
	}
	room, _ := rooms.OwnedBy("u1")

	msg, err := svc.Rename(ctx, room, "late night")
	if err != nil {
		t.Fatalf("Rename: %v", err)
	}
	want := "🎮 late night"
	if msg != "✅ Room renamed to: "+want {
		t.Fatalf("reply = %q", msg)
	}

	if _, err := svc.Rename(ctx, room, "   "); apperrors.KindOf(err) != apperrors.KindInvalidInput {
		t.Fatalf("blank rename err = %v, want invalid input", err)
	}
}
