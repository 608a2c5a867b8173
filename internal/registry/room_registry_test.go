package registry

import (
	"testing"
	"time"

	"github.com/go-warden/voice/internal/model"
)

func newRoom(id, owner string) *model.Room {
	return &model.Room{
		ID:        id,
		OwnerID:   owner,
		Tag:       "🎮",
		CreatedAt: time.Now(),
	}
}

func TestRoomRegistry_PutAndGet(t *testing.T) {
	reg := NewRoomRegistry()

	if !reg.Put(newRoom("r1", "alice")) {
		t.Fatal("Expected first Put to succeed")
	}
	if reg.Put(newRoom("r1", "bob")) {
		t.Error("Expected duplicate Put to be rejected")
	}

	room, ok := reg.Get("r1")
	if !ok {
		t.Fatal("Expected room to be found")
	}
	if room.OwnerID != "alice" {
		t.Errorf("Expected owner 'alice', got '%s'", room.OwnerID)
	}
}

func TestRoomRegistry_SnapshotIsolation(t *testing.T) {
	reg := NewRoomRegistry()
	reg.Put(newRoom("r1", "alice"))

	snap, _ := reg.Get("r1")
	snap.Trusted["mallory"] = true
	snap.OwnerID = "mallory"

	fresh, _ := reg.Get("r1")
	if fresh.IsTrusted("mallory") {
		t.Error("Snapshot mutation leaked into the registry")
	}
	if fresh.OwnerID != "alice" {
		t.Error("Snapshot owner mutation leaked into the registry")
	}
}

func TestRoomRegistry_RemoveOnce(t *testing.T) {
	reg := NewRoomRegistry()
	reg.Put(newRoom("r1", "alice"))

	if !reg.Remove("r1") {
		t.Fatal("Expected first Remove to report removal")
	}
	if reg.Remove("r1") {
		t.Error("Expected second Remove to be a no-op")
	}
	if reg.Contains("r1") {
		t.Error("Expected room to be gone")
	}
}

func TestRoomRegistry_MutateDeletedRoomIsNoOp(t *testing.T) {
	reg := NewRoomRegistry()
	reg.Put(newRoom("r1", "alice"))
	reg.Remove("r1")

	if reg.SetLocked("r1", true) {
		t.Error("Expected mutation of removed room to report failure")
	}
	if reg.Trust("r1", "bob") {
		t.Error("Expected Trust on removed room to report failure")
	}
}

func TestRoomRegistry_BlockDropsTrust(t *testing.T) {
	reg := NewRoomRegistry()
	reg.Put(newRoom("r1", "alice"))

	reg.Trust("r1", "bob")
	reg.Block("r1", "bob")

	room, _ := reg.Get("r1")
	if room.IsTrusted("bob") {
		t.Error("Expected block to drop trust")
	}
	if !room.IsBlocked("bob") {
		t.Error("Expected bob to be blocked")
	}
}

func TestRoomRegistry_NextOwnerEarliestJoin(t *testing.T) {
	reg := NewRoomRegistry()
	reg.Put(newRoom("r1", "alice"))

	base := time.Now()
	reg.RecordJoin("r1", "alice", base)
	reg.RecordJoin("r1", "bob", base.Add(time.Second))
	reg.RecordJoin("r1", "carol", base.Add(2*time.Second))

	next := reg.NextOwner("r1", []string{"carol", "bob"}, "alice")
	if next != "bob" {
		t.Errorf("Expected earliest joined occupant 'bob', got '%s'", next)
	}
}

func TestRoomRegistry_NextOwnerRejoinKeepsOriginalOrder(t *testing.T) {
	reg := NewRoomRegistry()
	reg.Put(newRoom("r1", "alice"))

	base := time.Now()
	reg.RecordJoin("r1", "bob", base)
	// Re-join with a later stamp must not displace the original.
	reg.RecordJoin("r1", "bob", base.Add(time.Hour))
	reg.RecordJoin("r1", "carol", base.Add(time.Minute))

	if next := reg.NextOwner("r1", []string{"carol", "bob"}, "alice"); next != "bob" {
		t.Errorf("Expected 'bob' to keep original join order, got '%s'", next)
	}
}

func TestRoomRegistry_NextOwnerNoCandidates(t *testing.T) {
	reg := NewRoomRegistry()
	reg.Put(newRoom("r1", "alice"))

	if next := reg.NextOwner("r1", []string{"alice"}, "alice"); next != "" {
		t.Errorf("Expected no candidate, got '%s'", next)
	}
}

func TestRoomRegistry_NextOwnerUntrackedFallsBackToPlatformOrder(t *testing.T) {
	reg := NewRoomRegistry()
	reg.Put(newRoom("r1", "alice"))

	// No join records at all: first platform-listed occupant wins.
	if next := reg.NextOwner("r1", []string{"dave", "erin"}, "alice"); next != "dave" {
		t.Errorf("Expected platform-order fallback 'dave', got '%s'", next)
	}
}

func TestRoomRegistry_OwnedBy(t *testing.T) {
	reg := NewRoomRegistry()
	reg.Put(newRoom("r1", "alice"))
	reg.Put(newRoom("r2", "bob"))

	id, ok := reg.OwnedBy("bob")
	if !ok || id != "r2" {
		t.Errorf("Expected bob to own r2, got '%s' (found=%v)", id, ok)
	}
	if _, ok := reg.OwnedBy("carol"); ok {
		t.Error("Expected no room for carol")
	}
}
