package settings

import (
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.yaml")
	store, err := NewStore(path, zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to create settings store: %v", err)
	}
	return store
}

func TestStore_Defaults(t *testing.T) {
	store := newTestStore(t)

	snap := store.Snapshot()
	if !snap.Systems.Rooms {
		t.Error("Expected rooms system enabled by default")
	}
	if len(snap.Rooms.TagPalette) == 0 {
		t.Error("Expected a non-empty default tag palette")
	}
	if snap.Rooms.NameTemplate == "" {
		t.Error("Expected a default name template")
	}
}

func TestStore_UpdatePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	store, err := NewStore(path, zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to create settings store: %v", err)
	}

	_, err = store.Update(func(s *Settings) {
		s.Rooms.CategoryID = "cat-1"
		s.Rooms.SpawnerRoomID = "spawn-1"
	})
	if err != nil {
		t.Fatalf("Failed to update settings: %v", err)
	}

	// A fresh store over the same file must observe the update.
	reopened, err := NewStore(path, zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to reopen settings store: %v", err)
	}
	snap := reopened.Snapshot()
	if snap.Rooms.CategoryID != "cat-1" {
		t.Errorf("Expected category 'cat-1', got '%s'", snap.Rooms.CategoryID)
	}
	if snap.Rooms.SpawnerRoomID != "spawn-1" {
		t.Errorf("Expected spawner 'spawn-1', got '%s'", snap.Rooms.SpawnerRoomID)
	}
}

func TestStore_SnapshotIsolation(t *testing.T) {
	store := newTestStore(t)

	snap := store.Snapshot()
	snap.Rooms.TagPalette[0] = "mutated"

	if store.Snapshot().Rooms.TagPalette[0] == "mutated" {
		t.Error("Snapshot mutation leaked into the store")
	}
}

func TestStore_SetSystemEnabled(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.SetSystemEnabled("rooms", false); err != nil {
		t.Fatalf("Failed to disable rooms system: %v", err)
	}
	if store.Snapshot().Systems.Rooms {
		t.Error("Expected rooms system disabled")
	}

	if _, err := store.SetSystemEnabled("nonsense", true); err == nil {
		t.Error("Expected error for unknown system")
	}
}

func TestSettings_OutcomeLookup(t *testing.T) {
	s := Settings{
		Requests: RequestSettings{
			Outcomes: []Outcome{
				{Key: "approve", Label: "Approve", RoleID: "role-a"},
				{Key: "reject", Label: "Reject", RoleID: "role-b"},
			},
		},
	}

	o, ok := s.Outcome("reject")
	if !ok {
		t.Fatal("Expected to find outcome 'reject'")
	}
	if o.RoleID != "role-b" {
		t.Errorf("Expected role 'role-b', got '%s'", o.RoleID)
	}

	if _, ok := s.Outcome("missing"); ok {
		t.Error("Expected lookup miss for unknown outcome")
	}
}
