package settings

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Systems holds the per-system enabled flags.
type Systems struct {
	Rooms       bool `mapstructure:"rooms" json:"rooms"`
	Requests    bool `mapstructure:"requests" json:"requests"`
	Separations bool `mapstructure:"separations" json:"separations"`
}

// RoomSettings configures the ephemeral room system.
type RoomSettings struct {
	SpawnerRoomID string   `mapstructure:"spawner_room_id" json:"spawner_room_id"`
	CategoryID    string   `mapstructure:"category_id" json:"category_id"`
	LogChannelID  string   `mapstructure:"log_channel_id" json:"log_channel_id"`
	NameTemplate  string   `mapstructure:"name_template" json:"name_template"`
	TagPalette    []string `mapstructure:"tag_palette" json:"tag_palette"`
}

// Outcome is one mutually-exclusive disposition a claimant can assign.
type Outcome struct {
	Key    string `mapstructure:"key" json:"key"`
	Label  string `mapstructure:"label" json:"label"`
	RoleID string `mapstructure:"role_id" json:"role_id"`
}

// RequestSettings configures the claimable request system.
type RequestSettings struct {
	EntryRoomID       string    `mapstructure:"entry_room_id" json:"entry_room_id"`
	CategoryID        string    `mapstructure:"category_id" json:"category_id"`
	LogChannelID      string    `mapstructure:"log_channel_id" json:"log_channel_id"`
	PrivilegedRoleIDs []string  `mapstructure:"privileged_role_ids" json:"privileged_role_ids"`
	Outcomes          []Outcome `mapstructure:"outcomes" json:"outcomes"`
}

// SeparationSettings configures the separation (no co-occupancy) system.
type SeparationSettings struct {
	LogChannelID string `mapstructure:"log_channel_id" json:"log_channel_id"`
}

// Settings is the full hot-reloadable runtime configuration. Components take a
// fresh Snapshot on every operation; nothing caches it for the process lifetime.
type Settings struct {
	Systems     Systems            `mapstructure:"systems" json:"systems"`
	Rooms       RoomSettings       `mapstructure:"rooms" json:"rooms"`
	Requests    RequestSettings    `mapstructure:"requests" json:"requests"`
	Separations SeparationSettings `mapstructure:"separations" json:"separations"`
}

// Outcome looks up a disposition by key.
func (s *Settings) Outcome(key string) (Outcome, bool) {
	for _, o := range s.Requests.Outcomes {
		if o.Key == key {
			return o, true
		}
	}
	return Outcome{}, false
}

// Store owns the settings file. Reads come from an in-memory copy refreshed by
// the file watcher; writes go through Update and are persisted immediately.
type Store struct {
	mu      sync.RWMutex
	v       *viper.Viper
	path    string
	current Settings
	logger  *zap.Logger
}

func NewStore(path string, logger *zap.Logger) (*Store, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if !os.IsNotExist(err) && !strings.Contains(err.Error(), "no such file") {
			return nil, fmt.Errorf("failed to read settings file: %w", err)
		}
		// First run: persist the defaults so the dashboard has a file to edit.
		if err := v.WriteConfigAs(path); err != nil {
			return nil, fmt.Errorf("failed to create settings file: %w", err)
		}
	}

	s := &Store{v: v, path: path, logger: logger}
	if err := v.Unmarshal(&s.current); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		var next Settings
		if err := v.Unmarshal(&next); err != nil {
			logger.Warn("Ignoring malformed settings reload", zap.Error(err))
			return
		}
		s.mu.Lock()
		s.current = next
		s.mu.Unlock()
		logger.Info("Settings reloaded", zap.String("file", e.Name))
	})
	v.WatchConfig()

	return s, nil
}

// Snapshot returns a copy of the current settings. Callers must re-snapshot
// per operation rather than holding one across handler invocations.
func (s *Store) Snapshot() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSettings(s.current)
}

// Update applies a mutation and persists the result to the settings file.
func (s *Store) Update(mutate func(*Settings)) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := cloneSettings(s.current)
	mutate(&next)

	s.v.Set("systems", map[string]interface{}{
		"rooms":       next.Systems.Rooms,
		"requests":    next.Systems.Requests,
		"separations": next.Systems.Separations,
	})
	s.v.Set("rooms", map[string]interface{}{
		"spawner_room_id": next.Rooms.SpawnerRoomID,
		"category_id":     next.Rooms.CategoryID,
		"log_channel_id":  next.Rooms.LogChannelID,
		"name_template":   next.Rooms.NameTemplate,
		"tag_palette":     next.Rooms.TagPalette,
	})
	outcomes := make([]map[string]interface{}, 0, len(next.Requests.Outcomes))
	for _, o := range next.Requests.Outcomes {
		outcomes = append(outcomes, map[string]interface{}{
			"key": o.Key, "label": o.Label, "role_id": o.RoleID,
		})
	}
	s.v.Set("requests", map[string]interface{}{
		"entry_room_id":       next.Requests.EntryRoomID,
		"category_id":         next.Requests.CategoryID,
		"log_channel_id":      next.Requests.LogChannelID,
		"privileged_role_ids": next.Requests.PrivilegedRoleIDs,
		"outcomes":            outcomes,
	})
	s.v.Set("separations", map[string]interface{}{
		"log_channel_id": next.Separations.LogChannelID,
	})

	if err := s.v.WriteConfigAs(s.path); err != nil {
		return Settings{}, fmt.Errorf("failed to persist settings: %w", err)
	}

	s.current = next
	return cloneSettings(next), nil
}

// SetSystemEnabled flips one system flag by name.
func (s *Store) SetSystemEnabled(system string, enabled bool) (Settings, error) {
	var known bool
	out, err := s.Update(func(st *Settings) {
		switch system {
		case "rooms":
			st.Systems.Rooms = enabled
			known = true
		case "requests":
			st.Systems.Requests = enabled
			known = true
		case "separations":
			st.Systems.Separations = enabled
			known = true
		}
	})
	if err != nil {
		return Settings{}, err
	}
	if !known {
		return Settings{}, fmt.Errorf("unknown system %q", system)
	}
	return out, nil
}

func cloneSettings(in Settings) Settings {
	out := in
	out.Rooms.TagPalette = append([]string(nil), in.Rooms.TagPalette...)
	out.Requests.PrivilegedRoleIDs = append([]string(nil), in.Requests.PrivilegedRoleIDs...)
	out.Requests.Outcomes = append([]Outcome(nil), in.Requests.Outcomes...)
	return out
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("systems.rooms", true)
	v.SetDefault("systems.requests", true)
	v.SetDefault("systems.separations", true)

	v.SetDefault("rooms.spawner_room_id", "")
	v.SetDefault("rooms.category_id", "")
	v.SetDefault("rooms.log_channel_id", "")
	v.SetDefault("rooms.name_template", "{owner}'s room")
	v.SetDefault("rooms.tag_palette", []string{"🎮", "🎵", "🎤"})

	v.SetDefault("requests.entry_room_id", "")
	v.SetDefault("requests.category_id", "")
	v.SetDefault("requests.log_channel_id", "")
	v.SetDefault("requests.privileged_role_ids", []string{})
	v.SetDefault("requests.outcomes", []map[string]interface{}{})

	v.SetDefault("separations.log_channel_id", "")
}
