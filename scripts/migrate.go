package main

import (
	"log"

	"go.uber.org/zap"

	"github.com/go-warden/voice/internal/config"
	"github.com/go-warden/voice/internal/pkg/database"
)

var statements = []string{
	`CREATE TABLE IF NOT EXISTS audit_log (
		id          TEXT PRIMARY KEY,
		action      TEXT NOT NULL,
		room_id     TEXT NOT NULL DEFAULT '',
		identity_id TEXT NOT NULL DEFAULT '',
		detail      TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_log_created_at ON audit_log (created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_log_identity ON audit_log (identity_id)`,
	`CREATE TABLE IF NOT EXISTS separations (
		id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		first_id   TEXT NOT NULL,
		second_id  TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (first_id, second_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_separations_second ON separations (second_id)`,
}

func main() {
	log.Println("Applying database schema...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.NewPostgres(&cfg.Database, zap.NewNop())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			log.Fatalf("Failed to apply statement: %v", err)
		}
	}

	log.Println("Schema applied")
}
