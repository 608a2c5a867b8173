package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/go-warden/voice/internal/model"
)

type AuditRepository struct {
	db *sqlx.DB
}

func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Append inserts one audit record. Append-only: records are never updated.
func (r *AuditRepository) Append(ctx context.Context, rec *model.AuditRecord) error {
	query := `
		INSERT INTO audit_log (id, action, room_id, identity_id, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.ExecContext(ctx, query,
		rec.ID,
		rec.Action,
		rec.RoomID,
		rec.IdentityID,
		rec.Detail,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append audit record: %w", err)
	}
	return nil
}

// List retrieves audit records, newest first.
func (r *AuditRepository) List(ctx context.Context, limit, offset int) ([]*model.AuditRecord, error) {
	var records []*model.AuditRecord
	query := `
		SELECT * FROM audit_log
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	if err := r.db.SelectContext(ctx, &records, query, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list audit records: %w", err)
	}
	return records, nil
}

// ListByIdentity retrieves audit records involving one identity, newest first.
func (r *AuditRepository) ListByIdentity(ctx context.Context, identityID string, limit, offset int) ([]*model.AuditRecord, error) {
	var records []*model.AuditRecord
	query := `
		SELECT * FROM audit_log
		WHERE identity_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	if err := r.db.SelectContext(ctx, &records, query, identityID, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list audit records by identity: %w", err)
	}
	return records, nil
}

// CountByAction returns per-action totals for the dashboard stats view.
func (r *AuditRepository) CountByAction(ctx context.Context) (map[model.AuditAction]int, error) {
	rows := []struct {
		Action model.AuditAction `db:"action"`
		Count  int               `db:"count"`
	}{}
	query := `SELECT action, COUNT(*) AS count FROM audit_log GROUP BY action`

	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to count audit records: %w", err)
	}

	out := make(map[model.AuditAction]int, len(rows))
	for _, row := range rows {
		out[row.Action] = row.Count
	}
	return out, nil
}
