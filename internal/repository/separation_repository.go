package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/go-warden/voice/internal/model"
)

var (
	ErrSeparationNotFound = errors.New("separation not found")
	ErrSeparationExists   = errors.New("separation already exists")
)

// SeparationRepository persists pairs that must not share a voice room. The
// pair is stored in canonical order (first_id < second_id) so (A,B) and (B,A)
// collide on the unique constraint.
type SeparationRepository struct {
	db *sqlx.DB
}

func NewSeparationRepository(db *sqlx.DB) *SeparationRepository {
	return &SeparationRepository{db: db}
}

func canonical(a, b string) (string, string) {
	if a > b {
		return b, a
	}
	return a, b
}

// Create records a new separation pair.
func (r *SeparationRepository) Create(ctx context.Context, sep *model.Separation) error {
	sep.FirstID, sep.SecondID = canonical(sep.FirstID, sep.SecondID)
	query := `
		INSERT INTO separations (first_id, second_id)
		VALUES ($1, $2)
		ON CONFLICT (first_id, second_id) DO NOTHING
		RETURNING id, created_at`

	err := r.db.QueryRowxContext(ctx, query, sep.FirstID, sep.SecondID).
		Scan(&sep.ID, &sep.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrSeparationExists
	}
	if err != nil {
		return fmt.Errorf("failed to create separation: %w", err)
	}
	return nil
}

// Delete removes a separation by its pair.
func (r *SeparationRepository) Delete(ctx context.Context, firstID, secondID string) error {
	firstID, secondID = canonical(firstID, secondID)
	query := `DELETE FROM separations WHERE first_id = $1 AND second_id = $2`

	result, err := r.db.ExecContext(ctx, query, firstID, secondID)
	if err != nil {
		return fmt.Errorf("failed to delete separation: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if rows == 0 {
		return ErrSeparationNotFound
	}
	return nil
}

// ListFor returns all separations involving one identity.
func (r *SeparationRepository) ListFor(ctx context.Context, identityID string) ([]*model.Separation, error) {
	var seps []*model.Separation
	query := `SELECT * FROM separations WHERE first_id = $1 OR second_id = $1 ORDER BY created_at`

	if err := r.db.SelectContext(ctx, &seps, query, identityID); err != nil {
		return nil, fmt.Errorf("failed to list separations: %w", err)
	}
	return seps, nil
}

// List returns all separations.
func (r *SeparationRepository) List(ctx context.Context) ([]*model.Separation, error) {
	var seps []*model.Separation
	query := `SELECT * FROM separations ORDER BY created_at`

	if err := r.db.SelectContext(ctx, &seps, query); err != nil {
		return nil, fmt.Errorf("failed to list separations: %w", err)
	}
	return seps, nil
}

// Exists reports whether a separation is recorded for the pair.
func (r *SeparationRepository) Exists(ctx context.Context, firstID, secondID string) (bool, error) {
	firstID, secondID = canonical(firstID, secondID)
	var count int
	query := `SELECT COUNT(*) FROM separations WHERE first_id = $1 AND second_id = $2`

	if err := r.db.GetContext(ctx, &count, query, firstID, secondID); err != nil {
		return false, fmt.Errorf("failed to check separation: %w", err)
	}
	return count > 0, nil
}
