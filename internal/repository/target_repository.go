package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/pesio-ai/be-hse-inspections/internal/database"
	"github.com/pesio-ai/be-hse-inspections/internal/errors"
	"github.com/pesio-ai/be-hse-inspections/internal/workflow"
)

// TargetRepository manages findings and inspections. Target creation and the
// seeding of its stage history happen in one transaction.
type TargetRepository struct {
	db *database.DB
}

// NewTargetRepository creates a new TargetRepository.
func NewTargetRepository(db *database.DB) *TargetRepository {
	return &TargetRepository{db: db}
}

// Create inserts a target and its seed history entries. Seeds keep a
// caller-supplied CreatedAt so they share the clock of later appends.
func (r *TargetRepository) Create(ctx context.Context, target *Target, seed []workflow.ApprovalHistoryEntry) error {
	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO k3_targets (kind, title, description, location, reported_by)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, created_at, updated_at
		`

		err := tx.QueryRow(ctx, query,
			target.Kind,
			target.Title,
			target.Description,
			target.Location,
			target.ReportedBy,
		).Scan(&target.ID, &target.CreatedAt, &target.UpdatedAt)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to create target")
		}

		target.History = make([]workflow.ApprovalHistoryEntry, 0, len(seed))
		for _, entry := range seed {
			entry.TargetID = target.ID
			if entry.CreatedAt.IsZero() {
				entry.CreatedAt = target.CreatedAt
			}
			if err := insertHistory(ctx, tx, &entry); err != nil {
				return err
			}
			target.History = append(target.History, entry)
		}
		return nil
	})
}

// GetByID retrieves a target without its history.
func (r *TargetRepository) GetByID(ctx context.Context, id string) (*Target, error) {
	query := `
		SELECT id, kind, title, description, location, reported_by, created_at, updated_at
		FROM k3_targets
		WHERE id = $1
	`

	target, err := r.scanTarget(r.db.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("target", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get target")
	}
	return target, nil
}

// List returns targets newest first, optionally filtered by kind, plus the
// total count matching the filter.
func (r *TargetRepository) List(ctx context.Context, kind *string, limit, offset int) ([]*Target, int64, error) {
	var total int64
	countQuery := `SELECT COUNT(*) FROM k3_targets WHERE ($1::text IS NULL OR kind = $1)`
	if err := r.db.QueryRow(ctx, countQuery, kind).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeInternal, "failed to count targets")
	}

	query := `
		SELECT id, kind, title, description, location, reported_by, created_at, updated_at
		FROM k3_targets
		WHERE ($1::text IS NULL OR kind = $1)
		ORDER BY created_at DESC, id ASC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, kind, limit, offset)
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeInternal, "failed to list targets")
	}
	defer rows.Close()

	var targets []*Target
	for rows.Next() {
		t, err := r.scanTarget(rows)
		if err != nil {
			return nil, 0, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan target")
		}
		targets = append(targets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeInternal, "failed to list targets")
	}
	return targets, total, nil
}

// Touch bumps updated_at after a history change.
func (r *TargetRepository) Touch(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `UPDATE k3_targets SET updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to update target")
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("target", id)
	}
	return nil
}

// ── scan helper ───────────────────────────────────────────────────────────────

type targetScanner interface {
	Scan(dest ...any) error
}

func (r *TargetRepository) scanTarget(row targetScanner) (*Target, error) {
	t := &Target{}
	err := row.Scan(
		&t.ID,
		&t.Kind,
		&t.Title,
		&t.Description,
		&t.Location,
		&t.ReportedBy,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}
