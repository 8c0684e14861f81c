package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pesio-ai/be-hse-inspections/internal/database"
	"github.com/pesio-ai/be-hse-inspections/internal/errors"
	"github.com/pesio-ai/be-hse-inspections/internal/workflow"
)

// HistoryRepository reads and appends approval history entries. Entries are
// never updated; every verification adds a row.
type HistoryRepository struct {
	db *database.DB
}

// NewHistoryRepository creates a new HistoryRepository.
func NewHistoryRepository(db *database.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

const historyColumns = `
		id, target_id, stage, approval_status, note,
		created_at, verified_at,
		user_id, user_name, role
`

// ListByTarget returns the raw history of one target in insertion order.
func (r *HistoryRepository) ListByTarget(ctx context.Context, targetID string) ([]workflow.ApprovalHistoryEntry, error) {
	query := `SELECT` + historyColumns + `
		FROM k3_approval_history
		WHERE target_id = $1
		ORDER BY created_at ASC, seq ASC
	`

	rows, err := r.db.Query(ctx, query, targetID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get approval history")
	}
	defer rows.Close()

	return r.scanRows(rows)
}

// ListByTargets returns the raw history of several targets keyed by target id.
func (r *HistoryRepository) ListByTargets(ctx context.Context, targetIDs []string) (map[string][]workflow.ApprovalHistoryEntry, error) {
	out := make(map[string][]workflow.ApprovalHistoryEntry, len(targetIDs))
	if len(targetIDs) == 0 {
		return out, nil
	}

	query := `SELECT` + historyColumns + `
		FROM k3_approval_history
		WHERE target_id = ANY($1::uuid[])
		ORDER BY target_id ASC, created_at ASC, seq ASC
	`

	rows, err := r.db.Query(ctx, query, targetIDs)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get approval history")
	}
	defer rows.Close()

	entries, err := r.scanRows(rows)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		out[e.TargetID] = append(out[e.TargetID], e)
	}
	return out, nil
}

// Append inserts one history entry and fills in its id.
func (r *HistoryRepository) Append(ctx context.Context, entry *workflow.ApprovalHistoryEntry) error {
	return insertHistory(ctx, r.db, entry)
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertHistory(ctx context.Context, q queryRower, entry *workflow.ApprovalHistoryEntry) error {
	var userID, userName, role *string
	if a := entry.Assignment; a != nil {
		userID, userName, role = &a.UserID, &a.UserName, &a.Role
	}

	var note *string
	if entry.Note != "" {
		note = &entry.Note
	}

	query := `
		INSERT INTO k3_approval_history
		    (target_id, stage, approval_status, note,
		     created_at, verified_at,
		     user_id, user_name, role)
		VALUES ($1, $2, $3, $4,
		        $5, $6,
		        $7, $8, $9)
		RETURNING id
	`

	err := q.QueryRow(ctx, query,
		entry.TargetID,
		entry.Stage,
		string(entry.ApprovalStatus),
		note,
		entry.CreatedAt,
		entry.VerifiedAt,
		userID,
		userName,
		role,
	).Scan(&entry.ID)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to append approval history")
	}
	return nil
}

// ── scan helpers ──────────────────────────────────────────────────────────────

func (r *HistoryRepository) scanRows(rows pgx.Rows) ([]workflow.ApprovalHistoryEntry, error) {
	var entries []workflow.ApprovalHistoryEntry
	for rows.Next() {
		var (
			e                      workflow.ApprovalHistoryEntry
			status                 string
			note                   *string
			verifiedAt             *time.Time
			userID, userName, role *string
		)
		err := rows.Scan(
			&e.ID,
			&e.TargetID,
			&e.Stage,
			&status,
			&note,
			&e.CreatedAt,
			&verifiedAt,
			&userID,
			&userName,
			&role,
		)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan approval history")
		}

		e.ApprovalStatus = workflow.ApprovalStatus(status)
		e.VerifiedAt = verifiedAt
		if note != nil {
			e.Note = *note
		}
		if userID != nil {
			e.Assignment = &workflow.ApprovalAssignment{
				UserID:   *userID,
				UserName: deref(userName),
				Role:     deref(role),
				Stage:    e.Stage,
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to read approval history")
	}
	return entries, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
