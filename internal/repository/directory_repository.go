package repository

import (
	"context"

	"github.com/pesio-ai/be-hse-inspections/internal/database"
	"github.com/pesio-ai/be-hse-inspections/internal/errors"
)

// DirectoryRepository resolves which users hold a role.
type DirectoryRepository struct {
	db *database.DB
}

// NewDirectoryRepository creates a new DirectoryRepository.
func NewDirectoryRepository(db *database.DB) *DirectoryRepository {
	return &DirectoryRepository{db: db}
}

// UsersWithRole returns active users holding role, ordered by name.
func (r *DirectoryRepository) UsersWithRole(ctx context.Context, role string) ([]DirectoryUser, error) {
	query := `
		SELECT user_id, user_name, role
		FROM k3_user_roles
		WHERE role = $1 AND is_active = TRUE
		ORDER BY user_name ASC, user_id ASC
	`

	rows, err := r.db.Query(ctx, query, role)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get users for role")
	}
	defer rows.Close()

	var users []DirectoryUser
	for rows.Next() {
		var u DirectoryUser
		if err := rows.Scan(&u.UserID, &u.UserName, &u.Role); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan directory user")
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
