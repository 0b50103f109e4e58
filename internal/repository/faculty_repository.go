package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/acadportal-api/internal/models"
)

// FacultyRepository reads faculty profiles. Faculty management happens in
// the admin tooling; the portal only needs lookups and counts.
type FacultyRepository struct {
	db *sqlx.DB
}

// NewFacultyRepository constructs the repository.
func NewFacultyRepository(db *sqlx.DB) *FacultyRepository {
	return &FacultyRepository{db: db}
}

// FindByID returns a faculty profile by ID.
func (r *FacultyRepository) FindByID(ctx context.Context, id string) (*models.Faculty, error) {
	const query = `SELECT id, user_id, full_name, department_id, designation, active, created_at, updated_at FROM faculty WHERE id = $1`
	var faculty models.Faculty
	if err := r.db.GetContext(ctx, &faculty, query, id); err != nil {
		return nil, err
	}
	return &faculty, nil
}

// FindByUserID returns the faculty profile linked to a user account.
func (r *FacultyRepository) FindByUserID(ctx context.Context, userID string) (*models.Faculty, error) {
	const query = `SELECT id, user_id, full_name, department_id, designation, active, created_at, updated_at FROM faculty WHERE user_id = $1`
	var faculty models.Faculty
	if err := r.db.GetContext(ctx, &faculty, query, userID); err != nil {
		return nil, err
	}
	return &faculty, nil
}

// Count returns the number of active faculty members.
func (r *FacultyRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM faculty WHERE active`); err != nil {
		return 0, fmt.Errorf("count faculty: %w", err)
	}
	return count, nil
}
