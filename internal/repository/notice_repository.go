package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/acadportal-api/internal/models"
)

// NoticeRepository handles persistence of notices.
type NoticeRepository struct {
	db *sqlx.DB
}

// NewNoticeRepository constructs the repository.
func NewNoticeRepository(db *sqlx.DB) *NoticeRepository {
	return &NoticeRepository{db: db}
}

// Create persists a new notice.
func (r *NoticeRepository) Create(ctx context.Context, notice *models.Notice) error {
	if notice.ID == "" {
		notice.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if notice.PublishedAt.IsZero() {
		notice.PublishedAt = now
	}
	notice.CreatedAt = now
	notice.UpdatedAt = now
	const query = `INSERT INTO notices (id, title, body, audience, department_id, course_id, section_id, published_at, expires_at, created_by, created_at, updated_at)
        VALUES (:id, :title, :body, :audience, :department_id, :course_id, :section_id, :published_at, :expires_at, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, notice); err != nil {
		return fmt.Errorf("create notice: %w", err)
	}
	return nil
}

// FindByID returns a notice by ID.
func (r *NoticeRepository) FindByID(ctx context.Context, id string) (*models.Notice, error) {
	const query = `SELECT id, title, body, audience, department_id, course_id, section_id, published_at, expires_at, created_by, created_at, updated_at
        FROM notices WHERE id = $1`
	var notice models.Notice
	if err := r.db.GetContext(ctx, &notice, query, id); err != nil {
		return nil, err
	}
	return &notice, nil
}

// List returns notices for administration views, newest first.
func (r *NoticeRepository) List(ctx context.Context, filter models.NoticeFilter) ([]models.Notice, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.Audience != "" {
		where = append(where, fmt.Sprintf("audience = $%d", len(args)+1))
		args = append(args, filter.Audience)
	}
	whereClause := strings.Join(where, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT id, title, body, audience, department_id, course_id, section_id, published_at, expires_at, created_by, created_at, updated_at
        FROM notices WHERE %s ORDER BY published_at DESC LIMIT %d OFFSET %d`, whereClause, size, offset)
	var notices []models.Notice
	if err := r.db.SelectContext(ctx, &notices, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list notices: %w", err)
	}
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM notices WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count notices: %w", err)
	}
	return notices, total, nil
}

// ListForTarget resolves the notice feed for a reader. A notice matches
// when its audience covers the reader's role and every set narrowing
// filter matches the reader's memberships. Expired notices are excluded.
func (r *NoticeRepository) ListForTarget(ctx context.Context, target models.NoticeTarget, now time.Time) ([]models.Notice, error) {
	audiences := []string{string(models.NoticeAudienceAll)}
	switch target.Role {
	case models.RoleFaculty:
		audiences = append(audiences, string(models.NoticeAudienceFaculty))
	case models.RoleStudent:
		audiences = append(audiences, string(models.NoticeAudienceStudent))
	case models.RoleAdmin, models.RoleSuperAdmin:
		audiences = append(audiences, string(models.NoticeAudienceFaculty), string(models.NoticeAudienceStudent))
	}

	query := `SELECT id, title, body, audience, department_id, course_id, section_id, published_at, expires_at, created_by, created_at, updated_at
        FROM notices
        WHERE audience IN (?)
          AND published_at <= ?
          AND (expires_at IS NULL OR expires_at > ?)
          AND (department_id IS NULL OR department_id = ?)
          AND (course_id IS NULL OR course_id IN (?))
          AND (section_id IS NULL OR section_id IN (?))
        ORDER BY published_at DESC`

	courseIDs := target.CourseIDs
	if len(courseIDs) == 0 {
		courseIDs = []string{""}
	}
	sectionIDs := target.SectionIDs
	if len(sectionIDs) == 0 {
		sectionIDs = []string{""}
	}

	query, inArgs, err := sqlx.In(query, audiences, now, now, target.DepartmentID, courseIDs, sectionIDs)
	if err != nil {
		return nil, fmt.Errorf("build notice feed query: %w", err)
	}
	query = r.db.Rebind(query)

	var notices []models.Notice
	if err := r.db.SelectContext(ctx, &notices, query, inArgs...); err != nil {
		return nil, fmt.Errorf("resolve notice feed: %w", err)
	}
	return notices, nil
}

// Update modifies an existing notice.
func (r *NoticeRepository) Update(ctx context.Context, notice *models.Notice) error {
	notice.UpdatedAt = time.Now().UTC()
	const query = `UPDATE notices SET title = :title, body = :body, audience = :audience, department_id = :department_id,
        course_id = :course_id, section_id = :section_id, expires_at = :expires_at, updated_at = :updated_at WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, notice)
	if err != nil {
		return fmt.Errorf("update notice: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a notice.
func (r *NoticeRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM notices WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete notice: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
