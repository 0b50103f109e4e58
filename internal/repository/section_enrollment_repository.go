package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/acadportal-api/internal/models"
)

// Sentinel errors surfaced by the capacity-guarded insert. Services map them
// to the typed API errors.
var (
	ErrCapacityExceeded    = errors.New("section capacity exceeded")
	ErrDuplicateEnrollment = errors.New("enrollment already exists")
)

// SectionEnrollmentRepository handles persistence of section enrollments.
//
// Capacity is always derived from a live count over ALL enrollment rows,
// regardless of status, so dropped enrollments keep consuming seats until
// explicitly deleted.
type SectionEnrollmentRepository struct {
	db *sqlx.DB
}

// NewSectionEnrollmentRepository constructs the repository.
func NewSectionEnrollmentRepository(db *sqlx.DB) *SectionEnrollmentRepository {
	return &SectionEnrollmentRepository{db: db}
}

// CreateGuarded inserts the given enrollments for a section inside a single
// transaction. The section row is locked so the count-check-insert sequence
// is atomic with respect to concurrent enrollment attempts. The whole batch
// fails without writes on ErrCapacityExceeded or ErrDuplicateEnrollment.
func (r *SectionEnrollmentRepository) CreateGuarded(ctx context.Context, sectionID string, studentIDs []string) ([]models.SectionEnrollment, error) {
	if len(studentIDs) == 0 {
		return nil, nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin enrollment tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	var capacity int
	if err := tx.GetContext(ctx, &capacity, `SELECT capacity FROM sections WHERE id = $1 FOR UPDATE`, sectionID); err != nil {
		return nil, err
	}

	var used int
	if err := tx.GetContext(ctx, &used, `SELECT COUNT(*) FROM section_enrollments WHERE section_id = $1`, sectionID); err != nil {
		return nil, fmt.Errorf("count section enrollments: %w", err)
	}
	if len(studentIDs) > capacity-used {
		return nil, ErrCapacityExceeded
	}

	placeholders := make([]string, len(studentIDs))
	args := []interface{}{sectionID}
	for i, id := range studentIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, id)
	}
	dupQuery := fmt.Sprintf(`SELECT COUNT(*) FROM section_enrollments WHERE section_id = $1 AND student_id IN (%s)`, strings.Join(placeholders, ","))
	var duplicates int
	if err := tx.GetContext(ctx, &duplicates, dupQuery, args...); err != nil {
		return nil, fmt.Errorf("check duplicate enrollments: %w", err)
	}
	if duplicates > 0 {
		return nil, ErrDuplicateEnrollment
	}

	now := time.Now().UTC()
	created := make([]models.SectionEnrollment, 0, len(studentIDs))
	const insert = `INSERT INTO section_enrollments (id, student_id, section_id, status, enrolled_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6)`
	for _, studentID := range studentIDs {
		enrollment := models.SectionEnrollment{
			ID:         uuid.NewString(),
			StudentID:  studentID,
			SectionID:  sectionID,
			Status:     models.EnrollmentStatusActive,
			EnrolledAt: now,
			UpdatedAt:  now,
		}
		if _, err := tx.ExecContext(ctx, insert, enrollment.ID, enrollment.StudentID, enrollment.SectionID, enrollment.Status, enrollment.EnrolledAt, enrollment.UpdatedAt); err != nil {
			return nil, fmt.Errorf("insert section enrollment: %w", err)
		}
		created = append(created, enrollment)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit section enrollments: %w", err)
	}
	committed = true
	return created, nil
}

// List returns section enrollments filtered by the provided criteria.
func (r *SectionEnrollmentRepository) List(ctx context.Context, filter models.SectionEnrollmentFilter) ([]models.SectionEnrollmentDetail, int, error) {
	base := `FROM section_enrollments se
JOIN students st ON st.id = se.student_id
JOIN sections sec ON sec.id = se.section_id
JOIN courses c ON c.id = sec.course_id`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("se.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.SectionID != "" {
		conditions = append(conditions, fmt.Sprintf("se.section_id = $%d", len(args)+1))
		args = append(args, filter.SectionID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("se.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"enrolled_at":  "se.enrolled_at",
		"student_name": "st.full_name",
		"section_name": "sec.name",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "se.enrolled_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT se.id, se.student_id, se.section_id, se.status, se.enrolled_at, se.updated_at,
        st.full_name AS student_name, st.roll_number, sec.name AS section_name, sec.course_id,
        c.name AS course_name, sec.academic_term
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var enrollments []models.SectionEnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list section enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count section enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindByID returns a section enrollment by its ID.
func (r *SectionEnrollmentRepository) FindByID(ctx context.Context, id string) (*models.SectionEnrollment, error) {
	const query = `SELECT id, student_id, section_id, status, enrolled_at, updated_at FROM section_enrollments WHERE id = $1`
	var enrollment models.SectionEnrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// UpdateStatus sets the lifecycle status of an enrollment.
func (r *SectionEnrollmentRepository) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error {
	const query = `UPDATE section_enrollments SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update enrollment status: %w", err)
	}
	return nil
}

// Delete hard-removes an enrollment. Attendance and grade rows referencing
// the student are left untouched; cascading is the caller's responsibility.
func (r *SectionEnrollmentRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM section_enrollments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountBySection returns the number of enrollment rows for a section,
// irrespective of status.
func (r *SectionEnrollmentRepository) CountBySection(ctx context.Context, sectionID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM section_enrollments WHERE section_id = $1`, sectionID); err != nil {
		return 0, fmt.Errorf("count section enrollments: %w", err)
	}
	return count, nil
}

// CountActive returns the number of ACTIVE enrollments across all sections.
func (r *SectionEnrollmentRepository) CountActive(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM section_enrollments WHERE status = $1`, models.EnrollmentStatusActive); err != nil {
		return 0, fmt.Errorf("count active enrollments: %w", err)
	}
	return count, nil
}

// ListSectionIDsByStudent returns the section IDs a student is enrolled in.
func (r *SectionEnrollmentRepository) ListSectionIDsByStudent(ctx context.Context, studentID string) ([]string, error) {
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, `SELECT section_id FROM section_enrollments WHERE student_id = $1`, studentID); err != nil {
		return nil, fmt.Errorf("list student sections: %w", err)
	}
	return ids, nil
}
