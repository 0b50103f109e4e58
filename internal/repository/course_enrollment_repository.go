package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/acadportal-api/internal/models"
)

// CourseEnrollmentRepository persists the course-level enrollment root. It is
// kept separate from section enrollments on purpose: the two roots have
// independent uniqueness rules and no shared lifecycle.
type CourseEnrollmentRepository struct {
	db *sqlx.DB
}

// NewCourseEnrollmentRepository constructs the repository.
func NewCourseEnrollmentRepository(db *sqlx.DB) *CourseEnrollmentRepository {
	return &CourseEnrollmentRepository{db: db}
}

// Exists reports whether any enrollment row exists for the pair, regardless
// of status.
func (r *CourseEnrollmentRepository) Exists(ctx context.Context, studentID, courseID string) (bool, error) {
	var one int
	err := r.db.GetContext(ctx, &one, `SELECT 1 FROM course_enrollments WHERE student_id = $1 AND course_id = $2 LIMIT 1`, studentID, courseID)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check course enrollment: %w", err)
	}
	return true, nil
}

// Create persists a new course enrollment record.
func (r *CourseEnrollmentRepository) Create(ctx context.Context, enrollment *models.CourseEnrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = now
	}
	enrollment.UpdatedAt = now
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusActive
	}
	const query = `INSERT INTO course_enrollments (id, student_id, course_id, status, enrolled_at, updated_at)
        VALUES (:id, :student_id, :course_id, :status, :enrolled_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create course enrollment: %w", err)
	}
	return nil
}

// FindByID returns a course enrollment by its ID.
func (r *CourseEnrollmentRepository) FindByID(ctx context.Context, id string) (*models.CourseEnrollment, error) {
	const query = `SELECT id, student_id, course_id, status, enrolled_at, updated_at FROM course_enrollments WHERE id = $1`
	var enrollment models.CourseEnrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// ListByStudent returns a student's course enrollments with course info.
func (r *CourseEnrollmentRepository) ListByStudent(ctx context.Context, studentID string) ([]models.CourseEnrollmentDetail, error) {
	const query = `SELECT ce.id, ce.student_id, ce.course_id, ce.status, ce.enrolled_at, ce.updated_at,
        st.full_name AS student_name, st.roll_number, c.code AS course_code, c.name AS course_name
        FROM course_enrollments ce
        JOIN students st ON st.id = ce.student_id
        JOIN courses c ON c.id = ce.course_id
        WHERE ce.student_id = $1 ORDER BY ce.enrolled_at DESC`
	var enrollments []models.CourseEnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, studentID); err != nil {
		return nil, fmt.Errorf("list course enrollments: %w", err)
	}
	return enrollments, nil
}

// ListCourseIDsByStudent returns the course IDs a student is enrolled in.
func (r *CourseEnrollmentRepository) ListCourseIDsByStudent(ctx context.Context, studentID string) ([]string, error) {
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, `SELECT course_id FROM course_enrollments WHERE student_id = $1`, studentID); err != nil {
		return nil, fmt.Errorf("list student courses: %w", err)
	}
	return ids, nil
}

// UpdateStatus sets the lifecycle status of a course enrollment.
func (r *CourseEnrollmentRepository) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error {
	const query = `UPDATE course_enrollments SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update course enrollment status: %w", err)
	}
	return nil
}

// Delete hard-removes a course enrollment.
func (r *CourseEnrollmentRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM course_enrollments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete course enrollment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete course enrollment: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
