package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/acadportal-api/internal/models"
)

// GradeRecordRepository persists internal marks keyed by
// (student, course, semester).
type GradeRecordRepository struct {
	db *sqlx.DB
}

// NewGradeRecordRepository constructs the repository.
func NewGradeRecordRepository(db *sqlx.DB) *GradeRecordRepository {
	return &GradeRecordRepository{db: db}
}

// Upsert writes a grade record, updating in place when one exists for the
// natural key.
func (r *GradeRecordRepository) Upsert(ctx context.Context, record *models.GradeRecord) (*models.GradeRecord, error) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	const query = `INSERT INTO grade_records (id, student_id, faculty_id, course_id, semester, sessional_mark, attendance_mark, total_mark, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (student_id, course_id, semester)
DO UPDATE SET faculty_id = EXCLUDED.faculty_id,
        sessional_mark = EXCLUDED.sessional_mark,
        attendance_mark = EXCLUDED.attendance_mark,
        total_mark = EXCLUDED.total_mark,
        updated_at = EXCLUDED.updated_at
RETURNING id, student_id, faculty_id, course_id, semester, sessional_mark, attendance_mark, total_mark, created_at, updated_at`
	var stored models.GradeRecord
	if err := r.db.GetContext(ctx, &stored, query, record.ID, record.StudentID, record.FacultyID, record.CourseID, record.Semester, record.SessionalMark, record.AttendanceMark, record.TotalMark, record.CreatedAt, record.UpdatedAt); err != nil {
		return nil, fmt.Errorf("upsert grade record: %w", err)
	}
	return &stored, nil
}

// List returns grade records matching the filter.
func (r *GradeRecordRepository) List(ctx context.Context, filter models.GradeRecordFilter) ([]models.GradeRecord, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.StudentID != "" {
		where = append(where, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.CourseID != "" {
		where = append(where, fmt.Sprintf("course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.FacultyID != "" {
		where = append(where, fmt.Sprintf("faculty_id = $%d", len(args)+1))
		args = append(args, filter.FacultyID)
	}
	if filter.Semester > 0 {
		where = append(where, fmt.Sprintf("semester = $%d", len(args)+1))
		args = append(args, filter.Semester)
	}
	query := fmt.Sprintf(`SELECT id, student_id, faculty_id, course_id, semester, sessional_mark, attendance_mark, total_mark, created_at, updated_at
        FROM grade_records WHERE %s ORDER BY semester, course_id`, strings.Join(where, " AND "))
	var records []models.GradeRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("list grade records: %w", err)
	}
	return records, nil
}

// ListDetailsByStudent returns a student's grade records joined with course
// metadata, ordered for transcript rendering.
func (r *GradeRecordRepository) ListDetailsByStudent(ctx context.Context, studentID string) ([]models.GradeRecordDetail, error) {
	const query = `SELECT gr.id, gr.student_id, gr.faculty_id, gr.course_id, gr.semester, gr.sessional_mark, gr.attendance_mark, gr.total_mark, gr.created_at, gr.updated_at,
        c.code AS course_code, c.name AS course_name, c.credits
        FROM grade_records gr
        JOIN courses c ON c.id = gr.course_id
        WHERE gr.student_id = $1 ORDER BY gr.semester, c.code`
	var records []models.GradeRecordDetail
	if err := r.db.SelectContext(ctx, &records, query, studentID); err != nil {
		return nil, fmt.Errorf("list grade record details: %w", err)
	}
	return records, nil
}

// FindByKey returns the grade record for a (student, course, semester) key.
func (r *GradeRecordRepository) FindByKey(ctx context.Context, studentID, courseID string, semester int) (*models.GradeRecord, error) {
	const query = `SELECT id, student_id, faculty_id, course_id, semester, sessional_mark, attendance_mark, total_mark, created_at, updated_at
        FROM grade_records WHERE student_id = $1 AND course_id = $2 AND semester = $3`
	var record models.GradeRecord
	if err := r.db.GetContext(ctx, &record, query, studentID, courseID, semester); err != nil {
		return nil, err
	}
	return &record, nil
}

// Delete removes a grade record.
func (r *GradeRecordRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM grade_records WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete grade record: %w", err)
	}
	return nil
}
