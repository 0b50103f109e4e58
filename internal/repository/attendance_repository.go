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

// AttendanceRepository persists per-subject attendance records keyed by
// (student, subject, date).
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// UpsertBatch writes the given records in one transaction. Each write is an
// upsert on the natural key, so re-recording a session updates the stored
// status in place instead of creating a second row.
func (r *AttendanceRepository) UpsertBatch(ctx context.Context, records []models.SubjectAttendance) ([]models.SubjectAttendance, error) {
	if len(records) == 0 {
		return nil, nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin attendance tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	const query = `INSERT INTO subject_attendance (id, student_id, subject_id, date, status, remarks, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (student_id, subject_id, date)
DO UPDATE SET status = EXCLUDED.status, remarks = EXCLUDED.remarks, updated_at = EXCLUDED.updated_at
RETURNING id, student_id, subject_id, date, status, remarks, created_at, updated_at`

	now := time.Now().UTC()
	stored := make([]models.SubjectAttendance, 0, len(records))
	for i := range records {
		rec := &records[i]
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = now
		}
		rec.UpdatedAt = now
		var row models.SubjectAttendance
		if err := tx.GetContext(ctx, &row, query, rec.ID, rec.StudentID, rec.SubjectID, rec.Date, rec.Status, rec.Remarks, rec.CreatedAt, rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("upsert attendance: %w", err)
		}
		stored = append(stored, row)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit attendance: %w", err)
	}
	committed = true
	return stored, nil
}

// List returns attendance records filtered by the provided criteria.
func (r *AttendanceRepository) List(ctx context.Context, filter models.SubjectAttendanceFilter) ([]models.SubjectAttendance, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.SubjectID != "" {
		where = append(where, fmt.Sprintf("subject_id = $%d", len(args)+1))
		args = append(args, filter.SubjectID)
	}
	if filter.StudentID != "" {
		where = append(where, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Status != nil && filter.Status.Valid() {
		where = append(where, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.DateFrom != nil {
		where = append(where, fmt.Sprintf("date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		where = append(where, fmt.Sprintf("date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}
	whereClause := strings.Join(where, " AND ")

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT id, student_id, subject_id, date, status, remarks, created_at, updated_at
        FROM subject_attendance WHERE %s ORDER BY date %s LIMIT %d OFFSET %d`, whereClause, order, size, offset)
	var rows []models.SubjectAttendance
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list attendance: %w", err)
	}
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM subject_attendance WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count attendance: %w", err)
	}
	return rows, total, nil
}

// CountSessions returns the number of distinct dates carrying any attendance
// record for the subject, across all students.
func (r *AttendanceRepository) CountSessions(ctx context.Context, subjectID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(DISTINCT date) FROM subject_attendance WHERE subject_id = $1`, subjectID); err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return count, nil
}

// CountPresent returns the student's records counting toward presence.
func (r *AttendanceRepository) CountPresent(ctx context.Context, subjectID, studentID string) (int, error) {
	const query = `SELECT COUNT(*) FROM subject_attendance
        WHERE subject_id = $1 AND student_id = $2 AND status IN ($3, $4)`
	var count int
	if err := r.db.GetContext(ctx, &count, query, subjectID, studentID, models.AttendanceStatusPresent, models.AttendanceStatusLate); err != nil {
		return 0, fmt.Errorf("count present sessions: %w", err)
	}
	return count, nil
}

// CourseAggregates returns per-subject session and presence counts for every
// subject of a course, for one student.
func (r *AttendanceRepository) CourseAggregates(ctx context.Context, courseID, studentID string) ([]models.SubjectAttendanceAggregate, error) {
	const query = `SELECT sub.id AS subject_id, sub.name AS subject_name,
        (SELECT COUNT(DISTINCT sa.date) FROM subject_attendance sa WHERE sa.subject_id = sub.id) AS total_sessions,
        (SELECT COUNT(*) FROM subject_attendance sa WHERE sa.subject_id = sub.id AND sa.student_id = $2 AND sa.status IN ($3, $4)) AS present_sessions
        FROM subjects sub WHERE sub.course_id = $1 ORDER BY sub.name`
	var rows []models.SubjectAttendanceAggregate
	if err := r.db.SelectContext(ctx, &rows, query, courseID, studentID, models.AttendanceStatusPresent, models.AttendanceStatusLate); err != nil {
		return nil, fmt.Errorf("course attendance aggregates: %w", err)
	}
	return rows, nil
}

// PresentRatioOn returns present-or-late vs total record counts for a date.
func (r *AttendanceRepository) PresentRatioOn(ctx context.Context, date time.Time) (present int, total int, err error) {
	const query = `SELECT
        COUNT(*) FILTER (WHERE status IN ($2, $3)) AS present,
        COUNT(*) AS total
        FROM subject_attendance WHERE date = $1`
	row := r.db.QueryRowxContext(ctx, query, date, models.AttendanceStatusPresent, models.AttendanceStatusLate)
	if err := row.Scan(&present, &total); err != nil {
		return 0, 0, fmt.Errorf("attendance ratio: %w", err)
	}
	return present, total, nil
}
