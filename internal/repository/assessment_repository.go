package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/acadportal-api/internal/models"
)

// AssessmentRepository persists assessments and their marks.
type AssessmentRepository struct {
	db *sqlx.DB
}

// NewAssessmentRepository constructs the repository.
func NewAssessmentRepository(db *sqlx.DB) *AssessmentRepository {
	return &AssessmentRepository{db: db}
}

// Create persists a new assessment.
func (r *AssessmentRepository) Create(ctx context.Context, assessment *models.Assessment) error {
	if assessment.ID == "" {
		assessment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	assessment.CreatedAt = now
	assessment.UpdatedAt = now
	const query = `INSERT INTO assessments (id, subject_id, title, max_marks, weightage, due_date, created_at, updated_at)
        VALUES (:id, :subject_id, :title, :max_marks, :weightage, :due_date, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, assessment); err != nil {
		return fmt.Errorf("create assessment: %w", err)
	}
	return nil
}

// FindByID returns an assessment by its ID.
func (r *AssessmentRepository) FindByID(ctx context.Context, id string) (*models.Assessment, error) {
	const query = `SELECT id, subject_id, title, max_marks, weightage, due_date, created_at, updated_at FROM assessments WHERE id = $1`
	var assessment models.Assessment
	if err := r.db.GetContext(ctx, &assessment, query, id); err != nil {
		return nil, err
	}
	return &assessment, nil
}

// ListBySubject returns all assessments of a subject ordered by creation.
func (r *AssessmentRepository) ListBySubject(ctx context.Context, subjectID string) ([]models.Assessment, error) {
	const query = `SELECT id, subject_id, title, max_marks, weightage, due_date, created_at, updated_at
        FROM assessments WHERE subject_id = $1 ORDER BY created_at`
	var assessments []models.Assessment
	if err := r.db.SelectContext(ctx, &assessments, query, subjectID); err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	return assessments, nil
}

// SumWeightage returns the total weightage already assigned within a subject.
func (r *AssessmentRepository) SumWeightage(ctx context.Context, subjectID string) (float64, error) {
	var sum float64
	if err := r.db.GetContext(ctx, &sum, `SELECT COALESCE(SUM(weightage), 0) FROM assessments WHERE subject_id = $1`, subjectID); err != nil {
		return 0, fmt.Errorf("sum weightage: %w", err)
	}
	return sum, nil
}

// Delete removes an assessment and its marks.
func (r *AssessmentRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin assessment delete: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()
	if _, err := tx.ExecContext(ctx, `DELETE FROM assessment_marks WHERE assessment_id = $1`, id); err != nil {
		return fmt.Errorf("delete assessment marks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM assessments WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete assessment: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit assessment delete: %w", err)
	}
	committed = true
	return nil
}

// UpsertMark writes a mark keyed by (student, assessment). Only graded
// writes (evaluated_at set) may change marks_obtained; a submission landing
// on an already-graded row keeps the stored mark.
func (r *AssessmentRepository) UpsertMark(ctx context.Context, mark *models.AssessmentMark) (*models.AssessmentMark, error) {
	if mark.ID == "" {
		mark.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if mark.CreatedAt.IsZero() {
		mark.CreatedAt = now
	}
	mark.UpdatedAt = now
	const query = `INSERT INTO assessment_marks (id, assessment_id, student_id, marks_obtained, submitted_at, evaluated_at, feedback, file_url, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (assessment_id, student_id)
DO UPDATE SET marks_obtained = CASE WHEN EXCLUDED.evaluated_at IS NOT NULL THEN EXCLUDED.marks_obtained ELSE assessment_marks.marks_obtained END,
        submitted_at = COALESCE(EXCLUDED.submitted_at, assessment_marks.submitted_at),
        evaluated_at = COALESCE(EXCLUDED.evaluated_at, assessment_marks.evaluated_at),
        feedback = COALESCE(EXCLUDED.feedback, assessment_marks.feedback),
        file_url = COALESCE(EXCLUDED.file_url, assessment_marks.file_url),
        updated_at = EXCLUDED.updated_at
RETURNING id, assessment_id, student_id, marks_obtained, submitted_at, evaluated_at, feedback, file_url, created_at, updated_at`
	var stored models.AssessmentMark
	if err := r.db.GetContext(ctx, &stored, query, mark.ID, mark.AssessmentID, mark.StudentID, mark.MarksObtained, mark.SubmittedAt, mark.EvaluatedAt, mark.Feedback, mark.FileURL, mark.CreatedAt, mark.UpdatedAt); err != nil {
		return nil, fmt.Errorf("upsert assessment mark: %w", err)
	}
	return &stored, nil
}

// FindMark returns the mark for a (student, assessment) pair.
func (r *AssessmentRepository) FindMark(ctx context.Context, assessmentID, studentID string) (*models.AssessmentMark, error) {
	const query = `SELECT id, assessment_id, student_id, marks_obtained, submitted_at, evaluated_at, feedback, file_url, created_at, updated_at
        FROM assessment_marks WHERE assessment_id = $1 AND student_id = $2`
	var mark models.AssessmentMark
	if err := r.db.GetContext(ctx, &mark, query, assessmentID, studentID); err != nil {
		return nil, err
	}
	return &mark, nil
}

// ListMarks returns marks for an assessment with student metadata.
func (r *AssessmentRepository) ListMarks(ctx context.Context, assessmentID string) ([]models.AssessmentMarkDetail, error) {
	const query = `SELECT am.id, am.assessment_id, am.student_id, am.marks_obtained, am.submitted_at, am.evaluated_at, am.feedback, am.file_url, am.created_at, am.updated_at,
        st.full_name AS student_name, st.roll_number
        FROM assessment_marks am
        JOIN students st ON st.id = am.student_id
        WHERE am.assessment_id = $1 ORDER BY st.roll_number`
	var marks []models.AssessmentMarkDetail
	if err := r.db.SelectContext(ctx, &marks, query, assessmentID); err != nil {
		return nil, fmt.Errorf("list assessment marks: %w", err)
	}
	return marks, nil
}

// ListMarksByStudentAndSubject returns a student's marks across a subject's
// assessments, used when deriving assessment contributions.
func (r *AssessmentRepository) ListMarksByStudentAndSubject(ctx context.Context, studentID, subjectID string) ([]models.AssessmentMark, error) {
	const query = `SELECT am.id, am.assessment_id, am.student_id, am.marks_obtained, am.submitted_at, am.evaluated_at, am.feedback, am.file_url, am.created_at, am.updated_at
        FROM assessment_marks am
        JOIN assessments a ON a.id = am.assessment_id
        WHERE am.student_id = $1 AND a.subject_id = $2`
	var marks []models.AssessmentMark
	if err := r.db.SelectContext(ctx, &marks, query, studentID, subjectID); err != nil {
		return nil, fmt.Errorf("list student subject marks: %w", err)
	}
	return marks, nil
}
