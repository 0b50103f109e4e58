package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/acadportal-api/internal/models"
	appErrors "github.com/noah-isme/acadportal-api/pkg/errors"
)

type assessmentRepository interface {
	Create(ctx context.Context, assessment *models.Assessment) error
	FindByID(ctx context.Context, id string) (*models.Assessment, error)
	ListBySubject(ctx context.Context, subjectID string) ([]models.Assessment, error)
	SumWeightage(ctx context.Context, subjectID string) (float64, error)
	Delete(ctx context.Context, id string) error
	UpsertMark(ctx context.Context, mark *models.AssessmentMark) (*models.AssessmentMark, error)
	FindMark(ctx context.Context, assessmentID, studentID string) (*models.AssessmentMark, error)
	ListMarks(ctx context.Context, assessmentID string) ([]models.AssessmentMarkDetail, error)
	ListMarksByStudentAndSubject(ctx context.Context, studentID, subjectID string) ([]models.AssessmentMark, error)
}

// BlobStore persists uploaded submission files and returns a stable URL.
type BlobStore interface {
	Store(ctx context.Context, data []byte, name string) (string, error)
}

// CreateAssessmentRequest describes a new gradable item for a subject.
type CreateAssessmentRequest struct {
	SubjectID string     `json:"subject_id" validate:"required"`
	Title     string     `json:"title" validate:"required"`
	MaxMarks  float64    `json:"max_marks" validate:"required,gt=0"`
	Weightage float64    `json:"weightage" validate:"min=0,max=100"`
	DueDate   *time.Time `json:"due_date,omitempty"`
}

// GradeMarkRequest records one student's mark for an assessment.
type GradeMarkRequest struct {
	AssessmentID  string  `json:"assessment_id" validate:"required"`
	StudentID     string  `json:"student_id" validate:"required"`
	MarksObtained float64 `json:"marks_obtained"`
	Feedback      *string `json:"feedback,omitempty"`
}

// SubmitAssessmentRequest uploads a student's submission file.
type SubmitAssessmentRequest struct {
	AssessmentID string `json:"assessment_id" validate:"required"`
	StudentID    string `json:"student_id" validate:"required"`
	FileName     string `json:"file_name" validate:"required"`
	File         []byte `json:"-" validate:"required"`
}

// BulkGradeResult reports the outcome of a bulk grading call.
type BulkGradeResult struct {
	Written int      `json:"written"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

// AssessmentService manages assessments, submissions and per-assessment
// marks.
type AssessmentService struct {
	repo      assessmentRepository
	subjects  subjectReader
	students  studentReader
	storage   BlobStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAssessmentService constructs AssessmentService.
func NewAssessmentService(repo assessmentRepository, subjects subjectReader, students studentReader, storage BlobStore, validate *validator.Validate, logger *zap.Logger) *AssessmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssessmentService{repo: repo, subjects: subjects, students: students, storage: storage, validator: validate, logger: logger}
}

// Create adds an assessment to a subject. The combined weightage of a
// subject's assessments may not exceed 100.
func (s *AssessmentService) Create(ctx context.Context, req CreateAssessmentRequest) (*models.Assessment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assessment payload")
	}
	if _, err := s.subjects.FindByID(ctx, req.SubjectID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	assigned, err := s.repo.SumWeightage(ctx, req.SubjectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sum weightage")
	}
	if assigned+req.Weightage > 100 {
		return nil, appErrors.Clone(appErrors.ErrInvalidWeights, fmt.Sprintf("subject weightage would reach %.1f, limit is 100", assigned+req.Weightage))
	}
	assessment := &models.Assessment{
		SubjectID: req.SubjectID,
		Title:     req.Title,
		MaxMarks:  req.MaxMarks,
		Weightage: req.Weightage,
		DueDate:   req.DueDate,
	}
	if err := s.repo.Create(ctx, assessment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create assessment")
	}
	return assessment, nil
}

// ListBySubject returns a subject's assessments.
func (s *AssessmentService) ListBySubject(ctx context.Context, subjectID string) ([]models.Assessment, error) {
	assessments, err := s.repo.ListBySubject(ctx, subjectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assessments")
	}
	return assessments, nil
}

// Delete removes an assessment together with its marks.
func (s *AssessmentService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "assessment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assessment")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrTransactionFailure.Code, appErrors.ErrTransactionFailure.Status, "failed to delete assessment")
	}
	return nil
}

// GradeMark records a mark for one student. The mark must lie within
// [0, maxMarks], both bounds inclusive; out-of-range marks are rejected
// before any write.
func (s *AssessmentService) GradeMark(ctx context.Context, req GradeMarkRequest) (*models.AssessmentMark, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid mark payload")
	}
	assessment, err := s.repo.FindByID(ctx, req.AssessmentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assessment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assessment")
	}
	if req.MarksObtained < 0 || req.MarksObtained > assessment.MaxMarks {
		return nil, appErrors.Clone(appErrors.ErrMarkOutOfRange, fmt.Sprintf("mark %.2f outside [0, %.2f]", req.MarksObtained, assessment.MaxMarks))
	}
	now := time.Now().UTC()
	mark := &models.AssessmentMark{
		AssessmentID:  req.AssessmentID,
		StudentID:     req.StudentID,
		MarksObtained: req.MarksObtained,
		EvaluatedAt:   &now,
		Feedback:      req.Feedback,
	}
	stored, err := s.repo.UpsertMark(ctx, mark)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to write mark")
	}
	return stored, nil
}

// BulkGradeMarks grades a batch, continuing past rejected rows. Each row is
// validated and written independently; the result carries written and failed
// counts.
func (s *AssessmentService) BulkGradeMarks(ctx context.Context, reqs []GradeMarkRequest) (*BulkGradeResult, error) {
	if len(reqs) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "empty grading batch")
	}
	result := &BulkGradeResult{}
	for _, req := range reqs {
		if _, err := s.GradeMark(ctx, req); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, err.Error())
			s.logger.Warn("bulk grading row rejected",
				zap.String("assessment_id", req.AssessmentID),
				zap.String("student_id", req.StudentID),
				zap.Error(err),
			)
			continue
		}
		result.Written++
	}
	return result, nil
}

// Submit stores a student's submission file and records it against the
// assessment mark row, stamping submitted_at.
func (s *AssessmentService) Submit(ctx context.Context, req SubmitAssessmentRequest) (*models.AssessmentMark, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission payload")
	}
	if _, err := s.repo.FindByID(ctx, req.AssessmentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assessment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assessment")
	}
	if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	url, err := s.storage.Store(ctx, req.File, fmt.Sprintf("%s_%s_%s", req.AssessmentID, req.StudentID, req.FileName))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store submission")
	}
	now := time.Now().UTC()
	mark := &models.AssessmentMark{
		AssessmentID: req.AssessmentID,
		StudentID:    req.StudentID,
		SubmittedAt:  &now,
		FileURL:      &url,
	}
	stored, err := s.repo.UpsertMark(ctx, mark)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record submission")
	}
	return stored, nil
}

// Contributions derives the weighted contribution of each of a student's
// marks within a subject.
func (s *AssessmentService) Contributions(ctx context.Context, studentID, subjectID string) ([]models.AssessmentContribution, error) {
	assessments, err := s.repo.ListBySubject(ctx, subjectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assessments")
	}
	marks, err := s.repo.ListMarksByStudentAndSubject(ctx, studentID, subjectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list marks")
	}
	byAssessment := make(map[string]models.AssessmentMark, len(marks))
	for _, mark := range marks {
		byAssessment[mark.AssessmentID] = mark
	}
	var contributions []models.AssessmentContribution
	for _, assessment := range assessments {
		mark, ok := byAssessment[assessment.ID]
		if !ok {
			continue
		}
		contributions = append(contributions, ComputeAssessmentContribution(mark, assessment))
	}
	return contributions, nil
}

// ListMarks returns all marks for an assessment with student metadata.
func (s *AssessmentService) ListMarks(ctx context.Context, assessmentID string) ([]models.AssessmentMarkDetail, error) {
	if _, err := s.repo.FindByID(ctx, assessmentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assessment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assessment")
	}
	marks, err := s.repo.ListMarks(ctx, assessmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list marks")
	}
	return marks, nil
}
