package service

import (
	"context"
	"database/sql"
	"math"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/acadportal-api/internal/models"
	appErrors "github.com/noah-isme/acadportal-api/pkg/errors"
)

type gradeRecordRepository interface {
	Upsert(ctx context.Context, record *models.GradeRecord) (*models.GradeRecord, error)
	List(ctx context.Context, filter models.GradeRecordFilter) ([]models.GradeRecord, error)
	ListDetailsByStudent(ctx context.Context, studentID string) ([]models.GradeRecordDetail, error)
	FindByKey(ctx context.Context, studentID, courseID string, semester int) (*models.GradeRecord, error)
}

// InternalMarksRequest writes one grade record keyed by
// (student, course, semester).
type InternalMarksRequest struct {
	StudentID      string  `json:"student_id" validate:"required"`
	FacultyID      string  `json:"faculty_id" validate:"required"`
	CourseID       string  `json:"course_id" validate:"required"`
	Semester       int     `json:"semester" validate:"required,min=1"`
	SessionalMark  float64 `json:"sessional_mark" validate:"min=0"`
	AttendanceMark float64 `json:"attendance_mark" validate:"min=0"`
	TotalMark      float64 `json:"total_mark" validate:"min=0,max=100"`
}

// BulkInternalMarksResult reports the outcome of a bulk marks write.
type BulkInternalMarksResult struct {
	Written int      `json:"written"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

// GradeService derives letter grades, grade points and CGPA from stored
// grade records, and manages the internal marks that feed them.
type GradeService struct {
	repo      gradeRecordRepository
	students  studentReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGradeService constructs GradeService.
func NewGradeService(repo gradeRecordRepository, students studentReader, validate *validator.Validate, logger *zap.Logger) *GradeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradeService{repo: repo, students: students, validator: validate, logger: logger}
}

// LetterGrade maps a percentage onto the fixed grading scale.
func LetterGrade(percentage float64) string {
	switch {
	case percentage >= 90:
		return "A+"
	case percentage >= 85:
		return "A"
	case percentage >= 80:
		return "A-"
	case percentage >= 75:
		return "B+"
	case percentage >= 70:
		return "B"
	case percentage >= 65:
		return "B-"
	case percentage >= 60:
		return "C+"
	case percentage >= 55:
		return "C"
	case percentage >= 50:
		return "C-"
	case percentage >= 45:
		return "D+"
	case percentage >= 40:
		return "D"
	default:
		return "F"
	}
}

var gradePoints = map[string]float64{
	"A+": 4.0, "A": 4.0, "A-": 3.7,
	"B+": 3.3, "B": 3.0, "B-": 2.7,
	"C+": 2.3, "C": 2.0, "C-": 1.7,
	"D+": 1.3, "D": 1.0, "F": 0.0,
}

// GradePoint maps a letter grade to its numeric point value. Unknown letters
// map to 0.
func GradePoint(letter string) float64 {
	return gradePoints[letter]
}

// ComputeAssessmentContribution derives the weighted share an assessment
// mark adds to a subject's final percentage.
func ComputeAssessmentContribution(mark models.AssessmentMark, assessment models.Assessment) models.AssessmentContribution {
	percentage := 0.0
	if assessment.MaxMarks > 0 {
		percentage = mark.MarksObtained / assessment.MaxMarks * 100
	}
	return models.AssessmentContribution{
		AssessmentID: assessment.ID,
		Percentage:   percentage,
		Contribution: percentage * assessment.Weightage / 100,
	}
}

// UpsertInternalMarks writes one grade record, creating or updating by the
// natural key.
func (s *GradeService) UpsertInternalMarks(ctx context.Context, req InternalMarksRequest) (*models.GradeRecordView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid marks payload")
	}
	if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	record := &models.GradeRecord{
		StudentID:      req.StudentID,
		FacultyID:      req.FacultyID,
		CourseID:       req.CourseID,
		Semester:       req.Semester,
		SessionalMark:  req.SessionalMark,
		AttendanceMark: req.AttendanceMark,
		TotalMark:      req.TotalMark,
	}
	stored, err := s.repo.Upsert(ctx, record)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to write marks")
	}
	return gradeView(stored), nil
}

// BulkUpsertInternalMarks applies the same per-row logic as the single
// write, continuing past row failures. Partial success is reported through
// the written and failed counts rather than aborting the batch.
func (s *GradeService) BulkUpsertInternalMarks(ctx context.Context, reqs []InternalMarksRequest) (*BulkInternalMarksResult, error) {
	if len(reqs) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "empty marks batch")
	}
	result := &BulkInternalMarksResult{}
	for _, req := range reqs {
		if _, err := s.UpsertInternalMarks(ctx, req); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, err.Error())
			s.logger.Warn("bulk marks row rejected",
				zap.String("student_id", req.StudentID),
				zap.String("course_id", req.CourseID),
				zap.Error(err),
			)
			continue
		}
		result.Written++
	}
	return result, nil
}

// List returns grade records with derived letter grades and points.
func (s *GradeService) List(ctx context.Context, filter models.GradeRecordFilter) ([]models.GradeRecordView, error) {
	records, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grade records")
	}
	views := make([]models.GradeRecordView, 0, len(records))
	for i := range records {
		views = append(views, *gradeView(&records[i]))
	}
	return views, nil
}

// CGPA returns the unweighted mean of grade points across all of a student's
// grade records, rounded to two decimals. Credit hours are deliberately not
// factored in.
func (s *GradeService) CGPA(ctx context.Context, studentID string) (float64, error) {
	records, err := s.repo.List(ctx, models.GradeRecordFilter{StudentID: studentID})
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade records")
	}
	return cgpaOf(records), nil
}

// Transcript assembles a student's full graded history with CGPA.
func (s *GradeService) Transcript(ctx context.Context, studentID string) (*models.Transcript, error) {
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	details, err := s.repo.ListDetailsByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade records")
	}
	var points float64
	for i := range details {
		letter := LetterGrade(details[i].TotalMark)
		details[i].LetterGrade = letter
		details[i].GradePoint = GradePoint(letter)
		points += details[i].GradePoint
	}
	cgpa := 0.0
	if len(details) > 0 {
		cgpa = roundTo2(points / float64(len(details)))
	}
	return &models.Transcript{StudentID: studentID, Records: details, CGPA: cgpa}, nil
}

func gradeView(record *models.GradeRecord) *models.GradeRecordView {
	letter := LetterGrade(record.TotalMark)
	return &models.GradeRecordView{
		GradeRecord: *record,
		LetterGrade: letter,
		GradePoint:  GradePoint(letter),
	}
}

func cgpaOf(records []models.GradeRecord) float64 {
	if len(records) == 0 {
		return 0
	}
	var sum float64
	for _, record := range records {
		sum += GradePoint(LetterGrade(record.TotalMark))
	}
	return roundTo2(sum / float64(len(records)))
}

// roundTo2 rounds to two decimals, ties to even.
func roundTo2(v float64) float64 {
	return math.RoundToEven(v*100) / 100
}
