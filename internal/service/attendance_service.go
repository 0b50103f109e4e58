package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/acadportal-api/internal/models"
	appErrors "github.com/noah-isme/acadportal-api/pkg/errors"
)

type attendanceRepository interface {
	UpsertBatch(ctx context.Context, records []models.SubjectAttendance) ([]models.SubjectAttendance, error)
	List(ctx context.Context, filter models.SubjectAttendanceFilter) ([]models.SubjectAttendance, int, error)
	CountSessions(ctx context.Context, subjectID string) (int, error)
	CountPresent(ctx context.Context, subjectID, studentID string) (int, error)
	CourseAggregates(ctx context.Context, courseID, studentID string) ([]models.SubjectAttendanceAggregate, error)
}

type subjectReader interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

// AttendanceEntry is one student's status within a recording request.
type AttendanceEntry struct {
	StudentID string                  `json:"student_id" validate:"required"`
	Status    models.AttendanceStatus `json:"status" validate:"required"`
	Remarks   *string                 `json:"remarks,omitempty"`
}

// RecordAttendanceRequest records a session for a subject on a date.
type RecordAttendanceRequest struct {
	SubjectID string            `json:"subject_id" validate:"required"`
	Date      time.Time         `json:"date" validate:"required"`
	Entries   []AttendanceEntry `json:"entries" validate:"required,min=1,dive"`
}

// AttendanceService records and aggregates per-subject attendance.
type AttendanceService struct {
	repo      attendanceRepository
	subjects  subjectReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAttendanceService constructs AttendanceService.
func NewAttendanceService(repo attendanceRepository, subjects subjectReader, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{repo: repo, subjects: subjects, validator: validate, logger: logger}
}

// Record writes attendance for a session. Dates are normalized to midnight
// UTC so one calendar day is one session key. Re-recording the same session
// overwrites statuses in place.
func (s *AttendanceService) Record(ctx context.Context, req RecordAttendanceRequest) ([]models.SubjectAttendance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	for _, entry := range req.Entries {
		if !entry.Status.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown attendance status")
		}
	}
	if _, err := s.subjects.FindByID(ctx, req.SubjectID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}

	date := time.Date(req.Date.Year(), req.Date.Month(), req.Date.Day(), 0, 0, 0, 0, time.UTC)
	records := make([]models.SubjectAttendance, 0, len(req.Entries))
	for _, entry := range req.Entries {
		records = append(records, models.SubjectAttendance{
			StudentID: entry.StudentID,
			SubjectID: req.SubjectID,
			Date:      date,
			Status:    entry.Status,
			Remarks:   entry.Remarks,
		})
	}
	stored, err := s.repo.UpsertBatch(ctx, records)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrTransactionFailure.Code, appErrors.ErrTransactionFailure.Status, "failed to record attendance")
	}
	s.logger.Info("attendance recorded",
		zap.String("subject_id", req.SubjectID),
		zap.Time("date", date),
		zap.Int("entries", len(stored)),
	)
	return stored, nil
}

// List returns attendance records matching the filter.
func (s *AttendanceService) List(ctx context.Context, filter models.SubjectAttendanceFilter) ([]models.SubjectAttendance, *models.Pagination, error) {
	records, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 50
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return records, pagination, nil
}

// Percentage computes a student's presence ratio for a subject. A session is
// any distinct date carrying at least one record for the subject; PRESENT and
// LATE both count toward presence. With no sessions held the percentage is
// 100, so a student is never penalised before classes start.
func (s *AttendanceService) Percentage(ctx context.Context, subjectID, studentID string) (*models.AttendancePercentage, error) {
	if _, err := s.subjects.FindByID(ctx, subjectID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	sessions, err := s.repo.CountSessions(ctx, subjectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count sessions")
	}
	present, err := s.repo.CountPresent(ctx, subjectID, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count presence")
	}
	return &models.AttendancePercentage{
		SubjectID:       subjectID,
		StudentID:       studentID,
		TotalSessions:   sessions,
		PresentSessions: present,
		Percentage:      presenceRatio(present, sessions),
	}, nil
}

// CourseSummary computes per-subject percentages for every subject of a
// course plus an overall ratio built from the summed counts.
func (s *AttendanceService) CourseSummary(ctx context.Context, courseID, studentID string) (*models.CourseAttendanceSummary, error) {
	aggregates, err := s.repo.CourseAggregates(ctx, courseID, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate attendance")
	}
	summary := &models.CourseAttendanceSummary{CourseID: courseID, StudentID: studentID}
	var totalSessions, totalPresent int
	for _, agg := range aggregates {
		summary.Subjects = append(summary.Subjects, models.AttendancePercentage{
			SubjectID:       agg.SubjectID,
			StudentID:       studentID,
			TotalSessions:   agg.TotalSessions,
			PresentSessions: agg.PresentSessions,
			Percentage:      presenceRatio(agg.PresentSessions, agg.TotalSessions),
		})
		totalSessions += agg.TotalSessions
		totalPresent += agg.PresentSessions
	}
	summary.Overall = presenceRatio(totalPresent, totalSessions)
	return summary, nil
}

func presenceRatio(present, sessions int) float64 {
	if sessions == 0 {
		return 100
	}
	return float64(present) / float64(sessions) * 100
}
