package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/acadportal-api/internal/models"
	"github.com/noah-isme/acadportal-api/internal/repository"
	appErrors "github.com/noah-isme/acadportal-api/pkg/errors"
)

type sectionEnrollmentRepository interface {
	CreateGuarded(ctx context.Context, sectionID string, studentIDs []string) ([]models.SectionEnrollment, error)
	List(ctx context.Context, filter models.SectionEnrollmentFilter) ([]models.SectionEnrollmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.SectionEnrollment, error)
	UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error
	Delete(ctx context.Context, id string) error
	CountBySection(ctx context.Context, sectionID string) (int, error)
}

type sectionReader interface {
	FindSectionByID(ctx context.Context, id string) (*models.Section, error)
}

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
}

// EnrollRequest describes a single section enrollment request.
type EnrollRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	SectionID string `json:"section_id" validate:"required"`
}

// BulkEnrollRequest enrolls several students into one section atomically.
type BulkEnrollRequest struct {
	SectionID  string   `json:"section_id" validate:"required"`
	StudentIDs []string `json:"student_ids" validate:"required,min=1,dive,required"`
}

// ChangeEnrollmentStatusRequest updates an enrollment's lifecycle status.
type ChangeEnrollmentStatusRequest struct {
	Status models.EnrollmentStatus `json:"status" validate:"required"`
}

// EnrollmentService orchestrates section enrollment workflows. All seat
// accounting happens inside the repository's guarded insert so concurrent
// requests cannot oversubscribe a section. Enrolling has no side effect
// beyond the write itself.
type EnrollmentService struct {
	repo      sectionEnrollmentRepository
	sections  sectionReader
	students  studentReader
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService. The metrics service may
// be nil.
func NewEnrollmentService(repo sectionEnrollmentRepository, sections sectionReader, students studentReader, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{repo: repo, sections: sections, students: students, metrics: metrics, validator: validate, logger: logger}
}

// List returns section enrollments with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, filter models.SectionEnrollmentFilter) ([]models.SectionEnrollmentDetail, *models.Pagination, error) {
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return enrollments, pagination, nil
}

// Enroll registers one student into a section.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollRequest) (*models.SectionEnrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	created, err := s.enroll(ctx, req.SectionID, []string{req.StudentID})
	if err != nil {
		return nil, err
	}
	enrollment := created[0]
	return &enrollment, nil
}

// BulkEnroll registers a batch of students into one section. The batch is
// all-or-nothing: if any student cannot be enrolled, no seats are taken.
func (s *EnrollmentService) BulkEnroll(ctx context.Context, req BulkEnrollRequest) ([]models.SectionEnrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk enrollment payload")
	}
	seen := make(map[string]struct{}, len(req.StudentIDs))
	for _, id := range req.StudentIDs {
		if _, dup := seen[id]; dup {
			return nil, appErrors.Clone(appErrors.ErrValidation, "duplicate student in batch")
		}
		seen[id] = struct{}{}
	}
	created, err := s.enroll(ctx, req.SectionID, req.StudentIDs)
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *EnrollmentService) enroll(ctx context.Context, sectionID string, studentIDs []string) ([]models.SectionEnrollment, error) {
	for _, studentID := range studentIDs {
		student, err := s.students.FindByID(ctx, studentID)
		if err != nil {
			if err == sql.ErrNoRows {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
		}
		if !student.Active {
			return nil, appErrors.Clone(appErrors.ErrEnrollmentNotAllowed, "student inactive")
		}
	}
	created, err := s.repo.CreateGuarded(ctx, sectionID, studentIDs)
	if err != nil {
		switch {
		case err == sql.ErrNoRows:
			s.metrics.RecordEnrollmentOutcome("section_not_found")
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		case errors.Is(err, repository.ErrCapacityExceeded):
			s.metrics.RecordEnrollmentOutcome("capacity_exceeded")
			return nil, appErrors.Clone(appErrors.ErrCapacityExceeded, "")
		case errors.Is(err, repository.ErrDuplicateEnrollment):
			s.metrics.RecordEnrollmentOutcome("duplicate")
			return nil, appErrors.Clone(appErrors.ErrDuplicateEnrollment, "")
		default:
			s.metrics.RecordEnrollmentOutcome("error")
			return nil, appErrors.Wrap(err, appErrors.ErrTransactionFailure.Code, appErrors.ErrTransactionFailure.Status, "enrollment failed")
		}
	}
	s.metrics.RecordEnrollmentOutcome("enrolled")
	s.logger.Info("students enrolled",
		zap.String("section_id", sectionID),
		zap.Int("count", len(created)),
	)
	return created, nil
}

// ChangeStatus moves an enrollment to a new lifecycle status. Any status may
// transition to any other, including itself.
func (s *EnrollmentService) ChangeStatus(ctx context.Context, id string, req ChangeEnrollmentStatusRequest) (*models.SectionEnrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	if !req.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown enrollment status")
	}
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if err := s.repo.UpdateStatus(ctx, id, req.Status); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update enrollment status")
	}
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return enrollment, nil
}

// Delete hard-removes an enrollment. The seat is freed immediately; related
// attendance and grade data is intentionally left in place.
func (s *EnrollmentService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete enrollment")
	}
	return nil
}

// SectionAvailability reports the configured capacity and current seat usage
// for a section. Usage counts every enrollment row regardless of status.
func (s *EnrollmentService) SectionAvailability(ctx context.Context, sectionID string) (capacity, used int, err error) {
	section, err := s.sections.FindSectionByID(ctx, sectionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, 0, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return 0, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}
	used, err = s.repo.CountBySection(ctx, sectionID)
	if err != nil {
		return 0, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollments")
	}
	return section.Capacity, used, nil
}
