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

type noticeRepository interface {
	Create(ctx context.Context, notice *models.Notice) error
	FindByID(ctx context.Context, id string) (*models.Notice, error)
	List(ctx context.Context, filter models.NoticeFilter) ([]models.Notice, int, error)
	ListForTarget(ctx context.Context, target models.NoticeTarget, now time.Time) ([]models.Notice, error)
	Update(ctx context.Context, notice *models.Notice) error
	Delete(ctx context.Context, id string) error
}

type noticeMembershipReader interface {
	ListCourseIDsByStudent(ctx context.Context, studentID string) ([]string, error)
}

type noticeSectionReader interface {
	ListSectionIDsByStudent(ctx context.Context, studentID string) ([]string, error)
}

type studentAccountReader interface {
	FindByUserID(ctx context.Context, userID string) (*models.StudentDetail, error)
}

type facultyAccountReader interface {
	FindByUserID(ctx context.Context, userID string) (*models.Faculty, error)
}

// PublishNoticeRequest describes a new notice with optional targeting.
type PublishNoticeRequest struct {
	Title        string                `json:"title" validate:"required"`
	Body         string                `json:"body" validate:"required"`
	Audience     models.NoticeAudience `json:"audience" validate:"required"`
	DepartmentID *string               `json:"department_id,omitempty"`
	CourseID     *string               `json:"course_id,omitempty"`
	SectionID    *string               `json:"section_id,omitempty"`
	ExpiresAt    *time.Time            `json:"expires_at,omitempty"`
	CreatedBy    string                `json:"-"`
}

// NoticeService publishes notices and resolves the targeted feed a reader
// should see.
type NoticeService struct {
	repo            noticeRepository
	courses         noticeMembershipReader
	sections        noticeSectionReader
	studentAccounts studentAccountReader
	facultyAccounts facultyAccountReader
	validator       *validator.Validate
	logger          *zap.Logger
}

// NewNoticeService constructs NoticeService.
func NewNoticeService(repo noticeRepository, courses noticeMembershipReader, sections noticeSectionReader, studentAccounts studentAccountReader, facultyAccounts facultyAccountReader, validate *validator.Validate, logger *zap.Logger) *NoticeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NoticeService{repo: repo, courses: courses, sections: sections, studentAccounts: studentAccounts, facultyAccounts: facultyAccounts, validator: validate, logger: logger}
}

// Publish creates a notice.
func (s *NoticeService) Publish(ctx context.Context, req PublishNoticeRequest) (*models.Notice, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid notice payload")
	}
	if !req.Audience.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown notice audience")
	}
	notice := &models.Notice{
		Title:        req.Title,
		Body:         req.Body,
		Audience:     req.Audience,
		DepartmentID: req.DepartmentID,
		CourseID:     req.CourseID,
		SectionID:    req.SectionID,
		ExpiresAt:    req.ExpiresAt,
		CreatedBy:    req.CreatedBy,
	}
	if err := s.repo.Create(ctx, notice); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to publish notice")
	}
	s.logger.Info("notice published",
		zap.String("notice_id", notice.ID),
		zap.String("audience", string(notice.Audience)),
	)
	return notice, nil
}

// Get returns one notice.
func (s *NoticeService) Get(ctx context.Context, id string) (*models.Notice, error) {
	notice, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "notice not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load notice")
	}
	return notice, nil
}

// List returns notices for the administration view.
func (s *NoticeService) List(ctx context.Context, filter models.NoticeFilter) ([]models.Notice, *models.Pagination, error) {
	notices, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notices")
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
	return notices, pagination, nil
}

// FeedForStudent resolves the notice feed for a student, matching notices
// against the student's role, department and enrolled courses/sections.
func (s *NoticeService) FeedForStudent(ctx context.Context, student *models.StudentDetail) ([]models.Notice, error) {
	courseIDs, err := s.courses.ListCourseIDsByStudent(ctx, student.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course memberships")
	}
	sectionIDs, err := s.sections.ListSectionIDsByStudent(ctx, student.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section memberships")
	}
	target := models.NoticeTarget{
		Role:         models.RoleStudent,
		DepartmentID: derefString(student.DepartmentID),
		CourseIDs:    courseIDs,
		SectionIDs:   sectionIDs,
	}
	return s.feed(ctx, target)
}

// FeedForFaculty resolves the notice feed for a faculty member.
func (s *NoticeService) FeedForFaculty(ctx context.Context, faculty *models.Faculty) ([]models.Notice, error) {
	target := models.NoticeTarget{
		Role:         models.RoleFaculty,
		DepartmentID: derefString(faculty.DepartmentID),
	}
	return s.feed(ctx, target)
}

// FeedForUser resolves the feed for the calling account based on its role.
// Administrators see untargeted notices; the full set is available through
// List.
func (s *NoticeService) FeedForUser(ctx context.Context, userID string, role models.UserRole) ([]models.Notice, error) {
	switch role {
	case models.RoleStudent:
		student, err := s.studentAccounts.FindByUserID(ctx, userID)
		if err != nil {
			if err == sql.ErrNoRows {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "student profile not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
		}
		return s.FeedForStudent(ctx, student)
	case models.RoleFaculty:
		faculty, err := s.facultyAccounts.FindByUserID(ctx, userID)
		if err != nil {
			if err == sql.ErrNoRows {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "faculty profile not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load faculty")
		}
		return s.FeedForFaculty(ctx, faculty)
	default:
		return s.feed(ctx, models.NoticeTarget{Role: role})
	}
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (s *NoticeService) feed(ctx context.Context, target models.NoticeTarget) ([]models.Notice, error) {
	notices, err := s.repo.ListForTarget(ctx, target, time.Now().UTC())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve notice feed")
	}
	return notices, nil
}

// Update modifies a notice.
func (s *NoticeService) Update(ctx context.Context, id string, req PublishNoticeRequest) (*models.Notice, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid notice payload")
	}
	notice, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "notice not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load notice")
	}
	notice.Title = req.Title
	notice.Body = req.Body
	notice.Audience = req.Audience
	notice.DepartmentID = req.DepartmentID
	notice.CourseID = req.CourseID
	notice.SectionID = req.SectionID
	notice.ExpiresAt = req.ExpiresAt
	if err := s.repo.Update(ctx, notice); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "notice not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update notice")
	}
	return notice, nil
}

// Delete removes a notice.
func (s *NoticeService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "notice not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete notice")
	}
	return nil
}
