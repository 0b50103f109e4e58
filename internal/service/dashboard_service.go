package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/acadportal-api/internal/models"
	"github.com/noah-isme/acadportal-api/internal/repository"
	appErrors "github.com/noah-isme/acadportal-api/pkg/errors"
)

type enrollmentCounter interface {
	CountActive(ctx context.Context) (int, error)
}

type attendanceRatioReader interface {
	PresentRatioOn(ctx context.Context, date time.Time) (present int, total int, err error)
}

type entityCounter interface {
	Count(ctx context.Context) (int, error)
}

type sectionCounter interface {
	CountSections(ctx context.Context) (int, error)
}

const dashboardCacheKey = "dashboard:summary"

// DashboardService assembles the headline counts for the portal landing
// page, caching the result in Redis for a short TTL.
type DashboardService struct {
	enrollments enrollmentCounter
	attendance  attendanceRatioReader
	students    entityCounter
	faculty     entityCounter
	courses     entityCounter
	sections    sectionCounter
	cache       *repository.CacheRepository
	metrics     *MetricsService
	cacheTTL    time.Duration
	logger      *zap.Logger
	now         func() time.Time
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Enrollments enrollmentCounter
	Attendance  attendanceRatioReader
	Students    entityCounter
	Faculty     entityCounter
	Courses     entityCounter
	Sections    sectionCounter
	Cache       *repository.CacheRepository
	Metrics     *MetricsService
	CacheTTL    time.Duration
	Logger      *zap.Logger
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	ttl := params.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		enrollments: params.Enrollments,
		attendance:  params.Attendance,
		students:    params.Students,
		faculty:     params.Faculty,
		courses:     params.Courses,
		sections:    params.Sections,
		cache:       params.Cache,
		metrics:     params.Metrics,
		cacheTTL:    ttl,
		logger:      logger,
		now:         time.Now,
	}
}

// Summary returns the dashboard payload, indicating whether it was served
// from cache.
func (s *DashboardService) Summary(ctx context.Context) (*models.DashboardSummary, bool, error) {
	if s.cache != nil {
		var cached models.DashboardSummary
		if err := s.cache.Get(ctx, dashboardCacheKey, &cached); err == nil {
			s.metrics.RecordCacheOperation(true)
			return &cached, true, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("dashboard cache read failed", zap.Error(err))
		}
		s.metrics.RecordCacheOperation(false)
	}

	summary := &models.DashboardSummary{}
	var err error
	if summary.Students, err = s.students.Count(ctx); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count students")
	}
	if summary.Faculty, err = s.faculty.Count(ctx); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count faculty")
	}
	if summary.Courses, err = s.courses.Count(ctx); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count courses")
	}
	if summary.Sections, err = s.sections.CountSections(ctx); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count sections")
	}
	if summary.ActiveEnrollments, err = s.enrollments.CountActive(ctx); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollments")
	}

	today := s.now().UTC().Truncate(24 * time.Hour)
	present, total, err := s.attendance.PresentRatioOn(ctx, today)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute attendance ratio")
	}
	if total > 0 {
		summary.AttendanceToday = float64(present) / float64(total) * 100
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, dashboardCacheKey, summary, s.cacheTTL); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.Error(err))
		}
	}
	return summary, false, nil
}

// Invalidate drops the cached summary. Called after bulk mutations.
func (s *DashboardService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, dashboardCacheKey); err != nil {
		s.logger.Warn("dashboard cache invalidation failed", zap.Error(err))
	}
}
