package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/acadportal-api/internal/models"
	appErrors "github.com/noah-isme/acadportal-api/pkg/errors"
)

type fakeNoticeRepo struct {
	notices    map[string]models.Notice
	lastTarget models.NoticeTarget
	nextID     int
}

func newFakeNoticeRepo() *fakeNoticeRepo {
	return &fakeNoticeRepo{notices: make(map[string]models.Notice)}
}

func (f *fakeNoticeRepo) Create(ctx context.Context, notice *models.Notice) error {
	f.nextID++
	notice.ID = string(rune('a' + f.nextID - 1))
	notice.PublishedAt = time.Now().UTC()
	f.notices[notice.ID] = *notice
	return nil
}

func (f *fakeNoticeRepo) FindByID(ctx context.Context, id string) (*models.Notice, error) {
	if n, ok := f.notices[id]; ok {
		return &n, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeNoticeRepo) List(ctx context.Context, filter models.NoticeFilter) ([]models.Notice, int, error) {
	var result []models.Notice
	for _, n := range f.notices {
		if filter.Audience != "" && n.Audience != filter.Audience {
			continue
		}
		result = append(result, n)
	}
	return result, len(result), nil
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

func (f *fakeNoticeRepo) ListForTarget(ctx context.Context, target models.NoticeTarget, now time.Time) ([]models.Notice, error) {
	f.lastTarget = target
	var result []models.Notice
	for _, n := range f.notices {
		if n.ExpiresAt != nil && now.After(*n.ExpiresAt) {
			continue
		}
		switch n.Audience {
		case models.NoticeAudienceStudent:
			if target.Role != models.RoleStudent {
				continue
			}
		case models.NoticeAudienceFaculty:
			if target.Role != models.RoleFaculty {
				continue
			}
		}
		if n.DepartmentID != nil && *n.DepartmentID != target.DepartmentID {
			continue
		}
		if n.CourseID != nil && !contains(target.CourseIDs, *n.CourseID) {
			continue
		}
		if n.SectionID != nil && !contains(target.SectionIDs, *n.SectionID) {
			continue
		}
		result = append(result, n)
	}
	return result, nil
}

func (f *fakeNoticeRepo) Update(ctx context.Context, notice *models.Notice) error {
	if _, ok := f.notices[notice.ID]; !ok {
		return sql.ErrNoRows
	}
	f.notices[notice.ID] = *notice
	return nil
}

func (f *fakeNoticeRepo) Delete(ctx context.Context, id string) error {
	if _, ok := f.notices[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.notices, id)
	return nil
}

type fakeCourseMembership struct {
	courseIDs map[string][]string
}

func (f *fakeCourseMembership) ListCourseIDsByStudent(ctx context.Context, studentID string) ([]string, error) {
	return f.courseIDs[studentID], nil
}

type fakeSectionMembership struct {
	sectionIDs map[string][]string
}

func (f *fakeSectionMembership) ListSectionIDsByStudent(ctx context.Context, studentID string) ([]string, error) {
	return f.sectionIDs[studentID], nil
}

type fakeStudentAccounts struct {
	byUserID map[string]*models.StudentDetail
}

func (f *fakeStudentAccounts) FindByUserID(ctx context.Context, userID string) (*models.StudentDetail, error) {
	if s, ok := f.byUserID[userID]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

type fakeFacultyAccounts struct {
	byUserID map[string]*models.Faculty
}

func (f *fakeFacultyAccounts) FindByUserID(ctx context.Context, userID string) (*models.Faculty, error) {
	if fac, ok := f.byUserID[userID]; ok {
		return fac, nil
	}
	return nil, sql.ErrNoRows
}

func strPtr(s string) *string { return &s }

func newNoticeFixture() (*NoticeService, *fakeNoticeRepo) {
	repo := newFakeNoticeRepo()
	dept := strPtr("dept-cs")
	svc := NewNoticeService(
		repo,
		&fakeCourseMembership{courseIDs: map[string][]string{"stu-1": {"course-1"}}},
		&fakeSectionMembership{sectionIDs: map[string][]string{"stu-1": {"sec-1"}}},
		&fakeStudentAccounts{byUserID: map[string]*models.StudentDetail{
			"user-stu": {Student: models.Student{ID: "stu-1", UserID: "user-stu", DepartmentID: dept, Active: true}},
		}},
		&fakeFacultyAccounts{byUserID: map[string]*models.Faculty{
			"user-fac": {ID: "fac-1", UserID: "user-fac", DepartmentID: strPtr("dept-math"), Active: true},
		}},
		validator.New(),
		zap.NewNop(),
	)
	return svc, repo
}

func TestNoticeServicePublishAndGet(t *testing.T) {
	svc, _ := newNoticeFixture()

	notice, err := svc.Publish(context.Background(), PublishNoticeRequest{
		Title: "Exam schedule", Body: "Published", Audience: models.NoticeAudienceAll, CreatedBy: "admin-1",
	})
	require.NoError(t, err)
	require.NotEmpty(t, notice.ID)

	fetched, err := svc.Get(context.Background(), notice.ID)
	require.NoError(t, err)
	assert.Equal(t, "Exam schedule", fetched.Title)

	_, err = svc.Publish(context.Background(), PublishNoticeRequest{
		Title: "Bad", Body: "Audience", Audience: "EVERYONE", CreatedBy: "admin-1",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestNoticeServiceFeedForStudentTargets(t *testing.T) {
	svc, repo := newNoticeFixture()

	general, err := svc.Publish(context.Background(), PublishNoticeRequest{
		Title: "Campus closed", Body: "Friday", Audience: models.NoticeAudienceAll, CreatedBy: "admin-1",
	})
	require.NoError(t, err)
	courseNotice, err := svc.Publish(context.Background(), PublishNoticeRequest{
		Title: "Course notice", Body: "For course-1", Audience: models.NoticeAudienceStudent,
		CourseID: strPtr("course-1"), CreatedBy: "admin-1",
	})
	require.NoError(t, err)
	_, err = svc.Publish(context.Background(), PublishNoticeRequest{
		Title: "Other course", Body: "For course-2", Audience: models.NoticeAudienceStudent,
		CourseID: strPtr("course-2"), CreatedBy: "admin-1",
	})
	require.NoError(t, err)
	_, err = svc.Publish(context.Background(), PublishNoticeRequest{
		Title: "Faculty only", Body: "Meeting", Audience: models.NoticeAudienceFaculty, CreatedBy: "admin-1",
	})
	require.NoError(t, err)

	feed, err := svc.FeedForUser(context.Background(), "user-stu", models.RoleStudent)
	require.NoError(t, err)

	ids := make([]string, 0, len(feed))
	for _, n := range feed {
		ids = append(ids, n.ID)
	}
	assert.ElementsMatch(t, []string{general.ID, courseNotice.ID}, ids)

	// the resolved target carries the student's memberships
	assert.Equal(t, models.RoleStudent, repo.lastTarget.Role)
	assert.Equal(t, "dept-cs", repo.lastTarget.DepartmentID)
	assert.Equal(t, []string{"course-1"}, repo.lastTarget.CourseIDs)
	assert.Equal(t, []string{"sec-1"}, repo.lastTarget.SectionIDs)
}

func TestNoticeServiceFeedExcludesExpired(t *testing.T) {
	svc, _ := newNoticeFixture()

	past := time.Now().UTC().Add(-time.Hour)
	_, err := svc.Publish(context.Background(), PublishNoticeRequest{
		Title: "Old news", Body: "Expired", Audience: models.NoticeAudienceAll,
		ExpiresAt: &past, CreatedBy: "admin-1",
	})
	require.NoError(t, err)
	fresh, err := svc.Publish(context.Background(), PublishNoticeRequest{
		Title: "Current", Body: "Visible", Audience: models.NoticeAudienceAll, CreatedBy: "admin-1",
	})
	require.NoError(t, err)

	feed, err := svc.FeedForUser(context.Background(), "user-stu", models.RoleStudent)
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.Equal(t, fresh.ID, feed[0].ID)
}

func TestNoticeServiceFeedForFaculty(t *testing.T) {
	svc, repo := newNoticeFixture()

	_, err := svc.Publish(context.Background(), PublishNoticeRequest{
		Title: "Faculty meeting", Body: "Monday", Audience: models.NoticeAudienceFaculty, CreatedBy: "admin-1",
	})
	require.NoError(t, err)

	feed, err := svc.FeedForUser(context.Background(), "user-fac", models.RoleFaculty)
	require.NoError(t, err)
	assert.Len(t, feed, 1)
	assert.Equal(t, models.RoleFaculty, repo.lastTarget.Role)
	assert.Equal(t, "dept-math", repo.lastTarget.DepartmentID)
}

func TestNoticeServiceFeedUnknownProfile(t *testing.T) {
	svc, _ := newNoticeFixture()
	_, err := svc.FeedForUser(context.Background(), "ghost", models.RoleStudent)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestNoticeServiceUpdateAndDelete(t *testing.T) {
	svc, repo := newNoticeFixture()
	notice, err := svc.Publish(context.Background(), PublishNoticeRequest{
		Title: "Draft", Body: "v1", Audience: models.NoticeAudienceAll, CreatedBy: "admin-1",
	})
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), notice.ID, PublishNoticeRequest{
		Title: "Final", Body: "v2", Audience: models.NoticeAudienceAll,
	})
	require.NoError(t, err)
	assert.Equal(t, "Final", updated.Title)

	require.NoError(t, svc.Delete(context.Background(), notice.ID))
	assert.Empty(t, repo.notices)

	err = svc.Delete(context.Background(), notice.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
