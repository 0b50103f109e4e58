package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/acadportal-api/internal/models"
	"github.com/noah-isme/acadportal-api/internal/repository"
	appErrors "github.com/noah-isme/acadportal-api/pkg/errors"
)

type fakeSectionEnrollmentRepo struct {
	mu          sync.Mutex
	capacity    map[string]int
	enrollments map[string]models.SectionEnrollment
}

func newFakeSectionEnrollmentRepo() *fakeSectionEnrollmentRepo {
	return &fakeSectionEnrollmentRepo{
		capacity:    make(map[string]int),
		enrollments: make(map[string]models.SectionEnrollment),
	}
}

func (f *fakeSectionEnrollmentRepo) CreateGuarded(ctx context.Context, sectionID string, studentIDs []string) ([]models.SectionEnrollment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	capacity, ok := f.capacity[sectionID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	used := 0
	for _, e := range f.enrollments {
		if e.SectionID == sectionID {
			used++
		}
	}
	if len(studentIDs) > capacity-used {
		return nil, repository.ErrCapacityExceeded
	}
	for _, studentID := range studentIDs {
		if _, dup := f.enrollments[sectionID+"/"+studentID]; dup {
			return nil, repository.ErrDuplicateEnrollment
		}
	}
	created := make([]models.SectionEnrollment, 0, len(studentIDs))
	for _, studentID := range studentIDs {
		enrollment := models.SectionEnrollment{
			ID:        sectionID + "/" + studentID,
			StudentID: studentID,
			SectionID: sectionID,
			Status:    models.EnrollmentStatusActive,
		}
		f.enrollments[enrollment.ID] = enrollment
		created = append(created, enrollment)
	}
	return created, nil
}

func (f *fakeSectionEnrollmentRepo) List(ctx context.Context, filter models.SectionEnrollmentFilter) ([]models.SectionEnrollmentDetail, int, error) {
	return nil, 0, nil
}

func (f *fakeSectionEnrollmentRepo) FindByID(ctx context.Context, id string) (*models.SectionEnrollment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e, ok := f.enrollments[id]; ok {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeSectionEnrollmentRepo) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.enrollments[id]
	if !ok {
		return sql.ErrNoRows
	}
	e.Status = status
	f.enrollments[id] = e
	return nil
}

func (f *fakeSectionEnrollmentRepo) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.enrollments[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.enrollments, id)
	return nil
}

func (f *fakeSectionEnrollmentRepo) CountBySection(ctx context.Context, sectionID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, e := range f.enrollments {
		if e.SectionID == sectionID {
			count++
		}
	}
	return count, nil
}

type fakeSectionReader struct {
	sections map[string]*models.Section
}

func (f *fakeSectionReader) FindSectionByID(ctx context.Context, id string) (*models.Section, error) {
	if s, ok := f.sections[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

type fakeStudentDirectory struct {
	students map[string]*models.StudentDetail
}

func (f *fakeStudentDirectory) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	if s, ok := f.students[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

func activeStudent(id string) *models.StudentDetail {
	return &models.StudentDetail{Student: models.Student{ID: id, FullName: "Student " + id, Active: true}}
}

func newEnrollmentFixture(capacity int, studentIDs ...string) (*EnrollmentService, *fakeSectionEnrollmentRepo) {
	repo := newFakeSectionEnrollmentRepo()
	repo.capacity["sec-1"] = capacity
	students := &fakeStudentDirectory{students: make(map[string]*models.StudentDetail)}
	for _, id := range studentIDs {
		students.students[id] = activeStudent(id)
	}
	sections := &fakeSectionReader{sections: map[string]*models.Section{
		"sec-1": {ID: "sec-1", CourseID: "course-1", Name: "A", Capacity: capacity},
	}}
	svc := NewEnrollmentService(repo, sections, students, nil, validator.New(), zap.NewNop())
	return svc, repo
}

func TestEnrollmentServiceEnroll(t *testing.T) {
	svc, repo := newEnrollmentFixture(2, "stu-1")

	enrollment, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: "stu-1", SectionID: "sec-1"})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusActive, enrollment.Status)
	// enrolling writes the row and nothing else
	assert.Len(t, repo.enrollments, 1)
}

func TestEnrollmentServiceDuplicateRejected(t *testing.T) {
	svc, repo := newEnrollmentFixture(5, "stu-1")

	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: "stu-1", SectionID: "sec-1"})
	require.NoError(t, err)
	_, err = svc.Enroll(context.Background(), EnrollRequest{StudentID: "stu-1", SectionID: "sec-1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDuplicateEnrollment.Code, appErrors.FromError(err).Code)
	assert.Len(t, repo.enrollments, 1)
}

func TestEnrollmentServiceInactiveStudentRejected(t *testing.T) {
	svc, repo := newEnrollmentFixture(5)
	inactive := activeStudent("stu-1")
	inactive.Active = false
	svc.students.(*fakeStudentDirectory).students["stu-1"] = inactive

	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: "stu-1", SectionID: "sec-1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrEnrollmentNotAllowed.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.enrollments)
}

func TestEnrollmentServiceBulkAllOrNothing(t *testing.T) {
	svc, repo := newEnrollmentFixture(2, "stu-1", "stu-2", "stu-3")

	// three students into two remaining seats takes none of them
	_, err := svc.BulkEnroll(context.Background(), BulkEnrollRequest{
		SectionID:  "sec-1",
		StudentIDs: []string{"stu-1", "stu-2", "stu-3"},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrCapacityExceeded.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.enrollments)

	created, err := svc.BulkEnroll(context.Background(), BulkEnrollRequest{
		SectionID:  "sec-1",
		StudentIDs: []string{"stu-1", "stu-2"},
	})
	require.NoError(t, err)
	assert.Len(t, created, 2)

	// the section is now full, a single extra enrollment bounces
	_, err = svc.BulkEnroll(context.Background(), BulkEnrollRequest{
		SectionID:  "sec-1",
		StudentIDs: []string{"stu-3"},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrCapacityExceeded.Code, appErrors.FromError(err).Code)
	assert.Len(t, repo.enrollments, 2)
}

func TestEnrollmentServiceBulkDuplicateInBatch(t *testing.T) {
	svc, repo := newEnrollmentFixture(5, "stu-1")

	_, err := svc.BulkEnroll(context.Background(), BulkEnrollRequest{
		SectionID:  "sec-1",
		StudentIDs: []string{"stu-1", "stu-1"},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.enrollments)
}

func TestEnrollmentServiceConcurrentEnrollNeverOversubscribes(t *testing.T) {
	const capacity = 2
	const attempts = 10
	ids := make([]string, attempts)
	for i := range ids {
		ids[i] = string(rune('a' + i))
	}
	svc, repo := newEnrollmentFixture(capacity, ids...)

	var wg sync.WaitGroup
	var successes int32
	var successMu sync.Mutex
	for _, id := range ids {
		wg.Add(1)
		go func(studentID string) {
			defer wg.Done()
			if _, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: studentID, SectionID: "sec-1"}); err == nil {
				successMu.Lock()
				successes++
				successMu.Unlock()
			}
		}(id)
	}
	wg.Wait()

	assert.EqualValues(t, capacity, successes)
	assert.Len(t, repo.enrollments, capacity)
}

func TestEnrollmentServiceChangeStatus(t *testing.T) {
	svc, _ := newEnrollmentFixture(5, "stu-1")
	created, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: "stu-1", SectionID: "sec-1"})
	require.NoError(t, err)

	updated, err := svc.ChangeStatus(context.Background(), created.ID, ChangeEnrollmentStatusRequest{Status: models.EnrollmentStatusDropped})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusDropped, updated.Status)

	_, err = svc.ChangeStatus(context.Background(), created.ID, ChangeEnrollmentStatusRequest{Status: "NONSENSE"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceDroppedSeatStillCounts(t *testing.T) {
	svc, _ := newEnrollmentFixture(1, "stu-1", "stu-2")
	created, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: "stu-1", SectionID: "sec-1"})
	require.NoError(t, err)

	_, err = svc.ChangeStatus(context.Background(), created.ID, ChangeEnrollmentStatusRequest{Status: models.EnrollmentStatusDropped})
	require.NoError(t, err)

	// the dropped row keeps its seat until deleted
	_, err = svc.Enroll(context.Background(), EnrollRequest{StudentID: "stu-2", SectionID: "sec-1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrCapacityExceeded.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.Delete(context.Background(), created.ID))
	_, err = svc.Enroll(context.Background(), EnrollRequest{StudentID: "stu-2", SectionID: "sec-1"})
	require.NoError(t, err)
}

func TestEnrollmentServiceSectionAvailability(t *testing.T) {
	svc, _ := newEnrollmentFixture(3, "stu-1")
	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: "stu-1", SectionID: "sec-1"})
	require.NoError(t, err)

	capacity, used, err := svc.SectionAvailability(context.Background(), "sec-1")
	require.NoError(t, err)
	assert.Equal(t, 3, capacity)
	assert.Equal(t, 1, used)

	_, _, err = svc.SectionAvailability(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
