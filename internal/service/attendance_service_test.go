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

type fakeAttendanceRepo struct {
	records map[string]models.SubjectAttendance
}

func newFakeAttendanceRepo() *fakeAttendanceRepo {
	return &fakeAttendanceRepo{records: make(map[string]models.SubjectAttendance)}
}

func attendanceKey(rec models.SubjectAttendance) string {
	return rec.StudentID + "|" + rec.SubjectID + "|" + rec.Date.Format("2006-01-02")
}

func (f *fakeAttendanceRepo) UpsertBatch(ctx context.Context, records []models.SubjectAttendance) ([]models.SubjectAttendance, error) {
	stored := make([]models.SubjectAttendance, 0, len(records))
	for _, rec := range records {
		f.records[attendanceKey(rec)] = rec
		stored = append(stored, rec)
	}
	return stored, nil
}

func (f *fakeAttendanceRepo) List(ctx context.Context, filter models.SubjectAttendanceFilter) ([]models.SubjectAttendance, int, error) {
	var result []models.SubjectAttendance
	for _, rec := range f.records {
		if filter.SubjectID != "" && rec.SubjectID != filter.SubjectID {
			continue
		}
		if filter.StudentID != "" && rec.StudentID != filter.StudentID {
			continue
		}
		result = append(result, rec)
	}
	return result, len(result), nil
}

func (f *fakeAttendanceRepo) CountSessions(ctx context.Context, subjectID string) (int, error) {
	dates := make(map[string]struct{})
	for _, rec := range f.records {
		if rec.SubjectID == subjectID {
			dates[rec.Date.Format("2006-01-02")] = struct{}{}
		}
	}
	return len(dates), nil
}

func (f *fakeAttendanceRepo) CountPresent(ctx context.Context, subjectID, studentID string) (int, error) {
	count := 0
	for _, rec := range f.records {
		if rec.SubjectID == subjectID && rec.StudentID == studentID && rec.Status.CountsAsPresent() {
			count++
		}
	}
	return count, nil
}

func (f *fakeAttendanceRepo) CourseAggregates(ctx context.Context, courseID, studentID string) ([]models.SubjectAttendanceAggregate, error) {
	subjects := make(map[string]struct{})
	for _, rec := range f.records {
		subjects[rec.SubjectID] = struct{}{}
	}
	var aggregates []models.SubjectAttendanceAggregate
	for subjectID := range subjects {
		sessions, _ := f.CountSessions(ctx, subjectID)
		present, _ := f.CountPresent(ctx, subjectID, studentID)
		aggregates = append(aggregates, models.SubjectAttendanceAggregate{
			SubjectID:       subjectID,
			TotalSessions:   sessions,
			PresentSessions: present,
		})
	}
	return aggregates, nil
}

type fakeSubjectDirectory struct {
	subjects map[string]*models.Subject
}

func (f *fakeSubjectDirectory) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	if s, ok := f.subjects[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

func newAttendanceFixture() (*AttendanceService, *fakeAttendanceRepo) {
	repo := newFakeAttendanceRepo()
	subjects := &fakeSubjectDirectory{subjects: map[string]*models.Subject{
		"sub-1": {ID: "sub-1", CourseID: "course-1", Code: "CS101", Name: "Algorithms"},
	}}
	return NewAttendanceService(repo, subjects, validator.New(), zap.NewNop()), repo
}

func sessionDate(day int) time.Time {
	return time.Date(2026, time.March, day, 0, 0, 0, 0, time.UTC)
}

func TestAttendanceServiceRecordNormalizesDate(t *testing.T) {
	svc, repo := newAttendanceFixture()

	// a timestamp deep into the day collapses onto the calendar date
	noisy := time.Date(2026, time.March, 2, 14, 30, 45, 0, time.UTC)
	stored, err := svc.Record(context.Background(), RecordAttendanceRequest{
		SubjectID: "sub-1",
		Date:      noisy,
		Entries:   []AttendanceEntry{{StudentID: "stu-1", Status: models.AttendanceStatusPresent}},
	})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, sessionDate(2), stored[0].Date)
	assert.Len(t, repo.records, 1)
}

func TestAttendanceServiceRecordUpsertsInPlace(t *testing.T) {
	svc, repo := newAttendanceFixture()

	_, err := svc.Record(context.Background(), RecordAttendanceRequest{
		SubjectID: "sub-1",
		Date:      sessionDate(2),
		Entries:   []AttendanceEntry{{StudentID: "stu-1", Status: models.AttendanceStatusAbsent}},
	})
	require.NoError(t, err)

	// re-recording the same session corrects the status without a second row
	_, err = svc.Record(context.Background(), RecordAttendanceRequest{
		SubjectID: "sub-1",
		Date:      sessionDate(2),
		Entries:   []AttendanceEntry{{StudentID: "stu-1", Status: models.AttendanceStatusPresent}},
	})
	require.NoError(t, err)
	require.Len(t, repo.records, 1)

	pct, err := svc.Percentage(context.Background(), "sub-1", "stu-1")
	require.NoError(t, err)
	assert.Equal(t, 1, pct.TotalSessions)
	assert.Equal(t, 1, pct.PresentSessions)
	assert.InDelta(t, 100.0, pct.Percentage, 0.001)
}

func TestAttendanceServiceRecordUnknownStatus(t *testing.T) {
	svc, _ := newAttendanceFixture()
	_, err := svc.Record(context.Background(), RecordAttendanceRequest{
		SubjectID: "sub-1",
		Date:      sessionDate(2),
		Entries:   []AttendanceEntry{{StudentID: "stu-1", Status: "MAYBE"}},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAttendanceServicePercentage(t *testing.T) {
	svc, _ := newAttendanceFixture()

	statuses := []models.AttendanceStatus{
		models.AttendanceStatusPresent,
		models.AttendanceStatusLate,
		models.AttendanceStatusAbsent,
		models.AttendanceStatusAbsent,
	}
	for i, status := range statuses {
		_, err := svc.Record(context.Background(), RecordAttendanceRequest{
			SubjectID: "sub-1",
			Date:      sessionDate(i + 1),
			Entries:   []AttendanceEntry{{StudentID: "stu-1", Status: status}},
		})
		require.NoError(t, err)
	}

	// LATE counts toward presence: 2 of 4 sessions
	pct, err := svc.Percentage(context.Background(), "sub-1", "stu-1")
	require.NoError(t, err)
	assert.Equal(t, 4, pct.TotalSessions)
	assert.Equal(t, 2, pct.PresentSessions)
	assert.InDelta(t, 50.0, pct.Percentage, 0.001)
}

func TestAttendanceServicePercentageNoSessions(t *testing.T) {
	svc, _ := newAttendanceFixture()

	pct, err := svc.Percentage(context.Background(), "sub-1", "stu-1")
	require.NoError(t, err)
	assert.Equal(t, 0, pct.TotalSessions)
	assert.InDelta(t, 100.0, pct.Percentage, 0.001)
}

func TestAttendanceServicePercentageSubjectNotFound(t *testing.T) {
	svc, _ := newAttendanceFixture()
	_, err := svc.Percentage(context.Background(), "missing", "stu-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAttendanceServiceCourseSummary(t *testing.T) {
	svc, repo := newAttendanceFixture()
	_, err := svc.Record(context.Background(), RecordAttendanceRequest{
		SubjectID: "sub-1",
		Date:      sessionDate(1),
		Entries:   []AttendanceEntry{{StudentID: "stu-1", Status: models.AttendanceStatusPresent}},
	})
	require.NoError(t, err)
	_, err = svc.Record(context.Background(), RecordAttendanceRequest{
		SubjectID: "sub-1",
		Date:      sessionDate(2),
		Entries:   []AttendanceEntry{{StudentID: "stu-1", Status: models.AttendanceStatusAbsent}},
	})
	require.NoError(t, err)
	require.Len(t, repo.records, 2)

	summary, err := svc.CourseSummary(context.Background(), "course-1", "stu-1")
	require.NoError(t, err)
	require.Len(t, summary.Subjects, 1)
	assert.InDelta(t, 50.0, summary.Subjects[0].Percentage, 0.001)
	assert.InDelta(t, 50.0, summary.Overall, 0.001)
}
