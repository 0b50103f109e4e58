package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/acadportal-api/internal/models"
	appErrors "github.com/noah-isme/acadportal-api/pkg/errors"
)

type fakeGradeRecordRepo struct {
	records map[string]models.GradeRecord
}

func newFakeGradeRecordRepo() *fakeGradeRecordRepo {
	return &fakeGradeRecordRepo{records: make(map[string]models.GradeRecord)}
}

func gradeKey(studentID, courseID string, semester int) string {
	return studentID + "|" + courseID + "|" + string(rune('0'+semester))
}

func (f *fakeGradeRecordRepo) Upsert(ctx context.Context, record *models.GradeRecord) (*models.GradeRecord, error) {
	key := gradeKey(record.StudentID, record.CourseID, record.Semester)
	if existing, ok := f.records[key]; ok {
		record.ID = existing.ID
	} else {
		record.ID = key
	}
	f.records[key] = *record
	return record, nil
}

func (f *fakeGradeRecordRepo) List(ctx context.Context, filter models.GradeRecordFilter) ([]models.GradeRecord, error) {
	var result []models.GradeRecord
	for _, rec := range f.records {
		if filter.StudentID != "" && rec.StudentID != filter.StudentID {
			continue
		}
		if filter.CourseID != "" && rec.CourseID != filter.CourseID {
			continue
		}
		result = append(result, rec)
	}
	return result, nil
}

func (f *fakeGradeRecordRepo) ListDetailsByStudent(ctx context.Context, studentID string) ([]models.GradeRecordDetail, error) {
	var details []models.GradeRecordDetail
	for _, rec := range f.records {
		if rec.StudentID != studentID {
			continue
		}
		details = append(details, models.GradeRecordDetail{GradeRecord: rec, CourseCode: "C-" + rec.CourseID, CourseName: rec.CourseID})
	}
	return details, nil
}

func (f *fakeGradeRecordRepo) FindByKey(ctx context.Context, studentID, courseID string, semester int) (*models.GradeRecord, error) {
	if rec, ok := f.records[gradeKey(studentID, courseID, semester)]; ok {
		return &rec, nil
	}
	return nil, sql.ErrNoRows
}

func newGradeFixture(studentIDs ...string) (*GradeService, *fakeGradeRecordRepo) {
	repo := newFakeGradeRecordRepo()
	students := &fakeStudentDirectory{students: make(map[string]*models.StudentDetail)}
	for _, id := range studentIDs {
		students.students[id] = activeStudent(id)
	}
	return NewGradeService(repo, students, validator.New(), zap.NewNop()), repo
}

func TestLetterGradeBoundaries(t *testing.T) {
	cases := []struct {
		mark   float64
		letter string
	}{
		{100, "A+"},
		{90, "A+"},
		{89.999, "A"},
		{85, "A"},
		{84.999, "A-"},
		{80, "A-"},
		{75, "B+"},
		{70, "B"},
		{65, "B-"},
		{60, "C+"},
		{55, "C"},
		{50, "C-"},
		{45, "D+"},
		{40, "D"},
		{39.999, "F"},
		{0, "F"},
	}
	for _, tc := range cases {
		assert.Equalf(t, tc.letter, LetterGrade(tc.mark), "mark %v", tc.mark)
	}
}

func TestGradePoints(t *testing.T) {
	assert.Equal(t, 4.0, GradePoint("A+"))
	assert.Equal(t, 4.0, GradePoint("A"))
	assert.Equal(t, 3.3, GradePoint("B+"))
	assert.Equal(t, 0.0, GradePoint("F"))
	assert.Equal(t, 0.0, GradePoint("Z"))
}

func TestRoundTo2HalfToEven(t *testing.T) {
	// 0.125 and 0.625 are exact in binary, so the tie is real: half-to-even
	// sends both to the even hundredth instead of always rounding up
	assert.Equal(t, 0.12, roundTo2(0.125))
	assert.Equal(t, 0.62, roundTo2(0.625))
	assert.Equal(t, 0.88, roundTo2(0.875))
	assert.Equal(t, 3.33, roundTo2(10.0/3.0))
}

func TestGradeServiceUpsertInternalMarks(t *testing.T) {
	svc, repo := newGradeFixture("stu-1")

	view, err := svc.UpsertInternalMarks(context.Background(), InternalMarksRequest{
		StudentID: "stu-1", FacultyID: "fac-1", CourseID: "course-1", Semester: 3,
		SessionalMark: 40, AttendanceMark: 10, TotalMark: 92,
	})
	require.NoError(t, err)
	assert.Equal(t, "A+", view.LetterGrade)
	assert.Equal(t, 4.0, view.GradePoint)
	assert.Len(t, repo.records, 1)

	// a second write on the same key replaces, not duplicates
	view, err = svc.UpsertInternalMarks(context.Background(), InternalMarksRequest{
		StudentID: "stu-1", FacultyID: "fac-1", CourseID: "course-1", Semester: 3,
		SessionalMark: 30, AttendanceMark: 8, TotalMark: 77,
	})
	require.NoError(t, err)
	assert.Equal(t, "B+", view.LetterGrade)
	assert.Equal(t, 3.3, view.GradePoint)
	assert.Len(t, repo.records, 1)
}

func TestGradeServiceUpsertRejectsUnknownStudent(t *testing.T) {
	svc, _ := newGradeFixture()
	_, err := svc.UpsertInternalMarks(context.Background(), InternalMarksRequest{
		StudentID: "ghost", FacultyID: "fac-1", CourseID: "course-1", Semester: 1, TotalMark: 50,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestGradeServiceUpsertRejectsMarkOver100(t *testing.T) {
	svc, repo := newGradeFixture("stu-1")
	_, err := svc.UpsertInternalMarks(context.Background(), InternalMarksRequest{
		StudentID: "stu-1", FacultyID: "fac-1", CourseID: "course-1", Semester: 1, TotalMark: 100.5,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.records)
}

func TestGradeServiceBulkUpsertPartialSuccess(t *testing.T) {
	svc, repo := newGradeFixture("stu-1")

	result, err := svc.BulkUpsertInternalMarks(context.Background(), []InternalMarksRequest{
		{StudentID: "stu-1", FacultyID: "fac-1", CourseID: "course-1", Semester: 1, TotalMark: 88},
		{StudentID: "stu-1", FacultyID: "fac-1", CourseID: "course-2", Semester: 0, TotalMark: 70}, // invalid semester
		{StudentID: "ghost", FacultyID: "fac-1", CourseID: "course-3", Semester: 1, TotalMark: 70},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Written)
	assert.Equal(t, 2, result.Failed)
	assert.Len(t, result.Errors, 2)
	assert.Len(t, repo.records, 1)
}

func TestGradeServiceCGPA(t *testing.T) {
	svc, _ := newGradeFixture("stu-1")
	marks := map[string]float64{"course-1": 95, "course-2": 95, "course-3": 55}
	for courseID, mark := range marks {
		_, err := svc.UpsertInternalMarks(context.Background(), InternalMarksRequest{
			StudentID: "stu-1", FacultyID: "fac-1", CourseID: courseID, Semester: 1, TotalMark: mark,
		})
		require.NoError(t, err)
	}

	// (4.0 + 4.0 + 2.0) / 3 rounded to two decimals
	cgpa, err := svc.CGPA(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.InDelta(t, 3.33, cgpa, 0.0001)
}

func TestGradeServiceCGPANoRecords(t *testing.T) {
	svc, _ := newGradeFixture("stu-1")
	cgpa, err := svc.CGPA(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Zero(t, cgpa)
}

func TestGradeServiceTranscript(t *testing.T) {
	svc, _ := newGradeFixture("stu-1")
	_, err := svc.UpsertInternalMarks(context.Background(), InternalMarksRequest{
		StudentID: "stu-1", FacultyID: "fac-1", CourseID: "course-1", Semester: 1, TotalMark: 82,
	})
	require.NoError(t, err)

	transcript, err := svc.Transcript(context.Background(), "stu-1")
	require.NoError(t, err)
	require.Len(t, transcript.Records, 1)
	assert.Equal(t, "A-", transcript.Records[0].LetterGrade)
	assert.InDelta(t, 3.7, transcript.CGPA, 0.0001)

	_, err = svc.Transcript(context.Background(), "ghost")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
