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

type fakeAssessmentRepo struct {
	assessments map[string]models.Assessment
	marks       map[string]models.AssessmentMark
	nextID      int
}

func newFakeAssessmentRepo() *fakeAssessmentRepo {
	return &fakeAssessmentRepo{
		assessments: make(map[string]models.Assessment),
		marks:       make(map[string]models.AssessmentMark),
	}
}

func (f *fakeAssessmentRepo) Create(ctx context.Context, assessment *models.Assessment) error {
	f.nextID++
	assessment.ID = string(rune('a' + f.nextID - 1))
	f.assessments[assessment.ID] = *assessment
	return nil
}

func (f *fakeAssessmentRepo) FindByID(ctx context.Context, id string) (*models.Assessment, error) {
	if a, ok := f.assessments[id]; ok {
		return &a, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAssessmentRepo) ListBySubject(ctx context.Context, subjectID string) ([]models.Assessment, error) {
	var result []models.Assessment
	for _, a := range f.assessments {
		if a.SubjectID == subjectID {
			result = append(result, a)
		}
	}
	return result, nil
}

func (f *fakeAssessmentRepo) SumWeightage(ctx context.Context, subjectID string) (float64, error) {
	var sum float64
	for _, a := range f.assessments {
		if a.SubjectID == subjectID {
			sum += a.Weightage
		}
	}
	return sum, nil
}

func (f *fakeAssessmentRepo) Delete(ctx context.Context, id string) error {
	if _, ok := f.assessments[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.assessments, id)
	for key, mark := range f.marks {
		if mark.AssessmentID == id {
			delete(f.marks, key)
		}
	}
	return nil
}

func (f *fakeAssessmentRepo) UpsertMark(ctx context.Context, mark *models.AssessmentMark) (*models.AssessmentMark, error) {
	key := mark.AssessmentID + "|" + mark.StudentID
	if existing, ok := f.marks[key]; ok {
		if mark.EvaluatedAt == nil {
			mark.EvaluatedAt = existing.EvaluatedAt
			mark.MarksObtained = existing.MarksObtained
		}
		if mark.SubmittedAt == nil {
			mark.SubmittedAt = existing.SubmittedAt
			mark.FileURL = existing.FileURL
		}
	}
	f.marks[key] = *mark
	return mark, nil
}

func (f *fakeAssessmentRepo) FindMark(ctx context.Context, assessmentID, studentID string) (*models.AssessmentMark, error) {
	if mark, ok := f.marks[assessmentID+"|"+studentID]; ok {
		return &mark, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAssessmentRepo) ListMarks(ctx context.Context, assessmentID string) ([]models.AssessmentMarkDetail, error) {
	var details []models.AssessmentMarkDetail
	for _, mark := range f.marks {
		if mark.AssessmentID == assessmentID {
			details = append(details, models.AssessmentMarkDetail{AssessmentMark: mark})
		}
	}
	return details, nil
}

func (f *fakeAssessmentRepo) ListMarksByStudentAndSubject(ctx context.Context, studentID, subjectID string) ([]models.AssessmentMark, error) {
	var result []models.AssessmentMark
	for _, mark := range f.marks {
		if mark.StudentID != studentID {
			continue
		}
		if a, ok := f.assessments[mark.AssessmentID]; ok && a.SubjectID == subjectID {
			result = append(result, mark)
		}
	}
	return result, nil
}

type fakeBlobStore struct {
	stored map[string][]byte
}

func (f *fakeBlobStore) Store(ctx context.Context, data []byte, name string) (string, error) {
	if f.stored == nil {
		f.stored = make(map[string][]byte)
	}
	f.stored[name] = data
	return "/files/" + name, nil
}

func newAssessmentFixture(studentIDs ...string) (*AssessmentService, *fakeAssessmentRepo, *fakeBlobStore) {
	repo := newFakeAssessmentRepo()
	subjects := &fakeSubjectDirectory{subjects: map[string]*models.Subject{
		"sub-1": {ID: "sub-1", CourseID: "course-1", Code: "CS101", Name: "Algorithms"},
	}}
	students := &fakeStudentDirectory{students: make(map[string]*models.StudentDetail)}
	for _, id := range studentIDs {
		students.students[id] = activeStudent(id)
	}
	store := &fakeBlobStore{}
	svc := NewAssessmentService(repo, subjects, students, store, validator.New(), zap.NewNop())
	return svc, repo, store
}

func TestAssessmentServiceCreateWeightageLimit(t *testing.T) {
	svc, _, _ := newAssessmentFixture()

	_, err := svc.Create(context.Background(), CreateAssessmentRequest{
		SubjectID: "sub-1", Title: "Midterm", MaxMarks: 50, Weightage: 40,
	})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), CreateAssessmentRequest{
		SubjectID: "sub-1", Title: "Quizzes", MaxMarks: 20, Weightage: 40,
	})
	require.NoError(t, err)

	// 40 + 40 + 30 breaches the limit
	_, err = svc.Create(context.Background(), CreateAssessmentRequest{
		SubjectID: "sub-1", Title: "Final", MaxMarks: 100, Weightage: 30,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidWeights.Code, appErrors.FromError(err).Code)

	// exactly 100 is allowed
	_, err = svc.Create(context.Background(), CreateAssessmentRequest{
		SubjectID: "sub-1", Title: "Final", MaxMarks: 100, Weightage: 20,
	})
	require.NoError(t, err)
}

func TestAssessmentServiceCreateUnknownSubject(t *testing.T) {
	svc, _, _ := newAssessmentFixture()
	_, err := svc.Create(context.Background(), CreateAssessmentRequest{
		SubjectID: "missing", Title: "Midterm", MaxMarks: 50, Weightage: 10,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAssessmentServiceGradeMarkBounds(t *testing.T) {
	svc, _, _ := newAssessmentFixture("stu-1")
	assessment, err := svc.Create(context.Background(), CreateAssessmentRequest{
		SubjectID: "sub-1", Title: "Midterm", MaxMarks: 50, Weightage: 40,
	})
	require.NoError(t, err)

	// both bounds inclusive
	_, err = svc.GradeMark(context.Background(), GradeMarkRequest{AssessmentID: assessment.ID, StudentID: "stu-1", MarksObtained: 0})
	require.NoError(t, err)
	_, err = svc.GradeMark(context.Background(), GradeMarkRequest{AssessmentID: assessment.ID, StudentID: "stu-1", MarksObtained: 50})
	require.NoError(t, err)

	_, err = svc.GradeMark(context.Background(), GradeMarkRequest{AssessmentID: assessment.ID, StudentID: "stu-1", MarksObtained: 50.01})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrMarkOutOfRange.Code, appErrors.FromError(err).Code)

	_, err = svc.GradeMark(context.Background(), GradeMarkRequest{AssessmentID: assessment.ID, StudentID: "stu-1", MarksObtained: -0.5})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrMarkOutOfRange.Code, appErrors.FromError(err).Code)
}

func TestAssessmentServiceBulkGradePartialSuccess(t *testing.T) {
	svc, repo, _ := newAssessmentFixture("stu-1", "stu-2")
	assessment, err := svc.Create(context.Background(), CreateAssessmentRequest{
		SubjectID: "sub-1", Title: "Midterm", MaxMarks: 50, Weightage: 40,
	})
	require.NoError(t, err)

	result, err := svc.BulkGradeMarks(context.Background(), []GradeMarkRequest{
		{AssessmentID: assessment.ID, StudentID: "stu-1", MarksObtained: 45},
		{AssessmentID: assessment.ID, StudentID: "stu-2", MarksObtained: 99}, // over max
		{AssessmentID: "missing", StudentID: "stu-1", MarksObtained: 10},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Written)
	assert.Equal(t, 2, result.Failed)
	assert.Len(t, repo.marks, 1)
}

func TestAssessmentServiceSubmit(t *testing.T) {
	svc, repo, store := newAssessmentFixture("stu-1")
	assessment, err := svc.Create(context.Background(), CreateAssessmentRequest{
		SubjectID: "sub-1", Title: "Midterm", MaxMarks: 50, Weightage: 40,
	})
	require.NoError(t, err)

	mark, err := svc.Submit(context.Background(), SubmitAssessmentRequest{
		AssessmentID: assessment.ID,
		StudentID:    "stu-1",
		FileName:     "answer.pdf",
		File:         []byte("content"),
	})
	require.NoError(t, err)
	require.NotNil(t, mark.SubmittedAt)
	require.NotNil(t, mark.FileURL)
	assert.Len(t, store.stored, 1)
	assert.Len(t, repo.marks, 1)
}

func TestAssessmentServiceSubmitAfterGradingKeepsMark(t *testing.T) {
	svc, _, _ := newAssessmentFixture("stu-1")
	assessment, err := svc.Create(context.Background(), CreateAssessmentRequest{
		SubjectID: "sub-1", Title: "Midterm", MaxMarks: 50, Weightage: 40,
	})
	require.NoError(t, err)

	graded, err := svc.GradeMark(context.Background(), GradeMarkRequest{AssessmentID: assessment.ID, StudentID: "stu-1", MarksObtained: 42})
	require.NoError(t, err)
	require.NotNil(t, graded.EvaluatedAt)

	// a student uploading again after grading must not reset the mark
	mark, err := svc.Submit(context.Background(), SubmitAssessmentRequest{
		AssessmentID: assessment.ID,
		StudentID:    "stu-1",
		FileName:     "revised.pdf",
		File:         []byte("content"),
	})
	require.NoError(t, err)
	assert.InDelta(t, 42.0, mark.MarksObtained, 0.001)
	assert.NotNil(t, mark.EvaluatedAt)
	assert.NotNil(t, mark.SubmittedAt)
}

func TestAssessmentServiceContributions(t *testing.T) {
	svc, _, _ := newAssessmentFixture("stu-1")
	midterm, err := svc.Create(context.Background(), CreateAssessmentRequest{
		SubjectID: "sub-1", Title: "Midterm", MaxMarks: 50, Weightage: 30,
	})
	require.NoError(t, err)
	final, err := svc.Create(context.Background(), CreateAssessmentRequest{
		SubjectID: "sub-1", Title: "Final", MaxMarks: 100, Weightage: 50,
	})
	require.NoError(t, err)

	_, err = svc.GradeMark(context.Background(), GradeMarkRequest{AssessmentID: midterm.ID, StudentID: "stu-1", MarksObtained: 40})
	require.NoError(t, err)

	// only graded assessments contribute; the final has no mark yet
	contributions, err := svc.Contributions(context.Background(), "stu-1", "sub-1")
	require.NoError(t, err)
	require.Len(t, contributions, 1)
	assert.Equal(t, midterm.ID, contributions[0].AssessmentID)
	assert.InDelta(t, 80.0, contributions[0].Percentage, 0.001)
	assert.InDelta(t, 24.0, contributions[0].Contribution, 0.001)

	_, err = svc.GradeMark(context.Background(), GradeMarkRequest{AssessmentID: final.ID, StudentID: "stu-1", MarksObtained: 90})
	require.NoError(t, err)
	contributions, err = svc.Contributions(context.Background(), "stu-1", "sub-1")
	require.NoError(t, err)
	assert.Len(t, contributions, 2)
}

func TestAssessmentServiceDelete(t *testing.T) {
	svc, repo, _ := newAssessmentFixture("stu-1")
	assessment, err := svc.Create(context.Background(), CreateAssessmentRequest{
		SubjectID: "sub-1", Title: "Midterm", MaxMarks: 50, Weightage: 40,
	})
	require.NoError(t, err)
	_, err = svc.GradeMark(context.Background(), GradeMarkRequest{AssessmentID: assessment.ID, StudentID: "stu-1", MarksObtained: 25})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), assessment.ID))
	assert.Empty(t, repo.assessments)
	assert.Empty(t, repo.marks)

	err = svc.Delete(context.Background(), assessment.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
