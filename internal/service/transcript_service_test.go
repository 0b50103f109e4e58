package service

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/acadportal-api/internal/models"
	appErrors "github.com/noah-isme/acadportal-api/pkg/errors"
	"github.com/noah-isme/acadportal-api/pkg/storage"
)

type fakeTranscriptProvider struct {
	transcripts map[string]*models.Transcript
}

func (f *fakeTranscriptProvider) Transcript(ctx context.Context, studentID string) (*models.Transcript, error) {
	if tr, ok := f.transcripts[studentID]; ok {
		return tr, nil
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
}

func newTranscriptFixture(t *testing.T) *TranscriptService {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	grades := &fakeTranscriptProvider{transcripts: map[string]*models.Transcript{
		"stu-1": {
			StudentID: "stu-1",
			CGPA:      3.7,
			Records: []models.GradeRecordDetail{{
				GradeRecord: models.GradeRecord{StudentID: "stu-1", CourseID: "course-1", Semester: 1, TotalMark: 82},
				CourseCode:  "CS101",
				CourseName:  "Algorithms",
				Credits:     4,
				LetterGrade: "A-",
				GradePoint:  3.7,
			}},
		},
	}}
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	svc := NewTranscriptService(grades, store, signer, TranscriptConfig{APIPrefix: "/api/v1", ResultTTL: time.Hour}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	svc.Start(ctx)
	t.Cleanup(func() {
		cancel()
		svc.Stop()
	})
	return svc
}

func TestTranscriptServiceRendersCSV(t *testing.T) {
	svc := newTranscriptFixture(t)

	job, err := svc.Request(context.Background(), "stu-1", TranscriptFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, TranscriptJobPending, job.Status)

	require.Eventually(t, func() bool {
		current, err := svc.Status(job.ID)
		return err == nil && current.Status == TranscriptJobCompleted
	}, 5*time.Second, 10*time.Millisecond)

	completed, err := svc.Status(job.ID)
	require.NoError(t, err)
	require.NotEmpty(t, completed.Token)
	assert.Contains(t, completed.URL, "/api/v1/transcripts/download/")
	require.NotNil(t, completed.ExpiresAt)

	file, err := svc.OpenByToken(completed.Token)
	require.NoError(t, err)
	defer file.Close()
	content, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Contains(t, string(content), "CS101")
}

func TestTranscriptServiceRejectsUnknownFormat(t *testing.T) {
	svc := newTranscriptFixture(t)
	_, err := svc.Request(context.Background(), "stu-1", "docx")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestTranscriptServiceUnknownStudentSynchronous404(t *testing.T) {
	svc := newTranscriptFixture(t)
	_, err := svc.Request(context.Background(), "ghost", TranscriptFormatPDF)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestTranscriptServiceStatusUnknownJob(t *testing.T) {
	svc := newTranscriptFixture(t)
	_, err := svc.Status("missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestTranscriptServiceOpenByTokenRejectsGarbage(t *testing.T) {
	svc := newTranscriptFixture(t)
	_, err := svc.OpenByToken("not-a-token")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
