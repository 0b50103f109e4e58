package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/acadportal-api/internal/models"
)

var markColumns = []string{"id", "assessment_id", "student_id", "marks_obtained", "submitted_at", "evaluated_at", "feedback", "file_url", "created_at", "updated_at"}

// The upsert must leave marks_obtained untouched unless the write carries an
// evaluation; an ungraded submission landing on a graded row keeps the mark.
func TestAssessmentRepositoryUpsertMarkGuardsGradedValue(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAssessmentRepository(db)

	now := time.Now().UTC()
	evaluated := now.Add(-time.Hour)
	mock.ExpectQuery(regexp.QuoteMeta("marks_obtained = CASE WHEN EXCLUDED.evaluated_at IS NOT NULL THEN EXCLUDED.marks_obtained ELSE assessment_marks.marks_obtained END")).
		WithArgs(sqlmock.AnyArg(), "assess-1", "stu-1", 0.0, sqlmock.AnyArg(), nil, nil, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(markColumns).
			AddRow("mark-1", "assess-1", "stu-1", 42.0, now, evaluated, nil, "/files/revised.pdf", now, now))

	fileURL := "/files/revised.pdf"
	stored, err := repo.UpsertMark(context.Background(), &models.AssessmentMark{
		AssessmentID: "assess-1",
		StudentID:    "stu-1",
		SubmittedAt:  &now,
		FileURL:      &fileURL,
	})
	require.NoError(t, err)
	require.InDelta(t, 42.0, stored.MarksObtained, 0.001)
	require.NotNil(t, stored.EvaluatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}
