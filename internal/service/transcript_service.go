package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/acadportal-api/internal/models"
	appErrors "github.com/noah-isme/acadportal-api/pkg/errors"
	"github.com/noah-isme/acadportal-api/pkg/export"
	"github.com/noah-isme/acadportal-api/pkg/jobs"
	"github.com/noah-isme/acadportal-api/pkg/storage"
)

// TranscriptFormat selects the rendered output type.
type TranscriptFormat string

const (
	TranscriptFormatPDF TranscriptFormat = "pdf"
	TranscriptFormatCSV TranscriptFormat = "csv"
)

// TranscriptJobStatus tracks the lifecycle of an export job.
type TranscriptJobStatus string

const (
	TranscriptJobPending   TranscriptJobStatus = "PENDING"
	TranscriptJobCompleted TranscriptJobStatus = "COMPLETED"
	TranscriptJobFailed    TranscriptJobStatus = "FAILED"
)

// TranscriptJob is the tracked state of one export request.
type TranscriptJob struct {
	ID        string              `json:"id"`
	StudentID string              `json:"student_id"`
	Format    TranscriptFormat    `json:"format"`
	Status    TranscriptJobStatus `json:"status"`
	Token     string              `json:"token,omitempty"`
	URL       string              `json:"url,omitempty"`
	ExpiresAt *time.Time          `json:"expires_at,omitempty"`
	Error     string              `json:"error,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
}

type transcriptProvider interface {
	Transcript(ctx context.Context, studentID string) (*models.Transcript, error)
}

type transcriptStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string, footers ...string) ([]byte, error)
}

// TranscriptConfig tunes transcript export behaviour.
type TranscriptConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// TranscriptService renders student transcripts to PDF or CSV in the
// background and hands out signed download URLs.
type TranscriptService struct {
	grades  transcriptProvider
	storage transcriptStorage
	csv     csvRenderer
	pdf     pdfRenderer
	signer  *storage.SignedURLSigner
	logger  *zap.Logger
	cfg     TranscriptConfig

	queue *jobs.Queue

	mu      sync.RWMutex
	tracked map[string]*TranscriptJob
}

// NewTranscriptService constructs a TranscriptService. Start must be called
// before Request.
func NewTranscriptService(grades transcriptProvider, store transcriptStorage, signer *storage.SignedURLSigner, cfg TranscriptConfig, logger *zap.Logger) *TranscriptService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	s := &TranscriptService{
		grades:  grades,
		storage: store,
		csv:     export.NewCSVExporter(),
		pdf:     export.NewPDFExporter(),
		signer:  signer,
		logger:  logger,
		cfg:     cfg,
		tracked: make(map[string]*TranscriptJob),
	}
	s.queue = jobs.NewQueue("transcripts", s.process, jobs.QueueConfig{
		Workers: 2,
		Logger:  logger,
	})
	return s
}

// Start launches the background workers.
func (s *TranscriptService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *TranscriptService) Stop() {
	s.queue.Stop()
}

// Request enqueues a transcript export and returns the tracked job.
func (s *TranscriptService) Request(ctx context.Context, studentID string, format TranscriptFormat) (*TranscriptJob, error) {
	if format != TranscriptFormatPDF && format != TranscriptFormatCSV {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported transcript format")
	}
	// Validate the student up front so the caller gets a synchronous 404.
	if _, err := s.grades.Transcript(ctx, studentID); err != nil {
		return nil, err
	}
	job := &TranscriptJob{
		ID:        uuid.NewString(),
		StudentID: studentID,
		Format:    format,
		Status:    TranscriptJobPending,
		CreatedAt: time.Now().UTC(),
	}
	s.mu.Lock()
	s.tracked[job.ID] = job
	s.mu.Unlock()

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: "transcript", Payload: job}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue transcript job")
	}
	return job, nil
}

// Status returns the tracked job state.
func (s *TranscriptService) Status(jobID string) (*TranscriptJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.tracked[jobID]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "transcript job not found")
	}
	copied := *job
	return &copied, nil
}

// OpenByToken validates a signed token and opens the referenced file.
func (s *TranscriptService) OpenByToken(token string) (*os.File, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid download token")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "transcript file not found")
	}
	return file, nil
}

// Cleanup removes rendered files older than the configured TTL.
func (s *TranscriptService) Cleanup() ([]string, error) {
	return s.storage.CleanupOlderThan(s.cfg.ResultTTL)
}

func (s *TranscriptService) process(ctx context.Context, job jobs.Job) error {
	tracked, ok := job.Payload.(*TranscriptJob)
	if !ok {
		return fmt.Errorf("unexpected transcript payload type %T", job.Payload)
	}

	transcript, err := s.grades.Transcript(ctx, tracked.StudentID)
	if err != nil {
		s.fail(tracked, err)
		return err
	}

	dataset := transcriptDataset(transcript)
	title := fmt.Sprintf("Transcript %s", tracked.StudentID)
	footer := fmt.Sprintf("CGPA: %.2f", transcript.CGPA)

	var payload []byte
	switch tracked.Format {
	case TranscriptFormatCSV:
		payload, err = s.csv.Render(dataset)
	default:
		payload, err = s.pdf.Render(dataset, title, footer)
	}
	if err != nil {
		s.fail(tracked, err)
		return err
	}

	filename := fmt.Sprintf("transcripts/%s_%s.%s", tracked.StudentID, time.Now().UTC().Format("20060102_150405"), tracked.Format)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		s.fail(tracked, err)
		return err
	}

	token, expiresAt, err := s.signer.Generate(tracked.ID, relPath)
	if err != nil {
		s.fail(tracked, err)
		return err
	}

	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	s.mu.Lock()
	tracked.Status = TranscriptJobCompleted
	tracked.Token = token
	tracked.URL = fmt.Sprintf("%s/transcripts/download/%s", prefix, token)
	tracked.ExpiresAt = &expiresAt
	s.mu.Unlock()

	s.logger.Info("transcript rendered",
		zap.String("job_id", tracked.ID),
		zap.String("student_id", tracked.StudentID),
		zap.String("format", string(tracked.Format)),
	)
	return nil
}

func (s *TranscriptService) fail(job *TranscriptJob, err error) {
	s.mu.Lock()
	job.Status = TranscriptJobFailed
	job.Error = err.Error()
	s.mu.Unlock()
}

func transcriptDataset(transcript *models.Transcript) export.Dataset {
	headers := []string{"Semester", "Course", "Title", "Credits", "Total Mark", "Grade", "Points"}
	rows := make([]map[string]string, 0, len(transcript.Records))
	for _, record := range transcript.Records {
		rows = append(rows, map[string]string{
			"Semester":   fmt.Sprintf("%d", record.Semester),
			"Course":     record.CourseCode,
			"Title":      record.CourseName,
			"Credits":    fmt.Sprintf("%d", record.Credits),
			"Total Mark": fmt.Sprintf("%.2f", record.TotalMark),
			"Grade":      record.LetterGrade,
			"Points":     fmt.Sprintf("%.1f", record.GradePoint),
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}
