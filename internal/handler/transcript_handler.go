package handler

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/acadportal-api/internal/service"
	appErrors "github.com/noah-isme/acadportal-api/pkg/errors"
	"github.com/noah-isme/acadportal-api/pkg/response"
)

// TranscriptHandler exposes asynchronous transcript export endpoints.
type TranscriptHandler struct {
	transcripts *service.TranscriptService
}

// NewTranscriptHandler constructs TranscriptHandler.
func NewTranscriptHandler(transcripts *service.TranscriptService) *TranscriptHandler {
	return &TranscriptHandler{transcripts: transcripts}
}

// Request godoc
// @Summary Request a transcript export
// @Description Renders the transcript to PDF or CSV in the background
// @Tags Transcripts
// @Accept json
// @Produce json
// @Param payload body object true "Export payload"
// @Success 202 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /transcripts [post]
func (h *TranscriptHandler) Request(c *gin.Context) {
	var payload struct {
		StudentID string `json:"student_id" binding:"required"`
		Format    string `json:"format" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	job, err := h.transcripts.Request(c.Request.Context(), payload.StudentID, service.TranscriptFormat(strings.ToLower(payload.Format)))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, job)
}

// Status godoc
// @Summary Get transcript export status
// @Tags Transcripts
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /transcripts/{id} [get]
func (h *TranscriptHandler) Status(c *gin.Context) {
	job, err := h.transcripts.Status(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// Download godoc
// @Summary Download a rendered transcript
// @Description Validates the signed token before streaming the file
// @Tags Transcripts
// @Produce application/octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} file
// @Failure 401 {object} response.Envelope
// @Router /transcripts/download/{token} [get]
func (h *TranscriptHandler) Download(c *gin.Context) {
	file, err := h.transcripts.OpenByToken(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	name := filepath.Base(file.Name())
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, name))
	c.Header("Content-Type", contentTypeFor(name))
	if _, err := io.Copy(c.Writer, file); err != nil {
		_ = c.Error(err)
	}
}

func contentTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return "application/pdf"
	case ".csv":
		return "text/csv"
	default:
		return "application/octet-stream"
	}
}
