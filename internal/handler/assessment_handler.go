package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/acadportal-api/internal/service"
	appErrors "github.com/noah-isme/acadportal-api/pkg/errors"
	"github.com/noah-isme/acadportal-api/pkg/response"
)

// maxSubmissionBytes bounds uploaded submission files.
const maxSubmissionBytes = 16 << 20

// AssessmentHandler exposes assessment, submission and marking endpoints.
type AssessmentHandler struct {
	assessments *service.AssessmentService
}

// NewAssessmentHandler constructs AssessmentHandler.
func NewAssessmentHandler(assessments *service.AssessmentService) *AssessmentHandler {
	return &AssessmentHandler{assessments: assessments}
}

// Create godoc
// @Summary Create assessment
// @Description The combined weightage of a subject's assessments may not exceed 100
// @Tags Assessments
// @Accept json
// @Produce json
// @Param payload body service.CreateAssessmentRequest true "Assessment payload"
// @Success 201 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /assessments [post]
func (h *AssessmentHandler) Create(c *gin.Context) {
	var req service.CreateAssessmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	assessment, err := h.assessments.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, assessment)
}

// ListBySubject godoc
// @Summary List assessments for a subject
// @Tags Assessments
// @Produce json
// @Param id path string true "Subject ID"
// @Success 200 {object} response.Envelope
// @Router /subjects/{id}/assessments [get]
func (h *AssessmentHandler) ListBySubject(c *gin.Context) {
	assessments, err := h.assessments.ListBySubject(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assessments, nil)
}

// Delete godoc
// @Summary Delete assessment
// @Tags Assessments
// @Produce json
// @Param id path string true "Assessment ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /assessments/{id} [delete]
func (h *AssessmentHandler) Delete(c *gin.Context) {
	if err := h.assessments.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Grade godoc
// @Summary Grade one student's mark
// @Description Marks must lie within [0, maxMarks], both bounds inclusive
// @Tags Assessments
// @Accept json
// @Produce json
// @Param payload body service.GradeMarkRequest true "Mark payload"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /assessments/marks [post]
func (h *AssessmentHandler) Grade(c *gin.Context) {
	var req service.GradeMarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	mark, err := h.assessments.GradeMark(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, mark, nil)
}

// BulkGrade godoc
// @Summary Grade a batch of marks
// @Description Rows are validated and written independently; rejected rows do not abort the batch
// @Tags Assessments
// @Accept json
// @Produce json
// @Param payload body []service.GradeMarkRequest true "Mark batch"
// @Success 200 {object} response.Envelope
// @Router /assessments/marks/bulk [post]
func (h *AssessmentHandler) BulkGrade(c *gin.Context) {
	var reqs []service.GradeMarkRequest
	if err := c.ShouldBindJSON(&reqs); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.assessments.BulkGradeMarks(c.Request.Context(), reqs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Submit godoc
// @Summary Submit an assessment file
// @Tags Assessments
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Assessment ID"
// @Param student_id formData string true "Student ID"
// @Param file formData file true "Submission file"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /assessments/{id}/submissions [post]
func (h *AssessmentHandler) Submit(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "submission file required"))
		return
	}
	if fileHeader.Size > maxSubmissionBytes {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "submission file too large"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open submission"))
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read submission"))
		return
	}

	req := service.SubmitAssessmentRequest{
		AssessmentID: c.Param("id"),
		StudentID:    c.PostForm("student_id"),
		FileName:     fileHeader.Filename,
		File:         data,
	}
	mark, err := h.assessments.Submit(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, mark, nil)
}

// Marks godoc
// @Summary List marks for an assessment
// @Tags Assessments
// @Produce json
// @Param id path string true "Assessment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /assessments/{id}/marks [get]
func (h *AssessmentHandler) Marks(c *gin.Context) {
	marks, err := h.assessments.ListMarks(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, marks, nil)
}

// Contributions godoc
// @Summary Weighted contributions of a student's marks within a subject
// @Tags Assessments
// @Produce json
// @Param id path string true "Subject ID"
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /subjects/{id}/students/{studentId}/contributions [get]
func (h *AssessmentHandler) Contributions(c *gin.Context) {
	contributions, err := h.assessments.Contributions(c.Request.Context(), c.Param("studentId"), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, contributions, nil)
}
