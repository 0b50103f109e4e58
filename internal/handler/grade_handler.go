package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/acadportal-api/internal/models"
	"github.com/noah-isme/acadportal-api/internal/service"
	appErrors "github.com/noah-isme/acadportal-api/pkg/errors"
	"github.com/noah-isme/acadportal-api/pkg/response"
)

// GradeHandler exposes internal marks, CGPA and transcript endpoints.
type GradeHandler struct {
	grades *service.GradeService
}

// NewGradeHandler constructs GradeHandler.
func NewGradeHandler(grades *service.GradeService) *GradeHandler {
	return &GradeHandler{grades: grades}
}

// UpsertMarks godoc
// @Summary Write internal marks
// @Description Creates or updates the record keyed by (student, course, semester)
// @Tags Grades
// @Accept json
// @Produce json
// @Param payload body service.InternalMarksRequest true "Marks payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /grades/marks [post]
func (h *GradeHandler) UpsertMarks(c *gin.Context) {
	var req service.InternalMarksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	record, err := h.grades.UpsertInternalMarks(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// BulkUpsertMarks godoc
// @Summary Write a batch of internal marks
// @Description Partial success: rejected rows are reported, accepted rows are written
// @Tags Grades
// @Accept json
// @Produce json
// @Param payload body []service.InternalMarksRequest true "Marks batch"
// @Success 200 {object} response.Envelope
// @Router /grades/marks/bulk [post]
func (h *GradeHandler) BulkUpsertMarks(c *gin.Context) {
	var reqs []service.InternalMarksRequest
	if err := c.ShouldBindJSON(&reqs); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.grades.BulkUpsertInternalMarks(c.Request.Context(), reqs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// List godoc
// @Summary List grade records
// @Tags Grades
// @Produce json
// @Param studentId query string false "Filter by student"
// @Param courseId query string false "Filter by course"
// @Param facultyId query string false "Filter by faculty"
// @Param semester query int false "Filter by semester"
// @Success 200 {object} response.Envelope
// @Router /grades [get]
func (h *GradeHandler) List(c *gin.Context) {
	var filter models.GradeRecordFilter
	filter.StudentID = c.Query("studentId")
	filter.CourseID = c.Query("courseId")
	filter.FacultyID = c.Query("facultyId")
	if semester, err := strconv.Atoi(c.Query("semester")); err == nil {
		filter.Semester = semester
	}

	records, err := h.grades.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// CGPA godoc
// @Summary Compute a student's CGPA
// @Description Unweighted mean of grade points across all grade records, rounded to two decimals
// @Tags Grades
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/cgpa [get]
func (h *GradeHandler) CGPA(c *gin.Context) {
	cgpa, err := h.grades.CGPA(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"student_id": c.Param("id"), "cgpa": cgpa}, nil)
}

// Transcript godoc
// @Summary Get a student's transcript
// @Tags Grades
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id}/transcript [get]
func (h *GradeHandler) Transcript(c *gin.Context) {
	transcript, err := h.grades.Transcript(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, transcript, nil)
}
