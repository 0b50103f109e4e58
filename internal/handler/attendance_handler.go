package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/acadportal-api/internal/models"
	"github.com/noah-isme/acadportal-api/internal/service"
	appErrors "github.com/noah-isme/acadportal-api/pkg/errors"
	"github.com/noah-isme/acadportal-api/pkg/response"
)

// AttendanceHandler exposes attendance recording and aggregation endpoints.
type AttendanceHandler struct {
	attendance *service.AttendanceService
}

// NewAttendanceHandler constructs AttendanceHandler.
func NewAttendanceHandler(attendance *service.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{attendance: attendance}
}

// Record godoc
// @Summary Record attendance for a session
// @Description Upserts records keyed by (student, subject, date); re-recording overwrites statuses
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body service.RecordAttendanceRequest true "Attendance payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /attendance [post]
func (h *AttendanceHandler) Record(c *gin.Context) {
	var req service.RecordAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	records, err := h.attendance.Record(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// List godoc
// @Summary List attendance records
// @Tags Attendance
// @Produce json
// @Param subjectId query string false "Filter by subject"
// @Param studentId query string false "Filter by student"
// @Param status query string false "Filter by status"
// @Param from query string false "Date from (RFC3339)"
// @Param to query string false "Date to (RFC3339)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /attendance [get]
func (h *AttendanceHandler) List(c *gin.Context) {
	var filter models.SubjectAttendanceFilter
	filter.SubjectID = c.Query("subjectId")
	filter.StudentID = c.Query("studentId")
	if raw := strings.ToUpper(c.Query("status")); raw != "" {
		status := models.AttendanceStatus(raw)
		filter.Status = &status
	}
	if raw := c.Query("from"); raw != "" {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.DateFrom = &ts
		}
	}
	if raw := c.Query("to"); raw != "" {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.DateTo = &ts
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil {
		filter.PageSize = size
	}

	records, pagination, err := h.attendance.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, pagination)
}

// Percentage godoc
// @Summary Attendance percentage for a student within a subject
// @Description PRESENT and LATE count toward presence; with no sessions held the percentage is 100
// @Tags Attendance
// @Produce json
// @Param subjectId path string true "Subject ID"
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /attendance/subjects/{subjectId}/students/{studentId} [get]
func (h *AttendanceHandler) Percentage(c *gin.Context) {
	percentage, err := h.attendance.Percentage(c.Request.Context(), c.Param("subjectId"), c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, percentage, nil)
}

// CourseSummary godoc
// @Summary Per-subject attendance summary for a student's course
// @Tags Attendance
// @Produce json
// @Param courseId path string true "Course ID"
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /attendance/courses/{courseId}/students/{studentId} [get]
func (h *AttendanceHandler) CourseSummary(c *gin.Context) {
	summary, err := h.attendance.CourseSummary(c.Request.Context(), c.Param("courseId"), c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
