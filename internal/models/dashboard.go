package models

// DashboardSummary aggregates headline counts for the portal landing page.
type DashboardSummary struct {
	Students          int     `json:"students"`
	Faculty           int     `json:"faculty"`
	Courses           int     `json:"courses"`
	Sections          int     `json:"sections"`
	ActiveEnrollments int     `json:"active_enrollments"`
	AttendanceToday   float64 `json:"attendance_today"`
}
