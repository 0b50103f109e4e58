package models

import "time"

// AttendanceStatus represents the status for attendance records.
type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "PRESENT"
	AttendanceStatusAbsent  AttendanceStatus = "ABSENT"
	AttendanceStatusLate    AttendanceStatus = "LATE"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusAbsent, AttendanceStatusLate:
		return true
	default:
		return false
	}
}

// CountsAsPresent reports whether the status counts toward the attendance
// percentage. LATE counts as presence, ABSENT does not.
func (s AttendanceStatus) CountsAsPresent() bool {
	return s == AttendanceStatusPresent || s == AttendanceStatusLate
}

// SubjectAttendance is one attendance record per (student, subject, date).
// Writes are upserts on that natural key so repeated recording never
// double-counts a session.
type SubjectAttendance struct {
	ID        string           `db:"id" json:"id"`
	StudentID string           `db:"student_id" json:"student_id"`
	SubjectID string           `db:"subject_id" json:"subject_id"`
	Date      time.Time        `db:"date" json:"date"`
	Status    AttendanceStatus `db:"status" json:"status"`
	Remarks   *string          `db:"remarks" json:"remarks,omitempty"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt time.Time        `db:"updated_at" json:"updated_at"`
}

// SubjectAttendanceFilter scopes listing queries.
type SubjectAttendanceFilter struct {
	SubjectID string
	StudentID string
	Status    *AttendanceStatus
	DateFrom  *time.Time
	DateTo    *time.Time
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// AttendancePercentage is the computed presence ratio for a student within a
// subject. A class session is a distinct date carrying any attendance record
// for the subject, across all students.
type AttendancePercentage struct {
	SubjectID       string  `json:"subject_id"`
	StudentID       string  `json:"student_id"`
	TotalSessions   int     `json:"total_sessions"`
	PresentSessions int     `json:"present_sessions"`
	Percentage      float64 `json:"percentage"`
}

// SubjectAttendanceAggregate is a raw per-subject counts row used when
// computing course-level summaries.
type SubjectAttendanceAggregate struct {
	SubjectID       string `db:"subject_id" json:"subject_id"`
	SubjectName     string `db:"subject_name" json:"subject_name"`
	TotalSessions   int    `db:"total_sessions" json:"total_sessions"`
	PresentSessions int    `db:"present_sessions" json:"present_sessions"`
}

// CourseAttendanceSummary groups per-subject percentages for a student's course.
type CourseAttendanceSummary struct {
	CourseID  string                 `json:"course_id"`
	StudentID string                 `json:"student_id"`
	Subjects  []AttendancePercentage `json:"subjects"`
	Overall   float64                `json:"overall"`
}
