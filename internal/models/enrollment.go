package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses. Transitions are unrestricted: any status may
// move to any other, including itself.
const (
	EnrollmentStatusActive    EnrollmentStatus = "ACTIVE"
	EnrollmentStatusDropped   EnrollmentStatus = "DROPPED"
	EnrollmentStatusCompleted EnrollmentStatus = "COMPLETED"
	EnrollmentStatusOnHold    EnrollmentStatus = "ON_HOLD"
)

// Valid returns true when the status is a supported value.
func (s EnrollmentStatus) Valid() bool {
	switch s {
	case EnrollmentStatusActive, EnrollmentStatusDropped, EnrollmentStatusCompleted, EnrollmentStatusOnHold:
		return true
	default:
		return false
	}
}

// SectionEnrollment links a student to a section. At most one row exists per
// (student, section) pair regardless of status.
type SectionEnrollment struct {
	ID         string           `db:"id" json:"id"`
	StudentID  string           `db:"student_id" json:"student_id"`
	SectionID  string           `db:"section_id" json:"section_id"`
	Status     EnrollmentStatus `db:"status" json:"status"`
	EnrolledAt time.Time        `db:"enrolled_at" json:"enrolled_at"`
	UpdatedAt  time.Time        `db:"updated_at" json:"updated_at"`
}

// SectionEnrollmentDetail enriches the enrollment with student and section info.
type SectionEnrollmentDetail struct {
	SectionEnrollment
	StudentName  string `db:"student_name" json:"student_name"`
	RollNumber   string `db:"roll_number" json:"roll_number"`
	SectionName  string `db:"section_name" json:"section_name"`
	CourseID     string `db:"course_id" json:"course_id"`
	CourseName   string `db:"course_name" json:"course_name"`
	AcademicTerm string `db:"academic_term" json:"academic_term"`
}

// SectionEnrollmentFilter provides filters for listing section enrollments.
type SectionEnrollmentFilter struct {
	StudentID string
	SectionID string
	Status    EnrollmentStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// CourseEnrollment links a student directly to a course. It is an independent
// enrollment root with its own (student, course) uniqueness rule and no
// capacity constraint.
type CourseEnrollment struct {
	ID         string           `db:"id" json:"id"`
	StudentID  string           `db:"student_id" json:"student_id"`
	CourseID   string           `db:"course_id" json:"course_id"`
	Status     EnrollmentStatus `db:"status" json:"status"`
	EnrolledAt time.Time        `db:"enrolled_at" json:"enrolled_at"`
	UpdatedAt  time.Time        `db:"updated_at" json:"updated_at"`
}

// CourseEnrollmentDetail enriches the course enrollment for display.
type CourseEnrollmentDetail struct {
	CourseEnrollment
	StudentName string `db:"student_name" json:"student_name"`
	RollNumber  string `db:"roll_number" json:"roll_number"`
	CourseCode  string `db:"course_code" json:"course_code"`
	CourseName  string `db:"course_name" json:"course_name"`
}
