package models

import "time"

// Course represents a unit of study offered by a department.
type Course struct {
	ID           string    `db:"id" json:"id"`
	Code         string    `db:"code" json:"code"`
	Name         string    `db:"name" json:"name"`
	DepartmentID *string   `db:"department_id" json:"department_id,omitempty"`
	Credits      int       `db:"credits" json:"credits"`
	Semester     int       `db:"semester" json:"semester"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// CourseFilter scopes course listing queries.
type CourseFilter struct {
	Search       string
	DepartmentID string
	Semester     int
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}

// Section is a scheduled offering of a course with a capacity limit.
type Section struct {
	ID           string    `db:"id" json:"id"`
	CourseID     string    `db:"course_id" json:"course_id"`
	Name         string    `db:"name" json:"name"`
	AcademicTerm string    `db:"academic_term" json:"academic_term"`
	Capacity     int       `db:"capacity" json:"capacity"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// SectionDetail enriches Section with course info and seat usage.
type SectionDetail struct {
	Section
	CourseCode string `db:"course_code" json:"course_code"`
	CourseName string `db:"course_name" json:"course_name"`
	Enrolled   int    `db:"enrolled" json:"enrolled"`
}
