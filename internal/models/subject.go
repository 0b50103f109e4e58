package models

import "time"

// Subject is a taught topic within a course, owned by a faculty member.
type Subject struct {
	ID        string    `db:"id" json:"id"`
	CourseID  string    `db:"course_id" json:"course_id"`
	Code      string    `db:"code" json:"code"`
	Name      string    `db:"name" json:"name"`
	FacultyID *string   `db:"faculty_id" json:"faculty_id,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// SubjectFilter scopes subject listing queries.
type SubjectFilter struct {
	CourseID  string
	FacultyID string
	Search    string
	Page      int
	PageSize  int
}
