package models

import "time"

// Student represents a learner profile linked to a portal user.
type Student struct {
	ID           string    `db:"id" json:"id"`
	UserID       string    `db:"user_id" json:"user_id"`
	RollNumber   string    `db:"roll_number" json:"roll_number"`
	FullName     string    `db:"full_name" json:"full_name"`
	DepartmentID *string   `db:"department_id" json:"department_id,omitempty"`
	Semester     int       `db:"semester" json:"semester"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// StudentDetail enriches Student with account information.
type StudentDetail struct {
	Student
	Email      string `db:"email" json:"email"`
	UserActive bool   `db:"user_active" json:"user_active"`
}

// StudentFilter encapsulates search parameters for listing students.
type StudentFilter struct {
	Search       string
	DepartmentID string
	Semester     int
	Active       *bool
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}
