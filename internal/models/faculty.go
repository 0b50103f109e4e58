package models

import "time"

// Faculty represents a teaching staff profile linked to a portal user.
type Faculty struct {
	ID           string    `db:"id" json:"id"`
	UserID       string    `db:"user_id" json:"user_id"`
	FullName     string    `db:"full_name" json:"full_name"`
	DepartmentID *string   `db:"department_id" json:"department_id,omitempty"`
	Designation  string    `db:"designation" json:"designation"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}
