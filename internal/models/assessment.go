package models

import "time"

// Assessment is a gradable item (exam, assignment) belonging to a subject.
type Assessment struct {
	ID        string     `db:"id" json:"id"`
	SubjectID string     `db:"subject_id" json:"subject_id"`
	Title     string     `db:"title" json:"title"`
	MaxMarks  float64    `db:"max_marks" json:"max_marks"`
	Weightage float64    `db:"weightage" json:"weightage"`
	DueDate   *time.Time `db:"due_date" json:"due_date,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// AssessmentMark holds at most one mark per (student, assessment).
type AssessmentMark struct {
	ID            string     `db:"id" json:"id"`
	AssessmentID  string     `db:"assessment_id" json:"assessment_id"`
	StudentID     string     `db:"student_id" json:"student_id"`
	MarksObtained float64    `db:"marks_obtained" json:"marks_obtained"`
	SubmittedAt   *time.Time `db:"submitted_at" json:"submitted_at,omitempty"`
	EvaluatedAt   *time.Time `db:"evaluated_at" json:"evaluated_at,omitempty"`
	Feedback      *string    `db:"feedback" json:"feedback,omitempty"`
	FileURL       *string    `db:"file_url" json:"file_url,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// AssessmentMarkDetail enriches a mark with student metadata.
type AssessmentMarkDetail struct {
	AssessmentMark
	StudentName string `db:"student_name" json:"student_name"`
	RollNumber  string `db:"roll_number" json:"roll_number"`
}

// AssessmentContribution is the weighted share an assessment mark adds to a
// subject's final percentage.
type AssessmentContribution struct {
	AssessmentID string  `json:"assessment_id"`
	Percentage   float64 `json:"percentage"`
	Contribution float64 `json:"contribution"`
}
