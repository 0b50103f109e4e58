package models

import "time"

// GradeRecord stores the internal marks for one (student, course, semester).
// Letter grade and grade point are derived from the total mark on read and
// never persisted.
type GradeRecord struct {
	ID             string    `db:"id" json:"id"`
	StudentID      string    `db:"student_id" json:"student_id"`
	FacultyID      string    `db:"faculty_id" json:"faculty_id"`
	CourseID       string    `db:"course_id" json:"course_id"`
	Semester       int       `db:"semester" json:"semester"`
	SessionalMark  float64   `db:"sessional_mark" json:"sessional_mark"`
	AttendanceMark float64   `db:"attendance_mark" json:"attendance_mark"`
	TotalMark      float64   `db:"total_mark" json:"total_mark"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// GradeRecordView is a grade record with its derived letter grade and point.
type GradeRecordView struct {
	GradeRecord
	LetterGrade string  `json:"letter_grade"`
	GradePoint  float64 `json:"grade_point"`
}

// GradeRecordDetail enriches a view with course metadata for transcripts.
type GradeRecordDetail struct {
	GradeRecord
	CourseCode  string  `db:"course_code" json:"course_code"`
	CourseName  string  `db:"course_name" json:"course_name"`
	Credits     int     `db:"credits" json:"credits"`
	LetterGrade string  `json:"letter_grade"`
	GradePoint  float64 `json:"grade_point"`
}

// GradeRecordFilter scopes grade record queries.
type GradeRecordFilter struct {
	StudentID string
	CourseID  string
	FacultyID string
	Semester  int
}

// Transcript aggregates a student's graded courses and CGPA.
type Transcript struct {
	StudentID string              `json:"student_id"`
	Records   []GradeRecordDetail `json:"records"`
	CGPA      float64             `json:"cgpa"`
}
