package models

import "time"

// NoticeAudience narrows who a notice is addressed to.
type NoticeAudience string

const (
	NoticeAudienceAll     NoticeAudience = "ALL"
	NoticeAudienceFaculty NoticeAudience = "FACULTY"
	NoticeAudienceStudent NoticeAudience = "STUDENT"
)

// Valid returns true when the audience is a supported value.
func (a NoticeAudience) Valid() bool {
	switch a {
	case NoticeAudienceAll, NoticeAudienceFaculty, NoticeAudienceStudent:
		return true
	default:
		return false
	}
}

// Notice is an announcement published to a targeted audience. Department,
// course and section targets are optional narrowing filters.
type Notice struct {
	ID           string         `db:"id" json:"id"`
	Title        string         `db:"title" json:"title"`
	Body         string         `db:"body" json:"body"`
	Audience     NoticeAudience `db:"audience" json:"audience"`
	DepartmentID *string        `db:"department_id" json:"department_id,omitempty"`
	CourseID     *string        `db:"course_id" json:"course_id,omitempty"`
	SectionID    *string        `db:"section_id" json:"section_id,omitempty"`
	PublishedAt  time.Time      `db:"published_at" json:"published_at"`
	ExpiresAt    *time.Time     `db:"expires_at" json:"expires_at,omitempty"`
	CreatedBy    string         `db:"created_by" json:"created_by"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// NoticeFilter scopes notice listing queries.
type NoticeFilter struct {
	Audience NoticeAudience
	Page     int
	PageSize int
}

// NoticeTarget describes the reader a notice feed is resolved for.
type NoticeTarget struct {
	Role         UserRole
	DepartmentID string
	CourseIDs    []string
	SectionIDs   []string
}
