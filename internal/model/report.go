package model

import "time"

// Report is an issue raised by a user about a borrow or an item.
type Report struct {
	ID          string    `json:"id" db:"id"`
	ReporterID  string    `json:"reporter_id" db:"reporter_id"`
	RequestID   *string   `json:"request_id,omitempty" db:"request_id"`
	ItemID      *string   `json:"item_id,omitempty" db:"item_id"`
	IssueType   string    `json:"issue_type" db:"issue_type"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	Status      string    `json:"status" db:"status"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`

	// Joined fields (not always populated).
	ReporterName string `json:"reporter_name,omitempty" db:"reporter_name"`
}

// Report statuses.
const (
	ReportOpen       = "open"
	ReportInProgress = "in_progress"
	ReportResolved   = "resolved"
)

// Issue types.
const (
	IssueDamaged = "damaged"
	IssueLate    = "late"
	IssueMissing = "missing"
	IssueConduct = "conduct"
	IssueOther   = "other"
)

// ValidReportStatus reports whether s is a known report status.
func ValidReportStatus(s string) bool {
	return s == ReportOpen || s == ReportInProgress || s == ReportResolved
}

// ValidIssueType reports whether s is a known issue type.
func ValidIssueType(s string) bool {
	switch s {
	case IssueDamaged, IssueLate, IssueMissing, IssueConduct, IssueOther:
		return true
	}
	return false
}
