package models

import "time"

// ReportKind selects which analysis a session discusses.
type ReportKind string

const (
	ReportMarketing ReportKind = "marketing"
	ReportWebsite   ReportKind = "website"
)

// Valid reports whether the kind is one of the supported analyses.
func (k ReportKind) Valid() bool {
	return k == ReportMarketing || k == ReportWebsite
}

// Session is a standing conversation scoped to one (purchase, report kind)
// pair. At most one active session per pair receives new messages; archived
// sessions stay readable but are never deleted.
type Session struct {
	ID          string     `json:"id"`
	PurchaseID  string     `json:"purchase_id"`
	ReportKind  ReportKind `json:"report_kind"`
	AssistantID string     `json:"assistant_id"`
	Title       string     `json:"title"`
	Active      bool       `json:"active"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
