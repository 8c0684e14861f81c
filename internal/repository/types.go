package repository

import (
	"time"

	"github.com/pesio-ai/be-hse-inspections/internal/workflow"
)

// ── Domain types for inspection targets ──────────────────────────────────────

// Target kinds.
const (
	KindFinding    = "finding"
	KindInspection = "inspection"
)

// Target is a finding or inspection whose resolution runs through the
// approval stages. History is loaded on demand.
type Target struct {
	ID          string
	Kind        string // finding | inspection
	Title       string
	Description *string
	Location    *string
	ReportedBy  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	History     []workflow.ApprovalHistoryEntry
}

// AuditEntry is one immutable record in the approval audit log.
type AuditEntry struct {
	ID          string
	TargetID    string
	Action      string // reported | started | verified
	PerformedBy string
	Stage       *int
	StageName   *string
	PerformedAt time.Time
	Metadata    map[string]interface{} // arbitrary JSON context
}

// DirectoryUser is a user holding a role in the organization directory.
type DirectoryUser struct {
	UserID   string
	UserName string
	Role     string
}
