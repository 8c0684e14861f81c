package workflow

import "time"

// ApprovalStatus is the stored outcome of a history entry.
type ApprovalStatus string

const (
	StatusOnProgress ApprovalStatus = "ON_PROGRESS"
	StatusFinished   ApprovalStatus = "FINISHED"
	StatusApproved   ApprovalStatus = "APPROVED"
	StatusRejected   ApprovalStatus = "REJECTED"
	StatusEffective  ApprovalStatus = "EFFECTIVE"
	StatusClose      ApprovalStatus = "CLOSE"
	StatusWaiting    ApprovalStatus = "WAITING"

	// StatusDefault is the presentation bucket for unknown status values.
	StatusDefault ApprovalStatus = "DEFAULT"
)

// Resolver outcomes that are not stage names.
const (
	StageUnknown   = "Unknown"
	StageCompleted = "Completed"
)

// ApprovalAssignment identifies who is responsible for a stage occurrence.
type ApprovalAssignment struct {
	UserID   string `json:"userId" yaml:"userId"`
	UserName string `json:"userName" yaml:"userName"`
	Role     string `json:"role" yaml:"role"`
	Stage    int    `json:"stage" yaml:"stage"`
}

// ApprovalHistoryEntry is one recorded event for one (target, stage) pair.
type ApprovalHistoryEntry struct {
	ID             string              `json:"id,omitempty"`
	TargetID       string              `json:"targetId,omitempty"`
	Stage          int                 `json:"stage"`
	ApprovalStatus ApprovalStatus      `json:"approvalStatus"`
	Note           string              `json:"note,omitempty"`
	CreatedAt      time.Time           `json:"createdAt"`
	VerifiedAt     *time.Time          `json:"verifiedAt"`
	Assignment     *ApprovalAssignment `json:"assignment,omitempty"`
}

// Verified reports whether a human decision has been recorded.
func (e ApprovalHistoryEntry) Verified() bool {
	return e.VerifiedAt != nil
}

// wellFormed reports whether the entry carries the fields reconciliation needs.
func (e ApprovalHistoryEntry) wellFormed() bool {
	return e.Stage > 0 && !e.CreatedAt.IsZero()
}
