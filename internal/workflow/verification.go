package workflow

import (
	"sort"
	"strings"
)

// RejectStatus is the decision code that requires an explanatory note.
const RejectStatus = StatusRejected

// Decision is the payload a verifier submits for the blocking stage.
type Decision struct {
	ApprovalStatus ApprovalStatus `json:"approvalStatus"`
	Note           string         `json:"note"`
}

var decisionStatuses = map[ApprovalStatus]struct{}{
	StatusApproved:  {},
	StatusFinished:  {},
	StatusEffective: {},
	StatusClose:     {},
	StatusRejected:  {},
}

// DecisionStatuses lists the statuses a verifier may choose, sorted.
func DecisionStatuses() []ApprovalStatus {
	out := make([]ApprovalStatus, 0, len(decisionStatuses))
	for s := range decisionStatuses {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ValidationError carries field-level messages for a rejected submission.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid decision: " + strings.Join(parts, "; ")
}

// Validate checks a decision before it is sent anywhere. A missing status and
// a rejection without a note are both reported.
func (d Decision) Validate() error {
	fields := make(map[string]string)

	status := ApprovalStatus(strings.TrimSpace(string(d.ApprovalStatus)))
	switch {
	case status == "":
		fields["approvalStatus"] = "approval status is required"
	default:
		if _, ok := decisionStatuses[status]; !ok {
			fields["approvalStatus"] = "unsupported approval status " + string(status)
		}
	}
	if status == RejectStatus && strings.TrimSpace(d.Note) == "" {
		fields["note"] = "a note is required when rejecting"
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Normalized returns the decision with surrounding whitespace removed.
func (d Decision) Normalized() Decision {
	return Decision{
		ApprovalStatus: ApprovalStatus(strings.TrimSpace(string(d.ApprovalStatus))),
		Note:           strings.TrimSpace(d.Note),
	}
}

// CanVerify reports whether role may act on the stage currently blocking
// progress. Terminal and unknown stages are never actionable.
func (r *Registry) CanVerify(role, currentStage string) bool {
	if currentStage == StageUnknown || currentStage == StageCompleted {
		return false
	}
	return containsString(r.StagesForRole(role), currentStage)
}

// CanVerify checks against the Default registry.
func CanVerify(role, currentStage string) bool {
	return Default.CanVerify(role, currentStage)
}
