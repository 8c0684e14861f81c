package workflow

// TimelineEntry pairs a reconciled history entry with its display status.
type TimelineEntry struct {
	Entry         ApprovalHistoryEntry `json:"entry"`
	StageName     string               `json:"stageName"`
	DisplayStatus ApprovalStatus       `json:"displayStatus"`
	Badge         Badge                `json:"badge"`
}

// Timeline is the derived view of one target's approval history.
type Timeline struct {
	CurrentStage       string          `json:"currentStage"`
	CurrentStageNumber int             `json:"currentStageNumber,omitempty"`
	Completed          bool            `json:"completed"`
	CanVerify          bool            `json:"canVerify"`
	Entries            []TimelineEntry `json:"entries"`
}

// BuildTimeline runs the full derivation for a raw history snapshot:
// reconcile, project per stage, resolve the current stage, then label every
// reconciled entry. role is the viewer's role and only affects CanVerify.
func (r *Registry) BuildTimeline(history []ApprovalHistoryEntry, role string) Timeline {
	reconciled := Reconcile(history)
	view := StageView(reconciled)

	current := r.CurrentStage(view)
	t := Timeline{
		CurrentStage: current,
		Completed:    current == StageCompleted,
		CanVerify:    r.CanVerify(role, current),
		Entries:      make([]TimelineEntry, 0, len(reconciled)),
	}
	if n, ok := r.CurrentStageNumber(view); ok {
		t.CurrentStageNumber = n
	}

	for _, e := range reconciled {
		status := r.DisplayStatus(e, current)
		t.Entries = append(t.Entries, TimelineEntry{
			Entry:         e,
			StageName:     r.StageName(e.Stage),
			DisplayStatus: status,
			Badge:         BadgeFor(status),
		})
	}
	return t
}
