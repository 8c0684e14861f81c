package workflow

import "fmt"

// CurrentStage returns the name of the stage blocking progress: the stage at
// the position of the first entry without a verification timestamp. An empty
// history is "Unknown" and a fully verified one is "Completed". Positions
// beyond the catalogue resolve to "Stage {n}".
//
// The caller orders history to match stage progression (see StageView).
func (r *Registry) CurrentStage(history []ApprovalHistoryEntry) string {
	n, ok := r.CurrentStageNumber(history)
	switch {
	case len(history) == 0:
		return StageUnknown
	case !ok:
		return StageCompleted
	}
	if name, known := r.byNum[n]; known {
		return name
	}
	return fmt.Sprintf("Stage %d", n)
}

// CurrentStageNumber returns the 1-based number of the blocking stage, or
// false when nothing is pending.
func (r *Registry) CurrentStageNumber(history []ApprovalHistoryEntry) (int, bool) {
	for i, e := range history {
		if e.VerifiedAt == nil {
			return i + 1, true
		}
	}
	return 0, false
}

// CurrentStage resolves against the Default registry.
func CurrentStage(history []ApprovalHistoryEntry) string {
	return Default.CurrentStage(history)
}
