package workflow

import "sort"

type suppressionKey struct {
	userID string
	role   string
	stage  int
}

// Reconcile returns the canonical view of a raw history: entries ordered by
// CreatedAt (stable) with provisional ON_PROGRESS markers suppressed.
//
// The suppression set is built from every assigned ON_PROGRESS entry, so an
// assigned ON_PROGRESS entry is always dropped, even when no terminal entry for
// the same (user, role, stage) exists yet. Existing consumers depend on this.
// Malformed entries are skipped. The input slice is not modified.
func Reconcile(history []ApprovalHistoryEntry) []ApprovalHistoryEntry {
	entries := make([]ApprovalHistoryEntry, 0, len(history))
	for _, e := range history {
		if !e.wellFormed() {
			continue
		}
		entries = append(entries, e)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})

	suppressed := make(map[suppressionKey]struct{})
	for _, e := range entries {
		if k, ok := provisionalKey(e); ok {
			suppressed[k] = struct{}{}
		}
	}

	out := make([]ApprovalHistoryEntry, 0, len(entries))
	for _, e := range entries {
		if k, ok := provisionalKey(e); ok {
			if _, drop := suppressed[k]; drop {
				continue
			}
		}
		out = append(out, e)
	}
	return out
}

func provisionalKey(e ApprovalHistoryEntry) (suppressionKey, bool) {
	if e.ApprovalStatus != StatusOnProgress || e.Assignment == nil {
		return suppressionKey{}, false
	}
	return suppressionKey{userID: e.Assignment.UserID, role: e.Assignment.Role, stage: e.Stage}, true
}

// StageView projects a reconciled history onto one entry per stage, keeping
// the latest entry recorded for each stage and ordering by stage number. The
// result is positionally aligned with stage numbers when the stages recorded
// are contiguous from 1, which is what CurrentStage expects.
func StageView(reconciled []ApprovalHistoryEntry) []ApprovalHistoryEntry {
	latest := make(map[int]ApprovalHistoryEntry)
	for _, e := range reconciled {
		latest[e.Stage] = e
	}

	stages := make([]int, 0, len(latest))
	for n := range latest {
		stages = append(stages, n)
	}
	sort.Ints(stages)

	out := make([]ApprovalHistoryEntry, 0, len(stages))
	for _, n := range stages {
		out = append(out, latest[n])
	}
	return out
}
