package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurrentStage(t *testing.T) {
	tests := []struct {
		name    string
		history []ApprovalHistoryEntry
		want    string
	}{
		{
			name:    "empty history is unknown",
			history: []ApprovalHistoryEntry{},
			want:    StageUnknown,
		},
		{
			name:    "nil history is unknown",
			history: nil,
			want:    StageUnknown,
		},
		{
			name: "first pending entry decides",
			history: []ApprovalHistoryEntry{
				{Stage: 1, VerifiedAt: verifiedAt(0)},
				{Stage: 2},
			},
			want: "Drafting",
		},
		{
			name: "fresh history starts at detection",
			history: []ApprovalHistoryEntry{
				{Stage: 1}, {Stage: 2}, {Stage: 3}, {Stage: 4},
			},
			want: "Detection",
		},
		{
			name: "all four seeded stages verified",
			history: []ApprovalHistoryEntry{
				{Stage: 1, VerifiedAt: verifiedAt(1)},
				{Stage: 2, VerifiedAt: verifiedAt(2)},
				{Stage: 3, VerifiedAt: verifiedAt(3)},
				{Stage: 4, VerifiedAt: verifiedAt(4)},
			},
			want: StageCompleted,
		},
		{
			name: "position is used, not the stored stage number",
			history: []ApprovalHistoryEntry{
				{Stage: 4, VerifiedAt: verifiedAt(1)},
				{Stage: 1, VerifiedAt: verifiedAt(2)},
				{Stage: 6},
			},
			want: "Planning",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CurrentStage(tt.history))
		})
	}
}

func TestCurrentStageBeyondCatalogue(t *testing.T) {
	history := make([]ApprovalHistoryEntry, 0, 8)
	for i := 1; i <= 7; i++ {
		history = append(history, ApprovalHistoryEntry{Stage: i, VerifiedAt: verifiedAt(i)})
	}
	history = append(history, ApprovalHistoryEntry{Stage: 8})

	assert.Equal(t, "Stage 8", CurrentStage(history))
}

func TestCurrentStageIsCompletedWheneverAllVerified(t *testing.T) {
	for n := 1; n <= 10; n++ {
		history := make([]ApprovalHistoryEntry, n)
		for i := range history {
			history[i] = ApprovalHistoryEntry{Stage: i + 1, VerifiedAt: verifiedAt(i)}
		}
		assert.Equal(t, StageCompleted, CurrentStage(history), "len %d", n)
	}
}

func TestCurrentStageNumber(t *testing.T) {
	n, ok := Default.CurrentStageNumber([]ApprovalHistoryEntry{{Stage: 1, VerifiedAt: verifiedAt(0)}, {Stage: 2}})
	require.True(t, ok)
	assert.Equal(t, 2, n)

	_, ok = Default.CurrentStageNumber(nil)
	assert.False(t, ok)
}
