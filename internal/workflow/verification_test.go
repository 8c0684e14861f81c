package workflow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecisionValidate(t *testing.T) {
	tests := []struct {
		name       string
		decision   Decision
		wantFields []string
	}{
		{name: "approve without note", decision: Decision{ApprovalStatus: StatusApproved}},
		{name: "reject with note", decision: Decision{ApprovalStatus: StatusRejected, Note: "guard rail missing"}},
		{name: "missing status", decision: Decision{Note: "x"}, wantFields: []string{"approvalStatus"}},
		{name: "blank status", decision: Decision{ApprovalStatus: "  "}, wantFields: []string{"approvalStatus"}},
		{name: "reject without note", decision: Decision{ApprovalStatus: StatusRejected}, wantFields: []string{"note"}},
		{name: "reject with blank note", decision: Decision{ApprovalStatus: StatusRejected, Note: " \t"}, wantFields: []string{"note"}},
		{name: "waiting is not a decision", decision: Decision{ApprovalStatus: StatusWaiting}, wantFields: []string{"approvalStatus"}},
		{name: "on progress is not a decision", decision: Decision{ApprovalStatus: StatusOnProgress}, wantFields: []string{"approvalStatus"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.decision.Validate()
			if len(tt.wantFields) == 0 {
				assert.NoError(t, err)
				return
			}

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			for _, f := range tt.wantFields {
				assert.Contains(t, verr.Fields, f)
			}
			assert.Len(t, verr.Fields, len(tt.wantFields))
		})
	}
}

func TestValidationErrorMessageIsSorted(t *testing.T) {
	err := &ValidationError{Fields: map[string]string{"note": "b", "approvalStatus": "a"}}
	assert.Equal(t, "invalid decision: approvalStatus: a; note: b", err.Error())
}

func TestDecisionNormalized(t *testing.T) {
	d := Decision{ApprovalStatus: " APPROVED ", Note: "  ok "}.Normalized()
	assert.Equal(t, StatusApproved, d.ApprovalStatus)
	assert.Equal(t, "ok", d.Note)
}

func TestCanVerify(t *testing.T) {
	assert.True(t, CanVerify(RoleTechnician, "Planning"))
	assert.True(t, CanVerify(RoleTechnician, "On Progress"))
	assert.False(t, CanVerify(RoleTechnician, "Detection"))
	assert.False(t, CanVerify("Visitor", "Detection"))
	assert.False(t, CanVerify(RoleSupervisor, StageCompleted))
	assert.False(t, CanVerify(RoleSupervisor, StageUnknown))
	assert.False(t, CanVerify(RoleSupervisor, "Stage 9"))
}

func TestDecisionStatuses(t *testing.T) {
	assert.Equal(t, []ApprovalStatus{StatusApproved, StatusClose, StatusEffective, StatusFinished, StatusRejected}, DecisionStatuses())
}
