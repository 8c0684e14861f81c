package repository

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pesio-ai/be-hse-inspections/internal/errors"
	"github.com/pesio-ai/be-hse-inspections/internal/workflow"
)

var targetCols = []string{"id", "kind", "title", "description", "location", "reported_by", "created_at", "updated_at"}

func TestTargetCreateSeedsHistoryInTransaction(t *testing.T) {
	mock, db := newMockDB(t)
	repo := NewTargetRepository(db)

	created := time.Date(2024, 3, 1, 7, 30, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO k3_targets").
		WithArgs(KindInspection, "Fire extinguisher expired", pgxmock.AnyArg(), pgxmock.AnyArg(), "u-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow("t-1", created, created))
	for i := 1; i <= 2; i++ {
		mock.ExpectQuery("INSERT INTO k3_approval_history").
			WithArgs("t-1", i, "WAITING", pgxmock.AnyArg(), created, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("h-" + string(rune('0'+i))))
	}
	mock.ExpectCommit()

	target := &Target{Kind: KindInspection, Title: "Fire extinguisher expired", ReportedBy: "u-1"}
	seed := []workflow.ApprovalHistoryEntry{
		{Stage: 1, ApprovalStatus: workflow.StatusWaiting},
		{Stage: 2, ApprovalStatus: workflow.StatusWaiting},
	}

	require.NoError(t, repo.Create(context.Background(), target, seed))
	assert.Equal(t, "t-1", target.ID)
	require.Len(t, target.History, 2)
	assert.Equal(t, "h-1", target.History[0].ID)
	assert.Equal(t, "t-1", target.History[1].TargetID)
	assert.True(t, created.Equal(target.History[1].CreatedAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTargetCreateKeepsSeedTimestamps(t *testing.T) {
	mock, db := newMockDB(t)
	repo := NewTargetRepository(db)

	dbNow := time.Date(2024, 3, 1, 7, 30, 0, 5_000_000, time.UTC)
	seededAt := dbNow.Add(-3 * time.Millisecond)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO k3_targets").
		WithArgs(KindFinding, "Oil spill", pgxmock.AnyArg(), pgxmock.AnyArg(), "u-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow("t-1", dbNow, dbNow))
	mock.ExpectQuery("INSERT INTO k3_approval_history").
		WithArgs("t-1", 1, "WAITING", pgxmock.AnyArg(), seededAt, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("h-1"))
	mock.ExpectCommit()

	target := &Target{Kind: KindFinding, Title: "Oil spill", ReportedBy: "u-1"}
	seed := []workflow.ApprovalHistoryEntry{{Stage: 1, ApprovalStatus: workflow.StatusWaiting, CreatedAt: seededAt}}

	require.NoError(t, repo.Create(context.Background(), target, seed))
	assert.True(t, seededAt.Equal(target.History[0].CreatedAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTargetCreateRollsBackOnSeedFailure(t *testing.T) {
	mock, db := newMockDB(t)
	repo := NewTargetRepository(db)

	created := time.Date(2024, 3, 1, 7, 30, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO k3_targets").
		WithArgs(KindFinding, "Oil spill", pgxmock.AnyArg(), pgxmock.AnyArg(), "u-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow("t-1", created, created))
	mock.ExpectQuery("INSERT INTO k3_approval_history").
		WithArgs("t-1", 1, "WAITING", pgxmock.AnyArg(), created, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := repo.Create(context.Background(), &Target{Kind: KindFinding, Title: "Oil spill", ReportedBy: "u-1"},
		[]workflow.ApprovalHistoryEntry{{Stage: 1, ApprovalStatus: workflow.StatusWaiting}})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTargetGetByIDNotFound(t *testing.T) {
	mock, db := newMockDB(t)
	repo := NewTargetRepository(db)

	mock.ExpectQuery("FROM k3_targets").WithArgs("missing").WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	assert.Equal(t, errors.ErrCodeNotFound, errors.CodeOf(err))
}

func TestTargetList(t *testing.T) {
	mock, db := newMockDB(t)
	repo := NewTargetRepository(db)

	created := time.Date(2024, 3, 1, 7, 30, 0, 0, time.UTC)
	kind := KindFinding

	mock.ExpectQuery("SELECT COUNT").WithArgs(&kind).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1)))
	mock.ExpectQuery("ORDER BY created_at DESC").WithArgs(&kind, 20, 0).
		WillReturnRows(pgxmock.NewRows(targetCols).
			AddRow("t-1", KindFinding, "Oil spill", strPtr("near pump 3"), (*string)(nil), "u-1", created, created))

	targets, total, err := repo.List(context.Background(), &kind, 20, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, targets, 1)
	assert.Equal(t, "near pump 3", *targets[0].Description)
	assert.Nil(t, targets[0].Location)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTargetTouch(t *testing.T) {
	mock, db := newMockDB(t)
	repo := NewTargetRepository(db)

	mock.ExpectExec("UPDATE k3_targets").WithArgs("t-1").WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE k3_targets").WithArgs("gone").WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.NoError(t, repo.Touch(context.Background(), "t-1"))
	err := repo.Touch(context.Background(), "gone")
	assert.Equal(t, errors.ErrCodeNotFound, errors.CodeOf(err))
}
