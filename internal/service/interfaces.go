package service

import (
	"context"

	"github.com/pesio-ai/be-hse-inspections/internal/repository"
	"github.com/pesio-ai/be-hse-inspections/internal/workflow"
)

// TargetStore persists findings and inspections.
type TargetStore interface {
	Create(ctx context.Context, target *repository.Target, seed []workflow.ApprovalHistoryEntry) error
	GetByID(ctx context.Context, id string) (*repository.Target, error)
	List(ctx context.Context, kind *string, limit, offset int) ([]*repository.Target, int64, error)
	Touch(ctx context.Context, id string) error
}

// HistoryStore reads and appends approval history.
type HistoryStore interface {
	ListByTarget(ctx context.Context, targetID string) ([]workflow.ApprovalHistoryEntry, error)
	ListByTargets(ctx context.Context, targetIDs []string) (map[string][]workflow.ApprovalHistoryEntry, error)
	Append(ctx context.Context, entry *workflow.ApprovalHistoryEntry) error
}

// AuditStore appends and reads the approval audit log.
type AuditStore interface {
	Append(ctx context.Context, entry *repository.AuditEntry) error
	GetByTargetID(ctx context.Context, targetID string) ([]*repository.AuditEntry, error)
}

// DirectoryClientInterface resolves users holding a role.
type DirectoryClientInterface interface {
	UsersWithRole(ctx context.Context, role string) ([]repository.DirectoryUser, error)
}

// Notifier tells people that a target needs their action. Implementations
// must not fail the caller.
type Notifier interface {
	PublishTargetEvent(ctx context.Context, eventType, targetID, actorID string, recipients []string, payload map[string]interface{})
}

// HistoryStream mirrors every appended history entry to downstream
// consumers. Implementations must not fail the caller.
type HistoryStream interface {
	PublishHistoryEntry(ctx context.Context, target *repository.Target, entry workflow.ApprovalHistoryEntry)
}

type noopNotifier struct{}

func (noopNotifier) PublishTargetEvent(context.Context, string, string, string, []string, map[string]interface{}) {
}

type noopStream struct{}

func (noopStream) PublishHistoryEntry(context.Context, *repository.Target, workflow.ApprovalHistoryEntry) {
}
