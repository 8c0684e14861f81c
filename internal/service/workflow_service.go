package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/pesio-ai/be-hse-inspections/internal/errors"
	"github.com/pesio-ai/be-hse-inspections/internal/logger"
	"github.com/pesio-ai/be-hse-inspections/internal/repository"
	"github.com/pesio-ai/be-hse-inspections/internal/workflow"
)

// pendingScanLimit bounds how many recent targets PendingForRole inspects.
const pendingScanLimit = 200

// Actor is the authenticated user acting on a target.
type Actor struct {
	UserID   string
	UserName string
	Role     string
}

// TargetTimeline is a target together with its derived approval timeline.
type TargetTimeline struct {
	Target   *repository.Target
	Timeline workflow.Timeline
}

// PendingItem is a target waiting on a stage the requesting role handles.
type PendingItem struct {
	Target       *repository.Target
	CurrentStage string
}

// WorkflowService derives approval state from history and records
// verification decisions.
type WorkflowService struct {
	targets   TargetStore
	history   HistoryStore
	audit     AuditStore
	directory DirectoryClientInterface
	notifier  Notifier
	stream    HistoryStream
	registry  *workflow.Registry
	now       func() time.Time
	log       *logger.Logger
}

// NewWorkflowService creates a new WorkflowService. Nil notifier or stream
// disable the corresponding side effect.
func NewWorkflowService(
	targets TargetStore,
	history HistoryStore,
	audit AuditStore,
	directory DirectoryClientInterface,
	notifier Notifier,
	stream HistoryStream,
	registry *workflow.Registry,
	log *logger.Logger,
) *WorkflowService {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if stream == nil {
		stream = noopStream{}
	}
	return &WorkflowService{
		targets:   targets,
		history:   history,
		audit:     audit,
		directory: directory,
		notifier:  notifier,
		stream:    stream,
		registry:  registry,
		now:       time.Now,
		log:       log,
	}
}

// Registry exposes the stage registry the service resolves against.
func (s *WorkflowService) Registry() *workflow.Registry {
	return s.registry
}

// ── Timeline ──────────────────────────────────────────────────────────────────

// GetTimeline loads a target's history and derives its current stage and
// labelled timeline for the given viewer.
func (s *WorkflowService) GetTimeline(ctx context.Context, targetID string, actor Actor) (*TargetTimeline, error) {
	target, history, err := s.load(ctx, targetID)
	if err != nil {
		return nil, err
	}
	return &TargetTimeline{
		Target:   target,
		Timeline: s.registry.BuildTimeline(history, actor.Role),
	}, nil
}

func (s *WorkflowService) load(ctx context.Context, targetID string) (*repository.Target, []workflow.ApprovalHistoryEntry, error) {
	if err := validateTargetID(targetID); err != nil {
		return nil, nil, err
	}
	target, err := s.targets.GetByID(ctx, targetID)
	if err != nil {
		return nil, nil, err
	}
	history, err := s.history.ListByTarget(ctx, targetID)
	if err != nil {
		return nil, nil, err
	}
	target.History = history
	return target, history, nil
}

// ── Verify ────────────────────────────────────────────────────────────────────

// Verify records a decision for the stage currently blocking the target.
// The decision is validated before anything is read or written.
func (s *WorkflowService) Verify(ctx context.Context, targetID string, actor Actor, decision workflow.Decision) (*TargetTimeline, error) {
	decision = decision.Normalized()
	if err := decision.Validate(); err != nil {
		var verr *workflow.ValidationError
		if stderrors.As(err, &verr) {
			return nil, errors.Validation(verr.Fields)
		}
		return nil, err
	}
	if actor.UserID == "" {
		return nil, errors.New(errors.ErrCodeUnauthorized, "unauthorized: no acting user")
	}

	target, history, err := s.load(ctx, targetID)
	if err != nil {
		return nil, err
	}

	before := s.registry.BuildTimeline(history, actor.Role)
	if err := s.assertCanAct(before, actor); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	stage := before.CurrentStageNumber
	entry := workflow.ApprovalHistoryEntry{
		TargetID:       target.ID,
		Stage:          stage,
		ApprovalStatus: decision.ApprovalStatus,
		Note:           decision.Note,
		CreatedAt:      now,
		VerifiedAt:     &now,
		Assignment: &workflow.ApprovalAssignment{
			UserID:   actor.UserID,
			UserName: actor.UserName,
			Role:     actor.Role,
			Stage:    stage,
		},
	}
	if err := s.history.Append(ctx, &entry); err != nil {
		return nil, err
	}
	s.touch(ctx, target.ID)

	history = append(history, entry)
	target.History = history
	after := s.registry.BuildTimeline(history, actor.Role)

	s.log.Info().
		Str("target_id", target.ID).
		Str("stage", before.CurrentStage).
		Str("approval_status", string(decision.ApprovalStatus)).
		Str("acted_by", actor.UserID).
		Str("next_stage", after.CurrentStage).
		Msg("Stage verified")

	stageName := before.CurrentStage
	appendAudit(ctx, s.audit, s.log, &repository.AuditEntry{
		TargetID:    target.ID,
		Action:      "verified",
		PerformedBy: actor.UserID,
		Stage:       &stage,
		StageName:   &stageName,
		Metadata: map[string]interface{}{
			"approval_status": string(decision.ApprovalStatus),
			"note":            decision.Note,
			"role":            actor.Role,
			"next_stage":      after.CurrentStage,
		},
	})

	s.stream.PublishHistoryEntry(ctx, target, entry)
	s.notifyProgress(ctx, target, actor, before.CurrentStage, after)

	return &TargetTimeline{Target: target, Timeline: after}, nil
}

// ── Start ─────────────────────────────────────────────────────────────────────

// StartStage records a provisional ON_PROGRESS marker for the actor on the
// blocking stage. Markers are suppressed when the history is reconciled.
func (s *WorkflowService) StartStage(ctx context.Context, targetID string, actor Actor) (*TargetTimeline, error) {
	if actor.UserID == "" {
		return nil, errors.New(errors.ErrCodeUnauthorized, "unauthorized: no acting user")
	}

	target, history, err := s.load(ctx, targetID)
	if err != nil {
		return nil, err
	}

	current := s.registry.BuildTimeline(history, actor.Role)
	if err := s.assertCanAct(current, actor); err != nil {
		return nil, err
	}

	stage := current.CurrentStageNumber
	entry := workflow.ApprovalHistoryEntry{
		TargetID:       target.ID,
		Stage:          stage,
		ApprovalStatus: workflow.StatusOnProgress,
		CreatedAt:      s.now().UTC(),
		Assignment: &workflow.ApprovalAssignment{
			UserID:   actor.UserID,
			UserName: actor.UserName,
			Role:     actor.Role,
			Stage:    stage,
		},
	}
	if err := s.history.Append(ctx, &entry); err != nil {
		return nil, err
	}
	s.touch(ctx, target.ID)

	history = append(history, entry)
	target.History = history

	s.log.Info().
		Str("target_id", target.ID).
		Str("stage", current.CurrentStage).
		Str("started_by", actor.UserID).
		Msg("Stage work started")

	stageName := current.CurrentStage
	appendAudit(ctx, s.audit, s.log, &repository.AuditEntry{
		TargetID:    target.ID,
		Action:      "started",
		PerformedBy: actor.UserID,
		Stage:       &stage,
		StageName:   &stageName,
		Metadata:    map[string]interface{}{"role": actor.Role},
	})
	s.stream.PublishHistoryEntry(ctx, target, entry)

	return &TargetTimeline{Target: target, Timeline: s.registry.BuildTimeline(history, actor.Role)}, nil
}

// ── Query helpers ─────────────────────────────────────────────────────────────

// PendingForRole returns recent targets blocked on a stage the role acts on.
func (s *WorkflowService) PendingForRole(ctx context.Context, role string) ([]*PendingItem, error) {
	items := []*PendingItem{}
	if len(s.registry.StagesForRole(role)) == 0 {
		return items, nil
	}

	targets, _, err := s.targets.List(ctx, nil, pendingScanLimit, 0)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(targets))
	for _, t := range targets {
		ids = append(ids, t.ID)
	}

	histories, err := s.history.ListByTargets(ctx, ids)
	if err != nil {
		return nil, err
	}

	for _, t := range targets {
		t.History = histories[t.ID]
		tl := s.registry.BuildTimeline(t.History, role)
		if tl.CanVerify {
			items = append(items, &PendingItem{Target: t, CurrentStage: tl.CurrentStage})
		}
	}
	return items, nil
}

// GetAuditTrail returns the audit log of a target.
func (s *WorkflowService) GetAuditTrail(ctx context.Context, targetID string) ([]*repository.AuditEntry, error) {
	if err := validateTargetID(targetID); err != nil {
		return nil, err
	}
	if _, err := s.targets.GetByID(ctx, targetID); err != nil {
		return nil, err
	}
	return s.audit.GetByTargetID(ctx, targetID)
}

// ── Authorization helper ──────────────────────────────────────────────────────

// assertCanAct checks that the target is still in progress and that the
// actor's role is responsible for the blocking stage.
func (s *WorkflowService) assertCanAct(tl workflow.Timeline, actor Actor) error {
	switch tl.CurrentStage {
	case workflow.StageCompleted:
		return errors.New(errors.ErrCodeConflict, "conflict: target has completed all stages")
	case workflow.StageUnknown:
		return errors.New(errors.ErrCodeConflict, "conflict: target has no approval history")
	}
	if !tl.CanVerify {
		return errors.New(errors.ErrCodeForbidden,
			fmt.Sprintf("forbidden: role '%s' cannot act on stage '%s'", actor.Role, tl.CurrentStage))
	}
	return nil
}

// ── Internal helpers ──────────────────────────────────────────────────────────

func (s *WorkflowService) touch(ctx context.Context, targetID string) {
	if err := s.targets.Touch(ctx, targetID); err != nil {
		s.log.Warn().Err(err).Str("target_id", targetID).Msg("Failed to bump target updated_at")
	}
}

// notifyProgress tells the users of the next stage that the target is
// waiting on them, or the reporter that it is complete.
func (s *WorkflowService) notifyProgress(ctx context.Context, target *repository.Target, actor Actor, verifiedStage string, after workflow.Timeline) {
	payload := map[string]interface{}{
		"title":          target.Title,
		"verified_stage": verifiedStage,
		"current_stage":  after.CurrentStage,
	}

	if after.Completed {
		s.notifier.PublishTargetEvent(ctx, "target_completed", target.ID, actor.UserID, []string{target.ReportedBy}, payload)
		return
	}

	var recipients []string
	if s.directory != nil {
		for _, role := range s.registry.RolesForStage(after.CurrentStageNumber) {
			users, err := s.directory.UsersWithRole(ctx, role)
			if err != nil {
				s.log.Warn().Err(err).Str("role", role).Msg("Could not resolve notification recipients")
				continue
			}
			for _, u := range users {
				recipients = append(recipients, u.UserID)
			}
		}
	}
	s.notifier.PublishTargetEvent(ctx, "stage_approval_required", target.ID, actor.UserID, recipients, payload)
}
