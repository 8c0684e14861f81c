package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/pesio-ai/be-hse-inspections/internal/errors"
	"github.com/pesio-ai/be-hse-inspections/internal/logger"
	"github.com/pesio-ai/be-hse-inspections/internal/repository"
	"github.com/pesio-ai/be-hse-inspections/internal/workflow"
)

// Pipelines maps a target kind to the number of stages it runs through.
type Pipelines map[string]int

// DefaultPipelines runs findings through all six stages and inspections
// through the first four.
func DefaultPipelines() Pipelines {
	return Pipelines{
		repository.KindFinding:    6,
		repository.KindInspection: 4,
	}
}

// TargetService handles reporting and reading findings and inspections.
type TargetService struct {
	targets   TargetStore
	history   HistoryStore
	audit     AuditStore
	directory DirectoryClientInterface
	notifier  Notifier
	registry  *workflow.Registry
	pipelines Pipelines
	log       *logger.Logger
	now       func() time.Time
}

// NewTargetService creates a new target service. A nil notifier disables
// notifications.
func NewTargetService(
	targets TargetStore,
	history HistoryStore,
	audit AuditStore,
	directory DirectoryClientInterface,
	notifier Notifier,
	registry *workflow.Registry,
	pipelines Pipelines,
	log *logger.Logger,
) *TargetService {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &TargetService{
		targets:   targets,
		history:   history,
		audit:     audit,
		directory: directory,
		notifier:  notifier,
		registry:  registry,
		pipelines: pipelines,
		log:       log,
		now:       time.Now,
	}
}

// ReportTargetRequest represents a newly filed finding or inspection.
type ReportTargetRequest struct {
	Kind        string
	Title       string
	Description *string
	Location    *string
	ReportedBy  string
}

// ReportTarget files a target and seeds one waiting history entry per stage
// of its pipeline.
func (s *TargetService) ReportTarget(ctx context.Context, req *ReportTargetRequest) (*repository.Target, error) {
	kind := strings.ToLower(strings.TrimSpace(req.Kind))
	stages, ok := s.pipelines[kind]
	if !ok {
		return nil, errors.InvalidInput("kind", fmt.Sprintf("unknown target kind '%s'", req.Kind))
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, errors.InvalidInput("title", "title is required")
	}
	if utf8.RuneCountInString(title) > 200 {
		return nil, errors.InvalidInput("title", "title must be at most 200 characters")
	}
	if req.ReportedBy == "" {
		return nil, errors.New(errors.ErrCodeUnauthorized, "reporter is required")
	}

	if stages > s.registry.Len() {
		stages = s.registry.Len()
	}

	target := &repository.Target{
		Kind:        kind,
		Title:       title,
		Description: trimmedOrNil(req.Description),
		Location:    trimmedOrNil(req.Location),
		ReportedBy:  req.ReportedBy,
	}

	// Seeds are stamped with the same clock as later decisions so a decision
	// always sorts after the seed it supersedes.
	seededAt := s.now().UTC()
	seed := make([]workflow.ApprovalHistoryEntry, 0, stages)
	for n := 1; n <= stages; n++ {
		seed = append(seed, workflow.ApprovalHistoryEntry{
			Stage:          n,
			ApprovalStatus: workflow.StatusWaiting,
			CreatedAt:      seededAt,
			Assignment:     s.assignStage(ctx, n),
		})
	}

	if err := s.targets.Create(ctx, target, seed); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("target_id", target.ID).
		Str("kind", target.Kind).
		Str("reported_by", target.ReportedBy).
		Int("stages", stages).
		Msg("Target reported")

	stage1 := 1
	stageName := s.registry.StageName(stage1)
	appendAudit(ctx, s.audit, s.log, &repository.AuditEntry{
		TargetID:    target.ID,
		Action:      "reported",
		PerformedBy: target.ReportedBy,
		Stage:       &stage1,
		StageName:   &stageName,
		Metadata:    map[string]interface{}{"kind": target.Kind, "stages": stages},
	})

	if len(target.History) > 0 && target.History[0].Assignment != nil {
		s.notifier.PublishTargetEvent(ctx, "stage_assigned", target.ID, target.ReportedBy,
			[]string{target.History[0].Assignment.UserID},
			map[string]interface{}{"stage": stageName, "title": target.Title})
	}

	return target, nil
}

// assignStage pre-assigns the first directory user holding a role responsible
// for stage n. Directory failures leave the stage unassigned.
func (s *TargetService) assignStage(ctx context.Context, n int) *workflow.ApprovalAssignment {
	if s.directory == nil {
		return nil
	}
	for _, role := range s.registry.RolesForStage(n) {
		users, err := s.directory.UsersWithRole(ctx, role)
		if err != nil {
			s.log.Warn().Err(err).Str("role", role).Msg("Could not fetch users for role; stage will be unassigned")
			continue
		}
		if len(users) > 0 {
			return &workflow.ApprovalAssignment{
				UserID:   users[0].UserID,
				UserName: users[0].UserName,
				Role:     role,
				Stage:    n,
			}
		}
	}
	return nil
}

// GetTarget retrieves a target with its raw history.
func (s *TargetService) GetTarget(ctx context.Context, id string) (*repository.Target, error) {
	if err := validateTargetID(id); err != nil {
		return nil, err
	}
	target, err := s.targets.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	target.History, err = s.history.ListByTarget(ctx, id)
	if err != nil {
		return nil, err
	}
	return target, nil
}

// ListTargets lists targets with optional kind filter and pagination.
func (s *TargetService) ListTargets(ctx context.Context, kind *string, page, pageSize int) ([]*repository.Target, int64, error) {
	if kind != nil {
		if _, ok := s.pipelines[*kind]; !ok {
			return nil, 0, errors.InvalidInput("kind", fmt.Sprintf("unknown target kind '%s'", *kind))
		}
	}
	offset := (page - 1) * pageSize
	return s.targets.List(ctx, kind, pageSize, offset)
}

func validateTargetID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.InvalidInput("id", "target id must be a UUID")
	}
	return nil
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// appendAudit writes an audit entry and logs a warning on failure (never returns error).
func appendAudit(ctx context.Context, audit AuditStore, log *logger.Logger, entry *repository.AuditEntry) {
	if err := audit.Append(ctx, entry); err != nil {
		log.Warn().Err(err).
			Str("target_id", entry.TargetID).
			Str("action", entry.Action).
			Msg("Failed to write audit log entry")
	}
}
