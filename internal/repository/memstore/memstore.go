// Package memstore keeps targets, approval history and audit entries in
// process memory. It backs local development runs and handler tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pesio-ai/be-hse-inspections/internal/errors"
	"github.com/pesio-ai/be-hse-inspections/internal/repository"
	"github.com/pesio-ai/be-hse-inspections/internal/workflow"
)

// Store holds all tables behind one lock.
type Store struct {
	mu      sync.RWMutex
	now     func() time.Time
	targets map[string]repository.Target
	history map[string][]workflow.ApprovalHistoryEntry
	audit   map[string][]repository.AuditEntry
	users   []repository.DirectoryUser
}

// New returns an empty store.
func New() *Store {
	return &Store{
		now:     func() time.Time { return time.Now().UTC() },
		targets: map[string]repository.Target{},
		history: map[string][]workflow.ApprovalHistoryEntry{},
		audit:   map[string][]repository.AuditEntry{},
	}
}

// AddUsers registers directory users.
func (s *Store) AddUsers(users ...repository.DirectoryUser) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = append(s.users, users...)
}

// Targets returns the target table.
func (s *Store) Targets() *Targets { return &Targets{s} }

// History returns the approval history table.
func (s *Store) History() *History { return &History{s} }

// Audit returns the audit log.
func (s *Store) Audit() *Audit { return &Audit{s} }

// Directory returns the user directory.
func (s *Store) Directory() *Directory { return &Directory{s} }

// Targets implements the target store.
type Targets struct{ s *Store }

func (t *Targets) Create(_ context.Context, target *repository.Target, seed []workflow.ApprovalHistoryEntry) error {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	target.ID = uuid.NewString()
	target.CreatedAt = now
	target.UpdatedAt = now
	target.History = make([]workflow.ApprovalHistoryEntry, 0, len(seed))
	for _, e := range seed {
		e.ID = uuid.NewString()
		e.TargetID = target.ID
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		target.History = append(target.History, e)
	}

	stored := *target
	stored.History = nil
	s.targets[target.ID] = stored
	s.history[target.ID] = append([]workflow.ApprovalHistoryEntry(nil), target.History...)
	return nil
}

func (t *Targets) GetByID(_ context.Context, id string) (*repository.Target, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	target, ok := t.s.targets[id]
	if !ok {
		return nil, errors.NotFound("target", id)
	}
	return &target, nil
}

func (t *Targets) List(_ context.Context, kind *string, limit, offset int) ([]*repository.Target, int64, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	all := make([]repository.Target, 0, len(t.s.targets))
	for _, target := range t.s.targets {
		if kind != nil && target.Kind != *kind {
			continue
		}
		all = append(all, target)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	out := []*repository.Target{}
	for i := offset; i < len(all) && len(out) < limit; i++ {
		target := all[i]
		out = append(out, &target)
	}
	return out, int64(len(all)), nil
}

func (t *Targets) Touch(_ context.Context, id string) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	target, ok := t.s.targets[id]
	if !ok {
		return errors.NotFound("target", id)
	}
	target.UpdatedAt = t.s.now()
	t.s.targets[id] = target
	return nil
}

// History implements the history store.
type History struct{ s *Store }

func (h *History) ListByTarget(_ context.Context, targetID string) ([]workflow.ApprovalHistoryEntry, error) {
	h.s.mu.RLock()
	defer h.s.mu.RUnlock()
	return append([]workflow.ApprovalHistoryEntry{}, h.s.history[targetID]...), nil
}

func (h *History) ListByTargets(_ context.Context, ids []string) (map[string][]workflow.ApprovalHistoryEntry, error) {
	h.s.mu.RLock()
	defer h.s.mu.RUnlock()
	out := make(map[string][]workflow.ApprovalHistoryEntry, len(ids))
	for _, id := range ids {
		if entries, ok := h.s.history[id]; ok {
			out[id] = append([]workflow.ApprovalHistoryEntry(nil), entries...)
		}
	}
	return out, nil
}

func (h *History) Append(_ context.Context, entry *workflow.ApprovalHistoryEntry) error {
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	if _, ok := h.s.targets[entry.TargetID]; !ok {
		return errors.NotFound("target", entry.TargetID)
	}
	entry.ID = uuid.NewString()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = h.s.now()
	}
	h.s.history[entry.TargetID] = append(h.s.history[entry.TargetID], *entry)
	return nil
}

// Audit implements the audit store.
type Audit struct{ s *Store }

func (a *Audit) Append(_ context.Context, entry *repository.AuditEntry) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	entry.ID = uuid.NewString()
	entry.PerformedAt = a.s.now()
	a.s.audit[entry.TargetID] = append(a.s.audit[entry.TargetID], *entry)
	return nil
}

func (a *Audit) GetByTargetID(_ context.Context, targetID string) ([]*repository.AuditEntry, error) {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()
	out := make([]*repository.AuditEntry, 0, len(a.s.audit[targetID]))
	for i := range a.s.audit[targetID] {
		e := a.s.audit[targetID][i]
		out = append(out, &e)
	}
	return out, nil
}

// Directory implements the directory lookup.
type Directory struct{ s *Store }

func (d *Directory) UsersWithRole(_ context.Context, role string) ([]repository.DirectoryUser, error) {
	d.s.mu.RLock()
	defer d.s.mu.RUnlock()
	var out []repository.DirectoryUser
	for _, u := range d.s.users {
		if u.Role == role {
			out = append(out, u)
		}
	}
	return out, nil
}
