package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pesio-ai/be-hse-inspections/internal/errors"
	"github.com/pesio-ai/be-hse-inspections/internal/repository"
	"github.com/pesio-ai/be-hse-inspections/internal/workflow"
)

var baseTime = time.Date(2024, 5, 6, 8, 0, 0, 0, time.UTC)

// memStore backs TargetStore, HistoryStore and AuditStore in memory.
type memStore struct {
	mu        sync.Mutex
	targets   map[string]*repository.Target
	order     []string
	history   map[string][]workflow.ApprovalHistoryEntry
	audit     map[string][]*repository.AuditEntry
	appends   int
	clock     time.Time
	failAudit bool
}

func newMemStore() *memStore {
	return &memStore{
		targets: map[string]*repository.Target{},
		history: map[string][]workflow.ApprovalHistoryEntry{},
		audit:   map[string][]*repository.AuditEntry{},
		clock:   baseTime,
	}
}

func (m *memStore) tick() time.Time {
	m.clock = m.clock.Add(time.Minute)
	return m.clock
}

func (m *memStore) Create(_ context.Context, target *repository.Target, seed []workflow.ApprovalHistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	target.ID = uuid.NewString()
	target.CreatedAt = m.tick()
	target.UpdatedAt = target.CreatedAt
	target.History = make([]workflow.ApprovalHistoryEntry, 0, len(seed))
	for i, e := range seed {
		e.ID = fmt.Sprintf("%s-seed-%d", target.ID, i+1)
		e.TargetID = target.ID
		if e.CreatedAt.IsZero() {
			e.CreatedAt = target.CreatedAt
		}
		target.History = append(target.History, e)
	}
	stored := *target
	m.targets[target.ID] = &stored
	m.order = append([]string{target.ID}, m.order...)
	m.history[target.ID] = append([]workflow.ApprovalHistoryEntry(nil), target.History...)
	return nil
}

func (m *memStore) GetByID(_ context.Context, id string) (*repository.Target, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.targets[id]
	if !ok {
		return nil, errors.NotFound("target", id)
	}
	cp := *t
	cp.History = nil
	return &cp, nil
}

func (m *memStore) List(_ context.Context, kind *string, limit, offset int) ([]*repository.Target, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []*repository.Target
	for _, id := range m.order {
		t := m.targets[id]
		if kind != nil && t.Kind != *kind {
			continue
		}
		cp := *t
		cp.History = nil
		all = append(all, &cp)
	}
	total := int64(len(all))
	if offset >= len(all) {
		return []*repository.Target{}, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (m *memStore) Touch(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.targets[id]
	if !ok {
		return errors.NotFound("target", id)
	}
	t.UpdatedAt = m.clock
	return nil
}

func (m *memStore) ListByTarget(_ context.Context, targetID string) ([]workflow.ApprovalHistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]workflow.ApprovalHistoryEntry(nil), m.history[targetID]...), nil
}

func (m *memStore) ListByTargets(_ context.Context, ids []string) (map[string][]workflow.ApprovalHistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string][]workflow.ApprovalHistoryEntry, len(ids))
	for _, id := range ids {
		out[id] = append([]workflow.ApprovalHistoryEntry(nil), m.history[id]...)
	}
	return out, nil
}

func (m *memStore) Append(_ context.Context, entry *workflow.ApprovalHistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appends++
	entry.ID = fmt.Sprintf("%s-h-%d", entry.TargetID, len(m.history[entry.TargetID])+1)
	m.history[entry.TargetID] = append(m.history[entry.TargetID], *entry)
	return nil
}

// memAudit adapts memStore to AuditStore, whose Append collides with
// HistoryStore.Append.
type memAudit struct{ m *memStore }

func (a memAudit) Append(_ context.Context, entry *repository.AuditEntry) error {
	a.m.mu.Lock()
	defer a.m.mu.Unlock()
	if a.m.failAudit {
		return errAuditDown
	}
	entry.ID = uuid.NewString()
	entry.PerformedAt = a.m.clock
	a.m.audit[entry.TargetID] = append(a.m.audit[entry.TargetID], entry)
	return nil
}

func (a memAudit) GetByTargetID(_ context.Context, targetID string) ([]*repository.AuditEntry, error) {
	a.m.mu.Lock()
	defer a.m.mu.Unlock()
	return append([]*repository.AuditEntry{}, a.m.audit[targetID]...), nil
}

var errAuditDown = fmt.Errorf("audit store unavailable")

type fakeDirectory map[string][]repository.DirectoryUser

func (d fakeDirectory) UsersWithRole(_ context.Context, role string) ([]repository.DirectoryUser, error) {
	return d[role], nil
}

func defaultDirectory() fakeDirectory {
	return fakeDirectory{
		workflow.RoleHSEOfficer: {{UserID: "u-hse", UserName: "Rina", Role: workflow.RoleHSEOfficer}},
		workflow.RoleSupervisor: {{UserID: "u-sup", UserName: "Budi", Role: workflow.RoleSupervisor}},
		workflow.RoleTechnician: {{UserID: "u-tech", UserName: "Agus", Role: workflow.RoleTechnician}},
		workflow.RoleHSEManager: {{UserID: "u-mgr", UserName: "Sari", Role: workflow.RoleHSEManager}},
	}
}

type sentEvent struct {
	Type       string
	TargetID   string
	Recipients []string
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []sentEvent
}

func (n *recordingNotifier) PublishTargetEvent(_ context.Context, eventType, targetID, _ string, recipients []string, _ map[string]interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, sentEvent{Type: eventType, TargetID: targetID, Recipients: recipients})
}

type recordingStream struct {
	mu      sync.Mutex
	entries []workflow.ApprovalHistoryEntry
}

func (s *recordingStream) PublishHistoryEntry(_ context.Context, _ *repository.Target, entry workflow.ApprovalHistoryEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
}
