package workflow

import (
	"fmt"
	"sort"
)

// StageDefinition is one entry of the ordered stage catalogue. Roles lists the
// organizational roles responsible for acting on the stage.
type StageDefinition struct {
	Number int      `json:"number" yaml:"number"`
	Name   string   `json:"name" yaml:"name"`
	Roles  []string `json:"roles" yaml:"roles"`
}

// Role names used by the default catalogue.
const (
	RoleHSEOfficer = "HSE Officer"
	RoleSupervisor = "Supervisor"
	RoleTechnician = "Technician"
	RoleHSEManager = "HSE Manager"
)

var defaultCatalogue = []StageDefinition{
	{Number: 1, Name: "Detection", Roles: []string{RoleHSEOfficer}},
	{Number: 2, Name: "Drafting", Roles: []string{RoleSupervisor}},
	{Number: 3, Name: "Planning", Roles: []string{RoleTechnician, RoleSupervisor}},
	{Number: 4, Name: "On Progress", Roles: []string{RoleTechnician}},
	{Number: 5, Name: "Finalizing", Roles: []string{RoleSupervisor}},
	{Number: 6, Name: "Verification", Roles: []string{RoleHSEManager}},
}

// Registry is an immutable stage catalogue plus the role map derived from it.
type Registry struct {
	stages []StageDefinition
	byNum  map[int]string
	roles  map[string][]string
}

// Default is the process-wide registry built from the built-in catalogue.
var Default = mustRegistry(defaultCatalogue)

// DefaultCatalogue returns a copy of the built-in stage catalogue.
func DefaultCatalogue() []StageDefinition {
	return copyStages(defaultCatalogue)
}

// NewRegistry validates a catalogue and derives the role map from it. Stage
// numbers must run contiguously from 1 and names must be unique.
func NewRegistry(stages []StageDefinition) (*Registry, error) {
	if len(stages) == 0 {
		return nil, fmt.Errorf("stage catalogue is empty")
	}

	sorted := copyStages(stages)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Number < sorted[j].Number })

	r := &Registry{
		stages: sorted,
		byNum:  make(map[int]string, len(sorted)),
		roles:  make(map[string][]string),
	}
	names := make(map[string]struct{}, len(sorted))
	for i, s := range sorted {
		if s.Number != i+1 {
			return nil, fmt.Errorf("stage numbers must be contiguous from 1: got %d at position %d", s.Number, i+1)
		}
		if s.Name == "" {
			return nil, fmt.Errorf("stage %d has no name", s.Number)
		}
		if _, dup := names[s.Name]; dup {
			return nil, fmt.Errorf("duplicate stage name %q", s.Name)
		}
		names[s.Name] = struct{}{}
		r.byNum[s.Number] = s.Name

		for _, role := range s.Roles {
			if !containsString(r.roles[role], s.Name) {
				r.roles[role] = append(r.roles[role], s.Name)
			}
		}
	}
	return r, nil
}

func mustRegistry(stages []StageDefinition) *Registry {
	r, err := NewRegistry(stages)
	if err != nil {
		panic(err)
	}
	return r
}

// StageName returns the configured name for stage n, or "Unknown".
func (r *Registry) StageName(n int) string {
	if name, ok := r.byNum[n]; ok {
		return name
	}
	return StageUnknown
}

// StagesForRole returns the ordered stage names a role may act on. Unknown
// roles get an empty, non-nil slice.
func (r *Registry) StagesForRole(role string) []string {
	names := r.roles[role]
	out := make([]string, len(names))
	copy(out, names)
	return out
}

// StageNumberByName is the reverse lookup of StageName.
func (r *Registry) StageNumberByName(name string) (int, bool) {
	for _, s := range r.stages {
		if s.Name == name {
			return s.Number, true
		}
	}
	return 0, false
}

// Stages returns a copy of the catalogue in stage order.
func (r *Registry) Stages() []StageDefinition {
	return copyStages(r.stages)
}

// Len is the number of stages in the catalogue.
func (r *Registry) Len() int {
	return len(r.stages)
}

// Roles returns the derived role map. The result is a copy.
func (r *Registry) Roles() map[string][]string {
	out := make(map[string][]string, len(r.roles))
	for role := range r.roles {
		out[role] = r.StagesForRole(role)
	}
	return out
}

// RolesForStage returns the roles responsible for stage n.
func (r *Registry) RolesForStage(n int) []string {
	if n < 1 || n > len(r.stages) {
		return []string{}
	}
	roles := r.stages[n-1].Roles
	out := make([]string, len(roles))
	copy(out, roles)
	return out
}

// StageName looks n up in the Default registry.
func StageName(n int) string { return Default.StageName(n) }

// StagesForRole looks role up in the Default registry.
func StagesForRole(role string) []string { return Default.StagesForRole(role) }

// StageNumberByName looks name up in the Default registry.
func StageNumberByName(name string) (int, bool) { return Default.StageNumberByName(name) }

func copyStages(in []StageDefinition) []StageDefinition {
	out := make([]StageDefinition, len(in))
	for i, s := range in {
		out[i] = StageDefinition{Number: s.Number, Name: s.Name, Roles: append([]string(nil), s.Roles...)}
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
