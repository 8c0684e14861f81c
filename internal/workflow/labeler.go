package workflow

// Badge describes how a display status is rendered.
type Badge struct {
	Status ApprovalStatus `json:"status"`
	Label  string         `json:"label"`
	Color  string         `json:"color"`
	Icon   string         `json:"icon"`
}

var badges = map[ApprovalStatus]Badge{
	StatusApproved:   {Status: StatusApproved, Label: "Approved", Color: "success", Icon: "check-circle"},
	StatusFinished:   {Status: StatusFinished, Label: "Finished", Color: "success", Icon: "flag"},
	StatusOnProgress: {Status: StatusOnProgress, Label: "On Progress", Color: "info", Icon: "loader"},
	StatusEffective:  {Status: StatusEffective, Label: "Effective", Color: "primary", Icon: "shield-check"},
	StatusClose:      {Status: StatusClose, Label: "Closed", Color: "secondary", Icon: "lock"},
	StatusWaiting:    {Status: StatusWaiting, Label: "Waiting", Color: "warning", Icon: "clock"},
	StatusRejected:   {Status: StatusRejected, Label: "Rejected", Color: "danger", Icon: "x-circle"},
}

var defaultBadge = Badge{Status: StatusDefault, Label: "Unknown", Color: "neutral", Icon: "help-circle"}

// KnownStatus reports whether s belongs to the closed status taxonomy.
func KnownStatus(s ApprovalStatus) bool {
	_, ok := badges[s]
	return ok
}

// BadgeFor returns the presentation descriptor for a display status.
func BadgeFor(s ApprovalStatus) Badge {
	if b, ok := badges[s]; ok {
		return b
	}
	return defaultBadge
}

// DisplayStatus decides the status shown for entry while currentStage is the
// stage blocking progress. The blocking stage always shows WAITING.
func (r *Registry) DisplayStatus(entry ApprovalHistoryEntry, currentStage string) ApprovalStatus {
	if r.StageName(entry.Stage) == currentStage {
		return StatusWaiting
	}
	if KnownStatus(entry.ApprovalStatus) {
		return entry.ApprovalStatus
	}
	return StatusDefault
}

// DisplayStatus labels against the Default registry.
func DisplayStatus(entry ApprovalHistoryEntry, currentStage string) ApprovalStatus {
	return Default.DisplayStatus(entry, currentStage)
}
