package dlp

// SecurityLevel is the per-file protection tier.
type SecurityLevel string

const (
	LevelStandard SecurityLevel = "standard"
	LevelHigh     SecurityLevel = "high"
	LevelMaximum  SecurityLevel = "maximum"
)

// ValidLevel reports whether s names a known security level.
func ValidLevel(s string) bool {
	switch SecurityLevel(s) {
	case LevelStandard, LevelHigh, LevelMaximum:
		return true
	}
	return false
}

// Action is the recorded outcome of an upload attempt.
type Action string

const (
	ActionUploaded  Action = "uploaded"
	ActionBlocked   Action = "blocked"
	ActionCancelled Action = "cancelled"
)

// Mode controls what a security level does when findings are present.
type Mode string

const (
	// ModeAllow uploads without surfacing findings to the user.
	ModeAllow Mode = "allow"
	// ModeWarn surfaces findings and lets the user proceed or cancel.
	ModeWarn Mode = "warn"
	// ModeBlock rejects the upload outright.
	ModeBlock Mode = "block"
)

// Decision is the policy outcome for one upload attempt.
type Decision struct {
	Action   Action    `json:"action"`
	Findings []Finding `json:"findings"`
}

// Policy maps security levels to modes. It is explicit configuration, loaded
// at startup; there are no hard-coded thresholds in the flow.
type Policy struct {
	Modes map[SecurityLevel]Mode
}

// DefaultPolicy warns at every level. Deployments that want hard blocking
// set the mode per level in configuration.
func DefaultPolicy() Policy {
	return Policy{Modes: map[SecurityLevel]Mode{
		LevelStandard: ModeWarn,
		LevelHigh:     ModeWarn,
		LevelMaximum:  ModeWarn,
	}}
}

// Decide maps findings at a security level to a suggested action. Content
// with no findings is always uploaded. ModeBlock turns findings into a
// blocked decision; allow and warn both suggest uploaded, the difference
// being whether the caller shows the findings first. Unknown levels fall
// back to warn.
func (p Policy) Decide(level SecurityLevel, findings []Finding) Decision {
	if len(findings) == 0 {
		return Decision{Action: ActionUploaded}
	}

	mode, ok := p.Modes[level]
	if !ok {
		mode = ModeWarn
	}

	if mode == ModeBlock {
		return Decision{Action: ActionBlocked, Findings: findings}
	}
	return Decision{Action: ActionUploaded, Findings: findings}
}
