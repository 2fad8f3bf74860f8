package plan

import (
	"fmt"
	"strings"

	"github.com/albertocavalcante/go-modman/mod"
)

// StepKind is the kind of a Step.
type StepKind int

const (
	StepInstall StepKind = iota
	StepUpgrade
	StepDowngrade
	StepRemove
	StepBatch
)

func (k StepKind) String() string {
	switch k {
	case StepInstall:
		return "install"
	case StepUpgrade:
		return "upgrade"
	case StepDowngrade:
		return "downgrade"
	case StepRemove:
		return "remove"
	case StepBatch:
		return "batch"
	}
	return "unknown"
}

// Step is one unit of a plan. From is the installed release for Upgrade,
// Downgrade and Remove; To is the target release for Install, Upgrade and
// Downgrade. Reason is the reason recorded once the step is applied, or the
// reason being dropped for Remove.
type Step struct {
	Kind    StepKind
	Mod     mod.ID
	From    *mod.Release
	To      *mod.Release
	Reason  mod.InstallReason
	Members []Step // StepBatch only
}

// Inverse returns the step that undoes s.
func (s Step) Inverse() Step {
	switch s.Kind {
	case StepInstall:
		return Step{Kind: StepRemove, Mod: s.Mod, From: s.To, Reason: s.Reason}
	case StepRemove:
		return Step{Kind: StepInstall, Mod: s.Mod, To: s.From, Reason: s.Reason}
	case StepUpgrade:
		return Step{Kind: StepDowngrade, Mod: s.Mod, From: s.To, To: s.From, Reason: s.Reason}
	case StepDowngrade:
		return Step{Kind: StepUpgrade, Mod: s.Mod, From: s.To, To: s.From, Reason: s.Reason}
	case StepBatch:
		members := make([]Step, len(s.Members))
		for i, m := range s.Members {
			members[len(s.Members)-1-i] = m.Inverse()
		}
		return Step{Kind: StepBatch, Members: members}
	}
	return s
}

// Mods returns the mods the step touches.
func (s Step) Mods() []mod.ID {
	if s.Kind != StepBatch {
		return []mod.ID{s.Mod}
	}
	out := make([]mod.ID, len(s.Members))
	for i, m := range s.Members {
		out[i] = m.Mod
	}
	return out
}

func (s Step) String() string {
	switch s.Kind {
	case StepInstall:
		return fmt.Sprintf("install %s %s", s.Mod, s.To.Version)
	case StepRemove:
		return fmt.Sprintf("remove %s %s", s.Mod, s.From.Version)
	case StepUpgrade, StepDowngrade:
		return fmt.Sprintf("%s %s %s -> %s", s.Kind, s.Mod, s.From.Version, s.To.Version)
	case StepBatch:
		parts := make([]string, len(s.Members))
		for i, m := range s.Members {
			parts[i] = m.String()
		}
		return "batch [" + strings.Join(parts, ", ") + "]"
	}
	return "unknown step"
}

// Apply records the effect of s on state.
func (s Step) Apply(state mod.InstalledState) {
	switch s.Kind {
	case StepInstall, StepUpgrade, StepDowngrade:
		state[s.Mod] = mod.InstalledEntry{ID: s.Mod, Version: s.To.Version, Reason: s.Reason}
	case StepRemove:
		delete(state, s.Mod)
	case StepBatch:
		for _, m := range s.Members {
			m.Apply(state)
		}
	}
}
