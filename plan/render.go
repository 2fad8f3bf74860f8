package plan

import (
	"fmt"
	"strings"
)

var stepSymbols = map[StepKind]string{
	StepInstall:   "+",
	StepUpgrade:   "^",
	StepDowngrade: "v",
	StepRemove:    "-",
}

// Summary returns a one-line count of the plan's changes.
func (p *Plan) Summary() string {
	c := p.Counts()
	return fmt.Sprintf("%d to install, %d to upgrade, %d to downgrade, %d to remove",
		c[StepInstall], c[StepUpgrade], c[StepDowngrade], c[StepRemove])
}

// Render returns a human-readable listing of the plan in apply order.
func (p *Plan) Render() string {
	var b strings.Builder
	if p.IsEmpty() {
		b.WriteString("Nothing to do.\n")
		return b.String()
	}

	b.WriteString("Plan: " + p.Summary() + "\n")
	for _, s := range p.Steps {
		if s.Kind != StepBatch {
			writeStep(&b, s, "  ")
			continue
		}
		fmt.Fprintf(&b, "  batch (%d mods depend on each other):\n", len(s.Members))
		for _, m := range s.Members {
			writeStep(&b, m, "    ")
		}
	}
	for _, r := range p.Diff().Retagged {
		fmt.Fprintf(&b, "  * mark %s as %s\n", r.ID, r.New)
	}
	return b.String()
}

func writeStep(b *strings.Builder, s Step, indent string) {
	switch s.Kind {
	case StepInstall:
		fmt.Fprintf(b, "%s%s install %s %s (%s)\n", indent, stepSymbols[s.Kind], s.Mod, s.To.Version, s.Reason)
	case StepRemove:
		fmt.Fprintf(b, "%s%s remove %s %s\n", indent, stepSymbols[s.Kind], s.Mod, s.From.Version)
	default:
		fmt.Fprintf(b, "%s%s %s %s %s -> %s\n", indent, stepSymbols[s.Kind], s.Kind, s.Mod, s.From.Version, s.To.Version)
	}
}
