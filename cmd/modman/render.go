package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/albertocavalcante/go-modman"
	"github.com/albertocavalcante/go-modman/mod"
	"github.com/albertocavalcante/go-modman/plan"
)

const (
	colorPrimary = lipgloss.Color("#7C3AED")
	colorMuted   = lipgloss.Color("#6B7280")
	colorSuccess = lipgloss.Color("#10B981")
	colorError   = lipgloss.Color("#EF4444")
	colorWarning = lipgloss.Color("#F59E0B")
	colorChange  = lipgloss.Color("#3B82F6")
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	subtitleStyle = lipgloss.NewStyle().Foreground(colorMuted)
	successStyle  = lipgloss.NewStyle().Foreground(colorSuccess)
	errorStyle    = lipgloss.NewStyle().Bold(true).Foreground(colorError)
	warningStyle  = lipgloss.NewStyle().Foreground(colorWarning)
	changeStyle   = lipgloss.NewStyle().Foreground(colorChange)
	mutedStyle    = lipgloss.NewStyle().Foreground(colorMuted)
)

// renderPlan colours the plan listing by step kind.
func renderPlan(p *plan.Plan) string {
	var b strings.Builder
	for _, line := range strings.SplitAfter(p.Render(), "\n") {
		if line == "" {
			continue
		}
		body := strings.TrimRight(line, "\n")
		switch trimmed := strings.TrimSpace(body); {
		case strings.HasPrefix(trimmed, "Plan:"), strings.HasPrefix(trimmed, "Nothing"):
			b.WriteString(titleStyle.Render(body))
		case strings.HasPrefix(trimmed, "+"):
			b.WriteString(successStyle.Render(body))
		case strings.HasPrefix(trimmed, "-"):
			b.WriteString(warningStyle.Render(body))
		case strings.HasPrefix(trimmed, "^"), strings.HasPrefix(trimmed, "v "):
			b.WriteString(changeStyle.Render(body))
		default:
			b.WriteString(mutedStyle.Render(body))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// renderInstalled lists installed mods in aligned columns.
func renderInstalled(installed mod.InstalledState) string {
	if len(installed) == 0 {
		return mutedStyle.Render("No mods installed.") + "\n"
	}

	ids := installed.IDs()
	idWidth, versionWidth := len("MOD"), len("VERSION")
	for _, id := range ids {
		idWidth = max(idWidth, len(id))
		versionWidth = max(versionWidth, len(installed[id].Version.String()))
	}
	idCol := lipgloss.NewStyle().Width(idWidth + 2)
	versionCol := lipgloss.NewStyle().Width(versionWidth + 2)

	var b strings.Builder
	b.WriteString(titleStyle.Render(idCol.Render("MOD") + versionCol.Render("VERSION") + "REASON"))
	b.WriteString("\n")
	for _, id := range ids {
		e := installed[id]
		reason := e.Reason.String()
		if e.Reason == mod.ReasonDependency {
			reason = mutedStyle.Render(reason)
		}
		b.WriteString(idCol.Render(string(id)) + versionCol.Render(e.Version.String()) + reason)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "%s\n", subtitleStyle.Render(fmt.Sprintf("%d mods", len(ids))))
	return b.String()
}

// formatError adds the details carried by typed engine errors.
func formatError(err error) string {
	var impossible *modman.ResolutionImpossibleError
	if errors.As(err, &impossible) && len(impossible.Constraints) > 0 {
		var b strings.Builder
		b.WriteString("no set of versions satisfies the request")
		if impossible.Cause != nil {
			b.WriteString(" (" + impossible.Cause.Error() + ")")
		}
		b.WriteString(":")
		for _, c := range impossible.Constraints {
			b.WriteString("\n  " + c.String())
		}
		return b.String()
	}

	var applyErr *modman.ApplyError
	if errors.As(err, &applyErr) && !applyErr.RolledBack {
		return err.Error() + "\n" + warningStyle.Render("The mods directory may not match the recorded state; inspect it before retrying.")
	}
	return err.Error()
}
