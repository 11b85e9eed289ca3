package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/vilma/internal/component"
	"github.com/kingrea/vilma/internal/compute"
	"github.com/kingrea/vilma/internal/resolution"
)

var (
	labelStyle = lipgloss.NewStyle().Width(20).Foreground(lipgloss.Color("#A0AEC0"))
	unsetStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#999999")).Italic(true)
)

// InfoView describes a component for `vilma info`.
type InfoView struct {
	Info          component.Info
	ResolutionKey string
	Resolution    resolution.Record
	Requirements  *compute.Requirements
	// RequirementsErr is shown in place of the requirements when resolving them failed.
	RequirementsErr error
}

// Render lays the view out as labelled sections.
func (v InfoView) Render() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("%s %s", v.Info.Name, v.Info.Version)))
	b.WriteString("\n")
	row(&b, "type", v.Info.Type)
	row(&b, "download", v.Info.DownloadAddress)
	row(&b, "couple types", strings.Join(v.Info.CoupleTypes, ", "))

	b.WriteString("\n")
	b.WriteString(titleStyle.Render("resolution " + v.ResolutionKey))
	b.WriteString("\n")
	for _, attr := range v.Resolution.Attributes() {
		if !attr.Set {
			b.WriteString(labelStyle.Render(attr.Name) + unsetStyle.Render("unset") + "\n")
			continue
		}
		row(&b, attr.Name, fmt.Sprint(attr.Value))
	}

	b.WriteString("\n")
	b.WriteString(titleStyle.Render("requirements"))
	b.WriteString("\n")
	switch {
	case v.RequirementsErr != nil:
		b.WriteString(failedStyle.Render(v.RequirementsErr.Error()) + "\n")
	case v.Requirements != nil:
		RenderRequirements(&b, *v.Requirements)
	}
	return b.String()
}

// RenderRequirements writes the launch requirements as rows.
func RenderRequirements(b *strings.Builder, req compute.Requirements) {
	row(b, "executable", req.Executable)
	row(b, "command", strings.Join(req.Command, " "))
	row(b, "tasks", fmt.Sprint(req.NumTasks))
	row(b, "threads", fmt.Sprint(req.NumThreads))
}

func row(b *strings.Builder, label, value string) {
	b.WriteString(labelStyle.Render(label))
	b.WriteString(value)
	b.WriteString("\n")
}
