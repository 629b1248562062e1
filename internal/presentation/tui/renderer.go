package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"

	"github.com/aretw0/weft/pkg/domain"
)

// NewRenderer returns a function that renders markdown using glamour.
// styled picks the style from the terminal background; otherwise the
// plain "notty" style is used.
func NewRenderer(styled bool, width int) (func(string) (string, error), error) {
	style := glamour.WithStandardStyle("notty")
	if styled {
		style = glamour.WithAutoStyle()
	}
	opts := []glamour.TermRendererOption{style}
	if width > 0 {
		opts = append(opts, glamour.WithWordWrap(width))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	return r.Render, nil
}

// RunSummary describes rec as markdown: header, node table and log.
func RunSummary(rec *domain.ExecutionRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Run %s\n\n", rec.RunID)
	fmt.Fprintf(&b, "- **Workflow:** %s\n", rec.WorkflowID)
	fmt.Fprintf(&b, "- **Status:** %s\n", rec.Status)
	fmt.Fprintf(&b, "- **Started:** %s\n", rec.StartTime.Format(time.RFC3339))
	if rec.EndTime != nil {
		fmt.Fprintf(&b, "- **Duration:** %s\n", (time.Duration(rec.DurationMs) * time.Millisecond).String())
	}
	fmt.Fprintf(&b, "- **Issues:** %d\n\n", rec.IssueCount)

	if len(rec.Nodes) > 0 {
		b.WriteString("## Nodes\n\n| Node | Kind | Status |\n|---|---|---|\n")
		for _, n := range rec.Nodes {
			label := n.Label
			if label == "" {
				label = n.ID
			}
			fmt.Fprintf(&b, "| %s | %s | %s |\n", escapeCell(label), escapeCell(n.Kind), n.Status)
		}
		b.WriteString("\n")
	}

	if len(rec.Logs) > 0 {
		b.WriteString("## Log\n\n")
		for _, e := range rec.Logs {
			fmt.Fprintf(&b, "- `%s` **%s** %s\n", e.Timestamp.Format("15:04:05"), e.Level, e.Message)
		}
	}
	return b.String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
