package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/weft/pkg/domain"
)

var statusClasses = map[domain.NodeStatus]string{
	domain.NodeRunning: "fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000",
	domain.NodeSuccess: "fill:#e8f5e9,stroke:#2e7d32,stroke-width:2px,color:#000",
	domain.NodeError:   "fill:#ffebee,stroke:#c62828,stroke-width:3px,color:#000",
	domain.NodeWarning: "fill:#fff8e1,stroke:#f9a825,stroke-width:2px,color:#000",
}

// GenerateMermaid produces a Mermaid flowchart (left to right) for g.
// Node shapes follow the kind:
// - trigger: ((Circle))
// - python: [[Subroutine]]
// - llm: {{Hexagon}}
// - output: [/Parallelogram/]
// - anything else: [Rectangle]
// With withStatus set, non-idle runtime statuses are styled as classes.
func GenerateMermaid(g domain.Graph, withStatus bool) string {
	var sb strings.Builder
	sb.WriteString("graph LR\n")

	for _, n := range g.Nodes {
		opener, closer := "[", "]"
		switch n.Kind {
		case domain.KindTrigger:
			opener, closer = "((", "))"
		case domain.KindPython:
			opener, closer = "[[", "]]"
		case domain.KindLLM:
			opener, closer = "{{", "}}"
		case domain.KindOutput:
			opener, closer = "[/", "/]"
		}
		label := quote(n.Label())
		if n.Data.Disabled {
			label = quote(n.Label() + " (disabled)")
		}
		sb.WriteString(fmt.Sprintf("    %s%s%s%s\n", sanitizeMermaidID(n.ID), opener, label, closer))
	}

	for _, e := range g.Edges {
		arrow := "-->"
		if e.Animated {
			arrow = "-.->"
		}
		if e.Label != "" {
			arrow = fmt.Sprintf("-- %s -->", quote(e.Label))
			if e.Animated {
				arrow = fmt.Sprintf("-. %s .->", quote(e.Label))
			}
		}
		sb.WriteString(fmt.Sprintf("    %s %s %s\n", sanitizeMermaidID(e.Source), arrow, sanitizeMermaidID(e.Target)))
	}

	if withStatus {
		byStatus := make(map[domain.NodeStatus][]string)
		for _, n := range g.Nodes {
			if _, ok := statusClasses[n.Status]; ok {
				byStatus[n.Status] = append(byStatus[n.Status], sanitizeMermaidID(n.ID))
			}
		}
		if len(byStatus) > 0 {
			statuses := make([]string, 0, len(byStatus))
			for s := range byStatus {
				statuses = append(statuses, string(s))
			}
			sort.Strings(statuses)

			sb.WriteString("\n    %% Status Styles\n")
			for _, s := range statuses {
				sb.WriteString(fmt.Sprintf("    classDef %s %s;\n", s, statusClasses[domain.NodeStatus(s)]))
			}
			for _, s := range statuses {
				sb.WriteString(fmt.Sprintf("    class %s %s;\n", strings.Join(byStatus[domain.NodeStatus(s)], ","), s))
			}
		}
	}

	return sb.String()
}

// quote wraps s in double quotes; embedded quotes become single quotes.
func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, "'") + `"`
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
