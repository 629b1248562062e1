package tui

import (
	"fmt"
	"io"
	"sync"

	"github.com/muesli/termenv"

	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/ports"
)

var levelColors = map[domain.LogLevel]string{
	domain.LevelDebug:   "#9ca3af",
	domain.LevelInfo:    "#60a5fa",
	domain.LevelWarning: "#fbbf24",
	domain.LevelError:   "#f87171",
}

var severityColors = map[domain.Severity]string{
	domain.SeverityInfo:    "#60a5fa",
	domain.SeverityWarning: "#fbbf24",
	domain.SeverityError:   "#f87171",
}

// Console is a ports.EventSink that prints execution log lines and
// notifications as they arrive. Each log entry is printed once.
type Console struct {
	ports.NopSink

	mu      sync.Mutex
	w       io.Writer
	profile termenv.Profile
	printed map[string]int
}

// NewConsole creates a Console writing to w with the given color profile.
func NewConsole(w io.Writer, profile termenv.Profile) *Console {
	return &Console{w: w, profile: profile, printed: make(map[string]int)}
}

// FormatLog renders one log line.
func FormatLog(p termenv.Profile, e domain.LogEntry) string {
	level := p.String(fmt.Sprintf("%-7s", e.Level)).Foreground(p.Color(levelColors[e.Level]))
	if e.Level == domain.LevelError {
		level = level.Bold()
	}
	return fmt.Sprintf("%s %s %s", e.Timestamp.Format("15:04:05"), level, e.Message)
}

// OnExecutionUpdated prints the log entries of rec not printed yet.
func (c *Console) OnExecutionUpdated(rec *domain.ExecutionRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	from := c.printed[rec.ID]
	for _, e := range rec.Logs[min(from, len(rec.Logs)):] {
		fmt.Fprintln(c.w, FormatLog(c.profile, e))
	}
	c.printed[rec.ID] = max(from, len(rec.Logs))
}

// OnNotify prints a notification.
func (c *Console) OnNotify(n domain.Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	title := c.profile.String(n.Title).Bold().Foreground(c.profile.Color(severityColors[n.Severity]))
	if n.Message == "" {
		fmt.Fprintf(c.w, ">>> %s\n", title)
		return
	}
	fmt.Fprintf(c.w, ">>> %s: %s\n", title, n.Message)
}

var _ ports.EventSink = (*Console)(nil)
