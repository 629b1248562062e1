package tui

import (
	"fmt"
	"io"
	"os"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Profile returns the color profile for w: the detected one for a terminal,
// plain ASCII otherwise.
func Profile(w io.Writer) termenv.Profile {
	if f, ok := w.(*os.File); ok && IsTerminal(f) {
		return termenv.NewOutput(f).Profile
	}
	return termenv.Ascii
}

// PrintBanner writes the weft banner and version to w.
func PrintBanner(w io.Writer, version string) {
	p := Profile(w)
	lines := []struct {
		text, color string
	}{
		{" __      __       __ _   ", "#2dd4bf"},
		{" \\ \\ /\\ / /__ _ / _| |_ ", "#22d3ee"},
		{"  \\ V  V / -_)  _|  _|", "#38bdf8"},
		{"   \\_/\\_/\\___|_|  \\__|", "#60a5fa"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, p.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w, p.String("   "+version).Faint())
	fmt.Fprintln(w)
}
