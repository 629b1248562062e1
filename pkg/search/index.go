// Package search implements canvas node search with ordered, wrap-around navigation.
package search

import (
	"strings"

	"github.com/aretw0/weft/pkg/domain"
)

// Index holds the matches of the last query and a cursor into them.
type Index struct {
	query   string
	matches []string
	cursor  int
	open    bool
}

// New returns an empty, closed index.
func New() *Index {
	return &Index{}
}

// Open marks the search overlay as visible.
func (x *Index) Open() {
	x.open = true
}

// IsOpen reports whether the search overlay is visible.
func (x *Index) IsOpen() bool {
	return x.open
}

// Search matches query case-insensitively against each node's label,
// description and id, in node order. An empty query clears all matches.
// The cursor is reset to the first match.
func (x *Index) Search(nodes []domain.Node, query string) []string {
	x.query = query
	x.matches = nil
	x.cursor = 0

	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	for _, n := range nodes {
		if matches(n, q) {
			x.matches = append(x.matches, n.ID)
		}
	}
	return x.Matches()
}

func matches(n domain.Node, q string) bool {
	return strings.Contains(strings.ToLower(n.Data.Label), q) ||
		strings.Contains(strings.ToLower(n.Data.Description), q) ||
		strings.Contains(strings.ToLower(n.ID), q)
}

// Query returns the last query.
func (x *Index) Query() string {
	return x.query
}

// Matches returns a copy of the ordered match list.
func (x *Index) Matches() []string {
	return append([]string(nil), x.matches...)
}

// Cursor returns the current match position.
func (x *Index) Cursor() int {
	return x.cursor
}

// Current returns the node id under the cursor.
func (x *Index) Current() (string, bool) {
	if len(x.matches) == 0 {
		return "", false
	}
	return x.matches[x.cursor], true
}

// Next advances the cursor, wrapping to the first match.
func (x *Index) Next() (string, bool) {
	if len(x.matches) == 0 {
		return "", false
	}
	x.cursor = (x.cursor + 1) % len(x.matches)
	return x.matches[x.cursor], true
}

// Previous moves the cursor back, wrapping to the last match.
func (x *Index) Previous() (string, bool) {
	if len(x.matches) == 0 {
		return "", false
	}
	x.cursor = (x.cursor - 1 + len(x.matches)) % len(x.matches)
	return x.matches[x.cursor], true
}

// Remove drops deleted node ids from the match list, keeping the cursor
// on the same node when it survives.
func (x *Index) Remove(ids map[string]bool) {
	if len(x.matches) == 0 {
		return
	}
	current, _ := x.Current()
	kept := x.matches[:0]
	for _, id := range x.matches {
		if !ids[id] {
			kept = append(kept, id)
		}
	}
	x.matches = kept
	x.cursor = 0
	for i, id := range x.matches {
		if id == current {
			x.cursor = i
			break
		}
	}
}

// Close hides the overlay, clears the matches and resets the cursor.
func (x *Index) Close() {
	x.open = false
	x.query = ""
	x.matches = nil
	x.cursor = 0
}
