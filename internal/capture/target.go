package capture

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"strings"
)

// Target identifies a top-level window. ID is the platform handle: HWND on
// Windows, X11 window id on Linux, CGWindowID on macOS.
type Target struct {
	ID    uint64 `json:"id"`
	Title string `json:"title"`
	PID   int    `json:"pid"`
}

// Handle formats the ID the way platform tools print it.
func (t Target) Handle() string {
	return "0x" + strconv.FormatUint(t.ID, 16)
}

// Lister enumerates visible top-level windows.
type Lister interface {
	List(ctx context.Context) ([]Target, error)
}

// Enumerate lists windows with a title, collapses duplicate IDs and sorts by
// title case-insensitively. Failures yield an empty list.
func Enumerate(ctx context.Context, l Lister) []Target {
	raw, err := l.List(ctx)
	if err != nil {
		slog.Warn("window enumeration failed", "error", err)
		return []Target{}
	}

	seen := make(map[uint64]bool, len(raw))
	out := make([]Target, 0, len(raw))
	for _, t := range raw {
		t.Title = strings.TrimSpace(t.Title)
		if t.Title == "" || seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		out = append(out, t)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := strings.ToLower(out[i].Title), strings.ToLower(out[j].Title)
		if a != b {
			return a < b
		}
		return out[i].ID < out[j].ID
	})
	return out
}
