// Package results holds the most recent region list, including hooked lines,
// and exports it as flat JSON.
package results

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	apperrors "github.com/GriffinCanCode/live-translate/internal/errors"
	"github.com/GriffinCanCode/live-translate/internal/recognition"
)

// HookLang tags entries that came from the hook rather than recognition.
const HookLang = "hook"

// DefaultMaxEntries caps the list; hooked lines accumulate until the next
// recognition result replaces them.
const DefaultMaxEntries = 500

// Store is a mutex-guarded region list. Readers get copies.
type Store struct {
	mu      sync.RWMutex
	entries []recognition.Region
	maxSize int
}

func NewStore(maxEntries int) *Store {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Store{maxSize: maxEntries}
}

// Replace swaps in a new recognition result wholesale.
func (s *Store) Replace(regions []recognition.Region) {
	next := make([]recognition.Region, len(regions))
	copy(next, regions)
	if len(next) > s.maxSize {
		next = next[:s.maxSize]
	}

	s.mu.Lock()
	s.entries = next
	s.mu.Unlock()
}

// AddHook appends a hooked line with a zero box.
func (s *Store) AddHook(original, translated string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, recognition.Region{
		Text:        original,
		Lang:        HookLang,
		Translation: translated,
	})
	if len(s.entries) > s.maxSize {
		s.entries = s.entries[len(s.entries)-s.maxSize:]
	}
}

// Snapshot returns a copy of the current list.
func (s *Store) Snapshot() []recognition.Region {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]recognition.Region, len(s.entries))
	copy(out, s.entries)
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// SetTranslation overrides the translation of entry i with trimmed text.
func (s *Store) SetTranslation(i int, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i < 0 || i >= len(s.entries) {
		return apperrors.Newf(apperrors.InvalidArgument, "no result at index %d", i).
			WithMetadata("len", strconv.Itoa(len(s.entries)))
	}
	s.entries[i].Translation = strings.TrimSpace(text)
	return nil
}

// Export writes the list to path as an indented JSON array, replacing the
// file atomically. Non-ASCII text is written as is.
func (s *Store) Export(path string) (int, error) {
	entries := s.Snapshot()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return 0, apperrors.Wrap(err, apperrors.Internal, "encode results")
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, apperrors.Wrap(err, apperrors.Internal, "create export dir")
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return 0, apperrors.Wrap(err, apperrors.Internal, "write results").WithMetadata("path", path)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return 0, apperrors.Wrap(err, apperrors.Internal, "replace results file").WithMetadata("path", path)
	}
	return len(entries), nil
}
