// Package restore implements the restore configuration workflow: the file
// selection model, the configure/preview/restoring session state machine,
// and the dispatcher that submits jobs and polls cloud-restore progress.
package restore

import (
	"sort"
	"strings"
)

// FileEntry is one row of a snapshot's flat file listing as the selection
// model sees it.
type FileEntry struct {
	Path string
	Type string // "file" or "dir"
	Size int64
}

// Selection tracks the explicitly checked paths of a partial restore over a
// flat file listing. Directory selection implies every descendant without
// adding descendants to the set: membership of implied paths is derived by
// predicate, never stored, so the explicit set stays the single source of
// truth.
type Selection struct {
	entries  []FileEntry
	byPath   map[string]FileEntry
	selected map[string]struct{}
}

// NewSelection creates an empty selection over the given listing.
func NewSelection(entries []FileEntry) *Selection {
	byPath := make(map[string]FileEntry, len(entries))
	for _, e := range entries {
		byPath[e.Path] = e
	}
	return &Selection{
		entries:  entries,
		byPath:   byPath,
		selected: make(map[string]struct{}),
	}
}

// Toggle inserts the path into the explicit set if absent, removes it if
// present. Unknown paths are ignored.
func (s *Selection) Toggle(path string) {
	if _, known := s.byPath[path]; !known {
		return
	}
	if _, ok := s.selected[path]; ok {
		delete(s.selected, path)
		return
	}
	s.selected[path] = struct{}{}
}

// SelectAll replaces the set with every path in the listing.
func (s *Selection) SelectAll() {
	s.selected = make(map[string]struct{}, len(s.entries))
	for _, e := range s.entries {
		s.selected[e.Path] = struct{}{}
	}
}

// ClearAll empties the explicit set, returning to restore-everything.
func (s *Selection) ClearAll() {
	s.selected = make(map[string]struct{})
}

// IsSelected reports explicit membership only.
func (s *Selection) IsSelected(path string) bool {
	_, ok := s.selected[path]
	return ok
}

// IsEffectivelySelected reports whether the path is explicitly selected or
// lies under a selected directory.
func (s *Selection) IsEffectivelySelected(path string) bool {
	if s.IsSelected(path) {
		return true
	}
	return s.hasSelectedAncestor(path)
}

// IsImplied reports whether the path is selected only through an ancestor
// directory. Implied entries render as checked and disabled: a child of a
// selected directory cannot be independently deselected.
func (s *Selection) IsImplied(path string) bool {
	return !s.IsSelected(path) && s.hasSelectedAncestor(path)
}

func (s *Selection) hasSelectedAncestor(path string) bool {
	for p := range s.selected {
		if p != path && strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// SelectedCount returns the size of the explicit set.
func (s *Selection) SelectedCount() int {
	return len(s.selected)
}

// SelectedSize sums the sizes of file entries that are explicitly selected
// or implied by a selected ancestor, counting each file once.
func (s *Selection) SelectedSize() int64 {
	var total int64
	for _, e := range s.entries {
		if e.Type != "file" {
			continue
		}
		if s.IsEffectivelySelected(e.Path) {
			total += e.Size
		}
	}
	return total
}

// Empty reports whether nothing is explicitly selected, which means the
// whole snapshot is restored.
func (s *Selection) Empty() bool {
	return len(s.selected) == 0
}

// IncludePaths returns the explicit set sorted, or nil when the set is
// empty. The nil return matters: an empty selection must be omitted from
// requests entirely rather than sent as an empty list.
func (s *Selection) IncludePaths() []string {
	if len(s.selected) == 0 {
		return nil
	}
	paths := make([]string, 0, len(s.selected))
	for p := range s.selected {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Entries returns the underlying listing in its original order.
func (s *Selection) Entries() []FileEntry {
	return s.entries
}
