// Package changeset decides which modules belong in a patch and summarizes
// how a build differs from the previous one.
package changeset

import (
	"errors"
	"sort"

	"class-patcher/internal/ledger"
)

// ErrDuplicate is returned when a logical path is added to a Set twice.
var ErrDuplicate = errors.New("changeset: module already included")

// Decide reports whether a module belongs in the patch. Nothing is included
// when there is no previous build to compare against; otherwise a module is
// included when it is new or its hash differs from the recorded one.
func Decide(prev *ledger.Ledger, path, newHash string) bool {
	if prev.Empty() {
		return false
	}
	old, ok := prev.Get(path)
	return !ok || old != newHash
}

// Set is the ordered list of modules included in a patch.
type Set struct {
	paths []string
	seen  map[string]struct{}
}

// NewSet returns an empty Set.
func NewSet() *Set {
	return &Set{seen: make(map[string]struct{})}
}

// Add appends path, or returns ErrDuplicate when it is already present.
func (s *Set) Add(path string) error {
	if _, ok := s.seen[path]; ok {
		return ErrDuplicate
	}
	s.seen[path] = struct{}{}
	s.paths = append(s.paths, path)
	return nil
}

// Paths returns the included paths in insertion order.
func (s *Set) Paths() []string {
	return append([]string(nil), s.paths...)
}

// Rename is a module whose bytes moved to a new logical path unchanged.
type Rename struct {
	From string
	To   string
	Hash string
}

// Summary classifies every module of two consecutive builds. All lists are
// sorted; a path appears in at most one of them.
type Summary struct {
	Added     []string
	Changed   []string
	Removed   []string
	Renamed   []Rename
	Unchanged int
}

// Summarize compares the ledger of the previous build with the current one.
func Summarize(prev, next *ledger.Ledger) Summary {
	var s Summary
	for _, p := range next.Paths() {
		nh, _ := next.Get(p)
		oh, ok := prev.Get(p)
		switch {
		case !ok:
			s.Added = append(s.Added, p)
		case oh != nh:
			s.Changed = append(s.Changed, p)
		default:
			s.Unchanged++
		}
	}
	for _, p := range prev.Paths() {
		if _, ok := next.Get(p); !ok {
			s.Removed = append(s.Removed, p)
		}
	}
	s.Renamed, s.Removed, s.Added = matchRenames(prev, next, s.Removed, s.Added)
	return s
}

// matchRenames pairs removed and added paths that carry the same hash. Both
// inputs are sorted; candidates are consumed in path order so the pairing is
// deterministic.
func matchRenames(prev, next *ledger.Ledger, removed, added []string) ([]Rename, []string, []string) {
	if len(removed) == 0 || len(added) == 0 {
		return nil, removed, added
	}
	byHash := make(map[string][]string, len(removed))
	for _, p := range removed {
		h, _ := prev.Get(p)
		byHash[h] = append(byHash[h], p)
	}
	used := make(map[string]bool)
	var renames []Rename
	keepAdded := make([]string, 0, len(added))
	for _, p := range added {
		h, _ := next.Get(p)
		cands := byHash[h]
		if len(cands) == 0 {
			keepAdded = append(keepAdded, p)
			continue
		}
		byHash[h] = cands[1:]
		used[cands[0]] = true
		renames = append(renames, Rename{From: cands[0], To: p, Hash: h})
	}
	keepRemoved := make([]string, 0, len(removed))
	for _, p := range removed {
		if !used[p] {
			keepRemoved = append(keepRemoved, p)
		}
	}
	sort.Slice(renames, func(i, j int) bool {
		if renames[i].From == renames[j].From {
			return renames[i].To < renames[j].To
		}
		return renames[i].From < renames[j].From
	})
	return renames, nilIfEmpty(keepRemoved), nilIfEmpty(keepAdded)
}

func nilIfEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}
