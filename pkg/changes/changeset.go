package changes

import (
	"slices"

	"github.com/H0NEYP0T-466/lettaXrag/pkg/ledger"
)

// ChangeSet is the difference between the ledger and the data folder.
// New, Modified and Deleted are sorted; a path appears in at most one.
type ChangeSet struct {
	New      []string
	Modified []string
	Deleted  []string

	// Current is the scanned path to hash mapping the sets were derived from.
	Current map[string]string
}

// Empty reports whether nothing changed.
func (c *ChangeSet) Empty() bool {
	return len(c.New) == 0 && len(c.Modified) == 0 && len(c.Deleted) == 0
}

// Classify compares a ledger with freshly scanned hashes. Paths in exclude
// are never reported as deleted, since scans do not list them.
func Classify(previous ledger.Ledger, current map[string]string, exclude ...string) *ChangeSet {
	cs := &ChangeSet{
		New:      []string{},
		Modified: []string{},
		Deleted:  []string{},
		Current:  current,
	}

	for path, hash := range current {
		old, ok := previous[path]
		switch {
		case !ok:
			cs.New = append(cs.New, path)
		case old != hash:
			cs.Modified = append(cs.Modified, path)
		}
	}

	for path := range previous {
		if _, ok := current[path]; ok || slices.Contains(exclude, path) {
			continue
		}
		cs.Deleted = append(cs.Deleted, path)
	}

	slices.Sort(cs.New)
	slices.Sort(cs.Modified)
	slices.Sort(cs.Deleted)
	return cs
}
