package directory

import (
	"github.com/ofarias/chatpagos/internal/normalize"
)

// Unknown is the sentinel recorded when neither the message nor the
// directory can supply a group name or branch.
const Unknown = "DESCONOCIDO"

// Entry is the directory's knowledge of one group.
type Entry struct {
	Name   string
	Branch string
}

// Directory maps six-digit group ids to registered names and branches.
// Built once per processing run and read-only afterward.
type Directory struct {
	entries map[string]Entry
}

// New normalizes and indexes the configured entries. Entries with
// malformed ids are dropped.
func New(entries map[string]Entry) *Directory {
	d := &Directory{entries: make(map[string]Entry, len(entries))}
	for id, e := range entries {
		padded, err := normalize.PadID(id)
		if err != nil {
			continue
		}
		d.entries[padded] = Entry{
			Name:   normalize.Name(e.Name),
			Branch: normalize.Branch(e.Branch),
		}
	}
	return d
}

func (d *Directory) Len() int { return len(d.entries) }

// Lookup returns the entry for a padded group id.
func (d *Directory) Lookup(groupID string) (Entry, bool) {
	e, ok := d.entries[groupID]
	return e, ok
}

// Entries returns a copy of the directory for hinting.
func (d *Directory) Entries() map[string]Entry {
	out := make(map[string]Entry, len(d.entries))
	for id, e := range d.entries {
		out[id] = e
	}
	return out
}

// Resolve applies field precedence: values from the message win, the
// directory fills the gaps, and Unknown covers the rest. miss reports
// whether the sentinel was needed. Message values must already be
// normalized.
func (d *Directory) Resolve(groupID, msgName, msgBranch string) (name, branch string, miss bool) {
	e, known := d.entries[groupID]
	name = msgName
	if name == "" && known {
		name = e.Name
	}
	branch = msgBranch
	if branch == "" && known {
		branch = e.Branch
	}
	if name == "" {
		name = Unknown
		miss = true
	}
	if branch == "" {
		branch = Unknown
		miss = true
	}
	return name, branch, miss
}
