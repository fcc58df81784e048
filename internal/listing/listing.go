// Package listing parses FTP directory listings into structured entries.
package listing

import (
	"strconv"
	"strings"
	"time"
)

// Entry is a single name within a directory listing.
type Entry struct {
	Name  string
	Dir   bool
	Size  int64
	Perms string // raw permission field, protocol-specific, kept opaque

	// Stamped at parse time. LIST output carries a date/time field, but it
	// is locale- and server-dependent; entries are stamped "now" instead and
	// precise times come from MDTM during attribute resolution.
	ModTime time.Time
}

// Listing is an ordered, name-keyed view of one directory.
//
// The "." and ".." entries are always present and synthesized locally; the
// server never contributes them. A Listing is replaced wholesale on refresh,
// never patched.
type Listing struct {
	order   []string
	entries map[string]Entry
}

func newListing(now time.Time) *Listing {
	l := &Listing{entries: make(map[string]Entry)}
	for _, dot := range []string{".", ".."} {
		l.put(Entry{Name: dot, Dir: true, Perms: "drwxr-xr-x", ModTime: now})
	}
	return l
}

func (l *Listing) put(e Entry) {
	if _, seen := l.entries[e.Name]; !seen {
		l.order = append(l.order, e.Name)
	}
	l.entries[e.Name] = e // duplicates: last occurrence wins
}

// Names returns the entry names in insertion order, starting with "." and "..".
func (l *Listing) Names() []string {
	names := make([]string, len(l.order))
	copy(names, l.order)
	return names
}

// Lookup returns the entry for name.
func (l *Listing) Lookup(name string) (Entry, bool) {
	e, ok := l.entries[name]
	return e, ok
}

// Len returns the number of entries, including "." and "..".
func (l *Listing) Len() int {
	return len(l.order)
}

// Entries returns all entries except "." and "..", in insertion order.
func (l *Listing) Entries() []Entry {
	out := make([]Entry, 0, len(l.order))
	for _, name := range l.order {
		if name == "." || name == ".." {
			continue
		}
		out = append(out, l.entries[name])
	}
	return out
}

// Parse converts raw LIST output into a Listing.
//
// Each non-blank line is split into 9 whitespace-delimited fields:
// permissions, link count, owner, group, size, then a merged tail whose
// final field is the name (which may itself contain spaces). Lines that
// yield fewer than 9 fields are skipped rather than failing the whole
// parse: a partial listing beats no listing.
func Parse(lines []string) *Listing {
	now := time.Now()
	l := newListing(now)

	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}

		fields := splitFields(line, 9)
		if len(fields) < 9 {
			continue
		}

		perms := fields[0]
		size, err := strconv.ParseInt(fields[4], 10, 64)
		if err != nil || size < 0 {
			size = 0
		}

		l.put(Entry{
			Name:    fields[8],
			Dir:     strings.HasPrefix(perms, "d"),
			Size:    size,
			Perms:   perms,
			ModTime: now,
		})
	}

	return l
}

// FromEntries builds a Listing from already-structured entries, applying the
// same synthesis and last-wins deduplication rules as Parse. Used by the
// structured transport, which receives parsed entries from the FTP client
// library instead of raw text.
func FromEntries(entries []Entry) *Listing {
	now := time.Now()
	l := newListing(now)

	for _, e := range entries {
		if e.Name == "" || e.Name == "." || e.Name == ".." {
			continue
		}
		if e.Perms == "" {
			if e.Dir {
				e.Perms = "drwxr-xr-x"
			} else {
				e.Perms = "-rw-r--r--"
			}
		}
		if e.ModTime.IsZero() {
			e.ModTime = now
		}
		if e.Size < 0 {
			e.Size = 0
		}
		l.put(e)
	}

	return l
}

// splitFields splits s on runs of whitespace into at most n fields; the
// final field keeps any embedded whitespace. Mirrors str.split(None, n-1).
func splitFields(s string, n int) []string {
	fields := make([]string, 0, n)
	rest := strings.TrimLeft(s, " \t")
	for len(rest) > 0 {
		if len(fields) == n-1 {
			fields = append(fields, strings.TrimRight(rest, " \t\r"))
			break
		}
		i := strings.IndexAny(rest, " \t")
		if i < 0 {
			fields = append(fields, strings.TrimRight(rest, "\r"))
			break
		}
		fields = append(fields, rest[:i])
		rest = strings.TrimLeft(rest[i:], " \t")
	}
	return fields
}
