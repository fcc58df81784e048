package bridge

import (
	"time"

	"github.com/ianzepp/monk-ftp/internal/ftpc"
)

// Attr is the synthesized stat-equivalent record for one path.
type Attr struct {
	Dir   bool
	Mode  uint32 // permission bits only; kind is carried by Dir
	Nlink uint32
	Size  int64
	Mtime time.Time
	Ctime time.Time
	Atime time.Time
}

func dirAttr(now time.Time) Attr {
	return Attr{
		Dir:   true,
		Mode:  0o755,
		Nlink: 2,
		Mtime: now,
		Ctime: now,
		Atime: now,
	}
}

// resolveAttr composes an attribute record for a non-root path from the
// SIZE and MDTM probes. Neither probe failing is fatal: a rejected SIZE
// defaults to 0 and a rejected or unparseable MDTM defaults to now.
// Transport faults (anything without an FTP reply code) escalate.
//
// The probes cannot tell a directory from a file, so every non-root path
// resolves as a regular file. Directory kind for existing paths comes from
// the parent listing, not from here.
func resolveAttr(s ftpc.Session, path string) (Attr, error) {
	size, err := s.Size(path)
	if err != nil {
		if !ftpc.IsStatus(err) {
			return Attr{}, err
		}
		size = 0
	}

	mtime, err := s.ModTime(path)
	if err != nil {
		if !ftpc.IsStatus(err) {
			return Attr{}, err
		}
		mtime = time.Now()
	}

	return Attr{
		Mode:  0o644,
		Nlink: 1,
		Size:  size,
		Mtime: mtime,
		Ctime: mtime,
		Atime: mtime,
	}, nil
}
