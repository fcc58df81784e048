// Package bridge is the translation engine between the FTP command/response
// model and the filesystem operation set. Each public operation opens one
// protocol session, performs its exchange, translates any failure into the
// filesystem error taxonomy, and closes the session before returning.
package bridge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"go.uber.org/zap"

	"github.com/ianzepp/monk-ftp/internal/ftpc"
	"github.com/ianzepp/monk-ftp/internal/listing"
	"github.com/ianzepp/monk-ftp/internal/logging"
	"github.com/ianzepp/monk-ftp/internal/metrics"
	"github.com/ianzepp/monk-ftp/pkg/retry"
)

// Bridge implements the filesystem operation set against a remote FTP
// endpoint. Safe for concurrent use: operations never share a session and
// the directory cache is internally synchronized.
type Bridge struct {
	dialer ftpc.Dialer
	retry  retry.Config
	cache  *dirCache
	log    *zap.SugaredLogger
}

// New creates a Bridge over dialer.
func New(dialer ftpc.Dialer) *Bridge {
	return &Bridge{
		dialer: dialer,
		retry:  retry.DefaultConfig(),
		cache:  newDirCache(),
		log:    logging.S().Named("bridge"),
	}
}

// withSession dials a session, runs fn, and guarantees teardown on every
// exit path. Transient dial failures are retried; issued commands never are.
func (b *Bridge) withSession(ctx context.Context, fn func(ftpc.Session) error) error {
	sess, err := retry.DoWithResult(ctx, b.retry, func() (ftpc.Session, error) {
		s, err := b.dialer.Dial(ctx)
		if err != nil {
			metrics.SessionFailed()
			if errors.Is(err, ftpc.ErrConnection) {
				return nil, retry.Transient(err)
			}
			return nil, err
		}
		return s, nil
	})
	if err != nil {
		return err
	}
	metrics.SessionOpened()
	defer sess.Close()

	return fn(sess)
}

func (b *Bridge) observe(op string, start time.Time, err *error) {
	metrics.ObserveOp(op, outcome(*err), time.Since(start))
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ftpc.ErrNotFound):
		return "not_found"
	case errors.Is(err, ftpc.ErrAccessDenied):
		return "access_denied"
	case errors.Is(err, ftpc.ErrConnection):
		return "connection"
	default:
		return "io_error"
	}
}

// Listing returns the directory listing for dir, from the cache when
// possible. The returned listing always contains "." and "..".
func (b *Bridge) Listing(ctx context.Context, dir string) (*listing.Listing, error) {
	if l, ok := b.cache.Get(dir); ok {
		metrics.DirCacheHit()
		return l, nil
	}
	metrics.DirCacheMiss()

	var l *listing.Listing
	err := b.withSession(ctx, func(s ftpc.Session) error {
		var err error
		l, err = s.List(dir)
		return err
	})
	if err != nil {
		b.log.Debugw("list failed", "path", dir, "error", err)
		return nil, err
	}

	b.cache.Put(dir, l)
	return l, nil
}

// Readdir lists the entry names of dir, always including "." and "..".
// Duplicate remote names collapse to the last occurrence.
func (b *Bridge) Readdir(ctx context.Context, dir string) (names []string, err error) {
	defer b.observe("readdir", time.Now(), &err)

	l, err := b.Listing(ctx, dir)
	if err != nil {
		return nil, err
	}
	return l.Names(), nil
}

// Lookup resolves one child of dir from its listing.
func (b *Bridge) Lookup(ctx context.Context, dir, name string) (e listing.Entry, err error) {
	defer b.observe("lookup", time.Now(), &err)

	l, err := b.Listing(ctx, dir)
	if err != nil {
		return listing.Entry{}, err
	}
	e, ok := l.Lookup(name)
	if !ok {
		return listing.Entry{}, fmt.Errorf("%w: %s", ftpc.ErrNotFound, path.Join(dir, name))
	}
	return e, nil
}

// Getattr synthesizes the attribute record for p. The root is always a
// directory with fixed conventional permissions and costs no round-trip.
// Attribute records are recomputed on every call, never cached.
func (b *Bridge) Getattr(ctx context.Context, p string) (attr Attr, err error) {
	defer b.observe("getattr", time.Now(), &err)

	if p == "/" {
		return dirAttr(time.Now()), nil
	}

	err = b.withSession(ctx, func(s ftpc.Session) error {
		var err error
		attr, err = resolveAttr(s, p)
		return err
	})
	if err != nil {
		b.log.Debugw("getattr failed", "path", p, "error", err)
		// Ambiguous failures read as absent here, unlike everywhere else:
		// tools that stat before listing should treat the path as missing
		// rather than erroring out.
		if !errors.Is(err, ftpc.ErrNotFound) &&
			!errors.Is(err, ftpc.ErrAccessDenied) &&
			!errors.Is(err, ftpc.ErrConnection) {
			err = fmt.Errorf("%w: %v", ftpc.ErrNotFound, err)
		}
		return Attr{}, err
	}
	return attr, nil
}

// Read retrieves the entire remote object and returns the byte range
// [offset, offset+size) clamped to the object. The whole-object fetch keeps
// every read a consistent slice of one snapshot at O(object size) cost.
func (b *Bridge) Read(ctx context.Context, p string, size int, offset int64) (data []byte, err error) {
	defer b.observe("read", time.Now(), &err)

	if size < 0 || offset < 0 {
		return nil, fmt.Errorf("%w: negative read range", ftpc.ErrIO)
	}

	var buf bytes.Buffer
	err = b.withSession(ctx, func(s ftpc.Session) error {
		return s.Retrieve(p, &buf)
	})
	if err != nil {
		b.log.Debugw("read failed", "path", p, "error", err)
		return nil, err
	}
	metrics.AddDownloaded(int64(buf.Len()))

	obj := buf.Bytes()
	if offset >= int64(len(obj)) {
		return []byte{}, nil
	}
	end := offset + int64(size)
	if end > int64(len(obj)) {
		end = int64(len(obj))
	}
	out := make([]byte, end-offset)
	copy(out, obj[offset:end])
	return out, nil
}

// Write stores data at offset using read-modify-write: the current object
// (absent reads as empty) is fetched, data is spliced in at offset, and the
// whole object is stored back. Replacing the object with only the supplied
// bytes would corrupt non-zero-offset writes. The remote store still
// serializes racing writers; last store wins.
func (b *Bridge) Write(ctx context.Context, p string, data []byte, offset int64) (n int, err error) {
	defer b.observe("write", time.Now(), &err)

	if offset < 0 {
		return 0, fmt.Errorf("%w: negative write offset", ftpc.ErrIO)
	}

	var stored int64
	err = b.withSession(ctx, func(s ftpc.Session) error {
		var base bytes.Buffer
		if err := s.Retrieve(p, &base); err != nil && !errors.Is(err, ftpc.ErrNotFound) {
			return err
		}

		obj := base.Bytes()
		if end := offset + int64(len(data)); end > int64(len(obj)) {
			grown := make([]byte, end)
			copy(grown, obj)
			obj = grown
		}
		copy(obj[offset:], data)

		stored = int64(len(obj))
		return s.Store(p, bytes.NewReader(obj))
	})
	if err != nil {
		b.log.Debugw("write failed", "path", p, "error", err)
		return 0, err
	}

	metrics.AddUploaded(stored)
	b.cache.Invalidate(path.Dir(p))
	b.log.Infow("stored object", "path", p, "bytes", stored)
	return len(data), nil
}

// Truncate is a documented no-op: it always succeeds and never resizes the
// remote object. Shell-style rewrites go through Write, which replaces the
// object anyway.
func (b *Bridge) Truncate(ctx context.Context, p string, length int64) (err error) {
	defer b.observe("truncate", time.Now(), &err)

	b.log.Debugw("truncate ignored", "path", p, "length", length)
	return nil
}

// Unlink deletes the remote object and invalidates the parent listing.
func (b *Bridge) Unlink(ctx context.Context, p string) (err error) {
	defer b.observe("unlink", time.Now(), &err)

	err = b.withSession(ctx, func(s ftpc.Session) error {
		return s.Delete(p)
	})
	if err != nil {
		b.log.Debugw("unlink failed", "path", p, "error", err)
		return err
	}

	b.cache.Invalidate(path.Dir(p))
	b.log.Infow("deleted object", "path", p)
	return nil
}
