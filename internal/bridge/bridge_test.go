package bridge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/textproto"
	"testing"
	"time"

	"github.com/ianzepp/monk-ftp/internal/ftpc"
	"github.com/ianzepp/monk-ftp/internal/listing"
	"github.com/ianzepp/monk-ftp/pkg/retry"
)

// fakeStore is the remote side shared by all sessions of one test.
type fakeStore struct {
	objects  map[string][]byte   // object path -> content
	listings map[string][]string // directory path -> raw LIST lines
	mtime    time.Time

	// injected failures, by operation
	listErr, retrErr, storErr, delErr, sizeErr, mtimeErr error

	dials, closes, listCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		objects:  make(map[string][]byte),
		listings: make(map[string][]string),
		mtime:    time.Date(2025, 8, 25, 15, 17, 23, 0, time.UTC),
	}
}

func notFound() error {
	return ftpc.Classify(&textproto.Error{Code: 550, Msg: "no such file"})
}

type fakeDialer struct {
	st      *fakeStore
	dialErr error
}

func (d *fakeDialer) Dial(ctx context.Context) (ftpc.Session, error) {
	if d.dialErr != nil {
		return nil, d.dialErr
	}
	d.st.dials++
	return &fakeSession{st: d.st}, nil
}

type fakeSession struct {
	st *fakeStore
}

func (s *fakeSession) List(path string) (*listing.Listing, error) {
	s.st.listCalls++
	if s.st.listErr != nil {
		return nil, s.st.listErr
	}
	lines, ok := s.st.listings[path]
	if !ok {
		return nil, notFound()
	}
	return listing.Parse(lines), nil
}

func (s *fakeSession) Retrieve(path string, sink io.Writer) error {
	if s.st.retrErr != nil {
		return s.st.retrErr
	}
	obj, ok := s.st.objects[path]
	if !ok {
		return notFound()
	}
	_, err := sink.Write(obj)
	return err
}

func (s *fakeSession) Store(path string, source io.Reader) error {
	if s.st.storErr != nil {
		return s.st.storErr
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(source); err != nil {
		return err
	}
	s.st.objects[path] = buf.Bytes()
	return nil
}

func (s *fakeSession) Delete(path string) error {
	if s.st.delErr != nil {
		return s.st.delErr
	}
	if _, ok := s.st.objects[path]; !ok {
		return notFound()
	}
	delete(s.st.objects, path)
	return nil
}

func (s *fakeSession) Size(path string) (int64, error) {
	if s.st.sizeErr != nil {
		return 0, s.st.sizeErr
	}
	obj, ok := s.st.objects[path]
	if !ok {
		return 0, notFound()
	}
	return int64(len(obj)), nil
}

func (s *fakeSession) ModTime(path string) (time.Time, error) {
	if s.st.mtimeErr != nil {
		return time.Time{}, s.st.mtimeErr
	}
	return s.st.mtime, nil
}

func (s *fakeSession) Close() error {
	s.st.closes++
	return nil
}

func newTestBridge(st *fakeStore) *Bridge {
	b := New(&fakeDialer{st: st})
	b.retry = retry.Config{MaxAttempts: 1, InitialWait: time.Millisecond, MaxWait: time.Millisecond, Multiplier: 1}
	return b
}

func TestReaddir_DotEntriesAndNames(t *testing.T) {
	st := newFakeStore()
	st.listings["/data"] = []string{
		"drwxr-xr-x 2 root root 4096 Jan 01 00:00 users",
		"-rw-r--r-- 1 root root 11 Jan 01 00:00 readme",
	}
	b := newTestBridge(st)

	names, err := b.Readdir(context.Background(), "/data")
	if err != nil {
		t.Fatalf("Readdir: %v", err)
	}

	want := []string{".", "..", "users", "readme"}
	if len(names) != len(want) {
		t.Fatalf("names: got %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("names: got %v, want %v", names, want)
		}
	}
}

func TestReaddir_ListingCached(t *testing.T) {
	st := newFakeStore()
	st.listings["/data"] = []string{"-rw-r--r-- 1 root root 5 Jan 01 00:00 f"}
	b := newTestBridge(st)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := b.Readdir(ctx, "/data"); err != nil {
			t.Fatalf("Readdir #%d: %v", i, err)
		}
	}

	if st.listCalls != 1 {
		t.Errorf("list calls: got %d, want 1 (cache miss only once)", st.listCalls)
	}
	if st.dials != 1 {
		t.Errorf("dials: got %d, want 1", st.dials)
	}
}

func TestWrite_InvalidatesParentListing(t *testing.T) {
	st := newFakeStore()
	st.listings["/data"] = []string{"-rw-r--r-- 1 root root 5 Jan 01 00:00 f"}
	b := newTestBridge(st)
	ctx := context.Background()

	b.Readdir(ctx, "/data")
	if _, err := b.Write(ctx, "/data/new", []byte("x"), 0); err != nil {
		t.Fatalf("Write: %v", err)
	}
	b.Readdir(ctx, "/data")

	if st.listCalls != 2 {
		t.Errorf("list calls: got %d, want 2 (cache invalidated by write)", st.listCalls)
	}
}

func TestUnlink_DeletesAndInvalidates(t *testing.T) {
	st := newFakeStore()
	st.objects["/data/f"] = []byte("bytes")
	st.listings["/data"] = []string{"-rw-r--r-- 1 root root 5 Jan 01 00:00 f"}
	b := newTestBridge(st)
	ctx := context.Background()

	b.Readdir(ctx, "/data")
	if err := b.Unlink(ctx, "/data/f"); err != nil {
		t.Fatalf("Unlink: %v", err)
	}

	if _, ok := st.objects["/data/f"]; ok {
		t.Error("object still present after unlink")
	}

	b.Readdir(ctx, "/data")
	if st.listCalls != 2 {
		t.Errorf("list calls: got %d, want 2 (cache invalidated by unlink)", st.listCalls)
	}
}

func TestUnlink_Missing(t *testing.T) {
	st := newFakeStore()
	b := newTestBridge(st)

	err := b.Unlink(context.Background(), "/ghost")
	if !errors.Is(err, ftpc.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestGetattr_RootNeedsNoSession(t *testing.T) {
	st := newFakeStore()
	b := newTestBridge(st)

	attr, err := b.Getattr(context.Background(), "/")
	if err != nil {
		t.Fatalf("Getattr: %v", err)
	}
	if !attr.Dir || attr.Mode != 0o755 || attr.Nlink != 2 {
		t.Errorf("root attr: got %+v", attr)
	}
	if st.dials != 0 {
		t.Errorf("dials: got %d, want 0 (root is answered locally)", st.dials)
	}
}

func TestGetattr_FileFromProbes(t *testing.T) {
	st := newFakeStore()
	st.objects["/data/f"] = []byte("hello world")
	b := newTestBridge(st)

	attr, err := b.Getattr(context.Background(), "/data/f")
	if err != nil {
		t.Fatalf("Getattr: %v", err)
	}
	if attr.Dir {
		t.Error("non-root path resolved as directory")
	}
	if attr.Size != 11 {
		t.Errorf("size: got %d, want 11", attr.Size)
	}
	if !attr.Mtime.Equal(st.mtime) {
		t.Errorf("mtime: got %v, want %v", attr.Mtime, st.mtime)
	}
	if attr.Mode != 0o644 || attr.Nlink != 1 {
		t.Errorf("attr: got %+v", attr)
	}
}

func TestGetattr_RejectedProbesDefault(t *testing.T) {
	st := newFakeStore()
	st.objects["/data/f"] = []byte("hello")
	st.sizeErr = ftpc.Classify(&textproto.Error{Code: 500, Msg: "SIZE not understood"})
	st.mtimeErr = ftpc.Classify(&textproto.Error{Code: 500, Msg: "MDTM not understood"})
	b := newTestBridge(st)

	before := time.Now()
	attr, err := b.Getattr(context.Background(), "/data/f")
	if err != nil {
		t.Fatalf("Getattr: %v", err)
	}
	if attr.Size != 0 {
		t.Errorf("size: got %d, want 0 (rejected probe defaults)", attr.Size)
	}
	if attr.Mtime.Before(before) {
		t.Errorf("mtime: got %v, want current time fallback", attr.Mtime)
	}
}

func TestGetattr_UnparseableProbePayloadsDefault(t *testing.T) {
	st := newFakeStore()
	st.objects["/data/f"] = []byte("hello")
	// 213 replies whose payload could not be parsed: the server answered,
	// so the probes must default instead of failing the stat.
	st.sizeErr = ftpc.Classify(&textproto.Error{Code: 213, Msg: `SIZE reply "garbage": not a number`})
	st.mtimeErr = ftpc.Classify(&textproto.Error{Code: 213, Msg: `MDTM reply "garbage": bad digits`})
	b := newTestBridge(st)

	before := time.Now()
	attr, err := b.Getattr(context.Background(), "/data/f")
	if err != nil {
		t.Fatalf("Getattr: %v", err)
	}
	if attr.Size != 0 {
		t.Errorf("size: got %d, want 0", attr.Size)
	}
	if attr.Mtime.Before(before) {
		t.Errorf("mtime: got %v, want current time fallback", attr.Mtime)
	}
}

func TestGetattr_TransportFaultReadsAsAbsent(t *testing.T) {
	st := newFakeStore()
	st.sizeErr = ftpc.Classify(errors.New("broken pipe"))
	b := newTestBridge(st)

	_, err := b.Getattr(context.Background(), "/data/f")
	if !errors.Is(err, ftpc.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound (ambiguous getattr failure)", err)
	}
}

func TestGetattr_AccessDeniedKept(t *testing.T) {
	st := newFakeStore()
	st.sizeErr = ftpc.Classify(&textproto.Error{Code: 530, Msg: "not logged in"})
	b := newTestBridge(st)

	// A 530 is a status reply, so the probe defaults rather than failing;
	// getattr still resolves. Probe rejections of any class are swallowed.
	attr, err := b.Getattr(context.Background(), "/data/f")
	if err != nil {
		t.Fatalf("Getattr: %v", err)
	}
	if attr.Size != 0 {
		t.Errorf("size: got %d, want 0", attr.Size)
	}
}

func TestRead_Slicing(t *testing.T) {
	st := newFakeStore()
	st.objects["/f"] = []byte("hello world") // L = 11
	b := newTestBridge(st)
	ctx := context.Background()

	tests := []struct {
		size   int
		offset int64
		want   string
	}{
		{5, 0, "hello"},
		{5, 6, "world"},
		{100, 0, "hello world"}, // clamped to L
		{5, 9, "ld"},            // clamped tail
		{5, 11, ""},             // offset == L
		{5, 100, ""},            // offset > L
		{0, 0, ""},
	}

	for _, tt := range tests {
		got, err := b.Read(ctx, "/f", tt.size, tt.offset)
		if err != nil {
			t.Errorf("Read(size=%d, off=%d): %v", tt.size, tt.offset, err)
			continue
		}
		if string(got) != tt.want {
			t.Errorf("Read(size=%d, off=%d): got %q, want %q", tt.size, tt.offset, got, tt.want)
		}
		if want := max(0, min(int64(tt.size), 11-tt.offset)); int64(len(got)) != want {
			t.Errorf("Read(size=%d, off=%d): length %d, want %d", tt.size, tt.offset, len(got), want)
		}
	}
}

func TestRead_Missing(t *testing.T) {
	st := newFakeStore()
	b := newTestBridge(st)

	_, err := b.Read(context.Background(), "/ghost", 10, 0)
	if !errors.Is(err, ftpc.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestWrite_ReadRoundTrip(t *testing.T) {
	st := newFakeStore()
	b := newTestBridge(st)
	ctx := context.Background()

	n, err := b.Write(ctx, "/data/x", []byte("hello"), 0)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != 5 {
		t.Errorf("bytes written: got %d, want 5", n)
	}

	got, err := b.Read(ctx, "/data/x", 5, 0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("round trip: got %q, want %q", got, "hello")
	}
}

func TestWrite_SpliceAtOffset(t *testing.T) {
	st := newFakeStore()
	st.objects["/f"] = []byte("hello")
	b := newTestBridge(st)
	ctx := context.Background()

	// Read-modify-write preserves the bytes around the written range.
	if _, err := b.Write(ctx, "/f", []byte("XY"), 1); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := string(st.objects["/f"]); got != "hXYlo" {
		t.Errorf("spliced object: got %q, want %q", got, "hXYlo")
	}
}

func TestWrite_ExtendsPastEnd(t *testing.T) {
	st := newFakeStore()
	st.objects["/f"] = []byte("hey")
	b := newTestBridge(st)

	if _, err := b.Write(context.Background(), "/f", []byte("ZZ"), 4); err != nil {
		t.Fatalf("Write: %v", err)
	}
	want := []byte{'h', 'e', 'y', 0, 'Z', 'Z'}
	if got := st.objects["/f"]; !bytes.Equal(got, want) {
		t.Errorf("extended object: got %q, want %q", got, want)
	}
}

func TestTruncate_NoopNeverAltersReads(t *testing.T) {
	st := newFakeStore()
	st.objects["/f"] = []byte("unchanged")
	b := newTestBridge(st)
	ctx := context.Background()

	if err := b.Truncate(ctx, "/f", 2); err != nil {
		t.Fatalf("Truncate: %v", err)
	}

	got, err := b.Read(ctx, "/f", 100, 0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "unchanged" {
		t.Errorf("content after truncate: got %q, want %q", got, "unchanged")
	}
	if st.dials != 1 {
		t.Errorf("dials: got %d, want 1 (truncate opens no session)", st.dials)
	}
}

func TestErrorTranslation_ByClass(t *testing.T) {
	tests := []struct {
		name string
		code int
		want error
	}{
		{"not found class", 550, ftpc.ErrNotFound},
		{"forbidden class", 530, ftpc.ErrAccessDenied},
		{"anything else", 500, ftpc.ErrIO},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newFakeStore()
			st.delErr = ftpc.Classify(&textproto.Error{Code: tt.code, Msg: "reply"})
			st.objects["/f"] = []byte("x")
			b := newTestBridge(st)

			err := b.Unlink(context.Background(), "/f")
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSessionPerCall_AlwaysClosed(t *testing.T) {
	st := newFakeStore()
	st.objects["/f"] = []byte("hello")
	st.listings["/"] = []string{"-rw-r--r-- 1 root root 5 Jan 01 00:00 f"}
	b := newTestBridge(st)
	ctx := context.Background()

	b.Readdir(ctx, "/")
	b.Getattr(ctx, "/f")
	b.Read(ctx, "/f", 5, 0)
	b.Write(ctx, "/f", []byte("bye"), 0)
	b.Unlink(ctx, "/f")
	b.Read(ctx, "/ghost", 1, 0) // failing call still closes

	if st.dials == 0 {
		t.Fatal("no sessions dialed")
	}
	if st.closes != st.dials {
		t.Errorf("sessions closed: got %d, want %d (one close per dial)", st.closes, st.dials)
	}
}

func TestDial_ConnectionRefused(t *testing.T) {
	st := newFakeStore()
	b := New(&fakeDialer{st: st, dialErr: fmt.Errorf("%w: connect: refused", ftpc.ErrConnection)})
	b.retry = retry.Config{MaxAttempts: 2, InitialWait: time.Millisecond, MaxWait: time.Millisecond, Multiplier: 1}

	_, err := b.Readdir(context.Background(), "/")
	if !errors.Is(err, ftpc.ErrConnection) {
		t.Errorf("got %v, want ErrConnection", err)
	}
	if st.dials != 0 {
		t.Errorf("dials recorded: got %d, want 0", st.dials)
	}
}

func TestLookup_EntryAndMissing(t *testing.T) {
	st := newFakeStore()
	st.listings["/data"] = []string{"drwxr-xr-x 2 root root 4096 Jan 01 00:00 users"}
	b := newTestBridge(st)
	ctx := context.Background()

	e, err := b.Lookup(ctx, "/data", "users")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !e.Dir || e.Size != 4096 {
		t.Errorf("entry: got %+v", e)
	}

	_, err = b.Lookup(ctx, "/data", "ghost")
	if !errors.Is(err, ftpc.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}
