// Package fusefs exposes the bridge operation set as a FUSE filesystem.
// Nodes are addressed by remote path; every kernel callback maps onto one
// bridge operation, which opens and closes its own protocol session.
package fusefs

import (
	"context"
	"fmt"
	"os"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	gofuse "github.com/hanwen/go-fuse/v2/fuse"

	"github.com/ianzepp/monk-ftp/internal/bridge"
	"github.com/ianzepp/monk-ftp/internal/listing"
)

// Mount mounts the bridge at mountPoint, creating it if absent.
func Mount(mountPoint string, b *bridge.Bridge, debug bool) (*gofuse.Server, error) {
	if err := os.MkdirAll(mountPoint, 0o755); err != nil {
		return nil, fmt.Errorf("create mount point: %w", err)
	}

	root := &Node{bridge: b, path: "/", dir: true}

	opts := &fs.Options{
		MountOptions: gofuse.MountOptions{
			AllowOther: false,
			Debug:      debug,
			FsName:     "monk-ftp",
			Name:       "monkfuse",
		},
		UID: uint32(os.Getuid()),
		GID: uint32(os.Getgid()),
	}

	server, err := fs.Mount(mountPoint, root, opts)
	if err != nil {
		return nil, fmt.Errorf("mount: %w", err)
	}
	return server, nil
}

// Node is one path in the mounted tree.
type Node struct {
	fs.Inode

	bridge *bridge.Bridge
	path   string
	dir    bool
}

var _ fs.InodeEmbedder = (*Node)(nil)
var _ fs.NodeGetattrer = (*Node)(nil)
var _ fs.NodeLookuper = (*Node)(nil)
var _ fs.NodeReaddirer = (*Node)(nil)
var _ fs.NodeOpener = (*Node)(nil)
var _ fs.NodeReader = (*Node)(nil)
var _ fs.NodeWriter = (*Node)(nil)
var _ fs.NodeSetattrer = (*Node)(nil)
var _ fs.NodeUnlinker = (*Node)(nil)
var _ fs.NodeCreater = (*Node)(nil)

// Getattr synthesizes attributes. Directory nodes answer locally; file
// nodes resolve through the SIZE/MDTM probes on every call.
func (n *Node) Getattr(ctx context.Context, fh fs.FileHandle, out *gofuse.AttrOut) syscall.Errno {
	if n.dir {
		attr, _ := n.bridge.Getattr(ctx, "/")
		fillAttr(&out.Attr, attr)
		return 0
	}

	attr, err := n.bridge.Getattr(ctx, n.path)
	if err != nil {
		return errnoOf(err)
	}
	fillAttr(&out.Attr, attr)
	return 0
}

// Lookup resolves a child from the parent's listing, which is the only
// place the protocol reports directory kind.
func (n *Node) Lookup(ctx context.Context, name string, out *gofuse.EntryOut) (*fs.Inode, syscall.Errno) {
	if !n.dir {
		return nil, syscall.ENOTDIR
	}

	entry, err := n.bridge.Lookup(ctx, n.path, name)
	if err != nil {
		return nil, errnoOf(err)
	}

	child := &Node{
		bridge: n.bridge,
		path:   childPath(n.path, name),
		dir:    entry.Dir,
	}
	fillAttr(&out.Attr, entryAttr(entry))

	stable := fs.StableAttr{Mode: modeOf(entry.Dir)}
	return n.NewInode(ctx, child, stable), 0
}

// Readdir lists the directory, including the synthesized "." and "..".
func (n *Node) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	if !n.dir {
		return nil, syscall.ENOTDIR
	}

	l, err := n.bridge.Listing(ctx, n.path)
	if err != nil {
		return nil, errnoOf(err)
	}

	names := l.Names()
	entries := make([]gofuse.DirEntry, 0, len(names))
	for _, name := range names {
		e, _ := l.Lookup(name)
		entries = append(entries, gofuse.DirEntry{
			Name: name,
			Mode: modeOf(e.Dir),
		})
	}
	return fs.NewListDirStream(entries), 0
}

// Open validates the request. No handle state is needed: reads and writes
// are whole-object protocol exchanges per call, so the page cache is
// bypassed to keep concurrent mounts coherent.
func (n *Node) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	if n.dir {
		return nil, 0, syscall.EISDIR
	}
	return nil, gofuse.FOPEN_DIRECT_IO, 0
}

// Read returns a slice of the remote object.
func (n *Node) Read(ctx context.Context, fh fs.FileHandle, dest []byte, off int64) (gofuse.ReadResult, syscall.Errno) {
	data, err := n.bridge.Read(ctx, n.path, len(dest), off)
	if err != nil {
		return nil, errnoOf(err)
	}
	return gofuse.ReadResultData(data), 0
}

// Write splices data into the remote object at off.
func (n *Node) Write(ctx context.Context, fh fs.FileHandle, data []byte, off int64) (uint32, syscall.Errno) {
	written, err := n.bridge.Write(ctx, n.path, data, off)
	if err != nil {
		return 0, errnoOf(err)
	}
	return uint32(written), 0
}

// Setattr accepts size changes (truncate is a documented no-op remotely)
// and reports current attributes back.
func (n *Node) Setattr(ctx context.Context, fh fs.FileHandle, in *gofuse.SetAttrIn, out *gofuse.AttrOut) syscall.Errno {
	if sz, ok := in.GetSize(); ok {
		if err := n.bridge.Truncate(ctx, n.path, int64(sz)); err != nil {
			return errnoOf(err)
		}
	}
	return n.Getattr(ctx, fh, out)
}

// Unlink deletes a child file.
func (n *Node) Unlink(ctx context.Context, name string) syscall.Errno {
	if !n.dir {
		return syscall.ENOTDIR
	}
	return errnoOf(n.bridge.Unlink(ctx, childPath(n.path, name)))
}

// Create stores an empty object under the new name, then opens it.
func (n *Node) Create(ctx context.Context, name string, flags uint32, mode uint32, out *gofuse.EntryOut) (*fs.Inode, fs.FileHandle, uint32, syscall.Errno) {
	if !n.dir {
		return nil, nil, 0, syscall.ENOTDIR
	}

	p := childPath(n.path, name)
	if _, err := n.bridge.Write(ctx, p, nil, 0); err != nil {
		return nil, nil, 0, errnoOf(err)
	}

	child := &Node{bridge: n.bridge, path: p}
	attr, err := n.bridge.Getattr(ctx, p)
	if err != nil {
		attr = bridge.Attr{Mode: 0o644, Nlink: 1}
	}
	fillAttr(&out.Attr, attr)

	stable := fs.StableAttr{Mode: modeOf(false)}
	return n.NewInode(ctx, child, stable), nil, gofuse.FOPEN_DIRECT_IO, 0
}

func childPath(parent, name string) string {
	if parent == "/" {
		return "/" + name
	}
	return parent + "/" + name
}

func modeOf(dir bool) uint32 {
	if dir {
		return syscall.S_IFDIR
	}
	return syscall.S_IFREG
}

func entryAttr(e listing.Entry) bridge.Attr {
	a := bridge.Attr{
		Dir:   e.Dir,
		Mode:  0o644,
		Nlink: 1,
		Size:  e.Size,
		Mtime: e.ModTime,
		Ctime: e.ModTime,
		Atime: e.ModTime,
	}
	if e.Dir {
		a.Mode = 0o755
		a.Nlink = 2
		a.Size = 0
	}
	return a
}

func fillAttr(out *gofuse.Attr, a bridge.Attr) {
	out.Mode = a.Mode | modeOf(a.Dir)
	out.Nlink = a.Nlink
	out.Size = uint64(a.Size)
	out.Mtime = uint64(a.Mtime.Unix())
	out.Ctime = uint64(a.Ctime.Unix())
	out.Atime = uint64(a.Atime.Unix())
	out.Uid = uint32(os.Getuid())
	out.Gid = uint32(os.Getgid())
}
