// Package fusefs mounts a merkle.Tree read-only via bazil.org/fuse,
// answering lookup/getattr/readdir/read against RepoSession.TreeList/
// TreeFind/TreeMemTree instead of touching any on-disk directory format.
package fusefs

import (
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"bazil.org/fuse"
	"github.com/go-errors/errors"

	"github.com/msg555/vericas/merkle"
	"github.com/msg555/vericas/unix"
)

// pathKey gives merkle.Path a stable map key; "\x00" can't appear in a
// path step since step names come from TreeList, which never yields one.
func pathKey(path merkle.Path) string {
	return strings.Join(path, "\x00")
}

// inodeEntry is what a fuse.NodeID resolves to: a path into the mounted
// tree plus whether it names a directory or a leaf.
type inodeEntry struct {
	path  merkle.Path
	isDir bool
}

type Mount struct {
	conn       *fuse.Conn
	mountPoint string
	repo       *merkle.RepoSession
	root       *merkle.Tree

	inodeLock  sync.RWMutex
	inodeMap   map[fuse.NodeID]*inodeEntry
	pathToNode map[string]fuse.NodeID
	nextNode   fuse.NodeID

	handleLock   sync.RWMutex
	handleMap    map[fuse.HandleID]fileHandle
	lastHandleID fuse.HandleID
}

// CreateServer mounts tree (as resolved from repo, e.g. via TreeOfCommit
// or a branch head) at mountPoint, read-only.
func CreateServer(
	mountPoint string,
	repo *merkle.RepoSession,
	tree *merkle.Tree,
	options ...fuse.MountOption,
) (*Mount, error) {
	options = append(options, fuse.Subtype("vericasfs"), fuse.ReadOnly())

	conn, err := fuse.Mount(mountPoint, options...)
	if err != nil {
		return nil, err
	}

	m := &Mount{
		conn:       conn,
		mountPoint: mountPoint,
		repo:       repo,
		root:       tree,
		inodeMap:   map[fuse.NodeID]*inodeEntry{1: {isDir: true}},
		pathToNode: map[string]fuse.NodeID{pathKey(nil): 1},
		nextNode:   2,
		handleMap:  map[fuse.HandleID]fileHandle{},
	}

	go func() {
		err := m.serve()
		if err == io.EOF {
			log.Printf("fusefs: unmounted %s", mountPoint)
		} else {
			log.Printf("fusefs: connection for %s shutting down: %s", mountPoint, err)
		}
	}()

	return m, nil
}

func (m *Mount) Close() error {
	return fuse.Unmount(m.mountPoint)
}

func (m *Mount) serve() error {
	for {
		req, err := m.conn.ReadRequest()
		if err != nil {
			return err
		}
		go m.handleRequest(req)
	}
}

func (m *Mount) handleRequest(req fuse.Request) {
	var err error
	switch r := req.(type) {
	case *fuse.LookupRequest:
		err = m.handleLookupRequest(r)
	case *fuse.GetattrRequest:
		err = m.handleGetattrRequest(r)
	case *fuse.AccessRequest:
		err = m.handleAccessRequest(r)
	case *fuse.OpenRequest:
		err = m.handleOpenRequest(r)
	case *fuse.ReadRequest:
		err = m.handleReadRequest(r)
	case *fuse.ReleaseRequest:
		err = m.handleReleaseRequest(r)
	case *fuse.ReadlinkRequest:
		err = FuseError{source: errors.New("symlinks not supported"), errno: unix.ENOENT}
	case *fuse.GetxattrRequest:
		r.Respond(&fuse.GetxattrResponse{})
	case *fuse.ListxattrRequest:
		r.Respond(&fuse.ListxattrResponse{})
	case *fuse.ForgetRequest:
		m.forget(r.Node, int64(r.N))
		r.Respond()
	case *fuse.BatchForgetRequest:
		for _, f := range r.Forget {
			m.forget(f.NodeID, int64(f.N))
		}
		r.Respond()
	case *fuse.DestroyRequest:
		r.Respond()
	default:
		fmt.Printf("fusefs: unhandled request %v\n", req)
		err = FuseError{source: errors.New("not implemented"), errno: unix.ENOSYS}
	}

	if err != nil {
		if fe, ok := err.(FuseError); ok {
			req.RespondError(fe)
		} else {
			req.RespondError(FuseError{source: err, errno: unix.EIO})
		}
	}
}

func (m *Mount) forget(node fuse.NodeID, n int64) {
	m.inodeLock.Lock()
	defer m.inodeLock.Unlock()
	if node == 1 {
		return
	}
	if e, ok := m.inodeMap[node]; ok {
		delete(m.inodeMap, node)
		delete(m.pathToNode, pathKey(e.path))
	}
}
