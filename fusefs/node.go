package fusefs

import (
	"os"
	"time"

	"bazil.org/fuse"
	"github.com/go-errors/errors"

	"github.com/msg555/vericas/merkle"
	"github.com/msg555/vericas/unix"
)

const durationDefault = time.Hour

func (m *Mount) getEntry(node fuse.NodeID) (*inodeEntry, error) {
	m.inodeLock.RLock()
	defer m.inodeLock.RUnlock()

	e, ok := m.inodeMap[node]
	if !ok {
		return nil, errors.New("unknown inode")
	}
	return e, nil
}

// allocNode returns the fuse.NodeID for path, minting one the first time
// path is seen and reusing it on subsequent lookups.
func (m *Mount) allocNode(path merkle.Path, isDir bool) fuse.NodeID {
	key := pathKey(path)

	m.inodeLock.Lock()
	defer m.inodeLock.Unlock()

	if id, ok := m.pathToNode[key]; ok {
		return id
	}
	id := m.nextNode
	m.nextNode++
	m.inodeMap[id] = &inodeEntry{path: path, isDir: isDir}
	m.pathToNode[key] = id
	return id
}

func (m *Mount) attrFor(e *inodeEntry, size uint64) fuse.Attr {
	mode := os.FileMode(0o444)
	if e.isDir {
		mode = os.ModeDir | 0o555
	}
	now := time.Now()
	return fuse.Attr{
		Valid: durationDefault,
		Size:  size,
		Mode:  mode,
		Nlink: 1,
		Atime: now,
		Mtime: now,
		Ctime: now,
	}
}

func (m *Mount) handleLookupRequest(req *fuse.LookupRequest) error {
	parent, err := m.getEntry(req.Node)
	if err != nil {
		return err
	}
	if !parent.isDir {
		return FuseError{source: errors.New("not a directory"), errno: unix.ENOTDIR}
	}

	childPath := append(append(merkle.Path{}, parent.path...), req.Name)

	if isDir, err := m.repo.TreeMemTree(m.root, childPath); err != nil {
		return err
	} else if isDir {
		node := m.allocNode(childPath, true)
		req.Respond(&fuse.LookupResponse{
			Node:       node,
			Generation: 1,
			EntryValid: durationDefault,
			Attr:       m.attrFor(&inodeEntry{path: childPath, isDir: true}, 0),
		})
		return nil
	}

	data, ok, err := m.repo.TreeFind(m.root, childPath)
	if err != nil {
		return err
	}
	if !ok {
		return FuseError{source: errors.New("file not found"), errno: unix.ENOENT}
	}

	node := m.allocNode(childPath, false)
	req.Respond(&fuse.LookupResponse{
		Node:       node,
		Generation: 1,
		EntryValid: durationDefault,
		Attr:       m.attrFor(&inodeEntry{path: childPath, isDir: false}, uint64(len(data))),
	})
	return nil
}

func (m *Mount) handleGetattrRequest(req *fuse.GetattrRequest) error {
	e, err := m.getEntry(req.Node)
	if err != nil {
		return err
	}

	var size uint64
	if !e.isDir {
		data, ok, err := m.repo.TreeFind(m.root, e.path)
		if err != nil {
			return err
		}
		if !ok {
			return FuseError{source: errors.New("file not found"), errno: unix.ENOENT}
		}
		size = uint64(len(data))
	}

	req.Respond(&fuse.GetattrResponse{
		Attr: m.attrFor(e, size),
	})
	return nil
}

// rOK is POSIX access(2)'s R_OK bit; the unix package only wraps the
// mode/errno constants this tree actually needs elsewhere.
const rOK = 0x4

// handleAccessRequest allows any read access and rejects write/exec,
// matching the read-only mount.
func (m *Mount) handleAccessRequest(req *fuse.AccessRequest) error {
	if req.Mask&^rOK != 0 {
		return FuseError{source: errors.New("read-only filesystem"), errno: unix.EACCES}
	}
	req.Respond()
	return nil
}
