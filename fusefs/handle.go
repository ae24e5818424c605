package fusefs

import (
	"sort"

	"bazil.org/fuse"
	"github.com/go-errors/errors"

	"github.com/msg555/vericas/merkle"
	"github.com/msg555/vericas/unix"
)

type fileHandle interface {
	Read(*fuse.ReadRequest) error
	Release(*fuse.ReleaseRequest) error
}

// dirHandle holds the whole directory listing pre-encoded as one
// fuse.AppendDirent buffer; a readdir's req.Offset is the kernel's
// resume cookie, which bazil.org/fuse defines as a byte offset into
// exactly this kind of cumulative buffer.
type dirHandle struct {
	buf []byte
}

type regHandle struct {
	data []byte
}

func (h *dirHandle) Release(*fuse.ReleaseRequest) error { return nil }

func (h *dirHandle) Read(req *fuse.ReadRequest) error {
	if !req.Dir {
		return FuseError{source: errors.New("not a directory handle"), errno: unix.EISDIR}
	}

	start := int(req.Offset)
	if start > len(h.buf) {
		start = len(h.buf)
	}
	end := start + req.Size
	if end > len(h.buf) {
		end = len(h.buf)
	}
	req.Respond(&fuse.ReadResponse{Data: h.buf[start:end]})
	return nil
}

func (h *regHandle) Release(*fuse.ReleaseRequest) error { return nil }

func (h *regHandle) Read(req *fuse.ReadRequest) error {
	if req.Dir {
		return FuseError{source: errors.New("is a directory"), errno: unix.EISDIR}
	}
	start := int(req.Offset)
	if start > len(h.data) {
		start = len(h.data)
	}
	end := start + req.Size
	if end > len(h.data) {
		end = len(h.data)
	}
	req.Respond(&fuse.ReadResponse{Data: h.data[start:end]})
	return nil
}

func (m *Mount) openHandle(h fileHandle) fuse.HandleID {
	m.handleLock.Lock()
	defer m.handleLock.Unlock()
	m.lastHandleID++
	id := m.lastHandleID
	m.handleMap[id] = h
	return id
}

func (m *Mount) handleOpenRequest(req *fuse.OpenRequest) error {
	e, err := m.getEntry(req.Node)
	if err != nil {
		return err
	}

	var h fileHandle
	if e.isDir {
		entries, err := m.repo.TreeList(m.root, e.path)
		if err != nil {
			return err
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

		var buf []byte
		for _, ent := range entries {
			childPath := append(append(merkle.Path{}, e.path...), ent.Name)
			dt := fuse.DT_File
			isDir := ent.Kind == merkle.KindNode
			if isDir {
				dt = fuse.DT_Dir
			}
			buf = fuse.AppendDirent(buf, fuse.Dirent{
				Inode: uint64(m.allocNode(childPath, isDir)),
				Name:  ent.Name,
				Type:  dt,
			})
		}
		h = &dirHandle{buf: buf}
	} else {
		data, ok, err := m.repo.TreeFind(m.root, e.path)
		if err != nil {
			return err
		}
		if !ok {
			return FuseError{source: errors.New("file not found"), errno: unix.ENOENT}
		}
		h = &regHandle{data: data}
	}

	req.Respond(&fuse.OpenResponse{
		Handle: m.openHandle(h),
		Flags:  fuse.OpenKeepCache,
	})
	return nil
}

func (m *Mount) handleReadRequest(req *fuse.ReadRequest) error {
	m.handleLock.RLock()
	h, ok := m.handleMap[req.Handle]
	m.handleLock.RUnlock()
	if !ok {
		return FuseError{source: errors.New("invalid file handle"), errno: unix.EBADF}
	}
	return h.Read(req)
}

func (m *Mount) handleReleaseRequest(req *fuse.ReleaseRequest) error {
	m.handleLock.Lock()
	h, ok := m.handleMap[req.Handle]
	delete(m.handleMap, req.Handle)
	m.handleLock.Unlock()
	if !ok {
		return FuseError{source: errors.New("invalid file handle"), errno: unix.EBADF}
	}
	return h.Release(req)
}
