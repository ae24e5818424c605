package merkle

import (
	"bytes"

	"github.com/msg555/vericas/wire"
)

// Commit is the immutable (info, parents, tree) tuple described in §3. It
// is stored as a KindCommit object whose dependencies are exactly its
// parents plus its tree key, so the object store's own dependency
// bookkeeping keeps a commit's whole history reachable for as long as any
// branch or session references the commit itself.
type Commit struct {
	Info    Info
	Parents []CommitKey
	Tree    Key
}

func encodeCommit(c Commit) []byte {
	var buf bytes.Buffer
	w := wire.NewWriter(&buf)
	w.WriteString(c.Info.Author)
	w.WriteString(c.Info.Message)
	w.WriteI64(c.Info.Timestamp.UnixNano())
	w.WriteU32(uint32(len(c.Parents)))
	for _, p := range c.Parents {
		w.WriteRaw(p.Hash.Bytes())
	}
	w.WriteU8(uint8(c.Tree.Kind))
	w.WriteRaw(c.Tree.Hash.Bytes())
	return buf.Bytes()
}

func decodeCommit(data []byte) (Commit, error) {
	r := wire.NewReader(bytes.NewReader(data))
	var c Commit

	author, err := r.ReadString()
	if err != nil {
		return c, err
	}
	message, err := r.ReadString()
	if err != nil {
		return c, err
	}
	nanos, err := r.ReadI64()
	if err != nil {
		return c, err
	}
	c.Info = Info{Author: author, Message: message, Timestamp: timeFromUnixNano(nanos)}

	numParents, err := r.ReadU32()
	if err != nil {
		return c, err
	}
	c.Parents = make([]CommitKey, numParents)
	for i := range c.Parents {
		var raw [32]byte
		if err := r.ReadRaw(raw[:]); err != nil {
			return c, err
		}
		c.Parents[i] = Key{Kind: KindCommit, Hash: hashFromBytes(raw[:])}
	}

	treeKind, err := r.ReadU8()
	if err != nil {
		return c, err
	}
	var treeRaw [32]byte
	if err := r.ReadRaw(treeRaw[:]); err != nil {
		return c, err
	}
	c.Tree = Key{Kind: Kind(treeKind), Hash: hashFromBytes(treeRaw[:])}
	return c, nil
}

// deps returns the dependency list encodeCommit's caller must pass to
// ObjectStore.Add so the commit object's ref-count keeps its whole ancestry
// and tree alive.
func (c Commit) deps() []Key {
	deps := make([]Key, 0, len(c.Parents)+1)
	deps = append(deps, c.Parents...)
	deps = append(deps, c.Tree)
	return deps
}

// NewCommit persists a new commit object referencing tree and parents,
// implementing the Repo.New_commit command (§4.7).
func (s *RepoSession) NewCommit(info Info, parents []CommitKey, tree Key) (CommitKey, error) {
	for _, p := range parents {
		if ok, err := s.Commits.Mem(p.Hash); err != nil {
			return CommitKey{}, err
		} else if !ok {
			return CommitKey{}, ErrCommitParentMissing
		}
	}

	c := Commit{Info: info, Parents: parents, Tree: tree}
	return s.Commits.Add(encodeCommit(c), c.deps()...)
}

func (s *RepoSession) GetCommit(key CommitKey) (Commit, bool, error) {
	data, ok, err := s.Commits.Find(key.Hash)
	if err != nil || !ok {
		return Commit{}, ok, err
	}
	c, err := decodeCommit(data)
	return c, err == nil, err
}
