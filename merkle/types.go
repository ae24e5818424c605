// Package merkle implements the branch-and-commit versioned Merkle store
// that sits behind the network protocol: hashes, paths, trees, commits and
// the branch registry, all layered on top of an hcas.Hcas object graph.
package merkle

import (
	"bytes"
	"time"

	"github.com/msg555/vericas/hcas"
)

// Kind distinguishes the three object stores the backend exposes. It travels
// on the wire alongside a Hash so a Key names both an object and how to
// interpret its bytes.
type Kind uint8

const (
	KindContents Kind = 1
	KindNode     Kind = 2
	KindCommit   Kind = 3
)

func (k Kind) String() string {
	switch k {
	case KindContents:
		return "contents"
	case KindNode:
		return "node"
	case KindCommit:
		return "commit"
	default:
		return "unknown"
	}
}

// Hash is a fixed-width content digest. It is the same digest hcas uses to
// address the underlying object, exposed under the vocabulary the protocol
// spec uses.
type Hash = hcas.Name

// Key names a single stored object: which store it lives in plus its
// content digest. ContentsKey, NodeKey and CommitKey below are the same
// type restricted by convention to one Kind; the restriction is not
// enforced by the type system since the wire format doesn't distinguish
// them beyond the Kind tag.
type Key struct {
	Kind Kind
	Hash Hash
}

type ContentsKey = Key
type NodeKey = Key
type CommitKey = Key

// Less gives Key (and therefore Hash) a total order: by Kind first, then
// by the hash bytes.
func (k Key) Less(other Key) bool {
	if k.Kind != other.Kind {
		return k.Kind < other.Kind
	}
	return bytes.Compare(k.Hash.Bytes(), other.Hash.Bytes()) < 0
}

func (k Key) IsZero() bool {
	return k.Kind == 0 && k.Hash.IsZero()
}

func hashFromBytes(b []byte) Hash {
	return hcas.NewNameBytes(b)
}

// HashFromBytes builds a Hash from a raw 32-byte digest, for callers
// outside this package decoding one off the wire (see protocol.HashCodec).
func HashFromBytes(b []byte) Hash {
	return hashFromBytes(b)
}

// Path is an ordered sequence of name steps into a tree.
type Path []string

func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// BranchName is an opaque branch identifier.
type BranchName string

// Info carries the author-supplied metadata attached to every commit.
type Info struct {
	Author    string
	Message   string
	Timestamp time.Time
}

// Contents is an opaque user payload. The core never interprets it; it is
// only ever the bytes attached to a KindContents object.
type Contents []byte
