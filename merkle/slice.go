package merkle

import (
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/msg555/vericas/wire"
)

// SliceEntry is one object carried by a Slice: enough to reconstruct it
// with ObjectStore.UnsafeAdd once its dependencies (earlier entries in the
// same Slice) are already present.
type SliceEntry struct {
	Key  Key
	Data []byte
}

// Slice is the self-describing bulk-transfer envelope Export/Import move
// across the wire: a varint count followed by (kind, key, payload)
// triples, encoded with protowire the same way wire.SDCodec values are so
// a truncated or corrupted slice fails to decode instead of silently
// misreading a later entry's boundary.
type Slice struct {
	Entries []SliceEntry
}

func EncodeSlice(s Slice) []byte {
	buf := protowire.AppendVarint(nil, uint64(len(s.Entries)))
	for _, e := range s.Entries {
		buf = protowire.AppendVarint(buf, uint64(e.Key.Kind))
		buf = protowire.AppendBytes(buf, e.Key.Hash.Bytes())
		buf = protowire.AppendBytes(buf, e.Data)
	}
	return buf
}

func DecodeSlice(buf []byte) (Slice, error) {
	count, n := protowire.ConsumeVarint(buf)
	if n < 0 {
		return Slice{}, wire.ErrTruncated
	}
	buf = buf[n:]

	entries := make([]SliceEntry, 0, count)
	for i := uint64(0); i < count; i++ {
		kind, n := protowire.ConsumeVarint(buf)
		if n < 0 {
			return Slice{}, wire.ErrTruncated
		}
		buf = buf[n:]

		hashBytes, n := protowire.ConsumeBytes(buf)
		if n < 0 {
			return Slice{}, wire.ErrTruncated
		}
		buf = buf[n:]

		data, n := protowire.ConsumeBytes(buf)
		if n < 0 {
			return Slice{}, wire.ErrTruncated
		}
		buf = buf[n:]

		entries = append(entries, SliceEntry{
			Key:  Key{Kind: Kind(kind), Hash: hashFromBytes(hashBytes)},
			Data: append([]byte(nil), data...),
		})
	}
	return Slice{Entries: entries}, nil
}

// DepsOf exposes keyDeps to the server package's backend passthrough
// Merge handler, which needs to walk a caller-supplied Slice's
// dependency edges the same way Export/Import do.
func DepsOf(k Key, data []byte) ([]Key, error) {
	return keyDeps(k, data)
}

// keyDeps recomputes an object's dependency keys by decoding its own
// payload, mirroring what Add originally derived them from. Used by both
// Export (to walk the reachable graph) and Import (to pass UnsafeAdd its
// required dependency list).
func keyDeps(k Key, data []byte) ([]Key, error) {
	switch k.Kind {
	case KindCommit:
		c, err := decodeCommit(data)
		if err != nil {
			return nil, err
		}
		return c.deps(), nil
	case KindNode:
		entries, err := decodeNode(data)
		if err != nil {
			return nil, err
		}
		deps := make([]Key, len(entries))
		for i, e := range entries {
			deps[i] = e.Child
		}
		return deps, nil
	default:
		return nil, nil
	}
}

// Export walks the object graph reachable from roots (commit parents,
// commit trees, node children) and returns it as a Slice ordered so every
// dependency appears before the object that references it — the order
// Import requires.
func (s *RepoSession) Export(roots []CommitKey) (Slice, error) {
	visited := make(map[Key]bool)
	var entries []SliceEntry

	var visit func(k Key) error
	visit = func(k Key) error {
		if visited[k] {
			return nil
		}
		visited[k] = true

		data, ok, err := s.storeFor(k.Kind).Find(k.Hash)
		if err != nil {
			return err
		}
		if !ok {
			return ErrObjectNotFound
		}

		deps, err := keyDeps(k, data)
		if err != nil {
			return err
		}
		for _, dep := range deps {
			if err := visit(dep); err != nil {
				return err
			}
		}

		entries = append(entries, SliceEntry{Key: k, Data: data})
		return nil
	}

	for _, root := range roots {
		if err := visit(root); err != nil {
			return Slice{}, err
		}
	}
	return Slice{Entries: entries}, nil
}

// Import merges a Slice produced by Export (or by a peer's Export) into
// this repo. Entries already present locally are skipped; content
// addressing makes repeated imports of the same slice idempotent.
func (s *RepoSession) Import(slice Slice) error {
	for _, e := range slice.Entries {
		store := s.storeFor(e.Key.Kind)
		if ok, err := store.Mem(e.Key.Hash); err != nil {
			return err
		} else if ok {
			continue
		}

		deps, err := keyDeps(e.Key, e.Data)
		if err != nil {
			return err
		}
		if _, err := store.UnsafeAdd(e.Key.Hash, e.Data, deps...); err != nil {
			return err
		}
	}
	return nil
}
