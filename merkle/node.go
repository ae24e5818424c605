package merkle

import (
	"bytes"
	"sort"

	"github.com/msg555/vericas/wire"
)

// nodeEntry is one child of a directory-shaped Node: a name step paired
// with the key of whatever it points at (KindContents for a leaf,
// KindNode for a sub-tree).
type nodeEntry struct {
	Name  string
	Child Key
}

// encodeNode serializes entries sorted by name: a u32 entry count followed
// by one record per entry holding the length-prefixed name, the child's
// kind byte and its raw 32-byte hash.
func encodeNode(entries []nodeEntry) []byte {
	sorted := make([]nodeEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	var buf bytes.Buffer
	w := wire.NewWriter(&buf)
	w.WriteU32(uint32(len(sorted)))
	for _, e := range sorted {
		w.WriteString(e.Name)
		w.WriteU8(uint8(e.Child.Kind))
		w.WriteRaw(e.Child.Hash.Bytes())
	}
	return buf.Bytes()
}

func decodeNode(data []byte) ([]nodeEntry, error) {
	r := wire.NewReader(bytes.NewReader(data))
	count, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	entries := make([]nodeEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		name, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		kind, err := r.ReadU8()
		if err != nil {
			return nil, err
		}
		var raw [32]byte
		if err := r.ReadRaw(raw[:]); err != nil {
			return nil, err
		}
		entries = append(entries, nodeEntry{
			Name:  name,
			Child: Key{Kind: Kind(kind), Hash: hashFromBytes(raw[:])},
		})
	}
	return entries, nil
}

func findEntry(entries []nodeEntry, name string) (Key, bool) {
	for _, e := range entries {
		if e.Name == name {
			return e.Child, true
		}
	}
	return Key{}, false
}

func withEntry(entries []nodeEntry, name string, child Key) []nodeEntry {
	out := make([]nodeEntry, 0, len(entries)+1)
	replaced := false
	for _, e := range entries {
		if e.Name == name {
			out = append(out, nodeEntry{Name: name, Child: child})
			replaced = true
		} else {
			out = append(out, e)
		}
	}
	if !replaced {
		out = append(out, nodeEntry{Name: name, Child: child})
	}
	return out
}

func withoutEntry(entries []nodeEntry, name string) []nodeEntry {
	out := make([]nodeEntry, 0, len(entries))
	for _, e := range entries {
		if e.Name != name {
			out = append(out, e)
		}
	}
	return out
}
