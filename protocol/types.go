// Package protocol defines the wire-visible vocabulary both server and
// client link against: the domain codecs (§4.1) built from wire.Codec, and
// the request/response types for every command in §4.7. Neither side
// interprets these values beyond encode/decode; business logic lives in
// server (handlers) and client (convenience wrappers).
package protocol

import (
	"time"

	"github.com/msg555/vericas/merkle"
	"github.com/msg555/vericas/wire"
)

func unixNanoTime(nanos int64) time.Time {
	return time.Unix(0, nanos).UTC()
}

// HashCodec encodes a Hash as its raw 32-byte digest, matching how
// merkle.Key encodes hashes inside stored Node/Commit objects.
var HashCodec = wire.Codec[merkle.Hash]{
	Encode: func(w *wire.Writer, v merkle.Hash) error { return w.WriteRaw(v.Bytes()) },
	Decode: func(r *wire.Reader) (merkle.Hash, error) {
		var raw [32]byte
		if err := r.ReadRaw(raw[:]); err != nil {
			return merkle.Hash{}, err
		}
		return merkle.HashFromBytes(raw[:]), nil
	},
}

// KeyCodec encodes a (kind, hash) pair.
var KeyCodec = wire.Codec[merkle.Key]{
	Encode: func(w *wire.Writer, v merkle.Key) error {
		if err := w.WriteU8(uint8(v.Kind)); err != nil {
			return err
		}
		return HashCodec.Encode(w, v.Hash)
	},
	Decode: func(r *wire.Reader) (merkle.Key, error) {
		kind, err := r.ReadU8()
		if err != nil {
			return merkle.Key{}, err
		}
		hash, err := HashCodec.Decode(r)
		if err != nil {
			return merkle.Key{}, err
		}
		return merkle.Key{Kind: merkle.Kind(kind), Hash: hash}, nil
	},
}

var OptionalHashCodec = wire.Option(HashCodec)
var OptionalKeyCodec = wire.Option(KeyCodec)

// PathCodec encodes a Path as a list of UTF-8 name steps.
var PathCodec = wire.Codec[merkle.Path]{
	Encode: func(w *wire.Writer, v merkle.Path) error { return wire.List(wire.String).Encode(w, []string(v)) },
	Decode: func(r *wire.Reader) (merkle.Path, error) {
		steps, err := wire.List(wire.String).Decode(r)
		return merkle.Path(steps), err
	},
}

// InfoCodec encodes the commit-metadata tuple (author, message, timestamp).
var InfoCodec = wire.Codec[merkle.Info]{
	Encode: func(w *wire.Writer, v merkle.Info) error {
		if err := w.WriteString(v.Author); err != nil {
			return err
		}
		if err := w.WriteString(v.Message); err != nil {
			return err
		}
		return w.WriteI64(v.Timestamp.UnixNano())
	},
	Decode: func(r *wire.Reader) (merkle.Info, error) {
		author, err := r.ReadString()
		if err != nil {
			return merkle.Info{}, err
		}
		message, err := r.ReadString()
		if err != nil {
			return merkle.Info{}, err
		}
		nanos, err := r.ReadI64()
		if err != nil {
			return merkle.Info{}, err
		}
		return merkle.Info{Author: author, Message: message, Timestamp: unixNanoTime(nanos)}, nil
	},
}

// ContentsCodec is the opaque payload codec §1 says the core delegates to
// the storage backend for; here that backend is merkle, whose Contents is
// just bytes.
var ContentsCodec = wire.Bytes

var OptionalContentsCodec = wire.Option(ContentsCodec)

// ListEntryCodec encodes one (name, kind) pair returned by Tree.List.
var ListEntryCodec = wire.Codec[merkle.ListEntry]{
	Encode: func(w *wire.Writer, v merkle.ListEntry) error {
		if err := w.WriteString(v.Name); err != nil {
			return err
		}
		return w.WriteU8(uint8(v.Kind))
	},
	Decode: func(r *wire.Reader) (merkle.ListEntry, error) {
		name, err := r.ReadString()
		if err != nil {
			return merkle.ListEntry{}, err
		}
		kind, err := r.ReadU8()
		if err != nil {
			return merkle.ListEntry{}, err
		}
		return merkle.ListEntry{Name: name, Kind: merkle.Kind(kind)}, nil
	},
}

// TreeHandle is the opaque per-session integer identifier §4.6 describes.
type TreeHandle int32

var TreeHandleCodec = wire.Codec[TreeHandle]{
	Encode: func(w *wire.Writer, v TreeHandle) error { return w.WriteU32(uint32(v)) },
	Decode: func(r *wire.Reader) (TreeHandle, error) {
		v, err := r.ReadU32()
		return TreeHandle(v), err
	},
}

// SliceCodec encodes a merkle.Slice as a length-prefixed self-describing
// blob (the Slice envelope itself is self-describing per SPEC_FULL; the
// compact wire family only needs to frame it as one opaque byte string).
var SliceCodec = wire.Codec[merkle.Slice]{
	Encode: func(w *wire.Writer, v merkle.Slice) error {
		return w.WriteBytes(merkle.EncodeSlice(v))
	},
	Decode: func(r *wire.Reader) (merkle.Slice, error) {
		buf, err := r.ReadBytes()
		if err != nil {
			return merkle.Slice{}, err
		}
		return merkle.DecodeSlice(buf)
	},
}
