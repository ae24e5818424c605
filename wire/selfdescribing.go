package wire

import (
	"errors"

	"google.golang.org/protobuf/encoding/protowire"
)

// SelfDescribing is the second codec family named in §4.1: values are
// varint/length-delimited the way protobuf wire values are, so a decoder
// discovers a malformed value's true boundary immediately instead of
// misreading the rest of the stream the way a fixed-layout decoder would.
// Protocol v1 pins both peers to the Compact family (see Writer/Reader);
// SelfDescribing exists so a future protocol version can renegotiate onto
// it without any codec work, and today it backs the Slice bulk-transfer
// envelope (see merkle.Slice) where fail-fast-on-corruption matters more
// than the smallest possible encoding.
//
// SDCodec is the SelfDescribing analogue of Codec: encode appends to a byte
// buffer (protowire's natural style) and decode consumes a prefix of one,
// returning how many bytes it consumed so composers can advance a shared
// cursor.
type SDCodec[T any] struct {
	Append  func(buf []byte, v T) []byte
	Consume func(buf []byte) (v T, n int, err error)
}

var ErrTruncated = errors.New("wire: truncated self-describing value")

var SDBool = SDCodec[bool]{
	Append: func(buf []byte, v bool) []byte {
		var i uint64
		if v {
			i = 1
		}
		return protowire.AppendVarint(buf, i)
	},
	Consume: func(buf []byte) (bool, int, error) {
		v, n := protowire.ConsumeVarint(buf)
		if n < 0 {
			return false, 0, ErrTruncated
		}
		return v != 0, n, nil
	},
}

var SDUint64 = SDCodec[uint64]{
	Append: func(buf []byte, v uint64) []byte {
		return protowire.AppendVarint(buf, v)
	},
	Consume: func(buf []byte) (uint64, int, error) {
		v, n := protowire.ConsumeVarint(buf)
		if n < 0 {
			return 0, 0, ErrTruncated
		}
		return v, n, nil
	},
}

var SDBytes = SDCodec[[]byte]{
	Append: func(buf []byte, v []byte) []byte {
		return protowire.AppendBytes(buf, v)
	},
	Consume: func(buf []byte) ([]byte, int, error) {
		v, n := protowire.ConsumeBytes(buf)
		if n < 0 {
			return nil, 0, ErrTruncated
		}
		out := make([]byte, len(v))
		copy(out, v)
		return out, n, nil
	},
}

var SDString = SDCodec[string]{
	Append: func(buf []byte, v string) []byte {
		return protowire.AppendString(buf, v)
	},
	Consume: func(buf []byte) (string, int, error) {
		v, n := protowire.ConsumeString(buf)
		if n < 0 {
			return "", 0, ErrTruncated
		}
		return v, n, nil
	},
}

// SDOption appends a presence bool followed by the payload when present.
func SDOption[T any](inner SDCodec[T]) SDCodec[*T] {
	return SDCodec[*T]{
		Append: func(buf []byte, v *T) []byte {
			buf = SDBool.Append(buf, v != nil)
			if v != nil {
				buf = inner.Append(buf, *v)
			}
			return buf
		},
		Consume: func(buf []byte) (*T, int, error) {
			present, n, err := SDBool.Consume(buf)
			if err != nil {
				return nil, 0, err
			}
			if !present {
				return nil, n, nil
			}
			v, m, err := inner.Consume(buf[n:])
			if err != nil {
				return nil, 0, err
			}
			return &v, n + m, nil
		},
	}
}

// SDList appends a varint element count followed by each element
// length-delimited, so a corrupt or truncated element is detected at the
// point it's read rather than desynchronizing every element after it.
func SDList[T any](inner SDCodec[T]) SDCodec[[]T] {
	return SDCodec[[]T]{
		Append: func(buf []byte, v []T) []byte {
			buf = protowire.AppendVarint(buf, uint64(len(v)))
			for _, elem := range v {
				elemBuf := inner.Append(nil, elem)
				buf = protowire.AppendBytes(buf, elemBuf)
			}
			return buf
		},
		Consume: func(buf []byte) ([]T, int, error) {
			count, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return nil, 0, ErrTruncated
			}
			total := n
			out := make([]T, 0, count)
			for i := uint64(0); i < count; i++ {
				elemBuf, m := protowire.ConsumeBytes(buf[total:])
				if m < 0 {
					return nil, 0, ErrTruncated
				}
				total += m
				elem, _, err := inner.Consume(elemBuf)
				if err != nil {
					return nil, 0, err
				}
				out = append(out, elem)
			}
			return out, total, nil
		},
	}
}

// ReadSDValue reads one self-describing value off r: a u32 length prefix
// (matching Reader.ReadBytes' own framing, since self-describing values
// still need an outer length to know where the frame ends) followed by the
// self-describing bytes themselves.
func ReadSDValue(r *Reader) ([]byte, error) {
	return r.ReadBytes()
}

func WriteSDValue(w *Writer, buf []byte) error {
	return w.WriteBytes(buf)
}
