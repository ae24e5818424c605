package wire

// Codec describes how to encode and decode a value of type T over the
// compact wire family. Codecs are pure and composable: Pair/Triple/Option/
// List/Tagged below build bigger codecs out of smaller ones, the same way
// the protocol spec describes in §4.1.
type Codec[T any] struct {
	Encode func(w *Writer, v T) error
	Decode func(r *Reader) (T, error)
}

var Uint8 = Codec[uint8]{
	Encode: func(w *Writer, v uint8) error { return w.WriteU8(v) },
	Decode: func(r *Reader) (uint8, error) { return r.ReadU8() },
}

var Uint32 = Codec[uint32]{
	Encode: func(w *Writer, v uint32) error { return w.WriteU32(v) },
	Decode: func(r *Reader) (uint32, error) { return r.ReadU32() },
}

var Uint64 = Codec[uint64]{
	Encode: func(w *Writer, v uint64) error { return w.WriteU64(v) },
	Decode: func(r *Reader) (uint64, error) { return r.ReadU64() },
}

var Int64 = Codec[int64]{
	Encode: func(w *Writer, v int64) error { return w.WriteI64(v) },
	Decode: func(r *Reader) (int64, error) { return r.ReadI64() },
}

var Bool = Codec[bool]{
	Encode: func(w *Writer, v bool) error { return w.WriteBool(v) },
	Decode: func(r *Reader) (bool, error) { return r.ReadBool() },
}

var Bytes = Codec[[]byte]{
	Encode: func(w *Writer, v []byte) error { return w.WriteBytes(v) },
	Decode: func(r *Reader) ([]byte, error) { return r.ReadBytes() },
}

var String = Codec[string]{
	Encode: func(w *Writer, v string) error { return w.WriteString(v) },
	Decode: func(r *Reader) (string, error) { return r.ReadString() },
}

// Unit is the codec for the empty request/response bodies (Ping, Cleanup,
// ...): it writes and reads nothing.
var Unit = Codec[struct{}]{
	Encode: func(w *Writer, v struct{}) error { return nil },
	Decode: func(r *Reader) (struct{}, error) { return struct{}{}, nil },
}

// Option adapts inner into a codec for *T: a presence byte followed by the
// payload when present.
func Option[T any](inner Codec[T]) Codec[*T] {
	return Codec[*T]{
		Encode: func(w *Writer, v *T) error {
			if v == nil {
				return w.WriteBool(false)
			}
			if err := w.WriteBool(true); err != nil {
				return err
			}
			return inner.Encode(w, *v)
		},
		Decode: func(r *Reader) (*T, error) {
			present, err := r.ReadBool()
			if err != nil || !present {
				return nil, err
			}
			v, err := inner.Decode(r)
			if err != nil {
				return nil, err
			}
			return &v, nil
		},
	}
}

// List adapts inner into a codec for []T: a u32 element count followed by
// each element in order.
func List[T any](inner Codec[T]) Codec[[]T] {
	return Codec[[]T]{
		Encode: func(w *Writer, v []T) error {
			if err := w.WriteU32(uint32(len(v))); err != nil {
				return err
			}
			for _, elem := range v {
				if err := inner.Encode(w, elem); err != nil {
					return err
				}
			}
			return nil
		},
		Decode: func(r *Reader) ([]T, error) {
			n, err := r.ReadU32()
			if err != nil {
				return nil, err
			}
			out := make([]T, 0, n)
			for i := uint32(0); i < n; i++ {
				elem, err := inner.Decode(r)
				if err != nil {
					return nil, err
				}
				out = append(out, elem)
			}
			return out, nil
		},
	}
}

// Pair composes two codecs into a codec for the (A, B) tuple.
type Pair[A, B any] struct {
	First  A
	Second B
}

func PairCodec[A, B any](ca Codec[A], cb Codec[B]) Codec[Pair[A, B]] {
	return Codec[Pair[A, B]]{
		Encode: func(w *Writer, v Pair[A, B]) error {
			if err := ca.Encode(w, v.First); err != nil {
				return err
			}
			return cb.Encode(w, v.Second)
		},
		Decode: func(r *Reader) (Pair[A, B], error) {
			var out Pair[A, B]
			a, err := ca.Decode(r)
			if err != nil {
				return out, err
			}
			b, err := cb.Decode(r)
			if err != nil {
				return out, err
			}
			out.First, out.Second = a, b
			return out, nil
		},
	}
}

// Triple composes three codecs into a codec for the (A, B, C) tuple.
type Triple[A, B, C any] struct {
	First  A
	Second B
	Third  C
}

func TripleCodec[A, B, C any](ca Codec[A], cb Codec[B], cc Codec[C]) Codec[Triple[A, B, C]] {
	return Codec[Triple[A, B, C]]{
		Encode: func(w *Writer, v Triple[A, B, C]) error {
			if err := ca.Encode(w, v.First); err != nil {
				return err
			}
			if err := cb.Encode(w, v.Second); err != nil {
				return err
			}
			return cc.Encode(w, v.Third)
		},
		Decode: func(r *Reader) (Triple[A, B, C], error) {
			var out Triple[A, B, C]
			a, err := ca.Decode(r)
			if err != nil {
				return out, err
			}
			b, err := cb.Decode(r)
			if err != nil {
				return out, err
			}
			c, err := cc.Decode(r)
			if err != nil {
				return out, err
			}
			out.First, out.Second, out.Third = a, b, c
			return out, nil
		},
	}
}

// Tagged composes a small closed set of alternative codecs, keyed by a u8
// tag, into a codec for T. Each case encodes/decodes T itself (rather than
// a distinct payload type) so callers typically switch on a field of T to
// pick the tag and reconstruct T from whichever case matched on decode.
type TaggedCase[T any] struct {
	Tag    uint8
	Encode func(w *Writer, v T) error
	Decode func(r *Reader) (T, error)
}

func Tagged[T any](tagOf func(T) uint8, cases ...TaggedCase[T]) Codec[T] {
	byTag := make(map[uint8]TaggedCase[T], len(cases))
	for _, c := range cases {
		byTag[c.Tag] = c
	}
	return Codec[T]{
		Encode: func(w *Writer, v T) error {
			tag := tagOf(v)
			c, ok := byTag[tag]
			if !ok {
				return &UnknownTagError{Tag: tag}
			}
			if err := w.WriteU8(tag); err != nil {
				return err
			}
			return c.Encode(w, v)
		},
		Decode: func(r *Reader) (T, error) {
			var zero T
			tag, err := r.ReadU8()
			if err != nil {
				return zero, err
			}
			c, ok := byTag[tag]
			if !ok {
				return zero, &UnknownTagError{Tag: tag}
			}
			return c.Decode(r)
		},
	}
}

type UnknownTagError struct {
	Tag uint8
}

func (e *UnknownTagError) Error() string {
	return "wire: unknown tag byte in tagged variant"
}
