package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTrip[T any](t *testing.T, c Codec[T], v T) T {
	t.Helper()
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, c.Encode(w, v))
	r := NewReader(&buf)
	got, err := c.Decode(r)
	require.NoError(t, err)
	return got
}

func TestCompactPrimitivesRoundTrip(t *testing.T) {
	assert.Equal(t, uint8(42), roundTrip(t, Uint8, uint8(42)))
	assert.Equal(t, uint32(1<<20), roundTrip(t, Uint32, uint32(1<<20)))
	assert.Equal(t, uint64(1<<40), roundTrip(t, Uint64, uint64(1<<40)))
	assert.Equal(t, int64(-5), roundTrip(t, Int64, int64(-5)))
	assert.Equal(t, true, roundTrip(t, Bool, true))
	assert.Equal(t, false, roundTrip(t, Bool, false))
	assert.Equal(t, "hello", roundTrip(t, String, "hello"))
	assert.Equal(t, []byte("abc"), roundTrip(t, Bytes, []byte("abc")))
}

func TestCompactOptionRoundTrip(t *testing.T) {
	oc := Option(String)

	got := roundTrip(t, oc, nil)
	assert.Nil(t, got)

	s := "present"
	got = roundTrip(t, oc, &s)
	require.NotNil(t, got)
	assert.Equal(t, s, *got)
}

func TestCompactListRoundTrip(t *testing.T) {
	lc := List(Uint32)
	got := roundTrip(t, lc, []uint32{1, 2, 3})
	assert.Equal(t, []uint32{1, 2, 3}, got)

	empty := roundTrip(t, lc, nil)
	assert.Len(t, empty, 0)
}

func TestCompactPairAndTripleRoundTrip(t *testing.T) {
	pc := PairCodec(String, Uint32)
	gotPair := roundTrip(t, pc, Pair[string, uint32]{First: "x", Second: 7})
	assert.Equal(t, "x", gotPair.First)
	assert.Equal(t, uint32(7), gotPair.Second)

	tc := TripleCodec(String, Uint32, Bool)
	gotTriple := roundTrip(t, tc, Triple[string, uint32, bool]{First: "y", Second: 8, Third: true})
	assert.Equal(t, "y", gotTriple.First)
	assert.Equal(t, uint32(8), gotTriple.Second)
	assert.True(t, gotTriple.Third)
}

type shape struct {
	isCircle bool
	radius   uint32
	w, h     uint32
}

func TestCompactTaggedRoundTrip(t *testing.T) {
	circleCase := TaggedCase[shape]{
		Tag: 1,
		Encode: func(w *Writer, v shape) error {
			return w.WriteU32(v.radius)
		},
		Decode: func(r *Reader) (shape, error) {
			radius, err := r.ReadU32()
			return shape{isCircle: true, radius: radius}, err
		},
	}
	rectCase := TaggedCase[shape]{
		Tag: 2,
		Encode: func(w *Writer, v shape) error {
			if err := w.WriteU32(v.w); err != nil {
				return err
			}
			return w.WriteU32(v.h)
		},
		Decode: func(r *Reader) (shape, error) {
			w, err := r.ReadU32()
			if err != nil {
				return shape{}, err
			}
			h, err := r.ReadU32()
			return shape{w: w, h: h}, err
		},
	}
	tagOf := func(s shape) uint8 {
		if s.isCircle {
			return 1
		}
		return 2
	}
	codec := Tagged(tagOf, circleCase, rectCase)

	got := roundTrip(t, codec, shape{isCircle: true, radius: 5})
	assert.True(t, got.isCircle)
	assert.Equal(t, uint32(5), got.radius)

	got = roundTrip(t, codec, shape{w: 3, h: 4})
	assert.False(t, got.isCircle)
	assert.Equal(t, uint32(3), got.w)
	assert.Equal(t, uint32(4), got.h)
}

func TestReaderPeerClosedAtFrameBoundary(t *testing.T) {
	r := NewReader(bytes.NewReader(nil))
	_, err := r.ReadU8()
	assert.ErrorIs(t, err, ErrPeerClosed)
}

func sdRoundTrip[T any](t *testing.T, c SDCodec[T], v T) T {
	t.Helper()
	buf := c.Append(nil, v)
	got, n, err := c.Consume(buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)
	return got
}

func TestSelfDescribingPrimitivesRoundTrip(t *testing.T) {
	assert.Equal(t, true, sdRoundTrip(t, SDBool, true))
	assert.Equal(t, uint64(1<<33), sdRoundTrip(t, SDUint64, uint64(1<<33)))
	assert.Equal(t, "hi", sdRoundTrip(t, SDString, "hi"))
	assert.Equal(t, []byte{1, 2, 3}, sdRoundTrip(t, SDBytes, []byte{1, 2, 3}))
}

func TestSelfDescribingOptionAndListRoundTrip(t *testing.T) {
	oc := SDOption(SDString)
	got := sdRoundTrip(t, oc, nil)
	assert.Nil(t, got)

	s := "present"
	got = sdRoundTrip(t, oc, &s)
	require.NotNil(t, got)
	assert.Equal(t, s, *got)

	lc := SDList(SDUint64)
	gotList := sdRoundTrip(t, lc, []uint64{9, 8, 7})
	assert.Equal(t, []uint64{9, 8, 7}, gotList)
}

func TestSelfDescribingTruncatedFailsFast(t *testing.T) {
	buf := SDBytes.Append(nil, []byte("hello world"))
	_, _, err := SDBytes.Consume(buf[:len(buf)-3])
	assert.ErrorIs(t, err, ErrTruncated)
}
