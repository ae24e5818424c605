package hcas

import (
	"encoding/hex"
)

// A Name is the sha256 content digest that addresses an object in Hcas. It is
// used both as the on-disk/db key for an object and as the dependency
// reference other objects point at.
type Name struct {
	data [32]byte
}

// NewName builds a Name from a 32 byte digest given as a raw byte string (the
// representation objects/sessions exchange with the sqlite layer).
func NewName(raw string) Name {
	var n Name
	copy(n.data[:], raw)
	return n
}

// NewNameBytes builds a Name from a 32 byte digest.
func NewNameBytes(raw []byte) Name {
	var n Name
	copy(n.data[:], raw)
	return n
}

// Name returns the raw digest bytes as a string, suitable for use as a sqlite
// BLOB parameter.
func (n Name) Name() string {
	return string(n.data[:])
}

// Bytes returns the raw digest bytes.
func (n Name) Bytes() []byte {
	out := make([]byte, len(n.data))
	copy(out, n.data[:])
	return out
}

// HexName returns the digest hex encoded, for logging and display.
func (n Name) HexName() string {
	return hex.EncodeToString(n.data[:])
}

func (n Name) IsZero() bool {
	return n.data == [32]byte{}
}

func (n Name) Equal(other Name) bool {
	return n.data == other.data
}

// NameHex hex encodes an arbitrary byte slice digest. Kept for callers that
// only have raw bytes in hand and don't want to round trip through Name.
func NameHex(name []byte) string {
	return hex.EncodeToString(name)
}
