package protocol

import (
	"errors"

	"github.com/msg555/vericas/wire"
)

// Version is the protocol version token both peers exchange at connect
// time (§4.3). v1 pins both peers to the compact wire codec family; a
// future bump would be the point at which the self-describing family
// (already implemented, see wire.SDCodec) gets negotiated instead.
const Version uint32 = 1

var ErrHandshakeMismatch = errors.New("protocol: handshake version mismatch")

// ServerHandshake reads the initiator's version token and, if it matches,
// acknowledges with the same token. On mismatch it returns
// ErrHandshakeMismatch without writing anything, per §4.3 ("the acceptor
// closes the connection without further I/O").
func ServerHandshake(conn *Conn) error {
	got, err := conn.R.ReadU32()
	if err != nil {
		return err
	}
	if got != Version {
		return ErrHandshakeMismatch
	}
	return conn.WithWrite(func(w *wire.Writer) error {
		return w.WriteU32(Version)
	})
}

// ClientHandshake writes the version token and waits for the acceptor's
// acknowledgement.
func ClientHandshake(conn *Conn) error {
	if err := conn.WithWrite(func(w *wire.Writer) error {
		return w.WriteU32(Version)
	}); err != nil {
		return err
	}
	got, err := conn.R.ReadU32()
	if err != nil {
		return err
	}
	if got != Version {
		return ErrHandshakeMismatch
	}
	return nil
}
