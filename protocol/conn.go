package protocol

import (
	"bufio"
	"net"
	"sync"

	"github.com/msg555/vericas/wire"
)

// Conn wraps a transport connection with the wire framing primitives and a
// write mutex so a response frame and an async watch-notification frame
// (§6) can never interleave their bytes.
type Conn struct {
	nc      net.Conn
	R       *wire.Reader
	w       *wire.Writer
	writeMu sync.Mutex
}

func NewConn(nc net.Conn) *Conn {
	bw := bufio.NewWriter(nc)
	return &Conn{
		nc: nc,
		R:  wire.NewReader(bufio.NewReader(nc)),
		w:  wire.NewWriter(bw),
	}
}

func (c *Conn) Close() error { return c.nc.Close() }

// WithWrite runs fn against the connection's writer under the write lock
// and flushes afterward, so fn's output reaches the peer as one atomic
// frame relative to any concurrent writer.
func (c *Conn) WithWrite(fn func(w *wire.Writer) error) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := fn(c.w); err != nil {
		return err
	}
	return c.w.Flush()
}
