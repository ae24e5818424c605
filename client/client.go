// Package client implements the runtime §4.8 describes: connection
// establishment, transparent reconnect, request serialization, response
// decoding, and a client-side Tree wrapper over the server's tree handle
// table.
package client

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync"

	"github.com/msg555/vericas/protocol"
	"github.com/msg555/vericas/wire"
)

// RemoteError wraps an error-status response (§7's "handler-recoverable"
// and friends, as seen from the client): the server rejected the request
// but the connection itself is fine.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string { return e.Message }

// Config is the subset of connection options the client CLI loads from
// YAML (§6: "{uri: string, tls: bool}").
type Config struct {
	URI string `yaml:"uri"`
	TLS bool   `yaml:"tls"`
}

// Client holds {transport_config, current_connection (mut)} per §4.8. It
// presents a single-threaded API per connection: callers wanting
// parallelism open multiple Clients.
type Client struct {
	uri     string
	tlsConf *tls.Config

	mu   sync.Mutex
	conn *protocol.Conn

	watchMu  sync.Mutex
	onWatch  func(protocol.WatchNotify)
}

// Dial parses uri (one of the §6 transport schemes) and performs the
// initial connect-and-handshake. tlsConf is nil for a plaintext
// connection.
func Dial(uri string, tlsConf *tls.Config) (*Client, error) {
	c := &Client{uri: uri, tlsConf: tlsConf}
	if _, err := c.ensureConn(); err != nil {
		return nil, err
	}
	return c, nil
}

// OnWatch installs the callback invoked for every asynchronous watch
// notification (§6's status=2 frame) this connection receives. There is
// at most one installed at a time, matching the server's "at most one
// [watch] of each per session" limit on the other end.
func (c *Client) OnWatch(cb func(protocol.WatchNotify)) {
	c.watchMu.Lock()
	defer c.watchMu.Unlock()
	c.onWatch = cb
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

func (c *Client) closeLocked() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func dialTransport(rawURI string, tlsConf *tls.Config) (net.Conn, error) {
	u, err := url.Parse(rawURI)
	if err != nil {
		return nil, fmt.Errorf("client: invalid uri %q: %w", rawURI, err)
	}
	switch u.Scheme {
	case "unix":
		if tlsConf != nil {
			return tls.Dial("unix", u.Path, tlsConf)
		}
		return net.Dial("unix", u.Path)
	case "tcp":
		addr := u.Host
		if !strings.Contains(addr, ":") {
			addr = addr + ":8888"
		}
		if tlsConf != nil {
			cfg := tlsConf.Clone()
			if cfg.ServerName == "" {
				cfg.ServerName = u.Hostname()
			}
			return tls.Dial("tcp", addr, cfg)
		}
		return net.Dial("tcp", addr)
	default:
		return nil, fmt.Errorf("client: unsupported uri scheme %q", u.Scheme)
	}
}

// ensureConnLocked returns the current connection, dialing and handshaking a
// fresh one if none is open. Caller must hold c.mu.
func (c *Client) ensureConnLocked() (*protocol.Conn, error) {
	if c.conn != nil {
		return c.conn, nil
	}
	nc, err := dialTransport(c.uri, c.tlsConf)
	if err != nil {
		return nil, err
	}
	conn := protocol.NewConn(nc)
	if err := protocol.ClientHandshake(conn); err != nil {
		conn.Close()
		return nil, err
	}
	c.conn = conn
	return conn, nil
}

func (c *Client) ensureConn() (*protocol.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ensureConnLocked()
}

// isTransportErr reports whether err represents a broken connection
// (rather than a decode/protocol-level problem), the condition §4.8's
// transparent reconnect triggers on.
func isTransportErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, wire.ErrPeerClosed) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// call implements request(command, arg) (§4.8): write header+body+flush,
// read the response header, decode the body or error message. Watch
// notification frames (status=2) are drained and delivered to onWatch
// before the loop looks for the real response frame they precede.
func call[Req, Res any](c *Client, name string, reqCodec wire.Codec[Req], resCodec wire.Codec[Res], req Req) (Res, error) {
	var zero Res

	attempt := func() (Res, error) {
		c.mu.Lock()
		conn, err := c.ensureConnLocked()
		c.mu.Unlock()
		if err != nil {
			return zero, err
		}

		writeErr := conn.WithWrite(func(w *wire.Writer) error {
			if err := protocol.WriteRequestHeader(w, name); err != nil {
				return err
			}
			return reqCodec.Encode(w, req)
		})
		if writeErr != nil {
			return zero, writeErr
		}

		for {
			status, err := protocol.ReadResponseStatus(conn.R)
			if err != nil {
				return zero, err
			}
			switch status {
			case protocol.StatusOK:
				res, err := resCodec.Decode(conn.R)
				return res, err
			case protocol.StatusErr:
				msg, err := protocol.ReadErrMessage(conn.R)
				if err != nil {
					return zero, err
				}
				return zero, &RemoteError{Message: msg}
			case protocol.StatusWatchNotify:
				n, err := protocol.WatchNotifyCodec.Decode(conn.R)
				if err != nil {
					return zero, err
				}
				c.watchMu.Lock()
				cb := c.onWatch
				c.watchMu.Unlock()
				if cb != nil {
					go cb(n)
				}
				continue
			default:
				return zero, fmt.Errorf("client: unrecognized response status %d", status)
			}
		}
	}

	res, err := attempt()
	if err != nil && isTransportErr(err) {
		c.mu.Lock()
		c.closeLocked()
		c.mu.Unlock()
		res, err = attempt()
	}
	return res, err
}

// Ping is the connectivity no-op (§4.7).
func (c *Client) Ping() error {
	_, err := call(c, protocol.CmdPing, wire.Unit, wire.Unit, struct{}{})
	return err
}
