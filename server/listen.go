package server

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strings"

	"github.com/msg555/vericas/merkle"
	"github.com/msg555/vericas/protocol"
)

// Listen binds the transport scheme named by cfg.URI (§6: unix://, tcp://,
// and the TLS variant of each). The returned listener's Close also unlinks
// the backing socket file for a unix:// listener, matching "Unix-socket
// server unlinks its socket file on process exit."
func Listen(cfg *Config) (net.Listener, error) {
	u, err := url.Parse(cfg.URI)
	if err != nil {
		return nil, fmt.Errorf("server: invalid uri %q: %w", cfg.URI, err)
	}

	var lis net.Listener
	switch u.Scheme {
	case "unix":
		os.Remove(u.Path)
		lis, err = net.Listen("unix", u.Path)
		if err != nil {
			return nil, err
		}
		lis = &unixUnlinkListener{Listener: lis, path: u.Path}
	case "tcp":
		addr := u.Host
		if !strings.Contains(addr, ":") {
			addr = addr + ":8888"
		}
		lis, err = net.Listen("tcp", addr)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("server: unsupported uri scheme %q", u.Scheme)
	}

	if cfg.TLS != nil {
		cert, err := tls.LoadX509KeyPair(cfg.TLS.CertPath, cfg.TLS.KeyPath)
		if err != nil {
			lis.Close()
			return nil, err
		}
		lis = tls.NewListener(lis, &tls.Config{Certificates: []tls.Certificate{cert}})
	}

	return lis, nil
}

type unixUnlinkListener struct {
	net.Listener
	path string
}

func (l *unixUnlinkListener) Close() error {
	err := l.Listener.Close()
	os.Remove(l.path)
	return err
}

// Run accepts connections on lis forever, serving each on its own
// goroutine against repo, until lis.Accept fails (typically because lis
// was closed).
func Run(lis net.Listener, cfg *Config, repo *merkle.Repo, log *slog.Logger) error {
	for {
		nc, err := lis.Accept()
		if err != nil {
			return err
		}
		go func() {
			conn := protocol.NewConn(nc)
			ctx := &HandlerContext{Repo: repo}
			Serve(conn, cfg, ctx, log)
		}()
	}
}
