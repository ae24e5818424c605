package server

import (
	"errors"
	"log/slog"
	"time"

	"github.com/msg555/vericas/merkle"
	"github.com/msg555/vericas/protocol"
	"github.com/msg555/vericas/rpc"
	"github.com/msg555/vericas/wire"
)

// recoverableErrSleep is the back-pressure delay §4.5 step 4 imposes after
// a handler-recoverable error, to discourage a misbehaving client from
// hammering the connection with invalid requests.
const recoverableErrSleep = 10 * time.Millisecond

// Serve runs the handshake and, on success, the dispatch loop for one
// connection until the peer disconnects or a handler-fatal error occurs.
// It always closes conn and the session before returning.
func Serve(conn *protocol.Conn, cfg *Config, ctx *HandlerContext, log *slog.Logger) {
	defer conn.Close()

	if err := protocol.ServerHandshake(conn); err != nil {
		log.Warn("handshake failed", "error", err)
		return
	}

	session, err := NewSession(conn, cfg, ctx.Repo, log)
	if err != nil {
		log.Error("failed to open session", "error", err)
		return
	}
	ctx.Session = session
	defer session.Close()

	for {
		name, err := protocol.ReadRequestName(conn.R)
		if err != nil {
			if errors.Is(err, wire.ErrPeerClosed) {
				return
			}
			session.Log.Error("fatal read error", "error", err)
			return
		}

		cmd, ok := Commands.OfName(name)
		if !ok {
			if err := writeErr(conn, "unknown command"); err != nil {
				session.Log.Error("fatal write error", "error", err)
				return
			}
			continue
		}

		encode, err := cmd.Invoke(ctx, conn.R)
		if err != nil {
			if errors.Is(err, rpc.ErrDecodeFailure) {
				if err := writeErr(conn, "Invalid arguments"); err != nil {
					session.Log.Error("fatal write error", "error", err)
					return
				}
				continue
			}
			if isRecoverable(err) {
				if werr := writeErr(conn, err.Error()); werr != nil {
					session.Log.Error("fatal write error", "error", werr)
					return
				}
				time.Sleep(recoverableErrSleep)
				continue
			}
			session.Log.Error("handler-fatal error, closing session", "command", name, "error", err)
			return
		}

		if err := conn.WithWrite(func(w *wire.Writer) error {
			return protocol.WriteOkResponse(w, encode)
		}); err != nil {
			session.Log.Error("fatal write error", "error", err)
			return
		}
	}
}

func writeErr(conn *protocol.Conn, message string) error {
	return conn.WithWrite(func(w *wire.Writer) error {
		return protocol.WriteErrResponse(w, message)
	})
}

// isRecoverable classifies a handler error as "invariant violation
// surfaced by handler" (§7's handler-recoverable kind) rather than an
// unexpected fault. Everything named here is a domain error a well-formed
// client can legitimately trigger (bad handle, missing path, merge
// conflict, ...); anything else is treated as handler-fatal.
func isRecoverable(err error) bool {
	var mc *merkle.MergeConflictError
	if errors.As(err, &mc) {
		return true
	}
	switch {
	case errors.Is(err, merkle.ErrTreeHandleUnknown),
		errors.Is(err, merkle.ErrPathNotFound),
		errors.Is(err, merkle.ErrNotATree),
		errors.Is(err, merkle.ErrObjectNotFound),
		errors.Is(err, merkle.ErrDependencyMissing),
		errors.Is(err, merkle.ErrCommitParentMissing):
		return true
	}
	return false
}
