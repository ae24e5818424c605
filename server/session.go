// Package server implements the per-connection session state, dispatch
// loop, and command handlers described in §4.5-§4.7: everything the
// protocol core owns, layered on top of the merkle backend it treats as
// an opaque object graph.
package server

import (
	"log/slog"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/msg555/vericas/merkle"
	"github.com/msg555/vericas/protocol"
)

// Session is the per-connection state §3 describes:
// {conn, config, repo, branch (mut), store-view (mut), trees, watch?,
// branch-watch?}. It is mutated only by the dispatch loop's own handler
// invocations (§4.5's single-threaded discipline).
type Session struct {
	Conn   *protocol.Conn
	Config *Config
	Log    *slog.Logger

	repoSession *merkle.RepoSession
	branch      merkle.BranchName

	treesMu    sync.Mutex
	trees      map[protocol.TreeHandle]*merkle.Tree
	nextHandle protocol.TreeHandle

	watchUnsub      func()
	branchWatchName merkle.BranchName
	branchWatchUnsub func()

	CorrelationID string
}

// NewSession initializes session state with the repository's default
// branch and an empty tree-handle table, per §4.5 step "on success".
func NewSession(conn *protocol.Conn, cfg *Config, repo *merkle.Repo, log *slog.Logger) (*Session, error) {
	rs, err := repo.NewSession()
	if err != nil {
		return nil, err
	}
	id := ulid.Make().String()
	return &Session{
		Conn:          conn,
		Config:        cfg,
		Log:           log.With("session", id),
		repoSession:   rs,
		branch:        merkle.DefaultBranch,
		trees:         make(map[protocol.TreeHandle]*merkle.Tree),
		CorrelationID: id,
	}, nil
}

// Close releases every session-scoped resource: tree handles are simply
// dropped (garbage collected with the map), watches unsubscribe from the
// repo, and the underlying hcas session closes.
func (s *Session) Close() error {
	s.cleanupAllTrees()
	if s.watchUnsub != nil {
		s.watchUnsub()
	}
	if s.branchWatchUnsub != nil {
		s.branchWatchUnsub()
	}
	return s.repoSession.Close()
}

func (s *Session) Repo() *merkle.RepoSession { return s.repoSession }

func (s *Session) Branch() merkle.BranchName { return s.branch }

// SetBranch mutates branch and rebuilds store-view; store-view here is
// simply "whatever BranchFind(branch) resolves to" computed on demand, so
// rebuilding it is implicit rather than a separate cached step.
func (s *Session) SetBranch(name merkle.BranchName) {
	s.branch = name
}

// --- Tree handle manager (§4.6) -----------------------------------

// AllocTree installs t under a freshly allocated, monotonically increasing
// handle and returns it.
func (s *Session) AllocTree(t *merkle.Tree) protocol.TreeHandle {
	s.treesMu.Lock()
	defer s.treesMu.Unlock()
	h := s.nextHandle
	s.nextHandle++
	s.trees[h] = t
	return h
}

// GetTree dereferences a handle. A handler that receives an identifier
// absent from the table must fail with ErrTreeHandleUnknown, a
// recoverable error (§4.6).
func (s *Session) GetTree(h protocol.TreeHandle) (*merkle.Tree, error) {
	s.treesMu.Lock()
	defer s.treesMu.Unlock()
	t, ok := s.trees[h]
	if !ok {
		return nil, merkle.ErrTreeHandleUnknown
	}
	return t, nil
}

func (s *Session) CleanupTree(h protocol.TreeHandle) {
	s.treesMu.Lock()
	defer s.treesMu.Unlock()
	delete(s.trees, h)
}

// CleanupAllTrees drops every tree handle in the session's table, the
// tree_cleanup_all command (§4.7).
func (s *Session) CleanupAllTrees() {
	s.cleanupAllTrees()
}

func (s *Session) cleanupAllTrees() {
	s.treesMu.Lock()
	defer s.treesMu.Unlock()
	s.trees = make(map[protocol.TreeHandle]*merkle.Tree)
}

// HandlerContext is threaded through every command handler; it is the
// concrete C type parameter rpc.Registry is built with (see registry.go).
type HandlerContext struct {
	Session *Session
	Repo    *merkle.Repo
}
