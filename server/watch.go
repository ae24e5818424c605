package server

import (
	"github.com/google/uuid"

	"github.com/msg555/vericas/merkle"
	"github.com/msg555/vericas/protocol"
	"github.com/msg555/vericas/wire"
)

// installWatchAll and installWatchKey back the branch_watch and
// branch_watch_key handlers: install cb with the repo, tag the subscription with a fresh
// uuid for logging, and remember the unsubscribe func so Close/Unwatch can
// tear it down. At most one of each per session per §4.7.
func (s *Session) installWatchAll() error {
	if s.watchUnsub != nil {
		return nil
	}
	subID := uuid.New()
	s.watchUnsub = s.Repo().Repo.WatchAll(func(name merkle.BranchName, key merkle.CommitKey, present bool) {
		s.pushWatchNotify(protocol.WatchNotify{Keyed: false, Branch: string(name), Present: present, Commit: commitPtr(key, present)})
	})
	s.Log.Info("installed all-branch watch", "watch_id", subID.String())
	return nil
}

func (s *Session) installWatchKey(name merkle.BranchName) error {
	if s.branchWatchUnsub != nil {
		s.branchWatchUnsub()
	}
	subID := uuid.New()
	s.branchWatchName = name
	s.branchWatchUnsub = s.Repo().Repo.WatchBranch(name, func(key merkle.CommitKey, present bool) {
		s.pushWatchNotify(protocol.WatchNotify{Keyed: true, Branch: string(name), Present: present, Commit: commitPtr(key, present)})
	})
	s.Log.Info("installed keyed branch watch", "watch_id", subID.String(), "branch", string(name))
	return nil
}

func (s *Session) unwatchAll() {
	if s.watchUnsub != nil {
		s.watchUnsub()
		s.watchUnsub = nil
	}
	if s.branchWatchUnsub != nil {
		s.branchWatchUnsub()
		s.branchWatchUnsub = nil
	}
}

func commitPtr(key merkle.CommitKey, present bool) *merkle.Hash {
	if !present {
		return nil
	}
	h := key.Hash
	return &h
}

// pushWatchNotify sends an async status=2 frame (§6). It runs on the
// watch callback's own goroutine (see Repo.notifyBranch) and uses the
// connection's write lock so it never interleaves with a response the
// dispatch loop is writing.
func (s *Session) pushWatchNotify(n protocol.WatchNotify) {
	if err := s.Conn.WithWrite(func(w *wire.Writer) error {
		return protocol.WriteWatchNotify(w, n)
	}); err != nil {
		s.Log.Warn("failed to deliver watch notification", "error", err)
	}
}
