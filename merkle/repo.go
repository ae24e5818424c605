package merkle

import (
	"sync"

	"github.com/dgraph-io/ristretto"

	"github.com/msg555/vericas/hcas"
)

// DefaultBranch is the branch a freshly initialized session starts on.
const DefaultBranch = BranchName("main")

const labelNamespaceBranch = "branch"

// Repo is the process-lifetime, shared collection of every object and
// branch a server hosts. It owns nothing session-scoped; RepoSession below
// is the per-session view a server.Session or a local caller opens onto
// it.
type Repo struct {
	Backend hcas.Hcas
	cache   *ristretto.Cache

	mu          sync.Mutex
	nextWatchID int64
	watchersAll map[int64]func(BranchName, CommitKey, bool)
	watchersKey map[BranchName]map[int64]func(CommitKey, bool)
}

// OpenRepo wraps an already-open hcas backend with the Merkle data model.
// The read-through cache (§ SPEC_FULL DOMAIN STACK) amortizes repeated
// Find calls for node/commit lookups shared across many sessions.
func OpenRepo(backend hcas.Hcas) (*Repo, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e6,
		MaxCost:     1 << 28,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Repo{
		Backend:     backend,
		cache:       cache,
		watchersAll: make(map[int64]func(BranchName, CommitKey, bool)),
		watchersKey: make(map[BranchName]map[int64]func(CommitKey, bool)),
	}, nil
}

// RepoSession is a session-scoped view onto a Repo: one hcas.Session (so
// objects it touches stay alive for the session's lifetime) plus the three
// backend object stores. It does not itself carry the protocol-level
// session state (current branch, tree handles) — that's server.Session.
type RepoSession struct {
	Repo     *Repo
	hs       hcas.Session
	Contents *ObjectStore
	Nodes    *ObjectStore
	Commits  *ObjectStore
}

func (r *Repo) NewSession() (*RepoSession, error) {
	hs, err := r.Backend.CreateSession()
	if err != nil {
		return nil, err
	}
	return &RepoSession{
		Repo:     r,
		hs:       hs,
		Contents: newObjectStore(KindContents, hs, r.cache),
		Nodes:    newObjectStore(KindNode, hs, r.cache),
		Commits:  newObjectStore(KindCommit, hs, r.cache),
	}, nil
}

func (s *RepoSession) Close() error {
	return s.hs.Close()
}

// storeFor returns the ObjectStore matching kind, used by generic
// passthrough handlers that receive a Kind off the wire.
func (s *RepoSession) storeFor(kind Kind) *ObjectStore {
	switch kind {
	case KindContents:
		return s.Contents
	case KindNode:
		return s.Nodes
	default:
		return s.Commits
	}
}

// StoreFor exposes storeFor to the server package's backend passthrough
// handlers (§4.7's "For each of Contents, Node, Commit: Mem, Find, Add,
// Unsafe_add, Index, Merge"), which dispatch on the Kind that arrived off
// the wire.
func (s *RepoSession) StoreFor(kind Kind) *ObjectStore {
	return s.storeFor(kind)
}

// --- Branch registry -------------------------------------------------

func (s *RepoSession) BranchMem(name BranchName) (bool, error) {
	_, ok, err := s.BranchFind(name)
	return ok, err
}

func (s *RepoSession) BranchFind(name BranchName) (CommitKey, bool, error) {
	n, ok, err := s.hs.GetLabel(labelNamespaceBranch, string(name))
	if err != nil || !ok {
		return CommitKey{}, ok, err
	}
	return CommitKey{Kind: KindCommit, Hash: n}, true, nil
}

func (s *RepoSession) BranchSet(name BranchName, key CommitKey) error {
	n := key.Hash
	if err := s.hs.SetLabel(labelNamespaceBranch, string(name), &n); err != nil {
		return err
	}
	s.Repo.notifyBranch(name, key, true)
	return nil
}

func (s *RepoSession) BranchTestAndSet(name BranchName, test, set *CommitKey) (bool, error) {
	var testName, setName *hcas.Name
	if test != nil {
		testName = &test.Hash
	}
	if set != nil {
		setName = &set.Hash
	}
	ok, err := s.hs.TestAndSetLabel(labelNamespaceBranch, string(name), testName, setName)
	if err != nil || !ok {
		return ok, err
	}
	if set != nil {
		s.Repo.notifyBranch(name, *set, true)
	} else {
		s.Repo.notifyBranch(name, CommitKey{}, false)
	}
	return true, nil
}

func (s *RepoSession) BranchRemove(name BranchName) error {
	if err := s.hs.SetLabel(labelNamespaceBranch, string(name), nil); err != nil {
		return err
	}
	s.Repo.notifyBranch(name, CommitKey{}, false)
	return nil
}

func (s *RepoSession) BranchList() ([]BranchName, error) {
	labels, err := s.hs.ListLabels(labelNamespaceBranch)
	if err != nil {
		return nil, err
	}
	out := make([]BranchName, len(labels))
	for i, l := range labels {
		out[i] = BranchName(l)
	}
	return out, nil
}

func (s *RepoSession) BranchClear() error {
	names, err := s.BranchList()
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := s.BranchRemove(name); err != nil {
			return err
		}
	}
	return nil
}

// --- Watches -----------------------------------------------------------
//
// hcas has no native pub/sub, so the Repo maintains the subscriber table
// itself: every branch mutation on any session fans out here, and every
// server session with an active Watch/Watch_key installed gets called
// back. Callbacks run on their own goroutine so a slow subscriber can
// never stall the mutating session's dispatch loop.

// WatchAll registers cb to be called on every branch mutation across the
// whole repo. present is false when the mutation was a removal.
func (r *Repo) WatchAll(cb func(name BranchName, key CommitKey, present bool)) (unsubscribe func()) {
	r.mu.Lock()
	id := r.nextWatchID
	r.nextWatchID++
	r.watchersAll[id] = cb
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.watchersAll, id)
		r.mu.Unlock()
	}
}

// WatchBranch registers cb to be called whenever name specifically
// changes.
func (r *Repo) WatchBranch(name BranchName, cb func(key CommitKey, present bool)) (unsubscribe func()) {
	r.mu.Lock()
	id := r.nextWatchID
	r.nextWatchID++
	if r.watchersKey[name] == nil {
		r.watchersKey[name] = make(map[int64]func(CommitKey, bool))
	}
	r.watchersKey[name][id] = cb
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.watchersKey[name], id)
		if len(r.watchersKey[name]) == 0 {
			delete(r.watchersKey, name)
		}
		r.mu.Unlock()
	}
}

func (r *Repo) notifyBranch(name BranchName, key CommitKey, present bool) {
	r.mu.Lock()
	all := make([]func(BranchName, CommitKey, bool), 0, len(r.watchersAll))
	for _, cb := range r.watchersAll {
		all = append(all, cb)
	}
	keyed := make([]func(CommitKey, bool), 0)
	for _, cb := range r.watchersKey[name] {
		keyed = append(keyed, cb)
	}
	r.mu.Unlock()

	for _, cb := range all {
		go cb(name, key, present)
	}
	for _, cb := range keyed {
		go cb(key, present)
	}
}
