package main

import (
	"fmt"
	"os"
	"time"

	"github.com/msg555/vericas/client"
	"github.com/msg555/vericas/hcas"
	"github.com/msg555/vericas/hcasfs"
	"github.com/msg555/vericas/merkle"
)

func commitInfo(author, message string) merkle.Info {
	return merkle.Info{
		Author:    author,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// localSession opens a throwaway object store in a fresh temp directory.
// Import and merge both stage their work in one of these before shipping
// the result back to the server with Export/Import, since the wire
// protocol has no operation to build a tree or run a merge out of pieces
// that never left the server.
func localSession() (*merkle.RepoSession, error) {
	dir, err := os.MkdirTemp("", "vericas-client-")
	if err != nil {
		return nil, fmt.Errorf("creating scratch dir: %w", err)
	}
	backend, err := hcas.CreateHcas(dir)
	if err != nil {
		return nil, fmt.Errorf("opening scratch store: %w", err)
	}
	repo, err := merkle.OpenRepo(backend)
	if err != nil {
		return nil, fmt.Errorf("opening scratch repo: %w", err)
	}
	return repo.NewSession()
}

func importToServer(conn *client.Client, path string, info merkle.Info) (merkle.Hash, error) {
	session, err := localSession()
	if err != nil {
		return merkle.Hash{}, err
	}
	defer session.Close()

	tree, err := buildImportTree(session, path)
	if err != nil {
		return merkle.Hash{}, err
	}

	treeKey, err := session.Save(tree)
	if err != nil {
		return merkle.Hash{}, fmt.Errorf("saving imported tree: %w", err)
	}
	commitKey, err := session.NewCommit(info, nil, treeKey)
	if err != nil {
		return merkle.Hash{}, fmt.Errorf("creating commit: %w", err)
	}

	slice, err := session.Export([]merkle.CommitKey{commitKey})
	if err != nil {
		return merkle.Hash{}, fmt.Errorf("exporting commit: %w", err)
	}
	if err := conn.Import(slice); err != nil {
		return merkle.Hash{}, fmt.Errorf("uploading commit: %w", err)
	}
	if err := conn.SetHead(nil, commitKey.Hash); err != nil {
		return merkle.Hash{}, fmt.Errorf("updating branch head: %w", err)
	}
	return commitKey.Hash, nil
}

func buildImportTree(session *merkle.RepoSession, path string) (*merkle.Tree, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return hcasfs.ImportPath(session, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return hcasfs.ImportTar(session, f)
}

// mergeBranches resolves ours/theirs (and an optional base) against the
// server's current heads, pulls the whole reachable graph down into a
// scratch repo, runs the three-way merge locally and pushes the result
// back. Running it server-side would work for the non-conflicting case,
// but a *merkle.MergeConflictError crossing the wire only carries a path
// string (see merkle.MergeConflictError.Error), not the conflicting
// payloads a diff needs, so the merge itself has to happen where those
// payloads are still in memory.
func mergeBranches(conn *client.Client, ours, theirs, base string, info merkle.Info) (*merkle.MergeConflictError, error) {
	oursHash, err := conn.BranchFind(ours)
	if err != nil {
		return nil, fmt.Errorf("resolving %q: %w", ours, err)
	}
	if oursHash == nil {
		return nil, fmt.Errorf("branch %q has no commits", ours)
	}
	theirsHash, err := conn.BranchFind(theirs)
	if err != nil {
		return nil, fmt.Errorf("resolving %q: %w", theirs, err)
	}
	if theirsHash == nil {
		return nil, fmt.Errorf("branch %q has no commits", theirs)
	}

	var baseHash *merkle.Hash
	if base != "" {
		baseHash, err = conn.BranchFind(base)
		if err != nil {
			return nil, fmt.Errorf("resolving %q: %w", base, err)
		}
	}

	slice, err := conn.Export()
	if err != nil {
		return nil, fmt.Errorf("fetching object graph: %w", err)
	}

	session, err := localSession()
	if err != nil {
		return nil, err
	}
	defer session.Close()
	if err := session.Import(slice); err != nil {
		return nil, fmt.Errorf("importing object graph: %w", err)
	}

	oursTree, err := session.TreeOfCommit(*oursHash)
	if err != nil {
		return nil, fmt.Errorf("resolving %q tree: %w", ours, err)
	}
	theirsTree, err := session.TreeOfCommit(*theirsHash)
	if err != nil {
		return nil, fmt.Errorf("resolving %q tree: %w", theirs, err)
	}
	baseTree := merkle.NewEmptyTree()
	if baseHash != nil {
		baseTree, err = session.TreeOfCommit(*baseHash)
		if err != nil {
			return nil, fmt.Errorf("resolving %q tree: %w", base, err)
		}
	}

	merged, err := session.TreeMerge(baseTree, oursTree, theirsTree)
	if err != nil {
		if conflict, ok := err.(*merkle.MergeConflictError); ok {
			return conflict, nil
		}
		return nil, fmt.Errorf("merging: %w", err)
	}

	treeKey, err := session.Save(merged)
	if err != nil {
		return nil, fmt.Errorf("saving merged tree: %w", err)
	}
	commitKey, err := session.NewCommit(info, []merkle.CommitKey{
		{Kind: merkle.KindCommit, Hash: *oursHash},
		{Kind: merkle.KindCommit, Hash: *theirsHash},
	}, treeKey)
	if err != nil {
		return nil, fmt.Errorf("creating merge commit: %w", err)
	}

	outSlice, err := session.Export([]merkle.CommitKey{commitKey})
	if err != nil {
		return nil, fmt.Errorf("exporting merge commit: %w", err)
	}
	if err := conn.Import(outSlice); err != nil {
		return nil, fmt.Errorf("uploading merge commit: %w", err)
	}
	if err := conn.BranchSet(ours, commitKey.Hash); err != nil {
		return nil, fmt.Errorf("updating %q: %w", ours, err)
	}
	return nil, nil
}
