package server

import "github.com/msg555/vericas/merkle"

// headTree resolves branch's current commit (if any) and the tree it
// points at. A branch with no commit yet resolves to an empty tree and a
// nil head, matching the "store-view always consistent with branch"
// invariant (§3) for a freshly created branch.
func headTree(ctx *HandlerContext, branch merkle.BranchName) (*merkle.Tree, *merkle.CommitKey, error) {
	repo := ctx.Session.Repo()
	head, ok, err := repo.BranchFind(branch)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return merkle.NewEmptyTree(), nil, nil
	}
	tree, err := repo.TreeOfCommit(head.Hash)
	if err != nil {
		return nil, nil, err
	}
	return tree, &head, nil
}

// commitMutation implements the "standard optimistic commit loop" §4.7
// describes for Set/Set_tree/Remove: read the branch head, apply mutate to
// its tree, persist a new commit on top, and CAS the branch forward. If
// another session advanced the head in the meantime the CAS fails and the
// whole read-mutate-commit sequence is retried against the new head.
func commitMutation(ctx *HandlerContext, branch merkle.BranchName, info merkle.Info, mutate func(*merkle.Tree) (*merkle.Tree, error)) (merkle.CommitKey, error) {
	repo := ctx.Session.Repo()
	for {
		tree, head, err := headTree(ctx, branch)
		if err != nil {
			return merkle.CommitKey{}, err
		}

		newTree, err := mutate(tree)
		if err != nil {
			return merkle.CommitKey{}, err
		}

		newTreeKey, err := repo.Save(newTree)
		if err != nil {
			return merkle.CommitKey{}, err
		}

		var parents []merkle.CommitKey
		if head != nil {
			parents = []merkle.CommitKey{*head}
		}
		commitKey, err := repo.NewCommit(info, parents, newTreeKey)
		if err != nil {
			return merkle.CommitKey{}, err
		}

		ok, err := repo.BranchTestAndSet(branch, head, &commitKey)
		if err != nil {
			return merkle.CommitKey{}, err
		}
		if ok {
			return commitKey, nil
		}
		// head moved since we read it; rebuild on the new head and retry.
	}
}

// commitMutationOnce is the single-attempt sibling commitMutation's
// Test_and_set{_tree} callers use: it applies mutate exactly once against
// the head observed at entry and reports ok=false (no error, no commit)
// if the branch CAS loses a race, per §4.7's "fails cleanly ... without
// further retry".
func commitMutationOnce(ctx *HandlerContext, branch merkle.BranchName, info merkle.Info, mutate func(*merkle.Tree) (*merkle.Tree, error)) (ok bool, err error) {
	repo := ctx.Session.Repo()
	tree, head, err := headTree(ctx, branch)
	if err != nil {
		return false, err
	}

	newTree, err := mutate(tree)
	if err != nil {
		return false, err
	}

	newTreeKey, err := repo.Save(newTree)
	if err != nil {
		return false, err
	}

	var parents []merkle.CommitKey
	if head != nil {
		parents = []merkle.CommitKey{*head}
	}
	commitKey, err := repo.NewCommit(info, parents, newTreeKey)
	if err != nil {
		return false, err
	}

	return repo.BranchTestAndSet(branch, head, &commitKey)
}
