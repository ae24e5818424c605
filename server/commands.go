package server

import (
	"bytes"
	"errors"

	"github.com/msg555/vericas/merkle"
	"github.com/msg555/vericas/protocol"
	"github.com/msg555/vericas/rpc"
	"github.com/msg555/vericas/wire"
)

// errTestMismatch short-circuits commitMutationOnce's mutate callback for
// Test_and_set{_tree}: returning it aborts before any Save/NewCommit/CAS
// happens, so a failed compare never produces a commit. It never escapes
// to the wire; handlers translate it into an ok=false result.
var errTestMismatch = errors.New("server: compare-and-swap test value mismatch")

func resolveBranch(ctx *HandlerContext, override *string) merkle.BranchName {
	if override != nil {
		return merkle.BranchName(*override)
	}
	return ctx.Session.Branch()
}

// --- Connectivity --------------------------------------------------------

func handlePing(ctx *HandlerContext, _ struct{}) (struct{}, error) {
	return struct{}{}, nil
}

// --- Branch ---------------------------------------------------------------

func handleSetCurrentBranch(ctx *HandlerContext, req protocol.SetCurrentBranchReq) (struct{}, error) {
	ctx.Session.SetBranch(merkle.BranchName(req.Branch))
	return struct{}{}, nil
}

func handleGetCurrentBranch(ctx *HandlerContext, _ struct{}) (protocol.GetCurrentBranchRes, error) {
	return protocol.GetCurrentBranchRes{Branch: string(ctx.Session.Branch())}, nil
}

func handleHead(ctx *HandlerContext, req protocol.HeadReq) (protocol.HeadRes, error) {
	key, ok, err := ctx.Session.Repo().BranchFind(resolveBranch(ctx, req.Branch))
	if err != nil || !ok {
		return protocol.HeadRes{}, err
	}
	h := key.Hash
	return protocol.HeadRes{Commit: &h}, nil
}

func handleSetHead(ctx *HandlerContext, req protocol.SetHeadReq) (struct{}, error) {
	name := resolveBranch(ctx, req.Branch)
	err := ctx.Session.Repo().BranchSet(name, merkle.Key{Kind: merkle.KindCommit, Hash: req.Commit})
	return struct{}{}, err
}

func handleRemoveBranch(ctx *HandlerContext, req protocol.RemoveBranchReq) (struct{}, error) {
	err := ctx.Session.Repo().BranchRemove(merkle.BranchName(req.Branch))
	return struct{}{}, err
}

// --- Store (current branch) ------------------------------------------

func handleFind(ctx *HandlerContext, req protocol.PathReq) (protocol.FoundContentsRes, error) {
	tree, _, err := headTree(ctx, ctx.Session.Branch())
	if err != nil {
		return protocol.FoundContentsRes{}, err
	}
	data, ok, err := ctx.Session.Repo().TreeFind(tree, req.Path)
	return protocol.FoundContentsRes{Contents: data, Found: ok}, err
}

func handleMem(ctx *HandlerContext, req protocol.PathReq) (protocol.OkRes, error) {
	tree, _, err := headTree(ctx, ctx.Session.Branch())
	if err != nil {
		return protocol.OkRes{}, err
	}
	ok, err := ctx.Session.Repo().TreeMem(tree, req.Path)
	return protocol.OkRes{Ok: ok}, err
}

func handleMemTree(ctx *HandlerContext, req protocol.PathReq) (protocol.OkRes, error) {
	tree, _, err := headTree(ctx, ctx.Session.Branch())
	if err != nil {
		return protocol.OkRes{}, err
	}
	ok, err := ctx.Session.Repo().TreeMemTree(tree, req.Path)
	return protocol.OkRes{Ok: ok}, err
}

func handleFindTree(ctx *HandlerContext, req protocol.PathReq) (protocol.FoundHandleRes, error) {
	tree, _, err := headTree(ctx, ctx.Session.Branch())
	if err != nil {
		return protocol.FoundHandleRes{}, err
	}
	sub, ok, err := ctx.Session.Repo().TreeFindTree(tree, req.Path)
	if err != nil || !ok {
		return protocol.FoundHandleRes{}, err
	}
	return protocol.FoundHandleRes{Handle: ctx.Session.AllocTree(sub), Found: true}, nil
}

func handleSet(ctx *HandlerContext, req protocol.SetReq) (struct{}, error) {
	_, err := commitMutation(ctx, ctx.Session.Branch(), req.Info, func(t *merkle.Tree) (*merkle.Tree, error) {
		return ctx.Session.Repo().TreeAdd(t, req.Path, req.Contents)
	})
	return struct{}{}, err
}

func handleSetTree(ctx *HandlerContext, req protocol.SetTreeReq) (struct{}, error) {
	sub, err := ctx.Session.GetTree(req.Tree)
	if err != nil {
		return struct{}{}, err
	}
	_, err = commitMutation(ctx, ctx.Session.Branch(), req.Info, func(t *merkle.Tree) (*merkle.Tree, error) {
		return ctx.Session.Repo().TreeAddTree(t, req.Path, sub)
	})
	return struct{}{}, err
}

func handleRemove(ctx *HandlerContext, req protocol.RemoveReq) (struct{}, error) {
	_, err := commitMutation(ctx, ctx.Session.Branch(), req.Info, func(t *merkle.Tree) (*merkle.Tree, error) {
		return ctx.Session.Repo().TreeRemove(t, req.Path)
	})
	return struct{}{}, err
}

func handleTestAndSet(ctx *HandlerContext, req protocol.TestAndSetReq) (protocol.OkRes, error) {
	ok, err := commitMutationOnce(ctx, ctx.Session.Branch(), req.Info, func(t *merkle.Tree) (*merkle.Tree, error) {
		repo := ctx.Session.Repo()
		cur, curOk, err := repo.TreeFind(t, req.Path)
		if err != nil {
			return nil, err
		}
		var match bool
		if req.HasTest {
			match = curOk && bytes.Equal(cur, req.Test)
		} else {
			match = !curOk
		}
		if !match {
			return nil, errTestMismatch
		}
		if req.HasSet {
			return repo.TreeAdd(t, req.Path, req.Set)
		}
		return repo.TreeRemove(t, req.Path)
	})
	if errors.Is(err, errTestMismatch) {
		return protocol.OkRes{Ok: false}, nil
	}
	return protocol.OkRes{Ok: ok}, err
}

func handleTestAndSetTree(ctx *HandlerContext, req protocol.TestAndSetTreeReq) (protocol.OkRes, error) {
	repo := ctx.Session.Repo()

	var testTree *merkle.Tree
	if req.Test != nil {
		var err error
		testTree, err = ctx.Session.GetTree(*req.Test)
		if err != nil {
			return protocol.OkRes{}, err
		}
	}
	var setTree *merkle.Tree
	if req.Set != nil {
		var err error
		setTree, err = ctx.Session.GetTree(*req.Set)
		if err != nil {
			return protocol.OkRes{}, err
		}
	}

	ok, err := commitMutationOnce(ctx, ctx.Session.Branch(), req.Info, func(t *merkle.Tree) (*merkle.Tree, error) {
		cur, _, err := repo.TreeAt(t, req.Path)
		if err != nil {
			return nil, err
		}
		same, err := repo.SameTree(cur, testTree)
		if err != nil {
			return nil, err
		}
		if !same {
			return nil, errTestMismatch
		}
		if req.Set != nil {
			return repo.TreeAddTree(t, req.Path, setTree)
		}
		return repo.TreeRemove(t, req.Path)
	})
	if errors.Is(err, errTestMismatch) {
		return protocol.OkRes{Ok: false}, nil
	}
	return protocol.OkRes{Ok: ok}, err
}

// --- Tree -----------------------------------------------------------

func handleTreeEmpty(ctx *HandlerContext, _ struct{}) (protocol.HandleRes, error) {
	return protocol.HandleRes{Handle: ctx.Session.AllocTree(merkle.NewEmptyTree())}, nil
}

func handleTreeAdd(ctx *HandlerContext, req protocol.TreeAddReq) (protocol.HandleRes, error) {
	t, err := ctx.Session.GetTree(req.Tree)
	if err != nil {
		return protocol.HandleRes{}, err
	}
	newT, err := ctx.Session.Repo().TreeAdd(t, req.Path, req.Contents)
	if err != nil {
		return protocol.HandleRes{}, err
	}
	return protocol.HandleRes{Handle: ctx.Session.AllocTree(newT)}, nil
}

func handleTreeRemove(ctx *HandlerContext, req protocol.TreePathReq) (protocol.HandleRes, error) {
	t, err := ctx.Session.GetTree(req.Tree)
	if err != nil {
		return protocol.HandleRes{}, err
	}
	newT, err := ctx.Session.Repo().TreeRemove(t, req.Path)
	if err != nil {
		return protocol.HandleRes{}, err
	}
	return protocol.HandleRes{Handle: ctx.Session.AllocTree(newT)}, nil
}

func handleTreeAddTree(ctx *HandlerContext, req protocol.TreeAddTreeReq) (protocol.HandleRes, error) {
	base, err := ctx.Session.GetTree(req.Tree)
	if err != nil {
		return protocol.HandleRes{}, err
	}
	sub, err := ctx.Session.GetTree(req.Sub)
	if err != nil {
		return protocol.HandleRes{}, err
	}
	newT, err := ctx.Session.Repo().TreeAddTree(base, req.Path, sub)
	if err != nil {
		return protocol.HandleRes{}, err
	}
	return protocol.HandleRes{Handle: ctx.Session.AllocTree(newT)}, nil
}

func handleTreeBatchApply(ctx *HandlerContext, req protocol.TreeBatchApplyReq) (protocol.HandleRes, error) {
	base, err := ctx.Session.GetTree(req.Tree)
	if err != nil {
		return protocol.HandleRes{}, err
	}

	ops := make([]merkle.TreeOp, len(req.Ops))
	for i, op := range req.Ops {
		switch {
		case op.IsRemove:
			ops[i] = merkle.TreeOp{Path: op.Path, IsRemove: true}
		case op.HasSub:
			sub, err := ctx.Session.GetTree(*op.Sub)
			if err != nil {
				return protocol.HandleRes{}, err
			}
			ops[i] = merkle.TreeOp{Path: op.Path, Tree: sub}
		default:
			ops[i] = merkle.TreeOp{Path: op.Path, Contents: op.Contents}
		}
	}

	newT, err := ctx.Session.Repo().TreeBatchApply(base, ops)
	if err != nil {
		return protocol.HandleRes{}, err
	}
	return protocol.HandleRes{Handle: ctx.Session.AllocTree(newT)}, nil
}

func handleTreeFind(ctx *HandlerContext, req protocol.TreePathReq) (protocol.FoundContentsRes, error) {
	t, err := ctx.Session.GetTree(req.Tree)
	if err != nil {
		return protocol.FoundContentsRes{}, err
	}
	data, ok, err := ctx.Session.Repo().TreeFind(t, req.Path)
	return protocol.FoundContentsRes{Contents: data, Found: ok}, err
}

func handleTreeMem(ctx *HandlerContext, req protocol.TreePathReq) (protocol.OkRes, error) {
	t, err := ctx.Session.GetTree(req.Tree)
	if err != nil {
		return protocol.OkRes{}, err
	}
	ok, err := ctx.Session.Repo().TreeMem(t, req.Path)
	return protocol.OkRes{Ok: ok}, err
}

func handleTreeMemTree(ctx *HandlerContext, req protocol.TreePathReq) (protocol.OkRes, error) {
	t, err := ctx.Session.GetTree(req.Tree)
	if err != nil {
		return protocol.OkRes{}, err
	}
	ok, err := ctx.Session.Repo().TreeMemTree(t, req.Path)
	return protocol.OkRes{Ok: ok}, err
}

func handleTreeList(ctx *HandlerContext, req protocol.TreePathReq) (protocol.ListRes, error) {
	t, err := ctx.Session.GetTree(req.Tree)
	if err != nil {
		return protocol.ListRes{}, err
	}
	entries, err := ctx.Session.Repo().TreeList(t, req.Path)
	return protocol.ListRes{Entries: entries}, err
}

func handleTreeHash(ctx *HandlerContext, req protocol.TreeReq) (protocol.HashRes, error) {
	t, err := ctx.Session.GetTree(req.Tree)
	if err != nil {
		return protocol.HashRes{}, err
	}
	h, err := ctx.Session.Repo().Hash(t)
	return protocol.HashRes{Hash: h}, err
}

// handleTreeKey and handleTreeSave are the same operation under two wire
// names (§4.7 lists Key alongside Hash/To_local as "materialize" and Save
// as "persists", but both just call RepoSession.Save).
func handleTreeKey(ctx *HandlerContext, req protocol.TreeReq) (protocol.KeyRes, error) {
	t, err := ctx.Session.GetTree(req.Tree)
	if err != nil {
		return protocol.KeyRes{}, err
	}
	k, err := ctx.Session.Repo().Save(t)
	return protocol.KeyRes{Key: k}, err
}

func handleTreeSave(ctx *HandlerContext, req protocol.TreeReq) (protocol.KeyRes, error) {
	return handleTreeKey(ctx, req)
}

func handleTreeToLocal(ctx *HandlerContext, req protocol.TreeReq) (protocol.ToLocalRes, error) {
	t, err := ctx.Session.GetTree(req.Tree)
	if err != nil {
		return protocol.ToLocalRes{}, err
	}
	local, err := ctx.Session.Repo().ToLocal(t)
	if err != nil {
		return protocol.ToLocalRes{}, err
	}
	return protocol.ToLocalRes{Root: protocol.LocalNodeToWire(local)}, nil
}

func handleTreeOfPath(ctx *HandlerContext, req protocol.TreeOfPathReq) (protocol.FoundHandleRes, error) {
	tree, _, err := headTree(ctx, ctx.Session.Branch())
	if err != nil {
		return protocol.FoundHandleRes{}, err
	}
	sub, ok, err := ctx.Session.Repo().TreeAt(tree, req.Path)
	if err != nil || !ok {
		return protocol.FoundHandleRes{}, err
	}
	return protocol.FoundHandleRes{Handle: ctx.Session.AllocTree(sub), Found: true}, nil
}

func handleTreeOfHash(ctx *HandlerContext, req protocol.TreeOfHashReq) (protocol.HandleRes, error) {
	t, err := ctx.Session.Repo().TreeOfHash(req.Hash)
	if err != nil {
		return protocol.HandleRes{}, err
	}
	return protocol.HandleRes{Handle: ctx.Session.AllocTree(t)}, nil
}

func handleTreeOfCommit(ctx *HandlerContext, req protocol.TreeOfHashReq) (protocol.HandleRes, error) {
	t, err := ctx.Session.Repo().TreeOfCommit(req.Hash)
	if err != nil {
		return protocol.HandleRes{}, err
	}
	return protocol.HandleRes{Handle: ctx.Session.AllocTree(t)}, nil
}

func handleTreeMerge(ctx *HandlerContext, req protocol.TreeMergeReq) (protocol.HandleRes, error) {
	var base *merkle.Tree
	if req.Base != nil {
		var err error
		base, err = ctx.Session.GetTree(*req.Base)
		if err != nil {
			return protocol.HandleRes{}, err
		}
	}
	ours, err := ctx.Session.GetTree(req.Ours)
	if err != nil {
		return protocol.HandleRes{}, err
	}
	theirs, err := ctx.Session.GetTree(req.Theirs)
	if err != nil {
		return protocol.HandleRes{}, err
	}

	merged, err := ctx.Session.Repo().TreeMerge(base, ours, theirs)
	if err != nil {
		return protocol.HandleRes{}, err
	}
	return protocol.HandleRes{Handle: ctx.Session.AllocTree(merged)}, nil
}

func handleTreeAbort(ctx *HandlerContext, req protocol.TreeReq) (struct{}, error) {
	ctx.Session.CleanupTree(req.Tree)
	return struct{}{}, nil
}

func handleTreeCleanup(ctx *HandlerContext, req protocol.TreeReq) (struct{}, error) {
	ctx.Session.CleanupTree(req.Tree)
	return struct{}{}, nil
}

func handleTreeCleanupAll(ctx *HandlerContext, _ struct{}) (struct{}, error) {
	ctx.Session.CleanupAllTrees()
	return struct{}{}, nil
}

// --- Repo -------------------------------------------------------------

// handleExport ignores req.Depth: it always walks the full ancestry of
// every branch head.
func handleExport(ctx *HandlerContext, req protocol.ExportReq) (protocol.ExportRes, error) {
	repo := ctx.Session.Repo()
	names, err := repo.BranchList()
	if err != nil {
		return protocol.ExportRes{}, err
	}
	roots := make([]merkle.CommitKey, 0, len(names))
	for _, name := range names {
		key, ok, err := repo.BranchFind(name)
		if err != nil {
			return protocol.ExportRes{}, err
		}
		if ok {
			roots = append(roots, key)
		}
	}
	slice, err := repo.Export(roots)
	return protocol.ExportRes{Slice: slice}, err
}

func handleImport(ctx *HandlerContext, req protocol.ImportReq) (struct{}, error) {
	err := ctx.Session.Repo().Import(req.Slice)
	return struct{}{}, err
}

func handleNewCommit(ctx *HandlerContext, req protocol.NewCommitReq) (protocol.NewCommitRes, error) {
	t, err := ctx.Session.GetTree(req.Tree)
	if err != nil {
		return protocol.NewCommitRes{}, err
	}
	repo := ctx.Session.Repo()
	treeKey, err := repo.Save(t)
	if err != nil {
		return protocol.NewCommitRes{}, err
	}
	parents := make([]merkle.CommitKey, len(req.Parents))
	for i, h := range req.Parents {
		parents[i] = merkle.Key{Kind: merkle.KindCommit, Hash: h}
	}
	commitKey, err := repo.NewCommit(req.Info, parents, treeKey)
	return protocol.NewCommitRes{Commit: commitKey.Hash}, err
}

// --- Backend passthrough: Contents/Node/Commit --------------------------
//
// Each of the three object kinds exposes the same Mem/Find/Add/Unsafe_add/
// Index/Merge surface (§4.7); these are parameterized once by Kind and
// registered three times below rather than duplicated per kind.

func handleObjectMem(kind merkle.Kind) func(*HandlerContext, protocol.HashReq) (protocol.OkRes, error) {
	return func(ctx *HandlerContext, req protocol.HashReq) (protocol.OkRes, error) {
		ok, err := ctx.Session.Repo().StoreFor(kind).Mem(req.Hash)
		return protocol.OkRes{Ok: ok}, err
	}
}

func handleObjectFind(kind merkle.Kind) func(*HandlerContext, protocol.HashReq) (protocol.FoundDataRes, error) {
	return func(ctx *HandlerContext, req protocol.HashReq) (protocol.FoundDataRes, error) {
		data, ok, err := ctx.Session.Repo().StoreFor(kind).Find(req.Hash)
		return protocol.FoundDataRes{Data: data, Found: ok}, err
	}
}

func handleObjectAdd(kind merkle.Kind) func(*HandlerContext, protocol.AddReq) (protocol.KeyRes, error) {
	return func(ctx *HandlerContext, req protocol.AddReq) (protocol.KeyRes, error) {
		key, err := ctx.Session.Repo().StoreFor(kind).Add(req.Data, req.Deps...)
		return protocol.KeyRes{Key: key}, err
	}
}

func handleObjectUnsafeAdd(kind merkle.Kind) func(*HandlerContext, protocol.UnsafeAddReq) (protocol.KeyRes, error) {
	return func(ctx *HandlerContext, req protocol.UnsafeAddReq) (protocol.KeyRes, error) {
		key, err := ctx.Session.Repo().StoreFor(kind).UnsafeAdd(req.Hash, req.Data, req.Deps...)
		return protocol.KeyRes{Key: key}, err
	}
}

func handleObjectIndex(kind merkle.Kind) func(*HandlerContext, protocol.HashReq) (protocol.FoundKeyRes, error) {
	return func(ctx *HandlerContext, req protocol.HashReq) (protocol.FoundKeyRes, error) {
		key, ok, err := ctx.Session.Repo().StoreFor(kind).Index(req.Hash)
		return protocol.FoundKeyRes{Key: key, Found: ok}, err
	}
}

// handleObjectMerge indexes the caller-supplied Slice by hash (regardless
// of the Kind tag each entry carries, since ObjectStore.Merge's fetch
// callback only ever asks for a bare Hash) and lets Merge pull in
// whatever dependency chain it needs from that one bulk payload.
func handleObjectMerge(kind merkle.Kind) func(*HandlerContext, protocol.ObjectMergeReq) (protocol.KeyRes, error) {
	return func(ctx *HandlerContext, req protocol.ObjectMergeReq) (protocol.KeyRes, error) {
		byHash := make(map[merkle.Hash]merkle.SliceEntry, len(req.Slice.Entries))
		for _, e := range req.Slice.Entries {
			byHash[e.Key.Hash] = e
		}

		fetch := func(h merkle.Hash) ([]byte, []merkle.Hash, bool, error) {
			e, ok := byHash[h]
			if !ok {
				return nil, nil, false, nil
			}
			deps, err := merkle.DepsOf(e.Key, e.Data)
			if err != nil {
				return nil, nil, false, err
			}
			depHashes := make([]merkle.Hash, len(deps))
			for i, d := range deps {
				depHashes[i] = d.Hash
			}
			return e.Data, depHashes, true, nil
		}

		key, err := ctx.Session.Repo().StoreFor(kind).Merge(req.Hash, fetch)
		return protocol.KeyRes{Key: key}, err
	}
}

// --- Backend passthrough: Branch -----------------------------------

func handleBranchMem(ctx *HandlerContext, req protocol.BranchNameReq) (protocol.OkRes, error) {
	ok, err := ctx.Session.Repo().BranchMem(merkle.BranchName(req.Name))
	return protocol.OkRes{Ok: ok}, err
}

func handleBranchFind(ctx *HandlerContext, req protocol.BranchNameReq) (protocol.BranchFindRes, error) {
	key, ok, err := ctx.Session.Repo().BranchFind(merkle.BranchName(req.Name))
	if err != nil || !ok {
		return protocol.BranchFindRes{}, err
	}
	h := key.Hash
	return protocol.BranchFindRes{Commit: &h}, nil
}

func handleBranchSet(ctx *HandlerContext, req protocol.BranchSetReq) (struct{}, error) {
	err := ctx.Session.Repo().BranchSet(merkle.BranchName(req.Name), merkle.Key{Kind: merkle.KindCommit, Hash: req.Commit})
	return struct{}{}, err
}

func handleBranchTestAndSet(ctx *HandlerContext, req protocol.BranchTestAndSetReq) (protocol.OkRes, error) {
	var test, set *merkle.Key
	if req.Test != nil {
		k := merkle.Key{Kind: merkle.KindCommit, Hash: *req.Test}
		test = &k
	}
	if req.Set != nil {
		k := merkle.Key{Kind: merkle.KindCommit, Hash: *req.Set}
		set = &k
	}
	ok, err := ctx.Session.Repo().BranchTestAndSet(merkle.BranchName(req.Name), test, set)
	return protocol.OkRes{Ok: ok}, err
}

func handleBranchRemove(ctx *HandlerContext, req protocol.BranchNameReq) (struct{}, error) {
	err := ctx.Session.Repo().BranchRemove(merkle.BranchName(req.Name))
	return struct{}{}, err
}

func handleBranchList(ctx *HandlerContext, _ struct{}) (protocol.NamesRes, error) {
	names, err := ctx.Session.Repo().BranchList()
	if err != nil {
		return protocol.NamesRes{}, err
	}
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = string(n)
	}
	return protocol.NamesRes{Names: out}, nil
}

func handleBranchClear(ctx *HandlerContext, _ struct{}) (struct{}, error) {
	err := ctx.Session.Repo().BranchClear()
	return struct{}{}, err
}

func handleBranchWatch(ctx *HandlerContext, _ struct{}) (struct{}, error) {
	err := ctx.Session.installWatchAll()
	return struct{}{}, err
}

func handleBranchWatchKey(ctx *HandlerContext, req protocol.BranchNameReq) (struct{}, error) {
	err := ctx.Session.installWatchKey(merkle.BranchName(req.Name))
	return struct{}{}, err
}

func handleBranchUnwatch(ctx *HandlerContext, _ struct{}) (struct{}, error) {
	ctx.Session.unwatchAll()
	return struct{}{}, nil
}

// Commands is the process-wide registry built once at startup (§9's
// "Global mutable state" note: construct once, never mutate at request
// time). Dispatch looks commands up by name here.
var Commands = rpc.NewRegistry[*HandlerContext](
	rpc.Register(protocol.CmdPing, wire.Unit, wire.Unit, handlePing),

	rpc.Register(protocol.CmdSetCurrentBranch, protocol.SetCurrentBranchReqCodec, wire.Unit, handleSetCurrentBranch),
	rpc.Register(protocol.CmdGetCurrentBranch, wire.Unit, protocol.GetCurrentBranchResCodec, handleGetCurrentBranch),
	rpc.Register(protocol.CmdHead, protocol.HeadReqCodec, protocol.HeadResCodec, handleHead),
	rpc.Register(protocol.CmdSetHead, protocol.SetHeadReqCodec, wire.Unit, handleSetHead),
	rpc.Register(protocol.CmdRemoveBranch, protocol.RemoveBranchReqCodec, wire.Unit, handleRemoveBranch),

	rpc.Register(protocol.CmdFind, protocol.PathReqCodec, protocol.FoundContentsResCodec, handleFind),
	rpc.Register(protocol.CmdMem, protocol.PathReqCodec, protocol.OkResCodec, handleMem),
	rpc.Register(protocol.CmdMemTree, protocol.PathReqCodec, protocol.OkResCodec, handleMemTree),
	rpc.Register(protocol.CmdFindTree, protocol.PathReqCodec, protocol.FoundHandleResCodec, handleFindTree),
	rpc.Register(protocol.CmdSet, protocol.SetReqCodec, wire.Unit, handleSet),
	rpc.Register(protocol.CmdSetTree, protocol.SetTreeReqCodec, wire.Unit, handleSetTree),
	rpc.Register(protocol.CmdRemove, protocol.RemoveReqCodec, wire.Unit, handleRemove),
	rpc.Register(protocol.CmdTestAndSet, protocol.TestAndSetReqCodec, protocol.OkResCodec, handleTestAndSet),
	rpc.Register(protocol.CmdTestAndSetTree, protocol.TestAndSetTreeReqCodec, protocol.OkResCodec, handleTestAndSetTree),

	rpc.Register(protocol.CmdTreeEmpty, wire.Unit, protocol.HandleResCodec, handleTreeEmpty),
	rpc.Register(protocol.CmdTreeAdd, protocol.TreeAddReqCodec, protocol.HandleResCodec, handleTreeAdd),
	rpc.Register(protocol.CmdTreeRemove, protocol.TreePathReqCodec, protocol.HandleResCodec, handleTreeRemove),
	rpc.Register(protocol.CmdTreeAddTree, protocol.TreeAddTreeReqCodec, protocol.HandleResCodec, handleTreeAddTree),
	rpc.Register(protocol.CmdTreeBatchApply, protocol.TreeBatchApplyReqCodec, protocol.HandleResCodec, handleTreeBatchApply),
	rpc.Register(protocol.CmdTreeFind, protocol.TreePathReqCodec, protocol.FoundContentsResCodec, handleTreeFind),
	rpc.Register(protocol.CmdTreeMem, protocol.TreePathReqCodec, protocol.OkResCodec, handleTreeMem),
	rpc.Register(protocol.CmdTreeMemTree, protocol.TreePathReqCodec, protocol.OkResCodec, handleTreeMemTree),
	rpc.Register(protocol.CmdTreeList, protocol.TreePathReqCodec, protocol.ListResCodec, handleTreeList),
	rpc.Register(protocol.CmdTreeHash, protocol.TreeReqCodec, protocol.HashResCodec, handleTreeHash),
	rpc.Register(protocol.CmdTreeKey, protocol.TreeReqCodec, protocol.KeyResCodec, handleTreeKey),
	rpc.Register(protocol.CmdTreeToLocal, protocol.TreeReqCodec, protocol.ToLocalResCodec, handleTreeToLocal),
	rpc.Register(protocol.CmdTreeOfPath, protocol.TreeOfPathReqCodec, protocol.FoundHandleResCodec, handleTreeOfPath),
	rpc.Register(protocol.CmdTreeOfHash, protocol.TreeOfHashReqCodec, protocol.HandleResCodec, handleTreeOfHash),
	rpc.Register(protocol.CmdTreeOfCommit, protocol.TreeOfHashReqCodec, protocol.HandleResCodec, handleTreeOfCommit),
	rpc.Register(protocol.CmdTreeSave, protocol.TreeReqCodec, protocol.KeyResCodec, handleTreeSave),
	rpc.Register(protocol.CmdTreeMerge, protocol.TreeMergeReqCodec, protocol.HandleResCodec, handleTreeMerge),
	rpc.Register(protocol.CmdTreeAbort, protocol.TreeReqCodec, wire.Unit, handleTreeAbort),
	rpc.Register(protocol.CmdTreeCleanup, protocol.TreeReqCodec, wire.Unit, handleTreeCleanup),
	rpc.Register(protocol.CmdTreeCleanupAll, wire.Unit, wire.Unit, handleTreeCleanupAll),

	rpc.Register(protocol.CmdExport, protocol.ExportReqCodec, protocol.ExportResCodec, handleExport),
	rpc.Register(protocol.CmdImport, protocol.ImportReqCodec, wire.Unit, handleImport),
	rpc.Register(protocol.CmdNewCommit, protocol.NewCommitReqCodec, protocol.NewCommitResCodec, handleNewCommit),

	rpc.Register(protocol.CmdContentsMem, protocol.HashReqCodec, protocol.OkResCodec, handleObjectMem(merkle.KindContents)),
	rpc.Register(protocol.CmdContentsFind, protocol.HashReqCodec, protocol.FoundDataResCodec, handleObjectFind(merkle.KindContents)),
	rpc.Register(protocol.CmdContentsAdd, protocol.AddReqCodec, protocol.KeyResCodec, handleObjectAdd(merkle.KindContents)),
	rpc.Register(protocol.CmdContentsUnsafeAdd, protocol.UnsafeAddReqCodec, protocol.KeyResCodec, handleObjectUnsafeAdd(merkle.KindContents)),
	rpc.Register(protocol.CmdContentsIndex, protocol.HashReqCodec, protocol.FoundKeyResCodec, handleObjectIndex(merkle.KindContents)),
	rpc.Register(protocol.CmdContentsMerge, protocol.ObjectMergeReqCodec, protocol.KeyResCodec, handleObjectMerge(merkle.KindContents)),

	rpc.Register(protocol.CmdNodeMem, protocol.HashReqCodec, protocol.OkResCodec, handleObjectMem(merkle.KindNode)),
	rpc.Register(protocol.CmdNodeFind, protocol.HashReqCodec, protocol.FoundDataResCodec, handleObjectFind(merkle.KindNode)),
	rpc.Register(protocol.CmdNodeAdd, protocol.AddReqCodec, protocol.KeyResCodec, handleObjectAdd(merkle.KindNode)),
	rpc.Register(protocol.CmdNodeUnsafeAdd, protocol.UnsafeAddReqCodec, protocol.KeyResCodec, handleObjectUnsafeAdd(merkle.KindNode)),
	rpc.Register(protocol.CmdNodeIndex, protocol.HashReqCodec, protocol.FoundKeyResCodec, handleObjectIndex(merkle.KindNode)),
	rpc.Register(protocol.CmdNodeMerge, protocol.ObjectMergeReqCodec, protocol.KeyResCodec, handleObjectMerge(merkle.KindNode)),

	rpc.Register(protocol.CmdCommitMem, protocol.HashReqCodec, protocol.OkResCodec, handleObjectMem(merkle.KindCommit)),
	rpc.Register(protocol.CmdCommitFind, protocol.HashReqCodec, protocol.FoundDataResCodec, handleObjectFind(merkle.KindCommit)),
	rpc.Register(protocol.CmdCommitAdd, protocol.AddReqCodec, protocol.KeyResCodec, handleObjectAdd(merkle.KindCommit)),
	rpc.Register(protocol.CmdCommitUnsafeAdd, protocol.UnsafeAddReqCodec, protocol.KeyResCodec, handleObjectUnsafeAdd(merkle.KindCommit)),
	rpc.Register(protocol.CmdCommitIndex, protocol.HashReqCodec, protocol.FoundKeyResCodec, handleObjectIndex(merkle.KindCommit)),
	rpc.Register(protocol.CmdCommitMerge, protocol.ObjectMergeReqCodec, protocol.KeyResCodec, handleObjectMerge(merkle.KindCommit)),

	rpc.Register(protocol.CmdBranchMem, protocol.BranchNameReqCodec, protocol.OkResCodec, handleBranchMem),
	rpc.Register(protocol.CmdBranchFind, protocol.BranchNameReqCodec, protocol.BranchFindResCodec, handleBranchFind),
	rpc.Register(protocol.CmdBranchSet, protocol.BranchSetReqCodec, wire.Unit, handleBranchSet),
	rpc.Register(protocol.CmdBranchTestAndSet, protocol.BranchTestAndSetReqCodec, protocol.OkResCodec, handleBranchTestAndSet),
	rpc.Register(protocol.CmdBranchRemove, protocol.BranchNameReqCodec, wire.Unit, handleBranchRemove),
	rpc.Register(protocol.CmdBranchList, wire.Unit, protocol.NamesResCodec, handleBranchList),
	rpc.Register(protocol.CmdBranchClear, wire.Unit, wire.Unit, handleBranchClear),
	rpc.Register(protocol.CmdBranchWatch, wire.Unit, wire.Unit, handleBranchWatch),
	rpc.Register(protocol.CmdBranchWatchKey, protocol.BranchNameReqCodec, wire.Unit, handleBranchWatchKey),
	rpc.Register(protocol.CmdBranchUnwatch, wire.Unit, wire.Unit, handleBranchUnwatch),
)
