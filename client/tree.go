package client

import (
	"github.com/msg555/vericas/merkle"
	"github.com/msg555/vericas/protocol"
	"github.com/msg555/vericas/wire"
)

// Tree is the client-side pair §4.6 describes: (session_handle,
// server_identifier). Every method routes a request to the Client that
// produced it. A Tree is not tied to the connection it was created on:
// once that Client has reconnected, or been closed and then used again,
// the handle is sent as is to the new server session, and no client-side
// check rejects it first.
type Tree struct {
	client *Client
	handle protocol.TreeHandle
}

func (c *Client) treeOf(h protocol.TreeHandle) *Tree {
	return &Tree{client: c, handle: h}
}

// Empty allocates a new handle to an empty tree (§4.7).
func (c *Client) Empty() (*Tree, error) {
	res, err := call(c, protocol.CmdTreeEmpty, wire.Unit, protocol.HandleResCodec, struct{}{})
	if err != nil {
		return nil, err
	}
	return c.treeOf(res.Handle), nil
}

// OfPath hydrates a handle from the current branch's tree at path.
func (c *Client) OfPath(path merkle.Path) (*Tree, bool, error) {
	res, err := call(c, protocol.CmdTreeOfPath, protocol.TreeOfPathReqCodec, protocol.FoundHandleResCodec, protocol.TreeOfPathReq{Path: path})
	if err != nil || !res.Found {
		return nil, res.Found, err
	}
	return c.treeOf(res.Handle), true, nil
}

func (c *Client) OfHash(hash merkle.Hash) (*Tree, error) {
	res, err := call(c, protocol.CmdTreeOfHash, protocol.TreeOfHashReqCodec, protocol.HandleResCodec, protocol.TreeOfHashReq{Hash: hash})
	if err != nil {
		return nil, err
	}
	return c.treeOf(res.Handle), nil
}

func (c *Client) OfCommit(hash merkle.Hash) (*Tree, error) {
	res, err := call(c, protocol.CmdTreeOfCommit, protocol.TreeOfHashReqCodec, protocol.HandleResCodec, protocol.TreeOfHashReq{Hash: hash})
	if err != nil {
		return nil, err
	}
	return c.treeOf(res.Handle), nil
}

// Merge performs the three-way merge §4.7 describes; base may be nil. A
// conflict surfaces as a *RemoteError carrying the server's rendered
// message (see server's isRecoverable handling of *merkle.MergeConflictError).
func (c *Client) Merge(base, ours, theirs *Tree) (*Tree, error) {
	req := protocol.TreeMergeReq{Ours: ours.handle, Theirs: theirs.handle}
	if base != nil {
		req.Base = &base.handle
	}
	res, err := call(ours.client, protocol.CmdTreeMerge, protocol.TreeMergeReqCodec, protocol.HandleResCodec, req)
	if err != nil {
		return nil, err
	}
	return ours.client.treeOf(res.Handle), nil
}

func (t *Tree) Add(path merkle.Path, contents []byte) (*Tree, error) {
	res, err := call(t.client, protocol.CmdTreeAdd, protocol.TreeAddReqCodec, protocol.HandleResCodec, protocol.TreeAddReq{Tree: t.handle, Path: path, Contents: contents})
	if err != nil {
		return nil, err
	}
	return t.client.treeOf(res.Handle), nil
}

func (t *Tree) Remove(path merkle.Path) (*Tree, error) {
	res, err := call(t.client, protocol.CmdTreeRemove, protocol.TreePathReqCodec, protocol.HandleResCodec, protocol.TreePathReq{Tree: t.handle, Path: path})
	if err != nil {
		return nil, err
	}
	return t.client.treeOf(res.Handle), nil
}

func (t *Tree) AddTree(path merkle.Path, sub *Tree) (*Tree, error) {
	res, err := call(t.client, protocol.CmdTreeAddTree, protocol.TreeAddTreeReqCodec, protocol.HandleResCodec, protocol.TreeAddTreeReq{Tree: t.handle, Path: path, Sub: sub.handle})
	if err != nil {
		return nil, err
	}
	return t.client.treeOf(res.Handle), nil
}

// TreeOp is one step of BatchApply, mirroring protocol.TreeOpWire but
// expressed in terms of client Trees rather than raw handles.
type TreeOp struct {
	Path     merkle.Path
	IsRemove bool
	Contents []byte
	Sub      *Tree
}

func (t *Tree) BatchApply(ops []TreeOp) (*Tree, error) {
	wireOps := make([]protocol.TreeOpWire, len(ops))
	for i, op := range ops {
		w := protocol.TreeOpWire{Path: op.Path, IsRemove: op.IsRemove, Contents: op.Contents}
		if op.Sub != nil {
			w.HasSub = true
			h := op.Sub.handle
			w.Sub = &h
		}
		wireOps[i] = w
	}
	res, err := call(t.client, protocol.CmdTreeBatchApply, protocol.TreeBatchApplyReqCodec, protocol.HandleResCodec, protocol.TreeBatchApplyReq{Tree: t.handle, Ops: wireOps})
	if err != nil {
		return nil, err
	}
	return t.client.treeOf(res.Handle), nil
}

func (t *Tree) Find(path merkle.Path) ([]byte, bool, error) {
	res, err := call(t.client, protocol.CmdTreeFind, protocol.TreePathReqCodec, protocol.FoundContentsResCodec, protocol.TreePathReq{Tree: t.handle, Path: path})
	return res.Contents, res.Found, err
}

func (t *Tree) Mem(path merkle.Path) (bool, error) {
	res, err := call(t.client, protocol.CmdTreeMem, protocol.TreePathReqCodec, protocol.OkResCodec, protocol.TreePathReq{Tree: t.handle, Path: path})
	return res.Ok, err
}

func (t *Tree) MemTree(path merkle.Path) (bool, error) {
	res, err := call(t.client, protocol.CmdTreeMemTree, protocol.TreePathReqCodec, protocol.OkResCodec, protocol.TreePathReq{Tree: t.handle, Path: path})
	return res.Ok, err
}

func (t *Tree) List(path merkle.Path) ([]merkle.ListEntry, error) {
	res, err := call(t.client, protocol.CmdTreeList, protocol.TreePathReqCodec, protocol.ListResCodec, protocol.TreePathReq{Tree: t.handle, Path: path})
	return res.Entries, err
}

func (t *Tree) Hash() (merkle.Hash, error) {
	res, err := call(t.client, protocol.CmdTreeHash, protocol.TreeReqCodec, protocol.HashResCodec, protocol.TreeReq{Tree: t.handle})
	return res.Hash, err
}

func (t *Tree) Key() (merkle.Key, error) {
	res, err := call(t.client, protocol.CmdTreeKey, protocol.TreeReqCodec, protocol.KeyResCodec, protocol.TreeReq{Tree: t.handle})
	return res.Key, err
}

func (t *Tree) Save() (merkle.Key, error) {
	res, err := call(t.client, protocol.CmdTreeSave, protocol.TreeReqCodec, protocol.KeyResCodec, protocol.TreeReq{Tree: t.handle})
	return res.Key, err
}

func (t *Tree) ToLocal() (merkle.LocalNode, error) {
	res, err := call(t.client, protocol.CmdTreeToLocal, protocol.TreeReqCodec, protocol.ToLocalResCodec, protocol.TreeReq{Tree: t.handle})
	if err != nil {
		return merkle.LocalNode{}, err
	}
	return protocol.WireToLocalNode(res.Root), nil
}

func (t *Tree) Abort() error {
	_, err := call(t.client, protocol.CmdTreeAbort, protocol.TreeReqCodec, wire.Unit, protocol.TreeReq{Tree: t.handle})
	return err
}

func (t *Tree) Cleanup() error {
	_, err := call(t.client, protocol.CmdTreeCleanup, protocol.TreeReqCodec, wire.Unit, protocol.TreeReq{Tree: t.handle})
	return err
}

func (c *Client) CleanupAllTrees() error {
	_, err := call(c, protocol.CmdTreeCleanupAll, wire.Unit, wire.Unit, struct{}{})
	return err
}
