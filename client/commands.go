package client

import (
	"github.com/msg555/vericas/merkle"
	"github.com/msg555/vericas/protocol"
	"github.com/msg555/vericas/wire"
)

// --- Branch ----------------------------------------------------------

func (c *Client) SetCurrentBranch(branch string) error {
	_, err := call(c, protocol.CmdSetCurrentBranch, protocol.SetCurrentBranchReqCodec, wire.Unit, protocol.SetCurrentBranchReq{Branch: branch})
	return err
}

func (c *Client) GetCurrentBranch() (string, error) {
	res, err := call(c, protocol.CmdGetCurrentBranch, wire.Unit, protocol.GetCurrentBranchResCodec, struct{}{})
	return res.Branch, err
}

// Head returns the current commit of branch, or of the session's current
// branch if branch is nil. A nil *merkle.Hash result means the branch has
// no commits yet.
func (c *Client) Head(branch *string) (*merkle.Hash, error) {
	res, err := call(c, protocol.CmdHead, protocol.HeadReqCodec, protocol.HeadResCodec, protocol.HeadReq{Branch: branch})
	return res.Commit, err
}

func (c *Client) SetHead(branch *string, commit merkle.Hash) error {
	_, err := call(c, protocol.CmdSetHead, protocol.SetHeadReqCodec, wire.Unit, protocol.SetHeadReq{Branch: branch, Commit: commit})
	return err
}

func (c *Client) RemoveBranch(branch string) error {
	_, err := call(c, protocol.CmdRemoveBranch, protocol.RemoveBranchReqCodec, wire.Unit, protocol.RemoveBranchReq{Branch: branch})
	return err
}

// --- Store (current branch) ------------------------------------------

func (c *Client) Find(path merkle.Path) ([]byte, bool, error) {
	res, err := call(c, protocol.CmdFind, protocol.PathReqCodec, protocol.FoundContentsResCodec, protocol.PathReq{Path: path})
	return res.Contents, res.Found, err
}

func (c *Client) Mem(path merkle.Path) (bool, error) {
	res, err := call(c, protocol.CmdMem, protocol.PathReqCodec, protocol.OkResCodec, protocol.PathReq{Path: path})
	return res.Ok, err
}

func (c *Client) MemTree(path merkle.Path) (bool, error) {
	res, err := call(c, protocol.CmdMemTree, protocol.PathReqCodec, protocol.OkResCodec, protocol.PathReq{Path: path})
	return res.Ok, err
}

func (c *Client) FindTree(path merkle.Path) (*Tree, bool, error) {
	res, err := call(c, protocol.CmdFindTree, protocol.PathReqCodec, protocol.FoundHandleResCodec, protocol.PathReq{Path: path})
	if err != nil || !res.Found {
		return nil, res.Found, err
	}
	return c.treeOf(res.Handle), true, nil
}

func (c *Client) Set(path merkle.Path, info merkle.Info, contents []byte) error {
	_, err := call(c, protocol.CmdSet, protocol.SetReqCodec, wire.Unit, protocol.SetReq{Path: path, Info: info, Contents: contents})
	return err
}

func (c *Client) SetTree(path merkle.Path, info merkle.Info, t *Tree) error {
	_, err := call(c, protocol.CmdSetTree, protocol.SetTreeReqCodec, wire.Unit, protocol.SetTreeReq{Path: path, Info: info, Tree: t.handle})
	return err
}

func (c *Client) Remove(path merkle.Path, info merkle.Info) error {
	_, err := call(c, protocol.CmdRemove, protocol.RemoveReqCodec, wire.Unit, protocol.RemoveReq{Path: path, Info: info})
	return err
}

// TestAndSet performs the compare-and-swap §4.7 describes. test == nil
// means "absent"; likewise for set (absent set means remove).
func (c *Client) TestAndSet(path merkle.Path, info merkle.Info, test, set []byte) (bool, error) {
	req := protocol.TestAndSetReq{Path: path, Info: info}
	if test != nil {
		req.Test, req.HasTest = test, true
	}
	if set != nil {
		req.Set, req.HasSet = set, true
	}
	res, err := call(c, protocol.CmdTestAndSet, protocol.TestAndSetReqCodec, protocol.OkResCodec, req)
	return res.Ok, err
}

func (c *Client) TestAndSetTree(path merkle.Path, info merkle.Info, test, set *Tree) (bool, error) {
	req := protocol.TestAndSetTreeReq{Path: path, Info: info}
	if test != nil {
		req.Test = &test.handle
	}
	if set != nil {
		req.Set = &set.handle
	}
	res, err := call(c, protocol.CmdTestAndSetTree, protocol.TestAndSetTreeReqCodec, protocol.OkResCodec, req)
	return res.Ok, err
}

// --- Repo --------------------------------------------------------------

func (c *Client) Export() (merkle.Slice, error) {
	res, err := call(c, protocol.CmdExport, protocol.ExportReqCodec, protocol.ExportResCodec, protocol.ExportReq{})
	return res.Slice, err
}

func (c *Client) Import(slice merkle.Slice) error {
	_, err := call(c, protocol.CmdImport, protocol.ImportReqCodec, wire.Unit, protocol.ImportReq{Slice: slice})
	return err
}

func (c *Client) NewCommit(info merkle.Info, parents []merkle.Hash, t *Tree) (merkle.Hash, error) {
	res, err := call(c, protocol.CmdNewCommit, protocol.NewCommitReqCodec, protocol.NewCommitResCodec, protocol.NewCommitReq{Info: info, Parents: parents, Tree: t.handle})
	return res.Commit, err
}

// --- Backend passthrough: Contents/Node/Commit --------------------------
//
// objectCmds maps a Kind to the six command names its passthrough surface
// uses; a single set of methods below dispatches through this table
// instead of repeating six near-identical methods per kind.

type objectCmdSet struct {
	mem, find, add, unsafeAdd, index, merge string
}

func objectCmds(kind merkle.Kind) objectCmdSet {
	switch kind {
	case merkle.KindContents:
		return objectCmdSet{protocol.CmdContentsMem, protocol.CmdContentsFind, protocol.CmdContentsAdd, protocol.CmdContentsUnsafeAdd, protocol.CmdContentsIndex, protocol.CmdContentsMerge}
	case merkle.KindNode:
		return objectCmdSet{protocol.CmdNodeMem, protocol.CmdNodeFind, protocol.CmdNodeAdd, protocol.CmdNodeUnsafeAdd, protocol.CmdNodeIndex, protocol.CmdNodeMerge}
	default:
		return objectCmdSet{protocol.CmdCommitMem, protocol.CmdCommitFind, protocol.CmdCommitAdd, protocol.CmdCommitUnsafeAdd, protocol.CmdCommitIndex, protocol.CmdCommitMerge}
	}
}

func (c *Client) ObjectMem(kind merkle.Kind, hash merkle.Hash) (bool, error) {
	res, err := call(c, objectCmds(kind).mem, protocol.HashReqCodec, protocol.OkResCodec, protocol.HashReq{Hash: hash})
	return res.Ok, err
}

func (c *Client) ObjectFind(kind merkle.Kind, hash merkle.Hash) ([]byte, bool, error) {
	res, err := call(c, objectCmds(kind).find, protocol.HashReqCodec, protocol.FoundDataResCodec, protocol.HashReq{Hash: hash})
	return res.Data, res.Found, err
}

func (c *Client) ObjectAdd(kind merkle.Kind, data []byte, deps ...merkle.Key) (merkle.Key, error) {
	res, err := call(c, objectCmds(kind).add, protocol.AddReqCodec, protocol.KeyResCodec, protocol.AddReq{Data: data, Deps: deps})
	return res.Key, err
}

func (c *Client) ObjectUnsafeAdd(kind merkle.Kind, hash merkle.Hash, data []byte, deps ...merkle.Key) (merkle.Key, error) {
	res, err := call(c, objectCmds(kind).unsafeAdd, protocol.UnsafeAddReqCodec, protocol.KeyResCodec, protocol.UnsafeAddReq{Hash: hash, Data: data, Deps: deps})
	return res.Key, err
}

func (c *Client) ObjectIndex(kind merkle.Kind, hash merkle.Hash) (merkle.Key, bool, error) {
	res, err := call(c, objectCmds(kind).index, protocol.HashReqCodec, protocol.FoundKeyResCodec, protocol.HashReq{Hash: hash})
	return res.Key, res.Found, err
}

func (c *Client) ObjectMerge(kind merkle.Kind, hash merkle.Hash, slice merkle.Slice) (merkle.Key, error) {
	res, err := call(c, objectCmds(kind).merge, protocol.ObjectMergeReqCodec, protocol.KeyResCodec, protocol.ObjectMergeReq{Hash: hash, Slice: slice})
	return res.Key, err
}

// --- Backend passthrough: Branch -----------------------------------

func (c *Client) BranchMem(name string) (bool, error) {
	res, err := call(c, protocol.CmdBranchMem, protocol.BranchNameReqCodec, protocol.OkResCodec, protocol.BranchNameReq{Name: name})
	return res.Ok, err
}

func (c *Client) BranchFind(name string) (*merkle.Hash, error) {
	res, err := call(c, protocol.CmdBranchFind, protocol.BranchNameReqCodec, protocol.BranchFindResCodec, protocol.BranchNameReq{Name: name})
	return res.Commit, err
}

func (c *Client) BranchSet(name string, commit merkle.Hash) error {
	_, err := call(c, protocol.CmdBranchSet, protocol.BranchSetReqCodec, wire.Unit, protocol.BranchSetReq{Name: name, Commit: commit})
	return err
}

func (c *Client) BranchTestAndSet(name string, test, set *merkle.Hash) (bool, error) {
	res, err := call(c, protocol.CmdBranchTestAndSet, protocol.BranchTestAndSetReqCodec, protocol.OkResCodec, protocol.BranchTestAndSetReq{Name: name, Test: test, Set: set})
	return res.Ok, err
}

func (c *Client) RemoveBranchName(name string) error {
	_, err := call(c, protocol.CmdBranchRemove, protocol.BranchNameReqCodec, wire.Unit, protocol.BranchNameReq{Name: name})
	return err
}

func (c *Client) BranchList() ([]string, error) {
	res, err := call(c, protocol.CmdBranchList, wire.Unit, protocol.NamesResCodec, struct{}{})
	return res.Names, err
}

func (c *Client) BranchClear() error {
	_, err := call(c, protocol.CmdBranchClear, wire.Unit, wire.Unit, struct{}{})
	return err
}

func (c *Client) BranchWatch() error {
	_, err := call(c, protocol.CmdBranchWatch, wire.Unit, wire.Unit, struct{}{})
	return err
}

func (c *Client) BranchWatchKey(name string) error {
	_, err := call(c, protocol.CmdBranchWatchKey, protocol.BranchNameReqCodec, wire.Unit, protocol.BranchNameReq{Name: name})
	return err
}

func (c *Client) BranchUnwatch() error {
	_, err := call(c, protocol.CmdBranchUnwatch, wire.Unit, wire.Unit, struct{}{})
	return err
}
