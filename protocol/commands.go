package protocol

import (
	"github.com/msg555/vericas/merkle"
	"github.com/msg555/vericas/wire"
)

// Command names, lowercase per §4.4/§6. These are the stable wire
// identifiers; renaming one is a protocol break.
const (
	CmdPing = "ping"

	CmdSetCurrentBranch = "set_current_branch"
	CmdGetCurrentBranch = "get_current_branch"
	CmdHead             = "head"
	CmdSetHead          = "set_head"
	CmdRemoveBranch     = "remove_branch"

	CmdFind          = "find"
	CmdMem           = "mem"
	CmdMemTree       = "mem_tree"
	CmdFindTree      = "find_tree"
	CmdSet           = "set"
	CmdSetTree       = "set_tree"
	CmdRemove        = "remove"
	CmdTestAndSet    = "test_and_set"
	CmdTestAndSetTree = "test_and_set_tree"

	CmdTreeEmpty      = "tree_empty"
	CmdTreeAdd        = "tree_add"
	CmdTreeRemove     = "tree_remove"
	CmdTreeAddTree    = "tree_add_tree"
	CmdTreeBatchApply = "tree_batch_apply"
	CmdTreeFind       = "tree_find"
	CmdTreeMem        = "tree_mem"
	CmdTreeMemTree    = "tree_mem_tree"
	CmdTreeList       = "tree_list"
	CmdTreeHash       = "tree_hash"
	CmdTreeKey        = "tree_key"
	CmdTreeToLocal    = "tree_to_local"
	CmdTreeOfPath     = "tree_of_path"
	CmdTreeOfHash     = "tree_of_hash"
	CmdTreeOfCommit   = "tree_of_commit"
	CmdTreeSave       = "tree_save"
	CmdTreeMerge      = "tree_merge"
	CmdTreeAbort      = "tree_abort"
	CmdTreeCleanup    = "tree_cleanup"
	CmdTreeCleanupAll = "tree_cleanup_all"

	CmdExport    = "export"
	CmdImport    = "import"
	CmdNewCommit = "new_commit"

	CmdContentsMem       = "contents_mem"
	CmdContentsFind      = "contents_find"
	CmdContentsAdd       = "contents_add"
	CmdContentsUnsafeAdd = "contents_unsafe_add"
	CmdContentsIndex     = "contents_index"
	CmdContentsMerge     = "contents_merge"

	CmdNodeMem       = "node_mem"
	CmdNodeFind      = "node_find"
	CmdNodeAdd       = "node_add"
	CmdNodeUnsafeAdd = "node_unsafe_add"
	CmdNodeIndex     = "node_index"
	CmdNodeMerge     = "node_merge"

	CmdCommitMem       = "commit_mem"
	CmdCommitFind      = "commit_find"
	CmdCommitAdd       = "commit_add"
	CmdCommitUnsafeAdd = "commit_unsafe_add"
	CmdCommitIndex     = "commit_index"
	CmdCommitMerge     = "commit_merge"

	CmdBranchMem       = "branch_mem"
	CmdBranchFind      = "branch_find"
	CmdBranchSet       = "branch_set"
	CmdBranchTestAndSet = "branch_test_and_set"
	CmdBranchRemove    = "branch_remove"
	CmdBranchList      = "branch_list"
	CmdBranchClear     = "branch_clear"
	CmdBranchWatch     = "branch_watch"
	CmdBranchWatchKey  = "branch_watch_key"
	CmdBranchUnwatch   = "branch_unwatch"

	// StatusWatchNotify is the reserved response status byte (§6) an async
	// watch push uses instead of 0 (ok) or 1 (err).
	StatusOK          uint8 = 0
	StatusErr         uint8 = 1
	StatusWatchNotify uint8 = 2
)

// --- Branch commands -------------------------------------------------

type SetCurrentBranchReq struct{ Branch string }
type HeadReq struct{ Branch *string }
type HeadRes struct{ Commit *merkle.Hash }
type SetHeadReq struct {
	Branch *string
	Commit merkle.Hash
}
type RemoveBranchReq struct{ Branch string }
type GetCurrentBranchRes struct{ Branch string }

var SetCurrentBranchReqCodec = wire.Codec[SetCurrentBranchReq]{
	Encode: func(w *wire.Writer, v SetCurrentBranchReq) error { return w.WriteString(v.Branch) },
	Decode: func(r *wire.Reader) (SetCurrentBranchReq, error) {
		b, err := r.ReadString()
		return SetCurrentBranchReq{Branch: b}, err
	},
}

var GetCurrentBranchResCodec = wire.Codec[GetCurrentBranchRes]{
	Encode: func(w *wire.Writer, v GetCurrentBranchRes) error { return w.WriteString(v.Branch) },
	Decode: func(r *wire.Reader) (GetCurrentBranchRes, error) {
		b, err := r.ReadString()
		return GetCurrentBranchRes{Branch: b}, err
	},
}

var optionalStringCodec = wire.Option(wire.String)

var HeadReqCodec = wire.Codec[HeadReq]{
	Encode: func(w *wire.Writer, v HeadReq) error { return optionalStringCodec.Encode(w, v.Branch) },
	Decode: func(r *wire.Reader) (HeadReq, error) {
		b, err := optionalStringCodec.Decode(r)
		return HeadReq{Branch: b}, err
	},
}

var HeadResCodec = wire.Codec[HeadRes]{
	Encode: func(w *wire.Writer, v HeadRes) error { return OptionalHashCodec.Encode(w, v.Commit) },
	Decode: func(r *wire.Reader) (HeadRes, error) {
		h, err := OptionalHashCodec.Decode(r)
		return HeadRes{Commit: h}, err
	},
}

var SetHeadReqCodec = wire.Codec[SetHeadReq]{
	Encode: func(w *wire.Writer, v SetHeadReq) error {
		if err := optionalStringCodec.Encode(w, v.Branch); err != nil {
			return err
		}
		return HashCodec.Encode(w, v.Commit)
	},
	Decode: func(r *wire.Reader) (SetHeadReq, error) {
		b, err := optionalStringCodec.Decode(r)
		if err != nil {
			return SetHeadReq{}, err
		}
		h, err := HashCodec.Decode(r)
		return SetHeadReq{Branch: b, Commit: h}, err
	},
}

var RemoveBranchReqCodec = wire.Codec[RemoveBranchReq]{
	Encode: func(w *wire.Writer, v RemoveBranchReq) error { return w.WriteString(v.Branch) },
	Decode: func(r *wire.Reader) (RemoveBranchReq, error) {
		b, err := r.ReadString()
		return RemoveBranchReq{Branch: b}, err
	},
}

// --- Store commands ----------------------------------------------------

type PathReq struct{ Path merkle.Path }
type OkRes struct{ Ok bool }
type ContentsRes struct{ Contents []byte }
type FoundContentsRes struct {
	Contents []byte
	Found    bool
}
type FoundHandleRes struct {
	Handle TreeHandle
	Found  bool
}
type SetReq struct {
	Path     merkle.Path
	Info     merkle.Info
	Contents []byte
}
type SetTreeReq struct {
	Path merkle.Path
	Info merkle.Info
	Tree TreeHandle
}
type RemoveReq struct {
	Path merkle.Path
	Info merkle.Info
}
type TestAndSetReq struct {
	Path merkle.Path
	Info merkle.Info
	Test []byte
	Set  []byte
	HasTest bool
	HasSet  bool
}
type TestAndSetTreeReq struct {
	Path    merkle.Path
	Info    merkle.Info
	Test    *TreeHandle
	Set     *TreeHandle
}

var PathReqCodec = wire.Codec[PathReq]{
	Encode: func(w *wire.Writer, v PathReq) error { return PathCodec.Encode(w, v.Path) },
	Decode: func(r *wire.Reader) (PathReq, error) {
		p, err := PathCodec.Decode(r)
		return PathReq{Path: p}, err
	},
}

var OkResCodec = wire.Codec[OkRes]{
	Encode: func(w *wire.Writer, v OkRes) error { return w.WriteBool(v.Ok) },
	Decode: func(r *wire.Reader) (OkRes, error) {
		ok, err := r.ReadBool()
		return OkRes{Ok: ok}, err
	},
}

var FoundContentsResCodec = wire.Codec[FoundContentsRes]{
	Encode: func(w *wire.Writer, v FoundContentsRes) error {
		if err := w.WriteBool(v.Found); err != nil {
			return err
		}
		if !v.Found {
			return nil
		}
		return w.WriteBytes(v.Contents)
	},
	Decode: func(r *wire.Reader) (FoundContentsRes, error) {
		found, err := r.ReadBool()
		if err != nil || !found {
			return FoundContentsRes{Found: found}, err
		}
		data, err := r.ReadBytes()
		return FoundContentsRes{Contents: data, Found: true}, err
	},
}

var FoundHandleResCodec = wire.Codec[FoundHandleRes]{
	Encode: func(w *wire.Writer, v FoundHandleRes) error {
		if err := w.WriteBool(v.Found); err != nil {
			return err
		}
		if !v.Found {
			return nil
		}
		return TreeHandleCodec.Encode(w, v.Handle)
	},
	Decode: func(r *wire.Reader) (FoundHandleRes, error) {
		found, err := r.ReadBool()
		if err != nil || !found {
			return FoundHandleRes{Found: found}, err
		}
		h, err := TreeHandleCodec.Decode(r)
		return FoundHandleRes{Handle: h, Found: true}, err
	},
}

var SetReqCodec = wire.Codec[SetReq]{
	Encode: func(w *wire.Writer, v SetReq) error {
		if err := PathCodec.Encode(w, v.Path); err != nil {
			return err
		}
		if err := InfoCodec.Encode(w, v.Info); err != nil {
			return err
		}
		return w.WriteBytes(v.Contents)
	},
	Decode: func(r *wire.Reader) (SetReq, error) {
		p, err := PathCodec.Decode(r)
		if err != nil {
			return SetReq{}, err
		}
		info, err := InfoCodec.Decode(r)
		if err != nil {
			return SetReq{}, err
		}
		data, err := r.ReadBytes()
		return SetReq{Path: p, Info: info, Contents: data}, err
	},
}

var SetTreeReqCodec = wire.Codec[SetTreeReq]{
	Encode: func(w *wire.Writer, v SetTreeReq) error {
		if err := PathCodec.Encode(w, v.Path); err != nil {
			return err
		}
		if err := InfoCodec.Encode(w, v.Info); err != nil {
			return err
		}
		return TreeHandleCodec.Encode(w, v.Tree)
	},
	Decode: func(r *wire.Reader) (SetTreeReq, error) {
		p, err := PathCodec.Decode(r)
		if err != nil {
			return SetTreeReq{}, err
		}
		info, err := InfoCodec.Decode(r)
		if err != nil {
			return SetTreeReq{}, err
		}
		h, err := TreeHandleCodec.Decode(r)
		return SetTreeReq{Path: p, Info: info, Tree: h}, err
	},
}

var RemoveReqCodec = wire.Codec[RemoveReq]{
	Encode: func(w *wire.Writer, v RemoveReq) error {
		if err := PathCodec.Encode(w, v.Path); err != nil {
			return err
		}
		return InfoCodec.Encode(w, v.Info)
	},
	Decode: func(r *wire.Reader) (RemoveReq, error) {
		p, err := PathCodec.Decode(r)
		if err != nil {
			return RemoveReq{}, err
		}
		info, err := InfoCodec.Decode(r)
		return RemoveReq{Path: p, Info: info}, err
	},
}

var optionalBytesCodec = wire.Option(wire.Bytes)

var TestAndSetReqCodec = wire.Codec[TestAndSetReq]{
	Encode: func(w *wire.Writer, v TestAndSetReq) error {
		if err := PathCodec.Encode(w, v.Path); err != nil {
			return err
		}
		if err := InfoCodec.Encode(w, v.Info); err != nil {
			return err
		}
		var test, set *[]byte
		if v.HasTest {
			test = &v.Test
		}
		if v.HasSet {
			set = &v.Set
		}
		if err := optionalBytesCodec.Encode(w, test); err != nil {
			return err
		}
		return optionalBytesCodec.Encode(w, set)
	},
	Decode: func(r *wire.Reader) (TestAndSetReq, error) {
		p, err := PathCodec.Decode(r)
		if err != nil {
			return TestAndSetReq{}, err
		}
		info, err := InfoCodec.Decode(r)
		if err != nil {
			return TestAndSetReq{}, err
		}
		test, err := optionalBytesCodec.Decode(r)
		if err != nil {
			return TestAndSetReq{}, err
		}
		set, err := optionalBytesCodec.Decode(r)
		if err != nil {
			return TestAndSetReq{}, err
		}
		out := TestAndSetReq{Path: p, Info: info}
		if test != nil {
			out.Test, out.HasTest = *test, true
		}
		if set != nil {
			out.Set, out.HasSet = *set, true
		}
		return out, nil
	},
}

var optionalHandleCodec = wire.Option(TreeHandleCodec)

var TestAndSetTreeReqCodec = wire.Codec[TestAndSetTreeReq]{
	Encode: func(w *wire.Writer, v TestAndSetTreeReq) error {
		if err := PathCodec.Encode(w, v.Path); err != nil {
			return err
		}
		if err := InfoCodec.Encode(w, v.Info); err != nil {
			return err
		}
		if err := optionalHandleCodec.Encode(w, v.Test); err != nil {
			return err
		}
		return optionalHandleCodec.Encode(w, v.Set)
	},
	Decode: func(r *wire.Reader) (TestAndSetTreeReq, error) {
		p, err := PathCodec.Decode(r)
		if err != nil {
			return TestAndSetTreeReq{}, err
		}
		info, err := InfoCodec.Decode(r)
		if err != nil {
			return TestAndSetTreeReq{}, err
		}
		test, err := optionalHandleCodec.Decode(r)
		if err != nil {
			return TestAndSetTreeReq{}, err
		}
		set, err := optionalHandleCodec.Decode(r)
		return TestAndSetTreeReq{Path: p, Info: info, Test: test, Set: set}, err
	},
}

// --- Tree commands -------------------------------------------------

type HandleRes struct{ Handle TreeHandle }
type TreeReq struct{ Tree TreeHandle }
type TreePathReq struct {
	Tree TreeHandle
	Path merkle.Path
}
type TreeAddReq struct {
	Tree     TreeHandle
	Path     merkle.Path
	Contents []byte
}
type TreeAddTreeReq struct {
	Tree TreeHandle
	Path merkle.Path
	Sub  TreeHandle
}
type TreeOpWire struct {
	Path     merkle.Path
	IsRemove bool
	Contents []byte
	Sub      *TreeHandle
	HasSub   bool
}
type TreeBatchApplyReq struct {
	Tree TreeHandle
	Ops  []TreeOpWire
}
type ListRes struct{ Entries []merkle.ListEntry }
type HashRes struct{ Hash merkle.Hash }
type KeyRes struct{ Key merkle.Key }
type TreeOfPathReq struct{ Path merkle.Path }
type TreeOfHashReq struct{ Hash merkle.Hash }
type TreeMergeReq struct {
	Base   *TreeHandle
	Ours   TreeHandle
	Theirs TreeHandle
}
type LocalNodeWire struct {
	IsLeaf   bool
	Contents []byte
	Children []LocalChildWire
}
type LocalChildWire struct {
	Name string
	Node LocalNodeWire
}
type ToLocalRes struct{ Root LocalNodeWire }

var HandleResCodec = wire.Codec[HandleRes]{
	Encode: func(w *wire.Writer, v HandleRes) error { return TreeHandleCodec.Encode(w, v.Handle) },
	Decode: func(r *wire.Reader) (HandleRes, error) {
		h, err := TreeHandleCodec.Decode(r)
		return HandleRes{Handle: h}, err
	},
}

var TreeReqCodec = wire.Codec[TreeReq]{
	Encode: func(w *wire.Writer, v TreeReq) error { return TreeHandleCodec.Encode(w, v.Tree) },
	Decode: func(r *wire.Reader) (TreeReq, error) {
		h, err := TreeHandleCodec.Decode(r)
		return TreeReq{Tree: h}, err
	},
}

var TreePathReqCodec = wire.Codec[TreePathReq]{
	Encode: func(w *wire.Writer, v TreePathReq) error {
		if err := TreeHandleCodec.Encode(w, v.Tree); err != nil {
			return err
		}
		return PathCodec.Encode(w, v.Path)
	},
	Decode: func(r *wire.Reader) (TreePathReq, error) {
		h, err := TreeHandleCodec.Decode(r)
		if err != nil {
			return TreePathReq{}, err
		}
		p, err := PathCodec.Decode(r)
		return TreePathReq{Tree: h, Path: p}, err
	},
}

var TreeAddReqCodec = wire.Codec[TreeAddReq]{
	Encode: func(w *wire.Writer, v TreeAddReq) error {
		if err := TreeHandleCodec.Encode(w, v.Tree); err != nil {
			return err
		}
		if err := PathCodec.Encode(w, v.Path); err != nil {
			return err
		}
		return w.WriteBytes(v.Contents)
	},
	Decode: func(r *wire.Reader) (TreeAddReq, error) {
		h, err := TreeHandleCodec.Decode(r)
		if err != nil {
			return TreeAddReq{}, err
		}
		p, err := PathCodec.Decode(r)
		if err != nil {
			return TreeAddReq{}, err
		}
		data, err := r.ReadBytes()
		return TreeAddReq{Tree: h, Path: p, Contents: data}, err
	},
}

var TreeAddTreeReqCodec = wire.Codec[TreeAddTreeReq]{
	Encode: func(w *wire.Writer, v TreeAddTreeReq) error {
		if err := TreeHandleCodec.Encode(w, v.Tree); err != nil {
			return err
		}
		if err := PathCodec.Encode(w, v.Path); err != nil {
			return err
		}
		return TreeHandleCodec.Encode(w, v.Sub)
	},
	Decode: func(r *wire.Reader) (TreeAddTreeReq, error) {
		h, err := TreeHandleCodec.Decode(r)
		if err != nil {
			return TreeAddTreeReq{}, err
		}
		p, err := PathCodec.Decode(r)
		if err != nil {
			return TreeAddTreeReq{}, err
		}
		sub, err := TreeHandleCodec.Decode(r)
		return TreeAddTreeReq{Tree: h, Path: p, Sub: sub}, err
	},
}

var treeOpWireCodec = wire.Codec[TreeOpWire]{
	Encode: func(w *wire.Writer, v TreeOpWire) error {
		if err := PathCodec.Encode(w, v.Path); err != nil {
			return err
		}
		if err := w.WriteBool(v.IsRemove); err != nil {
			return err
		}
		if v.IsRemove {
			return nil
		}
		if v.HasSub {
			if err := w.WriteBool(true); err != nil {
				return err
			}
			return TreeHandleCodec.Encode(w, *v.Sub)
		}
		if err := w.WriteBool(false); err != nil {
			return err
		}
		return w.WriteBytes(v.Contents)
	},
	Decode: func(r *wire.Reader) (TreeOpWire, error) {
		p, err := PathCodec.Decode(r)
		if err != nil {
			return TreeOpWire{}, err
		}
		isRemove, err := r.ReadBool()
		if err != nil || isRemove {
			return TreeOpWire{Path: p, IsRemove: isRemove}, err
		}
		hasSub, err := r.ReadBool()
		if err != nil {
			return TreeOpWire{}, err
		}
		if hasSub {
			h, err := TreeHandleCodec.Decode(r)
			return TreeOpWire{Path: p, Sub: &h, HasSub: true}, err
		}
		data, err := r.ReadBytes()
		return TreeOpWire{Path: p, Contents: data}, err
	},
}

var TreeBatchApplyReqCodec = wire.Codec[TreeBatchApplyReq]{
	Encode: func(w *wire.Writer, v TreeBatchApplyReq) error {
		if err := TreeHandleCodec.Encode(w, v.Tree); err != nil {
			return err
		}
		return wire.List(treeOpWireCodec).Encode(w, v.Ops)
	},
	Decode: func(r *wire.Reader) (TreeBatchApplyReq, error) {
		h, err := TreeHandleCodec.Decode(r)
		if err != nil {
			return TreeBatchApplyReq{}, err
		}
		ops, err := wire.List(treeOpWireCodec).Decode(r)
		return TreeBatchApplyReq{Tree: h, Ops: ops}, err
	},
}

var ListResCodec = wire.Codec[ListRes]{
	Encode: func(w *wire.Writer, v ListRes) error { return wire.List(ListEntryCodec).Encode(w, v.Entries) },
	Decode: func(r *wire.Reader) (ListRes, error) {
		entries, err := wire.List(ListEntryCodec).Decode(r)
		return ListRes{Entries: entries}, err
	},
}

var HashResCodec = wire.Codec[HashRes]{
	Encode: func(w *wire.Writer, v HashRes) error { return HashCodec.Encode(w, v.Hash) },
	Decode: func(r *wire.Reader) (HashRes, error) {
		h, err := HashCodec.Decode(r)
		return HashRes{Hash: h}, err
	},
}

var KeyResCodec = wire.Codec[KeyRes]{
	Encode: func(w *wire.Writer, v KeyRes) error { return KeyCodec.Encode(w, v.Key) },
	Decode: func(r *wire.Reader) (KeyRes, error) {
		k, err := KeyCodec.Decode(r)
		return KeyRes{Key: k}, err
	},
}

var TreeOfPathReqCodec = wire.Codec[TreeOfPathReq]{
	Encode: func(w *wire.Writer, v TreeOfPathReq) error { return PathCodec.Encode(w, v.Path) },
	Decode: func(r *wire.Reader) (TreeOfPathReq, error) {
		p, err := PathCodec.Decode(r)
		return TreeOfPathReq{Path: p}, err
	},
}

var TreeOfHashReqCodec = wire.Codec[TreeOfHashReq]{
	Encode: func(w *wire.Writer, v TreeOfHashReq) error { return HashCodec.Encode(w, v.Hash) },
	Decode: func(r *wire.Reader) (TreeOfHashReq, error) {
		h, err := HashCodec.Decode(r)
		return TreeOfHashReq{Hash: h}, err
	},
}

var TreeMergeReqCodec = wire.Codec[TreeMergeReq]{
	Encode: func(w *wire.Writer, v TreeMergeReq) error {
		if err := optionalHandleCodec.Encode(w, v.Base); err != nil {
			return err
		}
		if err := TreeHandleCodec.Encode(w, v.Ours); err != nil {
			return err
		}
		return TreeHandleCodec.Encode(w, v.Theirs)
	},
	Decode: func(r *wire.Reader) (TreeMergeReq, error) {
		base, err := optionalHandleCodec.Decode(r)
		if err != nil {
			return TreeMergeReq{}, err
		}
		ours, err := TreeHandleCodec.Decode(r)
		if err != nil {
			return TreeMergeReq{}, err
		}
		theirs, err := TreeHandleCodec.Decode(r)
		return TreeMergeReq{Base: base, Ours: ours, Theirs: theirs}, err
	},
}

var localNodeWireCodec wire.Codec[LocalNodeWire]

func init() {
	localNodeWireCodec = wire.Codec[LocalNodeWire]{
		Encode: encodeLocalNodeWire,
		Decode: decodeLocalNodeWire,
	}
}

func encodeLocalNodeWire(w *wire.Writer, v LocalNodeWire) error {
	if err := w.WriteBool(v.IsLeaf); err != nil {
		return err
	}
	if v.IsLeaf {
		return w.WriteBytes(v.Contents)
	}
	if err := w.WriteU32(uint32(len(v.Children))); err != nil {
		return err
	}
	for _, c := range v.Children {
		if err := w.WriteString(c.Name); err != nil {
			return err
		}
		if err := encodeLocalNodeWire(w, c.Node); err != nil {
			return err
		}
	}
	return nil
}

func decodeLocalNodeWire(r *wire.Reader) (LocalNodeWire, error) {
	isLeaf, err := r.ReadBool()
	if err != nil {
		return LocalNodeWire{}, err
	}
	if isLeaf {
		data, err := r.ReadBytes()
		return LocalNodeWire{IsLeaf: true, Contents: data}, err
	}
	count, err := r.ReadU32()
	if err != nil {
		return LocalNodeWire{}, err
	}
	children := make([]LocalChildWire, 0, count)
	for i := uint32(0); i < count; i++ {
		name, err := r.ReadString()
		if err != nil {
			return LocalNodeWire{}, err
		}
		node, err := decodeLocalNodeWire(r)
		if err != nil {
			return LocalNodeWire{}, err
		}
		children = append(children, LocalChildWire{Name: name, Node: node})
	}
	return LocalNodeWire{Children: children}, nil
}

var ToLocalResCodec = wire.Codec[ToLocalRes]{
	Encode: func(w *wire.Writer, v ToLocalRes) error { return localNodeWireCodec.Encode(w, v.Root) },
	Decode: func(r *wire.Reader) (ToLocalRes, error) {
		root, err := localNodeWireCodec.Decode(r)
		return ToLocalRes{Root: root}, err
	},
}

// LocalNodeToWire/WireToLocalNode convert between merkle.LocalNode (the
// in-process value) and its wire representation.
func LocalNodeToWire(n merkle.LocalNode) LocalNodeWire {
	if n.Children == nil {
		return LocalNodeWire{IsLeaf: true, Contents: n.Contents}
	}
	children := make([]LocalChildWire, 0, len(n.Children))
	for name, child := range n.Children {
		children = append(children, LocalChildWire{Name: name, Node: LocalNodeToWire(child)})
	}
	return LocalNodeWire{Children: children}
}

func WireToLocalNode(w LocalNodeWire) merkle.LocalNode {
	if w.IsLeaf {
		return merkle.LocalNode{Contents: w.Contents}
	}
	children := make(map[string]merkle.LocalNode, len(w.Children))
	for _, c := range w.Children {
		children[c.Name] = WireToLocalNode(c.Node)
	}
	return merkle.LocalNode{Children: children}
}

// --- Repo commands -------------------------------------------------

type ExportReq struct{ Depth *uint32 }
type ExportRes struct{ Slice merkle.Slice }
type ImportReq struct{ Slice merkle.Slice }
type NewCommitReq struct {
	Info    merkle.Info
	Parents []merkle.Hash
	Tree    TreeHandle
}
type NewCommitRes struct{ Commit merkle.Hash }

var optionalU32Codec = wire.Option(wire.Uint32)

var ExportReqCodec = wire.Codec[ExportReq]{
	Encode: func(w *wire.Writer, v ExportReq) error { return optionalU32Codec.Encode(w, v.Depth) },
	Decode: func(r *wire.Reader) (ExportReq, error) {
		d, err := optionalU32Codec.Decode(r)
		return ExportReq{Depth: d}, err
	},
}

var ExportResCodec = wire.Codec[ExportRes]{
	Encode: func(w *wire.Writer, v ExportRes) error { return SliceCodec.Encode(w, v.Slice) },
	Decode: func(r *wire.Reader) (ExportRes, error) {
		s, err := SliceCodec.Decode(r)
		return ExportRes{Slice: s}, err
	},
}

var ImportReqCodec = wire.Codec[ImportReq]{
	Encode: func(w *wire.Writer, v ImportReq) error { return SliceCodec.Encode(w, v.Slice) },
	Decode: func(r *wire.Reader) (ImportReq, error) {
		s, err := SliceCodec.Decode(r)
		return ImportReq{Slice: s}, err
	},
}

var NewCommitReqCodec = wire.Codec[NewCommitReq]{
	Encode: func(w *wire.Writer, v NewCommitReq) error {
		if err := InfoCodec.Encode(w, v.Info); err != nil {
			return err
		}
		if err := wire.List(HashCodec).Encode(w, v.Parents); err != nil {
			return err
		}
		return TreeHandleCodec.Encode(w, v.Tree)
	},
	Decode: func(r *wire.Reader) (NewCommitReq, error) {
		info, err := InfoCodec.Decode(r)
		if err != nil {
			return NewCommitReq{}, err
		}
		parents, err := wire.List(HashCodec).Decode(r)
		if err != nil {
			return NewCommitReq{}, err
		}
		tree, err := TreeHandleCodec.Decode(r)
		return NewCommitReq{Info: info, Parents: parents, Tree: tree}, err
	},
}

var NewCommitResCodec = wire.Codec[NewCommitRes]{
	Encode: func(w *wire.Writer, v NewCommitRes) error { return HashCodec.Encode(w, v.Commit) },
	Decode: func(r *wire.Reader) (NewCommitRes, error) {
		h, err := HashCodec.Decode(r)
		return NewCommitRes{Commit: h}, err
	},
}

// --- Backend passthrough: Contents/Node/Commit -------------------------

type HashReq struct{ Hash merkle.Hash }
type FoundDataRes struct {
	Data  []byte
	Found bool
}
type FoundKeyRes struct {
	Key   merkle.Key
	Found bool
}
type AddReq struct {
	Data []byte
	Deps []merkle.Key
}
type UnsafeAddReq struct {
	Hash merkle.Hash
	Data []byte
	Deps []merkle.Key
}
type ObjectMergeReq struct {
	Hash  merkle.Hash
	Slice merkle.Slice
}

var HashReqCodec = wire.Codec[HashReq]{
	Encode: func(w *wire.Writer, v HashReq) error { return HashCodec.Encode(w, v.Hash) },
	Decode: func(r *wire.Reader) (HashReq, error) {
		h, err := HashCodec.Decode(r)
		return HashReq{Hash: h}, err
	},
}

var FoundDataResCodec = wire.Codec[FoundDataRes]{
	Encode: func(w *wire.Writer, v FoundDataRes) error {
		if err := w.WriteBool(v.Found); err != nil {
			return err
		}
		if !v.Found {
			return nil
		}
		return w.WriteBytes(v.Data)
	},
	Decode: func(r *wire.Reader) (FoundDataRes, error) {
		found, err := r.ReadBool()
		if err != nil || !found {
			return FoundDataRes{Found: found}, err
		}
		data, err := r.ReadBytes()
		return FoundDataRes{Data: data, Found: true}, err
	},
}

var FoundKeyResCodec = wire.Codec[FoundKeyRes]{
	Encode: func(w *wire.Writer, v FoundKeyRes) error {
		if err := w.WriteBool(v.Found); err != nil {
			return err
		}
		if !v.Found {
			return nil
		}
		return KeyCodec.Encode(w, v.Key)
	},
	Decode: func(r *wire.Reader) (FoundKeyRes, error) {
		found, err := r.ReadBool()
		if err != nil || !found {
			return FoundKeyRes{Found: found}, err
		}
		k, err := KeyCodec.Decode(r)
		return FoundKeyRes{Key: k, Found: true}, err
	},
}

var AddReqCodec = wire.Codec[AddReq]{
	Encode: func(w *wire.Writer, v AddReq) error {
		if err := w.WriteBytes(v.Data); err != nil {
			return err
		}
		return wire.List(KeyCodec).Encode(w, v.Deps)
	},
	Decode: func(r *wire.Reader) (AddReq, error) {
		data, err := r.ReadBytes()
		if err != nil {
			return AddReq{}, err
		}
		deps, err := wire.List(KeyCodec).Decode(r)
		return AddReq{Data: data, Deps: deps}, err
	},
}

var UnsafeAddReqCodec = wire.Codec[UnsafeAddReq]{
	Encode: func(w *wire.Writer, v UnsafeAddReq) error {
		if err := HashCodec.Encode(w, v.Hash); err != nil {
			return err
		}
		if err := w.WriteBytes(v.Data); err != nil {
			return err
		}
		return wire.List(KeyCodec).Encode(w, v.Deps)
	},
	Decode: func(r *wire.Reader) (UnsafeAddReq, error) {
		h, err := HashCodec.Decode(r)
		if err != nil {
			return UnsafeAddReq{}, err
		}
		data, err := r.ReadBytes()
		if err != nil {
			return UnsafeAddReq{}, err
		}
		deps, err := wire.List(KeyCodec).Decode(r)
		return UnsafeAddReq{Hash: h, Data: data, Deps: deps}, err
	},
}

var ObjectMergeReqCodec = wire.Codec[ObjectMergeReq]{
	Encode: func(w *wire.Writer, v ObjectMergeReq) error {
		if err := HashCodec.Encode(w, v.Hash); err != nil {
			return err
		}
		return SliceCodec.Encode(w, v.Slice)
	},
	Decode: func(r *wire.Reader) (ObjectMergeReq, error) {
		h, err := HashCodec.Decode(r)
		if err != nil {
			return ObjectMergeReq{}, err
		}
		s, err := SliceCodec.Decode(r)
		return ObjectMergeReq{Hash: h, Slice: s}, err
	},
}

// --- Backend passthrough: Branch -----------------------------------

type BranchNameReq struct{ Name string }
type BranchFindRes struct {
	Commit *merkle.Hash
}
type BranchSetReq struct {
	Name   string
	Commit merkle.Hash
}
type BranchTestAndSetReq struct {
	Name string
	Test *merkle.Hash
	Set  *merkle.Hash
}
type NamesRes struct{ Names []string }

var BranchNameReqCodec = wire.Codec[BranchNameReq]{
	Encode: func(w *wire.Writer, v BranchNameReq) error { return w.WriteString(v.Name) },
	Decode: func(r *wire.Reader) (BranchNameReq, error) {
		n, err := r.ReadString()
		return BranchNameReq{Name: n}, err
	},
}

var BranchFindResCodec = wire.Codec[BranchFindRes]{
	Encode: func(w *wire.Writer, v BranchFindRes) error { return OptionalHashCodec.Encode(w, v.Commit) },
	Decode: func(r *wire.Reader) (BranchFindRes, error) {
		h, err := OptionalHashCodec.Decode(r)
		return BranchFindRes{Commit: h}, err
	},
}

var BranchSetReqCodec = wire.Codec[BranchSetReq]{
	Encode: func(w *wire.Writer, v BranchSetReq) error {
		if err := w.WriteString(v.Name); err != nil {
			return err
		}
		return HashCodec.Encode(w, v.Commit)
	},
	Decode: func(r *wire.Reader) (BranchSetReq, error) {
		n, err := r.ReadString()
		if err != nil {
			return BranchSetReq{}, err
		}
		h, err := HashCodec.Decode(r)
		return BranchSetReq{Name: n, Commit: h}, err
	},
}

var BranchTestAndSetReqCodec = wire.Codec[BranchTestAndSetReq]{
	Encode: func(w *wire.Writer, v BranchTestAndSetReq) error {
		if err := w.WriteString(v.Name); err != nil {
			return err
		}
		if err := OptionalHashCodec.Encode(w, v.Test); err != nil {
			return err
		}
		return OptionalHashCodec.Encode(w, v.Set)
	},
	Decode: func(r *wire.Reader) (BranchTestAndSetReq, error) {
		n, err := r.ReadString()
		if err != nil {
			return BranchTestAndSetReq{}, err
		}
		test, err := OptionalHashCodec.Decode(r)
		if err != nil {
			return BranchTestAndSetReq{}, err
		}
		set, err := OptionalHashCodec.Decode(r)
		return BranchTestAndSetReq{Name: n, Test: test, Set: set}, err
	},
}

var NamesResCodec = wire.Codec[NamesRes]{
	Encode: func(w *wire.Writer, v NamesRes) error { return wire.List(wire.String).Encode(w, v.Names) },
	Decode: func(r *wire.Reader) (NamesRes, error) {
		names, err := wire.List(wire.String).Decode(r)
		return NamesRes{Names: names}, err
	},
}

// --- Async watch notification (§6: status=2 reserved frame) -----------

// WatchNotify is the payload of an async push: either an "all branches"
// or a "specific branch" watch firing.
type WatchNotify struct {
	Keyed   bool
	Branch  string
	Commit  *merkle.Hash
	Present bool
}

var WatchNotifyCodec = wire.Codec[WatchNotify]{
	Encode: func(w *wire.Writer, v WatchNotify) error {
		if err := w.WriteBool(v.Keyed); err != nil {
			return err
		}
		if err := w.WriteString(v.Branch); err != nil {
			return err
		}
		if err := w.WriteBool(v.Present); err != nil {
			return err
		}
		return OptionalHashCodec.Encode(w, v.Commit)
	},
	Decode: func(r *wire.Reader) (WatchNotify, error) {
		keyed, err := r.ReadBool()
		if err != nil {
			return WatchNotify{}, err
		}
		branch, err := r.ReadString()
		if err != nil {
			return WatchNotify{}, err
		}
		present, err := r.ReadBool()
		if err != nil {
			return WatchNotify{}, err
		}
		commit, err := OptionalHashCodec.Decode(r)
		return WatchNotify{Keyed: keyed, Branch: branch, Present: present, Commit: commit}, err
	},
}
