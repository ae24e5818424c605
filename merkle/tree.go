package merkle

// Tree is the value described in §3/§4.7: either a reference to an
// already-persisted node or contents object, or a local concrete value the
// caller is still composing. A Tree is exactly one of:
//   - ref-leaf:  ref != nil, ref.Kind == KindContents
//   - ref-dir:   ref != nil, ref.Kind == KindNode
//   - local-leaf: ref == nil, contentsLocal != nil
//   - local-dir:  ref == nil, contentsLocal == nil (local is nil only for
//     the zero Tree{}, which expandDir treats as empty)
//
// A ref-dir's local map starts nil; expandDir hydrates it from ref on
// first access and keeps ref.
//
// Mutating a ref-dir expands it into a local map one level at a time
// (copy-on-write), so touching one subtree never forces materializing
// siblings that were never visited.
type Tree struct {
	ref           *Key
	contentsLocal []byte
	local         map[string]*Tree
}

// NewEmptyTree is the Empty() command: an uncommitted tree with no
// children.
func NewEmptyTree() *Tree {
	return &Tree{local: map[string]*Tree{}}
}

func NewLocalContents(data []byte) *Tree {
	cp := make([]byte, len(data))
	copy(cp, data)
	return &Tree{contentsLocal: cp}
}

func treeFromKey(k Key) *Tree {
	kk := k
	return &Tree{ref: &kk}
}

func (t *Tree) isLeaf() bool {
	if t == nil {
		return false
	}
	return t.contentsLocal != nil || (t.ref != nil && t.ref.Kind == KindContents)
}

func (t *Tree) isRefDir() bool {
	return t != nil && t.ref != nil && t.ref.Kind == KindNode
}

// expandDir returns t's children, hydrating from the backend on first
// access to a ref-dir and memoizing the result onto t.
func expandDir(s *RepoSession, t *Tree) (map[string]*Tree, error) {
	if t == nil {
		return map[string]*Tree{}, nil
	}
	if t.local != nil {
		return t.local, nil
	}
	if t.isLeaf() {
		return map[string]*Tree{}, nil
	}
	if !t.isRefDir() {
		// Unexpanded local dir with a nil map only happens for the zero
		// Tree{}; treat it as empty rather than erroring.
		return map[string]*Tree{}, nil
	}

	data, ok, err := s.Nodes.Find(t.ref.Hash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrObjectNotFound
	}
	entries, err := decodeNode(data)
	if err != nil {
		return nil, err
	}

	m := make(map[string]*Tree, len(entries))
	for _, e := range entries {
		m[e.Name] = treeFromKey(e.Child)
	}
	t.local = m
	return m, nil
}

// setAt returns a new tree with path set to value (nil deletes the path).
// The receiver is never mutated: every directory on the path down to the
// change is copied, matching the "source handle remains valid" invariant
// tree-producing commands must uphold.
func (s *RepoSession) setAt(t *Tree, path Path, value *Tree) (*Tree, error) {
	if len(path) == 0 {
		if value == nil {
			return NewEmptyTree(), nil
		}
		return value, nil
	}

	children, err := expandDir(s, t)
	if err != nil {
		return nil, err
	}

	newChildren := make(map[string]*Tree, len(children)+1)
	for k, v := range children {
		newChildren[k] = v
	}

	step := path[0]
	if len(path) == 1 {
		if value == nil {
			delete(newChildren, step)
		} else {
			newChildren[step] = value
		}
	} else {
		child := newChildren[step]
		newChild, err := s.setAt(child, path[1:], value)
		if err != nil {
			return nil, err
		}
		newChildren[step] = newChild
	}

	return &Tree{local: newChildren}, nil
}

func (s *RepoSession) TreeAdd(t *Tree, path Path, contents []byte) (*Tree, error) {
	if len(path) == 0 {
		return nil, ErrPathNotFound
	}
	return s.setAt(t, path, NewLocalContents(contents))
}

func (s *RepoSession) TreeAddTree(t *Tree, path Path, sub *Tree) (*Tree, error) {
	if len(path) == 0 {
		return sub, nil
	}
	return s.setAt(t, path, sub)
}

func (s *RepoSession) TreeRemove(t *Tree, path Path) (*Tree, error) {
	if len(path) == 0 {
		return nil, ErrPathNotFound
	}
	return s.setAt(t, path, nil)
}

// TreeOp is one step of Batch_apply: either a Set (Tree nil means "set
// contents") or a Remove (IsRemove true; Contents and Tree are ignored).
type TreeOp struct {
	Path     Path
	Contents []byte
	Tree     *Tree
	IsRemove bool
}

func (s *RepoSession) TreeBatchApply(t *Tree, ops []TreeOp) (*Tree, error) {
	cur := t
	var err error
	for _, op := range ops {
		switch {
		case op.IsRemove:
			cur, err = s.TreeRemove(cur, op.Path)
		case op.Tree != nil:
			cur, err = s.TreeAddTree(cur, op.Path, op.Tree)
		default:
			cur, err = s.TreeAdd(cur, op.Path, op.Contents)
		}
		if err != nil {
			return nil, err
		}
	}
	return cur, nil
}

// walk descends path, returning the Tree found there (nil, false if any
// component is absent or the walk passes through a leaf).
func (s *RepoSession) walk(t *Tree, path Path) (*Tree, bool, error) {
	cur := t
	for _, step := range path {
		if cur.isLeaf() {
			return nil, false, nil
		}
		children, err := expandDir(s, cur)
		if err != nil {
			return nil, false, err
		}
		next, ok := children[step]
		if !ok {
			return nil, false, nil
		}
		cur = next
	}
	return cur, true, nil
}

// TreeAt returns whatever Tree value (leaf or directory) lives at path,
// without the isLeaf filtering TreeFindTree applies. Used by the
// test_and_set_tree handler to compare the current value at a path
// against a caller-supplied handle regardless of whether either side
// happens to be a leaf.
func (s *RepoSession) TreeAt(t *Tree, path Path) (*Tree, bool, error) {
	return s.walk(t, path)
}

// SameTree reports whether a and b persist to the same content-addressed
// key, treating two nils as equal. Exported for the test_and_set_tree
// handler, which needs the same structural-equality check TreeMerge uses
// internally to compare a caller-supplied test handle against the tree
// actually at a path.
func (s *RepoSession) SameTree(a, b *Tree) (bool, error) {
	return s.sameTree(a, b)
}

func (s *RepoSession) leafContentsOf(t *Tree) ([]byte, bool, error) {
	if t == nil {
		return nil, false, nil
	}
	if t.contentsLocal != nil {
		return t.contentsLocal, true, nil
	}
	if t.ref != nil && t.ref.Kind == KindContents {
		return s.Contents.Find(t.ref.Hash)
	}
	return nil, false, nil
}

func (s *RepoSession) TreeFind(t *Tree, path Path) ([]byte, bool, error) {
	found, ok, err := s.walk(t, path)
	if err != nil || !ok {
		return nil, false, err
	}
	return s.leafContentsOf(found)
}

func (s *RepoSession) TreeMem(t *Tree, path Path) (bool, error) {
	_, ok, err := s.TreeFind(t, path)
	return ok, err
}

func (s *RepoSession) TreeFindTree(t *Tree, path Path) (*Tree, bool, error) {
	found, ok, err := s.walk(t, path)
	if err != nil || !ok || found.isLeaf() {
		return nil, false, err
	}
	return found, true, nil
}

func (s *RepoSession) TreeMemTree(t *Tree, path Path) (bool, error) {
	_, ok, err := s.TreeFindTree(t, path)
	return ok, err
}

// ListEntry is one child returned by List: its step name and whether it
// names a leaf (Contents) or a directory (Tree).
type ListEntry struct {
	Name string
	Kind Kind // KindContents or KindNode
}

func (s *RepoSession) TreeList(t *Tree, path Path) ([]ListEntry, error) {
	found, ok, err := s.TreeFindTree(t, path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPathNotFound
	}
	children, err := expandDir(s, found)
	if err != nil {
		return nil, err
	}
	out := make([]ListEntry, 0, len(children))
	for name, child := range children {
		kind := KindNode
		if child.isLeaf() {
			kind = KindContents
		}
		out = append(out, ListEntry{Name: name, Kind: kind})
	}
	return out, nil
}

// Save recursively persists a local tree bottom-up, returning either a
// ContentsKey (if t is a leaf) or a NodeKey (otherwise) per §4.7. Already
// persisted refs are returned as-is.
func (s *RepoSession) Save(t *Tree) (Key, error) {
	if t == nil {
		t = NewEmptyTree()
	}
	if t.ref != nil {
		return *t.ref, nil
	}
	if t.contentsLocal != nil {
		return s.Contents.Add(t.contentsLocal)
	}

	children := t.local
	names := make([]string, 0, len(children))
	for name := range children {
		names = append(names, name)
	}

	entries := make([]nodeEntry, 0, len(names))
	deps := make([]Key, 0, len(names))
	for _, name := range names {
		key, err := s.Save(children[name])
		if err != nil {
			return Key{}, err
		}
		entries = append(entries, nodeEntry{Name: name, Child: key})
		deps = append(deps, key)
	}

	return s.Nodes.Add(encodeNode(entries), deps...)
}

func (s *RepoSession) Hash(t *Tree) (Hash, error) {
	key, err := s.Save(t)
	return key.Hash, err
}

// LocalNode is the fully materialized client-side view a To_local command
// returns: recursively resolved, no outstanding server references.
type LocalNode struct {
	Contents []byte
	Children map[string]LocalNode
}

func (s *RepoSession) ToLocal(t *Tree) (LocalNode, error) {
	if t.isLeaf() {
		data, _, err := s.leafContentsOf(t)
		return LocalNode{Contents: data}, err
	}
	children, err := expandDir(s, t)
	if err != nil {
		return LocalNode{}, err
	}
	out := LocalNode{Children: make(map[string]LocalNode, len(children))}
	for name, child := range children {
		ln, err := s.ToLocal(child)
		if err != nil {
			return LocalNode{}, err
		}
		out.Children[name] = ln
	}
	return out, nil
}

func (s *RepoSession) TreeOfHash(h Hash) (*Tree, error) {
	if ok, err := s.Nodes.Mem(h); err != nil {
		return nil, err
	} else if ok {
		return treeFromKey(Key{Kind: KindNode, Hash: h}), nil
	}
	if ok, err := s.Contents.Mem(h); err != nil {
		return nil, err
	} else if ok {
		return treeFromKey(Key{Kind: KindContents, Hash: h}), nil
	}
	return nil, ErrObjectNotFound
}

func (s *RepoSession) TreeOfCommit(h Hash) (*Tree, error) {
	c, ok, err := s.GetCommit(Key{Kind: KindCommit, Hash: h})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrObjectNotFound
	}
	return treeFromKey(c.Tree), nil
}

// sameTree decides structural equality by content address: two trees are
// the same iff saving both yields the same key. This works uniformly for
// leaves and directories and for any mix of local/ref representations,
// at the cost of persisting both sides as a side effect (idempotent and
// already how every other tree op materializes its result).
func (s *RepoSession) sameTree(a, b *Tree) (bool, error) {
	if a == nil && b == nil {
		return true, nil
	}
	if a == nil || b == nil {
		return false, nil
	}
	ka, err := s.Save(a)
	if err != nil {
		return false, err
	}
	kb, err := s.Save(b)
	if err != nil {
		return false, err
	}
	return ka == kb, nil
}

// TreeMerge performs the three-way merge described in §4.7: base is the
// nearest common ancestor's tree (nil if there is none), ours and theirs
// are the two tips being merged. A path where both sides changed to
// different values is reported as a *MergeConflictError, a recoverable
// error the caller (server command handler) surfaces to the client
// instead of completing the merge.
func (s *RepoSession) TreeMerge(base, ours, theirs *Tree) (*Tree, error) {
	if base == nil {
		base = NewEmptyTree()
	}

	if same, err := s.sameTree(ours, theirs); err != nil {
		return nil, err
	} else if same {
		return ours, nil
	}
	if same, err := s.sameTree(ours, base); err != nil {
		return nil, err
	} else if same {
		return theirs, nil
	}
	if same, err := s.sameTree(theirs, base); err != nil {
		return nil, err
	} else if same {
		return ours, nil
	}

	// Both sides changed from base and differ from each other. If any of
	// the three is a leaf there is nothing left to recurse into.
	if ours.isLeaf() || theirs.isLeaf() || base.isLeaf() {
		oursData, _, _ := s.leafContentsOf(ours)
		theirsData, _, _ := s.leafContentsOf(theirs)
		return nil, &MergeConflictError{Ours: oursData, Theirs: theirsData}
	}

	baseChildren, err := expandDir(s, base)
	if err != nil {
		return nil, err
	}
	oursChildren, err := expandDir(s, ours)
	if err != nil {
		return nil, err
	}
	theirsChildren, err := expandDir(s, theirs)
	if err != nil {
		return nil, err
	}

	names := make(map[string]struct{}, len(oursChildren)+len(theirsChildren))
	for name := range oursChildren {
		names[name] = struct{}{}
	}
	for name := range theirsChildren {
		names[name] = struct{}{}
	}
	for name := range baseChildren {
		names[name] = struct{}{}
	}

	result := make(map[string]*Tree, len(names))
	for name := range names {
		merged, deleted, err := s.mergeChild(baseChildren[name], oursChildren[name], theirsChildren[name])
		if err != nil {
			if mc, ok := err.(*MergeConflictError); ok {
				mc.Path = append(Path{name}, mc.Path...)
				return nil, mc
			}
			return nil, err
		}
		if !deleted {
			result[name] = merged
		}
	}

	return &Tree{local: result}, nil
}

// mergeChild resolves one child slot where any of base/ours/theirs may be
// nil (the child is absent on that side). deleted reports that the
// resolved value is "no child here" rather than an empty result to store.
func (s *RepoSession) mergeChild(base, ours, theirs *Tree) (merged *Tree, deleted bool, err error) {
	if same, err := s.sameTree(ours, theirs); err != nil {
		return nil, false, err
	} else if same {
		return ours, ours == nil, nil
	}
	if same, err := s.sameTree(ours, base); err != nil {
		return nil, false, err
	} else if same {
		return theirs, theirs == nil, nil
	}
	if same, err := s.sameTree(theirs, base); err != nil {
		return nil, false, err
	} else if same {
		return ours, ours == nil, nil
	}

	if ours == nil || theirs == nil {
		oursData, _, _ := s.leafContentsOf(ours)
		theirsData, _, _ := s.leafContentsOf(theirs)
		return nil, false, &MergeConflictError{Ours: oursData, Theirs: theirsData}
	}

	merged, err = s.TreeMerge(base, ours, theirs)
	return merged, false, err
}
