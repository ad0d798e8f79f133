package index

import (
	stack "github.com/golang-collections/collections/stack"
	"github.com/tsurudb/TsuruDB/common"
	"github.com/tsurudb/TsuruDB/storage/buffer"
	"github.com/tsurudb/TsuruDB/storage/page"
	"github.com/tsurudb/TsuruDB/types"
)

// BPlusTree provides ordered key -> record id lookup over node pages cached
// in the buffer pool. Keys are unique. The identity of the root page is
// persisted in the index roots page so the tree survives reopen.
//
// The tree adds no latching of its own; callers serialize structural
// modifications of one tree.
type BPlusTree struct {
	indexId         uint32
	bpm             *buffer.BufferPoolManager
	comparator      page.KeyComparator
	keySize         uint32
	leafMaxSize     uint32
	internalMaxSize uint32
	rootPageId      types.PageID
}

// NewBPlusTree opens (or prepares) the tree of the given index. Zero sizes
// select the page-geometry defaults; one entry of headroom is kept so a node
// can exceed its max transiently between insert and split.
func NewBPlusTree(indexId uint32, bpm *buffer.BufferPoolManager, comparator page.KeyComparator, keySize uint32, leafMaxSize uint32, internalMaxSize uint32) *BPlusTree {
	if leafMaxSize == 0 {
		leafMaxSize = (common.PageSize-page.SizeOfBPlusTreeLeafPageHeader)/(keySize+page.SizeOfRID) - 1
		if leafMaxSize < 1 {
			leafMaxSize = 1
		}
	}
	if internalMaxSize == 0 {
		internalMaxSize = (common.PageSize-page.SizeOfBPlusTreePageHeader)/(keySize+types.SizeOfPageID) - 1
		if internalMaxSize < 2 {
			internalMaxSize = 2
		}
	}

	t := &BPlusTree{indexId: indexId, bpm: bpm, comparator: comparator, keySize: keySize, leafMaxSize: leafMaxSize, internalMaxSize: internalMaxSize, rootPageId: types.InvalidPageID}
	t.loadRootPageId()
	return t
}

func (t *BPlusTree) loadRootPageId() {
	p := t.bpm.FetchPage(common.IndexRootsPageID)
	if p == nil {
		return
	}
	rootsPage := page.CastPageAsIndexRootsPage(p)
	if rootId, ok := rootsPage.GetRootId(t.indexId); ok {
		t.rootPageId = rootId
	}
	t.bpm.UnpinPage(common.IndexRootsPageID, false)
}

// updateRootPageId records the current root in the index roots page
func (t *BPlusTree) updateRootPageId() {
	p := t.bpm.FetchPage(common.IndexRootsPageID)
	if p == nil {
		common.Logger.Error("BPlusTree: can't fetch the index roots page")
		return
	}
	rootsPage := page.CastPageAsIndexRootsPage(p)
	if !rootsPage.Update(t.indexId, t.rootPageId) {
		rootsPage.Insert(t.indexId, t.rootPageId)
	}
	t.bpm.UnpinPage(common.IndexRootsPageID, true)
}

// IsEmpty reports whether the tree has no entries
func (t *BPlusTree) IsEmpty() bool {
	return !t.rootPageId.IsValid()
}

// GetRootPageId returns the current root page id
func (t *BPlusTree) GetRootPageId() types.PageID {
	return t.rootPageId
}

// findLeafPage descends from the root to the leaf covering key and returns
// it pinned. When path is non-nil the ids of the visited internal pages are
// pushed onto it, immediate parent on top.
func (t *BPlusTree) findLeafPage(key []byte, leftMost bool, path *stack.Stack) *page.BPlusTreeLeafPage {
	pageId := t.rootPageId
	for {
		p := t.bpm.FetchPage(pageId)
		if p == nil {
			return nil
		}
		node := page.CastPageAsBPlusTreeInternalPage(p)
		if node.IsLeafPage() {
			return page.CastPageAsBPlusTreeLeafPage(p)
		}

		var next types.PageID
		if leftMost {
			next = node.ValueAt(0)
		} else {
			next = node.Lookup(key, t.comparator)
		}
		if path != nil {
			path.Push(pageId)
		}
		t.bpm.UnpinPage(pageId, false)
		pageId = next
	}
}

// GetValue looks up the record id of key
func (t *BPlusTree) GetValue(key []byte) (page.RID, bool) {
	if t.IsEmpty() {
		return page.RID{}, false
	}
	leaf := t.findLeafPage(key, false, nil)
	if leaf == nil {
		return page.RID{}, false
	}
	rid, found := leaf.Lookup(key, t.comparator)
	t.bpm.UnpinPage(leaf.GetPageId(), false)
	return rid, found
}

// Insert adds (key, rid). Returns false when the key already exists.
func (t *BPlusTree) Insert(key []byte, rid page.RID) bool {
	if t.IsEmpty() {
		return t.startNewTree(key, rid)
	}

	leaf := t.findLeafPage(key, false, nil)
	if leaf == nil {
		return false
	}
	if _, found := leaf.Lookup(key, t.comparator); found {
		t.bpm.UnpinPage(leaf.GetPageId(), false)
		return false
	}

	leaf.Insert(key, rid, t.comparator)
	if leaf.GetSize() > t.leafMaxSize {
		sibling := t.splitLeaf(leaf)
		if sibling != nil {
			t.insertIntoParent(&leaf.BPlusTreePage, sibling.KeyAt(0), &sibling.BPlusTreePage)
			t.bpm.UnpinPage(sibling.GetPageId(), true)
		}
	}
	t.bpm.UnpinPage(leaf.GetPageId(), true)
	return true
}

func (t *BPlusTree) startNewTree(key []byte, rid page.RID) bool {
	p := t.bpm.NewPage()
	if p == nil {
		return false
	}
	leaf := page.CastPageAsBPlusTreeLeafPage(p)
	leaf.Init(p.GetPageId(), types.InvalidPageID, t.keySize, t.leafMaxSize)
	leaf.Insert(key, rid, t.comparator)
	t.rootPageId = p.GetPageId()
	t.updateRootPageId()
	t.bpm.UnpinPage(p.GetPageId(), true)
	return true
}

// splitLeaf moves the upper half of the leaf into a new right sibling and
// returns the sibling pinned
func (t *BPlusTree) splitLeaf(leaf *page.BPlusTreeLeafPage) *page.BPlusTreeLeafPage {
	p := t.bpm.NewPage()
	if p == nil {
		common.Logger.Error("BPlusTree: out of pages while splitting a leaf")
		return nil
	}
	sibling := page.CastPageAsBPlusTreeLeafPage(p)
	sibling.Init(p.GetPageId(), leaf.GetParentPageId(), t.keySize, t.leafMaxSize)
	leaf.MoveHalfTo(sibling)
	return sibling
}

// splitInternal moves the upper half of the node into a new right sibling,
// reparents the moved children, and returns the sibling pinned
func (t *BPlusTree) splitInternal(node *page.BPlusTreeInternalPage) *page.BPlusTreeInternalPage {
	p := t.bpm.NewPage()
	if p == nil {
		common.Logger.Error("BPlusTree: out of pages while splitting an internal node")
		return nil
	}
	sibling := page.CastPageAsBPlusTreeInternalPage(p)
	sibling.Init(p.GetPageId(), node.GetParentPageId(), t.keySize, t.internalMaxSize)
	moved := node.MoveHalfTo(sibling)
	t.reparent(moved, sibling.GetPageId())
	return sibling
}

func (t *BPlusTree) reparent(children []types.PageID, parent types.PageID) {
	for _, childId := range children {
		p := t.bpm.FetchPage(childId)
		if p == nil {
			continue
		}
		child := page.CastPageAsBPlusTreeInternalPage(p)
		child.SetParentPageId(parent)
		t.bpm.UnpinPage(childId, true)
	}
}

// insertIntoParent links a freshly split sibling into the parent, splitting
// upward as needed. Splitting the root grows the tree by one level.
func (t *BPlusTree) insertIntoParent(old *page.BPlusTreePage, key []byte, new_ *page.BPlusTreePage) {
	if old.IsRootPage() {
		p := t.bpm.NewPage()
		if p == nil {
			common.Logger.Error("BPlusTree: out of pages while growing a new root")
			return
		}
		root := page.CastPageAsBPlusTreeInternalPage(p)
		root.Init(p.GetPageId(), types.InvalidPageID, t.keySize, t.internalMaxSize)
		root.PopulateNewRoot(old.GetPageId(), key, new_.GetPageId())
		old.SetParentPageId(p.GetPageId())
		new_.SetParentPageId(p.GetPageId())
		t.rootPageId = p.GetPageId()
		t.updateRootPageId()
		t.bpm.UnpinPage(p.GetPageId(), true)
		return
	}

	parentId := old.GetParentPageId()
	p := t.bpm.FetchPage(parentId)
	if p == nil {
		return
	}
	parent := page.CastPageAsBPlusTreeInternalPage(p)
	new_.SetParentPageId(parentId)
	parent.InsertNodeAfter(old.GetPageId(), key, new_.GetPageId())
	if parent.GetSize() > t.internalMaxSize {
		sibling := t.splitInternal(parent)
		if sibling != nil {
			t.insertIntoParent(&parent.BPlusTreePage, sibling.KeyAt(0), &sibling.BPlusTreePage)
			t.bpm.UnpinPage(sibling.GetPageId(), true)
		}
	}
	t.bpm.UnpinPage(parentId, true)
}

// Remove deletes the entry of key, rebalancing by redistribution or coalesce
// when a node underflows
func (t *BPlusTree) Remove(key []byte) {
	if t.IsEmpty() {
		return
	}

	path := stack.New()
	leaf := t.findLeafPage(key, false, path)
	if leaf == nil {
		return
	}

	idx := leaf.KeyIndex(key, t.comparator)
	size := leaf.GetSize()
	if idx >= size || t.comparator(leaf.KeyAt(idx), key) != 0 {
		t.bpm.UnpinPage(leaf.GetPageId(), false)
		return
	}
	newSize, _ := leaf.RemoveRecord(key, t.comparator)

	// a removed first entry may be mirrored by a separator above
	if idx == 0 && newSize > 0 && !leaf.IsRootPage() {
		t.fixAncestorKeys(path, key, leaf.KeyAt(0), leaf.GetPageId())
	}

	if leaf.IsRootPage() {
		if newSize == 0 {
			t.adjustRootLeaf(leaf)
			return
		}
		t.bpm.UnpinPage(leaf.GetPageId(), true)
		return
	}

	if newSize < leaf.GetMinSize() {
		t.coalesceOrRedistributeLeaf(leaf)
		return
	}
	t.bpm.UnpinPage(leaf.GetPageId(), true)
}

// fixAncestorKeys walks the recorded descent path upward and replaces the
// separator equal to the removed key with the leaf's new first key
func (t *BPlusTree) fixAncestorKeys(path *stack.Stack, oldKey []byte, newKey []byte, childId types.PageID) {
	cur := childId
	for path.Len() > 0 {
		parentId := path.Pop().(types.PageID)
		p := t.bpm.FetchPage(parentId)
		if p == nil {
			return
		}
		parent := page.CastPageAsBPlusTreeInternalPage(p)
		i := parent.ValueIndex(cur)
		if i > 0 {
			if t.comparator(parent.KeyAt(uint32(i)), oldKey) == 0 {
				parent.SetKeyAt(uint32(i), newKey)
				t.bpm.UnpinPage(parentId, true)
			} else {
				t.bpm.UnpinPage(parentId, false)
			}
			return
		}
		// leftmost child; the separator lives further up
		t.bpm.UnpinPage(parentId, false)
		cur = parentId
	}
}

// coalesceOrRedistributeLeaf rebalances an underflowing leaf. Takes over the
// leaf's pin.
func (t *BPlusTree) coalesceOrRedistributeLeaf(leaf *page.BPlusTreeLeafPage) {
	parentId := leaf.GetParentPageId()
	p := t.bpm.FetchPage(parentId)
	if p == nil {
		t.bpm.UnpinPage(leaf.GetPageId(), true)
		return
	}
	parent := page.CastPageAsBPlusTreeInternalPage(p)
	idx := parent.ValueIndex(leaf.GetPageId())
	common.Assert(idx >= 0, "leaf is not a child of its parent")

	var siblingIdx uint32
	if idx == 0 {
		siblingIdx = 1
	} else {
		siblingIdx = uint32(idx) - 1
	}
	sp := t.bpm.FetchPage(parent.ValueAt(siblingIdx))
	if sp == nil {
		t.bpm.UnpinPage(leaf.GetPageId(), true)
		t.bpm.UnpinPage(parentId, false)
		return
	}
	sibling := page.CastPageAsBPlusTreeLeafPage(sp)

	if sibling.GetSize()+leaf.GetSize() <= sibling.GetMaxSize() {
		// coalesce into the left of the pair
		var left, right *page.BPlusTreeLeafPage
		var rightIdx uint32
		if idx == 0 {
			left, right, rightIdx = leaf, sibling, siblingIdx
		} else {
			left, right, rightIdx = sibling, leaf, uint32(idx)
		}
		right.MoveAllTo(left)
		parent.Remove(rightIdx)
		rightId := right.GetPageId()
		t.bpm.UnpinPage(rightId, true)
		t.bpm.UnpinPage(left.GetPageId(), true)
		t.bpm.DeletePage(rightId)
		t.handleInternalUnderflow(parent)
		return
	}

	// redistribute one entry from the sibling
	if idx == 0 {
		sibling.MoveFirstToEndOf(leaf)
		parent.SetKeyAt(siblingIdx, sibling.KeyAt(0))
	} else {
		sibling.MoveLastToFrontOf(leaf)
		parent.SetKeyAt(uint32(idx), leaf.KeyAt(0))
	}
	t.bpm.UnpinPage(sibling.GetPageId(), true)
	t.bpm.UnpinPage(leaf.GetPageId(), true)
	t.bpm.UnpinPage(parentId, true)
}

// handleInternalUnderflow continues rebalancing at an internal node after a
// child pair merged. Takes over the node's pin.
func (t *BPlusTree) handleInternalUnderflow(node *page.BPlusTreeInternalPage) {
	if node.IsRootPage() {
		t.adjustRootInternal(node)
		return
	}
	if node.GetSize() < node.GetMinSize() {
		t.coalesceOrRedistributeInternal(node)
		return
	}
	t.bpm.UnpinPage(node.GetPageId(), true)
}

// coalesceOrRedistributeInternal rebalances an underflowing internal node.
// Takes over the node's pin.
func (t *BPlusTree) coalesceOrRedistributeInternal(node *page.BPlusTreeInternalPage) {
	parentId := node.GetParentPageId()
	p := t.bpm.FetchPage(parentId)
	if p == nil {
		t.bpm.UnpinPage(node.GetPageId(), true)
		return
	}
	parent := page.CastPageAsBPlusTreeInternalPage(p)
	idx := parent.ValueIndex(node.GetPageId())
	common.Assert(idx >= 0, "node is not a child of its parent")

	var siblingIdx uint32
	if idx == 0 {
		siblingIdx = 1
	} else {
		siblingIdx = uint32(idx) - 1
	}
	sp := t.bpm.FetchPage(parent.ValueAt(siblingIdx))
	if sp == nil {
		t.bpm.UnpinPage(node.GetPageId(), true)
		t.bpm.UnpinPage(parentId, false)
		return
	}
	sibling := page.CastPageAsBPlusTreeInternalPage(sp)

	if sibling.GetSize()+node.GetSize() <= sibling.GetMaxSize() {
		var left, right *page.BPlusTreeInternalPage
		var rightIdx uint32
		if idx == 0 {
			left, right, rightIdx = node, sibling, siblingIdx
		} else {
			left, right, rightIdx = sibling, node, uint32(idx)
		}
		moved := right.MoveAllTo(left, parent.KeyAt(rightIdx))
		t.reparent(moved, left.GetPageId())
		parent.Remove(rightIdx)
		rightId := right.GetPageId()
		t.bpm.UnpinPage(rightId, true)
		t.bpm.UnpinPage(left.GetPageId(), true)
		t.bpm.DeletePage(rightId)
		t.handleInternalUnderflow(parent)
		return
	}

	if idx == 0 {
		movedChild, newMiddle := sibling.MoveFirstToEndOf(node, parent.KeyAt(siblingIdx))
		parent.SetKeyAt(siblingIdx, newMiddle)
		t.reparent([]types.PageID{movedChild}, node.GetPageId())
	} else {
		movedChild, newMiddle := sibling.MoveLastToFrontOf(node, parent.KeyAt(uint32(idx)))
		parent.SetKeyAt(uint32(idx), newMiddle)
		t.reparent([]types.PageID{movedChild}, node.GetPageId())
	}
	t.bpm.UnpinPage(sibling.GetPageId(), true)
	t.bpm.UnpinPage(node.GetPageId(), true)
	t.bpm.UnpinPage(parentId, true)
}

// adjustRootInternal promotes the only child of a shrunken internal root.
// Takes over the root's pin; the root page is unpinned before it is deleted.
func (t *BPlusTree) adjustRootInternal(root *page.BPlusTreeInternalPage) {
	if root.GetSize() != 1 {
		t.bpm.UnpinPage(root.GetPageId(), true)
		return
	}
	childId := root.RemoveAndReturnOnlyChild()
	p := t.bpm.FetchPage(childId)
	if p != nil {
		child := page.CastPageAsBPlusTreeInternalPage(p)
		child.SetParentPageId(types.InvalidPageID)
		t.bpm.UnpinPage(childId, true)
	}
	t.rootPageId = childId
	t.updateRootPageId()

	rootId := root.GetPageId()
	t.bpm.UnpinPage(rootId, true)
	t.bpm.DeletePage(rootId)
}

// adjustRootLeaf empties the tree when the last entry of the root leaf is
// removed. Takes over the leaf's pin.
func (t *BPlusTree) adjustRootLeaf(root *page.BPlusTreeLeafPage) {
	rootId := root.GetPageId()
	t.rootPageId = types.InvalidPageID
	t.updateRootPageId()
	t.bpm.UnpinPage(rootId, true)
	t.bpm.DeletePage(rootId)
}

// Begin returns an iterator at the leftmost entry
func (t *BPlusTree) Begin() *IndexIterator {
	if t.IsEmpty() {
		return newEndIterator(t)
	}
	leaf := t.findLeafPage(nil, true, nil)
	if leaf == nil {
		return newEndIterator(t)
	}
	leafId := leaf.GetPageId()
	size := leaf.GetSize()
	t.bpm.UnpinPage(leafId, false)
	if size == 0 {
		return newEndIterator(t)
	}
	return newIndexIterator(t, leafId, 0)
}

// BeginFromKey returns an iterator at the first entry >= key
func (t *BPlusTree) BeginFromKey(key []byte) *IndexIterator {
	if t.IsEmpty() {
		return newEndIterator(t)
	}
	leaf := t.findLeafPage(key, false, nil)
	if leaf == nil {
		return newEndIterator(t)
	}
	leafId := leaf.GetPageId()
	idx := leaf.KeyIndex(key, t.comparator)
	size := leaf.GetSize()
	nextId := leaf.GetNextPageId()
	t.bpm.UnpinPage(leafId, false)

	if idx >= size {
		if !nextId.IsValid() {
			return newEndIterator(t)
		}
		return newIndexIterator(t, nextId, 0)
	}
	return newIndexIterator(t, leafId, idx)
}

// Destroy frees every page of the tree and removes its entry from the index
// roots page
func (t *BPlusTree) Destroy() {
	if !t.IsEmpty() {
		t.destroySubtree(t.rootPageId)
		t.rootPageId = types.InvalidPageID
	}

	p := t.bpm.FetchPage(common.IndexRootsPageID)
	if p != nil {
		rootsPage := page.CastPageAsIndexRootsPage(p)
		rootsPage.Delete(t.indexId)
		t.bpm.UnpinPage(common.IndexRootsPageID, true)
	}
}

func (t *BPlusTree) destroySubtree(pageId types.PageID) {
	p := t.bpm.FetchPage(pageId)
	if p == nil {
		return
	}
	node := page.CastPageAsBPlusTreeInternalPage(p)
	if !node.IsLeafPage() {
		size := node.GetSize()
		children := make([]types.PageID, 0, size)
		for i := uint32(0); i < size; i++ {
			children = append(children, node.ValueAt(i))
		}
		t.bpm.UnpinPage(pageId, false)
		for _, childId := range children {
			t.destroySubtree(childId)
		}
	} else {
		t.bpm.UnpinPage(pageId, false)
	}
	t.bpm.DeletePage(pageId)
}
