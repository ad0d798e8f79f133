package index

import (
	pair "github.com/notEpsilon/go-pair"
	"github.com/tsurudb/TsuruDB/storage/page"
	"github.com/tsurudb/TsuruDB/types"
)

// IndexIterator is a stable forward iterator over the tree's entries,
// anchored at a (leaf page id, slot) position. It holds no pin between
// calls; each access fetches the leaf it stands on.
type IndexIterator struct {
	tree   *BPlusTree
	pageId types.PageID
	slot   uint32
}

func newIndexIterator(tree *BPlusTree, pageId types.PageID, slot uint32) *IndexIterator {
	return &IndexIterator{tree, pageId, slot}
}

func newEndIterator(tree *BPlusTree) *IndexIterator {
	return &IndexIterator{tree, types.InvalidPageID, 0}
}

// IsEnd reports whether the iterator has run off the last leaf
func (it *IndexIterator) IsEnd() bool {
	return !it.pageId.IsValid()
}

// Current returns the (key, record id) entry the iterator stands on
func (it *IndexIterator) Current() *pair.Pair[[]byte, page.RID] {
	if it.IsEnd() {
		return nil
	}
	p := it.tree.bpm.FetchPage(it.pageId)
	if p == nil {
		return nil
	}
	leaf := page.CastPageAsBPlusTreeLeafPage(p)
	key, rid := leaf.GetItem(it.slot)
	it.tree.bpm.UnpinPage(it.pageId, false)
	return &pair.Pair[[]byte, page.RID]{First: key, Second: rid}
}

// Next advances within the leaf, following the leaf chain at its end
func (it *IndexIterator) Next() {
	if it.IsEnd() {
		return
	}
	p := it.tree.bpm.FetchPage(it.pageId)
	if p == nil {
		it.pageId = types.InvalidPageID
		return
	}
	leaf := page.CastPageAsBPlusTreeLeafPage(p)
	size := leaf.GetSize()
	nextId := leaf.GetNextPageId()
	it.tree.bpm.UnpinPage(it.pageId, false)

	it.slot++
	if it.slot < size {
		return
	}
	it.pageId = nextId
	it.slot = 0
}
