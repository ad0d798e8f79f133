package page

import (
	"unsafe"

	"github.com/tsurudb/TsuruDB/common"
	"github.com/tsurudb/TsuruDB/types"
)

// Leaf node page. Stores Size (key, RID) pairs in key order after the leaf
// header; leaves are chained through NextPageId in key order.
//
//	| HEADER | NextPageId (4) | Key_0 RID_0 | Key_1 RID_1 | ... |
const offsetLeafNextPageId = SizeOfBPlusTreePageHeader

const SizeOfBPlusTreeLeafPageHeader = SizeOfBPlusTreePageHeader + 4

type BPlusTreeLeafPage struct {
	BPlusTreePage
}

// CastPageAsBPlusTreeLeafPage casts the abstract Page struct into
// BPlusTreeLeafPage
func CastPageAsBPlusTreeLeafPage(page *Page) *BPlusTreeLeafPage {
	if page == nil {
		return nil
	}
	return (*BPlusTreeLeafPage)(unsafe.Pointer(page))
}

// Init formats the page as an empty leaf
func (lp *BPlusTreeLeafPage) Init(pageId types.PageID, parentId types.PageID, keySize uint32, maxSize uint32) {
	lp.SetPageType(LeafTreePage)
	lp.SetKeySize(keySize)
	lp.SetSize(0)
	lp.SetMaxSize(maxSize)
	lp.SetParentPageId(parentId)
	lp.SetSerializedPageId(pageId)
	lp.SetNextPageId(types.InvalidPageID)
}

func (lp *BPlusTreeLeafPage) GetNextPageId() types.PageID {
	return types.NewPageIDFromBytes(lp.Data()[offsetLeafNextPageId:])
}

func (lp *BPlusTreeLeafPage) SetNextPageId(pageId types.PageID) {
	lp.Copy(offsetLeafNextPageId, pageId.Serialize())
}

func (lp *BPlusTreeLeafPage) entrySize() uint32 {
	return lp.GetKeySize() + SizeOfRID
}

func (lp *BPlusTreeLeafPage) entryOffset(index uint32) uint32 {
	offset := SizeOfBPlusTreeLeafPageHeader + index*lp.entrySize()
	common.Assert(offset+lp.entrySize() <= common.PageSize, "leaf entry out of page bounds")
	return offset
}

// KeyAt returns a copy of the key in the given slot
func (lp *BPlusTreeLeafPage) KeyAt(index uint32) []byte {
	offset := lp.entryOffset(index)
	ret := make([]byte, lp.GetKeySize())
	copy(ret, lp.Data()[offset:offset+lp.GetKeySize()])
	return ret
}

func (lp *BPlusTreeLeafPage) SetKeyAt(index uint32, key []byte) {
	lp.Copy(lp.entryOffset(index), key[:lp.GetKeySize()])
}

// RIDAt returns the record id in the given slot
func (lp *BPlusTreeLeafPage) RIDAt(index uint32) RID {
	return NewRIDFromBytes(lp.Data()[lp.entryOffset(index)+lp.GetKeySize():])
}

func (lp *BPlusTreeLeafPage) SetRIDAt(index uint32, rid RID) {
	lp.Copy(lp.entryOffset(index)+lp.GetKeySize(), rid.Serialize())
}

// GetItem returns the (key, RID) pair in the given slot
func (lp *BPlusTreeLeafPage) GetItem(index uint32) ([]byte, RID) {
	return lp.KeyAt(index), lp.RIDAt(index)
}

// KeyIndex returns the first slot whose key is >= key (Size when none is)
func (lp *BPlusTreeLeafPage) KeyIndex(key []byte, comparator KeyComparator) uint32 {
	lo := uint32(0)
	hi := lp.GetSize()
	for lo < hi {
		mid := (lo + hi) / 2
		if comparator(lp.KeyAt(mid), key) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// Lookup finds the record id of an exactly matching key
func (lp *BPlusTreeLeafPage) Lookup(key []byte, comparator KeyComparator) (RID, bool) {
	idx := lp.KeyIndex(key, comparator)
	if idx < lp.GetSize() && comparator(lp.KeyAt(idx), key) == 0 {
		return lp.RIDAt(idx), true
	}
	return RID{}, false
}

// Insert inserts (key, rid) keeping the entries sorted and returns the new
// size. The caller has checked the key is not present.
func (lp *BPlusTreeLeafPage) Insert(key []byte, rid RID, comparator KeyComparator) uint32 {
	idx := lp.KeyIndex(key, comparator)
	size := lp.GetSize()
	for i := size; i > idx; i-- {
		lp.SetKeyAt(i, lp.KeyAt(i-1))
		lp.SetRIDAt(i, lp.RIDAt(i-1))
	}
	lp.SetKeyAt(idx, key)
	lp.SetRIDAt(idx, rid)
	lp.SetSize(size + 1)
	return size + 1
}

// RemoveRecord removes the entry of the key if present and returns the new
// size together with whether a removal happened
func (lp *BPlusTreeLeafPage) RemoveRecord(key []byte, comparator KeyComparator) (uint32, bool) {
	idx := lp.KeyIndex(key, comparator)
	size := lp.GetSize()
	if idx >= size || comparator(lp.KeyAt(idx), key) != 0 {
		return size, false
	}
	for i := idx; i+1 < size; i++ {
		lp.SetKeyAt(i, lp.KeyAt(i+1))
		lp.SetRIDAt(i, lp.RIDAt(i+1))
	}
	lp.SetSize(size - 1)
	return size - 1, true
}

// MoveHalfTo moves the upper half of the entries to an empty recipient (the
// new right sibling) and splices the recipient into the leaf chain
func (lp *BPlusTreeLeafPage) MoveHalfTo(recipient *BPlusTreeLeafPage) {
	size := lp.GetSize()
	splitFrom := size / 2
	for i := splitFrom; i < size; i++ {
		recipient.SetKeyAt(i-splitFrom, lp.KeyAt(i))
		recipient.SetRIDAt(i-splitFrom, lp.RIDAt(i))
	}
	recipient.SetSize(size - splitFrom)
	lp.SetSize(splitFrom)
	recipient.SetNextPageId(lp.GetNextPageId())
	lp.SetNextPageId(recipient.GetSerializedPageId())
}

// MoveAllTo appends every entry to the left sibling and unlinks this leaf
// from the chain
func (lp *BPlusTreeLeafPage) MoveAllTo(recipient *BPlusTreeLeafPage) {
	size := lp.GetSize()
	recipientSize := recipient.GetSize()
	for i := uint32(0); i < size; i++ {
		recipient.SetKeyAt(recipientSize+i, lp.KeyAt(i))
		recipient.SetRIDAt(recipientSize+i, lp.RIDAt(i))
	}
	recipient.SetSize(recipientSize + size)
	lp.SetSize(0)
	recipient.SetNextPageId(lp.GetNextPageId())
}

// MoveFirstToEndOf moves this leaf's first entry to the end of the left
// sibling
func (lp *BPlusTreeLeafPage) MoveFirstToEndOf(recipient *BPlusTreeLeafPage) {
	key, rid := lp.GetItem(0)
	size := lp.GetSize()
	for i := uint32(0); i+1 < size; i++ {
		lp.SetKeyAt(i, lp.KeyAt(i+1))
		lp.SetRIDAt(i, lp.RIDAt(i+1))
	}
	lp.SetSize(size - 1)
	recipientSize := recipient.GetSize()
	recipient.SetKeyAt(recipientSize, key)
	recipient.SetRIDAt(recipientSize, rid)
	recipient.SetSize(recipientSize + 1)
}

// MoveLastToFrontOf moves this leaf's last entry to the front of the right
// sibling
func (lp *BPlusTreeLeafPage) MoveLastToFrontOf(recipient *BPlusTreeLeafPage) {
	size := lp.GetSize()
	key, rid := lp.GetItem(size - 1)
	lp.SetSize(size - 1)
	recipientSize := recipient.GetSize()
	for i := recipientSize; i > 0; i-- {
		recipient.SetKeyAt(i, recipient.KeyAt(i-1))
		recipient.SetRIDAt(i, recipient.RIDAt(i-1))
	}
	recipient.SetKeyAt(0, key)
	recipient.SetRIDAt(0, rid)
	recipient.SetSize(recipientSize + 1)
}
