package page

import (
	"unsafe"

	"github.com/tsurudb/TsuruDB/common"
	"github.com/tsurudb/TsuruDB/types"
)

// Internal node page. Stores Size (key, childPageId) pairs after the common
// header; the key in slot 0 is a dummy and never compared. The child at slot
// i covers keys in [key_i, key_i+1).
//
//	| HEADER | Key_0 Child_0 | Key_1 Child_1 | ... |
type BPlusTreeInternalPage struct {
	BPlusTreePage
}

// CastPageAsBPlusTreeInternalPage casts the abstract Page struct into
// BPlusTreeInternalPage
func CastPageAsBPlusTreeInternalPage(page *Page) *BPlusTreeInternalPage {
	if page == nil {
		return nil
	}
	return (*BPlusTreeInternalPage)(unsafe.Pointer(page))
}

// Init formats the page as an empty internal node
func (ip *BPlusTreeInternalPage) Init(pageId types.PageID, parentId types.PageID, keySize uint32, maxSize uint32) {
	ip.SetPageType(InternalTreePage)
	ip.SetKeySize(keySize)
	ip.SetSize(0)
	ip.SetMaxSize(maxSize)
	ip.SetParentPageId(parentId)
	ip.SetSerializedPageId(pageId)
}

func (ip *BPlusTreeInternalPage) entrySize() uint32 {
	return ip.GetKeySize() + types.SizeOfPageID
}

func (ip *BPlusTreeInternalPage) entryOffset(index uint32) uint32 {
	offset := SizeOfBPlusTreePageHeader + index*ip.entrySize()
	common.Assert(offset+ip.entrySize() <= common.PageSize, "internal entry out of page bounds")
	return offset
}

// KeyAt returns a copy of the key in the given slot
func (ip *BPlusTreeInternalPage) KeyAt(index uint32) []byte {
	offset := ip.entryOffset(index)
	ret := make([]byte, ip.GetKeySize())
	copy(ret, ip.Data()[offset:offset+ip.GetKeySize()])
	return ret
}

func (ip *BPlusTreeInternalPage) SetKeyAt(index uint32, key []byte) {
	ip.Copy(ip.entryOffset(index), key[:ip.GetKeySize()])
}

// ValueAt returns the child page id in the given slot
func (ip *BPlusTreeInternalPage) ValueAt(index uint32) types.PageID {
	return types.NewPageIDFromBytes(ip.Data()[ip.entryOffset(index)+ip.GetKeySize():])
}

func (ip *BPlusTreeInternalPage) SetValueAt(index uint32, value types.PageID) {
	ip.Copy(ip.entryOffset(index)+ip.GetKeySize(), value.Serialize())
}

// ValueIndex returns the slot holding the given child, or -1
func (ip *BPlusTreeInternalPage) ValueIndex(value types.PageID) int32 {
	size := ip.GetSize()
	for i := uint32(0); i < size; i++ {
		if ip.ValueAt(i) == value {
			return int32(i)
		}
	}
	return -1
}

// Lookup returns the child whose key range covers the search key: the child
// of the rightmost slot whose key is <= key, searching from slot 1.
func (ip *BPlusTreeInternalPage) Lookup(key []byte, comparator KeyComparator) types.PageID {
	lo := uint32(1)
	hi := ip.GetSize() // exclusive
	// binary search for the first slot with key_i > key
	for lo < hi {
		mid := (lo + hi) / 2
		if comparator(ip.KeyAt(mid), key) <= 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return ip.ValueAt(lo - 1)
}

// PopulateNewRoot turns an empty internal page into a root with two children
// separated by key
func (ip *BPlusTreeInternalPage) PopulateNewRoot(oldChild types.PageID, key []byte, newChild types.PageID) {
	ip.SetValueAt(0, oldChild)
	ip.SetKeyAt(1, key)
	ip.SetValueAt(1, newChild)
	ip.SetSize(2)
}

// InsertNodeAfter inserts (key, newChild) immediately after the slot holding
// oldChild and returns the new size
func (ip *BPlusTreeInternalPage) InsertNodeAfter(oldChild types.PageID, key []byte, newChild types.PageID) uint32 {
	idx := ip.ValueIndex(oldChild)
	common.Assert(idx >= 0, "InsertNodeAfter: old child is not present")
	size := ip.GetSize()
	for i := size; i > uint32(idx)+1; i-- {
		ip.SetKeyAt(i, ip.KeyAt(i-1))
		ip.SetValueAt(i, ip.ValueAt(i-1))
	}
	ip.SetKeyAt(uint32(idx)+1, key)
	ip.SetValueAt(uint32(idx)+1, newChild)
	ip.SetSize(size + 1)
	return size + 1
}

// Remove removes the entry at index, shifting followers left
func (ip *BPlusTreeInternalPage) Remove(index uint32) {
	size := ip.GetSize()
	for i := index; i+1 < size; i++ {
		ip.SetKeyAt(i, ip.KeyAt(i+1))
		ip.SetValueAt(i, ip.ValueAt(i+1))
	}
	ip.SetSize(size - 1)
}

// RemoveAndReturnOnlyChild empties a size-1 root and returns its only child
func (ip *BPlusTreeInternalPage) RemoveAndReturnOnlyChild() types.PageID {
	common.Assert(ip.GetSize() == 1, "RemoveAndReturnOnlyChild: size must be 1")
	ret := ip.ValueAt(0)
	ip.SetSize(0)
	return ret
}

// MoveHalfTo moves the upper half of the entries to an empty recipient (the
// new right sibling) and returns the moved child page ids so the caller can
// reparent them. The recipient's slot 0 key is the separator to push up.
func (ip *BPlusTreeInternalPage) MoveHalfTo(recipient *BPlusTreeInternalPage) []types.PageID {
	size := ip.GetSize()
	splitFrom := size / 2
	moved := make([]types.PageID, 0, size-splitFrom)
	for i := splitFrom; i < size; i++ {
		recipient.SetKeyAt(i-splitFrom, ip.KeyAt(i))
		recipient.SetValueAt(i-splitFrom, ip.ValueAt(i))
		moved = append(moved, ip.ValueAt(i))
	}
	recipient.SetSize(size - splitFrom)
	ip.SetSize(splitFrom)
	return moved
}

// MoveAllTo appends every entry to the left sibling, absorbing the parent's
// separator as the first moved key. Returns the moved child page ids.
func (ip *BPlusTreeInternalPage) MoveAllTo(recipient *BPlusTreeInternalPage, middleKey []byte) []types.PageID {
	size := ip.GetSize()
	recipientSize := recipient.GetSize()
	moved := make([]types.PageID, 0, size)
	for i := uint32(0); i < size; i++ {
		if i == 0 {
			recipient.SetKeyAt(recipientSize, middleKey)
		} else {
			recipient.SetKeyAt(recipientSize+i, ip.KeyAt(i))
		}
		recipient.SetValueAt(recipientSize+i, ip.ValueAt(i))
		moved = append(moved, ip.ValueAt(i))
	}
	recipient.SetSize(recipientSize + size)
	ip.SetSize(0)
	return moved
}

// MoveFirstToEndOf moves this node's first entry to the end of the left
// sibling. The parent's separator becomes the moved entry's key and the new
// separator is returned together with the moved child.
func (ip *BPlusTreeInternalPage) MoveFirstToEndOf(recipient *BPlusTreeInternalPage, middleKey []byte) (types.PageID, []byte) {
	moved := ip.ValueAt(0)
	newMiddle := ip.KeyAt(1)
	recipientSize := recipient.GetSize()
	recipient.SetKeyAt(recipientSize, middleKey)
	recipient.SetValueAt(recipientSize, moved)
	recipient.SetSize(recipientSize + 1)
	ip.Remove(0)
	return moved, newMiddle
}

// MoveLastToFrontOf moves this node's last entry to the front of the right
// sibling. The parent's separator drops into the sibling's old slot 0 key and
// the moved entry's key is the new separator, returned with the moved child.
func (ip *BPlusTreeInternalPage) MoveLastToFrontOf(recipient *BPlusTreeInternalPage, middleKey []byte) (types.PageID, []byte) {
	size := ip.GetSize()
	moved := ip.ValueAt(size - 1)
	newMiddle := ip.KeyAt(size - 1)
	recipientSize := recipient.GetSize()
	for i := recipientSize; i > 0; i-- {
		recipient.SetKeyAt(i, recipient.KeyAt(i-1))
		recipient.SetValueAt(i, recipient.ValueAt(i-1))
	}
	recipient.SetKeyAt(1, middleKey)
	recipient.SetValueAt(0, moved)
	recipient.SetSize(recipientSize + 1)
	ip.SetSize(size - 1)
	return moved, newMiddle
}
