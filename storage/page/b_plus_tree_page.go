package page

import (
	"github.com/tsurudb/TsuruDB/types"
)

// Node pages of the B+ tree. Internal and leaf pages share a common header:
//
//	----------------------------------------------------------------------
//	| PageType (4) | KeySize (4) | Size (4) | MaxSize (4) |
//	----------------------------------------------------------------------
//	| ParentPageId (4) | PageId (4) |
//	----------------------------------------------------------------------
//
// Leaf pages extend the header with NextPageId (4).
type BPlusTreePageType uint32

const (
	InvalidTreePage BPlusTreePageType = iota
	InternalTreePage
	LeafTreePage
)

// KeyComparator orders two serialized keys; negative when a < b, zero when
// equal, positive when a > b.
type KeyComparator func(a []byte, b []byte) int

const offsetTreePageType = uint32(0)
const offsetTreeKeySize = uint32(4)
const offsetTreeSize = uint32(8)
const offsetTreeMaxSize = uint32(12)
const offsetTreeParentPageId = uint32(16)
const offsetTreePageId = uint32(20)

const SizeOfBPlusTreePageHeader = uint32(24)

type BPlusTreePage struct {
	Page
}

func (bp *BPlusTreePage) GetPageType() BPlusTreePageType {
	return BPlusTreePageType(types.NewUInt32FromBytes(bp.Data()[offsetTreePageType:]))
}

func (bp *BPlusTreePage) SetPageType(pageType BPlusTreePageType) {
	bp.Copy(offsetTreePageType, types.UInt32(pageType).Serialize())
}

func (bp *BPlusTreePage) IsLeafPage() bool {
	return bp.GetPageType() == LeafTreePage
}

func (bp *BPlusTreePage) GetKeySize() uint32 {
	return uint32(types.NewUInt32FromBytes(bp.Data()[offsetTreeKeySize:]))
}

func (bp *BPlusTreePage) SetKeySize(keySize uint32) {
	bp.Copy(offsetTreeKeySize, types.UInt32(keySize).Serialize())
}

func (bp *BPlusTreePage) GetSize() uint32 {
	return uint32(types.NewUInt32FromBytes(bp.Data()[offsetTreeSize:]))
}

func (bp *BPlusTreePage) SetSize(size uint32) {
	bp.Copy(offsetTreeSize, types.UInt32(size).Serialize())
}

func (bp *BPlusTreePage) IncreaseSize(amount int32) {
	bp.SetSize(uint32(int32(bp.GetSize()) + amount))
}

func (bp *BPlusTreePage) GetMaxSize() uint32 {
	return uint32(types.NewUInt32FromBytes(bp.Data()[offsetTreeMaxSize:]))
}

func (bp *BPlusTreePage) SetMaxSize(maxSize uint32) {
	bp.Copy(offsetTreeMaxSize, types.UInt32(maxSize).Serialize())
}

// GetMinSize returns the classical occupancy floor, ceil(max/2). The root is
// exempt; the tree handles it separately.
func (bp *BPlusTreePage) GetMinSize() uint32 {
	return (bp.GetMaxSize() + 1) / 2
}

func (bp *BPlusTreePage) GetParentPageId() types.PageID {
	return types.NewPageIDFromBytes(bp.Data()[offsetTreeParentPageId:])
}

func (bp *BPlusTreePage) SetParentPageId(parentPageId types.PageID) {
	bp.Copy(offsetTreeParentPageId, parentPageId.Serialize())
}

func (bp *BPlusTreePage) IsRootPage() bool {
	return !bp.GetParentPageId().IsValid()
}

// GetSerializedPageId returns the page id recorded inside the page image
func (bp *BPlusTreePage) GetSerializedPageId() types.PageID {
	return types.NewPageIDFromBytes(bp.Data()[offsetTreePageId:])
}

func (bp *BPlusTreePage) SetSerializedPageId(pageId types.PageID) {
	bp.Copy(offsetTreePageId, pageId.Serialize())
}
