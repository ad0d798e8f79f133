package disk

import (
	"github.com/tsurudb/TsuruDB/common"
	"github.com/tsurudb/TsuruDB/types"
)

// The disk file meta page is physical page 0 of the database file. It tracks
// how many pages are allocated overall and, per extent, how many of the
// extent's data pages are in use.
//
//	----------------------------------------------------------------
//	| NumAllocatedPages (4) | NumExtents (4) | ExtentUsedPage_0 (4) | ... |
//	----------------------------------------------------------------
const sizeMetaHeader = 8
const offsetNumAllocatedPages = 0
const offsetNumExtents = 4

// ExtentCapacity is the number of extent slots the meta page can describe.
const ExtentCapacity = (common.PageSize - sizeMetaHeader) / 4

type DiskFileMetaPage struct {
	data *[common.PageSize]byte
}

func NewDiskFileMetaPage(data *[common.PageSize]byte) *DiskFileMetaPage {
	return &DiskFileMetaPage{data}
}

func (mp *DiskFileMetaPage) GetAllocatedPages() uint32 {
	return uint32(types.NewUInt32FromBytes(mp.data[offsetNumAllocatedPages:]))
}

func (mp *DiskFileMetaPage) SetAllocatedPages(num uint32) {
	copy(mp.data[offsetNumAllocatedPages:], types.UInt32(num).Serialize())
}

func (mp *DiskFileMetaPage) GetExtentNums() uint32 {
	return uint32(types.NewUInt32FromBytes(mp.data[offsetNumExtents:]))
}

func (mp *DiskFileMetaPage) SetExtentNums(num uint32) {
	copy(mp.data[offsetNumExtents:], types.UInt32(num).Serialize())
}

func (mp *DiskFileMetaPage) GetExtentUsedPage(extent uint32) uint32 {
	return uint32(types.NewUInt32FromBytes(mp.data[sizeMetaHeader+extent*4:]))
}

func (mp *DiskFileMetaPage) SetExtentUsedPage(extent uint32, used uint32) {
	copy(mp.data[sizeMetaHeader+extent*4:], types.UInt32(used).Serialize())
}
