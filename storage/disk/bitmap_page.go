package disk

import (
	"github.com/tsurudb/TsuruDB/common"
	"github.com/tsurudb/TsuruDB/types"
)

// A bitmap page is a one-page allocator for the data pages of its extent.
// Bit = 1 means allocated. The hint points at a likely-free offset so
// allocation does not rescan the whole array every time.
//
//	--------------------------------------------------------
//	| PageAllocated (4) | NextFreeHint (4) | bit array ... |
//	--------------------------------------------------------
const sizeBitmapHeader = 8
const offsetPageAllocated = 0
const offsetNextFreeHint = 4

// BitmapCapacity is the number of data pages one bitmap page governs.
const BitmapCapacity = (common.PageSize - sizeBitmapHeader) * 8

type BitmapPage struct {
	data *[common.PageSize]byte
}

func NewBitmapPage(data *[common.PageSize]byte) *BitmapPage {
	return &BitmapPage{data}
}

func (bp *BitmapPage) PageAllocated() uint32 {
	return uint32(types.NewUInt32FromBytes(bp.data[offsetPageAllocated:]))
}

func (bp *BitmapPage) setPageAllocated(num uint32) {
	copy(bp.data[offsetPageAllocated:], types.UInt32(num).Serialize())
}

func (bp *BitmapPage) NextFreeHint() uint32 {
	return uint32(types.NewUInt32FromBytes(bp.data[offsetNextFreeHint:]))
}

func (bp *BitmapPage) setNextFreeHint(offset uint32) {
	copy(bp.data[offsetNextFreeHint:], types.UInt32(offset).Serialize())
}

func (bp *BitmapPage) bit(offset uint32) bool {
	return bp.data[sizeBitmapHeader+offset/8]&(1<<(offset%8)) != 0
}

func (bp *BitmapPage) setBit(offset uint32, allocated bool) {
	if allocated {
		bp.data[sizeBitmapHeader+offset/8] |= 1 << (offset % 8)
	} else {
		bp.data[sizeBitmapHeader+offset/8] &^= 1 << (offset % 8)
	}
}

// AllocatePage sets the first free bit scanning from the hint to the end and
// then from 0 to the hint, and returns the allocated offset.
func (bp *BitmapPage) AllocatePage() (uint32, bool) {
	if bp.PageAllocated() >= BitmapCapacity {
		return 0, false
	}
	hint := bp.NextFreeHint()
	if hint >= BitmapCapacity {
		hint = 0
	}
	for i := uint32(0); i < BitmapCapacity; i++ {
		offset := (hint + i) % BitmapCapacity
		if !bp.bit(offset) {
			bp.setBit(offset, true)
			bp.setPageAllocated(bp.PageAllocated() + 1)
			bp.setNextFreeHint((offset + 1) % BitmapCapacity)
			return offset, true
		}
	}
	return 0, false
}

// DeallocatePage clears the bit of the offset and lowers the hint if the
// freed offset is earlier. Fails when the offset is out of range or already
// free.
func (bp *BitmapPage) DeallocatePage(offset uint32) bool {
	if offset >= BitmapCapacity || !bp.bit(offset) {
		return false
	}
	bp.setBit(offset, false)
	bp.setPageAllocated(bp.PageAllocated() - 1)
	if offset < bp.NextFreeHint() {
		bp.setNextFreeHint(offset)
	}
	return true
}

// IsPageFree reports whether the offset's bit is clear
func (bp *BitmapPage) IsPageFree(offset uint32) bool {
	if offset >= BitmapCapacity {
		return false
	}
	return !bp.bit(offset)
}
