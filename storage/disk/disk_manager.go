package disk

import (
	"github.com/tsurudb/TsuruDB/types"
)

// DiskManager is responsible for interacting with disk. It owns the bitmap
// and meta pages of the database file and translates logical page ids to
// physical offsets.
type DiskManager interface {
	ReadPage(types.PageID, []byte) error
	WritePage(types.PageID, []byte) error
	AllocatePage() (types.PageID, error)
	DeallocatePage(types.PageID) error
	IsPageFree(types.PageID) bool
	ShutDown()
	Size() int64
}
