package page

import (
	"unsafe"

	"github.com/tsurudb/TsuruDB/common"
	"github.com/tsurudb/TsuruDB/types"
)

// The index roots page lives at a fixed logical page and records, for every
// index, the page id of its current B+ tree root.
//
//	-----------------------------------------------------------
//	| Magic (4) | Count (4) | IndexId (4) | RootPageId (4) | ...
//	-----------------------------------------------------------
const IndexRootsMagicNum = uint32(73489)

const offsetRootsMagic = uint32(0)
const offsetRootsCount = uint32(4)
const offsetRootsEntries = uint32(8)
const sizeRootsEntry = uint32(8)

const MaxIndexRootsEntries = (common.PageSize - offsetRootsEntries) / sizeRootsEntry

type IndexRootsPage struct {
	Page
}

// CastPageAsIndexRootsPage casts the abstract Page struct into IndexRootsPage
func CastPageAsIndexRootsPage(page *Page) *IndexRootsPage {
	if page == nil {
		return nil
	}
	return (*IndexRootsPage)(unsafe.Pointer(page))
}

// Init formats an empty roots page
func (rp *IndexRootsPage) Init() {
	rp.Copy(offsetRootsMagic, types.UInt32(IndexRootsMagicNum).Serialize())
	rp.setCount(0)
}

// IsValid reports whether the page carries the roots magic number
func (rp *IndexRootsPage) IsValid() bool {
	return uint32(types.NewUInt32FromBytes(rp.Data()[offsetRootsMagic:])) == IndexRootsMagicNum
}

func (rp *IndexRootsPage) Count() uint32 {
	return uint32(types.NewUInt32FromBytes(rp.Data()[offsetRootsCount:]))
}

func (rp *IndexRootsPage) setCount(count uint32) {
	rp.Copy(offsetRootsCount, types.UInt32(count).Serialize())
}

func (rp *IndexRootsPage) indexIdAt(pos uint32) uint32 {
	return uint32(types.NewUInt32FromBytes(rp.Data()[offsetRootsEntries+pos*sizeRootsEntry:]))
}

func (rp *IndexRootsPage) rootIdAt(pos uint32) types.PageID {
	return types.NewPageIDFromBytes(rp.Data()[offsetRootsEntries+pos*sizeRootsEntry+4:])
}

func (rp *IndexRootsPage) setEntryAt(pos uint32, indexId uint32, rootId types.PageID) {
	rp.Copy(offsetRootsEntries+pos*sizeRootsEntry, types.UInt32(indexId).Serialize())
	rp.Copy(offsetRootsEntries+pos*sizeRootsEntry+4, rootId.Serialize())
}

func (rp *IndexRootsPage) find(indexId uint32) (uint32, bool) {
	count := rp.Count()
	for pos := uint32(0); pos < count; pos++ {
		if rp.indexIdAt(pos) == indexId {
			return pos, true
		}
	}
	return 0, false
}

// GetRootId returns the recorded root of the index, if any
func (rp *IndexRootsPage) GetRootId(indexId uint32) (types.PageID, bool) {
	if pos, ok := rp.find(indexId); ok {
		return rp.rootIdAt(pos), true
	}
	return types.InvalidPageID, false
}

// Insert records a new index -> root mapping. Fails when the index is
// already present or the page is full.
func (rp *IndexRootsPage) Insert(indexId uint32, rootId types.PageID) bool {
	if _, ok := rp.find(indexId); ok {
		return false
	}
	count := rp.Count()
	if count >= MaxIndexRootsEntries {
		return false
	}
	rp.setEntryAt(count, indexId, rootId)
	rp.setCount(count + 1)
	return true
}

// Update replaces the root of an existing entry
func (rp *IndexRootsPage) Update(indexId uint32, rootId types.PageID) bool {
	if pos, ok := rp.find(indexId); ok {
		rp.setEntryAt(pos, indexId, rootId)
		return true
	}
	return false
}

// Delete removes the entry of the index, compacting the tail entry into the
// freed position
func (rp *IndexRootsPage) Delete(indexId uint32) bool {
	pos, ok := rp.find(indexId)
	if !ok {
		return false
	}
	count := rp.Count()
	if pos != count-1 {
		rp.setEntryAt(pos, rp.indexIdAt(count-1), rp.rootIdAt(count-1))
	}
	rp.setCount(count - 1)
	return true
}
