package access

import (
	"unsafe"

	"github.com/tsurudb/TsuruDB/common"
	"github.com/tsurudb/TsuruDB/errors"
	"github.com/tsurudb/TsuruDB/storage/page"
	"github.com/tsurudb/TsuruDB/storage/table/schema"
	"github.com/tsurudb/TsuruDB/storage/tuple"
	"github.com/tsurudb/TsuruDB/types"
)

const deleteMask = uint32(1 << ((8 * 4) - 1))

const sizeTablePageHeader = uint32(24)
const sizeSlot = uint32(8)
const offsetPrevPageId = uint32(8)
const offsetNextPageId = uint32(12)
const offsetFreeSpace = uint32(16)
const offsetTupleCount = uint32(20)
const offsetTupleOffset = uint32(24)
const offsetTupleSize = uint32(28)

// SizeMaxRow is the largest serialized row a table page can hold: the page
// minus the header and one slot directory entry.
const SizeMaxRow = common.PageSize - sizeTablePageHeader - sizeSlot

const ErrGeneral = errors.ErrGeneral
const ErrEmptyTuple = errors.Error("tuple cannot be empty")
const ErrNotEnoughSpace = errors.Error("there is not enough space")
const ErrNoTuple = errors.Error("tuple does not exist")
const ErrDeletedTuple = errors.Error("tuple is deleted")

// Slotted page format:
//
//	---------------------------------------------------------
//	| HEADER | ... FREE SPACE ... | ... INSERTED TUPLES ... |
//	---------------------------------------------------------
//	                              ^
//	                              free space pointer
//	Header format (size in bytes):
//	----------------------------------------------------------------------------
//	| PageId (4)| LSN (4)| PrevPageId (4)| NextPageId (4)| FreeSpacePointer(4) |
//	----------------------------------------------------------------------------
//	----------------------------------------------------------------
//	| TupleCount (4) | Tuple_1 offset (4) | Tuple_1 size (4) | ... |
//	----------------------------------------------------------------
//
// The high bit of a slot's size marks logical deletion.
type TablePage struct {
	page.Page
}

// CastPageAsTablePage casts the abstract Page struct into TablePage
func CastPageAsTablePage(page *page.Page) *TablePage {
	if page == nil {
		return nil
	}
	return (*TablePage)(unsafe.Pointer(page))
}

// Init initializes the table page header
func (tp *TablePage) Init(pageId types.PageID, prevPageId types.PageID) {
	tp.SetSerializedPageId(pageId)
	tp.SetPrevPageId(prevPageId)
	tp.SetNextPageId(types.InvalidPageID)
	tp.SetTupleCount(0)
	tp.SetFreeSpacePointer(common.PageSize) // point to the end of the page
}

// InsertTuple inserts a serialized row into the page and fills in its RID
func (tp *TablePage) InsertTuple(row *tuple.Row) error {
	data := row.Serialize()
	size := uint32(len(data))
	if size == 0 {
		return ErrEmptyTuple
	}

	if tp.getFreeSpaceRemaining() < size+sizeSlot {
		return ErrNotEnoughSpace
	}

	// reuse the first emptied slot, if any
	var slot uint32
	for slot = uint32(0); slot < tp.GetTupleCount(); slot++ {
		if tp.GetTupleSize(slot) == 0 {
			break
		}
	}

	tp.SetFreeSpacePointer(tp.GetFreeSpacePointer() - size)
	tp.setTuple(slot, data)

	if slot == tp.GetTupleCount() {
		tp.SetTupleCount(tp.GetTupleCount() + 1)
	}

	rid := &page.RID{}
	rid.Set(tp.GetPageId(), slot)
	row.SetRID(rid)
	return nil
}

// UpdateTuple replaces the tuple in place, compacting the neighbors. Fails
// with ErrNotEnoughSpace when the new image does not fit even after
// compaction; the heap then falls back to delete-and-insert.
func (tp *TablePage) UpdateTuple(newRow *tuple.Row, rid *page.RID) (bool, error) {
	newData := newRow.Serialize()
	newSize := uint32(len(newData))
	common.Assert(newSize > 0, "cannot have empty tuples")

	slot := rid.GetSlotNum()
	if slot >= tp.GetTupleCount() {
		return false, ErrNoTuple
	}
	tupleSize := tp.GetTupleSize(slot)
	if IsDeleted(tupleSize) {
		return false, ErrDeletedTuple
	}

	if tp.getFreeSpaceRemaining()+tupleSize < newSize {
		return false, ErrNotEnoughSpace
	}

	tupleOffset := tp.GetTupleOffsetAtSlot(slot)
	freeSpacePointer := tp.GetFreeSpacePointer()
	common.Assert(tupleOffset >= freeSpacePointer, "offset should appear after current free space position")

	// slide the tuples between the free space pointer and the target so the
	// new image occupies the target's tail end
	copy(tp.Data()[freeSpacePointer+tupleSize-newSize:], tp.Data()[freeSpacePointer:tupleOffset])
	tp.SetFreeSpacePointer(freeSpacePointer + tupleSize - newSize)
	copy(tp.Data()[tupleOffset+tupleSize-newSize:], newData)
	tp.SetTupleSize(slot, newSize)

	// update the offsets of the tuples that were slid
	tupleCount := tp.GetTupleCount()
	for i := uint32(0); i < tupleCount; i++ {
		offsetI := tp.GetTupleOffsetAtSlot(i)
		if tp.GetTupleSize(i) > 0 && offsetI < tupleOffset+tupleSize {
			tp.SetTupleOffsetAtSlot(i, offsetI+tupleSize-newSize)
		}
	}

	newRow.SetRID(rid)
	return true, nil
}

// MarkDelete flags the tuple as deleted without reclaiming its space
func (tp *TablePage) MarkDelete(rid *page.RID) bool {
	slot := rid.GetSlotNum()
	if slot >= tp.GetTupleCount() {
		return false
	}

	tupleSize := tp.GetTupleSize(slot)
	if IsDeleted(tupleSize) {
		return false
	}

	if tupleSize > 0 {
		tp.SetTupleSize(slot, SetDeletedFlag(tupleSize))
	}
	return true
}

// ApplyDelete physically removes the tuple and compacts the page
func (tp *TablePage) ApplyDelete(rid *page.RID) {
	slot := rid.GetSlotNum()
	common.Assert(slot < tp.GetTupleCount(), "cannot have more slots than tuples")

	tupleOffset := tp.GetTupleOffsetAtSlot(slot)
	tupleSize := tp.GetTupleSize(slot)
	if IsDeleted(tupleSize) {
		tupleSize = UnsetDeletedFlag(tupleSize)
	}

	freeSpacePointer := tp.GetFreeSpacePointer()
	common.Assert(tupleOffset >= freeSpacePointer, "free space appears before tuples")

	copy(tp.Data()[freeSpacePointer+tupleSize:], tp.Data()[freeSpacePointer:tupleOffset])
	tp.SetFreeSpacePointer(freeSpacePointer + tupleSize)
	tp.SetTupleSize(slot, 0)
	tp.SetTupleOffsetAtSlot(slot, 0)

	// update the offsets of the tuples that were slid
	tupleCount := tp.GetTupleCount()
	for i := uint32(0); i < tupleCount; i++ {
		offsetI := tp.GetTupleOffsetAtSlot(i)
		if tp.GetTupleSize(i) != 0 && offsetI < tupleOffset {
			tp.SetTupleOffsetAtSlot(i, offsetI+tupleSize)
		}
	}
}

// RollbackDelete clears the delete flag
func (tp *TablePage) RollbackDelete(rid *page.RID) {
	slot := rid.GetSlotNum()
	common.Assert(slot < tp.GetTupleCount(), "cannot have more slots than tuples")
	tupleSize := tp.GetTupleSize(slot)

	if tupleSize&deleteMask != 0 {
		tp.SetTupleSize(slot, UnsetDeletedFlag(tupleSize))
	}
}

// GetTuple materializes the tuple at the given RID
func (tp *TablePage) GetTuple(rid *page.RID, schema_ *schema.Schema) (*tuple.Row, error) {
	slot := rid.GetSlotNum()
	if slot >= tp.GetTupleCount() {
		return nil, ErrNoTuple
	}

	tupleOffset := tp.GetTupleOffsetAtSlot(slot)
	tupleSize := tp.GetTupleSize(slot)
	if tupleOffset == 0 && tupleSize == 0 {
		return nil, ErrNoTuple
	}
	if IsDeleted(tupleSize) {
		return nil, ErrDeletedTuple
	}

	row, _ := tuple.NewRowFromBytes(tp.Data()[tupleOffset:], schema_)
	retRID := &page.RID{}
	retRID.Set(rid.GetPageId(), slot)
	row.SetRID(retRID)
	return row, nil
}

// GetTupleFirstRID finds the first live tuple of the page
func (tp *TablePage) GetTupleFirstRID() *page.RID {
	tupleCount := tp.GetTupleCount()
	for i := uint32(0); i < tupleCount; i++ {
		if !IsDeleted(tp.GetTupleSize(i)) {
			firstRID := &page.RID{}
			firstRID.Set(tp.GetPageId(), i)
			return firstRID
		}
	}
	return nil
}

// GetNextTupleRID finds the first live tuple after the current slot
func (tp *TablePage) GetNextTupleRID(curRID *page.RID) *page.RID {
	tupleCount := tp.GetTupleCount()
	for i := curRID.GetSlotNum() + 1; i < tupleCount; i++ {
		if !IsDeleted(tp.GetTupleSize(i)) {
			nextRID := &page.RID{}
			nextRID.Set(tp.GetPageId(), i)
			return nextRID
		}
	}
	return nil
}

// set value to Page data memory area, not to Page id
func (tp *TablePage) SetSerializedPageId(pageId types.PageID) {
	tp.Copy(0, pageId.Serialize())
}

func (tp *TablePage) GetPrevPageId() types.PageID {
	return types.NewPageIDFromBytes(tp.Data()[offsetPrevPageId:])
}

func (tp *TablePage) SetPrevPageId(pageId types.PageID) {
	tp.Copy(offsetPrevPageId, pageId.Serialize())
}

func (tp *TablePage) GetNextPageId() types.PageID {
	return types.NewPageIDFromBytes(tp.Data()[offsetNextPageId:])
}

func (tp *TablePage) SetNextPageId(pageId types.PageID) {
	tp.Copy(offsetNextPageId, pageId.Serialize())
}

func (tp *TablePage) GetFreeSpacePointer() uint32 {
	return uint32(types.NewUInt32FromBytes(tp.Data()[offsetFreeSpace:]))
}

func (tp *TablePage) SetFreeSpacePointer(freeSpacePointer uint32) {
	common.Assert(freeSpacePointer <= common.PageSize, "illegal free space pointer value")
	tp.Copy(offsetFreeSpace, types.UInt32(freeSpacePointer).Serialize())
}

func (tp *TablePage) GetTupleCount() uint32 {
	return uint32(types.NewUInt32FromBytes(tp.Data()[offsetTupleCount:]))
}

func (tp *TablePage) SetTupleCount(tupleCount uint32) {
	tp.Copy(offsetTupleCount, types.UInt32(tupleCount).Serialize())
}

func (tp *TablePage) GetTupleOffsetAtSlot(slot uint32) uint32 {
	return uint32(types.NewUInt32FromBytes(tp.Data()[offsetTupleOffset+sizeSlot*slot:]))
}

func (tp *TablePage) SetTupleOffsetAtSlot(slot uint32, offset uint32) {
	tp.Copy(offsetTupleOffset+sizeSlot*slot, types.UInt32(offset).Serialize())
}

func (tp *TablePage) GetTupleSize(slot uint32) uint32 {
	return uint32(types.NewUInt32FromBytes(tp.Data()[offsetTupleSize+sizeSlot*slot:]))
}

func (tp *TablePage) SetTupleSize(slot uint32, size uint32) {
	tp.Copy(offsetTupleSize+sizeSlot*slot, types.UInt32(size).Serialize())
}

func (tp *TablePage) getFreeSpaceRemaining() uint32 {
	return tp.GetFreeSpacePointer() - sizeTablePageHeader - sizeSlot*tp.GetTupleCount()
}

func (tp *TablePage) setTuple(slot uint32, data []byte) {
	fsp := tp.GetFreeSpacePointer()
	tp.Copy(fsp, data)
	tp.SetTupleOffsetAtSlot(slot, fsp)
	tp.SetTupleSize(slot, uint32(len(data)))
}

// IsDeleted reports whether the slot size carries the delete flag or is empty
func IsDeleted(tupleSize uint32) bool {
	return tupleSize&deleteMask == deleteMask || tupleSize == 0
}

// SetDeletedFlag returns the tuple size with the delete flag set
func SetDeletedFlag(tupleSize uint32) uint32 {
	return tupleSize | deleteMask
}

// UnsetDeletedFlag returns the tuple size with the delete flag unset
func UnsetDeletedFlag(tupleSize uint32) uint32 {
	return tupleSize &^ deleteMask
}
