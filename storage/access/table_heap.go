package access

import (
	"github.com/tsurudb/TsuruDB/storage/buffer"
	"github.com/tsurudb/TsuruDB/storage/page"
	"github.com/tsurudb/TsuruDB/storage/table/schema"
	"github.com/tsurudb/TsuruDB/storage/tuple"
	"github.com/tsurudb/TsuruDB/types"
)

// TableHeap represents a physical table on disk: a singly linked list of
// slotted table pages starting at firstPageId.
type TableHeap struct {
	bpm         *buffer.BufferPoolManager
	firstPageId types.PageID
	schema      *schema.Schema
}

// NewTableHeap creates a table heap with a fresh first page
func NewTableHeap(bpm *buffer.BufferPoolManager, schema_ *schema.Schema) *TableHeap {
	p := bpm.NewPage()
	if p == nil {
		return nil
	}

	firstPage := CastPageAsTablePage(p)
	firstPage.WLatch()
	firstPage.Init(p.GetPageId(), types.InvalidPageID)
	firstPage.WUnlatch()
	bpm.UnpinPage(p.GetPageId(), true)
	return &TableHeap{bpm, p.GetPageId(), schema_}
}

// InitTableHeap opens an existing table heap
func InitTableHeap(bpm *buffer.BufferPoolManager, firstPageId types.PageID, schema_ *schema.Schema) *TableHeap {
	return &TableHeap{bpm, firstPageId, schema_}
}

// GetFirstPageId returns firstPageId
func (t *TableHeap) GetFirstPageId() types.PageID {
	return t.firstPageId
}

// GetSchema returns the schema rows of this heap follow
func (t *TableHeap) GetSchema() *schema.Schema {
	return t.schema
}

// InsertTuple inserts a row into the table and fills in its RID.
//
// It walks the page chain from the first page trying each page; when every
// page is full it links a fresh page after the last one and inserts there.
func (t *TableHeap) InsertTuple(row *tuple.Row) error {
	if row.SerializedSize() > SizeMaxRow {
		return ErrNotEnoughSpace
	}

	currentPage := CastPageAsTablePage(t.bpm.FetchPage(t.firstPageId))
	if currentPage == nil {
		return ErrGeneral
	}
	currentPage.WLatch()

	for {
		err := currentPage.InsertTuple(row)
		if err == nil {
			break
		}
		if err != ErrNotEnoughSpace {
			currentPage.WUnlatch()
			t.bpm.UnpinPage(currentPage.GetPageId(), false)
			return err
		}

		nextPageId := currentPage.GetNextPageId()
		if nextPageId.IsValid() {
			nextPage := CastPageAsTablePage(t.bpm.FetchPage(nextPageId))
			if nextPage == nil {
				currentPage.WUnlatch()
				t.bpm.UnpinPage(currentPage.GetPageId(), false)
				return ErrGeneral
			}
			nextPage.WLatch()
			currentPage.WUnlatch()
			t.bpm.UnpinPage(currentPage.GetPageId(), false)
			currentPage = nextPage
		} else {
			p := t.bpm.NewPage()
			if p == nil {
				currentPage.WUnlatch()
				t.bpm.UnpinPage(currentPage.GetPageId(), false)
				return ErrGeneral
			}
			newPage := CastPageAsTablePage(p)
			newPage.WLatch()
			currentPage.SetNextPageId(p.GetPageId())
			newPage.Init(p.GetPageId(), currentPage.GetPageId())
			currentPage.WUnlatch()
			t.bpm.UnpinPage(currentPage.GetPageId(), true)
			currentPage = newPage
		}
	}

	currentPage.WUnlatch()
	t.bpm.UnpinPage(currentPage.GetPageId(), true)
	return nil
}

// UpdateTuple updates the tuple at rid. The in-place path is tried first;
// when the new image no longer fits that page, the tuple is mark-deleted and
// the new row inserted wherever it fits, rolling the delete back if the
// insert fails.
func (t *TableHeap) UpdateTuple(newRow *tuple.Row, rid *page.RID) (bool, error) {
	pg := CastPageAsTablePage(t.bpm.FetchPage(rid.GetPageId()))
	if pg == nil {
		return false, ErrGeneral
	}
	pg.WLatch()
	isUpdated, err := pg.UpdateTuple(newRow, rid)
	pg.WUnlatch()
	t.bpm.UnpinPage(pg.GetPageId(), isUpdated)

	if isUpdated || err != ErrNotEnoughSpace {
		return isUpdated, err
	}

	// fall back to delete-and-insert
	if _, err := t.GetTuple(rid); err != nil {
		return false, err
	}
	if newRow.SerializedSize() > SizeMaxRow {
		return false, ErrNotEnoughSpace
	}
	if !t.MarkDelete(rid) {
		return false, ErrGeneral
	}
	if err := t.InsertTuple(newRow); err != nil {
		t.RollbackDelete(rid)
		return false, err
	}
	t.ApplyDelete(rid)
	return true, nil
}

// MarkDelete flags the tuple at rid as deleted
func (t *TableHeap) MarkDelete(rid *page.RID) bool {
	pg := CastPageAsTablePage(t.bpm.FetchPage(rid.GetPageId()))
	if pg == nil {
		return false
	}
	pg.WLatch()
	isMarked := pg.MarkDelete(rid)
	pg.WUnlatch()
	t.bpm.UnpinPage(pg.GetPageId(), isMarked)
	return isMarked
}

// ApplyDelete physically removes the tuple at rid
func (t *TableHeap) ApplyDelete(rid *page.RID) {
	pg := CastPageAsTablePage(t.bpm.FetchPage(rid.GetPageId()))
	if pg == nil {
		return
	}
	pg.WLatch()
	pg.ApplyDelete(rid)
	pg.WUnlatch()
	t.bpm.UnpinPage(pg.GetPageId(), true)
}

// RollbackDelete clears the delete flag of the tuple at rid
func (t *TableHeap) RollbackDelete(rid *page.RID) {
	pg := CastPageAsTablePage(t.bpm.FetchPage(rid.GetPageId()))
	if pg == nil {
		return
	}
	pg.WLatch()
	pg.RollbackDelete(rid)
	pg.WUnlatch()
	t.bpm.UnpinPage(pg.GetPageId(), true)
}

// GetTuple reads the tuple at rid
func (t *TableHeap) GetTuple(rid *page.RID) (*tuple.Row, error) {
	pg := CastPageAsTablePage(t.bpm.FetchPage(rid.GetPageId()))
	if pg == nil {
		return nil, ErrGeneral
	}
	pg.RLatch()
	row, err := pg.GetTuple(rid, t.schema)
	pg.RUnlatch()
	t.bpm.UnpinPage(pg.GetPageId(), false)
	return row, err
}

// GetFirstTuple reads the first live tuple of the table
func (t *TableHeap) GetFirstTuple() *tuple.Row {
	var rid *page.RID
	pageId := t.firstPageId
	for pageId.IsValid() {
		pg := CastPageAsTablePage(t.bpm.FetchPage(pageId))
		if pg == nil {
			return nil
		}
		pg.RLatch()
		rid = pg.GetTupleFirstRID()
		nextPageId := pg.GetNextPageId()
		pg.RUnlatch()
		t.bpm.UnpinPage(pageId, false)
		if rid != nil {
			break
		}
		pageId = nextPageId
	}
	if rid == nil {
		return nil
	}

	row, _ := t.GetTuple(rid)
	return row
}

// GetNextTuple reads the first live tuple after curRID, crossing to the next
// pages of the chain as needed
func (t *TableHeap) GetNextTuple(curRID *page.RID) *tuple.Row {
	pg := CastPageAsTablePage(t.bpm.FetchPage(curRID.GetPageId()))
	if pg == nil {
		return nil
	}
	pg.RLatch()
	nextRID := pg.GetNextTupleRID(curRID)
	nextPageId := pg.GetNextPageId()
	pg.RUnlatch()
	t.bpm.UnpinPage(pg.GetPageId(), false)

	for nextRID == nil && nextPageId.IsValid() {
		pg := CastPageAsTablePage(t.bpm.FetchPage(nextPageId))
		if pg == nil {
			return nil
		}
		pg.RLatch()
		nextRID = pg.GetTupleFirstRID()
		nextPageId = pg.GetNextPageId()
		pg.RUnlatch()
		t.bpm.UnpinPage(pg.GetPageId(), false)
	}

	if nextRID == nil {
		return nil
	}
	row, _ := t.GetTuple(nextRID)
	return row
}

// PageChainLength walks the page chain and counts its pages
func (t *TableHeap) PageChainLength() uint32 {
	count := uint32(0)
	pageId := t.firstPageId
	for pageId.IsValid() {
		pg := CastPageAsTablePage(t.bpm.FetchPage(pageId))
		if pg == nil {
			break
		}
		count++
		nextPageId := pg.GetNextPageId()
		t.bpm.UnpinPage(pg.GetPageId(), false)
		pageId = nextPageId
	}
	return count
}

// FreePages deletes every page of the chain from the buffer pool and disk
func (t *TableHeap) FreePages() {
	pageIds := make([]types.PageID, 0)
	pageId := t.firstPageId
	for pageId.IsValid() {
		pg := CastPageAsTablePage(t.bpm.FetchPage(pageId))
		if pg == nil {
			break
		}
		pageIds = append(pageIds, pageId)
		nextPageId := pg.GetNextPageId()
		t.bpm.UnpinPage(pg.GetPageId(), false)
		pageId = nextPageId
	}
	for _, pid := range pageIds {
		t.bpm.DeletePage(pid)
	}
}

// Iterator returns an iterator for this table heap
func (t *TableHeap) Iterator() *TableHeapIterator {
	return NewTableHeapIterator(t)
}

// GetBufferPoolManager returns the buffer pool the heap works against
func (t *TableHeap) GetBufferPoolManager() *buffer.BufferPoolManager {
	return t.bpm
}
