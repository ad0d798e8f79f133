package access

import (
	"strings"
	"testing"

	"github.com/tsurudb/TsuruDB/storage/buffer"
	"github.com/tsurudb/TsuruDB/storage/disk"
	"github.com/tsurudb/TsuruDB/storage/table/column"
	"github.com/tsurudb/TsuruDB/storage/table/schema"
	"github.com/tsurudb/TsuruDB/storage/tuple"
	testingpkg "github.com/tsurudb/TsuruDB/testing/testing_assert"
	"github.com/tsurudb/TsuruDB/types"
)

func newTestHeap(t *testing.T, schema_ *schema.Schema) (*TableHeap, disk.DiskManager) {
	dm := disk.NewDiskManagerTest()
	bpm := buffer.NewBufferPoolManager(10, dm)
	th := NewTableHeap(bpm, schema_)
	testingpkg.NotNil(t, th)
	return th, dm
}

func smallSchema() *schema.Schema {
	columnA := column.NewColumn("a", types.Integer, 0, false, false)
	columnB := column.NewColumn("b", types.Integer, 1, false, false)
	return schema.NewSchema([]*column.Column{columnA, columnB})
}

// wideSchema builds rows sized so exactly three fit on one page
func wideSchema(t *testing.T) *schema.Schema {
	columnA := column.NewColumn("id", types.Integer, 0, false, false)
	// serialized row with a 1200 char payload: count (4) + bitmap (1) +
	// int (4) + char len (4) + 1200 = 1213 bytes; with the 8 byte slot,
	// three such rows fill a 4KiB page and a fourth does not fit
	columnB, err := column.NewCharColumn("payload", 1800, 1, false, false)
	testingpkg.Ok(t, err)
	return schema.NewSchema([]*column.Column{columnA, columnB})
}

func wideRow(id int32) *tuple.Row {
	return tuple.NewRow([]types.Value{
		types.NewInteger(id),
		types.NewChar(strings.Repeat("x", 1200)),
	})
}

func TestTableHeapInsertAndScan(t *testing.T) {
	schema_ := smallSchema()
	th, dm := newTestHeap(t, schema_)
	defer dm.ShutDown()

	for i := 0; i < 100; i++ {
		row := tuple.NewRow([]types.Value{
			types.NewInteger(int32(i * 2)),
			types.NewInteger(int32((i + 1) * 2)),
		})
		testingpkg.Ok(t, th.InsertTuple(row))
	}

	firstRow := th.GetFirstTuple()
	testingpkg.Equals(t, int32(0), firstRow.GetValue(0).ToInteger())
	testingpkg.Equals(t, int32(2), firstRow.GetValue(1).ToInteger())

	// the iterator yields the rows in insertion order
	i := int32(0)
	for it := th.Iterator(); !it.End(); it.Next() {
		row := it.Current()
		testingpkg.Equals(t, i*2, row.GetValue(0).ToInteger())
		testingpkg.Equals(t, (i+1)*2, row.GetValue(1).ToInteger())
		i++
	}
	testingpkg.Equals(t, int32(100), i)
}

func TestTableHeapPageChain(t *testing.T) {
	schema_ := wideSchema(t)
	th, dm := newTestHeap(t, schema_)
	defer dm.ShutDown()

	// seven rows at three per page chain across three pages (3+3+1)
	for i := 0; i < 7; i++ {
		testingpkg.Ok(t, th.InsertTuple(wideRow(int32(i))))
	}
	testingpkg.Equals(t, uint32(3), th.PageChainLength())

	count := 0
	for it := th.Iterator(); !it.End(); it.Next() {
		count++
	}
	testingpkg.Equals(t, 7, count)
}

func TestTableHeapDelete(t *testing.T) {
	schema_ := smallSchema()
	th, dm := newTestHeap(t, schema_)
	defer dm.ShutDown()

	rows := make([]*tuple.Row, 0)
	for i := 0; i < 10; i++ {
		row := tuple.NewRow([]types.Value{types.NewInteger(int32(i)), types.NewInteger(int32(i))})
		testingpkg.Ok(t, th.InsertTuple(row))
		rows = append(rows, row)
	}

	// mark-delete hides the row from reads and the scan
	testingpkg.Assert(t, th.MarkDelete(rows[3].GetRID()), "mark delete must succeed")
	_, err := th.GetTuple(rows[3].GetRID())
	testingpkg.Assert(t, err != nil, "deleted tuple must not be readable")

	count := 0
	for it := th.Iterator(); !it.End(); it.Next() {
		count++
	}
	testingpkg.Equals(t, 9, count)

	// rollback brings it back
	th.RollbackDelete(rows[3].GetRID())
	row, err := th.GetTuple(rows[3].GetRID())
	testingpkg.Ok(t, err)
	testingpkg.Equals(t, int32(3), row.GetValue(0).ToInteger())

	// apply-delete removes it for good and the slot is reused
	testingpkg.Assert(t, th.MarkDelete(rows[5].GetRID()), "mark delete must succeed")
	th.ApplyDelete(rows[5].GetRID())
	_, err = th.GetTuple(rows[5].GetRID())
	testingpkg.Assert(t, err != nil, "applied delete must remove the tuple")

	newRow := tuple.NewRow([]types.Value{types.NewInteger(99), types.NewInteger(99)})
	testingpkg.Ok(t, th.InsertTuple(newRow))
	testingpkg.Equals(t, rows[5].GetRID().GetSlotNum(), newRow.GetRID().GetSlotNum())
}

func TestTableHeapUpdate(t *testing.T) {
	schema_ := smallSchema()
	th, dm := newTestHeap(t, schema_)
	defer dm.ShutDown()

	row := tuple.NewRow([]types.Value{types.NewInteger(1), types.NewInteger(2)})
	testingpkg.Ok(t, th.InsertTuple(row))
	rid := row.GetRID()

	newRow := tuple.NewRow([]types.Value{types.NewInteger(10), types.NewInteger(20)})
	updated, err := th.UpdateTuple(newRow, rid)
	testingpkg.Ok(t, err)
	testingpkg.Assert(t, updated, "in-place update must succeed")

	got, err := th.GetTuple(rid)
	testingpkg.Ok(t, err)
	testingpkg.Equals(t, int32(10), got.GetValue(0).ToInteger())
	testingpkg.Equals(t, int32(20), got.GetValue(1).ToInteger())
}

func TestTableHeapUpdateAcrossPages(t *testing.T) {
	schema_ := wideSchema(t)
	th, dm := newTestHeap(t, schema_)
	defer dm.ShutDown()

	// fill the first page, then grow its first row past what compaction can
	// make room for
	victim := wideRow(100)
	testingpkg.Ok(t, th.InsertTuple(victim))
	for i := 0; i < 3; i++ {
		testingpkg.Ok(t, th.InsertTuple(wideRow(int32(i))))
	}
	oldRID := *victim.GetRID()

	bigger := tuple.NewRow([]types.Value{
		types.NewInteger(100),
		types.NewChar(strings.Repeat("y", 1700)),
	})
	updated, err := th.UpdateTuple(bigger, &oldRID)
	testingpkg.Ok(t, err)
	testingpkg.Assert(t, updated, "update must fall back to delete and insert")

	got, err := th.GetTuple(bigger.GetRID())
	testingpkg.Ok(t, err)
	testingpkg.Equals(t, int32(100), got.GetValue(0).ToInteger())
	testingpkg.Equals(t, 1700, len(got.GetValue(1).ToChar()))
}

func TestTableHeapRejectsOversizedRow(t *testing.T) {
	schema_ := wideSchema(t)
	th, dm := newTestHeap(t, schema_)
	defer dm.ShutDown()

	huge := tuple.NewRow([]types.Value{
		types.NewInteger(1),
		types.NewChar(strings.Repeat("z", 5000)),
	})
	testingpkg.Assert(t, th.InsertTuple(huge) != nil, "oversized row must be rejected")
}
