package tsurudb

import (
	"testing"

	"github.com/tsurudb/TsuruDB/common"
	"github.com/tsurudb/TsuruDB/storage/table/column"
	"github.com/tsurudb/TsuruDB/storage/table/schema"
	"github.com/tsurudb/TsuruDB/storage/tuple"
	testingpkg "github.com/tsurudb/TsuruDB/testing/testing_assert"
	"github.com/tsurudb/TsuruDB/types"
)

func TestOpenCloseReopen(t *testing.T) {
	settings := &common.Settings{DatabaseDir: t.TempDir(), PoolSize: common.BufferPoolMaxFrameNumForTest}

	db, err := OpenDatabase("shop", settings)
	testingpkg.Ok(t, err)

	id := column.NewColumn("id", types.Integer, 0, false, true)
	name, err := column.NewCharColumn("name", 32, 1, false, false)
	testingpkg.Ok(t, err)
	schema_ := schema.NewSchema([]*column.Column{id, name})

	info, err := db.GetCatalog().CreateTable("items", schema_, []string{"id"})
	testingpkg.Ok(t, err)

	for i := 0; i < 50; i++ {
		row := tuple.NewRow([]types.Value{types.NewInteger(int32(i)), types.NewChar("item")})
		testingpkg.Ok(t, info.GetTableHeap().InsertTuple(row))
		pk, err := db.GetCatalog().GetIndex("items", "pk_items")
		testingpkg.Ok(t, err)
		testingpkg.Assert(t, pk.GetIndex().InsertEntry(row, *row.GetRID()), "index insert must succeed")
	}
	db.Close()

	// reopen: catalog, heap and index all come back from the file
	db2, err := OpenDatabase("shop", settings)
	testingpkg.Ok(t, err)
	defer db2.Close()

	info2, err := db2.GetCatalog().GetTable("items")
	testingpkg.Ok(t, err)

	count := 0
	for it := info2.GetTableHeap().Iterator(); !it.End(); it.Next() {
		count++
	}
	testingpkg.Equals(t, 50, count)

	pk, err := db2.GetCatalog().GetIndex("items", "pk_items")
	testingpkg.Ok(t, err)
	probe := tuple.NewRow([]types.Value{types.NewInteger(25), types.NewChar("item")})
	rid, found := pk.GetIndex().ScanKey(probe)
	testingpkg.Assert(t, found, "pk lookup must survive reopen")
	got, err := info2.GetTableHeap().GetTuple(&rid)
	testingpkg.Ok(t, err)
	testingpkg.Equals(t, int32(25), got.GetValue(0).ToInteger())
}
