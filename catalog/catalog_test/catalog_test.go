package catalog_test

import (
	"testing"

	"github.com/tsurudb/TsuruDB/catalog"
	"github.com/tsurudb/TsuruDB/common"
	"github.com/tsurudb/TsuruDB/errors"
	"github.com/tsurudb/TsuruDB/storage/buffer"
	"github.com/tsurudb/TsuruDB/storage/table/column"
	"github.com/tsurudb/TsuruDB/storage/table/schema"
	"github.com/tsurudb/TsuruDB/storage/tuple"
	"github.com/tsurudb/TsuruDB/test_util"
	testingpkg "github.com/tsurudb/TsuruDB/testing/testing_assert"
	"github.com/tsurudb/TsuruDB/types"
)

func accountSchema(t *testing.T) *schema.Schema {
	id := column.NewColumn("id", types.Integer, 0, false, true)
	name, err := column.NewCharColumn("name", 32, 1, false, false)
	testingpkg.Ok(t, err)
	balance := column.NewColumn("balance", types.Float, 2, true, false)
	return schema.NewSchema([]*column.Column{id, name, balance})
}

func TestCatalogCreateAndLookup(t *testing.T) {
	instance := test_util.NewTsuruInstance(common.BufferPoolMaxFrameNumForTest)
	defer instance.Finalize()
	c, err := instance.BootstrapCatalog()
	testingpkg.Ok(t, err)

	info, err := c.CreateTable("accounts", accountSchema(t), []string{"id"})
	testingpkg.Ok(t, err)
	testingpkg.Equals(t, "accounts", info.GetTableName())

	// name collisions are refused
	_, err = c.CreateTable("accounts", accountSchema(t), nil)
	testingpkg.Equals(t, errors.ErrTableAlreadyExists, err)

	got, err := c.GetTable("accounts")
	testingpkg.Ok(t, err)
	testingpkg.Equals(t, info.GetTableId(), got.GetTableId())

	_, err = c.GetTable("missing")
	testingpkg.Equals(t, errors.ErrTableNotFound, err)

	byId, err := c.GetTableById(info.GetTableId())
	testingpkg.Ok(t, err)
	testingpkg.Equals(t, "accounts", byId.GetTableName())

	// the primary key got its automatic index
	pk, err := c.GetIndex("accounts", "pk_accounts")
	testingpkg.Ok(t, err)
	testingpkg.Equals(t, []uint32{0}, pk.GetKeyAttrs())

	indexes, err := c.GetTableIndexes("accounts")
	testingpkg.Ok(t, err)
	testingpkg.Equals(t, 1, len(indexes))
}

func TestCatalogUniqueAutoIndexes(t *testing.T) {
	instance := test_util.NewTsuruInstance(common.BufferPoolMaxFrameNumForTest)
	defer instance.Finalize()
	c, err := instance.BootstrapCatalog()
	testingpkg.Ok(t, err)

	id := column.NewColumn("id", types.Integer, 0, false, true)
	mail, err := column.NewCharColumn("mail", 64, 1, false, true)
	testingpkg.Ok(t, err)
	schema_ := schema.NewSchema([]*column.Column{id, mail})

	_, err = c.CreateTable("users", schema_, []string{"id"})
	testingpkg.Ok(t, err)

	// id is in the primary key, so only mail gets a uk index
	_, err = c.GetIndex("users", "pk_users")
	testingpkg.Ok(t, err)
	_, err = c.GetIndex("users", "uk_users_mail")
	testingpkg.Ok(t, err)
	_, err = c.GetIndex("users", "uk_users_id")
	testingpkg.Equals(t, errors.ErrIndexNotFound, err)
}

func TestCatalogIndexBackfillAndScan(t *testing.T) {
	instance := test_util.NewTsuruInstance(common.BufferPoolMaxFrameNumForTest)
	defer instance.Finalize()
	c, err := instance.BootstrapCatalog()
	testingpkg.Ok(t, err)

	info, err := c.CreateTable("accounts", accountSchema(t), nil)
	testingpkg.Ok(t, err)

	heap := info.GetTableHeap()
	rows := make([]*tuple.Row, 0)
	for i := 0; i < 20; i++ {
		row := tuple.NewRow([]types.Value{
			types.NewInteger(int32(i)),
			types.NewChar("acct"),
			types.NewFloat(float32(i) * 1.5),
		})
		testingpkg.Ok(t, heap.InsertTuple(row))
		rows = append(rows, row)
	}

	// an index created after the fact is back-filled from the heap
	idxInfo, err := c.CreateIndex("accounts", "idx_accounts_id", []string{"id"}, "btree")
	testingpkg.Ok(t, err)
	for _, row := range rows {
		rid, found := idxInfo.GetIndex().ScanKey(row)
		testingpkg.Assert(t, found, "back-filled key must be found")
		testingpkg.Equals(t, *row.GetRID(), rid)
	}

	// unknown key columns are refused
	_, err = c.CreateIndex("accounts", "idx_broken", []string{"nope"}, "btree")
	testingpkg.Equals(t, errors.ErrColumnNameNotFound, err)
	// duplicate index names are refused
	_, err = c.CreateIndex("accounts", "idx_accounts_id", []string{"id"}, "btree")
	testingpkg.Equals(t, errors.ErrIndexAlreadyExists, err)
}

func TestCatalogReopen(t *testing.T) {
	instance := test_util.NewTsuruInstance(common.BufferPoolMaxFrameNumForTest)
	defer instance.Finalize()
	c, err := instance.BootstrapCatalog()
	testingpkg.Ok(t, err)

	info, err := c.CreateTable("accounts", accountSchema(t), []string{"id"})
	testingpkg.Ok(t, err)

	row := tuple.NewRow([]types.Value{
		types.NewInteger(7),
		types.NewChar("bob"),
		types.NewFloat(12.5),
	})
	testingpkg.Ok(t, info.GetTableHeap().InsertTuple(row))
	// the heap does not maintain indexes; add the pk entry explicitly
	pkBefore, err := c.GetIndex("accounts", "pk_accounts")
	testingpkg.Ok(t, err)
	testingpkg.Assert(t, pkBefore.GetIndex().InsertEntry(row, *row.GetRID()), "pk insert must succeed")
	instance.BPM.FlushAllPages()

	// a second catalog over the same storage sees the same definitions
	recovered, err := catalog.RecoverCatalog(buffer.NewBufferPoolManager(common.BufferPoolMaxFrameNumForTest, instance.DiskManager))
	testingpkg.Ok(t, err)

	reInfo, err := recovered.GetTable("accounts")
	testingpkg.Ok(t, err)
	testingpkg.Equals(t, info.GetTableId(), reInfo.GetTableId())
	testingpkg.Equals(t, uint32(3), reInfo.GetSchema().GetColumnCount())

	got, err := reInfo.GetTableHeap().GetTuple(row.GetRID())
	testingpkg.Ok(t, err)
	testingpkg.Equals(t, int32(7), got.GetValue(0).ToInteger())
	testingpkg.Equals(t, "bob", got.GetValue(1).ToChar())

	// indexes come back too, resolved through their metadata's table id
	pk, err := recovered.GetIndex("accounts", "pk_accounts")
	testingpkg.Ok(t, err)
	rid, found := pk.GetIndex().ScanKey(got)
	testingpkg.Assert(t, found, "pk entry must survive reopen")
	testingpkg.Equals(t, *row.GetRID(), rid)

	// fresh tables created after recovery get fresh ids
	info2, err := recovered.CreateTable("orders", accountSchema(t), nil)
	testingpkg.Ok(t, err)
	testingpkg.Assert(t, info2.GetTableId() > info.GetTableId(), "recovered id counter must advance")
}

func TestCatalogDrop(t *testing.T) {
	instance := test_util.NewTsuruInstance(common.BufferPoolMaxFrameNumForTest)
	defer instance.Finalize()
	c, err := instance.BootstrapCatalog()
	testingpkg.Ok(t, err)

	_, err = c.CreateTable("accounts", accountSchema(t), []string{"id"})
	testingpkg.Ok(t, err)

	testingpkg.Equals(t, errors.ErrIndexNotFound, c.DropIndex("accounts", "missing"))
	testingpkg.Ok(t, c.DropIndex("accounts", "pk_accounts"))
	_, err = c.GetIndex("accounts", "pk_accounts")
	testingpkg.Equals(t, errors.ErrIndexNotFound, err)

	testingpkg.Ok(t, c.DropTable("accounts"))
	_, err = c.GetTable("accounts")
	testingpkg.Equals(t, errors.ErrTableNotFound, err)
	testingpkg.Equals(t, errors.ErrTableNotFound, c.DropTable("accounts"))
	testingpkg.Equals(t, 0, len(c.GetTables()))
}
