package page

import (
	"testing"

	testingpkg "github.com/tsurudb/TsuruDB/testing/testing_assert"
	"github.com/tsurudb/TsuruDB/types"
)

func TestIndexRootsPage(t *testing.T) {
	rp := CastPageAsIndexRootsPage(NewEmpty(types.PageID(1)))
	rp.Init()
	testingpkg.Assert(t, rp.IsValid(), "a formatted roots page carries the magic number")
	testingpkg.Equals(t, uint32(0), rp.Count())

	testingpkg.Assert(t, rp.Insert(3, types.PageID(10)), "insert must succeed")
	testingpkg.Assert(t, rp.Insert(5, types.PageID(20)), "insert must succeed")
	testingpkg.Assert(t, !rp.Insert(3, types.PageID(99)), "duplicate insert must fail")
	testingpkg.Equals(t, uint32(2), rp.Count())

	rootId, ok := rp.GetRootId(3)
	testingpkg.Assert(t, ok, "entry must be found")
	testingpkg.Equals(t, types.PageID(10), rootId)

	testingpkg.Assert(t, rp.Update(3, types.PageID(11)), "update must succeed")
	rootId, _ = rp.GetRootId(3)
	testingpkg.Equals(t, types.PageID(11), rootId)
	testingpkg.Assert(t, !rp.Update(42, types.PageID(1)), "update of an absent entry must fail")

	testingpkg.Assert(t, rp.Delete(3), "delete must succeed")
	_, ok = rp.GetRootId(3)
	testingpkg.Assert(t, !ok, "deleted entry must be gone")
	testingpkg.Equals(t, uint32(1), rp.Count())
	rootId, _ = rp.GetRootId(5)
	testingpkg.Equals(t, types.PageID(20), rootId)
}
