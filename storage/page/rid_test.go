package page

import (
	"testing"

	testingpkg "github.com/tsurudb/TsuruDB/testing/testing_assert"
	"github.com/tsurudb/TsuruDB/types"
)

func TestRID(t *testing.T) {
	rid := RID{}
	rid.Set(types.PageID(3), 5)
	testingpkg.Equals(t, types.PageID(3), rid.GetPageId())
	testingpkg.Equals(t, uint32(5), rid.GetSlotNum())

	decoded := NewRIDFromBytes(rid.Serialize())
	testingpkg.Equals(t, rid, decoded)
}
