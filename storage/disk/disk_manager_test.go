package disk

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tsurudb/TsuruDB/common"
	testingpkg "github.com/tsurudb/TsuruDB/testing/testing_assert"
	"github.com/tsurudb/TsuruDB/types"
)

func TestDiskAllocation(t *testing.T) {
	dbFile := filepath.Join(t.TempDir(), "allocation.db")
	dm, err := NewDiskManagerImpl(dbFile)
	testingpkg.Ok(t, err)
	defer dm.ShutDown()

	for i := 0; i < 3; i++ {
		pageId, err := dm.AllocatePage()
		testingpkg.Ok(t, err)
		testingpkg.Equals(t, types.PageID(i), pageId)
	}

	testingpkg.Ok(t, dm.DeallocatePage(types.PageID(1)))
	testingpkg.Assert(t, dm.IsPageFree(types.PageID(1)), "freed page must be free")
	testingpkg.Assert(t, !dm.IsPageFree(types.PageID(0)), "allocated page must not be free")

	// the freed id is handed out again
	pageId, err := dm.AllocatePage()
	testingpkg.Ok(t, err)
	testingpkg.Equals(t, types.PageID(1), pageId)

	testingpkg.Equals(t, uint32(3), dm.(*DiskManagerImpl).GetNumAllocatedPages())

	// pages beyond the existing extents are free
	testingpkg.Assert(t, dm.IsPageFree(types.PageID(BitmapCapacity+100)), "page of an absent extent must be free")

	// already-free and out-of-range deallocations are logged no-ops
	testingpkg.Ok(t, dm.DeallocatePage(types.PageID(100)))
	testingpkg.Ok(t, dm.DeallocatePage(types.PageID(-5)))
	testingpkg.Equals(t, uint32(3), dm.(*DiskManagerImpl).GetNumAllocatedPages())
}

func TestReadWriteReopen(t *testing.T) {
	dbFile := filepath.Join(t.TempDir(), "readwrite.db")
	dm, err := NewDiskManagerImpl(dbFile)
	testingpkg.Ok(t, err)

	var pageIds []types.PageID
	for i := 0; i < 6; i++ {
		pageId, err := dm.AllocatePage()
		testingpkg.Ok(t, err)
		pageIds = append(pageIds, pageId)
	}

	wrote := make(map[types.PageID][]byte)
	for _, pageId := range pageIds {
		data := make([]byte, common.PageSize)
		for i := range data {
			data[i] = byte(int(pageId) + i)
		}
		testingpkg.Ok(t, dm.WritePage(pageId, data))
		wrote[pageId] = data
	}

	// reading an allocated but never written page yields zeroes
	unwritten, err := dm.AllocatePage()
	testingpkg.Ok(t, err)
	zeroes := make([]byte, common.PageSize)
	testingpkg.Ok(t, dm.ReadPage(unwritten, zeroes))
	for i := range zeroes {
		testingpkg.Assert(t, zeroes[i] == 0, "unwritten page must read as zeroes")
	}

	dm.ShutDown()
	// ShutDown is idempotent
	dm.ShutDown()

	dm2, err := NewDiskManagerImpl(dbFile)
	testingpkg.Ok(t, err)
	defer dm2.ShutDown()

	testingpkg.Equals(t, uint32(7), dm2.(*DiskManagerImpl).GetNumAllocatedPages())
	for _, pageId := range pageIds {
		data := make([]byte, common.PageSize)
		testingpkg.Ok(t, dm2.ReadPage(pageId, data))
		testingpkg.Equals(t, wrote[pageId], data)
	}

	os.Remove(dbFile)
}
