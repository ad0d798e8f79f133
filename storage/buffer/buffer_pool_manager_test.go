package buffer

import (
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/tsurudb/TsuruDB/storage/disk"
	testingpkg "github.com/tsurudb/TsuruDB/testing/testing_assert"
	"github.com/tsurudb/TsuruDB/types"
)

func TestBinaryData(t *testing.T) {
	poolSize := uint32(10)
	dm := disk.NewDiskManagerTest()
	defer dm.ShutDown()
	bpm := NewBufferPoolManager(poolSize, dm)

	page0 := bpm.NewPage()
	testingpkg.NotNil(t, page0)
	testingpkg.Equals(t, types.PageID(0), page0.GetPageId())

	page0.Copy(0, []byte{0, 1, 2, 3, 0xff})
	testingpkg.Equals(t, byte(0xff), page0.Data()[4])

	// fill the pool
	for i := uint32(1); i < poolSize; i++ {
		testingpkg.NotNil(t, bpm.NewPage())
	}
	// every page is pinned; no new page can enter
	testingpkg.Assert(t, bpm.NewPage() == nil, "NewPage must fail on a fully pinned pool")

	// unpin pages 0..4 and fill the freed frames
	for i := 0; i < 5; i++ {
		testingpkg.Ok(t, bpm.UnpinPage(types.PageID(i), true))
	}
	for i := 0; i < 4; i++ {
		testingpkg.NotNil(t, bpm.NewPage())
	}

	// page 0 was flushed at eviction; fetch it back and check the bytes
	page0 = bpm.FetchPage(types.PageID(0))
	testingpkg.NotNil(t, page0)
	testingpkg.Equals(t, byte(0xff), page0.Data()[4])
}

func TestSampleBufferPool(t *testing.T) {
	dm := disk.NewDiskManagerTest()
	defer dm.ShutDown()
	bpm := NewBufferPoolManager(10, dm)

	page0 := bpm.NewPage()
	testingpkg.Equals(t, types.PageID(0), page0.GetPageId())
	page0.Copy(0, []byte("Hello"))

	// unpinning twice must fail the second time
	testingpkg.Ok(t, bpm.UnpinPage(page0.GetPageId(), true))
	testingpkg.Assert(t, bpm.UnpinPage(page0.GetPageId(), true) != nil, "unpin of an unpinned page must fail")

	page0 = bpm.FetchPage(types.PageID(0))
	testingpkg.Equals(t, byte('H'), page0.Data()[0])

	// a pinned page cannot be deleted
	testingpkg.Assert(t, bpm.DeletePage(types.PageID(0)) != nil, "delete of a pinned page must fail")
	testingpkg.Ok(t, bpm.UnpinPage(types.PageID(0), false))
	testingpkg.Ok(t, bpm.DeletePage(types.PageID(0)))
	testingpkg.Assert(t, dm.IsPageFree(types.PageID(0)), "deleted page must be free on disk")

	// deleting a non-resident page still deallocates on disk
	page1 := bpm.NewPage()
	pageId1 := page1.GetPageId()
	testingpkg.Ok(t, bpm.UnpinPage(pageId1, true))
	bpm.FlushPage(pageId1)
	// evict it by filling the pool
	for i := 0; i < 10; i++ {
		p := bpm.NewPage()
		if p != nil {
			defer bpm.UnpinPage(p.GetPageId(), false)
		}
	}
	testingpkg.Ok(t, bpm.DeletePage(pageId1))
	testingpkg.Assert(t, dm.IsPageFree(pageId1), "deleted page must be free on disk")
}

func TestBufferPoolWithClockReplacer(t *testing.T) {
	dm := disk.NewDiskManagerTest()
	defer dm.ShutDown()
	bpm := NewBufferPoolManagerWithReplacer(4, dm, NewClockReplacer(4))

	pageIds := make([]types.PageID, 0, 8)
	for i := 0; i < 8; i++ {
		p := bpm.NewPage()
		testingpkg.NotNil(t, p)
		p.Copy(0, []byte{byte(i)})
		pageIds = append(pageIds, p.GetPageId())
		testingpkg.Ok(t, bpm.UnpinPage(p.GetPageId(), true))
	}

	// every page survives eviction and comes back with its bytes
	for i, pid := range pageIds {
		p := bpm.FetchPage(pid)
		testingpkg.NotNil(t, p)
		testingpkg.Equals(t, byte(i), p.Data()[0])
		testingpkg.Ok(t, bpm.UnpinPage(pid, false))
	}
}

func TestParallelFetchUnpin(t *testing.T) {
	dm := disk.NewDiskManagerTest()
	defer dm.ShutDown()
	bpm := NewBufferPoolManager(16, dm)

	pageIds := make([]types.PageID, 0, 8)
	for i := 0; i < 8; i++ {
		p := bpm.NewPage()
		testingpkg.NotNil(t, p)
		pageIds = append(pageIds, p.GetPageId())
		testingpkg.Ok(t, bpm.UnpinPage(p.GetPageId(), true))
	}

	var eg errgroup.Group
	for _, pid := range pageIds {
		pid := pid
		eg.Go(func() error {
			for i := 0; i < 100; i++ {
				p := bpm.FetchPage(pid)
				if p == nil {
					continue
				}
				if err := bpm.UnpinPage(pid, false); err != nil {
					return err
				}
			}
			return nil
		})
	}
	testingpkg.Ok(t, eg.Wait())
	testingpkg.Equals(t, 8, bpm.GetPoolSize())
}
