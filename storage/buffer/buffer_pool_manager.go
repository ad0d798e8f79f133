package buffer

import (
	"github.com/ncw/directio"
	"github.com/sasha-s/go-deadlock"
	"github.com/tsurudb/TsuruDB/common"
	"github.com/tsurudb/TsuruDB/errors"
	"github.com/tsurudb/TsuruDB/storage/disk"
	"github.com/tsurudb/TsuruDB/storage/page"
	"github.com/tsurudb/TsuruDB/types"
)

// BufferPoolManager caches disk pages in a fixed set of frames with pinning
// and replacement. All public entry points are serialized by a single mutex;
// the replacer carries its own.
type BufferPoolManager struct {
	diskManager disk.DiskManager
	pages       []*page.Page // index is FrameID
	replacer    Replacer
	freeList    []FrameID
	pageTable   map[types.PageID]FrameID
	mutex       deadlock.Mutex
}

// FetchPage fetches the requested page from the buffer pool.
func (b *BufferPoolManager) FetchPage(pageID types.PageID) *page.Page {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	// if it is on buffer pool return it
	if frameID, ok := b.pageTable[pageID]; ok {
		pg := b.pages[frameID]
		pg.IncPinCount()
		b.replacer.Pin(frameID)
		return pg
	}

	// get a frame from the free list or from the replacer
	frameID, isFromFreeList := b.getFrameID()
	if frameID == nil {
		return nil
	}

	if !isFromFreeList {
		// remove the victim page from its frame
		currentPage := b.pages[*frameID]
		if currentPage != nil {
			if currentPage.IsDirty() {
				data := currentPage.Data()
				b.diskManager.WritePage(currentPage.GetPageId(), data[:])
			}
			delete(b.pageTable, currentPage.GetPageId())
			b.pages[*frameID] = nil
		}
	}

	data := directio.AlignedBlock(common.PageSize)
	err := b.diskManager.ReadPage(pageID, data)
	if err != nil {
		common.Logger.Errorf("FetchPage: read of page %d failed: %v", pageID, err)
		b.freeList = append(b.freeList, *frameID)
		return nil
	}
	var pageData [common.PageSize]byte
	copy(pageData[:], data)
	pg := page.New(pageID, false, &pageData)
	b.pageTable[pageID] = *frameID
	b.pages[*frameID] = pg

	return pg
}

// UnpinPage unpins the target page from the buffer pool.
func (b *BufferPoolManager) UnpinPage(pageID types.PageID, isDirty bool) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	frameID, ok := b.pageTable[pageID]
	if !ok {
		return errors.Error("could not find page")
	}

	pg := b.pages[frameID]
	if pg.PinCount() <= 0 {
		return errors.Error("pin count is already zero")
	}
	pg.DecPinCount()

	if pg.PinCount() <= 0 {
		b.replacer.Unpin(frameID)
	}

	if pg.IsDirty() || isDirty {
		pg.SetIsDirty(true)
	} else {
		pg.SetIsDirty(false)
	}

	return nil
}

// FlushPage flushes the target page to disk.
func (b *BufferPoolManager) FlushPage(pageID types.PageID) bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if frameID, ok := b.pageTable[pageID]; ok {
		pg := b.pages[frameID]
		data := pg.Data()
		err := b.diskManager.WritePage(pageID, data[:])
		if err != nil {
			common.Logger.Errorf("FlushPage: write of page %d failed: %v", pageID, err)
			return false
		}
		pg.SetIsDirty(false)
		return true
	}
	return false
}

// NewPage allocates a new page in the buffer pool with the disk manager help
func (b *BufferPoolManager) NewPage() *page.Page {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	frameID, isFromFreeList := b.getFrameID()
	if frameID == nil {
		return nil // the buffer is full, it can't find a frame
	}

	if !isFromFreeList {
		// remove the victim page from its frame
		currentPage := b.pages[*frameID]
		if currentPage != nil {
			if currentPage.IsDirty() {
				data := currentPage.Data()
				b.diskManager.WritePage(currentPage.GetPageId(), data[:])
			}
			delete(b.pageTable, currentPage.GetPageId())
			b.pages[*frameID] = nil
		}
	}

	// allocate a new logical page
	pageID, err := b.diskManager.AllocatePage()
	if err != nil {
		common.Logger.Errorf("NewPage: disk allocation failed: %v", err)
		b.freeList = append(b.freeList, *frameID)
		return nil
	}
	pg := page.NewEmpty(pageID)

	b.pageTable[pageID] = *frameID
	b.pages[*frameID] = pg

	return pg
}

// DeletePage removes a page from the buffer pool and frees it on disk.
func (b *BufferPoolManager) DeletePage(pageID types.PageID) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	frameID, ok := b.pageTable[pageID]
	if !ok {
		// not resident; still release the disk space
		return b.diskManager.DeallocatePage(pageID)
	}

	pg := b.pages[frameID]
	if pg.PinCount() > 0 {
		return errors.Error("pin count greater than 0")
	}
	delete(b.pageTable, pageID)
	b.replacer.Pin(frameID)
	b.pages[frameID] = nil
	b.freeList = append(b.freeList, frameID)

	return b.diskManager.DeallocatePage(pageID)
}

// FlushAllPages flushes all the pages in the buffer pool to disk.
func (b *BufferPoolManager) FlushAllPages() {
	pageIDs := make([]types.PageID, 0)
	b.mutex.Lock()
	for pageID := range b.pageTable {
		pageIDs = append(pageIDs, pageID)
	}
	b.mutex.Unlock()

	for _, pageID := range pageIDs {
		b.FlushPage(pageID)
	}
}

func (b *BufferPoolManager) getFrameID() (*FrameID, bool) {
	if len(b.freeList) > 0 {
		frameID, newFreeList := b.freeList[0], b.freeList[1:]
		b.freeList = newFreeList
		return &frameID, true
	}

	return b.replacer.Victim(), false
}

// GetPoolSize returns the number of resident pages
func (b *BufferPoolManager) GetPoolSize() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return len(b.pageTable)
}

// NewBufferPoolManager returns an empty buffer pool manager with the default
// LRU policy
func NewBufferPoolManager(poolSize uint32, diskManager disk.DiskManager) *BufferPoolManager {
	return NewBufferPoolManagerWithReplacer(poolSize, diskManager, NewLRUReplacer(poolSize))
}

// NewBufferPoolManagerWithReplacer returns an empty buffer pool manager with
// the given replacement policy
func NewBufferPoolManagerWithReplacer(poolSize uint32, diskManager disk.DiskManager, replacer Replacer) *BufferPoolManager {
	freeList := make([]FrameID, poolSize)
	pages := make([]*page.Page, poolSize)
	for i := uint32(0); i < poolSize; i++ {
		freeList[i] = FrameID(i)
		pages[i] = nil
	}

	return &BufferPoolManager{diskManager: diskManager, pages: pages, replacer: replacer, freeList: freeList, pageTable: make(map[types.PageID]FrameID)}
}
