package disk

import (
	"sync"

	"github.com/dsnet/golib/memfile"
	"github.com/tsurudb/TsuruDB/common"
	"github.com/tsurudb/TsuruDB/types"
)

// VirtualDiskManagerImpl keeps the database "file" in memory. It serves the
// same interface as the file-backed manager, with logical page ids mapped
// straight to file offsets (no extent bookkeeping is needed because nothing
// survives the process).
type VirtualDiskManagerImpl struct {
	db          *memfile.File
	fileName    string
	nextPageID  types.PageID
	reusableIDs []types.PageID
	deallocated map[types.PageID]bool
	size        int64
	mutex       sync.Mutex
}

func NewVirtualDiskManagerImpl(dbFilename string) DiskManager {
	file := memfile.New(make([]byte, 0))
	return &VirtualDiskManagerImpl{db: file, fileName: dbFilename, nextPageID: 0, reusableIDs: make([]types.PageID, 0), deallocated: make(map[types.PageID]bool)}
}

// WritePage writes a page to the in-memory file
func (d *VirtualDiskManagerImpl) WritePage(pageId types.PageID, pageData []byte) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	offset := int64(pageId) * common.PageSize
	d.db.WriteAt(pageData, offset)
	if offset+int64(len(pageData)) > d.size {
		d.size = offset + int64(len(pageData))
	}
	return nil
}

// ReadPage reads a page from the in-memory file
func (d *VirtualDiskManagerImpl) ReadPage(pageId types.PageID, pageData []byte) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	offset := int64(pageId) * common.PageSize
	if offset >= d.size {
		for i := range pageData {
			pageData[i] = 0
		}
		return nil
	}
	bytesRead, _ := d.db.ReadAt(pageData, offset)
	for i := bytesRead; i < len(pageData); i++ {
		pageData[i] = 0
	}
	return nil
}

// AllocatePage hands out the earliest freed reusable id, or a fresh one
func (d *VirtualDiskManagerImpl) AllocatePage() (types.PageID, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if len(d.reusableIDs) > 0 {
		pageId := d.reusableIDs[0]
		d.reusableIDs = d.reusableIDs[1:]
		delete(d.deallocated, pageId)
		return pageId, nil
	}
	pageId := d.nextPageID
	d.nextPageID++
	return pageId, nil
}

// DeallocatePage marks the page id reusable
func (d *VirtualDiskManagerImpl) DeallocatePage(pageId types.PageID) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if !pageId.IsValid() || pageId >= d.nextPageID || d.deallocated[pageId] {
		common.Logger.Errorf("DeallocatePage: page %d is not allocated", pageId)
		return nil
	}
	d.deallocated[pageId] = true
	d.reusableIDs = append(d.reusableIDs, pageId)
	return nil
}

// IsPageFree reports whether a logical page is unallocated
func (d *VirtualDiskManagerImpl) IsPageFree(pageId types.PageID) bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return pageId >= d.nextPageID || d.deallocated[pageId]
}

// ShutDown drops nothing; the memory file dies with the process
func (d *VirtualDiskManagerImpl) ShutDown() {
}

// Size returns the size of the in-memory file
func (d *VirtualDiskManagerImpl) Size() int64 {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.size
}
