package disk

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/sasha-s/go-deadlock"
	"github.com/tsurudb/TsuruDB/common"
	dberrors "github.com/tsurudb/TsuruDB/errors"
	"github.com/tsurudb/TsuruDB/types"
)

// MaxValidPageID is the largest logical page id the extent table can map.
const MaxValidPageID = types.PageID(ExtentCapacity*BitmapCapacity - 1)

// DiskManagerImpl is the file-backed implementation of DiskManager. Physical
// page 0 is the disk file meta page; the remaining pages form extents of one
// bitmap page followed by BitmapCapacity data pages.
type DiskManagerImpl struct {
	db         *os.File
	fileName   string
	metaBuf    [common.PageSize]byte
	meta       *DiskFileMetaPage
	size       int64
	isShutDown bool
	mutex      deadlock.Mutex
}

// NewDiskManagerImpl opens (or creates) a database file and loads its meta
// page
func NewDiskManagerImpl(dbFilename string) (DiskManager, error) {
	file, err := os.OpenFile(dbFilename, os.O_RDWR|os.O_CREATE, 0666)
	if err != nil {
		return nil, errors.Wrapf(err, "can't open db file %s", dbFilename)
	}

	fileInfo, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, errors.Wrap(err, "file info error")
	}

	d := &DiskManagerImpl{db: file, fileName: dbFilename, size: fileInfo.Size()}
	d.meta = NewDiskFileMetaPage(&d.metaBuf)
	if err := d.readPhysical(0, d.metaBuf[:]); err != nil {
		file.Close()
		return nil, err
	}
	return d, nil
}

// mapPageId translates a logical page id to its physical page number
func mapPageId(pageId types.PageID) int64 {
	extent := int64(pageId) / BitmapCapacity
	offset := int64(pageId) % BitmapCapacity
	return 2 + extent*(1+BitmapCapacity) + offset
}

// bitmapPhysical returns the physical page number of the extent's bitmap
func bitmapPhysical(extent uint32) int64 {
	return 1 + int64(extent)*(1+BitmapCapacity)
}

func (d *DiskManagerImpl) readPhysical(physicalPage int64, buf []byte) error {
	offset := physicalPage * common.PageSize

	fileInfo, err := d.db.Stat()
	if err != nil {
		return errors.Wrap(err, "file info error")
	}

	if offset >= fileInfo.Size() {
		// reading past EOF yields a zeroed page
		for i := range buf {
			buf[i] = 0
		}
		return nil
	}

	d.db.Seek(offset, io.SeekStart)
	bytesRead, err := d.db.Read(buf)
	if err != nil {
		return errors.Wrap(err, "I/O error while reading")
	}
	// zero-fill a short read at the end of the file
	for i := bytesRead; i < len(buf); i++ {
		buf[i] = 0
	}
	return nil
}

func (d *DiskManagerImpl) writePhysical(physicalPage int64, buf []byte) error {
	offset := physicalPage * common.PageSize
	d.db.Seek(offset, io.SeekStart)
	bytesWritten, err := d.db.Write(buf)
	if err != nil {
		return errors.Wrap(err, "I/O error while writing")
	}
	if bytesWritten != common.PageSize {
		return dberrors.Error("bytes written not equals page size")
	}

	if offset+int64(bytesWritten) > d.size {
		d.size = offset + int64(bytesWritten)
	}

	d.db.Sync()
	return nil
}

// ReadPage reads a logical page from the database file
func (d *DiskManagerImpl) ReadPage(pageId types.PageID, pageData []byte) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.readPhysical(mapPageId(pageId), pageData)
}

// WritePage writes a logical page to the database file
func (d *DiskManagerImpl) WritePage(pageId types.PageID, pageData []byte) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.writePhysical(mapPageId(pageId), pageData)
}

// AllocatePage reserves a logical page: the first free bit of an extent with
// room, appending a new extent when every existing one is full.
func (d *DiskManagerImpl) AllocatePage() (types.PageID, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	numExtents := d.meta.GetExtentNums()
	extent := numExtents
	for i := uint32(0); i < numExtents; i++ {
		if d.meta.GetExtentUsedPage(i) < BitmapCapacity {
			extent = i
			break
		}
	}
	if extent == numExtents {
		// all existing extents are full; append a new one
		if numExtents >= ExtentCapacity {
			return types.InvalidPageID, dberrors.Error("meta page cannot hold another extent")
		}
		d.meta.SetExtentNums(numExtents + 1)
	}

	var bitmapBuf [common.PageSize]byte
	if err := d.readPhysical(bitmapPhysical(extent), bitmapBuf[:]); err != nil {
		return types.InvalidPageID, err
	}
	bp := NewBitmapPage(&bitmapBuf)
	offset, ok := bp.AllocatePage()
	if !ok {
		return types.InvalidPageID, dberrors.Error("bitmap page has no free bit")
	}

	pageId := types.PageID(extent*BitmapCapacity + offset)
	if pageId > MaxValidPageID {
		bp.DeallocatePage(offset)
		return types.InvalidPageID, dberrors.Error("page id cap reached")
	}

	d.meta.SetAllocatedPages(d.meta.GetAllocatedPages() + 1)
	d.meta.SetExtentUsedPage(extent, d.meta.GetExtentUsedPage(extent)+1)

	if err := d.writePhysical(bitmapPhysical(extent), bitmapBuf[:]); err != nil {
		return types.InvalidPageID, err
	}
	if err := d.writePhysical(0, d.metaBuf[:]); err != nil {
		return types.InvalidPageID, err
	}
	return pageId, nil
}

// DeallocatePage clears the allocation bit of a logical page. Already-free or
// out-of-range pages are logged and left untouched.
func (d *DiskManagerImpl) DeallocatePage(pageId types.PageID) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	extent := uint32(pageId) / BitmapCapacity
	offset := uint32(pageId) % BitmapCapacity
	if !pageId.IsValid() || extent >= d.meta.GetExtentNums() {
		common.Logger.Errorf("DeallocatePage: page %d is out of range", pageId)
		return nil
	}

	var bitmapBuf [common.PageSize]byte
	if err := d.readPhysical(bitmapPhysical(extent), bitmapBuf[:]); err != nil {
		return err
	}
	bp := NewBitmapPage(&bitmapBuf)
	if !bp.DeallocatePage(offset) {
		common.Logger.Errorf("DeallocatePage: page %d is already free", pageId)
		return nil
	}

	d.meta.SetAllocatedPages(d.meta.GetAllocatedPages() - 1)
	d.meta.SetExtentUsedPage(extent, d.meta.GetExtentUsedPage(extent)-1)

	if err := d.writePhysical(bitmapPhysical(extent), bitmapBuf[:]); err != nil {
		return err
	}
	return d.writePhysical(0, d.metaBuf[:])
}

// IsPageFree reports whether a logical page is unallocated
func (d *DiskManagerImpl) IsPageFree(pageId types.PageID) bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	extent := uint32(pageId) / BitmapCapacity
	offset := uint32(pageId) % BitmapCapacity
	if !pageId.IsValid() {
		return false
	}
	if extent >= d.meta.GetExtentNums() {
		return true
	}

	var bitmapBuf [common.PageSize]byte
	if err := d.readPhysical(bitmapPhysical(extent), bitmapBuf[:]); err != nil {
		common.Logger.Errorf("IsPageFree: can't read bitmap of extent %d: %v", extent, err)
		return false
	}
	return NewBitmapPage(&bitmapBuf).IsPageFree(offset)
}

// ShutDown persists the meta page and closes the database file; idempotent
func (d *DiskManagerImpl) ShutDown() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.isShutDown {
		return
	}
	if err := d.writePhysical(0, d.metaBuf[:]); err != nil {
		common.Logger.Errorf("ShutDown: can't flush meta page: %v", err)
	}
	d.db.Close()
	d.isShutDown = true
}

// Size returns the size of the file in disk
func (d *DiskManagerImpl) Size() int64 {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.size
}

// GetNumAllocatedPages returns the total number of allocated logical pages
func (d *DiskManagerImpl) GetNumAllocatedPages() uint32 {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.meta.GetAllocatedPages()
}

// RemoveDBFile removes the database file. Call only after ShutDown.
func (d *DiskManagerImpl) RemoveDBFile() {
	os.Remove(d.fileName)
}
