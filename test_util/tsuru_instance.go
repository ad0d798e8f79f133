package test_util

import (
	"github.com/tsurudb/TsuruDB/catalog"
	"github.com/tsurudb/TsuruDB/common"
	"github.com/tsurudb/TsuruDB/storage/buffer"
	"github.com/tsurudb/TsuruDB/storage/disk"
)

// TsuruInstance bundles an in-memory disk manager and a buffer pool for
// tests that do not need a real file.
type TsuruInstance struct {
	DiskManager disk.DiskManager
	BPM         *buffer.BufferPoolManager
}

func NewTsuruInstance(poolSize uint32) *TsuruInstance {
	dm := disk.NewDiskManagerTest()
	bpm := buffer.NewBufferPoolManager(poolSize, dm)
	return &TsuruInstance{dm, bpm}
}

// BootstrapCatalog reserves the fixed logical pages and formats an empty
// catalog, as database creation does
func (ti *TsuruInstance) BootstrapCatalog() (*catalog.Catalog, error) {
	for i := 0; i < common.NumReservedPages; i++ {
		if _, err := ti.DiskManager.AllocatePage(); err != nil {
			return nil, err
		}
	}
	return catalog.BootstrapCatalog(ti.BPM)
}

// Finalize shuts the instance down
func (ti *TsuruInstance) Finalize() {
	ti.DiskManager.ShutDown()
}
