package tsurudb

import (
	"os"
	"path/filepath"

	"github.com/tsurudb/TsuruDB/catalog"
	"github.com/tsurudb/TsuruDB/common"
	"github.com/tsurudb/TsuruDB/errors"
	"github.com/tsurudb/TsuruDB/storage/buffer"
	"github.com/tsurudb/TsuruDB/storage/disk"
)

// Database bundles one database file's disk manager, buffer pool and
// catalog. It is the seam the shell and executors attach to.
type Database struct {
	diskManager disk.DiskManager
	bpm         *buffer.BufferPoolManager
	catalog_    *catalog.Catalog
	dbFilePath  string
}

// OpenDatabase creates or opens the named database inside the configured
// database directory. On creation the two fixed logical pages (catalog meta,
// index roots) are reserved and an empty catalog is bootstrapped; on open
// the catalog is recovered from them.
func OpenDatabase(name string, settings *common.Settings) (*Database, error) {
	if settings == nil {
		settings = common.DefaultSettings()
	}
	if err := os.MkdirAll(settings.DatabaseDir, 0755); err != nil {
		return nil, err
	}
	dbFilePath := filepath.Join(settings.DatabaseDir, name+".db")
	_, statErr := os.Stat(dbFilePath)
	fresh := os.IsNotExist(statErr)

	dm, err := disk.NewDiskManagerImpl(dbFilePath)
	if err != nil {
		return nil, err
	}
	bpm := buffer.NewBufferPoolManager(settings.PoolSize, dm)

	var cat *catalog.Catalog
	if fresh {
		for i := 0; i < common.NumReservedPages; i++ {
			pageId, err := dm.AllocatePage()
			if err != nil {
				dm.ShutDown()
				return nil, err
			}
			if int(pageId) != i {
				dm.ShutDown()
				return nil, errors.Error("reserved page ids are not the first logical pages")
			}
		}
		cat, err = catalog.BootstrapCatalog(bpm)
	} else {
		cat, err = catalog.RecoverCatalog(bpm)
	}
	if err != nil {
		dm.ShutDown()
		return nil, err
	}

	return &Database{dm, bpm, cat, dbFilePath}, nil
}

// GetCatalog returns the database's catalog
func (db *Database) GetCatalog() *catalog.Catalog {
	return db.catalog_
}

// GetBufferPoolManager returns the database's buffer pool
func (db *Database) GetBufferPoolManager() *buffer.BufferPoolManager {
	return db.bpm
}

// GetDiskManager returns the database's disk manager
func (db *Database) GetDiskManager() disk.DiskManager {
	return db.diskManager
}

// Close flushes every cached page, persists the catalog meta and closes the
// file
func (db *Database) Close() {
	db.catalog_.FlushCatalogMeta()
	db.bpm.FlushAllPages()
	db.diskManager.ShutDown()
}
