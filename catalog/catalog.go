package catalog

import (
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/tsurudb/TsuruDB/common"
	"github.com/tsurudb/TsuruDB/errors"
	"github.com/tsurudb/TsuruDB/storage/access"
	"github.com/tsurudb/TsuruDB/storage/buffer"
	"github.com/tsurudb/TsuruDB/storage/index"
	"github.com/tsurudb/TsuruDB/storage/page"
	"github.com/tsurudb/TsuruDB/storage/table/schema"
)

// Catalog persists table and index metadata, assigns identifiers, and lends
// the live TableInfo/IndexInfo objects to executors. Every DDL keeps the
// in-memory maps, the per-object meta pages and the catalog meta page in
// agreement, or reports failure.
type Catalog struct {
	bpm         *buffer.BufferPoolManager
	meta        *CatalogMeta
	nextTableId uint32
	nextIndexId uint32
	tables      map[uint32]*TableInfo
	tableNames  map[string]uint32
	indexes     map[uint32]*IndexInfo
	// tableName -> indexName -> indexId
	indexNames map[string]map[string]uint32
	mutex      sync.Mutex
}

func emptyCatalog(bpm *buffer.BufferPoolManager) *Catalog {
	return &Catalog{
		bpm:        bpm,
		meta:       NewCatalogMeta(),
		tables:     make(map[uint32]*TableInfo),
		tableNames: make(map[string]uint32),
		indexes:    make(map[uint32]*IndexInfo),
		indexNames: make(map[string]map[string]uint32),
	}
}

// BootstrapCatalog formats the catalog meta page of a fresh database
func BootstrapCatalog(bpm *buffer.BufferPoolManager) (*Catalog, error) {
	c := emptyCatalog(bpm)
	if err := c.flushCatalogMeta(); err != nil {
		return nil, err
	}

	// format the index roots page as well; both fixed pages are reserved at
	// database creation
	p := bpm.FetchPage(common.IndexRootsPageID)
	if p == nil {
		return nil, errors.ErrGeneral
	}
	rootsPage := page.CastPageAsIndexRootsPage(p)
	rootsPage.Init()
	bpm.UnpinPage(common.IndexRootsPageID, true)
	bpm.FlushPage(common.IndexRootsPageID)
	return c, nil
}

// RecoverCatalog rebuilds the catalog of an existing database from its meta
// pages
func RecoverCatalog(bpm *buffer.BufferPoolManager) (*Catalog, error) {
	c := emptyCatalog(bpm)

	p := bpm.FetchPage(common.CatalogMetaPageID)
	if p == nil {
		return nil, errors.ErrGeneral
	}
	meta, err := NewCatalogMetaFromBytes(p.Data()[:])
	bpm.UnpinPage(common.CatalogMetaPageID, false)
	if err != nil {
		return nil, err
	}
	c.meta = meta

	for tableId, pageId := range meta.tableMetaPages {
		tp := bpm.FetchPage(pageId)
		if tp == nil {
			return nil, errors.ErrGeneral
		}
		tableMeta, err := NewTableMetadataFromBytes(tp.Data()[:])
		bpm.UnpinPage(pageId, false)
		if err != nil {
			return nil, err
		}
		heap := access.InitTableHeap(bpm, tableMeta.GetFirstPageId(), tableMeta.GetSchema())
		info := NewTableInfo(tableMeta, heap)
		c.tables[tableId] = info
		c.tableNames[tableMeta.GetTableName()] = tableId
		c.indexNames[tableMeta.GetTableName()] = make(map[string]uint32)
		if tableId >= c.nextTableId {
			c.nextTableId = tableId + 1
		}
	}

	for indexId, pageId := range meta.indexMetaPages {
		ip := bpm.FetchPage(pageId)
		if ip == nil {
			return nil, errors.ErrGeneral
		}
		indexMeta, err := index.NewIndexMetadataFromBytes(ip.Data()[:])
		bpm.UnpinPage(pageId, false)
		if err != nil {
			return nil, err
		}
		tableInfo, ok := c.tables[indexMeta.GetTableId()]
		if !ok {
			common.Logger.Errorf("RecoverCatalog: index %d refers to unknown table %d", indexId, indexMeta.GetTableId())
			return nil, errors.ErrTableNotFound
		}
		info := NewIndexInfo(indexMeta, tableInfo, bpm)
		c.indexes[indexId] = info
		c.indexNames[tableInfo.GetTableName()][indexMeta.GetIndexName()] = indexId
		if indexId >= c.nextIndexId {
			c.nextIndexId = indexId + 1
		}
	}

	return c, nil
}

// CreateTable creates a table and its primary-key/unique auto indexes.
// Primary-key columns get the index pk_<table>; every other UNIQUE column
// gets uk_<table>_<col>.
func (c *Catalog) CreateTable(name string, schema_ *schema.Schema, pkColumns []string) (*TableInfo, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if _, ok := c.tableNames[name]; ok {
		return nil, errors.ErrTableAlreadyExists
	}

	schemaCopy := schema_.DeepCopy()
	heap := access.NewTableHeap(c.bpm, schemaCopy)
	if heap == nil {
		return nil, errors.ErrGeneral
	}

	metaPage := c.bpm.NewPage()
	if metaPage == nil {
		heap.FreePages()
		return nil, errors.ErrGeneral
	}
	tableId := c.nextTableId
	tableMeta := NewTableMetadata(tableId, name, heap.GetFirstPageId(), schemaCopy)
	if tableMeta.SerializedSize() > common.PageSize {
		common.Logger.Errorf("CreateTable: serialized metadata of %s overflows a page", name)
		c.bpm.UnpinPage(metaPage.GetPageId(), false)
		c.bpm.DeletePage(metaPage.GetPageId())
		heap.FreePages()
		return nil, errors.ErrGeneral
	}
	metaPage.Copy(0, tableMeta.Serialize())
	c.bpm.UnpinPage(metaPage.GetPageId(), true)
	c.bpm.FlushPage(metaPage.GetPageId())

	info := NewTableInfo(tableMeta, heap)
	c.tables[tableId] = info
	c.tableNames[name] = tableId
	c.indexNames[name] = make(map[string]uint32)
	c.meta.tableMetaPages[tableId] = metaPage.GetPageId()
	c.nextTableId++

	// auto indexes: pk_<table> over the primary key, uk_<table>_<col> for
	// unique columns outside it
	pkSet := mapset.NewSet[string]()
	var firstErr error
	if len(pkColumns) > 0 {
		for _, col := range pkColumns {
			pkSet.Add(col)
		}
		if _, err := c.createIndex(info, "pk_"+name, pkColumns); err != nil {
			firstErr = err
		}
	}
	if firstErr == nil {
		for _, col := range schemaCopy.GetColumns() {
			if col.IsUnique() && !pkSet.Contains(col.GetColumnName()) {
				if _, err := c.createIndex(info, "uk_"+name+"_"+col.GetColumnName(), []string{col.GetColumnName()}); err != nil {
					firstErr = err
					break
				}
			}
		}
	}
	if firstErr != nil {
		// roll the half-created table back
		c.dropTable(info)
		return nil, firstErr
	}

	if err := c.flushCatalogMeta(); err != nil {
		c.dropTable(info)
		return nil, err
	}
	return info, nil
}

// DropTable drops a table, its indexes, its heap pages and its meta page
func (c *Catalog) DropTable(name string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	tableId, ok := c.tableNames[name]
	if !ok {
		return errors.ErrTableNotFound
	}
	c.dropTable(c.tables[tableId])
	return c.flushCatalogMeta()
}

func (c *Catalog) dropTable(info *TableInfo) {
	name := info.GetTableName()
	tableId := info.GetTableId()

	for indexName := range c.indexNames[name] {
		c.dropIndex(name, indexName)
	}

	info.GetTableHeap().FreePages()
	if pageId, ok := c.meta.tableMetaPages[tableId]; ok {
		c.bpm.DeletePage(pageId)
		delete(c.meta.tableMetaPages, tableId)
	}
	delete(c.tables, tableId)
	delete(c.tableNames, name)
	delete(c.indexNames, name)
}

// CreateIndex creates an index over the named key columns of a table and
// back-fills it from the existing rows. The only supported index type is
// "btree" (the empty string selects it as well).
func (c *Catalog) CreateIndex(tableName string, indexName string, keyColumns []string, indexType string) (*IndexInfo, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if indexType != "" && indexType != "btree" {
		return nil, errors.ErrGeneral
	}

	tableId, ok := c.tableNames[tableName]
	if !ok {
		return nil, errors.ErrTableNotFound
	}
	info, err := c.createIndex(c.tables[tableId], indexName, keyColumns)
	if err != nil {
		return nil, err
	}
	if err := c.flushCatalogMeta(); err != nil {
		return nil, err
	}
	return info, nil
}

func (c *Catalog) createIndex(tableInfo *TableInfo, indexName string, keyColumns []string) (*IndexInfo, error) {
	tableName := tableInfo.GetTableName()
	if _, ok := c.indexNames[tableName][indexName]; ok {
		return nil, errors.ErrIndexAlreadyExists
	}

	keyAttrs := make([]uint32, 0, len(keyColumns))
	for _, colName := range keyColumns {
		colIndex := tableInfo.GetSchema().GetColIndex(colName)
		if colIndex < 0 {
			return nil, errors.ErrColumnNameNotFound
		}
		keyAttrs = append(keyAttrs, uint32(colIndex))
	}

	metaPage := c.bpm.NewPage()
	if metaPage == nil {
		return nil, errors.ErrGeneral
	}
	indexId := c.nextIndexId
	indexMeta := index.NewIndexMetadata(indexId, indexName, tableInfo.GetTableId(), keyAttrs)
	if indexMeta.SerializedSize() > common.PageSize {
		common.Logger.Errorf("CreateIndex: serialized metadata of %s overflows a page", indexName)
		c.bpm.UnpinPage(metaPage.GetPageId(), false)
		c.bpm.DeletePage(metaPage.GetPageId())
		return nil, errors.ErrGeneral
	}
	metaPage.Copy(0, indexMeta.Serialize())
	c.bpm.UnpinPage(metaPage.GetPageId(), true)
	c.bpm.FlushPage(metaPage.GetPageId())

	info := NewIndexInfo(indexMeta, tableInfo, c.bpm)
	c.indexes[indexId] = info
	c.indexNames[tableName][indexName] = indexId
	c.meta.indexMetaPages[indexId] = metaPage.GetPageId()
	c.nextIndexId++

	// back-fill from the rows already in the heap
	for it := tableInfo.GetTableHeap().Iterator(); !it.End(); it.Next() {
		row := it.Current()
		info.GetIndex().InsertEntry(row, *row.GetRID())
	}

	return info, nil
}

// DropIndex drops an index of a table
func (c *Catalog) DropIndex(tableName string, indexName string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if _, ok := c.tableNames[tableName]; !ok {
		return errors.ErrTableNotFound
	}
	if _, ok := c.indexNames[tableName][indexName]; !ok {
		return errors.ErrIndexNotFound
	}
	c.dropIndex(tableName, indexName)
	return c.flushCatalogMeta()
}

func (c *Catalog) dropIndex(tableName string, indexName string) {
	indexId := c.indexNames[tableName][indexName]
	if info, ok := c.indexes[indexId]; ok {
		info.GetIndex().Destroy()
	}
	if pageId, ok := c.meta.indexMetaPages[indexId]; ok {
		c.bpm.DeletePage(pageId)
		delete(c.meta.indexMetaPages, indexId)
	}
	delete(c.indexes, indexId)
	delete(c.indexNames[tableName], indexName)
}

// GetTable resolves a table by name
func (c *Catalog) GetTable(name string) (*TableInfo, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	tableId, ok := c.tableNames[name]
	if !ok {
		return nil, errors.ErrTableNotFound
	}
	return c.tables[tableId], nil
}

// GetTableById resolves a table by id
func (c *Catalog) GetTableById(tableId uint32) (*TableInfo, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	info, ok := c.tables[tableId]
	if !ok {
		return nil, errors.ErrTableNotFound
	}
	return info, nil
}

// GetTables returns every table
func (c *Catalog) GetTables() []*TableInfo {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	ret := make([]*TableInfo, 0, len(c.tables))
	for _, info := range c.tables {
		ret = append(ret, info)
	}
	return ret
}

// GetIndex resolves an index of a table by name
func (c *Catalog) GetIndex(tableName string, indexName string) (*IndexInfo, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if _, ok := c.tableNames[tableName]; !ok {
		return nil, errors.ErrTableNotFound
	}
	indexId, ok := c.indexNames[tableName][indexName]
	if !ok {
		return nil, errors.ErrIndexNotFound
	}
	return c.indexes[indexId], nil
}

// GetTableIndexes returns every index of a table
func (c *Catalog) GetTableIndexes(tableName string) ([]*IndexInfo, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if _, ok := c.tableNames[tableName]; !ok {
		return nil, errors.ErrTableNotFound
	}
	ret := make([]*IndexInfo, 0, len(c.indexNames[tableName]))
	for _, indexId := range c.indexNames[tableName] {
		ret = append(ret, c.indexes[indexId])
	}
	return ret, nil
}

// FlushCatalogMeta persists the catalog meta to its fixed page
func (c *Catalog) FlushCatalogMeta() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.flushCatalogMeta()
}

func (c *Catalog) flushCatalogMeta() error {
	if c.meta.SerializedSize() > common.PageSize {
		common.Logger.Error("flushCatalogMeta: serialized catalog meta overflows a page")
		return errors.ErrGeneral
	}
	p := c.bpm.FetchPage(common.CatalogMetaPageID)
	if p == nil {
		return errors.ErrGeneral
	}
	p.Copy(0, c.meta.Serialize())
	c.bpm.UnpinPage(common.CatalogMetaPageID, true)
	if !c.bpm.FlushPage(common.CatalogMetaPageID) {
		return errors.ErrGeneral
	}
	return nil
}
