package catalog

import (
	"github.com/tsurudb/TsuruDB/storage/buffer"
	"github.com/tsurudb/TsuruDB/storage/index"
)

// IndexInfo joins an index's metadata with its open B+ tree. It is what the
// catalog lends to executors.
type IndexInfo struct {
	metadata  *index.IndexMetadata
	index_    *index.BPlusTreeIndex
	tableName string
}

func NewIndexInfo(metadata *index.IndexMetadata, tableInfo *TableInfo, bpm *buffer.BufferPoolManager) *IndexInfo {
	idx := index.NewBPlusTreeIndex(metadata, tableInfo.GetSchema(), bpm)
	return &IndexInfo{metadata, idx, tableInfo.GetTableName()}
}

func (i *IndexInfo) GetIndex() *index.BPlusTreeIndex {
	return i.index_
}

func (i *IndexInfo) GetIndexId() uint32 {
	return i.metadata.GetIndexId()
}

func (i *IndexInfo) GetIndexName() string {
	return i.metadata.GetIndexName()
}

func (i *IndexInfo) GetTableName() string {
	return i.tableName
}

func (i *IndexInfo) GetKeyAttrs() []uint32 {
	return i.metadata.GetKeyAttrs()
}
