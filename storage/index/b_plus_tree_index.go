package index

import (
	"github.com/tsurudb/TsuruDB/storage/buffer"
	"github.com/tsurudb/TsuruDB/storage/page"
	"github.com/tsurudb/TsuruDB/storage/table/column"
	"github.com/tsurudb/TsuruDB/storage/table/schema"
	"github.com/tsurudb/TsuruDB/storage/tuple"
)

// BPlusTreeIndex binds a B+ tree to the rows of one table: it extracts the
// key columns of a row and keeps key -> RID entries in the tree.
type BPlusTreeIndex struct {
	metadata *IndexMetadata
	keyCols  []*column.Column
	tree     *BPlusTree
}

// NewBPlusTreeIndex opens the index described by metadata over the table's
// schema
func NewBPlusTreeIndex(metadata *IndexMetadata, tableSchema *schema.Schema, bpm *buffer.BufferPoolManager) *BPlusTreeIndex {
	keyCols := KeyColumns(tableSchema, metadata.GetKeyAttrs())
	comparator := NewKeyComparator(keyCols)
	tree := NewBPlusTree(metadata.GetIndexId(), bpm, comparator, KeySizeOf(keyCols), 0, 0)
	return &BPlusTreeIndex{metadata, keyCols, tree}
}

// GetMetadata returns the metadata object associated with the index
func (idx *BPlusTreeIndex) GetMetadata() *IndexMetadata {
	return idx.metadata
}

// GetTree returns the underlying B+ tree
func (idx *BPlusTreeIndex) GetTree() *BPlusTree {
	return idx.tree
}

func (idx *BPlusTreeIndex) keyFromRow(row *tuple.Row) []byte {
	return SerializeKeyFromRow(row, idx.metadata.GetKeyAttrs(), idx.keyCols)
}

// InsertEntry adds the row's key with its record id; false on duplicate key
func (idx *BPlusTreeIndex) InsertEntry(row *tuple.Row, rid page.RID) bool {
	return idx.tree.Insert(idx.keyFromRow(row), rid)
}

// DeleteEntry removes the row's key
func (idx *BPlusTreeIndex) DeleteEntry(row *tuple.Row) {
	idx.tree.Remove(idx.keyFromRow(row))
}

// ScanKey looks up the record id stored under the row's key
func (idx *BPlusTreeIndex) ScanKey(row *tuple.Row) (page.RID, bool) {
	return idx.tree.GetValue(idx.keyFromRow(row))
}

// Destroy frees the tree's pages and its roots-page entry
func (idx *BPlusTreeIndex) Destroy() {
	idx.tree.Destroy()
}
