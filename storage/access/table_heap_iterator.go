package access

import (
	"github.com/tsurudb/TsuruDB/storage/tuple"
)

// TableHeapIterator is a sequential scan over the live tuples of a table
// heap, in page-chain order.
type TableHeapIterator struct {
	tableHeap *TableHeap
	current   *tuple.Row
}

// NewTableHeapIterator creates an iterator positioned at the first live tuple
func NewTableHeapIterator(tableHeap *TableHeap) *TableHeapIterator {
	return &TableHeapIterator{tableHeap, tableHeap.GetFirstTuple()}
}

// Current returns the tuple the iterator stands on
func (it *TableHeapIterator) Current() *tuple.Row {
	return it.current
}

// End reports whether the scan is exhausted
func (it *TableHeapIterator) End() bool {
	return it.current == nil
}

// Next advances the iterator and returns the next tuple
func (it *TableHeapIterator) Next() *tuple.Row {
	if it.current == nil {
		return nil
	}
	it.current = it.tableHeap.GetNextTuple(it.current.GetRID())
	return it.current
}
