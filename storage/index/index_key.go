package index

import (
	"bytes"

	"github.com/tsurudb/TsuruDB/storage/page"
	"github.com/tsurudb/TsuruDB/storage/table/column"
	"github.com/tsurudb/TsuruDB/storage/table/schema"
	"github.com/tsurudb/TsuruDB/storage/tuple"
	"github.com/tsurudb/TsuruDB/types"
)

// Index keys are fixed-width byte strings: the key columns of a row
// serialized back to back, Char columns padded with zero bytes to their
// declared length. A KeyComparator decodes the fields for ordering; raw
// little-endian integers are not byte-comparable.

// KeySizeOf returns the fixed width of keys over the given columns
func KeySizeOf(keyCols []*column.Column) uint32 {
	size := uint32(0)
	for _, col := range keyCols {
		size += col.Length()
	}
	return size
}

// KeyColumns resolves the key attributes into the schema's columns
func KeyColumns(schema_ *schema.Schema, keyAttrs []uint32) []*column.Column {
	cols := make([]*column.Column, 0, len(keyAttrs))
	for _, attr := range keyAttrs {
		cols = append(cols, schema_.GetColumn(attr))
	}
	return cols
}

// SerializeKey builds the fixed-width key image of the given values
func SerializeKey(values []types.Value, keyCols []*column.Column) []byte {
	buf := new(bytes.Buffer)
	for i, col := range keyCols {
		buf.Write(values[i].SerializeFixed(col.Length()))
	}
	return buf.Bytes()
}

// SerializeKeyFromRow extracts the key columns of a row and builds the key
func SerializeKeyFromRow(row *tuple.Row, keyAttrs []uint32, keyCols []*column.Column) []byte {
	values := make([]types.Value, 0, len(keyAttrs))
	for _, attr := range keyAttrs {
		values = append(values, row.GetValue(attr))
	}
	return SerializeKey(values, keyCols)
}

// NewKeyComparator builds a field-wise comparator over the key columns
func NewKeyComparator(keyCols []*column.Column) page.KeyComparator {
	return func(a []byte, b []byte) int {
		offset := uint32(0)
		for _, col := range keyCols {
			width := col.Length()
			fieldA := a[offset : offset+width]
			fieldB := b[offset : offset+width]
			var cmp int
			switch col.GetType() {
			case types.Integer:
				intA := int32(types.NewInt32FromBytes(fieldA))
				intB := int32(types.NewInt32FromBytes(fieldB))
				cmp = compareInt32(intA, intB)
			case types.Float:
				floatA := float32(types.NewFloat32FromBytes(fieldA))
				floatB := float32(types.NewFloat32FromBytes(fieldB))
				cmp = compareFloat32(floatA, floatB)
			case types.Char:
				cmp = bytes.Compare(fieldA, fieldB)
			default:
				panic("KeyComparator: illegal key column type")
			}
			if cmp != 0 {
				return cmp
			}
			offset += width
		}
		return 0
	}
}

func compareInt32(a int32, b int32) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareFloat32(a float32, b float32) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
