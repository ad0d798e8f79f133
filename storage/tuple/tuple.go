package tuple

import (
	"bytes"
	"encoding/binary"

	"github.com/bits-and-blooms/bitset"
	"github.com/tsurudb/TsuruDB/storage/page"
	"github.com/tsurudb/TsuruDB/storage/table/schema"
	"github.com/tsurudb/TsuruDB/types"
)

// Row is a tuple of typed values located by a record id.
//
// Serialized layout:
//
//	| FieldCount (4) | NullBitmap (ceil(n/8)) | payload_0 | payload_1 | ... |
//
// NULL fields set their bitmap bit and contribute no payload bytes.
type Row struct {
	rid    *page.RID
	values []types.Value
}

func NewRow(values []types.Value) *Row {
	return &Row{&page.RID{}, values}
}

func (r *Row) GetRID() *page.RID {
	return r.rid
}

func (r *Row) SetRID(rid *page.RID) {
	r.rid = rid
}

func (r *Row) GetValue(colIndex uint32) types.Value {
	return r.values[colIndex]
}

func (r *Row) GetFieldCount() uint32 {
	return uint32(len(r.values))
}

func nullBitmapSize(fieldCount uint32) uint32 {
	return (fieldCount + 7) / 8
}

// packNullBitmap serializes a bitset's first ceil(n/8) bytes, little-endian
// word order, so bit i lands in byte i/8 at position i%8
func packNullBitmap(bs *bitset.BitSet, fieldCount uint32) []byte {
	ret := make([]byte, nullBitmapSize(fieldCount))
	words := bs.Bytes()
	for i := range ret {
		word := uint64(0)
		if i/8 < len(words) {
			word = words[i/8]
		}
		ret[i] = byte(word >> (8 * (i % 8)))
	}
	return ret
}

func unpackNullBitmap(data []byte, fieldCount uint32) *bitset.BitSet {
	n := nullBitmapSize(fieldCount)
	words := make([]uint64, (n+7)/8)
	for i := uint32(0); i < n; i++ {
		words[i/8] |= uint64(data[i]) << (8 * (i % 8))
	}
	return bitset.From(words)
}

// Serialize casts the row to []byte
func (r *Row) Serialize() []byte {
	fieldCount := r.GetFieldCount()
	nulls := bitset.New(uint(fieldCount))
	for i, v := range r.values {
		if v.IsNull() {
			nulls.Set(uint(i))
		}
	}

	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, fieldCount)
	buf.Write(packNullBitmap(nulls, fieldCount))
	for _, v := range r.values {
		buf.Write(v.Serialize())
	}
	return buf.Bytes()
}

// SerializedSize returns the number of bytes Serialize produces
func (r *Row) SerializedSize() uint32 {
	ret := 4 + nullBitmapSize(r.GetFieldCount())
	for _, v := range r.values {
		ret += v.SerializedSize()
	}
	return ret
}

// NewRowFromBytes deserializes a row against its schema and reports how many
// bytes were consumed
func NewRowFromBytes(data []byte, schema_ *schema.Schema) (*Row, uint32) {
	fieldCount := uint32(types.NewUInt32FromBytes(data))
	pos := uint32(4)
	nulls := unpackNullBitmap(data[pos:], fieldCount)
	pos += nullBitmapSize(fieldCount)

	values := make([]types.Value, 0, fieldCount)
	for i := uint32(0); i < fieldCount; i++ {
		colType := schema_.GetColumn(i).GetType()
		if nulls.Test(uint(i)) {
			values = append(values, types.NewNull(colType))
			continue
		}
		v, consumed := types.NewValueFromBytes(data[pos:], colType)
		values = append(values, v)
		pos += consumed
	}
	return &Row{&page.RID{}, values}, pos
}

// Equals compares two rows value by value, treating NULL as equal to NULL
func (r *Row) Equals(other *Row) bool {
	if r.GetFieldCount() != other.GetFieldCount() {
		return false
	}
	for i := range r.values {
		if !r.values[i].CompareEquals(other.values[i]) {
			return false
		}
	}
	return true
}
