package schema

import (
	"bytes"
	"encoding/binary"

	"github.com/tsurudb/TsuruDB/errors"
	"github.com/tsurudb/TsuruDB/storage/table/column"
	"github.com/tsurudb/TsuruDB/types"
)

// SchemaMagicNum guards serialized schema blocks against corruption
const SchemaMagicNum = uint32(200715)

// Schema is the ordered sequence of columns of a table.
//
// Serialized layout:
//
//	| Magic (4) | ColumnCount (4) | Column_0 | Column_1 | ... |
type Schema struct {
	columns []*column.Column
}

// NewSchema builds a schema, assigning each column its position
func NewSchema(columns []*column.Column) *Schema {
	for i, col := range columns {
		col.SetTableInd(uint32(i))
	}
	return &Schema{columns}
}

func (s *Schema) GetColumn(colIndex uint32) *column.Column {
	return s.columns[colIndex]
}

func (s *Schema) GetColumns() []*column.Column {
	return s.columns
}

func (s *Schema) GetColumnCount() uint32 {
	return uint32(len(s.columns))
}

// GetColIndex returns the position of the named column, or -1
func (s *Schema) GetColIndex(columnName string) int32 {
	for i := 0; i < len(s.columns); i++ {
		if s.columns[i].GetColumnName() == columnName {
			return int32(i)
		}
	}
	return -1
}

// DeepCopy returns an independent copy of the schema and its columns
func (s *Schema) DeepCopy() *Schema {
	columns := make([]*column.Column, 0, len(s.columns))
	for _, col := range s.columns {
		columns = append(columns, col.DeepCopy())
	}
	return &Schema{columns}
}

// Serialize casts the schema to []byte
func (s *Schema) Serialize() []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, SchemaMagicNum)
	binary.Write(buf, binary.LittleEndian, uint32(len(s.columns)))
	for _, col := range s.columns {
		buf.Write(col.Serialize())
	}
	return buf.Bytes()
}

// SerializedSize returns the number of bytes Serialize produces
func (s *Schema) SerializedSize() uint32 {
	ret := uint32(8)
	for _, col := range s.columns {
		ret += col.SerializedSize()
	}
	return ret
}

// NewSchemaFromBytes deserializes a schema and reports how many bytes were
// consumed
func NewSchemaFromBytes(data []byte) (*Schema, uint32, error) {
	if uint32(types.NewUInt32FromBytes(data)) != SchemaMagicNum {
		return nil, 0, errors.Error("schema magic number mismatch")
	}
	pos := uint32(4)
	columnCount := uint32(types.NewUInt32FromBytes(data[pos:]))
	pos += 4
	columns := make([]*column.Column, 0, columnCount)
	for i := uint32(0); i < columnCount; i++ {
		col, consumed, err := column.NewColumnFromBytes(data[pos:])
		if err != nil {
			return nil, 0, err
		}
		columns = append(columns, col)
		pos += consumed
	}
	return &Schema{columns}, pos, nil
}
