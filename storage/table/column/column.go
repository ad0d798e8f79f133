package column

import (
	"bytes"
	"encoding/binary"

	"github.com/tsurudb/TsuruDB/common"
	"github.com/tsurudb/TsuruDB/errors"
	"github.com/tsurudb/TsuruDB/types"
)

// ColumnMagicNum guards serialized column blocks against corruption
const ColumnMagicNum = uint32(210928)

// Column describes one attribute of a table schema.
//
// Serialized layout (all little-endian):
//
//	| Magic (4) | NameLen (4) | Name | Type (4) | Length (4) |
//	| TableInd (4) | Nullable (1) | Unique (1) |
type Column struct {
	columnName string
	columnType types.TypeID
	// payload size in bytes; the declared max length for Char columns
	length   uint32
	tableInd uint32
	nullable bool
	unique   bool
}

// NewColumn creates a fixed-width (Integer or Float) column
func NewColumn(name string, columnType types.TypeID, tableInd uint32, nullable bool, unique bool) *Column {
	common.Assert(columnType == types.Integer || columnType == types.Float, "NewColumn: wrong constructor for char type")
	return &Column{name, columnType, columnType.Size(), tableInd, nullable, unique}
}

// NewCharColumn creates a Char column with a declared max length
func NewCharColumn(name string, length uint32, tableInd uint32, nullable bool, unique bool) (*Column, error) {
	if length == 0 || length > common.MaxCharLength {
		return nil, errors.Error("char column length out of range")
	}
	return &Column{name, types.Char, length, tableInd, nullable, unique}, nil
}

func (c *Column) GetColumnName() string {
	return c.columnName
}

func (c *Column) GetType() types.TypeID {
	return c.columnType
}

// Length returns the payload width: 4 for Integer/Float, the declared max
// length for Char
func (c *Column) Length() uint32 {
	return c.length
}

func (c *Column) GetTableInd() uint32 {
	return c.tableInd
}

func (c *Column) SetTableInd(ind uint32) {
	c.tableInd = ind
}

func (c *Column) IsNullable() bool {
	return c.nullable
}

func (c *Column) IsUnique() bool {
	return c.unique
}

// DeepCopy returns an independent copy of the column
func (c *Column) DeepCopy() *Column {
	ret := *c
	return &ret
}

func boolToByte(val bool) byte {
	if val {
		return 1
	}
	return 0
}

// Serialize casts the column to []byte
func (c *Column) Serialize() []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, ColumnMagicNum)
	binary.Write(buf, binary.LittleEndian, uint32(len(c.columnName)))
	buf.WriteString(c.columnName)
	binary.Write(buf, binary.LittleEndian, int32(c.columnType))
	binary.Write(buf, binary.LittleEndian, c.length)
	binary.Write(buf, binary.LittleEndian, c.tableInd)
	buf.WriteByte(boolToByte(c.nullable))
	buf.WriteByte(boolToByte(c.unique))
	return buf.Bytes()
}

// SerializedSize returns the number of bytes Serialize produces
func (c *Column) SerializedSize() uint32 {
	return 4 + 4 + uint32(len(c.columnName)) + 4 + 4 + 4 + 2
}

// NewColumnFromBytes deserializes a column and reports how many bytes were
// consumed
func NewColumnFromBytes(data []byte) (*Column, uint32, error) {
	if uint32(types.NewUInt32FromBytes(data)) != ColumnMagicNum {
		return nil, 0, errors.Error("column magic number mismatch")
	}
	pos := uint32(4)
	nameLen := uint32(types.NewUInt32FromBytes(data[pos:]))
	pos += 4
	name := string(data[pos : pos+nameLen])
	pos += nameLen
	columnType := types.TypeID(types.NewInt32FromBytes(data[pos:]))
	pos += 4
	length := uint32(types.NewUInt32FromBytes(data[pos:]))
	pos += 4
	tableInd := uint32(types.NewUInt32FromBytes(data[pos:]))
	pos += 4
	nullable := data[pos] == 1
	unique := data[pos+1] == 1
	pos += 2
	return &Column{name, columnType, length, tableInd, nullable, unique}, pos, nil
}
