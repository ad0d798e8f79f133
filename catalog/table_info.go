package catalog

import (
	"bytes"
	"encoding/binary"

	"github.com/tsurudb/TsuruDB/errors"
	"github.com/tsurudb/TsuruDB/storage/access"
	"github.com/tsurudb/TsuruDB/storage/table/schema"
	"github.com/tsurudb/TsuruDB/types"
)

// TableMetadataMagicNum guards serialized table metadata against corruption
const TableMetadataMagicNum = uint32(344528)

// TableMetadata is the persisted description of one table. It occupies one
// page, identified in the catalog meta map.
//
// Serialized layout:
//
//	| Magic (4) | TableId (4) | NameLen (4) | Name | FirstPageId (4) | Schema |
type TableMetadata struct {
	tableId     uint32
	tableName   string
	firstPageId types.PageID
	schema      *schema.Schema
}

func NewTableMetadata(tableId uint32, tableName string, firstPageId types.PageID, schema_ *schema.Schema) *TableMetadata {
	return &TableMetadata{tableId, tableName, firstPageId, schema_}
}

func (m *TableMetadata) GetTableId() uint32 {
	return m.tableId
}

func (m *TableMetadata) GetTableName() string {
	return m.tableName
}

func (m *TableMetadata) GetFirstPageId() types.PageID {
	return m.firstPageId
}

func (m *TableMetadata) GetSchema() *schema.Schema {
	return m.schema
}

// Serialize casts the metadata to []byte
func (m *TableMetadata) Serialize() []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, TableMetadataMagicNum)
	binary.Write(buf, binary.LittleEndian, m.tableId)
	binary.Write(buf, binary.LittleEndian, uint32(len(m.tableName)))
	buf.WriteString(m.tableName)
	binary.Write(buf, binary.LittleEndian, m.firstPageId)
	buf.Write(m.schema.Serialize())
	return buf.Bytes()
}

// SerializedSize returns the number of bytes Serialize produces
func (m *TableMetadata) SerializedSize() uint32 {
	return 4 + 4 + 4 + uint32(len(m.tableName)) + 4 + m.schema.SerializedSize()
}

// NewTableMetadataFromBytes deserializes table metadata
func NewTableMetadataFromBytes(data []byte) (*TableMetadata, error) {
	if uint32(types.NewUInt32FromBytes(data)) != TableMetadataMagicNum {
		return nil, errors.Error("table metadata magic number mismatch")
	}
	pos := uint32(4)
	tableId := uint32(types.NewUInt32FromBytes(data[pos:]))
	pos += 4
	nameLen := uint32(types.NewUInt32FromBytes(data[pos:]))
	pos += 4
	tableName := string(data[pos : pos+nameLen])
	pos += nameLen
	firstPageId := types.NewPageIDFromBytes(data[pos:])
	pos += 4
	schema_, _, err := schema.NewSchemaFromBytes(data[pos:])
	if err != nil {
		return nil, err
	}
	return &TableMetadata{tableId, tableName, firstPageId, schema_}, nil
}

// TableInfo joins a table's metadata with its open heap. It is what the
// catalog lends to executors.
type TableInfo struct {
	metadata *TableMetadata
	table    *access.TableHeap
}

func NewTableInfo(metadata *TableMetadata, table *access.TableHeap) *TableInfo {
	return &TableInfo{metadata, table}
}

func (t *TableInfo) GetTableHeap() *access.TableHeap {
	return t.table
}

func (t *TableInfo) GetSchema() *schema.Schema {
	return t.metadata.GetSchema()
}

func (t *TableInfo) GetTableId() uint32 {
	return t.metadata.GetTableId()
}

func (t *TableInfo) GetTableName() string {
	return t.metadata.GetTableName()
}
