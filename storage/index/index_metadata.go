package index

import (
	"bytes"
	"encoding/binary"

	"github.com/tsurudb/TsuruDB/errors"
	"github.com/tsurudb/TsuruDB/types"
)

// IndexMetadataMagicNum guards serialized index metadata against corruption
const IndexMetadataMagicNum = uint32(193492)

// IndexMetadata describes one index: its identity, the table it belongs to,
// and which columns of that table form the key.
//
// Serialized layout:
//
//	| Magic (4) | IndexId (4) | NameLen (4) | Name | TableId (4) |
//	| KeyCount (4) | KeyAttr_0 (4) | ... |
type IndexMetadata struct {
	indexId   uint32
	indexName string
	tableId   uint32
	keyAttrs  []uint32
}

func NewIndexMetadata(indexId uint32, indexName string, tableId uint32, keyAttrs []uint32) *IndexMetadata {
	return &IndexMetadata{indexId, indexName, tableId, keyAttrs}
}

func (m *IndexMetadata) GetIndexId() uint32 {
	return m.indexId
}

func (m *IndexMetadata) GetIndexName() string {
	return m.indexName
}

func (m *IndexMetadata) GetTableId() uint32 {
	return m.tableId
}

func (m *IndexMetadata) GetKeyAttrs() []uint32 {
	return m.keyAttrs
}

func (m *IndexMetadata) GetIndexColumnCount() uint32 {
	return uint32(len(m.keyAttrs))
}

// Serialize casts the metadata to []byte
func (m *IndexMetadata) Serialize() []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, IndexMetadataMagicNum)
	binary.Write(buf, binary.LittleEndian, m.indexId)
	binary.Write(buf, binary.LittleEndian, uint32(len(m.indexName)))
	buf.WriteString(m.indexName)
	binary.Write(buf, binary.LittleEndian, m.tableId)
	binary.Write(buf, binary.LittleEndian, uint32(len(m.keyAttrs)))
	for _, attr := range m.keyAttrs {
		binary.Write(buf, binary.LittleEndian, attr)
	}
	return buf.Bytes()
}

// SerializedSize returns the number of bytes Serialize produces
func (m *IndexMetadata) SerializedSize() uint32 {
	return 4 + 4 + 4 + uint32(len(m.indexName)) + 4 + 4 + 4*uint32(len(m.keyAttrs))
}

// NewIndexMetadataFromBytes deserializes index metadata
func NewIndexMetadataFromBytes(data []byte) (*IndexMetadata, error) {
	if uint32(types.NewUInt32FromBytes(data)) != IndexMetadataMagicNum {
		return nil, errors.Error("index metadata magic number mismatch")
	}
	pos := uint32(4)
	indexId := uint32(types.NewUInt32FromBytes(data[pos:]))
	pos += 4
	nameLen := uint32(types.NewUInt32FromBytes(data[pos:]))
	pos += 4
	indexName := string(data[pos : pos+nameLen])
	pos += nameLen
	tableId := uint32(types.NewUInt32FromBytes(data[pos:]))
	pos += 4
	keyCount := uint32(types.NewUInt32FromBytes(data[pos:]))
	pos += 4
	keyAttrs := make([]uint32, 0, keyCount)
	for i := uint32(0); i < keyCount; i++ {
		keyAttrs = append(keyAttrs, uint32(types.NewUInt32FromBytes(data[pos:])))
		pos += 4
	}
	return &IndexMetadata{indexId, indexName, tableId, keyAttrs}, nil
}
