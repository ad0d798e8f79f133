package catalog

import (
	"bytes"
	"encoding/binary"

	"github.com/spaolacci/murmur3"
	"github.com/tsurudb/TsuruDB/errors"
	"github.com/tsurudb/TsuruDB/types"
)

// CatalogMetaMagicNum guards the serialized catalog meta against corruption
const CatalogMetaMagicNum = uint32(89849)

// CatalogMeta is the persistent root of the catalog: which page holds each
// table's and each index's metadata. It lives at the fixed catalog meta page.
//
// Serialized layout:
//
//	| Magic (4) | Checksum (4) | TableCount (4) | (TableId, PageId) ... |
//	| IndexCount (4) | (IndexId, PageId) ... |
//
// The checksum is the murmur3 sum of everything after the checksum field.
type CatalogMeta struct {
	tableMetaPages map[uint32]types.PageID
	indexMetaPages map[uint32]types.PageID
}

func NewCatalogMeta() *CatalogMeta {
	return &CatalogMeta{make(map[uint32]types.PageID), make(map[uint32]types.PageID)}
}

func (cm *CatalogMeta) payload() []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, uint32(len(cm.tableMetaPages)))
	for _, tableId := range sortedKeys(cm.tableMetaPages) {
		binary.Write(buf, binary.LittleEndian, tableId)
		binary.Write(buf, binary.LittleEndian, cm.tableMetaPages[tableId])
	}
	binary.Write(buf, binary.LittleEndian, uint32(len(cm.indexMetaPages)))
	for _, indexId := range sortedKeys(cm.indexMetaPages) {
		binary.Write(buf, binary.LittleEndian, indexId)
		binary.Write(buf, binary.LittleEndian, cm.indexMetaPages[indexId])
	}
	return buf.Bytes()
}

func sortedKeys(m map[uint32]types.PageID) []uint32 {
	keys := make([]uint32, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}

// Serialize casts the catalog meta to []byte
func (cm *CatalogMeta) Serialize() []byte {
	payload := cm.payload()
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, CatalogMetaMagicNum)
	binary.Write(buf, binary.LittleEndian, murmur3.Sum32(payload))
	buf.Write(payload)
	return buf.Bytes()
}

// SerializedSize returns the number of bytes Serialize produces
func (cm *CatalogMeta) SerializedSize() uint32 {
	return 8 + 4 + 8*uint32(len(cm.tableMetaPages)) + 4 + 8*uint32(len(cm.indexMetaPages))
}

// NewCatalogMetaFromBytes deserializes the catalog meta, verifying magic and
// checksum
func NewCatalogMetaFromBytes(data []byte) (*CatalogMeta, error) {
	if uint32(types.NewUInt32FromBytes(data)) != CatalogMetaMagicNum {
		return nil, errors.Error("catalog meta magic number mismatch")
	}
	checksum := uint32(types.NewUInt32FromBytes(data[4:]))

	pos := uint32(8)
	cm := NewCatalogMeta()
	tableCount := uint32(types.NewUInt32FromBytes(data[pos:]))
	pos += 4
	for i := uint32(0); i < tableCount; i++ {
		tableId := uint32(types.NewUInt32FromBytes(data[pos:]))
		pageId := types.NewPageIDFromBytes(data[pos+4:])
		cm.tableMetaPages[tableId] = pageId
		pos += 8
	}
	indexCount := uint32(types.NewUInt32FromBytes(data[pos:]))
	pos += 4
	for i := uint32(0); i < indexCount; i++ {
		indexId := uint32(types.NewUInt32FromBytes(data[pos:]))
		pageId := types.NewPageIDFromBytes(data[pos+4:])
		cm.indexMetaPages[indexId] = pageId
		pos += 8
	}

	if murmur3.Sum32(cm.payload()) != checksum {
		return nil, errors.Error("catalog meta checksum mismatch")
	}
	return cm, nil
}
