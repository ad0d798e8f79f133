package page

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/tsurudb/TsuruDB/types"
)

const SizeOfRID = 8

// RID is the record identifier: the page and slot a tuple lives at.
type RID struct {
	pageId  types.PageID
	slotNum uint32
}

// Set sets the record identifier
func (r *RID) Set(pageId types.PageID, slot uint32) {
	r.pageId = pageId
	r.slotNum = slot
}

// GetPageId gets the page id
func (r *RID) GetPageId() types.PageID {
	return r.pageId
}

// GetSlotNum gets the slot number
func (r *RID) GetSlotNum() uint32 {
	return r.slotNum
}

// Serialize casts it to []byte
func (r RID) Serialize() []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, r.pageId)
	binary.Write(buf, binary.LittleEndian, r.slotNum)
	return buf.Bytes()
}

// NewRIDFromBytes creates a RID from []byte
func NewRIDFromBytes(data []byte) (ret RID) {
	ret.pageId = types.NewPageIDFromBytes(data)
	ret.slotNum = uint32(types.NewUInt32FromBytes(data[types.SizeOfPageID:]))
	return ret
}

func (r RID) String() string {
	return fmt.Sprintf("(%d,%d)", r.pageId, r.slotNum)
}
