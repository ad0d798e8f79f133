package types

import (
	"bytes"
	"encoding/binary"
)

// LSN is the type of the log sequence number
type LSN int32

// InvalidLSN represents an invalid log sequence number
const InvalidLSN = LSN(-1)

const SizeOfLSN = 4

// Serialize casts it to []byte
func (lsn LSN) Serialize() []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, lsn)
	return buf.Bytes()
}

// NewLSNFromBytes creates a LSN from []byte
func NewLSNFromBytes(data []byte) (ret LSN) {
	binary.Read(bytes.NewBuffer(data), binary.LittleEndian, &ret)
	return ret
}
