package types

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// A Value is a typed field of a row. It carries a NULL flag; a NULL value
// still knows its type. Integer and Float serialize to a fixed 4 byte
// little-endian payload, Char to a length-prefixed byte string.
type Value struct {
	valueType TypeID
	isNull    bool
	integer   *int32
	float     *float32
	char      *string
}

func NewInteger(value int32) Value {
	return Value{Integer, false, &value, nil, nil}
}

func NewFloat(value float32) Value {
	return Value{Float, false, nil, &value, nil}
}

func NewChar(value string) Value {
	return Value{Char, false, nil, nil, &value}
}

// NewNull creates a NULL value of the given type
func NewNull(valueType TypeID) Value {
	return Value{valueType, true, nil, nil, nil}
}

func (v Value) ValueType() TypeID {
	return v.valueType
}

func (v Value) IsNull() bool {
	return v.isNull
}

func (v Value) ToInteger() int32 {
	return *v.integer
}

func (v Value) ToFloat() float32 {
	return *v.float
}

func (v Value) ToChar() string {
	return *v.char
}

// Serialize returns the on-disk payload of the value. A NULL value
// contributes no bytes; the row's null bitmap records its absence.
func (v Value) Serialize() []byte {
	if v.isNull {
		return []byte{}
	}
	switch v.valueType {
	case Integer:
		return Int32(*v.integer).Serialize()
	case Float:
		return Float32(*v.float).Serialize()
	case Char:
		buf := new(bytes.Buffer)
		binary.Write(buf, binary.LittleEndian, uint32(len(*v.char)))
		buf.WriteString(*v.char)
		return buf.Bytes()
	default:
		panic(fmt.Sprintf("Value::Serialize: illegal type %d", v.valueType))
	}
}

// SerializedSize returns the number of bytes Serialize produces.
func (v Value) SerializedSize() uint32 {
	if v.isNull {
		return 0
	}
	switch v.valueType {
	case Integer, Float:
		return 4
	case Char:
		return 4 + uint32(len(*v.char))
	default:
		return 0
	}
}

// NewValueFromBytes deserializes a non-NULL value of the given type and
// reports how many bytes were consumed.
func NewValueFromBytes(data []byte, valueType TypeID) (Value, uint32) {
	switch valueType {
	case Integer:
		return NewInteger(int32(NewInt32FromBytes(data))), 4
	case Float:
		return NewFloat(float32(NewFloat32FromBytes(data))), 4
	case Char:
		length := uint32(NewUInt32FromBytes(data))
		return NewChar(string(data[4 : 4+length])), 4 + length
	default:
		panic(fmt.Sprintf("NewValueFromBytes: illegal type %d", valueType))
	}
}

// SerializeFixed returns a fixed width image of the value used for index
// keys: Integer/Float as their 4 byte payload, Char padded with zero bytes to
// the declared column width. NULLs are not indexable and panic here.
func (v Value) SerializeFixed(width uint32) []byte {
	if v.isNull {
		panic("Value::SerializeFixed: NULL value cannot form an index key")
	}
	switch v.valueType {
	case Integer, Float:
		return v.Serialize()
	case Char:
		ret := make([]byte, width)
		copy(ret, *v.char)
		return ret
	default:
		panic(fmt.Sprintf("Value::SerializeFixed: illegal type %d", v.valueType))
	}
}

func (v Value) CompareEquals(right Value) bool {
	if v.isNull && right.isNull {
		return true
	}
	if v.isNull || right.isNull {
		return false
	}
	switch v.valueType {
	case Integer:
		return *v.integer == *right.integer
	case Float:
		return *v.float == *right.float
	case Char:
		return *v.char == *right.char
	}
	return false
}

func (v Value) CompareLessThan(right Value) bool {
	if v.isNull || right.isNull {
		return false
	}
	switch v.valueType {
	case Integer:
		return *v.integer < *right.integer
	case Float:
		return *v.float < *right.float
	case Char:
		return *v.char < *right.char
	}
	return false
}

func (v Value) CompareGreaterThan(right Value) bool {
	return right.CompareLessThan(v)
}
