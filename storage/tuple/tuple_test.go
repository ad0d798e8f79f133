package tuple

import (
	"testing"

	"github.com/tsurudb/TsuruDB/storage/table/column"
	"github.com/tsurudb/TsuruDB/storage/table/schema"
	testingpkg "github.com/tsurudb/TsuruDB/testing/testing_assert"
	"github.com/tsurudb/TsuruDB/types"
)

func sampleSchema(t *testing.T) *schema.Schema {
	columnA := column.NewColumn("id", types.Integer, 0, false, true)
	columnB, err := column.NewCharColumn("name", 32, 1, true, false)
	testingpkg.Ok(t, err)
	columnC := column.NewColumn("score", types.Float, 2, true, false)
	return schema.NewSchema([]*column.Column{columnA, columnB, columnC})
}

func TestRowSerializeRoundTrip(t *testing.T) {
	schema_ := sampleSchema(t)

	row := NewRow([]types.Value{
		types.NewInteger(42),
		types.NewChar("alice"),
		types.NewFloat(3.5),
	})

	data := row.Serialize()
	testingpkg.Equals(t, row.SerializedSize(), uint32(len(data)))

	decoded, consumed := NewRowFromBytes(data, schema_)
	testingpkg.Equals(t, uint32(len(data)), consumed)
	testingpkg.Assert(t, row.Equals(decoded), "deserialized row must equal the original")
	testingpkg.Equals(t, int32(42), decoded.GetValue(0).ToInteger())
	testingpkg.Equals(t, "alice", decoded.GetValue(1).ToChar())
	testingpkg.Equals(t, float32(3.5), decoded.GetValue(2).ToFloat())
}

func TestRowSerializePreservesNulls(t *testing.T) {
	schema_ := sampleSchema(t)

	row := NewRow([]types.Value{
		types.NewInteger(7),
		types.NewNull(types.Char),
		types.NewNull(types.Float),
	})

	data := row.Serialize()
	decoded, _ := NewRowFromBytes(data, schema_)

	testingpkg.Assert(t, row.Equals(decoded), "NULLs must survive the round trip")
	testingpkg.Assert(t, decoded.GetValue(1).IsNull(), "char field must be NULL")
	testingpkg.Assert(t, decoded.GetValue(2).IsNull(), "float field must be NULL")
	testingpkg.Assert(t, !decoded.GetValue(0).IsNull(), "int field must not be NULL")

	// NULL payloads occupy no bytes: count + bitmap + one int32
	testingpkg.Equals(t, uint32(4+1+4), uint32(len(data)))
}

func TestSchemaSerializeRoundTrip(t *testing.T) {
	schema_ := sampleSchema(t)
	data := schema_.Serialize()
	testingpkg.Equals(t, schema_.SerializedSize(), uint32(len(data)))

	decoded, consumed, err := schema.NewSchemaFromBytes(data)
	testingpkg.Ok(t, err)
	testingpkg.Equals(t, uint32(len(data)), consumed)
	testingpkg.Equals(t, schema_.GetColumnCount(), decoded.GetColumnCount())
	for i := uint32(0); i < schema_.GetColumnCount(); i++ {
		testingpkg.Equals(t, schema_.GetColumn(i).GetColumnName(), decoded.GetColumn(i).GetColumnName())
		testingpkg.Equals(t, schema_.GetColumn(i).GetType(), decoded.GetColumn(i).GetType())
		testingpkg.Equals(t, schema_.GetColumn(i).Length(), decoded.GetColumn(i).Length())
		testingpkg.Equals(t, schema_.GetColumn(i).IsNullable(), decoded.GetColumn(i).IsNullable())
		testingpkg.Equals(t, schema_.GetColumn(i).IsUnique(), decoded.GetColumn(i).IsUnique())
	}

	// a corrupted magic number is rejected
	data[0] ^= 0xff
	_, _, err = schema.NewSchemaFromBytes(data)
	testingpkg.Assert(t, err != nil, "corrupted schema must be rejected")
}
