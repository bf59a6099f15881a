package shape

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// Kind is a leaf value category of the BSON format.
type Kind uint8

const (
	KindDouble Kind = iota + 1
	KindString
	KindBoolean
	KindNull
	KindInt32
	KindInt64
	KindTimestamp
	KindBinary
	KindObjectID
	KindDateTime
	KindSymbol
	KindDecimal128
	KindUndefined
	KindMaxKey
	KindMinKey
	KindDBPointer
	KindRegex
	KindJavaScript
	KindCodeWithScope
)

// kindNames holds the encoded name of every Kind. Names follow the BSON
// type names used by the mongo tooling.
var kindNames = map[Kind]string{
	KindDouble:        "Double",
	KindString:        "String",
	KindBoolean:       "Boolean",
	KindNull:          "Null",
	KindInt32:         "Int32",
	KindInt64:         "Int64",
	KindTimestamp:     "Timestamp",
	KindBinary:        "Binary",
	KindObjectID:      "ObjectId",
	KindDateTime:      "DateTime",
	KindSymbol:        "Symbol",
	KindDecimal128:    "Decimal128",
	KindUndefined:     "Undefined",
	KindMaxKey:        "MaxKey",
	KindMinKey:        "MinKey",
	KindDBPointer:     "DbPointer",
	KindRegex:         "RegularExpression",
	KindJavaScript:    "JavaScriptCode",
	KindCodeWithScope: "JavaScriptCodeWithScope",
}

var kindsByName = func() map[string]Kind {
	m := make(map[string]Kind, len(kindNames))
	for k, name := range kindNames {
		m[name] = k
	}
	return m
}()

// Kinds returns every scalar kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, 0, len(kindNames))
	for k := KindDouble; k <= KindCodeWithScope; k++ {
		out = append(out, k)
	}
	return out
}

// String returns the encoded name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// ParseKind resolves an encoded kind name.
func ParseKind(name string) (Kind, bool) {
	k, ok := kindsByName[name]
	return k, ok
}

// scalarKind maps a BSON leaf type to its Kind. Embedded documents and
// arrays are structural and never reach this table.
//
// Every BSON type is named here. A type byte outside the BSON
// specification cannot appear in a validated document, so reaching the
// panic means a caller skipped validation.
func scalarKind(t bsontype.Type) Kind {
	switch t {
	case bsontype.Double:
		return KindDouble
	case bsontype.String:
		return KindString
	case bsontype.Boolean:
		return KindBoolean
	case bsontype.Null:
		return KindNull
	case bsontype.Int32:
		return KindInt32
	case bsontype.Int64:
		return KindInt64
	case bsontype.Timestamp:
		return KindTimestamp
	case bsontype.Binary:
		return KindBinary
	case bsontype.ObjectID:
		return KindObjectID
	case bsontype.DateTime:
		return KindDateTime
	case bsontype.Symbol:
		return KindSymbol
	case bsontype.Decimal128:
		return KindDecimal128
	case bsontype.Undefined:
		return KindUndefined
	case bsontype.MaxKey:
		return KindMaxKey
	case bsontype.MinKey:
		return KindMinKey
	case bsontype.DBPointer:
		return KindDBPointer
	case bsontype.Regex:
		return KindRegex
	case bsontype.JavaScript:
		return KindJavaScript
	case bsontype.CodeWithScope:
		return KindCodeWithScope
	case bsontype.EmbeddedDocument, bsontype.Array:
		panic(fmt.Sprintf("shape: %s is not a scalar type", t))
	}
	panic(fmt.Sprintf("shape: unhandled BSON type %#x", byte(t)))
}
