// Package types implements the tagged-union typed value system: the
// values a cell, tuple component, or collection element can hold, and
// their binary serialization.
package types

// Kind discriminates the typed-value tagged union. Values are recursive:
// List/Set/Map/Tuple/UDT/Frozen nest other Values, per the data model's
// requirement to represent heterogeneous collections uniformly rather
// than as a class hierarchy.
type Kind uint8

const (
	KindNull Kind = iota
	KindBoolean
	KindTinyInt
	KindSmallInt
	KindInt
	KindBigInt
	KindVarint
	KindFloat
	KindDouble
	KindDecimal
	KindText
	KindAscii
	KindBlob
	KindUUID
	KindTimeUUID
	KindDate
	KindTime
	KindTimestamp
	KindDuration
	KindInet
	KindList
	KindSet
	KindMap
	KindTuple
	KindUDT
	KindFrozen
	KindTombstone
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBoolean:
		return "boolean"
	case KindTinyInt:
		return "tinyint"
	case KindSmallInt:
		return "smallint"
	case KindInt:
		return "int"
	case KindBigInt:
		return "bigint"
	case KindVarint:
		return "varint"
	case KindFloat:
		return "float"
	case KindDouble:
		return "double"
	case KindDecimal:
		return "decimal"
	case KindText:
		return "text"
	case KindAscii:
		return "ascii"
	case KindBlob:
		return "blob"
	case KindUUID:
		return "uuid"
	case KindTimeUUID:
		return "timeuuid"
	case KindDate:
		return "date"
	case KindTime:
		return "time"
	case KindTimestamp:
		return "timestamp"
	case KindDuration:
		return "duration"
	case KindInet:
		return "inet"
	case KindList:
		return "list"
	case KindSet:
		return "set"
	case KindMap:
		return "map"
	case KindTuple:
		return "tuple"
	case KindUDT:
		return "udt"
	case KindFrozen:
		return "frozen"
	case KindTombstone:
		return "tombstone"
	default:
		return "unknown"
	}
}

// IsFixedWidth reports whether Kind's binary form is a fixed-size
// big-endian scalar (as opposed to length-prefixed or recursive).
func (k Kind) IsFixedWidth() bool {
	switch k {
	case KindBoolean, KindTinyInt, KindSmallInt, KindInt, KindBigInt,
		KindFloat, KindDouble, KindDate, KindTime, KindTimestamp,
		KindUUID, KindTimeUUID:
		return true
	default:
		return false
	}
}
