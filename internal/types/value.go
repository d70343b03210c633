package types

import (
	"math/big"

	"github.com/google/uuid"
)

// MapEntry is one key/value pair of a Map value. Maps are ordered by key
// on the wire (spec §4.2), so entries are stored as a slice, not a Go map.
type MapEntry struct {
	Key   Value
	Value Value
}

// Field is one named component of a UDT value, in declaration order.
type Field struct {
	Name  string
	Value Value
}

// Duration holds Cassandra's three-component duration: months, days, and
// nanoseconds, each independently signed per spec §3.
type Duration struct {
	Months int32
	Days   int32
	Nanos  int64
}

// Decimal is an unscaled arbitrary-precision integer plus a base-10
// scale: value == Unscaled * 10^-Scale.
type Decimal struct {
	Unscaled *big.Int
	Scale    int32
}

// Value is the tagged union over every typed-value variant spec §3
// names. Exactly one payload field is meaningful for a given Kind; the
// rest are zero. This mirrors the data model's "dynamic collections
// represented uniformly as a tagged union" guidance: Collection and
// Entries recurse into more Values rather than branching into per-type
// Go types.
type Value struct {
	Kind Kind

	Bool    bool
	Int8    int8
	Int16   int16
	Int32   int32
	Int64   int64
	Float32 float32
	Float64 float64

	// Bytes backs Blob, Text, Ascii, and Inet; uuid/timeuuid use UUID.
	Bytes []byte

	Varint   *big.Int
	Decimal  Decimal
	Duration Duration
	UUID     uuid.UUID

	// Collection holds List/Set elements, Tuple components (in arity
	// order, with Null-kind placeholders), and the single Frozen payload
	// (as a 1-element slice wrapping the frozen value).
	Collection []Value
	// Entries holds Map key/value pairs in wire order.
	Entries []MapEntry
	// Fields holds UDT fields in declaration order.
	Fields []Field

	Tombstone Tombstone
}

// TombstoneType distinguishes the kinds of deletion marker spec §3 names.
type TombstoneType uint8

const (
	TombstoneRow TombstoneType = iota
	TombstoneCell
	TombstoneRangeStart
	TombstoneRangeEnd
	TombstoneTTLExpiry
)

// Tombstone records a deletion marker: a type and the timestamp at or
// below which it supersedes cell writes (invariant 3).
type Tombstone struct {
	Type      TombstoneType
	Timestamp int64
}

func Null() Value                   { return Value{Kind: KindNull} }
func BoolValue(b bool) Value        { return Value{Kind: KindBoolean, Bool: b} }
func TinyInt(v int8) Value          { return Value{Kind: KindTinyInt, Int8: v} }
func SmallInt(v int16) Value        { return Value{Kind: KindSmallInt, Int16: v} }
func Int(v int32) Value             { return Value{Kind: KindInt, Int32: v} }
func BigInt(v int64) Value          { return Value{Kind: KindBigInt, Int64: v} }
func Float(v float32) Value         { return Value{Kind: KindFloat, Float32: v} }
func Double(v float64) Value        { return Value{Kind: KindDouble, Float64: v} }
func Text(s string) Value           { return Value{Kind: KindText, Bytes: []byte(s)} }
func Ascii(s string) Value          { return Value{Kind: KindAscii, Bytes: []byte(s)} }
func Blob(b []byte) Value           { return Value{Kind: KindBlob, Bytes: b} }
func Inet(b []byte) Value           { return Value{Kind: KindInet, Bytes: b} }
func Date(daysSinceEpoch uint32) Value {
	return Value{Kind: KindDate, Int64: int64(daysSinceEpoch)}
}
func Time(nanosSinceMidnight int64) Value {
	return Value{Kind: KindTime, Int64: nanosSinceMidnight}
}
func Timestamp(millisSinceEpoch int64) Value {
	return Value{Kind: KindTimestamp, Int64: millisSinceEpoch}
}

func UUIDValue(u uuid.UUID) Value     { return Value{Kind: KindUUID, UUID: u} }
func TimeUUIDValue(u uuid.UUID) Value { return Value{Kind: KindTimeUUID, UUID: u} }

func VarintValue(v *big.Int) Value { return Value{Kind: KindVarint, Varint: v} }

func DecimalValue(unscaled *big.Int, scale int32) Value {
	return Value{Kind: KindDecimal, Decimal: Decimal{Unscaled: unscaled, Scale: scale}}
}

func DurationValue(months, days int32, nanos int64) Value {
	return Value{Kind: KindDuration, Duration: Duration{Months: months, Days: days, Nanos: nanos}}
}

func List(elems []Value) Value { return Value{Kind: KindList, Collection: elems} }
func Set(elems []Value) Value  { return Value{Kind: KindSet, Collection: elems} }
func Map(entries []MapEntry) Value {
	return Value{Kind: KindMap, Entries: entries}
}
func Tuple(components []Value) Value { return Value{Kind: KindTuple, Collection: components} }
func UDT(fields []Field) Value       { return Value{Kind: KindUDT, Fields: fields} }
func Frozen(inner Value) Value       { return Value{Kind: KindFrozen, Collection: []Value{inner}} }

func TombstoneValue(t TombstoneType, ts int64) Value {
	return Value{Kind: KindTombstone, Tombstone: Tombstone{Type: t, Timestamp: ts}}
}

// IsNull reports whether v is the null marker.
func (v Value) IsNull() bool { return v.Kind == KindNull }
