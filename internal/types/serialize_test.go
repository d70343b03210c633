package types

import (
	"bytes"
	"math/big"
	"testing"
)

func roundTrip(t *testing.T, v Value, desc TypeDesc) Value {
	t.Helper()
	payload, err := Encode(nil, v, desc)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(bytes.NewReader(payload), desc)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return got
}

func TestScalarRoundTrips(t *testing.T) {
	cases := []struct {
		name string
		v    Value
		desc TypeDesc
	}{
		{"bool-true", BoolValue(true), Scalar(KindBoolean)},
		{"bool-false", BoolValue(false), Scalar(KindBoolean)},
		{"tinyint", TinyInt(-7), Scalar(KindTinyInt)},
		{"smallint", SmallInt(-300), Scalar(KindSmallInt)},
		{"int", Int(-70000), Scalar(KindInt)},
		{"bigint", BigInt(-1 << 40), Scalar(KindBigInt)},
		{"float", Float(3.5), Scalar(KindFloat)},
		{"double", Double(2.71828), Scalar(KindDouble)},
		{"date", Date(19000), Scalar(KindDate)},
		{"time", Time(123456789), Scalar(KindTime)},
		{"timestamp", Timestamp(1_700_000_000_000), Scalar(KindTimestamp)},
		{"text", Text("hello, world"), Scalar(KindText)},
		{"ascii", Ascii("plain"), Scalar(KindAscii)},
		{"blob", Blob([]byte{0, 1, 2, 255}), Scalar(KindBlob)},
		{"inet4", Inet([]byte{127, 0, 0, 1}), Scalar(KindInet)},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := roundTrip(t, c.v, c.desc)
			if !bytes.Equal(got.Bytes, c.v.Bytes) || got.Kind != c.v.Kind ||
				got.Bool != c.v.Bool || got.Int8 != c.v.Int8 || got.Int16 != c.v.Int16 ||
				got.Int32 != c.v.Int32 || got.Int64 != c.v.Int64 ||
				got.Float32 != c.v.Float32 || got.Float64 != c.v.Float64 {
				t.Fatalf("round trip mismatch: got %+v want %+v", got, c.v)
			}
		})
	}
}

func TestVarintRoundTrip(t *testing.T) {
	values := []int64{0, 1, -1, 127, -128, 1 << 40, -(1 << 40)}
	for _, n := range values {
		v := VarintValue(big.NewInt(n))
		got := roundTrip(t, v, Scalar(KindVarint))
		if got.Varint.Cmp(big.NewInt(n)) != 0 {
			t.Fatalf("varint %d round trip = %v", n, got.Varint)
		}
	}

	huge, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	got := roundTrip(t, VarintValue(huge), Scalar(KindVarint))
	if got.Varint.Cmp(huge) != 0 {
		t.Fatalf("huge varint round trip = %v, want %v", got.Varint, huge)
	}

	negHuge := new(big.Int).Neg(huge)
	got = roundTrip(t, VarintValue(negHuge), Scalar(KindVarint))
	if got.Varint.Cmp(negHuge) != 0 {
		t.Fatalf("huge negative varint round trip = %v, want %v", got.Varint, negHuge)
	}
}

func TestDecimalRoundTrip(t *testing.T) {
	v := DecimalValue(big.NewInt(31415), 4)
	got := roundTrip(t, v, Scalar(KindDecimal))
	if got.Decimal.Scale != 4 || got.Decimal.Unscaled.Cmp(big.NewInt(31415)) != 0 {
		t.Fatalf("decimal round trip = %+v", got.Decimal)
	}
}

func TestDurationRoundTrip(t *testing.T) {
	v := DurationValue(-3, 15, -4_000_000_000)
	got := roundTrip(t, v, Scalar(KindDuration))
	if got.Duration != v.Duration {
		t.Fatalf("duration round trip = %+v, want %+v", got.Duration, v.Duration)
	}
}

func TestUUIDRoundTrip(t *testing.T) {
	u := NewUUID()
	got := roundTrip(t, UUIDValue(u), Scalar(KindUUID))
	if got.UUID != u {
		t.Fatalf("uuid round trip = %v, want %v", got.UUID, u)
	}
}

func TestListRoundTrip(t *testing.T) {
	desc := ListOf(Scalar(KindInt))
	v := List([]Value{Int(1), Int(2), Null(), Int(4)})
	got := roundTrip(t, v, desc)
	if len(got.Collection) != 4 {
		t.Fatalf("got %d elements, want 4", len(got.Collection))
	}
	if !got.Collection[2].IsNull() {
		t.Fatalf("element 2 should be null")
	}
	if got.Collection[0].Int32 != 1 || got.Collection[3].Int32 != 4 {
		t.Fatalf("unexpected elements: %+v", got.Collection)
	}
}

func TestMapRoundTrip(t *testing.T) {
	desc := MapOf(Scalar(KindText), Scalar(KindInt))
	v := Map([]MapEntry{
		{Key: Text("a"), Value: Int(1)},
		{Key: Text("b"), Value: Int(2)},
	})
	got := roundTrip(t, v, desc)
	if len(got.Entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(got.Entries))
	}
	if string(got.Entries[0].Key.Bytes) != "a" || got.Entries[0].Value.Int32 != 1 {
		t.Fatalf("unexpected entry 0: %+v", got.Entries[0])
	}
}

func TestTupleRoundTripWithNull(t *testing.T) {
	desc := TupleOf(Scalar(KindInt), Scalar(KindText))
	v := Tuple([]Value{Int(5), Null()})
	got := roundTrip(t, v, desc)
	if got.Collection[0].Int32 != 5 || !got.Collection[1].IsNull() {
		t.Fatalf("tuple round trip = %+v", got.Collection)
	}
}

func TestUDTRoundTripTrailingMissing(t *testing.T) {
	desc := UDTOf(
		FieldDesc{Name: "id", Type: Scalar(KindInt)},
		FieldDesc{Name: "name", Type: Scalar(KindText)},
		FieldDesc{Name: "nickname", Type: Scalar(KindText)},
	)
	v := UDT([]Field{
		{Name: "id", Value: Int(1)},
		{Name: "name", Value: Text("Ada")},
	})
	payload, err := Encode(nil, v, desc)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(bytes.NewReader(payload), desc)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got.Fields) != 2 {
		t.Fatalf("got %d fields, want 2 (trailing field omitted)", len(got.Fields))
	}
}

func TestFrozenRoundTrip(t *testing.T) {
	inner := ListOf(Scalar(KindInt))
	desc := FrozenOf(inner)
	v := Frozen(List([]Value{Int(1), Int(2), Int(3)}))
	got := roundTrip(t, v, desc)
	if len(got.Collection) != 1 || len(got.Collection[0].Collection) != 3 {
		t.Fatalf("frozen round trip = %+v", got)
	}
}

func TestSchemaMismatchRejected(t *testing.T) {
	_, err := Encode(nil, Int(5), Scalar(KindText))
	if err == nil {
		t.Fatal("expected schema mismatch error")
	}
}

func TestInvalidUTF8Rejected(t *testing.T) {
	v := Value{Kind: KindText, Bytes: []byte{0xff, 0xfe}}
	_, err := Encode(nil, v, Scalar(KindText))
	if err == nil {
		t.Fatal("expected invalid utf-8 error")
	}
}

func TestTombstoneRoundTrip(t *testing.T) {
	v := TombstoneValue(TombstoneRangeStart, 42)
	got := roundTrip(t, v, Scalar(KindTombstone))
	if got.Tombstone != v.Tombstone {
		t.Fatalf("tombstone round trip = %+v, want %+v", got.Tombstone, v.Tombstone)
	}
}
