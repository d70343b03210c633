package types

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/cqlite-go/cqlite/internal/codec"
	"github.com/cqlite-go/cqlite/internal/errs"
)

// LengthConvention picks which length-prefix format a call site uses.
// Spec §4.1: "each call site specifies which; implementations must not
// guess" — so every Encode/Decode call here takes one explicitly.
type LengthConvention int

const (
	VIntLengths LengthConvention = iota
	I32Lengths
)

func (lc LengthConvention) readBytes(r io.Reader) ([]byte, bool, error) {
	if lc == VIntLengths {
		return codec.ReadBytesVInt(r)
	}
	return codec.ReadBytesI32(r)
}

func (lc LengthConvention) putBytes(dst []byte, b []byte) []byte {
	if lc == VIntLengths {
		return codec.PutBytesVInt(dst, b)
	}
	return codec.PutBytesI32(dst, b)
}

// EncodeLengthPrefixed serializes v per desc and wraps it with a length
// prefix in lc's convention — the form a tuple component, collection
// element, or map entry takes on the wire. A Null value encodes as the
// convention's null marker (VInt -1 or i32 -1) with no payload.
func EncodeLengthPrefixed(dst []byte, v Value, desc TypeDesc, lc LengthConvention) ([]byte, error) {
	if v.IsNull() {
		if lc == VIntLengths {
			return codec.EncodeVInt(dst, -1), nil
		}
		return codec.PutI32(dst, -1), nil
	}
	payload, err := Encode(nil, v, desc)
	if err != nil {
		return nil, err
	}
	return lc.putBytes(dst, payload), nil
}

// DecodeLengthPrefixed reads one length-prefixed value in lc's
// convention, returning Null() for the convention's null marker.
func DecodeLengthPrefixed(r io.Reader, desc TypeDesc, lc LengthConvention) (Value, error) {
	payload, isNull, err := lc.readBytes(r)
	if err != nil {
		return Value{}, err
	}
	if isNull {
		return Null(), nil
	}
	return Decode(bytes.NewReader(payload), desc)
}

// Encode serializes v's raw payload per desc, with no enclosing length
// prefix — the caller applies one (EncodeLengthPrefixed) wherever the
// surrounding format needs it (tuple/UDT fields, collection/map
// elements). Fixed-width kinds ignore lengths entirely.
func Encode(dst []byte, v Value, desc TypeDesc) ([]byte, error) {
	if v.Kind != desc.Kind {
		return nil, fmt.Errorf("types: value kind %s does not match schema kind %s: %w", v.Kind, desc.Kind, errs.ErrSchemaMismatch)
	}

	switch v.Kind {
	case KindBoolean:
		if v.Bool {
			return append(dst, 1), nil
		}
		return append(dst, 0), nil
	case KindTinyInt:
		return append(dst, byte(v.Int8)), nil
	case KindSmallInt:
		return codec.PutU16(dst, uint16(v.Int16)), nil
	case KindInt:
		return codec.PutI32(dst, v.Int32), nil
	case KindBigInt:
		return codec.PutI64(dst, v.Int64), nil
	case KindFloat:
		return codec.PutF32(dst, v.Float32), nil
	case KindDouble:
		return codec.PutF64(dst, v.Float64), nil
	case KindDate:
		return codec.PutU32(dst, uint32(v.Int64)), nil
	case KindTime, KindTimestamp:
		return codec.PutI64(dst, v.Int64), nil
	case KindUUID, KindTimeUUID:
		b, _ := v.UUID.MarshalBinary()
		return append(dst, b...), nil
	case KindVarint:
		return append(dst, EncodeVarint(v.Varint)...), nil
	case KindDecimal:
		dst = codec.PutI32(dst, v.Decimal.Scale)
		return append(dst, EncodeVarint(v.Decimal.Unscaled)...), nil
	case KindText, KindAscii:
		if err := codec.ValidateUTF8(v.Bytes); err != nil {
			return nil, err
		}
		return append(dst, v.Bytes...), nil
	case KindBlob, KindInet:
		return append(dst, v.Bytes...), nil
	case KindDuration:
		dst = codec.EncodeVInt(dst, int64(v.Duration.Months))
		dst = codec.EncodeVInt(dst, int64(v.Duration.Days))
		dst = codec.EncodeVInt(dst, v.Duration.Nanos)
		return dst, nil
	case KindList, KindSet:
		dst = codec.EncodeVInt(dst, int64(len(v.Collection)))
		for _, elem := range v.Collection {
			var err error
			dst, err = EncodeLengthPrefixed(dst, elem, *desc.Elem, VIntLengths)
			if err != nil {
				return nil, err
			}
		}
		return dst, nil
	case KindMap:
		dst = codec.EncodeVInt(dst, int64(len(v.Entries)))
		for _, e := range v.Entries {
			var err error
			dst, err = EncodeLengthPrefixed(dst, e.Key, *desc.MapKey, VIntLengths)
			if err != nil {
				return nil, err
			}
			dst, err = EncodeLengthPrefixed(dst, e.Value, *desc.MapValue, VIntLengths)
			if err != nil {
				return nil, err
			}
		}
		return dst, nil
	case KindTuple:
		if len(v.Collection) != len(desc.Components) {
			return nil, fmt.Errorf("types: tuple has %d components, schema has %d: %w", len(v.Collection), len(desc.Components), errs.ErrSchemaMismatch)
		}
		for i, comp := range v.Collection {
			var err error
			dst, err = EncodeLengthPrefixed(dst, comp, desc.Components[i], VIntLengths)
			if err != nil {
				return nil, err
			}
		}
		return dst, nil
	case KindUDT:
		for i, fd := range desc.Fields {
			if i >= len(v.Fields) {
				break // trailing missing fields are allowed (§4.2)
			}
			var err error
			dst, err = EncodeLengthPrefixed(dst, v.Fields[i].Value, fd.Type, VIntLengths)
			if err != nil {
				return nil, err
			}
		}
		return dst, nil
	case KindFrozen:
		return EncodeLengthPrefixed(dst, v.Collection[0], *desc.Elem, VIntLengths)
	case KindTombstone:
		dst = append(dst, byte(v.Tombstone.Type))
		return codec.PutI64(dst, v.Tombstone.Timestamp), nil
	default:
		return nil, fmt.Errorf("types: unsupported kind %s: %w", v.Kind, errs.ErrSchemaMismatch)
	}
}

// Decode parses one raw (unprefixed) value payload from r per desc.
func Decode(r io.Reader, desc TypeDesc) (Value, error) {
	switch desc.Kind {
	case KindBoolean:
		b, err := codec.ReadU8(r)
		return BoolValue(b != 0), err
	case KindTinyInt:
		b, err := codec.ReadU8(r)
		return TinyInt(int8(b)), err
	case KindSmallInt:
		u, err := codec.ReadU16(r)
		return SmallInt(int16(u)), err
	case KindInt:
		v, err := codec.ReadI32(r)
		return Int(v), err
	case KindBigInt:
		v, err := codec.ReadI64(r)
		return BigInt(v), err
	case KindFloat:
		v, err := codec.ReadF32(r)
		return Float(v), err
	case KindDouble:
		v, err := codec.ReadF64(r)
		return Double(v), err
	case KindDate:
		u, err := codec.ReadU32(r)
		return Date(u), err
	case KindTime:
		v, err := codec.ReadI64(r)
		return Time(v), err
	case KindTimestamp:
		v, err := codec.ReadI64(r)
		return Timestamp(v), err
	case KindUUID, KindTimeUUID:
		buf := make([]byte, 16)
		if _, err := io.ReadFull(r, buf); err != nil {
			return Value{}, fmt.Errorf("types: read uuid: %w", err)
		}
		u, err := uuidFromBytes(buf)
		if err != nil {
			return Value{}, err
		}
		if desc.Kind == KindUUID {
			return UUIDValue(u), nil
		}
		return TimeUUIDValue(u), nil
	case KindVarint:
		rest, err := io.ReadAll(r)
		if err != nil {
			return Value{}, fmt.Errorf("types: read varint: %w", err)
		}
		return VarintValue(DecodeVarint(rest)), nil
	case KindDecimal:
		scale, err := codec.ReadI32(r)
		if err != nil {
			return Value{}, fmt.Errorf("types: read decimal scale: %w", err)
		}
		rest, err := io.ReadAll(r)
		if err != nil {
			return Value{}, fmt.Errorf("types: read decimal unscaled: %w", err)
		}
		return DecimalValue(DecodeVarint(rest), scale), nil
	case KindText, KindAscii, KindBlob, KindInet:
		rest, err := io.ReadAll(r)
		if err != nil {
			return Value{}, fmt.Errorf("types: read %s: %w", desc.Kind, err)
		}
		if desc.Kind == KindText || desc.Kind == KindAscii {
			if err := codec.ValidateUTF8(rest); err != nil {
				return Value{}, err
			}
		}
		return Value{Kind: desc.Kind, Bytes: rest}, nil
	case KindDuration:
		months, err := codec.ReadVInt(r)
		if err != nil {
			return Value{}, err
		}
		days, err := codec.ReadVInt(r)
		if err != nil {
			return Value{}, err
		}
		nanos, err := codec.ReadVInt(r)
		if err != nil {
			return Value{}, err
		}
		return DurationValue(int32(months), int32(days), nanos), nil
	case KindList, KindSet:
		n, err := codec.ReadVInt(r)
		if err != nil {
			return Value{}, err
		}
		elems := make([]Value, 0, n)
		for i := int64(0); i < n; i++ {
			e, err := DecodeLengthPrefixed(r, *desc.Elem, VIntLengths)
			if err != nil {
				return Value{}, err
			}
			elems = append(elems, e)
		}
		if desc.Kind == KindList {
			return List(elems), nil
		}
		return Set(elems), nil
	case KindMap:
		n, err := codec.ReadVInt(r)
		if err != nil {
			return Value{}, err
		}
		entries := make([]MapEntry, 0, n)
		for i := int64(0); i < n; i++ {
			k, err := DecodeLengthPrefixed(r, *desc.MapKey, VIntLengths)
			if err != nil {
				return Value{}, err
			}
			v, err := DecodeLengthPrefixed(r, *desc.MapValue, VIntLengths)
			if err != nil {
				return Value{}, err
			}
			entries = append(entries, MapEntry{Key: k, Value: v})
		}
		return Map(entries), nil
	case KindTuple:
		comps := make([]Value, len(desc.Components))
		for i, cd := range desc.Components {
			v, err := DecodeLengthPrefixed(r, cd, VIntLengths)
			if err != nil {
				return Value{}, err
			}
			comps[i] = v
		}
		return Tuple(comps), nil
	case KindUDT:
		fields := make([]Field, 0, len(desc.Fields))
		for _, fd := range desc.Fields {
			v, err := DecodeLengthPrefixed(r, fd.Type, VIntLengths)
			if errors.Is(err, io.EOF) {
				break // trailing missing fields are null (§4.2)
			}
			if err != nil {
				return Value{}, err
			}
			fields = append(fields, Field{Name: fd.Name, Value: v})
		}
		return UDT(fields), nil
	case KindFrozen:
		inner, err := DecodeLengthPrefixed(r, *desc.Elem, VIntLengths)
		if err != nil {
			return Value{}, err
		}
		return Frozen(inner), nil
	case KindTombstone:
		tt, err := codec.ReadU8(r)
		if err != nil {
			return Value{}, err
		}
		ts, err := codec.ReadI64(r)
		if err != nil {
			return Value{}, err
		}
		return TombstoneValue(TombstoneType(tt), ts), nil
	default:
		return Value{}, fmt.Errorf("types: unsupported kind %s: %w", desc.Kind, errs.ErrSchemaMismatch)
	}
}
