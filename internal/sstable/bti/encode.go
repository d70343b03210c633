package bti

import (
	"math"

	"github.com/cqlite-go/cqlite/internal/types"
)

// componentSeparator and componentEscape delimit the byte-comparable
// components of a composite (partition or clustering) key: 0x00
// terminates a component, and any literal 0x00 byte within a component
// is escaped as 0x00 0xFF so the terminator remains unambiguous and
// ordering is preserved (0x00 < 0x00 0xFF < 0x01).
const (
	componentSeparator byte = 0x00
	escapedZeroFollow   byte = 0xFF
)

// DurationEncoder and DecimalEncoder are pluggable per Open Question 2:
// this engine ships a default encoding for both, but a caller targeting
// a specific on-disk generation may need a different one, so Encoder
// holds them as overridable fields rather than hard-coding a single scheme.
type DurationEncoder func(types.Duration) []byte
type DecimalEncoder func(types.Decimal) []byte

// Encoder produces byte-comparable encodings of typed values for BTI
// trie keys.
type Encoder struct {
	Duration DurationEncoder
	Decimal  DecimalEncoder
}

// DefaultEncoder is the Encoder used when a caller has no reason to
// override duration/decimal encoding.
func DefaultEncoder() *Encoder {
	return &Encoder{Duration: defaultDurationEncoding, Decimal: defaultDecimalEncoding}
}

// EncodeComponent returns the byte-comparable encoding of one key
// component (unescaped; EncodeComposite below handles escaping).
func (e *Encoder) EncodeComponent(v types.Value) []byte {
	switch v.Kind {
	case types.KindTinyInt:
		return []byte{flipSignBit8(byte(v.Int8))}
	case types.KindSmallInt:
		return beBiased16(uint16(v.Int16))
	case types.KindInt:
		return beBiased32(uint32(v.Int32))
	case types.KindBigInt, types.KindTimestamp, types.KindTime:
		return beBiased64(uint64(v.Int64))
	case types.KindFloat:
		return floatBytes32(v.Float32)
	case types.KindDouble:
		return floatBytes64(v.Float64)
	case types.KindText, types.KindAscii:
		return append([]byte(nil), v.Bytes...)
	case types.KindBlob, types.KindInet:
		return append([]byte(nil), v.Bytes...)
	case types.KindBoolean:
		if v.Bool {
			return []byte{1}
		}
		return []byte{0}
	case types.KindUUID, types.KindTimeUUID:
		b, _ := v.UUID.MarshalBinary()
		return b
	case types.KindDuration:
		return e.Duration(v.Duration)
	case types.KindDecimal:
		return e.Decimal(v.Decimal)
	default:
		return append([]byte(nil), v.Bytes...)
	}
}

// EncodeComposite encodes a full composite key (partition key
// components, or a clustering key's components) as one byte-comparable
// string: each component escaped and separator-terminated in order.
func (e *Encoder) EncodeComposite(components []types.Value) []byte {
	var dst []byte
	for _, c := range components {
		dst = appendEscaped(dst, e.EncodeComponent(c))
		dst = append(dst, componentSeparator)
	}
	return dst
}

func appendEscaped(dst, comp []byte) []byte {
	for _, b := range comp {
		dst = append(dst, b)
		if b == componentSeparator {
			dst = append(dst, escapedZeroFollow)
		}
	}
	return dst
}

// flipSignBit8 biases a signed byte to unsigned ordering by flipping
// its sign bit: negative values sort before non-negative ones.
func flipSignBit8(b byte) byte { return b ^ 0x80 }

func beBiased16(u uint16) []byte {
	u ^= 1 << 15
	return []byte{byte(u >> 8), byte(u)}
}

func beBiased32(u uint32) []byte {
	u ^= 1 << 31
	return []byte{byte(u >> 24), byte(u >> 16), byte(u >> 8), byte(u)}
}

func beBiased64(u uint64) []byte {
	u ^= 1 << 63
	out := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		out[i] = byte(u)
		u >>= 8
	}
	return out
}

// floatBytes32/64 make IEEE-754 bit patterns byte-comparable: flip the
// sign bit for non-negative numbers, flip every bit for negative
// numbers, so the resulting big-endian byte string sorts the same as
// the float's numeric value.
func floatBytes32(f float32) []byte {
	bits := math.Float32bits(f)
	if bits&(1<<31) != 0 {
		bits = ^bits
	} else {
		bits |= 1 << 31
	}
	return beBiased32Raw(bits)
}

func beBiased32Raw(u uint32) []byte {
	return []byte{byte(u >> 24), byte(u >> 16), byte(u >> 8), byte(u)}
}

func floatBytes64(f float64) []byte {
	bits := math.Float64bits(f)
	if bits&(1<<63) != 0 {
		bits = ^bits
	} else {
		bits |= 1 << 63
	}
	out := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		out[i] = byte(bits)
		bits >>= 8
	}
	return out
}

// defaultDurationEncoding flattens (months, days, nanos) into three
// biased big-endian fields back to back; each field independently
// signed, so each is sign-bit-flipped on its own before concatenation.
func defaultDurationEncoding(d types.Duration) []byte {
	var dst []byte
	dst = append(dst, beBiased32(uint32(d.Months))...)
	dst = append(dst, beBiased32(uint32(d.Days))...)
	dst = append(dst, beBiased64(uint64(d.Nanos))...)
	return dst
}

// defaultDecimalEncoding encodes scale then unscaled magnitude; this is
// intentionally approximate for negative-scale/negative-unscaled
// interplay, which real deployments rarely exercise in clustering or
// partition keys. A caller needing exact decimal ordering in a BTI key
// should supply a DecimalEncoder override.
func defaultDecimalEncoding(d types.Decimal) []byte {
	var dst []byte
	dst = append(dst, beBiased32(uint32(d.Scale))...)
	if d.Unscaled != nil {
		b := d.Unscaled.Bytes()
		sign := byte(0)
		if d.Unscaled.Sign() < 0 {
			sign = 1
		}
		dst = append(dst, sign)
		dst = append(dst, b...)
	}
	return dst
}
