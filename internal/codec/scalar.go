package codec

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"unicode/utf8"

	"github.com/cqlite-go/cqlite/internal/errs"
)

// All multi-byte scalars on the wire are big-endian. These helpers never
// guess a length-prefix convention; each call site picks ReadBytesVInt or
// ReadBytesI32 deliberately, per the file region it is parsing.

func ReadU8(r io.Reader) (uint8, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, fmt.Errorf("codec: read u8: %w", err)
	}
	return b[0], nil
}

func ReadU16(r io.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, fmt.Errorf("codec: read u16: %w", err)
	}
	return binary.BigEndian.Uint16(b[:]), nil
}

func ReadU32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, fmt.Errorf("codec: read u32: %w", err)
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func ReadU64(r io.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, fmt.Errorf("codec: read u64: %w", err)
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

func ReadI32(r io.Reader) (int32, error) {
	u, err := ReadU32(r)
	return int32(u), err
}

func ReadI64(r io.Reader) (int64, error) {
	u, err := ReadU64(r)
	return int64(u), err
}

func ReadF32(r io.Reader) (float32, error) {
	u, err := ReadU32(r)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(u), nil
}

func ReadF64(r io.Reader) (float64, error) {
	u, err := ReadU64(r)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(u), nil
}

func PutU16(dst []byte, v uint16) []byte {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	return append(dst, b[:]...)
}

func PutU32(dst []byte, v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return append(dst, b[:]...)
}

func PutU64(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}

func PutI32(dst []byte, v int32) []byte { return PutU32(dst, uint32(v)) }
func PutI64(dst []byte, v int64) []byte { return PutU64(dst, uint64(v)) }

func PutF32(dst []byte, v float32) []byte { return PutU32(dst, math.Float32bits(v)) }
func PutF64(dst []byte, v float64) []byte { return PutU64(dst, math.Float64bits(v)) }

// ReadBytesVInt reads a VInt-prefixed byte slice: modern-file convention.
// A negative VInt length is the null marker used by tuple/UDT fields; it
// is reported to the caller as (nil, true, nil).
func ReadBytesVInt(r io.Reader) (data []byte, isNull bool, err error) {
	n, err := ReadVInt(r)
	if err != nil {
		return nil, false, fmt.Errorf("codec: read vint length: %w", err)
	}
	if n < 0 {
		return nil, true, nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, false, fmt.Errorf("codec: read %d byte payload: %w", n, err)
	}
	return buf, false, nil
}

// ReadBytesI32 reads an i32-prefixed byte slice: legacy-position
// convention. A length of -1 is the null marker.
func ReadBytesI32(r io.Reader) (data []byte, isNull bool, err error) {
	n, err := ReadI32(r)
	if err != nil {
		return nil, false, fmt.Errorf("codec: read i32 length: %w", err)
	}
	if n < 0 {
		return nil, true, nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, false, fmt.Errorf("codec: read %d byte payload: %w", n, err)
	}
	return buf, false, nil
}

// PutBytesVInt appends data length-prefixed with a VInt.
func PutBytesVInt(dst []byte, data []byte) []byte {
	dst = EncodeVInt(dst, int64(len(data)))
	return append(dst, data...)
}

// PutBytesI32 appends data length-prefixed with a big-endian i32.
func PutBytesI32(dst []byte, data []byte) []byte {
	dst = PutI32(dst, int32(len(data)))
	return append(dst, data...)
}

// ValidateUTF8 fails with errs.ErrInvalidUTF8 when b is not valid UTF-8.
// Per spec invariant 5, the engine refuses rather than silently corrupts.
func ValidateUTF8(b []byte) error {
	if !utf8.Valid(b) {
		return fmt.Errorf("codec: %d byte value is not valid utf-8: %w", len(b), errs.ErrInvalidUTF8)
	}
	return nil
}
