// Package wal implements the write-ahead log this engine appends every
// put/delete to before acknowledging it, and replays on recovery (spec
// §4.9). Record framing and the background writer loop are adapted
// from the teacher's wal.go/wal_writer.go.
package wal

import (
	"fmt"
	"io"

	"github.com/cqlite-go/cqlite/internal/codec"
	"github.com/cqlite-go/cqlite/internal/errs"
)

// Operation names what a Record does to the keyed value.
type Operation uint8

const (
	OpPut Operation = iota
	OpDelete
)

func (op Operation) String() string {
	if op == OpDelete {
		return "Delete"
	}
	return "Put"
}

// invalidCRC is the sentinel the teacher uses to recognize a torn tail
// record. Encode computes each CRC before the record is written, so
// this writer never writes it; Decode treats it as a torn tail.
const invalidCRC = uint32(0xFFFFFFFF)

// maxRecordSize guards against a corrupt length field causing a
// multi-gigabyte allocation on replay.
const maxRecordSize = 64 << 20

// Record is one WAL entry: enough to redo a single memtable write
// (spec §4.9: length, checksum, table id, operation, key, value,
// timestamp).
type Record struct {
	TableID   uint64
	Operation Operation
	Key       []byte
	Value     []byte // empty/nil for OpDelete
	Timestamp int64
}

// Encode appends r's on-disk framing to dst:
// CRC32C(4) | length(4) | body, where body is
// table id(8) | op(1) | key (i32-prefixed) | value (i32-prefixed) | timestamp(8).
// length counts the body bytes only, and the CRC32C covers the body
// only, not the length field.
func Encode(dst []byte, r Record) []byte {
	var body []byte
	body = codec.PutU64(body, r.TableID)
	body = append(body, byte(r.Operation))
	body = codec.PutBytesI32(body, r.Key)
	body = codec.PutBytesI32(body, r.Value)
	body = codec.PutI64(body, r.Timestamp)

	crc := codec.ChecksumCRC32C(body)
	dst = codec.PutU32(dst, crc)
	dst = codec.PutU32(dst, uint32(len(body)))
	dst = append(dst, body...)
	return dst
}

// Decode reads one Record from r. A storedCRC equal to invalidCRC
// reports io.EOF: this and every following byte is treated as a torn
// tail that recovery stops at, not fails on.
func Decode(r io.Reader) (*Record, error) {
	storedCRC, err := codec.ReadU32(r)
	if err != nil {
		return nil, cleanEOF(err)
	}
	if storedCRC == invalidCRC {
		return nil, io.EOF
	}

	length, err := codec.ReadU32(r)
	if err != nil {
		return nil, cleanEOF(err)
	}
	if length > maxRecordSize {
		return nil, fmt.Errorf("wal: record length %d exceeds %d: %w", length, maxRecordSize, errs.ErrMalformedInput)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, cleanEOF(err)
	}

	if err := codec.VerifyCRC32C(body, storedCRC); err != nil {
		return nil, fmt.Errorf("wal: %w", err)
	}

	pos := 0
	if len(body) < 9 {
		return nil, fmt.Errorf("wal: record body too short: %w", errs.ErrMalformedInput)
	}
	tableID := beUint64(body[pos:])
	pos += 8
	op := Operation(body[pos])
	pos++

	key, _, err := codec.ReadBytesI32(sliceReader(body[pos:]))
	if err != nil {
		return nil, fmt.Errorf("wal: read key: %w", err)
	}
	pos += 4 + len(key)

	value, _, err := codec.ReadBytesI32(sliceReader(body[pos:]))
	if err != nil {
		return nil, fmt.Errorf("wal: read value: %w", err)
	}
	pos += 4 + len(value)

	if pos+8 > len(body) {
		return nil, fmt.Errorf("wal: record missing timestamp: %w", errs.ErrMalformedInput)
	}
	ts := int64(beUint64(body[pos:]))

	return &Record{TableID: tableID, Operation: op, Key: key, Value: value, Timestamp: ts}, nil
}

func cleanEOF(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return io.EOF
	}
	return err
}

func beUint64(b []byte) uint64 {
	var v uint64
	for _, c := range b[:8] {
		v = v<<8 | uint64(c)
	}
	return v
}

type sliceReaderT struct {
	data []byte
	pos  int
}

func sliceReader(b []byte) io.Reader { return &sliceReaderT{data: b} }

func (s *sliceReaderT) Read(p []byte) (int, error) {
	if s.pos >= len(s.data) {
		return 0, io.EOF
	}
	n := copy(p, s.data[s.pos:])
	s.pos += n
	return n, nil
}
