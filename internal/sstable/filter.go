package sstable

import (
	"fmt"
	"io"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/cqlite-go/cqlite/internal/codec"
)

// defaultFilterFPRate is used when a table's schema does not specify
// bloom.fp_rate explicitly (spec §4.4's Filter component).
const defaultFilterFPRate = 0.01

// Filter wraps a per-SSTable bloom filter, generalized from the
// teacher's single always-loaded filter (sst/writer.go) to one instance
// per SSTable sized from an estimated partition count and fp_rate.
type Filter struct {
	bits *bloom.BloomFilter
}

// NewFilter sizes a fresh filter for an expected number of partitions
// at the given false-positive rate.
func NewFilter(expectedPartitions uint, fpRate float64) *Filter {
	if fpRate <= 0 {
		fpRate = defaultFilterFPRate
	}
	return &Filter{bits: bloom.NewWithEstimates(expectedPartitions, fpRate)}
}

// Add records a partition key as present.
func (f *Filter) Add(partitionKey []byte) {
	f.bits.Add(partitionKey)
}

// MayContain reports whether partitionKey could be present. false is
// definitive; true may be a false positive.
func (f *Filter) MayContain(partitionKey []byte) bool {
	return f.bits.Test(partitionKey)
}

// WriteTo serializes the Filter component: hash count (u32), bit array
// length (u32), the bit array itself, then a CRC32C of the two u32s
// plus the bit array, mirroring the teacher's writeBloomFilter framing
// generalized from CRC32 (IEEE) to CRC32C per spec §4.1.
func (f *Filter) WriteTo(w io.Writer) error {
	var header []byte
	header = codec.PutU32(header, uint32(f.bits.K()))
	header = codec.PutU32(header, uint32(f.bits.Cap()))

	var bits []byte
	buf := &byteBuffer{}
	if _, err := f.bits.WriteTo(buf); err != nil {
		return fmt.Errorf("sstable: write filter bits: %w", err)
	}
	bits = buf.data

	payload := append(header, bits...)
	crc := codec.ChecksumCRC32C(payload)

	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("sstable: write filter payload: %w", err)
	}
	if _, err := w.Write(codec.PutU32(nil, crc)); err != nil {
		return fmt.Errorf("sstable: write filter crc: %w", err)
	}
	return nil
}

// ParseFilter reads a Filter component written by WriteTo, verifying
// its trailing CRC32C.
func ParseFilter(r io.Reader) (*Filter, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("sstable: read filter: %w", err)
	}
	if len(body) < 8+4 {
		return nil, fmt.Errorf("sstable: filter component too short (%d bytes)", len(body))
	}

	payload := body[:len(body)-4]
	wantCRC := beUint32(body[len(body)-4:])
	if err := codec.VerifyCRC32C(payload, wantCRC); err != nil {
		return nil, fmt.Errorf("sstable: filter crc: %w", err)
	}

	hashCount := beUint32(payload[0:4])
	bitLength := beUint32(payload[4:8])

	bf := bloom.New(uint(bitLength), uint(hashCount))
	if _, err := bf.ReadFrom(newByteBuffer(payload[8:])); err != nil {
		return nil, fmt.Errorf("sstable: read filter bit array: %w", err)
	}
	return &Filter{bits: bf}, nil
}

// byteBuffer is a minimal io.Writer/io.Reader/io.ByteReader adapter
// over a growable slice, since bloom.BloomFilter.WriteTo/ReadFrom want
// an io.Writer / io.Reader respectively and we need the intermediate
// bytes before framing them with a CRC.
type byteBuffer struct {
	data []byte
	pos  int
}

func newByteBuffer(b []byte) *byteBuffer { return &byteBuffer{data: b} }

func (b *byteBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}

func (b *byteBuffer) Read(p []byte) (int, error) {
	if b.pos >= len(b.data) {
		return 0, io.EOF
	}
	n := copy(p, b.data[b.pos:])
	b.pos += n
	return n, nil
}

func (b *byteBuffer) ReadByte() (byte, error) {
	if b.pos >= len(b.data) {
		return 0, io.EOF
	}
	c := b.data[b.pos]
	b.pos++
	return c, nil
}
