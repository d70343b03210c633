package codec

import (
	"fmt"
	"hash"
	"hash/crc32"

	"github.com/cqlite-go/cqlite/internal/errs"
)

// castagnoliTable is the CRC32C polynomial table. Every checksum in this
// engine (chunk CRCs, Digest, WAL record CRCs) uses Castagnoli, not the
// IEEE polynomial the teacher's WAL framing used.
var castagnoliTable = crc32.MakeTable(crc32.Castagnoli)

// NewCRC32C returns a fresh Castagnoli CRC32 hash, for streaming use with
// io.MultiWriter the way the teacher frames its WAL records.
func NewCRC32C() hash.Hash32 {
	return crc32.New(castagnoliTable)
}

// ChecksumCRC32C computes the CRC32C of b in one call.
func ChecksumCRC32C(b []byte) uint32 {
	return crc32.Checksum(b, castagnoliTable)
}

// VerifyCRC32C fails with errs.ErrChecksumMismatch when b's checksum does
// not equal want.
func VerifyCRC32C(b []byte, want uint32) error {
	if got := ChecksumCRC32C(b); got != want {
		return fmt.Errorf("codec: crc32c mismatch: got %#x want %#x: %w", got, want, errs.ErrChecksumMismatch)
	}
	return nil
}
