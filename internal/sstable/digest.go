package sstable

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cqlite-go/cqlite/internal/codec"
)

// ComputeDigest returns the decimal-ASCII CRC32C (Castagnoli) of the
// Data file contents, written as a single decimal integer rather than a
// binary checksum.
func ComputeDigest(r io.Reader) (string, error) {
	h := codec.NewCRC32C()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("sstable: compute digest: %w", err)
	}
	return strconv.FormatUint(uint64(h.Sum32()), 10), nil
}

// ParseDigest reads a Digest.crc32 file's single decimal value.
func ParseDigest(r io.Reader) (uint32, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("sstable: read digest: %w", err)
	}
	v, err := strconv.ParseUint(strings.TrimSpace(string(body)), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("sstable: parse digest %q: %w", body, err)
	}
	return uint32(v), nil
}

// WriteDigest writes digest (as produced by ComputeDigest) to w.
func WriteDigest(w io.Writer, digest string) error {
	_, err := fmt.Fprint(w, digest)
	return err
}

// VerifyDigest recomputes the Data file's CRC32 and compares it against
// the recorded digest string.
func VerifyDigest(data io.Reader, digest string) error {
	got, err := ComputeDigest(data)
	if err != nil {
		return err
	}
	if got != strings.TrimSpace(digest) {
		return fmt.Errorf("sstable: digest mismatch: data file crc32 %s, recorded %s", got, digest)
	}
	return nil
}
