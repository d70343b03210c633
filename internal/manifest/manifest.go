// Package manifest tracks which SSTable generations exist at each
// compaction level and persists that view so a restart can reconstruct
// the table set without re-scanning the data directory (spec §4.10).
// It shares the teacher's append-only-log discipline
// (segmentmanager.DiskSegmentManager, wal.go) applied to a different
// record shape: manifest edits instead of put/delete operations, kept
// in a single MANIFEST.log file with no segment rotation.
package manifest

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/cqlite-go/cqlite/internal/codec"
)

const manifestFileName = "MANIFEST.log"

// EditKind names what one manifest Edit does to the table set.
type EditKind uint8

const (
	EditAddTable EditKind = iota
	EditRemoveTable
	EditSetLevel
)

// TableRef identifies one SSTable generation at a level.
type TableRef struct {
	Generation int64
	Level      int
	Version    string
	SizeTier   string
}

// Edit is one manifest log record: an atomic change to the table set,
// appended and fsynced before the corresponding filesystem change
// (new SSTable files, or a compaction's input removal) is considered
// durable — the same order-of-operations discipline as the teacher's
// WAL-before-apply pattern, applied to table bookkeeping instead of
// row data.
type Edit struct {
	Kind  EditKind
	Table TableRef
}

// Manifest is the in-memory reconstruction of every Edit applied so
// far: which table generations are live, and at which level.
type Manifest struct {
	dir    string
	tables map[int64]TableRef
	f      *os.File
}

// Open replays dir/MANIFEST.log (if present) and returns a Manifest
// ready to accept further edits.
func Open(dir string) (*Manifest, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("manifest: create directory %s: %w", dir, err)
	}

	m := &Manifest{dir: dir, tables: map[int64]TableRef{}}

	path := filepath.Join(dir, manifestFileName)
	if existing, err := os.Open(path); err == nil {
		edits, rerr := replay(existing)
		existing.Close()
		if rerr != nil {
			return nil, rerr
		}
		for _, e := range edits {
			m.apply(e)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("manifest: open %s: %w", path, err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("manifest: open for append %s: %w", path, err)
	}
	m.f = f

	return m, nil
}

func (m *Manifest) apply(e Edit) {
	switch e.Kind {
	case EditAddTable, EditSetLevel:
		m.tables[e.Table.Generation] = e.Table
	case EditRemoveTable:
		delete(m.tables, e.Table.Generation)
	}
}

// Append durably records e and applies it to the in-memory table set.
// The write is fsynced before Append returns, so a crash never loses
// an Edit the caller believes succeeded.
func (m *Manifest) Append(e Edit) error {
	buf := encodeEdit(nil, e)
	if _, err := m.f.Write(buf); err != nil {
		return fmt.Errorf("manifest: write edit: %w", err)
	}
	if err := m.f.Sync(); err != nil {
		return fmt.Errorf("manifest: sync: %w", err)
	}
	m.apply(e)
	return nil
}

// Tables returns every live table, ordered by level then generation —
// the order compaction and the read path both want: lower levels (more
// recently flushed) checked first.
func (m *Manifest) Tables() []TableRef {
	out := make([]TableRef, 0, len(m.tables))
	for _, t := range m.tables {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Level != out[j].Level {
			return out[i].Level < out[j].Level
		}
		return out[i].Generation < out[j].Generation
	})
	return out
}

// TablesAtLevel filters Tables to one level.
func (m *Manifest) TablesAtLevel(level int) []TableRef {
	var out []TableRef
	for _, t := range m.Tables() {
		if t.Level == level {
			out = append(out, t)
		}
	}
	return out
}

// Close closes the underlying manifest file. It does not remove it:
// the manifest log is meant to persist across restarts.
func (m *Manifest) Close() error { return m.f.Close() }

func encodeEdit(dst []byte, e Edit) []byte {
	var body []byte
	body = append(body, byte(e.Kind))
	body = codec.PutI64(body, e.Table.Generation)
	body = codec.PutI32(body, int32(e.Table.Level))
	body = codec.PutBytesVInt(body, []byte(e.Table.Version))
	body = codec.PutBytesVInt(body, []byte(e.Table.SizeTier))

	crc := codec.ChecksumCRC32C(body)
	dst = codec.PutU32(dst, crc)
	dst = codec.PutU32(dst, uint32(len(body)))
	dst = append(dst, body...)
	return dst
}

func decodeEdit(body []byte) (Edit, error) {
	if len(body) < 1+8+4 {
		return Edit{}, fmt.Errorf("manifest: edit body too short")
	}
	pos := 0
	kind := EditKind(body[pos])
	pos++
	gen := int64(beUint64(body[pos:]))
	pos += 8
	level := int32(beUint32(body[pos:]))
	pos += 4

	version, n, err := readVIntString(body[pos:])
	if err != nil {
		return Edit{}, err
	}
	pos += n
	sizeTier, _, err := readVIntString(body[pos:])
	if err != nil {
		return Edit{}, err
	}

	return Edit{Kind: kind, Table: TableRef{Generation: gen, Level: int(level), Version: version, SizeTier: sizeTier}}, nil
}

func readVIntString(b []byte) (string, int, error) {
	v, n, err := codec.DecodeVInt(b)
	if err != nil {
		return "", 0, err
	}
	if v < 0 {
		return "", n, fmt.Errorf("manifest: negative string length")
	}
	start := n
	end := start + int(v)
	if end > len(b) {
		return "", 0, fmt.Errorf("manifest: truncated string field")
	}
	return string(b[start:end]), end, nil
}

func beUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func beUint64(b []byte) uint64 {
	var v uint64
	for _, c := range b[:8] {
		v = v<<8 | uint64(c)
	}
	return v
}

func replay(f *os.File) ([]Edit, error) {
	r := bufio.NewReader(f)
	var edits []Edit
	for {
		crc, err := codec.ReadU32(r)
		if err != nil {
			break
		}
		length, err := codec.ReadU32(r)
		if err != nil {
			break
		}
		body := make([]byte, length)
		if _, err := readFull(r, body); err != nil {
			break // torn tail record; stop replay here, not an error
		}
		if err := codec.VerifyCRC32C(body, crc); err != nil {
			break
		}
		e, err := decodeEdit(body)
		if err != nil {
			break
		}
		edits = append(edits, e)
	}
	return edits, nil
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
