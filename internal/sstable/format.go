// Package sstable implements the component parsers, reader, and writer
// for a single SSTable directory: the file set produced by a flush or
// compaction and read back for point/range lookups (spec §4.4–§4.7).
package sstable

import (
	"fmt"

	"github.com/cqlite-go/cqlite/internal/errs"
)

// Format distinguishes the two SSTable layouts this engine reads: BIG
// (Summary + Index) and BTI (Partitions/Rows tries).
type Format int

const (
	FormatBIG Format = iota
	FormatBTI
)

func (f Format) String() string {
	if f == FormatBTI {
		return "BTI"
	}
	return "BIG"
}

// magicTable maps a Data file's 32-bit magic to the (Format, version
// label) it identifies. BIG covers the long-running "big" SSTable
// generations (oa through the most recent); BTI is the trie-indexed
// variant introduced alongside it.
var magicTable = map[uint32]struct {
	Format  Format
	Version string
}{
	0x6F61_0000: {FormatBIG, "oa"},
	0x6E62_0000: {FormatBIG, "nb"},
	0x6D61_0000: {FormatBIG, "ma"},
	0x6D62_0000: {FormatBIG, "mb"},
	0x6D63_0000: {FormatBIG, "mc"},
	0x6D64_0000: {FormatBIG, "md"},
	0x6D65_0000: {FormatBIG, "me"},
	0x6E61_0000: {FormatBIG, "na"},
	0x6461_0000: {FormatBTI, "da"},
}

// IdentifyMagic resolves a Data file's leading 32-bit magic to its
// Format and version label. Unknown magics fail with
// errs.ErrUnknownFormat (spec §4.4).
func IdentifyMagic(magic uint32) (Format, string, error) {
	entry, ok := magicTable[magic]
	if !ok {
		return 0, "", fmt.Errorf("sstable: magic %#08x not recognized: %w", magic, errs.ErrUnknownFormat)
	}
	return entry.Format, entry.Version, nil
}

// MagicForVersion is the reverse of IdentifyMagic's BIG-format entries:
// the 32-bit magic Writer stamps at the start of the logical Data
// stream for a given version label, so Reader.Open can identify its own
// output the same way it identifies an externally produced table.
func MagicForVersion(version string) (uint32, error) {
	for magic, entry := range magicTable {
		if entry.Version == version && entry.Format == FormatBIG {
			return magic, nil
		}
	}
	return 0, fmt.Errorf("sstable: no known magic for version %q: %w", version, errs.ErrUnknownFormat)
}

// Component names one file in an SSTable's directory.
type Component int

const (
	ComponentTOC Component = iota
	ComponentStatistics
	ComponentCompressionInfo
	ComponentFilter
	ComponentSummary
	ComponentIndex
	ComponentData
	ComponentDigest
	ComponentPartitions // BTI only
	ComponentRows       // BTI only
)

func (c Component) String() string {
	switch c {
	case ComponentTOC:
		return "TOC"
	case ComponentStatistics:
		return "Statistics"
	case ComponentCompressionInfo:
		return "CompressionInfo"
	case ComponentFilter:
		return "Filter"
	case ComponentSummary:
		return "Summary"
	case ComponentIndex:
		return "Index"
	case ComponentData:
		return "Data"
	case ComponentDigest:
		return "Digest"
	case ComponentPartitions:
		return "Partitions"
	case ComponentRows:
		return "Rows"
	default:
		return "Unknown"
	}
}

// RequiredComponents lists the components whose absence is fatal (spec
// §4.4's MissingComponent rule), per format.
func RequiredComponents(f Format) []Component {
	switch f {
	case FormatBTI:
		return []Component{ComponentData, ComponentPartitions, ComponentStatistics}
	default:
		return []Component{ComponentData, ComponentIndex, ComponentSummary, ComponentStatistics}
	}
}

// FileName builds the base-name-sharing component file name:
// "<version>-<generation>-<size>-<component>".
func FileName(version string, generation int64, sizeTier string, c Component) string {
	return fmt.Sprintf("%s-%d-%s-%s", version, generation, sizeTier, componentFileTag(c))
}

func componentFileTag(c Component) string {
	switch c {
	case ComponentTOC:
		return "TOC.txt"
	case ComponentStatistics:
		return "Statistics.db"
	case ComponentCompressionInfo:
		return "CompressionInfo.db"
	case ComponentFilter:
		return "Filter.db"
	case ComponentSummary:
		return "Summary.db"
	case ComponentIndex:
		return "Index.db"
	case ComponentData:
		return "Data.db"
	case ComponentDigest:
		return "Digest.crc32"
	case ComponentPartitions:
		return "Partitions.db"
	case ComponentRows:
		return "Rows.db"
	default:
		return "Unknown.db"
	}
}
