package sstable

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cqlite-go/cqlite/internal/errs"
)

// componentTextNames maps the text token the TOC lists to a Component.
var componentTextNames = map[string]Component{
	"TOC.txt":            ComponentTOC,
	"Statistics.db":      ComponentStatistics,
	"CompressionInfo.db": ComponentCompressionInfo,
	"Filter.db":          ComponentFilter,
	"Summary.db":         ComponentSummary,
	"Index.db":           ComponentIndex,
	"Data.db":            ComponentData,
	"Digest.crc32":       ComponentDigest,
	"Partitions.db":      ComponentPartitions,
	"Rows.db":            ComponentRows,
}

// ParseTOC reads a TOC file: one component token per line.
func ParseTOC(r io.Reader) ([]Component, error) {
	var components []Component
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		c, ok := componentTextNames[line]
		if !ok {
			continue // forward-compatible: unrecognized tokens are skipped, not fatal
		}
		components = append(components, c)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("sstable: read TOC: %w", err)
	}
	return components, nil
}

// ValidateTOC checks dir against the TOC's listed components and
// required base components, following the naming convention base +
// "-" + tag where tag is the component's fixed suffix. Missing
// mandatory components fail with errs.ErrMissingComponent.
func ValidateTOC(dir string, base string, format Format, listed []Component) error {
	present := make(map[Component]bool, len(listed))
	for _, c := range listed {
		present[c] = true
	}

	for _, c := range listed {
		path := filepath.Join(dir, base+"-"+componentFileTag(c))
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("sstable: TOC lists %s but %s is absent: %w", c, path, errs.ErrMissingComponent)
		}
	}

	for _, req := range RequiredComponents(format) {
		if !present[req] {
			return fmt.Errorf("sstable: required component %s missing from TOC: %w", req, errs.ErrMissingComponent)
		}
	}
	return nil
}

// WriteTOC serializes components as a TOC file, one token per line.
func WriteTOC(w io.Writer, components []Component) error {
	for _, c := range components {
		if _, err := fmt.Fprintln(w, componentFileTag(c)); err != nil {
			return fmt.Errorf("sstable: write TOC: %w", err)
		}
	}
	return nil
}
