// Package compression implements the chunked decode/encode framing
// described in spec §4.3: a Data file is logically one uncompressed
// byte stream, physically a sequence of independently compressed
// chunks, indexed by a CompressionInfo sidecar.
package compression

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/flate"
	"github.com/pierrec/lz4/v4"

	"github.com/cqlite-go/cqlite/internal/errs"
)

// Algorithm is one of the four chunk codecs spec §4.3 names.
type Algorithm int

const (
	None Algorithm = iota
	LZ4
	Snappy
	Deflate
)

// algorithmNames maps the wire name recorded in CompressionInfo (the
// producer's class-name convention) to Algorithm.
var algorithmNames = map[string]Algorithm{
	"":                  None,
	"NoopCompressor":    None,
	"LZ4Compressor":     LZ4,
	"SnappyCompressor":  Snappy,
	"DeflateCompressor": Deflate,
}

var algorithmWireNames = map[Algorithm]string{
	None:    "NoopCompressor",
	LZ4:     "LZ4Compressor",
	Snappy:  "SnappyCompressor",
	Deflate: "DeflateCompressor",
}

// ParseAlgorithm resolves the CompressionInfo's recorded algorithm name
// to an Algorithm, failing with errs.ErrUnsupportedCompress for any name
// this engine does not implement.
func ParseAlgorithm(name string) (Algorithm, error) {
	a, ok := algorithmNames[name]
	if !ok {
		return 0, fmt.Errorf("compression: unknown algorithm %q: %w", name, errs.ErrUnsupportedCompress)
	}
	return a, nil
}

// configNames maps a config.compression_default value (spec §6's short
// lowercase name) to Algorithm, distinct from algorithmNames' on-disk
// class-name convention.
var configNames = map[string]Algorithm{
	"none":    None,
	"lz4":     LZ4,
	"snappy":  Snappy,
	"deflate": Deflate,
}

// ParseConfigName resolves a Config.CompressionDefault value to an
// Algorithm, failing with errs.ErrUnsupportedCompress for any name this
// engine does not implement.
func ParseConfigName(name string) (Algorithm, error) {
	a, ok := configNames[strings.ToLower(name)]
	if !ok {
		return 0, fmt.Errorf("compression: unknown config algorithm %q: %w", name, errs.ErrUnsupportedCompress)
	}
	return a, nil
}

// WireName returns the class-name string this engine writes into
// CompressionInfo for a.
func (a Algorithm) WireName() string { return algorithmWireNames[a] }

func (a Algorithm) String() string {
	switch a {
	case None:
		return "None"
	case LZ4:
		return "LZ4"
	case Snappy:
		return "Snappy"
	case Deflate:
		return "Deflate"
	default:
		return "Unknown"
	}
}

// Decompress expands one compressed chunk. uncompressedLen sizes the
// output buffer for algorithms (LZ4, Deflate) that don't self-describe
// their decompressed length; Snappy's raw format does, and the hint is
// not used for it.
func Decompress(alg Algorithm, compressed []byte, uncompressedLen int) ([]byte, error) {
	switch alg {
	case None:
		out := make([]byte, len(compressed))
		copy(out, compressed)
		return out, nil
	case LZ4:
		out := make([]byte, uncompressedLen)
		n, err := lz4.UncompressBlock(compressed, out)
		if err != nil {
			return nil, fmt.Errorf("compression: lz4 decompress: %w", err)
		}
		return out[:n], nil
	case Snappy:
		out, err := snappy.Decode(nil, compressed)
		if err != nil {
			return nil, fmt.Errorf("compression: snappy decompress: %w", err)
		}
		return out, nil
	case Deflate:
		fr := flate.NewReader(bytes.NewReader(compressed))
		defer fr.Close()
		out := make([]byte, 0, uncompressedLen)
		buf := bytes.NewBuffer(out)
		if _, err := io.Copy(buf, fr); err != nil {
			return nil, fmt.Errorf("compression: deflate decompress: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("compression: unsupported algorithm %v: %w", alg, errs.ErrUnsupportedCompress)
	}
}

// Compress produces one compressed chunk for a new SSTable write.
func Compress(alg Algorithm, uncompressed []byte) ([]byte, error) {
	switch alg {
	case None:
		out := make([]byte, len(uncompressed))
		copy(out, uncompressed)
		return out, nil
	case LZ4:
		out := make([]byte, lz4.CompressBlockBound(len(uncompressed)))
		var c lz4.Compressor
		n, err := c.CompressBlock(uncompressed, out)
		if err != nil {
			return nil, fmt.Errorf("compression: lz4 compress: %w", err)
		}
		if n == 0 && len(uncompressed) > 0 {
			// Incompressible input: lz4 reports 0 when the compressed
			// form would not be smaller. Fall back to storing raw.
			out = make([]byte, len(uncompressed))
			copy(out, uncompressed)
			return out, nil
		}
		return out[:n], nil
	case Snappy:
		return snappy.Encode(nil, uncompressed), nil
	case Deflate:
		var buf bytes.Buffer
		fw, err := flate.NewWriter(&buf, flate.DefaultCompression)
		if err != nil {
			return nil, fmt.Errorf("compression: deflate writer: %w", err)
		}
		if _, err := fw.Write(uncompressed); err != nil {
			return nil, fmt.Errorf("compression: deflate write: %w", err)
		}
		if err := fw.Close(); err != nil {
			return nil, fmt.Errorf("compression: deflate close: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("compression: unsupported algorithm %v: %w", alg, errs.ErrUnsupportedCompress)
	}
}
