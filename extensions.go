package assetcompress

import (
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"
)

// Extension mapping
var extensionMap = map[Algorithm]string{
	AlgorithmGzip:       ".gz",
	AlgorithmZopfli:     ".gz",
	AlgorithmDeflate:    ".zz",
	AlgorithmDeflateRaw: ".deflate",
	AlgorithmBrotli:     ".br",
	AlgorithmZstd:       ".zst",
	AlgorithmLZ4:        ".lz4",
	AlgorithmSnappy:     ".sz",
	AlgorithmS2:         ".s2",
}

// Reverse extension mapping (extension -> algorithm)
var reverseExtensionMap = map[string]Algorithm{
	".gz":      AlgorithmGzip,
	".gzip":    AlgorithmGzip,
	".zz":      AlgorithmDeflate,
	".deflate": AlgorithmDeflateRaw,
	".br":      AlgorithmBrotli,
	".zst":     AlgorithmZstd,
	".zstd":    AlgorithmZstd,
	".lz4":     AlgorithmLZ4,
	".sz":      AlgorithmSnappy,
	".snappy":  AlgorithmSnappy,
	".s2":      AlgorithmS2,
}

// magicEntry pairs a format with its leading bytes
type magicEntry struct {
	algo  Algorithm
	magic []byte
}

// Magic bytes for compression format detection, longest first
var magicBytes = []magicEntry{
	{AlgorithmSnappy, []byte{0xff, 0x06, 0x00, 0x00, 0x73, 0x4e, 0x61, 0x50}}, // snappy framed
	{AlgorithmS2, []byte{0xff, 0x06, 0x00, 0x00, 0x53, 0x32, 0x73, 0x54}},     // s2 framed
	{AlgorithmZstd, []byte{0x28, 0xb5, 0x2f, 0xfd}},
	{AlgorithmLZ4, []byte{0x04, 0x22, 0x4d, 0x18}},
	{AlgorithmGzip, []byte{0x1f, 0x8b}},
}

// Placeholders understood by output name templates
const (
	placeholderFile  = "[file]"
	placeholderPath  = "[path]"
	placeholderQuery = "[query]"
)

// GetExtension returns the file extension for an algorithm
func GetExtension(algo Algorithm) string {
	return extensionMap[algo]
}

// DetectAlgorithmFromExtension detects the algorithm from file extension
func DetectAlgorithmFromExtension(name string) (Algorithm, bool) {
	p, _ := splitName(name)
	algo, ok := reverseExtensionMap[strings.ToLower(path.Ext(p))]
	return algo, ok
}

// HasCompressionExtension checks if filename has a compression extension
func HasCompressionExtension(name string) bool {
	_, ok := DetectAlgorithmFromExtension(name)
	return ok
}

// DetectAlgorithm detects compression algorithm from magic bytes
func DetectAlgorithm(r io.Reader) (Algorithm, error) {
	buf := make([]byte, 10)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", err
	}
	algo, _ := IsCompressed(buf[:n])
	return algo, nil
}

// IsCompressed checks if data appears to be compressed based on magic bytes
func IsCompressed(data []byte) (Algorithm, bool) {
	for _, m := range magicBytes {
		if bytes.HasPrefix(data, m.magic) {
			return m.algo, true
		}
	}
	return "", false
}

// DefaultAssetTemplate returns the output name template used when
// Config.Asset is empty.
func DefaultAssetTemplate(algo Algorithm) string {
	return placeholderPath + GetExtension(algo) + placeholderQuery
}

// validateTemplate rejects templates that cannot name a distinct output.
func validateTemplate(t string) error {
	if !strings.Contains(t, placeholderFile) && !strings.Contains(t, placeholderPath) {
		return fmt.Errorf("%w: template %q needs [file] or [path]", ErrInvalidOption, t)
	}
	if t == placeholderFile || t == placeholderPath || t == placeholderFile+placeholderQuery || t == placeholderPath+placeholderQuery {
		return fmt.Errorf("%w: template %q would overwrite the original asset", ErrInvalidOption, t)
	}
	return nil
}

// splitName separates an asset name into its pathname and query string.
// The query keeps no leading "?".
func splitName(name string) (p, query string) {
	p, query, _ = strings.Cut(name, "?")
	return p, query
}

// OutputName renders template for the asset called name.
//
//	[file]  the full asset name including any query string
//	[path]  the name without its query string
//	[query] "?" plus the query string, or nothing when there is none
func OutputName(template, name string) string {
	p, query := splitName(name)
	if query != "" {
		query = "?" + query
	}
	return strings.NewReplacer(
		placeholderFile, name,
		placeholderPath, p,
		placeholderQuery, query,
	).Replace(template)
}
