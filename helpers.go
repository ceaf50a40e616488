package assetcompress

import "fmt"

// Preset configurations for common use cases

// FastestConfig returns a configuration optimized for build speed
func FastestConfig() *Config {
	return &Config{
		Algorithm: AlgorithmGzip,
		Gzip:      GzipOptions{Level: 1},
		MinRatio:  DefaultMinRatio,
	}
}

// RecommendedConfig returns the recommended configuration for general use.
// Brotli at quality 9 compresses text assets well without the cost of 11.
func RecommendedConfig() *Config {
	return &Config{
		Algorithm: AlgorithmBrotli,
		Brotli:    BrotliOptions{Quality: 9},
		Threshold: 1024, // Skip very small files
		MinRatio:  DefaultMinRatio,
		Test: []string{
			`(?i)\.(js|mjs|css|svg|json|xml|txt|wasm)$`,
		},
	}
}

// BestCompressionConfig returns a configuration optimized for the smallest
// gzip output. Use for static content served many times.
func BestCompressionConfig() *Config {
	return &Config{
		Algorithm: AlgorithmZopfli,
		Zopfli:    DefaultZopfliOptions(),
		Threshold: 1024,
		MinRatio:  DefaultMinRatio,
	}
}

// CompatibleConfig returns a configuration using gzip for maximum compatibility
func CompatibleConfig() *Config {
	return &Config{
		Algorithm:         AlgorithmGzip,
		Gzip:              GzipOptions{Level: 6},
		Threshold:         512,
		MinRatio:          DefaultMinRatio,
		SkipPrecompressed: true,
	}
}

// CompressBytes compresses a byte slice using the specified algorithm and level.
// Level 0 selects the algorithm's default; snappy and s2 ignore it.
func CompressBytes(data []byte, algo Algorithm, level int) ([]byte, error) {
	codec, err := NewCodec(algo, levelConfig(algo, level))
	if err != nil {
		return nil, err
	}
	return codec.Compress(data)
}

// DecompressBytes decompresses a byte slice using the specified algorithm
func DecompressBytes(data []byte, algo Algorithm) ([]byte, error) {
	codec, err := NewCodec(algo, nil)
	if err != nil {
		return nil, err
	}
	d, ok := codec.(Decompressor)
	if !ok {
		return nil, fmt.Errorf("%w: %s cannot decompress", ErrUnsupportedAlgorithm, algo)
	}
	return d.Decompress(data)
}

// levelConfig maps a single level onto the option block of algo
func levelConfig(algo Algorithm, level int) *Config {
	cfg := DefaultConfig()
	switch algo {
	case AlgorithmGzip, AlgorithmDeflate, AlgorithmDeflateRaw:
		cfg.Gzip.Level = level
	case AlgorithmZopfli:
		cfg.Zopfli.NumIterations = level
	case AlgorithmBrotli:
		cfg.Brotli.Quality = level
	case AlgorithmZstd:
		cfg.Zstd.Level = level
	case AlgorithmLZ4:
		cfg.LZ4.Level = level
	}
	return cfg
}

// DetectCompressionAlgorithm detects the compression algorithm from data
func DetectCompressionAlgorithm(data []byte) (Algorithm, bool) {
	return IsCompressed(data)
}

// GetCompressionRatio calculates the compression ratio for given original and compressed sizes
// Returns a value between 0 and 1, where lower is better
// E.g., 0.5 means the compressed size is 50% of the original
func GetCompressionRatio(originalSize, compressedSize int64) float64 {
	if originalSize == 0 {
		return 0
	}
	return float64(compressedSize) / float64(originalSize)
}

// GetCompressionPercentage calculates the compression percentage
// Returns the percentage of space saved (0-100)
// E.g., 50 means 50% space savings
func GetCompressionPercentage(originalSize, compressedSize int64) float64 {
	if originalSize == 0 {
		return 0
	}
	return (1 - float64(compressedSize)/float64(originalSize)) * 100
}
