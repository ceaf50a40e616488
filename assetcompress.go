package assetcompress

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/absfs/absfs"
	"github.com/rs/zerolog"
)

// Algorithm represents a compression algorithm
type Algorithm string

const (
	AlgorithmGzip       Algorithm = "gzip"
	AlgorithmDeflate    Algorithm = "deflate"
	AlgorithmDeflateRaw Algorithm = "deflateRaw"
	AlgorithmZopfli     Algorithm = "zopfli"
	AlgorithmBrotli     Algorithm = "brotli"
	AlgorithmZstd       Algorithm = "zstd"
	AlgorithmLZ4        Algorithm = "lz4"
	AlgorithmSnappy     Algorithm = "snappy"
	AlgorithmS2         Algorithm = "s2"
)

// Algorithms lists every built-in algorithm in a stable order.
var Algorithms = []Algorithm{
	AlgorithmGzip,
	AlgorithmDeflate,
	AlgorithmDeflateRaw,
	AlgorithmZopfli,
	AlgorithmBrotli,
	AlgorithmZstd,
	AlgorithmLZ4,
	AlgorithmSnappy,
	AlgorithmS2,
}

const (
	// DefaultTestPattern selects scripts and stylesheets during the optimize phase.
	DefaultTestPattern = `(?i)\.(js|css)$`

	// DefaultTestHTMLPattern selects documents during the emit phase.
	DefaultTestHTMLPattern = `\.html$`

	// DefaultMinRatio is the largest compressed/original ratio that is kept.
	DefaultMinRatio = 0.8
)

// Config holds asset compressor configuration
type Config struct {
	// Output name template. Placeholders: [file], [path], [query].
	// Empty selects "[path]<ext>[query]" for the algorithm, "[path].gz[query]" for gzip.
	Asset string

	// Algorithm to use for compression (default: gzip)
	Algorithm Algorithm

	// Per-algorithm tuning. Only the block matching Algorithm is read.
	Gzip   GzipOptions   // gzip, deflate, deflateRaw
	Zopfli ZopfliOptions // zopfli
	Brotli BrotliOptions
	Zstd   ZstdOptions
	LZ4    LZ4Options

	// Codec replaces the built-in algorithm when set.
	Codec Codec

	// Patterns for the optimize phase (scripts, styles) and the emit phase
	// (documents). Regular expressions, or doublestar globs with a "glob:"
	// prefix. nil selects the default; an empty non-nil slice matches nothing.
	Test     []string
	TestHTML []string

	// Predicates that take the place of Test and TestHTML when set
	TestMatcher     Matcher
	TestHTMLMatcher Matcher

	// Minimum content size to compress
	Threshold int64 // default: 0 (compress all)

	// Compressed output is discarded when compressed/original exceeds this
	MinRatio float64 // default: 0.8

	// Queue the original file for removal once the build is done
	DeleteOriginals bool

	// Directory the build writes assets to. Required with DeleteOriginals.
	OutputDir string

	// Skip content whose magic bytes already identify a compressed format
	SkipPrecompressed bool

	// Maximum concurrent compressions per phase (default: GOMAXPROCS)
	Concurrency int

	// Filesystem used to delete originals (default: the OS filesystem)
	FS absfs.Filer

	Logger  *zerolog.Logger
	Metrics *Metrics
}

// DefaultConfig returns a config with the plugin defaults
func DefaultConfig() *Config {
	return &Config{
		Algorithm: AlgorithmGzip,
		Gzip:      GzipOptions{Level: 9},
		Test:      []string{DefaultTestPattern},
		TestHTML:  []string{DefaultTestHTMLPattern},
		MinRatio:  DefaultMinRatio,
	}
}

var (
	ErrUnsupportedAlgorithm = errors.New("assetcompress: unsupported compression algorithm")
	ErrOutputDirRequired    = errors.New("assetcompress: output directory required when deleting originals")
	ErrInvalidOption        = errors.New("assetcompress: invalid codec option")
	ErrInvalidPattern       = errors.New("assetcompress: invalid asset pattern")
	ErrCodecFailed          = errors.New("assetcompress: codec failed")
	ErrQueueRequired        = errors.New("assetcompress: deletion queue required when deleting originals")
)

// ConfigError reports a configuration problem found by New.
type ConfigError struct {
	Field string
	Value string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%v (%s)", e.Err, e.Field)
	}
	return fmt.Sprintf("%v (%s %q)", e.Err, e.Field, e.Value)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// SkipReason explains why an asset was left uncompressed.
type SkipReason string

const (
	SkipNone           SkipReason = ""
	SkipBelowThreshold SkipReason = "threshold"
	SkipRatio          SkipReason = "ratio"
	SkipPrecompressed  SkipReason = "precompressed"
	SkipCanceled       SkipReason = "canceled"
	SkipMissing        SkipReason = "missing"
)

// Stats holds compression statistics
type Stats struct {
	AssetsCompressed int64
	AssetsSkipped    int64
	AssetsFailed     int64

	BytesIn  int64 // original size of compressed assets
	BytesOut int64 // compressed size of compressed assets

	FilesDeleted    int64
	DeletionsFailed int64

	SkipCounts sync.Map // map[SkipReason]*int64
}

// GetSkipCount returns the count for a specific skip reason
func (s *Stats) GetSkipCount(reason SkipReason) int64 {
	if val, ok := s.SkipCounts.Load(reason); ok {
		return atomic.LoadInt64(val.(*int64))
	}
	return 0
}

// IncrementSkipCount increments the count for a specific skip reason
func (s *Stats) IncrementSkipCount(reason SkipReason) {
	val, _ := s.SkipCounts.LoadOrStore(reason, new(int64))
	atomic.AddInt64(val.(*int64), 1)
}

// TotalCompressionRatio returns the overall compression ratio
func (s *Stats) TotalCompressionRatio() float64 {
	in := atomic.LoadInt64(&s.BytesIn)
	if in == 0 {
		return 0
	}
	return float64(atomic.LoadInt64(&s.BytesOut)) / float64(in)
}

// Compressor selects, compresses and renames build assets.
type Compressor struct {
	config   Config
	codec    Codec
	template string
	test     Matcher
	testHTML Matcher
	fs       absfs.Filer
	log      zerolog.Logger
	metrics  *Metrics
	stats    Stats
	mu       sync.RWMutex
}

// New resolves config into a Compressor. All configuration errors are
// reported here, before any asset is touched.
func New(config *Config) (*Compressor, error) {
	if config == nil {
		config = DefaultConfig()
	}
	cfg := *config

	if cfg.DeleteOriginals && cfg.OutputDir == "" {
		return nil, &ConfigError{Field: "OutputDir", Err: ErrOutputDirRequired}
	}

	if cfg.Algorithm == "" {
		cfg.Algorithm = AlgorithmGzip
	}
	algo, err := ParseAlgorithm(string(cfg.Algorithm))
	if err != nil {
		return nil, &ConfigError{Field: "Algorithm", Value: string(cfg.Algorithm), Err: err}
	}
	cfg.Algorithm = algo

	if cfg.MinRatio <= 0 {
		cfg.MinRatio = DefaultMinRatio
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = runtime.GOMAXPROCS(0)
	}

	c := &Compressor{
		config:  cfg,
		fs:      cfg.FS,
		metrics: cfg.Metrics,
	}

	if cfg.Logger != nil {
		c.log = *cfg.Logger
	} else {
		c.log = zerolog.Nop()
	}
	if c.fs == nil {
		c.fs = NewOSFS()
	}
	// Host paths are pinned to the working directory at construction.
	if _, ok := c.fs.(osFS); ok && cfg.OutputDir != "" {
		dir, err := filepath.Abs(cfg.OutputDir)
		if err != nil {
			return nil, &ConfigError{Field: "OutputDir", Value: cfg.OutputDir, Err: err}
		}
		c.config.OutputDir = dir
	}

	c.codec = cfg.Codec
	if c.codec == nil {
		c.codec, err = NewCodec(algo, &cfg)
		if err != nil {
			return nil, &ConfigError{Field: "Algorithm", Value: string(algo), Err: err}
		}
	}

	c.template = cfg.Asset
	if c.template == "" {
		c.template = DefaultAssetTemplate(algo)
	}
	if err := validateTemplate(c.template); err != nil {
		return nil, &ConfigError{Field: "Asset", Value: c.template, Err: err}
	}

	if c.test = cfg.TestMatcher; c.test == nil {
		if c.test, err = compilePatterns(cfg.Test, DefaultTestPattern); err != nil {
			return nil, &ConfigError{Field: "Test", Err: err}
		}
	}
	if c.testHTML = cfg.TestHTMLMatcher; c.testHTML == nil {
		if c.testHTML, err = compilePatterns(cfg.TestHTML, DefaultTestHTMLPattern); err != nil {
			return nil, &ConfigError{Field: "TestHTML", Err: err}
		}
	}

	return c, nil
}

// Algorithm returns the configured algorithm. It is meaningless when a
// custom Codec was supplied.
func (c *Compressor) Algorithm() Algorithm {
	return c.config.Algorithm
}

// Codec returns the resolved codec.
func (c *Compressor) Codec() Codec {
	return c.codec
}

// Template returns the output name template in use.
func (c *Compressor) Template() string {
	return c.template
}

// GetStats returns current statistics
func (c *Compressor) GetStats() *Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	// Return a copy
	return &Stats{
		AssetsCompressed: atomic.LoadInt64(&c.stats.AssetsCompressed),
		AssetsSkipped:    atomic.LoadInt64(&c.stats.AssetsSkipped),
		AssetsFailed:     atomic.LoadInt64(&c.stats.AssetsFailed),
		BytesIn:          atomic.LoadInt64(&c.stats.BytesIn),
		BytesOut:         atomic.LoadInt64(&c.stats.BytesOut),
		FilesDeleted:     atomic.LoadInt64(&c.stats.FilesDeleted),
		DeletionsFailed:  atomic.LoadInt64(&c.stats.DeletionsFailed),
	}
}

// SkipCount returns how many assets were skipped for reason.
func (c *Compressor) SkipCount(reason SkipReason) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats.GetSkipCount(reason)
}

// ResetStats resets statistics to zero
func (c *Compressor) ResetStats() {
	c.mu.Lock()
	defer c.mu.Unlock()
	atomic.StoreInt64(&c.stats.AssetsCompressed, 0)
	atomic.StoreInt64(&c.stats.AssetsSkipped, 0)
	atomic.StoreInt64(&c.stats.AssetsFailed, 0)
	atomic.StoreInt64(&c.stats.BytesIn, 0)
	atomic.StoreInt64(&c.stats.BytesOut, 0)
	atomic.StoreInt64(&c.stats.FilesDeleted, 0)
	atomic.StoreInt64(&c.stats.DeletionsFailed, 0)
	c.stats.SkipCounts = sync.Map{}
}
