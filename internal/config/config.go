// Package config loads the assetcompress YAML configuration.
//
// FILES:
//   - config.go:  Root Config struct, Load(), Read(), Validate()
//   - codecs.go:  Per-algorithm tuning blocks
//
// Values may reference the environment with ${VAR} or ${VAR:-default}.
// ASSETCOMPRESS_ALGORITHM, ASSETCOMPRESS_OUTPUT_DIR and
// ASSETCOMPRESS_LOG_LEVEL override the file.
package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/absfs/assetcompress"
	"github.com/absfs/assetcompress/internal/logging"
)

// Config is the root configuration of an assetcompress run.
type Config struct {
	Algorithm         string   `yaml:"algorithm"`          // gzip, deflate, deflateRaw, zopfli, brotli, zstd, lz4, snappy, s2
	Asset             string   `yaml:"asset"`              // Output name template
	Test              []string `yaml:"test"`               // Optimize phase patterns
	TestHTML          []string `yaml:"test_html"`          // Emit phase patterns
	Threshold         int64    `yaml:"threshold"`          // Minimum asset size in bytes
	MinRatio          float64  `yaml:"min_ratio"`          // Largest accepted compressed/original ratio
	DeleteOriginals   bool     `yaml:"delete_originals"`   // Remove originals after the build
	OutputDir         string   `yaml:"output_dir"`         // Build output directory
	SkipPrecompressed bool     `yaml:"skip_precompressed"` // Leave already compressed content alone
	Concurrency       int      `yaml:"concurrency"`        // Parallel compressions per phase

	Gzip   GzipConfig   `yaml:"gzip"`
	Zopfli ZopfliConfig `yaml:"zopfli"`
	Brotli BrotliConfig `yaml:"brotli"`
	Zstd   ZstdConfig   `yaml:"zstd"`
	LZ4    LZ4Config    `yaml:"lz4"`

	Logging logging.Config `yaml:"logging"`
	Metrics MetricsConfig  `yaml:"metrics"`
}

// MetricsConfig controls the prometheus textfile written after a run.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"` // Path of the .prom file, empty disables
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Algorithm: string(assetcompress.AlgorithmGzip),
		MinRatio:  assetcompress.DefaultMinRatio,
		Logging: logging.Config{
			Level:  "info",
			Format: "console",
			Output: "stderr",
		},
	}
}

var envPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandEnvWithDefaults expands ${VAR} and ${VAR:-default}.
func expandEnvWithDefaults(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := envPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		if len(parts) > 2 {
			return parts[2]
		}
		return ""
	})
}

// Load reads and validates configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Read loads a YAML file without validating it, so callers can layer
// further overrides first.
func Read(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config file path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	return parse(data)
}

// LoadFromBytes parses and validates configuration from raw YAML bytes on
// top of Default.
func LoadFromBytes(data []byte) (*Config, error) {
	cfg, err := parse(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func parse(data []byte) (*Config, error) {
	expanded := expandEnvWithDefaults(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyEnvOverrides()
	return cfg, nil
}

// ApplyEnvOverrides applies ASSETCOMPRESS_* environment variables.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("ASSETCOMPRESS_ALGORITHM"); v != "" {
		c.Algorithm = v
	}
	if v := os.Getenv("ASSETCOMPRESS_OUTPUT_DIR"); v != "" {
		c.OutputDir = v
	}
	if v := os.Getenv("ASSETCOMPRESS_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if _, err := assetcompress.ParseAlgorithm(c.Algorithm); err != nil {
		return fmt.Errorf("unknown algorithm: %q", c.Algorithm)
	}
	if c.Threshold < 0 {
		return fmt.Errorf("invalid threshold: %d (must be >= 0)", c.Threshold)
	}
	if c.MinRatio < 0 {
		return fmt.Errorf("invalid min_ratio: %v (must be >= 0)", c.MinRatio)
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("invalid concurrency: %d (must be >= 0)", c.Concurrency)
	}
	if c.DeleteOriginals && c.OutputDir == "" {
		return fmt.Errorf("output_dir is required when delete_originals is enabled")
	}
	switch c.Logging.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("invalid logging.format: %q (must be json or console)", c.Logging.Format)
	}
	return nil
}

// ToCompressorConfig converts the file configuration into a compressor
// configuration. Dictionary files are read here.
func (c *Config) ToCompressorConfig() (*assetcompress.Config, error) {
	algo, err := assetcompress.ParseAlgorithm(c.Algorithm)
	if err != nil {
		return nil, err
	}

	gzipOpts, err := c.Gzip.options()
	if err != nil {
		return nil, err
	}
	zstdOpts, err := c.Zstd.options()
	if err != nil {
		return nil, err
	}

	return &assetcompress.Config{
		Asset:             c.Asset,
		Algorithm:         algo,
		Gzip:              gzipOpts,
		Zopfli:            c.Zopfli.options(),
		Brotli:            c.Brotli.options(),
		Zstd:              zstdOpts,
		LZ4:               c.LZ4.options(),
		Test:              c.Test,
		TestHTML:          c.TestHTML,
		Threshold:         c.Threshold,
		MinRatio:          c.MinRatio,
		DeleteOriginals:   c.DeleteOriginals,
		OutputDir:         c.OutputDir,
		SkipPrecompressed: c.SkipPrecompressed,
		Concurrency:       c.Concurrency,
	}, nil
}
