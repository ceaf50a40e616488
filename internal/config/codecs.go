// Codec configuration - per-algorithm tuning blocks.
//
// Only the block matching the configured algorithm is used. Zero values
// select the codec defaults.
package config

import (
	"fmt"
	"os"

	"github.com/absfs/assetcompress"
)

// GzipConfig tunes gzip, deflate and deflateRaw.
type GzipConfig struct {
	Level          int    `yaml:"level"`           // 1-9
	WindowBits     int    `yaml:"window_bits"`     // 8-15
	Strategy       string `yaml:"strategy"`        // "" or huffmanOnly
	Flush          string `yaml:"flush"`           // "" or sync
	ChunkSize      int    `yaml:"chunk_size"`      // Bytes per encoder write
	DictionaryFile string `yaml:"dictionary_file"` // Preset dictionary (deflate, deflateRaw)
	Parallel       bool   `yaml:"parallel"`        // Multi-goroutine gzip
}

// ZopfliConfig tunes the exhaustive gzip search.
type ZopfliConfig struct {
	NumIterations         int  `yaml:"num_iterations"`
	DisableBlockSplitting bool `yaml:"disable_block_splitting"`
	BlockSplittingLast    bool `yaml:"block_splitting_last"`
	BlockSplittingMax     int  `yaml:"block_splitting_max"`
	Verbose               bool `yaml:"verbose"`
	VerboseMore           bool `yaml:"verbose_more"`
}

// BrotliConfig tunes brotli.
type BrotliConfig struct {
	Quality int `yaml:"quality"` // 1-11
	LGWin   int `yaml:"lgwin"`   // 10-24
}

// ZstdConfig tunes zstd.
type ZstdConfig struct {
	Level          int    `yaml:"level"`           // 1-22
	DictionaryFile string `yaml:"dictionary_file"` // Raw dictionary content
}

// LZ4Config tunes lz4.
type LZ4Config struct {
	Level int `yaml:"level"` // 1-9
}

func readDictionary(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dictionary '%s': %w", path, err)
	}
	return data, nil
}

func (g GzipConfig) options() (assetcompress.GzipOptions, error) {
	dict, err := readDictionary(g.DictionaryFile)
	if err != nil {
		return assetcompress.GzipOptions{}, err
	}
	return assetcompress.GzipOptions{
		Level:      g.Level,
		WindowBits: g.WindowBits,
		Strategy:   assetcompress.Strategy(g.Strategy),
		Flush:      assetcompress.FlushMode(g.Flush),
		ChunkSize:  g.ChunkSize,
		Dictionary: dict,
		Parallel:   g.Parallel,
	}, nil
}

func (z ZopfliConfig) options() assetcompress.ZopfliOptions {
	return assetcompress.ZopfliOptions{
		NumIterations:         z.NumIterations,
		DisableBlockSplitting: z.DisableBlockSplitting,
		BlockSplittingLast:    z.BlockSplittingLast,
		BlockSplittingMax:     z.BlockSplittingMax,
		Verbose:               z.Verbose,
		VerboseMore:           z.VerboseMore,
	}
}

func (b BrotliConfig) options() assetcompress.BrotliOptions {
	return assetcompress.BrotliOptions{Quality: b.Quality, LGWin: b.LGWin}
}

func (z ZstdConfig) options() (assetcompress.ZstdOptions, error) {
	dict, err := readDictionary(z.DictionaryFile)
	if err != nil {
		return assetcompress.ZstdOptions{}, err
	}
	return assetcompress.ZstdOptions{Level: z.Level, Dictionary: dict}, nil
}

func (l LZ4Config) options() assetcompress.LZ4Options {
	return assetcompress.LZ4Options{Level: l.Level}
}
