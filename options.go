package assetcompress

import "fmt"

// Strategy selects the deflate match strategy.
type Strategy string

const (
	StrategyDefault     Strategy = ""
	StrategyHuffmanOnly Strategy = "huffmanOnly"
)

// FlushMode controls how content is fed to deflate-family encoders.
type FlushMode string

const (
	// FlushNone writes the content and closes the stream.
	FlushNone FlushMode = ""
	// FlushSync emits a sync flush after every chunk.
	FlushSync FlushMode = "sync"
)

const defaultChunkSize = 16 * 1024

// GzipOptions tunes the gzip, deflate (zlib framed) and deflateRaw codecs.
type GzipOptions struct {
	// Compression level 1-9 (0 selects 9)
	Level int

	// Base 2 logarithm of the history window, 8-15. 0 keeps the encoder
	// default of 32KB. A custom window uses a dedicated encoder that
	// ignores Level. gzip and deflateRaw only.
	WindowBits int

	Strategy Strategy
	Flush    FlushMode

	// Bytes handed to the encoder per write (default: 16KB)
	ChunkSize int

	// Preset dictionary. deflate and deflateRaw only.
	Dictionary []byte

	// Compress gzip output on several goroutines. gzip only.
	Parallel bool
}

func (o GzipOptions) level() int {
	if o.Strategy == StrategyHuffmanOnly {
		return huffmanOnlyLevel
	}
	if o.Level == 0 {
		return 9
	}
	return o.Level
}

func (o GzipOptions) chunkSize() int {
	if o.ChunkSize <= 0 {
		return defaultChunkSize
	}
	return o.ChunkSize
}

func (o GzipOptions) validate(algo Algorithm) error {
	if o.Level < 0 || o.Level > 9 {
		return fmt.Errorf("%w: level %d out of range 1-9", ErrInvalidOption, o.Level)
	}
	if o.WindowBits != 0 && (o.WindowBits < 8 || o.WindowBits > 15) {
		return fmt.Errorf("%w: windowBits %d out of range 8-15", ErrInvalidOption, o.WindowBits)
	}
	switch o.Strategy {
	case StrategyDefault, StrategyHuffmanOnly:
	default:
		return fmt.Errorf("%w: unknown strategy %q", ErrInvalidOption, o.Strategy)
	}
	switch o.Flush {
	case FlushNone, FlushSync:
	default:
		return fmt.Errorf("%w: unknown flush mode %q", ErrInvalidOption, o.Flush)
	}
	if o.WindowBits != 0 && o.Strategy == StrategyHuffmanOnly {
		return fmt.Errorf("%w: windowBits cannot be combined with the huffmanOnly strategy", ErrInvalidOption)
	}
	if o.WindowBits != 0 && algo == AlgorithmDeflate {
		return fmt.Errorf("%w: windowBits is not supported by %s", ErrInvalidOption, algo)
	}
	if len(o.Dictionary) > 0 && algo == AlgorithmGzip {
		return fmt.Errorf("%w: dictionary is not supported by %s", ErrInvalidOption, algo)
	}
	if o.Parallel {
		if algo != AlgorithmGzip {
			return fmt.Errorf("%w: parallel is only supported by gzip", ErrInvalidOption)
		}
		if o.WindowBits != 0 {
			return fmt.Errorf("%w: parallel gzip cannot use a custom window", ErrInvalidOption)
		}
	}
	return nil
}

// ZopfliOptions tunes the zopfli codec: a gzip encoder that spends extra
// rounds of optimal parsing to find a smaller output.
type ZopfliOptions struct {
	// Parsing rounds per block, each costed by the previous one
	// (default: 15). Stops early once a round stops changing the cost.
	NumIterations int

	// Keep each 1MB master block in one deflate block
	DisableBlockSplitting bool

	// Split the optimal parse instead of splitting a greedy parse first
	BlockSplittingLast bool

	// Largest number of blocks tried when splitting (default: 15)
	BlockSplittingMax int

	// Log each parsing round; VerboseMore also logs the chosen blocks
	Verbose     bool
	VerboseMore bool
}

// DefaultZopfliOptions returns the zopfli defaults
func DefaultZopfliOptions() ZopfliOptions {
	return ZopfliOptions{
		NumIterations:     15,
		BlockSplittingMax: 15,
	}
}

func (o ZopfliOptions) withDefaults() ZopfliOptions {
	d := DefaultZopfliOptions()
	if o.NumIterations == 0 {
		o.NumIterations = d.NumIterations
	}
	if o.BlockSplittingMax == 0 {
		o.BlockSplittingMax = d.BlockSplittingMax
	}
	return o
}

func (o ZopfliOptions) validate() error {
	if o.NumIterations < 0 {
		return fmt.Errorf("%w: numIterations %d must be positive", ErrInvalidOption, o.NumIterations)
	}
	if o.BlockSplittingMax < 0 {
		return fmt.Errorf("%w: blockSplittingMax %d must be positive", ErrInvalidOption, o.BlockSplittingMax)
	}
	return nil
}

// BrotliOptions tunes the brotli codec.
type BrotliOptions struct {
	// Quality 1-11 (0 selects 11)
	Quality int

	// Base 2 logarithm of the window, 10-24. 0 lets the encoder choose.
	LGWin int
}

func (o BrotliOptions) quality() int {
	if o.Quality == 0 {
		return 11
	}
	return o.Quality
}

func (o BrotliOptions) validate() error {
	if o.Quality < 0 || o.Quality > 11 {
		return fmt.Errorf("%w: quality %d out of range 1-11", ErrInvalidOption, o.Quality)
	}
	if o.LGWin != 0 && (o.LGWin < 10 || o.LGWin > 24) {
		return fmt.Errorf("%w: lgwin %d out of range 10-24", ErrInvalidOption, o.LGWin)
	}
	return nil
}

// ZstdOptions tunes the zstd codec.
type ZstdOptions struct {
	// Zstandard level 1-22 (0 selects 19), mapped to the closest encoder level
	Level int

	// Raw dictionary used as initial history. Decoders need the same bytes.
	Dictionary []byte
}

func (o ZstdOptions) level() int {
	if o.Level == 0 {
		return 19
	}
	return o.Level
}

func (o ZstdOptions) validate() error {
	if o.Level < 0 || o.Level > 22 {
		return fmt.Errorf("%w: zstd level %d out of range 1-22", ErrInvalidOption, o.Level)
	}
	return nil
}

// LZ4Options tunes the lz4 codec.
type LZ4Options struct {
	// Compression level 1-9 (0 selects 9)
	Level int
}

func (o LZ4Options) level() int {
	if o.Level == 0 {
		return 9
	}
	return o.Level
}

func (o LZ4Options) validate() error {
	if o.Level < 0 || o.Level > 9 {
		return fmt.Errorf("%w: lz4 level %d out of range 1-9", ErrInvalidOption, o.Level)
	}
	return nil
}
