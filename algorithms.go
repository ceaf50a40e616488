package assetcompress

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/golang/snappy"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
	"github.com/pierrec/lz4/v4"
	"github.com/rs/zerolog"
)

const huffmanOnlyLevel = flate.HuffmanOnly

// zstdDictID tags frames written with a raw dictionary.
const zstdDictID uint32 = 1

// Codec compresses asset content. Implementations must be safe for
// concurrent use: a phase compresses many assets at once.
type Codec interface {
	Compress(data []byte) ([]byte, error)
}

// Decompressor reverses a Codec. Every built-in codec implements it.
type Decompressor interface {
	Decompress(data []byte) ([]byte, error)
}

// CodecFunc adapts an ordinary function to the Codec interface.
type CodecFunc func(data []byte) ([]byte, error)

// Compress calls f(data).
func (f CodecFunc) Compress(data []byte) ([]byte, error) {
	return f(data)
}

// ParseAlgorithm resolves a case-insensitive algorithm name.
func ParseAlgorithm(name string) (Algorithm, error) {
	for _, algo := range Algorithms {
		if strings.EqualFold(name, string(algo)) {
			return algo, nil
		}
	}
	return "", ErrUnsupportedAlgorithm
}

// NewCodec creates the codec for algo from the matching option block of
// config. A nil config uses DefaultConfig.
func NewCodec(algo Algorithm, config *Config) (Codec, error) {
	if config == nil {
		config = DefaultConfig()
	}
	switch algo {
	case AlgorithmGzip, AlgorithmDeflate, AlgorithmDeflateRaw:
		return newDeflateCodec(algo, config.Gzip)
	case AlgorithmZopfli:
		log := zerolog.Nop()
		if config.Logger != nil {
			log = *config.Logger
		}
		return newZopfliCodec(config.Zopfli, log)
	case AlgorithmBrotli:
		return newBrotliCodec(config.Brotli)
	case AlgorithmZstd:
		return newZstdCodec(config.Zstd)
	case AlgorithmLZ4:
		return newLZ4Codec(config.LZ4)
	case AlgorithmSnappy:
		return snappyCodec{}, nil
	case AlgorithmS2:
		return s2Codec{}, nil
	default:
		return nil, ErrUnsupportedAlgorithm
	}
}

// flushWriteCloser is the shape shared by every deflate-family writer.
type flushWriteCloser interface {
	io.WriteCloser
	Flush() error
}

// writeChunks feeds data to w in chunks, optionally sync flushing each one.
func writeChunks(w flushWriteCloser, data []byte, chunk int, flush bool) error {
	for len(data) > 0 {
		n := min(chunk, len(data))
		if _, err := w.Write(data[:n]); err != nil {
			return err
		}
		if flush {
			if err := w.Flush(); err != nil {
				return err
			}
		}
		data = data[n:]
	}
	return nil
}

// deflateCodec implements gzip, deflate (zlib framing) and deflateRaw
type deflateCodec struct {
	format Algorithm
	opts   GzipOptions
}

func newDeflateCodec(format Algorithm, opts GzipOptions) (*deflateCodec, error) {
	if err := opts.validate(format); err != nil {
		return nil, err
	}
	return &deflateCodec{format: format, opts: opts}, nil
}

func (c *deflateCodec) newWriter(w io.Writer) (flushWriteCloser, error) {
	level := c.opts.level()
	switch c.format {
	case AlgorithmGzip:
		if c.opts.Parallel {
			return pgzip.NewWriterLevel(w, level)
		}
		if c.opts.WindowBits != 0 {
			return gzip.NewWriterWindow(w, 1<<c.opts.WindowBits)
		}
		return gzip.NewWriterLevel(w, level)
	case AlgorithmDeflate:
		return zlib.NewWriterLevelDict(w, level, c.opts.Dictionary)
	case AlgorithmDeflateRaw:
		if c.opts.WindowBits != 0 {
			return flate.NewWriterWindow(w, 1<<c.opts.WindowBits)
		}
		return flate.NewWriterDict(w, level, c.opts.Dictionary)
	default:
		return nil, ErrUnsupportedAlgorithm
	}
}

// Compress compresses data with the configured deflate framing.
func (c *deflateCodec) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := c.newWriter(&buf)
	if err != nil {
		return nil, err
	}
	if err := writeChunks(w, data, c.opts.chunkSize(), c.opts.Flush == FlushSync); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decompress reverses Compress.
func (c *deflateCodec) Decompress(data []byte) ([]byte, error) {
	var (
		r   io.ReadCloser
		err error
	)
	switch c.format {
	case AlgorithmGzip:
		r, err = gzip.NewReader(bytes.NewReader(data))
	case AlgorithmDeflate:
		r, err = zlib.NewReaderDict(bytes.NewReader(data), c.opts.Dictionary)
	case AlgorithmDeflateRaw:
		r = flate.NewReaderDict(bytes.NewReader(data), c.opts.Dictionary)
	default:
		return nil, ErrUnsupportedAlgorithm
	}
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// brotliCodec uses github.com/andybalholm/brotli
type brotliCodec struct {
	opts brotli.WriterOptions
}

func newBrotliCodec(opts BrotliOptions) (*brotliCodec, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &brotliCodec{opts: brotli.WriterOptions{Quality: opts.quality(), LGWin: opts.LGWin}}, nil
}

func (c *brotliCodec) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := brotli.NewWriterOptions(&buf, c.opts)
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *brotliCodec) Decompress(data []byte) ([]byte, error) {
	return io.ReadAll(brotli.NewReader(bytes.NewReader(data)))
}

// zstdCodec keeps one encoder and decoder; EncodeAll and DecodeAll are
// safe for concurrent use.
type zstdCodec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func newZstdCodec(opts ZstdOptions) (*zstdCodec, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	eopts := []zstd.EOption{
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(opts.level())),
	}
	dopts := []zstd.DOption{
		zstd.WithDecoderConcurrency(0),
	}
	if len(opts.Dictionary) > 0 {
		eopts = append(eopts, zstd.WithEncoderDictRaw(zstdDictID, opts.Dictionary))
		dopts = append(dopts, zstd.WithDecoderDictRaw(zstdDictID, opts.Dictionary))
	}
	enc, err := zstd.NewWriter(nil, eopts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOption, err)
	}
	dec, err := zstd.NewReader(nil, dopts...)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("%w: %v", ErrInvalidOption, err)
	}
	return &zstdCodec{enc: enc, dec: dec}, nil
}

func (c *zstdCodec) Compress(data []byte) ([]byte, error) {
	return c.enc.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
}

func (c *zstdCodec) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	out, err := c.dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompression failed: %w", err)
	}
	return out, nil
}

// lz4Levels maps levels 1-9 onto the library's level constants
var lz4Levels = [...]lz4.CompressionLevel{
	lz4.Fast, lz4.Level1, lz4.Level2, lz4.Level3, lz4.Level4,
	lz4.Level5, lz4.Level6, lz4.Level7, lz4.Level8, lz4.Level9,
}

// lz4Codec writes the lz4 frame format
type lz4Codec struct {
	level lz4.CompressionLevel
}

func newLZ4Codec(opts LZ4Options) (*lz4Codec, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &lz4Codec{level: lz4Levels[opts.level()]}, nil
}

func (c *lz4Codec) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if err := w.Apply(lz4.CompressionLevelOption(c.level)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOption, err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *lz4Codec) Decompress(data []byte) ([]byte, error) {
	return io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
}

// snappyCodec writes the snappy framing format
type snappyCodec struct{}

func (snappyCodec) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := snappy.NewBufferedWriter(&buf)
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (snappyCodec) Decompress(data []byte) ([]byte, error) {
	return io.ReadAll(snappy.NewReader(bytes.NewReader(data)))
}

// s2Codec writes s2 blocks using the strongest encoder
type s2Codec struct{}

func (s2Codec) Compress(data []byte) ([]byte, error) {
	return s2.EncodeBest(nil, data), nil
}

func (s2Codec) Decompress(data []byte) ([]byte, error) {
	return s2.Decode(nil, data)
}
