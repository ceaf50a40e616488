package assetcompress

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math/bits"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"
)

func TestAllAlgorithmsRoundTrip(t *testing.T) {
	inputs := map[string][]byte{
		"empty":        {},
		"small":        []byte("Hello, World!"),
		"compressible": generateHighlyCompressibleData(64 * 1024),
		"random":       generateIncompressibleData(8 * 1024),
	}

	for _, algo := range Algorithms {
		for name, data := range inputs {
			t.Run(string(algo)+"/"+name, func(t *testing.T) {
				codec, err := NewCodec(algo, nil)
				if err != nil {
					t.Fatalf("Failed to create codec: %v", err)
				}

				compressed, err := codec.Compress(data)
				if err != nil {
					t.Fatalf("Failed to compress: %v", err)
				}

				d, ok := codec.(Decompressor)
				if !ok {
					t.Fatalf("Codec %T does not implement Decompressor", codec)
				}
				decompressed, err := d.Decompress(compressed)
				if err != nil {
					t.Fatalf("Failed to decompress: %v", err)
				}

				if !bytes.Equal(decompressed, data) {
					t.Fatalf("Round trip mismatch: got %d bytes, want %d", len(decompressed), len(data))
				}
			})
		}
	}
}

func TestCompressionReducesSize(t *testing.T) {
	data := generateHighlyCompressibleData(32 * 1024)

	for _, algo := range Algorithms {
		t.Run(string(algo), func(t *testing.T) {
			out, err := CompressBytes(data, algo, 0)
			if err != nil {
				t.Fatalf("Failed to compress: %v", err)
			}
			ratio := GetCompressionRatio(int64(len(data)), int64(len(out)))
			if ratio >= 0.5 {
				t.Errorf("Expected ratio below 0.5 for repetitive data, got %.3f", ratio)
			}
			t.Logf("%s: %d -> %d bytes (%.1f%%)", algo, len(data), len(out), ratio*100)
		})
	}
}

func TestParseAlgorithm(t *testing.T) {
	tests := []struct {
		name    string
		want    Algorithm
		wantErr bool
	}{
		{"gzip", AlgorithmGzip, false},
		{"GZIP", AlgorithmGzip, false},
		{"deflate", AlgorithmDeflate, false},
		{"deflateRaw", AlgorithmDeflateRaw, false},
		{"deflateraw", AlgorithmDeflateRaw, false},
		{"zopfli", AlgorithmZopfli, false},
		{"Brotli", AlgorithmBrotli, false},
		{"zstd", AlgorithmZstd, false},
		{"lz4", AlgorithmLZ4, false},
		{"snappy", AlgorithmSnappy, false},
		{"s2", AlgorithmS2, false},
		{"lzma", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAlgorithm(tt.name)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedAlgorithm) {
					t.Fatalf("Expected ErrUnsupportedAlgorithm, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestNewCodecInvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		algo Algorithm
		cfg  Config
	}{
		{"gzip level too high", AlgorithmGzip, Config{Gzip: GzipOptions{Level: 10}}},
		{"gzip negative level", AlgorithmGzip, Config{Gzip: GzipOptions{Level: -1}}},
		{"window bits too small", AlgorithmGzip, Config{Gzip: GzipOptions{WindowBits: 7}}},
		{"window bits too large", AlgorithmDeflateRaw, Config{Gzip: GzipOptions{WindowBits: 16}}},
		{"window bits on zlib", AlgorithmDeflate, Config{Gzip: GzipOptions{WindowBits: 12}}},
		{"unknown strategy", AlgorithmGzip, Config{Gzip: GzipOptions{Strategy: "rle"}}},
		{"unknown flush", AlgorithmGzip, Config{Gzip: GzipOptions{Flush: "full"}}},
		{"huffman with window", AlgorithmGzip, Config{Gzip: GzipOptions{Strategy: StrategyHuffmanOnly, WindowBits: 10}}},
		{"gzip dictionary", AlgorithmGzip, Config{Gzip: GzipOptions{Dictionary: []byte("dict")}}},
		{"parallel deflate", AlgorithmDeflate, Config{Gzip: GzipOptions{Parallel: true}}},
		{"parallel window", AlgorithmGzip, Config{Gzip: GzipOptions{Parallel: true, WindowBits: 12}}},
		{"zopfli negative iterations", AlgorithmZopfli, Config{Zopfli: ZopfliOptions{NumIterations: -1}}},
		{"brotli quality", AlgorithmBrotli, Config{Brotli: BrotliOptions{Quality: 12}}},
		{"brotli lgwin", AlgorithmBrotli, Config{Brotli: BrotliOptions{LGWin: 9}}},
		{"zstd level", AlgorithmZstd, Config{Zstd: ZstdOptions{Level: 23}}},
		{"lz4 level", AlgorithmLZ4, Config{LZ4: LZ4Options{Level: 10}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCodec(tt.algo, &tt.cfg)
			if !errors.Is(err, ErrInvalidOption) {
				t.Fatalf("Expected ErrInvalidOption, got %v", err)
			}
		})
	}
}

func TestNewCodecUnsupported(t *testing.T) {
	_, err := NewCodec("lzma", nil)
	if !errors.Is(err, ErrUnsupportedAlgorithm) {
		t.Fatalf("Expected ErrUnsupportedAlgorithm, got %v", err)
	}
}

func TestDeflateFamilyOptions(t *testing.T) {
	data := generateHighlyCompressibleData(100 * 1024)

	tests := []struct {
		name string
		algo Algorithm
		opts GzipOptions
	}{
		{"gzip level 1", AlgorithmGzip, GzipOptions{Level: 1}},
		{"gzip huffman only", AlgorithmGzip, GzipOptions{Strategy: StrategyHuffmanOnly}},
		{"gzip window", AlgorithmGzip, GzipOptions{WindowBits: 10}},
		{"gzip sync flush", AlgorithmGzip, GzipOptions{Level: 6, Flush: FlushSync, ChunkSize: 4096}},
		{"gzip parallel", AlgorithmGzip, GzipOptions{Level: 6, Parallel: true}},
		{"deflate dictionary", AlgorithmDeflate, GzipOptions{Dictionary: []byte("The quick brown fox")}},
		{"deflate raw dictionary", AlgorithmDeflateRaw, GzipOptions{Dictionary: []byte("The quick brown fox")}},
		{"deflate raw window", AlgorithmDeflateRaw, GzipOptions{WindowBits: 9}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			codec, err := NewCodec(tt.algo, &Config{Gzip: tt.opts})
			if err != nil {
				t.Fatalf("Failed to create codec: %v", err)
			}
			out, err := codec.Compress(data)
			if err != nil {
				t.Fatalf("Failed to compress: %v", err)
			}
			back, err := codec.(Decompressor).Decompress(out)
			if err != nil {
				t.Fatalf("Failed to decompress: %v", err)
			}
			if !bytes.Equal(back, data) {
				t.Fatal("Round trip mismatch")
			}
		})
	}
}

func TestGzipOutputIsStandardGzip(t *testing.T) {
	data := generateTestData(50 * 1024)

	for _, algo := range []Algorithm{AlgorithmGzip, AlgorithmZopfli} {
		t.Run(string(algo), func(t *testing.T) {
			out, err := CompressBytes(data, algo, 0)
			if err != nil {
				t.Fatalf("Failed to compress: %v", err)
			}

			r, err := gzip.NewReader(bytes.NewReader(out))
			if err != nil {
				t.Fatalf("Output is not gzip: %v", err)
			}
			back, err := io.ReadAll(r)
			if err != nil {
				t.Fatalf("Failed to read gzip stream: %v", err)
			}
			if !bytes.Equal(back, data) {
				t.Fatal("Round trip mismatch")
			}
		})
	}
}

// generateScriptSource returns JavaScript-like text with varied identifiers.
func generateScriptSource(size int) []byte {
	words := []string{
		"const", "let", "return", "function", "render", "props", "state", "value",
		"index", "items", "length", "push", "map", "filter", "document", "window",
		"addEventListener", "querySelector", "className", "children", "await", "fetch",
	}
	var b strings.Builder
	seed := uint64(2024)
	for b.Len() < size {
		seed = seed*6364136223846793005 + 1442695040888963407
		w := words[(seed>>33)%uint64(len(words))]
		switch (seed >> 20) % 7 {
		case 0:
			fmt.Fprintf(&b, "%s%d = %s(%d);\n", w, (seed>>40)%97, words[(seed>>45)%uint64(len(words))], (seed>>50)%1000)
		case 1:
			fmt.Fprintf(&b, "  if (%s.%s > %d) {\n", w, words[(seed>>45)%uint64(len(words))], (seed>>52)%64)
		case 2:
			b.WriteString("  }\n")
		default:
			b.WriteString(w)
			b.WriteByte(' ')
		}
	}
	return []byte(b.String()[:size])
}

func TestZopfliSmallerThanGzip(t *testing.T) {
	data := generateScriptSource(48 * 1024)

	gz, err := CompressBytes(data, AlgorithmGzip, 9)
	if err != nil {
		t.Fatalf("Failed to gzip: %v", err)
	}
	zop, err := CompressBytes(data, AlgorithmZopfli, 0)
	if err != nil {
		t.Fatalf("Failed to zopfli: %v", err)
	}
	if len(zop) >= len(gz) {
		t.Errorf("Expected zopfli (%d bytes) to beat gzip -9 (%d bytes)", len(zop), len(gz))
	}

	back, err := DecompressBytes(zop, AlgorithmZopfli)
	if err != nil {
		t.Fatalf("Failed to decompress: %v", err)
	}
	if !bytes.Equal(back, data) {
		t.Fatal("Round trip mismatch")
	}
}

func TestZopfliNotLargerThanGzip(t *testing.T) {
	inputs := map[string][]byte{
		"repetitive": []byte(strings.Repeat("var answer = compute(41) + 1; // comment\n", 500)),
		"random":     generateIncompressibleData(16 * 1024),
		"empty":      {},
	}
	for name, data := range inputs {
		t.Run(name, func(t *testing.T) {
			gz, err := CompressBytes(data, AlgorithmGzip, 9)
			if err != nil {
				t.Fatalf("Failed to gzip: %v", err)
			}
			zop, err := CompressBytes(data, AlgorithmZopfli, 0)
			if err != nil {
				t.Fatalf("Failed to zopfli: %v", err)
			}
			if len(zop) > len(gz) {
				t.Errorf("Expected zopfli (%d bytes) to be no larger than gzip -9 (%d bytes)", len(zop), len(gz))
			}
		})
	}
}

func TestZopfliIterationsNeverHurt(t *testing.T) {
	data := generateScriptSource(16 * 1024)

	sizes := make(map[int]int)
	for _, n := range []int{1, 15} {
		out, err := CompressBytes(data, AlgorithmZopfli, n)
		if err != nil {
			t.Fatalf("Failed to compress with %d iterations: %v", n, err)
		}
		sizes[n] = len(out)
	}
	if sizes[15] > sizes[1] {
		t.Errorf("Expected 15 iterations (%d bytes) to be no larger than 1 (%d bytes)", sizes[15], sizes[1])
	}
}

func TestZopfliBlockSplitting(t *testing.T) {
	// Text followed by noise wants separate Huffman tables
	data := append(generateScriptSource(16*1024), generateIncompressibleData(16*1024)...)

	countBlocks := func(opts ZopfliOptions) int {
		var buf bytes.Buffer
		log := zerolog.New(&buf).Level(zerolog.DebugLevel)
		opts.VerboseMore = true
		codec, err := NewCodec(AlgorithmZopfli, &Config{Zopfli: opts, Logger: &log})
		if err != nil {
			t.Fatalf("Failed to create codec: %v", err)
		}
		out, err := codec.Compress(data)
		if err != nil {
			t.Fatalf("Failed to compress: %v", err)
		}
		back, err := codec.(Decompressor).Decompress(out)
		if err != nil {
			t.Fatalf("Failed to decompress: %v", err)
		}
		if !bytes.Equal(back, data) {
			t.Fatal("Round trip mismatch")
		}
		return strings.Count(buf.String(), "zopfli block split")
	}

	if n := countBlocks(ZopfliOptions{NumIterations: 2, DisableBlockSplitting: true}); n != 1 {
		t.Errorf("Expected 1 block without splitting, got %d", n)
	}
	if n := countBlocks(ZopfliOptions{NumIterations: 2}); n < 2 {
		t.Errorf("Expected the input to be split, got %d blocks", n)
	}
	if n := countBlocks(ZopfliOptions{NumIterations: 2, BlockSplittingLast: true}); n < 2 {
		t.Errorf("Expected the optimal parse to be split, got %d blocks", n)
	}
	if n := countBlocks(ZopfliOptions{NumIterations: 2, BlockSplittingMax: 2}); n > 2 {
		t.Errorf("Expected at most 2 blocks, got %d", n)
	}
}

func TestHuffmanLengthsLimited(t *testing.T) {
	// Fibonacci weights produce a tree deeper than the limit
	freqs := make([]int, 30)
	a, b := 1, 1
	for i := range freqs {
		freqs[i] = a
		a, b = b, a+b
	}

	lens := huffmanLengths(freqs, 15)
	kraft := 0.0
	for s, l := range lens {
		if l == 0 || l > 15 {
			t.Fatalf("Symbol %d has length %d", s, l)
		}
		kraft += 1 / float64(uint(1)<<l)
	}
	if kraft != 1 {
		t.Errorf("Expected a complete code, Kraft sum %v", kraft)
	}
}

func TestCanonicalCodes(t *testing.T) {
	// RFC 1951 section 3.2.2 example: lengths (3,3,3,3,3,2,4,4)
	lens := []uint8{3, 3, 3, 3, 3, 2, 4, 4}
	want := []uint16{0b010, 0b011, 0b100, 0b101, 0b110, 0b00, 0b1110, 0b1111}

	codes := canonicalCodes(lens)
	for s := range lens {
		got := bits.Reverse16(codes[s]) >> (16 - lens[s])
		if got != want[s] {
			t.Errorf("Symbol %d: expected code %b, got %b", s, want[s], got)
		}
	}
}

func TestRunLengthCodeLengths(t *testing.T) {
	lens := make([]uint8, 0, 160)
	lens = append(lens, 8, 8, 8, 8, 8, 8, 8)
	lens = append(lens, make([]uint8, 150)...)
	lens = append(lens, 5, 0, 0)

	h := &dynamicHeader{}
	h.runLength(lens)

	var decoded []uint8
	for i, s := range h.syms {
		switch s {
		case 16:
			for n := 0; n < int(h.extras[i])+3; n++ {
				decoded = append(decoded, decoded[len(decoded)-1])
			}
		case 17:
			decoded = append(decoded, make([]uint8, int(h.extras[i])+3)...)
		case 18:
			decoded = append(decoded, make([]uint8, int(h.extras[i])+11)...)
		default:
			decoded = append(decoded, s)
		}
	}
	if !bytes.Equal(decoded, lens) {
		t.Errorf("Run-length coding mismatch:\n got %v\nwant %v", decoded, lens)
	}
	if len(h.syms) >= len(lens)/4 {
		t.Errorf("Expected runs to be coded compactly, got %d symbols", len(h.syms))
	}
}

func TestZopfliOptions(t *testing.T) {
	data := generateTestData(20 * 1024)

	tests := []struct {
		name string
		opts ZopfliOptions
	}{
		{"defaults", ZopfliOptions{}},
		{"single iteration", ZopfliOptions{NumIterations: 1}},
		{"no block splitting", ZopfliOptions{NumIterations: 3, DisableBlockSplitting: true}},
		{"split last", ZopfliOptions{NumIterations: 3, BlockSplittingLast: true, BlockSplittingMax: 4}},
		{"many iterations", ZopfliOptions{NumIterations: 100}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			codec, err := NewCodec(AlgorithmZopfli, &Config{Zopfli: tt.opts})
			if err != nil {
				t.Fatalf("Failed to create codec: %v", err)
			}
			out, err := codec.Compress(data)
			if err != nil {
				t.Fatalf("Failed to compress: %v", err)
			}
			back, err := codec.(Decompressor).Decompress(out)
			if err != nil {
				t.Fatalf("Failed to decompress: %v", err)
			}
			if !bytes.Equal(back, data) {
				t.Fatal("Round trip mismatch")
			}
		})
	}
}

func TestZopfliVerboseLogging(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf).Level(zerolog.DebugLevel)

	codec, err := NewCodec(AlgorithmZopfli, &Config{
		Zopfli: ZopfliOptions{NumIterations: 2, BlockSplittingMax: 2, VerboseMore: true},
		Logger: &log,
	})
	if err != nil {
		t.Fatalf("Failed to create codec: %v", err)
	}
	if _, err := codec.Compress(generateTestData(4096)); err != nil {
		t.Fatalf("Failed to compress: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "zopfli pass") {
		t.Errorf("Expected pass log lines, got %q", out)
	}
	if !strings.Contains(out, "zopfli block split") {
		t.Errorf("Expected block split log lines, got %q", out)
	}
}

func TestZopfliQuietByDefault(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf).Level(zerolog.DebugLevel)

	codec, err := NewCodec(AlgorithmZopfli, &Config{
		Zopfli: ZopfliOptions{NumIterations: 2},
		Logger: &log,
	})
	if err != nil {
		t.Fatalf("Failed to create codec: %v", err)
	}
	if _, err := codec.Compress(generateTestData(4096)); err != nil {
		t.Fatalf("Failed to compress: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("Expected no log output, got %q", buf.String())
	}
}

func TestZstdDictionary(t *testing.T) {
	dict := []byte(strings.Repeat("export function render(props) { return h('div', props); }\n", 20))
	data := []byte("export function render(props) { return h('span', props); }\n")

	withDict, err := NewCodec(AlgorithmZstd, &Config{Zstd: ZstdOptions{Level: 3, Dictionary: dict}})
	if err != nil {
		t.Fatalf("Failed to create codec: %v", err)
	}
	plain, err := NewCodec(AlgorithmZstd, &Config{Zstd: ZstdOptions{Level: 3}})
	if err != nil {
		t.Fatalf("Failed to create codec: %v", err)
	}

	a, err := withDict.Compress(data)
	if err != nil {
		t.Fatalf("Failed to compress: %v", err)
	}
	b, err := plain.Compress(data)
	if err != nil {
		t.Fatalf("Failed to compress: %v", err)
	}
	if len(a) >= len(b) {
		t.Errorf("Expected dictionary to help: %d >= %d", len(a), len(b))
	}

	back, err := withDict.(Decompressor).Decompress(a)
	if err != nil {
		t.Fatalf("Failed to decompress: %v", err)
	}
	if !bytes.Equal(back, data) {
		t.Fatal("Round trip mismatch")
	}
}

func TestCodecsConcurrentUse(t *testing.T) {
	data := generateHighlyCompressibleData(16 * 1024)

	for _, algo := range []Algorithm{AlgorithmGzip, AlgorithmZstd, AlgorithmBrotli, AlgorithmLZ4} {
		t.Run(string(algo), func(t *testing.T) {
			codec, err := NewCodec(algo, nil)
			if err != nil {
				t.Fatalf("Failed to create codec: %v", err)
			}

			errs := make(chan error, 8)
			for i := 0; i < 8; i++ {
				go func() {
					out, err := codec.Compress(data)
					if err == nil {
						var back []byte
						back, err = codec.(Decompressor).Decompress(out)
						if err == nil && !bytes.Equal(back, data) {
							err = errors.New("round trip mismatch")
						}
					}
					errs <- err
				}()
			}
			for i := 0; i < 8; i++ {
				if err := <-errs; err != nil {
					t.Errorf("Concurrent codec use failed: %v", err)
				}
			}
		})
	}
}

func TestCodecFunc(t *testing.T) {
	called := false
	var c Codec = CodecFunc(func(data []byte) ([]byte, error) {
		called = true
		return data[:1], nil
	})
	out, err := c.Compress([]byte("abc"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !called || string(out) != "a" {
		t.Errorf("CodecFunc did not call through: %q", out)
	}
}
