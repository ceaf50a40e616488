package assetcompress

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestOutputName(t *testing.T) {
	tests := []struct {
		template string
		name     string
		want     string
	}{
		{"[path].gz[query]", "app.js", "app.js.gz"},
		{"[path].gz[query]", "app.js?v=2", "app.js.gz?v=2"},
		{"[path].br[query]", "css/site.css?hash=abc&x=1", "css/site.css.br?hash=abc&x=1"},
		{"[file].gz", "app.js?v=2", "app.js?v=2.gz"},
		{"[path].gz", "app.js?v=2", "app.js.gz"},
		{"gz/[path][query]", "js/app.js?v=1", "gz/js/app.js?v=1"},
		{"[path].gz[query]", "app.js?", "app.js.gz"},
		{"[path]-[path].gz", "a.js", "a.js-a.js.gz"},
	}

	for _, tt := range tests {
		t.Run(tt.template+" "+tt.name, func(t *testing.T) {
			if got := OutputName(tt.template, tt.name); got != tt.want {
				t.Errorf("OutputName(%q, %q) = %q, want %q", tt.template, tt.name, got, tt.want)
			}
		})
	}
}

func TestDefaultAssetTemplate(t *testing.T) {
	for algo, ext := range extensionMap {
		want := "[path]" + ext + "[query]"
		if got := DefaultAssetTemplate(algo); got != want {
			t.Errorf("%s: expected %s, got %s", algo, want, got)
		}
		if err := validateTemplate(DefaultAssetTemplate(algo)); err != nil {
			t.Errorf("%s: default template rejected: %v", algo, err)
		}
	}
}

func TestValidateTemplate(t *testing.T) {
	valid := []string{"[path].gz[query]", "[file].gz", "out/[path]", "[path].br"}
	invalid := []string{"", "app.gz", "[query].gz", "[file]", "[path]", "[file][query]", "[path][query]"}

	for _, tmpl := range valid {
		if err := validateTemplate(tmpl); err != nil {
			t.Errorf("Expected %q to be valid: %v", tmpl, err)
		}
	}
	for _, tmpl := range invalid {
		if err := validateTemplate(tmpl); !errors.Is(err, ErrInvalidOption) {
			t.Errorf("Expected %q to be rejected, got %v", tmpl, err)
		}
	}
}

func TestSplitName(t *testing.T) {
	tests := []struct {
		name, path, query string
	}{
		{"app.js", "app.js", ""},
		{"app.js?v=2", "app.js", "v=2"},
		{"a/b.css?x=1?y=2", "a/b.css", "x=1?y=2"},
		{"?only", "", "only"},
	}
	for _, tt := range tests {
		p, q := splitName(tt.name)
		if p != tt.path || q != tt.query {
			t.Errorf("splitName(%q) = %q, %q; want %q, %q", tt.name, p, q, tt.path, tt.query)
		}
	}
}

func TestExtensionDetection(t *testing.T) {
	tests := []struct {
		name     string
		wantAlgo Algorithm
		wantOK   bool
	}{
		{"app.js.gz", AlgorithmGzip, true},
		{"app.js.GZ", AlgorithmGzip, true},
		{"app.js.br", AlgorithmBrotli, true},
		{"app.js.zst", AlgorithmZstd, true},
		{"app.js.zz", AlgorithmDeflate, true},
		{"app.js.deflate", AlgorithmDeflateRaw, true},
		{"app.js.lz4", AlgorithmLZ4, true},
		{"app.js.sz", AlgorithmSnappy, true},
		{"app.js.s2", AlgorithmS2, true},
		{"app.js.gz?v=2", AlgorithmGzip, true},
		{"app.js", "", false},
		{"app.js?v=x.gz", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			algo, ok := DetectAlgorithmFromExtension(tt.name)
			if ok != tt.wantOK || algo != tt.wantAlgo {
				t.Errorf("DetectAlgorithmFromExtension(%q) = %s, %v; want %s, %v", tt.name, algo, ok, tt.wantAlgo, tt.wantOK)
			}
			if HasCompressionExtension(tt.name) != tt.wantOK {
				t.Errorf("HasCompressionExtension(%q) != %v", tt.name, tt.wantOK)
			}
		})
	}
}

func TestGetExtension(t *testing.T) {
	for _, algo := range Algorithms {
		ext := GetExtension(algo)
		if !strings.HasPrefix(ext, ".") {
			t.Errorf("%s: unexpected extension %q", algo, ext)
		}
	}
	if GetExtension(AlgorithmZopfli) != GetExtension(AlgorithmGzip) {
		t.Error("Expected zopfli to share the gzip extension")
	}
	if GetExtension("lzma") != "" {
		t.Error("Expected no extension for an unknown algorithm")
	}
}

func TestMagicBytesDetection(t *testing.T) {
	data := generateHighlyCompressibleData(4096)

	for _, algo := range []Algorithm{AlgorithmGzip, AlgorithmZopfli, AlgorithmZstd, AlgorithmLZ4, AlgorithmSnappy} {
		t.Run(string(algo), func(t *testing.T) {
			out, err := CompressBytes(data, algo, 0)
			if err != nil {
				t.Fatalf("Failed to compress: %v", err)
			}

			want := algo
			if algo == AlgorithmZopfli {
				want = AlgorithmGzip
			}
			got, ok := IsCompressed(out)
			if !ok || got != want {
				t.Errorf("IsCompressed = %s, %v; want %s", got, ok, want)
			}

			got, err = DetectAlgorithm(bytes.NewReader(out))
			if err != nil {
				t.Fatalf("Failed to detect: %v", err)
			}
			if got != want {
				t.Errorf("DetectAlgorithm = %s, want %s", got, want)
			}
		})
	}

	if _, ok := IsCompressed(data); ok {
		t.Error("Expected plain text not to be detected as compressed")
	}
	if algo, err := DetectAlgorithm(bytes.NewReader([]byte{0x1f})); err != nil || algo != "" {
		t.Errorf("Expected short input to be undetected, got %s, %v", algo, err)
	}
}
