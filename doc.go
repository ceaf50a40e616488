// Package assetcompress compresses build output assets and writes the
// compressed copies next to the originals, the way a bundler plugin
// pre-compresses scripts, stylesheets and documents for static serving.
//
// A Compressor runs in three lifecycle phases of a build:
//
//   - OptimizeAssets compresses assets selected by Config.Test
//     (scripts and stylesheets by default)
//   - Emit compresses assets selected by Config.TestHTML
//     (documents by default), seeing the map as OptimizeAssets left it
//   - Done removes the original files queued while compressing, when
//     Config.DeleteOriginals is set
//
// Each selected asset is compressed concurrently. Assets smaller than
// Config.Threshold, or whose compressed size exceeds Config.MinRatio of the
// original, are left alone. Compressed content is inserted into the asset
// map under a name rendered from Config.Asset.
//
// # Quick Start
//
//	c, err := assetcompress.New(&assetcompress.Config{
//	    Algorithm: assetcompress.AlgorithmBrotli,
//	    Threshold: 1024,
//	})
//	if err != nil {
//	    return err
//	}
//
//	assets, _ := assetcompress.LoadAssets(assetcompress.NewOSFS(), "dist")
//	queue := assetcompress.NewDeletionQueue()
//	if err := c.OptimizeAssets(ctx, assets, queue); err != nil {
//	    return err
//	}
//	// app.js is now accompanied by app.js.br
//
// # Output Names
//
// The template placeholders are
//
//   - [file]  the full asset name, including any query string
//   - [path]  the asset name without its query string
//   - [query] the query string with its leading "?", or nothing
//
// The default template is "[path]" + GetExtension(Algorithm) + "[query]",
// so "app.js?v=2" becomes "app.js.gz?v=2" with gzip.
//
// # Algorithms
//
//   - gzip, deflate, deflateRaw: deflate family, tuned by GzipOptions
//   - zopfli: gzip output from iterated optimal parsing and block
//     splitting, tuned by ZopfliOptions. Slow, smallest gzip.
//   - brotli: best ratio for text served over HTTP
//   - zstd: fast with a good ratio, optional raw dictionary
//   - lz4, snappy, s2: fastest, moderate ratio
//
// A custom Codec may replace the built-in algorithms entirely.
//
// # Build Hosts
//
// Plugin registers the three phases with any host implementing Hooks.
// Pipeline is a small host that runs the phases in order over an AssetMap.
package assetcompress
