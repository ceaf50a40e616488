package assetcompress_test

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/absfs/assetcompress"
)

func Example_basic() {
	c, err := assetcompress.New(&assetcompress.Config{
		Algorithm: assetcompress.AlgorithmGzip,
	})
	if err != nil {
		log.Fatal(err)
	}

	assets := assetcompress.NewAssetMap()
	assets.Set("main.js", assetcompress.StringSource(strings.Repeat("console.log('hello');\n", 50)))
	assets.Set("index.html", assetcompress.StringSource(strings.Repeat("<p>hello</p>\n", 50)))

	ctx := context.Background()
	if err := c.OptimizeAssets(ctx, assets, nil); err != nil {
		log.Fatal(err)
	}
	fmt.Println("after optimize:", assets.Names())

	if err := c.Emit(ctx, assets, nil); err != nil {
		log.Fatal(err)
	}
	fmt.Println("after emit:", assets.Names())
	// Output:
	// after optimize: [index.html main.js main.js.gz]
	// after emit: [index.html index.html.gz main.js main.js.gz]
}

func Example_queryString() {
	c, err := assetcompress.New(&assetcompress.Config{
		Algorithm: assetcompress.AlgorithmBrotli,
	})
	if err != nil {
		log.Fatal(err)
	}

	assets := assetcompress.NewAssetMap()
	assets.Set("app.js?v=2", assetcompress.StringSource(strings.Repeat("var a = 1;\n", 100)))

	r, err := c.CompressAsset(context.Background(), assets, "app.js?v=2", nil)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(r.Output)
	// Output: app.js.br?v=2
}

func Example_threshold() {
	c, err := assetcompress.New(&assetcompress.Config{
		Threshold: 1024,
	})
	if err != nil {
		log.Fatal(err)
	}

	assets := assetcompress.NewAssetMap()
	assets.Set("small.js", assetcompress.StringSource("let x = 1;"))
	assets.Set("large.js", assetcompress.StringSource(strings.Repeat("let x = 1;\n", 200)))

	if err := c.OptimizeAssets(context.Background(), assets, nil); err != nil {
		log.Fatal(err)
	}

	fmt.Println(assets.Names())
	fmt.Println("below threshold:", c.SkipCount(assetcompress.SkipBelowThreshold))
	// Output:
	// [large.js large.js.gz small.js]
	// below threshold: 1
}

func Example_deleteOriginals() {
	fsys := assetcompress.NewMemFS()

	build := assetcompress.NewAssetMap()
	build.Set("styles.css", assetcompress.StringSource(strings.Repeat("a { color: red }\n", 100)))
	if err := assetcompress.WriteAssets(fsys, "dist", build, build.Names()); err != nil {
		log.Fatal(err)
	}

	c, err := assetcompress.New(&assetcompress.Config{
		DeleteOriginals: true,
		OutputDir:       "dist",
		FS:              fsys,
	})
	if err != nil {
		log.Fatal(err)
	}

	pipeline := &assetcompress.Pipeline{
		Write: func(ctx context.Context, assets *assetcompress.AssetMap) error {
			return assetcompress.WriteAssets(fsys, "dist", assets, assets.Names())
		},
	}
	assetcompress.NewPlugin(c).Apply(pipeline)

	report, err := pipeline.Run(context.Background(), build)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("deleted:", report.Deleted)

	left, err := assetcompress.LoadAssets(fsys, "dist")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("on disk:", left.Names())
	// Output:
	// deleted: [dist/styles.css]
	// on disk: [styles.css.gz]
}

func Example_customCodec() {
	upper := assetcompress.CodecFunc(func(data []byte) ([]byte, error) {
		return []byte(strings.ToUpper(string(data[:len(data)/2]))), nil
	})

	c, err := assetcompress.New(&assetcompress.Config{
		Codec: upper,
		Asset: "[path].half",
	})
	if err != nil {
		log.Fatal(err)
	}

	assets := assetcompress.NewAssetMap()
	assets.Set("a.css", assetcompress.StringSource("abcdefgh"))

	r, err := c.CompressAsset(context.Background(), assets, "a.css", nil)
	if err != nil {
		log.Fatal(err)
	}
	src, _ := assets.Get(r.Output)
	data, _ := src.Bytes()
	fmt.Printf("%s %s %.2f\n", r.Output, data, r.Ratio())
	// Output: a.css.half ABCD 0.50
}

func ExampleNewMatcher() {
	m, err := assetcompress.NewMatcher(`\.js$`, "glob:static/**/*.svg")
	if err != nil {
		log.Fatal(err)
	}

	for _, name := range []string{"app.js", "static/icons/x.svg", "logo.svg"} {
		fmt.Println(name, m.Match(name))
	}
	// Output:
	// app.js true
	// static/icons/x.svg true
	// logo.svg false
}
