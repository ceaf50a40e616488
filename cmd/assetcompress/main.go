package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/absfs/assetcompress"
	"github.com/absfs/assetcompress/internal/config"
	"github.com/absfs/assetcompress/internal/logging"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// options holds the parsed command line.
type options struct {
	configPath string
	algorithm  string
	deleteOrig bool
	threshold  int64
	minRatio   float64
	metricsOut string
	logLevel   string
	version    bool
	dir        string
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("assetcompress", flag.ContinueOnError)
	fs.SetOutput(stderr)

	opts := &options{}
	fs.StringVar(&opts.configPath, "config", "", "Path to YAML configuration file")
	fs.StringVar(&opts.algorithm, "algorithm", "", "Override compression algorithm")
	fs.BoolVar(&opts.deleteOrig, "delete", false, "Delete original files after compression")
	fs.Int64Var(&opts.threshold, "threshold", -1, "Override minimum asset size in bytes")
	fs.Float64Var(&opts.minRatio, "min-ratio", -1, "Override largest accepted compressed/original ratio")
	fs.StringVar(&opts.metricsOut, "metrics-out", "", "Write prometheus metrics to this textfile")
	fs.StringVar(&opts.logLevel, "log-level", "", "Override log level (debug, info, warn, error)")
	fs.BoolVar(&opts.version, "version", false, "Print version and exit")

	fs.Usage = func() {
		fmt.Fprintln(stderr, `Usage: assetcompress [options] <dir>

Pre-compress the build output in <dir>. Scripts and stylesheets are
compressed first, then documents; compressed copies are written next to
the originals.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 1 {
		fs.Usage()
		return nil, fmt.Errorf("expected one directory, got %d arguments", fs.NArg())
	}
	opts.dir = fs.Arg(0)
	return opts, nil
}

func loadConfig(opts *options) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.configPath != "" {
		cfg, err = config.Read(opts.configPath)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.Default()
		cfg.ApplyEnvOverrides()
	}

	// Apply CLI overrides
	if opts.algorithm != "" {
		cfg.Algorithm = opts.algorithm
	}
	if opts.deleteOrig {
		cfg.DeleteOriginals = true
	}
	if opts.threshold >= 0 {
		cfg.Threshold = opts.threshold
	}
	if opts.minRatio >= 0 {
		cfg.MinRatio = opts.minRatio
	}
	if opts.metricsOut != "" {
		cfg.Metrics.Textfile = opts.metricsOut
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	if opts.dir != "" {
		cfg.OutputDir = opts.dir
	}
	if cfg.OutputDir == "" {
		return nil, errors.New("no build directory given")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	// .env is optional
	_ = godotenv.Load()

	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if opts.version {
		fmt.Fprintf(stdout, "assetcompress version %s (built %s)\n", version, buildTime)
		return 0
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintf(stderr, "failed to load config: %v\n", err)
		return 1
	}

	base, closeLog, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(stderr, "%v, logging to stderr\n", err)
	}
	defer closeLog()
	log, runID := logging.WithRunID(base)

	ccfg, err := cfg.ToCompressorConfig()
	if err != nil {
		fmt.Fprintf(stderr, "failed to load config: %v\n", err)
		return 1
	}
	reg := prometheus.NewRegistry()
	fsys := assetcompress.NewOSFS()
	ccfg.Logger = &log
	ccfg.Metrics = assetcompress.NewMetrics(reg)
	ccfg.FS = fsys

	c, err := assetcompress.New(ccfg)
	if err != nil {
		fmt.Fprintf(stderr, "failed to create compressor: %v\n", err)
		return 1
	}

	dir := cfg.OutputDir
	assets, err := assetcompress.LoadAssets(fsys, dir)
	if err != nil {
		fmt.Fprintf(stderr, "failed to load assets: %v\n", err)
		return 1
	}
	log.Info().Str("dir", dir).Int("assets", assets.Len()).Str("algorithm", string(c.Algorithm())).Msg("build started")

	// Everything set after loading is new output, including compressed
	// files that replace ones left by an earlier run.
	loaded := assets.Mark()
	pipeline := &assetcompress.Pipeline{
		Write: func(ctx context.Context, assets *assetcompress.AssetMap) error {
			return assetcompress.WriteAssets(fsys, dir, assets, assets.ChangedSince(loaded))
		},
	}
	assetcompress.NewPlugin(c).Apply(pipeline)

	report, runErr := pipeline.Run(ctx, assets)

	if cfg.Metrics.Textfile != "" {
		if err := prometheus.WriteToTextfile(cfg.Metrics.Textfile, reg); err != nil {
			log.Warn().Err(err).Str("path", cfg.Metrics.Textfile).Msg("failed to write metrics")
		}
	}

	printSummary(stdout, runID, c.GetStats(), report, runErr)
	if runErr != nil {
		return 1
	}
	return 0
}

func printSummary(w io.Writer, runID string, stats *assetcompress.Stats, report assetcompress.DeletionReport, runErr error) {
	ok := color.New(color.FgGreen)
	warn := color.New(color.FgYellow)
	bad := color.New(color.FgRed)

	fmt.Fprintf(w, "run %s\n", runID)
	ok.Fprintf(w, "  compressed %d assets", stats.AssetsCompressed)
	if stats.BytesIn > 0 {
		fmt.Fprintf(w, " (%d -> %d bytes, %.1f%% saved)",
			stats.BytesIn, stats.BytesOut,
			assetcompress.GetCompressionPercentage(stats.BytesIn, stats.BytesOut))
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  skipped %d assets\n", stats.AssetsSkipped)
	if len(report.Deleted) > 0 || len(report.Missing) > 0 {
		fmt.Fprintf(w, "  deleted %d originals\n", len(report.Deleted))
	}
	for _, f := range report.Failed {
		warn.Fprintf(w, "  could not delete %s: %v\n", f.Path, f.Err)
	}
	if runErr != nil {
		bad.Fprintf(w, "  build failed: %v\n", runErr)
	}
}
