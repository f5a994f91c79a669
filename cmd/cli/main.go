// Package main provides the ecosort command-line tool.
// Uses Cobra for command parsing: Cobra is the standard Go CLI framework
// (used by kubectl, docker, hugo, and many others).
//
// Run with: go run ./cmd/cli classify photo.jpg
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fleveque/ecosort/internal/app"
	"github.com/fleveque/ecosort/internal/capture"
	"github.com/fleveque/ecosort/internal/capture/gocvcam"
	"github.com/fleveque/ecosort/internal/config"
	"github.com/fleveque/ecosort/internal/model"
	"github.com/fleveque/ecosort/internal/session"
	"github.com/fleveque/ecosort/internal/tui"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// globalOptions are the flags shared by every subcommand.
type globalOptions struct {
	configPath string
	verbose    bool
}

// rootCmd creates the root command. Cobra builds a tree of commands:
// ecosort classify a.jpg b.jpg
// ecosort scan
func rootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:          "ecosort",
		Short:        "Sort waste from a photo",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", os.Getenv("ECOSORT_CONFIG_PATH"), "Path to config.yaml")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log pipeline details to stderr")

	root.AddCommand(classifyCmd(opts), scanCmd(opts), statsCmd(opts), versionCmd())
	return root
}

func classifyCmd(opts *globalOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "classify <image>...",
		Short: "Classify one or more image files",
		// cobra.MinimumNArgs validates positional arguments before RunE runs.
		Args: cobra.MinimumNArgs(1),
		// RunE returns an error (vs Run which doesn't). Cobra prints the error automatically.
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClassify(cmd.Context(), opts, args, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON")
	return cmd
}

func scanCmd(opts *globalOptions) *cobra.Command {
	var logFile string

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Interactive camera and upload screen",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd.Context(), opts, logFile)
		},
	}

	// The terminal belongs to the UI, so logs go to a file.
	cmd.Flags().StringVar(&logFile, "log-file", "ecosort-scan.log", "Where to write logs while the UI runs")
	return cmd
}

func statsCmd(opts *globalOptions) *cobra.Command {
	var (
		asJSON bool
		recent int
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show classification ledger statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd.Context(), opts, asJSON, recent)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print statistics as JSON")
	cmd.Flags().IntVar(&recent, "recent", 0, "Also list the N most recent classifications")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "ecosort", version)
		},
	}
}

// setup loads config and builds the pipeline. The caller closes the App.
func setup(ctx context.Context, opts *globalOptions, logger *zap.Logger) (*app.App, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if logger == nil {
		// Always use development mode for the CLI: readable lines on stderr.
		// Only warnings show unless --verbose, so they don't tear the progress bar.
		level := "warn"
		if opts.verbose {
			level = cfg.Log.Level
		}
		if logger, err = app.NewLogger(level, true); err != nil {
			return nil, fmt.Errorf("creating logger: %w", err)
		}
	}
	return app.New(ctx, cfg, logger)
}

// signalContext cancels on Ctrl+C so an in-flight batch stops cleanly.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

func runClassify(ctx context.Context, opts *globalOptions, files []string, asJSON bool) error {
	ctx, stop := signalContext(ctx)
	defer stop()

	a, err := setup(ctx, opts, nil)
	if err != nil {
		return err
	}
	defer a.Close()
	defer func() { _ = a.Logger.Sync() }()

	var bar *progressbar.ProgressBar
	if len(files) > 1 {
		bar = newProgressBar(len(files))
	}

	lang := a.Config.UI.Language
	outcomes := make([]outcome, 0, len(files))
	failed := 0

	for _, path := range files {
		if ctx.Err() != nil {
			break
		}

		o := outcome{File: path}
		img, err := capture.LoadFromFile(path, a.Config.Capture.MaxUploadBytes)
		if err == nil {
			var r model.ClassificationResult
			if r, err = a.Service.Classify(ctx, img); err == nil {
				o.Result = &r
			}
		}
		if err != nil {
			failed++
			o.Error = session.Message(err, lang)
			a.Logger.Debug("classifying file", zap.String("file", path), zap.Error(err))
		}
		outcomes = append(outcomes, o)

		if bar != nil {
			_ = bar.Add(1)
		}
	}

	out := os.Stdout
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(outcomes); err != nil {
			return err
		}
	} else {
		for _, o := range outcomes {
			fmt.Fprintln(out, renderOutcome(o, lang))
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d images could not be classified", failed, len(outcomes))
	}
	return ctx.Err()
}

func runScan(ctx context.Context, opts *globalOptions, logFile string) error {
	ctx, stop := signalContext(ctx)
	defer stop()

	logger, err := fileLogger(logFile)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	a, err := setup(ctx, opts, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := a.Config
	cameras := capture.NewProvider(cfg.Camera, gocvcam.Opener(cfg.Camera.WarmupFrames), logger)
	s := session.New("terminal", a.Service, session.ProviderCamera(cameras), cfg.UI.Language, logger)
	// Close releases the camera even when the UI exits mid-capture.
	defer s.Close()

	return tui.Run(s, cfg.Capture.MaxUploadBytes)
}

func runStats(ctx context.Context, opts *globalOptions, asJSON bool, recent int) error {
	a, err := setup(ctx, opts, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.Service.Stats(ctx)
	if err != nil {
		return fmt.Errorf("reading stats: %w", err)
	}

	report := statsReport{Stats: stats}
	if recent > 0 {
		if report.Recent, err = a.Service.Recent(ctx, recent); err != nil {
			return fmt.Errorf("reading recent classifications: %w", err)
		}
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	fmt.Fprintln(os.Stdout, renderStats(report, a.Config.UI.Language))
	return nil
}

// fileLogger writes development-format logs to path.
func fileLogger(path string) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{path}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("creating log file %s: %w", path, err)
	}
	return logger, nil
}

func newProgressBar(total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]Classifying images...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(os.Stderr)
		}),
	)
}
