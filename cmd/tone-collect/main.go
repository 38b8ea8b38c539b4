package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/theimaginaryfoundation/tone-probe/probe"
	"github.com/theimaginaryfoundation/tone-probe/probe/provider"
	"github.com/theimaginaryfoundation/tone-probe/probe/rowstore"
)

func main() {
	cfg, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	if cfg.PrintGridSchema {
		if err := printGridSchema(os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}
		return
	}

	grid, err := loadGrid(cfg.GridPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "missing OPENAI_API_KEY (or pass -api-key)")
		os.Exit(2)
	}

	logger, err := probe.NewLogger(cfg.Verbose)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := provider.NewClient(provider.ClientOptions{APIKey: apiKey, BaseURL: cfg.BaseURL})
	var completer probe.Completer
	switch cfg.API {
	case apiResponses:
		completer = provider.NewResponsesCompleter(&client, cfg.Attempts)
	default:
		completer = provider.NewChatCompleter(&client, cfg.Attempts)
	}

	start := time.Now()
	stats, err := run(ctx, cfg, grid, completer, os.Stdout, logger)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "interrupted after %d responses; rerun with -resume to continue\n", stats.Attempted)
		} else {
			fmt.Fprintf(os.Stderr, "failed collecting responses: %s\n", err.Error())
		}
		os.Exit(1)
	}

	fmt.Fprintf(os.Stdout, "run_id=%s planned=%d attempted=%d skipped=%d failed=%d out=%s elapsed=%s\n",
		stats.RunID, stats.Planned, stats.Attempted, stats.Skipped, stats.Failed, cfg.OutPath,
		time.Since(start).Round(time.Second))
}

func parseFlags(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := defaultConfig()
	fs.SetOutput(os.Stderr)

	fs.StringVar(&cfg.OutPath, "out", cfg.OutPath, "CSV file that responses are appended to")
	fs.StringVar(&cfg.GridPath, "grid", "", "Optional YAML grid file (task types, prompts, tones) replacing the built-in grid")
	fs.StringVar(&cfg.Model, "model", cfg.Model, "Model identifier sent with every request")
	fs.Float64Var(&cfg.Temperature, "temperature", cfg.Temperature, "Sampling temperature")
	fs.IntVar(&cfg.Runs, "runs", cfg.Runs, "Runs per (task type, tone, prompt) cell")
	fs.DurationVar(&cfg.Pause, "pause", cfg.Pause, "Minimum spacing between generation calls")
	fs.StringVar(&cfg.API, "api", cfg.API, "OpenAI API to call: chat|responses")
	fs.StringVar(&cfg.BaseURL, "base-url", "", "Optional OpenAI-compatible base URL")
	fs.StringVar(&cfg.APIKey, "api-key", "", "OpenAI API key (overrides OPENAI_API_KEY env var)")
	fs.IntVar(&cfg.Attempts, "attempts", cfg.Attempts, "Attempts per call; only rate-limit and server errors are retried")
	fs.BoolVar(&cfg.Resume, "resume", false, "Skip cells already present in -out")
	fs.BoolVar(&cfg.PrintGridSchema, "print-grid-schema", false, "Print the JSON Schema of the -grid file and exit")
	fs.BoolVar(&cfg.Verbose, "verbose", false, "Debug-level structured logging")

	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage:\n  %s [flags]\n\nFlags:\n", filepath.Base(os.Args[0]))
		fs.PrintDefaults()
		fmt.Fprintln(fs.Output(), "\nExample:")
		fmt.Fprintln(fs.Output(), "  go run ./cmd/tone-collect -runs 3 -out llm_politeness_responses.csv")
	}

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	cfg.API = strings.ToLower(strings.TrimSpace(cfg.API))
	if cfg.OutPath != "" {
		cfg.OutPath = filepath.Clean(cfg.OutPath)
	}
	if cfg.GridPath != "" {
		cfg.GridPath = filepath.Clean(cfg.GridPath)
	}
	return cfg, nil
}

func loadGrid(path string) (probe.Grid, error) {
	if path == "" {
		return defaultGrid(), nil
	}
	return probe.LoadGrid(path)
}

// run appends one record per grid cell to cfg.OutPath.
func run(ctx context.Context, cfg Config, grid probe.Grid, c probe.Completer, progress io.Writer, logger *zap.Logger) (probe.CollectStats, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var skip map[probe.CellKey]struct{}
	if cfg.Resume {
		if !rowstore.FileExists(cfg.OutPath) {
			logger.Info("nothing to resume, starting a new response file", zap.String("out", cfg.OutPath))
		}
		cells, err := probe.RecordedCells(cfg.OutPath)
		if err != nil {
			return probe.CollectStats{}, err
		}
		skip = cells
	}

	sink, err := probe.OpenCSVSink(cfg.OutPath)
	if err != nil {
		return probe.CollectStats{}, err
	}

	stats, err := probe.Collect(ctx, grid, c, sink, probe.CollectOptions{
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		Runs:        cfg.Runs,
		Pause:       cfg.Pause,
		Skip:        skip,
		Progress:    progress,
		Logger:      logger,
	})
	if cerr := sink.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return stats, err
}

func printGridSchema(w io.Writer) error {
	schema, err := provider.GenerateSchema[probe.Grid]()
	if err != nil {
		return fmt.Errorf("generate grid schema: %w", err)
	}
	b, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
