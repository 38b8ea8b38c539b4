package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/theimaginaryfoundation/tone-probe/probe"
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

	logger, err := probe.NewLogger(cfg.Verbose)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, os.Stdout, logger); err != nil {
		fmt.Fprintf(os.Stderr, "failed scoring responses: %s\n", err.Error())
		os.Exit(1)
	}
}

func parseFlags(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := defaultConfig()
	fs.SetOutput(os.Stderr)

	fs.StringVar(&cfg.InputPath, "in", cfg.InputPath, "Response CSV written by tone-collect")
	fs.StringVar(&cfg.ScoredPath, "scored-out", cfg.ScoredPath, "Scored CSV (input columns plus feature columns)")
	fs.StringVar(&cfg.SummaryPath, "summary-out", cfg.SummaryPath, "Summary CSV (feature means by task_type and tone)")
	fs.BoolVar(&cfg.SummaryOnly, "summary-only", false, "Aggregate an existing -scored-out file instead of rescoring -in")
	fs.BoolVar(&cfg.Verbose, "verbose", false, "Debug-level structured logging")

	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage:\n  %s [flags]\n\nFlags:\n", filepath.Base(os.Args[0]))
		fs.PrintDefaults()
		fmt.Fprintln(fs.Output(), "\nExample:")
		fmt.Fprintln(fs.Output(), "  go run ./cmd/tone-score -in llm_politeness_responses.csv")
	}

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	cfg.InputPath = cleanPath(cfg.InputPath)
	cfg.ScoredPath = cleanPath(cfg.ScoredPath)
	cfg.SummaryPath = cleanPath(cfg.SummaryPath)
	return cfg, nil
}

// cleanPath leaves an empty value empty so Validate can report the missing flag.
func cleanPath(p string) string {
	if p == "" {
		return ""
	}
	return filepath.Clean(p)
}

func run(cfg Config, stdout io.Writer, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	var summaries []probe.SummaryRecord
	if cfg.SummaryOnly {
		tbl, err := rowstore.ReadTable(cfg.ScoredPath)
		if err != nil {
			return err
		}
		summaries, err = probe.SummarizeScoredTable(tbl)
		if err != nil {
			return fmt.Errorf("%s: %w", cfg.ScoredPath, err)
		}
	} else {
		ex := probe.NewFeatureExtractor(probe.DefaultLexicons(), nil)
		scored, err := probe.ScoreFile(cfg.InputPath, cfg.ScoredPath, ex, logger)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "[1] Scored responses written to: %s\n", cfg.ScoredPath)
		summaries = probe.Summarize(scored.Records)
	}

	if err := probe.WriteSummary(cfg.SummaryPath, summaries); err != nil {
		return err
	}
	for _, s := range summaries {
		avg, _ := s.Mean("sentiment_score")
		logger.Debug("group summary",
			zap.String("task_type", s.Key.TaskType),
			zap.String("tone", s.Key.Tone),
			zap.Int("n", s.Count),
			zap.Float64("avg_sentiment", avg))
	}
	logger.Info("wrote summary", zap.String("out", cfg.SummaryPath), zap.Int("groups", len(summaries)))
	fmt.Fprintf(stdout, "[2] Automatic summary by task_type × tone written to: %s\n", cfg.SummaryPath)
	return nil
}
