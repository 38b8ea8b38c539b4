package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

const (
	responsesFile = "llm_politeness_responses.csv"
	scoredFile    = "llm_politeness_responses_scored.csv"
	summaryFile   = "llm_politeness_summary_by_tone_task.csv"
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for _, stage := range selectStages(cfg) {
		args := stageArgs(cfg, stage)
		if err := runGo(ctx, args...); err != nil {
			os.Exit(1)
		}
	}
}

func parseFlags(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := defaultConfig()
	fs.SetOutput(os.Stderr)

	fs.StringVar(&cfg.BaseDir, "base-dir", cfg.BaseDir, "Directory holding the response, scored and summary CSV files")
	fs.StringVar(&cfg.GridPath, "grid", "", "Optional YAML grid file passed to the collect stage")
	fs.StringVar(&cfg.Model, "model", cfg.Model, "Model for the collect stage (uses OPENAI_API_KEY)")
	fs.Float64Var(&cfg.Temperature, "temperature", cfg.Temperature, "Sampling temperature for the collect stage")
	fs.IntVar(&cfg.Runs, "runs", cfg.Runs, "Runs per (task type, tone, prompt) cell")
	fs.StringVar(&cfg.API, "api", cfg.API, "OpenAI API for the collect stage: chat|responses")
	fs.DurationVar(&cfg.Pause, "pause", cfg.Pause, "Minimum spacing between generation calls in the collect stage")
	fs.IntVar(&cfg.Attempts, "attempts", cfg.Attempts, "Attempts per generation call in the collect stage")
	fs.StringVar(&cfg.BaseURL, "base-url", "", "Optional OpenAI-compatible base URL for the collect stage")
	fs.StringVar(&cfg.FromStage, "from-stage", "", "Start at stage: "+strings.Join(allStages, "|"))
	fs.StringVar(&cfg.OnlyStage, "only-stage", "", "Run only one stage: "+strings.Join(allStages, "|"))
	fs.BoolVar(&cfg.Resume, "resume", false, "Skip cells already collected")
	fs.BoolVar(&cfg.Verbose, "verbose", false, "Debug-level structured logging in every stage")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if cfg.BaseDir != "" {
		cfg.BaseDir = filepath.Clean(cfg.BaseDir)
	}
	cfg.FromStage = strings.ToLower(strings.TrimSpace(cfg.FromStage))
	cfg.OnlyStage = strings.ToLower(strings.TrimSpace(cfg.OnlyStage))
	if cfg.GridPath != "" {
		cfg.GridPath = filepath.Clean(cfg.GridPath)
	}
	return cfg, nil
}

func selectStages(cfg Config) []string {
	if cfg.OnlyStage != "" {
		return []string{cfg.OnlyStage}
	}
	if cfg.FromStage != "" {
		return stagesFrom(allStages, cfg.FromStage)
	}
	return allStages
}

func stageArgs(cfg Config, stage string) []string {
	responses := filepath.Join(cfg.BaseDir, responsesFile)
	var args []string
	switch stage {
	case "collect":
		args = []string{
			"run", "./cmd/tone-collect",
			"-out", responses,
			"-model", cfg.Model,
			"-temperature", strconv.FormatFloat(cfg.Temperature, 'f', -1, 64),
			"-runs", strconv.Itoa(cfg.Runs),
			"-api", cfg.API,
			"-pause", cfg.Pause.String(),
			"-attempts", strconv.Itoa(cfg.Attempts),
		}
		if cfg.BaseURL != "" {
			args = append(args, "-base-url", cfg.BaseURL)
		}
		if cfg.GridPath != "" {
			args = append(args, "-grid", cfg.GridPath)
		}
		if cfg.Resume {
			args = append(args, "-resume")
		}
	case "score":
		args = []string{
			"run", "./cmd/tone-score",
			"-in", responses,
			"-scored-out", filepath.Join(cfg.BaseDir, scoredFile),
			"-summary-out", filepath.Join(cfg.BaseDir, summaryFile),
		}
	}
	if cfg.Verbose {
		args = append(args, "-verbose")
	}
	return args
}

func runGo(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, "go", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()

	start := time.Now()
	err := cmd.Run()
	if err != nil {
		fmt.Fprintln(os.Stderr, "command failed:", "go "+strings.Join(args, " "))
		fmt.Fprintln(os.Stderr, "error:", err.Error())
		return err
	}
	fmt.Fprintln(os.Stdout, "ok:", "go "+strings.Join(args, " "), "(", time.Since(start).Round(time.Millisecond).String()+")")
	return nil
}

func stagesFrom(stages []string, from string) []string {
	from = strings.ToLower(strings.TrimSpace(from))
	for i, s := range stages {
		if s == from {
			return stages[i:]
		}
	}
	return stages
}
