package main

import "errors"

type Config struct {
	InputPath   string
	ScoredPath  string
	SummaryPath string

	// SummaryOnly re-aggregates ScoredPath without rescoring InputPath.
	SummaryOnly bool
	Verbose     bool
}

func (c Config) Validate() error {
	if c.InputPath == "" && !c.SummaryOnly {
		return errors.New("missing -in")
	}
	if c.ScoredPath == "" {
		return errors.New("missing -scored-out")
	}
	if c.SummaryPath == "" {
		return errors.New("missing -summary-out")
	}
	if !c.SummaryOnly && c.InputPath == c.ScoredPath {
		return errors.New("-in and -scored-out must differ")
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		InputPath:   "llm_politeness_responses.csv",
		ScoredPath:  "llm_politeness_responses_scored.csv",
		SummaryPath: "llm_politeness_summary_by_tone_task.csv",
	}
}
