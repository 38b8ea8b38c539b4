package main

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var allStages = []string{"collect", "score"}

type Config struct {
	BaseDir  string
	GridPath string

	Model       string
	Temperature float64
	Runs        int
	API         string
	Pause       time.Duration
	Attempts    int
	BaseURL     string

	FromStage string
	OnlyStage string

	Resume  bool
	Verbose bool
}

func (c Config) Validate() error {
	if c.BaseDir == "" {
		return errors.New("missing -base-dir")
	}
	if c.Model == "" {
		return errors.New("missing -model")
	}
	if c.Runs <= 0 {
		return errors.New("runs must be > 0")
	}
	if c.Pause < 0 {
		return errors.New("pause must be >= 0")
	}
	if c.Attempts <= 0 {
		return errors.New("attempts must be > 0")
	}
	if c.OnlyStage != "" && c.FromStage != "" {
		return errors.New("use only one of -only-stage or -from-stage")
	}
	for _, s := range []string{c.OnlyStage, c.FromStage} {
		if s != "" && !knownStage(s) {
			return fmt.Errorf("unknown stage %q (want %s)", s, strings.Join(allStages, "|"))
		}
	}
	return nil
}

func knownStage(s string) bool {
	for _, st := range allStages {
		if st == s {
			return true
		}
	}
	return false
}

func defaultConfig() Config {
	return Config{
		BaseDir:     ".",
		Model:       "gpt-4.1-mini",
		Temperature: 0.7,
		Runs:        3,
		API:         "chat",
		Pause:       300 * time.Millisecond,
		Attempts:    1,
	}
}
