package main

import (
	"errors"
	"time"
)

type Config struct {
	OutPath  string
	GridPath string

	Model       string
	Temperature float64
	Runs        int
	Pause       time.Duration

	API      string
	BaseURL  string
	APIKey   string
	Attempts int

	Resume          bool
	PrintGridSchema bool
	Verbose         bool
}

const (
	apiChat      = "chat"
	apiResponses = "responses"
)

func (c Config) Validate() error {
	if c.PrintGridSchema {
		return nil
	}
	if c.OutPath == "" {
		return errors.New("missing -out")
	}
	if c.Model == "" {
		return errors.New("missing -model")
	}
	if c.Runs <= 0 {
		return errors.New("runs must be > 0")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return errors.New("temperature must be within [0, 2]")
	}
	if c.Pause < 0 {
		return errors.New("pause must be >= 0")
	}
	if c.Attempts <= 0 {
		return errors.New("attempts must be > 0")
	}
	if c.API != apiChat && c.API != apiResponses {
		return errors.New("api must be chat or responses")
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		OutPath:     "llm_politeness_responses.csv",
		Model:       "gpt-4.1-mini",
		Temperature: 0.7,
		Runs:        3,
		Pause:       300 * time.Millisecond,
		API:         apiChat,
		Attempts:    1,
	}
}
