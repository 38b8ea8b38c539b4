package probe

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ContentPlaceholder is replaced by the base prompt when a tone template is rendered.
const ContentPlaceholder = "{content}"

// Reference tones.
const (
	TonePolite     = "polite"
	ToneNeutral    = "neutral"
	ToneCommanding = "commanding"
)

// TaskPrompts is one task type and its ordered base prompts.
type TaskPrompts struct {
	TaskType string   `json:"task_type" yaml:"task_type" jsonschema:"required"`
	Prompts  []string `json:"prompts" yaml:"prompts" jsonschema:"required"`
}

// ToneTemplate wraps base prompt content in a tone-specific frame.
type ToneTemplate struct {
	Tone     string `json:"tone" yaml:"tone" jsonschema:"required"`
	Template string `json:"template" yaml:"template" jsonschema:"required"`
}

// Grid is the static experiment configuration. Tasks and Tones are iterated in the order given.
type Grid struct {
	Tasks []TaskPrompts  `json:"tasks" yaml:"tasks" jsonschema:"required"`
	Tones []ToneTemplate `json:"tones,omitempty" yaml:"tones,omitempty"`
}

// ReferenceTones returns the polite/neutral/commanding templates of the reference deployment.
func ReferenceTones() []ToneTemplate {
	return []ToneTemplate{
		{Tone: TonePolite, Template: "Hi there! If it isn’t too much trouble, could you please {content} I would really appreciate your help. Thank you so much!"},
		{Tone: ToneNeutral, Template: "{content}"},
		{Tone: ToneCommanding, Template: "{content} I need you to do this immediately. Do not delay."},
	}
}

// RenderPrompt substitutes content into template.
func RenderPrompt(template, content string) string {
	return strings.ReplaceAll(template, ContentPlaceholder, content)
}

// Render wraps content in the template registered for tone.
func (g Grid) Render(tone, content string) (string, error) {
	for _, t := range g.Tones {
		if t.Tone == tone {
			return RenderPrompt(t.Template, content), nil
		}
	}
	return "", fmt.Errorf("Render: unknown tone %q: %w", tone, ErrInvalidGrid)
}

// Attempts is the number of records a full run over the grid produces.
func (g Grid) Attempts(runs int) int {
	if runs <= 0 {
		return 0
	}
	n := 0
	for _, t := range g.Tasks {
		n += len(t.Prompts)
	}
	return n * len(g.Tones) * runs
}

func (g Grid) Validate() error {
	if len(g.Tasks) == 0 {
		return fmt.Errorf("no task types: %w", ErrInvalidGrid)
	}
	if len(g.Tones) == 0 {
		return fmt.Errorf("no tones: %w", ErrInvalidGrid)
	}
	seenTask := make(map[string]struct{}, len(g.Tasks))
	for _, t := range g.Tasks {
		if strings.TrimSpace(t.TaskType) == "" {
			return fmt.Errorf("empty task_type: %w", ErrInvalidGrid)
		}
		if _, ok := seenTask[t.TaskType]; ok {
			return fmt.Errorf("duplicate task_type %q: %w", t.TaskType, ErrInvalidGrid)
		}
		seenTask[t.TaskType] = struct{}{}
		if len(t.Prompts) == 0 {
			return fmt.Errorf("task_type %q has no prompts: %w", t.TaskType, ErrInvalidGrid)
		}
	}
	seenTone := make(map[string]struct{}, len(g.Tones))
	for _, t := range g.Tones {
		if strings.TrimSpace(t.Tone) == "" {
			return fmt.Errorf("empty tone: %w", ErrInvalidGrid)
		}
		if _, ok := seenTone[t.Tone]; ok {
			return fmt.Errorf("duplicate tone %q: %w", t.Tone, ErrInvalidGrid)
		}
		seenTone[t.Tone] = struct{}{}
		if !strings.Contains(t.Template, ContentPlaceholder) {
			return fmt.Errorf("tone %q template lacks %s: %w", t.Tone, ContentPlaceholder, ErrInvalidGrid)
		}
	}
	return nil
}

// LoadGrid reads a YAML grid file. Tones default to ReferenceTones when the file omits them.
func LoadGrid(path string) (Grid, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Grid{}, fmt.Errorf("LoadGrid: %w", err)
	}
	var g Grid
	if err := yaml.Unmarshal(b, &g); err != nil {
		return Grid{}, fmt.Errorf("LoadGrid: parse %s: %w", path, err)
	}
	if len(g.Tones) == 0 {
		g.Tones = ReferenceTones()
	}
	if err := g.Validate(); err != nil {
		return Grid{}, fmt.Errorf("LoadGrid: %s: %w", path, err)
	}
	return g, nil
}
