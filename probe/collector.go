package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/theimaginaryfoundation/tone-probe/probe/rowstore"
)

// CompletionRequest is one synchronous generation call.
type CompletionRequest struct {
	Model       string
	Temperature float64
	Prompt      string
}

// Completer is the text-generation collaborator. It returns the text of the first completion.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// RecordSink durably stores response records. Append must not return until the record is
// persisted.
type RecordSink interface {
	Append(rec ResponseRecord) error
}

// CollectOptions controls one pass over the grid.
type CollectOptions struct {
	Model       string
	Temperature float64

	// Runs is the number of repetitions per (task type, tone, prompt) cell.
	Runs int

	// Pause is the minimum spacing between generation calls (0 disables throttling).
	Pause time.Duration

	// Skip holds cells that already have a record; they are neither called nor written.
	Skip map[CellKey]struct{}

	// Progress receives human-readable progress lines (nil discards them).
	Progress io.Writer

	Logger *zap.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

// CollectStats summarises a collection pass.
type CollectStats struct {
	RunID     string
	Planned   int
	Attempted int
	Skipped   int
	Failed    int
}

// Collect walks the grid in task, tone, prompt, run order and appends exactly one record per
// cell to sink. Generation failures are recorded as an APIErrorPrefix sentinel and never stop
// the pass; sink failures and context cancellation do.
func Collect(ctx context.Context, grid Grid, c Completer, sink RecordSink, opts CollectOptions) (CollectStats, error) {
	if c == nil {
		return CollectStats{}, errors.New("Collect: completer is nil")
	}
	if sink == nil {
		return CollectStats{}, errors.New("Collect: sink is nil")
	}
	if err := grid.Validate(); err != nil {
		return CollectStats{}, fmt.Errorf("Collect: %w", err)
	}
	if opts.Runs <= 0 {
		return CollectStats{}, errors.New("Collect: runs must be > 0")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	progress := opts.Progress
	if progress == nil {
		progress = io.Discard
	}

	stats := CollectStats{
		RunID:   uuid.NewString(),
		Planned: grid.Attempts(opts.Runs),
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("run_id", stats.RunID), zap.String("model", opts.Model))

	limit := rate.Inf
	if opts.Pause > 0 {
		limit = rate.Every(opts.Pause)
	}
	limiter := rate.NewLimiter(limit, 1)

	fmt.Fprintf(progress, "About to generate %d responses.\n", stats.Planned)
	logger.Info("collection started", zap.Int("planned", stats.Planned), zap.Int("skip", len(opts.Skip)))

	counter := 0
	for _, task := range grid.Tasks {
		for _, tone := range grid.Tones {
			for promptIdx, base := range task.Prompts {
				fullPrompt, err := grid.Render(tone.Tone, base)
				if err != nil {
					return stats, fmt.Errorf("Collect: %w", err)
				}

				for runIdx := 0; runIdx < opts.Runs; runIdx++ {
					counter++
					key := CellKey{TaskType: task.TaskType, Tone: tone.Tone, PromptIndex: promptIdx, RunIndex: runIdx}
					if _, ok := opts.Skip[key]; ok {
						stats.Skipped++
						logger.Debug("skip recorded cell", zap.Any("cell", key))
						continue
					}
					if err := ctx.Err(); err != nil {
						return stats, err
					}

					fmt.Fprintf(progress, "[%d/%d] task=%s, tone=%s, prompt#%d, run#%d\n",
						counter, stats.Planned, task.TaskType, tone.Tone, promptIdx+1, runIdx+1)

					if err := limiter.Wait(ctx); err != nil {
						return stats, err
					}
					text, err := c.Complete(ctx, CompletionRequest{
						Model:       opts.Model,
						Temperature: opts.Temperature,
						Prompt:      fullPrompt,
					})
					if err != nil {
						if ctxErr := ctx.Err(); ctxErr != nil {
							return stats, ctxErr
						}
						stats.Failed++
						fmt.Fprintf(progress, "API error: %v\n", err)
						logger.Warn("generation failed", zap.Any("cell", key), zap.Error(err))
						text = fmt.Sprintf("%s %v", APIErrorPrefix, err)
					}

					rec := ResponseRecord{
						Timestamp:    opts.Now().UTC(),
						TaskType:     task.TaskType,
						Tone:         tone.Tone,
						PromptIndex:  promptIdx,
						RunIndex:     runIdx,
						Model:        opts.Model,
						Temperature:  opts.Temperature,
						BasePrompt:   base,
						FullPrompt:   fullPrompt,
						ResponseText: text,
					}
					if err := sink.Append(rec); err != nil {
						return stats, fmt.Errorf("Collect: append %s/%s/%d/%d: %w", key.TaskType, key.Tone, promptIdx, runIdx, err)
					}
					stats.Attempted++
				}
			}
		}
	}

	logger.Info("collection finished",
		zap.Int("attempted", stats.Attempted),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed))
	return stats, nil
}

// CSVSink appends response records to a CSV row store.
type CSVSink struct {
	a *rowstore.Appender
}

var _ RecordSink = (*CSVSink)(nil)

// OpenCSVSink opens (or creates) the response store at path. An existing non-empty file must
// carry ResponseHeader.
func OpenCSVSink(path string) (*CSVSink, error) {
	if fi, err := os.Stat(path); err == nil && fi.Size() > 0 {
		header, err := rowstore.ReadHeader(path)
		if err != nil {
			return nil, fmt.Errorf("OpenCSVSink: %w", err)
		}
		if !slices.Equal(header, ResponseHeader) {
			return nil, fmt.Errorf("OpenCSVSink: %s has an unexpected header %v", path, header)
		}
	}
	a, err := rowstore.OpenAppender(path, ResponseHeader)
	if err != nil {
		return nil, fmt.Errorf("OpenCSVSink: %w", err)
	}
	return &CSVSink{a: a}, nil
}

func (s *CSVSink) Append(rec ResponseRecord) error {
	return s.a.Append(rec.Row())
}

func (s *CSVSink) Close() error {
	return s.a.Close()
}

// RecordedCells lists the cells already present in a response store. A missing file has none.
func RecordedCells(path string) (map[CellKey]struct{}, error) {
	out := make(map[CellKey]struct{})
	if fi, err := os.Stat(path); err != nil || fi.Size() == 0 {
		return out, nil
	}
	tbl, err := rowstore.ReadTable(path)
	if err != nil {
		return nil, fmt.Errorf("RecordedCells: %w", err)
	}

	var idx [4]int
	for i, col := range []string{ColTaskType, ColTone, ColPromptIndex, ColRunIndex} {
		idx[i] = tbl.Index(col)
		if idx[i] < 0 {
			return nil, fmt.Errorf("RecordedCells: %q: %w", col, ErrMissingColumn)
		}
	}
	for i, row := range tbl.Rows {
		p, err := strconv.Atoi(row[idx[2]])
		if err != nil {
			return nil, fmt.Errorf("RecordedCells: row %d prompt_index: %w", i+1, err)
		}
		r, err := strconv.Atoi(row[idx[3]])
		if err != nil {
			return nil, fmt.Errorf("RecordedCells: row %d run_index: %w", i+1, err)
		}
		out[CellKey{TaskType: row[idx[0]], Tone: row[idx[1]], PromptIndex: p, RunIndex: r}] = struct{}{}
	}
	return out, nil
}
