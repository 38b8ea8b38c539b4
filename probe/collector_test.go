package probe

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/theimaginaryfoundation/tone-probe/probe/rowstore"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type scriptedCompleter struct {
	calls []CompletionRequest
	fail  func(n int) error
}

func (s *scriptedCompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	s.calls = append(s.calls, req)
	if s.fail != nil {
		if err := s.fail(len(s.calls)); err != nil {
			return "", err
		}
	}
	return "reply to: " + req.Prompt, nil
}

type memSink struct {
	records []ResponseRecord
	err     error
}

func (m *memSink) Append(rec ResponseRecord) error {
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, rec)
	return nil
}

func testGrid() Grid {
	return Grid{
		Tasks: []TaskPrompts{
			{TaskType: "factual", Prompts: []string{"Explain tides.", "Explain rain."}},
			{TaskType: "creative", Prompts: []string{"Write a haiku."}},
		},
		Tones: ReferenceTones(),
	}
}

func fixedNow() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 123456000, time.UTC) }

func TestCollect_IteratesGridInOrder(t *testing.T) {
	t.Parallel()

	grid := testGrid()
	c := &scriptedCompleter{}
	sink := &memSink{}
	var progress bytes.Buffer

	stats, err := Collect(context.Background(), grid, c, sink, CollectOptions{
		Model: "gpt-test", Temperature: 0.7, Runs: 2, Progress: &progress, Now: fixedNow,
	})
	require.NoError(t, err)
	assert.Equal(t, 18, stats.Planned)
	assert.Equal(t, 18, stats.Attempted)
	assert.Zero(t, stats.Failed)
	assert.NotEmpty(t, stats.RunID)

	var want []CellKey
	for _, task := range grid.Tasks {
		for _, tone := range grid.Tones {
			for p := range task.Prompts {
				for r := 0; r < 2; r++ {
					want = append(want, CellKey{TaskType: task.TaskType, Tone: tone.Tone, PromptIndex: p, RunIndex: r})
				}
			}
		}
	}
	var got []CellKey
	for _, rec := range sink.records {
		got = append(got, rec.Key())
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("cell order mismatch (-want +got):\n%s", diff)
	}

	first := sink.records[0]
	assert.Equal(t, "Hi there! If it isn’t too much trouble, could you please Explain tides. I would really appreciate your help. Thank you so much!", first.FullPrompt)
	assert.Equal(t, "Explain tides.", first.BasePrompt)
	assert.Equal(t, "reply to: "+first.FullPrompt, first.ResponseText)
	assert.Equal(t, fixedNow(), first.Timestamp)
	assert.Equal(t, CompletionRequest{Model: "gpt-test", Temperature: 0.7, Prompt: first.FullPrompt}, c.calls[0])

	out := progress.String()
	assert.True(t, strings.HasPrefix(out, "About to generate 18 responses.\n"), out)
	assert.Contains(t, out, "[1/18] task=factual, tone=polite, prompt#1, run#1\n")
	assert.Contains(t, out, "[18/18] task=creative, tone=commanding, prompt#1, run#2\n")
}

func TestCollect_FailureIsRecordedAndRunContinues(t *testing.T) {
	t.Parallel()

	c := &scriptedCompleter{fail: func(n int) error {
		if n == 2 {
			return errors.New("429 rate limit")
		}
		return nil
	}}
	sink := &memSink{}
	var progress bytes.Buffer

	stats, err := Collect(context.Background(), testGrid(), c, sink, CollectOptions{Model: "m", Runs: 1, Progress: &progress})
	require.NoError(t, err)
	assert.Equal(t, 9, stats.Attempted)
	assert.Equal(t, 1, stats.Failed)
	require.Len(t, sink.records, 9)

	failed := sink.records[1]
	assert.Equal(t, CellKey{TaskType: "factual", Tone: TonePolite, PromptIndex: 1}, failed.Key())
	assert.True(t, strings.HasPrefix(failed.ResponseText, APIErrorPrefix), failed.ResponseText)
	assert.Equal(t, "[API_ERROR] 429 rate limit", failed.ResponseText)
	assert.Contains(t, progress.String(), "API error: 429 rate limit\n")

	for i, rec := range sink.records {
		if i != 1 {
			assert.False(t, strings.HasPrefix(rec.ResponseText, APIErrorPrefix), "record %d", i)
		}
	}
}

func TestCollect_SinkFailureIsFatal(t *testing.T) {
	t.Parallel()

	_, err := Collect(context.Background(), testGrid(), &scriptedCompleter{}, &memSink{err: errors.New("disk full")}, CollectOptions{Runs: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestCollect_CancelledContextStopsWithoutRecording(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	c := &scriptedCompleter{fail: func(n int) error {
		cancel()
		return context.Canceled
	}}
	sink := &memSink{}

	_, err := Collect(ctx, testGrid(), c, sink, CollectOptions{Runs: 1})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, sink.records)
	assert.Len(t, c.calls, 1)
}

func TestCollect_SkipsRecordedCells(t *testing.T) {
	t.Parallel()

	skip := map[CellKey]struct{}{
		{TaskType: "factual", Tone: TonePolite, PromptIndex: 0, RunIndex: 0}: {},
		{TaskType: "creative", Tone: ToneNeutral, PromptIndex: 0, RunIndex: 0}: {},
	}
	sink := &memSink{}
	stats, err := Collect(context.Background(), testGrid(), &scriptedCompleter{}, sink, CollectOptions{Runs: 1, Skip: skip})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Skipped)
	assert.Equal(t, 7, stats.Attempted)
	for _, rec := range sink.records {
		_, dup := skip[rec.Key()]
		assert.False(t, dup, "re-collected %v", rec.Key())
	}
}

func TestCollect_RejectsBadInput(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	_, err := Collect(ctx, Grid{}, &scriptedCompleter{}, &memSink{}, CollectOptions{Runs: 1})
	require.ErrorIs(t, err, ErrInvalidGrid)

	_, err = Collect(ctx, testGrid(), &scriptedCompleter{}, &memSink{}, CollectOptions{Runs: 0})
	require.Error(t, err)

	_, err = Collect(ctx, testGrid(), nil, &memSink{}, CollectOptions{Runs: 1})
	require.Error(t, err)
}

func TestCSVSink_AppendsAndResumes(t *testing.T) {
	t.Parallel()

	p := filepath.Join(t.TempDir(), "responses.csv")
	sink, err := OpenCSVSink(p)
	require.NoError(t, err)

	c := &scriptedCompleter{fail: func(n int) error {
		if n == 1 {
			return errors.New("boom")
		}
		return nil
	}}
	_, err = Collect(context.Background(), testGrid(), c, sink, CollectOptions{Model: "m", Temperature: 0.7, Runs: 1, Now: fixedNow})
	require.NoError(t, err)
	require.NoError(t, sink.Close())

	tbl, err := rowstore.ReadTable(p)
	require.NoError(t, err)
	assert.Equal(t, ResponseHeader, tbl.Header)
	require.Len(t, tbl.Rows, 9)
	assert.Equal(t, []string{
		"2025-03-01T12:00:00.123456", "factual", "polite", "0", "0", "m", "0.7",
		"Explain tides.",
		"Hi there! If it isn’t too much trouble, could you please Explain tides. I would really appreciate your help. Thank you so much!",
		"[API_ERROR] boom",
	}, tbl.Rows[0])

	cells, err := RecordedCells(p)
	require.NoError(t, err)
	assert.Len(t, cells, 9)

	// Reopening appends below the existing header.
	sink, err = OpenCSVSink(p)
	require.NoError(t, err)
	stats, err := Collect(context.Background(), testGrid(), &scriptedCompleter{}, sink, CollectOptions{Runs: 2, Skip: cells})
	require.NoError(t, err)
	require.NoError(t, sink.Close())
	assert.Equal(t, 9, stats.Skipped)
	assert.Equal(t, 9, stats.Attempted)

	tbl, err = rowstore.ReadTable(p)
	require.NoError(t, err)
	assert.Len(t, tbl.Rows, 18)
}

func TestOpenCSVSink_RejectsForeignHeader(t *testing.T) {
	t.Parallel()

	p := filepath.Join(t.TempDir(), "other.csv")
	require.NoError(t, rowstore.WriteTableAtomic(p, []string{"a", "b"}, nil))
	_, err := OpenCSVSink(p)
	require.Error(t, err)
}

func TestRecordedCells_MissingFile(t *testing.T) {
	t.Parallel()

	cells, err := RecordedCells(filepath.Join(t.TempDir(), "none.csv"))
	require.NoError(t, err)
	assert.Empty(t, cells)
}
