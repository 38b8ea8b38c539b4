package probe

import (
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theimaginaryfoundation/tone-probe/probe/rowstore"
)

func TestSummarize_TwoRowsSameGroup(t *testing.T) {
	t.Parallel()

	key := GroupKey{TaskType: "factual", Tone: "neutral"}
	got := Summarize([]ScoredRecord{
		{Key: key, Features: Features{WordCount: 10}},
		{Key: key, Features: Features{WordCount: 20}},
	})
	require.Len(t, got, 1)
	assert.Equal(t, key, got[0].Key)
	assert.Equal(t, 2, got[0].Count)

	avg, ok := got[0].Mean("response_word_count")
	require.True(t, ok)
	assert.Equal(t, 15.0, avg)

	_, ok = got[0].Mean("nope")
	assert.False(t, ok)
}

func TestAggregator_CountsAndMeansMatchGroups(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(7))
	tasks := []string{"creative", "analytical", "factual"}
	tones := []string{"polite", "neutral", "commanding"}

	var records []ScoredRecord
	for i := 0; i < 500; i++ {
		records = append(records, ScoredRecord{
			Key: GroupKey{TaskType: tasks[rng.Intn(len(tasks))], Tone: tones[rng.Intn(len(tones))]},
			Features: Features{
				WordCount:         rng.Intn(400),
				SentenceCount:     rng.Intn(30),
				AvgSentenceLength: rng.Float64() * 30,
				Sentiment:         rng.Float64()*2 - 1,
				SorryCount:        rng.Intn(3),
			},
		})
	}

	summaries := Summarize(records)
	for _, s := range summaries {
		var n int
		var sums [NumFeatures]float64
		for _, r := range records {
			if r.Key != s.Key {
				continue
			}
			n++
			for i, v := range r.Features.Values() {
				sums[i] += v
			}
		}
		require.Equal(t, n, s.Count, "group %v", s.Key)
		for i := range sums {
			assert.InDelta(t, sums[i]/float64(n), s.Means[i], 1e-9, "group %v column %s", s.Key, FeatureColumns[i])
		}
	}

	for i := 1; i < len(summaries); i++ {
		assert.True(t, summaries[i-1].Key.Less(summaries[i].Key), "unsorted at %d", i)
	}
}

func TestAggregator_Empty(t *testing.T) {
	t.Parallel()

	assert.Empty(t, NewAggregator().Summaries())
}

func TestSummaryRecord_Row(t *testing.T) {
	t.Parallel()

	s := SummaryRecord{Key: GroupKey{TaskType: "advisory", Tone: "polite"}, Count: 3}
	s.Means[0] = 15
	s.Means[8] = 1.0 / 3.0

	row := s.Row()
	header := SummaryHeader()
	require.Len(t, row, len(header))
	assert.Equal(t, []string{"task_type", "tone", "n_responses", "avg_response_word_count"}, header[:4])
	assert.Equal(t, "avg_sorry_count", header[len(header)-1])
	assert.Equal(t, []string{"advisory", "polite", "3", "15.0"}, row[:4])
	assert.Equal(t, "0.3333333333333333", row[3+8])
}

func TestSummarizeScoredTable(t *testing.T) {
	t.Parallel()

	ex := NewFeatureExtractor(DefaultLexicons(), fixedSentiment(0.5))
	scored, err := ScoreTable(rowstore.Table{
		Header: []string{ColTaskType, ColTone, ColResponseText},
		Rows: [][]string{
			{"factual", "neutral", "one two three"},
			{"factual", "neutral", "one"},
			{"creative", "polite", "Sorry!"},
		},
	}, ex)
	require.NoError(t, err)

	tbl := rowstore.Table{Header: scored.Header, Rows: scored.Rows()}
	got, err := SummarizeScoredTable(tbl)
	require.NoError(t, err)
	assert.Equal(t, Summarize(scored.Records), got)

	tbl.Header = tbl.Header[:len(tbl.Header)-1]
	_, err = SummarizeScoredTable(tbl)
	require.ErrorIs(t, err, ErrMissingColumn)
}

func TestWriteSummary(t *testing.T) {
	t.Parallel()

	p := filepath.Join(t.TempDir(), "summary.csv")
	in := []SummaryRecord{{Key: GroupKey{TaskType: "factual", Tone: "neutral"}, Count: 2}}
	in[0].Means[0] = 15
	require.NoError(t, WriteSummary(p, in))

	tbl, err := rowstore.ReadTable(p)
	require.NoError(t, err)
	assert.Equal(t, SummaryHeader(), tbl.Header)
	require.Len(t, tbl.Rows, 1)
	assert.Equal(t, "15.0", tbl.Rows[0][3])
}
