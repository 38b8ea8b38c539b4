package probe

import (
	"fmt"
	"sort"

	"github.com/theimaginaryfoundation/tone-probe/probe/rowstore"
)

type groupSum struct {
	sums  [NumFeatures]float64
	count int
}

// Aggregator is a streaming fold from scored records to per-(task type, tone) means.
// Memory is proportional to the number of groups, not the number of records.
type Aggregator struct {
	groups map[GroupKey]*groupSum
}

func NewAggregator() *Aggregator {
	return &Aggregator{groups: make(map[GroupKey]*groupSum)}
}

// Add folds one record into its group.
func (a *Aggregator) Add(key GroupKey, f Features) {
	g, ok := a.groups[key]
	if !ok {
		g = &groupSum{}
		a.groups[key] = g
	}
	g.count++
	for i, v := range f.Values() {
		g.sums[i] += v
	}
}

// Summaries finalises the fold. Groups are sorted by (task type, tone).
func (a *Aggregator) Summaries() []SummaryRecord {
	keys := make([]GroupKey, 0, len(a.groups))
	for k := range a.groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	out := make([]SummaryRecord, 0, len(keys))
	for _, k := range keys {
		g := a.groups[k]
		n := g.count
		if n == 0 {
			n = 1
		}
		rec := SummaryRecord{Key: k, Count: g.count}
		for i, s := range g.sums {
			rec.Means[i] = s / float64(n)
		}
		out = append(out, rec)
	}
	return out
}

// Summarize aggregates a slice of scored records.
func Summarize(records []ScoredRecord) []SummaryRecord {
	agg := NewAggregator()
	for _, r := range records {
		agg.Add(r.Key, r.Features)
	}
	return agg.Summaries()
}

// WriteSummary writes the summary table to path atomically.
func WriteSummary(path string, summaries []SummaryRecord) error {
	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, s.Row())
	}
	if err := rowstore.WriteTableAtomic(path, SummaryHeader(), rows); err != nil {
		return fmt.Errorf("WriteSummary: %w", err)
	}
	return nil
}

// SummarizeScoredTable folds an already-scored table. Every feature column must be present.
func SummarizeScoredTable(tbl rowstore.Table) ([]SummaryRecord, error) {
	var idx [NumFeatures]int
	for i, col := range FeatureColumns {
		idx[i] = tbl.Index(col)
		if idx[i] < 0 {
			return nil, fmt.Errorf("SummarizeScoredTable: %q: %w", col, ErrMissingColumn)
		}
	}
	taskIdx, toneIdx := tbl.Index(ColTaskType), tbl.Index(ColTone)

	agg := NewAggregator()
	for i, row := range tbl.Rows {
		f, err := FeaturesFromCells(row, idx)
		if err != nil {
			return nil, fmt.Errorf("SummarizeScoredTable: row %d: %w", i+1, err)
		}
		agg.Add(groupKeyOf(row, taskIdx, toneIdx), f)
	}
	return agg.Summaries(), nil
}

func groupKeyOf(row []string, taskIdx, toneIdx int) GroupKey {
	k := GroupKey{TaskType: groupFallback, Tone: groupFallback}
	if taskIdx >= 0 {
		k.TaskType = row[taskIdx]
	}
	if toneIdx >= 0 {
		k.Tone = row[toneIdx]
	}
	return k
}
