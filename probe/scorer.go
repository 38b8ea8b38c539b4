package probe

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/theimaginaryfoundation/tone-probe/probe/rowstore"
)

// Scored is the scorer's output: the augmented header and one record per input row.
type Scored struct {
	Header  []string
	Records []ScoredRecord
}

// Rows renders every record in Header order.
func (s Scored) Rows() [][]string {
	rows := make([][]string, 0, len(s.Records))
	for _, r := range s.Records {
		rows = append(rows, r.Row())
	}
	return rows
}

// ScoreTable derives features for every row of tbl. The table must have a response_text column;
// task_type and tone fall back to "NA" for grouping when absent.
func ScoreTable(tbl rowstore.Table, ex FeatureExtractor) (Scored, error) {
	respIdx := tbl.Index(ColResponseText)
	if respIdx < 0 {
		return Scored{}, fmt.Errorf("ScoreTable: input must contain a %q column: %w", ColResponseText, ErrMissingColumn)
	}
	taskIdx, toneIdx := tbl.Index(ColTaskType), tbl.Index(ColTone)

	header := make([]string, 0, len(tbl.Header)+NumFeatures)
	header = append(header, tbl.Header...)
	header = append(header, FeatureColumns[:]...)

	records := make([]ScoredRecord, 0, len(tbl.Rows))
	for _, row := range tbl.Rows {
		records = append(records, ScoredRecord{
			Key:      groupKeyOf(row, taskIdx, toneIdx),
			Cells:    row,
			Features: ex.Extract(row[respIdx]),
		})
	}
	return Scored{Header: header, Records: records}, nil
}

// ScoreFile reads inPath, scores it and writes outPath. Nothing is written when the input is
// missing or structurally invalid.
func ScoreFile(inPath, outPath string, ex FeatureExtractor, logger *zap.Logger) (Scored, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	start := time.Now()

	tbl, err := rowstore.ReadTable(inPath)
	if err != nil {
		return Scored{}, fmt.Errorf("ScoreFile: %w", err)
	}
	scored, err := ScoreTable(tbl, ex)
	if err != nil {
		return Scored{}, fmt.Errorf("ScoreFile: %s: %w", inPath, err)
	}
	if err := rowstore.WriteTableAtomic(outPath, scored.Header, scored.Rows()); err != nil {
		return Scored{}, fmt.Errorf("ScoreFile: %w", err)
	}

	logger.Info("scored responses",
		zap.String("in", inPath),
		zap.String("out", outPath),
		zap.Int("rows", len(scored.Records)),
		zap.Duration("elapsed", time.Since(start)))
	return scored, nil
}
