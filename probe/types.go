package probe

import (
	"errors"
	"strconv"
	"time"
)

// Response store columns, in write order.
const (
	ColTimestamp    = "timestamp_utc"
	ColTaskType     = "task_type"
	ColTone         = "tone"
	ColPromptIndex  = "prompt_index"
	ColRunIndex     = "run_index"
	ColModel        = "model"
	ColTemperature  = "temperature"
	ColBasePrompt   = "base_prompt_text"
	ColFullPrompt   = "full_prompt_text"
	ColResponseText = "response_text"

	ColResponseCount = "n_responses"

	// APIErrorPrefix starts the response text recorded when a generation call fails.
	APIErrorPrefix = "[API_ERROR]"

	// groupFallback is used when the task_type or tone column is absent.
	groupFallback = "NA"
)

// ResponseHeader is the header of the collector's output store.
var ResponseHeader = []string{
	ColTimestamp,
	ColTaskType,
	ColTone,
	ColPromptIndex,
	ColRunIndex,
	ColModel,
	ColTemperature,
	ColBasePrompt,
	ColFullPrompt,
	ColResponseText,
}

var (
	// ErrMissingColumn marks a row store that lacks a required column.
	ErrMissingColumn = errors.New("missing required column")
	// ErrInvalidGrid marks an experiment grid that cannot be iterated.
	ErrInvalidGrid = errors.New("invalid experiment grid")
)

// CellKey identifies one generation attempt within the grid.
type CellKey struct {
	TaskType    string
	Tone        string
	PromptIndex int
	RunIndex    int
}

// ResponseRecord is one attempt to elicit a response. It is never modified after being written.
type ResponseRecord struct {
	Timestamp    time.Time
	TaskType     string
	Tone         string
	PromptIndex  int
	RunIndex     int
	Model        string
	Temperature  float64
	BasePrompt   string
	FullPrompt   string
	ResponseText string
}

func (r ResponseRecord) Key() CellKey {
	return CellKey{TaskType: r.TaskType, Tone: r.Tone, PromptIndex: r.PromptIndex, RunIndex: r.RunIndex}
}

// Row renders the record in ResponseHeader order.
func (r ResponseRecord) Row() []string {
	return []string{
		formatTimestamp(r.Timestamp),
		r.TaskType,
		r.Tone,
		strconv.Itoa(r.PromptIndex),
		strconv.Itoa(r.RunIndex),
		r.Model,
		strconv.FormatFloat(r.Temperature, 'f', -1, 64),
		r.BasePrompt,
		r.FullPrompt,
		r.ResponseText,
	}
}

// ScoredRecord is one input row with its derived features.
type ScoredRecord struct {
	Key      GroupKey
	Cells    []string
	Features Features
}

// Row is the input cells followed by the feature columns.
func (s ScoredRecord) Row() []string {
	out := make([]string, 0, len(s.Cells)+NumFeatures)
	out = append(out, s.Cells...)
	return append(out, s.Features.Cells()...)
}

// GroupKey partitions scored records for aggregation.
type GroupKey struct {
	TaskType string
	Tone     string
}

func (k GroupKey) Less(o GroupKey) bool {
	if k.TaskType != o.TaskType {
		return k.TaskType < o.TaskType
	}
	return k.Tone < o.Tone
}

// SummaryRecord is one (task type, tone) group with the mean of every feature.
type SummaryRecord struct {
	Key   GroupKey
	Count int
	Means [NumFeatures]float64
}

// Mean returns the averaged value of the named feature column.
func (s SummaryRecord) Mean(column string) (float64, bool) {
	for i, c := range FeatureColumns {
		if c == column {
			return s.Means[i], true
		}
	}
	return 0, false
}

// SummaryHeader is the header of the aggregator's output table.
func SummaryHeader() []string {
	h := []string{ColTaskType, ColTone, ColResponseCount}
	for _, c := range FeatureColumns {
		h = append(h, "avg_"+c)
	}
	return h
}

func (s SummaryRecord) Row() []string {
	row := []string{s.Key.TaskType, s.Key.Tone, strconv.Itoa(s.Count)}
	for _, m := range s.Means {
		row = append(row, formatFloat(m))
	}
	return row
}
