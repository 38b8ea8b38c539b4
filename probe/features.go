package probe

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/theimaginaryfoundation/tone-probe/probe/sentiment"
)

// NumFeatures is the number of derived columns appended by the scorer.
const NumFeatures = 14

// FeatureColumns are the derived columns, in the order they are appended and averaged.
var FeatureColumns = [NumFeatures]string{
	"response_word_count",
	"response_sentence_count",
	"response_avg_sentence_length",
	"response_exclamation_count",
	"response_question_count",
	"response_politeness_word_count",
	"response_first_person_count",
	"response_modal_verb_count",
	"sentiment_score",
	"please_count",
	"thank_count",
	"thanks_count",
	"appreciate_count",
	"sorry_count",
}

// Lexicons are the word lists used for substring counting. Matching is case-insensitive and
// substring based: "thanks" also matches inside "thanksgiving".
type Lexicons struct {
	Politeness  []string
	FirstPerson []string
	Modal       []string
}

// DefaultLexicons returns the word lists of the reference deployment.
func DefaultLexicons() Lexicons {
	return Lexicons{
		Politeness:  []string{"please", "thank", "thanks", "appreciate", "sorry"},
		FirstPerson: []string{"i", "me", "my", "mine", "we", "us", "our", "ours"},
		Modal:       []string{"can", "could", "would", "should", "might", "may", "must", "will", "shall"},
	}
}

// Features are the per-response metrics.
type Features struct {
	WordCount         int
	SentenceCount     int
	AvgSentenceLength float64
	ExclamationCount  int
	QuestionCount     int
	PolitenessCount   int
	FirstPersonCount  int
	ModalVerbCount    int
	Sentiment         float64
	PleaseCount       int
	ThankCount        int
	ThanksCount       int
	AppreciateCount   int
	SorryCount        int
}

// Values returns the features as floats in FeatureColumns order.
func (f Features) Values() [NumFeatures]float64 {
	return [NumFeatures]float64{
		float64(f.WordCount),
		float64(f.SentenceCount),
		f.AvgSentenceLength,
		float64(f.ExclamationCount),
		float64(f.QuestionCount),
		float64(f.PolitenessCount),
		float64(f.FirstPersonCount),
		float64(f.ModalVerbCount),
		f.Sentiment,
		float64(f.PleaseCount),
		float64(f.ThankCount),
		float64(f.ThanksCount),
		float64(f.AppreciateCount),
		float64(f.SorryCount),
	}
}

// Cells renders the features as CSV cells in FeatureColumns order.
func (f Features) Cells() []string {
	return []string{
		strconv.Itoa(f.WordCount),
		strconv.Itoa(f.SentenceCount),
		formatFloat(f.AvgSentenceLength),
		strconv.Itoa(f.ExclamationCount),
		strconv.Itoa(f.QuestionCount),
		strconv.Itoa(f.PolitenessCount),
		strconv.Itoa(f.FirstPersonCount),
		strconv.Itoa(f.ModalVerbCount),
		formatFloat(f.Sentiment),
		strconv.Itoa(f.PleaseCount),
		strconv.Itoa(f.ThankCount),
		strconv.Itoa(f.ThanksCount),
		strconv.Itoa(f.AppreciateCount),
		strconv.Itoa(f.SorryCount),
	}
}

// FeatureExtractor computes Features from response text using fixed lexicons and a
// sentiment analyzer. It holds no mutable state.
type FeatureExtractor struct {
	lex       Lexicons
	sentiment sentiment.Analyzer
}

// NewFeatureExtractor returns an extractor; a nil analyzer selects the built-in VADER analyzer.
func NewFeatureExtractor(lex Lexicons, analyzer sentiment.Analyzer) FeatureExtractor {
	if analyzer == nil {
		analyzer = sentiment.NewVader()
	}
	return FeatureExtractor{lex: lex, sentiment: analyzer}
}

func (e FeatureExtractor) Extract(text string) Features {
	lower := strings.ToLower(text)
	wc := WordCount(text)
	sc := SentenceCount(text)
	return Features{
		WordCount:         wc,
		SentenceCount:     sc,
		AvgSentenceLength: avgSentenceLength(wc, sc),
		ExclamationCount:  strings.Count(text, "!"),
		QuestionCount:     strings.Count(text, "?"),
		PolitenessCount:   countSubstrings(lower, e.lex.Politeness),
		FirstPersonCount:  countSubstrings(lower, e.lex.FirstPerson),
		ModalVerbCount:    countSubstrings(lower, e.lex.Modal),
		Sentiment:         e.sentiment.Compound(text),
		PleaseCount:       strings.Count(lower, "please"),
		ThankCount:        strings.Count(lower, "thank "),
		ThanksCount:       strings.Count(lower, "thanks"),
		AppreciateCount:   strings.Count(lower, "appreciate"),
		SorryCount:        strings.Count(lower, "sorry"),
	}
}

// WordCount is the number of whitespace-delimited tokens.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// SentenceCount treats '.', '?' and '!' alike and counts the non-blank segments between them.
func SentenceCount(text string) int {
	tmp := strings.NewReplacer("?", ".", "!", ".").Replace(text)
	n := 0
	for _, s := range strings.Split(tmp, ".") {
		if strings.TrimSpace(s) != "" {
			n++
		}
	}
	return n
}

// AvgSentenceLength is words per sentence, 0 when there are no sentences.
func AvgSentenceLength(text string) float64 {
	return avgSentenceLength(WordCount(text), SentenceCount(text))
}

func avgSentenceLength(words, sentences int) float64 {
	if sentences == 0 {
		return 0.0
	}
	return float64(words) / float64(sentences)
}

// CountSubstrings sums case-insensitive, non-overlapping occurrences of each entry.
func CountSubstrings(text string, entries []string) int {
	return countSubstrings(strings.ToLower(text), entries)
}

func countSubstrings(lower string, entries []string) int {
	n := 0
	for _, s := range entries {
		if s == "" {
			continue
		}
		n += strings.Count(lower, s)
	}
	return n
}

// FeaturesFromCells parses feature columns back out of a scored row.
// idx holds the column position of each FeatureColumns entry.
func FeaturesFromCells(cells []string, idx [NumFeatures]int) (Features, error) {
	var vals [NumFeatures]float64
	for i, col := range FeatureColumns {
		raw := strings.TrimSpace(cells[idx[i]])
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Features{}, fmt.Errorf("column %s: parse %q: %w", col, raw, err)
		}
		vals[i] = v
	}
	return Features{
		WordCount:         int(vals[0]),
		SentenceCount:     int(vals[1]),
		AvgSentenceLength: vals[2],
		ExclamationCount:  int(vals[3]),
		QuestionCount:     int(vals[4]),
		PolitenessCount:   int(vals[5]),
		FirstPersonCount:  int(vals[6]),
		ModalVerbCount:    int(vals[7]),
		Sentiment:         vals[8],
		PleaseCount:       int(vals[9]),
		ThankCount:        int(vals[10]),
		ThanksCount:       int(vals[11]),
		AppreciateCount:   int(vals[12]),
		SorryCount:        int(vals[13]),
	}, nil
}
