package analyzer

import (
	"context"
	"log/slog"
	"strings"

	"github.com/sentiq/sentiq-api/internal/domain"
)

// Default word lists. Kept small on purpose: the lexicon scorer exists to
// be deterministic and dependency-free, not to compete with a real model.
var (
	defaultPositiveWords = []string{
		"good", "great", "excellent", "amazing", "love", "wonderful",
		"fantastic", "recommend", "perfect", "best",
	}
	defaultNegativeWords = []string{
		"bad", "terrible", "awful", "hate", "worst", "poor",
		"disappointed", "broken", "waste", "refund",
	}
)

// Confidence levels reported by the lexicon scorer. Fixed values keep the
// scorer fully deterministic for a given input.
const (
	positiveConfidence = 0.85
	negativeConfidence = 0.80
	neutralConfidence  = 0.60
)

// Lexicon is a deterministic word-list sentiment classifier. It counts
// positive and negative lexicon hits and classifies by majority, which is
// enough for local runs and makes worker behavior reproducible in tests.
type Lexicon struct {
	positive map[string]struct{}
	negative map[string]struct{}
	logger   *slog.Logger
}

// NewLexicon creates a Lexicon scorer with the default word lists.
// If logger is nil, the process default is used.
func NewLexicon(logger *slog.Logger) *Lexicon {
	return NewLexiconWithWords(defaultPositiveWords, defaultNegativeWords, logger)
}

// NewLexiconWithWords creates a Lexicon scorer with custom word lists.
func NewLexiconWithWords(positive, negative []string, logger *slog.Logger) *Lexicon {
	if logger == nil {
		logger = slog.Default()
	}

	l := &Lexicon{
		positive: make(map[string]struct{}, len(positive)),
		negative: make(map[string]struct{}, len(negative)),
		logger:   logger.With("component", "lexicon_analyzer"),
	}
	for _, w := range positive {
		l.positive[strings.ToLower(w)] = struct{}{}
	}
	for _, w := range negative {
		l.negative[strings.ToLower(w)] = struct{}{}
	}
	return l
}

// Ensure Lexicon implements the Analyzer interface.
var _ Analyzer = (*Lexicon)(nil)

// ScoreText classifies a single text by lexicon hit counts.
func (l *Lexicon) ScoreText(ctx context.Context, text string) (Score, error) {
	if strings.TrimSpace(text) == "" {
		return Score{}, ErrEmptyText
	}

	var positives, negatives int
	for _, token := range tokenize(text) {
		if _, ok := l.positive[token]; ok {
			positives++
		}
		if _, ok := l.negative[token]; ok {
			negatives++
		}
	}

	score := Score{Sentiment: domain.SentimentNeutral, Confidence: neutralConfidence}
	switch {
	case positives > negatives:
		score = Score{Sentiment: domain.SentimentPositive, Confidence: positiveConfidence}
	case negatives > positives:
		score = Score{Sentiment: domain.SentimentNegative, Confidence: negativeConfidence}
	}

	l.logger.Debug("scored text",
		"positive_hits", positives,
		"negative_hits", negatives,
		"sentiment", score.Sentiment)

	return score, nil
}

// ScoreBatch classifies each text and aggregates the results. Empty texts
// are skipped rather than failing the whole batch.
func (l *Lexicon) ScoreBatch(ctx context.Context, texts []string) (domain.BatchResult, error) {
	if len(texts) == 0 {
		return domain.BatchResult{}, ErrEmptyBatch
	}

	scores := make([]Score, 0, len(texts))
	for _, text := range texts {
		if strings.TrimSpace(text) == "" {
			continue
		}
		score, err := l.ScoreText(ctx, text)
		if err != nil {
			return domain.BatchResult{}, err
		}
		scores = append(scores, score)
	}

	if len(scores) == 0 {
		return domain.BatchResult{}, ErrEmptyBatch
	}

	return Aggregate(scores), nil
}

// tokenize lowercases and splits text on non-letter, non-digit runes.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'))
	})
}
