// Package analyzer defines the sentiment scoring boundary consumed by the
// task worker, plus the default in-process lexicon implementation.
package analyzer

import (
	"context"
	"errors"

	"github.com/sentiq/sentiq-api/internal/domain"
)

// Common analyzer errors.
var (
	// ErrEmptyText is returned when there is nothing to score.
	ErrEmptyText = errors.New("text cannot be empty")

	// ErrEmptyBatch is returned when a batch contains no texts.
	ErrEmptyBatch = errors.New("batch cannot be empty")

	// ErrScoringFailed wraps failures from the underlying classifier.
	ErrScoringFailed = errors.New("scoring failed")
)

// Score is the classification outcome for one text.
type Score struct {
	Sentiment  domain.Sentiment
	Confidence float64
}

// Analyzer is the external ML collaborator: it turns text into sentiment
// classifications. Implementations must surface failures as errors the
// worker can catch and convert to task error payloads.
type Analyzer interface {
	// ScoreText classifies a single text.
	ScoreText(ctx context.Context, text string) (Score, error)

	// ScoreBatch classifies many texts and aggregates the outcome.
	ScoreBatch(ctx context.Context, texts []string) (domain.BatchResult, error)
}

// Aggregate folds per-text scores into a batch summary with percentages
// rounded to one decimal place. Shared by all Analyzer implementations.
func Aggregate(scores []Score) domain.BatchResult {
	result := domain.BatchResult{TotalReviews: len(scores)}

	for _, s := range scores {
		switch s.Sentiment {
		case domain.SentimentPositive:
			result.Positive++
		case domain.SentimentNegative:
			result.Negative++
		default:
			result.Neutral++
		}
	}

	if result.TotalReviews > 0 {
		total := float64(result.TotalReviews)
		result.PositivePct = roundPct(float64(result.Positive) / total * 100)
		result.NegativePct = roundPct(float64(result.Negative) / total * 100)
		result.NeutralPct = roundPct(float64(result.Neutral) / total * 100)
	}

	return result
}

func roundPct(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}
