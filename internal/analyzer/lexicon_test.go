package analyzer

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentiq/sentiq-api/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLexiconScoreText(t *testing.T) {
	t.Parallel()

	lex := NewLexicon(testLogger())
	ctx := context.Background()

	t.Run("positive majority", func(t *testing.T) {
		t.Parallel()

		score, err := lex.ScoreText(ctx, "Great product, I love it. Bad packaging though.")
		require.NoError(t, err)
		assert.Equal(t, domain.SentimentPositive, score.Sentiment)
		assert.Equal(t, 0.85, score.Confidence)
	})

	t.Run("negative majority", func(t *testing.T) {
		t.Parallel()

		score, err := lex.ScoreText(ctx, "Terrible quality, arrived broken, want a refund")
		require.NoError(t, err)
		assert.Equal(t, domain.SentimentNegative, score.Sentiment)
		assert.Equal(t, 0.80, score.Confidence)
	})

	t.Run("no hits is neutral", func(t *testing.T) {
		t.Parallel()

		score, err := lex.ScoreText(ctx, "It arrived on Tuesday in a box")
		require.NoError(t, err)
		assert.Equal(t, domain.SentimentNeutral, score.Sentiment)
		assert.Equal(t, 0.60, score.Confidence)
	})

	t.Run("tie is neutral", func(t *testing.T) {
		t.Parallel()

		score, err := lex.ScoreText(ctx, "good but also bad")
		require.NoError(t, err)
		assert.Equal(t, domain.SentimentNeutral, score.Sentiment)
	})

	t.Run("matching is case insensitive", func(t *testing.T) {
		t.Parallel()

		score, err := lex.ScoreText(ctx, "EXCELLENT!")
		require.NoError(t, err)
		assert.Equal(t, domain.SentimentPositive, score.Sentiment)
	})

	t.Run("empty text is rejected", func(t *testing.T) {
		t.Parallel()

		_, err := lex.ScoreText(ctx, "   ")
		assert.ErrorIs(t, err, ErrEmptyText)
	})
}

func TestLexiconScoreBatch(t *testing.T) {
	t.Parallel()

	lex := NewLexicon(testLogger())
	ctx := context.Background()

	t.Run("aggregates counts and percentages", func(t *testing.T) {
		t.Parallel()

		result, err := lex.ScoreBatch(ctx, []string{
			"great product",
			"love this, best purchase",
			"terrible, broken on arrival",
			"arrived in a box",
		})
		require.NoError(t, err)

		assert.Equal(t, 4, result.TotalReviews)
		assert.Equal(t, 2, result.Positive)
		assert.Equal(t, 1, result.Negative)
		assert.Equal(t, 1, result.Neutral)
		assert.Equal(t, 50.0, result.PositivePct)
		assert.Equal(t, 25.0, result.NegativePct)
		assert.Equal(t, 25.0, result.NeutralPct)
	})

	t.Run("blank lines are skipped", func(t *testing.T) {
		t.Parallel()

		result, err := lex.ScoreBatch(ctx, []string{"great", "", "  "})
		require.NoError(t, err)
		assert.Equal(t, 1, result.TotalReviews)
	})

	t.Run("empty batch is rejected", func(t *testing.T) {
		t.Parallel()

		_, err := lex.ScoreBatch(ctx, nil)
		assert.ErrorIs(t, err, ErrEmptyBatch)

		_, err = lex.ScoreBatch(ctx, []string{"", "  "})
		assert.ErrorIs(t, err, ErrEmptyBatch)
	})
}

func TestLexiconWithCustomWords(t *testing.T) {
	t.Parallel()

	lex := NewLexiconWithWords([]string{"bueno"}, []string{"malo"}, testLogger())

	score, err := lex.ScoreText(context.Background(), "muy bueno")
	require.NoError(t, err)
	assert.Equal(t, domain.SentimentPositive, score.Sentiment)
}

func TestAggregate(t *testing.T) {
	t.Parallel()

	t.Run("percentages round to one decimal", func(t *testing.T) {
		t.Parallel()

		// One of three: 33.333... rounds to 33.3.
		result := Aggregate([]Score{
			{Sentiment: domain.SentimentPositive},
			{Sentiment: domain.SentimentNegative},
			{Sentiment: domain.SentimentNeutral},
		})

		assert.Equal(t, 3, result.TotalReviews)
		assert.Equal(t, 33.3, result.PositivePct)
		assert.Equal(t, 33.3, result.NegativePct)
		assert.Equal(t, 33.3, result.NeutralPct)
	})

	t.Run("empty input yields zero values", func(t *testing.T) {
		t.Parallel()

		result := Aggregate(nil)
		assert.Equal(t, 0, result.TotalReviews)
		assert.Equal(t, 0.0, result.PositivePct)
	})
}
