// Package gemini implements the sentiment Analyzer on top of the Gemini
// API. It is selected by configuration; the in-process lexicon scorer is
// the default.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/sentiq/sentiq-api/internal/analyzer"
	"github.com/sentiq/sentiq-api/internal/config"
	"github.com/sentiq/sentiq-api/internal/domain"
)

// Analyzer-specific errors.
var (
	// ErrContentBlocked indicates the model refused the text on safety
	// grounds. Not retried.
	ErrContentBlocked = errors.New("content blocked by safety settings")

	// ErrTransient indicates a temporary API failure that may be retried.
	ErrTransient = errors.New("transient API failure")

	// ErrInvalidResponse indicates the model reply could not be parsed
	// into a classification.
	ErrInvalidResponse = errors.New("invalid model response")
)

const defaultModelName = "gemini-2.0-flash"

// classifyPrompt pins the model to a machine-readable reply. The scorer
// depends on this exact shape.
const classifyPrompt = `Classify the sentiment of the following text as exactly one of "positive", "negative" or "neutral", and give your confidence between 0 and 1.
Respond with only a JSON object of the form {"sentiment": "...", "confidence": 0.0} and nothing else.

Text:
%s`

// Analyzer calls the Gemini API with bounded retries for transient
// failures. Safety blocks and malformed replies fail immediately.
type Analyzer struct {
	client     *genai.Client
	modelName  string
	maxRetries int
	retryDelay time.Duration
	logger     *slog.Logger
}

var _ analyzer.Analyzer = (*Analyzer)(nil)

// NewAnalyzer creates a Gemini-backed Analyzer from configuration.
func NewAnalyzer(ctx context.Context, cfg config.AnalyzerConfig, logger *slog.Logger) (*Analyzer, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	modelName := cfg.ModelName
	if modelName == "" {
		modelName = defaultModelName
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &Analyzer{
		client:     client,
		modelName:  modelName,
		maxRetries: cfg.MaxRetries,
		retryDelay: time.Duration(cfg.RetryDelaySeconds) * time.Second,
		logger:     logger.With("component", "gemini_analyzer"),
	}, nil
}

// ScoreText implements analyzer.Analyzer.
func (a *Analyzer) ScoreText(ctx context.Context, text string) (analyzer.Score, error) {
	if strings.TrimSpace(text) == "" {
		return analyzer.Score{}, analyzer.ErrEmptyText
	}

	var lastErr error
	for attempt := 0; attempt <= a.maxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff between attempts.
			delay := a.retryDelay * time.Duration(1<<(attempt-1))
			a.logger.Debug("retrying classification",
				"attempt", attempt,
				"delay", delay)
			select {
			case <-ctx.Done():
				return analyzer.Score{}, ctx.Err()
			case <-time.After(delay):
			}
		}

		score, err := a.classify(ctx, text)
		if err == nil {
			return score, nil
		}
		lastErr = err

		if !errors.Is(err, ErrTransient) {
			break
		}
	}

	return analyzer.Score{}, fmt.Errorf("%w: %v", analyzer.ErrScoringFailed, lastErr)
}

// ScoreBatch implements analyzer.Analyzer. Texts are scored one by one;
// the first failure aborts the batch so partial aggregates never leak out.
func (a *Analyzer) ScoreBatch(ctx context.Context, texts []string) (domain.BatchResult, error) {
	if len(texts) == 0 {
		return domain.BatchResult{}, analyzer.ErrEmptyBatch
	}

	scores := make([]analyzer.Score, 0, len(texts))
	for i, text := range texts {
		score, err := a.ScoreText(ctx, text)
		if err != nil {
			return domain.BatchResult{}, fmt.Errorf("text %d: %w", i, err)
		}
		scores = append(scores, score)
	}

	return analyzer.Aggregate(scores), nil
}

// classify performs one API call and parses the reply.
func (a *Analyzer) classify(ctx context.Context, text string) (analyzer.Score, error) {
	prompt := fmt.Sprintf(classifyPrompt, text)

	resp, err := a.client.Models.GenerateContent(ctx, a.modelName, genai.Text(prompt), nil)
	if err != nil {
		if isTransientError(err) {
			return analyzer.Score{}, fmt.Errorf("%w: %v", ErrTransient, err)
		}
		return analyzer.Score{}, fmt.Errorf("generation failed: %w", err)
	}

	if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason == genai.FinishReasonSafety {
		return analyzer.Score{}, ErrContentBlocked
	}

	return parseScore(resp.Text())
}

// parseScore decodes the pinned JSON reply shape. Markdown code fences
// around the JSON are tolerated since models add them despite the prompt.
func parseScore(reply string) (analyzer.Score, error) {
	reply = strings.TrimSpace(reply)
	reply = strings.TrimPrefix(reply, "```json")
	reply = strings.TrimPrefix(reply, "```")
	reply = strings.TrimSuffix(reply, "```")
	reply = strings.TrimSpace(reply)

	var parsed struct {
		Sentiment  string  `json:"sentiment"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(reply), &parsed); err != nil {
		return analyzer.Score{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	sentiment := domain.Sentiment(strings.ToLower(parsed.Sentiment))
	if !domain.IsValidSentiment(sentiment) {
		return analyzer.Score{}, fmt.Errorf("%w: unknown sentiment %q", ErrInvalidResponse, parsed.Sentiment)
	}
	if parsed.Confidence < 0 || parsed.Confidence > 1 {
		return analyzer.Score{}, fmt.Errorf("%w: confidence %f out of range", ErrInvalidResponse, parsed.Confidence)
	}

	return analyzer.Score{Sentiment: sentiment, Confidence: parsed.Confidence}, nil
}

// isTransientError reports whether the failure is worth retrying. The
// genai SDK does not expose stable error types for these, so this matches
// on the status text.
func isTransientError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"429", "resource exhausted", "rate limit",
		"500", "internal", "502", "503", "unavailable",
		"deadline exceeded", "connection reset", "timeout",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
