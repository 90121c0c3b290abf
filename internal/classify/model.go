package classify

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/fpang/livechat-analyzer/internal/metrics"
	"github.com/fpang/livechat-analyzer/internal/usage"
)

// DefaultModelName is the default Gemini model for comment classification.
// Flash-Lite is the high-throughput, lowest-cost tier, which suits a
// 480-requests-per-minute classification workload.
// Can be overridden via the GEMINI_MODEL environment variable.
const DefaultModelName = "gemini-2.5-flash-lite"

// ModelName returns the Gemini model to use, resolved from:
// 1. GEMINI_MODEL environment variable (if set)
// 2. Default: gemini-2.5-flash-lite
func ModelName() string {
	if env := os.Getenv("GEMINI_MODEL"); env != "" {
		return env
	}
	return DefaultModelName
}

// TextModel is the narrow surface the classifier needs from an LLM: one
// prompt in, free-form text and token usage out.
type TextModel interface {
	Generate(ctx context.Context, prompt string, maxOutputTokens int32) (string, usage.Usage, error)
}

// NewGeminiClient creates a Gemini API client with the given key.
func NewGeminiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create Gemini client: %w", err)
	}
	return client, nil
}

// GeminiModel adapts a genai.Client to the TextModel interface.
// Temperature is pinned low for label consistency across a run.
type GeminiModel struct {
	client *genai.Client
	name   string
}

// NewGeminiModel wraps client for the named model. An empty name selects
// ModelName().
func NewGeminiModel(client *genai.Client, name string) *GeminiModel {
	if name == "" {
		name = ModelName()
	}
	return &GeminiModel{client: client, name: name}
}

// Generate sends one user message and returns the response text with its
// usage metadata.
func (m *GeminiModel) Generate(ctx context.Context, prompt string, maxOutputTokens int32) (string, usage.Usage, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](0.1),
		MaxOutputTokens: maxOutputTokens,
	}

	start := time.Now()
	resp, err := m.client.Models.GenerateContent(ctx, m.name, genai.Text(prompt), cfg)
	elapsed := time.Since(start)

	rec := metrics.New("LiveChatAnalyzer").
		Dimension("Operation", "classify").
		Metric("GeminiApiLatencyMs", float64(elapsed.Milliseconds()), metrics.UnitMilliseconds).
		Count("GeminiApiCalls")
	if err != nil {
		rec.Count("GeminiApiErrors")
	}
	if resp != nil && resp.UsageMetadata != nil {
		rec.Metric("GeminiInputTokens", float64(resp.UsageMetadata.PromptTokenCount), metrics.UnitCount)
		rec.Metric("GeminiOutputTokens", float64(resp.UsageMetadata.CandidatesTokenCount), metrics.UnitCount)
	}
	rec.Flush()

	if err != nil {
		log.Error().Err(err).Dur("duration", elapsed).Str("model", m.name).Msg("Failed to generate classification")
		return "", usage.Usage{}, fmt.Errorf("generate content: %w", err)
	}
	if resp == nil || resp.Text() == "" {
		log.Warn().Dur("duration", elapsed).Str("model", m.name).Msg("Received empty response from Gemini")
		return "", usage.Usage{}, fmt.Errorf("received empty response from Gemini API")
	}

	var u usage.Usage
	if resp.UsageMetadata != nil {
		u = usage.Usage{
			Prompt:     int(resp.UsageMetadata.PromptTokenCount),
			Completion: int(resp.UsageMetadata.CandidatesTokenCount),
			Total:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return resp.Text(), u, nil
}
