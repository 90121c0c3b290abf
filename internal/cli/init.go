package cli

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/fpang/livechat-analyzer/internal/auth"
	"github.com/fpang/livechat-analyzer/internal/classify"
)

// InitModel creates and validates the Gemini-backed text model used for
// classification. Returns the context and model ready for use, or exits
// fatally on failure.
func InitModel(modelName string) (context.Context, classify.TextModel) {
	apiKey, err := auth.GetAPIKey()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to retrieve API key")
	}

	ctx := context.Background()
	client, err := classify.NewGeminiClient(ctx, apiKey)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create Gemini client")
	}

	log.Info().Str("model", modelName).Msg("connection successful - Gemini client initialized")

	model := classify.NewGeminiModel(client, modelName)
	if err := auth.ValidateAPIKey(ctx, model); err != nil {
		HandleValidationError(err)
	}

	log.Info().Msg("API key validation complete - ready for classification")

	return ctx, model
}
