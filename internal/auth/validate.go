package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/fpang/livechat-analyzer/internal/classify"
	"github.com/fpang/livechat-analyzer/internal/metrics"
)

// ValidationError represents a specific type of API key validation failure.
type ValidationError struct {
	Type    ValidationErrorType
	Message string
	Err     error
}

// ValidationErrorType categorizes validation failures.
type ValidationErrorType int

const (
	// ErrTypeNoKey indicates no API key was found.
	ErrTypeNoKey ValidationErrorType = iota
	// ErrTypeInvalidKey indicates the API key is invalid or revoked.
	ErrTypeInvalidKey
	// ErrTypeNetworkError indicates a network connectivity issue.
	ErrTypeNetworkError
	// ErrTypeQuotaExceeded indicates the API quota has been exceeded.
	ErrTypeQuotaExceeded
	// ErrTypeUnknown indicates an unknown error occurred.
	ErrTypeUnknown
)

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ValidateAPIKey verifies the configured key by making one minimal
// generation call against the classification model. It returns nil when
// the key works, or a ValidationError categorizing the failure.
func ValidateAPIKey(ctx context.Context, model classify.TextModel) error {
	log.Debug().Msg("Validating API key with Gemini API")

	start := time.Now()
	text, _, err := model.Generate(ctx, "hi", 8)
	elapsed := time.Since(start)

	result := "success"
	if err != nil {
		valErr := classifyError(err)
		switch valErr.Type {
		case ErrTypeInvalidKey:
			result = "invalid"
		case ErrTypeNetworkError:
			result = "network_error"
		case ErrTypeQuotaExceeded:
			result = "quota"
		default:
			result = "unknown"
		}

		metrics.New("LiveChatAnalyzer").
			Dimension("Result", result).
			Metric("ApiKeyValidationMs", float64(elapsed.Milliseconds()), metrics.UnitMilliseconds).
			Count("ApiKeyValidationResult").
			Flush()

		return valErr
	}

	if text == "" {
		log.Warn().Msg("API key validation returned empty response")
		metrics.New("LiveChatAnalyzer").
			Dimension("Result", "empty_response").
			Metric("ApiKeyValidationMs", float64(elapsed.Milliseconds()), metrics.UnitMilliseconds).
			Count("ApiKeyValidationResult").
			Flush()
		return &ValidationError{
			Type:    ErrTypeUnknown,
			Message: "API returned empty response",
		}
	}

	metrics.New("LiveChatAnalyzer").
		Dimension("Result", result).
		Metric("ApiKeyValidationMs", float64(elapsed.Milliseconds()), metrics.UnitMilliseconds).
		Count("ApiKeyValidationResult").
		Flush()

	log.Debug().
		Str("result", result).
		Dur("duration", elapsed).
		Msg("API key validation result")

	log.Info().Msg("API key validated successfully")
	return nil
}

// classifyError analyzes an error and returns a ValidationError with the appropriate type.
func classifyError(err error) *ValidationError {
	if err == nil {
		return nil
	}

	errLower := strings.ToLower(err.Error())

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return classifyAPIError(apiErr)
	}

	switch {
	case strings.Contains(errLower, "api key not valid") ||
		strings.Contains(errLower, "invalid api key") ||
		strings.Contains(errLower, "api_key_invalid") ||
		strings.Contains(errLower, "permission denied"):
		log.Error().Err(err).Msg("Invalid API key")
		return &ValidationError{
			Type:    ErrTypeInvalidKey,
			Message: "API key is invalid or has been revoked",
			Err:     err,
		}

	case strings.Contains(errLower, "quota") ||
		strings.Contains(errLower, "resource exhausted") ||
		strings.Contains(errLower, "rate limit"):
		log.Error().Err(err).Msg("API quota exceeded")
		return &ValidationError{
			Type:    ErrTypeQuotaExceeded,
			Message: "API quota exceeded or rate limited",
			Err:     err,
		}

	case strings.Contains(errLower, "connection") ||
		strings.Contains(errLower, "network") ||
		strings.Contains(errLower, "timeout") ||
		strings.Contains(errLower, "dial") ||
		strings.Contains(errLower, "no such host") ||
		strings.Contains(errLower, "unreachable"):
		log.Error().Err(err).Msg("Network error during API validation")
		return &ValidationError{
			Type:    ErrTypeNetworkError,
			Message: "Network error - check your internet connection",
			Err:     err,
		}

	default:
		log.Error().Err(err).Msg("Unknown error during API validation")
		return &ValidationError{
			Type:    ErrTypeUnknown,
			Message: "Failed to validate API key",
			Err:     err,
		}
	}
}

// classifyAPIError categorizes a Google API error by status code.
func classifyAPIError(err genai.APIError) *ValidationError {
	switch err.Code {
	case http.StatusBadRequest:
		log.Error().Int("code", err.Code).Msg("Bad request - possibly invalid API key format")
		return &ValidationError{
			Type:    ErrTypeInvalidKey,
			Message: "Bad request - API key may be malformed",
			Err:     err,
		}

	case http.StatusUnauthorized, http.StatusForbidden:
		log.Error().Int("code", err.Code).Msg("Authentication failed - invalid API key")
		return &ValidationError{
			Type:    ErrTypeInvalidKey,
			Message: "API key is invalid, expired, or lacks permissions",
			Err:     err,
		}

	case http.StatusTooManyRequests:
		log.Error().Int("code", err.Code).Msg("Rate limit exceeded")
		return &ValidationError{
			Type:    ErrTypeQuotaExceeded,
			Message: "API rate limit exceeded - try again later",
			Err:     err,
		}

	case http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		log.Error().Int("code", err.Code).Msg("Server error during validation")
		return &ValidationError{
			Type:    ErrTypeNetworkError,
			Message: "Gemini API server error - try again later",
			Err:     err,
		}

	default:
		log.Error().Int("code", err.Code).Str("message", err.Message).Msg("Google API error")
		return &ValidationError{
			Type:    ErrTypeUnknown,
			Message: err.Message,
			Err:     err,
		}
	}
}
