package cli

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/fpang/livechat-analyzer/internal/auth"
)

// ValidateAndResolveFile checks that the path exists and is a regular file,
// then returns the absolute path. Exits fatally on failure.
func ValidateAndResolveFile(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Fatal().Str("path", path).Msg("File not found")
		}
		log.Fatal().Err(err).Str("path", path).Msg("Failed to access file")
	}
	if info.IsDir() {
		log.Fatal().Str("path", path).Msg("Path is a directory, expected a file")
	}

	absPath, err := filepath.Abs(path)
	if err == nil {
		path = absPath
	}

	return path
}

// EnsureDir creates the directory if needed and returns its absolute path.
// Exits fatally on failure.
func EnsureDir(path string) string {
	if err := os.MkdirAll(path, 0o755); err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("Failed to create directory")
	}
	absPath, err := filepath.Abs(path)
	if err == nil {
		path = absPath
	}
	return path
}

// HandleValidationError prints a user-friendly message for an API key
// validation failure and exits.
func HandleValidationError(err error) {
	var validationErr *auth.ValidationError
	if errors.As(err, &validationErr) {
		switch validationErr.Type {
		case auth.ErrTypeNoKey:
			log.Fatal().Msg("No API key configured. Set GEMINI_API_KEY or store a GPG-encrypted key under ~/.livechat-analyzer")
		case auth.ErrTypeInvalidKey:
			log.Fatal().Err(err).Msg("Invalid API key. Please check your API key and try again")
		case auth.ErrTypeNetworkError:
			log.Fatal().Err(err).Msg("Network error. Please check your internet connection")
		case auth.ErrTypeQuotaExceeded:
			log.Fatal().Err(err).Msg("API quota exceeded. Please try again later or check your usage limits")
		default:
			log.Fatal().Err(err).Msg("API key validation failed")
		}
	} else {
		log.Fatal().Err(err).Msg("unexpected error during API key validation")
	}
	os.Exit(1)
}
