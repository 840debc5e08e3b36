package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bananano/posterforge/internal/domain"
)

// Provider defines the interface for the generative AI capabilities the
// application relies on: image analysis (advisory design suggestions)
// and poster generation.
type Provider interface {
	// AnalyzeImage asks the model to describe the image's visual
	// characteristics and suggest a creative treatment. The response is
	// parsed as a strict JSON document; any transport, parse, or
	// validation failure surfaces as an *AnalysisError. Analysis is
	// best-effort enrichment: callers must never let its failure block
	// poster generation.
	AnalyzeImage(ctx context.Context, params AnalyzeImageParams) (*domain.DesignAnalysis, error)

	// GeneratePoster combines the portrait, a style template, optional
	// custom text, and an optional analysis snapshot into one
	// generation request. Failures carry a precise human-readable
	// reason as a *GenerationError.
	GeneratePoster(ctx context.Context, params GeneratePosterParams) (*domain.PosterResult, error)
}

// AnalyzeImageParams contains parameters for image analysis.
type AnalyzeImageParams struct {
	Payload   string // Base64-encoded image bytes (no data-URL header)
	MediaType string // MIME type of the payload (e.g., "image/jpeg")
}

// GeneratePosterParams contains parameters for poster generation.
type GeneratePosterParams struct {
	Payload    string                 // Base64-encoded image bytes
	MediaType  string                 // MIME type of the payload
	Style      *domain.StyleTemplate  // Selected style template (required)
	CustomText string                 // Effective overlay text; may be empty
	Analysis   *domain.DesignAnalysis // Optional advisory analysis snapshot
}

// AnalysisError wraps any failure of the analysis call. Analysis is
// advisory, so callers downgrade this to a warning.
type AnalysisError struct {
	Err error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("image analysis failed: %v", e.Err)
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}

// GenerationError is a terminal failure of one generation attempt with
// a human-readable reason derived from the service response.
type GenerationError struct {
	Reason string
	Err    error
}

func (e *GenerationError) Error() string {
	return e.Reason
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Fixed failure reasons for generation responses that carried no image.
const (
	// ReasonBlockedEmpty is used when the service returned no candidate
	// at all, which usually means the request was blocked outright.
	ReasonBlockedEmpty = "The request was blocked, and the model returned no response. Please try a different image or adjust the style."

	// ReasonSafetyFiltered is used for safety-related finish reasons.
	ReasonSafetyFiltered = "Generation failed due to safety settings. Please try a different image or adjust your custom text."
)

// ProviderConfig contains common configuration for AI providers.
type ProviderConfig struct {
	MaxRetries     int           // Maximum retry attempts for transient errors
	RetryBaseDelay time.Duration // Base delay for exponential backoff
	RequestTimeout time.Duration // Timeout for individual requests
}

// Error codes for AI provider operations
var (
	// EAIRateLimit indicates the API rate limit has been exceeded
	EAIRateLimit = errors.New("ai provider rate limit exceeded")

	// EAIInvalidImage indicates the image format or content is invalid
	EAIInvalidImage = errors.New("invalid image format or content")

	// EAITimeout indicates the request timed out
	EAITimeout = errors.New("ai request timed out")

	// EAIUnavailable indicates the AI service is temporarily unavailable
	EAIUnavailable = errors.New("ai service temporarily unavailable")

	// EAIUnauthorized indicates invalid API credentials
	EAIUnauthorized = errors.New("ai provider authentication failed")
)

// IsRetryable returns true if the error is a transient error that can be retried
func IsRetryable(err error) bool {
	return errors.Is(err, EAIRateLimit) ||
		errors.Is(err, EAITimeout) ||
		errors.Is(err, EAIUnavailable)
}

// WrapError wraps an error with context about the AI operation
func WrapError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("ai %s: %w", operation, err)
}
