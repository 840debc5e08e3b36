// Package gemini implements the ai.Provider interface on top of the
// Gemini API via the official google.golang.org/genai SDK.
package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/bananano/posterforge/internal/ai"
	"github.com/bananano/posterforge/internal/domain"
	"google.golang.org/genai"
)

const (
	// DefaultAnalysisModel is the text+vision model used for design analysis.
	DefaultAnalysisModel = "gemini-2.5-flash"

	// DefaultGenerationModel is the image-output model used for posters.
	DefaultGenerationModel = "gemini-2.5-flash-image-preview"

	// MaxImageSize is the maximum decoded image size in bytes (20MB).
	MaxImageSize = 20 * 1024 * 1024
)

// Config contains configuration for the Gemini provider.
type Config struct {
	APIKey          string
	AnalysisModel   string
	GenerationModel string
	ProviderConfig  ai.ProviderConfig
}

// Provider implements the ai.Provider interface using the Gemini API.
type Provider struct {
	config Config
	client *genai.Client
	logger *slog.Logger
}

// New creates a new Gemini AI provider.
func New(ctx context.Context, config Config, logger *slog.Logger) (*Provider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	// Set defaults
	if config.AnalysisModel == "" {
		config.AnalysisModel = DefaultAnalysisModel
	}
	if config.GenerationModel == "" {
		config.GenerationModel = DefaultGenerationModel
	}
	if config.ProviderConfig.MaxRetries == 0 {
		config.ProviderConfig.MaxRetries = 3
	}
	if config.ProviderConfig.RetryBaseDelay == 0 {
		config.ProviderConfig.RetryBaseDelay = 1 * time.Second
	}
	if config.ProviderConfig.RequestTimeout == 0 {
		config.ProviderConfig.RequestTimeout = 120 * time.Second
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &Provider{
		config: config,
		client: client,
		logger: logger,
	}, nil
}

// AnalyzeImage sends the portrait plus the fixed analysis instruction
// and parses the response as a strict DesignAnalysis JSON document.
func (p *Provider) AnalyzeImage(ctx context.Context, params ai.AnalyzeImageParams) (*domain.DesignAnalysis, error) {
	parts, err := p.imageParts(params.Payload, params.MediaType, analysisPrompt)
	if err != nil {
		return nil, &ai.AnalysisError{Err: err}
	}

	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}

	resp, err := p.generateWithRetry(ctx, p.config.AnalysisModel, parts, cfg)
	if err != nil {
		return nil, &ai.AnalysisError{Err: ai.WrapError("analyze image", err)}
	}

	analysis, err := parseAnalysisResponse(resp)
	if err != nil {
		return nil, &ai.AnalysisError{Err: err}
	}

	return analysis, nil
}

// GeneratePoster assembles the prompt from the style template, custom
// text, and optional analysis guidance, then requests an image+text
// response and parses it into a PosterResult.
func (p *Provider) GeneratePoster(ctx context.Context, params ai.GeneratePosterParams) (*domain.PosterResult, error) {
	if params.Style == nil {
		return nil, &ai.GenerationError{Reason: "No style template was provided.", Err: ai.EAIInvalidImage}
	}

	prompt := buildGenerationPrompt(params.Style, params.CustomText, params.Analysis)

	parts, err := p.imageParts(params.Payload, params.MediaType, prompt)
	if err != nil {
		return nil, &ai.GenerationError{Reason: "The uploaded image payload is invalid.", Err: err}
	}

	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
	}

	resp, err := p.generateWithRetry(ctx, p.config.GenerationModel, parts, cfg)
	if err != nil {
		return nil, &ai.GenerationError{
			Reason: fmt.Sprintf("Poster generation request failed: %v", err),
			Err:    err,
		}
	}

	return parsePosterResponse(resp)
}

// imageParts decodes the transport payload and builds the request parts
// (inline image first, then the instruction text).
func (p *Provider) imageParts(payload, mediaType, text string) ([]*genai.Part, error) {
	if payload == "" {
		return nil, fmt.Errorf("%w: empty payload", ai.EAIInvalidImage)
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: payload is not valid base64: %v", ai.EAIInvalidImage, err)
	}
	if len(raw) > MaxImageSize {
		return nil, fmt.Errorf("%w: image size %d exceeds maximum %d", ai.EAIInvalidImage, len(raw), MaxImageSize)
	}
	if mediaType == "" {
		return nil, fmt.Errorf("%w: media type is required", ai.EAIInvalidImage)
	}

	return []*genai.Part{
		{InlineData: &genai.Blob{MIMEType: mediaType, Data: raw}},
		genai.NewPartFromText(text),
	}, nil
}

// generateWithRetry executes one GenerateContent call with exponential
// backoff on transient errors.
func (p *Provider) generateWithRetry(ctx context.Context, model string, parts []*genai.Part, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	var lastErr error
	for attempt := 1; attempt <= p.config.ProviderConfig.MaxRetries; attempt++ {
		reqCtx, cancel := context.WithTimeout(ctx, p.config.ProviderConfig.RequestTimeout)
		resp, err := p.client.Models.GenerateContent(reqCtx, model, contents, cfg)
		cancel()
		if err == nil {
			return resp, nil
		}

		lastErr = mapAPIError(err)

		if !ai.IsRetryable(lastErr) {
			return nil, lastErr
		}
		if attempt >= p.config.ProviderConfig.MaxRetries {
			break
		}

		delay := p.config.ProviderConfig.RetryBaseDelay * time.Duration(1<<(attempt-1))
		p.logger.Info("Retrying Gemini request", "model", model, "attempt", attempt, "delay", delay, "error", lastErr)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, lastErr
}

// mapAPIError maps SDK and transport errors to the ai sentinel errors.
func mapAPIError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ai.EAITimeout
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return ai.EAIUnauthorized
		case http.StatusTooManyRequests:
			return ai.EAIRateLimit
		case http.StatusBadRequest:
			return fmt.Errorf("%w: %s", ai.EAIInvalidImage, apiErr.Message)
		case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout, http.StatusInternalServerError:
			return ai.EAIUnavailable
		default:
			return fmt.Errorf("gemini API error (status %d): %s", apiErr.Code, apiErr.Message)
		}
	}

	// Plain network errors are typically transient.
	return fmt.Errorf("%w: %v", ai.EAIUnavailable, err)
}

// =============================================================================
// Response parsing
// =============================================================================

// parseAnalysisResponse parses the analysis response text as a strict
// DesignAnalysis JSON document and validates its contract.
func parseAnalysisResponse(resp *genai.GenerateContentResponse) (*domain.DesignAnalysis, error) {
	text := firstText(resp)
	if text == "" {
		return nil, fmt.Errorf("no text content in analysis response")
	}

	var analysis domain.DesignAnalysis
	if err := json.Unmarshal([]byte(text), &analysis); err != nil {
		return nil, fmt.Errorf("parse analysis output: %w", err)
	}
	if err := analysis.Validate(); err != nil {
		return nil, fmt.Errorf("invalid analysis output: %w", err)
	}

	return &analysis, nil
}

var (
	titlePattern   = regexp.MustCompile(`(?i)Title:\s*(.*)`)
	taglinePattern = regexp.MustCompile(`(?i)Tagline:\s*(.*)`)
)

// parsePosterResponse extracts the generated poster from the response.
//
// The first inline-image part becomes the poster; the first text part
// is scanned for "Title:" and "Tagline:" lines (case-insensitive, first
// match wins). Absence of either label is not an error. When no image
// part exists, the finish reason is classified into a precise
// GenerationError per the failure priority rules.
func parsePosterResponse(resp *genai.GenerateContentResponse) (*domain.PosterResult, error) {
	if len(resp.Candidates) == 0 {
		return nil, &ai.GenerationError{Reason: ai.ReasonBlockedEmpty}
	}

	candidate := resp.Candidates[0]
	text := firstText(resp)

	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}

			result := &domain.PosterResult{
				ImageURL: fmt.Sprintf("data:%s;base64,%s",
					part.InlineData.MIMEType,
					base64.StdEncoding.EncodeToString(part.InlineData.Data)),
			}
			if text != "" {
				if m := titlePattern.FindStringSubmatch(text); m != nil {
					result.Title = strings.TrimSpace(m[1])
				}
				if m := taglinePattern.FindStringSubmatch(text); m != nil {
					result.Tagline = strings.TrimSpace(m[1])
				}
			}
			return result, nil
		}
	}

	// No image part: derive a precise failure reason.
	switch candidate.FinishReason {
	case genai.FinishReasonStop:
		if text != "" {
			return nil, &ai.GenerationError{
				Reason: fmt.Sprintf("The model finished but only returned text: %q", truncate(text, 150)),
			}
		}
	case genai.FinishReasonSafety, genai.FinishReasonProhibitedContent, genai.FinishReasonImageSafety:
		return nil, &ai.GenerationError{Reason: ai.ReasonSafetyFiltered}
	}
	if candidate.FinishReason != "" && candidate.FinishReason != genai.FinishReasonStop {
		return nil, &ai.GenerationError{
			Reason: fmt.Sprintf("Generation failed with an unexpected reason: %s", candidate.FinishReason),
		}
	}

	return nil, &ai.GenerationError{Reason: "Image generation failed. The model did not return an image."}
}

// firstText returns the first text-bearing part of the first candidate.
func firstText(resp *genai.GenerateContentResponse) string {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			return part.Text
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
