// Package mock provides a configurable in-memory ai.Provider for tests
// and local development without API credentials.
package mock

import (
	"context"
	"log/slog"
	"sync"

	"github.com/bananano/posterforge/internal/ai"
	"github.com/bananano/posterforge/internal/domain"
)

// Provider is a mock AI provider for testing and development.
type Provider struct {
	logger *slog.Logger

	mu sync.Mutex

	// Configurable responses for testing
	AnalyzeImageResponse   *domain.DesignAnalysis
	AnalyzeImageError      error
	GeneratePosterResponse *domain.PosterResult
	GeneratePosterError    error

	// AnalyzeDelay blocks AnalyzeImage until the channel is closed,
	// letting tests exercise in-flight and staleness behavior.
	AnalyzeDelay chan struct{}

	// GenerateDelay blocks GeneratePoster until the channel is closed.
	GenerateDelay chan struct{}

	// Call tracking for testing
	AnalyzeImageCalls   int
	GeneratePosterCalls int
	LastAnalyzeParams   ai.AnalyzeImageParams
	LastGenerateParams  ai.GeneratePosterParams
}

// New creates a new mock AI provider.
func New(logger *slog.Logger) *Provider {
	return &Provider{
		logger: logger,
	}
}

// AnalyzeImage returns the configured analysis, or a plausible canned one.
func (p *Provider) AnalyzeImage(ctx context.Context, params ai.AnalyzeImageParams) (*domain.DesignAnalysis, error) {
	p.mu.Lock()
	p.AnalyzeImageCalls++
	p.LastAnalyzeParams = params
	delay := p.AnalyzeDelay
	p.mu.Unlock()

	if delay != nil {
		select {
		case <-delay:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.AnalyzeImageError != nil {
		return nil, p.AnalyzeImageError
	}
	if p.AnalyzeImageResponse != nil {
		return p.AnalyzeImageResponse, nil
	}

	// Default canned response
	return &domain.DesignAnalysis{
		Palette: domain.Palette{
			Primary: "#1a1a2e",
			Accent:  "#ffd23f",
			BG:      "#0f0f1a",
			Text:    "#f5f5f5",
		},
		DominantColors: []domain.DominantColor{
			{Hex: "#1a1a2e", Percent: 45},
			{Hex: "#ffd23f", Percent: 30},
			{Hex: "#f5f5f5", Percent: 15},
		},
		MoodTags: []string{"cinematic", "moody", "dramatic"},
		FontRec:  domain.FontPair{Display: "Bebas Neue", Body: "Inter"},
		LayoutSuggestion: domain.LayoutSuggestion{
			TitlePosition: "bottom",
			OverlayStyle:  "bold_center",
			TitleColor:    "#ffd23f",
			TitleSize:     "72px",
		},
		Typography: domain.TypographyOverlay{
			SuggestedTitle:    "The Long Shadow",
			SuggestedSubtitle: "Every secret has a price",
			TextColor:         "#f5f5f5",
			Shadow:            "soft",
		},
		PromptSuggestion: domain.PromptSuggestion{
			Short:  "Cinematic poster, moody lighting, {{overlay_text}}",
			Medium: "Cinematic movie poster with dramatic lighting and a bold title treatment. {{overlay_text}}",
			Long:   "A full cinematic one-sheet movie poster, dramatic rim lighting, rich shadows, bold typography. {{overlay_text}} Seed: {{seed}}",
		},
		PreserveIdentity: true,
		SuggestedSeeds:   []int64{1337, 4242, 9001},
		Confidence:       domain.ConfidenceScores{Overall: 0.9, Palette: 0.85, Mood: 0.8},
		AltText:          "Portrait of a person in dramatic low-key lighting",
	}, nil
}

// GeneratePoster returns the configured poster, or a tiny canned one.
func (p *Provider) GeneratePoster(ctx context.Context, params ai.GeneratePosterParams) (*domain.PosterResult, error) {
	p.mu.Lock()
	p.GeneratePosterCalls++
	p.LastGenerateParams = params
	delay := p.GenerateDelay
	p.mu.Unlock()

	if delay != nil {
		select {
		case <-delay:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.GeneratePosterError != nil {
		return nil, p.GeneratePosterError
	}
	if p.GeneratePosterResponse != nil {
		return p.GeneratePosterResponse, nil
	}

	// 1x1 transparent PNG, enough for the display layer to render
	return &domain.PosterResult{
		ImageURL: "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg==",
		Title:    "The Long Shadow",
		Tagline:  "Every secret has a price",
	}, nil
}
