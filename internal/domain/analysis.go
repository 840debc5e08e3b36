package domain

import "fmt"

// DesignAnalysis is the structured design suggestion the AI derives
// from an uploaded portrait. It is produced at most once per upload,
// treated as an immutable snapshot at generation time, and discarded
// when a new image is uploaded.
//
// The field shapes mirror the strict JSON contract the analysis model
// is instructed to return; parsing is intentionally unforgiving so a
// malformed response fails loudly instead of degrading silently.
type DesignAnalysis struct {
	Palette          Palette           `json:"palette"`
	DominantColors   []DominantColor   `json:"dominant_colors"`
	MoodTags         []string          `json:"mood_tags"`
	FontRec          FontPair          `json:"font_recommendation"`
	LayoutSuggestion LayoutSuggestion  `json:"layout_suggestion"`
	Typography       TypographyOverlay `json:"typography_overlay"`
	PromptSuggestion PromptSuggestion  `json:"prompt_suggestion"`
	PreserveIdentity bool              `json:"preserve_identity"`
	SuggestedSeeds   []int64           `json:"suggested_seeds"`
	Confidence       ConfidenceScores  `json:"confidence"`
	SynthIDFlag      bool              `json:"synthid_flag"`
	AltText          string            `json:"alt_text"`
}

// Palette is a set of suggested hex colors for the poster treatment.
type Palette struct {
	Primary   string `json:"primary"`
	Accent    string `json:"accent"`
	BG        string `json:"bg"`
	Text      string `json:"text"`
	Secondary string `json:"secondary,omitempty"`
}

// Values returns the non-empty palette entries in declaration order.
func (p Palette) Values() []string {
	vals := make([]string, 0, 5)
	for _, v := range []string{p.Primary, p.Accent, p.BG, p.Text, p.Secondary} {
		if v != "" {
			vals = append(vals, v)
		}
	}
	return vals
}

// DominantColor describes one dominant color and its share of the image.
type DominantColor struct {
	Hex     string  `json:"hex"`
	Percent float64 `json:"percent"`
}

// FontPair is a suggested display/body font pairing (Google Fonts names).
type FontPair struct {
	Display string `json:"display"`
	Body    string `json:"body"`
}

// LayoutSuggestion describes where and how the title should sit.
type LayoutSuggestion struct {
	TitlePosition string `json:"title_position"`
	OverlayStyle  string `json:"overlay_style"`
	TitleColor    string `json:"title_color"`
	TitleSize     string `json:"title_size"`
}

// TypographyOverlay carries the suggested title/subtitle text treatment.
type TypographyOverlay struct {
	SuggestedTitle    string `json:"suggested_title"`
	SuggestedSubtitle string `json:"suggested_subtitle"`
	TextColor         string `json:"text_color"`
	Shadow            string `json:"shadow"`
}

// PromptSuggestion holds three ready-to-send prompt variants.
type PromptSuggestion struct {
	Short  string `json:"short"`
	Medium string `json:"medium"`
	Long   string `json:"long"`
}

// ConfidenceScores are per-dimension confidence values in [0,1].
type ConfidenceScores struct {
	Overall float64 `json:"overall"`
	Palette float64 `json:"palette"`
	Mood    float64 `json:"mood"`
}

// Validate enforces the analysis contract: at least 3 dominant colors
// with percentages summing to at most 100, and confidence scores
// within [0,1].
func (a *DesignAnalysis) Validate() error {
	if len(a.DominantColors) < 3 {
		return fmt.Errorf("dominant_colors: expected at least 3 entries, got %d", len(a.DominantColors))
	}
	var sum float64
	for _, dc := range a.DominantColors {
		if dc.Percent < 0 {
			return fmt.Errorf("dominant_colors: negative percentage %v for %s", dc.Percent, dc.Hex)
		}
		sum += dc.Percent
	}
	// Allow a hair of float slop from the model.
	if sum > 100.5 {
		return fmt.Errorf("dominant_colors: percentages sum to %.1f, expected <= 100", sum)
	}
	for name, v := range map[string]float64{
		"overall": a.Confidence.Overall,
		"palette": a.Confidence.Palette,
		"mood":    a.Confidence.Mood,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("confidence.%s: %v outside [0,1]", name, v)
		}
	}
	return nil
}
