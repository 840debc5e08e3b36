package domain

// StyleTemplate is an externally authored descriptor of a visual and
// narrative poster treatment. Templates are loaded once from the
// prompt library at startup and are immutable afterwards; a session's
// selection is a reference into the library, never a copy.
type StyleTemplate struct {
	ID               string           `json:"id"`
	Title            string           `json:"title"`
	GenreTags        []string         `json:"genre_tags"`
	TemplateVariants TemplateVariants `json:"template_variants"`
	FontSuggestion   FontPair         `json:"font_suggestion"`
	Palette          StylePalette     `json:"palette"`
	LayoutPresets    []LayoutPreset   `json:"layout_presets"`
	SeedExamples     []int64          `json:"seed_examples"`
	Author           string           `json:"author"`
	Public           bool             `json:"public"`
	CoverImage       string           `json:"coverImage"`
	Description      string           `json:"description"`
	CopyrightSafe    bool             `json:"copyright_safe,omitempty"`
}

// TemplateVariants are the prompt-text variants of a style. Each
// contains the {{overlay_text}} substitution placeholder; generation
// always uses the medium variant.
type TemplateVariants struct {
	Short  string `json:"short"`
	Medium string `json:"medium"`
	Long   string `json:"long"`
}

// StylePalette is a style's default color set.
type StylePalette struct {
	Primary    string `json:"primary"`
	Accent     string `json:"accent"`
	Background string `json:"background"`
	Text       string `json:"text"`
}

// LayoutPreset is one of a style's suggested title layouts.
type LayoutPreset struct {
	LayoutID      string `json:"layout_id"`
	TitlePosition string `json:"title_position"`
	OverlayStyle  string `json:"overlay_style"`
}
