package gemini

import (
	"fmt"
	"strings"

	"github.com/bananano/posterforge/internal/domain"
)

// analysisPrompt is the fixed, versioned instruction document for the
// design-analysis call. The model must return a single strict JSON
// object matching the DesignAnalysis shape; any deviation is treated as
// a failed analysis.
const analysisPrompt = `ROLE: You are Bananano Studios' Image Design Architect. INPUT: a single image. TASK: analyze the image and return a single JSON object (no extra text) with the fields described below. Be precise, deterministic, and concise.

REQUIRE JSON schema exactly:
{
  "palette": {"primary":"#hex","accent":"#hex","bg":"#hex","text":"#hex","secondary":"#hex"},
  "dominant_colors": [{"hex":"#hex","percent":float},...],
  "mood_tags": ["cinematic","warm","noir",...],
  "font_recommendation": {"display":"GoogleFontName","body":"GoogleFontName"},
  "layout_suggestion": {"title_position":"top|bottom|left|right|center","overlay_style":"bold_center|vertical_spine|subtitle_below","title_color":"#hex","title_size":"px"},
  "typography_overlay": {"suggested_title":"string (short)","suggested_subtitle":"string (short)","text_color":"#hex","shadow":"soft|hard|none"},
  "prompt_suggestion": {"short":"text","medium":"text","long":"text"},
  "preserve_identity": true,
  "suggested_seeds": [int,int,int],
  "confidence": {"overall":0.0,"palette":0.0,"mood":0.0},
  "synthid_flag": false,
  "alt_text": "short alt text for accessibility"
}

GUIDELINES:
- Use real hex colors. dominant_colors must include at least 3 entries summing to <=100%.
- prompt_suggestion entries must be ready-to-send to an image generation model with placeholders: use {{image_url}}, {{overlay_text}}, {{seed}}.
- font_recommendation must be Google Fonts names.
- confidence values [0.0-1.0].
- synthid_flag set true if model detects any watermark/synthid presence.
- Output MUST be strict JSON only. NO explanation text.

ANALYTICAL STEPS (internal, but produce only JSON):
1) detect colors, lighting, contrast, face vs background, dominant subject hue,
2) decide genre/mood tags,
3) pick a bold banana-accent-safe palette while preserving photo skin tones,
4) choose fonts and overlay style that read on the detected background,
5) craft 3 prompt variants tuned for the image model that will (a) preserve identity, (b) apply stylistic edits and banana-yellow accents, (c) generate poster + thumbnail.`

// overlayPlaceholder is the substitution marker every style template
// variant carries.
const overlayPlaceholder = "{{overlay_text}}"

// fillTemplate replaces the overlay-text placeholder with either an
// instruction embedding the user's literal text, or an instruction to
// invent a plausible title and tagline.
func fillTemplate(template, customText string) string {
	var instruction string
	if customText != "" {
		instruction = fmt.Sprintf("The user has provided specific text: %q. Use this for the movie title and/or tagline. If only a title is provided, generate a matching tagline. If only a tagline is provided, generate a matching title.", customText)
	} else {
		instruction = "Generate a creative and plausible movie title and a tagline that fits the genre."
	}
	return strings.ReplaceAll(template, overlayPlaceholder, instruction)
}

// buildGenerationPrompt assembles the final prompt text for one poster
// generation: the style's medium variant with the overlay instruction
// substituted, optionally preceded by an advisory guidance block
// summarizing a prior analysis.
func buildGenerationPrompt(style *domain.StyleTemplate, customText string, analysis *domain.DesignAnalysis) string {
	prompt := fillTemplate(style.TemplateVariants.Medium, customText)

	if analysis != nil {
		guidance := fmt.Sprintf(`Apply the following design guidance based on a previous image analysis:
- Suggested Title: %s
- Mood/Tags: %s
- Palette: Use colors inspired by this palette: %s.
- Font Style: A good display font would be %s.
This guidance should inform your creative choices.`,
			analysis.Typography.SuggestedTitle,
			strings.Join(analysis.MoodTags, ", "),
			strings.Join(analysis.Palette.Values(), ", "),
			analysis.FontRec.Display,
		)
		prompt = guidance + "\n\n---\n\n" + prompt
	}

	return prompt
}
