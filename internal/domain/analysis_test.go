package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validAnalysis() *DesignAnalysis {
	return &DesignAnalysis{
		Palette: Palette{Primary: "#111111", Accent: "#ffcc00", BG: "#000000", Text: "#ffffff"},
		DominantColors: []DominantColor{
			{Hex: "#111111", Percent: 50},
			{Hex: "#ffcc00", Percent: 30},
			{Hex: "#ffffff", Percent: 15},
		},
		Confidence: ConfidenceScores{Overall: 0.9, Palette: 0.8, Mood: 0.7},
	}
}

func TestDesignAnalysisValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*DesignAnalysis)
		wantErr bool
	}{
		{
			name:   "valid analysis",
			mutate: func(a *DesignAnalysis) {},
		},
		{
			name: "exactly 100 percent is allowed",
			mutate: func(a *DesignAnalysis) {
				a.DominantColors = []DominantColor{
					{Hex: "#111111", Percent: 60},
					{Hex: "#ffcc00", Percent: 30},
					{Hex: "#ffffff", Percent: 10},
				}
			},
		},
		{
			name: "float slop just above 100 is tolerated",
			mutate: func(a *DesignAnalysis) {
				a.DominantColors[0].Percent = 55.3
			},
		},
		{
			name:    "too few dominant colors",
			mutate:  func(a *DesignAnalysis) { a.DominantColors = a.DominantColors[:2] },
			wantErr: true,
		},
		{
			name:    "percentages sum far over 100",
			mutate:  func(a *DesignAnalysis) { a.DominantColors[0].Percent = 90 },
			wantErr: true,
		},
		{
			name:    "negative percentage",
			mutate:  func(a *DesignAnalysis) { a.DominantColors[1].Percent = -5 },
			wantErr: true,
		},
		{
			name:    "confidence above 1",
			mutate:  func(a *DesignAnalysis) { a.Confidence.Overall = 1.3 },
			wantErr: true,
		},
		{
			name:    "negative confidence",
			mutate:  func(a *DesignAnalysis) { a.Confidence.Mood = -0.1 },
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := validAnalysis()
			tc.mutate(a)
			err := a.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPaletteValues(t *testing.T) {
	full := Palette{Primary: "#1", Accent: "#2", BG: "#3", Text: "#4", Secondary: "#5"}
	assert.Equal(t, []string{"#1", "#2", "#3", "#4", "#5"}, full.Values())

	sparse := Palette{Primary: "#1", Text: "#4"}
	assert.Equal(t, []string{"#1", "#4"}, sparse.Values())

	assert.Empty(t, Palette{}.Values())
}
