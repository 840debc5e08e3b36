// Package session implements the request-orchestration state machine.
//
// All application-level state (current image, selected style, custom
// text, analysis snapshot, poster result, in-flight flags, the single
// error slot) lives in an explicit Session struct and is mutated only
// through the Orchestrator's named transition methods. No other
// component writes session state.
package session

import (
	"strings"
	"sync"
	"time"

	"github.com/bananano/posterforge/internal/domain"
	"github.com/google/uuid"
)

// AdvisoryAnalysisError is the non-fatal error message shown when
// background analysis fails. It never disables generation.
const AdvisoryAnalysisError = "Image analysis failed, but you can still generate a poster."

// Session holds one user's poster-making state.
//
// The upload sequence number keys every background analysis task: a
// task only applies its result if the sequence still matches, which
// discards analyses for images that have since been superseded.
type Session struct {
	ID uuid.UUID

	mu              sync.Mutex
	image           *domain.NormalizedImage
	uploadSeq       uint64
	styleID         string
	customText      string
	analysis        *domain.DesignAnalysis
	poster          *domain.PosterResult
	generating      bool
	analysisPending bool
	lastError       string
	immersive       bool
	lastActivity    time.Time
}

// State is an immutable snapshot of a session for the display layer.
type State struct {
	HasImage        bool                   `json:"has_image"`
	ImagePreview    string                 `json:"image_preview,omitempty"`
	ImageWidth      int                    `json:"image_width,omitempty"`
	ImageHeight     int                    `json:"image_height,omitempty"`
	StyleID         string                 `json:"style_id,omitempty"`
	CustomText      string                 `json:"custom_text,omitempty"`
	Analysis        *domain.DesignAnalysis `json:"analysis,omitempty"`
	AnalysisPending bool                   `json:"analysis_pending"`
	Poster          *domain.PosterResult   `json:"poster,omitempty"`
	Generating      bool                   `json:"generating"`
	Error           string                 `json:"error,omitempty"`
	Immersive       bool                   `json:"immersive"`
}

// snapshotLocked builds a State; callers must hold s.mu.
func (s *Session) snapshotLocked() State {
	st := State{
		HasImage:        s.image != nil,
		StyleID:         s.styleID,
		CustomText:      s.customText,
		Analysis:        s.analysis,
		AnalysisPending: s.analysisPending,
		Poster:          s.poster,
		Generating:      s.generating,
		Error:           s.lastError,
		Immersive:       s.immersive,
	}
	if s.image != nil {
		st.ImagePreview = s.image.DataURL
		st.ImageWidth = s.image.Width
		st.ImageHeight = s.image.Height
	}
	return st
}

// effectiveOverlayTextLocked computes the overlay text for generation:
// the user's custom text when non-empty, otherwise the last analysis's
// suggested title, otherwise empty. Callers must hold s.mu.
func (s *Session) effectiveOverlayTextLocked() string {
	if text := strings.TrimSpace(s.customText); text != "" {
		return text
	}
	if s.analysis != nil {
		return s.analysis.Typography.SuggestedTitle
	}
	return ""
}
