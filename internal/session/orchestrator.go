package session

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/bananano/posterforge/internal/ai"
	"github.com/bananano/posterforge/internal/domain"
	"github.com/bananano/posterforge/internal/metrics"
	"github.com/bananano/posterforge/internal/service"
	"github.com/bananano/posterforge/internal/storage"
	"github.com/bananano/posterforge/internal/styles"
	"github.com/google/uuid"
)

// Orchestrator sequences upload, analysis, and generation for all
// sessions. It is the only component allowed to mutate session state.
type Orchestrator struct {
	normalizer service.ImageNormalizer
	provider   ai.Provider
	library    *styles.Library // nil when the library failed to load
	archive    storage.Storage // nil disables poster archival
	logger     *slog.Logger

	// analysisTimeout bounds the detached background analysis call,
	// which outlives the upload request that launched it.
	analysisTimeout time.Duration
}

// NewOrchestrator wires the orchestrator's collaborators. library and
// archive may be nil; the corresponding features degrade gracefully.
func NewOrchestrator(
	normalizer service.ImageNormalizer,
	provider ai.Provider,
	library *styles.Library,
	archive storage.Storage,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		normalizer:      normalizer,
		provider:        provider,
		library:         library,
		archive:         archive,
		logger:          logger,
		analysisTimeout: 5 * time.Minute,
	}
}

// =============================================================================
// UploadImage
// =============================================================================

// UploadImage normalizes the uploaded file and installs it as the
// session's current image. On success the previous poster, analysis,
// and error are cleared, and, unless custom text is present, a
// background analysis is launched without blocking the caller.
func (o *Orchestrator) UploadImage(ctx context.Context, s *Session, file io.Reader) (*domain.NormalizedImage, error) {
	img, err := o.normalizer.Normalize(file)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.UploadsTotal.WithLabelValues("success").Inc()

	s.mu.Lock()
	s.uploadSeq++
	seq := s.uploadSeq
	s.image = img
	s.poster = nil
	s.analysis = nil
	s.lastError = ""
	s.analysisPending = false
	startAnalysis := strings.TrimSpace(s.customText) == ""
	if startAnalysis {
		s.analysisPending = true
	}
	s.mu.Unlock()

	o.logger.Info("image uploaded",
		"session_id", s.ID,
		"width", img.Width,
		"height", img.Height,
		"upload_seq", seq,
	)

	if startAnalysis {
		go o.analyzeInBackground(s, seq, img)
	}

	return img, nil
}

// analyzeInBackground runs the advisory analysis for the upload
// identified by seq. The result is discarded if the image has been
// superseded, or if custom text appeared while the call was in flight.
// Failure sets a non-fatal advisory error and never blocks generation.
func (o *Orchestrator) analyzeInBackground(s *Session, seq uint64, img *domain.NormalizedImage) {
	ctx, cancel := context.WithTimeout(context.Background(), o.analysisTimeout)
	defer cancel()

	start := time.Now()
	analysis, err := o.provider.AnalyzeImage(ctx, ai.AnalyzeImageParams{
		Payload:   img.Payload,
		MediaType: img.MediaType,
	})
	metrics.AnalysisDuration.Observe(time.Since(start).Seconds())

	s.mu.Lock()
	defer s.mu.Unlock()

	if seq != s.uploadSeq {
		// A newer upload superseded this image; drop the result.
		metrics.AnalysesTotal.WithLabelValues("stale").Inc()
		o.logger.Debug("discarding stale analysis", "session_id", s.ID, "upload_seq", seq)
		return
	}
	s.analysisPending = false

	if err != nil {
		metrics.AnalysesTotal.WithLabelValues("error").Inc()
		o.logger.Warn("background analysis failed", "session_id", s.ID, "error", err)
		s.lastError = AdvisoryAnalysisError
		return
	}

	if strings.TrimSpace(s.customText) != "" {
		// The user typed text while analysis was running; their text wins.
		metrics.AnalysesTotal.WithLabelValues("discarded").Inc()
		return
	}

	metrics.AnalysesTotal.WithLabelValues("success").Inc()
	s.analysis = analysis
}

// =============================================================================
// Setters
// =============================================================================

// SetCustomText updates the session's custom overlay text.
func (o *Orchestrator) SetCustomText(s *Session, text string) {
	s.mu.Lock()
	s.customText = text
	s.mu.Unlock()
}

// SelectStyle records the chosen style template by reference.
func (o *Orchestrator) SelectStyle(s *Session, styleID string) error {
	const op = "session.select_style"

	if o.library == nil {
		return domain.Unavailable(nil, op, "The style library failed to load. Please refresh the page.")
	}
	if _, err := o.library.ByID(styleID); err != nil {
		return err
	}

	s.mu.Lock()
	s.styleID = styleID
	s.mu.Unlock()
	return nil
}

// ToggleImmersive flips the display mode and returns the new value.
func (o *Orchestrator) ToggleImmersive(s *Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.immersive = !s.immersive
	return s.immersive
}

// Snapshot returns the session state for the display layer.
func (o *Orchestrator) Snapshot(s *Session) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// =============================================================================
// RequestGeneration
// =============================================================================

// RequestGeneration runs one poster generation for the session.
//
// It fails fast without a network call when no image or style is
// selected, and rejects the request when another generation is already
// in flight. The in-progress flag is cleared on every exit path.
// Adapter failures are stored verbatim as the session error; successes
// replace the poster and are archived best-effort.
func (o *Orchestrator) RequestGeneration(ctx context.Context, s *Session) (*domain.PosterResult, error) {
	const op = "session.generate"

	if o.library == nil {
		return nil, domain.Unavailable(nil, op, "The style library failed to load. Please refresh the page.")
	}

	s.mu.Lock()
	if s.image == nil || s.styleID == "" {
		s.mu.Unlock()
		return nil, domain.Invalid(op, "Please upload an image and select a style.")
	}
	if s.generating {
		s.mu.Unlock()
		return nil, domain.Conflict(op, "A poster generation is already in progress.")
	}

	style, err := o.library.ByID(s.styleID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	s.generating = true
	s.lastError = ""
	s.poster = nil

	img := s.image
	analysis := s.analysis
	overlayText := s.effectiveOverlayTextLocked()
	s.mu.Unlock()

	start := time.Now()
	result, err := o.provider.GeneratePoster(ctx, ai.GeneratePosterParams{
		Payload:    img.Payload,
		MediaType:  img.MediaType,
		Style:      style,
		CustomText: overlayText,
		Analysis:   analysis,
	})
	metrics.GenerationDuration.Observe(time.Since(start).Seconds())

	if err == nil && o.archive != nil {
		// Archival is best-effort; a failure is logged, never surfaced.
		if url, archiveErr := o.archivePoster(ctx, s.ID, result); archiveErr != nil {
			o.logger.Warn("poster archival failed", "session_id", s.ID, "error", archiveErr)
		} else {
			result.ArchiveURL = url
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.generating = false

	if err != nil {
		metrics.GenerationsTotal.WithLabelValues("error").Inc()
		msg := err.Error()
		var genErr *ai.GenerationError
		if errors.As(err, &genErr) {
			msg = genErr.Reason
		}
		s.lastError = msg
		return nil, domain.Wrap(err, domain.EGENERATION, op, msg)
	}

	metrics.GenerationsTotal.WithLabelValues("success").Inc()
	s.poster = result
	return result, nil
}

// archivePoster writes the generated poster to storage and returns its URL.
func (o *Orchestrator) archivePoster(ctx context.Context, sessionID uuid.UUID, poster *domain.PosterResult) (string, error) {
	mediaType, data, err := decodeDataURL(poster.ImageURL)
	if err != nil {
		return "", err
	}

	ext := ".png"
	if mediaType == "image/jpeg" {
		ext = ".jpg"
	}
	key := fmt.Sprintf("posters/%s/%s%s", sessionID, uuid.New(), ext)

	if err := o.archive.Put(ctx, key, bytes.NewReader(data), storage.PutOptions{
		ContentType: mediaType,
		Overwrite:   false,
	}); err != nil {
		return "", err
	}

	return o.archive.URL(ctx, key, 24*time.Hour)
}

// decodeDataURL splits a data URL into its media type and raw bytes.
func decodeDataURL(dataURL string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(dataURL, "data:")
	if !ok {
		return "", nil, fmt.Errorf("not a data URL")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("malformed data URL")
	}
	mediaType := strings.TrimSuffix(meta, ";base64")

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decode data URL payload: %w", err)
	}
	return mediaType, data, nil
}
