package session

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bananano/posterforge/internal/ai"
	"github.com/bananano/posterforge/internal/ai/mock"
	"github.com/bananano/posterforge/internal/domain"
	"github.com/bananano/posterforge/internal/service"
	"github.com/bananano/posterforge/internal/storage"
	"github.com/bananano/posterforge/internal/styles"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testStyleID = "noir-thriller"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testLibrary writes a single-style library to a temp file and loads it.
func testLibrary(t *testing.T) *styles.Library {
	t.Helper()

	path := filepath.Join(t.TempDir(), "library.json")
	data := `[{
		"id": "noir-thriller",
		"title": "Noir Thriller",
		"template_variants": {
			"short": "Noir poster. {{overlay_text}}",
			"medium": "A moody noir movie poster. {{overlay_text}}",
			"long": "A detailed noir movie poster. {{overlay_text}}"
		}
	}]`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	lib, err := styles.Load(path, testLogger())
	require.NoError(t, err)
	return lib
}

// uploadBytes returns a small valid PNG.
func uploadBytes(t *testing.T) *bytes.Buffer {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 40, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return &buf
}

func newTestOrchestrator(t *testing.T, provider ai.Provider, archive storage.Storage) (*Orchestrator, *Session) {
	t.Helper()

	store := NewStore(time.Hour, testLogger())
	t.Cleanup(store.Stop)

	orch := NewOrchestrator(service.NewImagingNormalizer(), provider, testLibrary(t), archive, testLogger())
	return orch, store.Create()
}

// waitForAnalysis blocks until the background analysis settles.
func waitForAnalysis(t *testing.T, orch *Orchestrator, s *Session) State {
	t.Helper()

	require.Eventually(t, func() bool {
		return !orch.Snapshot(s).AnalysisPending
	}, 2*time.Second, 10*time.Millisecond, "analysis never settled")
	return orch.Snapshot(s)
}

func TestUploadImage_ReplacesStateAndAnalyzes(t *testing.T) {
	provider := mock.New(testLogger())
	orch, s := newTestOrchestrator(t, provider, nil)

	// Pre-existing state from an earlier round must be cleared.
	s.mu.Lock()
	s.poster = &domain.PosterResult{ImageURL: "data:image/png;base64,old"}
	s.lastError = "old error"
	s.mu.Unlock()

	img, err := orch.UploadImage(context.Background(), s, uploadBytes(t))
	require.NoError(t, err)
	assert.Equal(t, 16, img.Width)
	assert.Equal(t, 16, img.Height)

	state := orch.Snapshot(s)
	assert.True(t, state.HasImage)
	assert.Nil(t, state.Poster)
	assert.Empty(t, state.Error)

	state = waitForAnalysis(t, orch, s)
	require.NotNil(t, state.Analysis)
	assert.Equal(t, "The Long Shadow", state.Analysis.Typography.SuggestedTitle)
	assert.Equal(t, 1, provider.AnalyzeImageCalls)
	assert.Equal(t, img.Payload, provider.LastAnalyzeParams.Payload)
}

func TestUploadImage_DecodeFailure(t *testing.T) {
	provider := mock.New(testLogger())
	orch, s := newTestOrchestrator(t, provider, nil)

	_, err := orch.UploadImage(context.Background(), s, bytes.NewReader([]byte("not an image")))
	require.Error(t, err)
	assert.Equal(t, domain.EDECODE, domain.ErrorCode(err))
	assert.False(t, orch.Snapshot(s).HasImage)
	assert.Equal(t, 0, provider.AnalyzeImageCalls)
}

func TestUploadImage_CustomTextSuppressesAnalysis(t *testing.T) {
	provider := mock.New(testLogger())
	orch, s := newTestOrchestrator(t, provider, nil)

	orch.SetCustomText(s, "My Movie")
	_, err := orch.UploadImage(context.Background(), s, uploadBytes(t))
	require.NoError(t, err)

	state := orch.Snapshot(s)
	assert.False(t, state.AnalysisPending)
	assert.Equal(t, 0, provider.AnalyzeImageCalls)
}

func TestAnalysisFailure_IsAdvisoryOnly(t *testing.T) {
	provider := mock.New(testLogger())
	provider.AnalyzeImageError = &ai.AnalysisError{Err: errors.New("model returned garbage")}
	orch, s := newTestOrchestrator(t, provider, nil)

	_, err := orch.UploadImage(context.Background(), s, uploadBytes(t))
	require.NoError(t, err)

	state := waitForAnalysis(t, orch, s)
	assert.Nil(t, state.Analysis)
	assert.Equal(t, AdvisoryAnalysisError, state.Error)

	// Generation must still work despite the failed analysis.
	require.NoError(t, orch.SelectStyle(s, testStyleID))
	result, err := orch.RequestGeneration(context.Background(), s)
	require.NoError(t, err)
	assert.NotEmpty(t, result.ImageURL)
	assert.Empty(t, provider.LastGenerateParams.CustomText)
}

func TestAnalysis_DiscardedWhenCustomTextAppears(t *testing.T) {
	provider := mock.New(testLogger())
	provider.AnalyzeDelay = make(chan struct{})
	orch, s := newTestOrchestrator(t, provider, nil)

	_, err := orch.UploadImage(context.Background(), s, uploadBytes(t))
	require.NoError(t, err)
	assert.True(t, orch.Snapshot(s).AnalysisPending)

	// The user types a title while the analysis call is in flight.
	orch.SetCustomText(s, "Typed While Analyzing")
	close(provider.AnalyzeDelay)

	state := waitForAnalysis(t, orch, s)
	assert.Nil(t, state.Analysis, "analysis must be discarded once custom text exists")
	assert.Empty(t, state.Error)
}

func TestAnalysis_StaleResultDiscarded(t *testing.T) {
	provider := mock.New(testLogger())
	provider.AnalyzeDelay = make(chan struct{})
	orch, s := newTestOrchestrator(t, provider, nil)

	_, err := orch.UploadImage(context.Background(), s, uploadBytes(t))
	require.NoError(t, err)

	// Second upload supersedes the first while its analysis is blocked.
	_, err = orch.UploadImage(context.Background(), s, uploadBytes(t))
	require.NoError(t, err)

	close(provider.AnalyzeDelay)

	state := waitForAnalysis(t, orch, s)
	require.NotNil(t, state.Analysis)
	assert.Equal(t, 2, provider.AnalyzeImageCalls)
}

func TestSelectStyle_UnknownStyle(t *testing.T) {
	provider := mock.New(testLogger())
	orch, s := newTestOrchestrator(t, provider, nil)

	err := orch.SelectStyle(s, "no-such-style")
	require.Error(t, err)
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
	assert.Empty(t, orch.Snapshot(s).StyleID)
}

func TestRequestGeneration_RequiresImageAndStyle(t *testing.T) {
	provider := mock.New(testLogger())
	orch, s := newTestOrchestrator(t, provider, nil)

	_, err := orch.RequestGeneration(context.Background(), s)
	require.Error(t, err)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))

	_, err = orch.UploadImage(context.Background(), s, uploadBytes(t))
	require.NoError(t, err)

	_, err = orch.RequestGeneration(context.Background(), s)
	require.Error(t, err)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
	assert.Equal(t, 0, provider.GeneratePosterCalls)
}

func TestRequestGeneration_RejectsConcurrent(t *testing.T) {
	provider := mock.New(testLogger())
	provider.GenerateDelay = make(chan struct{})
	orch, s := newTestOrchestrator(t, provider, nil)

	_, err := orch.UploadImage(context.Background(), s, uploadBytes(t))
	require.NoError(t, err)
	require.NoError(t, orch.SelectStyle(s, testStyleID))

	done := make(chan error, 1)
	go func() {
		_, err := orch.RequestGeneration(context.Background(), s)
		done <- err
	}()

	require.Eventually(t, func() bool {
		return orch.Snapshot(s).Generating
	}, 2*time.Second, 10*time.Millisecond)

	_, err = orch.RequestGeneration(context.Background(), s)
	require.Error(t, err)
	assert.Equal(t, domain.ECONFLICT, domain.ErrorCode(err))

	close(provider.GenerateDelay)
	require.NoError(t, <-done)

	state := orch.Snapshot(s)
	assert.False(t, state.Generating)
	require.NotNil(t, state.Poster)
	assert.Equal(t, 1, provider.GeneratePosterCalls)
}

func TestRequestGeneration_OverlayTextPrecedence(t *testing.T) {
	t.Run("custom text wins", func(t *testing.T) {
		provider := mock.New(testLogger())
		orch, s := newTestOrchestrator(t, provider, nil)

		_, err := orch.UploadImage(context.Background(), s, uploadBytes(t))
		require.NoError(t, err)
		waitForAnalysis(t, orch, s)

		orch.SetCustomText(s, "Neon Nights")
		require.NoError(t, orch.SelectStyle(s, testStyleID))

		_, err = orch.RequestGeneration(context.Background(), s)
		require.NoError(t, err)
		assert.Equal(t, "Neon Nights", provider.LastGenerateParams.CustomText)
	})

	t.Run("analysis title as fallback", func(t *testing.T) {
		provider := mock.New(testLogger())
		orch, s := newTestOrchestrator(t, provider, nil)

		_, err := orch.UploadImage(context.Background(), s, uploadBytes(t))
		require.NoError(t, err)
		waitForAnalysis(t, orch, s)
		require.NoError(t, orch.SelectStyle(s, testStyleID))

		_, err = orch.RequestGeneration(context.Background(), s)
		require.NoError(t, err)
		assert.Equal(t, "The Long Shadow", provider.LastGenerateParams.CustomText)
	})
}

func TestRequestGeneration_StoresAdapterReason(t *testing.T) {
	provider := mock.New(testLogger())
	provider.GeneratePosterError = &ai.GenerationError{Reason: ai.ReasonSafetyFiltered}
	orch, s := newTestOrchestrator(t, provider, nil)

	_, err := orch.UploadImage(context.Background(), s, uploadBytes(t))
	require.NoError(t, err)
	require.NoError(t, orch.SelectStyle(s, testStyleID))

	_, err = orch.RequestGeneration(context.Background(), s)
	require.Error(t, err)
	assert.Equal(t, domain.EGENERATION, domain.ErrorCode(err))
	assert.Equal(t, ai.ReasonSafetyFiltered, domain.ErrorMessage(err))

	state := orch.Snapshot(s)
	assert.False(t, state.Generating)
	assert.Nil(t, state.Poster)
	assert.Equal(t, ai.ReasonSafetyFiltered, state.Error)

	// A later attempt proceeds normally.
	provider.GeneratePosterError = nil
	result, err := orch.RequestGeneration(context.Background(), s)
	require.NoError(t, err)
	assert.NotEmpty(t, result.ImageURL)
}

func TestRequestGeneration_ArchivesPoster(t *testing.T) {
	provider := mock.New(testLogger())

	dir := t.TempDir()
	archive, err := storage.NewLocalStorage(storage.LocalConfig{
		BasePath: dir,
		BaseURL:  "http://localhost:8080/files",
	}, testLogger())
	require.NoError(t, err)

	orch, s := newTestOrchestrator(t, provider, archive)

	_, err = orch.UploadImage(context.Background(), s, uploadBytes(t))
	require.NoError(t, err)
	require.NoError(t, orch.SelectStyle(s, testStyleID))

	result, err := orch.RequestGeneration(context.Background(), s)
	require.NoError(t, err)
	assert.Contains(t, result.ArchiveURL, "http://localhost:8080/files/posters/"+s.ID.String()+"/")

	// The poster bytes must actually be on disk.
	entries, err := os.ReadDir(filepath.Join(dir, "posters", s.ID.String()))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ".png", filepath.Ext(entries[0].Name()))
}

func TestToggleImmersive(t *testing.T) {
	provider := mock.New(testLogger())
	orch, s := newTestOrchestrator(t, provider, nil)

	assert.True(t, orch.ToggleImmersive(s))
	assert.False(t, orch.ToggleImmersive(s))
}
