package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bananano/posterforge/internal/ai/mock"
	"github.com/bananano/posterforge/internal/service"
	"github.com/bananano/posterforge/internal/session"
	"github.com/bananano/posterforge/internal/styles"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// apiClient drives the JSON API through a mux, replaying the session
// cookie like a browser would.
type apiClient struct {
	t      *testing.T
	mux    *http.ServeMux
	cookie *http.Cookie
}

func newTestAPI(t *testing.T, provider *mock.Provider) *apiClient {
	t.Helper()

	path := filepath.Join(t.TempDir(), "library.json")
	data := `[{
		"id": "noir-thriller",
		"title": "Noir Thriller",
		"template_variants": {"medium": "A moody noir movie poster. {{overlay_text}}"}
	}]`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))
	lib, err := styles.Load(path, testLogger())
	require.NoError(t, err)

	return newTestAPIWithLibrary(t, provider, lib, nil)
}

func newTestAPIWithLibrary(t *testing.T, provider *mock.Provider, lib *styles.Library, libErr error) *apiClient {
	t.Helper()

	store := session.NewStore(time.Hour, testLogger())
	t.Cleanup(store.Stop)

	orch := session.NewOrchestrator(service.NewImagingNormalizer(), provider, lib, nil, testLogger())
	api := NewAPI(store, orch, lib, libErr, testLogger())

	mux := http.NewServeMux()
	api.RegisterRoutes(mux, nil)

	return &apiClient{t: t, mux: mux}
}

func (c *apiClient) do(req *http.Request) *httptest.ResponseRecorder {
	c.t.Helper()

	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	rec := httptest.NewRecorder()
	c.mux.ServeHTTP(rec, req)

	for _, ck := range rec.Result().Cookies() {
		if ck.Name == "posterforge_session" {
			c.cookie = ck
		}
	}
	return rec
}

func (c *apiClient) postJSON(path string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *apiClient) uploadImage(t *testing.T) *httptest.ResponseRecorder {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.RGBA{R: 90, G: 90, B: 200, A: 255})
		}
	}
	var pngBuf bytes.Buffer
	require.NoError(t, png.Encode(&pngBuf, img))
	return c.uploadBytes(t, pngBuf.Bytes())
}

func (c *apiClient) uploadBytes(t *testing.T, content []byte) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", "upload.png")
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/api/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.do(req)
}

func decodeState(t *testing.T, rec *httptest.ResponseRecorder) session.State {
	t.Helper()

	var state session.State
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&state))
	return state
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) (code, message string) {
	t.Helper()

	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body.Error.Code, body.Error.Message
}

func TestSessionState_CreatesSessionCookie(t *testing.T) {
	c := newTestAPI(t, mock.New(testLogger()))

	rec := c.do(httptest.NewRequest("GET", "/api/session", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, c.cookie, "first request must set the session cookie")

	state := decodeState(t, rec)
	assert.False(t, state.HasImage)
	assert.False(t, state.Generating)

	// Subsequent requests reuse the same session, no new cookie.
	first := c.cookie.Value
	rec = c.do(httptest.NewRequest("GET", "/api/session", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, first, c.cookie.Value)
}

func TestUpload_HappyPath(t *testing.T) {
	c := newTestAPI(t, mock.New(testLogger()))

	rec := c.uploadImage(t)
	require.Equal(t, http.StatusOK, rec.Code)

	state := decodeState(t, rec)
	assert.True(t, state.HasImage)
	assert.Equal(t, 16, state.ImageWidth)
	assert.True(t, strings.HasPrefix(state.ImagePreview, "data:image/jpeg;base64,"))
}

func TestUpload_UndecodableImage(t *testing.T) {
	c := newTestAPI(t, mock.New(testLogger()))

	rec := c.uploadBytes(t, []byte("definitely not an image"))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	code, message := decodeError(t, rec)
	assert.Equal(t, "decode_failed", code)
	assert.Contains(t, message, "could not be read as an image")
}

func TestUpload_MissingFile(t *testing.T) {
	c := newTestAPI(t, mock.New(testLogger()))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("note", "no file here"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/api/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := c.do(req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	code, _ := decodeError(t, rec)
	assert.Equal(t, "invalid", code)
}

func TestSelectStyle(t *testing.T) {
	c := newTestAPI(t, mock.New(testLogger()))

	rec := c.postJSON("/api/style", `{"style_id":"noir-thriller"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "noir-thriller", decodeState(t, rec).StyleID)

	rec = c.postJSON("/api/style", `{"style_id":"unknown"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = c.postJSON("/api/style", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.postJSON("/api/style", `not json`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetCustomText(t *testing.T) {
	c := newTestAPI(t, mock.New(testLogger()))

	rec := c.postJSON("/api/custom-text", `{"text":"Neon Nights"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Neon Nights", decodeState(t, rec).CustomText)

	rec = c.postJSON("/api/custom-text", `{"text":"`+strings.Repeat("a", 201)+`"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerate_FullFlow(t *testing.T) {
	provider := mock.New(testLogger())
	c := newTestAPI(t, provider)

	require.Equal(t, http.StatusOK, c.uploadImage(t).Code)
	require.Equal(t, http.StatusOK, c.postJSON("/api/style", `{"style_id":"noir-thriller"}`).Code)

	rec := c.postJSON("/api/generate", ``)
	require.Equal(t, http.StatusOK, rec.Code)

	state := decodeState(t, rec)
	require.NotNil(t, state.Poster)
	assert.True(t, strings.HasPrefix(state.Poster.ImageURL, "data:image/png;base64,"))
	assert.False(t, state.Generating)
	assert.Equal(t, 1, provider.GeneratePosterCalls)
}

func TestGenerate_WithoutInputs(t *testing.T) {
	c := newTestAPI(t, mock.New(testLogger()))

	rec := c.postJSON("/api/generate", ``)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	code, _ := decodeError(t, rec)
	assert.Equal(t, "invalid", code)
}

func TestListStyles(t *testing.T) {
	c := newTestAPI(t, mock.New(testLogger()))

	rec := c.do(httptest.NewRequest("GET", "/api/styles", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Styles []struct {
			ID string `json:"id"`
		} `json:"styles"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Styles, 1)
	assert.Equal(t, "noir-thriller", body.Styles[0].ID)
}

func TestListStyles_LibraryUnavailable(t *testing.T) {
	c := newTestAPIWithLibrary(t, mock.New(testLogger()), nil, errors.New("parse failed"))

	rec := c.do(httptest.NewRequest("GET", "/api/styles", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	code, _ := decodeError(t, rec)
	assert.Equal(t, "unavailable", code)
}

func TestToggleDisplayMode(t *testing.T) {
	c := newTestAPI(t, mock.New(testLogger()))

	rec := c.postJSON("/api/display-mode", ``)
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]bool
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.True(t, body["immersive"])

	rec = c.postJSON("/api/display-mode", ``)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.False(t, body["immersive"])
}
