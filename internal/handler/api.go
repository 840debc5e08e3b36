// Package handler contains the HTTP layer: the JSON API the browser UI
// talks to, the rendered page, and error formatting.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bananano/posterforge/internal/domain"
	"github.com/bananano/posterforge/internal/session"
	"github.com/bananano/posterforge/internal/styles"
	"github.com/google/uuid"
)

// sessionCookie names the cookie carrying the session UUID.
const sessionCookie = "posterforge_session"

// maxCustomTextLen bounds the overlay text a user can set.
const maxCustomTextLen = 200

// API handles the JSON endpoints backing the poster studio UI.
type API struct {
	store      *session.Store
	orch       *session.Orchestrator
	library    *styles.Library
	libraryErr error // non-nil when the style library failed to load
	logger     *slog.Logger
}

// NewAPI creates the API handler. library may be nil when loading
// failed; libraryErr then carries the cause for the styles endpoint.
func NewAPI(
	store *session.Store,
	orch *session.Orchestrator,
	library *styles.Library,
	libraryErr error,
	logger *slog.Logger,
) *API {
	return &API{
		store:      store,
		orch:       orch,
		library:    library,
		libraryErr: libraryErr,
		logger:     logger,
	}
}

// RegisterRoutes registers all API routes with the provided mux.
//
// Routes:
//   - GET  /api/session      -> Session state snapshot
//   - GET  /api/styles       -> Style library listing
//   - POST /api/upload       -> Upload and normalize a source image
//   - POST /api/style        -> Select a style template
//   - POST /api/custom-text  -> Set or clear the overlay text
//   - POST /api/generate     -> Generate a poster
//   - POST /api/display-mode -> Toggle the immersive display mode
func (h *API) RegisterRoutes(mux *http.ServeMux, wrap func(http.Handler) http.Handler) {
	if wrap == nil {
		wrap = func(next http.Handler) http.Handler { return next }
	}
	mux.Handle("GET /api/session", http.HandlerFunc(h.SessionState))
	mux.Handle("GET /api/styles", http.HandlerFunc(h.ListStyles))
	mux.Handle("POST /api/upload", http.HandlerFunc(h.Upload))
	mux.Handle("POST /api/style", http.HandlerFunc(h.SelectStyle))
	mux.Handle("POST /api/custom-text", http.HandlerFunc(h.SetCustomText))
	mux.Handle("POST /api/generate", wrap(http.HandlerFunc(h.Generate)))
	mux.Handle("POST /api/display-mode", http.HandlerFunc(h.ToggleDisplayMode))
}

// session resolves the caller's session from the cookie, creating a
// fresh one (and setting the cookie) when absent or expired.
func (h *API) session(w http.ResponseWriter, r *http.Request) *session.Session {
	if c, err := r.Cookie(sessionCookie); err == nil {
		if id, err := uuid.Parse(c.Value); err == nil {
			if s, ok := h.store.Get(id); ok {
				return s
			}
		}
	}

	s := h.store.Create()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    s.ID.String(),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return s
}

// SessionState returns the current session snapshot.
func (h *API) SessionState(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	writeJSON(w, http.StatusOK, h.orch.Snapshot(s))
}

// ListStyles returns the ordered style library.
func (h *API) ListStyles(w http.ResponseWriter, r *http.Request) {
	if h.library == nil {
		err := domain.Unavailable(h.libraryErr, "handler.list_styles", "Style library is unavailable")
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"styles": h.library.List(),
	})
}

// Upload accepts a multipart image, normalizes it, and installs it as
// the session's source image. The response is the new session state;
// analysis continues in the background.
func (h *API) Upload(w http.ResponseWriter, r *http.Request) {
	const op = "handler.upload"

	s := h.session(w, r)

	r.Body = http.MaxBytesReader(w, r.Body, domain.MaxUploadSize)
	if err := r.ParseMultipartForm(domain.MaxUploadSize); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			ErrorResponse(w, r, h.logger, domain.Errorf(domain.ETOOLARGE, op, "Image exceeds the %d MB upload limit", domain.MaxUploadSize>>20))
			return
		}
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "Could not parse upload form"))
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "Missing image file"))
		return
	}
	defer file.Close()

	if _, err := h.orch.UploadImage(r.Context(), s, file); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, h.orch.Snapshot(s))
}

// SelectStyle sets the session's style template.
func (h *API) SelectStyle(w http.ResponseWriter, r *http.Request) {
	const op = "handler.select_style"

	s := h.session(w, r)

	var req struct {
		StyleID string `json:"style_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "Malformed JSON body"))
		return
	}
	if strings.TrimSpace(req.StyleID) == "" {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "style_id is required"))
		return
	}

	if err := h.orch.SelectStyle(s, req.StyleID); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, h.orch.Snapshot(s))
}

// SetCustomText sets or clears the overlay text. Non-empty text
// suppresses analysis-derived titles from that point on.
func (h *API) SetCustomText(w http.ResponseWriter, r *http.Request) {
	const op = "handler.set_custom_text"

	s := h.session(w, r)

	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "Malformed JSON body"))
		return
	}
	if len(req.Text) > maxCustomTextLen {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "Custom text is too long"))
		return
	}

	h.orch.SetCustomText(s, req.Text)
	writeJSON(w, http.StatusOK, h.orch.Snapshot(s))
}

// Generate runs poster generation for the session's current inputs.
func (h *API) Generate(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)

	if _, err := h.orch.RequestGeneration(r.Context(), s); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, h.orch.Snapshot(s))
}

// ToggleDisplayMode flips the immersive flag and reports the new value.
func (h *API) ToggleDisplayMode(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	immersive := h.orch.ToggleImmersive(s)
	writeJSON(w, http.StatusOK, map[string]bool{"immersive": immersive})
}
