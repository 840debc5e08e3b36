package handler

import (
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/bananano/posterforge/internal/domain"
	"github.com/bananano/posterforge/internal/styles"
)

// Page serves the single studio page. The page is static shell markup;
// all state flows through the JSON API, but the style list is rendered
// server-side so the picker works before any script runs.
type Page struct {
	tmpl    *template.Template
	library *styles.Library
	logger  *slog.Logger
}

// pageData is the template's root context.
type pageData struct {
	Styles []domain.StyleTemplate
}

// NewPage parses the page template from templatesDir.
func NewPage(templatesDir string, library *styles.Library, logger *slog.Logger) (*Page, error) {
	tmpl, err := template.ParseFiles(templatesDir + "/index.html")
	if err != nil {
		return nil, fmt.Errorf("parse page template: %w", err)
	}
	return &Page{
		tmpl:    tmpl,
		library: library,
		logger:  logger,
	}, nil
}

// Home renders the studio page.
func (h *Page) Home(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	data := pageData{}
	if h.library != nil {
		data.Styles = h.library.List()
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.tmpl.Execute(w, data); err != nil {
		h.logger.Error("render page", "error", err)
	}
}
