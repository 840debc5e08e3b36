// Package styles loads the externally authored prompt-template library
// and serves style lookups to the rest of the application.
package styles

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/bananano/posterforge/internal/domain"
)

// Library holds the ordered collection of style templates loaded from
// the prompt library file. It is read-only after Load.
type Library struct {
	templates []domain.StyleTemplate
	byID      map[string]*domain.StyleTemplate
}

// Load reads and parses the style library from the given path.
//
// The library is loaded exactly once at startup. A load failure is
// fatal to style selection but not to the process: callers should keep
// running and surface the error wherever styles are needed.
func Load(path string, logger *slog.Logger) (*Library, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read style library %s: %w", path, err)
	}

	var templates []domain.StyleTemplate
	if err := json.Unmarshal(data, &templates); err != nil {
		return nil, fmt.Errorf("parse style library %s: %w", path, err)
	}
	if len(templates) == 0 {
		return nil, fmt.Errorf("style library %s contains no templates", path)
	}

	lib := &Library{
		templates: templates,
		byID:      make(map[string]*domain.StyleTemplate, len(templates)),
	}
	for i := range lib.templates {
		t := &lib.templates[i]
		if t.ID == "" {
			return nil, fmt.Errorf("style library %s: template %d has no id", path, i)
		}
		if _, dup := lib.byID[t.ID]; dup {
			return nil, fmt.Errorf("style library %s: duplicate template id %q", path, t.ID)
		}
		if t.TemplateVariants.Medium == "" {
			return nil, fmt.Errorf("style library %s: template %q has no medium variant", path, t.ID)
		}
		lib.byID[t.ID] = t
	}

	logger.Info("Style library loaded", "path", path, "count", len(templates))
	return lib, nil
}

// List returns the templates in library order.
func (l *Library) List() []domain.StyleTemplate {
	return l.templates
}

// ByID returns the template with the given ID, or a not-found error.
func (l *Library) ByID(id string) (*domain.StyleTemplate, error) {
	if t, ok := l.byID[id]; ok {
		return t, nil
	}
	return nil, domain.NotFound("styles.by_id", "style", id)
}
