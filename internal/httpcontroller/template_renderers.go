package httpcontroller

import (
	"bytes"
	"html/template"
	"io"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/gardentracker/gardentracker/internal/errors"
	"github.com/gardentracker/gardentracker/internal/logger"
	"github.com/gardentracker/gardentracker/internal/observability/metrics"
)

// TemplateRenderer is a custom HTML template renderer for Echo framework.
type TemplateRenderer struct {
	templates *template.Template
	log       logger.Logger
	metrics   *metrics.HTTPMetrics
}

// Render renders a template with the given data.
func (t *TemplateRenderer) Render(w io.Writer, name string, data any, c echo.Context) error {
	start := time.Now()

	// Render into a buffer so a failing template never leaves a half page
	var buf bytes.Buffer
	if err := t.templates.ExecuteTemplate(&buf, name, data); err != nil {
		t.log.Error("template execution failed",
			logger.String("template", name),
			logger.String("path", c.Request().URL.Path),
			logger.Error(err))
		if t.metrics != nil {
			t.metrics.RecordTemplateRenderError(name)
		}
		return errors.New(err).
			Component("httpcontroller").
			Category(errors.CategoryGeneric).
			Context(errors.ContextOperation, "render_template").
			Context("template", name).
			Build()
	}
	if t.metrics != nil {
		t.metrics.RecordTemplateRender(name, time.Since(start).Seconds())
	}

	_, err := buf.WriteTo(w)
	if err != nil {
		t.log.Warn("failed to write rendered page", logger.String("template", name), logger.Error(err))
	}
	return err
}

// parseViews parses every embedded view with the template functions
func parseViews(funcs template.FuncMap) (*template.Template, error) {
	return template.New("").Funcs(funcs).ParseFS(ViewsFs, "views/*.html", "views/partials/*.html")
}

// setupTemplateRenderer configures the template renderer for the server
func (s *Server) setupTemplateRenderer() error {
	tmpl, err := parseViews(s.GetTemplateFunctions())
	if err != nil {
		return errors.New(err).
			Component("httpcontroller").
			Category(errors.CategoryConfiguration).
			Context(errors.ContextOperation, "parse_templates").
			Build()
	}

	r := &TemplateRenderer{templates: tmpl, log: s.log.Module("templates")}
	if s.metrics != nil {
		r.metrics = s.metrics.HTTP
	}
	s.Echo.Renderer = r
	return nil
}
