package prompt

import (
	"fmt"

	"github.com/tmc/langchaingo/prompts"
)

// Template formats accepted by NewRenderer.
const (
	FormatJinja2     = "jinja2"
	FormatGoTemplate = "go-template"
	FormatFString    = "f-string"
)

// Renderer renders a text template against a variable mapping.
type Renderer interface {
	Render(text string, vars map[string]any) (string, error)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(text string, vars map[string]any) (string, error)

func (f RendererFunc) Render(text string, vars map[string]any) (string, error) {
	return f(text, vars)
}

// TemplateRenderer delegates to langchaingo's template engines. Jinja2 is the
// default so {{ var }}, {% if %} and {% for %} work in prompt documents.
type TemplateRenderer struct {
	format prompts.TemplateFormat
}

func NewRenderer(format string) (*TemplateRenderer, error) {
	switch format {
	case "", FormatJinja2:
		return &TemplateRenderer{format: prompts.TemplateFormatJinja2}, nil
	case FormatGoTemplate:
		return &TemplateRenderer{format: prompts.TemplateFormatGoTemplate}, nil
	case FormatFString:
		return &TemplateRenderer{format: prompts.TemplateFormatFString}, nil
	default:
		return nil, fmt.Errorf("unknown template format %q", format)
	}
}

func (r *TemplateRenderer) Render(text string, vars map[string]any) (string, error) {
	if vars == nil {
		vars = map[string]any{}
	}
	return prompts.RenderTemplate(text, r.format, vars)
}
