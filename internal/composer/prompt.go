// Package composer builds the completion messages for an analysis kind from
// embedded prompt templates.
package composer

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/kalambet/bizpulse/internal/completion"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

// Composer renders per-kind prompt templates. Templates are named
// "<kind>.system.tmpl" (required) and "<kind>.user.tmpl" (optional).
type Composer struct {
	tmpl *template.Template
}

// New parses all embedded prompt templates.
func New() (*Composer, error) {
	t, err := template.New("prompts").Option("missingkey=error").ParseFS(promptFS, "prompts/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parsing prompt templates: %w", err)
	}
	return &Composer{tmpl: t}, nil
}

type promptData struct {
	Business string
}

// Compose returns the ordered messages for kind with business substituted
// verbatim: the system message first, then the user message if the kind has
// one.
func (c *Composer) Compose(kind, business string) ([]completion.Message, error) {
	sys := c.tmpl.Lookup(kind + ".system.tmpl")
	if sys == nil {
		return nil, fmt.Errorf("no system prompt for kind %q", kind)
	}

	data := promptData{Business: business}

	content, err := render(sys, data)
	if err != nil {
		return nil, fmt.Errorf("rendering system prompt for %q: %w", kind, err)
	}
	msgs := []completion.Message{{Role: completion.RoleSystem, Content: content}}

	if user := c.tmpl.Lookup(kind + ".user.tmpl"); user != nil {
		content, err := render(user, data)
		if err != nil {
			return nil, fmt.Errorf("rendering user prompt for %q: %w", kind, err)
		}
		msgs = append(msgs, completion.Message{Role: completion.RoleUser, Content: content})
	}

	return msgs, nil
}

func render(t *template.Template, data promptData) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}
