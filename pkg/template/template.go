// Package template renders message content for dynamic campaign steps.
package template

import (
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/careloop/outreach/pkg/models"
)

// RenderWithContext renders a message template against an execution
// context's variable bags. The data layout exposed to templates:
// {{.recipient.email}}, {{.tenant.name}}, {{.trigger.appointment_date}},
// plus flattened recipient attributes and trigger fields at the top level.
func RenderWithContext(input string, executionCtx *models.ExecutionContext) (string, error) {
	return Render(input, executionCtx.Variables())
}

// Render executes a text/template over the given data and returns the
// trimmed output. An empty result is not an error here; SEND steps treat it
// as a skip condition.
func Render(templateStr string, data any) (string, error) {
	tmpl, err := template.
		New("content").
		Option("missingkey=zero").
		Funcs(template.FuncMap{
			"now": func() string {
				return time.Now().UTC().Format(time.RFC3339)
			},
			"upper": strings.ToUpper,
			"lower": strings.ToLower,
			"title": func(s string) string {
				if s == "" {
					return s
				}

				return strings.ToUpper(s[:1]) + s[1:]
			},
		}).Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse template '%s': %w", templateStr, err)
	}

	var buf strings.Builder

	err = tmpl.Execute(&buf, data)
	if err != nil {
		return "", fmt.Errorf("failed to execute template '%s': %w", templateStr, err)
	}

	return strings.TrimSpace(buf.String()), nil
}
