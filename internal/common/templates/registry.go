// Package templates holds the notification templates and the placeholder
// renderer used to snapshot subject/body at schedule time.
package templates

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"jobtrack/internal/common/errors"
)

// Template names
const (
	TypeInterviewReminder = "interview_reminder"
)

type Template struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type Registry struct {
	templates map[string]Template
}

// registrySchema validates a template registry file: a map of template
// name to {subject, body}.
const registrySchema = `{
	"type": "object",
	"additionalProperties": {
		"type": "object",
		"required": ["subject", "body"],
		"properties": {
			"subject": {"type": "string", "minLength": 1, "maxLength": 500},
			"body": {"type": "string", "minLength": 1, "maxLength": 100000}
		},
		"additionalProperties": false
	}
}`

// NewRegistry returns a registry holding the built-in templates.
func NewRegistry() *Registry {
	return &Registry{
		templates: map[string]Template{
			TypeInterviewReminder: {
				Subject: "Interview reminder: {{position}} at {{company}}",
				Body: "Hello,\n\n" +
					"This is a reminder that your interview for the {{position}} position " +
					"at {{company}} is scheduled for {{interviewTime}}.\n" +
					"{{linkLine}}" +
					"\nGood luck!\n",
			},
		},
	}
}

// LoadRegistry reads a JSON registry file and overlays it on the built-in
// templates. The file is validated before any template is accepted.
func LoadRegistry(path string) (*Registry, error) {
	reg := NewRegistry()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template registry %s: %w", path, err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(registrySchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return nil, errors.NewTemplateValidationFailedError(err.Error())
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		return nil, errors.NewTemplateValidationFailedError(strings.Join(details, "; "))
	}

	var loaded map[string]Template
	if err := json.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("parse template registry %s: %w", path, err)
	}

	for name, tmpl := range loaded {
		reg.templates[name] = tmpl
	}

	return reg, nil
}

// Render produces the subject and body for a named template.
func (r *Registry) Render(name string, data map[string]interface{}) (string, string, error) {
	tmpl, exists := r.templates[name]
	if !exists {
		return "", "", errors.NewTemplateNotFoundError(name)
	}
	return renderTemplate(tmpl.Subject, data), renderTemplate(tmpl.Body, data), nil
}

// renderTemplate substitutes {{placeholder}} occurrences and strips any
// placeholders left without a value.
func renderTemplate(tmpl string, data map[string]interface{}) string {
	result := tmpl

	for k, v := range data {
		placeholder := "{{" + k + "}}"
		value := ""
		if s, ok := v.(string); ok {
			value = s
		} else if i, ok := v.(int); ok {
			value = fmt.Sprintf("%d", i)
		} else if v != nil {
			value = fmt.Sprintf("%v", v)
		}
		result = strings.ReplaceAll(result, placeholder, value)
	}

	for {
		start := strings.Index(result, "{{")
		if start == -1 {
			break
		}
		end := strings.Index(result[start:], "}}")
		if end == -1 {
			break
		}
		end += start + 2
		result = result[:start] + result[end:]
	}

	return result
}
