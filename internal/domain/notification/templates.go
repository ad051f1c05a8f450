package notification

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var defaultTemplatesYAML []byte

type Template struct {
	Key      string
	Category Category
	Priority Priority
	title    *template.Template
	message  *template.Template
}

// Rendered is a template applied to a set of variables.
type Rendered struct {
	Title    string
	Message  string
	Category Category
	Priority Priority
}

func (t *Template) Render(vars map[string]string) (Rendered, error) {
	if vars == nil {
		vars = map[string]string{}
	}
	var title, message bytes.Buffer
	if err := t.title.Execute(&title, vars); err != nil {
		return Rendered{}, fmt.Errorf("render %s title: %w", t.Key, err)
	}
	if err := t.message.Execute(&message, vars); err != nil {
		return Rendered{}, fmt.Errorf("render %s message: %w", t.Key, err)
	}
	return Rendered{
		Title:    strings.TrimSpace(title.String()),
		Message:  strings.TrimSpace(message.String()),
		Category: t.Category,
		Priority: t.Priority,
	}, nil
}

type Templates struct {
	byKey map[string]*Template
}

type templateFile struct {
	Templates map[string]struct {
		Category string `yaml:"category"`
		Priority string `yaml:"priority"`
		Title    string `yaml:"title"`
		Message  string `yaml:"message"`
	} `yaml:"templates"`
}

// DefaultTemplates returns the templates compiled into the binary.
func DefaultTemplates() *Templates {
	templates, err := LoadTemplates(bytes.NewReader(defaultTemplatesYAML))
	if err != nil {
		panic(fmt.Sprintf("notification: embedded templates invalid: %v", err))
	}
	return templates
}

func LoadTemplates(r io.Reader) (*Templates, error) {
	var file templateFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode notification templates: %w", err)
	}

	out := &Templates{byKey: make(map[string]*Template, len(file.Templates))}
	for key, def := range file.Templates {
		if !IsCategory(def.Category) {
			return nil, fmt.Errorf("template %s: unknown category %q", key, def.Category)
		}
		if !IsPriority(def.Priority) {
			return nil, fmt.Errorf("template %s: unknown priority %q", key, def.Priority)
		}
		title, err := template.New(key + ".title").Option("missingkey=zero").Parse(def.Title)
		if err != nil {
			return nil, fmt.Errorf("template %s: %w", key, err)
		}
		message, err := template.New(key + ".message").Option("missingkey=zero").Parse(def.Message)
		if err != nil {
			return nil, fmt.Errorf("template %s: %w", key, err)
		}
		out.byKey[key] = &Template{
			Key:      key,
			Category: Category(def.Category),
			Priority: Priority(def.Priority),
			title:    title,
			message:  message,
		}
	}
	return out, nil
}

func (t *Templates) Get(key string) (*Template, bool) {
	tmpl, ok := t.byKey[key]
	return tmpl, ok
}

func (t *Templates) Keys() []string {
	keys := make([]string, 0, len(t.byKey))
	for key := range t.byKey {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
