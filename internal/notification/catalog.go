package notification

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var defaultPrompts []byte

// Catalog holds the parsed outbound text templates.
type Catalog struct {
	stages   map[string]*template.Template
	messages map[string]*template.Template
	errors   map[string]*template.Template
}

type catalogFile struct {
	Stages   map[string]string `yaml:"stages"`
	Messages map[string]string `yaml:"messages"`
	Errors   map[string]string `yaml:"errors"`
}

// TemplateData is the data every prompt template renders against.
type TemplateData struct {
	ProductID  int64
	Reason     string
	Kind       string
	Command    string
	ProductIDs string
	Amount     string
}

// DefaultCatalog parses the embedded prompts.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultPrompts)
}

// ParseCatalog parses a YAML prompt catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse prompt catalog: %w", err)
	}
	if _, ok := file.Errors["default"]; !ok {
		return nil, fmt.Errorf("prompt catalog has no default error text")
	}

	c := &Catalog{}
	var err error
	if c.stages, err = parseSection("stages", file.Stages); err != nil {
		return nil, err
	}
	if c.messages, err = parseSection("messages", file.Messages); err != nil {
		return nil, err
	}
	if c.errors, err = parseSection("errors", file.Errors); err != nil {
		return nil, err
	}
	return c, nil
}

func parseSection(section string, raw map[string]string) (map[string]*template.Template, error) {
	out := make(map[string]*template.Template, len(raw))
	for name, text := range raw {
		tpl, err := template.New(section + "." + name).Option("missingkey=zero").Parse(strings.TrimSpace(text))
		if err != nil {
			return nil, fmt.Errorf("parse prompt %s.%s: %w", section, name, err)
		}
		out[name] = tpl
	}
	return out, nil
}

// Stage renders the prompt for a claim waiting on stage.
func (c *Catalog) Stage(stage string, data TemplateData) (string, error) {
	return render(c.stages, "stages", stage, data)
}

// Message renders a named conversation message.
func (c *Catalog) Message(name string, data TemplateData) (string, error) {
	return render(c.messages, "messages", name, data)
}

// Error renders the text for an error kind, falling back to the default text.
func (c *Catalog) Error(kind string, data TemplateData) string {
	tpl, ok := c.errors[kind]
	if !ok {
		tpl = c.errors["default"]
	}
	var b strings.Builder
	if err := tpl.Execute(&b, data); err != nil {
		return ""
	}
	return b.String()
}

func render(section map[string]*template.Template, sectionName, name string, data TemplateData) (string, error) {
	tpl, ok := section[name]
	if !ok {
		return "", fmt.Errorf("prompt %s.%s not found", sectionName, name)
	}
	var b strings.Builder
	if err := tpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render prompt %s.%s: %w", sectionName, name, err)
	}
	return b.String(), nil
}
