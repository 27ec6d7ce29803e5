// Package notify renders the email templates used by step actions.
package notify

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default_templates.yaml
var defaultTemplates []byte

const TemplatePreAlert = "PRE-ALERT"

var ErrTemplateNotFound = errors.New("template not found")

type Template struct {
	Name      string   `yaml:"name"`
	Category  string   `yaml:"category"`
	Subject   string   `yaml:"subject"`
	Body      string   `yaml:"body"`
	Variables []string `yaml:"variables"`
}

type Message struct {
	Template string
	Subject  string
	Body     string
}

// Renderer turns a named template and its variables into a message.
type Renderer interface {
	Render(name string, vars map[string]string) (*Message, error)
}

type TemplateStore struct {
	templates map[string]Template
}

type templatesFile struct {
	Templates []Template `yaml:"templates"`
}

func DefaultTemplates() (*TemplateStore, error) {
	return LoadTemplates(defaultTemplates)
}

func LoadTemplates(data []byte) (*TemplateStore, error) {
	var f templatesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	s := &TemplateStore{templates: make(map[string]Template, len(f.Templates))}
	for _, t := range f.Templates {
		if t.Name == "" {
			return nil, errors.New("template without a name")
		}
		s.templates[t.Name] = t
	}
	return s, nil
}

// TemplatesFromConfig loads path when set and the embedded templates otherwise.
func TemplatesFromConfig(path string) (*TemplateStore, error) {
	if path == "" {
		return DefaultTemplates()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read templates %s: %w", path, err)
	}
	return LoadTemplates(data)
}

func (s *TemplateStore) Get(name string) (Template, bool) {
	t, ok := s.templates[name]
	return t, ok
}

// Render substitutes {{key}} placeholders. Placeholders without a value are left as is.
func (s *TemplateStore) Render(name string, vars map[string]string) (*Message, error) {
	t, ok := s.templates[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	r := strings.NewReplacer(pairs...)
	return &Message{
		Template: name,
		Subject:  r.Replace(t.Subject),
		Body:     r.Replace(t.Body),
	}, nil
}
