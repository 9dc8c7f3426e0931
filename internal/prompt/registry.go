// Package prompt assembles provider-neutral prompt strings from retrieval
// results. Rendering is a pure function of its inputs: identical input yields
// byte-identical output.
package prompt

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/hyperjump/kiroku/internal/models"
)

var (
	// ErrUnknownTemplate is returned for unknown template names only when the
	// registry is strict; otherwise lookup falls back to the default template.
	ErrUnknownTemplate = errors.New("unknown prompt template")
	// ErrBuiltinTemplate is returned when a caller tries to register a custom
	// template over a built-in name.
	ErrBuiltinTemplate = errors.New("cannot overwrite built-in template")
)

// DefaultTemplateName is the fallback for empty or unknown template names.
const DefaultTemplateName = "default"

// UserInstructionFunc generates the user instruction for a config.
type UserInstructionFunc func(cfg *models.PromptConfig) string

// Template is a named pair of system instruction and user-instruction generator.
type Template struct {
	Name   string
	System string
	User   UserInstructionFunc
}

// Registry holds named templates. The built-ins are registered at
// construction and cannot be overwritten.
type Registry struct {
	mu        sync.RWMutex
	templates map[string]*Template
	builtins  map[string]bool
	strict    bool
}

// Option configures a Registry.
type Option func(*Registry)

// WithStrictLookup makes unknown template names an error instead of a
// fallback. Intended for tests and CI, where the fallback would mask typos.
func WithStrictLookup(strict bool) Option {
	return func(r *Registry) { r.strict = strict }
}

// NewRegistry creates a registry with the built-in templates installed.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		templates: make(map[string]*Template),
		builtins:  make(map[string]bool),
	}
	for _, t := range builtinTemplates() {
		r.templates[t.Name] = t
		r.builtins[t.Name] = true
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a custom template. Both instructions are required, and
// built-in names are protected: attempting to overwrite one returns
// ErrBuiltinTemplate rather than silently replacing it.
func (r *Registry) Register(name, system string, user UserInstructionFunc) error {
	if name == "" || system == "" || user == nil {
		return errors.New("template requires a name, a system instruction, and a user instruction generator")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.builtins[name] {
		return ErrBuiltinTemplate
	}
	r.templates[name] = &Template{Name: name, System: system, User: user}
	return nil
}

// Names returns the registered template names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Render produces the finished prompt for cfg using cfg.TemplateName. An
// empty name selects the default template; an unknown name falls back to the
// default template unless the registry is strict.
func (r *Registry) Render(cfg *models.PromptConfig) (*models.TemplateResult, error) {
	name := cfg.TemplateName
	if name == "" {
		name = DefaultTemplateName
	}
	r.mu.RLock()
	tpl, ok := r.templates[name]
	if !ok {
		if r.strict {
			r.mu.RUnlock()
			return nil, ErrUnknownTemplate
		}
		name = DefaultTemplateName
		tpl = r.templates[name]
	}
	r.mu.RUnlock()

	system := tpl.System
	if cfg.SystemPromptOverride != "" {
		system = cfg.SystemPromptOverride
	}
	return &models.TemplateResult{
		Text:         combine(system, cfg.Examples, tpl.User(cfg)),
		TemplateName: name,
	}, nil
}

// combine lays out system instruction, optional few-shot examples, and user
// instruction as one string. The layout is provider-neutral; callers hand the
// result to whatever model client they use.
func combine(system string, examples []models.Example, user string) string {
	var b strings.Builder
	b.WriteString(system)
	b.WriteString("\n\n")
	for i, ex := range examples {
		if i == 0 {
			b.WriteString("Examples:\n")
		}
		b.WriteString("Q: ")
		b.WriteString(ex.Query)
		b.WriteString("\nA: ")
		b.WriteString(ex.Answer)
		b.WriteString("\n\n")
	}
	b.WriteString(user)
	return b.String()
}
