// Package prompt maps node keys to (system text, user template) pairs. The
// defaults are embedded; operators can replace any of them from an on-disk
// tree without rebuilding.
package prompt

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"github.com/bmatcuk/doublestar/v4"
)

//go:embed templates/*.tmpl
var defaultTemplates embed.FS

// Keys every registry must provide. The loop resolves the first five; codegen
// serves the one-shot pipeline.
var requiredKeys = []string{"observe", "plan", "action_gen", "review", "commit", "codegen"}

type Definition struct {
	System string
	User   *template.Template
}

type Registry struct {
	defs map[string]Definition
}

// NewRegistry loads the embedded defaults. It fails if any required key is
// missing a system or user template, which would indicate a broken build.
func NewRegistry() (*Registry, error) {
	r := &Registry{defs: map[string]Definition{}}
	entries, err := defaultTemplates.ReadDir("templates")
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		data, err := defaultTemplates.ReadFile("templates/" + entry.Name())
		if err != nil {
			return nil, err
		}
		if err := r.install(entry.Name(), string(data)); err != nil {
			return nil, err
		}
	}
	for _, key := range requiredKeys {
		def, ok := r.defs[key]
		if !ok || def.System == "" || def.User == nil {
			return nil, fmt.Errorf("embedded templates incomplete for key %q", key)
		}
	}
	return r, nil
}

// LoadOverrides replaces embedded defaults with any *.tmpl files found under
// dir (searched recursively). File naming follows the embedded layout:
// <key>.system.tmpl / <key>.user.tmpl.
func (r *Registry) LoadOverrides(dir string) error {
	matches, err := doublestar.Glob(os.DirFS(dir), "**/*.tmpl")
	if err != nil {
		return fmt.Errorf("scan prompt overrides: %w", err)
	}
	for _, match := range matches {
		data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(match)))
		if err != nil {
			return err
		}
		if err := r.install(filepath.Base(match), string(data)); err != nil {
			return fmt.Errorf("override %s: %w", match, err)
		}
	}
	return nil
}

func (r *Registry) install(filename, content string) error {
	name := strings.TrimSuffix(filename, ".tmpl")
	key, kind, ok := strings.Cut(name, ".")
	if !ok {
		return fmt.Errorf("template filename %q must be <key>.system.tmpl or <key>.user.tmpl", filename)
	}
	def := r.defs[key]
	switch kind {
	case "system":
		def.System = content
	case "user":
		tmpl, err := template.New(name).Parse(content)
		if err != nil {
			return fmt.Errorf("parse template %s: %w", filename, err)
		}
		def.User = tmpl
	default:
		return fmt.Errorf("unknown template kind %q in %s", kind, filename)
	}
	r.defs[key] = def
	return nil
}

func (r *Registry) Keys() []string {
	out := make([]string, 0, len(r.defs))
	for k := range r.defs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) System(key string) (string, error) {
	def, ok := r.defs[key]
	if !ok {
		return "", fmt.Errorf("prompt not found: %s", key)
	}
	return def.System, nil
}

func (r *Registry) RenderUser(key string, payload map[string]any) (string, error) {
	def, ok := r.defs[key]
	if !ok || def.User == nil {
		return "", fmt.Errorf("prompt not found: %s", key)
	}
	var b strings.Builder
	if err := def.User.Execute(&b, payload); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", key, err)
	}
	return b.String(), nil
}
