// Package render resolves named templates and renders them from a snapshot
// payload. Templates are addressed by their path inside the source
// filesystem, so targets can namespace their files ("rust/entity.rs.tmpl").
package render

import (
	"bytes"
	"fmt"
	"io/fs"
	"strings"
	"text/template"

	"github.com/jacquetc/qleany/pkg/domain"
	"github.com/jacquetc/qleany/pkg/snapshot"
)

// Renderer holds a parsed template set.
type Renderer struct {
	root *template.Template
}

// funcMap exposes the name-form helpers templates interpolate with.
func funcMap() template.FuncMap {
	return template.FuncMap{
		"snake":  func(s string) string { return snapshot.DeriveNameForms(s).Snake },
		"pascal": func(s string) string { return snapshot.DeriveNameForms(s).Pascal },
		"camel":  func(s string) string { return snapshot.DeriveNameForms(s).Camel },
		"plural": func(s string) string { return snapshot.DeriveNameForms(s).Plural },
		"lower":  strings.ToLower,
		"upper":  strings.ToUpper,
	}
}

// New parses every ".tmpl" file under fsys. Each template keeps its full
// path as its name.
func New(fsys fs.FS) (*Renderer, error) {
	root := template.New("").Funcs(funcMap())
	err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".tmpl") {
			return nil
		}
		raw, err := fs.ReadFile(fsys, path)
		if err != nil {
			return err
		}
		_, err = root.New(path).Parse(string(raw))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTemplateRenderFailed, err)
	}
	return &Renderer{root: root}, nil
}

// Default returns a renderer over the embedded target templates.
func Default() (*Renderer, error) {
	sub, err := fs.Sub(builtin, "templates")
	if err != nil {
		return nil, err
	}
	return New(sub)
}

// Has reports whether a template with this name was parsed.
func (r *Renderer) Has(name string) bool {
	return r.root.Lookup(name) != nil
}

// Names returns the parsed template names, excluding the unnamed root.
func (r *Renderer) Names() []string {
	var names []string
	for _, t := range r.root.Templates() {
		if t.Name() != "" {
			names = append(names, t.Name())
		}
	}
	return names
}

// Render executes the named template against the snapshot.
func (r *Renderer) Render(name string, snap *snapshot.Snapshot) (string, error) {
	tmpl := r.root.Lookup(name)
	if tmpl == nil {
		return "", fmt.Errorf("%w: %q", domain.ErrTemplateNotFound, name)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, snap); err != nil {
		return "", fmt.Errorf("%w: %q: %v", domain.ErrTemplateRenderFailed, name, err)
	}
	return buf.String(), nil
}
