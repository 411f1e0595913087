// Package interpolation evaluates templated manifest strings against the
// connector config.
//
// Templates use text/template syntax. The evaluation data exposes:
//
//	.config      the connector config document
//	.parameters  values propagated from the enclosing manifest component
//
// plus any extra keyword values passed to Eval. A template that references a
// missing key falls back to its default; only a default that does the same
// is an evaluation error.
package interpolation

import (
	"bytes"
	"errors"
	"fmt"
	"maps"
	"strings"
	"text/template"

	"github.com/roach88/lowcode/internal/doc"
)

// ErrEval is wrapped by every template execution failure.
var ErrEval = errors.New("interpolation failed")

// String is a template string with a fallback default.
type String struct {
	raw        string
	def        string
	parameters map[string]any

	tmpl    *template.Template
	defTmpl *template.Template
}

// Option configures a String.
type Option func(*String)

// WithDefault sets the value used when the template renders empty.
// An empty default falls back to the raw string.
func WithDefault(def string) Option {
	return func(s *String) { s.def = def }
}

// WithParameters sets the values exposed as .parameters.
func WithParameters(params map[string]any) Option {
	return func(s *String) { s.parameters = maps.Clone(params) }
}

// New parses raw and its default.
func New(raw string, opts ...Option) (*String, error) {
	s := &String{raw: raw}
	for _, opt := range opts {
		opt(s)
	}
	if s.def == "" {
		s.def = raw
	}
	if s.parameters == nil {
		s.parameters = map[string]any{}
	}

	var err error
	if s.tmpl, err = parse("string", raw); err != nil {
		return nil, err
	}
	if s.defTmpl, err = parse("default", s.def); err != nil {
		return nil, err
	}
	return s, nil
}

// MustNew is New for package-level literals. It panics on a parse error.
func MustNew(raw string, opts ...Option) *String {
	s, err := New(raw, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

func parse(name, text string) (*template.Template, error) {
	t, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse %s %q: %w", name, text, err)
	}
	return t, nil
}

// Raw returns the unevaluated template.
func (s *String) Raw() string { return s.raw }

// Default returns the fallback template.
func (s *String) Default() string { return s.def }

// String implements fmt.Stringer with the raw template.
func (s *String) String() string { return s.raw }

// IsStatic reports whether the raw string contains no template actions.
func (s *String) IsStatic() bool {
	return !strings.Contains(s.raw, "{{")
}

// Eval renders the template against config. kwargs are added to the
// template data but cannot shadow .config or .parameters. An empty
// rendering, or one that references a missing key, yields the rendered
// default. A default that references a missing key is an error.
func (s *String) Eval(config *doc.Map, kwargs map[string]any) (string, error) {
	data := make(map[string]any, len(kwargs)+2)
	for k, v := range kwargs {
		data[k] = v
	}
	data["config"] = config.ToAny()
	data["parameters"] = s.parameters

	out, err := execute(s.tmpl, data)
	switch {
	case err == nil && out != "":
		return out, nil
	case err != nil && !isMissingKey(err):
		return "", fmt.Errorf("%w: evaluate %q: %w", ErrEval, s.raw, err)
	}

	out, err = execute(s.defTmpl, data)
	if err != nil {
		return "", fmt.Errorf("%w: evaluate default %q: %w", ErrEval, s.def, err)
	}
	return out, nil
}

// isMissingKey reports whether err is text/template's missingkey=error
// failure. The package exposes no typed error for it.
func isMissingKey(err error) bool {
	var execErr template.ExecError
	return errors.As(err, &execErr) && strings.Contains(execErr.Error(), "map has no entry for key")
}

func execute(t *template.Template, data map[string]any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Equal reports whether both strings have the same raw template and default.
// Parameters are not compared.
func (s *String) Equal(o *String) bool {
	if s == nil || o == nil {
		return s == o
	}
	return s.raw == o.raw && s.def == o.def
}
