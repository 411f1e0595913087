package manifest

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	cuejson "cuelang.org/go/encoding/json"
	cueyaml "cuelang.org/go/encoding/yaml"
	"gopkg.in/yaml.v3"

	"github.com/roach88/lowcode/internal/doc"
)

//go:embed schema.cue
var schemaSource string

// Error codes carried by LoadError.
const (
	ErrCodeGeneric     = "E001" // unclassified
	ErrCodeLoadFailed  = "E004" // unreadable or unparsable document
	ErrCodeNotFound    = "E005" // file does not exist
	ErrCodeSchema      = "E008" // document violates the manifest schema
	ErrCodeUnsupported = "E009" // unknown file extension
	ErrCodeReference   = "E010" // dangling or duplicate stream reference
)

// LoadError reports why a manifest could not be loaded.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Load reads and validates the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("manifest not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("read manifest: %v", err)}
	}
	return Parse(path, data)
}

// Parse decodes and validates manifest bytes. The filename extension selects
// the format: .yaml, .yml, .json or .cue.
func Parse(filename string, data []byte) (*Manifest, error) {
	ctx := cuecontext.New()

	var value cue.Value
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".yaml", ".yml":
		f, err := cueyaml.Extract(filename, data)
		if err != nil {
			return nil, cueLoadError(ErrCodeLoadFailed, err)
		}
		value = ctx.BuildFile(f)
	case ".json":
		expr, err := cuejson.Extract(filename, data)
		if err != nil {
			return nil, cueLoadError(ErrCodeLoadFailed, err)
		}
		value = ctx.BuildExpr(expr)
	case ".cue":
		value = ctx.CompileBytes(data, cue.Filename(filename))
	default:
		return nil, &LoadError{Code: ErrCodeUnsupported, Message: fmt.Sprintf("unsupported manifest extension %q", ext)}
	}
	if err := value.Err(); err != nil {
		return nil, cueLoadError(ErrCodeLoadFailed, err)
	}

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile manifest schema: %w", err)
	}
	validated := schema.LookupPath(cue.ParsePath("#Manifest")).Unify(value)
	if err := validated.Validate(cue.Concrete(true)); err != nil {
		return nil, cueLoadError(ErrCodeSchema, err)
	}

	m := &Manifest{}
	if ext == ".cue" {
		// CUE documents are exported with schema defaults applied.
		out, err := validated.MarshalJSON()
		if err != nil {
			return nil, cueLoadError(ErrCodeLoadFailed, err)
		}
		dec := json.NewDecoder(bytes.NewReader(out))
		dec.DisallowUnknownFields()
		if err := dec.Decode(m); err != nil {
			return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("decode manifest: %v", err)}
		}
	} else {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(m); err != nil {
			return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("decode manifest: %v", err)}
		}
	}

	m.path = filename
	m.applyDefaults()
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manifest) applyDefaults() {
	if m.Substream.CursorPolicy == "" {
		m.Substream.CursorPolicy = "replace"
	}
	if m.Substream.SyncMode == "" {
		m.Substream.SyncMode = "incremental"
	}
}

// Validate checks cross references the schema cannot express: stream names
// are unique and every parent names a declared stream.
func (m *Manifest) Validate() error {
	seen := make(map[string]bool, len(m.Streams))
	for _, s := range m.Streams {
		if seen[s.Name] {
			return &LoadError{Code: ErrCodeReference, Message: fmt.Sprintf("stream %q declared more than once", s.Name)}
		}
		seen[s.Name] = true
		if s.Path != "" && len(s.Records) > 0 {
			return &LoadError{Code: ErrCodeReference, Message: fmt.Sprintf("stream %q: path and records are mutually exclusive", s.Name)}
		}
	}
	for _, p := range m.Substream.Parents {
		if !seen[p.Stream] {
			return &LoadError{Code: ErrCodeReference, Message: fmt.Sprintf("substream %q: parent stream %q is not declared", m.Substream.Name, p.Stream)}
		}
	}
	return nil
}

// cueLoadError converts a CUE error to a LoadError at the first reported
// position.
func cueLoadError(code string, err error) *LoadError {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &LoadError{Code: code, Message: err.Error()}
	}
	first := errs[0]
	le := &LoadError{Code: code, Message: first.Error()}
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		le.Pos = positions[0]
	}
	if len(errs) > 1 {
		le.Message = fmt.Sprintf("%s (and %d more errors)", le.Message, len(errs)-1)
	}
	return le
}

// LoadConfig reads a runtime config document from a YAML or JSON file.
func LoadConfig(path string) (*doc.Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	config := doc.NewMap()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	return config, nil
}
