// Package manifest loads connector manifests and builds the substream
// slicer, parent streams and authenticator they describe.
//
// A manifest is a YAML, JSON or CUE document validated against the embedded
// CUE schema (schema.cue):
//
//	version: "1"
//	name: trello
//	config:
//	  api_key: "..."
//	streams:
//	  - name: boards
//	    partitions: [{slice: a}]
//	    records: [{id: 1, slice: a}]
//	substream:
//	  name: cards
//	  parents:
//	    - stream: boards
//	      parent_key: id
//	      stream_slice_field: board_id
//	authenticator:
//	  type: BearerAuthenticator
//	  api_token: "{{ .config.api_key }}"
package manifest

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/roach88/lowcode/internal/doc"
)

// Authenticator types.
const (
	AuthAPIKey    = "ApiKeyAuthenticator"
	AuthBearer    = "BearerAuthenticator"
	AuthBasicHTTP = "BasicHttpAuthenticator"
)

// Manifest is a decoded connector manifest.
type Manifest struct {
	Version       string         `yaml:"version" json:"version"`
	Name          string         `yaml:"name" json:"name"`
	Config        *doc.Map       `yaml:"config,omitempty" json:"config,omitempty"`
	Parameters    map[string]any `yaml:"parameters,omitempty" json:"parameters,omitempty"`
	Streams       []StreamDef    `yaml:"streams" json:"streams"`
	Substream     SubstreamDef   `yaml:"substream" json:"substream"`
	Authenticator *AuthDef       `yaml:"authenticator,omitempty" json:"authenticator,omitempty"`

	// path is the file the manifest was loaded from; relative stream paths
	// resolve against its directory.
	path string
}

// StreamDef declares a parent stream. Records come from Path (JSON Lines)
// when set, otherwise from Records.
type StreamDef struct {
	Name           string     `yaml:"name" json:"name"`
	Path           string     `yaml:"path,omitempty" json:"path,omitempty"`
	PartitionField string     `yaml:"partition_field,omitempty" json:"partition_field,omitempty"`
	Partitions     []*doc.Map `yaml:"partitions,omitempty" json:"partitions,omitempty"`
	Records        []*doc.Map `yaml:"records,omitempty" json:"records,omitempty"`
}

// SubstreamDef configures the child stream's slicer.
type SubstreamDef struct {
	Name           string      `yaml:"name" json:"name"`
	CursorPolicy   string      `yaml:"cursor_policy,omitempty" json:"cursor_policy,omitempty"`
	SyncMode       string      `yaml:"sync_mode,omitempty" json:"sync_mode,omitempty"`
	PartitionField string      `yaml:"partition_field,omitempty" json:"partition_field,omitempty"`
	CursorField    []string    `yaml:"cursor_field,omitempty" json:"cursor_field,omitempty"`
	Parents        []ParentDef `yaml:"parents" json:"parents"`
}

// ParentDef binds a declared stream as a substream parent.
type ParentDef struct {
	Stream           string `yaml:"stream" json:"stream"`
	ParentKey        string `yaml:"parent_key" json:"parent_key"`
	StreamSliceField string `yaml:"stream_slice_field" json:"stream_slice_field"`
	PartitionField   string `yaml:"partition_field,omitempty" json:"partition_field,omitempty"`
}

// AuthDef configures the request authenticator.
type AuthDef struct {
	Type       string         `yaml:"type" json:"type"`
	Header     string         `yaml:"header,omitempty" json:"header,omitempty"`
	APIToken   string         `yaml:"api_token,omitempty" json:"api_token,omitempty"`
	Username   string         `yaml:"username,omitempty" json:"username,omitempty"`
	Password   string         `yaml:"password,omitempty" json:"password,omitempty"`
	Parameters map[string]any `yaml:"parameters,omitempty" json:"parameters,omitempty"`
}

// Path returns the file the manifest was loaded from, if any.
func (m *Manifest) Path() string { return m.path }

// Stream returns the stream declaration with the given name.
func (m *Manifest) Stream(name string) (StreamDef, bool) {
	for _, s := range m.Streams {
		if s.Name == name {
			return s, true
		}
	}
	return StreamDef{}, false
}

func (m *Manifest) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || m.path == "" {
		return p
	}
	return filepath.Join(filepath.Dir(m.path), p)
}

// Hash fingerprints the manifest content. Key order and formatting of the
// source document do not affect it.
func (m *Manifest) Hash() (string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshal manifest: %w", err)
	}
	v, err := doc.ParseJSON(data)
	if err != nil {
		return "", fmt.Errorf("parse manifest: %w", err)
	}
	return doc.Hash(doc.DomainManifest, v)
}
