package manifest

import (
	"fmt"

	"github.com/roach88/lowcode/internal/auth"
	"github.com/roach88/lowcode/internal/doc"
	"github.com/roach88/lowcode/internal/slicer"
	"github.com/roach88/lowcode/internal/source"
	"github.com/roach88/lowcode/internal/stream"
)

// Connector is a manifest turned into runnable parts.
type Connector struct {
	Name   string
	Stream string // child stream name; keys persisted state

	Slicer        *slicer.Substream
	Authenticator auth.HeaderAuthenticator // nil when the manifest declares none
	Config        *doc.Map
	Parents       []stream.Stream

	SyncMode    stream.SyncMode
	CursorField []string
}

// BuildOption configures Build.
type BuildOption func(*buildOptions)

type buildOptions struct {
	config *doc.Map
}

// WithConfig replaces the manifest's config block.
func WithConfig(config *doc.Map) BuildOption {
	return func(o *buildOptions) { o.config = config }
}

// Build constructs the connector described by m.
func Build(m *Manifest, opts ...BuildOption) (*Connector, error) {
	o := buildOptions{config: m.Config}
	for _, opt := range opts {
		opt(&o)
	}
	config := o.config.Clone()
	if config == nil {
		config = doc.NewMap()
	}

	mode, err := stream.ParseSyncMode(m.Substream.SyncMode)
	if err != nil {
		return nil, fmt.Errorf("substream %q: %w", m.Substream.Name, err)
	}
	policy, err := slicer.PolicyByName(m.Substream.CursorPolicy)
	if err != nil {
		return nil, fmt.Errorf("substream %q: %w", m.Substream.Name, err)
	}

	parents := make([]stream.Stream, 0, len(m.Substream.Parents))
	configs := make([]slicer.ParentStreamConfig, 0, len(m.Substream.Parents))
	for _, p := range m.Substream.Parents {
		def, ok := m.Stream(p.Stream)
		if !ok {
			return nil, &LoadError{Code: ErrCodeReference, Message: fmt.Sprintf("parent stream %q is not declared", p.Stream)}
		}
		s := m.newStream(def)
		parents = append(parents, s)
		// parent, then stream, then the substream-wide field.
		partitionField := p.PartitionField
		if partitionField == "" {
			partitionField = def.PartitionField
		}
		configs = append(configs, slicer.ParentStreamConfig{
			Stream:           s,
			ParentKey:        p.ParentKey,
			StreamSliceField: p.StreamSliceField,
			PartitionField:   partitionField,
		})
	}

	sub, err := slicer.NewFromConfigs(configs,
		slicer.WithCursorPolicy(policy),
		slicer.WithPartitionField(m.Substream.PartitionField),
	)
	if err != nil {
		return nil, err
	}

	authenticator, err := buildAuthenticator(m.Authenticator, config, m.Parameters)
	if err != nil {
		return nil, err
	}

	return &Connector{
		Name:          m.Name,
		Stream:        m.Substream.Name,
		Slicer:        sub,
		Authenticator: authenticator,
		Config:        config,
		Parents:       parents,
		SyncMode:      mode,
		CursorField:   m.Substream.CursorField,
	}, nil
}

func (m *Manifest) newStream(def StreamDef) stream.Stream {
	partitions := def.Partitions
	if len(partitions) == 0 {
		partitions = []*doc.Map{doc.NewMap()}
	}
	opt := source.WithPartitionField(def.PartitionField)
	if def.Path != "" {
		return source.NewJSONLines(def.Name, m.resolve(def.Path), partitions, opt)
	}
	return source.NewStatic(def.Name, partitions, def.Records, opt)
}

// buildAuthenticator merges manifest-level parameters under the
// authenticator's own before parsing its templates.
func buildAuthenticator(def *AuthDef, config *doc.Map, manifestParams map[string]any) (auth.HeaderAuthenticator, error) {
	if def == nil {
		return nil, nil
	}
	params := make(map[string]any, len(manifestParams)+len(def.Parameters))
	for k, v := range manifestParams {
		params[k] = v
	}
	for k, v := range def.Parameters {
		params[k] = v
	}

	var (
		a   auth.HeaderAuthenticator
		err error
	)
	switch def.Type {
	case AuthAPIKey:
		a, err = auth.NewAPIKey(def.Header, def.APIToken, config, params)
	case AuthBearer:
		a, err = auth.NewBearer(def.APIToken, config, params)
	case AuthBasicHTTP:
		a, err = auth.NewBasicHTTP(def.Username, def.Password, config, params)
	default:
		return nil, fmt.Errorf("unknown authenticator type %q", def.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", def.Type, err)
	}
	return a, nil
}
