package flags

import (
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"sort"

	"github.com/hashicorp/go-multierror"
	"github.com/mitchellh/copystructure"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Recommended priorities for override sources. Higher numbers win.
const (
	ScopePriorityFile        = 100
	ScopePriorityEnvironment = 200
	ScopePriorityCommandLine = 300
)

// Scope names an override source.
type Scope struct {
	Name     string         `json:"name"`
	Label    string         `json:"label,omitempty"`
	Priority int            `json:"priority"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ScopeOption configures metadata on Scope creation.
type ScopeOption func(*scopeConfig)

type scopeConfig struct {
	label    string
	metadata map[string]any
}

// WithScopeLabel sets a human-friendly label on the scope.
func WithScopeLabel(label string) ScopeOption {
	return func(cfg *scopeConfig) {
		cfg.label = label
	}
}

// WithScopeMetadata attaches a copy of metadata to the scope.
func WithScopeMetadata(metadata map[string]any) ScopeOption {
	return func(cfg *scopeConfig) {
		if len(metadata) == 0 {
			return
		}
		cfg.metadata = copyMetadata(metadata)
	}
}

// NewScope builds a Scope. Validation is deferred to NewStack.
func NewScope(name string, priority int, opts ...ScopeOption) Scope {
	cfg := scopeConfig{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}
	return Scope{
		Name:     name,
		Label:    cfg.label,
		Priority: priority,
		Metadata: copyMetadata(cfg.metadata),
	}
}

func (s Scope) clone() Scope {
	return Scope{
		Name:     s.Name,
		Label:    s.Label,
		Priority: s.Priority,
		Metadata: copyMetadata(s.Metadata),
	}
}

// Layer is a set of flag values contributed by one scope. Values may be
// nested maps mirroring categories or use dotted paths as keys.
type Layer struct {
	Scope  Scope
	Values map[string]any
	// Source describes where the values came from, such as a file name.
	Source string
}

// LayerOption configures optional metadata for a layer.
type LayerOption func(*Layer)

// WithLayerSource records where the layer was read from.
func WithLayerSource(source string) LayerOption {
	return func(layer *Layer) {
		layer.Source = source
	}
}

// NewLayer constructs a Layer holding a deep copy of values.
func NewLayer(scope Scope, values map[string]any, opts ...LayerOption) Layer {
	layer := Layer{
		Scope:  scope.clone(),
		Values: copyValues(values),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&layer)
	}
	return layer
}

// ReadYAMLLayer decodes a YAML mapping into a layer.
func ReadYAMLLayer(scope Scope, r io.Reader, opts ...LayerOption) (Layer, error) {
	values := map[string]any{}
	if err := yaml.NewDecoder(r).Decode(&values); err != nil && !errors.Is(err, io.EOF) {
		return Layer{}, fmt.Errorf("flags: decode %s layer: %w", scope.Name, err)
	}
	return NewLayer(scope, values, opts...), nil
}

// ReadYAMLLayerFile reads a YAML override file into a layer.
func ReadYAMLLayerFile(scope Scope, path string) (Layer, error) {
	file, err := os.Open(path)
	if err != nil {
		return Layer{}, fmt.Errorf("flags: open %s layer: %w", scope.Name, err)
	}
	defer file.Close()
	return ReadYAMLLayer(scope, file, WithLayerSource(path))
}

var (
	// ErrScopeNameRequired indicates a missing scope name.
	ErrScopeNameRequired = errors.New("scope: name must be provided")
	// ErrDuplicateScopeName indicates two layers share a scope name.
	ErrDuplicateScopeName = errors.New("scope: names must be unique")
	// ErrPriorityOrder indicates duplicate priorities.
	ErrPriorityOrder = errors.New("scope: priorities must be strictly ordered")
)

// Stack is an ordered set of override layers, strongest first.
type Stack struct {
	layers []Layer
}

// NewStack validates the layers and sorts them strongest first.
func NewStack(layers ...Layer) (*Stack, error) {
	if len(layers) == 0 {
		return &Stack{}, nil
	}

	seenNames := make(map[string]struct{}, len(layers))
	copied := make([]Layer, len(layers))
	for i, layer := range layers {
		layer := cloneLayer(layer)
		if layer.Scope.Name == "" {
			return nil, ErrScopeNameRequired
		}
		if _, ok := seenNames[layer.Scope.Name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateScopeName, layer.Scope.Name)
		}
		seenNames[layer.Scope.Name] = struct{}{}
		copied[i] = layer
	}

	sort.Slice(copied, func(i, j int) bool {
		if copied[i].Scope.Priority == copied[j].Scope.Priority {
			return copied[i].Scope.Name < copied[j].Scope.Name
		}
		return copied[i].Scope.Priority > copied[j].Scope.Priority
	})

	for i := 1; i < len(copied); i++ {
		if copied[i-1].Scope.Priority <= copied[i].Scope.Priority {
			return nil, fmt.Errorf("%w: %d", ErrPriorityOrder, copied[i].Scope.Priority)
		}
	}

	return &Stack{layers: copied}, nil
}

// Layers returns copies of the layers, strongest first.
func (s *Stack) Layers() []Layer {
	if s == nil || len(s.layers) == 0 {
		return nil
	}
	out := make([]Layer, len(s.layers))
	for i := range s.layers {
		out[i] = cloneLayer(s.layers[i])
	}
	return out
}

// Len returns the number of layers in the stack.
func (s *Stack) Len() int {
	if s == nil {
		return 0
	}
	return len(s.layers)
}

type override struct {
	path  string
	value any
}

// Apply writes the layers into t from weakest to strongest, so stronger
// scopes win. String values are parsed like command-line values. Every
// failure is reported; successful assignments are kept. The returned traces
// record, per path, which scopes supplied a value.
func (s *Stack) Apply(t *Tree) ([]Trace, error) {
	if s == nil || len(s.layers) == 0 {
		return nil, nil
	}
	traces := map[string]*Trace{}
	var result *multierror.Error

	for i := len(s.layers) - 1; i >= 0; i-- {
		layer := s.layers[i]
		var overrides []override
		t.flattenOverrides("", layer.Values, &overrides)
		for _, o := range overrides {
			err := t.applyOverride(o.path, o.value)
			if err != nil {
				result = multierror.Append(result, fmt.Errorf("%s: %w", layer.Scope.Name, err))
			}
			trace := traces[o.path]
			if trace == nil {
				trace = &Trace{Path: o.path}
				traces[o.path] = trace
			}
			trace.Layers = append(trace.Layers, Provenance{
				Scope:   layer.Scope.clone(),
				Source:  layer.Source,
				Path:    o.path,
				Value:   o.value,
				Applied: err == nil,
			})
		}
		t.log("flags.Stack.Apply").WithFields(logrus.Fields{
			"scope":     layer.Scope.Name,
			"priority":  layer.Scope.Priority,
			"overrides": len(overrides),
		}).Debug("override layer applied")
	}

	paths := make([]string, 0, len(traces))
	for path := range traces {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	out := make([]Trace, 0, len(paths))
	for _, path := range paths {
		out = append(out, *traces[path])
	}
	return out, result.ErrorOrNil()
}

// flattenOverrides turns nested maps into dotted paths. A map stored at a
// path naming a flag is kept whole.
func (t *Tree) flattenOverrides(prefix string, values map[string]any, out *[]override) {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		path := joinPath(prefix, key)
		value := values[key]
		if nested, ok := value.(map[string]any); ok && !t.flagExists(path) {
			t.flattenOverrides(path, nested, out)
			continue
		}
		*out = append(*out, override{path: path, value: value})
	}
}

func (t *Tree) flagExists(path string) bool {
	_, _, _, e, err := t.locate(path, true)
	return err == nil && e != nil && e.kind == KindFlag
}

func (t *Tree) applyOverride(path string, value any) error {
	if err := t.checkMutable("override", path); err != nil {
		return err
	}
	c, err := t.flagCell("override", path)
	if err != nil {
		return err
	}
	if text, ok := value.(string); ok {
		if c.enum != nil {
			member, ok := c.enum.Lookup(text)
			if !ok {
				return &FlagError{Op: "override", Path: path, Detail: fmt.Sprintf("%q not in %s%v", text, c.enum.EnumName(), c.enum.Members()), Err: ErrInvalidEnumValue}
			}
			value = member
		} else if c.typ == nil || c.typ.Kind() != reflect.String {
			value = parseLiteral(text)
		}
	}
	return t.assignCoerced("override", path, c, value)
}

// ApplyOverrides builds a stack from layers and applies it to t.
func (t *Tree) ApplyOverrides(layers ...Layer) ([]Trace, error) {
	stack, err := NewStack(layers...)
	if err != nil {
		return nil, err
	}
	return stack.Apply(t)
}

func cloneLayer(layer Layer) Layer {
	return Layer{
		Scope:  layer.Scope.clone(),
		Values: copyValues(layer.Values),
		Source: layer.Source,
	}
}

func copyValues(values map[string]any) map[string]any {
	if values == nil {
		return nil
	}
	copied, err := copystructure.Copy(values)
	if err != nil {
		return copyMetadata(values)
	}
	return copied.(map[string]any)
}

func copyMetadata(origin map[string]any) map[string]any {
	if len(origin) == 0 {
		return nil
	}
	out := make(map[string]any, len(origin))
	for key, value := range origin {
		out[key] = value
	}
	return out
}
