package flags

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrUnknownFunction is returned when an expression calls a name that was
	// never registered.
	ErrUnknownFunction = errors.New("flags: unknown function")
	// ErrInvalidFunction is returned by Register for empty, nil, reserved or
	// duplicate registrations.
	ErrInvalidFunction = errors.New("flags: invalid function registration")
)

// Function is a custom helper callable from flag expressions.
type Function func(args ...any) (any, error)

// Names bound by every evaluator; custom functions cannot shadow them.
var reservedFunctionNames = map[string]bool{
	"flag":  true,
	"local": true,
	"call":  true,
	"now":   true,
}

// FunctionRegistry maps case-insensitive names to custom functions. It is
// safe for concurrent use.
type FunctionRegistry struct {
	mu    sync.RWMutex
	funcs map[string]Function
}

// NewFunctionRegistry returns an empty registry.
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{funcs: make(map[string]Function)}
}

func functionKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Register adds fn under name. Names are stored lower-cased.
func (r *FunctionRegistry) Register(name string, fn Function) error {
	key := functionKey(name)
	switch {
	case key == "":
		return fmt.Errorf("%w: empty name", ErrInvalidFunction)
	case fn == nil:
		return fmt.Errorf("%w: %q is nil", ErrInvalidFunction, name)
	case reservedFunctionNames[key]:
		return fmt.Errorf("%w: %q is reserved", ErrInvalidFunction, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.funcs == nil {
		r.funcs = make(map[string]Function)
	}
	if _, dup := r.funcs[key]; dup {
		return fmt.Errorf("%w: %q registered twice", ErrInvalidFunction, name)
	}
	r.funcs[key] = fn
	return nil
}

// Lookup returns the function registered under name.
func (r *FunctionRegistry) Lookup(name string) (Function, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[functionKey(name)]
	return fn, ok
}

// Call runs the function registered under name.
func (r *FunctionRegistry) Call(name string, args ...any) (any, error) {
	fn, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFunction, name)
	}
	return fn(args...)
}

// Names lists the registered names in order.
func (r *FunctionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Clone copies the registry so later registrations do not leak between
// trees.
func (r *FunctionRegistry) Clone() *FunctionRegistry {
	out := NewFunctionRegistry()
	if r == nil {
		return out
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for name, fn := range r.funcs {
		out.funcs[name] = fn
	}
	return out
}

// WithFunctionRegistry makes the functions of registry callable from
// expressions. The registry is copied.
func WithFunctionRegistry(registry *FunctionRegistry) Option {
	return func(cfg *config) {
		if registry != nil {
			cfg.functions = registry.Clone()
		}
	}
}

// WithCustomFunction makes fn callable from expressions as name. Invalid or
// duplicate registrations are logged by New and otherwise ignored.
func WithCustomFunction(name string, fn Function) Option {
	return func(cfg *config) {
		if cfg.functions == nil {
			cfg.functions = NewFunctionRegistry()
		}
		if err := cfg.functions.Register(name, fn); err != nil {
			cfg.setupErrs = append(cfg.setupErrs, err)
		}
	}
}
