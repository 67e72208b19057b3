package flags

import (
	"fmt"
	"reflect"

	"github.com/mitchellh/copystructure"
)

// Resolver computes a flag value from the root of the tree it lives in.
// scope addresses the category enclosing the flag, so resolvers can read
// siblings without knowing where their category was mounted.
type Resolver interface {
	Resolve(root *Tree, scope Address) (any, error)
}

// ResolverFunc adapts a function reading absolute paths to Resolver.
type ResolverFunc func(root *Tree) (any, error)

// Resolve implements Resolver.
func (f ResolverFunc) Resolve(root *Tree, _ Address) (any, error) {
	return f(root)
}

// ScopedResolverFunc adapts a function that also reads relative paths.
type ScopedResolverFunc func(root *Tree, scope Address) (any, error)

// Resolve implements Resolver.
func (f ScopedResolverFunc) Resolve(root *Tree, scope Address) (any, error) {
	return f(root, scope)
}

// FlagOption customizes a flag at registration time.
type FlagOption func(*flagConfig)

type flagConfig struct {
	help   string
	enum   Enum
	typ    reflect.Type
	hidden bool
}

// WithHelp attaches the text shown by the command-line help.
func WithHelp(help string) FlagOption {
	return func(cfg *flagConfig) {
		cfg.help = help
	}
}

// WithEnum restricts the flag to the members of enum.
func WithEnum(enum Enum) FlagOption {
	return func(cfg *flagConfig) {
		cfg.enum = enum
	}
}

// WithType declares the flag's Go type. Assignments of other types are
// rejected and resolver results are converted when possible.
func WithType(typ reflect.Type) FlagOption {
	return func(cfg *flagConfig) {
		cfg.typ = typ
	}
}

// TypeOf is shorthand for WithType(reflect.TypeOf(zero)).
func TypeOf[T any]() FlagOption {
	return WithType(reflect.TypeOf((*T)(nil)).Elem())
}

// Hidden keeps the flag out of the command-line help.
func Hidden() FlagOption {
	return func(cfg *flagConfig) {
		cfg.hidden = true
	}
}

type cell struct {
	value    any
	resolver Resolver

	enum     Enum
	typ      reflect.Type
	declared bool
	help     string
	hidden   bool

	// memo holds the resolved value once the tree is locked.
	memo    any
	touched bool
}

func newCell(def any, opts []FlagOption) (*cell, error) {
	cfg := flagConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	c := &cell{
		enum:     cfg.enum,
		typ:      cfg.typ,
		declared: cfg.typ != nil,
		help:     cfg.help,
		hidden:   cfg.hidden,
	}
	if err := c.assign(def); err != nil {
		return nil, err
	}
	if c.typ == nil && c.resolver == nil {
		c.typ = reflect.TypeOf(c.value)
	}
	return c, nil
}

func asResolver(value any) (Resolver, bool) {
	switch v := value.(type) {
	case Resolver:
		return v, true
	case func(*Tree) (any, error):
		return ResolverFunc(v), true
	case func(*Tree, Address) (any, error):
		return ScopedResolverFunc(v), true
	}
	return nil, false
}

// assign replaces the content of the cell. Concrete values are validated
// against the enum and declared type immediately.
func (c *cell) assign(value any) error {
	if value == nil {
		return ErrNilDefault
	}
	if resolver, ok := asResolver(value); ok {
		c.resolver = resolver
		c.value = nil
		c.memo = nil
		c.touched = false
		return nil
	}
	converted, err := c.conform(value)
	if err != nil {
		return err
	}
	if err := checkEnum(c.enum, converted); err != nil {
		return err
	}
	c.value = converted
	c.resolver = nil
	c.memo = nil
	c.touched = false
	return nil
}

// conform checks value against an explicitly declared type.
func (c *cell) conform(value any) (any, error) {
	if !c.declared || value == nil {
		return value, nil
	}
	if reflect.TypeOf(value).AssignableTo(c.typ) {
		return value, nil
	}
	converted, err := coerce(value, c.typ)
	if err != nil {
		return nil, fmt.Errorf("%w: %T is not %s", ErrInvalidType, value, c.typ)
	}
	return converted, nil
}

func (c *cell) dynamic() bool {
	return c.resolver != nil
}

// describe renders the unresolved default for dumps and descriptors.
func (c *cell) describe() string {
	if c.resolver == nil {
		return fmt.Sprintf("%v", c.value)
	}
	if stringer, ok := c.resolver.(fmt.Stringer); ok {
		return stringer.String()
	}
	return "[function]"
}

func (c *cell) typeName() string {
	if c.typ == nil {
		return "any"
	}
	return c.typ.String()
}

func (c *cell) clone() *cell {
	return &cell{
		value:    copyValue(c.value),
		resolver: c.resolver,
		enum:     c.enum,
		typ:      c.typ,
		declared: c.declared,
		help:     c.help,
		hidden:   c.hidden,
	}
}

// copyValue deep-copies v so callers cannot mutate stored slices and maps.
func copyValue(v any) any {
	if v == nil {
		return nil
	}
	copied, err := copystructure.Copy(v)
	if err != nil {
		return v
	}
	return copied
}
