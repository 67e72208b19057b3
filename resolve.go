package flags

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// resolve returns the value of c, stored at path inside the category scope.
func (t *Tree) resolve(path, scope string, c *cell) (any, error) {
	if c.resolver == nil {
		return copyValue(c.value), nil
	}
	if t.state.locked && c.touched {
		return copyValue(c.memo), nil
	}
	for i, active := range t.resolving {
		if active == path {
			chain := append(append([]string(nil), t.resolving[i:]...), path)
			return nil, &FlagError{Op: "resolve", Path: path, Detail: strings.Join(chain, " -> "), Err: ErrCyclicFlag}
		}
	}

	value, err := t.invoke(path, scope, c.resolver)
	if err != nil {
		var flagErr *FlagError
		if errors.As(err, &flagErr) && errors.Is(err, ErrCyclicFlag) {
			return nil, err
		}
		return nil, &FlagError{Op: "resolve", Path: path, Err: err}
	}

	if c.declared && value != nil && !reflect.TypeOf(value).AssignableTo(c.typ) {
		converted, convErr := coerce(value, c.typ)
		if convErr != nil {
			return nil, &FlagError{
				Op:     "resolve",
				Path:   path,
				Detail: fmt.Sprintf("resolver returned %T, want %s", value, c.typ),
				Err:    ErrInvalidType,
			}
		}
		value = converted
	}
	if err := checkEnum(c.enum, value); err != nil {
		return nil, newFlagError("resolve", path, err)
	}
	if t.state.locked {
		c.memo = value
		c.touched = true
	}
	return copyValue(value), nil
}

func (t *Tree) invoke(path, scope string, resolver Resolver) (any, error) {
	t.resolving = append(t.resolving, path)
	defer func() {
		t.resolving = t.resolving[:len(t.resolving)-1]
	}()
	return resolver.Resolve(t, t.At(scope))
}

// InitAll loads every category and resolves every flag, reporting all
// failures at once.
func (t *Tree) InitAll() error {
	if err := t.LoadAll(); err != nil {
		return err
	}
	var result *multierror.Error
	_ = t.walkResolved(t.root, "", func(_ string, _ any, err error) error {
		if err != nil {
			result = multierror.Append(result, err)
		}
		return nil
	})
	return result.ErrorOrNil()
}

// walkResolved resolves every materialized flag below n. fn decides whether
// a resolution error stops the walk.
func (t *Tree) walkResolved(n *node, prefix string, fn func(path string, value any, err error) error) error {
	return n.walkFlags(prefix, func(path string, c *cell) error {
		scope, _ := parentPath(path)
		value, err := t.resolve(path, scope, c)
		return fn(path, value, err)
	})
}

// Getter reads flags by path. *Tree and Address implement it.
type Getter interface {
	Get(path string) (any, error)
}

// Get resolves path and asserts the result to T.
func Get[T any](g Getter, path string) (T, error) {
	var zero T
	value, err := g.Get(path)
	if err != nil {
		return zero, err
	}
	typed, ok := value.(T)
	if !ok {
		return zero, &FlagError{
			Op:     "get",
			Path:   path,
			Detail: fmt.Sprintf("have %T, want %s", value, reflect.TypeOf((*T)(nil)).Elem()),
			Err:    ErrInvalidType,
		}
	}
	return typed, nil
}
