package flags

import (
	"fmt"
	"reflect"
	"strings"

	exprlang "github.com/expr-lang/expr"
	"github.com/spf13/cast"
)

// literalEnv lets command-line literals use Python-style booleans.
var literalEnv = map[string]any{
	"True":  true,
	"False": false,
}

// FillFromString applies one "path=value" or "path+=value" token. The value
// is read as a literal (10, 1.5, 'text', [1, 2], True) and falls back to a
// plain string when it is not one. Enum flags take a member name, with or
// without the enum qualifier. "+=" appends to a list flag.
func (t *Tree) FillFromString(token string) error {
	if err := t.checkMutable("fill", token); err != nil {
		return err
	}
	key, raw, ok := strings.Cut(token, "=")
	if !ok {
		return &FlagError{Op: "fill", Path: token, Detail: "expected path=value", Err: ErrInvalidArgument}
	}
	key = strings.TrimSpace(key)
	raw = strings.TrimSpace(raw)
	appendMode := strings.HasSuffix(key, "+")
	if appendMode {
		key = strings.TrimSpace(strings.TrimSuffix(key, "+"))
	}

	c, err := t.flagCell("fill", key)
	if err != nil {
		return err
	}

	var value any
	if c.enum != nil {
		member, ok := c.enum.Lookup(raw)
		if !ok {
			return &FlagError{
				Op:     "fill",
				Path:   key,
				Detail: fmt.Sprintf("%q not in %s%v", raw, c.enum.EnumName(), c.enum.Members()),
				Err:    ErrInvalidEnumValue,
			}
		}
		value = member
	} else {
		value = parseLiteral(raw)
	}

	if appendMode {
		current, err := t.Get(key)
		if err != nil {
			return err
		}
		value, err = appendValue(current, value)
		if err != nil {
			return newFlagError("fill", key, err)
		}
	}
	return t.assignCoerced("fill", key, c, value)
}

// flagCell finds the flag at path, loading its category when needed.
func (t *Tree) flagCell(op, path string) (*cell, error) {
	if _, err := splitPath(path); err != nil {
		return nil, newFlagError(op, path, err)
	}
	_, _, _, e, err := t.locate(path, true)
	if err != nil {
		return nil, pathError(op, path, err)
	}
	if e == nil || e.kind != KindFlag {
		return nil, t.unknownFlag(op, path)
	}
	return e.cell, nil
}

// assignCoerced converts value to the flag's type before setting it.
func (t *Tree) assignCoerced(op, path string, c *cell, value any) error {
	if c.typ != nil && value != nil {
		converted, err := coerce(value, c.typ)
		if err != nil {
			return &FlagError{Op: op, Path: path, Detail: err.Error(), Err: ErrInvalidType}
		}
		value = converted
	}
	return t.Set(path, value)
}

// parseLiteral evaluates raw as an expression literal, returning raw itself
// when it is not one.
func parseLiteral(raw string) any {
	if raw == "" {
		return raw
	}
	program, err := exprlang.Compile(raw, exprlang.Env(literalEnv))
	if err != nil {
		return raw
	}
	value, err := exprlang.Run(program, literalEnv)
	if err != nil || value == nil {
		return raw
	}
	return value
}

func appendValue(current, addition any) (any, error) {
	rv := reflect.ValueOf(current)
	if !rv.IsValid() || rv.Kind() != reflect.Slice {
		return nil, fmt.Errorf("%w: have %T", ErrNotAppendable, current)
	}
	merged := make([]any, 0, rv.Len()+1)
	for i := 0; i < rv.Len(); i++ {
		merged = append(merged, rv.Index(i).Interface())
	}
	if extra := reflect.ValueOf(addition); extra.IsValid() && extra.Kind() == reflect.Slice {
		for i := 0; i < extra.Len(); i++ {
			merged = append(merged, extra.Index(i).Interface())
		}
	} else {
		merged = append(merged, addition)
	}
	return coerce(merged, rv.Type())
}

// coerce converts value to typ using cast for scalars and element-wise
// conversion for slices.
func coerce(value any, typ reflect.Type) (any, error) {
	if typ == nil || value == nil {
		return value, nil
	}
	if reflect.TypeOf(value).AssignableTo(typ) {
		return value, nil
	}
	var (
		out any
		err error
	)
	switch typ.Kind() {
	case reflect.Int:
		out, err = cast.ToIntE(value)
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		out, err = cast.ToInt64E(value)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		out, err = cast.ToUint64E(value)
	case reflect.Float32, reflect.Float64:
		out, err = cast.ToFloat64E(value)
	case reflect.Bool:
		out, err = cast.ToBoolE(value)
	case reflect.String:
		out, err = cast.ToStringE(value)
	case reflect.Slice:
		return coerceSlice(value, typ)
	case reflect.Interface:
		if reflect.TypeOf(value).Implements(typ) {
			return value, nil
		}
		err = fmt.Errorf("%T does not implement %s", value, typ)
	default:
		rv := reflect.ValueOf(value)
		if rv.Type().ConvertibleTo(typ) {
			return rv.Convert(typ).Interface(), nil
		}
		err = fmt.Errorf("cannot convert %T to %s", value, typ)
	}
	if err != nil {
		return nil, err
	}
	rv := reflect.ValueOf(out)
	if rv.Type() != typ {
		rv = rv.Convert(typ)
	}
	return rv.Interface(), nil
}

func coerceSlice(value any, typ reflect.Type) (any, error) {
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		rv = reflect.ValueOf([]any{value})
	}
	out := reflect.MakeSlice(typ, 0, rv.Len())
	elem := typ.Elem()
	for i := 0; i < rv.Len(); i++ {
		converted, err := coerce(rv.Index(i).Interface(), elem)
		if err != nil {
			return nil, err
		}
		slot := reflect.New(elem).Elem()
		if converted != nil {
			slot.Set(reflect.ValueOf(converted))
		}
		out = reflect.Append(out, slot)
	}
	return out.Interface(), nil
}
