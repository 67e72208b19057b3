package flags

import (
	"fmt"
	"sort"
	"strings"
)

// Enum restricts the values a flag may take.
type Enum interface {
	// EnumName is the qualifier accepted on the command line ("Format" in
	// "Format.BS").
	EnumName() string
	Contains(value any) bool
	// Lookup resolves a member name, with or without the enum qualifier.
	Lookup(member string) (any, bool)
	Members() []string
}

// EnumOf is an Enum over a comparable Go type.
type EnumOf[T comparable] struct {
	name    string
	members map[string]T
	order   []string
}

// NewEnum builds an enum from member names to values.
func NewEnum[T comparable](name string, members map[string]T) *EnumOf[T] {
	enum := &EnumOf[T]{
		name:    name,
		members: make(map[string]T, len(members)),
		order:   make([]string, 0, len(members)),
	}
	for member, value := range members {
		enum.members[member] = value
		enum.order = append(enum.order, member)
	}
	sort.Strings(enum.order)
	return enum
}

func (e *EnumOf[T]) EnumName() string {
	return e.name
}

func (e *EnumOf[T]) Contains(value any) bool {
	typed, ok := value.(T)
	if !ok {
		return false
	}
	for _, member := range e.members {
		if member == typed {
			return true
		}
	}
	return false
}

func (e *EnumOf[T]) Lookup(member string) (any, bool) {
	member = strings.TrimPrefix(strings.TrimSpace(member), e.name+".")
	value, ok := e.members[member]
	if !ok {
		return nil, false
	}
	return value, true
}

func (e *EnumOf[T]) Members() []string {
	return append([]string(nil), e.order...)
}

func checkEnum(enum Enum, value any) error {
	if enum == nil || enum.Contains(value) {
		return nil
	}
	return fmt.Errorf("%w: %v not in %s%v", ErrInvalidEnumValue, value, enum.EnumName(), enum.Members())
}
