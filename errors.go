package flags

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/agext/levenshtein"
)

var (
	// ErrFrozenTree is returned by every mutation attempted after Lock.
	ErrFrozenTree = errors.New("flags: tree is locked")
	// ErrNotLocked is returned when hashing an unlocked tree.
	ErrNotLocked = errors.New("flags: tree is not locked")
	// ErrUnknownFlag reports a path that does not name a flag.
	ErrUnknownFlag = errors.New("flags: unknown flag")
	// ErrUnknownCategory reports a path that does not name a category.
	ErrUnknownCategory = errors.New("flags: unknown category")
	// ErrDuplicateFlag reports a name collision inside a category.
	ErrDuplicateFlag = errors.New("flags: duplicate flag name")
	// ErrInvalidEnumValue reports a value outside the flag's enum.
	ErrInvalidEnumValue = errors.New("flags: value is not a member of the flag enum")
	// ErrInvalidType reports a value that cannot be stored in a typed flag.
	ErrInvalidType = errors.New("flags: value does not match the flag type")
	// ErrNilDefault reports a nil default or nil assignment.
	ErrNilDefault = errors.New("flags: flag value must not be nil")
	// ErrCyclicFlag reports a resolver that (indirectly) reads itself.
	ErrCyclicFlag = errors.New("flags: cyclic flag dependency")
	// ErrNotAppendable reports "+=" against a flag that does not hold a list.
	ErrNotAppendable = errors.New("flags: flag does not hold a list")
	// ErrIncompatibleReplacement reports a clone-and-replace that would drop flags.
	ErrIncompatibleReplacement = errors.New("flags: incompatible replacement")
	// ErrInvalidPath reports an empty path or an empty path segment.
	ErrInvalidPath = errors.New("flags: invalid path")
	// ErrInvalidArgument reports malformed command-line input.
	ErrInvalidArgument = errors.New("flags: invalid argument")
	// ErrHelpRequested is returned by FillFromArgs after help has been printed.
	ErrHelpRequested = errors.New("flags: help requested")
)

// FlagError decorates a sentinel error with the operation and path involved.
type FlagError struct {
	Op         string
	Path       string
	Detail     string
	Suggestion string
	Err        error
}

func (e *FlagError) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString("flags: ")
	b.WriteString(e.Op)
	if e.Path != "" {
		fmt.Fprintf(&b, " %q", e.Path)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(strings.TrimPrefix(e.Err.Error(), "flags: "))
	}
	if e.Detail != "" {
		b.WriteString(" (")
		b.WriteString(e.Detail)
		b.WriteString(")")
	}
	if e.Suggestion != "" {
		fmt.Fprintf(&b, "; did you mean %q?", e.Suggestion)
	}
	return b.String()
}

func (e *FlagError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newFlagError(op, path string, err error) *FlagError {
	return &FlagError{Op: op, Path: path, Err: err}
}

// closestMatch returns the candidate nearest to name, or "" when nothing is
// close enough to be a plausible typo.
func closestMatch(name string, candidates []string) string {
	if name == "" || len(candidates) == 0 {
		return ""
	}
	sorted := append([]string(nil), candidates...)
	sort.Strings(sorted)

	best := ""
	bestDistance := -1
	for _, candidate := range sorted {
		if candidate == name {
			continue
		}
		distance := levenshtein.Distance(name, candidate, nil)
		if strings.EqualFold(name, candidate) {
			distance = 0
		}
		if bestDistance == -1 || distance < bestDistance {
			best = candidate
			bestDistance = distance
		}
	}
	if bestDistance < 0 {
		return ""
	}
	limit := len(name) / 3
	if limit < 2 {
		limit = 2
	}
	if bestDistance > limit {
		return ""
	}
	return best
}
