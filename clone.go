package flags

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
)

// Clone returns an unlocked deep copy. Concrete values are copied, resolvers
// and category generators are shared, and values memoized after locking are
// dropped so the copy resolves against its own content.
func (t *Tree) Clone() *Tree {
	clone := newTree(t.cfg)
	clone.root = t.root.clone()
	return clone
}

// CloneAndReplace returns an unlocked copy of t in which the category dst is
// replaced by the content of the category src. The flags of src must cover
// every flag of dst. Both categories are loaded first, which is allowed on a
// locked tree; t is otherwise left untouched.
func (t *Tree) CloneAndReplace(dst, src string) (*Tree, error) {
	const op = "clone-and-replace"
	if dst == src {
		return nil, &FlagError{Op: op, Path: dst, Detail: "cannot replace a category with itself", Err: ErrIncompatibleReplacement}
	}
	if dst == "" || src == "" {
		return nil, &FlagError{Op: op, Path: dst, Detail: "the root category cannot take part in a replacement", Err: ErrInvalidArgument}
	}
	dstNode, err := t.categoryNode(op, dst)
	if err != nil {
		return nil, err
	}
	srcNode, err := t.categoryNode(op, src)
	if err != nil {
		return nil, err
	}
	if err := t.loadAllUnder(dstNode, dst); err != nil {
		return nil, err
	}
	if err := t.loadAllUnder(srcNode, src); err != nil {
		return nil, err
	}

	replacement := map[string]bool{}
	for _, name := range srcNode.flagPaths() {
		replacement[name] = true
	}
	var missing []string
	for _, name := range dstNode.flagPaths() {
		if !replacement[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &FlagError{
			Op:     op,
			Path:   dst,
			Detail: fmt.Sprintf("%s lacks %s", src, strings.Join(missing, ", ")),
			Err:    ErrIncompatibleReplacement,
		}
	}

	t.log("flags.CloneAndReplace").WithFields(logrus.Fields{"dst": dst, "src": src}).Info("cloning flags and replacing category")

	clone := t.Clone()
	target, err := clone.categoryNode(op, dst)
	if err != nil {
		return nil, err
	}
	source, err := clone.categoryNode(op, src)
	if err != nil {
		return nil, err
	}
	target.entries = source.clone().entries
	return clone, nil
}

var exportAll = cmp.Exporter(func(reflect.Type) bool { return true })

// Equal compares the resolved content of two trees. Both trees are fully
// loaded.
func (t *Tree) Equal(other *Tree) (bool, error) {
	left, right, err := t.dictPair(other)
	if err != nil {
		return false, err
	}
	return cmp.Equal(left, right, exportAll), nil
}

// Diff reports the difference between the resolved content of two trees in
// go-cmp notation. An empty string means the trees are equal.
func (t *Tree) Diff(other *Tree) (string, error) {
	left, right, err := t.dictPair(other)
	if err != nil {
		return "", err
	}
	return cmp.Diff(left, right, exportAll), nil
}

func (t *Tree) dictPair(other *Tree) (map[string]any, map[string]any, error) {
	left, err := t.AsDict()
	if err != nil {
		return nil, nil, err
	}
	if other == nil {
		return left, nil, nil
	}
	right, err := other.AsDict()
	if err != nil {
		return nil, nil, err
	}
	return left, right, nil
}
