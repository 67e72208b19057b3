package flags

import "sort"

// Kind tells what a path names inside a tree.
type Kind int

const (
	KindNone Kind = iota
	KindFlag
	KindCategory
	// KindPending is a category whose loader has not run yet.
	KindPending
)

func (k Kind) String() string {
	switch k {
	case KindFlag:
		return "flag"
	case KindCategory:
		return "category"
	case KindPending:
		return "pending"
	default:
		return "none"
	}
}

type entry struct {
	kind   Kind
	cell   *cell
	node   *node
	loader *loader
}

type node struct {
	entries map[string]*entry
}

func newNode() *node {
	return &node{entries: map[string]*entry{}}
}

func (n *node) names() []string {
	names := make([]string, 0, len(n.entries))
	for name := range n.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (n *node) clone() *node {
	out := newNode()
	for name, e := range n.entries {
		switch e.kind {
		case KindFlag:
			out.entries[name] = &entry{kind: KindFlag, cell: e.cell.clone()}
		case KindCategory:
			out.entries[name] = &entry{kind: KindCategory, node: e.node.clone()}
		case KindPending:
			ld := *e.loader
			out.entries[name] = &entry{kind: KindPending, loader: &ld}
		}
	}
	return out
}

// walkFlags visits every materialized flag below n in path order.
func (n *node) walkFlags(prefix string, fn func(path string, c *cell) error) error {
	for _, name := range n.names() {
		e := n.entries[name]
		path := joinPath(prefix, name)
		switch e.kind {
		case KindFlag:
			if err := fn(path, e.cell); err != nil {
				return err
			}
		case KindCategory:
			if err := e.node.walkFlags(path, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// flagPaths lists materialized flag paths below n, relative to n.
func (n *node) flagPaths() []string {
	var paths []string
	_ = n.walkFlags("", func(path string, _ *cell) error {
		paths = append(paths, path)
		return nil
	})
	return paths
}

type pendingRef struct {
	parent     *node
	parentPath string
	name       string
}

// pending lists loaders below n that have not run yet.
func (n *node) pending(prefix string) []pendingRef {
	var refs []pendingRef
	for _, name := range n.names() {
		e := n.entries[name]
		switch e.kind {
		case KindPending:
			refs = append(refs, pendingRef{parent: n, parentPath: prefix, name: name})
		case KindCategory:
			refs = append(refs, e.node.pending(joinPath(prefix, name))...)
		}
	}
	return refs
}
