package flags

import (
	"github.com/goliatone/go-flagtree/pkg/activity"
	"github.com/sirupsen/logrus"
)

// Generator builds the fragment tree loaded into a category on first use.
type Generator func() (*Tree, error)

type loader struct {
	gen Generator
	// prefix mounts the fragment at the loader's own path. Otherwise fragment
	// paths are absolute, relative to base.
	prefix bool
	// base is where the tree that registered the loader is mounted.
	base string
}

// AddFlagsCategory registers gen to populate the category at path the first
// time anything below it is needed. With prefix set, the fragment is mounted
// at path, so one generator can be registered under several names.
func (t *Tree) AddFlagsCategory(path string, gen Generator, prefix bool) error {
	if err := t.checkMutable("add-category", path); err != nil {
		return err
	}
	if gen == nil {
		return &FlagError{Op: "add-category", Path: path, Detail: "generator is nil", Err: ErrInvalidArgument}
	}
	if _, err := splitPath(path); err != nil {
		return newFlagError("add-category", path, err)
	}
	category, name := parentPath(path)
	parent, err := t.ensureCategory(category)
	if err != nil {
		return err
	}
	if parent.entries[name] != nil {
		return &FlagError{Op: "add-category", Path: path, Detail: "name already in use", Err: ErrDuplicateFlag}
	}
	parent.entries[name] = &entry{kind: KindPending, loader: &loader{gen: gen, prefix: prefix}}

	t.log("flags.AddFlagsCategory").WithFields(logrus.Fields{
		"category": path,
		"prefix":   prefix,
	}).Debug("category loader registered")
	t.emit(activity.BuildCategoryAddedEvent(activity.FlagEventInput{TreeID: t.ID(), Path: path, Prefixed: prefix}))
	return nil
}

// NeedFlagsCategory runs the loaders of path and of every category above it.
// It is allowed on a locked tree.
func (t *Tree) NeedFlagsCategory(path string) error {
	_, err := t.categoryNode("need", path)
	return err
}

// LoadAll runs every pending loader, including loaders registered by the
// fragments being loaded.
func (t *Tree) LoadAll() error {
	return t.loadAllUnder(t.root, "")
}

func (t *Tree) loadAllUnder(n *node, path string) error {
	for {
		refs := n.pending(path)
		if len(refs) == 0 {
			return nil
		}
		for _, ref := range refs {
			e := ref.parent.entries[ref.name]
			if e == nil || e.kind != KindPending {
				continue
			}
			if _, err := t.materialize(ref.parent, ref.parentPath, ref.name); err != nil {
				return err
			}
		}
	}
}

// materialize runs the loader stored under parent[name] and splices its
// fragment into the tree. It bypasses the lock and keeps the cached hash.
func (t *Tree) materialize(parent *node, parentPath, name string) (*node, error) {
	path := joinPath(parentPath, name)
	e := parent.entries[name]
	if e == nil || e.kind != KindPending {
		return t.ensureCategory(path)
	}
	ld := e.loader

	fragment, err := ld.gen()
	if err != nil {
		return nil, &FlagError{Op: "load", Path: path, Detail: "category generator failed", Err: err}
	}
	// The entry is detached while the fragment is checked and spliced, and put
	// back if either fails, so a failed load leaves the category pending.
	delete(parent.entries, name)

	mount := ld.base
	if ld.prefix {
		mount = path
	}
	if fragment != nil {
		if err := t.checkGraft("load", mount, fragment.root); err != nil {
			parent.entries[name] = e
			return nil, err
		}
		target, err := t.ensureCategory(mount)
		if err != nil {
			parent.entries[name] = e
			return nil, err
		}
		if err := t.graft(target, mount, fragment.root, mount); err != nil {
			parent.entries[name] = e
			return nil, err
		}
	}
	category, err := t.ensureCategory(path)
	if err != nil {
		return nil, err
	}

	t.log("flags.materialize").WithFields(logrus.Fields{
		"category": path,
		"prefix":   ld.prefix,
		"mount":    mount,
	}).Debug("category loaded")
	t.emit(activity.BuildCategoryLoadedEvent(activity.FlagEventInput{TreeID: t.ID(), Path: path, Prefixed: ld.prefix}))
	return category, nil
}

// Join merges the flags and loaders of other into the category at prefix.
// Name collisions fail with ErrDuplicateFlag.
func (t *Tree) Join(other *Tree, prefix string) error {
	if err := t.checkMutable("join", prefix); err != nil {
		return err
	}
	if other == nil {
		return nil
	}
	if err := t.checkGraft("join", prefix, other.root); err != nil {
		return err
	}
	target, err := t.ensureCategory(prefix)
	if err != nil {
		return err
	}
	return t.graft(target, prefix, other.root, prefix)
}

// graft copies src into dst. dstPath is the path of dst in t and mount is the
// path in t that corresponds to the root of src's tree.
func (t *Tree) graft(dst *node, dstPath string, src *node, mount string) error {
	for _, name := range src.names() {
		se := src.entries[name]
		path := joinPath(dstPath, name)
		switch se.kind {
		case KindFlag:
			if dst.entries[name] != nil {
				return &FlagError{Op: "join", Path: path, Detail: "name already in use", Err: ErrDuplicateFlag}
			}
			dst.entries[name] = &entry{kind: KindFlag, cell: se.cell.clone()}
		case KindPending:
			if dst.entries[name] != nil {
				return &FlagError{Op: "join", Path: path, Detail: "name already in use", Err: ErrDuplicateFlag}
			}
			ld := *se.loader
			ld.base = joinPath(mount, ld.base)
			dst.entries[name] = &entry{kind: KindPending, loader: &ld}
		case KindCategory:
			child, err := t.ensureChild(dst, dstPath, name)
			if err != nil {
				return err
			}
			if err := t.graft(child, path, se.node, mount); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkGraft reports the first name collision grafting src at dstPath would
// hit, without adding anything. Pending categories in the way are loaded.
func (t *Tree) checkGraft(op, dstPath string, src *node) error {
	var segments []string
	if dstPath != "" {
		var err error
		if segments, err = splitPath(dstPath); err != nil {
			return newFlagError(op, dstPath, err)
		}
	}
	dst := t.root
	prefix := ""
	for _, segment := range segments {
		e := dst.entries[segment]
		switch {
		case e == nil:
			return nil
		case e.kind == KindCategory:
			dst = e.node
		case e.kind == KindPending:
			loaded, err := t.materialize(dst, prefix, segment)
			if err != nil {
				return err
			}
			dst = loaded
		default:
			return &FlagError{Op: op, Path: joinPath(prefix, segment), Detail: "a flag already uses this name", Err: ErrDuplicateFlag}
		}
		prefix = joinPath(prefix, segment)
	}
	return t.checkGraftNode(op, dst, dstPath, src)
}

func (t *Tree) checkGraftNode(op string, dst *node, dstPath string, src *node) error {
	for _, name := range src.names() {
		de := dst.entries[name]
		if de == nil {
			continue
		}
		path := joinPath(dstPath, name)
		se := src.entries[name]
		if se.kind != KindCategory || de.kind == KindFlag {
			return &FlagError{Op: op, Path: path, Detail: "name already in use", Err: ErrDuplicateFlag}
		}
		child := de.node
		if de.kind == KindPending {
			var err error
			if child, err = t.materialize(dst, dstPath, name); err != nil {
				return err
			}
		}
		if err := t.checkGraftNode(op, child, path, se.node); err != nil {
			return err
		}
	}
	return nil
}
