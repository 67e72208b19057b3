package flags

import (
	"errors"
	"sync"

	"github.com/goliatone/go-flagtree/pkg/activity"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Tree is a hierarchy of flags and categories. It is mutable until Lock is
// called and may load whole categories on demand.
//
// A Tree is not safe for concurrent use, except for Hash once it is locked.
type Tree struct {
	id    uuid.UUID
	root  *node
	state *lockState

	hashMu sync.Mutex
	hash   *HashValue

	// resolving is the stack of flags currently being resolved.
	resolving []string

	cfg     config
	emitter *activity.Emitter
}

// New returns an empty, unlocked tree.
func New(opts ...Option) *Tree {
	cfg := applyOptions(opts)
	t := newTree(cfg)
	for _, err := range cfg.setupErrs {
		t.log("flags.New").WithError(err).Warn("option ignored")
	}
	t.cfg.setupErrs = nil
	return t
}

func newTree(cfg config) *Tree {
	if cfg.evaluator == nil {
		cfg.evaluator = NewExprEvaluator(
			ExprWithProgramCache(cfg.programCache),
			ExprWithFunctionRegistry(cfg.functions),
		)
	}
	return &Tree{
		id:      uuid.New(),
		root:    newNode(),
		state:   &lockState{},
		cfg:     cfg,
		emitter: activity.NewEmitter(cfg.hooks, activity.Config{Enabled: true, Channel: cfg.channel}),
	}
}

// ID identifies the tree in logs and activity events.
func (t *Tree) ID() string {
	return t.id.String()
}

func (t *Tree) log(at string) logrus.FieldLogger {
	return t.cfg.logger.WithFields(logrus.Fields{"at": at, "tree": t.ID()})
}

// AddFlag registers a flag at path. def is either a concrete value or a
// Resolver; resolvers are not invoked until the flag is read. Missing
// intermediate categories are created.
func (t *Tree) AddFlag(path string, def any, opts ...FlagOption) error {
	if err := t.checkMutable("add", path); err != nil {
		return err
	}
	if _, err := splitPath(path); err != nil {
		return newFlagError("add", path, err)
	}
	c, err := newCell(def, opts)
	if err != nil {
		return newFlagError("add", path, err)
	}
	category, name := parentPath(path)
	parent, err := t.ensureCategory(category)
	if err != nil {
		return err
	}
	if parent.entries[name] != nil {
		return &FlagError{Op: "add", Path: path, Detail: "name already in use", Err: ErrDuplicateFlag}
	}
	parent.entries[name] = &entry{kind: KindFlag, cell: c}

	t.log("flags.AddFlag").WithFields(logrus.Fields{
		"path":    path,
		"dynamic": c.dynamic(),
	}).Debug("flag added")
	t.emitFlag(activity.BuildFlagAddedEvent, path, c)
	return nil
}

// MustAddFlag is AddFlag for static tree definitions; it panics on error.
func (t *Tree) MustAddFlag(path string, def any, opts ...FlagOption) {
	if err := t.AddFlag(path, def, opts...); err != nil {
		panic(err)
	}
}

// Kind reports what path names without running any category loader.
func (t *Tree) Kind(path string) Kind {
	_, _, _, e, err := t.locate(path, false)
	if err != nil || e == nil {
		return KindNone
	}
	return e.kind
}

// HasFlag reports whether path names a flag. Pending loaders are not run.
func (t *Tree) HasFlag(path string) bool {
	return t.Kind(path) == KindFlag
}

// HasCategory reports whether path names a category, including one whose
// loader has not run yet. Pending loaders are not run.
func (t *Tree) HasCategory(path string) bool {
	kind := t.Kind(path)
	return kind == KindCategory || kind == KindPending
}

// Get resolves the flag at path, loading pending categories on the way.
func (t *Tree) Get(path string) (any, error) {
	_, scope, _, e, err := t.locate(path, true)
	if err != nil {
		return nil, pathError("get", path, err)
	}
	if e == nil {
		return nil, t.unknownFlag("get", path)
	}
	if e.kind != KindFlag {
		return nil, &FlagError{Op: "get", Path: path, Detail: "path names a category", Err: ErrUnknownFlag}
	}
	return t.resolve(path, scope, e.cell)
}

// Set replaces the value of an existing flag. value may be a Resolver.
func (t *Tree) Set(path string, value any) error {
	if err := t.checkMutable("set", path); err != nil {
		return err
	}
	_, _, _, e, err := t.locate(path, true)
	if err != nil {
		return pathError("set", path, err)
	}
	if e == nil {
		return t.unknownFlag("set", path)
	}
	if e.kind != KindFlag {
		return &FlagError{Op: "set", Path: path, Detail: "path names a category", Err: ErrUnknownFlag}
	}
	if err := e.cell.assign(value); err != nil {
		return newFlagError("set", path, err)
	}

	t.log("flags.Set").WithField("path", path).Debug("flag updated")
	t.emitFlag(activity.BuildFlagUpdatedEvent, path, e.cell)
	return nil
}

// Delete removes a flag, a category or a pending loader. A pending loader is
// dropped without running it.
func (t *Tree) Delete(path string) error {
	if err := t.checkMutable("delete", path); err != nil {
		return err
	}
	parent, _, name, e, err := t.locate(path, true)
	if err != nil {
		return pathError("delete", path, err)
	}
	if e == nil {
		return t.unknownFlag("delete", path)
	}
	delete(parent.entries, name)

	t.log("flags.Delete").WithFields(logrus.Fields{"path": path, "kind": e.kind.String()}).Debug("entry deleted")
	t.emit(activity.BuildFlagDeletedEvent(activity.FlagEventInput{
		TreeID:   t.ID(),
		Path:     path,
		Metadata: map[string]any{"kind": e.kind.String()},
	}))
	return nil
}

// Names lists the immediate children of the root, pending categories
// included, in sorted order.
func (t *Tree) Names() []string {
	return t.root.names()
}

// Contains reports whether name is an immediate child of the root.
func (t *Tree) Contains(name string) bool {
	return t.root.entries[name] != nil
}

// At addresses the category at path. The empty path addresses the root.
func (t *Tree) At(path string) Address {
	return Address{tree: t, path: path}
}

// locate walks to the parent of path. When materialize is set, pending
// loaders found on the way are run; otherwise they end the walk with a nil
// entry. The returned entry is nil when path does not exist.
func (t *Tree) locate(path string, materialize bool) (*node, string, string, *entry, error) {
	segments, err := splitPath(path)
	if err != nil {
		return nil, "", "", nil, err
	}
	n := t.root
	prefix := ""
	for _, segment := range segments[:len(segments)-1] {
		next := n.entries[segment]
		if next == nil {
			return nil, "", "", nil, nil
		}
		switch next.kind {
		case KindCategory:
			n = next.node
		case KindPending:
			if !materialize {
				return nil, "", "", nil, nil
			}
			child, err := t.materialize(n, prefix, segment)
			if err != nil {
				return nil, "", "", nil, err
			}
			n = child
		default:
			return nil, "", "", nil, nil
		}
		prefix = joinPath(prefix, segment)
	}
	name := segments[len(segments)-1]
	return n, prefix, name, n.entries[name], nil
}

// categoryNode returns the category at path, running its loader if needed.
func (t *Tree) categoryNode(op, path string) (*node, error) {
	if path == "" {
		return t.root, nil
	}
	parent, parentPath, name, e, err := t.locate(path, true)
	if err != nil {
		return nil, pathError(op, path, err)
	}
	if e == nil {
		return nil, &FlagError{Op: op, Path: path, Suggestion: closestMatch(path, t.categoryPaths()), Err: ErrUnknownCategory}
	}
	switch e.kind {
	case KindCategory:
		return e.node, nil
	case KindPending:
		return t.materialize(parent, parentPath, name)
	default:
		return nil, &FlagError{Op: op, Path: path, Detail: "path names a flag", Err: ErrUnknownCategory}
	}
}

// ensureCategory returns the category at path, creating missing categories
// and running pending loaders along the way. It ignores the lock.
func (t *Tree) ensureCategory(path string) (*node, error) {
	if path == "" {
		return t.root, nil
	}
	segments, err := splitPath(path)
	if err != nil {
		return nil, newFlagError("category", path, err)
	}
	n := t.root
	prefix := ""
	for _, segment := range segments {
		n, err = t.ensureChild(n, prefix, segment)
		if err != nil {
			return nil, err
		}
		prefix = joinPath(prefix, segment)
	}
	return n, nil
}

func (t *Tree) ensureChild(parent *node, parentPath, name string) (*node, error) {
	e := parent.entries[name]
	switch {
	case e == nil:
		child := newNode()
		parent.entries[name] = &entry{kind: KindCategory, node: child}
		return child, nil
	case e.kind == KindCategory:
		return e.node, nil
	case e.kind == KindPending:
		return t.materialize(parent, parentPath, name)
	default:
		return nil, &FlagError{
			Op:     "category",
			Path:   joinPath(parentPath, name),
			Detail: "a flag already uses this name",
			Err:    ErrDuplicateFlag,
		}
	}
}

func (t *Tree) unknownFlag(op, path string) error {
	return &FlagError{
		Op:         op,
		Path:       path,
		Suggestion: closestMatch(path, t.root.flagPaths()),
		Err:        ErrUnknownFlag,
	}
}

func (t *Tree) categoryPaths() []string {
	var paths []string
	var walk func(n *node, prefix string)
	walk = func(n *node, prefix string) {
		for _, name := range n.names() {
			e := n.entries[name]
			path := joinPath(prefix, name)
			switch e.kind {
			case KindPending:
				paths = append(paths, path)
			case KindCategory:
				paths = append(paths, path)
				walk(e.node, path)
			}
		}
	}
	walk(t.root, "")
	return paths
}

func pathError(op, path string, err error) error {
	var flagErr *FlagError
	if errors.As(err, &flagErr) {
		return err
	}
	return newFlagError(op, path, err)
}
