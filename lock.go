package flags

import "github.com/goliatone/go-flagtree/pkg/activity"

// lockState is shared by every category of one tree.
type lockState struct {
	locked bool
}

// Lock makes the tree immutable. Resolvers run at most once after locking
// and categories may still be loaded. Locking twice is a no-op.
func (t *Tree) Lock() {
	if t.state.locked {
		return
	}
	t.state.locked = true
	t.log("flags.Lock").Debug("tree locked")
	t.emit(activity.BuildTreeLockedEvent(activity.FlagEventInput{TreeID: t.ID()}))
}

// Locked reports whether Lock has been called.
func (t *Tree) Locked() bool {
	return t.state.locked
}

func (t *Tree) checkMutable(op, path string) error {
	if t.state.locked {
		return newFlagError(op, path, ErrFrozenTree)
	}
	t.hash = nil
	return nil
}
