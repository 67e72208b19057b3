package flags

import (
	"context"

	"github.com/goliatone/go-flagtree/pkg/activity"
)

func (t *Tree) emit(event activity.Event) {
	if !t.emitter.Enabled() {
		return
	}
	if err := t.emitter.Emit(context.Background(), event); err != nil {
		t.log("flags.emit").WithError(err).WithField("verb", event.Verb).Warn("activity hook failed")
	}
}

func (t *Tree) emitFlag(build func(activity.FlagEventInput) activity.Event, path string, c *cell) {
	if !t.emitter.Enabled() {
		return
	}
	input := activity.FlagEventInput{
		TreeID:  t.ID(),
		Path:    path,
		Dynamic: c.dynamic(),
	}
	if c.dynamic() {
		input.Value = c.describe()
	} else {
		input.Value = copyValue(c.value)
	}
	t.emit(build(input))
}

// ActivityHooks returns a copy of the hooks the tree reports to.
func (t *Tree) ActivityHooks() activity.Hooks {
	return cloneActivityHooks(t.cfg.hooks)
}
