package activity

import (
	"context"
	"time"
)

// DefaultChannel is used when neither the event nor the emitter names one.
const DefaultChannel = "flags"

// Config sets the defaults an Emitter stamps on events.
type Config struct {
	Enabled bool
	Channel string
	// ActorID is recorded on events that carry no actor.
	ActorID string
	// Now overrides the event clock.
	Now func() time.Time
}

// Emitter delivers events to hooks after filling in defaults.
type Emitter struct {
	hooks Hooks
	cfg   Config
}

// NewEmitter drops nil hooks and returns an emitter that is enabled only when
// cfg.Enabled is set and at least one hook remains.
func NewEmitter(hooks Hooks, cfg Config) *Emitter {
	live := make(Hooks, 0, len(hooks))
	for _, hook := range hooks {
		if hook != nil {
			live = append(live, hook)
		}
	}
	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	return &Emitter{hooks: live, cfg: cfg}
}

// Enabled reports whether Emit delivers anything.
func (e *Emitter) Enabled() bool {
	return e != nil && e.cfg.Enabled && e.hooks.Enabled()
}

// Emit delivers event. Explicit channel, actor and time on the event win over
// the emitter defaults.
func (e *Emitter) Emit(ctx context.Context, event Event) error {
	if !e.Enabled() {
		return nil
	}
	if event.Channel == "" {
		event.Channel = e.cfg.Channel
	}
	if event.ActorID == "" {
		event.ActorID = e.cfg.ActorID
	}
	if event.OccurredAt.IsZero() && e.cfg.Now != nil {
		event.OccurredAt = e.cfg.Now()
	}
	return e.hooks.Notify(ctx, event)
}
