package activity

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
)

// Event is one change to a flag tree as seen by hooks. IDs are plain strings
// so producers do not depend on a UUID type.
type Event struct {
	Verb       string
	ObjectType string
	// ObjectID is the flag or category path, or the tree id for tree events.
	ObjectID string
	TreeID   string
	Channel  string
	ActorID  string
	UserID   string
	TenantID string
	Metadata map[string]any
	// OccurredAt is set by NormalizeEvent when left zero.
	OccurredAt time.Time
}

// Valid reports whether the event names a verb and an object.
func (e Event) Valid() bool {
	return e.Verb != "" && e.ObjectType != "" && e.ObjectID != ""
}

// ActivityHook receives normalized events.
type ActivityHook interface {
	Notify(ctx context.Context, event Event) error
}

// HookFunc adapts a function to ActivityHook.
type HookFunc func(ctx context.Context, event Event) error

// Notify calls fn.
func (fn HookFunc) Notify(ctx context.Context, event Event) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, event)
}

// Hooks is an ordered fan-out of hooks.
type Hooks []ActivityHook

// Enabled reports whether there is at least one hook.
func (h Hooks) Enabled() bool {
	return len(h) > 0
}

// Notify normalizes the event and delivers it to every hook. Invalid events
// are dropped silently. A failing hook does not stop delivery; all failures
// are returned together.
func (h Hooks) Notify(ctx context.Context, event Event) error {
	if len(h) == 0 {
		return nil
	}
	normalized := NormalizeEvent(event)
	if !normalized.Valid() {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var result *multierror.Error
	for i, hook := range h {
		if hook == nil {
			continue
		}
		if err := hook.Notify(ctx, normalized); err != nil {
			result = multierror.Append(result, fmt.Errorf("activity hook %d (%s): %w", i, normalized.Verb, err))
		}
	}
	return result.ErrorOrNil()
}

// NormalizeEvent trims identifiers, copies the metadata map and stamps the
// event time when missing.
func NormalizeEvent(event Event) Event {
	out := Event{
		Verb:       strings.TrimSpace(event.Verb),
		ObjectType: strings.TrimSpace(event.ObjectType),
		ObjectID:   strings.TrimSpace(event.ObjectID),
		TreeID:     strings.TrimSpace(event.TreeID),
		Channel:    strings.TrimSpace(event.Channel),
		ActorID:    strings.TrimSpace(event.ActorID),
		UserID:     strings.TrimSpace(event.UserID),
		TenantID:   strings.TrimSpace(event.TenantID),
		OccurredAt: event.OccurredAt,
	}
	if len(event.Metadata) > 0 {
		out.Metadata = maps.Clone(event.Metadata)
	}
	if out.OccurredAt.IsZero() {
		out.OccurredAt = time.Now()
	}
	return out
}
