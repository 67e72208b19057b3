package activity

import (
	"strings"
	"time"
)

// Verbs emitted by a flag tree.
const (
	VerbFlagAdded      = "flag.added"
	VerbFlagUpdated    = "flag.updated"
	VerbFlagDeleted    = "flag.deleted"
	VerbCategoryAdded  = "category.added"
	VerbCategoryLoaded = "category.loaded"
	VerbTreeLocked     = "tree.locked"
)

// Object types carried by flag tree events.
const (
	ObjectFlag     = "flag"
	ObjectCategory = "category"
	ObjectTree     = "tree"
)

// FlagEventInput describes the common fields of flag tree events.
type FlagEventInput struct {
	TreeID   string
	Path     string
	Value    any
	Channel  string
	ActorID  string
	UserID   string
	TenantID string
	Metadata map[string]any
	// Dynamic marks values computed by a resolver; Value then describes the
	// resolver rather than a result.
	Dynamic    bool
	Prefixed   bool
	OccurredAt time.Time
}

// BuildFlagAddedEvent reports a flag registration.
func BuildFlagAddedEvent(input FlagEventInput) Event {
	return buildFlagEvent(VerbFlagAdded, ObjectFlag, input)
}

// BuildFlagUpdatedEvent reports an assignment to an existing flag.
func BuildFlagUpdatedEvent(input FlagEventInput) Event {
	return buildFlagEvent(VerbFlagUpdated, ObjectFlag, input)
}

// BuildFlagDeletedEvent reports the removal of a flag or category.
func BuildFlagDeletedEvent(input FlagEventInput) Event {
	return buildFlagEvent(VerbFlagDeleted, ObjectFlag, input)
}

// BuildCategoryAddedEvent reports the registration of a category loader.
func BuildCategoryAddedEvent(input FlagEventInput) Event {
	return buildFlagEvent(VerbCategoryAdded, ObjectCategory, input)
}

// BuildCategoryLoadedEvent reports a category loader running.
func BuildCategoryLoadedEvent(input FlagEventInput) Event {
	return buildFlagEvent(VerbCategoryLoaded, ObjectCategory, input)
}

// BuildTreeLockedEvent reports a tree becoming immutable.
func BuildTreeLockedEvent(input FlagEventInput) Event {
	return buildFlagEvent(VerbTreeLocked, ObjectTree, input)
}

func buildFlagEvent(verb, objectType string, input FlagEventInput) Event {
	var metadata map[string]any
	set := func(key string, value any) {
		if metadata == nil {
			metadata = make(map[string]any, len(input.Metadata)+4)
		}
		metadata[key] = value
	}
	for key, value := range input.Metadata {
		set(key, value)
	}
	if input.Path != "" {
		set("path", input.Path)
	}
	if input.Value != nil {
		set("value", input.Value)
	}
	if input.Dynamic {
		set("dynamic", true)
	}
	if input.Prefixed {
		set("prefixed", true)
	}

	objectID := strings.TrimSpace(input.Path)
	if objectID == "" {
		objectID = strings.TrimSpace(input.TreeID)
	}
	if objectID == "" {
		objectID = objectType
	}

	return Event{
		Verb:       verb,
		ObjectType: objectType,
		ObjectID:   objectID,
		TreeID:     strings.TrimSpace(input.TreeID),
		Channel:    strings.TrimSpace(input.Channel),
		ActorID:    strings.TrimSpace(input.ActorID),
		UserID:     strings.TrimSpace(input.UserID),
		TenantID:   strings.TrimSpace(input.TenantID),
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}
