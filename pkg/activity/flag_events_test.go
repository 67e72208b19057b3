package activity

import (
	"context"
	"testing"
	"time"
)

func TestBuildFlagUpdatedEventIncludesMetadata(t *testing.T) {
	meta := map[string]any{"custom": "value"}
	input := FlagEventInput{
		ActorID:  " actor ",
		UserID:   " user ",
		TenantID: " tenant ",
		TreeID:   "tree-1",
		Path:     "Exec.MaxEvents",
		Value:    10,
		Metadata: meta,
		Channel:  "flags",
	}

	event := BuildFlagUpdatedEvent(input)

	if event.Verb != VerbFlagUpdated {
		t.Fatalf("expected verb %s got %s", VerbFlagUpdated, event.Verb)
	}
	if event.ObjectType != ObjectFlag || event.ObjectID != "Exec.MaxEvents" || event.TreeID != "tree-1" {
		t.Fatalf("unexpected object fields: %+v", event)
	}
	if event.ActorID != "actor" || event.UserID != "user" || event.TenantID != "tenant" {
		t.Fatalf("unexpected identity fields: %+v", event)
	}
	if event.Metadata["path"] != "Exec.MaxEvents" || event.Metadata["value"] != 10 {
		t.Fatalf("expected path and value metadata, got %+v", event.Metadata)
	}
	if _, ok := event.Metadata["dynamic"]; ok {
		t.Fatalf("expected no dynamic marker for concrete values")
	}

	event.Metadata["custom"] = "changed"
	if meta["custom"] != "value" {
		t.Fatalf("expected input metadata untouched")
	}
}

func TestBuildFlagAddedEventMarksResolvers(t *testing.T) {
	event := BuildFlagAddedEvent(FlagEventInput{Path: "Trigger.Enabled", Value: "expr(true)", Dynamic: true})
	if event.Metadata["dynamic"] != true || event.Metadata["value"] != "expr(true)" {
		t.Fatalf("expected resolver description, got %+v", event.Metadata)
	}
}

func TestBuildTreeLockedEventFallsBackToTreeID(t *testing.T) {
	event := BuildTreeLockedEvent(FlagEventInput{TreeID: "tree-1"})
	if event.ObjectType != ObjectTree || event.ObjectID != "tree-1" {
		t.Fatalf("unexpected object fields: %+v", event)
	}
	if event.Metadata != nil {
		t.Fatalf("expected no metadata, got %+v", event.Metadata)
	}

	anonymous := BuildTreeLockedEvent(FlagEventInput{})
	if anonymous.ObjectID != ObjectTree {
		t.Fatalf("expected object type as id fallback, got %q", anonymous.ObjectID)
	}
}

func TestBuildCategoryLoadedEventRoundTripsThroughEmitter(t *testing.T) {
	capture := &CaptureHook{}
	stamp := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	emitter := NewEmitter(Hooks{capture}, Config{
		Enabled: true,
		ActorID: "builder",
		Now:     func() time.Time { return stamp },
	})

	event := BuildCategoryLoadedEvent(FlagEventInput{Path: "Z.Xclone1", Prefixed: true})
	if err := emitter.Emit(context.Background(), event); err != nil {
		t.Fatalf("emit: %v", err)
	}
	events := capture.Events()
	if len(events) != 1 {
		t.Fatalf("expected one event, got %d", len(events))
	}
	got := events[0]
	if got.Verb != VerbCategoryLoaded || got.ObjectType != ObjectCategory {
		t.Fatalf("unexpected event: %+v", got)
	}
	if got.Channel != DefaultChannel || got.Metadata["prefixed"] != true {
		t.Fatalf("expected default channel and prefixed marker, got %+v", got)
	}
	if got.ActorID != "builder" || !got.OccurredAt.Equal(stamp) {
		t.Fatalf("expected emitter defaults, got actor %q at %v", got.ActorID, got.OccurredAt)
	}
}
