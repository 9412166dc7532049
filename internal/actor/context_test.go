package actor

import (
	"context"
	"testing"

	"github.com/wolfman30/ayurwell-scheduler/internal/directory"
)

func TestWithActorAndFromContext(t *testing.T) {
	ctx := WithActor(context.Background(), Actor{ID: "dr-a", Role: directory.RoleDoctor})

	got, ok := FromContext(ctx)
	if !ok {
		t.Fatalf("expected actor to be present")
	}
	if got.ID != "dr-a" || !got.IsDoctor() || got.IsPatient() {
		t.Fatalf("unexpected actor %+v", got)
	}
}

func TestFromContext_EmptyOrMissing(t *testing.T) {
	if _, ok := FromContext(context.Background()); ok {
		t.Fatalf("expected missing actor to return false")
	}

	ctx := context.WithValue(context.Background(), actorKey, "dr-a")
	if _, ok := FromContext(ctx); ok {
		t.Fatalf("expected non-Actor value to return false")
	}

	ctx = WithActor(context.Background(), Actor{Role: directory.RolePatient})
	if _, ok := FromContext(ctx); ok {
		t.Fatalf("expected actor without id to return false")
	}
}
