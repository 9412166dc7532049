// Package actor carries the authenticated caller through a request context.
package actor

import (
	"context"

	"github.com/wolfman30/ayurwell-scheduler/internal/directory"
)

type ctxKey string

const actorKey ctxKey = "ayurwell.actor"

// Actor is the resolved caller of an authenticated request.
type Actor struct {
	ID   string
	Role directory.Role
	Name string
}

// IsDoctor reports whether the actor acts as a doctor.
func (a Actor) IsDoctor() bool { return a.Role == directory.RoleDoctor }

// IsPatient reports whether the actor acts as a patient.
func (a Actor) IsPatient() bool { return a.Role == directory.RolePatient }

// WithActor stores the actor in context.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey, a)
}

// FromContext extracts the actor if one with an id is present.
func FromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey).(Actor)
	return a, ok && a.ID != ""
}
