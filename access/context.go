// Package access enforces the store ownership boundary: a store_id is a
// UUIDv4 naming a single user's event log, and every command or sync call
// must act only on the store belonging to its authenticated actor.
package access

import (
	"context"
	"fmt"
)

type contextKey string

const actorIDKey contextKey = "actor_id"

// WithActorID attaches the authenticated actor's id to ctx.
func WithActorID(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorIDKey, actorID)
}

// GetActorID retrieves the actor id set by WithActorID.
func GetActorID(ctx context.Context) (string, error) {
	actorID, ok := ctx.Value(actorIDKey).(string)
	if !ok || actorID == "" {
		return "", fmt.Errorf("access: actor id not found in context")
	}
	return actorID, nil
}

// HasActorID reports whether ctx carries an actor id.
func HasActorID(ctx context.Context) bool {
	_, err := GetActorID(ctx)
	return err == nil
}
