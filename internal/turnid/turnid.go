// Package turnid propagates a per-turn correlation id via context so log
// lines from the session loop and the gateway can be joined.
package turnid

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey struct{}

// With returns a context carrying id.
func With(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// From returns the turn id carried by ctx, or "" outside a turn.
func From(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// New starts a turn: it generates an id and returns the enriched context.
func New(ctx context.Context) (context.Context, string) {
	id := uuid.NewString()
	return With(ctx, id), id
}
