// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// Middleware sets these values; the ledger, reservation and request services read
// them without importing net/http.
//
//	actor := requestcontext.Actor(ctx)
//	now := requestcontext.Now(ctx)
//
// Tests inject values directly:
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
//	ctx = requestcontext.WithActor(ctx, requestcontext.ActorInfo{ID: "lab-7", Role: "lab"})
package requestcontext

import (
	"context"
	"time"
)

type (
	actorKey       struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

var (
	ContextKeyActor       = actorKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// ActorInfo is the verified identity supplied by the authentication collaborator.
type ActorInfo struct {
	ID   string
	Role string
}

// Actor retrieves the authenticated actor. The zero value means anonymous.
func Actor(ctx context.Context) ActorInfo {
	if actor, ok := ctx.Value(ContextKeyActor).(ActorInfo); ok {
		return actor
	}
	return ActorInfo{}
}

// ActorID is a shorthand for Actor(ctx).ID.
func ActorID(ctx context.Context) string {
	return Actor(ctx).ID
}

// WithActor injects the authenticated actor into the context.
func WithActor(ctx context.Context, actor ActorInfo) context.Context {
	return context.WithValue(ctx, ContextKeyActor, actor)
}

// RequestID retrieves the correlation id from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a correlation id into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() if not set (workers, CLI, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
// Workers use it to keep one timestamp across a sweep batch.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
