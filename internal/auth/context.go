package auth

import "context"

// Actor is the authenticated identity performing the current operation.
// Fields left empty mean "absent": an unauthenticated request carries no
// actor at all, never placeholder values.
type Actor struct {
	UserID string
	Email  string
	RoleID string
}

// IsZero reports whether no identity has been established.
func (a Actor) IsZero() bool {
	return a.UserID == "" && a.Email == "" && a.RoleID == ""
}

type actorContextKey struct{}

// ContextWithActor attaches the authenticated actor to the context. The
// value is request-scoped: it is set once per inbound operation and read-only
// afterwards.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the authenticated actor. Absence means the
// request is unauthenticated and downstream code must treat it as a guest.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	v, ok := ctx.Value(actorContextKey{}).(Actor)
	if !ok || v.IsZero() {
		return Actor{}, false
	}
	return v, true
}
