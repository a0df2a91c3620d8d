package shared

import "context"

// Actor identifies the authenticated caller and its branch scope. The engine
// trusts this value; permission checks happen upstream.
type Actor struct {
	ID       int64
	Name     string
	BranchID *int64
}

type actorContextKey struct{}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context. The zero Actor means
// the request was not authenticated.
func ActorFromContext(ctx context.Context) Actor {
	actor, _ := ctx.Value(actorContextKey{}).(Actor)
	return actor
}
