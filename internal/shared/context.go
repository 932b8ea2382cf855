package shared

import "context"

// Actor identifies who is posting and from which branch. It is supplied by
// the auth collaborator; the ledger core only reads it.
type Actor struct {
	UserID      int64
	WarehouseID int64
	// CanOverridePeriod permits edits and deletes of entries whose
	// accounting day has already passed.
	CanOverridePeriod bool
}

type actorContextKey struct{}

// ContextWithActor stores the acting user in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the acting user from context.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}
