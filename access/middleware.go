package access

import (
	"context"

	"github.com/localfirst/eventcore/apperr"
	"github.com/localfirst/eventcore/ids"
)

// Handler dispatches one command or sync call scoped to storeID.
type Handler func(ctx context.Context, storeID string) (any, error)

// Middleware wraps a Handler with cross-cutting behavior.
type Middleware func(Handler) Handler

// StoreIsolationMiddleware validates storeID as a UUIDv4 and asserts it
// equals the context's authenticated actor id, so one user's store can
// never be addressed by another's sync or command call. This system is
// per-user rather than multi-tenant-per-store, so isolation is keyed on
// store id rather than a separate tenant id.
func StoreIsolationMiddleware() Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, storeID string) (any, error) {
			actorID, err := GetActorID(ctx)
			if err != nil {
				return nil, apperr.Wrap(apperr.CodeUnauthenticated, err, "access: no authenticated actor")
			}

			if _, err := ids.ParseStoreID(storeID); err != nil {
				return nil, apperr.Wrap(apperr.CodeValidation, err, "access: invalid store id %q", storeID)
			}

			if storeID != actorID {
				return nil, apperr.New(apperr.CodeValidation, "access: actor %s may not address store %s", actorID, storeID)
			}

			return next(ctx, storeID)
		}
	}
}

// Chain composes middlewares left-to-right, so Chain(a, b)(h) runs a then
// b before reaching h.
func Chain(mws ...Middleware) Middleware {
	return func(final Handler) Handler {
		h := final
		for i := len(mws) - 1; i >= 0; i-- {
			h = mws[i](h)
		}
		return h
	}
}
