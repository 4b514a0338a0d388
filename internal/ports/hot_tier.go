package ports

import "context"

// Port: the fast cache tier checked before the persistent fact store.
// Misses and errors are equivalent — the caller falls through to the
// persistent tier either way.
type HotTier interface {
	Get(ctx context.Context, key string) (DistanceResult, bool)
	Set(ctx context.Context, key string, value DistanceResult)
}
