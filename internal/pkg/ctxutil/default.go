package ctxutil

import "context"

// Default returns context.Background() when ctx is nil.
func Default(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

// Detach keeps ctx's values but drops its deadline and cancellation, for work
// shared between several callers.
func Detach(ctx context.Context) context.Context {
	return context.WithoutCancel(Default(ctx))
}
