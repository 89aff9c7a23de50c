package mutation

import "context"

// Within derives a context that ends when either ctx or owner ends. Stores
// pass their own lifetime as owner so a Close discards in-flight responses.
func Within(ctx, owner context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(owner, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// Settle turns a response that outlived its context into ErrDiscarded.
func Settle(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ErrDiscarded
	}
	return err
}
