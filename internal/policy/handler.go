package policy

import "context"

// Handler is either a DirectHandlerFunc or a CooperativeHandlerFunc; the
// engine tells them apart with a type switch at dispatch time (spec.md
// §4.7's "a type predicate distinguishes the two shapes at call time").
type Handler interface{}

// DirectHandlerFunc returns its result eagerly - a plain function call,
// no suspension.
type DirectHandlerFunc func(ctx context.Context, args HandlerArgs) (Result, error)

// CooperativeHandlerFunc is the generator-flavored handler: the engine
// runs it on its own goroutine under a child context it cancels the
// instant the calling suspension point exits, so a cooperative handler's
// own deferred cleanup always runs - Go's structured-concurrency
// equivalent of driving a generator to completion with guaranteed
// `finally` semantics.
type CooperativeHandlerFunc func(ctx context.Context, args HandlerArgs) (Result, error)

// dispatch drives h to completion, honoring ctx cancellation for a
// Cooperative handler.
func dispatch(ctx context.Context, h Handler, args HandlerArgs) (Result, error) {
	switch fn := h.(type) {
	case nil:
		return nil, errUnknownHandlerShape(h)
	case DirectHandlerFunc:
		return fn(ctx, args)
	case CooperativeHandlerFunc:
		return runCooperative(ctx, fn, args)
	default:
		return nil, errUnknownHandlerShape(h)
	}
}

func runCooperative(ctx context.Context, fn CooperativeHandlerFunc, args HandlerArgs) (Result, error) {
	childCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		res Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := fn(childCtx, args)
		done <- outcome{res: res, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case o := <-done:
		return o.res, o.err
	}
}
