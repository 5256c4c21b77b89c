package actor

import (
	"context"
	"sync"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// Future is the consumer half of an asynchronous reply: the holder can block
// on the outcome, derive a transformed future from it, or attach a callback
// that fires once the outcome lands. Every ask hands its caller one of
// these.
type Future[T any] interface {
	// Await blocks until the outcome has been set or ctx is cancelled;
	// on cancellation the returned result carries the context error.
	Await(ctx context.Context) fn.Result[T]

	// ThenApply derives a future holding fn applied to this future's
	// eventual value. The receiver is left untouched, errors pass
	// through unchanged, and a ctx cancellation while waiting completes
	// the derived future with the context error instead.
	ThenApply(ctx context.Context, fn func(T) T) Future[T]

	// OnComplete arranges for fn to run once the outcome is known. If
	// ctx is cancelled first, fn runs with the context error.
	OnComplete(ctx context.Context, fn func(fn.Result[T]))
}

// Promise is the producer half: whoever holds it sets the outcome exactly
// once, and every holder of the associated Future observes that outcome.
// The runtime completes reply promises from the handler's Reply, from
// failure paths, and from remote reply frames.
type Promise[T any] interface {
	// Future returns the consumer half of this promise.
	Future() Future[T]

	// Complete sets the outcome. The first call wins and reports true;
	// later calls change nothing and report false.
	Complete(result fn.Result[T]) bool
}

// promise is the single concrete implementation backing both the Promise and
// Future interfaces. The result field is written exactly once, before the
// done channel is closed, so readers that observe the close also observe the
// result.
type promise[T any] struct {
	// done is closed once the result has been set.
	done chan struct{}

	// once guards the first (and only) completion.
	once sync.Once

	// result holds the outcome. Written once before done is closed.
	result fn.Result[T]
}

// NewPromise creates a new unfulfilled promise.
func NewPromise[T any]() Promise[T] {
	return &promise[T]{
		done: make(chan struct{}),
	}
}

// Complete attempts to set the result of the future. It returns true if this
// call successfully set the result, and false if the future had already been
// completed.
func (p *promise[T]) Complete(result fn.Result[T]) bool {
	won := false
	p.once.Do(func() {
		p.result = result
		close(p.done)
		won = true
	})

	return won
}

// Future returns the Future interface associated with this Promise.
func (p *promise[T]) Future() Future[T] {
	return p
}

// Await blocks until the result is available or the context is cancelled,
// then returns it.
func (p *promise[T]) Await(ctx context.Context) fn.Result[T] {
	select {
	case <-p.done:
		return p.result

	case <-ctx.Done():
		return fn.Err[T](ctx.Err())
	}
}

// ThenApply registers a function to transform the result of a future. The
// original future is not modified, a new instance of the future is returned.
func (p *promise[T]) ThenApply(ctx context.Context,
	apply func(T) T) Future[T] {

	next := &promise[T]{
		done: make(chan struct{}),
	}

	go func() {
		result := p.Await(ctx)

		val, err := result.Unpack()
		if err != nil {
			next.Complete(fn.Err[T](err))
			return
		}

		next.Complete(fn.Ok(apply(val)))
	}()

	return next
}

// OnComplete registers a function to be called when the result of the future
// is ready. If the passed context is cancelled before the future completes,
// the callback function will be invoked with the context's error.
func (p *promise[T]) OnComplete(ctx context.Context,
	callback func(fn.Result[T])) {

	go func() {
		callback(p.Await(ctx))
	}()
}

// completedFuture returns a future that is already completed with the given
// result. Used on failure fast paths where no asynchronous work is started.
func completedFuture[T any](result fn.Result[T]) Future[T] {
	p := NewPromise[T]()
	p.Complete(result)

	return p.Future()
}

// errResult is shorthand for an exceptional untyped ask outcome.
func errResult(err error) fn.Result[any] {
	return fn.Err[any](err)
}
