package irrecoverable

import (
	"context"
	"fmt"
	"os"
	"runtime"
)

// Signaler sends the error out.
type Signaler struct {
	errChan chan error
}

func NewSignaler() (*Signaler, <-chan error) {
	errChan := make(chan error, 1)
	return &Signaler{errChan: errChan}, errChan
}

// Throw is a narrow drop-in replacement for panic, log.Fatal, log.Panic, etc.
// anywhere there's something connected to the error channel. It only
// delivers the first error it is called with; subsequent errors are
// logged as unhandled.
func (s *Signaler) Throw(err error) {
	defer runtime.Goexit()
	select {
	case s.errChan <- err:
	default:
		// another error has already been thrown, this one is unhandled
		fmt.Fprintf(os.Stderr, "unhandled irrecoverable error: %v\n", err)
	}
}

// SignalerContext is a constrained drop-in replacement for
// context.Context which additionally carries irrecoverable error
// signaling capability down a call stack.
type SignalerContext interface {
	context.Context
	Throw(err error) // delegates to the signaler
	sealed()         // private, to constrain construction to WithSignaler
}

type signalerCtx struct {
	context.Context
	*Signaler
}

func (sc *signalerCtx) sealed() {}

// WithSignaler is the One True Way of getting a SignalerContext.
func WithSignaler(parent context.Context) (SignalerContext, <-chan error) {
	sig, errChan := NewSignaler()
	return &signalerCtx{parent, sig}, errChan
}

// Throw enables throwing an irrecoverable error using any
// context.Context. If the context is not a SignalerContext there is
// nothing to propagate the error to, which indicates incorrect
// component wiring; we crash because continuing is unsafe.
func Throw(ctx context.Context, err error) {
	signalerAbleContext, ok := ctx.(SignalerContext)
	if ok {
		signalerAbleContext.Throw(err)
	}
	fmt.Fprintf(os.Stderr, "irrecoverable error signaler not found for context, please implement! Unhandled irrecoverable error: %v\n", err)
	os.Exit(1)
}
