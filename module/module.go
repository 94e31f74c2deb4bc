package module

import (
	"errors"

	"github.com/simplexbft/simplex-go/module/irrecoverable"
)

// ErrMultipleStartup is returned when Start is called more than once on
// a startable component.
var ErrMultipleStartup = errors.New("component may only be started once")

// ReadyDoneAware provides an easy interface to wait for module startup
// and shutdown. Modules that implement this interface only support a
// single start/stop cycle.
type ReadyDoneAware interface {
	// Ready is closed when the module has fully started up.
	Ready() <-chan struct{}

	// Done is closed when the module has fully shut down.
	Done() <-chan struct{}
}

// Startable provides an interface to start a component. Once started,
// the component can be stopped by cancelling the given context.
type Startable interface {
	// Start starts the component. Any irrecoverable errors encountered
	// while the component is running are thrown with the given context.
	// Start must only be called once.
	Start(irrecoverable.SignalerContext)
}

// Component represents a component which can be started and stopped.
type Component interface {
	Startable
	ReadyDoneAware
}

// Local encapsulates the identity and signing capability of the local
// validator. The raw signing operation may be backed by key management
// hardware; the consensus core only sees this narrow interface.
type Local interface {
	// Index returns the local validator's index in the committee.
	Index() uint32

	// Sign signs the given message with the local validator's key.
	Sign(msg []byte) ([]byte, error)
}
