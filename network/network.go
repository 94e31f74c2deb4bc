package network

import (
	"context"
	"errors"
	"time"
)

// Channel separates the message flows of independent engines sharing
// one transport.
type Channel string

const (
	// ConsensusVotes carries signed votes and certificates.
	ConsensusVotes Channel = "consensus-votes"
	// ConsensusCandidates carries candidate proposals.
	ConsensusCandidates Channel = "consensus-candidates"
	// CandidateResolution carries resolver request/response traffic.
	CandidateResolution Channel = "candidate-resolution"
)

// ErrRequestTimeout is returned by Conduit.Request when the target peer
// did not respond within the given timeout.
var ErrRequestTimeout = errors.New("peer request timed out")

// MessageProcessor handles inbound messages delivered on one channel.
// origin is the validator index of the sending peer. Implementations
// must not block the delivery goroutine on I/O.
type MessageProcessor interface {
	Process(channel Channel, origin uint32, event interface{}) error
}

// Conduit is the narrow sending interface handed to an engine upon
// registration. The overlay, membership and delivery semantics behind
// it are out of scope for the consensus core.
type Conduit interface {
	// Broadcast sends the event to all other validators in the session.
	Broadcast(event interface{}) error

	// Unicast sends the event to the validator with the given index.
	Unicast(target uint32, event interface{}) error

	// Request performs a round trip to the validator with the given
	// index and returns its response.
	// Error returns:
	//   - ErrRequestTimeout if no response arrived within timeout
	Request(ctx context.Context, target uint32, req interface{}, timeout time.Duration) (interface{}, error)
}

// Network lets engines register for a channel and obtain a Conduit for
// sending on it.
type Network interface {
	Register(channel Channel, processor MessageProcessor) (Conduit, error)
}
