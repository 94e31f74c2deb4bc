package consensus

import (
	"github.com/simplexbft/simplex-go/module"
)

// Participant bundles the components of one consensus session behind a
// single lifecycle. It is assembled by participant.New.
type Participant interface {
	module.Component

	// Pool exposes the session's vote pool.
	Pool() Pool

	// Resolver exposes the session's candidate resolver.
	Resolver() Resolver
}
