// Package storage defines the persistence interfaces of the consensus
// core. Durable storage is owned exclusively by the resolver; no other
// component writes to it.
package storage

import (
	"github.com/simplexbft/simplex-go/model/simplex"
)

// Candidates persists candidates keyed by their ID.
type Candidates interface {

	// Store persists the candidate. Storing an already-stored candidate
	// is a no-op.
	Store(candidate *simplex.Candidate) error

	// ByID returns the candidate with the given ID.
	// Error returns:
	//   - ErrNotFound if no candidate with the ID is stored
	ByID(id simplex.CandidateID) (*simplex.Candidate, error)

	// Traverse invokes handle for every stored candidate with a slot at
	// or above from, in slot order. Iteration stops at the first error,
	// which is passed through.
	Traverse(from simplex.Slot, handle func(*simplex.Candidate) error) error
}
