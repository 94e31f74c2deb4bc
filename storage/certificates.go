package storage

import (
	"github.com/simplexbft/simplex-go/model/simplex"
)

// Certificates persists quorum certificates keyed by the candidate ID
// their vote points at.
type Certificates interface {

	// Store persists the certificate. Storing a certificate for an
	// already-covered candidate ID is a no-op.
	Store(cert *simplex.Certificate) error

	// ByCandidateID returns the stored certificate whose vote points at
	// the given candidate ID.
	// Error returns:
	//   - ErrNotFound if no certificate for the ID is stored
	ByCandidateID(id simplex.CandidateID) (*simplex.Certificate, error)

	// Traverse invokes handle for every stored certificate with a slot
	// at or above from, in slot order. Iteration stops at the first
	// error, which is passed through.
	Traverse(from simplex.Slot, handle func(*simplex.Certificate) error) error
}
