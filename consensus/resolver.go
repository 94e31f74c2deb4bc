package consensus

import (
	"context"

	"github.com/simplexbft/simplex-go/model/simplex"
)

// Resolver backfills candidates and notarization certificates that the
// local validator has heard about but does not hold. Resolution is
// idempotent and memoized per candidate ID: concurrent callers for the
// same ID share one in-flight network loop and one result.
type Resolver interface {
	// Resolve returns the candidate with the given ID together with a
	// verified notarization certificate for it, fetching missing parts
	// from random peers if necessary. It blocks until both parts are
	// available or the context is cancelled.
	Resolve(ctx context.Context, id simplex.CandidateID) (*simplex.CertifiedCandidate, error)
}
