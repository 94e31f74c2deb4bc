package consensus

import (
	"context"
	"time"

	"github.com/simplexbft/simplex-go/model/simplex"
)

// CandidateValidator is the external collaborator that validates the
// content of a received candidate (block execution, transaction checks)
// against the resolved parent. The consensus core never inspects block
// content itself.
type CandidateValidator interface {
	// Validate checks the candidate against its resolved parent. On
	// acceptance it returns the instant from which the candidate may be
	// voted on; the core suspends voting until that instant is reached.
	// Error returns:
	//   - simplex.InvalidCandidateError if the candidate is rejected;
	//     the rejection reason is carried in the error
	// All other errors are exceptions.
	Validate(ctx context.Context, candidate *simplex.Candidate, parent *simplex.CandidateID) (validFrom time.Time, err error)
}

// Collator is the external collaborator that produces a candidate when
// the local validator is the leader for a slot. Block construction is
// out of scope for the consensus core.
type Collator interface {
	// BuildCandidate produces an unsigned candidate draft for the given
	// slot on top of the given base. A nil base denotes genesis. The
	// core attributes and signs the draft before proposing it.
	BuildCandidate(ctx context.Context, slot simplex.Slot, base *simplex.CandidateID) (simplex.UntrustedCandidate, error)
}
