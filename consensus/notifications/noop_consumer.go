package notifications

import (
	"github.com/simplexbft/simplex-go/consensus"
	"github.com/simplexbft/simplex-go/model/simplex"
)

// NoopConsumer is an implementation of the consumer interface that
// swallows all events. It is convenient to embed when only a subset of
// events is of interest.
type NoopConsumer struct{}

var _ consensus.Consumer = (*NoopConsumer)(nil)

func NewNoopConsumer() *NoopConsumer {
	return &NoopConsumer{}
}

func (*NoopConsumer) OnNotarizationObserved(*simplex.Certificate) {}

func (*NoopConsumer) OnFinalizationObserved(*simplex.Certificate) {}

func (*NoopConsumer) OnLeaderWindowObserved(simplex.Slot, *simplex.CandidateID) {}

func (*NoopConsumer) OnMisbehaviorDetected(*simplex.MisbehaviorReport) {}

func (*NoopConsumer) OnOwnVoteCast(*simplex.SignedVote) {}

func (*NoopConsumer) OnCandidateResolved(*simplex.CertifiedCandidate) {}
