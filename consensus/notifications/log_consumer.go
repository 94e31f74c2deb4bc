package notifications

import (
	"github.com/rs/zerolog"

	"github.com/simplexbft/simplex-go/consensus"
	"github.com/simplexbft/simplex-go/model/simplex"
)

// LogConsumer is an implementation of the notifications consumer that
// logs a message for each event.
type LogConsumer struct {
	log zerolog.Logger
}

var _ consensus.Consumer = (*LogConsumer)(nil)

func NewLogConsumer(log zerolog.Logger) *LogConsumer {
	lc := &LogConsumer{
		log: log,
	}
	return lc
}

func (lc *LogConsumer) OnNotarizationObserved(cert *simplex.Certificate) {
	lc.log.Debug().
		Uint64("slot", uint64(cert.Vote.Slot)).
		Hex("candidate_hash", cert.Vote.CandidateHash[:]).
		Int("signers", len(cert.Signatures)).
		Msg("notarization observed")
}

func (lc *LogConsumer) OnFinalizationObserved(cert *simplex.Certificate) {
	lc.log.Info().
		Uint64("slot", uint64(cert.Vote.Slot)).
		Hex("candidate_hash", cert.Vote.CandidateHash[:]).
		Int("signers", len(cert.Signatures)).
		Msg("finalization observed")
}

func (lc *LogConsumer) OnLeaderWindowObserved(windowStart simplex.Slot, base *simplex.CandidateID) {
	entry := lc.log.Debug().
		Uint64("window_start", uint64(windowStart))

	if base != nil {
		entry.
			Uint64("base_slot", uint64(base.Slot)).
			Hex("base_hash", base.Hash[:])
	}

	entry.Msg("leader window observed")
}

func (lc *LogConsumer) OnMisbehaviorDetected(report *simplex.MisbehaviorReport) {
	lc.log.Warn().
		Uint32("accused_validator", report.AccusedValidator).
		Str("report", report.String()).
		Msg("misbehavior detected")
}

func (lc *LogConsumer) OnOwnVoteCast(sv *simplex.SignedVote) {
	lc.log.Debug().
		Uint64("slot", uint64(sv.Vote.Slot)).
		Str("kind", sv.Vote.Kind.String()).
		Hex("candidate_hash", sv.Vote.CandidateHash[:]).
		Msg("own vote cast")
}

func (lc *LogConsumer) OnCandidateResolved(cc *simplex.CertifiedCandidate) {
	id := cc.ID()
	lc.log.Debug().
		Uint64("slot", uint64(id.Slot)).
		Hex("candidate_hash", id.Hash[:]).
		Msg("candidate resolved")
}
