// Package participant assembles the components of one consensus
// session: the vote pool, the voter, the resolver, the signing and
// verification layer and the event distributor, all behind a single
// lifecycle.
package participant

import (
	"fmt"

	"github.com/dgraph-io/badger/v2"
	"github.com/rs/zerolog"

	"github.com/simplexbft/simplex-go/consensus"
	"github.com/simplexbft/simplex-go/consensus/notifications"
	"github.com/simplexbft/simplex-go/consensus/notifications/pubsub"
	"github.com/simplexbft/simplex-go/consensus/pool"
	"github.com/simplexbft/simplex-go/consensus/resolver"
	"github.com/simplexbft/simplex-go/consensus/verification"
	"github.com/simplexbft/simplex-go/consensus/voter"
	"github.com/simplexbft/simplex-go/model/messages"
	"github.com/simplexbft/simplex-go/model/simplex"
	"github.com/simplexbft/simplex-go/module"
	"github.com/simplexbft/simplex-go/module/component"
	"github.com/simplexbft/simplex-go/module/irrecoverable"
	"github.com/simplexbft/simplex-go/network"
	bstorage "github.com/simplexbft/simplex-go/storage/badger"
)

// Participant implements consensus.Participant.
type Participant struct {
	*component.ComponentManager

	log         zerolog.Logger
	pool        *pool.Pool
	voter       *voter.Voter
	resolver    *resolver.Resolver
	distributor *pubsub.Distributor
}

var _ consensus.Participant = (*Participant)(nil)

// New assembles a consensus participant for one session. rootSlot is
// the first slot of the session and rootBase the candidate finalized
// immediately before it, nil for genesis. External consumers may be
// subscribed on the returned participant's Distributor before Start.
func New(
	log zerolog.Logger,
	metrics module.ConsensusMetrics,
	net network.Network,
	db *badger.DB,
	committee consensus.Committee,
	local module.Local,
	validator consensus.CandidateValidator,
	collator consensus.Collator,
	rootSlot simplex.Slot,
	rootBase *simplex.CandidateID,
) (*Participant, error) {

	p := &Participant{
		log:         log.With().Str("component", "participant").Logger(),
		distributor: pubsub.NewDistributor(),
	}
	p.distributor.AddConsumer(notifications.NewLogConsumer(log))

	signer := verification.NewSigner(committee, local)
	verifier := verification.NewVerifier(committee)

	// the channel processors forward to components that are constructed
	// below; dispatch dereferences the fields at delivery time
	votesConduit, err := net.Register(network.ConsensusVotes, &voteProcessor{participant: p})
	if err != nil {
		return nil, fmt.Errorf("could not register on votes channel: %w", err)
	}
	candidatesConduit, err := net.Register(network.ConsensusCandidates, &candidateProcessor{participant: p})
	if err != nil {
		return nil, fmt.Errorf("could not register on candidates channel: %w", err)
	}

	p.pool, err = pool.New(log, metrics, committee, verifier, p.distributor, votesConduit, rootSlot, rootBase)
	if err != nil {
		return nil, fmt.Errorf("could not create vote pool: %w", err)
	}

	candidates, err := bstorage.NewCandidates(db)
	if err != nil {
		return nil, fmt.Errorf("could not create candidate store: %w", err)
	}
	certificates, err := bstorage.NewCertificates(db)
	if err != nil {
		return nil, fmt.Errorf("could not create certificate store: %w", err)
	}
	p.resolver, err = resolver.New(log, metrics, committee, verifier, p.distributor, candidates, certificates, net)
	if err != nil {
		return nil, fmt.Errorf("could not create resolver: %w", err)
	}

	p.voter, err = voter.New(log, metrics, committee, signer, verifier, validator, collator,
		p.pool, p.distributor, votesConduit, candidatesConduit)
	if err != nil {
		return nil, fmt.Errorf("could not create voter: %w", err)
	}

	// the voter consumes the pool's quorum and window events, and the
	// resolver's recovered candidates re-enter the lifecycle
	p.distributor.AddOnNotarizationObservedConsumer(p.voter.OnNotarizationObserved)
	p.distributor.AddOnFinalizationObservedConsumer(p.voter.OnFinalizationObserved)
	p.distributor.AddOnLeaderWindowObservedConsumer(p.voter.OnLeaderWindowObserved)
	p.distributor.AddOnCandidateResolvedConsumer(func(cc *simplex.CertifiedCandidate) {
		p.voter.SubmitCandidate(cc.Candidate)
		p.pool.SubmitCertificate(cc.Certificate)
	})

	p.ComponentManager = component.NewComponentManagerBuilder().
		AddWorker(runComponent(p.pool)).
		AddWorker(runComponent(p.resolver)).
		AddWorker(runComponent(p.voter)).
		Build()

	return p, nil
}

// Pool exposes the session's vote pool.
func (p *Participant) Pool() consensus.Pool {
	return p.pool
}

// Resolver exposes the session's candidate resolver.
func (p *Participant) Resolver() consensus.Resolver {
	return p.resolver
}

// Distributor exposes the session's event bus for external
// subscriptions. Subscribe before Start.
func (p *Participant) Distributor() *pubsub.Distributor {
	return p.distributor
}

// runComponent adapts a child component into a worker of the parent's
// component manager, propagating readiness and waiting out shutdown.
func runComponent(child module.Component) component.ComponentWorker {
	return func(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
		child.Start(ctx)
		select {
		case <-ctx.Done():
		case <-child.Ready():
			ready()
			<-ctx.Done()
		}
		<-child.Done()
	}
}

// voteProcessor dispatches inbound traffic on the votes channel.
type voteProcessor struct {
	participant *Participant
}

func (vp *voteProcessor) Process(channel network.Channel, originID uint32, event interface{}) error {
	switch m := event.(type) {
	case *simplex.SignedVote:
		vp.participant.pool.SubmitVote(m)
	case *simplex.Certificate:
		vp.participant.pool.SubmitCertificate(m)
	default:
		return fmt.Errorf("unexpected event type %T on channel %s", event, channel)
	}
	return nil
}

// candidateProcessor dispatches inbound traffic on the candidates
// channel. Proposals arrive either pre-decoded or in wire form.
type candidateProcessor struct {
	participant *Participant
}

func (cp *candidateProcessor) Process(channel network.Channel, originID uint32, event interface{}) error {
	switch m := event.(type) {
	case *simplex.Candidate:
		cp.participant.voter.SubmitCandidate(m)
	case *messages.CandidateProposal:
		candidate, err := simplex.DecodeCandidate(m.Candidate)
		if err != nil {
			// malformed proposals cannot be attributed, drop them
			cp.participant.log.Warn().Err(err).
				Uint32("origin", originID).
				Msg("dropping undecodable candidate proposal")
			return nil
		}
		cp.participant.voter.SubmitCandidate(candidate)
	default:
		return fmt.Errorf("unexpected event type %T on channel %s", event, channel)
	}
	return nil
}
