// Package pool implements the vote-tallying protocol state machine of
// the consensus core. The pool ingests signed votes and certificates,
// maintains the windowed per-slot aggregation state, detects
// equivocation, emits notarization/finalization/leader-window events,
// serves chain-resolution waits, and performs standstill recovery.
//
// All slot-state mutation happens on a single worker goroutine; public
// methods only enqueue work. Handlers never block the worker on I/O.
package pool

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/simplexbft/simplex-go/consensus"
	"github.com/simplexbft/simplex-go/engine/common/fifoqueue"
	"github.com/simplexbft/simplex-go/model/simplex"
	"github.com/simplexbft/simplex-go/module"
	"github.com/simplexbft/simplex-go/module/component"
	"github.com/simplexbft/simplex-go/module/irrecoverable"
	"github.com/simplexbft/simplex-go/network"
)

// defaultQueueCapacity is the capacity of the inbound message queue.
const defaultQueueCapacity = 1000

// defaultStandstillInterval is the default period of the standstill
// recovery timer.
const defaultStandstillInterval = 10 * time.Second

type queuedVote struct {
	sv *simplex.SignedVote
}

type queuedCertificate struct {
	cert *simplex.Certificate
}

type parentWait struct {
	candidate *simplex.Candidate
	ch        chan consensus.ParentResolution
}

// Pool implements consensus.Pool.
type Pool struct {
	*component.ComponentManager

	log       zerolog.Logger
	metrics   module.ConsensusMetrics
	committee consensus.Committee
	verifier  consensus.Verifier
	notifier  consensus.Consumer
	conduit   network.Conduit

	queue         *fifoqueue.FifoQueue
	queueNotifier chan struct{}

	standstillInterval time.Duration
	standstillTimer    *time.Timer

	// state below is owned by the worker goroutine
	window            *slotWindow
	frontier          simplex.Slot // lowest slot not yet notarized or skipped
	announcedWindow   uint64       // index of the next leader window to announce
	pending           []*parentWait
	lastFinalized     *simplex.CandidateID
	lastFinalizedCert *simplex.Certificate

	// read-only mirror of the window's lower bound for concurrent readers
	firstNonFinalized *atomic.Uint64
}

var _ consensus.Pool = (*Pool)(nil)

// Option customizes pool construction.
type Option func(*Pool)

// WithStandstillInterval overrides the period of the standstill
// recovery timer.
func WithStandstillInterval(interval time.Duration) Option {
	return func(p *Pool) {
		p.standstillInterval = interval
	}
}

// New instantiates a vote pool. rootSlot is the first slot of the
// session (0 for genesis); rootBase is the candidate finalized
// immediately before the session start, nil for genesis.
func New(
	log zerolog.Logger,
	metrics module.ConsensusMetrics,
	committee consensus.Committee,
	verifier consensus.Verifier,
	notifier consensus.Consumer,
	conduit network.Conduit,
	rootSlot simplex.Slot,
	rootBase *simplex.CandidateID,
	opts ...Option,
) (*Pool, error) {
	queue, err := fifoqueue.NewFifoQueue(
		fifoqueue.WithCapacity(defaultQueueCapacity),
		fifoqueue.WithLengthObserver(func(length int) { metrics.InboundQueueLength("vote_pool", uint(length)) }),
	)
	if err != nil {
		return nil, fmt.Errorf("could not create inbound queue: %w", err)
	}

	p := &Pool{
		log:                log.With().Str("component", "vote_pool").Logger(),
		metrics:            metrics,
		committee:          committee,
		verifier:           verifier,
		notifier:           notifier,
		conduit:            conduit,
		queue:              queue,
		queueNotifier:      make(chan struct{}, 1),
		standstillInterval: defaultStandstillInterval,
		window:             newSlotWindow(),
		frontier:           rootSlot,
		announcedWindow:    uint64(rootSlot) / committee.WindowSize(),
		firstNonFinalized:  atomic.NewUint64(uint64(rootSlot)),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.window.firstNonFinalized = rootSlot
	rootState, err := p.window.get(rootSlot)
	if err != nil {
		return nil, fmt.Errorf("could not initialize root slot state: %w", err)
	}
	rootState.base = rootBase
	rootState.baseKnown = true
	// a session resuming mid-chain treats the root base as the most
	// recently finalized candidate, so parent waits against finalized
	// history evaluate correctly from the first candidate on
	p.lastFinalized = rootBase

	p.standstillTimer = time.NewTimer(p.standstillInterval)

	p.ComponentManager = component.NewComponentManagerBuilder().
		AddWorker(p.processLoop).
		Build()

	return p, nil
}

// SubmitVote queues a signed vote for asynchronous processing.
// Can be called concurrently; submission never fails. If the inbound
// queue is saturated the vote is dropped, which is safe because the
// standstill recovery of honest peers retransmits outstanding votes.
func (p *Pool) SubmitVote(sv *simplex.SignedVote) {
	if !p.queue.Push(queuedVote{sv: sv}) {
		p.log.Warn().
			Uint64("slot", uint64(sv.Vote.Slot)).
			Uint32("validator", sv.ValidatorIndex).
			Msg("inbound queue saturated, dropping vote")
		return
	}
	p.notifyQueued()
}

// SubmitCertificate queues an externally received certificate for
// asynchronous processing. Can be called concurrently.
func (p *Pool) SubmitCertificate(cert *simplex.Certificate) {
	if !p.queue.Push(queuedCertificate{cert: cert}) {
		p.log.Warn().
			Uint64("slot", uint64(cert.Vote.Slot)).
			Msg("inbound queue saturated, dropping certificate")
		return
	}
	p.notifyQueued()
}

// AwaitParentResolved registers interest in the resolution of the chain
// between the candidate's parent and the candidate's slot. The returned
// channel delivers exactly one resolution.
func (p *Pool) AwaitParentResolved(candidate *simplex.Candidate) <-chan consensus.ParentResolution {
	wait := &parentWait{
		candidate: candidate,
		ch:        make(chan consensus.ParentResolution, 1),
	}
	if !p.queue.Push(wait) {
		// saturated queue: resolve as unresolved so the caller can retry
		wait.ch <- consensus.ParentResolution{}
		return wait.ch
	}
	p.notifyQueued()
	return wait.ch
}

// FirstNonFinalizedSlot returns the lower bound of the tracked slot
// window. Concurrency safe.
func (p *Pool) FirstNonFinalizedSlot() simplex.Slot {
	return simplex.Slot(p.firstNonFinalized.Load())
}

func (p *Pool) notifyQueued() {
	select {
	case p.queueNotifier <- struct{}{}:
	default:
	}
}

// processLoop is the single worker owning all slot state. It drains the
// inbound queue and fires standstill recovery.
func (p *Pool) processLoop(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
	defer p.standstillTimer.Stop()

	// the root window may be announceable right away (genesis or a
	// session resuming from a finalized root)
	p.announceWindows()

	ready()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.queueNotifier:
			p.drainQueue(ctx)
		case <-p.standstillTimer.C:
			p.rebroadcastOwnVotes()
			p.standstillTimer.Reset(p.standstillInterval)
		}
	}
}

func (p *Pool) drainQueue(ctx irrecoverable.SignalerContext) {
	for {
		msg, ok := p.queue.Pop()
		if !ok {
			return
		}
		switch m := msg.(type) {
		case queuedVote:
			err := p.processVote(ctx, m.sv)
			if err != nil {
				ctx.Throw(fmt.Errorf("internal error processing vote: %w", err))
			}
		case queuedCertificate:
			err := p.processCertificate(ctx, m.cert)
			if err != nil {
				ctx.Throw(fmt.Errorf("internal error processing certificate: %w", err))
			}
		case *parentWait:
			p.processParentWait(m)
		default:
			ctx.Throw(fmt.Errorf("unexpected message type in pool queue: %T", msg))
		}
	}
}

// processVote verifies and tallies one signed vote.
// Protocol violations by the sender are reported or dropped, never
// returned; all returned errors are exceptions.
func (p *Pool) processVote(ctx irrecoverable.SignalerContext, sv *simplex.SignedVote) error {
	err := p.verifier.VerifyVote(sv)
	if err != nil {
		if simplex.IsInvalidVoteError(err) {
			p.log.Warn().Err(err).Msg("dropping invalid vote")
			return nil
		}
		return fmt.Errorf("could not verify vote: %w", err)
	}

	st, err := p.window.get(sv.Vote.Slot)
	if err != nil {
		if simplex.IsSlotAlreadyFinalizedError(err) {
			p.log.Debug().
				Uint64("slot", uint64(sv.Vote.Slot)).
				Uint32("validator", sv.ValidatorIndex).
				Msg("rejecting vote for already-finalized slot")
			return nil
		}
		return fmt.Errorf("could not get slot state: %w", err)
	}

	applied, err := st.trackerFor(sv.ValidatorIndex).Add(sv)
	if err != nil {
		doubleVote, ok := simplex.AsDoubleVoteError(err)
		if !ok {
			return fmt.Errorf("could not apply vote to ledger: %w", err)
		}
		p.metrics.MisbehaviorReported()
		p.notifier.OnMisbehaviorDetected(simplex.NewConflictingVotesReport(doubleVote))
		return nil
	}
	if !applied {
		// duplicate under retransmission; no observable state change
		return nil
	}

	weight, err := p.committee.WeightOf(sv.ValidatorIndex)
	if err != nil {
		return fmt.Errorf("could not get weight of verified voter: %w", err)
	}
	p.metrics.VoteProcessed(sv.Vote.Kind)

	threshold := p.committee.QuorumThreshold()
	switch sv.Vote.Kind {
	case simplex.VoteNotarize:
		tally := st.notarizeTally[sv.Vote.CandidateHash] + weight
		st.notarizeTally[sv.Vote.CandidateHash] = tally
		if tally >= threshold {
			p.markNotarized(ctx, st, sv.Vote.CandidateID(), nil)
		}
	case simplex.VoteSkip:
		st.skipWeight += weight
		if st.skipWeight >= threshold {
			p.markSkipped(st)
		}
	case simplex.VoteFinalize:
		tally := st.finalizeTally[sv.Vote.CandidateHash] + weight
		st.finalizeTally[sv.Vote.CandidateHash] = tally
		if tally >= threshold {
			p.markFinalized(ctx, st, sv.Vote.CandidateID(), nil)
		}
	}
	return nil
}

// processCertificate applies an externally received quorum certificate.
// A certificate re-delivering an already-observed quorum is a no-op.
func (p *Pool) processCertificate(ctx irrecoverable.SignalerContext, cert *simplex.Certificate) error {
	err := p.verifier.VerifyCertificate(cert)
	if err != nil {
		if simplex.IsInvalidCertificateError(err) {
			p.log.Warn().Err(err).Msg("dropping invalid certificate")
			return nil
		}
		return fmt.Errorf("could not verify certificate: %w", err)
	}

	st, err := p.window.get(cert.Vote.Slot)
	if err != nil {
		if simplex.IsSlotAlreadyFinalizedError(err) {
			p.log.Debug().
				Uint64("slot", uint64(cert.Vote.Slot)).
				Msg("dropping certificate for already-finalized slot")
			return nil
		}
		return fmt.Errorf("could not get slot state: %w", err)
	}

	switch cert.Vote.Kind {
	case simplex.VoteNotarize:
		p.markNotarized(ctx, st, cert.Vote.CandidateID(), cert)
	case simplex.VoteSkip:
		p.markSkipped(st)
	case simplex.VoteFinalize:
		p.markFinalized(ctx, st, cert.Vote.CandidateID(), cert)
	}
	return nil
}

// markNotarized records a notarization quorum for the slot. cert may be
// nil, in which case the certificate is synthesized from the stored
// votes. Observing a second notarization quorum for a different
// candidate proves the Byzantine weight bound was exceeded and is
// fatal.
func (p *Pool) markNotarized(ctx irrecoverable.SignalerContext, st *slotState, id simplex.CandidateID, cert *simplex.Certificate) {
	if st.notarized != nil {
		if *st.notarized != id {
			ctx.Throw(simplex.ByzantineThresholdExceededError{
				Evidence: fmt.Sprintf("two notarization quorums for slot %d: %v and %v", st.slot, *st.notarized, id),
			})
		}
		return
	}
	if cert == nil {
		cert = p.buildCertificate(ctx, st, simplex.NewNotarizeVote(id))
	}
	st.notarized = &id
	p.metrics.SlotNotarized(st.slot)
	p.log.Debug().
		Uint64("slot", uint64(st.slot)).
		Hex("candidate_hash", id.Hash[:]).
		Msg("slot notarized")
	p.notifier.OnNotarizationObserved(cert)

	// the slot after the skip-contiguous range following this slot can
	// now build on the notarized candidate
	p.setBase(st.slot+1, &id)
	p.afterResolution()
}

// markSkipped records a skip quorum for the slot. No event is emitted;
// a skip certificate remains constructible on demand from the stored
// votes.
func (p *Pool) markSkipped(st *slotState) {
	if st.skipped {
		return
	}
	st.skipped = true
	p.log.Debug().
		Uint64("slot", uint64(st.slot)).
		Msg("slot skipped")

	// a skipped slot hands its base through to the next slot
	if st.baseKnown {
		p.setBase(st.slot+1, st.base)
	}
	p.afterResolution()
}

// markFinalized records a finalization quorum, advances the window's
// lower bound and prunes all state below it. cert may be nil, in which
// case the certificate is synthesized from the stored votes.
func (p *Pool) markFinalized(ctx irrecoverable.SignalerContext, st *slotState, id simplex.CandidateID, cert *simplex.Certificate) {
	if st.finalized != nil {
		if *st.finalized != id {
			ctx.Throw(simplex.ByzantineThresholdExceededError{
				Evidence: fmt.Sprintf("two finalization quorums for slot %d: %v and %v", st.slot, *st.finalized, id),
			})
		}
		return
	}
	if st.skipped {
		ctx.Throw(simplex.ByzantineThresholdExceededError{
			Evidence: fmt.Sprintf("slot %d reached both a skip and a finalization quorum", st.slot),
		})
	}
	if st.notarized != nil && *st.notarized != id {
		ctx.Throw(simplex.ByzantineThresholdExceededError{
			Evidence: fmt.Sprintf("slot %d finalized %v but notarized %v", st.slot, id, *st.notarized),
		})
	}
	if cert == nil {
		cert = p.buildCertificate(ctx, st, simplex.NewFinalizeVote(id))
	}
	st.finalized = &id
	if st.notarized == nil {
		// a finalization quorum subsumes the notarization; record it so
		// chain resolution sees a consistent slot
		st.notarized = &id
		p.setBase(st.slot+1, &id)
	}

	p.lastFinalized = &id
	p.lastFinalizedCert = cert
	p.window.pruneUpTo(st.slot + 1)
	p.firstNonFinalized.Store(uint64(st.slot + 1))
	p.metrics.SlotFinalized(st.slot)
	p.log.Info().
		Uint64("slot", uint64(st.slot)).
		Hex("candidate_hash", id.Hash[:]).
		Msg("slot finalized")
	p.notifier.OnFinalizationObserved(cert)

	// progress was made, push the standstill recovery out
	p.standstillTimer.Reset(p.standstillInterval)

	p.afterResolution()
}

// buildCertificate synthesizes a quorum certificate from the applied
// votes stored in the slot state. The caller must have observed the
// quorum crossing; failure to assemble a certificate at that point is a
// modeling bug.
func (p *Pool) buildCertificate(ctx irrecoverable.SignalerContext, st *slotState, vote simplex.Vote) *simplex.Certificate {
	cert, err := simplex.NewCertificate(vote, st.votesFor(vote))
	if err != nil {
		ctx.Throw(fmt.Errorf("could not build certificate for observed quorum on %v: %w", vote, err))
	}
	return cert
}

// setBase propagates an available base forward from the given slot,
// following through any already-skipped slots. Idempotent: a slot whose
// base is already known is left untouched.
func (p *Pool) setBase(slot simplex.Slot, base *simplex.CandidateID) {
	for {
		if slot < p.window.firstNonFinalized {
			return
		}
		st, err := p.window.get(slot)
		if err != nil {
			return
		}
		if st.baseKnown {
			return
		}
		st.base = base
		st.baseKnown = true
		if !st.skipped {
			return
		}
		slot++
	}
}

// afterResolution runs the bookkeeping that follows every
// notarize/skip/finalize transition: advancing the resolved frontier,
// re-evaluating pending chain waits, and announcing leader windows.
func (p *Pool) afterResolution() {
	p.advanceFrontier()
	p.evaluatePendingWaits()
	p.announceWindows()
}

// advanceFrontier moves the resolved frontier over every slot that is
// notarized or skipped. Finalization may move the window's lower bound
// past the frontier; the frontier then jumps to the bound.
func (p *Pool) advanceFrontier() {
	if p.frontier < p.window.firstNonFinalized {
		p.frontier = p.window.firstNonFinalized
	}
	for {
		st, ok := p.window.lookup(p.frontier)
		if !ok || !st.resolved() {
			return
		}
		p.frontier++
	}
}

// announceWindows emits OnLeaderWindowObserved for every leader window
// whose predecessor chain has become fully resolved, strictly in window
// order.
func (p *Pool) announceWindows() {
	windowSize := p.committee.WindowSize()
	for {
		start := simplex.Slot(p.announcedWindow * windowSize)
		if start < p.window.firstNonFinalized {
			// the chain finalized past this window before it was
			// announced; there is nothing left to collate in it
			p.announcedWindow++
			continue
		}
		if p.frontier < start {
			return
		}
		st, err := p.window.get(start)
		if err != nil || !st.baseKnown {
			return
		}
		p.log.Debug().
			Uint64("window_start", uint64(start)).
			Msg("leader window observed")
		p.notifier.OnLeaderWindowObserved(start, st.base)
		p.announcedWindow++
	}
}

// processParentWait registers a chain-resolution wait and evaluates it
// against current state.
func (p *Pool) processParentWait(wait *parentWait) {
	if p.evaluateWait(wait) {
		return
	}
	p.pending = append(p.pending, wait)
}

// evaluatePendingWaits re-evaluates all registered waits and delivers
// those that have resolved.
func (p *Pool) evaluatePendingWaits() {
	remaining := p.pending[:0]
	for _, wait := range p.pending {
		if !p.evaluateWait(wait) {
			remaining = append(remaining, wait)
		}
	}
	p.pending = remaining
}

// evaluateWait checks one chain-resolution wait. It returns true after
// delivering a resolution, false if the wait must remain registered.
//
// The wait resolves successfully once the candidate's parent slot is
// notarized with the matching candidate (or the parent is the session
// root) and every intervening slot is skipped. It resolves with a
// misbehavior proof if the candidate conflicts with the certified
// chain. It resolves as unresolved if finalization has advanced past
// the candidate's slot, rendering it moot.
func (p *Pool) evaluateWait(wait *parentWait) bool {
	candidate := wait.candidate
	bound := p.window.firstNonFinalized

	if candidate.Slot < bound {
		wait.ch <- consensus.ParentResolution{}
		return true
	}

	parent := candidate.Parent
	firstIntervening := simplex.Slot(0)

	if parent != nil {
		firstIntervening = parent.Slot + 1

		if parent.Slot < bound {
			// the parent lies in finalized history; it must be the most
			// recently finalized candidate, anything deeper skips over
			// a finalized slot
			if p.lastFinalized != nil && *parent == *p.lastFinalized {
				// fine, fall through to the intervening-slot check
			} else {
				wait.ch <- consensus.ParentResolution{
					Misbehavior: simplex.NewConflictingCandidateReport(candidate, p.lastFinalizedCert,
						"candidate parent conflicts with finalized chain"),
				}
				return true
			}
		} else {
			st, ok := p.window.lookup(parent.Slot)
			if !ok || st.notarized == nil {
				return false
			}
			if *st.notarized != *parent {
				cert, err := simplex.NewCertificate(simplex.NewNotarizeVote(*st.notarized), st.votesFor(simplex.NewNotarizeVote(*st.notarized)))
				if err != nil {
					// quorum was learned from an external certificate and
					// votes are not locally available; report without one
					cert = nil
				}
				wait.ch <- consensus.ParentResolution{
					Misbehavior: simplex.NewConflictingCandidateReport(candidate, cert,
						"candidate parent conflicts with notarized candidate"),
				}
				return true
			}
		}
	} else if bound > 0 {
		// genesis parent while finalization has already advanced
		wait.ch <- consensus.ParentResolution{
			Misbehavior: simplex.NewConflictingCandidateReport(candidate, p.lastFinalizedCert,
				"genesis-parent candidate conflicts with finalized chain"),
		}
		return true
	}

	// every slot between parent and candidate must be skipped
	for slot := firstIntervening; slot < candidate.Slot; slot++ {
		if slot < bound {
			continue // covered by the finalized-history check above
		}
		st, ok := p.window.lookup(slot)
		if !ok || !st.skipped {
			return false
		}
	}

	wait.ch <- consensus.ParentResolution{Resolved: true, Base: parent}
	return true
}

// rebroadcastOwnVotes retransmits the local validator's outstanding
// votes for all tracked unresolved slots. It only retransmits, it never
// invents new votes; this keeps liveness from stalling permanently on
// message loss.
func (p *Pool) rebroadcastOwnVotes() {
	self := p.committee.Self()
	count := 0
	var errs *multierror.Error
	for _, st := range p.window.states {
		t, ok := st.trackers[self]
		if !ok {
			continue
		}
		for _, sv := range t.Votes() {
			err := p.conduit.Broadcast(sv)
			if err != nil {
				errs = multierror.Append(errs, fmt.Errorf("slot %d: %w", st.slot, err))
				continue
			}
			count++
		}
	}
	if err := errs.ErrorOrNil(); err != nil {
		p.log.Warn().Err(err).Msg("could not rebroadcast all outstanding votes")
	}
	if count > 0 {
		p.log.Debug().Int("votes", count).Msg("standstill recovery rebroadcast outstanding votes")
	}
}
