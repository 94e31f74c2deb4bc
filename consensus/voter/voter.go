// Package voter implements the candidate lifecycle of the local
// validator: receiving and proposing candidates, driving them through
// parent resolution and external validation, and casting the local
// notarize, finalize and skip votes.
//
// All per-slot voting state is owned by a single worker goroutine.
// Calls to external collaborators (parent resolution, block validation,
// candidate collation) run in satellite goroutines and deliver their
// results back to the worker, which re-checks all idempotence guards
// before acting, since arbitrary votes may have been processed while
// the collaborator was busy.
package voter

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/simplexbft/simplex-go/consensus"
	"github.com/simplexbft/simplex-go/consensus/voter/timeout"
	"github.com/simplexbft/simplex-go/engine/common/fifoqueue"
	"github.com/simplexbft/simplex-go/model/simplex"
	"github.com/simplexbft/simplex-go/module"
	"github.com/simplexbft/simplex-go/module/component"
	"github.com/simplexbft/simplex-go/module/irrecoverable"
	"github.com/simplexbft/simplex-go/network"
)

// defaultQueueCapacity is the capacity of the inbound message queue.
const defaultQueueCapacity = 1000

// resultChCapacity bounds the number of collaborator results that can
// be in flight at once before satellite goroutines block.
const resultChCapacity = 64

type queuedCandidate struct {
	candidate *simplex.Candidate
}

type notarizationEvent struct {
	cert *simplex.Certificate
}

type finalizationEvent struct {
	cert *simplex.Certificate
}

type windowEvent struct {
	windowStart simplex.Slot
	base        *simplex.CandidateID
}

// attemptResult is delivered by a satellite goroutine once a candidate
// has passed (or failed) parent resolution and external validation.
type attemptResult struct {
	candidate   *simplex.Candidate
	base        *simplex.CandidateID
	misbehavior *simplex.MisbehaviorReport
	stale       bool // parent wait resolved as moot, finalization advanced past the slot
	err         error
}

// collationResult is delivered by a satellite goroutine once the
// collator has produced (or failed to produce) a local proposal.
type collationResult struct {
	slot      simplex.Slot
	candidate *simplex.Candidate
	err       error
}

// slotRecord is the voter's private per-slot state.
type slotRecord struct {
	pending       *simplex.Candidate
	attempting    bool
	votedNotarize *simplex.CandidateID
	votedSkip     bool
	votedFinalize bool
}

// Voter implements the candidate lifecycle for the local validator.
type Voter struct {
	*component.ComponentManager

	log       zerolog.Logger
	metrics   module.ConsensusMetrics
	committee consensus.Committee
	signer    consensus.Signer
	verifier  consensus.Verifier
	validator consensus.CandidateValidator
	collator  consensus.Collator
	pool      consensus.Pool
	notifier  consensus.Consumer

	votes      network.Conduit
	candidates network.Conduit

	queue         *fifoqueue.FifoQueue
	queueNotifier chan struct{}
	results       chan interface{}

	// state below is owned by the worker goroutine
	records       map[simplex.Slot]*slotRecord
	currentWindow *windowEvent
	timeoutCtrl   *timeout.Controller
}

// Option customizes voter construction.
type Option func(*Voter)

// WithTimeoutController overrides the skip-timeout policy.
func WithTimeoutController(ctrl *timeout.Controller) Option {
	return func(v *Voter) {
		v.timeoutCtrl = ctrl
	}
}

// New instantiates a voter. The voter must additionally be subscribed
// to the pool's notarization, finalization and leader-window events via
// its OnNotarizationObserved, OnFinalizationObserved and
// OnLeaderWindowObserved methods.
func New(
	log zerolog.Logger,
	metrics module.ConsensusMetrics,
	committee consensus.Committee,
	signer consensus.Signer,
	verifier consensus.Verifier,
	validator consensus.CandidateValidator,
	collator consensus.Collator,
	pool consensus.Pool,
	notifier consensus.Consumer,
	votes network.Conduit,
	candidates network.Conduit,
	opts ...Option,
) (*Voter, error) {
	queue, err := fifoqueue.NewFifoQueue(
		fifoqueue.WithCapacity(defaultQueueCapacity),
		fifoqueue.WithLengthObserver(func(length int) { metrics.InboundQueueLength("voter", uint(length)) }),
	)
	if err != nil {
		return nil, fmt.Errorf("could not create inbound queue: %w", err)
	}

	v := &Voter{
		log:           log.With().Str("component", "voter").Logger(),
		metrics:       metrics,
		committee:     committee,
		signer:        signer,
		verifier:      verifier,
		validator:     validator,
		collator:      collator,
		pool:          pool,
		notifier:      notifier,
		votes:         votes,
		candidates:    candidates,
		queue:         queue,
		queueNotifier: make(chan struct{}, 1),
		results:       make(chan interface{}, resultChCapacity),
		records:       make(map[simplex.Slot]*slotRecord),
		timeoutCtrl:   timeout.DefaultController(),
	}
	for _, opt := range opts {
		opt(v)
	}

	v.ComponentManager = component.NewComponentManagerBuilder().
		AddWorker(v.processLoop).
		Build()

	return v, nil
}

// SubmitCandidate queues a candidate received from a peer or recovered
// by the resolver. Can be called concurrently; submission never fails.
func (v *Voter) SubmitCandidate(candidate *simplex.Candidate) {
	if !v.queue.Push(queuedCandidate{candidate: candidate}) {
		v.log.Warn().
			Uint64("slot", uint64(candidate.Slot)).
			Msg("inbound queue saturated, dropping candidate")
		return
	}
	v.notifyQueued()
}

// OnNotarizationObserved feeds a notarization quorum event into the
// voter. Non-blocking, concurrency safe.
func (v *Voter) OnNotarizationObserved(cert *simplex.Certificate) {
	if v.queue.Push(notarizationEvent{cert: cert}) {
		v.notifyQueued()
	}
}

// OnFinalizationObserved feeds a finalization quorum event into the
// voter. Non-blocking, concurrency safe.
func (v *Voter) OnFinalizationObserved(cert *simplex.Certificate) {
	if v.queue.Push(finalizationEvent{cert: cert}) {
		v.notifyQueued()
	}
}

// OnLeaderWindowObserved feeds a leader-window announcement into the
// voter. Non-blocking, concurrency safe. The pool announces windows
// strictly in order, and the FIFO queue preserves that order.
func (v *Voter) OnLeaderWindowObserved(windowStart simplex.Slot, base *simplex.CandidateID) {
	if v.queue.Push(windowEvent{windowStart: windowStart, base: base}) {
		v.notifyQueued()
	}
}

func (v *Voter) notifyQueued() {
	select {
	case v.queueNotifier <- struct{}{}:
	default:
	}
}

// processLoop is the single worker owning all voter state.
func (v *Voter) processLoop(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
	defer v.timeoutCtrl.Stop()

	ready()

	for {
		select {
		case <-ctx.Done():
			return
		case <-v.queueNotifier:
			v.drainQueue(ctx)
		case res := <-v.results:
			v.processResult(ctx, res)
		case <-v.timeoutCtrl.Channel():
			v.processTimeout(ctx)
		}
	}
}

func (v *Voter) drainQueue(ctx irrecoverable.SignalerContext) {
	for {
		msg, ok := v.queue.Pop()
		if !ok {
			return
		}
		switch m := msg.(type) {
		case queuedCandidate:
			v.processCandidate(ctx, m.candidate)
		case notarizationEvent:
			v.processNotarization(ctx, m.cert)
		case finalizationEvent:
			v.processFinalization()
		case windowEvent:
			v.processWindow(ctx, m)
		default:
			ctx.Throw(fmt.Errorf("unexpected message type in voter queue: %T", msg))
		}
	}
}

func (v *Voter) processResult(ctx irrecoverable.SignalerContext, res interface{}) {
	switch r := res.(type) {
	case attemptResult:
		v.processAttemptResult(ctx, r)
	case collationResult:
		v.processCollationResult(ctx, r)
	default:
		ctx.Throw(fmt.Errorf("unexpected result type in voter: %T", res))
	}
}

// recordFor returns the per-slot record, creating it on first use.
func (v *Voter) recordFor(slot simplex.Slot) *slotRecord {
	rec, ok := v.records[slot]
	if !ok {
		rec = &slotRecord{}
		v.records[slot] = rec
	}
	return rec
}

// processCandidate admits one received candidate into the lifecycle.
// Structural validity is already guaranteed by the model constructor;
// here the leader signature and schedule are checked, conflicts with an
// already-pending candidate are reported, and the notarization attempt
// is started.
func (v *Voter) processCandidate(ctx irrecoverable.SignalerContext, candidate *simplex.Candidate) {
	if candidate.Slot < v.pool.FirstNonFinalizedSlot() {
		v.log.Debug().
			Uint64("slot", uint64(candidate.Slot)).
			Msg("dropping candidate for already-finalized slot")
		return
	}

	err := v.verifier.VerifyCandidate(candidate)
	if err != nil {
		if simplex.IsInvalidCandidateError(err) {
			// without a valid leader signature the proposal cannot be
			// attributed, so there is nothing to accuse anyone of
			v.log.Warn().Err(err).Msg("dropping candidate with invalid leader attribution")
			return
		}
		ctx.Throw(fmt.Errorf("could not verify candidate: %w", err))
	}

	rec := v.recordFor(candidate.Slot)
	if rec.pending != nil {
		if rec.pending.ID() == candidate.ID() {
			return
		}
		// two distinct candidates attributed to the same leader for the
		// same slot prove leader equivocation
		v.metrics.MisbehaviorReported()
		v.notifier.OnMisbehaviorDetected(simplex.NewConflictingCandidateReport(candidate, nil,
			fmt.Sprintf("leader proposed conflicting candidates %v and %v", rec.pending.ID(), candidate.ID())))
		return
	}
	rec.pending = candidate

	v.attemptNotarization(ctx, rec, candidate)
}

// attemptNotarization starts the asynchronous pipeline that ends in a
// notarize vote: wait for the candidate's parent chain to resolve, have
// the external collaborator validate the content, honor the
// valid-from instant, then deliver the outcome back to the worker.
func (v *Voter) attemptNotarization(ctx irrecoverable.SignalerContext, rec *slotRecord, candidate *simplex.Candidate) {
	if rec.attempting || rec.votedNotarize != nil {
		return
	}
	rec.attempting = true

	resolutionCh := v.pool.AwaitParentResolved(candidate)
	go func() {
		var resolution consensus.ParentResolution
		select {
		case <-ctx.Done():
			return
		case resolution = <-resolutionCh:
		}

		if resolution.Misbehavior != nil {
			v.deliver(ctx, attemptResult{candidate: candidate, misbehavior: resolution.Misbehavior})
			return
		}
		if !resolution.Resolved {
			v.deliver(ctx, attemptResult{candidate: candidate, stale: true})
			return
		}

		validFrom, err := v.validator.Validate(ctx, candidate, resolution.Base)
		if err != nil {
			v.deliver(ctx, attemptResult{candidate: candidate, err: err})
			return
		}

		// reject-from-the-future guard: suspend until the candidate
		// becomes voteable
		if wait := time.Until(validFrom); wait > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
		}

		v.deliver(ctx, attemptResult{candidate: candidate, base: resolution.Base})
	}()
}

// deliver hands a collaborator result back to the worker goroutine.
func (v *Voter) deliver(ctx context.Context, res interface{}) {
	select {
	case <-ctx.Done():
	case v.results <- res:
	}
}

// processAttemptResult finishes a notarization attempt. All guards are
// re-checked: votes processed while the collaborators were busy may
// have finalized the slot or completed a concurrent attempt.
func (v *Voter) processAttemptResult(ctx irrecoverable.SignalerContext, res attemptResult) {
	candidate := res.candidate
	rec := v.recordFor(candidate.Slot)
	rec.attempting = false

	if res.misbehavior != nil {
		v.metrics.MisbehaviorReported()
		v.notifier.OnMisbehaviorDetected(res.misbehavior)
		return
	}
	if res.stale {
		return
	}
	if res.err != nil {
		if simplex.IsInvalidCandidateError(res.err) {
			if candidate.LeaderIndex == v.committee.Self() {
				// a self-rejected own proposal is a local bug, not remote
				// misbehavior
				v.log.Error().Err(res.err).
					Uint64("slot", uint64(candidate.Slot)).
					Msg("own candidate rejected by validation, this is a bug")
				return
			}
			v.metrics.MisbehaviorReported()
			v.notifier.OnMisbehaviorDetected(simplex.NewConflictingCandidateReport(candidate, nil,
				fmt.Sprintf("candidate rejected by validation: %s", res.err)))
			return
		}
		ctx.Throw(fmt.Errorf("could not validate candidate: %w", res.err))
	}

	if candidate.Slot < v.pool.FirstNonFinalizedSlot() {
		return
	}
	if rec.votedNotarize != nil {
		return
	}
	if rec.pending == nil || rec.pending.ID() != candidate.ID() {
		return
	}

	id := candidate.ID()
	if !v.castVote(ctx, simplex.NewNotarizeVote(id)) {
		return
	}
	rec.votedNotarize = &id
}

// processNotarization casts the finalize vote for a slot whose
// notarization quorum confirms the candidate this validator voted for.
// A validator that voted skip or already finalize for the slot must not
// finalize, as that would equivocate against its own votes.
func (v *Voter) processNotarization(ctx irrecoverable.SignalerContext, cert *simplex.Certificate) {
	rec, ok := v.records[cert.Vote.Slot]
	if !ok || rec.votedNotarize == nil {
		return
	}
	if *rec.votedNotarize != cert.Vote.CandidateID() {
		return
	}
	if rec.votedSkip || rec.votedFinalize {
		return
	}
	if !v.castVote(ctx, simplex.NewFinalizeVote(*rec.votedNotarize)) {
		return
	}
	rec.votedFinalize = true
}

// processFinalization records protocol progress and prunes voter state
// below the advanced finalization bound.
func (v *Voter) processFinalization() {
	v.timeoutCtrl.OnProgress()
	bound := v.pool.FirstNonFinalizedSlot()
	for slot := range v.records {
		if slot < bound {
			delete(v.records, slot)
		}
	}
}

// processWindow handles a leader-window announcement: the skip timeout
// is re-armed for the new window, and if the local validator is the
// scheduled collator, candidate generation is triggered against the
// window's resolved base.
func (v *Voter) processWindow(ctx irrecoverable.SignalerContext, w windowEvent) {
	v.currentWindow = &w
	v.timeoutCtrl.StartTimeout(uint64(w.windowStart))

	if v.committee.LeaderForSlot(w.windowStart) != v.committee.Self() {
		return
	}

	v.log.Debug().
		Uint64("slot", uint64(w.windowStart)).
		Msg("local validator leads the window, collating candidate")
	go func() {
		draft, err := v.collator.BuildCandidate(ctx, w.windowStart, w.base)
		if err != nil {
			v.deliver(ctx, collationResult{slot: w.windowStart, err: err})
			return
		}
		draft.Slot = w.windowStart
		draft.Parent = w.base
		candidate, err := v.signer.SignCandidate(draft)
		if err != nil {
			v.deliver(ctx, collationResult{slot: w.windowStart, err: err})
			return
		}
		v.deliver(ctx, collationResult{slot: w.windowStart, candidate: candidate})
	}()
}

// processCollationResult broadcasts a freshly collated own proposal and
// admits it into the local lifecycle.
func (v *Voter) processCollationResult(ctx irrecoverable.SignalerContext, res collationResult) {
	if res.err != nil {
		// collation failure leaves the slot to skip over; honest peers
		// will time out on the window
		v.log.Error().Err(res.err).
			Uint64("slot", uint64(res.slot)).
			Msg("could not collate own candidate")
		return
	}
	if res.slot < v.pool.FirstNonFinalizedSlot() {
		return
	}

	err := v.candidates.Broadcast(res.candidate)
	if err != nil {
		v.log.Warn().Err(err).
			Uint64("slot", uint64(res.slot)).
			Msg("could not broadcast own candidate")
	}
	v.processCandidate(ctx, res.candidate)
}

// processTimeout fires the skip path for the current leader window:
// every slot of the window that is not finalized and that this
// validator has not committed against gets a skip vote. The timeout is
// then re-armed with a possibly increased delay.
func (v *Voter) processTimeout(ctx irrecoverable.SignalerContext) {
	if v.currentWindow == nil {
		return
	}
	w := v.currentWindow
	windowSize := simplex.Slot(v.committee.WindowSize())
	bound := v.pool.FirstNonFinalizedSlot()

	if w.windowStart+windowSize <= bound {
		// the whole window finalized, nothing to skip; keep the timer
		// running for the next window announcement
		v.timeoutCtrl.StartTimeout(uint64(w.windowStart))
		return
	}

	v.log.Debug().
		Uint64("window_start", uint64(w.windowStart)).
		Msg("leader window timed out, casting skip votes")

	for slot := w.windowStart; slot < w.windowStart+windowSize; slot++ {
		if slot < bound {
			continue
		}
		rec := v.recordFor(slot)
		if rec.votedSkip {
			continue
		}
		// a finalize vote followed by a skip vote for the same slot is
		// self-equivocation
		if rec.votedFinalize {
			continue
		}
		if !v.castVote(ctx, simplex.NewSkipVote(slot)) {
			return
		}
		rec.votedSkip = true
	}

	v.timeoutCtrl.OnTimeout()
	v.timeoutCtrl.StartTimeout(uint64(w.windowStart))
}

// castVote signs, broadcasts and locally applies one own vote. Returns
// false only when the component is shutting down or signing failed
// fatally; in that case the vote was not cast.
func (v *Voter) castVote(ctx irrecoverable.SignalerContext, vote simplex.Vote) bool {
	sv, err := v.signer.CreateVote(vote)
	if err != nil {
		ctx.Throw(fmt.Errorf("could not sign own vote %v: %w", vote, err))
		return false
	}
	err = v.votes.Broadcast(sv)
	if err != nil {
		// the vote still counts locally; standstill recovery retransmits
		v.log.Warn().Err(err).Msg("could not broadcast own vote")
	}
	v.pool.SubmitVote(sv)
	v.notifier.OnOwnVoteCast(sv)
	return true
}
