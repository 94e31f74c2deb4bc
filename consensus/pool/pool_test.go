package pool_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/simplexbft/simplex-go/consensus"
	"github.com/simplexbft/simplex-go/consensus/pool"
	"github.com/simplexbft/simplex-go/consensus/verification"
	"github.com/simplexbft/simplex-go/model/simplex"
	"github.com/simplexbft/simplex-go/module/irrecoverable"
	"github.com/simplexbft/simplex-go/module/metrics"
	netmocks "github.com/simplexbft/simplex-go/network/mocks"
	"github.com/simplexbft/simplex-go/utils/unittest"
)

// windowEvent captures one OnLeaderWindowObserved emission.
type windowEvent struct {
	start simplex.Slot
	base  *simplex.CandidateID
}

// eventConsumer funnels consensus events into channels the test can
// select on.
type eventConsumer struct {
	notarized   chan *simplex.Certificate
	finalized   chan *simplex.Certificate
	windows     chan windowEvent
	misbehavior chan *simplex.MisbehaviorReport
}

func newEventConsumer() *eventConsumer {
	return &eventConsumer{
		notarized:   make(chan *simplex.Certificate, 10),
		finalized:   make(chan *simplex.Certificate, 10),
		windows:     make(chan windowEvent, 10),
		misbehavior: make(chan *simplex.MisbehaviorReport, 10),
	}
}

func (c *eventConsumer) OnNotarizationObserved(cert *simplex.Certificate) { c.notarized <- cert }
func (c *eventConsumer) OnFinalizationObserved(cert *simplex.Certificate) { c.finalized <- cert }
func (c *eventConsumer) OnLeaderWindowObserved(start simplex.Slot, base *simplex.CandidateID) {
	c.windows <- windowEvent{start: start, base: base}
}
func (c *eventConsumer) OnMisbehaviorDetected(report *simplex.MisbehaviorReport) {
	c.misbehavior <- report
}
func (c *eventConsumer) OnOwnVoteCast(*simplex.SignedVote)               {}
func (c *eventConsumer) OnCandidateResolved(*simplex.CertifiedCandidate) {}

var _ consensus.Consumer = (*eventConsumer)(nil)

// harness bundles a running pool with its collaborators. All tests use
// a committee of 4 equally weighted validators, so the quorum threshold
// is 3.
type harness struct {
	fixture *unittest.CommitteeFixture
	pool    *pool.Pool
	events  *eventConsumer
	conduit *netmocks.Conduit
	errChan <-chan error
	cancel  context.CancelFunc
}

func withHarness(t *testing.T, windowSize uint64, rootSlot simplex.Slot, rootBase *simplex.CandidateID, opts []pool.Option, f func(*harness)) {
	fixture := unittest.NewCommitteeFixture(t, 4, windowSize)
	committee := fixture.Committee(t, 0)
	events := newEventConsumer()
	conduit := &netmocks.Conduit{}

	p, err := pool.New(
		unittest.Logger(),
		metrics.NewNoopCollector(),
		committee,
		verification.NewVerifier(committee),
		events,
		conduit,
		rootSlot,
		rootBase,
		opts...,
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	sctx, errChan := irrecoverable.WithSignaler(ctx)
	p.Start(sctx)
	unittest.RequireCloseBefore(t, p.Ready(), time.Second, "pool did not start")

	h := &harness{
		fixture: fixture,
		pool:    p,
		events:  events,
		conduit: conduit,
		errChan: errChan,
		cancel:  cancel,
	}
	defer func() {
		cancel()
		unittest.RequireCloseBefore(t, p.Done(), time.Second, "pool did not stop")
	}()

	f(h)
}

// submitVotes signs and submits one vote per given validator index.
func (h *harness) submitVotes(t *testing.T, vote simplex.Vote, indices ...uint32) {
	for _, index := range indices {
		h.pool.SubmitVote(h.fixture.SignedVote(t, index, vote))
	}
}

// requireNoEvent asserts that no notarization, finalization or
// misbehavior event arrives within the given duration.
func (h *harness) requireNoEvent(t *testing.T, duration time.Duration) {
	select {
	case cert := <-h.events.notarized:
		t.Fatalf("unexpected notarization event: %v", cert.Vote)
	case cert := <-h.events.finalized:
		t.Fatalf("unexpected finalization event: %v", cert.Vote)
	case report := <-h.events.misbehavior:
		t.Fatalf("unexpected misbehavior report: %s", report)
	case <-time.After(duration):
	}
}

// TestNotarizationQuorum verifies that a slot is notarized exactly when
// the accumulated notarize weight reaches the quorum threshold, and
// that the emitted certificate carries the contributing signers.
func TestNotarizationQuorum(t *testing.T) {
	withHarness(t, 1, 0, nil, nil, func(h *harness) {
		id := unittest.CandidateIDFixture(0)
		vote := simplex.NewNotarizeVote(id)

		h.submitVotes(t, vote, 0, 1)
		h.requireNoEvent(t, 50*time.Millisecond)

		h.submitVotes(t, vote, 2)
		cert := unittest.RequireReceiveBefore(t, h.events.notarized, time.Second, "expected notarization")
		require.Equal(t, vote, cert.Vote)
		require.ElementsMatch(t, []uint32{0, 1, 2}, cert.SignerIndices())
	})
}

// TestFinalizationQuorum verifies that a finalization quorum emits a
// finalization event and advances the first non-finalized slot.
func TestFinalizationQuorum(t *testing.T) {
	withHarness(t, 1, 0, nil, nil, func(h *harness) {
		id := unittest.CandidateIDFixture(0)

		h.submitVotes(t, simplex.NewNotarizeVote(id), 0, 1, 2)
		unittest.RequireReceiveBefore(t, h.events.notarized, time.Second, "expected notarization")

		h.submitVotes(t, simplex.NewFinalizeVote(id), 0, 1, 3)
		cert := unittest.RequireReceiveBefore(t, h.events.finalized, time.Second, "expected finalization")
		require.Equal(t, simplex.VoteFinalize, cert.Vote.Kind)
		require.Equal(t, id, cert.Vote.CandidateID())
		require.Equal(t, simplex.Slot(1), h.pool.FirstNonFinalizedSlot())
	})
}

// TestDuplicateVoteIdempotent verifies that retransmitted votes do not
// double count and that a re-delivered certificate for an
// already-notarized slot does not emit a second event.
func TestDuplicateVoteIdempotent(t *testing.T) {
	withHarness(t, 1, 0, nil, nil, func(h *harness) {
		id := unittest.CandidateIDFixture(0)
		vote := simplex.NewNotarizeVote(id)

		sv := h.fixture.SignedVote(t, 0, vote)
		h.pool.SubmitVote(sv)
		h.pool.SubmitVote(sv)
		h.submitVotes(t, vote, 1)
		h.requireNoEvent(t, 50*time.Millisecond)

		h.submitVotes(t, vote, 2)
		unittest.RequireReceiveBefore(t, h.events.notarized, time.Second, "expected notarization")

		cert := h.fixture.Certificate(t, vote, 0, 1, 2)
		h.pool.SubmitCertificate(cert)
		h.requireNoEvent(t, 50*time.Millisecond)
	})
}

// TestCertificateShortcut verifies that a single valid certificate
// notarizes a slot without any individual votes.
func TestCertificateShortcut(t *testing.T) {
	withHarness(t, 1, 0, nil, nil, func(h *harness) {
		id := unittest.CandidateIDFixture(0)
		cert := h.fixture.Certificate(t, simplex.NewNotarizeVote(id), 1, 2, 3)

		h.pool.SubmitCertificate(cert)
		observed := unittest.RequireReceiveBefore(t, h.events.notarized, time.Second, "expected notarization")
		require.Equal(t, cert.Vote, observed.Vote)
	})
}

// TestVoteForFinalizedSlotDropped verifies that votes for slots below
// the first non-finalized slot are discarded without events.
func TestVoteForFinalizedSlotDropped(t *testing.T) {
	withHarness(t, 1, 0, nil, nil, func(h *harness) {
		id := unittest.CandidateIDFixture(0)
		h.submitVotes(t, simplex.NewFinalizeVote(id), 0, 1, 2)
		unittest.RequireReceiveBefore(t, h.events.finalized, time.Second, "expected finalization")

		other := unittest.CandidateIDFixture(0)
		h.submitVotes(t, simplex.NewNotarizeVote(other), 0, 1, 2, 3)
		h.requireNoEvent(t, 50*time.Millisecond)
	})
}

// TestEquivocationDetected verifies that a validator submitting two
// conflicting notarize votes for the same slot triggers a misbehavior
// report, with only the first vote counting towards the tally.
func TestEquivocationDetected(t *testing.T) {
	withHarness(t, 1, 0, nil, nil, func(h *harness) {
		first := unittest.CandidateIDFixture(0)
		second := unittest.CandidateIDFixture(0)

		h.submitVotes(t, simplex.NewNotarizeVote(first), 0)
		h.submitVotes(t, simplex.NewNotarizeVote(second), 0)

		report := unittest.RequireReceiveBefore(t, h.events.misbehavior, time.Second, "expected misbehavior report")
		require.Equal(t, uint32(0), report.AccusedValidator)
		require.NotNil(t, report.ConflictingVotes)

		// the equivocating validator's first vote still counts
		h.submitVotes(t, simplex.NewNotarizeVote(first), 1, 2)
		cert := unittest.RequireReceiveBefore(t, h.events.notarized, time.Second, "expected notarization")
		require.Equal(t, first, cert.Vote.CandidateID())
	})
}

// TestInvalidVoteDropped verifies that a vote with a bad signature is
// discarded without affecting the tally.
func TestInvalidVoteDropped(t *testing.T) {
	withHarness(t, 1, 0, nil, nil, func(h *harness) {
		id := unittest.CandidateIDFixture(0)
		vote := simplex.NewNotarizeVote(id)

		forged := h.fixture.SignedVote(t, 3, vote)
		forged.Signature = unittest.SignatureFixture()
		h.pool.SubmitVote(forged)

		h.submitVotes(t, vote, 0, 1)
		h.requireNoEvent(t, 50*time.Millisecond)
	})
}

// TestConflictingQuorumsFatal verifies that two notarization quorums
// for different candidates in the same slot exceed the Byzantine
// weight bound and bring the pool down.
func TestConflictingQuorumsFatal(t *testing.T) {
	withHarness(t, 1, 0, nil, nil, func(h *harness) {
		certA := h.fixture.Certificate(t, simplex.NewNotarizeVote(unittest.CandidateIDFixture(0)), 0, 1, 2)
		certB := h.fixture.Certificate(t, simplex.NewNotarizeVote(unittest.CandidateIDFixture(0)), 1, 2, 3)

		h.pool.SubmitCertificate(certA)
		h.pool.SubmitCertificate(certB)

		err := unittest.RequireReceiveBefore(t, h.errChan, time.Second, "expected fatal error")
		require.True(t, simplex.IsByzantineThresholdExceededError(err))
	})
}

// TestSkipPropagatesBase verifies that a skipped slot hands its base
// through to the following slot, so a window after a skip range is
// announced with the base from before the range.
func TestSkipPropagatesBase(t *testing.T) {
	withHarness(t, 1, 0, nil, nil, func(h *harness) {
		// window 0 is announced at startup with the genesis base
		w0 := unittest.RequireReceiveBefore(t, h.events.windows, time.Second, "expected window 0")
		require.Equal(t, simplex.Slot(0), w0.start)
		require.Nil(t, w0.base)

		// slot 0 notarizes a candidate
		id := unittest.CandidateIDFixture(0)
		h.submitVotes(t, simplex.NewNotarizeVote(id), 0, 1, 2)
		w1 := unittest.RequireReceiveBefore(t, h.events.windows, time.Second, "expected window 1")
		require.Equal(t, simplex.Slot(1), w1.start)
		require.Equal(t, &id, w1.base)

		// slots 1 and 2 are skipped; their windows carry the slot 0 base
		h.submitVotes(t, simplex.NewSkipVote(1), 0, 1, 2)
		w2 := unittest.RequireReceiveBefore(t, h.events.windows, time.Second, "expected window 2")
		require.Equal(t, simplex.Slot(2), w2.start)
		require.Equal(t, &id, w2.base)

		h.submitVotes(t, simplex.NewSkipVote(2), 0, 1, 2)
		w3 := unittest.RequireReceiveBefore(t, h.events.windows, time.Second, "expected window 3")
		require.Equal(t, simplex.Slot(3), w3.start)
		require.Equal(t, &id, w3.base)
	})
}

// TestWindowsAnnouncedInOrder verifies that a window whose predecessor
// chain is not yet fully resolved is withheld, and announced only after
// the gap closes, in strict window order.
func TestWindowsAnnouncedInOrder(t *testing.T) {
	withHarness(t, 1, 0, nil, nil, func(h *harness) {
		w0 := unittest.RequireReceiveBefore(t, h.events.windows, time.Second, "expected window 0")
		require.Equal(t, simplex.Slot(0), w0.start)

		// slot 1 resolves before slot 0: window 1 must be withheld
		h.submitVotes(t, simplex.NewSkipVote(1), 0, 1, 2)
		select {
		case ev := <-h.events.windows:
			t.Fatalf("window %d announced out of order", ev.start)
		case <-time.After(50 * time.Millisecond):
		}

		// slot 0 resolves; windows 1 and 2 follow in order
		id := unittest.CandidateIDFixture(0)
		h.submitVotes(t, simplex.NewNotarizeVote(id), 0, 1, 2)
		w1 := unittest.RequireReceiveBefore(t, h.events.windows, time.Second, "expected window 1")
		require.Equal(t, simplex.Slot(1), w1.start)
		require.Equal(t, &id, w1.base)
		w2 := unittest.RequireReceiveBefore(t, h.events.windows, time.Second, "expected window 2")
		require.Equal(t, simplex.Slot(2), w2.start)
		require.Equal(t, &id, w2.base)
	})
}

// TestMultiSlotWindow verifies window announcement with a window size
// greater than one: the second window opens only after every slot of
// the first window is resolved.
func TestMultiSlotWindow(t *testing.T) {
	withHarness(t, 2, 0, nil, nil, func(h *harness) {
		w0 := unittest.RequireReceiveBefore(t, h.events.windows, time.Second, "expected window at slot 0")
		require.Equal(t, simplex.Slot(0), w0.start)

		id0 := unittest.CandidateIDFixture(0)
		h.submitVotes(t, simplex.NewNotarizeVote(id0), 0, 1, 2)
		select {
		case ev := <-h.events.windows:
			t.Fatalf("window %d announced before its predecessors resolved", ev.start)
		case <-time.After(50 * time.Millisecond):
		}

		id1 := unittest.CandidateIDFixture(1)
		h.submitVotes(t, simplex.NewNotarizeVote(id1), 0, 1, 2)
		w2 := unittest.RequireReceiveBefore(t, h.events.windows, time.Second, "expected window at slot 2")
		require.Equal(t, simplex.Slot(2), w2.start)
		require.Equal(t, &id1, w2.base)
	})
}

// TestAwaitParentResolved exercises the chain-resolution wait in its
// three outcomes: successful resolution once the parent is notarized
// and intervening slots are skipped, a misbehavior proof when the
// candidate conflicts with the certified chain, and an unresolved
// result when finalization has advanced past the candidate.
func TestAwaitParentResolved(t *testing.T) {
	t.Run("resolves after parent notarized", func(t *testing.T) {
		withHarness(t, 1, 0, nil, nil, func(h *harness) {
			parent := unittest.CandidateIDFixture(0)
			candidate := unittest.CandidateFixture(
				unittest.WithSlot(1),
				unittest.WithParent(&parent),
			)

			ch := h.pool.AwaitParentResolved(candidate)
			select {
			case <-ch:
				t.Fatal("wait resolved before parent was notarized")
			case <-time.After(50 * time.Millisecond):
			}

			h.submitVotes(t, simplex.NewNotarizeVote(parent), 0, 1, 2)
			res := unittest.RequireReceiveBefore(t, ch, time.Second, "expected resolution")
			require.True(t, res.Resolved)
			require.Nil(t, res.Misbehavior)
			require.Equal(t, &parent, res.Base)
		})
	})

	t.Run("resolves across skipped slots", func(t *testing.T) {
		withHarness(t, 1, 0, nil, nil, func(h *harness) {
			parent := unittest.CandidateIDFixture(0)
			candidate := unittest.CandidateFixture(
				unittest.WithSlot(3),
				unittest.WithParent(&parent),
			)

			h.submitVotes(t, simplex.NewNotarizeVote(parent), 0, 1, 2)
			h.submitVotes(t, simplex.NewSkipVote(1), 0, 1, 2)
			ch := h.pool.AwaitParentResolved(candidate)
			select {
			case <-ch:
				t.Fatal("wait resolved with slot 2 unresolved")
			case <-time.After(50 * time.Millisecond):
			}

			h.submitVotes(t, simplex.NewSkipVote(2), 0, 1, 2)
			res := unittest.RequireReceiveBefore(t, ch, time.Second, "expected resolution")
			require.True(t, res.Resolved)
			require.Equal(t, &parent, res.Base)
		})
	})

	t.Run("conflicting parent yields misbehavior proof", func(t *testing.T) {
		withHarness(t, 1, 0, nil, nil, func(h *harness) {
			notarized := unittest.CandidateIDFixture(0)
			h.submitVotes(t, simplex.NewNotarizeVote(notarized), 0, 1, 2)

			other := unittest.CandidateIDFixture(0)
			candidate := unittest.CandidateFixture(
				unittest.WithSlot(1),
				unittest.WithParent(&other),
			)

			res := unittest.RequireReceiveBefore(t, h.pool.AwaitParentResolved(candidate), time.Second, "expected resolution")
			require.False(t, res.Resolved)
			require.NotNil(t, res.Misbehavior)
			require.Equal(t, candidate.LeaderIndex, res.Misbehavior.AccusedValidator)
		})
	})

	t.Run("stale after finalization passes the slot", func(t *testing.T) {
		withHarness(t, 1, 0, nil, nil, func(h *harness) {
			id := unittest.CandidateIDFixture(0)
			h.submitVotes(t, simplex.NewFinalizeVote(id), 0, 1, 2)
			unittest.RequireReceiveBefore(t, h.events.finalized, time.Second, "expected finalization")

			candidate := unittest.CandidateFixture(unittest.WithSlot(0), unittest.WithParent(nil))
			res := unittest.RequireReceiveBefore(t, h.pool.AwaitParentResolved(candidate), time.Second, "expected resolution")
			require.False(t, res.Resolved)
			require.Nil(t, res.Misbehavior)
		})
	})

	t.Run("skip over finalized slot is misbehavior", func(t *testing.T) {
		withHarness(t, 1, 0, nil, nil, func(h *harness) {
			finalized := unittest.CandidateIDFixture(0)
			h.submitVotes(t, simplex.NewFinalizeVote(finalized), 0, 1, 2)
			unittest.RequireReceiveBefore(t, h.events.finalized, time.Second, "expected finalization")

			// the candidate claims a parent deeper than the most recent
			// finalization, skipping over the finalized slot
			stale := unittest.CandidateIDFixture(0)
			candidate := unittest.CandidateFixture(
				unittest.WithSlot(2),
				unittest.WithParent(&stale),
			)
			res := unittest.RequireReceiveBefore(t, h.pool.AwaitParentResolved(candidate), time.Second, "expected resolution")
			require.False(t, res.Resolved)
			require.NotNil(t, res.Misbehavior)
			require.Equal(t, candidate.LeaderIndex, res.Misbehavior.AccusedValidator)
		})
	})
}

// TestStandstillRebroadcast verifies that the local validator's own
// votes for unresolved slots are retransmitted when the standstill
// timer fires.
func TestStandstillRebroadcast(t *testing.T) {
	opts := []pool.Option{pool.WithStandstillInterval(50 * time.Millisecond)}
	withHarness(t, 1, 0, nil, opts, func(h *harness) {
		rebroadcast := make(chan *simplex.SignedVote, 10)
		h.conduit.On("Broadcast", mock.Anything).Run(func(args mock.Arguments) {
			if sv, ok := args.Get(0).(*simplex.SignedVote); ok {
				rebroadcast <- sv
			}
		}).Return(nil)

		// the local validator is index 0; its vote alone has no quorum
		vote := simplex.NewNotarizeVote(unittest.CandidateIDFixture(0))
		own := h.fixture.SignedVote(t, 0, vote)
		h.pool.SubmitVote(own)

		sv := unittest.RequireReceiveBefore(t, rebroadcast, time.Second, "expected rebroadcast")
		require.Equal(t, own.Vote, sv.Vote)
		require.Equal(t, uint32(0), sv.ValidatorIndex)
	})
}

// TestResumedSessionParentWait verifies that a pool constructed
// mid-chain treats the root base as the most recent finalization, so
// the first candidate building on it resolves cleanly while candidates
// claiming a different finalized-history parent yield a misbehavior
// proof.
func TestResumedSessionParentWait(t *testing.T) {
	t.Run("candidate on the root base resolves", func(t *testing.T) {
		rootBase := unittest.CandidateIDFixture(4)
		withHarness(t, 1, 5, &rootBase, nil, func(h *harness) {
			candidate := unittest.CandidateFixture(
				unittest.WithSlot(5),
				unittest.WithParent(&rootBase),
			)
			res := unittest.RequireReceiveBefore(t, h.pool.AwaitParentResolved(candidate), time.Second, "expected resolution")
			require.True(t, res.Resolved)
			require.Nil(t, res.Misbehavior)
			require.Equal(t, &rootBase, res.Base)
		})
	})

	t.Run("candidate conflicting with the root base is misbehavior", func(t *testing.T) {
		rootBase := unittest.CandidateIDFixture(4)
		withHarness(t, 1, 5, &rootBase, nil, func(h *harness) {
			other := unittest.CandidateIDFixture(4)
			candidate := unittest.CandidateFixture(
				unittest.WithSlot(5),
				unittest.WithParent(&other),
			)
			res := unittest.RequireReceiveBefore(t, h.pool.AwaitParentResolved(candidate), time.Second, "expected resolution")
			require.False(t, res.Resolved)
			require.NotNil(t, res.Misbehavior)
			require.Equal(t, candidate.LeaderIndex, res.Misbehavior.AccusedValidator)
		})
	})
}

// TestRootBase verifies that a session starting mid-chain announces its
// first window with the configured root base.
func TestRootBase(t *testing.T) {
	rootBase := unittest.CandidateIDFixture(4)
	withHarness(t, 1, 5, &rootBase, nil, func(h *harness) {
		w := unittest.RequireReceiveBefore(t, h.events.windows, time.Second, "expected root window")
		require.Equal(t, simplex.Slot(5), w.start)
		require.Equal(t, &rootBase, w.base)
		require.Equal(t, simplex.Slot(5), h.pool.FirstNonFinalizedSlot())
	})
}
