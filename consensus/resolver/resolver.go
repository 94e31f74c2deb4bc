// Package resolver backfills candidates and notarization certificates
// from peers. A resolution round-trips to one random peer at a time,
// merges whatever parts the peer held, and retries with growing
// timeouts until both the candidate and its certificate are locally
// available and verified. Completed resolutions are persisted, so a
// restart resumes from durable state instead of re-fetching.
//
// The resolver answers incoming requests of the same shape from local
// storage only; it never queries peers on another peer's behalf.
package resolver

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/simplexbft/simplex-go/consensus"
	"github.com/simplexbft/simplex-go/model/messages"
	"github.com/simplexbft/simplex-go/model/simplex"
	"github.com/simplexbft/simplex-go/module"
	"github.com/simplexbft/simplex-go/module/component"
	"github.com/simplexbft/simplex-go/module/irrecoverable"
	"github.com/simplexbft/simplex-go/network"
	"github.com/simplexbft/simplex-go/storage"
)

// defaultRetryBase is the initial delay between resolution attempts and
// the initial per-request timeout.
const defaultRetryBase = 500 * time.Millisecond

// defaultRetryCap bounds the growth of retry delays and request
// timeouts.
const defaultRetryCap = 10 * time.Second

// flight is one in-flight resolution shared by all concurrent callers
// for the same candidate ID.
type flight struct {
	done chan struct{}
	cc   *simplex.CertifiedCandidate
	err  error
}

// Resolver implements consensus.Resolver and serves peer requests on
// the candidate-resolution channel.
type Resolver struct {
	*component.ComponentManager

	log          zerolog.Logger
	metrics      module.ConsensusMetrics
	committee    consensus.Committee
	verifier     consensus.Verifier
	notifier     consensus.Consumer
	candidates   storage.Candidates
	certificates storage.Certificates
	conduit      network.Conduit

	retryBase time.Duration
	retryCap  time.Duration

	mu       sync.Mutex
	flights  map[simplex.CandidateID]*flight
	resolved map[simplex.CandidateID]*simplex.CertifiedCandidate
	rng      *rand.Rand

	// runCtx is the component lifecycle context; in-flight resolutions
	// are bound to it rather than to an individual caller's context, so
	// one caller cancelling does not fail the other waiters.
	runCtx   irrecoverable.SignalerContext
	runReady chan struct{}
}

var _ consensus.Resolver = (*Resolver)(nil)
var _ network.MessageProcessor = (*Resolver)(nil)

// Option customizes resolver construction.
type Option func(*Resolver)

// WithRetryBase overrides the initial retry delay and request timeout.
func WithRetryBase(base time.Duration) Option {
	return func(r *Resolver) {
		r.retryBase = base
	}
}

// WithRetryCap overrides the upper bound on retry delays and request
// timeouts.
func WithRetryCap(cap time.Duration) Option {
	return func(r *Resolver) {
		r.retryCap = cap
	}
}

// New instantiates a resolver and registers it as the processor of the
// candidate-resolution channel.
func New(
	log zerolog.Logger,
	metrics module.ConsensusMetrics,
	committee consensus.Committee,
	verifier consensus.Verifier,
	notifier consensus.Consumer,
	candidates storage.Candidates,
	certificates storage.Certificates,
	net network.Network,
	opts ...Option,
) (*Resolver, error) {
	r := &Resolver{
		log:          log.With().Str("component", "resolver").Logger(),
		metrics:      metrics,
		committee:    committee,
		verifier:     verifier,
		notifier:     notifier,
		candidates:   candidates,
		certificates: certificates,
		retryBase:    defaultRetryBase,
		retryCap:     defaultRetryCap,
		flights:      make(map[simplex.CandidateID]*flight),
		resolved:     make(map[simplex.CandidateID]*simplex.CertifiedCandidate),
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
		runReady:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}

	conduit, err := net.Register(network.CandidateResolution, r)
	if err != nil {
		return nil, fmt.Errorf("could not register on resolution channel: %w", err)
	}
	r.conduit = conduit

	r.ComponentManager = component.NewComponentManagerBuilder().
		AddWorker(r.run).
		Build()

	return r, nil
}

// run restores the resolved set from durable storage, then parks until
// shutdown. In-flight resolutions borrow its context.
func (r *Resolver) run(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
	r.runCtx = ctx
	close(r.runReady)

	err := r.restore()
	if err != nil {
		ctx.Throw(fmt.Errorf("could not restore resolver state: %w", err))
	}

	ready()
	<-ctx.Done()
}

// restore rebuilds the resolved set from durable storage: every stored
// certificate whose candidate is also stored is a completed resolution
// that must not be fetched again.
func (r *Resolver) restore() error {
	count := 0
	err := r.certificates.Traverse(0, func(cert *simplex.Certificate) error {
		id := cert.Vote.CandidateID()
		candidate, err := r.candidates.ByID(id)
		if err != nil {
			if storage.IsNotFound(err) {
				return nil
			}
			return fmt.Errorf("could not look up candidate %v: %w", id, err)
		}
		cc, err := simplex.NewCertifiedCandidate(candidate, cert)
		if err != nil {
			return fmt.Errorf("stored candidate/certificate pair for %v is inconsistent: %w", id, err)
		}
		r.mu.Lock()
		r.resolved[id] = cc
		r.mu.Unlock()
		count++
		return nil
	})
	if err != nil {
		return err
	}
	if count > 0 {
		r.log.Info().Int("resolutions", count).Msg("restored completed resolutions from storage")
	}
	return nil
}

// Resolve returns the candidate with the given ID together with a
// verified notarization certificate. Concurrent callers for the same ID
// share one in-flight fetch loop and one result.
func (r *Resolver) Resolve(ctx context.Context, id simplex.CandidateID) (*simplex.CertifiedCandidate, error) {
	r.mu.Lock()
	if cc, ok := r.resolved[id]; ok {
		r.mu.Unlock()
		return cc, nil
	}
	if fl, ok := r.flights[id]; ok {
		r.mu.Unlock()
		return r.await(ctx, fl)
	}
	fl := &flight{done: make(chan struct{})}
	r.flights[id] = fl
	r.mu.Unlock()

	go r.fetch(id, fl)

	return r.await(ctx, fl)
}

// await blocks until the flight completes or the caller's context is
// cancelled. Cancellation abandons the wait, not the flight.
func (r *Resolver) await(ctx context.Context, fl *flight) (*simplex.CertifiedCandidate, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-fl.done:
		return fl.cc, fl.err
	}
}

// fetch drives one resolution to completion: load what is already
// durable, then round-trip to random peers until both parts are held,
// verified and persisted.
func (r *Resolver) fetch(id simplex.CandidateID, fl *flight) {
	// the component must have started; its context scopes the fetch
	<-r.runReady
	ctx := r.runCtx

	r.metrics.ResolutionStarted()
	cc, err := r.fetchLoop(ctx, id)

	r.mu.Lock()
	if err == nil {
		r.resolved[id] = cc
	}
	delete(r.flights, id)
	fl.cc, fl.err = cc, err
	r.mu.Unlock()
	close(fl.done)

	if err != nil {
		// in-flight resolutions are abandoned on shutdown without
		// marking their targets unresolved; a restart resumes from
		// whatever parts became durable
		r.log.Debug().Err(err).
			Uint64("slot", uint64(id.Slot)).
			Msg("resolution abandoned")
		return
	}
	r.metrics.ResolutionCompleted()
	r.notifier.OnCandidateResolved(cc)
}

func (r *Resolver) fetchLoop(ctx context.Context, id simplex.CandidateID) (*simplex.CertifiedCandidate, error) {
	candidate, cert, err := r.loadLocal(id)
	if err != nil {
		return nil, err
	}

	requestTimeout := r.retryBase
	backoff := retry.WithCappedDuration(r.retryCap, retry.NewExponential(r.retryBase))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if candidate != nil && cert != nil {
			return nil
		}

		target := r.randomPeer()
		req := &messages.CandidateRequest{
			CandidateID:     id,
			WantCandidate:   candidate == nil,
			WantCertificate: cert == nil,
			Nonce:           r.randomNonce(),
		}
		resp, err := r.conduit.Request(ctx, target, req, requestTimeout)
		requestTimeout = growCapped(requestTimeout, r.retryCap)
		if err != nil {
			r.metrics.ResolutionRetried()
			return retry.RetryableError(fmt.Errorf("request to %d failed: %w", target, err))
		}

		response, ok := resp.(*messages.CandidateResponse)
		if !ok {
			r.metrics.ResolutionRetried()
			return retry.RetryableError(fmt.Errorf("unexpected response type %T from %d", resp, target))
		}

		candidate, cert = r.merge(id, target, response, candidate, cert)
		if candidate == nil || cert == nil {
			r.metrics.ResolutionRetried()
			return retry.RetryableError(fmt.Errorf("resolution of %v still incomplete", id))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	cc, err := simplex.NewCertifiedCandidate(candidate, cert)
	if err != nil {
		return nil, fmt.Errorf("resolved candidate/certificate pair for %v is inconsistent: %w", id, err)
	}
	return cc, nil
}

// loadLocal returns whatever parts of the resolution are already
// durable. Either part may be nil.
func (r *Resolver) loadLocal(id simplex.CandidateID) (*simplex.Candidate, *simplex.Certificate, error) {
	candidate, err := r.candidates.ByID(id)
	if err != nil && !storage.IsNotFound(err) {
		return nil, nil, fmt.Errorf("could not load candidate: %w", err)
	}
	cert, err := r.certificates.ByCandidateID(id)
	if err != nil && !storage.IsNotFound(err) {
		return nil, nil, fmt.Errorf("could not load certificate: %w", err)
	}
	return candidate, cert, nil
}

// merge verifies and persists the parts carried by one peer response.
// Invalid parts are dropped; a peer claiming ignorance is not at fault.
func (r *Resolver) merge(
	id simplex.CandidateID,
	origin uint32,
	response *messages.CandidateResponse,
	candidate *simplex.Candidate,
	cert *simplex.Certificate,
) (*simplex.Candidate, *simplex.Certificate) {

	if candidate == nil && len(response.Candidate) > 0 {
		decoded, err := simplex.DecodeCandidate(response.Candidate)
		if err != nil {
			r.log.Warn().Err(err).Uint32("origin", origin).Msg("peer sent undecodable candidate")
		} else if decoded.ID() != id {
			r.log.Warn().Uint32("origin", origin).Msg("peer sent candidate with mismatching ID")
		} else if err := r.candidates.Store(decoded); err != nil {
			r.log.Err(err).Msg("could not persist resolved candidate")
		} else {
			candidate = decoded
		}
	}

	if cert == nil && len(response.Certificate) > 0 {
		decoded, err := simplex.DecodeCertificate(response.Certificate)
		switch {
		case err != nil:
			r.log.Warn().Err(err).Uint32("origin", origin).Msg("peer sent undecodable certificate")
		case decoded.Vote.Kind != simplex.VoteNotarize || decoded.Vote.CandidateID() != id:
			r.log.Warn().Uint32("origin", origin).Msg("peer sent certificate for wrong vote")
		default:
			if err := r.verifier.VerifyCertificate(decoded); err != nil {
				r.log.Warn().Err(err).Uint32("origin", origin).Msg("peer sent invalid certificate")
				break
			}
			if err := r.certificates.Store(decoded); err != nil {
				r.log.Err(err).Msg("could not persist resolved certificate")
				break
			}
			cert = decoded
		}
	}

	return candidate, cert
}

// randomPeer picks a uniformly random validator index excluding the
// local one.
func (r *Resolver) randomPeer() uint32 {
	self := r.committee.Self()
	n := uint32(r.committee.Size())
	if n <= 1 {
		return self
	}

	r.mu.Lock()
	pick := uint32(r.rng.Intn(int(n - 1)))
	r.mu.Unlock()

	if pick >= self {
		pick++
	}
	return pick
}

func (r *Resolver) randomNonce() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Uint64()
}

// Process answers peer requests on the candidate-resolution channel
// from local storage only. Unknown parts are omitted from the response,
// never fetched on the requester's behalf.
func (r *Resolver) Process(channel network.Channel, origin uint32, event interface{}) error {
	req, ok := event.(*messages.CandidateRequest)
	if !ok {
		return fmt.Errorf("unexpected event type %T on channel %s", event, channel)
	}

	response := &messages.CandidateResponse{Nonce: req.Nonce}

	if req.WantCandidate {
		candidate, err := r.candidates.ByID(req.CandidateID)
		if err == nil {
			data, err := simplex.EncodeCandidate(candidate)
			if err != nil {
				return fmt.Errorf("could not encode stored candidate: %w", err)
			}
			response.Candidate = data
		} else if !storage.IsNotFound(err) {
			return fmt.Errorf("could not load candidate: %w", err)
		}
	}

	if req.WantCertificate {
		cert, err := r.certificates.ByCandidateID(req.CandidateID)
		if err == nil {
			data, err := simplex.EncodeCertificate(cert)
			if err != nil {
				return fmt.Errorf("could not encode stored certificate: %w", err)
			}
			response.Certificate = data
		} else if !storage.IsNotFound(err) {
			return fmt.Errorf("could not load certificate: %w", err)
		}
	}

	err := r.conduit.Unicast(origin, response)
	if err != nil {
		return fmt.Errorf("could not respond to candidate request: %w", err)
	}
	return nil
}

// growCapped doubles a duration up to the given cap.
func growCapped(d time.Duration, cap time.Duration) time.Duration {
	d *= 2
	if d > cap {
		return cap
	}
	return d
}
