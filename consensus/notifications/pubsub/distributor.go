// Package pubsub implements the shared event bus of the consensus
// core: a Distributor fans every event out to all subscribed consumers.
// Components never call each other directly; they publish to and
// subscribe on a Distributor shared at construction time.
package pubsub

import (
	"sync"

	"github.com/simplexbft/simplex-go/consensus"
	"github.com/simplexbft/simplex-go/model/simplex"
)

// OnNotarizationObservedConsumer is a callback subscription for
// notarization events.
type OnNotarizationObservedConsumer = func(cert *simplex.Certificate)

// OnFinalizationObservedConsumer is a callback subscription for
// finalization events.
type OnFinalizationObservedConsumer = func(cert *simplex.Certificate)

// OnLeaderWindowObservedConsumer is a callback subscription for
// leader-window events.
type OnLeaderWindowObservedConsumer = func(windowStart simplex.Slot, base *simplex.CandidateID)

// OnOwnVoteCastConsumer is a callback subscription for votes cast by
// the local validator.
type OnOwnVoteCastConsumer = func(sv *simplex.SignedVote)

// OnCandidateResolvedConsumer is a callback subscription for completed
// candidate resolutions.
type OnCandidateResolvedConsumer = func(cc *simplex.CertifiedCandidate)

// Distributor distributes consensus events to all subscribed consumers.
// Concurrency safe.
type Distributor struct {
	consumers                  []consensus.Consumer
	notarizationConsumers      []OnNotarizationObservedConsumer
	finalizationConsumers      []OnFinalizationObservedConsumer
	leaderWindowConsumers      []OnLeaderWindowObservedConsumer
	ownVoteConsumers           []OnOwnVoteCastConsumer
	candidateResolvedConsumers []OnCandidateResolvedConsumer
	lock                       sync.RWMutex
}

var _ consensus.Consumer = (*Distributor)(nil)

// NewDistributor instantiates an empty Distributor.
func NewDistributor() *Distributor {
	return &Distributor{}
}

// AddConsumer subscribes a full consumer for all events.
func (d *Distributor) AddConsumer(consumer consensus.Consumer) {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.consumers = append(d.consumers, consumer)
}

// AddOnNotarizationObservedConsumer subscribes a callback for
// notarization events only.
func (d *Distributor) AddOnNotarizationObservedConsumer(consumer OnNotarizationObservedConsumer) {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.notarizationConsumers = append(d.notarizationConsumers, consumer)
}

// AddOnFinalizationObservedConsumer subscribes a callback for
// finalization events only.
func (d *Distributor) AddOnFinalizationObservedConsumer(consumer OnFinalizationObservedConsumer) {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.finalizationConsumers = append(d.finalizationConsumers, consumer)
}

// AddOnLeaderWindowObservedConsumer subscribes a callback for
// leader-window events only.
func (d *Distributor) AddOnLeaderWindowObservedConsumer(consumer OnLeaderWindowObservedConsumer) {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.leaderWindowConsumers = append(d.leaderWindowConsumers, consumer)
}

// AddOnOwnVoteCastConsumer subscribes a callback for own-vote events
// only.
func (d *Distributor) AddOnOwnVoteCastConsumer(consumer OnOwnVoteCastConsumer) {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.ownVoteConsumers = append(d.ownVoteConsumers, consumer)
}

// AddOnCandidateResolvedConsumer subscribes a callback for completed
// resolutions only.
func (d *Distributor) AddOnCandidateResolvedConsumer(consumer OnCandidateResolvedConsumer) {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.candidateResolvedConsumers = append(d.candidateResolvedConsumers, consumer)
}

func (d *Distributor) OnNotarizationObserved(cert *simplex.Certificate) {
	d.lock.RLock()
	defer d.lock.RUnlock()
	for _, consumer := range d.consumers {
		consumer.OnNotarizationObserved(cert)
	}
	for _, consumer := range d.notarizationConsumers {
		consumer(cert)
	}
}

func (d *Distributor) OnFinalizationObserved(cert *simplex.Certificate) {
	d.lock.RLock()
	defer d.lock.RUnlock()
	for _, consumer := range d.consumers {
		consumer.OnFinalizationObserved(cert)
	}
	for _, consumer := range d.finalizationConsumers {
		consumer(cert)
	}
}

func (d *Distributor) OnLeaderWindowObserved(windowStart simplex.Slot, base *simplex.CandidateID) {
	d.lock.RLock()
	defer d.lock.RUnlock()
	for _, consumer := range d.consumers {
		consumer.OnLeaderWindowObserved(windowStart, base)
	}
	for _, consumer := range d.leaderWindowConsumers {
		consumer(windowStart, base)
	}
}

func (d *Distributor) OnMisbehaviorDetected(report *simplex.MisbehaviorReport) {
	d.lock.RLock()
	defer d.lock.RUnlock()
	for _, consumer := range d.consumers {
		consumer.OnMisbehaviorDetected(report)
	}
}

func (d *Distributor) OnOwnVoteCast(sv *simplex.SignedVote) {
	d.lock.RLock()
	defer d.lock.RUnlock()
	for _, consumer := range d.consumers {
		consumer.OnOwnVoteCast(sv)
	}
	for _, consumer := range d.ownVoteConsumers {
		consumer(sv)
	}
}

func (d *Distributor) OnCandidateResolved(cc *simplex.CertifiedCandidate) {
	d.lock.RLock()
	defer d.lock.RUnlock()
	for _, consumer := range d.consumers {
		consumer.OnCandidateResolved(cc)
	}
	for _, consumer := range d.candidateResolvedConsumers {
		consumer(cc)
	}
}
