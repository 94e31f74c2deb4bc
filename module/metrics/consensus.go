// Package metrics implements the metrics interfaces of the consensus
// core on prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/simplexbft/simplex-go/model/simplex"
	"github.com/simplexbft/simplex-go/module"
)

// ConsensusCollector implements module.ConsensusMetrics on prometheus.
type ConsensusCollector struct {
	votesProcessed      *prometheus.CounterVec
	inboundQueueLength  *prometheus.GaugeVec
	misbehaviorReports  prometheus.Counter
	notarizedSlot       prometheus.Gauge
	finalizedSlot       prometheus.Gauge
	resolutionsInFlight prometheus.Gauge
	resolutionRetries   prometheus.Counter
}

var _ module.ConsensusMetrics = (*ConsensusCollector)(nil)

// NewConsensusCollector creates a consensus collector and registers its
// meters with the given registerer.
func NewConsensusCollector(registerer prometheus.Registerer) *ConsensusCollector {
	votesProcessed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespaceConsensus,
		Subsystem: subsystemPool,
		Name:      "votes_processed_total",
		Help:      "the number of votes applied to the slot state, by vote kind",
	}, []string{"kind"})
	inboundQueueLength := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespaceConsensus,
		Subsystem: subsystemQueue,
		Name:      "inbound_length",
		Help:      "the current length of a component's inbound message queue",
	}, []string{"component"})
	misbehaviorReports := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespaceConsensus,
		Subsystem: subsystemPool,
		Name:      "misbehavior_reports_total",
		Help:      "the number of emitted misbehavior reports",
	})
	notarizedSlot := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespaceConsensus,
		Subsystem: subsystemPool,
		Name:      "notarized_slot",
		Help:      "the highest notarized slot",
	})
	finalizedSlot := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespaceConsensus,
		Subsystem: subsystemPool,
		Name:      "finalized_slot",
		Help:      "the highest finalized slot",
	})
	resolutionsInFlight := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespaceConsensus,
		Subsystem: subsystemResolver,
		Name:      "resolutions_in_flight",
		Help:      "the number of candidate resolutions currently in flight",
	})
	resolutionRetries := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespaceConsensus,
		Subsystem: subsystemResolver,
		Name:      "resolution_retries_total",
		Help:      "the number of resolver retry round trips",
	})
	registerer.MustRegister(
		votesProcessed,
		inboundQueueLength,
		misbehaviorReports,
		notarizedSlot,
		finalizedSlot,
		resolutionsInFlight,
		resolutionRetries,
	)

	return &ConsensusCollector{
		votesProcessed:      votesProcessed,
		inboundQueueLength:  inboundQueueLength,
		misbehaviorReports:  misbehaviorReports,
		notarizedSlot:       notarizedSlot,
		finalizedSlot:       finalizedSlot,
		resolutionsInFlight: resolutionsInFlight,
		resolutionRetries:   resolutionRetries,
	}
}

func (cc *ConsensusCollector) VoteProcessed(kind simplex.VoteKind) {
	cc.votesProcessed.WithLabelValues(kind.String()).Inc()
}

func (cc *ConsensusCollector) InboundQueueLength(component string, length uint) {
	cc.inboundQueueLength.WithLabelValues(component).Set(float64(length))
}

func (cc *ConsensusCollector) MisbehaviorReported() {
	cc.misbehaviorReports.Inc()
}

func (cc *ConsensusCollector) SlotNotarized(slot simplex.Slot) {
	cc.notarizedSlot.Set(float64(slot))
}

func (cc *ConsensusCollector) SlotFinalized(slot simplex.Slot) {
	cc.finalizedSlot.Set(float64(slot))
}

func (cc *ConsensusCollector) ResolutionStarted() {
	cc.resolutionsInFlight.Inc()
}

func (cc *ConsensusCollector) ResolutionCompleted() {
	cc.resolutionsInFlight.Dec()
}

func (cc *ConsensusCollector) ResolutionRetried() {
	cc.resolutionRetries.Inc()
}
