package metrics

import (
	"github.com/simplexbft/simplex-go/model/simplex"
)

// NoopCollector discards all metrics. Used in tests and in processes
// that do not expose a metrics endpoint.
type NoopCollector struct{}

func NewNoopCollector() *NoopCollector {
	return &NoopCollector{}
}

func (nc *NoopCollector) VoteProcessed(kind simplex.VoteKind)              {}
func (nc *NoopCollector) InboundQueueLength(component string, length uint) {}
func (nc *NoopCollector) MisbehaviorReported()                             {}
func (nc *NoopCollector) SlotNotarized(slot simplex.Slot)                  {}
func (nc *NoopCollector) SlotFinalized(slot simplex.Slot)                  {}
func (nc *NoopCollector) ResolutionStarted()                               {}
func (nc *NoopCollector) ResolutionCompleted()                             {}
func (nc *NoopCollector) ResolutionRetried()                               {}
