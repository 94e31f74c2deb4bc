package metrics

// Prometheus metric namespaces of the consensus core.
const (
	namespaceConsensus = "consensus"

	subsystemPool     = "pool"
	subsystemResolver = "resolver"
	subsystemQueue    = "queue"
)
