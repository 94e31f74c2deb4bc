package consensus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestComputeQCWeightThreshold tests computing the safety threshold
// for producing a quorum certificate.
func TestComputeQCWeightThreshold(t *testing.T) {
	// testing lowest values
	for i := 1; i <= 302; i++ {
		threshold := WeightThresholdToBuildQC(uint64(i))

		boundaryValue := float64(i) * 2.0 / 3.0
		assert.True(t, boundaryValue < float64(threshold))
		assert.False(t, boundaryValue < float64(threshold-1))
	}
}

// TestComputeHonestMajorityThreshold tests computing the weight bound
// above which at least one honest validator must have contributed.
func TestComputeHonestMajorityThreshold(t *testing.T) {
	// testing lowest values
	for i := 1; i <= 302; i++ {
		threshold := WeightThresholdForHonestMajority(uint64(i))

		boundaryValue := float64(i) * 1.0 / 3.0
		assert.True(t, boundaryValue < float64(threshold))
		assert.False(t, boundaryValue < float64(threshold-1))
	}
}
