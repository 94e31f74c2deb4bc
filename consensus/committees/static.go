// Package committees provides Committee implementations. The static
// committee serves a single session: the validator table, weights and
// leader schedule are fixed at construction and never mutated, so the
// committee can be shared by reference across all components.
package committees

import (
	"fmt"

	"github.com/simplexbft/simplex-go/consensus"
	"github.com/simplexbft/simplex-go/model/simplex"
)

// Validator is one entry of the validator-set table.
type Validator struct {
	Weight uint64
	Key    consensus.PublicKey
}

// Static is a Committee for one session with a fixed validator set and
// a round-robin leader schedule over leader windows: the leader of slot
// s is validator (s / windowSize) mod n, so each leader owns a
// contiguous window of windowSize slots.
type Static struct {
	sessionID   simplex.Identifier
	validators  []Validator
	totalWeight uint64
	threshold   uint64
	windowSize  uint64
	self        uint32
}

var _ consensus.Committee = (*Static)(nil)

// NewStatic instantiates a static committee.
func NewStatic(sessionID simplex.Identifier, validators []Validator, windowSize uint64, self uint32) (*Static, error) {
	if len(validators) == 0 {
		return nil, fmt.Errorf("validator set must not be empty")
	}
	if windowSize == 0 {
		return nil, fmt.Errorf("leader window size must be positive")
	}
	if int(self) >= len(validators) {
		return nil, fmt.Errorf("local validator index %d out of range [0, %d)", self, len(validators))
	}
	var total uint64
	for i, v := range validators {
		if v.Weight == 0 {
			return nil, fmt.Errorf("validator %d has zero weight", i)
		}
		if v.Key == nil {
			return nil, fmt.Errorf("validator %d has no public key", i)
		}
		total += v.Weight
	}
	return &Static{
		sessionID:   sessionID,
		validators:  validators,
		totalWeight: total,
		threshold:   consensus.WeightThresholdToBuildQC(total),
		windowSize:  windowSize,
		self:        self,
	}, nil
}

func (s *Static) SessionID() simplex.Identifier { return s.sessionID }
func (s *Static) Size() int                     { return len(s.validators) }
func (s *Static) TotalWeight() uint64           { return s.totalWeight }
func (s *Static) QuorumThreshold() uint64       { return s.threshold }
func (s *Static) WindowSize() uint64            { return s.windowSize }
func (s *Static) Self() uint32                  { return s.self }

func (s *Static) WeightOf(index uint32) (uint64, error) {
	if int(index) >= len(s.validators) {
		return 0, simplex.NewInvalidSignerErrorf("validator index %d out of range [0, %d)", index, len(s.validators))
	}
	return s.validators[index].Weight, nil
}

func (s *Static) KeyOf(index uint32) (consensus.PublicKey, error) {
	if int(index) >= len(s.validators) {
		return nil, simplex.NewInvalidSignerErrorf("validator index %d out of range [0, %d)", index, len(s.validators))
	}
	return s.validators[index].Key, nil
}

func (s *Static) LeaderForSlot(slot simplex.Slot) uint32 {
	window := uint64(slot) / s.windowSize
	return uint32(window % uint64(len(s.validators)))
}
