package committees_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simplexbft/simplex-go/model/simplex"
	"github.com/simplexbft/simplex-go/utils/unittest"
)

func TestStaticCommittee(t *testing.T) {
	fixture := unittest.NewCommitteeFixture(t, 4, 2)
	committee := fixture.Committee(t, 1)

	assert.Equal(t, 4, committee.Size())
	assert.Equal(t, uint64(4), committee.TotalWeight())
	// quorum is floor(2*4/3)+1 = 3
	assert.Equal(t, uint64(3), committee.QuorumThreshold())
	assert.Equal(t, uint32(1), committee.Self())
	assert.Equal(t, uint64(2), committee.WindowSize())
}

func TestStaticLeaderSchedule(t *testing.T) {
	fixture := unittest.NewCommitteeFixture(t, 3, 2)
	committee := fixture.Committee(t, 0)

	// each leader owns a contiguous window of two slots, round robin
	expected := map[simplex.Slot]uint32{
		0: 0, 1: 0,
		2: 1, 3: 1,
		4: 2, 5: 2,
		6: 0, 7: 0,
	}
	for slot, leader := range expected {
		assert.Equal(t, leader, committee.LeaderForSlot(slot), "slot %d", slot)
	}
}

func TestStaticOutOfRange(t *testing.T) {
	fixture := unittest.NewCommitteeFixture(t, 3, 1)
	committee := fixture.Committee(t, 0)

	_, err := committee.WeightOf(3)
	require.Error(t, err)
	assert.True(t, simplex.IsInvalidSignerError(err))

	_, err = committee.KeyOf(3)
	require.Error(t, err)
	assert.True(t, simplex.IsInvalidSignerError(err))

	weight, err := committee.WeightOf(2)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), weight)
}
