package order

import (
	"math/rand"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"

	"github.com/bob-collective/gateway-go/common"
)

func TestCommitmentDeterministic(t *testing.T) {
	gateway := common.RandEvmAddress()
	user := common.RandEvmAddress()
	strategy := common.RandEvmAddress()

	h1 := Commitment(gateway, &strategy, 1000, user, nil, nil, 50000)
	h2 := Commitment(gateway, &strategy, 1000, user, nil, nil, 50000)
	assert.Equal(t, h1, h2)
}

func TestCommitmentDistinguishesEveryField(t *testing.T) {
	gateway := common.RandEvmAddress()
	user := common.RandEvmAddress()
	strategy := common.RandEvmAddress()
	base := Commitment(gateway, &strategy, 1000, user, nil, nil, 50000)

	variants := []ethcommon.Hash{
		Commitment(common.RandEvmAddress(), &strategy, 1000, user, nil, nil, 50000),
		Commitment(gateway, nil, 1000, user, nil, nil, 50000),
		Commitment(gateway, &strategy, 1001, user, nil, nil, 50000),
		Commitment(gateway, &strategy, 1000, common.RandEvmAddress(), nil, nil, 50000),
		Commitment(gateway, &strategy, 1000, user, []byte{0x01}, nil, 50000),
		Commitment(gateway, &strategy, 1000, user, nil, []byte{0x01}, 50000),
		Commitment(gateway, &strategy, 1000, user, nil, nil, 50001),
	}
	for i, v := range variants {
		assert.NotEqual(t, base, v, "variant %d collided", i)
	}
}

// A nil strategy must not look like the zero address.
func TestCommitmentStrategyPresence(t *testing.T) {
	gateway := common.RandEvmAddress()
	user := common.RandEvmAddress()
	zero := ethcommon.Address{}

	withNone := Commitment(gateway, nil, 0, user, nil, nil, 50000)
	withZero := Commitment(gateway, &zero, 0, user, nil, nil, 50000)
	assert.NotEqual(t, withNone, withZero)
}

// The extra-data fields are length prefixed, so shifting bytes between them
// must change the hash.
func TestCommitmentExtraDataFraming(t *testing.T) {
	gateway := common.RandEvmAddress()
	user := common.RandEvmAddress()

	a := Commitment(gateway, nil, 0, user, []byte{0x01, 0x02}, nil, 50000)
	b := Commitment(gateway, nil, 0, user, []byte{0x01}, []byte{0x02}, 50000)
	assert.NotEqual(t, a, b)
}

func TestCommitmentUniqueOverRandomTuples(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	seen := make(map[ethcommon.Hash]bool)

	for i := 0; i < 500; i++ {
		gateway := common.RandEvmAddress()
		user := common.RandEvmAddress()
		var strategy *ethcommon.Address
		if rng.Intn(2) == 0 {
			s := common.RandEvmAddress()
			strategy = &s
		}
		h := Commitment(gateway, strategy, rng.Int63n(1_000_000), user, nil, nil, rng.Int63n(21_000_000*1e8)+1)
		assert.False(t, seen[h], "commitment collision at tuple %d", i)
		seen[h] = true
	}
}
