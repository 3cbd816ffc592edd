package offramp

import (
	"math/big"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

var payoutTxId = strings.Repeat("ab", 32)

func lockEvent() *LockEvent {
	return &LockEvent{
		OfframpAddress: ethcommon.HexToAddress("0x3333333333333333333333333333333333333333"),
		EvmTxHash:      ethcommon.HexToHash("0x" + strings.Repeat("11", 32)),
		AmountLocked:   big.NewInt(100000),
		MaxFees:        big.NewInt(500),
		User:           ethcommon.HexToAddress("0xB8c77482e45F1F44dE1745F52C74426C631bDD52"),
		Token:          ethcommon.HexToAddress("0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599"),
		UserBtcAddress: "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4",
		SatoshisToGet:  99500,
	}
}

func TestNewFromLockEvent(t *testing.T) {
	ev := lockEvent()
	o, err := NewFromLockEvent(ev, &chaincfg.MainNetParams)
	assert.NoError(t, err)

	assert.NotEqual(t, "", o.RequestId.String())
	assert.Equal(t, ev.EvmTxHash, o.EvmTxHash)
	assert.Equal(t, ev.SatoshisToGet, o.SatoshisToGet)
	assert.Equal(t, ev.UserBtcAddress, o.UserBtcAddress)
	assert.False(t, o.Done)
	assert.Equal(t, PhaseLocked, o.Phase())
}

func TestNewFromLockEventValidation(t *testing.T) {
	ev := lockEvent()
	ev.AmountLocked = big.NewInt(0)
	_, err := NewFromLockEvent(ev, &chaincfg.MainNetParams)
	assert.ErrorIs(t, err, ErrInvalidLockAmount)

	ev = lockEvent()
	ev.AmountLocked = nil
	_, err = NewFromLockEvent(ev, &chaincfg.MainNetParams)
	assert.ErrorIs(t, err, ErrInvalidLockAmount)

	ev = lockEvent()
	ev.SatoshisToGet = 0
	_, err = NewFromLockEvent(ev, &chaincfg.MainNetParams)
	assert.ErrorIs(t, err, ErrInvalidLockAmount)

	ev = lockEvent()
	ev.EvmTxHash = ethcommon.Hash{}
	_, err = NewFromLockEvent(ev, &chaincfg.MainNetParams)
	assert.ErrorIs(t, err, ErrInvalidLockTxHash)

	ev = lockEvent()
	ev.UserBtcAddress = "not-a-btc-address"
	_, err = NewFromLockEvent(ev, &chaincfg.MainNetParams)
	assert.ErrorIs(t, err, ErrInvalidBtcAddress)

	// mainnet address on the wrong network
	ev = lockEvent()
	_, err = NewFromLockEvent(ev, &chaincfg.RegressionNetParams)
	assert.ErrorIs(t, err, ErrInvalidBtcAddress)
}

func TestRecordPayout(t *testing.T) {
	o, err := NewFromLockEvent(lockEvent(), &chaincfg.MainNetParams)
	assert.NoError(t, err)

	assert.ErrorIs(t, o.RecordPayout("zz"), ErrInvalidPayoutTxId)
	assert.Equal(t, PhaseLocked, o.Phase())

	assert.NoError(t, o.RecordPayout(payoutTxId))
	assert.Equal(t, PhasePayoutSubmitted, o.Phase())

	err = o.RecordPayout(strings.Repeat("cd", 32))
	assert.ErrorIs(t, err, ErrPayoutAlreadyRecorded)
	assert.Equal(t, payoutTxId, o.BtcTxHash)
}

func TestMarkPaidIfConfirmed(t *testing.T) {
	o, err := NewFromLockEvent(lockEvent(), &chaincfg.MainNetParams)
	assert.NoError(t, err)

	_, err = o.MarkPaidIfConfirmed(3, 6)
	assert.ErrorIs(t, err, ErrNoPayoutRecorded)

	assert.NoError(t, o.RecordPayout(payoutTxId))

	done, err := o.MarkPaidIfConfirmed(5, 6)
	assert.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, PhasePayoutSubmitted, o.Phase())

	done, err = o.MarkPaidIfConfirmed(6, 6)
	assert.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, PhasePaid, o.Phase())

	// stays done even if a later reading regresses
	done, err = o.MarkPaidIfConfirmed(0, 6)
	assert.NoError(t, err)
	assert.True(t, done)
}
