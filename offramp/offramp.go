// Package offramp tracks the reverse direction: tokens locked on the EVM
// chain, bitcoin paid out to the user. Completion is confirmation-gated the
// same way on-ramp settlement is.
package offramp

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/bob-collective/gateway-go/common"
)

var (
	ErrInvalidLockAmount     = errors.New("invalid locked amount")
	ErrInvalidLockTxHash     = errors.New("invalid evm lock tx hash")
	ErrInvalidBtcAddress     = errors.New("invalid user btc address")
	ErrInvalidPayoutTxId     = errors.New("invalid btc payout tx id")
	ErrPayoutAlreadyRecorded = errors.New("btc payout already recorded")
	ErrNoPayoutRecorded      = errors.New("no btc payout recorded yet")
)

// Phase is the off-ramp completion state. There is no failure terminal: a
// stuck order stays short of Paid until someone intervenes.
type Phase string

const (
	PhaseLocked          Phase = "locked"           // evm lock observed, nothing paid yet
	PhasePayoutSubmitted Phase = "payout_submitted" // btc payout tx broadcast
	PhasePaid            Phase = "paid"             // payout confirmed, done
)

// LockEvent is the EVM-side lock observation that opens an off-ramp order.
type LockEvent struct {
	OfframpAddress ethcommon.Address
	EvmTxHash      ethcommon.Hash
	AmountLocked   *big.Int
	MaxFees        *big.Int
	User           ethcommon.Address
	Token          ethcommon.Address
	UserBtcAddress string
	SatoshisToGet  int64
}

// Order is one off-ramp request: the btc payout owed to a user.
type Order struct {
	RequestId      uuid.UUID
	OfframpAddress ethcommon.Address
	SatoshisToGet  int64
	EvmTxHash      ethcommon.Hash
	BtcTxHash      string // empty until the payout is broadcast
	Timestamp      time.Time
	Done           bool
	UserAddress    ethcommon.Address
	UserBtcAddress string
	AmountLocked   *big.Int
	MaxFees        *big.Int
	Token          ethcommon.Address
}

// NewFromLockEvent registers an off-ramp order from an observed lock.
func NewFromLockEvent(ev *LockEvent, btcParams *chaincfg.Params) (*Order, error) {
	if ev.AmountLocked == nil || ev.AmountLocked.Sign() <= 0 {
		return nil, ErrInvalidLockAmount
	}
	if ev.SatoshisToGet <= 0 {
		return nil, fmt.Errorf("%w: satoshis to get %d", ErrInvalidLockAmount, ev.SatoshisToGet)
	}
	if ev.EvmTxHash == (ethcommon.Hash{}) {
		return nil, ErrInvalidLockTxHash
	}
	if !common.IsValidBtcAddress(ev.UserBtcAddress, btcParams) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBtcAddress, ev.UserBtcAddress)
	}

	maxFees := big.NewInt(0)
	if ev.MaxFees != nil {
		maxFees = new(big.Int).Set(ev.MaxFees)
	}

	return &Order{
		RequestId:      uuid.New(),
		OfframpAddress: ev.OfframpAddress,
		SatoshisToGet:  ev.SatoshisToGet,
		EvmTxHash:      ev.EvmTxHash,
		Timestamp:      time.Now().UTC(),
		UserAddress:    ev.User,
		UserBtcAddress: ev.UserBtcAddress,
		AmountLocked:   new(big.Int).Set(ev.AmountLocked),
		MaxFees:        maxFees,
		Token:          ev.Token,
	}, nil
}

// Phase derives the completion state. Like on-ramp status it is computed,
// never stored; only the Done flag is the persisted terminal marker.
func (o *Order) Phase() Phase {
	switch {
	case o.Done:
		return PhasePaid
	case o.BtcTxHash != "":
		return PhasePayoutSubmitted
	default:
		return PhaseLocked
	}
}

// RecordPayout moves Locked -> PayoutSubmitted with the broadcast payout tx.
func (o *Order) RecordPayout(btcTxId string) error {
	if o.BtcTxHash != "" {
		return fmt.Errorf("%w: %s", ErrPayoutAlreadyRecorded, o.BtcTxHash)
	}
	if _, err := chainhash.NewHashFromStr(btcTxId); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidPayoutTxId, btcTxId)
	}
	o.BtcTxHash = btcTxId
	return nil
}

// MarkPaidIfConfirmed moves PayoutSubmitted -> Paid once the payout reaches
// the confirmation threshold. Returns whether the order is now done.
func (o *Order) MarkPaidIfConfirmed(confirmations, threshold uint64) (bool, error) {
	if o.Done {
		return true, nil
	}
	if o.BtcTxHash == "" {
		return false, ErrNoPayoutRecorded
	}
	if confirmations >= threshold {
		o.Done = true
	}
	return o.Done, nil
}
