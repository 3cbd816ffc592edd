// Package order holds the on-ramp order model and the status resolver that
// derives settlement state from bitcoin confirmations and the observed
// destination-chain execution.
package order

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/bob-collective/gateway-go/common"
	"github.com/bob-collective/gateway-go/quote"
)

var (
	ErrInvalidAddress = errors.New("invalid user address")
)

// Order is one accepted quote bound to one user. The originating quote
// fields never change after creation; settlement status is always derived
// from chain state, never stored here.
type Order struct {
	Id           uuid.UUID
	OpReturnHash ethcommon.Hash // commitment binding the btc deposit to this order

	GatewayAddress          ethcommon.Address
	BaseTokenAddress        ethcommon.Address
	BaseTokenDecimals       int
	UserAddress             ethcommon.Address
	Satoshis                int64 // output amount after fee
	Fee                     int64 // includes gas refill
	GasRefill               int64
	BitcoinAddress          string
	TxProofDifficultyFactor uint64
	StrategyAddress         *ethcommon.Address
	MaxSlippageBps          int64
	CampaignId              string
	CreatedAt               time.Time

	// BtcTxId is set once a bitcoin transaction carrying OpReturnHash is
	// observed. Empty means no transaction yet.
	BtcTxId string

	// ConfirmedAt is the instant the deposit first reached the confirmation
	// threshold; the execution timeout counts from here. Zero until then,
	// cleared again when a reorg drops the deposit below the threshold.
	ConfirmedAt time.Time

	// Realized destination outputs, recorded once execution is observed.
	EvmTxHash          *ethcommon.Hash
	OutputTokenAddress *ethcommon.Address
	OutputTokenAmount  *big.Int
	OutputEthAmount    *big.Int
}

// StartOrder is returned to the caller after registration: the payment the
// user must now make, and the commitment to embed in it.
type StartOrder struct {
	Uuid           uuid.UUID      `json:"uuid"`
	OpReturnHash   ethcommon.Hash `json:"opReturnHash"`
	BitcoinAddress string         `json:"bitcoinAddress"`
	Satoshis       int64          `json:"satoshis"` // total amount to send, fee included
}

// CreateOrder registers a new order from an accepted quote. Pure
// registration: it does not wait for payment.
func CreateOrder(q *quote.Quote, userAddress string, campaignId string) (*Order, error) {
	if !common.IsValidEvmAddress(userAddress) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, userAddress)
	}
	user := ethcommon.HexToAddress(userAddress)

	o := &Order{
		Id:                      uuid.New(),
		GatewayAddress:          q.GatewayAddress,
		BaseTokenAddress:        q.BaseTokenAddress,
		BaseTokenDecimals:       q.BaseTokenDecimals,
		UserAddress:             user,
		Satoshis:                q.Satoshis,
		Fee:                     q.Fee,
		GasRefill:               q.GasRefill,
		BitcoinAddress:          q.BitcoinAddress,
		TxProofDifficultyFactor: q.TxProofDifficultyFactor,
		StrategyAddress:         q.StrategyAddress,
		MaxSlippageBps:          q.MaxSlippageBps,
		CampaignId:              campaignId,
		CreatedAt:               time.Now().UTC(),
	}
	o.OpReturnHash = Commitment(o.GatewayAddress, o.StrategyAddress, o.GasRefill, o.UserAddress, nil, nil, o.Satoshis)

	return o, nil
}

// Start returns the payment instructions for this order.
func (o *Order) Start() StartOrder {
	return StartOrder{
		Uuid:           o.Id,
		OpReturnHash:   o.OpReturnHash,
		BitcoinAddress: o.BitcoinAddress,
		Satoshis:       o.Satoshis + o.Fee,
	}
}

// HasStrategy reports whether a destination strategy execution is requested.
func (o *Order) HasStrategy() bool {
	return o.StrategyAddress != nil
}

// DepositSatoshis is the total amount the user must pay in.
func (o *Order) DepositSatoshis() int64 {
	return o.Satoshis + o.Fee
}
