// Package strategy assembles the destination-chain call arguments for
// staking/lending execution after a deposit settles. Pure data
// transformation; nothing here talks to a chain.
package strategy

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/bob-collective/gateway-go/catalog"
	"github.com/bob-collective/gateway-go/order"
)

var (
	ErrStrategyNotConfigured = errors.New("order has no matching strategy configured")
)

const bpsDenominator = 10000

// ApproveArgs are the erc20 approval call arguments. The token must be
// approved before the strategy call.
type ApproveArgs struct {
	Spender ethcommon.Address
	Amount  *big.Int
}

// OutputParams carries the on-chain slippage guard.
type OutputParams struct {
	AmountOutMin *big.Int
}

// StakeCallArgs are the strategy contract call arguments.
type StakeCallArgs struct {
	Token    ethcommon.Address
	Amount   *big.Int
	Receiver ethcommon.Address
	Output   OutputParams
}

// TransactionArgs is everything the execution step needs to submit the
// approval and the strategy call.
type TransactionArgs struct {
	StrategyAddress ethcommon.Address
	Method          string
	Sender          ethcommon.Address
	Approve         ApproveArgs
	Call            StakeCallArgs
}

// BuildStakeArgs assembles the destination execution arguments for an order
// whose quote requested strategyContract. AmountOutMin is derived from the
// quote's own output and slippage bound, never from a live price source.
func BuildStakeArgs(o *order.Order, strategyContract *catalog.StrategyContract) (*TransactionArgs, error) {
	if o.StrategyAddress == nil {
		return nil, fmt.Errorf("%w: order %s has no strategy address", ErrStrategyNotConfigured, o.Id)
	}
	if !strings.EqualFold(o.StrategyAddress.Hex(), strategyContract.Address) {
		return nil, fmt.Errorf("%w: order wants %s, contract is %s", ErrStrategyNotConfigured, o.StrategyAddress.Hex(), strategyContract.Address)
	}

	amount := order.SatsToTokenUnits(o.Satoshis, strategyContract.InputToken.Decimals)
	amountOutMin := applySlippage(amount, o.MaxSlippageBps)

	return &TransactionArgs{
		StrategyAddress: *o.StrategyAddress,
		Method:          strategyContract.Method,
		Sender:          o.UserAddress,
		Approve: ApproveArgs{
			Spender: *o.StrategyAddress,
			Amount:  new(big.Int).Set(amount),
		},
		Call: StakeCallArgs{
			Token:    ethcommon.HexToAddress(strategyContract.InputToken.Address),
			Amount:   new(big.Int).Set(amount),
			Receiver: o.UserAddress,
			Output:   OutputParams{AmountOutMin: amountOutMin},
		},
	}, nil
}

// applySlippage reduces amount by slippageBps basis points, rounding down so
// the guard is never looser than quoted.
func applySlippage(amount *big.Int, slippageBps int64) *big.Int {
	keep := big.NewInt(bpsDenominator - slippageBps)
	out := new(big.Int).Mul(amount, keep)
	return out.Div(out, big.NewInt(bpsDenominator))
}
