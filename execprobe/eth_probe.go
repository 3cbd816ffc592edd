package execprobe

import (
	"context"
	"errors"

	ethereum "github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/google/uuid"
)

// TxHashLookup maps an order id to the EVM tx hash the relayer submitted for
// it, if any. Backed by the order database in production.
type TxHashLookup interface {
	EvmTxHash(orderId uuid.UUID) (ethcommon.Hash, bool, error)
}

// EthProbe checks execution results against an EVM node via the receipt of
// the relayer-submitted transaction.
type EthProbe struct {
	client *ethclient.Client
	lookup TxHashLookup
}

func NewEthProbe(rpcUrl string, lookup TxHashLookup) (*EthProbe, error) {
	client, err := ethclient.Dial(rpcUrl)
	if err != nil {
		return nil, err
	}
	return &EthProbe{client: client, lookup: lookup}, nil
}

func (p *EthProbe) Close() {
	p.client.Close()
}

// GetExecutionResult implements Probe. No submitted tx, or a submitted tx
// with no receipt yet, is pending. A mined receipt decides success/failure.
func (p *EthProbe) GetExecutionResult(ctx context.Context, orderId uuid.UUID) (Result, error) {
	txHash, ok, err := p.lookup.EvmTxHash(orderId)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return NotExecuted, nil
	}

	receipt, err := p.client.TransactionReceipt(ctx, txHash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return NotExecuted, nil
		}
		return Result{}, err
	}

	if receipt.Status == types.ReceiptStatusSuccessful {
		return Success(txHash), nil
	}
	return Failure("execution reverted"), nil
}
