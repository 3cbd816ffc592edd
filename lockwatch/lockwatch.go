// Package lockwatch observes the off-ramp contract for token lock events and
// opens the matching btc payout orders. One EVM lock tx opens at most one
// order; replayed or re-scanned logs are deduplicated by the lock tx hash.
package lockwatch

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	logger "github.com/sirupsen/logrus"

	"github.com/bob-collective/gateway-go/offramp"
	"github.com/bob-collective/gateway-go/orderdb"
)

var (
	LockedSignatureHash = crypto.Keccak256Hash([]byte("Locked(address,address,uint256,uint256,uint256,string)"))

	lockedABI = mustLockedABI()
)

const lockedABIJSON = `[{"anonymous":false,"inputs":[
	{"indexed":true,"name":"user","type":"address"},
	{"indexed":false,"name":"token","type":"address"},
	{"indexed":false,"name":"amountLocked","type":"uint256"},
	{"indexed":false,"name":"maxFees","type":"uint256"},
	{"indexed":false,"name":"satoshisToGet","type":"uint256"},
	{"indexed":false,"name":"userBtcAddress","type":"string"}],
	"name":"Locked","type":"event"}]`

func mustLockedABI() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(lockedABIJSON))
	if err != nil {
		panic(err)
	}
	return parsed
}

// lockedEvent mirrors the non-indexed event payload.
type lockedEvent struct {
	Token          ethcommon.Address
	AmountLocked   *big.Int
	MaxFees        *big.Int
	SatoshisToGet  *big.Int
	UserBtcAddress string
}

// LogSource delivers lock event logs by block range.
type LogSource interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
	FilterLocks(ctx context.Context, fromBlock, toBlock uint64) ([]types.Log, error)
}

// RpcLogSource filters lock logs from an EVM node.
type RpcLogSource struct {
	client         *ethclient.Client
	offrampAddress ethcommon.Address
}

func NewRpcLogSource(rpcUrl string, offrampAddress ethcommon.Address) (*RpcLogSource, error) {
	client, err := ethclient.Dial(rpcUrl)
	if err != nil {
		return nil, err
	}
	return &RpcLogSource{client: client, offrampAddress: offrampAddress}, nil
}

func (r *RpcLogSource) Close() {
	r.client.Close()
}

func (r *RpcLogSource) LatestBlockNumber(ctx context.Context) (uint64, error) {
	return r.client.BlockNumber(ctx)
}

func (r *RpcLogSource) FilterLocks(ctx context.Context, fromBlock, toBlock uint64) ([]types.Log, error) {
	return r.client.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []ethcommon.Address{r.offrampAddress},
		Topics:    [][]ethcommon.Hash{{LockedSignatureHash}},
	})
}

// Watcher scans new blocks for lock events and registers off-ramp orders.
type Watcher struct {
	src       LogSource
	db        *orderdb.OrderDB
	btcParams *chaincfg.Params

	lastBlock uint64 // last block number scanned
}

func NewWatcher(src LogSource, db *orderdb.OrderDB, btcParams *chaincfg.Params, startBlock uint64) *Watcher {
	return &Watcher{
		src:       src,
		db:        db,
		btcParams: btcParams,
		lastBlock: startBlock,
	}
}

// ScanOnce filters all blocks above the last visited block number.
func (w *Watcher) ScanOnce(ctx context.Context) error {
	tip, err := w.src.LatestBlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("failed to get latest block number: %v", err)
	}
	if tip <= w.lastBlock {
		return nil // no new blocks
	}

	logs, err := w.src.FilterLocks(ctx, w.lastBlock+1, tip)
	if err != nil {
		return fmt.Errorf("failed to filter lock logs: %v", err)
	}
	for i := range logs {
		w.handleLog(&logs[i])
	}
	w.lastBlock = tip
	return nil
}

func (w *Watcher) handleLog(vlog *types.Log) {
	newLogger := logger.WithFields(logger.Fields{
		"evmTx": vlog.TxHash.Hex(),
		"block": vlog.BlockNumber,
	})

	ev, err := decodeLocked(vlog)
	if err != nil {
		newLogger.Errorf("failed to decode lock event: %v", err)
		return
	}

	_, found, err := w.db.GetOffRampOrderByLockTx(ev.EvmTxHash)
	if err != nil {
		newLogger.Errorf("off-ramp lookup failed: %v", err)
		return
	}
	if found {
		newLogger.Debug("lock tx already registered")
		return
	}

	o, err := offramp.NewFromLockEvent(ev, w.btcParams)
	if err != nil {
		// a malformed lock cannot be paid out, leave it to manual handling
		newLogger.Errorf("rejected lock event: %v", err)
		return
	}
	if err := w.db.InsertOffRampOrder(o); err != nil {
		newLogger.Errorf("failed to register off-ramp order: %v", err)
		return
	}
	newLogger.WithFields(logger.Fields{
		"request":  o.RequestId.String(),
		"satoshis": o.SatoshisToGet,
		"user":     o.UserAddress.Hex(),
	}).Info("off-ramp order opened")
}

func decodeLocked(vlog *types.Log) (*offramp.LockEvent, error) {
	if len(vlog.Topics) < 2 || vlog.Topics[0] != LockedSignatureHash {
		return nil, fmt.Errorf("unexpected event topics: %+v", vlog.Topics)
	}

	ev := new(lockedEvent)
	if err := lockedABI.UnpackIntoInterface(ev, "Locked", vlog.Data); err != nil {
		return nil, err
	}

	return &offramp.LockEvent{
		OfframpAddress: vlog.Address,
		EvmTxHash:      vlog.TxHash,
		AmountLocked:   ev.AmountLocked,
		MaxFees:        ev.MaxFees,
		User:           ethcommon.BytesToAddress(vlog.Topics[1].Bytes()),
		Token:          ev.Token,
		UserBtcAddress: ev.UserBtcAddress,
		SatoshisToGet:  ev.SatoshisToGet.Int64(),
	}, nil
}

// Start scans on a fixed interval until ctx is done.
func (w *Watcher) Start(ctx context.Context, interval time.Duration) error {
	logger.Info("starting off-ramp lock watcher")
	defer logger.Info("stopping off-ramp lock watcher")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.ScanOnce(ctx); err != nil {
				logger.Warnf("lock scan round failed: %v", err)
			}
		}
	}
}
