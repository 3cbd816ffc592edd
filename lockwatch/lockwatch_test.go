package lockwatch

import (
	"context"
	"math/big"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"

	"github.com/bob-collective/gateway-go/database"
	"github.com/bob-collective/gateway-go/offramp"
	"github.com/bob-collective/gateway-go/orderdb"
)

const (
	watchOfframpAddr = "0x3333333333333333333333333333333333333333"
	watchUserAddr    = "0xB8c77482e45F1F44dE1745F52C74426C631bDD52"
	watchTokenAddr   = "0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599"
	watchBtcAddr     = "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4"
)

type mockLogSource struct {
	logs map[uint64][]types.Log // by block number
	tip  uint64
}

func (m *mockLogSource) LatestBlockNumber(_ context.Context) (uint64, error) {
	return m.tip, nil
}

func (m *mockLogSource) FilterLocks(_ context.Context, fromBlock, toBlock uint64) ([]types.Log, error) {
	var out []types.Log
	for b := fromBlock; b <= toBlock; b++ {
		out = append(out, m.logs[b]...)
	}
	return out, nil
}

func lockedLog(t *testing.T, txHash ethcommon.Hash, blockNumber uint64, satoshisToGet int64, btcAddr string) types.Log {
	data, err := lockedABI.Events["Locked"].Inputs.NonIndexed().Pack(
		ethcommon.HexToAddress(watchTokenAddr),
		big.NewInt(100000),
		big.NewInt(500),
		big.NewInt(satoshisToGet),
		btcAddr,
	)
	assert.NoError(t, err)

	return types.Log{
		Address: ethcommon.HexToAddress(watchOfframpAddr),
		Topics: []ethcommon.Hash{
			LockedSignatureHash,
			ethcommon.BytesToHash(ethcommon.HexToAddress(watchUserAddr).Bytes()),
		},
		Data:        data,
		TxHash:      txHash,
		BlockNumber: blockNumber,
	}
}

func watcherHarness(t *testing.T) (*Watcher, *orderdb.OrderDB, *mockLogSource) {
	sqlDB, err := database.OpenSQLite(":memory:")
	assert.NoError(t, err)
	db, err := orderdb.NewOrderDB(sqlDB)
	assert.NoError(t, err)
	t.Cleanup(db.Close)

	src := &mockLogSource{logs: make(map[uint64][]types.Log)}
	w := NewWatcher(src, db, &chaincfg.MainNetParams, 0)
	return w, db, src
}

func TestScanOnceOpensOrder(t *testing.T) {
	w, db, src := watcherHarness(t)

	txHash := ethcommon.HexToHash("0x" + strings.Repeat("11", 32))
	src.logs[5] = []types.Log{lockedLog(t, txHash, 5, 99500, watchBtcAddr)}
	src.tip = 5

	assert.NoError(t, w.ScanOnce(context.Background()))

	o, found, err := db.GetOffRampOrderByLockTx(txHash)
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(99500), o.SatoshisToGet)
	assert.Equal(t, ethcommon.HexToAddress(watchUserAddr), o.UserAddress)
	assert.Equal(t, ethcommon.HexToAddress(watchTokenAddr), o.Token)
	assert.Equal(t, watchBtcAddr, o.UserBtcAddress)
	assert.Equal(t, big.NewInt(100000), o.AmountLocked)
	assert.Equal(t, offramp.PhaseLocked, o.Phase())
}

func TestScanOnceDeduplicatesLockTx(t *testing.T) {
	w, db, src := watcherHarness(t)

	txHash := ethcommon.HexToHash("0x" + strings.Repeat("22", 32))
	src.logs[5] = []types.Log{lockedLog(t, txHash, 5, 99500, watchBtcAddr)}
	src.tip = 5
	assert.NoError(t, w.ScanOnce(context.Background()))

	// the same log shows up again in a later range
	src.logs[6] = []types.Log{lockedLog(t, txHash, 6, 99500, watchBtcAddr)}
	src.tip = 6
	assert.NoError(t, w.ScanOnce(context.Background()))

	open, err := db.ListOpenOffRampOrders()
	assert.NoError(t, err)
	assert.Len(t, open, 1)
}

func TestScanOnceRejectsMalformedLock(t *testing.T) {
	w, db, src := watcherHarness(t)

	txHash := ethcommon.HexToHash("0x" + strings.Repeat("33", 32))
	src.logs[5] = []types.Log{lockedLog(t, txHash, 5, 99500, "not-a-btc-address")}
	src.tip = 5

	assert.NoError(t, w.ScanOnce(context.Background()))

	_, found, err := db.GetOffRampOrderByLockTx(txHash)
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestScanOnceNoNewBlocks(t *testing.T) {
	w, _, src := watcherHarness(t)
	src.tip = 0
	assert.NoError(t, w.ScanOnce(context.Background()))
}

func TestDecodeLockedRejectsForeignTopics(t *testing.T) {
	_, err := decodeLocked(&types.Log{Topics: []ethcommon.Hash{{}}})
	assert.Error(t, err)
}
