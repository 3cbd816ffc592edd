package btcscan

import (
	"context"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btcd/wire"
	logger "github.com/sirupsen/logrus"

	"github.com/bob-collective/gateway-go/orderdb"
)

// BlockSource delivers full blocks by height.
type BlockSource interface {
	LatestBlockHeight(ctx context.Context) (int64, error)
	BlockAt(ctx context.Context, height int64) (*wire.MsgBlock, error)
}

type RpcBlockSourceConfig struct {
	ServerAddr string // ip address of server
	Port       string // port of server
	Username   string
	Pwd        string
}

// RpcBlockSource reads blocks from a bitcoin node over json-rpc.
type RpcBlockSource struct {
	client *rpcclient.Client
}

func NewRpcBlockSource(cfg *RpcBlockSourceConfig) (*RpcBlockSource, error) {
	// original bitcoin core only supports HTTP POST mode, no TLS
	client, err := rpcclient.New(&rpcclient.ConnConfig{
		Host:         cfg.ServerAddr + ":" + cfg.Port,
		User:         cfg.Username,
		Pass:         cfg.Pwd,
		HTTPPostMode: true,
		DisableTLS:   true,
	}, nil)
	if err != nil {
		return nil, err
	}
	return &RpcBlockSource{client: client}, nil
}

func (r *RpcBlockSource) Close() {
	r.client.Shutdown()
}

func (r *RpcBlockSource) LatestBlockHeight(_ context.Context) (int64, error) {
	return r.client.GetBlockCount()
}

func (r *RpcBlockSource) BlockAt(_ context.Context, height int64) (*wire.MsgBlock, error) {
	hash, err := r.client.GetBlockHash(height)
	if err != nil {
		return nil, err
	}
	return r.client.GetBlock(hash)
}

// Scanner walks new blocks and binds gateway deposits to their orders via the
// commitment hash. One scanner per gateway deposit address.
type Scanner struct {
	src            BlockSource
	db             *orderdb.OrderDB
	depositAddress btcutil.Address
	params         *chaincfg.Params

	lastHeight int64 // last block height scanned
}

func NewScanner(src BlockSource, db *orderdb.OrderDB, depositAddress string, params *chaincfg.Params, startHeight int64) (*Scanner, error) {
	addr, err := btcutil.DecodeAddress(depositAddress, params)
	if err != nil {
		return nil, fmt.Errorf("failed to decode deposit address: %v", err)
	}
	return &Scanner{
		src:            src,
		db:             db,
		depositAddress: addr,
		params:         params,
		lastHeight:     startHeight,
	}, nil
}

// ScanOnce scans all blocks above the last visited height.
func (s *Scanner) ScanOnce(ctx context.Context) error {
	tip, err := s.src.LatestBlockHeight(ctx)
	if err != nil {
		return fmt.Errorf("failed to get latest block height: %v", err)
	}
	if tip <= s.lastHeight {
		return nil // no new blocks
	}

	logger.WithFields(logger.Fields{
		"from": s.lastHeight + 1,
		"to":   tip,
	}).Debug("scanning btc blocks for deposits")

	for height := s.lastHeight + 1; height <= tip; height++ {
		block, err := s.src.BlockAt(ctx, height)
		if err != nil {
			return fmt.Errorf("failed to get block %d: %v", height, err)
		}
		s.scanBlock(block, height)
		s.lastHeight = height
	}
	return nil
}

func (s *Scanner) scanBlock(block *wire.MsgBlock, height int64) {
	for _, tx := range block.Transactions {
		commitment, paid, ok := ExtractDeposit(tx, s.depositAddress, s.params)
		if !ok {
			continue
		}
		s.matchDeposit(&Deposit{
			Commitment:  commitment,
			TxId:        tx.TxHash().String(),
			Satoshis:    paid,
			BlockHeight: height,
			BlockHash:   block.BlockHash().String(),
		})
	}
}

func (s *Scanner) matchDeposit(d *Deposit) {
	newLogger := logger.WithFields(logger.Fields{
		"btcTxId":    d.TxId,
		"commitment": d.Commitment.Hex(),
	})

	o, found, err := s.db.GetOrderByCommitment(d.Commitment)
	if err != nil {
		newLogger.Errorf("order lookup failed: %v", err)
		return
	}
	if !found {
		// a deposit to us with an unknown commitment has no order to settle
		newLogger.Warn("deposit carries unknown commitment")
		return
	}
	if o.BtcTxId != "" {
		newLogger.WithField("order", o.Id.String()).Debug("order already matched to a transaction")
		return
	}
	if d.Satoshis < o.DepositSatoshis() {
		newLogger.WithFields(logger.Fields{
			"order":    o.Id.String(),
			"paid":     d.Satoshis,
			"expected": o.DepositSatoshis(),
		}).Warn("deposit underpays its order, not matched")
		return
	}

	if err := s.db.SetBtcTxId(o.Id, d.TxId); err != nil {
		newLogger.Errorf("failed to record deposit tx: %v", err)
		return
	}
	newLogger.WithFields(logger.Fields{
		"order":    o.Id.String(),
		"satoshis": d.Satoshis,
		"block":    d.BlockHeight,
	}).Info("deposit matched to order")
}

// Start scans on a fixed interval until ctx is done.
func (s *Scanner) Start(ctx context.Context, interval time.Duration) error {
	logger.Info("starting btc deposit scanner")
	defer logger.Info("stopping btc deposit scanner")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.ScanOnce(ctx); err != nil {
				logger.Warnf("btc scan round failed: %v", err)
			}
		}
	}
}
