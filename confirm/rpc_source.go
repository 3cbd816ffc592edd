package confirm

import (
	"context"
	"errors"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
)

type RpcSourceConfig struct {
	ServerAddr string // ip address of server
	Port       string // port of server
	Username   string
	Pwd        string
}

// RpcSource counts confirmations against a bitcoin node over json-rpc.
// Enable -txindex on the node; lookups go through getrawtransaction.
type RpcSource struct {
	client *rpcclient.Client
}

func NewRpcSource(cfg *RpcSourceConfig) (*RpcSource, error) {
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
	return &RpcSource{client: client}, nil
}

func (r *RpcSource) Close() {
	r.client.Shutdown()
}

// GetConfirmations implements Source. A tx in the chain at height h with tip
// height t has t-h+1 confirmations; a tx only in the mempool has 0.
func (r *RpcSource) GetConfirmations(_ context.Context, txid string, knownTipHeight int64) (uint64, error) {
	txHash, err := chainhash.NewHashFromStr(txid)
	if err != nil {
		return 0, err
	}

	txRaw, err := r.client.GetRawTransactionVerbose(txHash)
	if err != nil {
		var rpcErr *btcjson.RPCError
		if errors.As(err, &rpcErr) && rpcErr.Code == btcjson.ErrRPCNoTxInfo {
			return 0, ErrTransactionNotFound
		}
		return 0, &TransientLookupError{Op: "getrawtransaction", Err: err}
	}

	// observed but not yet mined
	if txRaw.BlockHash == "" {
		return 0, nil
	}

	blockHash, err := chainhash.NewHashFromStr(txRaw.BlockHash)
	if err != nil {
		return 0, err
	}
	header, err := r.client.GetBlockHeaderVerbose(blockHash)
	if err != nil {
		return 0, &TransientLookupError{Op: "getblockheader", Err: err}
	}

	tip := knownTipHeight
	if tip <= 0 {
		tip, err = r.client.GetBlockCount()
		if err != nil {
			return 0, &TransientLookupError{Op: "getblockcount", Err: err}
		}
	}

	if tip < int64(header.Height) {
		// stale tip hint, treat as unconfirmed rather than going negative
		return 0, nil
	}
	return uint64(tip-int64(header.Height)) + 1, nil
}
