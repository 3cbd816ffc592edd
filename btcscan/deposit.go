// Package btcscan watches the bitcoin chain for gateway deposits. A deposit
// pays the gateway's bitcoin address and carries the order's commitment hash
// in an OP_RETURN output; matching that hash binds the transaction to its
// order so the settlement poller can start counting confirmations.
package btcscan

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	ethcommon "github.com/ethereum/go-ethereum/common"
)

// Deposit is one gateway deposit found in a block.
type Deposit struct {
	Commitment  ethcommon.Hash
	TxId        string
	Satoshis    int64 // total value paid to the gateway address
	BlockHeight int64
	BlockHash   string
}

// ExtractDeposit checks whether tx is a gateway deposit: at least one output
// paying depositAddress plus an OP_RETURN output carrying a 32 byte payload.
// Returns the commitment, the paid amount and whether the tx qualifies.
func ExtractDeposit(tx *wire.MsgTx, depositAddress btcutil.Address, params *chaincfg.Params) (ethcommon.Hash, int64, bool) {
	if len(tx.TxOut) < 2 {
		return ethcommon.Hash{}, 0, false
	}

	var paid int64
	var commitment ethcommon.Hash
	haveCommitment := false

	for _, out := range tx.TxOut {
		if out.Value == 0 && txscript.IsNullData(out.PkScript) {
			pushes, err := txscript.PushedData(out.PkScript)
			if err != nil || len(pushes) != 1 || len(pushes[0]) != ethcommon.HashLength {
				continue
			}
			commitment = ethcommon.BytesToHash(pushes[0])
			haveCommitment = true
			continue
		}
		_, addresses, _, err := txscript.ExtractPkScriptAddrs(out.PkScript, params)
		if err != nil || len(addresses) == 0 {
			continue
		}
		if addresses[0].EncodeAddress() == depositAddress.EncodeAddress() {
			paid += out.Value
		}
	}

	if !haveCommitment || paid == 0 {
		return ethcommon.Hash{}, 0, false
	}
	return commitment, paid, true
}
