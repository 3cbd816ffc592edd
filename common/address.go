package common

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	ethcommon "github.com/ethereum/go-ethereum/common"
)

// IsValidEvmAddress reports whether s is a well-formed 20-byte hex address
// (with or without 0x prefix).
func IsValidEvmAddress(s string) bool {
	return ethcommon.IsHexAddress(s)
}

// IsValidBtcAddress reports whether s decodes as a bitcoin address on the
// given chain (mainnet, testnet, regtest).
func IsValidBtcAddress(s string, params *chaincfg.Params) bool {
	addr, err := btcutil.DecodeAddress(s, params)
	if err != nil {
		return false
	}
	return addr.IsForNet(params)
}
