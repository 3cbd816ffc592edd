package order

import (
	"encoding/binary"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Commitment derives the OP_RETURN hash binding a bitcoin deposit to one
// order. Same parameters always yield the same hash, and every
// distinguishing field is framed unambiguously in the preimage (fixed-width
// numbers, explicit strategy presence byte, length-prefixed extra data), so
// two orders that differ in any parameter cannot collide.
func Commitment(
	gateway ethcommon.Address,
	strategy *ethcommon.Address,
	satsToConvertToEth int64,
	user ethcommon.Address,
	gatewayExtraData []byte,
	strategyExtraData []byte,
	satoshis int64,
) ethcommon.Hash {
	var preimage []byte

	preimage = append(preimage, gateway.Bytes()...)

	if strategy != nil {
		preimage = append(preimage, 0x01)
		preimage = append(preimage, strategy.Bytes()...)
	} else {
		preimage = append(preimage, 0x00)
		preimage = append(preimage, make([]byte, ethcommon.AddressLength)...)
	}

	preimage = appendUint64(preimage, uint64(satsToConvertToEth))
	preimage = append(preimage, user.Bytes()...)
	preimage = appendLengthPrefixed(preimage, gatewayExtraData)
	preimage = appendLengthPrefixed(preimage, strategyExtraData)
	preimage = appendUint64(preimage, uint64(satoshis))

	return crypto.Keccak256Hash(preimage)
}

func appendUint64(b []byte, v uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return append(b, buf[:]...)
}

func appendLengthPrefixed(b []byte, data []byte) []byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(len(data)))
	b = append(b, buf[:]...)
	return append(b, data...)
}
