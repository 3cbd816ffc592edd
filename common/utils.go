package common

import (
	"crypto/rand"
	"math/big"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

// The returned string has no 0x prefix.
func ByteSliceToPureHexStr(b []byte) string {
	return Trim0xPrefix(ethcommon.Bytes2Hex(b))
}

func HexStrToByteSlice(hexStr string) []byte {
	return ethcommon.Hex2Bytes(Trim0xPrefix(hexStr))
}

// HexStrToBytes32 converts a hex string (with/without prefix 0x) to [32]byte
func HexStrToBytes32(hexStr string) [32]byte {
	var bytes32 [32]byte
	copy(bytes32[:], ethcommon.Hex2BytesFixed(Trim0xPrefix(hexStr), 32))
	return bytes32
}

// HexStrToHash converts a hex string to ethcommon.Hash
func HexStrToHash(hexStr string) ethcommon.Hash {
	return ethcommon.HexToHash(hexStr)
}

// BigIntToHexStr converts a big int to hex string with prefix 0x
func BigIntToHexStr(bigInt *big.Int) string {
	return Prepend0xPrefix(bigInt.Text(16))
}

// HexStrToBigInt converts a hex string (with/without prefix 0x) to *big.Int
func HexStrToBigInt(hexStr string) *big.Int {
	bigInt, ok := new(big.Int).SetString(Trim0xPrefix(hexStr), 16)
	if !ok {
		return nil
	}
	return bigInt
}

// Trim 0x or 0X prefix off the string.
func Trim0xPrefix(str string) string {
	s := strings.TrimPrefix(str, "0x")
	return strings.TrimPrefix(s, "0X")
}

func Prepend0xPrefix(str string) string {
	if strings.HasPrefix(str, "0x") || strings.HasPrefix(str, "0X") {
		return str
	}
	return "0x" + str
}

// RandBytes32 generates [32]byte with random values
func RandBytes32() [32]byte {
	var b [32]byte
	n, err := rand.Read(b[:])
	if err != nil || n != 32 {
		return [32]byte{}
	}
	return b
}

// RandEvmAddress generates a random ethereum address (for tests).
func RandEvmAddress() ethcommon.Address {
	b := RandBytes32()
	return ethcommon.BytesToAddress(b[:20])
}
