package common

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"math/big"
	"strings"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

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

// HexStrToByteSlice decodes a hex string (with/without 0x prefix).
func HexStrToByteSlice(hexStr string) []byte {
	return ethcommon.Hex2Bytes(Trim0xPrefix(hexStr))
}

// AddressToBytes32 left-pads a 20-byte address into the fixed-width
// 32-byte recipient format the bridge protocol uses.
func AddressToBytes32(addr ethcommon.Address) [32]byte {
	return [32]byte(ethcommon.LeftPadBytes(addr.Bytes(), 32))
}

// BigIntClone returns a defensive copy, nil in nil out.
func BigIntClone(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}

// RandHexID generates a random lowercase hex identifier of n bytes.
// Used for transfer ids; collision odds are negligible at n>=8.
func RandHexID(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return ""
	}
	return hex.EncodeToString(b)
}

// Sleep waits for d or until ctx is done, whichever comes first.
// Returns ctx.Err() when the context won. Poll loops use this for
// every settle/inter-poll/backoff delay so they yield instead of
// busy-waiting and stay cancellable between iterations.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
