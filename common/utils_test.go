package common

import (
	"context"
	"testing"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

func TestHexPrefixHelpers(t *testing.T) {
	assert.Equal(t, "abcd", Trim0xPrefix("0xabcd"))
	assert.Equal(t, "abcd", Trim0xPrefix("0Xabcd"))
	assert.Equal(t, "abcd", Trim0xPrefix("abcd"))

	assert.Equal(t, "0xabcd", Prepend0xPrefix("abcd"))
	assert.Equal(t, "0xabcd", Prepend0xPrefix("0xabcd"))
}

func TestAddressToBytes32(t *testing.T) {
	addr := ethcommon.HexToAddress("0x5425890298aed601595a70AB815c96711a31Bc65")
	b32 := AddressToBytes32(addr)

	// 12 zero bytes then the address
	for i := 0; i < 12; i++ {
		assert.Zero(t, b32[i])
	}
	assert.Equal(t, addr.Bytes(), b32[12:])
}

func TestSleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := Sleep(ctx, time.Minute)
	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRandHexID(t *testing.T) {
	a := RandHexID(16)
	b := RandHexID(16)
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
}
