package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidContractAddress(t *testing.T) {
	assert.True(t, IsValidContractAddress("0x"+strings.Repeat("a", 40)))
	assert.True(t, IsValidContractAddress("0x"+strings.Repeat("A", 40)))
	assert.True(t, IsValidContractAddress("0xDAC17F958d2ee523a2206206994597C13D831ec7"))

	assert.False(t, IsValidContractAddress("0x"+strings.Repeat("a", 39)))
	assert.False(t, IsValidContractAddress("0x"+strings.Repeat("a", 41)))
	assert.False(t, IsValidContractAddress("1x"+strings.Repeat("a", 40)))
	assert.False(t, IsValidContractAddress("0x"+strings.Repeat("g", 40)))
	assert.False(t, IsValidContractAddress("not-an-address"))
	assert.False(t, IsValidContractAddress(""))
}

func TestIsValidTxHash(t *testing.T) {
	assert.True(t, IsValidTxHash("0x"+strings.Repeat("b", 64)))
	assert.True(t, IsValidTxHash("0x"+strings.Repeat("F", 64)))

	assert.False(t, IsValidTxHash("0x"+strings.Repeat("b", 63)))
	assert.False(t, IsValidTxHash("0x"+strings.Repeat("b", 65)))
	assert.False(t, IsValidTxHash(strings.Repeat("b", 66)))
	assert.False(t, IsValidTxHash("0x"+strings.Repeat("z", 64)))
}

func TestIsValidAmount(t *testing.T) {
	assert.True(t, IsValidAmount("3.14"))
	assert.True(t, IsValidAmount("100"))
	assert.True(t, IsValidAmount(" 0.0001 "))
	assert.True(t, IsValidAmount("1e3"))

	assert.False(t, IsValidAmount("0"))
	assert.False(t, IsValidAmount("-5"))
	assert.False(t, IsValidAmount("abc"))
	assert.False(t, IsValidAmount(""))
	assert.False(t, IsValidAmount("NaN"))
	assert.False(t, IsValidAmount("Inf"))
}
