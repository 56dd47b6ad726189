package modem

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodePLMNBCDTwoDigitMNC(t *testing.T) {
	// MCC 234, 2-digit MNC 15: mcc1=2 mcc2=3 mcc3=4, mnc filler=0xf, mnc1=1 mnc2=5
	b := []byte{0x32, 0xf4, 0x51}
	assert.Equal(t, "23415", decodePLMNBCD(b))
}

func TestDecodePLMNBCDThreeDigitMNC(t *testing.T) {
	// MCC 310, 3-digit MNC 206: mnc1=2 mnc2=0 in byte[2], mnc3=6 in byte[1]'s high nibble
	b := []byte{0x13, 0x60, 0x02}
	assert.Equal(t, "310206", decodePLMNBCD(b))
}

func TestDecodePLMNBCDInvalidDigitsReturnsEmpty(t *testing.T) {
	b := []byte{0xff, 0xf4, 0x51}
	assert.Equal(t, "", decodePLMNBCD(b))
}

func TestDecodePLMNBCDTooShortReturnsEmpty(t *testing.T) {
	assert.Equal(t, "", decodePLMNBCD([]byte{0x32, 0xf4}))
}

func TestDecodeOPLMNwAct(t *testing.T) {
	rec := []byte{0x32, 0xf4, 0x51, 0x80, 0xc0}
	networks := decodeOPLMNwAct(rec)
	assert.Len(t, networks, 1)
	n := networks[0]
	assert.Equal(t, "234", n.MCC)
	assert.Equal(t, "15", n.MNC)
	assert.True(t, n.LTE)
	assert.True(t, n.GSM)
	assert.True(t, n.UMTS)
}

func TestDecodeOPLMNwActSkipsInvalidRecords(t *testing.T) {
	rec := []byte{0xff, 0xf4, 0x51, 0x80, 0xc0}
	assert.Empty(t, decodeOPLMNwAct(rec))
}

func TestDecodeOPLMNwActIgnoresTrailingPartialRecord(t *testing.T) {
	rec := []byte{0x32, 0xf4, 0x51, 0x80, 0xc0, 0x01, 0x02}
	assert.Len(t, decodeOPLMNwAct(rec), 1)
}

func TestBoolToU32(t *testing.T) {
	assert.Equal(t, uint32(1), boolToU32(true))
	assert.Equal(t, uint32(0), boolToU32(false))
}

func TestMncLengthByMCCTableLookup(t *testing.T) {
	n, ok := mncLengthByMCC["310"]
	assert.True(t, ok)
	assert.Equal(t, 3, n)

	_, ok = mncLengthByMCC["234"]
	assert.False(t, ok)
}
