package sms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warthog618/sms/encoding/pdumode"
)

// decodeHexPDU mirrors cmd/waitsms/waitsms.go's decode path: unwrap the
// pdumode hex string, then hand the bare TPDU bytes to decodeTPDU.
func decodeHexPDU(t *testing.T, hex string) {
	t.Helper()
	pdu, err := pdumode.UnmarshalHexString(hex)
	require.NoError(t, err)
	_, err = decodeTPDU(pdu.TPDU)
	require.NoError(t, err)
}

func TestBuildSubmitPDUsSingleGSM7Part(t *testing.T) {
	pdus, err := BuildSubmitPDUs("+15551234567", "hello world")
	require.NoError(t, err)
	require.Len(t, pdus, 1)
	decodeHexPDU(t, pdus[0])
}

func TestBuildSubmitPDUsSplitsMultipart(t *testing.T) {
	long := ""
	for i := 0; i < 200; i++ {
		long += "a"
	}
	pdus, err := BuildSubmitPDUs("12345", long)
	require.NoError(t, err)
	assert.Greater(t, len(pdus), 1)
	for _, p := range pdus {
		assert.NotEmpty(t, p)
		decodeHexPDU(t, p)
	}
}

func TestBuildSubmitPDUsRejectsEmptyDestination(t *testing.T) {
	_, err := BuildSubmitPDUs("", "hello")
	assert.Error(t, err)
}
