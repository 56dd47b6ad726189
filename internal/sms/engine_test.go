package sms

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warthog618/sms/encoding/pdumode"
	"github.com/warthog618/sms/encoding/tpdu"

	"github.com/aleksander0m/ravemodemfactory-sub000/internal/qmi"
)

// buildParts round-trips text through BuildSubmitPDUs and back through the
// library's own decode entry point, exactly mirroring
// cmd/sendsms/sendsms.go's encode side and cmd/waitsms/waitsms.go's decode
// side, to get real tpdu.TPDU values to feed the engine.
func buildParts(t *testing.T, destination, text string) []tpdu.TPDU {
	t.Helper()
	hexes, err := BuildSubmitPDUs(destination, text)
	require.NoError(t, err)
	tps := make([]tpdu.TPDU, 0, len(hexes))
	for _, hex := range hexes {
		pdu, err := pdumode.UnmarshalHexString(hex)
		require.NoError(t, err)
		tp, err := decodeTPDU(pdu.TPDU)
		require.NoError(t, err)
		tps = append(tps, tp)
	}
	return tps
}

func newTestEngine() *Engine {
	e := New(nil, nil)
	e.noDelete = true
	e.now = func() time.Time { return time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC) }
	return e
}

func TestOfferSinglePartEmitsMessage(t *testing.T) {
	e := newTestEngine()
	var got []Message
	e.Emit = func(m Message) { got = append(got, m) }

	tps := buildParts(t, "12345", "hello world")
	require.Len(t, tps, 1)

	e.offer(nil, qmi.StorageUIM, 1, tps[0])

	require.Len(t, got, 1)
	assert.Equal(t, "hello world", got[0].Text)
	assert.True(t, got[0].Timestamp.Equal(time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)))
}

func TestOfferRejectsDuplicatePart(t *testing.T) {
	e := newTestEngine()
	count := 0
	e.Emit = func(Message) { count++ }

	tps := buildParts(t, "12345", "hi")
	require.Len(t, tps, 1)

	e.offer(nil, qmi.StorageUIM, 7, tps[0])
	e.offer(nil, qmi.StorageUIM, 7, tps[0])

	assert.Equal(t, 1, count)
}

func TestOfferReassemblesMultipartInAnyArrivalOrder(t *testing.T) {
	e := newTestEngine()
	var got []Message
	e.Emit = func(m Message) { got = append(got, m) }

	long := ""
	for i := 0; i < 400; i++ {
		long += "a"
	}
	tps := buildParts(t, "123", long)
	require.Greater(t, len(tps), 1)

	for i := len(tps) - 1; i >= 0; i-- {
		e.offer(nil, qmi.StorageNV, uint32(i+1), tps[i])
	}

	require.Len(t, got, 1)
	assert.Equal(t, long, got[0].Text)
}

func TestOfferMultipartDuplicatePartRejected(t *testing.T) {
	e := newTestEngine()
	count := 0
	e.Emit = func(Message) { count++ }

	long := ""
	for i := 0; i < 400; i++ {
		long += "a"
	}
	tps := buildParts(t, "123", long)
	require.Greater(t, len(tps), 1)

	for i, tp := range tps {
		e.offer(nil, qmi.StorageNV, uint32(i+1), tp)
	}
	// Re-offer the first part under its original key; already seen.
	e.offer(nil, qmi.StorageNV, 1, tps[0])

	assert.Equal(t, 1, count)
}
