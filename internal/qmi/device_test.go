/*
  Test suite for the qmi Device event loop.

  Note that mockDevice does not attempt to emulate a real QMI character
  device; it queues fixed response frames keyed by (service, messageID) to
  elicit the behaviour under test, mirroring the mockModem double in
  github.com/warthog618/modem's at_test.go.
*/
package qmi

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockDevice struct {
	mu        sync.Mutex
	responses map[indicationKey][]byte // keyed by (service, messageID), echoes back with the request's transaction ID
	r         chan []byte
}

func newMockDevice() *mockDevice {
	return &mockDevice{responses: make(map[indicationKey][]byte), r: make(chan []byte, 16)}
}

func (m *mockDevice) Write(p []byte) (int, error) {
	req, err := unmarshalMessage(p[3:]) // strip marker+length
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	rspTLVs := m.responses[indicationKey{req.service, req.messageID}]
	m.mu.Unlock()
	rsp := message{
		service:       req.service,
		clientID:      req.clientID,
		transactionID: req.transactionID,
		messageID:     req.messageID,
	}
	if rspTLVs != nil {
		decoded, _ := unmarshalMessage(rspTLVs[3:]) // strip marker+length
		rsp.tlvs = decoded.tlvs
	}
	m.r <- marshalMessage(rsp)
	return len(p), nil
}

func (m *mockDevice) Read(p []byte) (int, error) {
	b, ok := <-m.r
	if !ok {
		return 0, io.EOF
	}
	n := copy(p, b)
	return n, nil
}

func (m *mockDevice) setResponse(svc ServiceID, msgID uint16, tlvs []TLV) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[indicationKey{svc, msgID}] = marshalMessage(message{service: svc, messageID: msgID, tlvs: tlvs})
}

func (m *mockDevice) Close() { close(m.r) }

func TestDeviceCallRoundTrip(t *testing.T) {
	md := newMockDevice()
	md.setResponse(ServiceDMS, dmsGetManufacturer, []TLV{{Type: tlvStringResult, Value: []byte("Acme Modem Co")}})
	d := Open(md)
	defer md.Close()

	dms := NewDMSClient(d)
	got, err := dms.GetManufacturer(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Acme Modem Co", got)
}

func TestDeviceCallMapsQMIError(t *testing.T) {
	md := newMockDevice()
	md.setResponse(ServiceDMS, dmsGetManufacturer, []TLV{{Type: tlvResultCode, Value: []byte{1, 0, 2, 0}}}) // error code 2 = Internal
	d := Open(md)
	defer md.Close()

	dms := NewDMSClient(d)
	_, err := dms.GetManufacturer(context.Background())
	require.Error(t, err)
	assert.Equal(t, ErrInternal, err)
}

func TestDeviceCallClosed(t *testing.T) {
	md := newMockDevice()
	d := Open(md)
	md.Close()
	// allow the reader goroutine to observe EOF and close the device.
	select {
	case <-d.Closed():
	case <-time.After(200 * time.Millisecond):
		t.Fatal("device did not close")
	}
	dms := NewDMSClient(d)
	_, err := dms.GetManufacturer(context.Background())
	assert.Equal(t, ErrClosed, err)
}

func TestDeviceSubscribeIndication(t *testing.T) {
	md := newMockDevice()
	d := Open(md)
	defer md.Close()

	ch, cancel, err := d.Subscribe(ServiceNAS, nasServingSystemIndication)
	require.NoError(t, err)
	defer cancel()

	ind := message{service: ServiceNAS, messageID: nasServingSystemIndication, indication: true, tlvs: []TLV{{Type: 0x01, Value: []byte{1, 0}}}}
	md.r <- marshalMessage(ind)

	select {
	case tlvs := <-ch:
		tlv, ok := findTLV(tlvs, 0x01)
		require.True(t, ok)
		assert.Equal(t, []byte{1, 0}, tlv.Value)
	case <-time.After(200 * time.Millisecond):
		t.Fatal("indication not delivered")
	}
}

func TestDeviceDuplicateSubscribe(t *testing.T) {
	md := newMockDevice()
	d := Open(md)
	defer md.Close()

	_, cancel, err := d.Subscribe(ServiceNAS, nasServingSystemIndication)
	require.NoError(t, err)
	defer cancel()

	_, _, err = d.Subscribe(ServiceNAS, nasServingSystemIndication)
	assert.Equal(t, ErrIndicationExists, err)
}
