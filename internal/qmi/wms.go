package qmi

import (
	"context"
	"encoding/binary"
)

// WMS message IDs (Wireless Messaging Service).
const (
	wmsListMessages  uint16 = 0x0031
	wmsRawRead       uint16 = 0x0022
	wmsDelete        uint16 = 0x0024
	wmsSetEventReport uint16 = 0x0001
	wmsSetRoutes     uint16 = 0x0014
	wmsEventReportIndication uint16 = 0x0001
)

// StorageType selects where an SMS part lives (spec.md §3 SmsPart).
type StorageType uint8

// Storage types.
const (
	StorageUIM StorageType = iota
	StorageNV
)

// MessageTag selects the read/unread partition of list_messages.
type MessageTag uint8

// Message tags.
const (
	TagRead MessageTag = iota
	TagNotRead
)

// messageMode selects the GSM/WCDMA message-mode TLV list_messages,
// raw_read and delete all require.
const messageModeGSMWCDMA uint8 = 0x06

// MessageDescriptor identifies one stored PDU by (storage, index).
type MessageDescriptor struct {
	Storage StorageType
	Index   uint32
}

// WMSClient is the typed client for the Wireless Messaging Service.
type WMSClient struct {
	dev      *Device
	clientID uint8
}

// NewWMSClient allocates a WMS client on dev.
func NewWMSClient(dev *Device) *WMSClient {
	return &WMSClient{dev: dev, clientID: dev.AllocateClient(ServiceWMS)}
}

// Release releases the client ID.
func (c *WMSClient) Release() { c.dev.ReleaseClient(ServiceWMS, c.clientID) }

// ListMessages enumerates stored messages for storage/tag (spec.md §4.8).
func (c *WMSClient) ListMessages(ctx context.Context, storage StorageType, tag MessageTag) ([]uint32, error) {
	tlvs, err := c.dev.Call(ctx, ServiceWMS, c.clientID, wmsListMessages, []TLV{
		u8TLV(0x01, messageModeGSMWCDMA),
		u8TLV(0x10, uint8(storage)),
		u8TLV(0x11, uint8(tag)),
	})
	if err != nil {
		return nil, err
	}
	t, ok := findTLV(tlvs, 0x01)
	if !ok {
		return nil, nil
	}
	var out []uint32
	for i := 0; i+4 <= len(t.Value); i += 4 {
		out = append(out, binary.LittleEndian.Uint32(t.Value[i:i+4]))
	}
	return out, nil
}

// RawRead reads a stored PDU's raw bytes.
func (c *WMSClient) RawRead(ctx context.Context, storage StorageType, index uint32) ([]byte, error) {
	tlvs, err := c.dev.Call(ctx, ServiceWMS, c.clientID, wmsRawRead, []TLV{
		u8TLV(0x01, uint8(storage)),
		u32TLV(0x02, index),
	})
	if err != nil {
		return nil, err
	}
	t, ok := findTLV(tlvs, 0x01)
	if !ok {
		return nil, ErrMalformed
	}
	return t.Value, nil
}

// Delete removes a stored PDU.
func (c *WMSClient) Delete(ctx context.Context, storage StorageType, index uint32) error {
	_, err := c.dev.Call(ctx, ServiceWMS, c.clientID, wmsDelete, []TLV{
		u8TLV(0x01, messageModeGSMWCDMA),
		u8TLV(0x10, uint8(storage)),
		u32TLV(0x11, index),
	})
	return err
}

// SetNewMessageIndicator arms (or disarms) new_mt_message_indicator event
// reporting.
func (c *WMSClient) SetNewMessageIndicator(ctx context.Context, enable bool) error {
	var en uint8
	if enable {
		en = 1
	}
	_, err := c.dev.Call(ctx, ServiceWMS, c.clientID, wmsSetEventReport, []TLV{u8TLV(0x10, en)})
	return err
}

// SetDefaultRoutes configures default message routes so Class 0/1
// point-to-point messages are stored on modem-NV with store-and-notify
// (spec.md §4.8).
func (c *WMSClient) SetDefaultRoutes(ctx context.Context) error {
	_, err := c.dev.Call(ctx, ServiceWMS, c.clientID, wmsSetRoutes, []TLV{
		u8TLV(0x01, uint8(StorageNV)),
	})
	return err
}

// SubscribeNewMessage subscribes to incoming-message indications, yielding
// the (storage, index) of each newly stored PDU.
func (c *WMSClient) SubscribeNewMessage(ctx context.Context) (<-chan MessageDescriptor, func(), error) {
	raw, cancel, err := c.dev.Subscribe(ServiceWMS, wmsEventReportIndication)
	if err != nil {
		return nil, nil, err
	}
	out := make(chan MessageDescriptor)
	go func() {
		defer close(out)
		for tlvs := range raw {
			if t, ok := findTLV(tlvs, 0x10); ok && len(t.Value) >= 5 {
				out <- MessageDescriptor{Storage: StorageType(t.Value[0]), Index: binary.LittleEndian.Uint32(t.Value[1:5])}
			}
		}
	}()
	return out, cancel, nil
}
