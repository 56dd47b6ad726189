package qmi

import "context"

// WDA message IDs (Wireless Data Administration service), used only
// ephemerally during link-layer negotiation (spec.md §3 ServiceClient,
// §4.9).
const (
	wdaGetDataFormat uint16 = 0x0020
	wdaSetDataFormat uint16 = 0x0021
)

// LinkLayerProtocol is the negotiated WWAN link framing.
type LinkLayerProtocol uint8

// Link-layer protocols.
const (
	LinkLayer8023 LinkLayerProtocol = iota
	LinkLayerRawIP
)

// WDAClient is the typed, ephemeral client for the Wireless Data
// Administration service.
type WDAClient struct {
	dev      *Device
	clientID uint8
}

// NewWDAClient allocates a WDA client on dev.
func NewWDAClient(dev *Device) *WDAClient {
	return &WDAClient{dev: dev, clientID: dev.AllocateClient(ServiceWDA)}
}

// Release releases the client ID (spec.md §4.9: WDA clients are released
// immediately after negotiation).
func (c *WDAClient) Release() { c.dev.ReleaseClient(ServiceWDA, c.clientID) }

// GetDataFormat reads the modem's negotiated link-layer protocol.
func (c *WDAClient) GetDataFormat(ctx context.Context) (LinkLayerProtocol, error) {
	tlvs, err := c.dev.Call(ctx, ServiceWDA, c.clientID, wdaGetDataFormat, nil)
	if err != nil {
		return 0, err
	}
	t, ok := findTLV(tlvs, 0x15)
	if !ok || len(t.Value) < 1 {
		return 0, ErrMalformed
	}
	return LinkLayerProtocol(t.Value[0]), nil
}

// SetDataFormat requests a link-layer protocol.
func (c *WDAClient) SetDataFormat(ctx context.Context, proto LinkLayerProtocol) error {
	_, err := c.dev.Call(ctx, ServiceWDA, c.clientID, wdaSetDataFormat, []TLV{u8TLV(0x15, uint8(proto))})
	return err
}
