package qmi

import (
	"context"
	"encoding/binary"
	"fmt"
)

// WDS message IDs (Wireless Data Service).
const (
	wdsSetIPFamily         uint16 = 0x004d
	wdsStartNetwork        uint16 = 0x0020
	wdsStopNetwork         uint16 = 0x0021
	wdsGetCurrentSettings  uint16 = 0x002d
	wdsGetPacketStatistics uint16 = 0x0022
)

// IPFamily selects IPv4 or IPv6 for a data session.
type IPFamily uint8

// IP families.
const (
	IPFamilyV4 IPFamily = 4
	IPFamilyV6 IPFamily = 6
)

// AllOnesHandle is the sentinel packet-data handle meaning "a pre-existing
// global session", returned when start_network maps ErrNoEffect to success
// (spec.md §4.6 step 2).
const AllOnesHandle uint32 = 0xffffffff

// AuthProtocol selects the PPP authentication protocol for start_network.
type AuthProtocol uint8

// Authentication protocols.
const (
	AuthNone AuthProtocol = iota
	AuthPAP
	AuthCHAP
	AuthPAPOrCHAP
)

// StartNetworkParams carries the optional TLVs start_network may need
// (spec.md §4.6 step 2).
type StartNetworkParams struct {
	APN               string
	Username          string
	Password          string
	Auth              AuthProtocol
	IPFamilyPreference IPFamily // zero value: omit the TLV
}

// CurrentSettings is the subset of get_current_settings fields the CONNECT
// state machine needs (spec.md §4.6 step 3).
type CurrentSettings struct {
	IPAddress    string
	SubnetMask   string
	Gateway      string
	PrimaryDNS   string
	SecondaryDNS string
	MTU          uint32
}

// PacketStatistics is the rx/tx byte counters from get_packet_statistics.
type PacketStatistics struct {
	RxBytes uint64
	TxBytes uint64
}

// WDSClient is the typed client for the Wireless Data Service.
type WDSClient struct {
	dev      *Device
	clientID uint8
}

// NewWDSClient allocates a WDS client on dev.
func NewWDSClient(dev *Device) *WDSClient {
	return &WDSClient{dev: dev, clientID: dev.AllocateClient(ServiceWDS)}
}

// Release releases the client ID.
func (c *WDSClient) Release() { c.dev.ReleaseClient(ServiceWDS, c.clientID) }

// SetIPFamily requests an IP family for the subsequent start_network call.
func (c *WDSClient) SetIPFamily(ctx context.Context, fam IPFamily) error {
	_, err := c.dev.Call(ctx, ServiceWDS, c.clientID, wdsSetIPFamily, []TLV{u8TLV(0x01, uint8(fam))})
	return err
}

// StartNetwork brings up a packet-data session (spec.md §4.6 step 2).
func (c *WDSClient) StartNetwork(ctx context.Context, p StartNetworkParams) (uint32, error) {
	var tlvs []TLV
	if p.APN != "" {
		tlvs = append(tlvs, stringTLV(0x14, p.APN))
	}
	if p.Username != "" || p.Password != "" {
		tlvs = append(tlvs, u8TLV(0x16, uint8(p.Auth)))
		tlvs = append(tlvs, stringTLV(0x17, p.Username))
		tlvs = append(tlvs, stringTLV(0x18, p.Password))
	}
	if p.IPFamilyPreference != 0 {
		tlvs = append(tlvs, u8TLV(0x19, uint8(p.IPFamilyPreference)))
	}
	tlvs2, err := c.dev.Call(ctx, ServiceWDS, c.clientID, wdsStartNetwork, tlvs)
	if err != nil {
		if errIs(err, ErrNoEffect) {
			return AllOnesHandle, nil
		}
		if errIs(err, ErrCallFailed) {
			return 0, CallFailedError{Detail: extractCallEndReason(tlvs2)}
		}
		return 0, err
	}
	if t, ok := findTLV(tlvs2, 0x01); ok && len(t.Value) >= 4 {
		return binary.LittleEndian.Uint32(t.Value), nil
	}
	return 0, ErrMalformed
}

// CallFailedError carries the verbose call-end-reason detail spec.md §4.6
// step 2 requires be embedded in the user-visible error string.
type CallFailedError struct {
	Detail string
}

func (e CallFailedError) Error() string {
	return fmt.Sprintf("call failed: %s", e.Detail)
}

func extractCallEndReason(tlvs []TLV) string {
	reason := "unknown"
	verbose := ""
	if t, ok := findTLV(tlvs, 0x11); ok && len(t.Value) >= 2 {
		reason = fmt.Sprintf("%d", binary.LittleEndian.Uint16(t.Value))
	}
	if t, ok := findTLV(tlvs, 0x12); ok {
		verbose = string(t.Value)
	}
	if verbose != "" {
		return fmt.Sprintf("call-end-reason=%s (%s)", reason, verbose)
	}
	return fmt.Sprintf("call-end-reason=%s", reason)
}

// StopNetwork tears down a packet-data session.
func (c *WDSClient) StopNetwork(ctx context.Context, handle uint32) error {
	_, err := c.dev.Call(ctx, ServiceWDS, c.clientID, wdsStopNetwork, []TLV{u32TLV(0x01, handle)})
	if errIs(err, ErrNoEffect) {
		return nil
	}
	return err
}

// GetCurrentSettings requests {IpAddress, DnsAddress, GatewayInfo, MTU}
// (spec.md §4.6 step 3).
func (c *WDSClient) GetCurrentSettings(ctx context.Context) (CurrentSettings, error) {
	tlvs, err := c.dev.Call(ctx, ServiceWDS, c.clientID, wdsGetCurrentSettings, []TLV{u32TLV(0x10, 0x0000000f)})
	if err != nil {
		return CurrentSettings{}, err
	}
	var s CurrentSettings
	if t, ok := findTLV(tlvs, 0x1e); ok && len(t.Value) >= 4 {
		s.IPAddress = ipv4String(t.Value[0:4])
	}
	if t, ok := findTLV(tlvs, 0x21); ok && len(t.Value) >= 4 {
		s.SubnetMask = ipv4String(t.Value[0:4])
	}
	if t, ok := findTLV(tlvs, 0x20); ok && len(t.Value) >= 4 {
		s.Gateway = ipv4String(t.Value[0:4])
	}
	if t, ok := findTLV(tlvs, 0x15); ok && len(t.Value) >= 8 {
		s.PrimaryDNS = ipv4String(t.Value[0:4])
		s.SecondaryDNS = ipv4String(t.Value[4:8])
	}
	if t, ok := findTLV(tlvs, 0x29); ok && len(t.Value) >= 4 {
		s.MTU = binary.LittleEndian.Uint32(t.Value)
	}
	return s, nil
}

// GetPacketStatistics reads the current (or, after call end, last-call)
// rx/tx byte counters (spec.md §4.6 DISCONNECT: "preferring the last_call_*
// TLVs, which succeed even after the call ends").
func (c *WDSClient) GetPacketStatistics(ctx context.Context) (PacketStatistics, error) {
	tlvs, err := c.dev.Call(ctx, ServiceWDS, c.clientID, wdsGetPacketStatistics, []TLV{u32TLV(0x10, 0x000000c0)})
	if err != nil {
		return PacketStatistics{}, err
	}
	var s PacketStatistics
	if t, ok := findTLV(tlvs, 0x23); ok && len(t.Value) >= 8 { // last_call_rx_bytes
		s.RxBytes = binary.LittleEndian.Uint64(t.Value)
	} else if t, ok := findTLV(tlvs, 0x0f); ok && len(t.Value) >= 8 { // rx_bytes_ok
		s.RxBytes = binary.LittleEndian.Uint64(t.Value)
	}
	if t, ok := findTLV(tlvs, 0x24); ok && len(t.Value) >= 8 { // last_call_tx_bytes
		s.TxBytes = binary.LittleEndian.Uint64(t.Value)
	} else if t, ok := findTLV(tlvs, 0x10); ok && len(t.Value) >= 8 { // tx_bytes_ok
		s.TxBytes = binary.LittleEndian.Uint64(t.Value)
	}
	return s, nil
}

func ipv4String(b []byte) string {
	return fmt.Sprintf("%d.%d.%d.%d", b[0], b[1], b[2], b[3])
}
