package qmi

import (
	"context"
	"encoding/binary"
)

// NAS message IDs (Network Access Service).
const (
	nasGetSignalInfo          uint16 = 0x004f
	nasGetTxRxInfo            uint16 = 0x003b
	nasInitiateNetworkRegister uint16 = 0x0022
	nasNetworkScan            uint16 = 0x0021
	nasServingSystemIndication uint16 = 0x0024
)

// RadioInterface identifies a radio access technology.
type RadioInterface uint8

// Radio interfaces (spec.md §4.5 GET_POWER_INFO).
const (
	RadioInterfaceGSM RadioInterface = iota
	RadioInterfaceUMTS
	RadioInterfaceLTE
)

// TxRxInfo is one radio interface's per-chain power readings.
type TxRxInfo struct {
	Interface  RadioInterface
	RxTuned    [2]bool
	RxPower01  [2]int32 // tenths of a dBm
	InTraffic  bool
	TxPower01  int32 // tenths of a dBm
}

// HasAny reports whether this entry carries any traffic or tuned chain, per
// spec.md §4.5 "Interfaces whose TLV indicates neither traffic nor any
// tuned chain are omitted".
func (t TxRxInfo) HasAny() bool {
	return t.InTraffic || t.RxTuned[0] || t.RxTuned[1]
}

// SignalStrength is one technology's signal-strength reading.
type SignalStrength struct {
	Interface RadioInterface
	RSSIDBm   int32
}

// RegState mirrors the NAS registration-state enumeration relevant to the
// registration controller (spec.md §4.7).
type RegState uint8

// Registration states.
const (
	RegStateNotRegistered RegState = iota
	RegStateRegistered
	RegStateNotRegisteredSearching
	RegStateRegistrationDenied
	RegStateUnknown
)

// ServingSystemInfo is the decoded content of a NAS serving_system
// indication (spec.md §4.7 "Indication handling").
type ServingSystemInfo struct {
	RegState     RegState
	Roaming      bool
	OperatorMCC  uint16
	OperatorMNC  uint16
	OperatorDesc string
	LAC          uint16
	CID          uint32
}

// NASClient is the typed client for the Network Access Service.
type NASClient struct {
	dev      *Device
	clientID uint8
}

// NewNASClient allocates a NAS client on dev.
func NewNASClient(dev *Device) *NASClient {
	return &NASClient{dev: dev, clientID: dev.AllocateClient(ServiceNAS)}
}

// Release releases the client ID.
func (c *NASClient) Release() { c.dev.ReleaseClient(ServiceNAS, c.clientID) }

// GetTxRxInfo reads the per-chain power readings for one radio interface
// (spec.md §4.5 GET_POWER_INFO: "Three sequential NAS get_tx_rx_info calls,
// one per radio interface").
func (c *NASClient) GetTxRxInfo(ctx context.Context, iface RadioInterface) (TxRxInfo, error) {
	tlvs, err := c.dev.Call(ctx, ServiceNAS, c.clientID, nasGetTxRxInfo, []TLV{u8TLV(0x01, uint8(iface))})
	if err != nil {
		return TxRxInfo{}, err
	}
	info := TxRxInfo{Interface: iface}
	if t, ok := findTLV(tlvs, 0x10); ok && len(t.Value) >= 10 {
		info.RxTuned[0] = t.Value[0] != 0
		info.RxPower01[0] = int32(int16(binary.LittleEndian.Uint16(t.Value[1:3])))
		info.RxTuned[1] = t.Value[3] != 0
		info.RxPower01[1] = int32(int16(binary.LittleEndian.Uint16(t.Value[4:6])))
		info.InTraffic = t.Value[6] != 0
		info.TxPower01 = int32(int16(binary.LittleEndian.Uint16(t.Value[7:9])))
	}
	return info, nil
}

// GetSignalInfo reads the present per-technology signal strengths.
func (c *NASClient) GetSignalInfo(ctx context.Context) ([]SignalStrength, error) {
	tlvs, err := c.dev.Call(ctx, ServiceNAS, c.clientID, nasGetSignalInfo, nil)
	if err != nil {
		return nil, err
	}
	var out []SignalStrength
	ifaceForType := map[uint8]RadioInterface{0x10: RadioInterfaceGSM, 0x11: RadioInterfaceUMTS, 0x12: RadioInterfaceLTE}
	for tlvType, iface := range ifaceForType {
		if t, ok := findTLV(tlvs, tlvType); ok && len(t.Value) >= 1 {
			out = append(out, SignalStrength{Interface: iface, RSSIDBm: int32(int8(t.Value[0]))})
		}
	}
	return out, nil
}

// InitiateNetworkRegister requests automatic network registration
// (fire-and-forget per spec.md §4.7 step 2).
func (c *NASClient) InitiateNetworkRegister(ctx context.Context) error {
	_, err := c.dev.Call(ctx, ServiceNAS, c.clientID, nasInitiateNetworkRegister, []TLV{u8TLV(0x01, 0x00)}) // 0x00 = automatic
	return err
}

// NetworkScan requests an explicit network scan (spec.md §4.7: 120 s
// budget, enforced by the caller's context).
func (c *NASClient) NetworkScan(ctx context.Context) error {
	_, err := c.dev.Call(ctx, ServiceNAS, c.clientID, nasNetworkScan, nil)
	return err
}

// SubscribeServingSystem subscribes to serving-system indications.
func (c *NASClient) SubscribeServingSystem(ctx context.Context) (<-chan ServingSystemInfo, func(), error) {
	raw, cancel, err := c.dev.Subscribe(ServiceNAS, nasServingSystemIndication)
	if err != nil {
		return nil, nil, err
	}
	out := make(chan ServingSystemInfo)
	go func() {
		defer close(out)
		for tlvs := range raw {
			out <- decodeServingSystem(tlvs)
		}
	}()
	return out, cancel, nil
}

func decodeServingSystem(tlvs []TLV) ServingSystemInfo {
	var info ServingSystemInfo
	if t, ok := findTLV(tlvs, 0x01); ok && len(t.Value) >= 2 {
		info.RegState = RegState(t.Value[0])
		info.Roaming = t.Value[1] != 0
	}
	if t, ok := findTLV(tlvs, 0x12); ok && len(t.Value) >= 4 {
		info.OperatorMCC = binary.LittleEndian.Uint16(t.Value[0:2])
		info.OperatorMNC = binary.LittleEndian.Uint16(t.Value[2:4])
	}
	if t, ok := findTLV(tlvs, 0x13); ok {
		info.OperatorDesc = string(t.Value)
	}
	if t, ok := findTLV(tlvs, 0x14); ok && len(t.Value) >= 6 {
		info.LAC = binary.LittleEndian.Uint16(t.Value[0:2])
		info.CID = binary.LittleEndian.Uint32(t.Value[2:6])
	}
	return info
}
