package qmi

import "context"

// UIM message IDs (User Identity Module service).
const (
	uimReadTransparent uint16 = 0x0020
	uimGetCardStatus   uint16 = 0x002f
	uimGetICCID        uint16 = 0x0011
)

// CardApplicationType identifies the SIM application type (spec.md §4.5
// "SIM lock handlers").
type CardApplicationType uint8

// Application types.
const (
	AppTypeUnknown CardApplicationType = iota
	AppTypeSIM
	AppTypeUSIM
)

// CardState is the per-card UIM state.
type CardState uint8

// Card states.
const (
	CardStateAbsent CardState = iota
	CardStateError
	CardStatePresent
)

// AppState is the per-application PIN state.
type AppState uint8

// Application PIN states (spec.md §3 RegistrationState-adjacent UIM state).
const (
	AppStateUnknown AppState = iota
	AppStateDetected
	AppStatePINRequired
	AppStatePUKRequired
	AppStateBlocked // permanently blocked (PUK attempts exhausted)
	AppStateDisabled
	AppStateEnabledVerified
	AppStateEnabledNotVerified
)

// Application describes one SIM/USIM application on a card.
type Application struct {
	Type  CardApplicationType
	State AppState
}

// Card describes one UIM card slot.
type Card struct {
	State CardState
	Apps  []Application
}

// UIMClient is the typed client for the User Identity Module service.
type UIMClient struct {
	dev      *Device
	clientID uint8
}

// NewUIMClient allocates a UIM client on dev.
func NewUIMClient(dev *Device) *UIMClient {
	return &UIMClient{dev: dev, clientID: dev.AllocateClient(ServiceUIM)}
}

// Release releases the client ID.
func (c *UIMClient) Release() { c.dev.ReleaseClient(ServiceUIM, c.clientID) }

// GetICCID reads the SIM's ICCID.
func (c *UIMClient) GetICCID(ctx context.Context) (string, error) {
	tlvs, err := c.dev.Call(ctx, ServiceUIM, c.clientID, uimGetICCID, nil)
	if err != nil {
		return "", err
	}
	t, ok := findTLV(tlvs, 0x01)
	if !ok {
		return "", ErrMalformed
	}
	return string(t.Value), nil
}

// GetCardStatus enumerates cards and their applications.
func (c *UIMClient) GetCardStatus(ctx context.Context) ([]Card, error) {
	tlvs, err := c.dev.Call(ctx, ServiceUIM, c.clientID, uimGetCardStatus, nil)
	if err != nil {
		return nil, err
	}
	t, ok := findTLV(tlvs, 0x10)
	if !ok {
		return nil, ErrMalformed
	}
	return decodeCards(t.Value), nil
}

// decodeCards decodes the simplified card-status TLV payload:
// [numCards][cardState][numApps]{[appType][appState]}...
func decodeCards(v []byte) []Card {
	var cards []Card
	if len(v) < 1 {
		return cards
	}
	numCards := int(v[0])
	off := 1
	for i := 0; i < numCards && off < len(v); i++ {
		card := Card{State: CardState(v[off])}
		off++
		if off >= len(v) {
			break
		}
		numApps := int(v[off])
		off++
		for j := 0; j < numApps && off+1 < len(v); j++ {
			card.Apps = append(card.Apps, Application{
				Type:  CardApplicationType(v[off]),
				State: AppState(v[off+1]),
			})
			off += 2
		}
		cards = append(cards, card)
	}
	return cards
}

// ReadTransparent reads an elementary file by its (fileID, path) pair. Used
// for EFad (MNC length) and EFoplmnwact (spec.md §4.5 GET_SIM_INFO).
func (c *UIMClient) ReadTransparent(ctx context.Context, fileID uint16, path []uint16) ([]byte, error) {
	pathBytes := make([]byte, 0, len(path)*2)
	for _, p := range path {
		pathBytes = append(pathBytes, byte(p), byte(p>>8))
	}
	tlvs, err := c.dev.Call(ctx, ServiceUIM, c.clientID, uimReadTransparent, []TLV{
		{Type: 0x01, Value: []byte{byte(fileID), byte(fileID >> 8)}},
		{Type: 0x02, Value: pathBytes},
	})
	if err != nil {
		return nil, err
	}
	t, ok := findTLV(tlvs, 0x10)
	if !ok {
		return nil, ErrMalformed
	}
	return t.Value, nil
}

// EFAD (Administrative Data) path under the master file / dedicated file
// hierarchy (3GPP TS 51.011 §10.3.18).
var (
	EFADFileID        uint16 = 0x6fad
	EFADPath                 = []uint16{0x3f00, 0x7f20}
	EFOPLMNwActFileID uint16 = 0x6f61
	EFOPLMNwActPath          = []uint16{0x3f00, 0x7f20}
)
