package qmi

import "context"

// DMS message IDs (Device Management Service).
const (
	dmsGetManufacturer     uint16 = 0x0021
	dmsGetModel            uint16 = 0x0022
	dmsGetSoftwareRevision uint16 = 0x0023
	dmsGetIMEI             uint16 = 0x0025
	dmsGetIMSI             uint16 = 0x0020 // on UIM, but DMS also surfaces it
	dmsGetHardwareRevision uint16 = 0x002c
	dmsGetOperatingMode    uint16 = 0x0029
	dmsSetOperatingMode    uint16 = 0x002a
	dmsUIMSetPINProtection uint16 = 0x0032
	dmsUIMVerifyPIN        uint16 = 0x0033
	dmsUIMChangePIN        uint16 = 0x0034
)

const tlvStringResult uint8 = 0x01

// OperatingMode mirrors the DMS operating-mode enumeration (spec.md §4.5
// "Power handlers").
type OperatingMode uint8

// DMS operating modes.
const (
	OperatingModeOnline OperatingMode = iota
	OperatingModeLowPower
	OperatingModePersistentLowPower
	OperatingModeModeOnlyLowPower
	OperatingModeOffline
	OperatingModeReset
)

// DMSClient is the typed client for the Device Management Service.
type DMSClient struct {
	dev      *Device
	clientID uint8
}

// NewDMSClient allocates a DMS client on dev.
func NewDMSClient(dev *Device) *DMSClient {
	return &DMSClient{dev: dev, clientID: dev.AllocateClient(ServiceDMS)}
}

// Release releases the client ID.
func (c *DMSClient) Release() { c.dev.ReleaseClient(ServiceDMS, c.clientID) }

func (c *DMSClient) getString(ctx context.Context, msg uint16) (string, error) {
	tlvs, err := c.dev.Call(ctx, ServiceDMS, c.clientID, msg, nil)
	if err != nil {
		return "", err
	}
	t, ok := findTLV(tlvs, tlvStringResult)
	if !ok {
		return "", ErrMalformed
	}
	return string(t.Value), nil
}

// GetManufacturer reads the device manufacturer string.
func (c *DMSClient) GetManufacturer(ctx context.Context) (string, error) {
	return c.getString(ctx, dmsGetManufacturer)
}

// GetModel reads the device model string.
func (c *DMSClient) GetModel(ctx context.Context) (string, error) {
	return c.getString(ctx, dmsGetModel)
}

// GetSoftwareRevision reads the firmware revision string.
func (c *DMSClient) GetSoftwareRevision(ctx context.Context) (string, error) {
	return c.getString(ctx, dmsGetSoftwareRevision)
}

// GetHardwareRevision reads the hardware revision string.
func (c *DMSClient) GetHardwareRevision(ctx context.Context) (string, error) {
	return c.getString(ctx, dmsGetHardwareRevision)
}

// GetIMEI reads the device IMEI.
func (c *DMSClient) GetIMEI(ctx context.Context) (string, error) {
	return c.getString(ctx, dmsGetIMEI)
}

// GetIMSI reads the SIM's IMSI, as surfaced through DMS uim_get_imsi.
func (c *DMSClient) GetIMSI(ctx context.Context) (string, error) {
	return c.getString(ctx, dmsGetIMSI)
}

// GetOperatingMode reads the current DMS operating mode.
func (c *DMSClient) GetOperatingMode(ctx context.Context) (OperatingMode, error) {
	tlvs, err := c.dev.Call(ctx, ServiceDMS, c.clientID, dmsGetOperatingMode, nil)
	if err != nil {
		return 0, err
	}
	t, ok := findTLV(tlvs, tlvStringResult)
	if !ok || len(t.Value) < 1 {
		return 0, ErrMalformed
	}
	return OperatingMode(t.Value[0]), nil
}

// SetOperatingMode requests a DMS operating-mode transition.
func (c *DMSClient) SetOperatingMode(ctx context.Context, mode OperatingMode) error {
	_, err := c.dev.Call(ctx, ServiceDMS, c.clientID, dmsSetOperatingMode, []TLV{u8TLV(tlvStringResult, uint8(mode))})
	return err
}

// SetPINProtection enables or disables PIN1 protection, or returns
// ErrNoEffect (mapped to success by the caller) if already in the
// requested state.
func (c *DMSClient) SetPINProtection(ctx context.Context, enable bool, pin string) error {
	var en uint8
	if enable {
		en = 1
	}
	_, err := c.dev.Call(ctx, ServiceDMS, c.clientID, dmsUIMSetPINProtection, []TLV{
		u8TLV(0x01, en),
		stringTLV(0x02, pin),
	})
	return err
}

// VerifyPIN verifies PIN1 against the SIM.
func (c *DMSClient) VerifyPIN(ctx context.Context, pin string) error {
	_, err := c.dev.Call(ctx, ServiceDMS, c.clientID, dmsUIMVerifyPIN, []TLV{stringTLV(0x01, pin)})
	return err
}

// ChangePIN changes PIN1 from oldPIN to newPIN.
func (c *DMSClient) ChangePIN(ctx context.Context, oldPIN, newPIN string) error {
	_, err := c.dev.Call(ctx, ServiceDMS, c.clientID, dmsUIMChangePIN, []TLV{
		stringTLV(0x01, oldPIN),
		stringTLV(0x02, newPIN),
	})
	return err
}
