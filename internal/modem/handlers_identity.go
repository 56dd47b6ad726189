package modem

import (
	"github.com/aleksander0m/ravemodemfactory-sub000/internal/ipc"
)

// handleGetManufacturer, handleGetModel, ... implement the read-only DMS
// string queries (spec.md §4.5 "Identity handlers"). They share one shape:
// a single QMI call, copied verbatim into one AddString response field.

func handleGetManufacturer(m *Modem, cmd uint32, r *ipc.Reader) []byte {
	ctx, cancel := callCtx(defaultCallTimeout)
	defer cancel()
	s, err := m.pool.DMS.GetManufacturer(ctx)
	if err != nil {
		return errorFrame(cmd, err)
	}
	return successFrame(cmd).AddString(s).Serialize()
}

func handleGetModel(m *Modem, cmd uint32, r *ipc.Reader) []byte {
	ctx, cancel := callCtx(defaultCallTimeout)
	defer cancel()
	s, err := m.pool.DMS.GetModel(ctx)
	if err != nil {
		return errorFrame(cmd, err)
	}
	return successFrame(cmd).AddString(s).Serialize()
}

func handleGetSoftwareRevision(m *Modem, cmd uint32, r *ipc.Reader) []byte {
	ctx, cancel := callCtx(defaultCallTimeout)
	defer cancel()
	s, err := m.pool.DMS.GetSoftwareRevision(ctx)
	if err != nil {
		return errorFrame(cmd, err)
	}
	return successFrame(cmd).AddString(s).Serialize()
}

func handleGetHardwareRevision(m *Modem, cmd uint32, r *ipc.Reader) []byte {
	ctx, cancel := callCtx(defaultCallTimeout)
	defer cancel()
	s, err := m.pool.DMS.GetHardwareRevision(ctx)
	if err != nil {
		return errorFrame(cmd, err)
	}
	return successFrame(cmd).AddString(s).Serialize()
}

func handleGetImei(m *Modem, cmd uint32, r *ipc.Reader) []byte {
	ctx, cancel := callCtx(defaultCallTimeout)
	defer cancel()
	s, err := m.pool.DMS.GetIMEI(ctx)
	if err != nil {
		return errorFrame(cmd, err)
	}
	return successFrame(cmd).AddString(s).Serialize()
}

func handleGetImsi(m *Modem, cmd uint32, r *ipc.Reader) []byte {
	ctx, cancel := callCtx(defaultCallTimeout)
	defer cancel()
	s, err := m.pool.DMS.GetIMSI(ctx)
	if err != nil {
		return errorFrame(cmd, err)
	}
	return successFrame(cmd).AddString(s).Serialize()
}

func handleGetIccid(m *Modem, cmd uint32, r *ipc.Reader) []byte {
	ctx, cancel := callCtx(defaultCallTimeout)
	defer cancel()
	s, err := m.pool.UIM.GetICCID(ctx)
	if err != nil {
		return errorFrame(cmd, err)
	}
	return successFrame(cmd).AddString(s).Serialize()
}

// handleIsModemAvailable answers synthetically, without touching the
// modem: true iff the QMI device is open and a data-port name is bound
// (spec.md §4.5 "IS_MODEM_AVAILABLE"). It is dispatched specially since it
// must answer even when the modem is otherwise unusable.
func (m *Modem) handleIsModemAvailable(cmd uint32) []byte {
	available := qmiClientAvailable(m.pool.Device()) && m.coord.InterfaceName() != ""
	return successFrame(cmd).AddU32(boolToU32(available)).Serialize()
}
