package modem

import (
	"github.com/aleksander0m/ravemodemfactory-sub000/internal/ipc"
	"github.com/aleksander0m/ravemodemfactory-sub000/internal/qmi"
)

// PowerStatus is the collapsed wire enumeration for GET/SET_POWER_STATUS
// (spec.md §4.5 "Power handlers").
type PowerStatus uint32

// Power statuses.
const (
	PowerStatusUnknown PowerStatus = iota
	PowerStatusFull
	PowerStatusLow
)

func handleGetPowerStatus(m *Modem, cmd uint32, r *ipc.Reader) []byte {
	ctx, cancel := callCtx(defaultCallTimeout)
	defer cancel()
	mode, err := m.pool.DMS.GetOperatingMode(ctx)
	if err != nil {
		return errorFrame(cmd, err)
	}
	status, ok := collapseOperatingMode(mode)
	if !ok {
		return errorFrame(cmd, newKindError(KindInvalidState, "unexpected operating mode"))
	}
	return successFrame(cmd).AddU32(uint32(status)).Serialize()
}

func collapseOperatingMode(mode qmi.OperatingMode) (PowerStatus, bool) {
	switch mode {
	case qmi.OperatingModeOnline:
		return PowerStatusFull, true
	case qmi.OperatingModeLowPower, qmi.OperatingModePersistentLowPower, qmi.OperatingModeModeOnlyLowPower, qmi.OperatingModeOffline:
		return PowerStatusLow, true
	default:
		return PowerStatusUnknown, false
	}
}

func handleSetPowerStatus(m *Modem, cmd uint32, r *ipc.Reader) []byte {
	v, err := r.ReadU32()
	if err != nil {
		return errorFrame(cmd, newKindError(KindMalformedFrame, err.Error()))
	}
	status := PowerStatus(v)

	var mode qmi.OperatingMode
	switch status {
	case PowerStatusFull:
		mode = qmi.OperatingModeOnline
	case PowerStatusLow:
		mode = qmi.OperatingModeLowPower
	default:
		return errorFrame(cmd, ErrInvalidInput)
	}

	ctx, cancel := callCtx(longCallTimeout)
	defer cancel()
	if err := m.pool.DMS.SetOperatingMode(ctx, mode); err != nil {
		return errorFrame(cmd, err)
	}
	if status == PowerStatusFull {
		m.reg.Start()
	}
	return successFrame(cmd).Serialize()
}

func handlePowerCycle(m *Modem, cmd uint32, r *ipc.Reader) []byte {
	ctx, cancel := callCtx(longCallTimeout)
	defer cancel()
	if err := m.pool.DMS.SetOperatingMode(ctx, qmi.OperatingModeOffline); err != nil {
		return errorFrame(cmd, err)
	}
	if err := m.pool.DMS.SetOperatingMode(ctx, qmi.OperatingModeReset); err != nil {
		return errorFrame(cmd, err)
	}
	return successFrame(cmd).Serialize()
}

// dBmToPercent linearly maps RSSI in dBm, clamped to [-113, -51], onto a
// [0, 100] percent scale (spec.md §4.5 "GET_SIGNAL_INFO").
func dBmToPercent(dbm int32) uint32 {
	const lo, hi = -113, -51
	if dbm < lo {
		dbm = lo
	}
	if dbm > hi {
		dbm = hi
	}
	return uint32((dbm - lo) * 100 / (hi - lo))
}

func handleGetSignalInfo(m *Modem, cmd uint32, r *ipc.Reader) []byte {
	ctx, cancel := callCtx(defaultCallTimeout)
	defer cancel()
	strengths, err := m.pool.NAS.GetSignalInfo(ctx)
	if err != nil {
		return errorFrame(cmd, err)
	}
	b := successFrame(cmd).AddU32(uint32(len(strengths)))
	for _, s := range strengths {
		b = b.AddU32(uint32(s.Interface)).AddI32(s.RSSIDBm).AddU32(dBmToPercent(s.RSSIDBm))
	}
	return b.Serialize()
}

func handleGetPowerInfo(m *Modem, cmd uint32, r *ipc.Reader) []byte {
	ctx, cancel := callCtx(defaultCallTimeout)
	defer cancel()

	var entries []qmi.TxRxInfo
	for _, iface := range []qmi.RadioInterface{qmi.RadioInterfaceGSM, qmi.RadioInterfaceUMTS, qmi.RadioInterfaceLTE} {
		info, err := m.pool.NAS.GetTxRxInfo(ctx, iface)
		if err != nil {
			return errorFrame(cmd, err)
		}
		if info.HasAny() {
			entries = append(entries, info)
		}
	}

	// Power fields are carried as tenths of a dBm on the wire (spec.md §4.5
	// "the response converts to dBm as 0.1 × raw"); the client divides.
	b := successFrame(cmd).AddU32(uint32(len(entries)))
	for _, e := range entries {
		b = b.AddU32(uint32(e.Interface)).
			AddU32(boolToU32(e.RxTuned[0])).AddI32(e.RxPower01[0]).
			AddU32(boolToU32(e.RxTuned[1])).AddI32(e.RxPower01[1]).
			AddU32(boolToU32(e.InTraffic)).AddI32(e.TxPower01)
	}
	return b.Serialize()
}
