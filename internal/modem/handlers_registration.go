package modem

import (
	"strconv"

	"github.com/aleksander0m/ravemodemfactory-sub000/internal/ipc"
	"github.com/aleksander0m/ravemodemfactory-sub000/internal/registration"
)

func handleGetRegistrationStatus(m *Modem, cmd uint32, r *ipc.Reader) []byte {
	s := m.reg.Status()
	return successFrame(cmd).
		AddU32(uint32(s.State)).
		AddString(s.OperatorDescription).
		AddString(strconv.Itoa(int(s.OperatorMCC))).
		AddString(strconv.Itoa(int(s.OperatorMNC))).
		AddU32(uint32(s.LAC)).
		AddU32(s.CID).
		Serialize()
}

func handleGetConnectionStatus(m *Modem, cmd uint32, r *ipc.Reader) []byte {
	return successFrame(cmd).AddU32(uint32(m.connState)).Serialize()
}

func handleGetConnectionStats(m *Modem, cmd uint32, r *ipc.Reader) []byte {
	if m.connState != Connected {
		return errorFrame(cmd, ErrInvalidState)
	}
	ctx, cancel := callCtx(defaultCallTimeout)
	defer cancel()
	stats, err := m.pool.WDS.GetPacketStatistics(ctx)
	if err != nil {
		return errorFrame(cmd, err)
	}
	return successFrame(cmd).AddU64(stats.RxBytes).AddU64(stats.TxBytes).Serialize()
}

func handleGetRegistrationTimeout(m *Modem, cmd uint32, r *ipc.Reader) []byte {
	return successFrame(cmd).AddU32(uint32(m.reg.TimeoutSecs())).Serialize()
}

func handleSetRegistrationTimeout(m *Modem, cmd uint32, r *ipc.Reader) []byte {
	v, err := r.ReadU32()
	if err != nil {
		return errorFrame(cmd, newKindError(KindMalformedFrame, err.Error()))
	}
	if err := m.reg.SetTimeoutSecs(int(v)); err != nil {
		if err == registration.ErrTooShort {
			return errorFrame(cmd, ErrInvalidInput)
		}
		return errorFrame(cmd, err)
	}
	return successFrame(cmd).Serialize()
}
