package modem

import (
	"github.com/aleksander0m/ravemodemfactory-sub000/internal/ipc"
)

func handleGetDataPort(m *Modem, cmd uint32, r *ipc.Reader) []byte {
	return successFrame(cmd).AddString(m.coord.InterfaceName()).Serialize()
}

// handleGetSimSlot/handleSetSimSlot model a single cached slot index
// (DESIGN.md "Open Question decisions": no example repo exercises
// multi-slot hardware, so this is a read/write cache rather than a real
// multi-slot enumeration).
func handleGetSimSlot(m *Modem, cmd uint32, r *ipc.Reader) []byte {
	return successFrame(cmd).AddU32(m.simSlot).Serialize()
}

func handleSetSimSlot(m *Modem, cmd uint32, r *ipc.Reader) []byte {
	v, err := r.ReadU32()
	if err != nil {
		return errorFrame(cmd, newKindError(KindMalformedFrame, err.Error()))
	}
	m.simSlot = v
	return successFrame(cmd).Serialize()
}
