// Package modem implements the command dispatcher (C5), the QMI client
// pool (C4), and the internal/wire error mapping (C11) described in
// spec.md §4.4, §4.5 and §7. It is the daemon's single-threaded event loop:
// Modem.Run owns the request queue, the registration and stats timers, and
// every QMI indication subscription, and guarantees at most one QMI call is
// ever in flight against the modem.
package modem

// Command identifies an IPC request's verb (spec.md §6.2).
type Command uint32

// Command codes.
const (
	CmdUnknown Command = iota
	CmdGetManufacturer
	CmdGetModel
	CmdGetSoftwareRevision
	CmdGetHardwareRevision
	CmdGetImei
	CmdGetImsi
	CmdGetIccid
	CmdUnlock
	CmdEnablePin
	CmdChangePin
	CmdGetPowerStatus
	CmdSetPowerStatus
	CmdGetPowerInfo
	CmdGetSignalInfo
	CmdGetRegistrationStatus
	CmdGetConnectionStatus
	CmdGetConnectionStats
	CmdConnect
	CmdDisconnect

	// Extension commands (spec.md §9: "appear in handlers but are not all
	// enumerated in the public command table").
	CmdIsModemAvailable
	CmdGetSimInfo
	CmdIsSimLocked
	CmdPowerCycle
	CmdGetRegistrationTimeout
	CmdSetRegistrationTimeout
	CmdGetDataPort
	CmdGetSimSlot
	CmdSetSimSlot
)
