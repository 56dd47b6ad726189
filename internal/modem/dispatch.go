package modem

// handlers maps every non-synthetic command to its handler (spec.md §4.5).
// IsModemAvailable is routed directly by dispatch and has no entry here.
var handlers = map[Command]handlerFunc{
	CmdGetManufacturer:        handleGetManufacturer,
	CmdGetModel:               handleGetModel,
	CmdGetSoftwareRevision:    handleGetSoftwareRevision,
	CmdGetHardwareRevision:    handleGetHardwareRevision,
	CmdGetImei:                handleGetImei,
	CmdGetImsi:                handleGetImsi,
	CmdGetIccid:               handleGetIccid,
	CmdUnlock:                 handleUnlock,
	CmdEnablePin:              handleEnablePin,
	CmdChangePin:              handleChangePin,
	CmdGetPowerStatus:         handleGetPowerStatus,
	CmdSetPowerStatus:         handleSetPowerStatus,
	CmdGetPowerInfo:           handleGetPowerInfo,
	CmdGetSignalInfo:          handleGetSignalInfo,
	CmdGetRegistrationStatus:  handleGetRegistrationStatus,
	CmdGetConnectionStatus:    handleGetConnectionStatus,
	CmdGetConnectionStats:     handleGetConnectionStats,
	CmdConnect:                handleConnect,
	CmdDisconnect:             handleDisconnect,
	CmdGetSimInfo:             handleGetSimInfo,
	CmdIsSimLocked:            handleIsSimLocked,
	CmdPowerCycle:             handlePowerCycle,
	CmdGetRegistrationTimeout: handleGetRegistrationTimeout,
	CmdSetRegistrationTimeout: handleSetRegistrationTimeout,
	CmdGetDataPort:            handleGetDataPort,
	CmdGetSimSlot:             handleGetSimSlot,
	CmdSetSimSlot:             handleSetSimSlot,
}
