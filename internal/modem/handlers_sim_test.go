package modem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aleksander0m/ravemodemfactory-sub000/internal/ipc"
	"github.com/aleksander0m/ravemodemfactory-sub000/internal/qmi"
)

func TestSimUnlockedStates(t *testing.T) {
	assert.True(t, simUnlocked(qmi.AppStateDisabled))
	assert.True(t, simUnlocked(qmi.AppStateEnabledVerified))
	assert.False(t, simUnlocked(qmi.AppStatePINRequired))
	assert.False(t, simUnlocked(qmi.AppStateEnabledNotVerified))
}

func TestFinishPinOperationRemapsNoEffectToSuccess(t *testing.T) {
	frame := finishPinOperation(uint32(CmdEnablePin), qmi.ErrNoEffect)
	status, err := ipc.GetStatus(frame)
	require.NoError(t, err)
	assert.Equal(t, ipc.StatusOK, status)
}

func TestFinishPinOperationRemapsInternalToNoSim(t *testing.T) {
	frame := finishPinOperation(uint32(CmdEnablePin), qmi.ErrInternal)
	status, err := ipc.GetStatus(frame)
	require.NoError(t, err)
	assert.Equal(t, ipc.StatusSimError, status)
}

func TestFinishPinOperationPassesThroughOtherErrors(t *testing.T) {
	frame := finishPinOperation(uint32(CmdEnablePin), ErrInvalidPin)
	status, err := ipc.GetStatus(frame)
	require.NoError(t, err)
	assert.Equal(t, ipc.StatusInvalidPin, status)
}
