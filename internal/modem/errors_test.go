package modem

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aleksander0m/ravemodemfactory-sub000/internal/ipc"
	"github.com/aleksander0m/ravemodemfactory-sub000/internal/qmi"
)

func TestMapStatusKindErrors(t *testing.T) {
	assert.Equal(t, ipc.StatusOK, mapStatus(nil))
	assert.Equal(t, ipc.StatusNoModem, mapStatus(ErrNoModem))
	assert.Equal(t, ipc.StatusInvalidState, mapStatus(ErrInvalidState))
	assert.Equal(t, ipc.StatusInvalidInput, mapStatus(ErrInvalidInput))
	assert.Equal(t, ipc.StatusNotSupported, mapStatus(ErrNotSupported))
	assert.Equal(t, ipc.StatusUnknownCommand, mapStatus(ErrUnknownCmd))
	assert.Equal(t, ipc.StatusSimError, mapStatus(ErrNoSim))
	assert.Equal(t, ipc.StatusInvalidPin, mapStatus(ErrInvalidPin))
}

func TestMapStatusQMIPassthrough(t *testing.T) {
	assert.Equal(t, ipc.QMIStatus(uint32(qmi.ErrInternal)), mapStatus(qmi.ErrInternal))
}

func TestMapStatusCallFailedMapsToCallFailedCode(t *testing.T) {
	err := qmi.CallFailedError{Detail: "call-end-reason=42"}
	assert.Equal(t, ipc.QMIStatus(uint32(qmi.ErrCallFailed)), mapStatus(err))
}

func TestMapStatusUnknownErrorDegradesToUnknown(t *testing.T) {
	assert.Equal(t, ipc.StatusUnknown, mapStatus(assertionOnlyError{}))
}

type assertionOnlyError struct{}

func (assertionOnlyError) Error() string { return "boom" }

func TestErrorMessageEmptyForNil(t *testing.T) {
	assert.Equal(t, "", errorMessage(nil))
}

func TestKindErrorMessageIncludesDetail(t *testing.T) {
	err := newKindError(KindInvalidState, "permanently blocked")
	assert.Equal(t, "invalid state: permanently blocked", err.Error())
}
