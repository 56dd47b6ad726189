package modem

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/aleksander0m/ravemodemfactory-sub000/internal/ipc"
	"github.com/aleksander0m/ravemodemfactory-sub000/internal/qmi"
)

// Kind is an internal error kind (spec.md §7), distinct from the raw QMI
// error codes that pass through verbatim.
type Kind int

// Internal error kinds.
const (
	KindUnknown Kind = iota
	KindMalformedFrame
	KindUnknownCommand
	KindNoModem
	KindInvalidState
	KindInvalidInput
	KindNotSupported
	KindPinRequired
	KindPukRequired
	KindSimError
	KindInvalidPin
)

// kindError wraps a Kind as an error, mirroring at.go's CMEError/CMSError:
// a small typed wrapper rather than a bag of sentinel values, so a Kind can
// still carry a descriptive message.
type kindError struct {
	kind Kind
	msg  string
}

func (e *kindError) Error() string {
	if e.msg == "" {
		return kindName(e.kind)
	}
	return fmt.Sprintf("%s: %s", kindName(e.kind), e.msg)
}

func kindName(k Kind) string {
	switch k {
	case KindMalformedFrame:
		return "malformed frame"
	case KindUnknownCommand:
		return "unknown command"
	case KindNoModem:
		return "no modem"
	case KindInvalidState:
		return "invalid state"
	case KindInvalidInput:
		return "invalid input"
	case KindNotSupported:
		return "not supported"
	case KindPinRequired:
		return "PIN required"
	case KindPukRequired:
		return "PUK required"
	case KindSimError:
		return "SIM error"
	case KindInvalidPin:
		return "invalid PIN"
	default:
		return "unknown error"
	}
}

// newKindError builds an error of the given kind with an optional
// descriptive message (spec.md §7 "User-visible ... error frames carry the
// mapped status and an optional descriptive string").
func newKindError(k Kind, msg string) error {
	return &kindError{kind: k, msg: msg}
}

// Sentinel kind errors with no message, for use with errors.Is-style
// comparisons at call sites that don't need a custom message.
var (
	ErrNoModem      = newKindError(KindNoModem, "")
	ErrInvalidState = newKindError(KindInvalidState, "")
	ErrInvalidInput = newKindError(KindInvalidInput, "")
	ErrNotSupported = newKindError(KindNotSupported, "")
	ErrUnknownCmd   = newKindError(KindUnknownCommand, "")
	ErrNoSim        = newKindError(KindSimError, "no SIM")
	ErrInvalidPin   = newKindError(KindInvalidPin, "")
)

// mapStatus implements C11: internal kinds map to fixed wire statuses, QMI
// protocol errors pass through as 100+n, and anything else degrades to
// Unknown (spec.md §7).
func mapStatus(err error) ipc.Status {
	if err == nil {
		return ipc.StatusOK
	}
	var ke *kindError
	if errors.As(err, &ke) {
		switch ke.kind {
		case KindMalformedFrame:
			return ipc.StatusInvalidRequest
		case KindUnknownCommand:
			return ipc.StatusUnknownCommand
		case KindNoModem:
			return ipc.StatusNoModem
		case KindPinRequired:
			return ipc.StatusPinRequired
		case KindPukRequired:
			return ipc.StatusPukRequired
		case KindSimError:
			return ipc.StatusSimError
		case KindInvalidPin:
			return ipc.StatusInvalidPin
		case KindInvalidState:
			return ipc.StatusInvalidState
		case KindInvalidInput:
			return ipc.StatusInvalidInput
		case KindNotSupported:
			return ipc.StatusNotSupported
		default:
			return ipc.StatusUnknown
		}
	}
	var qe qmi.Error
	if errors.As(err, &qe) {
		return ipc.QMIStatus(qe.Code())
	}
	var cfe qmi.CallFailedError
	if errors.As(err, &cfe) {
		return ipc.QMIStatus(uint32(qmi.ErrCallFailed))
	}
	return ipc.StatusUnknown
}

// errorMessage extracts the descriptive string (if any) to attach to an
// error response frame (spec.md §7 "User-visible").
func errorMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
