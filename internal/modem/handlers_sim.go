package modem

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/aleksander0m/ravemodemfactory-sub000/internal/ipc"
	"github.com/aleksander0m/ravemodemfactory-sub000/internal/qmi"
)

const (
	unlockPollCount    = 20
	unlockPollInterval = 500 * time.Millisecond
)

// probeCard implements the shared card-status probe used by
// IS_SIM_LOCKED/UNLOCK/ENABLE_PIN/CHANGE_PIN (spec.md §4.5 "SIM lock
// handlers"): it selects the first SIM/USIM application on a present card
// and classifies the error taxonomy.
func probeCard(ctx context.Context, uim *qmi.UIMClient) (qmi.Application, error) {
	cards, err := uim.GetCardStatus(ctx)
	if err != nil {
		return qmi.Application{}, err
	}
	if len(cards) == 0 {
		return qmi.Application{}, ErrNoModem
	}
	for _, card := range cards {
		if card.State != qmi.CardStatePresent {
			continue
		}
		for _, app := range card.Apps {
			if app.Type != qmi.AppTypeSIM && app.Type != qmi.AppTypeUSIM {
				continue
			}
			switch app.State {
			case qmi.AppStateBlocked:
				return qmi.Application{}, newKindError(KindInvalidState, "permanently blocked")
			case qmi.AppStatePUKRequired:
				return qmi.Application{}, newKindError(KindInvalidState, "PUK locked")
			default:
				return app, nil
			}
		}
	}
	return qmi.Application{}, ErrInvalidState
}

func simUnlocked(state qmi.AppState) bool {
	return state == qmi.AppStateDisabled || state == qmi.AppStateEnabledVerified
}

func handleIsSimLocked(m *Modem, cmd uint32, r *ipc.Reader) []byte {
	ctx, cancel := callCtx(defaultCallTimeout)
	defer cancel()
	app, err := probeCard(ctx, m.pool.UIM)
	if err != nil {
		return errorFrame(cmd, err)
	}
	locked := uint32(0)
	if !simUnlocked(app.State) {
		locked = 1
	}
	return successFrame(cmd).AddU32(locked).Serialize()
}

func handleUnlock(m *Modem, cmd uint32, r *ipc.Reader) []byte {
	pin, err := r.ReadString()
	if err != nil {
		return errorFrame(cmd, newKindError(KindMalformedFrame, err.Error()))
	}

	ctx, cancel := callCtx(longCallTimeout)
	defer cancel()

	app, err := probeCard(ctx, m.pool.UIM)
	if err != nil {
		return errorFrame(cmd, err)
	}
	if simUnlocked(app.State) {
		m.onSimUnlocked()
		return successFrame(cmd).Serialize()
	}

	if err := m.pool.DMS.VerifyPIN(ctx, pin); err != nil {
		return errorFrame(cmd, err)
	}

	for i := 0; i < unlockPollCount; i++ {
		time.Sleep(unlockPollInterval)
		app, err = probeCard(ctx, m.pool.UIM)
		if err == nil && simUnlocked(app.State) {
			m.onSimUnlocked()
			return successFrame(cmd).Serialize()
		}
	}
	return errorFrame(cmd, newKindError(KindInvalidPin, "SIM did not unlock"))
}

// onSimUnlocked triggers the registration controller and an SMS listing
// pass, as if the SIM had just been unlocked (spec.md §4.5 UNLOCK steps
// 1 and 3).
func (m *Modem) onSimUnlocked() {
	m.simReady = true
	m.reg.Start()
	go m.sms.ListAll(context.Background())
}

func handleEnablePin(m *Modem, cmd uint32, r *ipc.Reader) []byte {
	enable, err := r.ReadU32()
	if err != nil {
		return errorFrame(cmd, newKindError(KindMalformedFrame, err.Error()))
	}
	pin, err := r.ReadString()
	if err != nil {
		return errorFrame(cmd, newKindError(KindMalformedFrame, err.Error()))
	}

	ctx, cancel := callCtx(defaultCallTimeout)
	defer cancel()
	if _, err := probeCard(ctx, m.pool.UIM); err != nil {
		return errorFrame(cmd, err)
	}
	err = m.pool.DMS.SetPINProtection(ctx, enable != 0, pin)
	return finishPinOperation(cmd, err)
}

func handleChangePin(m *Modem, cmd uint32, r *ipc.Reader) []byte {
	oldPin, err := r.ReadString()
	if err != nil {
		return errorFrame(cmd, newKindError(KindMalformedFrame, err.Error()))
	}
	newPin, err := r.ReadString()
	if err != nil {
		return errorFrame(cmd, newKindError(KindMalformedFrame, err.Error()))
	}

	ctx, cancel := callCtx(defaultCallTimeout)
	defer cancel()
	if _, err := probeCard(ctx, m.pool.UIM); err != nil {
		return errorFrame(cmd, err)
	}
	err = m.pool.DMS.ChangePIN(ctx, oldPin, newPin)
	return finishPinOperation(cmd, err)
}

// finishPinOperation implements the shared ENABLE_PIN/CHANGE_PIN error
// remapping (spec.md §4.5: NoEffect→success, Internal→NoSim).
func finishPinOperation(cmd uint32, err error) []byte {
	if err == nil {
		return successFrame(cmd).Serialize()
	}
	var qe qmi.Error
	if errors.As(err, &qe) {
		switch qe {
		case qmi.ErrNoEffect:
			return successFrame(cmd).Serialize()
		case qmi.ErrInternal:
			return errorFrame(cmd, ErrNoSim)
		}
	}
	return errorFrame(cmd, err)
}
