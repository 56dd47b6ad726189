// Package registration implements the registration controller (C6,
// spec.md §4.7): a background supervisor that keeps the modem attached,
// arms a timeout, triggers an explicit scan on expiry, and folds
// unsolicited serving-system indications into cached registration state.
//
// Structured as its own cmdCh-driven actor, the same way internal/qmi's
// Device serializes device access: external callers never touch state
// directly, they send closures over a channel to the run loop goroutine,
// which also owns the timeout timer and the live indication subscription.
package registration

import (
	"context"
	"log"
	"time"

	"github.com/aleksander0m/ravemodemfactory-sub000/internal/qmi"
)

// State is the registration state machine (spec.md §3 RegistrationState).
type State int

// Registration states.
const (
	StateIdle State = iota
	StateSearching
	StateHome
	StateRoaming
	StateScanning
)

// Status is the cached, queryable registration snapshot (spec.md §3).
type Status struct {
	State               State
	OperatorDescription string
	OperatorMCC         uint16
	OperatorMNC         uint16
	LAC                 uint16
	CID                 uint32
}

const (
	defaultTimeoutSecs = 60
	minTimeoutSecs     = 10
	scanBudget         = 120 * time.Second
	initiateBudget     = 10 * time.Second
)

// Controller drives the registration algorithm over a NAS client.
type Controller struct {
	nas    *qmi.NASClient
	logger *log.Logger

	cmdCh chan func(*state)
	quit  chan struct{}
}

// New creates a controller and starts its run loop. It does not begin
// registering until Start is called.
func New(nas *qmi.NASClient, logger *log.Logger) *Controller {
	c := &Controller{
		nas:    nas,
		logger: logger,
		cmdCh:  make(chan func(*state)),
		quit:   make(chan struct{}),
	}
	go c.run()
	return c
}

// Close stops the run loop, cancelling any in-flight scan.
func (c *Controller) Close() { close(c.quit) }

// Status returns a snapshot of the cached registration state.
func (c *Controller) Status() Status {
	done := make(chan Status, 1)
	c.cmdCh <- func(s *state) { done <- s.status() }
	return <-done
}

// TimeoutSecs returns the configured registration timeout.
func (c *Controller) TimeoutSecs() int {
	done := make(chan int, 1)
	c.cmdCh <- func(s *state) { done <- s.timeoutSecs }
	return <-done
}

// SetTimeoutSecs sets the controller's timeout. Values below 10 seconds are
// rejected (spec.md §4.5 SET_REGISTRATION_TIMEOUT).
func (c *Controller) SetTimeoutSecs(v int) error {
	if v < minTimeoutSecs {
		return ErrTooShort
	}
	done := make(chan struct{}, 1)
	c.cmdCh <- func(s *state) { s.timeoutSecs = v; done <- struct{}{} }
	<-done
	return nil
}

// Start (re-)arms the controller: cancels any in-flight scan, resets the
// elapsed counter, fires InitiateNetworkRegister, ensures the
// serving-system subscription is live, and arms the timeout timer
// (spec.md §4.7 "Algorithm on start").
func (c *Controller) Start() {
	done := make(chan struct{}, 1)
	c.cmdCh <- func(s *state) { s.start(true); done <- struct{}{} }
	<-done
}

func (c *Controller) run() {
	s := &state{
		ctrl:        c,
		timeoutSecs: defaultTimeoutSecs,
	}
	defer s.teardown()
	for {
		var timerC <-chan time.Time
		if s.timer != nil {
			timerC = s.timer.C
		}
		select {
		case cmd, ok := <-c.cmdCh:
			if !ok {
				return
			}
			cmd(s)
		case <-timerC:
			s.tick()
		case info, ok := <-s.indCh:
			if !ok {
				s.indCh = nil
				continue
			}
			s.handleIndication(info)
		case <-c.quit:
			return
		}
	}
}

type state struct {
	ctrl *Controller

	timeoutSecs int
	ongoingSecs int

	current State
	opDesc  string
	mcc     uint16
	mnc     uint16
	lac     uint16
	cid     uint32

	timer      *time.Timer
	indCh      <-chan qmi.ServingSystemInfo
	indCancel  func()
	scanCancel context.CancelFunc
}

func (s *state) status() Status {
	return Status{
		State:               s.current,
		OperatorDescription: s.opDesc,
		OperatorMCC:         s.mcc,
		OperatorMNC:         s.mnc,
		LAC:                 s.lac,
		CID:                 s.cid,
	}
}

func (s *state) start(armTimer bool) {
	if s.scanCancel != nil {
		s.scanCancel()
		s.scanCancel = nil
	}
	s.ongoingSecs = 0
	if s.indCh == nil {
		ch, cancel, err := s.ctrl.nas.SubscribeServingSystem(context.Background())
		if err != nil {
			s.ctrl.logf("registration: subscribe serving system: %v", err)
		} else {
			s.indCh = ch
			s.indCancel = cancel
		}
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), initiateBudget)
		defer cancel()
		if err := s.ctrl.nas.InitiateNetworkRegister(ctx); err != nil {
			s.ctrl.logf("registration: initiate network register: %v", err)
		}
	}()
	if armTimer {
		s.armTimer(s.nextInterval())
	}
}

func (s *state) nextInterval() time.Duration {
	remaining := s.timeoutSecs - s.ongoingSecs
	if remaining > 10 || remaining <= 0 {
		remaining = 10
	}
	return time.Duration(remaining) * time.Second
}

func (s *state) armTimer(d time.Duration) {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.NewTimer(d)
}

func (s *state) tick() {
	s.timer = nil
	if s.current == StateHome || s.current == StateRoaming {
		return
	}
	s.ongoingSecs += 10
	if s.ongoingSecs >= s.timeoutSecs {
		s.beginScan()
		return
	}
	s.armTimer(s.nextInterval())
}

func (s *state) beginScan() {
	s.current = StateScanning
	ctx, cancel := context.WithTimeout(context.Background(), scanBudget)
	s.scanCancel = cancel
	go func() {
		defer cancel()
		if err := s.ctrl.nas.NetworkScan(ctx); err != nil {
			s.ctrl.logf("registration: network scan: %v", err)
		}
		s.ctrl.cmdCh <- func(s *state) {
			s.scanCancel = nil
			// Re-enter without re-arming the timeout timer, to avoid scan
			// loops (spec.md §4.7 step 4).
			s.start(false)
		}
	}()
}

func (s *state) handleIndication(info qmi.ServingSystemInfo) {
	scanning := s.current == StateScanning
	switch {
	case info.RegState == qmi.RegStateRegistered && info.Roaming:
		s.current = StateRoaming
	case info.RegState == qmi.RegStateRegistered && !info.Roaming:
		if s.current != StateHome && s.timer != nil {
			s.timer.Stop()
			s.timer = nil
		}
		s.current = StateHome
	case info.RegState == qmi.RegStateNotRegisteredSearching:
		if !scanning {
			s.current = StateSearching
		}
	default:
		if !scanning {
			s.current = StateIdle
		}
	}
	if s.current == StateHome || s.current == StateRoaming {
		s.mcc, s.mnc, s.opDesc, s.lac, s.cid = info.OperatorMCC, info.OperatorMNC, info.OperatorDesc, info.LAC, info.CID
	} else {
		s.opDesc = ""
	}
}

func (s *state) teardown() {
	if s.timer != nil {
		s.timer.Stop()
	}
	if s.scanCancel != nil {
		s.scanCancel()
	}
	if s.indCancel != nil {
		s.indCancel()
	}
}

func (c *Controller) logf(format string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}

// ErrTooShort is returned by SetTimeoutSecs for values below the 10-second
// floor (spec.md §4.5 SET_REGISTRATION_TIMEOUT).
var ErrTooShort = tooShortError{}

type tooShortError struct{}

func (tooShortError) Error() string { return "registration timeout must be at least 10 seconds" }
