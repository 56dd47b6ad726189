package modem

import (
	"context"
	"log"
	"time"

	"github.com/aleksander0m/ravemodemfactory-sub000/internal/datalink"
	"github.com/aleksander0m/ravemodemfactory-sub000/internal/ipc"
	"github.com/aleksander0m/ravemodemfactory-sub000/internal/qmi"
	"github.com/aleksander0m/ravemodemfactory-sub000/internal/registration"
	"github.com/aleksander0m/ravemodemfactory-sub000/internal/sms"
	"github.com/aleksander0m/ravemodemfactory-sub000/internal/stats"
)

// ConnectionState is the data-connection state machine (spec.md §3
// ConnectionState).
type ConnectionState int

// Connection states.
const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
	Disconnecting
)

const (
	defaultCallTimeout = 5 * time.Second
	longCallTimeout    = 10 * time.Second
	statsSamplePeriod  = 10 * time.Second
)

// Modem is the daemon's single-threaded event loop (spec.md §2, §5). It
// owns the request queue, the registration controller, the SMS engine and
// the stats pipeline, and guarantees at most one QMI call is ever in
// flight (C3's serialization discipline).
type Modem struct {
	pool   *Pool
	coord  *datalink.Coordinator
	queue  *ipc.Queue
	logger *log.Logger

	reg *registration.Controller
	sms *sms.Engine

	statsPath    string
	journal      *stats.Journal
	statsTimer   *time.Timer
	packetHandle uint32

	connState ConnectionState
	simReady  bool
	simSlot   uint32
}

// New wires a Modem over an already-opened Pool/Coordinator.
func New(pool *Pool, coord *datalink.Coordinator, statsPath string, logger *log.Logger) *Modem {
	m := &Modem{
		pool:      pool,
		coord:     coord,
		queue:     ipc.NewQueue(),
		logger:    logger,
		statsPath: statsPath,
		connState: Disconnected,
	}
	m.reg = registration.New(pool.NAS, logger)
	m.sms = sms.New(pool.WMS, logger)
	m.sms.Emit = m.emitSMS
	return m
}

// Queue returns the request queue the IPC server enqueues onto.
func (m *Modem) Queue() *ipc.Queue { return m.queue }

// Run drives the event loop until ctx is cancelled.
func (m *Modem) Run(ctx context.Context) error {
	if err := stats.Recover(m.statsPath, m.emitStatsSummary); err != nil {
		m.logf("stats: recovery: %v", err)
	}

	smsIndCh, smsIndCancel, err := m.pool.WMS.SubscribeNewMessage(ctx)
	if err != nil {
		m.logf("sms: subscribe new message indication: %v", err)
	} else {
		defer smsIndCancel()
		if err := m.pool.WMS.SetNewMessageIndicator(ctx, true); err != nil {
			m.logf("sms: set new message indicator: %v", err)
		}
		if err := m.pool.WMS.SetDefaultRoutes(ctx); err != nil {
			m.logf("sms: set default routes: %v", err)
		}
	}
	m.sms.ListAll(ctx)
	m.reg.Start()

	defer m.shutdown()
	for {
		var timerC <-chan time.Time
		if m.statsTimer != nil {
			timerC = m.statsTimer.C
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req, ok := <-m.queue.Next():
			if !ok {
				return nil
			}
			m.dispatch(req)
		case d, ok := <-smsIndCh:
			if ok {
				m.sms.HandleIndication(ctx, d)
			}
		case <-timerC:
			m.sampleStats()
		}
	}
}

func (m *Modem) shutdown() {
	m.queue.Close()
	m.reg.Close()
	if m.statsTimer != nil {
		m.statsTimer.Stop()
	}
	m.pool.Close()
}

func (m *Modem) emitSMS(msg sms.Message) {
	m.logf("SMS [Timestamp: %s] [From: %s] %s", msg.Timestamp.Format("2006-01-02 15:04:05"), msg.Address, msg.Text)
}

func (m *Modem) emitStatsSummary(line string) {
	m.logf("%s", line)
}

func (m *Modem) logf(format string, args ...interface{}) {
	if m.logger != nil {
		m.logger.Printf(format, args...)
	}
}

func callCtx(d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), d)
}

// dispatch decodes req, routes it to a command handler, and writes the
// response frame (spec.md §4.5, §4.2 "let C3 own the write-back").
func (m *Modem) dispatch(req *ipc.Request) {
	cmd := Command(req.Header.Command)
	reader, err := ipc.NewReader(req.Frame)
	if err != nil {
		req.Reply(errorFrame(req.Header.Command, newKindError(KindMalformedFrame, err.Error())))
		return
	}

	if cmd == CmdIsModemAvailable {
		req.Reply(m.handleIsModemAvailable(req.Header.Command))
		return
	}

	h, ok := handlers[cmd]
	if !ok {
		req.Reply(errorFrame(req.Header.Command, ErrUnknownCmd))
		return
	}
	req.Reply(h(m, req.Header.Command, reader))
}

// handlerFunc is implemented once per command verb (spec.md §4.5).
type handlerFunc func(m *Modem, cmd uint32, r *ipc.Reader) []byte

// successFrame and errorFrame are the two terminal outcomes every handler
// produces (spec.md §4.5 "Every handler ends by filling the Request's
// response buffer with either a command-specific success frame or an error
// frame").
func successFrame(cmd uint32) *ipc.Builder {
	return ipc.NewBuilder(ipc.TypeResponse, cmd, ipc.StatusOK)
}

func errorFrame(cmd uint32, err error) []byte {
	return ipc.NewBuilder(ipc.TypeResponse, cmd, mapStatus(err)).AddString(errorMessage(err)).Serialize()
}

func qmiClientAvailable(d *qmi.Device) bool {
	select {
	case <-d.Closed():
		return false
	default:
		return true
	}
}
