// Package qmi provides the typed client primitives the daemon's command
// handlers are built on: a single-threaded event loop multiplexing calls
// and indications over one QMI character device, plus one typed client per
// service family (DMS, NAS, UIM, WDS, WMS, WDA).
//
// The event loop is adapted from github.com/warthog618/modem's at.AT:
// a command channel serializes calls onto the device, an indication
// channel serializes (de)registration of unsolicited-message handlers, and
// a closed channel fans out shutdown. Where at.AT framed CRLF-terminated AT
// lines, Device frames binary (service, client, transaction, message, TLVs)
// messages; AT's write-guard timing has no QMI equivalent and is replaced
// by transaction-ID matching, which QMI supports natively.
package qmi

import (
	"bufio"
	"context"
	"encoding/binary"
	"io"
	"strconv"
	"sync"

	"github.com/pkg/errors"
)

// Device represents an open QMI character device. Calls can be issued using
// Call and indications registered using Subscribe. Device closes the
// channel returned by Closed() when the connection to the device is broken
// (Read returns EOF). When closed, all outstanding calls return ErrClosed.
type Device struct {
	cmdCh  chan func()
	indCh  chan func()
	closed chan struct{}
	iMsgs  chan message
	cMsgs  chan message
	rw     io.ReadWriter

	mu      sync.Mutex // covers clientIDs, next transaction id per service
	nextTxn map[ServiceID]uint16
	clients map[ServiceID]uint8

	inds map[indicationKey]indication
}

type indicationKey struct {
	service   ServiceID
	messageID uint16
}

type indication struct {
	c chan []TLV
}

// Open wraps an already-open io.ReadWriter (typically the character device
// file, optionally decorated with trace.Trace) as a Device and starts its
// event loop goroutines.
func Open(rw io.ReadWriter) *Device {
	d := &Device{
		rw:      rw,
		cmdCh:   make(chan func()),
		indCh:   make(chan func()),
		iMsgs:   make(chan message),
		cMsgs:   make(chan message),
		closed:  make(chan struct{}),
		nextTxn: make(map[ServiceID]uint16),
		clients: make(map[ServiceID]uint8),
		inds:    make(map[indicationKey]indication),
	}
	go frameReader(d.rw, d.iMsgs)
	go d.nLoop(d.indCh, d.iMsgs, d.cMsgs)
	go cmdLoop(d.cmdCh, d.cMsgs, d.closed)
	return d
}

// Closed returns a channel that blocks while the device is not closed.
func (d *Device) Closed() <-chan struct{} {
	return d.closed
}

// Close closes the underlying device, if it implements io.Closer, causing
// frameReader's next Read to return EOF and the event loop to wind down.
func (d *Device) Close() {
	if c, ok := d.rw.(io.Closer); ok {
		c.Close()
	}
}

// AllocateClient registers a client ID for svc (normally returned by a
// prior QMI control-service "allocate client ID" exchange; here modeled as
// a monotonically increasing per-service counter, since the control service
// itself is outside this package's scope).
func (d *Device) AllocateClient(svc ServiceID) uint8 {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.clients[svc] + 1
	d.clients[svc] = id
	return id
}

// ReleaseClient releases svc's client ID, best-effort.
func (d *Device) ReleaseClient(svc ServiceID, clientID uint8) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.clients, svc)
}

// Call issues a request to svc/clientID for messageID carrying tlvs, and
// blocks for the matching response (by transaction ID) or ctx expiry.
func (d *Device) Call(ctx context.Context, svc ServiceID, clientID uint8, messageID uint16, tlvs []TLV) ([]TLV, error) {
	done := make(chan result, 1)
	select {
	case <-d.closed:
		return nil, ErrClosed
	case d.cmdCh <- func() {
		done <- d.processCall(ctx, svc, clientID, messageID, tlvs)
	}:
		select {
		case r := <-done:
			return r.tlvs, r.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Subscribe registers a handler for indications from svc carrying
// messageID. The channel is closed when the Device closes or Cancel is
// called on the returned function.
func (d *Device) Subscribe(svc ServiceID, messageID uint16) (<-chan []TLV, func(), error) {
	key := indicationKey{svc, messageID}
	done := make(chan chan []TLV)
	errs := make(chan error, 1)
	select {
	case <-d.closed:
		return nil, nil, ErrClosed
	case d.indCh <- func() {
		if _, ok := d.inds[key]; ok {
			errs <- ErrIndicationExists
			return
		}
		i := indication{c: make(chan []TLV)}
		d.inds[key] = i
		done <- i.c
	}:
		select {
		case ch := <-done:
			cancel := func() { d.cancel(key) }
			return ch, cancel, nil
		case err := <-errs:
			return nil, nil, err
		}
	}
}

func (d *Device) cancel(key indicationKey) {
	done := make(chan struct{})
	select {
	case <-d.closed:
		return
	case d.indCh <- func() {
		if i, ok := d.inds[key]; ok {
			close(i.c)
			delete(d.inds, key)
		}
		close(done)
	}:
		<-done
	}
}

type result struct {
	tlvs []TLV
	err  error
}

func cmdLoop(cmds chan func(), in <-chan message, out chan struct{}) {
	for {
		select {
		case cmd := <-cmds:
			cmd()
		case _, ok := <-in:
			if !ok {
				close(out)
				return
			}
		}
	}
}

// frameReader reads length-prefixed frames from the device and forwards
// their decoded bodies.
func frameReader(r io.Reader, out chan message) {
	br := bufio.NewReader(r)
	for {
		marker, err := br.ReadByte()
		if err != nil {
			close(out)
			return
		}
		if marker != frameMarker {
			continue
		}
		var lenBuf [2]byte
		if _, err := io.ReadFull(br, lenBuf[:]); err != nil {
			close(out)
			return
		}
		n := binary.LittleEndian.Uint16(lenBuf[:])
		body := make([]byte, n)
		if _, err := io.ReadFull(br, body); err != nil {
			close(out)
			return
		}
		m, err := unmarshalMessage(body)
		if err != nil {
			continue
		}
		out <- m
	}
}

// nLoop pulls indications from the device's message stream and forwards
// them to subscribers; request/response traffic is passed upstream to the
// command loop.
func (d *Device) nLoop(cmds chan func(), in <-chan message, out chan message) {
	defer func() {
		for k, v := range d.inds {
			close(v.c)
			delete(d.inds, k)
		}
	}()
	for {
		select {
		case cmd := <-cmds:
			cmd()
		case m, ok := <-in:
			if !ok {
				close(out)
				return
			}
			if m.indication {
				key := indicationKey{m.service, m.messageID}
				if i, ok := d.inds[key]; ok {
					i.c <- m.tlvs
					continue
				}
			}
			out <- m
		}
	}
}

func (d *Device) processCall(ctx context.Context, svc ServiceID, clientID uint8, messageID uint16, tlvs []TLV) result {
	d.mu.Lock()
	txn := d.nextTxn[svc] + 1
	d.nextTxn[svc] = txn
	d.mu.Unlock()

	req := message{service: svc, clientID: clientID, transactionID: txn, messageID: messageID, tlvs: tlvs}
	if _, err := d.rw.Write(marshalMessage(req)); err != nil {
		return result{err: err}
	}
	for {
		select {
		case <-ctx.Done():
			return result{err: ctx.Err()}
		case m, ok := <-d.cMsgs:
			if !ok {
				return result{err: ErrClosed}
			}
			if m.service != svc || m.transactionID != txn || m.messageID != messageID {
				continue
			}
			if errTLV, ok := findTLV(m.tlvs, tlvResultCode); ok && len(errTLV.Value) >= 4 {
				if qerr := tlvU16(errTLV.Value[2:4]); qerr != 0 {
					return result{tlvs: m.tlvs, err: Error(qerr)}
				}
			}
			return result{tlvs: m.tlvs}
		}
	}
}

// tlvResultCode is the standard QMI "result code" TLV (type 0x02): two
// u16 fields, (result, error); result==0 is success.
const tlvResultCode = 0x02

var (
	// ErrClosed indicates an operation cannot be performed because the
	// device has been closed.
	ErrClosed = errors.New("qmi: device closed")
	// ErrIndicationExists indicates a subscription already exists for the
	// given (service, message) pair.
	ErrIndicationExists = errors.New("qmi: indication already subscribed")
)

// Error is a raw QMI protocol error code (spec.md §7 "the full space of QMI
// protocol errors surfaced verbatim by numeric code").
type Error uint16

// Well-known QMI error codes the command handlers special-case (spec.md §7
// "Local recovery").
const (
	ErrNone       Error = 0x0000
	ErrInternal   Error = 0x0002
	ErrNoEffect   Error = 0x001a
	ErrCallFailed Error = 0x0013
)

func (e Error) Error() string {
	return "qmi error " + strconv.Itoa(int(e))
}

// Code returns the raw numeric QMI error code.
func (e Error) Code() uint32 {
	return uint32(e)
}

func errIs(err error, target Error) bool {
	qe, ok := err.(Error)
	return ok && qe == target
}
