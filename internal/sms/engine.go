// Package sms implements the SMS assembly engine (C7, spec.md §4.8):
// decoding 3GPP TP PDUs read back from WMS raw_read, reassembling
// multipart messages, and driving the listing/indication/deletion
// lifecycle. PDU decode, multipart reassembly, and text/charset decode
// are delegated entirely to github.com/warthog618/sms, the same library
// the teacher's gsm package and cmd/waitsms use for this concern.
package sms

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/warthog618/sms"
	"github.com/warthog618/sms/encoding/tpdu"

	"github.com/aleksander0m/ravemodemfactory-sub000/internal/qmi"
)

// Message is a fully assembled, possibly multipart, SMS (spec.md §3 Sms).
type Message struct {
	Address   string
	Timestamp time.Time
	Text      string
}

type partKey struct {
	storage qmi.StorageType
	index   uint32
}

const noDeleteEnvVar = "RMFD_NO_DELETE_SMS"

// reassemblyTimeout bounds how long an incomplete multipart message waits
// for its remaining parts before the collector drops it (spec.md §4.8).
const reassemblyTimeout = time.Hour

// Engine is the SMS assembly engine (C7, spec.md §4.8).
type Engine struct {
	wms    *qmi.WMSClient
	logger *log.Logger

	collector *sms.Collector

	seen map[partKey]bool
	// pendingByAddr tracks, per originating address, the (storage, index)
	// of every part offered but not yet resolved into a delivered message,
	// oldest first. It lets Deliver map a Collector result — which only
	// carries decoded TPDU content, not our WMS storage coordinates — back
	// to the raw parts that must be deleted. The library doesn't expose a
	// per-message grouping handle, so grouping by originating address is
	// the best available correlation; see DESIGN.md.
	pendingByAddr map[string][]partKey

	noDelete bool
	now      func() time.Time

	Emit func(Message)
}

// New creates an SMS engine over wms. Emit is called once per fully
// assembled message; it must not block the caller.
func New(wms *qmi.WMSClient, logger *log.Logger) *Engine {
	e := &Engine{
		wms:           wms,
		logger:        logger,
		seen:          make(map[partKey]bool),
		pendingByAddr: make(map[string][]partKey),
		noDelete:      os.Getenv(noDeleteEnvVar) != "",
		now:           time.Now,
	}
	e.collector = sms.NewCollector(sms.WithReassemblyTimeout(reassemblyTimeout, e.onReassemblyTimeout))
	return e
}

func (e *Engine) onReassemblyTimeout(tpdus []*tpdu.TPDU) {
	e.logf("sms: multipart reassembly timed out waiting for %d part(s)", len(tpdus))
}

// ListAll performs the one-shot listing after PIN unlock / at startup
// (spec.md §4.8): for each storage and tag, list then raw-read every
// message, retrying a failed listing up to 3 times, 5 seconds apart.
func (e *Engine) ListAll(ctx context.Context) {
	for _, storage := range []qmi.StorageType{qmi.StorageUIM, qmi.StorageNV} {
		e.listStorage(ctx, storage)
	}
}

func (e *Engine) listStorage(ctx context.Context, storage qmi.StorageType) {
	for _, tag := range []qmi.MessageTag{qmi.TagRead, qmi.TagNotRead} {
		var indices []uint32
		var err error
		for attempt := 0; attempt < 3; attempt++ {
			indices, err = e.wms.ListMessages(ctx, storage, tag)
			if err == nil {
				break
			}
			e.logf("sms: list_messages(storage=%v, tag=%v) attempt %d: %v", storage, tag, attempt+1, err)
			select {
			case <-time.After(5 * time.Second):
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			continue
		}
		for _, idx := range indices {
			e.readAndOffer(ctx, storage, idx)
		}
	}
}

// HandleIndication processes one incoming-message indication (spec.md
// §4.8 "Incoming indications").
func (e *Engine) HandleIndication(ctx context.Context, d qmi.MessageDescriptor) {
	e.readAndOffer(ctx, d.Storage, d.Index)
}

func (e *Engine) readAndOffer(ctx context.Context, storage qmi.StorageType, index uint32) {
	raw, err := e.wms.RawRead(ctx, storage, index)
	if err != nil {
		e.logf("sms: raw_read(storage=%v, index=%d): %v", storage, index, err)
		return
	}
	tp, err := decodeTPDU(raw)
	if err != nil {
		e.logf("sms: decode(storage=%v, index=%d): %v", storage, index, err)
		return
	}
	e.offer(ctx, storage, index, tp)
}

// offer feeds one decoded part through duplicate detection and the
// library's multipart collector, delivering once a message is complete
// (spec.md §4.8, "Reassembly invariants" in §8).
func (e *Engine) offer(ctx context.Context, storage qmi.StorageType, index uint32, tp tpdu.TPDU) {
	key := partKey{storage, index}
	if e.seen[key] {
		return
	}
	e.seen[key] = true

	addr := tp.OA.Number()
	e.pendingByAddr[addr] = append(e.pendingByAddr[addr], key)

	tpdus, err := e.collector.Collect(tp)
	if err != nil {
		e.logf("sms: reassembly(storage=%v, index=%d): %v", storage, index, err)
		return
	}
	if tpdus == nil {
		// Multipart message still incomplete; wait for the remaining parts.
		return
	}

	text, err := sms.Decode(tpdus)
	if err != nil {
		e.logf("sms: decoding text(storage=%v, index=%d): %v", storage, index, err)
		return
	}

	keys := e.takePending(addr, len(tpdus))
	msg := Message{Address: addr, Timestamp: e.now(), Text: string(text)}
	e.deliver(ctx, msg, keys)
}

// takePending pops the n most recently recorded pending keys for addr.
func (e *Engine) takePending(addr string, n int) []partKey {
	pending := e.pendingByAddr[addr]
	if n > len(pending) {
		n = len(pending)
	}
	start := len(pending) - n
	keys := append([]partKey(nil), pending[start:]...)
	if start == 0 {
		delete(e.pendingByAddr, addr)
	} else {
		e.pendingByAddr[addr] = pending[:start]
	}
	return keys
}

func (e *Engine) deliver(ctx context.Context, msg Message, keys []partKey) {
	if e.Emit != nil {
		e.Emit(msg)
	}
	if e.noDelete {
		return
	}
	for _, k := range keys {
		if err := e.wms.Delete(ctx, k.storage, k.index); err != nil {
			e.logf("sms: delete(storage=%v, index=%d): %v", k.storage, k.index, err)
		}
	}
}

func (e *Engine) logf(format string, args ...interface{}) {
	if e.logger != nil {
		e.logger.Printf(format, args...)
	}
}
