package modem

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/aleksander0m/ravemodemfactory-sub000/internal/datalink"
	"github.com/aleksander0m/ravemodemfactory-sub000/internal/qmi"
	"github.com/aleksander0m/ravemodemfactory-sub000/trace"
)

const proxyEnvVar = "RMFD_QMI_PROXY"

// Pool owns the open QMI device and its mandatory typed clients (spec.md
// §4.4 / §3 ServiceClient). It is exclusive to Modem and lives from
// device-open to device-close.
type Pool struct {
	file   *os.File
	device *qmi.Device

	DMS *qmi.DMSClient
	NAS *qmi.NASClient
	UIM *qmi.UIMClient
	WDS *qmi.WDSClient
	WMS *qmi.WMSClient
}

// OpenOptions configures Pool.Open.
type OpenOptions struct {
	DevicePath string
	// Interface is the network-interface name used for data-link
	// negotiation and GET_DATA_PORT (spec.md §4.9, §4.5).
	Interface string
	// Logger, when set, wraps the device fd in a trace.Trace logging
	// every read/write (mirrors cmd/sendsms's -v flag in the teacher repo).
	Logger *log.Logger
}

// Open opens the device file, allocates the five mandatory service clients,
// and runs the data-link negotiation (C9) over an ephemeral WDA client.
func Open(ctx context.Context, opts OpenOptions) (*Pool, *datalink.Coordinator, error) {
	flags := os.O_RDWR
	f, err := os.OpenFile(opts.DevicePath, flags, 0)
	if err != nil {
		return nil, nil, errors.WithMessage(err, "opening QMI device")
	}
	usingProxy := os.Getenv(proxyEnvVar) != ""
	_ = usingProxy // recorded for parity with spec.md; no proxy socket is dialed by this package.

	var rw interface {
		Read([]byte) (int, error)
		Write([]byte) (int, error)
	} = f
	if opts.Logger != nil {
		rw = trace.New(f, opts.Logger)
	}
	dev := qmi.Open(rw)

	coord, err := datalink.Negotiate(ctx, opts.Interface, dev)
	if err != nil {
		dev.Close()
		f.Close()
		return nil, nil, errors.WithMessage(err, "negotiating data-link layer")
	}

	p := &Pool{
		file:   f,
		device: dev,
		DMS:    qmi.NewDMSClient(dev),
		NAS:    qmi.NewNASClient(dev),
		UIM:    qmi.NewUIMClient(dev),
		WDS:    qmi.NewWDSClient(dev),
		WMS:    qmi.NewWMSClient(dev),
	}
	return p, coord, nil
}

// Device returns the underlying typed-QMI device; IS_MODEM_AVAILABLE uses it
// to check whether the device is still open.
func (p *Pool) Device() *qmi.Device { return p.device }

// Close releases every client with a best-effort budget and closes the
// device (spec.md §4.4, §5 "allocated QMI clients are released with a
// 3-second best-effort budget").
func (p *Pool) Close() {
	release := func(r interface{ Release() }) {
		done := make(chan struct{})
		go func() { r.Release(); close(done) }()
		select {
		case <-done:
		case <-afterThreeSeconds():
		}
	}
	release(p.DMS)
	release(p.NAS)
	release(p.UIM)
	release(p.WDS)
	release(p.WMS)
	p.device.Close()
	p.file.Close()
}

func afterThreeSeconds() <-chan time.Time {
	return time.After(3 * time.Second)
}
