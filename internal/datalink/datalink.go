// Package datalink implements the data-link coordinator (C9, spec.md
// §4.9): negotiating 802.3 vs raw-IP link-layer framing with the kernel,
// and bringing the external network interface up or down by spawning the
// fixed helper program (spec.md §6.7).
//
// The sysfs read/write uses golang.org/x/sys/unix directly, the way the
// pack's GPIO/serial daemon example reaches past buffered os.File wrappers
// for raw device access. The QMI device itself is opened elsewhere
// (internal/modem) with os.OpenFile.
package datalink

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/aleksander0m/ravemodemfactory-sub000/internal/qmi"
)

// helperProgram is the fixed subprocess that actually configures the
// network interface (spec.md §6.7).
const helperProgram = "rmfd-port-data-wwan-service"

// sysClassNetFormat is the sysfs attribute exposing the kernel's expected
// data format for a QMI WWAN interface ("raw_ip" or "802.3" equivalent:
// 'Y'/'N' for raw-IP enabled).
const sysClassNetFormat = "/sys/class/net/%s/qmi/raw_ip"

// Coordinator negotiates and records the link-layer protocol for one WWAN
// interface, and drives its bring-up/tear-down helper.
type Coordinator struct {
	iface string
	link  qmi.LinkLayerProtocol
}

// InterfaceName returns the configured network-interface name (spec.md
// §4.5 GET_DATA_PORT).
func (c *Coordinator) InterfaceName() string { return c.iface }

// LinkLayer returns the negotiated link-layer protocol.
func (c *Coordinator) LinkLayer() qmi.LinkLayerProtocol { return c.link }

// Negotiate reconciles the kernel's expected data format with the modem's
// negotiated link-layer protocol (spec.md §4.9 steps 1-3), using an
// ephemeral WDA client over dev.
func Negotiate(ctx context.Context, iface string, dev *qmi.Device) (*Coordinator, error) {
	c := &Coordinator{iface: iface}

	kernelRawIP, kernelKnown, err := readExpectedDataFormat(iface)
	if err != nil {
		return nil, errors.WithMessage(err, "reading kernel expected data format")
	}

	wda := qmi.NewWDAClient(dev)
	defer wda.Release()

	modemProto, err := wda.GetDataFormat(ctx)
	if err != nil {
		return nil, errors.WithMessage(err, "reading modem data format")
	}
	c.link = modemProto

	modemRawIP := modemProto == qmi.LinkLayerRawIP
	if kernelKnown && kernelRawIP != modemRawIP {
		if err := writeExpectedDataFormat(iface, modemRawIP); err != nil {
			// spec.md §4.9 step 1/§7: downgrade to "proceed without setting".
			return c, nil
		}
	}
	return c, nil
}

// readExpectedDataFormat reads the kernel's raw_ip sysfs attribute. The
// second return value is false when the attribute doesn't exist or can't be
// parsed (spec.md §4.9 step 1: "If unknown, surface NotSupported and
// proceed without setting").
func readExpectedDataFormat(iface string) (rawIP bool, known bool, err error) {
	path := fmt.Sprintf(sysClassNetFormat, iface)
	fd, err := unix.Open(path, unix.O_RDONLY, 0)
	if err != nil {
		return false, false, nil
	}
	defer unix.Close(fd)
	buf := make([]byte, 4)
	n, err := unix.Read(fd, buf)
	if err != nil || n == 0 {
		return false, false, nil
	}
	switch buf[0] {
	case 'Y', '1':
		return true, true, nil
	case 'N', '0':
		return false, true, nil
	default:
		return false, false, nil
	}
}

func writeExpectedDataFormat(iface string, rawIP bool) error {
	path := fmt.Sprintf(sysClassNetFormat, iface)
	fd, err := unix.Open(path, unix.O_WRONLY, 0)
	if err != nil {
		return err
	}
	defer unix.Close(fd)
	val := []byte("N\n")
	if rawIP {
		val = []byte("Y\n")
	}
	_, err = unix.Write(fd, val)
	return err
}

// StaticConfig is the subset of get_current_settings results needed to
// bring up a raw-IP interface without DHCP (spec.md §4.6 step 4, §6.7).
type StaticConfig struct {
	IP         string
	Mask       string
	Gateway    string
	PrimaryDNS string
	SecondDNS  string
	MTU        uint32
}

// Start brings the interface up. For an 802.3 link layer, DHCP takes over
// after the helper's "start" verb; for raw-IP, the decoded static
// configuration is passed through.
func (c *Coordinator) Start(ctx context.Context, static *StaticConfig) error {
	var args []string
	if c.link == qmi.LinkLayer8023 || static == nil {
		args = []string{c.iface, "start"}
	} else {
		args = []string{
			c.iface, "static",
			fallback(static.IP), fallback(static.Mask), fallback(static.Gateway),
			fallback(static.PrimaryDNS), fallback(static.SecondDNS),
			fallbackUint(static.MTU),
		}
	}
	return runHelper(ctx, args)
}

// Stop tears the interface down.
func (c *Coordinator) Stop(ctx context.Context) error {
	return runHelper(ctx, []string{c.iface, "stop"})
}

func fallback(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func fallbackUint(v uint32) string {
	if v == 0 {
		return "-"
	}
	return strconv.FormatUint(uint64(v), 10)
}

// runHelper spawns the helper, reaps it without blocking the event loop
// longer than ctx allows, and maps a non-zero exit status to an error
// quoting the exit code (spec.md §6.7).
func runHelper(ctx context.Context, args []string) error {
	path, err := exec.LookPath(helperProgram)
	if err != nil {
		path = filepath.Join("/usr/lib/rmfd", helperProgram)
	}
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return errors.Errorf("rmfd-port-data-wwan-service exited %d", exitErr.ExitCode())
		}
		return errors.WithMessage(err, "running rmfd-port-data-wwan-service")
	}
	return nil
}
