package sms

import (
	"github.com/warthog618/sms"
	"github.com/warthog618/sms/encoding/pdumode"
)

// Submit-PDU building is provided symmetrically for completeness (spec.md
// §4.8); the daemon does not expose an IPC command to send SMS (spec.md §1
// Non-goals: "does not implement SMS sending"), so this is exercised only
// by tests.

// BuildSubmitPDUs encodes text into one or more TP-Submit PDUs addressed to
// destination, letting the library pick the charset, split into multipart
// with UDH concatenation descriptors when the body doesn't fit a single
// part, and assign its own concatenation reference (spec.md §4.8 "Splitting
// rules"). Mirrors cmd/sendsms/sendsms.go's sendPDU exactly.
func BuildSubmitPDUs(destination, text string) ([]string, error) {
	pdus, err := sms.Encode([]byte(text), sms.To(destination), sms.WithAllCharsets)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(pdus))
	for _, p := range pdus {
		tp, err := p.MarshalBinary()
		if err != nil {
			return nil, err
		}
		pdu := pdumode.PDU{SMSC: pdumode.SMSCAddress{}, TPDU: tp}
		hex, err := pdu.MarshalHexString()
		if err != nil {
			return nil, err
		}
		out = append(out, hex)
	}
	return out, nil
}
