package qmi

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// ServiceID identifies a QMI service family (spec.md glossary).
type ServiceID uint8

// Service families used by the daemon (spec.md §3 ServiceClient).
const (
	ServiceDMS ServiceID = 0x02
	ServiceNAS ServiceID = 0x03
	ServiceWMS ServiceID = 0x05
	ServiceUIM ServiceID = 0x0b
	ServiceWDS ServiceID = 0x01
	ServiceWDA ServiceID = 0x1a
)

func (s ServiceID) String() string {
	switch s {
	case ServiceDMS:
		return "DMS"
	case ServiceNAS:
		return "NAS"
	case ServiceWMS:
		return "WMS"
	case ServiceUIM:
		return "UIM"
	case ServiceWDS:
		return "WDS"
	case ServiceWDA:
		return "WDA"
	default:
		return "unknown"
	}
}

// frameMarker is the leading byte of every wire frame.
const frameMarker = 0x01

// TLV is one type-length-value element of a QMI message.
type TLV struct {
	Type  uint8
	Value []byte
}

// message is the decoded representation of one QMI wire frame: a service
// directed at a particular client instance, carrying a transaction ID (for
// request/response matching) or an indication bit, a message ID, and a list
// of TLVs.
type message struct {
	service       ServiceID
	clientID      uint8
	transactionID uint16
	indication    bool
	messageID     uint16
	tlvs          []TLV
}

// ErrMalformed indicates a frame read from the device could not be parsed.
var ErrMalformed = errors.New("qmi: malformed frame")

func marshalMessage(m message) []byte {
	var tlvBuf []byte
	for _, t := range m.tlvs {
		var lenBuf [2]byte
		binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(t.Value)))
		tlvBuf = append(tlvBuf, t.Type)
		tlvBuf = append(tlvBuf, lenBuf[:]...)
		tlvBuf = append(tlvBuf, t.Value...)
	}
	body := make([]byte, 0, 8+len(tlvBuf))
	flags := uint8(0)
	if m.indication {
		flags = 1
	}
	body = append(body, uint8(m.service), m.clientID, flags)
	var txnBuf, msgBuf, tlvLenBuf [2]byte
	binary.LittleEndian.PutUint16(txnBuf[:], m.transactionID)
	binary.LittleEndian.PutUint16(msgBuf[:], m.messageID)
	binary.LittleEndian.PutUint16(tlvLenBuf[:], uint16(len(tlvBuf)))
	body = append(body, txnBuf[:]...)
	body = append(body, msgBuf[:]...)
	body = append(body, tlvLenBuf[:]...)
	body = append(body, tlvBuf...)

	out := make([]byte, 0, 3+len(body))
	out = append(out, frameMarker)
	var totalLenBuf [2]byte
	binary.LittleEndian.PutUint16(totalLenBuf[:], uint16(len(body)))
	out = append(out, totalLenBuf[:]...)
	out = append(out, body...)
	return out
}

// unmarshalMessage decodes a single frame (marker+length+body, with body
// already stripped of the marker/length prefix by the reader).
func unmarshalMessage(body []byte) (message, error) {
	if len(body) < 9 {
		return message{}, ErrMalformed
	}
	m := message{
		service:       ServiceID(body[0]),
		clientID:      body[1],
		indication:    body[2]&1 != 0,
		transactionID: binary.LittleEndian.Uint16(body[3:5]),
		messageID:     binary.LittleEndian.Uint16(body[5:7]),
	}
	tlvLen := binary.LittleEndian.Uint16(body[7:9])
	tlvBuf := body[9:]
	if uint16(len(tlvBuf)) != tlvLen {
		return message{}, ErrMalformed
	}
	for len(tlvBuf) > 0 {
		if len(tlvBuf) < 3 {
			return message{}, ErrMalformed
		}
		t := tlvBuf[0]
		l := binary.LittleEndian.Uint16(tlvBuf[1:3])
		if len(tlvBuf) < int(3+l) {
			return message{}, ErrMalformed
		}
		m.tlvs = append(m.tlvs, TLV{Type: t, Value: append([]byte(nil), tlvBuf[3:3+l]...)})
		tlvBuf = tlvBuf[3+l:]
	}
	return m, nil
}

func findTLV(tlvs []TLV, t uint8) (TLV, bool) {
	for _, tlv := range tlvs {
		if tlv.Type == t {
			return tlv, true
		}
	}
	return TLV{}, false
}

func tlvU32(v []byte) uint32 {
	var b [4]byte
	copy(b[:], v)
	return binary.LittleEndian.Uint32(b[:])
}

func tlvU16(v []byte) uint16 {
	var b [2]byte
	copy(b[:], v)
	return binary.LittleEndian.Uint16(b[:])
}

func u32TLV(t uint8, v uint32) TLV {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return TLV{Type: t, Value: b[:]}
}

func u8TLV(t uint8, v uint8) TLV {
	return TLV{Type: t, Value: []byte{v}}
}

func stringTLV(t uint8, v string) TLV {
	return TLV{Type: t, Value: []byte(v)}
}
