package sms

import (
	"github.com/warthog618/sms/encoding/tpdu"
)

// decodeTPDU parses a raw 3GPP 23.040 TP PDU, as returned verbatim by WMS
// raw_read (no SMSC octet prefix — QMI's raw_read already strips it, unlike
// the AT "+CMGR" hex form used over serial modems). Field layout (address,
// TP-DCS, UDH, GSM-7/UCS-2 user data) is entirely the library's concern
// (spec.md §4.8, §4.11), the same call shape as
// cmd/waitsms/waitsms.go's tp.UnmarshalBinary(pdu.TPDU).
func decodeTPDU(raw []byte) (tpdu.TPDU, error) {
	tp := tpdu.TPDU{}
	err := tp.UnmarshalBinary(raw)
	return tp, err
}
