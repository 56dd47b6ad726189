package modem

import (
	"context"
	"strconv"

	"github.com/aleksander0m/ravemodemfactory-sub000/internal/ipc"
	"github.com/aleksander0m/ravemodemfactory-sub000/internal/qmi"
)

// OperatorNetwork is one entry of a GET_SIM_INFO preferred-network-list
// record (spec.md §4.5 "GET_SIM_INFO" step 4).
type OperatorNetwork struct {
	MCC, MNC         string
	GSM, UMTS, LTE   bool
}

// mncLengthByMCC is the static fallback table used when EFad cannot be
// read (supplements spec.md §4.5 step 2; most administrations use a 2-digit
// MNC, these use 3).
var mncLengthByMCC = map[string]int{
	"302": 3, // Canada
	"310": 3, "311": 3, "312": 3, "313": 3, "316": 3, // USA
	"334": 3, // Mexico
	"338": 3, // Jamaica
	"342": 3, // Barbados
	"344": 3, // Antigua and Barbuda
	"346": 3, // Cayman Islands
	"348": 3, // British Virgin Islands
	"365": 3, // Anguilla
	"708": 3, // Honduras
	"722": 3, // Argentina
	"732": 3, // Colombia
}

func handleGetSimInfo(m *Modem, cmd uint32, r *ipc.Reader) []byte {
	ctx, cancel := callCtx(longCallTimeout)
	defer cancel()

	var mcc, mnc string
	imsi, err := m.pool.DMS.GetIMSI(ctx)
	if err == nil && len(imsi) >= 5 {
		mncLen := mncLength(ctx, m.pool.UIM, imsi[:3])
		mcc = imsi[0:3]
		if len(imsi) >= 3+mncLen {
			mnc = imsi[3 : 3+mncLen]
		}
	}

	var networks []OperatorNetwork
	if raw, err := m.pool.UIM.ReadTransparent(ctx, qmi.EFOPLMNwActFileID, qmi.EFOPLMNwActPath); err == nil {
		networks = decodeOPLMNwAct(raw)
	}

	b := successFrame(cmd).AddString(mcc).AddString(mnc).AddU32(uint32(len(networks)))
	for _, n := range networks {
		b = b.AddString(n.MCC).AddString(n.MNC).AddU32(boolToU32(n.GSM)).AddU32(boolToU32(n.UMTS)).AddU32(boolToU32(n.LTE))
	}
	return b.Serialize()
}

// mncLength reads EFad to determine the MNC length in digits, falling back
// to the static table and finally to 2 (spec.md §4.5 step 2).
func mncLength(ctx context.Context, uim *qmi.UIMClient, mcc string) int {
	if raw, err := uim.ReadTransparent(ctx, qmi.EFADFileID, qmi.EFADPath); err == nil && len(raw) >= 4 {
		if n := int(raw[3] & 0x0f); n == 2 || n == 3 {
			return n
		}
	}
	if n, ok := mncLengthByMCC[mcc]; ok {
		return n
	}
	return 2
}

func boolToU32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// decodeOPLMNwAct parses EFoplmnwact as a sequence of 5-byte records: 3
// BCD-packed digits (MCC+MNC) followed by a 2-byte access-technology
// bitmask (spec.md §4.5 step 4). Trailing bytes that don't form a complete
// record are ignored.
func decodeOPLMNwAct(raw []byte) []OperatorNetwork {
	var out []OperatorNetwork
	for off := 0; off+5 <= len(raw); off += 5 {
		rec := raw[off : off+5]
		mccMnc := decodePLMNBCD(rec[0:3])
		if mccMnc == "" {
			continue
		}
		mcc := mccMnc[0:3]
		mnc := mccMnc[3:]
		act := rec[3:5]
		out = append(out, OperatorNetwork{
			MCC: mcc, MNC: mnc,
			GSM:  act[1]&0x80 != 0,
			UMTS: act[1]&0x40 != 0,
			LTE:  act[0]&0x80 != 0,
		})
	}
	return out
}

// decodePLMNBCD decodes the 3GPP PLMN BCD layout: the (low, high) nibbles of
// each byte are (MCC1, MCC2), (MCC3, MNC3-or-filler), (MNC1, MNC2); a high
// nibble of 0xf in byte[1] indicates a 2-digit MNC.
func decodePLMNBCD(b []byte) string {
	if len(b) < 3 {
		return ""
	}
	mcc1 := b[0] & 0x0f
	mcc2 := b[0] >> 4
	mcc3 := b[1] & 0x0f
	mnc3 := b[1] >> 4
	mnc1 := b[2] & 0x0f
	mnc2 := b[2] >> 4
	if mcc1 > 9 || mcc2 > 9 {
		return ""
	}
	mcc := strconv.Itoa(int(mcc1)) + strconv.Itoa(int(mcc2)) + strconv.Itoa(int(mcc3))
	if mnc3 == 0x0f {
		return mcc + strconv.Itoa(int(mnc1)) + strconv.Itoa(int(mnc2))
	}
	return mcc + strconv.Itoa(int(mnc1)) + strconv.Itoa(int(mnc2)) + strconv.Itoa(int(mnc3))
}
