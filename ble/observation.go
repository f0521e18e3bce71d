package ble

import (
	"strings"

	"github.com/go-ble/ble/linux/adv"
	"github.com/robertof/go-beacon-exporter/beacon"
)

// AD type of the Tx Power Level field (Bluetooth Core Supplement, Part A, 1.5).
const adTypeTxPowerLevel = 0x0a

// rawAdvertisement is implemented by the linux HCI advertisements of go-ble, which keep the
// undecoded advertising data around.
type rawAdvertisement interface {
	Data() []byte
	ScanResponse() []byte
}

func identity(addr string) string {
	return strings.ToLower(addr)
}

// ObservationFromAdvertisement converts a go-ble advertisement. An empty local name counts as
// absent. RSSI is always present since the controller reports it for every advertising report.
func ObservationFromAdvertisement(a Advertisement) beacon.Observation {
	var o beacon.Observation

	if addr := a.Addr(); addr != nil {
		o.ID = identity(addr.String())
	}

	if name := a.LocalName(); name != "" {
		o = o.WithName(name)
	}

	o = o.WithRSSI(a.RSSI())

	if raw, ok := a.(rawAdvertisement); ok {
		if tx, ok := ParseTxPower(raw.Data(), raw.ScanResponse()); ok {
			o = o.WithTxPower(tx)
		}
	} else if tx := a.TxPowerLevel(); tx != 0 {
		// TxPowerLevel() cannot tell an absent field from 0 dBm.
		o = o.WithTxPower(tx)
	}

	return o
}

// ParseTxPower returns the first Tx Power Level field found in the payloads, checked in
// order. A malformed payload is searched only up to its first truncated AD structure.
//
// adv.Packet.TxPower() is not usable here: it expects a 3 byte field and never reports the
// 1 byte Tx Power Level as present.
func ParseTxPower(payloads ...[]byte) (int, bool) {
	for _, p := range payloads {
		// one packet per payload so a truncated advertisement cannot swallow the scan response.
		if f := adv.NewRawPacket(p).Field(adTypeTxPowerLevel); len(f) >= 1 {
			return int(int8(f[0])), true
		}
	}

	return 0, false
}
